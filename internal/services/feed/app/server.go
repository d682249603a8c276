// Package server exposes per-game spectator feeds over websockets.
//
// Spectators join a game room and receive the game's public events as
// JSON frames. When a grant verifier is configured, joins must carry a
// valid spectate grant for the game.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/sbliven/crew9bot/internal/crew/event"
	"github.com/sbliven/crew9bot/internal/invite"
	apperrors "github.com/sbliven/crew9bot/internal/platform/errors"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 10
	maxDecodeErrorsPerConn = 3

	maxReplayEvents = 256
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type joinPayload struct {
	GameID string `json:"game_id"`
	Grant  string `json:"grant,omitempty"`
}

type joinedPayload struct {
	GameID           string `json:"game_id"`
	LatestSequenceID int64  `json:"latest_sequence_id"`
	ServerTime       string `json:"server_time"`
}

type eventPayload struct {
	GameID     string          `json:"game_id"`
	SequenceID int64           `json:"sequence_id"`
	Kind       event.Kind      `json:"kind"`
	Event      json.RawMessage `json:"event"`
	SentAt     string          `json:"sent_at"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

type wsSession struct {
	mu   sync.Mutex
	room *gameRoom
	peer *wsPeer
}

func (s *wsSession) setRoom(next *gameRoom) *gameRoom {
	s.mu.Lock()
	previous := s.room
	s.room = next
	s.mu.Unlock()
	return previous
}

func (s *wsSession) currentRoom() *gameRoom {
	s.mu.Lock()
	room := s.room
	s.mu.Unlock()
	return room
}

type gameRoom struct {
	mu           sync.Mutex
	gameID       string
	nextSequence int64
	replay       []eventPayload
	subscribers  map[*wsPeer]struct{}
}

func newGameRoom(gameID string) *gameRoom {
	return &gameRoom{
		gameID:      gameID,
		subscribers: make(map[*wsPeer]struct{}),
	}
}

func (r *gameRoom) join(peer *wsPeer) (int64, []eventPayload) {
	r.mu.Lock()
	r.subscribers[peer] = struct{}{}
	latest := r.nextSequence
	replay := make([]eventPayload, len(r.replay))
	copy(replay, r.replay)
	r.mu.Unlock()
	return latest, replay
}

func (r *gameRoom) leave(peer *wsPeer) {
	r.mu.Lock()
	delete(r.subscribers, peer)
	r.mu.Unlock()
}

// append records an event in the replay buffer and returns the payload
// with the subscribers to deliver it to.
func (r *gameRoom) append(evt event.Event) (eventPayload, []*wsPeer) {
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("feed: marshal event %s: %v", evt.Kind(), err)
		body = []byte("{}")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSequence++
	payload := eventPayload{
		GameID:     r.gameID,
		SequenceID: r.nextSequence,
		Kind:       evt.Kind(),
		Event:      body,
		SentAt:     time.Now().UTC().Format(time.RFC3339),
	}
	r.replay = append(r.replay, payload)
	if len(r.replay) > maxReplayEvents {
		r.replay = r.replay[len(r.replay)-maxReplayEvents:]
	}
	subscribers := make([]*wsPeer, 0, len(r.subscribers))
	for subscriber := range r.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	return payload, subscribers
}

// Hub fans game events out to spectator rooms.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*gameRoom
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*gameRoom)}
}

func (h *Hub) room(gameID string) *gameRoom {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[gameID]
	if ok {
		return room
	}
	room = newGameRoom(gameID)
	h.rooms[gameID] = room
	return room
}

// Publish delivers a public game event to the game's room. Its
// signature matches game.Observer.
func (h *Hub) Publish(gameID string, evt event.Event) {
	payload, subscribers := h.room(gameID).append(evt)
	frame := wsFrame{Type: "feed.event", Payload: mustJSON(payload)}
	for _, subscriber := range subscribers {
		_ = subscriber.writeFrame(frame)
	}
}

// Config defines the inputs for the feed transport boundary.
type Config struct {
	// Hub receives published game events; required.
	Hub *Hub
	// Verifier gates joins with spectate grants when set.
	Verifier *invite.Verifier
	// GameExists reports whether a game id is hosted; nil allows any id.
	GameExists func(gameID string) bool
}

// NewHandler creates the feed routes: /ws and /up.
func NewHandler(cfg Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, cfg)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
	return mux
}

func handleWSConn(conn *websocket.Conn, cfg Config) {
	defer func() {
		_ = conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	session := &wsSession{peer: newWSPeer(json.NewEncoder(conn))}
	defer func() {
		if room := session.currentRoom(); room != nil {
			room.leave(session.peer)
		}
	}()

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(session.peer, "", "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(session.peer, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case "feed.join":
			handleJoinFrame(session, cfg, frame)
		default:
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

func handleJoinFrame(session *wsSession, cfg Config, frame wsFrame) {
	var payload joinPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid join payload")
		return
	}

	gameID := strings.ToUpper(strings.TrimSpace(payload.GameID))
	if gameID == "" {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "game_id is required")
		return
	}
	if cfg.GameExists != nil && !cfg.GameExists(gameID) {
		_ = writeWSError(session.peer, frame.RequestID, "NOT_FOUND", "game not found")
		return
	}
	if cfg.Verifier != nil {
		if _, err := cfg.Verifier.Verify(payload.Grant, gameID); err != nil {
			log.Printf("feed: spectate grant rejected for game=%s: %v", gameID, err)
			_ = writeWSError(session.peer, frame.RequestID, grantErrorCode(err), "spectate grant rejected")
			return
		}
	}

	room := cfg.Hub.room(gameID)
	previous := session.setRoom(room)
	if previous != nil && previous != room {
		previous.leave(session.peer)
	}
	latest, replay := room.join(session.peer)

	_ = session.peer.writeFrame(wsFrame{
		Type:      "feed.joined",
		RequestID: frame.RequestID,
		Payload: mustJSON(joinedPayload{
			GameID:           gameID,
			LatestSequenceID: latest,
			ServerTime:       time.Now().UTC().Format(time.RFC3339),
		}),
	})
	for _, past := range replay {
		_ = session.peer.writeFrame(wsFrame{Type: "feed.event", Payload: mustJSON(past)})
	}
}

func grantErrorCode(err error) string {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeGrantExpired:
		return "EXPIRED"
	case apperrors.CodeGrantMismatch:
		return "FORBIDDEN"
	default:
		return "UNAUTHENTICATED"
	}
}

func writeWSError(peer *wsPeer, requestID string, code string, message string) error {
	return peer.writeFrame(wsFrame{
		Type:      "feed.error",
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{Code: code, Message: message},
		}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("feed: marshal frame payload: %v", err)
		return nil
	}
	return b
}
