// Package invite issues and verifies spectate grants for private games.
//
// A grant is an EdDSA-signed JWT carrying the game id; the spectator
// feed requires one in its join frame.
package invite

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/sbliven/crew9bot/internal/platform/errors"
	"github.com/sbliven/crew9bot/internal/platform/id"
)

// grantEnv holds raw env values before post-parse validation.
type grantEnv struct {
	Issuer     string        `env:"CREW9BOT_SPECTATE_ISSUER"      envDefault:"crew9bot"`
	Audience   string        `env:"CREW9BOT_SPECTATE_AUDIENCE"    envDefault:"crew9bot-feed"`
	PrivateKey string        `env:"CREW9BOT_SPECTATE_PRIVATE_KEY"`
	PublicKey  string        `env:"CREW9BOT_SPECTATE_PUBLIC_KEY"`
	TTL        time.Duration `env:"CREW9BOT_SPECTATE_TTL"         envDefault:"24h"`
}

// Signer issues spectate grants.
type Signer struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	TTL      time.Duration
	Now      func() time.Time
}

// Verifier checks spectate grants.
type Verifier struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// Claims captures a validated spectate grant.
type Claims struct {
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	JWTID     string
	GameID    string
}

// grantClaims is the internal claims type used for JWT parsing.
type grantClaims struct {
	jwt.RegisteredClaims
	GameID string `json:"game_id"`
}

// LoadSignerFromEnv reads grant signing configuration. A missing
// private key returns (nil, nil): spectating is simply disabled.
func LoadSignerFromEnv(now func() time.Time) (*Signer, error) {
	var raw grantEnv
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("parse spectate grant env: %w", err)
	}
	privateKey := strings.TrimSpace(raw.PrivateKey)
	if privateKey == "" {
		return nil, nil
	}
	keyBytes, err := decodeBase64(privateKey)
	if err != nil {
		return nil, fmt.Errorf("decode spectate private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("spectate private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if raw.TTL <= 0 {
		return nil, fmt.Errorf("spectate grant ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &Signer{
		Issuer:   strings.TrimSpace(raw.Issuer),
		Audience: strings.TrimSpace(raw.Audience),
		Key:      ed25519.PrivateKey(keyBytes),
		TTL:      raw.TTL,
		Now:      now,
	}, nil
}

// LoadVerifierFromEnv reads grant verification configuration. A missing
// public key returns (nil, nil): the feed then rejects private joins.
func LoadVerifierFromEnv(now func() time.Time) (*Verifier, error) {
	var raw grantEnv
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("parse spectate grant env: %w", err)
	}
	publicKey := strings.TrimSpace(raw.PublicKey)
	if publicKey == "" {
		return nil, nil
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return nil, fmt.Errorf("decode spectate public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("spectate public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return &Verifier{
		Issuer:   strings.TrimSpace(raw.Issuer),
		Audience: strings.TrimSpace(raw.Audience),
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// Sign issues a spectate grant for a game.
func (s *Signer) Sign(gameID string) (string, error) {
	if s == nil || len(s.Key) != ed25519.PrivateKeySize {
		return "", errors.New("spectate grant signer is not configured")
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}
	issued := now().UTC()
	jti, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("new grant id: %w", err)
	}
	claims := grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.Issuer,
			Audience:  jwt.ClaimStrings{s.Audience},
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.TTL)),
			ID:        jti,
		},
		GameID: gameID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(s.Key)
	if err != nil {
		return "", fmt.Errorf("sign spectate grant: %w", err)
	}
	return signed, nil
}

// Verify checks a grant token against the expected game id.
func (v *Verifier) Verify(grant, gameID string) (Claims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "spectate grant is required")
	}
	if v == nil || len(v.Key) != ed25519.PublicKeySize {
		return Claims{}, errors.New("spectate grant verifier is not configured")
	}
	now := v.Now
	if now == nil {
		now = time.Now
	}

	var parsed grantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return v.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != v.Issuer {
		return Claims{}, apperrors.WithMetadata(apperrors.CodeGrantMismatch,
			"spectate grant issuer mismatch", map[string]string{"Field": "issuer"})
	}
	if !audienceContains(parsed.Audience, v.Audience) {
		return Claims{}, apperrors.WithMetadata(apperrors.CodeGrantMismatch,
			"spectate grant audience mismatch", map[string]string{"Field": "audience"})
	}
	if parsed.ID == "" {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "spectate grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "spectate grant exp is required")
	}
	if !parsed.ExpiresAt.Time.UTC().After(now().UTC()) {
		return Claims{}, apperrors.New(apperrors.CodeGrantExpired, "spectate grant is expired")
	}
	if strings.TrimSpace(parsed.GameID) == "" || parsed.GameID != gameID {
		return Claims{}, apperrors.WithMetadata(apperrors.CodeGrantMismatch,
			"spectate grant game mismatch", map[string]string{"Field": "game_id"})
	}

	return Claims{
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
		JWTID:     parsed.ID,
		GameID:    parsed.GameID,
	}, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeGrantInvalid, "spectate grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeGrantInvalid, "spectate grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeGrantInvalid, "spectate grant is invalid")
}

// audienceContains reports whether the audience list contains the value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
