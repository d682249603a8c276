// Package cards models the 40-card cooperative trick-taking deck:
// values 1-9 in four color suits plus the four trump rockets.
package cards

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/sbliven/crew9bot/internal/platform/errors"
)

// Suit identifies one of the five card suits.
type Suit uint8

const (
	Blue Suit = iota
	Pink
	Green
	Yellow
	Rocket
)

// DeckSize is the total number of cards in a full deck.
const DeckSize = 40

// MaxValue is the highest card value in a color suit.
const MaxValue = 9

// MaxRocketValue is the highest rocket value; the holder of this card
// is the commander for the round.
const MaxRocketValue = 4

var suitIcons = map[Suit]string{
	Blue:   "🌀",
	Pink:   "🌸",
	Green:  "☘️",
	Yellow: "⭐️",
	Rocket: "🚀",
}

var suitLetters = map[Suit]byte{
	Blue:   'b',
	Pink:   'p',
	Green:  'g',
	Yellow: 'y',
	Rocket: 'r',
}

var suitNames = map[Suit]string{
	Blue:   "Blue",
	Pink:   "Pink",
	Green:  "Green",
	Yellow: "Yellow",
	Rocket: "Rocket",
}

// Icon returns the emoji used to render the suit.
func (s Suit) Icon() string { return suitIcons[s] }

// Letter returns the single ASCII letter accepted in typed commands.
func (s Suit) Letter() byte { return suitLetters[s] }

// String returns the suit name.
func (s Suit) String() string { return suitNames[s] }

// maxValue returns the highest legal value for the suit.
func (s Suit) maxValue() int {
	if s == Rocket {
		return MaxRocketValue
	}
	return MaxValue
}

// Card is a single card: a value within a suit.
type Card struct {
	Value int
	Suit  Suit
}

// Commander is the card that determines the commander after dealing.
var Commander = Card{Value: MaxRocketValue, Suit: Rocket}

// String renders the card in its emoji form, e.g. "9🌀".
func (c Card) String() string {
	return fmt.Sprintf("%d%s", c.Value, c.Suit.Icon())
}

// Key renders the card in its compact ASCII form, e.g. "9b".
func (c Card) Key() string {
	return fmt.Sprintf("%d%c", c.Value, c.Suit.Letter())
}

// MarshalJSON encodes the card as its compact ASCII form.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Key())
}

// UnmarshalJSON decodes a card from either of its string forms.
func (c *Card) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	card, err := Parse(s)
	if err != nil {
		return err
	}
	*c = card
	return nil
}

// Takes reports whether c beats other in a trick led with the given suit.
//
// Within a suit the higher value takes. Rockets take every color card.
// Between two different color suits only the lead suit takes.
func (c Card) Takes(other Card, lead Suit) bool {
	if c.Suit == other.Suit {
		return c.Value > other.Value
	}
	if c.Suit == Rocket {
		return true
	}
	if other.Suit == Rocket {
		return false
	}
	return c.Suit == lead
}

// Less orders cards by suit then value, for stable hand display.
func Less(a, b Card) bool {
	if a.Suit != b.Suit {
		return a.Suit < b.Suit
	}
	return a.Value < b.Value
}

// Sort sorts a hand in place by suit then value.
func Sort(hand []Card) {
	sort.Slice(hand, func(i, j int) bool { return Less(hand[i], hand[j]) })
}

// Contains reports whether hand holds card.
func Contains(hand []Card, card Card) bool {
	for _, c := range hand {
		if c == card {
			return true
		}
	}
	return false
}

// TrickWinner returns the index of the card that takes the trick.
//
// The first card is assumed to have been led; lead is its suit.
func TrickWinner(trick []Card, lead Suit) int {
	winner := 0
	for i := 1; i < len(trick); i++ {
		if trick[i].Takes(trick[winner], lead) {
			winner = i
		}
	}
	return winner
}

// Parse reads a card from either its ASCII form ("9b") or emoji form ("9🌀").
func Parse(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Card{}, apperrors.WithMetadata(apperrors.CodeCardInvalid, "card too short", map[string]string{"Input": s})
	}
	value := int(s[0] - '0')
	if value < 1 || value > MaxValue {
		return Card{}, apperrors.WithMetadata(apperrors.CodeCardInvalid, "card value out of range", map[string]string{"Input": s})
	}
	rest := s[1:]
	for suit := range suitNames {
		// Icons for green and yellow carry a variation selector; accept
		// the bare emoji too.
		if strings.EqualFold(rest, string(suit.Letter())) || rest == suit.Icon() || rest == strings.TrimSuffix(suit.Icon(), "️") {
			if value > suit.maxValue() {
				return Card{}, apperrors.WithMetadata(apperrors.CodeCardInvalid, "card value out of range for suit", map[string]string{"Input": s})
			}
			return Card{Value: value, Suit: suit}, nil
		}
	}
	return Card{}, apperrors.WithMetadata(apperrors.CodeCardInvalid, "unknown suit", map[string]string{"Input": s})
}

// ParseHand reads a whitespace-separated list of cards.
func ParseHand(s string) ([]Card, error) {
	fields := strings.Fields(s)
	hand := make([]Card, 0, len(fields))
	for _, field := range fields {
		card, err := Parse(field)
		if err != nil {
			return nil, err
		}
		hand = append(hand, card)
	}
	return hand, nil
}

// FormatHand renders a hand sorted and grouped by suit, one suit per line.
func FormatHand(hand []Card) string {
	sorted := make([]Card, len(hand))
	copy(sorted, hand)
	Sort(sorted)

	var b strings.Builder
	for i, card := range sorted {
		if i > 0 {
			if sorted[i-1].Suit != card.Suit {
				b.WriteString("\n")
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(card.String())
	}
	return b.String()
}
