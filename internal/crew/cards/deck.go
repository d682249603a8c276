package cards

import "math/rand"

// Deck returns a full deck in canonical order.
func Deck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, suit := range []Suit{Blue, Pink, Green, Yellow} {
		for value := 1; value <= MaxValue; value++ {
			deck = append(deck, Card{Value: value, Suit: suit})
		}
	}
	for value := 1; value <= MaxRocketValue; value++ {
		deck = append(deck, Card{Value: value, Suit: Rocket})
	}
	return deck
}

// Shuffled returns a full deck shuffled with the provided random source.
//
// Shuffled is deterministic with respect to the rng state, which keeps
// deals replayable from a stored seed.
func Shuffled(rng *rand.Rand) []Card {
	deck := Deck()
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}
