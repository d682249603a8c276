// Package missions defines the mission ladder and task bookkeeping for a
// cooperative round: which cards must be captured, and by whom.
package missions

import (
	"fmt"
	"math/rand"

	"github.com/sbliven/crew9bot/internal/crew/cards"
	apperrors "github.com/sbliven/crew9bot/internal/platform/errors"
)

// Mission describes one rung of the mission ladder.
type Mission struct {
	Number    int `json:"number"`
	TaskCount int `json:"task_count"`
}

// Description returns the human-readable mission summary.
func (m Mission) Description() string {
	if m.TaskCount == 1 {
		return "Complete 1 task"
	}
	return fmt.Sprintf("Complete %d tasks", m.TaskCount)
}

// registry is the mission ladder, keyed by mission number.
var registry = map[int]Mission{
	1: {Number: 1, TaskCount: 1},
	2: {Number: 2, TaskCount: 2},
	3: {Number: 3, TaskCount: 4},
	4: {Number: 4, TaskCount: 6},
}

// First is the mission every new game starts on.
var First = registry[1]

// ByNumber looks up a mission on the ladder.
func ByNumber(n int) (Mission, error) {
	mission, ok := registry[n]
	if !ok {
		return Mission{}, apperrors.WithMetadata(apperrors.CodeMissionUnknown,
			fmt.Sprintf("mission %d is not defined", n),
			map[string]string{"Mission": fmt.Sprintf("%d", n)})
	}
	return mission, nil
}

// Next returns the mission after m, or m itself at the top of the ladder.
func Next(m Mission) Mission {
	if next, ok := registry[m.Number+1]; ok {
		return next
	}
	return m
}

// Task binds a card to the seat that must capture it.
type Task struct {
	Card  cards.Card `json:"card"`
	Owner int        `json:"owner"`
}

// Assign draws the mission's task cards from the dealt color cards and
// distributes them round-robin starting at the commander.
//
// Rockets are never tasks. Assignment is deterministic with respect to
// the rng state.
func (m Mission) Assign(rng *rand.Rand, hands [][]cards.Card, commander int) []Task {
	var pool []cards.Card
	for _, hand := range hands {
		for _, card := range hand {
			if card.Suit != cards.Rocket {
				pool = append(pool, card)
			}
		}
	}
	cards.Sort(pool)

	count := m.TaskCount
	if count > len(pool) {
		count = len(pool)
	}

	tasks := make([]Task, 0, count)
	for i, idx := range rng.Perm(len(pool))[:count] {
		owner := (commander + i) % len(hands)
		tasks = append(tasks, Task{Card: pool[idx], Owner: owner})
	}
	return tasks
}

// Status is the outcome of a round so far.
type Status int

const (
	Ongoing Status = iota
	Won
	Lost
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Won:
		return "won"
	case Lost:
		return "lost"
	default:
		return "ongoing"
	}
}

// Evaluate checks every task against the completed tricks.
//
// played is indexed [seat][trick]. A task card captured in a trick won
// by its owner is complete; captured by anyone else the round is lost.
// The round is won once every task is complete.
func Evaluate(tasks []Task, played [][]cards.Card, trickWinners []int) Status {
	complete := 0
	for _, task := range tasks {
		trick, found := trickOf(task.Card, played)
		if !found || trick >= len(trickWinners) {
			continue
		}
		if trickWinners[trick] != task.Owner {
			return Lost
		}
		complete++
	}
	if complete == len(tasks) {
		return Won
	}
	return Ongoing
}

// trickOf finds the trick index in which a card was played.
func trickOf(card cards.Card, played [][]cards.Card) (int, bool) {
	for _, seat := range played {
		for trick, c := range seat {
			if c == card {
				return trick, true
			}
		}
	}
	return 0, false
}
