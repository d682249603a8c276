package bot

import (
	"fmt"
	"strings"

	"github.com/sbliven/crew9bot/internal/crew/cards"
	"github.com/sbliven/crew9bot/internal/crew/event"
	apperrors "github.com/sbliven/crew9bot/internal/platform/errors"
)

// renderEvent turns a game event into the Markdown text sent to a seat.
func renderEvent(evt event.Event) string {
	switch e := evt.(type) {
	case event.JoinedGame:
		return fmt.Sprintf("You joined game *%s*.\nInvite friends with %s", e.GameID, e.InviteURL)
	case event.PlayerJoined:
		return fmt.Sprintf("%s joined the game.", e.PlayerName)
	case event.PlayerLeft:
		return fmt.Sprintf("%s left the game.", e.PlayerName)
	case event.MissionChanged:
		return fmt.Sprintf("Mission set: %s", e.Mission.Description())
	case event.CardsDealt:
		return fmt.Sprintf("Your hand:\n%s", cards.FormatHand(e.Hand))
	case event.TasksAssigned:
		var b strings.Builder
		b.WriteString("Tasks for this mission:")
		for _, task := range e.Tasks {
			owner := fmt.Sprintf("seat %d", task.Owner+1)
			if task.Owner < len(e.Owners) {
				owner = e.Owners[task.Owner]
			}
			fmt.Fprintf(&b, "\n%s must be won by %s", task.Card, owner)
		}
		return b.String()
	case event.YourTurn:
		return fmt.Sprintf("It's your turn. Play one of: %s", joinCards(e.Valid))
	case event.CardPlayed:
		return fmt.Sprintf("%s played %s.", e.PlayerName, e.Card)
	case event.CardHinted:
		return fmt.Sprintf("%s signals: %s is their %s %s card.",
			e.PlayerName, e.Card, e.Position, e.Card.Suit)
	case event.TrickWon:
		return fmt.Sprintf("%s takes trick %d.", e.WinnerName, e.Trick+1)
	case event.GameOver:
		if e.Won {
			return fmt.Sprintf("Mission %d complete! 🎉 Use /begin for the next mission.", e.Mission.Number)
		}
		return fmt.Sprintf("Mission %d failed. 💥 Use /begin to try again.", e.Mission.Number)
	default:
		return fmt.Sprintf("(%s)", evt.Kind())
	}
}

func joinCards(hand []cards.Card) string {
	parts := make([]string, len(hand))
	for i, card := range hand {
		parts[i] = card.String()
	}
	return strings.Join(parts, " ")
}

// userMessage maps a domain error to the reply a player sees.
func userMessage(err error) string {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeCardInvalid:
		return "I don't recognize that card. Try forms like `9b` or `4🚀`."
	case apperrors.CodeGameNotWaiting:
		return "The round is already underway."
	case apperrors.CodeGameNotPlaying:
		return "No round is being played right now. Use /begin to start one."
	case apperrors.CodeGameFull:
		return "That game already has five players."
	case apperrors.CodeGameTooFewSeats:
		return "The Crew needs at least three players. Share /invite to recruit more."
	case apperrors.CodeGameIDInvalid:
		return "Game ids are eight letters, like `A2B3C4D5`."
	case apperrors.CodePlayerSeated:
		return "You are already in a game. Use /leave first."
	case apperrors.CodePlayerNotSeated:
		return "You are not in a game yet. Use /new or /join <id>."
	case apperrors.CodePlayOutOfTurn:
		return "It's not your turn."
	case apperrors.CodeCardNotHeld:
		return "You don't hold that card. Check /hand."
	case apperrors.CodeMustFollowSuit:
		return "You must follow the lead suit."
	case apperrors.CodeHintTokenUsed:
		return "You already used your communication token this round."
	case apperrors.CodeHintMidTrick:
		return "You can only communicate between tricks."
	case apperrors.CodeHintRocket:
		return "Rockets cannot be communicated."
	case apperrors.CodeHintNotExtreme:
		return "You may only reveal your highest, lowest, or only card of a suit."
	case apperrors.CodeMissionUnknown:
		return "I don't know that mission number."
	case apperrors.CodeNotFound:
		return "I can't find that game."
	default:
		return "Something went wrong. Please try again."
	}
}
