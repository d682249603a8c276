package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Card errors
	CodeCardInvalid Code = "CARD_INVALID"

	// Game lifecycle errors
	CodeGameNotWaiting   Code = "GAME_NOT_WAITING"
	CodeGameNotPlaying   Code = "GAME_NOT_PLAYING"
	CodeGameFull         Code = "GAME_FULL"
	CodeGameTooFewSeats  Code = "GAME_TOO_FEW_SEATS"
	CodeGameIDInvalid    Code = "GAME_ID_INVALID"
	CodePlayerSeated     Code = "PLAYER_ALREADY_SEATED"
	CodePlayerNotSeated  Code = "PLAYER_NOT_SEATED"

	// Turn errors
	CodePlayOutOfTurn   Code = "PLAY_OUT_OF_TURN"
	CodeCardNotHeld     Code = "CARD_NOT_HELD"
	CodeMustFollowSuit  Code = "MUST_FOLLOW_SUIT"

	// Communication errors
	CodeHintTokenUsed    Code = "HINT_TOKEN_USED"
	CodeHintMidTrick     Code = "HINT_MID_TRICK"
	CodeHintRocket       Code = "HINT_ROCKET"
	CodeHintNotExtreme   Code = "HINT_NOT_EXTREME"

	// Mission errors
	CodeMissionUnknown Code = "MISSION_UNKNOWN"

	// Storage errors
	CodeNotFound           Code = "NOT_FOUND"
	CodeSnapshotUnsupported Code = "SNAPSHOT_VERSION_UNSUPPORTED"

	// Spectate grant errors
	CodeGrantInvalid  Code = "GRANT_INVALID"
	CodeGrantExpired  Code = "GRANT_EXPIRED"
	CodeGrantMismatch Code = "GRANT_MISMATCH"
)
