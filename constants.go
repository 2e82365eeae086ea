package server

import "time"

const (
	ProtocolVersion = 1

	writeWait = 10 * time.Second

	maxRoomPlayers   = 4
	countdownSeconds = 3

	// reconnectGrace is how long a disconnected player's slot is held for
	// rejoin. Checked lazily on the rejoin attempt; there is no eviction
	// timer, so a dead slot persists until the idle sweep claims the room.
	reconnectGrace = 30 * time.Second

	gridChaseTickRate     = 10
	flightRaceTickRate    = 20
	survivalHordeTickRate = 15
)

// playerPalette is indexed by join order; live players always hold
// distinct entries because a freed color is reused before new ones.
var playerPalette = [maxRoomPlayers]string{
	"#ff5252",
	"#40c4ff",
	"#69f0ae",
	"#ffd740",
}

// GameType selects which session variant a room will run.
type GameType string

const (
	GameGridChase     GameType = "grid-chase"
	GameFlightRace    GameType = "flight-race"
	GameSurvivalHorde GameType = "survival-horde"
)

func parseGameType(value string) (GameType, bool) {
	switch GameType(value) {
	case GameGridChase, GameFlightRace, GameSurvivalHorde:
		return GameType(value), true
	default:
		return "", false
	}
}

func tickRateFor(game GameType) int {
	switch game {
	case GameGridChase:
		return gridChaseTickRate
	case GameFlightRace:
		return flightRaceTickRate
	case GameSurvivalHorde:
		return survivalHordeTickRate
	default:
		return survivalHordeTickRate
	}
}

// RoomState is the lobby-visible lifecycle of a room. Transitions are
// monotone waiting -> countdown -> playing -> finished; a finished room
// is destroyed, never reset.
type RoomState string

const (
	RoomWaiting   RoomState = "waiting"
	RoomCountdown RoomState = "countdown"
	RoomPlaying   RoomState = "playing"
	RoomFinished  RoomState = "finished"
)
