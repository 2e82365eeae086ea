package server

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrRoomNotJoinable    = errors.New("room is not accepting players")
	ErrLobbyFull          = errors.New("room limit reached")
	ErrNotHost            = errors.New("only the host may start the game")
	ErrNotAllReady        = errors.New("not all players are ready")
	ErrNotInRoom          = errors.New("connection is not in a room")
	ErrUnknownGameType    = errors.New("unknown game type")
	ErrGraceExpired       = errors.New("reconnect window expired")
	ErrUnknownPlayer      = errors.New("unknown player")
	ErrCodeSpaceExhausted = errors.New("room code space exhausted")
)

// errorCode maps an error to the stable wire code carried by room:error.
// Unrecognized errors collapse to "internal"; the taxonomy is closed on
// purpose so clients can switch on it.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrRoomNotJoinable):
		return "bad_state"
	case errors.Is(err, ErrLobbyFull):
		return "lobby_full"
	case errors.Is(err, ErrNotHost):
		return "not_host"
	case errors.Is(err, ErrNotAllReady):
		return "not_ready"
	case errors.Is(err, ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, ErrUnknownGameType):
		return "unknown_game_type"
	case errors.Is(err, ErrGraceExpired):
		return "grace_expired"
	case errors.Is(err, ErrUnknownPlayer):
		return "unknown_player"
	case errors.Is(err, ErrCodeSpaceExhausted):
		return "code_space_exhausted"
	default:
		return "internal"
	}
}
