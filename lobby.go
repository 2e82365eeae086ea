package server

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Lobby owns the room collection. It is the only component that may
// create or destroy rooms; everything else holds a *Room and works
// through the room's own lock. Lock order is always lobby before room.
type Lobby struct {
	mu    sync.Mutex
	rooms map[string]*Room
	rng   *rand.Rand

	cfg       Config
	logger    zerolog.Logger
	telemetry *Telemetry

	stop     chan struct{}
	stopOnce sync.Once
}

func NewLobby(cfg Config, logger zerolog.Logger, telemetry *Telemetry) *Lobby {
	l := &Lobby{
		rooms:     make(map[string]*Room),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		cfg:       cfg,
		logger:    logger.With().Str("component", "lobby").Logger(),
		telemetry: telemetry,
		stop:      make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Close stops the sweep loop and tears every room down.
func (l *Lobby) Close() {
	l.stopOnce.Do(func() { close(l.stop) })

	l.mu.Lock()
	rooms := make([]*Room, 0, len(l.rooms))
	for _, room := range l.rooms {
		rooms = append(rooms, room)
	}
	l.rooms = make(map[string]*Room)
	l.mu.Unlock()

	for _, room := range rooms {
		if s := room.Session(); s != nil {
			s.Stop()
		}
	}
}

// CreateRoom makes a room and seats the creator as host. Refused
// without side effects once the global cap is reached.
func (l *Lobby) CreateRoom(c *conn, gameType, playerName string) (*Room, *RoomPlayer, error) {
	game, ok := parseGameType(gameType)
	if !ok {
		return nil, nil, ErrUnknownGameType
	}

	l.mu.Lock()
	if len(l.rooms) >= l.cfg.MaxRooms {
		l.mu.Unlock()
		return nil, nil, ErrLobbyFull
	}
	code, err := GenerateRoomCode(l.rng, l.rooms)
	if err != nil {
		l.mu.Unlock()
		return nil, nil, err
	}
	room := NewRoom(code, game, l.logger)
	l.rooms[code] = room
	l.mu.Unlock()

	player := room.AddPlayer(c, playerName)
	l.telemetry.RecordRoomCreated()
	l.logger.Info().Str("room", code).Str("game", gameType).Msg("room created")
	return room, player, nil
}

// JoinRoom seats a player in an existing waiting room.
func (l *Lobby) JoinRoom(code string, c *conn, playerName string) (*Room, *RoomPlayer, error) {
	room, ok := l.Room(code)
	if !ok {
		return nil, nil, ErrRoomNotFound
	}

	player := room.AddPlayer(c, playerName)
	if player == nil {
		if room.State() != RoomWaiting {
			return nil, nil, ErrRoomNotJoinable
		}
		return nil, nil, ErrRoomFull
	}
	return room, player, nil
}

// Rejoin rebinds a fresh connection to a slot inside its grace window
// and replays current match state to the returning player.
func (l *Lobby) Rejoin(code, playerID string, c *conn) (*Room, *RoomPlayer, error) {
	room, ok := l.Room(code)
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	player, err := room.ReconnectPlayer(playerID, c)
	if err != nil {
		return nil, nil, err
	}
	l.telemetry.RecordReconnect()
	if s := room.Session(); s != nil {
		s.HandleReconnect(player)
	}
	return room, player, nil
}

// LeavePlayer removes a player for good: explicit room:leave or a
// dropped socket while the room is still waiting.
func (l *Lobby) LeavePlayer(room *Room, playerID string) {
	removed, empty := room.RemovePlayer(playerID)
	if !removed {
		return
	}
	if empty {
		l.destroyRoom(room)
		return
	}
	if s := room.Session(); s != nil {
		s.HandleLeave(playerID)
	}
	room.BroadcastUpdate()
}

// DisconnectPlayer flags a mid-match drop. The match keeps running;
// the slot waits for a rejoin.
func (l *Lobby) DisconnectPlayer(room *Room, playerID string) {
	if room.DisconnectPlayer(playerID) == nil {
		return
	}
	if s := room.Session(); s != nil {
		s.HandleDisconnect(playerID)
	}
	room.BroadcastUpdate()
}

// StartGame validates host + readiness and launches the session.
func (l *Lobby) StartGame(room *Room, playerID string) error {
	room.mu.Lock()
	if room.state != RoomWaiting {
		room.mu.Unlock()
		return ErrRoomNotJoinable
	}
	if room.hostID != playerID {
		room.mu.Unlock()
		return ErrNotHost
	}
	if !room.allReadyLocked() {
		room.mu.Unlock()
		return ErrNotAllReady
	}
	session := newSession(room, l.telemetry, room.logger)
	room.session = session
	room.state = RoomCountdown
	room.mu.Unlock()

	l.telemetry.RecordSessionStarted()
	session.Start()
	return nil
}

// ListRooms exposes only waiting rooms, optionally filtered by game
// type. This is the one place room existence leaks before joining.
func (l *Lobby) ListRooms(gameType string) []RoomInfo {
	l.mu.Lock()
	rooms := make([]*Room, 0, len(l.rooms))
	for _, room := range l.rooms {
		rooms = append(rooms, room)
	}
	l.mu.Unlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		info := room.Info()
		if info.State != RoomWaiting {
			continue
		}
		if gameType != "" && string(info.GameType) != gameType {
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

// Room looks a room up by code, case-insensitively.
func (l *Lobby) Room(code string) (*Room, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	room, ok := l.rooms[NormalizeRoomCode(code)]
	return room, ok
}

// RoomCount returns the number of live rooms.
func (l *Lobby) RoomCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}

func (l *Lobby) destroyRoom(room *Room) {
	l.mu.Lock()
	_, present := l.rooms[room.Code]
	delete(l.rooms, room.Code)
	l.mu.Unlock()

	if !present {
		return
	}
	if s := room.Session(); s != nil {
		s.Stop()
	}
	l.telemetry.RecordRoomDestroyed()
	l.logger.Info().Str("room", room.Code).Msg("room destroyed")
}

func (l *Lobby) sweepLoop() {
	interval := l.cfg.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep reclaims rooms that are empty, finished, or idle past the
// configured timeout.
func (l *Lobby) sweep() {
	l.mu.Lock()
	stale := make([]*Room, 0)
	for _, room := range l.rooms {
		if room.Empty() || room.State() == RoomFinished || room.IsIdle(l.cfg.RoomIdleTimeout) {
			stale = append(stale, room)
		}
	}
	l.mu.Unlock()

	for _, room := range stale {
		l.logger.Info().Str("room", room.Code).Msg("sweeping stale room")
		room.Broadcast(MsgRoomError, ErrorMessage{Code: "room_closed", Message: "room closed by server"})
		l.destroyRoom(room)
	}
}
