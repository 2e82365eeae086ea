package server

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RoomPlayer is one roster slot. The wire representation is built from
// it on demand; runtime-only fields stay unexported.
type RoomPlayer struct {
	ID             string
	Name           string
	Color          string
	Ready          bool
	Connected      bool
	DisconnectedAt time.Time

	joinOrder int
	conn      *conn
}

func (p *RoomPlayer) info() RoomPlayerInfo {
	return RoomPlayerInfo{
		ID:        p.ID,
		Name:      p.Name,
		Ready:     p.Ready,
		Color:     p.Color,
		Connected: p.Connected,
	}
}

// Room owns one match's roster and, once started, its session. Every
// mutation of roster, readiness, or in-match state happens under mu;
// that single per-room lock is what gives each room its total ordering
// of ticks and inputs without serializing rooms against each other.
type Room struct {
	mu sync.Mutex

	Code     string
	GameType GameType

	state     RoomState
	hostID    string
	players   []*RoomPlayer
	nextJoin  int
	touched   time.Time
	createdAt time.Time

	session *Session
	logger  zerolog.Logger
}

func NewRoom(code string, game GameType, logger zerolog.Logger) *Room {
	now := time.Now()
	return &Room{
		Code:      code,
		GameType:  game,
		state:     RoomWaiting,
		touched:   now,
		createdAt: now,
		logger:    logger.With().Str("room", code).Str("game", string(game)).Logger(),
	}
}

// State returns the room's lifecycle state.
func (r *Room) State() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// HostID returns the current host's player id.
func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// Session returns the active session, nil before start.
func (r *Room) Session() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *Room) touchLocked() {
	r.touched = time.Now()
}

// AddPlayer appends a player in join order, assigning the first palette
// color no live roster member holds. Returns nil when the roster is
// full or the room is past waiting; the room is left untouched.
func (r *Room) AddPlayer(c *conn, name string) *RoomPlayer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != RoomWaiting || len(r.players) >= maxRoomPlayers {
		return nil
	}

	player := &RoomPlayer{
		ID:        c.id,
		Name:      name,
		Color:     r.nextColorLocked(),
		Connected: true,
		joinOrder: r.nextJoin,
		conn:      c,
	}
	r.nextJoin++
	r.players = append(r.players, player)
	if r.hostID == "" {
		r.hostID = player.ID
	}
	r.touchLocked()
	return player
}

func (r *Room) nextColorLocked() string {
	for _, color := range playerPalette {
		taken := false
		for _, p := range r.players {
			if p.Color == color {
				taken = true
				break
			}
		}
		if !taken {
			return color
		}
	}
	return playerPalette[len(r.players)%maxRoomPlayers]
}

// RemovePlayer drops a player from the roster. When the host leaves and
// others remain, the host role migrates to the earliest surviving join
// order. Reports whether the roster is now empty.
func (r *Room) RemovePlayer(playerID string) (removed bool, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removePlayerLocked(playerID)
}

func (r *Room) removePlayerLocked(playerID string) (bool, bool) {
	idx := -1
	for i, p := range r.players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, len(r.players) == 0
	}

	r.players = append(r.players[:idx], r.players[idx+1:]...)
	r.touchLocked()

	if r.hostID == playerID {
		r.hostID = ""
		best := -1
		for i, p := range r.players {
			if best < 0 || p.joinOrder < r.players[best].joinOrder {
				best = i
			}
		}
		if best >= 0 {
			r.hostID = r.players[best].ID
		}
	}
	return true, len(r.players) == 0
}

// DisconnectPlayer flags a player as gone without freeing the slot, so
// a rejoin inside the grace window can reclaim it mid-match.
func (r *Room) DisconnectPlayer(playerID string) *RoomPlayer {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findLocked(playerID)
	if p == nil {
		return nil
	}
	p.Connected = false
	p.DisconnectedAt = time.Now()
	p.conn = nil
	r.touchLocked()
	return p
}

// ReconnectPlayer rebinds a fresh connection to an existing slot. The
// grace window is a soft deadline evaluated here, on the attempt; a
// slot whose window lapsed stays dead until the idle sweep or a leave
// cleans it up.
func (r *Room) ReconnectPlayer(playerID string, c *conn) (*RoomPlayer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findLocked(playerID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if !p.Connected && time.Since(p.DisconnectedAt) > reconnectGrace {
		return nil, ErrGraceExpired
	}
	if p.conn != nil && p.conn != c {
		p.conn.close()
	}
	p.Connected = true
	p.DisconnectedAt = time.Time{}
	p.conn = c
	r.touchLocked()
	return p, nil
}

// SetReady toggles a player's ready flag.
func (r *Room) SetReady(playerID string, ready bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findLocked(playerID)
	if p == nil {
		return false
	}
	p.Ready = ready
	r.touchLocked()
	return true
}

// AllReady reports whether the match may start: at least two players,
// every one of them ready.
func (r *Room) AllReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allReadyLocked()
}

func (r *Room) allReadyLocked() bool {
	if len(r.players) < 2 {
		return false
	}
	for _, p := range r.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// IsIdle reports whether no roster or readiness mutation happened
// within timeout.
func (r *Room) IsIdle(timeout time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.touched) > timeout
}

// Empty reports whether the roster has no players at all.
func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players) == 0
}

func (r *Room) findLocked(playerID string) *RoomPlayer {
	for _, p := range r.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// Info builds the wire representation of the room.
func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.infoLocked()
}

func (r *Room) infoLocked() RoomInfo {
	players := make([]RoomPlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p.info())
	}
	return RoomInfo{
		Code:     r.Code,
		GameType: r.GameType,
		State:    r.state,
		HostID:   r.hostID,
		Players:  players,
	}
}

// rosterLocked returns the live roster slice; callers must hold mu and
// must not retain it past the critical section.
func (r *Room) rosterLocked() []*RoomPlayer {
	return r.players
}

func (r *Room) recipientsLocked() []*conn {
	conns := make([]*conn, 0, len(r.players))
	for _, p := range r.players {
		if p.Connected && p.conn != nil {
			conns = append(conns, p.conn)
		}
	}
	return conns
}

// Broadcast fans a message out to every connected roster member.
// Sends are fire-and-forget: a failed write is the read loop's problem.
func (r *Room) Broadcast(msgType string, payload any) {
	r.mu.Lock()
	conns := r.recipientsLocked()
	r.mu.Unlock()
	sendToAll(conns, msgType, payload, r.logger)
}

// BroadcastUpdate pushes the current roster to everyone; called after
// any roster change.
func (r *Room) BroadcastUpdate() {
	r.mu.Lock()
	info := r.infoLocked()
	conns := r.recipientsLocked()
	r.mu.Unlock()
	sendToAll(conns, MsgRoomUpdate, RoomUpdateMessage{Room: info}, r.logger)
}
