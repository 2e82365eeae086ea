package server

import (
	"encoding/json"
	"math/rand"
	"time"
)

const (
	gridSize           = 20
	gridInitialTrail   = 3
	gridScorePerTier   = 5
	pickupRespawnTries = 100
)

type gridCell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type gridHeading string

const (
	headingUp    gridHeading = "up"
	headingDown  gridHeading = "down"
	headingLeft  gridHeading = "left"
	headingRight gridHeading = "right"
)

func parseGridHeading(value string) (gridHeading, bool) {
	switch gridHeading(value) {
	case headingUp, headingDown, headingLeft, headingRight:
		return gridHeading(value), true
	default:
		return "", false
	}
}

func (h gridHeading) delta() gridCell {
	switch h {
	case headingUp:
		return gridCell{X: 0, Y: -1}
	case headingDown:
		return gridCell{X: 0, Y: 1}
	case headingLeft:
		return gridCell{X: -1, Y: 0}
	default:
		return gridCell{X: 1, Y: 0}
	}
}

// opposes reports whether the two headings lie on the same axis in
// opposite directions; such a turn would fold the chain onto itself.
func (h gridHeading) opposes(other gridHeading) bool {
	d1, d2 := h.delta(), other.delta()
	return d1.X == -d2.X && d1.Y == -d2.Y
}

// GridChasePlayer is the wire state of one snake.
type GridChasePlayer struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Color       string      `json:"color"`
	Pos         gridCell    `json:"pos"`
	Heading     gridHeading `json:"heading"`
	Trail       []gridCell  `json:"trail"`
	Score       int         `json:"score"`
	SpeedTier   int         `json:"speedTier"`
	Alive       bool        `json:"alive"`
	DeathReason string      `json:"deathReason,omitempty"`
	Killer      string      `json:"killer,omitempty"`
	LastSeq     uint64      `json:"lastSeq"`
}

// GridChaseSnapshot is the per-tick broadcast payload.
type GridChaseSnapshot struct {
	Tick      uint64            `json:"tick"`
	Players   []GridChasePlayer `json:"players"`
	Pickup    gridCell          `json:"pickup"`
	Timestamp int64             `json:"timestamp"`
}

type gridState struct {
	GridChasePlayer
	pendingHeading gridHeading
	grow           int
}

// gridChase is the fully server-authoritative variant: clients send
// heading intents only, the grid simulation lives here.
type gridChase struct {
	s          *Session
	players    map[string]*gridState
	order      []string
	pickup     gridCell
	rng        *rand.Rand
	startCount int
}

type gridInput struct {
	Heading string `json:"heading"`
}

func newGridChase(s *Session) *gridChase {
	return &gridChase{
		s:       s,
		players: make(map[string]*gridState),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

var gridSpawns = [maxRoomPlayers]struct {
	pos     gridCell
	heading gridHeading
}{
	{gridCell{3, 3}, headingRight},
	{gridCell{gridSize - 4, gridSize - 4}, headingLeft},
	{gridCell{gridSize - 4, 3}, headingDown},
	{gridCell{3, gridSize - 4}, headingUp},
}

func (g *gridChase) onStart() {
	roster := g.s.room.rosterLocked()
	for i, p := range roster {
		spawn := gridSpawns[i%maxRoomPlayers]
		state := &gridState{
			GridChasePlayer: GridChasePlayer{
				ID:      p.ID,
				Name:    p.Name,
				Color:   p.Color,
				Pos:     spawn.pos,
				Heading: spawn.heading,
				Alive:   true,
			},
			pendingHeading: spawn.heading,
		}
		// The chain trails away from the spawn heading.
		back := spawn.heading.delta()
		for seg := 1; seg <= gridInitialTrail; seg++ {
			state.Trail = append(state.Trail, gridCell{
				X: spawn.pos.X - back.X*seg,
				Y: spawn.pos.Y - back.Y*seg,
			})
		}
		g.players[p.ID] = state
		g.order = append(g.order, p.ID)
	}
	g.startCount = len(roster)
	g.pickup = g.respawnPickup()
}

func (g *gridChase) onTick(dt float64) {
	for _, id := range g.order {
		state := g.players[id]
		if state == nil || !state.Alive {
			continue
		}
		g.stepPlayer(state)
		if g.maybeEnd() {
			return
		}
	}
	g.s.broadcastLocked(MsgGameState, g.snapshot())
}

// stepPlayer advances one snake: commit the pending heading, shift the
// chain, move the head, then resolve collisions in the fixed order
// wall, own chain, other chains, pickup. Elimination stops the tick's
// processing for that player immediately.
func (g *gridChase) stepPlayer(state *gridState) {
	if !state.pendingHeading.opposes(state.Heading) {
		state.Heading = state.pendingHeading
	}

	prev := state.Pos
	d := state.Heading.delta()
	next := gridCell{X: prev.X + d.X, Y: prev.Y + d.Y}

	// Each trailer takes its predecessor's prior position; the first
	// takes the head's pre-move position.
	if len(state.Trail) > 0 || state.grow > 0 {
		state.Trail = append([]gridCell{prev}, state.Trail...)
		if state.grow > 0 {
			state.grow--
		} else {
			state.Trail = state.Trail[:len(state.Trail)-1]
		}
	}

	if next.X < 0 || next.X >= gridSize || next.Y < 0 || next.Y >= gridSize {
		g.eliminate(state, "wall", "")
		return
	}
	state.Pos = next

	for _, seg := range state.Trail {
		if seg == next {
			g.eliminate(state, "own", "")
			return
		}
	}

	for _, otherID := range g.order {
		other := g.players[otherID]
		if other == nil || other.ID == state.ID || !other.Alive {
			continue
		}
		for _, seg := range other.Trail {
			if seg == next {
				g.eliminate(state, "other", other.ID)
				return
			}
		}
	}

	if next == g.pickup {
		state.Score++
		state.grow++
		state.SpeedTier = state.Score / gridScorePerTier
		g.pickup = g.respawnPickup()
		g.s.broadcastLocked(MsgGameEvent, GameEventMessage{
			Type:     "pickup",
			PlayerID: state.ID,
			Points:   state.Score,
		})
	}
}

func (g *gridChase) eliminate(state *gridState, reason, killer string) {
	state.Alive = false
	state.DeathReason = reason
	state.Killer = killer
	g.s.broadcastLocked(MsgGameEvent, GameEventMessage{
		Type:     "death",
		PlayerID: state.ID,
		Reason:   reason,
		Killer:   killer,
	})
}

// maybeEnd finishes the match once at most one snake survives an
// originally multiplayer roster.
func (g *gridChase) maybeEnd() bool {
	if g.startCount < 2 {
		return false
	}
	alive := make([]*gridState, 0, len(g.players))
	for _, id := range g.order {
		if state := g.players[id]; state != nil && state.Alive {
			alive = append(alive, state)
		}
	}
	if len(alive) > 1 {
		return false
	}

	winner := ""
	if len(alive) == 1 {
		winner = alive[0].ID
	}
	scores := make(map[string]int, len(g.players))
	for id, state := range g.players {
		scores[id] = state.Score
	}
	g.s.endGameLocked(GameEndMessage{Winner: winner, Scores: scores})
	return true
}

// respawnPickup samples uniform cells, rejecting occupied ones. After
// the retry budget the last sample is used even if occupied; the next
// pickup roll fixes it.
func (g *gridChase) respawnPickup() gridCell {
	occupied := make(map[gridCell]struct{})
	for _, state := range g.players {
		occupied[state.Pos] = struct{}{}
		for _, seg := range state.Trail {
			occupied[seg] = struct{}{}
		}
	}

	cell := gridCell{X: g.rng.Intn(gridSize), Y: g.rng.Intn(gridSize)}
	for try := 0; try < pickupRespawnTries; try++ {
		if _, taken := occupied[cell]; !taken {
			break
		}
		cell = gridCell{X: g.rng.Intn(gridSize), Y: g.rng.Intn(gridSize)}
	}
	return cell
}

func (g *gridChase) onInput(playerID string, msg InputMessage) {
	state := g.players[playerID]
	if state == nil || !state.Alive {
		return
	}
	var in gridInput
	if err := json.Unmarshal(msg.Input, &in); err != nil {
		return
	}
	heading, ok := parseGridHeading(in.Heading)
	if !ok {
		return
	}
	// Reversing onto the current axis is rejected, not deferred.
	if heading.opposes(state.Heading) {
		return
	}
	state.pendingHeading = heading
	if msg.Seq > state.LastSeq {
		state.LastSeq = msg.Seq
	}
}

func (g *gridChase) onAction(string, string, json.RawMessage) {}

func (g *gridChase) onPlayerDisconnect(playerID string) {
	// The snake keeps sliding on its last heading; the slot waits for
	// a rejoin until the walls settle the question.
}

// onPlayerLeave eliminates the departed snake outright; unlike a
// disconnect there is no slot left to come back to.
func (g *gridChase) onPlayerLeave(playerID string) {
	state := g.players[playerID]
	if state == nil {
		return
	}
	if state.Alive {
		g.eliminate(state, "left", "")
	}
	g.maybeEnd()
}

func (g *gridChase) onPlayerReconnect(p *RoomPlayer) {
	g.s.sendToPlayerLocked(p.ID, MsgGameState, g.snapshot())
}

func (g *gridChase) onStop() {}

func (g *gridChase) snapshot() GridChaseSnapshot {
	players := make([]GridChasePlayer, 0, len(g.players))
	for _, id := range g.order {
		if state := g.players[id]; state != nil {
			wire := state.GridChasePlayer
			wire.Trail = append([]gridCell(nil), state.Trail...)
			players = append(players, wire)
		}
	}
	return GridChaseSnapshot{
		Tick:      g.s.tick,
		Players:   players,
		Pickup:    g.pickup,
		Timestamp: time.Now().UnixMilli(),
	}
}
