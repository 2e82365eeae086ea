package server

import (
	"encoding/json"
	"time"
)

const (
	// flightSpeedCeiling is the plausibility clamp: reported speeds
	// above it are pulled down, never rejected.
	flightSpeedCeiling = 250.0
)

// FlightPlayer is the wire state of one aircraft. The client owns the
// integration; the server republishes what it was told, minus the
// implausible parts.
type FlightPlayer struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Color    string  `json:"color"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Altitude float64 `json:"altitude"`
	Pitch    float64 `json:"pitch"`
	Yaw      float64 `json:"yaw"`
	Roll     float64 `json:"roll"`
	Speed    float64 `json:"speed"`
	Score    int     `json:"score"`
	Crashed  bool    `json:"crashed"`
	Finished bool    `json:"finished"`
	LastSeq  uint64  `json:"lastSeq"`
}

type FlightSnapshot struct {
	Tick      uint64         `json:"tick"`
	Players   []FlightPlayer `json:"players"`
	Timestamp int64          `json:"timestamp"`
}

type flightInput struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Altitude float64 `json:"altitude"`
	Pitch    float64 `json:"pitch"`
	Yaw      float64 `json:"yaw"`
	Roll     float64 `json:"roll"`
	Speed    float64 `json:"speed"`
}

type checkpointAction struct {
	Checkpoint int `json:"checkpoint"`
	Points     int `json:"points"`
}

type modeAction struct {
	Mode string `json:"mode"`
}

// flightRace is the client-authoritative variant. Clients integrate
// their own flight model and report full state each tick; the server
// applies plausibility clamps and relays.
type flightRace struct {
	s           *Session
	players     map[string]*FlightPlayer
	order       []string
	finishOrder []string
	startCount  int
}

func newFlightRace(s *Session) *flightRace {
	return &flightRace{
		s:       s,
		players: make(map[string]*FlightPlayer),
	}
}

func (f *flightRace) onStart() {
	roster := f.s.room.rosterLocked()
	for i, p := range roster {
		f.players[p.ID] = &FlightPlayer{
			ID:       p.ID,
			Name:     p.Name,
			Color:    p.Color,
			X:        float64(i) * 40,
			Altitude: 120,
			Speed:    60,
		}
		f.order = append(f.order, p.ID)
	}
	f.startCount = len(roster)
}

func (f *flightRace) onTick(dt float64) {
	f.s.broadcastLocked(MsgGameState, f.snapshot())
}

// onInput accepts the client-reported transform. Altitude at or below
// zero means the client flew into the ground: that one is terminal.
func (f *flightRace) onInput(playerID string, msg InputMessage) {
	state := f.players[playerID]
	if state == nil || state.Crashed || state.Finished {
		return
	}
	var in flightInput
	if err := json.Unmarshal(msg.Input, &in); err != nil {
		return
	}

	if in.Speed > flightSpeedCeiling {
		in.Speed = flightSpeedCeiling
	}
	state.X = in.X
	state.Y = in.Y
	state.Altitude = in.Altitude
	state.Pitch = in.Pitch
	state.Yaw = in.Yaw
	state.Roll = in.Roll
	state.Speed = in.Speed
	if msg.Seq > state.LastSeq {
		state.LastSeq = msg.Seq
	}

	if state.Altitude <= 0 {
		state.Altitude = 0
		state.Crashed = true
		f.s.broadcastLocked(MsgGameEvent, GameEventMessage{
			Type:     "crash",
			PlayerID: playerID,
		})
		f.maybeEnd()
	}
}

func (f *flightRace) onAction(playerID string, actionType string, data json.RawMessage) {
	state := f.players[playerID]
	if state == nil || state.Crashed || state.Finished {
		return
	}
	switch actionType {
	case "checkpoint":
		var act checkpointAction
		if err := json.Unmarshal(data, &act); err != nil {
			return
		}
		// Point value trusted as reported; see the plausibility notes
		// in DESIGN.md before hardening this.
		state.Score += act.Points
		f.s.broadcastLocked(MsgGameEvent, GameEventMessage{
			Type:       "checkpoint",
			PlayerID:   playerID,
			Checkpoint: act.Checkpoint,
			Points:     act.Points,
		})
	case "mode":
		var act modeAction
		if err := json.Unmarshal(data, &act); err != nil {
			return
		}
		f.s.broadcastLocked(MsgGameEvent, GameEventMessage{
			Type:     "mode",
			PlayerID: playerID,
			Mode:     act.Mode,
		})
	case "finish":
		state.Finished = true
		f.finishOrder = append(f.finishOrder, playerID)
		f.s.broadcastLocked(MsgGameEvent, GameEventMessage{
			Type:     "finish",
			PlayerID: playerID,
		})
		f.maybeEnd()
	}
}

// maybeEnd finishes the race once every aircraft is down or done; the
// first finisher wins.
func (f *flightRace) maybeEnd() {
	for _, state := range f.players {
		if !state.Crashed && !state.Finished {
			return
		}
	}
	winner := ""
	if len(f.finishOrder) > 0 {
		winner = f.finishOrder[0]
	}
	scores := make(map[string]int, len(f.players))
	for id, state := range f.players {
		scores[id] = state.Score
	}
	f.s.endGameLocked(GameEndMessage{Winner: winner, Scores: scores})
}

func (f *flightRace) onPlayerDisconnect(playerID string) {}

// onPlayerLeave writes the departed aircraft out of the race. Without
// this the end condition could never be met: a player who is neither
// crashed nor finished and never coming back would hold it open until
// the idle sweep.
func (f *flightRace) onPlayerLeave(playerID string) {
	state := f.players[playerID]
	if state == nil {
		return
	}
	if !state.Crashed && !state.Finished {
		state.Crashed = true
		f.s.broadcastLocked(MsgGameEvent, GameEventMessage{
			Type:     "left",
			PlayerID: playerID,
		})
	}
	f.maybeEnd()
}

// onPlayerReconnect pushes the full current state to the rejoining
// connection only; no delta bookkeeping exists to resume from.
func (f *flightRace) onPlayerReconnect(p *RoomPlayer) {
	f.s.sendToPlayerLocked(p.ID, MsgGameState, f.snapshot())
}

func (f *flightRace) onStop() {}

func (f *flightRace) snapshot() FlightSnapshot {
	players := make([]FlightPlayer, 0, len(f.players))
	for _, id := range f.order {
		if state := f.players[id]; state != nil {
			players = append(players, *state)
		}
	}
	return FlightSnapshot{
		Tick:      f.s.tick,
		Players:   players,
		Timestamp: time.Now().UnixMilli(),
	}
}
