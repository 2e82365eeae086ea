package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// variant is the game-specific half of a session. Every hook runs with
// the room lock held, so hooks never race each other or a tick.
type variant interface {
	onStart()
	onTick(dt float64)
	onStop()
	onInput(playerID string, msg InputMessage)
	onAction(playerID string, actionType string, data json.RawMessage)
	onPlayerDisconnect(playerID string)
	onPlayerReconnect(p *RoomPlayer)
	onPlayerLeave(playerID string)
}

// frame is one encoded message staged under the room lock for delivery
// after it is released. Websocket writes can block on a backpressured
// peer for up to writeWait, so they never run inside a hook.
type frame struct {
	conns []*conn
	data  []byte
}

// Session drives one match: countdown, fixed-rate tick loop, terminal
// broadcast. The loop goroutine is the only caller of onTick; inbound
// input/action handlers serialize against it on the room lock, which
// gives the total per-room ordering the variants' collision and AI
// logic depend on.
type Session struct {
	room      *Room
	game      variant
	tickRate  int
	telemetry *Telemetry
	logger    zerolog.Logger

	tick      uint64
	startedAt time.Time
	ended     bool
	outbox    []frame

	stop     chan struct{}
	stopOnce sync.Once
}

func newSession(room *Room, telemetry *Telemetry, logger zerolog.Logger) *Session {
	s := &Session{
		room:      room,
		tickRate:  tickRateFor(room.GameType),
		telemetry: telemetry,
		logger:    logger.With().Str("component", "session").Logger(),
		stop:      make(chan struct{}),
	}
	switch room.GameType {
	case GameGridChase:
		s.game = newGridChase(s)
	case GameFlightRace:
		s.game = newFlightRace(s)
	case GameSurvivalHorde:
		s.game = newSurvivalHorde(s)
	}
	return s
}

// Start launches the countdown/tick goroutine.
func (s *Session) Start() {
	go s.run()
}

// Stop clears the timer and moves the room to finished. A tick already
// in flight runs to completion; nothing fires after it.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Tick returns the current tick counter.
func (s *Session) Tick() uint64 {
	s.room.mu.Lock()
	defer s.room.mu.Unlock()
	return s.tick
}

func (s *Session) run() {
	if !s.runCountdown() {
		return
	}

	s.room.mu.Lock()
	s.room.state = RoomPlaying
	s.startedAt = time.Now()
	s.game.onStart()
	staged := s.takeOutboxLocked()
	s.room.mu.Unlock()
	s.deliver(staged)

	s.broadcast(MsgGameEvent, GameEventMessage{Type: "start"})
	s.logger.Info().Int("tickRate", s.tickRate).Msg("match started")

	ticker := time.NewTicker(time.Second / time.Duration(s.tickRate))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-s.stop:
			s.finish()
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			if dt <= 0 {
				dt = 1.0 / float64(s.tickRate)
			}
			last = now

			s.room.mu.Lock()
			if s.ended {
				s.room.mu.Unlock()
				s.finish()
				return
			}
			s.tick++
			s.game.onTick(dt)
			ended := s.ended
			staged := s.takeOutboxLocked()
			s.room.mu.Unlock()

			s.deliver(staged)
			s.telemetry.RecordTick()
			if ended {
				s.finish()
				return
			}
		}
	}
}

// runCountdown broadcasts 3..0 one per second. Returns false when the
// session was stopped mid-countdown.
func (s *Session) runCountdown() bool {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for seconds := countdownSeconds; ; {
		s.broadcast(MsgGameCountdown, CountdownMessage{Seconds: seconds})
		if seconds == 0 {
			return true
		}
		seconds--
		select {
		case <-s.stop:
			s.finish()
			return false
		case <-ticker.C:
		}
	}
}

func (s *Session) finish() {
	s.room.mu.Lock()
	if s.room.state != RoomFinished {
		s.room.state = RoomFinished
		s.game.onStop()
	}
	staged := s.takeOutboxLocked()
	s.room.mu.Unlock()
	s.deliver(staged)
	s.telemetry.RecordSessionFinished()
}

// endGameLocked stages the terminal payload exactly once and stops the
// loop. Callers hold the room lock (it is invoked from hooks).
func (s *Session) endGameLocked(results GameEndMessage) {
	if s.ended {
		return
	}
	s.ended = true
	s.broadcastLocked(MsgGameEnd, results)
	s.logger.Info().Uint64("tick", s.tick).Msg("match ended")
	s.Stop()
}

// HandleInput routes a continuous input to the variant under the room
// lock; it is applied before the next tick that follows it.
func (s *Session) HandleInput(playerID string, msg InputMessage) {
	s.room.mu.Lock()
	if s.room.state != RoomPlaying || s.ended {
		s.room.mu.Unlock()
		return
	}
	s.game.onInput(playerID, msg)
	staged := s.takeOutboxLocked()
	s.room.mu.Unlock()
	s.deliver(staged)
}

// HandleAction routes a discrete action to the variant.
func (s *Session) HandleAction(playerID string, actionType string, data json.RawMessage) {
	s.room.mu.Lock()
	if s.room.state != RoomPlaying || s.ended {
		s.room.mu.Unlock()
		return
	}
	s.game.onAction(playerID, actionType, data)
	staged := s.takeOutboxLocked()
	s.room.mu.Unlock()
	s.deliver(staged)
}

// HandleDisconnect tells the variant a player dropped mid-match.
func (s *Session) HandleDisconnect(playerID string) {
	s.room.mu.Lock()
	if s.ended {
		s.room.mu.Unlock()
		return
	}
	s.game.onPlayerDisconnect(playerID)
	staged := s.takeOutboxLocked()
	s.room.mu.Unlock()
	s.deliver(staged)
}

// HandleReconnect tells the variant a player is back on a new socket.
func (s *Session) HandleReconnect(p *RoomPlayer) {
	s.room.mu.Lock()
	if s.ended {
		s.room.mu.Unlock()
		return
	}
	s.game.onPlayerReconnect(p)
	staged := s.takeOutboxLocked()
	s.room.mu.Unlock()
	s.deliver(staged)
}

// HandleLeave removes a player from the running game for good. Unlike
// a disconnect the slot is gone, so the variant settles the player's
// fate now and re-checks its end condition.
func (s *Session) HandleLeave(playerID string) {
	s.room.mu.Lock()
	if s.ended {
		s.room.mu.Unlock()
		return
	}
	s.game.onPlayerLeave(playerID)
	staged := s.takeOutboxLocked()
	s.room.mu.Unlock()
	s.deliver(staged)
}

// broadcast sends to every connected roster member, taking the room
// lock itself.
func (s *Session) broadcast(msgType string, payload any) {
	s.room.mu.Lock()
	conns := s.room.recipientsLocked()
	s.room.mu.Unlock()
	s.sendTo(conns, msgType, payload)
}

// broadcastLocked stages a message for every connected roster member.
// Callers hold the room lock (variant hooks); the frames go out only
// after the caller releases it, so one stalled socket cannot hold up
// the tick or another player's input.
func (s *Session) broadcastLocked(msgType string, payload any) {
	data, err := encodeEnvelope(msgType, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("type", msgType).Msg("marshal broadcast")
		return
	}
	conns := s.room.recipientsLocked()
	if len(conns) == 0 {
		return
	}
	s.outbox = append(s.outbox, frame{conns: conns, data: data})
}

// takeOutboxLocked hands the staged frames to the caller, which must
// deliver them after unlocking the room.
func (s *Session) takeOutboxLocked() []frame {
	staged := s.outbox
	s.outbox = nil
	return staged
}

func (s *Session) deliver(frames []frame) {
	for _, f := range frames {
		for _, c := range f.conns {
			c.sendRaw(f.data)
		}
		s.telemetry.RecordBroadcast(len(f.data), len(f.conns))
	}
}

func (s *Session) sendTo(conns []*conn, msgType string, payload any) {
	data, err := encodeEnvelope(msgType, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("type", msgType).Msg("marshal broadcast")
		return
	}
	for _, c := range conns {
		c.sendRaw(data)
	}
	s.telemetry.RecordBroadcast(len(data), len(conns))
}

// sendToPlayerLocked stages one message for a single roster member,
// used for reconnect full-state pushes.
func (s *Session) sendToPlayerLocked(playerID string, msgType string, payload any) {
	p := s.room.findLocked(playerID)
	if p == nil || p.conn == nil {
		return
	}
	data, err := encodeEnvelope(msgType, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("type", msgType).Msg("marshal direct send")
		return
	}
	s.outbox = append(s.outbox, frame{conns: []*conn{p.conn}, data: data})
}
