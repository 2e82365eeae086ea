package server

import "sync/atomic"

// Telemetry tracks hot-path counters without locks; the broadcast and
// tick paths only touch atomics.
type Telemetry struct {
	bytesSent        atomic.Uint64
	messagesSent     atomic.Uint64
	ticksRun         atomic.Uint64
	roomsCreated     atomic.Uint64
	roomsDestroyed   atomic.Uint64
	sessionsStarted  atomic.Uint64
	sessionsFinished atomic.Uint64
	reconnects       atomic.Uint64
	inputsDropped    atomic.Uint64
}

type TelemetrySnapshot struct {
	BytesSent        uint64 `json:"bytesSent"`
	MessagesSent     uint64 `json:"messagesSent"`
	TicksRun         uint64 `json:"ticksRun"`
	RoomsCreated     uint64 `json:"roomsCreated"`
	RoomsDestroyed   uint64 `json:"roomsDestroyed"`
	SessionsStarted  uint64 `json:"sessionsStarted"`
	SessionsFinished uint64 `json:"sessionsFinished"`
	Reconnects       uint64 `json:"reconnects"`
	InputsDropped    uint64 `json:"inputsDropped"`
}

func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

func (t *Telemetry) RecordBroadcast(bytes, recipients int) {
	if t == nil || bytes < 0 || recipients < 0 {
		return
	}
	t.bytesSent.Add(uint64(bytes * recipients))
	t.messagesSent.Add(uint64(recipients))
}

func (t *Telemetry) RecordTick() {
	if t == nil {
		return
	}
	t.ticksRun.Add(1)
}

func (t *Telemetry) RecordRoomCreated() {
	if t == nil {
		return
	}
	t.roomsCreated.Add(1)
}

func (t *Telemetry) RecordRoomDestroyed() {
	if t == nil {
		return
	}
	t.roomsDestroyed.Add(1)
}

func (t *Telemetry) RecordSessionStarted() {
	if t == nil {
		return
	}
	t.sessionsStarted.Add(1)
}

func (t *Telemetry) RecordSessionFinished() {
	if t == nil {
		return
	}
	t.sessionsFinished.Add(1)
}

func (t *Telemetry) RecordReconnect() {
	if t == nil {
		return
	}
	t.reconnects.Add(1)
}

func (t *Telemetry) RecordInputDropped() {
	if t == nil {
		return
	}
	t.inputsDropped.Add(1)
}

func (t *Telemetry) Snapshot() TelemetrySnapshot {
	if t == nil {
		return TelemetrySnapshot{}
	}
	return TelemetrySnapshot{
		BytesSent:        t.bytesSent.Load(),
		MessagesSent:     t.messagesSent.Load(),
		TicksRun:         t.ticksRun.Load(),
		RoomsCreated:     t.roomsCreated.Load(),
		RoomsDestroyed:   t.roomsDestroyed.Load(),
		SessionsStarted:  t.sessionsStarted.Load(),
		SessionsFinished: t.sessionsFinished.Load(),
		Reconnects:       t.reconnects.Load(),
		InputsDropped:    t.inputsDropped.Load(),
	}
}
