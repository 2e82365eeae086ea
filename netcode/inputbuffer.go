// Package netcode holds the client-side halves of the protocol: the
// prediction/reconciliation input buffer and the render-time state
// interpolation buffer. It has no server dependencies so bots and test
// harnesses can import it alone.
package netcode

// Input is one locally-applied input together with the state the
// client predicted it would produce.
type Input struct {
	Seq       uint64
	Payload   any
	Predicted any
}

// InputBuffer records locally-applied inputs under strictly increasing
// sequence numbers in a bounded ring; the oldest entry drops once
// capacity is exceeded.
type InputBuffer struct {
	entries  []Input
	capacity int
	lastSeq  uint64
}

const DefaultInputCapacity = 128

func NewInputBuffer(capacity int) *InputBuffer {
	if capacity <= 0 {
		capacity = DefaultInputCapacity
	}
	return &InputBuffer{capacity: capacity}
}

// Push records an input and returns its assigned sequence number.
func (b *InputBuffer) Push(payload, predicted any) uint64 {
	b.lastSeq++
	b.entries = append(b.entries, Input{
		Seq:       b.lastSeq,
		Payload:   payload,
		Predicted: predicted,
	})
	if len(b.entries) > b.capacity {
		b.entries = b.entries[len(b.entries)-b.capacity:]
	}
	return b.lastSeq
}

// Len returns the number of unacknowledged inputs currently buffered.
func (b *InputBuffer) Len() int {
	return len(b.entries)
}

// LastSeq returns the most recently assigned sequence number.
func (b *InputBuffer) LastSeq() uint64 {
	return b.lastSeq
}

// Reconcile discards every input at or below ackSeq as confirmed and
// returns the authoritative server state plus the surviving inputs, in
// original order, for replay on top of it. When everything is
// acknowledged the replay set is empty and serverState stands as-is.
func (b *InputBuffer) Reconcile(ackSeq uint64, serverState any) (any, []Input) {
	keep := 0
	for keep < len(b.entries) && b.entries[keep].Seq <= ackSeq {
		keep++
	}
	b.entries = b.entries[keep:]

	replay := make([]Input, len(b.entries))
	copy(replay, b.entries)
	return serverState, replay
}
