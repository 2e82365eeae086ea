package netcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputBufferAssignsIncreasingSeqs(t *testing.T) {
	buf := NewInputBuffer(16)

	var last uint64
	for i := 0; i < 10; i++ {
		seq := buf.Push(i, nil)
		assert.Greater(t, seq, last)
		last = seq
	}
	assert.Equal(t, 10, buf.Len())
}

func TestInputBufferReconcileSplitsAtAck(t *testing.T) {
	buf := NewInputBuffer(16)
	for i := 1; i <= 10; i++ {
		buf.Push(i, nil)
	}

	server := map[string]float64{"x": 42}
	base, replay := buf.Reconcile(5, server)

	assert.Equal(t, server, base)
	require.Len(t, replay, 5)
	for i, in := range replay {
		assert.Equal(t, uint64(6+i), in.Seq, "replay keeps original order")
	}
	assert.Equal(t, 5, buf.Len())
}

func TestInputBufferReconcileFullyAcked(t *testing.T) {
	buf := NewInputBuffer(16)
	for i := 1; i <= 10; i++ {
		buf.Push(i, nil)
	}

	server := "authoritative"
	base, replay := buf.Reconcile(10, server)

	assert.Equal(t, server, base, "server state stands verbatim")
	assert.Empty(t, replay)
	assert.Equal(t, 0, buf.Len())
}

func TestInputBufferReconcileAckBeyondKnown(t *testing.T) {
	buf := NewInputBuffer(16)
	buf.Push("a", nil)
	buf.Push("b", nil)

	_, replay := buf.Reconcile(99, nil)
	assert.Empty(t, replay)
	assert.Equal(t, 0, buf.Len())
}

func TestInputBufferDropsOldestPastCapacity(t *testing.T) {
	buf := NewInputBuffer(4)
	for i := 1; i <= 10; i++ {
		buf.Push(i, nil)
	}

	require.Equal(t, 4, buf.Len())
	_, replay := buf.Reconcile(0, nil)
	assert.Equal(t, uint64(7), replay[0].Seq, "oldest entries were dropped")
	assert.Equal(t, uint64(10), replay[len(replay)-1].Seq)
}

func TestInputBufferPredictionTravelsWithInput(t *testing.T) {
	buf := NewInputBuffer(8)
	buf.Push("input-1", "predicted-1")
	_, replay := buf.Reconcile(0, nil)
	require.Len(t, replay, 1)
	assert.Equal(t, "predicted-1", replay[0].Predicted)
}
