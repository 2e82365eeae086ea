package netcode

import (
	"math"
	"strings"
	"time"
)

// Sample is one server snapshot with the server timestamp it carried.
type Sample struct {
	State      map[string]any
	ServerTime time.Time
}

// StateBuffer smooths jittery snapshots by always rendering a fixed
// delay in the past. The delay buys room for the bracketing pair of
// samples to arrive; extrapolation past the newest sample is
// deliberately not attempted.
type StateBuffer struct {
	samples  []Sample
	capacity int
	delay    time.Duration
}

const (
	DefaultStateCapacity = 64
	DefaultRenderDelay   = 100 * time.Millisecond
)

func NewStateBuffer(capacity int, delay time.Duration) *StateBuffer {
	if capacity <= 0 {
		capacity = DefaultStateCapacity
	}
	if delay <= 0 {
		delay = DefaultRenderDelay
	}
	return &StateBuffer{capacity: capacity, delay: delay}
}

// Push appends a snapshot; the oldest drops past capacity. Samples are
// expected in server-time order.
func (b *StateBuffer) Push(state map[string]any, serverTime time.Time) {
	b.samples = append(b.samples, Sample{State: state, ServerTime: serverTime})
	if len(b.samples) > b.capacity {
		b.samples = b.samples[len(b.samples)-b.capacity:]
	}
}

// Len returns the number of buffered samples.
func (b *StateBuffer) Len() int {
	return len(b.samples)
}

// Sample returns the state to render for wall-clock time now, which
// maps to sample time now-delay. With fewer than two samples the
// single sample (or nothing) comes back; past the newest sample the
// newest is returned as-is.
func (b *StateBuffer) Sample(now time.Time) (map[string]any, bool) {
	if len(b.samples) == 0 {
		return nil, false
	}
	renderTime := now.Add(-b.delay)

	newest := b.samples[len(b.samples)-1]
	if len(b.samples) == 1 || !renderTime.Before(newest.ServerTime) {
		return newest.State, true
	}
	oldest := b.samples[0]
	if !renderTime.After(oldest.ServerTime) {
		return oldest.State, true
	}

	for i := len(b.samples) - 1; i > 0; i-- {
		after := b.samples[i]
		before := b.samples[i-1]
		if renderTime.Before(before.ServerTime) {
			continue
		}
		span := after.ServerTime.Sub(before.ServerTime)
		if span <= 0 {
			return after.State, true
		}
		t := float64(renderTime.Sub(before.ServerTime)) / float64(span)
		return InterpolateState(before.State, after.State, t), true
	}
	return newest.State, true
}

// InterpolateState blends two decoded snapshots field by field: numeric
// fields lerp, angular fields take the shorter signed path across the
// ±π wrap, nested maps recurse, anything else snaps to the later
// sample. Fields present only in the later sample pass through.
func InterpolateState(a, b map[string]any, t float64) map[string]any {
	out := make(map[string]any, len(b))
	for key, bv := range b {
		av, ok := a[key]
		if !ok {
			out[key] = bv
			continue
		}
		out[key] = interpolateValue(key, av, bv, t)
	}
	return out
}

func interpolateValue(key string, av, bv any, t float64) any {
	switch bval := bv.(type) {
	case float64:
		aval, ok := toFloat(av)
		if !ok {
			return bv
		}
		if isAngularField(key) {
			return LerpAngle(aval, bval, t)
		}
		return aval + (bval-aval)*t
	case map[string]any:
		amap, ok := av.(map[string]any)
		if !ok {
			return bv
		}
		return InterpolateState(amap, bval, t)
	default:
		return bv
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// isAngularField decides by name which numeric fields are angles.
func isAngularField(key string) bool {
	switch strings.ToLower(key) {
	case "heading", "rotation", "yaw", "pitch", "roll", "angle":
		return true
	default:
		return false
	}
}

// LerpAngle interpolates along the shorter signed path across the ±π
// wrap and normalizes the result back into (-π, π].
func LerpAngle(a, b, t float64) float64 {
	diff := normalizeAngle(b - a)
	return normalizeAngle(a + diff*t)
}

func normalizeAngle(angle float64) float64 {
	for angle > math.Pi {
		angle -= 2 * math.Pi
	}
	for angle <= -math.Pi {
		angle += 2 * math.Pi
	}
	return angle
}
