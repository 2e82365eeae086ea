package server

import (
	"fmt"
	"math/rand"
	"strings"
)

const (
	roomCodeLength = 6
	// 32 symbols; 0/O and 1/I/L are excluded because players read codes
	// off someone else's screen.
	roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	roomCodeMaxAttempts = 1000
)

// GenerateRoomCode draws a fresh code that does not collide with any
// key in active. With a 32^6 space against the configured room cap a
// collision streak long enough to exhaust the attempt budget is not
// expected; if it happens anyway the one creation attempt fails.
func GenerateRoomCode(rng *rand.Rand, active map[string]*Room) (string, error) {
	buf := make([]byte, roomCodeLength)
	for attempt := 0; attempt < roomCodeMaxAttempts; attempt++ {
		for i := range buf {
			buf[i] = roomCodeAlphabet[rng.Intn(len(roomCodeAlphabet))]
		}
		code := string(buf)
		if _, taken := active[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrCodeSpaceExhausted, roomCodeMaxAttempts)
}

// NormalizeRoomCode makes lookups case-insensitive.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
