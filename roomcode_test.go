package server

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRoomCodeShape(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		code, err := GenerateRoomCode(rng, nil)
		require.NoError(t, err)
		assert.Len(t, code, roomCodeLength)
		for _, r := range code {
			assert.Contains(t, roomCodeAlphabet, string(r))
		}
	}
}

func TestGenerateRoomCodeExcludesAmbiguousGlyphs(t *testing.T) {
	assert.Len(t, roomCodeAlphabet, 32)
	for _, bad := range "0O1IL" {
		assert.NotContains(t, roomCodeAlphabet, string(bad))
	}
}

func TestGenerateRoomCodeAvoidsActiveSet(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	active := make(map[string]*Room)
	for i := 0; i < 500; i++ {
		code, err := GenerateRoomCode(rng, active)
		require.NoError(t, err)
		_, taken := active[code]
		require.False(t, taken, "code %s returned twice", code)
		active[code] = &Room{}
	}
}

func TestNormalizeRoomCode(t *testing.T) {
	assert.Equal(t, "ABC234", NormalizeRoomCode(" abc234 "))
	assert.Equal(t, strings.ToUpper("qwerty"), NormalizeRoomCode("qwerty"))
}
