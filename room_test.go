package server

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(id string) *conn {
	return &conn{id: id, logger: zerolog.Nop()}
}

func newTestRoom(game GameType) *Room {
	return NewRoom("TESTRM", game, zerolog.Nop())
}

// offlineRoster seats n players and detaches their nil sockets so that
// broadcasts are no-ops during unit tests.
func offlineRoster(t *testing.T, room *Room, n int) []*RoomPlayer {
	t.Helper()
	players := make([]*RoomPlayer, 0, n)
	for i := 0; i < n; i++ {
		p := room.AddPlayer(newTestConn(playerID(i)), playerName(i))
		require.NotNil(t, p)
		players = append(players, p)
	}
	room.mu.Lock()
	for _, p := range room.players {
		p.conn = nil
	}
	room.mu.Unlock()
	return players
}

func playerID(i int) string   { return []string{"p1", "p2", "p3", "p4", "p5"}[i] }
func playerName(i int) string { return []string{"ann", "bob", "cat", "dee", "eve"}[i] }

func TestRoomRosterCap(t *testing.T) {
	room := newTestRoom(GameGridChase)
	offlineRoster(t, room, maxRoomPlayers)

	before := room.Info()
	fifth := room.AddPlayer(newTestConn("p5"), "eve")
	assert.Nil(t, fifth)
	assert.Equal(t, before, room.Info(), "rejected join must leave the room unchanged")
	assert.Len(t, room.Info().Players, maxRoomPlayers)
}

func TestRoomRejectsJoinPastWaiting(t *testing.T) {
	room := newTestRoom(GameGridChase)
	offlineRoster(t, room, 2)
	room.mu.Lock()
	room.state = RoomCountdown
	room.mu.Unlock()

	assert.Nil(t, room.AddPlayer(newTestConn("p3"), "cat"))
}

func TestRoomPaletteDistinct(t *testing.T) {
	room := newTestRoom(GameGridChase)
	players := offlineRoster(t, room, maxRoomPlayers)

	seen := make(map[string]bool)
	for _, p := range players {
		assert.False(t, seen[p.Color], "color %s assigned twice", p.Color)
		seen[p.Color] = true
	}
}

func TestRoomPaletteReusesFreedColor(t *testing.T) {
	room := newTestRoom(GameGridChase)
	players := offlineRoster(t, room, 3)
	freed := players[1].Color

	room.RemovePlayer(players[1].ID)
	p4 := room.AddPlayer(newTestConn("p4"), "dee")
	require.NotNil(t, p4)
	assert.Equal(t, freed, p4.Color)
}

func TestHostMigrationEarliestSurvivor(t *testing.T) {
	room := newTestRoom(GameGridChase)
	players := offlineRoster(t, room, 3)
	require.Equal(t, players[0].ID, room.HostID())

	room.RemovePlayer(players[0].ID)
	assert.Equal(t, players[1].ID, room.HostID())
}

func TestHostMigrationSkipsRemovedMiddle(t *testing.T) {
	room := newTestRoom(GameGridChase)
	players := offlineRoster(t, room, 3)

	room.RemovePlayer(players[1].ID)
	room.RemovePlayer(players[0].ID)
	assert.Equal(t, players[2].ID, room.HostID())
}

func TestAllReady(t *testing.T) {
	room := newTestRoom(GameGridChase)
	players := offlineRoster(t, room, 1)

	room.SetReady(players[0].ID, true)
	assert.False(t, room.AllReady(), "one player is never enough")

	p2 := room.AddPlayer(newTestConn("p2"), "bob")
	require.NotNil(t, p2)
	room.mu.Lock()
	p2.conn = nil
	room.mu.Unlock()
	assert.False(t, room.AllReady())

	room.SetReady(p2.ID, true)
	assert.True(t, room.AllReady())

	room.SetReady(players[0].ID, false)
	assert.False(t, room.AllReady())
}

func TestDisconnectThenReconnectWithinGrace(t *testing.T) {
	room := newTestRoom(GameSurvivalHorde)
	players := offlineRoster(t, room, 2)

	p := room.DisconnectPlayer(players[0].ID)
	require.NotNil(t, p)
	assert.False(t, p.Connected)
	assert.False(t, p.DisconnectedAt.IsZero())

	fresh := newTestConn("fresh-conn")
	got, err := room.ReconnectPlayer(players[0].ID, fresh)
	require.NoError(t, err)
	assert.True(t, got.Connected)
	assert.True(t, got.DisconnectedAt.IsZero())
	assert.Same(t, players[0], got, "reconnect must reuse the existing record")
}

func TestReconnectAfterGraceFails(t *testing.T) {
	room := newTestRoom(GameSurvivalHorde)
	players := offlineRoster(t, room, 2)

	room.DisconnectPlayer(players[0].ID)
	room.mu.Lock()
	players[0].DisconnectedAt = time.Now().Add(-reconnectGrace - time.Second)
	room.mu.Unlock()

	_, err := room.ReconnectPlayer(players[0].ID, newTestConn("fresh-conn"))
	assert.ErrorIs(t, err, ErrGraceExpired)
}

func TestReconnectUnknownPlayer(t *testing.T) {
	room := newTestRoom(GameSurvivalHorde)
	offlineRoster(t, room, 2)

	_, err := room.ReconnectPlayer("nobody", newTestConn("fresh-conn"))
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestIsIdle(t *testing.T) {
	room := newTestRoom(GameGridChase)
	players := offlineRoster(t, room, 2)

	assert.False(t, room.IsIdle(time.Minute))

	room.mu.Lock()
	room.touched = time.Now().Add(-2 * time.Minute)
	room.mu.Unlock()
	assert.True(t, room.IsIdle(time.Minute))

	// Any readiness mutation resets the clock.
	room.SetReady(players[0].ID, true)
	assert.False(t, room.IsIdle(time.Minute))
}
