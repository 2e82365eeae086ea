package server

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHordeFixture(t *testing.T, players int) (*survivalHorde, []*RoomPlayer) {
	t.Helper()
	room := newTestRoom(GameSurvivalHorde)
	roster := offlineRoster(t, room, players)
	s := newSession(room, NewTelemetry(), zerolog.Nop())
	h, ok := s.game.(*survivalHorde)
	require.True(t, ok)
	h.onStart()
	return h, roster
}

func hordeInputMsg(t *testing.T, seq uint64, in hordeInput) InputMessage {
	t.Helper()
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	return InputMessage{Seq: seq, Input: raw}
}

func spawnEnemyAt(h *survivalHorde, x, y float64) *HordeEnemy {
	h.nextEnemy++
	enemy := &HordeEnemy{
		ID:     "enemy-test",
		X:      x,
		Y:      y,
		Health: enemyMaxHealth,
		Mode:   enemyPatrol,
		spawnX: x,
		spawnY: y,
	}
	h.enemies = append(h.enemies, enemy)
	return enemy
}

func TestHordeMovementWithinBoundAccepted(t *testing.T) {
	h, roster := newHordeFixture(t, 2)
	p := h.players[roster[0].ID]

	step := hordeMoveSpeed / float64(survivalHordeTickRate)
	h.onInput(roster[0].ID, hordeInputMsg(t, 3, hordeInput{X: p.X + step, Y: p.Y, Heading: 1.2}))

	assert.InDelta(t, 1.2, p.Heading, 1e-9)
	assert.Equal(t, uint64(3), p.LastSeq)
}

func TestHordeTeleportRejected(t *testing.T) {
	h, roster := newHordeFixture(t, 2)
	p := h.players[roster[0].ID]
	startX, startY := p.X, p.Y

	h.onInput(roster[0].ID, hordeInputMsg(t, 1, hordeInput{X: p.X + 500, Y: p.Y + 500}))

	assert.Equal(t, startX, p.X, "teleport-sized displacement is ignored")
	assert.Equal(t, startY, p.Y)
	assert.Equal(t, uint64(0), p.LastSeq)
}

func TestHordeMetersDrainAndStarve(t *testing.T) {
	h, roster := newHordeFixture(t, 2)
	p := h.players[roster[0].ID]

	h.drainMeters(p, 1.0)
	assert.Less(t, p.Hunger, hordeMaxMeter)
	assert.Less(t, p.Thirst, hordeMaxMeter)
	assert.Equal(t, hordeMaxHealth, p.Health, "no damage while meters are above zero")

	p.Hunger = 0
	p.Thirst = 0
	p.Health = starvationDamagePerSecond // one second from death, two drains apply
	h.drainMeters(p, 1.0)
	assert.False(t, p.Alive)
	assert.Equal(t, 0.0, p.Health)
}

func TestHordeEnemyPatrolsAroundSpawn(t *testing.T) {
	h, _ := newHordeFixture(t, 2)
	// Park the enemy far from everyone.
	enemy := spawnEnemyAt(h, 5000, 5000)
	angleBefore := enemy.patrolAngle

	h.stepEnemy(enemy, time.Now(), 0.5)

	assert.Equal(t, enemyPatrol, enemy.Mode)
	assert.Greater(t, enemy.patrolAngle, angleBefore, "patrol angle advances monotonically")
	dist := math.Hypot(enemy.X-enemy.spawnX, enemy.Y-enemy.spawnY)
	assert.InDelta(t, enemyPatrolRadius, dist, 1e-6)
}

func TestHordeEnemyChasesInsideDetectionRadius(t *testing.T) {
	h, roster := newHordeFixture(t, 2)
	p := h.players[roster[0].ID]
	enemy := spawnEnemyAt(h, p.X+enemyDetectionRadius-10, p.Y)
	distBefore := math.Hypot(enemy.X-p.X, enemy.Y-p.Y)

	h.stepEnemy(enemy, time.Now(), 0.1)

	assert.Equal(t, enemyChase, enemy.Mode)
	assert.Equal(t, p.ID, enemy.target)
	distAfter := math.Hypot(enemy.X-p.X, enemy.Y-p.Y)
	assert.Less(t, distAfter, distBefore, "chasing closes the gap")
}

func TestHordeEnemyShootsInAttackRange(t *testing.T) {
	h, roster := newHordeFixture(t, 2)
	p := h.players[roster[0].ID]
	// Park the other player far away so the nearest target is stable.
	other := h.players[roster[1].ID]
	other.X, other.Y = 5000, 5000

	enemy := spawnEnemyAt(h, p.X+enemyAttackRange-5, p.Y)
	healthBefore := p.Health

	h.stepEnemy(enemy, time.Now(), 0.01)

	assert.Equal(t, healthBefore-enemyShotDamage, p.Health)
	assert.True(t, enemy.nextShotAt.After(time.Now()), "cooldown armed after firing")

	// A second step inside the cooldown stays quiet.
	h.stepEnemy(enemy, time.Now(), 0.01)
	assert.Equal(t, healthBefore-enemyShotDamage, p.Health)
}

func TestHordeEnemyMeleeAtCloseRange(t *testing.T) {
	h, roster := newHordeFixture(t, 2)
	p := h.players[roster[0].ID]
	other := h.players[roster[1].ID]
	other.X, other.Y = 5000, 5000

	enemy := spawnEnemyAt(h, p.X+enemyMeleeRange-1, p.Y)
	healthBefore := p.Health

	h.stepEnemy(enemy, time.Now(), 1.0)

	assert.InDelta(t, healthBefore-enemyMeleeDamagePerSecond, p.Health, 1e-6)
}

func TestHordeSpawnerRespectsCap(t *testing.T) {
	h, _ := newHordeFixture(t, 2)
	h.nextSpawn = time.Now().Add(-time.Second)

	for i := 0; i < hordePopulationCap+10; i++ {
		h.maybeSpawn(time.Now())
		h.nextSpawn = time.Now().Add(-time.Second)
	}
	assert.Len(t, h.enemies, hordePopulationCap)
}

func TestHordeCombatReportTrustedAndScored(t *testing.T) {
	h, roster := newHordeFixture(t, 2)
	enemy := spawnEnemyAt(h, 100, 100)

	data, err := json.Marshal(combatAction{TargetID: enemy.ID, Damage: enemyMaxHealth})
	require.NoError(t, err)
	h.onAction(roster[0].ID, "shoot", data)

	assert.Empty(t, h.enemies, "enemy removal is server-side")
	assert.Equal(t, hordeKillPoints, h.players[roster[0].ID].Score)
}

func TestHordeGrenadeHitsMultipleTargets(t *testing.T) {
	h, roster := newHordeFixture(t, 2)
	e1 := spawnEnemyAt(h, 100, 100)
	e2 := &HordeEnemy{ID: "enemy-test-2", X: 110, Y: 100, Health: enemyMaxHealth, Mode: enemyPatrol, spawnX: 110, spawnY: 100}
	h.enemies = append(h.enemies, e2)

	data, err := json.Marshal(combatAction{Targets: []string{e1.ID, e2.ID}, Damage: enemyMaxHealth})
	require.NoError(t, err)
	h.onAction(roster[0].ID, "grenade", data)

	assert.Empty(t, h.enemies)
	assert.Equal(t, 2*hordeKillPoints, h.players[roster[0].ID].Score)
}

func TestHordeLeaverDiesAndSessionCanEnd(t *testing.T) {
	h, roster := newHordeFixture(t, 2)

	h.onPlayerLeave(roster[0].ID)
	assert.False(t, h.players[roster[0].ID].Alive)
	assert.False(t, h.s.ended, "the other survivor keeps playing")

	h.onPlayerLeave(roster[1].ID)
	assert.True(t, h.s.ended)
}

func TestHordeEndsWhenNoOneLives(t *testing.T) {
	h, roster := newHordeFixture(t, 2)
	for _, p := range roster {
		state := h.players[p.ID]
		state.Health = 0.5
		state.Hunger = 0
		state.Thirst = 0
	}

	// Drain long enough to kill everyone, then tick once more.
	h.onTick(1.0)

	assert.True(t, h.s.ended)
}
