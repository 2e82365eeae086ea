package server

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"
)

const (
	hordeWorldSize = 1000.0

	hordeMoveSpeed = 140.0
	// hordeMaxStep rejects client transforms implying teleportation:
	// anything beyond twice the plausible per-tick travel is dropped.
	hordeMaxStepFactor = 2.0

	hordeMaxHealth = 100.0
	hordeMaxMeter  = 100.0

	hungerDrainPerSecond      = 100.0 / 240.0
	thirstDrainPerSecond      = 100.0 / 180.0
	starvationDamagePerSecond = 4.0

	enemyDetectionRadius      = 220.0
	enemyAttackRange          = 160.0
	enemyMeleeRange           = 28.0
	enemySpeed                = 70.0
	enemyMaxHealth            = 40.0
	enemyShotDamage           = 10.0
	enemyMeleeDamagePerSecond = 15.0
	enemyShotCooldown         = 1200 * time.Millisecond
	enemyShotJitter           = 600 * time.Millisecond
	enemyPatrolRadius         = 60.0
	enemyPatrolAngularSpeed   = 0.8 // radians per second
	enemySpawnOffset          = 260.0

	hordeSpawnInterval = 5 * time.Second
	hordePopulationCap = 24
	hordeKillPoints    = 10
)

type enemyMode string

const (
	enemyPatrol enemyMode = "patrol"
	enemyChase  enemyMode = "chase"
)

// HordePlayer mixes authority models: the transform is client-reported
// (bounded), the survival meters are server-simulated.
type HordePlayer struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Color   string  `json:"color"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
	Health  float64 `json:"health"`
	Hunger  float64 `json:"hunger"`
	Thirst  float64 `json:"thirst"`
	Score   int     `json:"score"`
	Alive   bool    `json:"alive"`
	LastSeq uint64  `json:"lastSeq"`
}

// HordeEnemy is a fully server-simulated two-state agent.
type HordeEnemy struct {
	ID     string    `json:"id"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Health float64   `json:"health"`
	Mode   enemyMode `json:"mode"`

	spawnX      float64
	spawnY      float64
	patrolAngle float64
	nextShotAt  time.Time
	target      string
}

type HordeSnapshot struct {
	Tick      uint64        `json:"tick"`
	Players   []HordePlayer `json:"players"`
	Enemies   []HordeEnemy  `json:"enemies"`
	Timestamp int64         `json:"timestamp"`
}

type hordeInput struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

type combatAction struct {
	TargetID string   `json:"targetId"`
	Targets  []string `json:"targets,omitempty"`
	Damage   float64  `json:"damage"`
}

type survivalHorde struct {
	s         *Session
	players   map[string]*HordePlayer
	order     []string
	enemies   []*HordeEnemy
	rng       *rand.Rand
	nextEnemy uint64
	nextSpawn time.Time
	startedAt time.Time
}

func newSurvivalHorde(s *Session) *survivalHorde {
	return &survivalHorde{
		s:       s,
		players: make(map[string]*HordePlayer),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (h *survivalHorde) onStart() {
	roster := h.s.room.rosterLocked()
	for i, p := range roster {
		angle := 2 * math.Pi * float64(i) / float64(len(roster))
		h.players[p.ID] = &HordePlayer{
			ID:     p.ID,
			Name:   p.Name,
			Color:  p.Color,
			X:      hordeWorldSize/2 + math.Cos(angle)*80,
			Y:      hordeWorldSize/2 + math.Sin(angle)*80,
			Health: hordeMaxHealth,
			Hunger: hordeMaxMeter,
			Thirst: hordeMaxMeter,
			Alive:  true,
		}
		h.order = append(h.order, p.ID)
	}
	h.startedAt = time.Now()
	h.nextSpawn = h.startedAt.Add(hordeSpawnInterval)
}

func (h *survivalHorde) onTick(dt float64) {
	now := time.Now()

	for _, id := range h.order {
		p := h.players[id]
		if p == nil || !p.Alive {
			continue
		}
		h.drainMeters(p, dt)
	}

	for _, enemy := range h.enemies {
		h.stepEnemy(enemy, now, dt)
	}

	h.maybeSpawn(now)

	if !h.anyAlive() {
		h.endSession(now)
		return
	}
	h.s.broadcastLocked(MsgGameState, h.snapshot())
}

// drainMeters runs the server-owned survival simulation: hunger and
// thirst fall continuously and bite once they hit zero.
func (h *survivalHorde) drainMeters(p *HordePlayer, dt float64) {
	p.Hunger = math.Max(0, p.Hunger-hungerDrainPerSecond*dt)
	p.Thirst = math.Max(0, p.Thirst-thirstDrainPerSecond*dt)
	if p.Hunger <= 0 {
		h.damagePlayer(p, starvationDamagePerSecond*dt, "starvation")
	}
	if p.Thirst <= 0 {
		h.damagePlayer(p, starvationDamagePerSecond*dt, "dehydration")
	}
}

func (h *survivalHorde) damagePlayer(p *HordePlayer, amount float64, cause string) {
	if !p.Alive || amount <= 0 {
		return
	}
	p.Health -= amount
	if p.Health > 0 {
		return
	}
	p.Health = 0
	p.Alive = false
	h.s.broadcastLocked(MsgGameEvent, GameEventMessage{
		Type:     "death",
		PlayerID: p.ID,
		Reason:   cause,
	})
}

// stepEnemy runs the two-state agent: chase the nearest living player
// inside the detection radius, otherwise patrol a circle around the
// spawn point on a monotonically advancing angle.
func (h *survivalHorde) stepEnemy(enemy *HordeEnemy, now time.Time, dt float64) {
	target, dist := h.nearestLiving(enemy.X, enemy.Y)
	if target == nil || dist > enemyDetectionRadius {
		enemy.Mode = enemyPatrol
		enemy.target = ""
		enemy.patrolAngle += enemyPatrolAngularSpeed * dt
		enemy.X = enemy.spawnX + math.Cos(enemy.patrolAngle)*enemyPatrolRadius
		enemy.Y = enemy.spawnY + math.Sin(enemy.patrolAngle)*enemyPatrolRadius
		return
	}

	enemy.Mode = enemyChase
	enemy.target = target.ID

	if dist > enemyMeleeRange {
		dirX := (target.X - enemy.X) / dist
		dirY := (target.Y - enemy.Y) / dist
		enemy.X += dirX * enemySpeed * dt
		enemy.Y += dirY * enemySpeed * dt
	}

	switch {
	case dist <= enemyMeleeRange:
		h.damagePlayer(target, enemyMeleeDamagePerSecond*dt, "mauled")
	case dist <= enemyAttackRange:
		if now.Before(enemy.nextShotAt) {
			return
		}
		h.damagePlayer(target, enemyShotDamage, "shot")
		h.s.broadcastLocked(MsgGameEvent, GameEventMessage{
			Type:     "enemyShot",
			EnemyID:  enemy.ID,
			PlayerID: target.ID,
		})
		jitter := time.Duration(h.rng.Int63n(int64(enemyShotJitter)))
		enemy.nextShotAt = now.Add(enemyShotCooldown + jitter)
	}
}

func (h *survivalHorde) nearestLiving(x, y float64) (*HordePlayer, float64) {
	var best *HordePlayer
	bestDist := math.MaxFloat64
	for _, id := range h.order {
		p := h.players[id]
		if p == nil || !p.Alive {
			continue
		}
		d := math.Hypot(p.X-x, p.Y-y)
		if d < bestDist {
			bestDist = d
			best = p
		}
	}
	return best, bestDist
}

// maybeSpawn adds an agent near a random living player on a fixed
// interval, up to the population cap.
func (h *survivalHorde) maybeSpawn(now time.Time) {
	if now.Before(h.nextSpawn) || len(h.enemies) >= hordePopulationCap {
		return
	}
	h.nextSpawn = now.Add(hordeSpawnInterval)

	living := make([]*HordePlayer, 0, len(h.players))
	for _, id := range h.order {
		if p := h.players[id]; p != nil && p.Alive {
			living = append(living, p)
		}
	}
	if len(living) == 0 {
		return
	}
	anchor := living[h.rng.Intn(len(living))]
	angle := h.rng.Float64() * 2 * math.Pi

	h.nextEnemy++
	enemy := &HordeEnemy{
		ID:     fmt.Sprintf("enemy-%d", h.nextEnemy),
		X:      anchor.X + math.Cos(angle)*enemySpawnOffset,
		Y:      anchor.Y + math.Sin(angle)*enemySpawnOffset,
		Health: enemyMaxHealth,
		Mode:   enemyPatrol,
	}
	enemy.spawnX = enemy.X
	enemy.spawnY = enemy.Y
	h.enemies = append(h.enemies, enemy)
}

// onInput applies the client-reported transform unless it implies
// teleportation, in which case it is ignored outright.
func (h *survivalHorde) onInput(playerID string, msg InputMessage) {
	p := h.players[playerID]
	if p == nil || !p.Alive {
		return
	}
	var in hordeInput
	if err := json.Unmarshal(msg.Input, &in); err != nil {
		return
	}

	maxStep := hordeMoveSpeed * hordeMaxStepFactor / float64(survivalHordeTickRate)
	if math.Hypot(in.X-p.X, in.Y-p.Y) > maxStep {
		h.s.telemetry.RecordInputDropped()
		return
	}
	p.X = in.X
	p.Y = in.Y
	p.Heading = in.Heading
	if msg.Seq > p.LastSeq {
		p.LastSeq = msg.Seq
	}
}

// onAction applies client-reported combat. Damage values are trusted
// as reported; enemy removal and scoring stay server-side.
func (h *survivalHorde) onAction(playerID string, actionType string, data json.RawMessage) {
	p := h.players[playerID]
	if p == nil || !p.Alive {
		return
	}
	switch actionType {
	case "shoot", "hit":
		var act combatAction
		if err := json.Unmarshal(data, &act); err != nil {
			return
		}
		h.damageEnemy(p, act.TargetID, act.Damage)
	case "grenade":
		var act combatAction
		if err := json.Unmarshal(data, &act); err != nil {
			return
		}
		targets := act.Targets
		if len(targets) == 0 && act.TargetID != "" {
			targets = []string{act.TargetID}
		}
		for _, id := range targets {
			h.damageEnemy(p, id, act.Damage)
		}
	}
}

func (h *survivalHorde) damageEnemy(attacker *HordePlayer, enemyID string, damage float64) {
	if damage <= 0 {
		return
	}
	for i, enemy := range h.enemies {
		if enemy.ID != enemyID {
			continue
		}
		enemy.Health -= damage
		if enemy.Health > 0 {
			return
		}
		h.enemies = append(h.enemies[:i], h.enemies[i+1:]...)
		attacker.Score += hordeKillPoints
		h.s.broadcastLocked(MsgGameEvent, GameEventMessage{
			Type:     "enemyKilled",
			EnemyID:  enemyID,
			PlayerID: attacker.ID,
			Points:   attacker.Score,
		})
		return
	}
}

func (h *survivalHorde) anyAlive() bool {
	for _, p := range h.players {
		if p.Alive {
			return true
		}
	}
	return false
}

func (h *survivalHorde) endSession(now time.Time) {
	scores := make(map[string]int, len(h.players))
	for id, p := range h.players {
		scores[id] = p.Score
	}
	h.s.endGameLocked(GameEndMessage{
		Survived: now.Sub(h.startedAt).Seconds(),
		Scores:   scores,
	})
}

func (h *survivalHorde) onPlayerDisconnect(playerID string) {
	// Meters keep draining; the horde does not pause for anyone.
}

// onPlayerLeave kills the departed survivor so the end condition can
// still resolve for whoever stays.
func (h *survivalHorde) onPlayerLeave(playerID string) {
	p := h.players[playerID]
	if p == nil {
		return
	}
	if p.Alive {
		p.Alive = false
		p.Health = 0
		h.s.broadcastLocked(MsgGameEvent, GameEventMessage{
			Type:     "death",
			PlayerID: playerID,
			Reason:   "left",
		})
	}
	if !h.anyAlive() {
		h.endSession(time.Now())
	}
}

func (h *survivalHorde) onPlayerReconnect(p *RoomPlayer) {
	h.s.sendToPlayerLocked(p.ID, MsgGameState, h.snapshot())
}

func (h *survivalHorde) onStop() {}

func (h *survivalHorde) snapshot() HordeSnapshot {
	players := make([]HordePlayer, 0, len(h.players))
	for _, id := range h.order {
		if p := h.players[id]; p != nil {
			players = append(players, *p)
		}
	}
	enemies := make([]HordeEnemy, 0, len(h.enemies))
	for _, enemy := range h.enemies {
		enemies = append(enemies, *enemy)
	}
	return HordeSnapshot{
		Tick:      h.s.tick,
		Players:   players,
		Enemies:   enemies,
		Timestamp: time.Now().UnixMilli(),
	}
}
