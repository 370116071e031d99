package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Broadcaster interface for sending messages to clients
type Broadcaster interface {
	SendJSON(msg interface{})
}

// rawSender takes pre-marshaled JSON so a broadcast is encoded once.
type rawSender interface {
	SendRaw(data []byte)
}

// binarySender takes msgpack frames.
type binarySender interface {
	SendBinary(data []byte)
}

// disconnecter closes the peer's transport after flushing queued messages.
type disconnecter interface {
	Disconnect()
}

// World is the arena as the game consumes it: a collider plus its static
// zones and spawn points.
type World interface {
	Collider
	Zones() []Zone
	Spawns() Spawns
}

type peer struct {
	out    Broadcaster
	binary bool
}

// Game owns the session: participants, inputs, zones, the fight and the
// weapon pools. Everything except the input queue and the command queue is
// mutated only from Step, under mu.
type Game struct {
	mu     sync.RWMutex
	cfg    *Config
	log    *zap.Logger
	arena  Collider
	spawns Spawns

	registry *Registry
	inputs   *InputQueue
	zones    *ZoneTracker
	fight    FightSession
	armory   *Armory
	sched    *Scheduler
	journal  *Journal

	peers    map[string]peer
	lastSent map[string]DeltaEntry

	cmdMu   sync.Mutex
	pending []command

	tick     uint64
	syncTask TaskID
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once

	// onSettingsChanged runs synchronously after a settings update is stored.
	onSettingsChanged func(id string, s Settings)
}

// NewGame creates a Game over world. journal may be nil.
func NewGame(cfg *Config, world World, journal *Journal, logger *zap.Logger) *Game {
	g := &Game{
		cfg:      cfg,
		log:      logger,
		arena:    world,
		spawns:   world.Spawns(),
		registry: NewRegistry(),
		inputs:   NewInputQueue(),
		zones:    NewZoneTracker(),
		armory:   NewArmory(cfg.Combat.WeaponPoolSize),
		sched:    NewScheduler(),
		journal:  journal,
		peers:    make(map[string]peer),
		lastSent: make(map[string]DeltaEntry),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	g.zones.Declare(world.Zones()...)
	g.zones.OnEnter(g.onZoneEnter)
	g.zones.OnLeave(g.onZoneLeave)
	g.onSettingsChanged = g.relaySettings
	return g
}

// Run starts the game loop. It returns when ctx is done or Stop is called.
func (g *Game) Run(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.Game.TickDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.Step(g.now())
		case <-ctx.Done():
			return
		case <-g.stop:
			return
		}
	}
}

// Stop terminates the game loop
func (g *Game) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// Step runs one tick at now.
func (g *Game) Step(now time.Time) {
	cmds := g.drainCommands()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.tick++
	if g.syncTask == 0 {
		g.syncTask = g.sched.Every(now, g.cfg.Game.SyncInterval, g.syncParticipants)
	}
	for _, cmd := range cmds {
		cmd.apply(g, now)
	}
	g.sched.RunDue(now)
	g.moveParticipants()
	g.advanceArrows(now)
	g.broadcastDelta()
}

// --- network-facing API; safe to call from any goroutine ---

// Join validates settings and queues the participant for registration on
// the next tick. done, if set, is called from the tick loop with the result.
func (g *Game) Join(id string, s Settings, out Broadcaster, binary bool, done func(error)) error {
	avatar, err := s.Normalize(g.cfg.Game.MaxUsernameLen)
	if err != nil {
		return err
	}
	g.enqueue(joinCmd{id: id, settings: s, avatar: avatar, out: out, binary: binary, done: done})
	return nil
}

// Leave queues removal of the participant.
func (g *Game) Leave(id string) {
	g.enqueue(leaveCmd{id: id})
}

// EnqueueInput queues a movement intent for the participant.
func (g *Game) EnqueueInput(id string, intent MovementIntent) error {
	if err := intent.Validate(); err != nil {
		return err
	}
	return g.inputs.Enqueue(id, intent)
}

func (g *Game) FightJoin(id string) { g.enqueue(fightJoinCmd{id: id}) }

func (g *Game) FightAction(id string, facing Orientation) {
	g.enqueue(fightActionCmd{id: id, facing: facing})
}

func (g *Game) Restart(id string)         { g.enqueue(restartCmd{id: id}) }
func (g *Game) RestartPosition(id string) { g.enqueue(restartPositionCmd{id: id}) }
func (g *Game) KickOut(id string)         { g.enqueue(kickCmd{id: id}) }

// UpdateSettings stores new settings for the participant and runs the
// settings-changed hook with s exactly as received. The stored copy is
// normalized.
func (g *Game) UpdateSettings(id string, s Settings) error {
	stored := s
	avatar, err := stored.Normalize(g.cfg.Game.MaxUsernameLen)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.registry.Get(id)
	if !ok {
		return fmt.Errorf("participant %s: %w", id, ErrNotFound)
	}
	p.Settings = stored
	p.Avatar = avatar
	if g.onSettingsChanged != nil {
		g.onSettingsChanged(id, s)
	}
	return nil
}

// ParticipantCount returns the number of registered participants
func (g *Game) ParticipantCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.registry.Len()
}

// ParticipantSummary is one row of the session snapshot
type ParticipantSummary struct {
	ParticipantState
	Queued     int `json:"queued"`
	ArrowsFree int `json:"arrowsFree"`
}

// SessionSnapshot is the read-only view served on /api/session
type SessionSnapshot struct {
	Tick         uint64               `json:"tick"`
	Phase        string               `json:"phase"`
	Fighters     []string             `json:"fighters"`
	WinnerID     string               `json:"winnerId,omitempty"`
	Participants []ParticipantSummary `json:"participants"`
}

func (g *Game) Snapshot() SessionSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := SessionSnapshot{
		Tick:         g.tick,
		Phase:        g.fight.Phase.String(),
		Fighters:     g.fight.Fighters(),
		WinnerID:     g.fight.WinnerID,
		Participants: make([]ParticipantSummary, 0, g.registry.Len()),
	}
	for _, p := range g.registry.All() {
		row := ParticipantSummary{ParticipantState: p.ToState(), Queued: g.inputs.Len(p.ID)}
		if pool, ok := g.armory.Pool(p.ID); ok {
			row.ArrowsFree = pool.Free()
		}
		snap.Participants = append(snap.Participants, row)
	}
	return snap
}

// --- tick internals; mu held ---

func (g *Game) enqueue(cmd command) {
	g.cmdMu.Lock()
	g.pending = append(g.pending, cmd)
	g.cmdMu.Unlock()
}

func (g *Game) drainCommands() []command {
	g.cmdMu.Lock()
	defer g.cmdMu.Unlock()
	cmds := g.pending
	g.pending = nil
	return cmds
}

func (g *Game) addParticipant(c joinCmd, now time.Time) error {
	p, err := g.registry.Add(c.id, g.randomSpawn(), c.settings, c.avatar, g.cfg.Combat.FullHealth)
	if err != nil {
		return err
	}
	g.inputs.Open(p.ID)
	g.armory.Open(p.ID)
	g.place(p, Point{X: p.X, Y: p.Y})
	g.peers[p.ID] = peer{out: c.out, binary: c.binary}
	g.lastSent[p.ID] = p.ToDelta()
	if c.done != nil {
		c.done(nil)
	}

	c.out.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{ID: p.ID, TickRate: g.cfg.Game.TickRate}})
	c.out.SendJSON(Envelope{T: MsgInitialState, Data: g.fullState()})
	g.broadcastOthers(p.ID, Envelope{T: MsgNewParticipant, Data: p.ToState()})
	if g.fight.Phase == FightActive {
		c.out.SendJSON(Envelope{T: MsgFightStart, Data: FightStartMsg{Fighters: g.fight.Fighters()}})
	}
	g.log.Info("participant joined",
		zap.String("id", p.ID),
		zap.String("username", p.Settings.Username),
		zap.Stringer("avatar", p.Avatar),
		zap.Int("participants", g.registry.Len()))
	return nil
}

func (g *Game) removeParticipant(id string, now time.Time) {
	if _, ok := g.registry.Get(id); !ok {
		g.log.Debug("remove: unknown participant", zap.String("id", id))
		return
	}
	g.zones.Forget(id)
	for _, s := range g.armory.Close(id) {
		g.sched.Cancel(s.expiry)
	}
	g.inputs.Close(id)
	g.arena.Remove(id)
	g.registry.Remove(id)
	delete(g.peers, id)
	delete(g.lastSent, id)

	g.broadcastMsg(Envelope{T: MsgParticipantLeft, Data: IDMsg{ID: id}})
	g.log.Info("participant left", zap.String("id", id), zap.Int("participants", g.registry.Len()))
	g.dropFighter(id, now)
}

func (g *Game) fire(id string, facing Orientation, now time.Time) {
	p, ok := g.registry.Get(id)
	if !ok {
		return
	}
	if !p.Alive() {
		g.log.Debug("fire ignored: participant is dead", zap.String("id", id))
		return
	}
	if facing.Valid() {
		p.Orientation = facing
	}
	w, h := p.Body()
	ux, uy := p.Orientation.Unit()
	x := p.X + w/2 + ux*(w/2+ArrowOffset) - ArrowSize/2
	y := p.Y + h/2 + uy*(h/2+ArrowOffset) - ArrowSize/2

	slot, err := g.armory.Fire(id, x, y, p.Orientation, now, g.cfg.Combat.ArrowLifetime)
	if err != nil {
		if errors.Is(err, ErrPoolExhausted) {
			g.log.Debug("fire dropped", zap.String("id", id), zap.Error(err))
		}
		return
	}
	gen := slot.Generation
	slot.expiry = g.sched.After(now, g.cfg.Combat.ArrowLifetime, func(time.Time) {
		g.expireArrow(slot, gen)
	})
	g.broadcastOthers(id, Envelope{T: MsgFightAction, Data: FightActionMsg{
		ID:          id,
		X:           round1(p.X),
		Y:           round1(p.Y),
		Orientation: p.Orientation,
	}})
}

// expireArrow is the scheduled auto-release. It is a no-op when the owner
// has left or the slot has since been released and refired.
func (g *Game) expireArrow(slot *WeaponSlot, gen uint64) {
	pool, ok := g.armory.Pool(slot.OwnerID)
	if !ok {
		return
	}
	pool.Release(slot, gen)
}

func (g *Game) releaseArrow(slot *WeaponSlot) {
	pool, ok := g.armory.Pool(slot.OwnerID)
	if !ok {
		return
	}
	task := slot.expiry
	if pool.Release(slot, slot.Generation) {
		g.sched.Cancel(task)
	}
}

func (g *Game) moveParticipants() {
	dist := g.cfg.Game.MoveSpeed * g.cfg.Game.TickDuration().Seconds()
	for _, p := range g.registry.All() {
		if intent, ok := g.inputs.DequeueOne(p.ID); ok && p.Alive() {
			if dx, dy, facing, moving := intent.Step(dist); moving {
				pos := g.arena.Move(p.ID, dx, dy)
				p.X, p.Y = pos.X, pos.Y
				p.Orientation = facing
			}
		}
		g.zones.Evaluate(p.ID, g.arena.ZonesAt(p.ID))
	}
}

func (g *Game) advanceArrows(now time.Time) {
	dist := g.cfg.Combat.ArrowSpeed * g.cfg.Game.TickDuration().Seconds()
	for _, s := range g.armory.Active() {
		if !s.Active {
			continue
		}
		ux, uy := s.Orientation.Unit()
		dx, dy := ux*dist, uy*dist
		res := g.arena.Sweep(s.Box(), dx, dy)
		s.X += dx
		s.Y += dy

		hit := false
		for _, c := range res.Hits {
			if c.ID == s.OwnerID {
				continue
			}
			if g.resolveHit(s.OwnerID, c.ID, c.Touching, now) {
				hit = true
				break
			}
		}
		if hit || res.Blocked {
			g.releaseArrow(s)
		}
	}
}

func (g *Game) onZoneEnter(id string, z *Zone) {
	if p, ok := g.registry.Get(id); ok {
		p.Zone = z.ID
		p.ZoneValue = z.Value
	}
}

func (g *Game) onZoneLeave(id string, z *Zone) {
	if p, ok := g.registry.Get(id); ok && p.Zone == z.ID {
		p.Zone = ""
		p.ZoneValue = ""
	}
}

func (g *Game) relaySettings(id string, s Settings) {
	g.broadcastOthers(id, Envelope{T: MsgSettings, Data: SettingsMsg{ID: id, Settings: s}})
}

func (g *Game) syncParticipants(time.Time) {
	if g.registry.Len() == 0 {
		return
	}
	g.broadcastMsg(Envelope{T: MsgParticipantsSync, Data: g.registry.IDs()})
}

func (g *Game) place(p *Participant, at Point) {
	w, h := p.Body()
	pos := g.arena.Place(p.ID, at, w, h)
	p.X, p.Y = pos.X, pos.Y
}

func (g *Game) randomSpawn() Point {
	if len(g.spawns.Default) == 0 {
		return Point{}
	}
	return g.spawns.Default[rand.IntN(len(g.spawns.Default))]
}

func (g *Game) fullState() map[string]ParticipantState {
	out := make(map[string]ParticipantState, g.registry.Len())
	for _, p := range g.registry.All() {
		out[p.ID] = p.ToState()
	}
	return out
}

// broadcastDelta sends the participants whose position, orientation or zone
// changed since they were last sent. Nothing is sent when none changed.
func (g *Game) broadcastDelta() {
	changed := make(map[string]DeltaEntry)
	for _, p := range g.registry.All() {
		d := p.ToDelta()
		if prev, ok := g.lastSent[p.ID]; ok && prev == d {
			continue
		}
		changed[p.ID] = d
		g.lastSent[p.ID] = d
	}
	if len(changed) == 0 {
		return
	}

	text, err := json.Marshal(Envelope{T: MsgStateDelta, Data: changed})
	if err != nil {
		g.log.Error("marshal state delta", zap.Error(err))
		return
	}
	var bin []byte
	for _, pr := range g.peers {
		if bs, ok := pr.out.(binarySender); ok && pr.binary {
			if bin == nil {
				bin, err = msgpack.Marshal(DeltaFrame{Tick: g.tick, Changed: changed})
				if err != nil {
					g.log.Error("msgpack state delta", zap.Error(err))
					return
				}
			}
			bs.SendBinary(bin)
			continue
		}
		if rs, ok := pr.out.(rawSender); ok {
			rs.SendRaw(text)
			continue
		}
		pr.out.SendJSON(Envelope{T: MsgStateDelta, Data: changed})
	}
}

// broadcastMsg sends a message to every participant
func (g *Game) broadcastMsg(msg Envelope) {
	for _, pr := range g.peers {
		pr.out.SendJSON(msg)
	}
}

// broadcastOthers sends a message to every participant except id
func (g *Game) broadcastOthers(id string, msg Envelope) {
	for pid, pr := range g.peers {
		if pid != id {
			pr.out.SendJSON(msg)
		}
	}
}
