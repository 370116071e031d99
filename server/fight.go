package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FightPhase is the lifecycle of the shared fight mini-game
type FightPhase int

const (
	FightIdle       FightPhase = 0
	FightRecruiting FightPhase = 1 // waiting room open, countdown armed
	FightActive     FightPhase = 2
	FightResolved   FightPhase = 3 // winner announced, restart pending
)

var fightPhaseNames = [...]string{"idle", "recruiting", "active", "resolved"}

func (p FightPhase) String() string {
	if p < 0 || int(p) >= len(fightPhaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return fightPhaseNames[p]
}

// FightSession is the process-wide fight state. Only the Game transition
// handlers below write it.
type FightSession struct {
	Phase     FightPhase
	ID        string // journal key, fresh per waiting room
	WinnerID  string
	StartedAt time.Time

	fighters  []string
	countdown TaskID
	restart   TaskID
}

func (s *FightSession) Has(id string) bool {
	for _, f := range s.fighters {
		if f == id {
			return true
		}
	}
	return false
}

func (s *FightSession) Count() int {
	return len(s.fighters)
}

// Fighters returns the fighter ids in join order
func (s *FightSession) Fighters() []string {
	out := make([]string, len(s.fighters))
	copy(out, s.fighters)
	return out
}

func (s *FightSession) add(id string) bool {
	if s.Has(id) {
		return false
	}
	s.fighters = append(s.fighters, id)
	return true
}

func (s *FightSession) remove(id string) bool {
	for i, f := range s.fighters {
		if f == id {
			s.fighters = append(s.fighters[:i], s.fighters[i+1:]...)
			return true
		}
	}
	return false
}

func (g *Game) handleFightJoin(id string, now time.Time) {
	p, ok := g.registry.Get(id)
	if !ok {
		return
	}
	switch g.fight.Phase {
	case FightIdle:
		g.fight.Phase = FightRecruiting
		g.fight.ID = uuid.NewString()
		g.fight.WinnerID = ""
		g.fight.countdown = g.sched.After(now, g.cfg.Combat.CountdownDelay, g.onCountdownExpired)
		g.broadcastMsg(Envelope{T: MsgFightWaitingRoom})
		g.journal.Track(g.fight.ID, EvtWaitingRoom, id, "")
		g.log.Info("fight waiting room opened", zap.String("by", id))
	case FightRecruiting:
	default:
		g.log.Debug("fight join ignored", zap.String("id", id), zap.Stringer("phase", g.fight.Phase))
		return
	}
	if !g.fight.add(id) {
		return
	}
	p.IsFighter = true
	g.journal.Track(g.fight.ID, EvtFighterJoined, id, "")

	// Everyone present volunteered: no reason to wait out the countdown.
	if g.fight.Count() >= 2 && g.fight.Count() == g.registry.Len() {
		g.sched.Cancel(g.fight.countdown)
		g.onCountdownExpired(now)
	}
}

func (g *Game) onCountdownExpired(now time.Time) {
	if g.fight.Phase != FightRecruiting {
		return
	}
	g.fight.countdown = 0
	if g.fight.Count() < 2 {
		g.log.Info("fight aborted: not enough fighters", zap.Int("fighters", g.fight.Count()))
		g.restart(now)
		return
	}

	g.fight.Phase = FightActive
	g.fight.StartedAt = now
	for i, id := range g.fight.fighters {
		p, ok := g.registry.Get(id)
		if !ok {
			continue
		}
		p.Revive()
		g.place(p, g.spawns.Fight[i%len(g.spawns.Fight)])
	}
	fighters := g.fight.Fighters()
	g.broadcastMsg(Envelope{T: MsgFightStart, Data: FightStartMsg{Fighters: fighters}})
	g.journal.Track(g.fight.ID, EvtFightStart, "", fmt.Sprintf(`{"fighters":%d}`, len(fighters)))
	g.log.Info("fight started", zap.Strings("fighters", fighters))
}

// resolveHit applies one arrow hit from owner on target and reports whether
// it counted. Self hits, non-fighters, dead targets and hits outside an
// active fight are ignored.
func (g *Game) resolveHit(ownerID, targetID string, touching Touching, now time.Time) bool {
	if g.fight.Phase != FightActive || ownerID == targetID {
		return false
	}
	target, ok := g.registry.Get(targetID)
	if !ok || !g.fight.Has(targetID) || !target.Alive() {
		return false
	}

	dmg := g.cfg.Combat.DamageStep
	if target.TakeHit(dmg) {
		g.broadcastMsg(Envelope{T: MsgDead, Data: IDMsg{ID: targetID}})
		g.journal.Track(g.fight.ID, EvtDead, targetID, fmt.Sprintf(`{"by":%q}`, ownerID))
	} else {
		g.broadcastMsg(Envelope{T: MsgHurt, Data: HurtMsg{
			ID:          targetID,
			Health:      target.Health,
			Damage:      dmg,
			Orientation: contactSide(touching),
		}})
		g.journal.Track(g.fight.ID, EvtHit, targetID, fmt.Sprintf(`{"by":%q,"health":%d}`, ownerID, target.Health))
	}
	g.checkWinCondition(now)
	return true
}

// checkWinCondition resolves the fight when exactly one fighter is alive.
func (g *Game) checkWinCondition(now time.Time) {
	if g.fight.Phase != FightActive {
		return
	}
	var alive []string
	for _, id := range g.fight.fighters {
		if p, ok := g.registry.Get(id); ok && p.Alive() {
			alive = append(alive, id)
		}
	}
	switch len(alive) {
	case 0:
		g.restart(now)
	case 1:
		g.fight.Phase = FightResolved
		g.fight.WinnerID = alive[0]
		g.fight.restart = g.sched.After(now, g.cfg.Combat.RestartDelay, g.onRestartDue)
		g.broadcastMsg(Envelope{T: MsgEndFight, Data: EndFightMsg{WinnerID: alive[0]}})
		g.journal.Track(g.fight.ID, EvtEndFight, alive[0], fmt.Sprintf(`{"duration":%.1f}`, now.Sub(g.fight.StartedAt).Seconds()))
		g.log.Info("fight resolved", zap.String("winner", alive[0]))
	}
}

func (g *Game) onRestartDue(now time.Time) {
	if g.fight.Phase != FightResolved {
		return
	}
	g.fight.restart = 0
	g.restart(now)
}

// dropFighter handles a fighter leaving the session.
func (g *Game) dropFighter(id string, now time.Time) {
	if !g.fight.remove(id) {
		return
	}
	switch {
	case g.fight.Count() == 0:
		g.restart(now)
	case g.fight.Phase == FightActive:
		g.checkWinCondition(now)
	case g.fight.Phase == FightResolved && id == g.fight.WinnerID:
		g.restart(now)
	}
}

// restart returns the session to idle: every participant is revived and
// moved to a default spawn. It reports false, and sends nothing, when the
// session is already idle.
func (g *Game) restart(now time.Time) bool {
	if g.fight.Phase == FightIdle {
		return false
	}
	g.sched.Cancel(g.fight.countdown)
	g.sched.Cancel(g.fight.restart)
	fightID := g.fight.ID
	g.fight = FightSession{}

	for _, s := range g.armory.Active() {
		g.releaseArrow(s)
	}
	for _, p := range g.registry.All() {
		p.IsFighter = false
		p.Revive()
		g.place(p, g.randomSpawn())
	}
	g.broadcastMsg(Envelope{T: MsgRestart})
	g.journal.Track(fightID, EvtRestart, "", "")
	return true
}
