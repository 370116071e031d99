package main

import (
	"time"

	"go.uber.org/zap"
)

// command is a network request applied on the tick loop, in arrival order.
type command interface {
	apply(g *Game, now time.Time)
}

type joinCmd struct {
	id       string
	settings Settings
	avatar   AvatarKind
	out      Broadcaster
	binary   bool
	done     func(error)
}

func (c joinCmd) apply(g *Game, now time.Time) {
	// done(nil) is called by addParticipant before the welcome is sent.
	if err := g.addParticipant(c, now); err != nil {
		g.log.Warn("join rejected", zap.String("id", c.id), zap.Error(err))
		if c.done != nil {
			c.done(err)
		}
	}
}

type leaveCmd struct{ id string }

func (c leaveCmd) apply(g *Game, now time.Time) {
	g.removeParticipant(c.id, now)
}

type fightJoinCmd struct{ id string }

func (c fightJoinCmd) apply(g *Game, now time.Time) {
	g.handleFightJoin(c.id, now)
}

type fightActionCmd struct {
	id     string
	facing Orientation
}

func (c fightActionCmd) apply(g *Game, now time.Time) {
	g.fire(c.id, c.facing, now)
}

type restartCmd struct{ id string }

func (c restartCmd) apply(g *Game, now time.Time) {
	if _, ok := g.registry.Get(c.id); !ok {
		return
	}
	if g.restart(now) {
		g.log.Info("session restarted by participant", zap.String("id", c.id))
	}
}

type restartPositionCmd struct{ id string }

func (c restartPositionCmd) apply(g *Game, now time.Time) {
	p, ok := g.registry.Get(c.id)
	if !ok {
		return
	}
	if p.IsFighter && g.fight.Phase == FightActive {
		return
	}
	g.place(p, g.randomSpawn())
}

type kickCmd struct{ id string }

func (c kickCmd) apply(g *Game, now time.Time) {
	pr, ok := g.peers[c.id]
	if !ok {
		return
	}
	pr.out.SendJSON(Envelope{T: MsgKicked})
	if d, ok := pr.out.(disconnecter); ok {
		d.Disconnect()
	}
	g.log.Info("participant kicked", zap.String("id", c.id))
	g.removeParticipant(c.id, now)
}
