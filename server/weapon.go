package main

import (
	"fmt"
	"time"
)

const (
	ArrowSize   = 6.0 // px, square hit box
	ArrowOffset = 4.0 // spawn distance past the owner's body edge
)

// WeaponSlot is one arrow a participant can have in flight
type WeaponSlot struct {
	Index       int
	OwnerID     string
	X, Y        float64 // hit box top-left
	Orientation Orientation
	Active      bool
	ExpiresAt   time.Time
	Generation  uint64 // bumped on every fire, lets stale expiries be ignored

	expiry TaskID
}

// Box returns the arrow's hit box
func (s *WeaponSlot) Box() Rect {
	return Rect{X: s.X, Y: s.Y, W: ArrowSize, H: ArrowSize}
}

// WeaponPool is a fixed set of slots owned by one participant
type WeaponPool struct {
	owner string
	slots []*WeaponSlot
}

func NewWeaponPool(owner string, size int) *WeaponPool {
	p := &WeaponPool{owner: owner, slots: make([]*WeaponSlot, size)}
	for i := range p.slots {
		p.slots[i] = &WeaponSlot{Index: i, OwnerID: owner}
	}
	return p
}

// Fire checks out the lowest free slot. It returns ErrPoolExhausted when
// every slot is in flight.
func (p *WeaponPool) Fire(x, y float64, facing Orientation, now time.Time, lifetime time.Duration) (*WeaponSlot, error) {
	for _, s := range p.slots {
		if s.Active {
			continue
		}
		s.Active = true
		s.Generation++
		s.X, s.Y = x, y
		s.Orientation = facing
		s.ExpiresAt = now.Add(lifetime)
		s.expiry = 0
		return s, nil
	}
	return nil, fmt.Errorf("pool %s (%d slots): %w", p.owner, len(p.slots), ErrPoolExhausted)
}

// Release returns the slot to the pool if it is still on generation gen.
func (p *WeaponPool) Release(s *WeaponSlot, gen uint64) bool {
	if s == nil || !s.Active || s.Generation != gen {
		return false
	}
	s.Active = false
	s.expiry = 0
	return true
}

// Active returns the slots in flight, lowest index first
func (p *WeaponPool) Active() []*WeaponSlot {
	var out []*WeaponSlot
	for _, s := range p.slots {
		if s.Active {
			out = append(out, s)
		}
	}
	return out
}

// Free returns the number of slots available to fire
func (p *WeaponPool) Free() int {
	n := 0
	for _, s := range p.slots {
		if !s.Active {
			n++
		}
	}
	return n
}

// Armory holds one pool per participant, iterated in the order pools
// were opened.
type Armory struct {
	size  int
	order []string
	pools map[string]*WeaponPool
}

func NewArmory(size int) *Armory {
	return &Armory{size: size, pools: make(map[string]*WeaponPool)}
}

func (a *Armory) Open(owner string) *WeaponPool {
	if p, ok := a.pools[owner]; ok {
		return p
	}
	p := NewWeaponPool(owner, a.size)
	a.pools[owner] = p
	a.order = append(a.order, owner)
	return p
}

// Close drops the owner's pool and returns the slots that were in flight.
func (a *Armory) Close(owner string) []*WeaponSlot {
	p, ok := a.pools[owner]
	if !ok {
		return nil
	}
	inFlight := p.Active()
	delete(a.pools, owner)
	for i, id := range a.order {
		if id == owner {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return inFlight
}

func (a *Armory) Pool(owner string) (*WeaponPool, bool) {
	p, ok := a.pools[owner]
	return p, ok
}

// Fire checks a slot out of the owner's pool.
func (a *Armory) Fire(owner string, x, y float64, facing Orientation, now time.Time, lifetime time.Duration) (*WeaponSlot, error) {
	p, ok := a.pools[owner]
	if !ok {
		return nil, fmt.Errorf("weapon pool %s: %w", owner, ErrNotFound)
	}
	return p.Fire(x, y, facing, now, lifetime)
}

// Active returns every slot in flight, by pool order then slot index.
func (a *Armory) Active() []*WeaponSlot {
	var out []*WeaponSlot
	for _, id := range a.order {
		out = append(out, a.pools[id].Active()...)
	}
	return out
}
