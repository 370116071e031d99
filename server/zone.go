package main

// Zone is a named region of the arena carrying a value label (the vote
// option the region stands for). Lower Priority wins when a participant
// overlaps several zones; ties fall back to declaration order.
type Zone struct {
	ID       string  `yaml:"id"`
	Value    string  `yaml:"value"`
	Priority int     `yaml:"priority"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	W        float64 `yaml:"w"`
	H        float64 `yaml:"h"`

	order int
}

// ZoneFunc receives zone membership edges
type ZoneFunc func(participantID string, z *Zone)

// ZoneTracker records which zone each participant is in and fires the enter
// and leave callbacks once per transition.
type ZoneTracker struct {
	zones   map[string]*Zone
	current map[string]*Zone
	onEnter []ZoneFunc
	onLeave []ZoneFunc
}

func NewZoneTracker() *ZoneTracker {
	return &ZoneTracker{
		zones:   make(map[string]*Zone),
		current: make(map[string]*Zone),
	}
}

// Declare registers zones in declaration order. Redeclaring an id replaces
// the zone but keeps its first position.
func (t *ZoneTracker) Declare(zones ...Zone) {
	for _, z := range zones {
		if prev, ok := t.zones[z.ID]; ok {
			z.order = prev.order
		} else {
			z.order = len(t.zones)
		}
		t.zones[z.ID] = &z
	}
}

func (t *ZoneTracker) OnEnter(fn ZoneFunc) { t.onEnter = append(t.onEnter, fn) }
func (t *ZoneTracker) OnLeave(fn ZoneFunc) { t.onLeave = append(t.onLeave, fn) }

// Evaluate updates the participant's zone from the ids it currently overlaps.
// Unknown ids are ignored.
func (t *ZoneTracker) Evaluate(participantID string, inside []string) {
	next := t.pick(inside)
	prev := t.current[participantID]
	if prev == next {
		return
	}
	if prev != nil {
		delete(t.current, participantID)
		for _, fn := range t.onLeave {
			fn(participantID, prev)
		}
	}
	if next != nil {
		t.current[participantID] = next
		for _, fn := range t.onEnter {
			fn(participantID, next)
		}
	}
}

// Current returns the participant's zone, or nil.
func (t *ZoneTracker) Current(participantID string) *Zone {
	return t.current[participantID]
}

// Forget drops the participant, firing leave if it was inside a zone.
func (t *ZoneTracker) Forget(participantID string) {
	t.Evaluate(participantID, nil)
}

func (t *ZoneTracker) pick(inside []string) *Zone {
	var best *Zone
	for _, id := range inside {
		z, ok := t.zones[id]
		if !ok {
			continue
		}
		if best == nil || z.Priority < best.Priority ||
			(z.Priority == best.Priority && z.order < best.order) {
			best = z
		}
	}
	return best
}
