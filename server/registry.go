package main

import "fmt"

// Registry holds the live participants in join order.
type Registry struct {
	order []string
	byID  map[string]*Participant
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Participant)}
}

// Add creates a participant at spawn. It fails with ErrDuplicateID when id
// is already registered.
func (r *Registry) Add(id string, spawn Point, settings Settings, avatar AvatarKind, fullHealth int) (*Participant, error) {
	if _, ok := r.byID[id]; ok {
		return nil, fmt.Errorf("participant %s: %w", id, ErrDuplicateID)
	}
	p := NewParticipant(id, spawn, settings, avatar, fullHealth)
	r.byID[id] = p
	r.order = append(r.order, id)
	return p, nil
}

// Remove drops id. Unknown ids are ignored.
func (r *Registry) Remove(id string) {
	if _, ok := r.byID[id]; !ok {
		return
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) Get(id string) (*Participant, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// All returns the participants in insertion order.
func (r *Registry) All() []*Participant {
	out := make([]*Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns the participant ids in insertion order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int {
	return len(r.order)
}
