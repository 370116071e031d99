package main

import (
	"errors"
	"testing"
)

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()
	p, err := r.Add("a", Point{X: 10, Y: 20}, Settings{Username: "alice"}, AvatarGenericLPC, 100)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if p.X != 10 || p.Y != 20 {
		t.Errorf("expected spawn (10,20), got (%v,%v)", p.X, p.Y)
	}
	if p.Health != 100 || p.Orientation != FacingDown {
		t.Errorf("unexpected initial state: health=%d orientation=%s", p.Health, p.Orientation)
	}
	if got, ok := r.Get("a"); !ok || got != p {
		t.Error("get should return the added participant")
	}

	r.Remove("a")
	if _, ok := r.Get("a"); ok {
		t.Error("participant should be gone")
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistryDuplicateID(t *testing.T) {
	r := NewRegistry()
	r.Add("a", Point{}, Settings{}, AvatarFauna, 100)
	_, err := r.Add("a", Point{}, Settings{}, AvatarFauna, 100)
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("duplicate add should not change the registry, len=%d", r.Len())
	}
}

func TestRegistryRemoveUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Add("a", Point{}, Settings{}, AvatarFauna, 100)
	r.Remove("nobody")
	if r.Len() != 1 {
		t.Error("removing an unknown id should not change the registry")
	}
}

func TestRegistryInsertionOrder(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "d", "b"} {
		r.Add(id, Point{}, Settings{}, AvatarFauna, 100)
	}
	r.Remove("d")
	r.Add("e", Point{}, Settings{}, AvatarFauna, 100)

	want := []string{"c", "a", "b", "e"}
	all := r.All()
	if len(all) != len(want) {
		t.Fatalf("expected %d participants, got %d", len(want), len(all))
	}
	for i, p := range all {
		if p.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], p.ID)
		}
	}
}
