package main

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Orientation is the facing direction on the wire
type Orientation string

const (
	FacingUp    Orientation = "up"
	FacingDown  Orientation = "down"
	FacingLeft  Orientation = "left"
	FacingRight Orientation = "right"
)

func (o Orientation) Valid() bool {
	switch o {
	case FacingUp, FacingDown, FacingLeft, FacingRight:
		return true
	}
	return false
}

// Unit returns the unit step for the facing direction.
func (o Orientation) Unit() (float64, float64) {
	switch o {
	case FacingUp:
		return 0, -1
	case FacingDown:
		return 0, 1
	case FacingLeft:
		return -1, 0
	default:
		return 1, 0
	}
}

// Point is a world position in px
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// MovementIntent is one input sample from a peer
type MovementIntent struct {
	Left  bool `json:"left"`
	Right bool `json:"right"`
	Up    bool `json:"up"`
	Down  bool `json:"down"`
}

// Validate rejects intents pressing both directions on one axis.
func (m MovementIntent) Validate() error {
	if m.Left && m.Right {
		return fmt.Errorf("%w: left and right both set", ErrValidation)
	}
	if m.Up && m.Down {
		return fmt.Errorf("%w: up and down both set", ErrValidation)
	}
	return nil
}

// Step resolves the intent to a single-axis displacement. Precedence is
// left, right, up, down; moving reports false for an empty intent.
func (m MovementIntent) Step(dist float64) (dx, dy float64, facing Orientation, moving bool) {
	switch {
	case m.Left:
		return -dist, 0, FacingLeft, true
	case m.Right:
		return dist, 0, FacingRight, true
	case m.Up:
		return 0, -dist, FacingUp, true
	case m.Down:
		return 0, dist, FacingDown, true
	}
	return 0, 0, "", false
}

// Settings are the peer-owned session preferences
type Settings struct {
	Username               string `json:"username"`
	Avatar                 string `json:"avatar"`
	IsVoter                bool   `json:"isVoter"`
	HidePlayersWhileVoting bool   `json:"hidePlayersWhileVoting"`
}

// Normalize trims the username and checks every field. It returns the
// resolved avatar kind.
func (s *Settings) Normalize(maxUsernameLen int) (AvatarKind, error) {
	s.Username = strings.TrimSpace(s.Username)
	if s.Username == "" {
		return 0, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if utf8.RuneCountInString(s.Username) > maxUsernameLen {
		return 0, fmt.Errorf("%w: username longer than %d", ErrValidation, maxUsernameLen)
	}
	return ParseAvatar(s.Avatar)
}

// Participant is the authoritative state of one connected peer
type Participant struct {
	ID          string
	X, Y        float64
	Orientation Orientation
	Health      int
	MaxHealth   int
	Settings    Settings
	Avatar      AvatarKind
	Zone        string // zone id, set only by the zone tracker callbacks
	ZoneValue   string
	IsFighter   bool
}

// NewParticipant creates a participant at spawn with full health
func NewParticipant(id string, spawn Point, settings Settings, avatar AvatarKind, fullHealth int) *Participant {
	return &Participant{
		ID:          id,
		X:           spawn.X,
		Y:           spawn.Y,
		Orientation: FacingDown,
		Health:      fullHealth,
		MaxHealth:   fullHealth,
		Settings:    settings,
		Avatar:      avatar,
	}
}

// TakeHit applies dmg and returns true if it was lethal. Health clamps at 0.
func (p *Participant) TakeHit(dmg int) bool {
	if p.Health <= 0 {
		return false
	}
	p.Health -= dmg
	if p.Health <= 0 {
		p.Health = 0
		return true
	}
	return false
}

func (p *Participant) Alive() bool {
	return p.Health > 0
}

// Revive restores full health
func (p *Participant) Revive() {
	p.Health = p.MaxHealth
}

// Body returns the collision box size for the participant's avatar
func (p *Participant) Body() (float64, float64) {
	def := GetAvatarDef(p.Avatar)
	return def.BodyW, def.BodyH
}

// ToState converts to protocol state
func (p *Participant) ToState() ParticipantState {
	return ParticipantState{
		ID:                     p.ID,
		X:                      round1(p.X),
		Y:                      round1(p.Y),
		Orientation:            p.Orientation,
		Health:                 p.Health,
		Username:               p.Settings.Username,
		Avatar:                 p.Settings.Avatar,
		IsVoter:                p.Settings.IsVoter,
		HidePlayersWhileVoting: p.Settings.HidePlayersWhileVoting,
		Zone:                   p.ZoneValue,
		IsFighter:              p.IsFighter,
	}
}

// ToDelta returns the visible subset compared between ticks
func (p *Participant) ToDelta() DeltaEntry {
	return DeltaEntry{
		X:           round1(p.X),
		Y:           round1(p.Y),
		Orientation: p.Orientation,
		Zone:        p.ZoneValue,
	}
}
