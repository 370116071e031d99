package main

import "fmt"

// AvatarKind identifies the character a participant plays as
type AvatarKind int

const (
	AvatarFauna      AvatarKind = 0
	AvatarGenericLPC AvatarKind = 1
)

// AvatarDef holds the per-kind body and display data
type AvatarDef struct {
	Tag         string
	DisplayName string
	BodyW       float64 // collision body, px
	BodyH       float64
}

var Avatars = [2]AvatarDef{
	// Fauna: small animal sprites
	{Tag: "fauna", DisplayName: "Fauna", BodyW: 20, BodyH: 16},
	// Generic LPC: humanoid archer
	{Tag: "generic-lpc", DisplayName: "Adventurer", BodyW: 20, BodyH: 28},
}

// ParseAvatar resolves a wire tag to its kind.
func ParseAvatar(tag string) (AvatarKind, error) {
	for i, def := range Avatars {
		if def.Tag == tag {
			return AvatarKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown avatar %q", ErrValidation, tag)
}

// GetAvatarDef returns the definition for an avatar kind
func GetAvatarDef(kind AvatarKind) AvatarDef {
	if kind < 0 || int(kind) >= len(Avatars) {
		return Avatars[AvatarGenericLPC]
	}
	return Avatars[kind]
}

func (k AvatarKind) String() string {
	return GetAvatarDef(k).Tag
}
