package main

import (
	"encoding/json"
	"fmt"
)

// Client -> Server message types
const (
	MsgJoin            = "join"
	MsgInput           = "input"
	MsgSettings        = "settings"
	MsgFightJoin       = "fight-join"
	MsgFightAction     = "fight-action"
	MsgRestart         = "restart"
	MsgRestartPosition = "restart-position"
	MsgAdminLogin      = "admin-login"
	MsgKickOut         = "kick-out"
)

// Server -> Client message types
const (
	MsgWelcome          = "welcome"
	MsgInitialState     = "initial-state"
	MsgNewParticipant   = "new-participant"
	MsgParticipantLeft  = "participant-left"
	MsgStateDelta       = "state-delta"
	MsgFightWaitingRoom = "fight-waiting-room"
	MsgFightStart       = "fight-start"
	MsgHurt             = "hurt"
	MsgDead             = "dead"
	MsgEndFight         = "end-fight"
	MsgParticipantsSync = "participants-sync"
	MsgAdminOK          = "admin-ok"
	MsgKicked           = "kicked"
	MsgServerError      = "server-error"
)

// binaryInputTag prefixes the compact 2-byte input frame [tag, flags]
const binaryInputTag = 0x01

const (
	flagLeft  = 1 << 0
	flagRight = 1 << 1
	flagUp    = 1 << 2
	flagDown  = 1 << 3
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; D stays raw until the type is known
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// JoinMsg carries the peer's initial settings
type JoinMsg struct {
	Settings
	Binary bool `json:"binary,omitempty"` // receive state-delta as msgpack frames
}

// SettingsMsg is a settings update; ID is filled in on relay
type SettingsMsg struct {
	ID string `json:"id,omitempty"`
	Settings
}

// FightActionMsg is a fired arrow
type FightActionMsg struct {
	ID          string      `json:"id,omitempty"`
	X           float64     `json:"x"`
	Y           float64     `json:"y"`
	Orientation Orientation `json:"orientation"`
}

// ParticipantState is the full per-participant snapshot
type ParticipantState struct {
	ID                     string      `json:"id"`
	X                      float64     `json:"x"`
	Y                      float64     `json:"y"`
	Orientation            Orientation `json:"orientation"`
	Health                 int         `json:"health"`
	Username               string      `json:"username"`
	Avatar                 string      `json:"avatar"`
	IsVoter                bool        `json:"isVoter"`
	HidePlayersWhileVoting bool        `json:"hidePlayersWhileVoting"`
	Zone                   string      `json:"zone,omitempty"`
	IsFighter              bool        `json:"isFighter,omitempty"`
}

// DeltaEntry is the changed subset of one participant's visible state
type DeltaEntry struct {
	X           float64     `json:"x" msgpack:"x"`
	Y           float64     `json:"y" msgpack:"y"`
	Orientation Orientation `json:"orientation" msgpack:"o"`
	Zone        string      `json:"zone,omitempty" msgpack:"z,omitempty"`
}

// DeltaFrame is the msgpack form of a state-delta for binary peers
type DeltaFrame struct {
	Tick    uint64                `msgpack:"tick"`
	Changed map[string]DeltaEntry `msgpack:"c"`
}

// WelcomeMsg is sent to a participant once it is registered
type WelcomeMsg struct {
	ID       string `json:"id"`
	TickRate int    `json:"tickRate"`
}

// IDMsg carries a single participant id
type IDMsg struct {
	ID string `json:"id"`
}

// FightStartMsg lists the fighters of the active session
type FightStartMsg struct {
	Fighters []string `json:"fighters"`
}

// HurtMsg reports a non-lethal hit
type HurtMsg struct {
	ID          string      `json:"id"`
	Health      int         `json:"health"`
	Damage      int         `json:"damage"`
	Orientation Orientation `json:"orientation"`
}

// EndFightMsg names the last fighter standing
type EndFightMsg struct {
	WinnerID string `json:"winnerId"`
}

// AdminLoginMsg requests an admin token
type AdminLoginMsg struct {
	Password string `json:"password"`
}

// AdminOKMsg returns the admin token
type AdminOKMsg struct {
	Token string `json:"token"`
}

// KickOutMsg asks the server to disconnect a participant
type KickOutMsg struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// ErrorMsg is sent on protocol or validation failures
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// decodePayload unmarshals an envelope payload, wrapping failures as
// validation errors.
func decodePayload[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, fmt.Errorf("%w: missing payload", ErrValidation)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return v, nil
}

// decodeBinaryInput decodes [0x01, flags].
func decodeBinaryInput(msg []byte) (MovementIntent, bool) {
	if len(msg) != 2 || msg[0] != binaryInputTag {
		return MovementIntent{}, false
	}
	f := msg[1]
	return MovementIntent{
		Left:  f&flagLeft != 0,
		Right: f&flagRight != 0,
		Up:    f&flagUp != 0,
		Down:  f&flagDown != 0,
	}, true
}

// encodeBinaryInput is the inverse of decodeBinaryInput.
func encodeBinaryInput(m MovementIntent) []byte {
	var f byte
	if m.Left {
		f |= flagLeft
	}
	if m.Right {
		f |= flagRight
	}
	if m.Up {
		f |= flagUp
	}
	if m.Down {
		f |= flagDown
	}
	return []byte{binaryInputTag, f}
}
