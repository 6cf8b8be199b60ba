package game

import (
	"encoding/json"
	"time"
)

// Client commands.
const (
	CmdCreateRoom         = "createRoom"
	CmdJoinRoom           = "joinRoom"
	CmdRegisterController = "registerController"
	CmdBindController     = "bindController"
	CmdUnbindController   = "unbindController"
	CmdUpdateSettings     = "updateSettings"
	CmdSetPlayerMode      = "setPlayerMode"
	CmdSetPlayerTeam      = "setPlayerTeam"
	CmdKickPlayer         = "kickPlayer"
	CmdControllerInput    = "controllerInput"
	CmdStartMatch         = "startMatch"
	CmdStopMatch          = "stopMatch"
)

// Server events.
const (
	EvtHandshake            = "handshake"
	EvtRoomCreated          = "roomCreated"
	EvtJoinedRoom           = "joinedRoom"
	EvtControllerRegistered = "controllerRegistered"
	EvtControllerBound      = "controllerBound"
	EvtRoomState            = "roomState"
	EvtPlayerMotion         = "playerMotion"
	EvtKicked               = "kicked"
	EvtError                = "error"
)

// Envelope is the wire frame in both directions. Inbound payloads stay raw
// until the command type is known; sentAt is client time and never trusted.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	SentAt  int64           `json:"sentAt"`
}

type outboundEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	SentAt  int64  `json:"sentAt"`
}

// MarshalEvent wraps an event payload in an envelope stamped with server time.
func MarshalEvent(eventType string, payload any) ([]byte, error) {
	return json.Marshal(outboundEnvelope{
		Type:    eventType,
		Payload: payload,
		SentAt:  time.Now().UnixMilli(),
	})
}

// Command payloads. Optional numeric fields are pointers so an absent field
// falls back to a default instead of clamping zero.

type CreateRoomPayload struct {
	Name         string `json:"name"`
	Visibility   string `json:"visibility"`
	TargetScore  *int   `json:"targetScore"`
	MatchMinutes *int   `json:"matchMinutes"`
}

type JoinRoomPayload struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Spectator bool   `json:"spectator"`
	Team      string `json:"team"`
}

type RegisterControllerPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type BindControllerPayload struct {
	ControllerID string `json:"controllerId"`
	PlayerID     string `json:"playerId"`
}

type UnbindControllerPayload struct {
	ControllerID string `json:"controllerId"`
}

type UpdateSettingsPayload struct {
	TargetScore  *int   `json:"targetScore"`
	MatchMinutes *int   `json:"matchMinutes"`
	Visibility   string `json:"visibility"`
}

type SetPlayerModePayload struct {
	PlayerID string `json:"playerId"`
	Mode     string `json:"mode"`
}

type SetPlayerTeamPayload struct {
	PlayerID string `json:"playerId"`
	Team     string `json:"team"`
}

type KickPlayerPayload struct {
	PlayerID string `json:"playerId"`
}

type ControllerInputPayload struct {
	ControllerID string          `json:"controllerId"`
	Data         json.RawMessage `json:"data"`
}

// Event payloads.

type HandshakeEvent struct {
	ClientID string `json:"clientId"`
}

type RoomCreatedEvent struct {
	Room     RoomSnapshot `json:"room"`
	PlayerID string       `json:"playerId"`
}

type JoinedRoomEvent struct {
	Room     RoomSnapshot `json:"room"`
	PlayerID string       `json:"playerId"`
}

type ControllerRegisteredEvent struct {
	ControllerID string       `json:"controllerId"`
	Room         RoomSnapshot `json:"room"`
}

type ControllerBoundEvent struct {
	ControllerID string `json:"controllerId"`
	PlayerID     string `json:"playerId"`
}

type PlayerMotionEvent struct {
	PlayerID     string          `json:"playerId"`
	ControllerID string          `json:"controllerId"`
	Data         json.RawMessage `json:"data"`
}

type KickedEvent struct{}

type ErrorEvent struct {
	Message string `json:"message"`
}

// RoomSnapshot is the full serialized room state pushed to every display on
// each committed mutation. Clients re-render from it wholesale.
type RoomSnapshot struct {
	Code         string               `json:"code"`
	CreatedAt    int64                `json:"createdAt"`
	Settings     SettingsSnapshot     `json:"settings"`
	HostPlayerID string               `json:"hostPlayerId"`
	Players      []PlayerSnapshot     `json:"players"`
	Controllers  []ControllerSnapshot `json:"controllers"`
	Match        MatchSnapshot        `json:"match"`
}

type SettingsSnapshot struct {
	TargetScore  int    `json:"targetScore"`
	MatchMinutes int    `json:"matchMinutes"`
	Visibility   string `json:"visibility"`
}

type PlayerSnapshot struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Team          string   `json:"team"`
	Mode          string   `json:"mode"`
	IsHost        bool     `json:"isHost"`
	Connected     bool     `json:"connected"`
	ControllerIDs []string `json:"controllerIds"`
}

type ControllerSnapshot struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	BoundPlayerID *string `json:"boundPlayerId"`
	LastSeen      int64   `json:"lastSeen"`
}

type MatchSnapshot struct {
	Status          string         `json:"status"`
	Scores          ScoresSnapshot `json:"scores"`
	StartedAt       *int64         `json:"startedAt"`
	DurationSeconds int            `json:"durationSeconds"`
}

type ScoresSnapshot struct {
	A int `json:"A"`
	B int `json:"B"`
}

// RoomListing is the public lobby view served over HTTP.
type RoomListing struct {
	Code        string `json:"code"`
	CreatedAt   int64  `json:"createdAt"`
	PlayerCount int    `json:"playerCount"`
	MatchStatus string `json:"matchStatus"`
}
