package game

import "github.com/google/uuid"

type Role string

const (
	RoleNone       Role = "none"
	RoleDisplay    Role = "display"
	RoleController Role = "controller"
)

// Conn is the transport-facing side of a connection. Write is fire-and-forget
// from the core's point of view; Close tears the socket down with a reason
// visible to the peer.
type Conn interface {
	Write(data []byte) error
	Close(reason string)
}

// Session is the per-connection state the dispatcher works from. It replaces
// any ad hoc attachment of fields onto the socket: the transport only ever
// hands the hub a clientID-keyed session. Fields besides ClientID and conn
// are mutated exclusively by the session's own read loop via the hub.
type Session struct {
	ClientID     string
	conn         Conn
	Role         Role
	RoomCode     string
	PlayerID     string
	ControllerID string
}

func newSession(conn Conn) *Session {
	return &Session{
		ClientID: uuid.NewString(),
		conn:     conn,
		Role:     RoleNone,
	}
}
