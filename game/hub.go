package game

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Hub owns the session table and drives every command through the same
// discipline: resolve the session's room, take the room lock, authorize,
// mutate, broadcast, release. One command completes against a room before
// the next one starts; unrelated rooms proceed in parallel.
type Hub struct {
	registry *Registry
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewHub(registry *Registry, log zerolog.Logger) *Hub {
	return &Hub{
		registry: registry,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Open registers a fresh session for the connection and pushes the handshake
// carrying its opaque client id.
func (h *Hub) Open(conn Conn) *Session {
	s := newSession(conn)
	h.mu.Lock()
	h.sessions[s.ClientID] = s
	h.mu.Unlock()

	h.send(conn, EvtHandshake, HandshakeEvent{ClientID: s.ClientID})
	h.log.Debug().Str("client", s.ClientID).Msg("session opened")
	return s
}

// HandleClose detaches the session from its room (disconnect recovery, host
// migration, controller removal) and forgets it.
func (h *Hub) HandleClose(s *Session) {
	h.detach(s)
	h.mu.Lock()
	delete(h.sessions, s.ClientID)
	h.mu.Unlock()
	h.log.Debug().Str("client", s.ClientID).Msg("session closed")
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// HandleMessage decodes one inbound envelope and dispatches it. Malformed
// frames are dropped without a reply; only an unrecognized type earns an
// error event.
func (h *Hub) HandleMessage(s *Session, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		h.log.Debug().Str("client", s.ClientID).Msg("dropping malformed envelope")
		return
	}

	switch env.Type {
	case CmdCreateRoom:
		var p CreateRoomPayload
		if decodePayload(env.Payload, &p) {
			h.createRoom(s, p)
		}
	case CmdJoinRoom:
		var p JoinRoomPayload
		if decodePayload(env.Payload, &p) {
			h.joinRoom(s, p)
		}
	case CmdRegisterController:
		var p RegisterControllerPayload
		if decodePayload(env.Payload, &p) {
			h.registerController(s, p)
		}
	case CmdBindController:
		var p BindControllerPayload
		if decodePayload(env.Payload, &p) {
			h.bindController(s, p)
		}
	case CmdUnbindController:
		var p UnbindControllerPayload
		if decodePayload(env.Payload, &p) {
			h.unbindController(s, p)
		}
	case CmdUpdateSettings:
		var p UpdateSettingsPayload
		if decodePayload(env.Payload, &p) {
			h.updateSettings(s, p)
		}
	case CmdSetPlayerMode:
		var p SetPlayerModePayload
		if decodePayload(env.Payload, &p) {
			h.setPlayerMode(s, p)
		}
	case CmdSetPlayerTeam:
		var p SetPlayerTeamPayload
		if decodePayload(env.Payload, &p) {
			h.setPlayerTeam(s, p)
		}
	case CmdKickPlayer:
		var p KickPlayerPayload
		if decodePayload(env.Payload, &p) {
			h.kickPlayer(s, p)
		}
	case CmdControllerInput:
		var p ControllerInputPayload
		if decodePayload(env.Payload, &p) {
			h.controllerInput(s, p)
		}
	case CmdStartMatch:
		h.startMatch(s)
	case CmdStopMatch:
		h.stopMatch(s)
	default:
		h.sendError(s, ErrUnknownCommand.Error()+": "+env.Type)
	}
}

func decodePayload(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		return true
	}
	return json.Unmarshal(raw, dst) == nil
}

func (h *Hub) createRoom(s *Session, p CreateRoomPayload) {
	h.detach(s)

	settings := NewSettings(p.TargetScore, p.MatchMinutes, p.Visibility)
	room := h.registry.Create(settings, h.now())

	room.mu.Lock()
	defer room.mu.Unlock()

	player := room.AddPlayer(p.Name, "", false, h.now())
	room.attachDisplay(s.ClientID, player.ID, s.conn)
	s.Role = RoleDisplay
	s.RoomCode = room.Code
	s.PlayerID = player.ID
	s.ControllerID = ""

	h.send(s.conn, EvtRoomCreated, RoomCreatedEvent{Room: room.Snapshot(), PlayerID: player.ID})
	h.broadcastLocked(room)
	h.log.Info().
		Str("room", room.Code).
		Str("client", s.ClientID).
		Str("player", player.ID).
		Msg("room created")
}

func (h *Hub) joinRoom(s *Session, p JoinRoomPayload) {
	room, ok := h.registry.Lookup(p.Code)
	if !ok {
		h.sendError(s, ErrRoomNotFound.Error())
		return
	}
	h.detach(s)

	room.mu.Lock()
	defer room.mu.Unlock()

	player := room.AddPlayer(p.Name, p.Team, p.Spectator, h.now())
	room.attachDisplay(s.ClientID, player.ID, s.conn)
	s.Role = RoleDisplay
	s.RoomCode = room.Code
	s.PlayerID = player.ID
	s.ControllerID = ""

	h.send(s.conn, EvtJoinedRoom, JoinedRoomEvent{Room: room.Snapshot(), PlayerID: player.ID})
	h.broadcastLocked(room)
	h.log.Info().
		Str("room", room.Code).
		Str("client", s.ClientID).
		Str("player", player.ID).
		Str("team", player.Team).
		Msg("player joined")
}

func (h *Hub) registerController(s *Session, p RegisterControllerPayload) {
	room, ok := h.registry.Lookup(p.Code)
	if !ok {
		h.sendError(s, ErrRoomNotFound.Error())
		return
	}
	h.detach(s)

	room.mu.Lock()
	defer room.mu.Unlock()

	controller := room.AddController(p.Name, s.conn, h.now())
	s.Role = RoleController
	s.RoomCode = room.Code
	s.ControllerID = controller.ID
	s.PlayerID = ""

	h.send(s.conn, EvtControllerRegistered, ControllerRegisteredEvent{
		ControllerID: controller.ID,
		Room:         room.Snapshot(),
	})
	h.broadcastLocked(room)
	h.log.Info().
		Str("room", room.Code).
		Str("client", s.ClientID).
		Str("controller", controller.ID).
		Msg("controller registered")
}

func (h *Hub) bindController(s *Session, p BindControllerPayload) {
	room, ok := h.sessionRoom(s)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.isHost(s.PlayerID) {
		h.sendError(s, ErrUnauthorized.Error())
		return
	}
	if !room.BindController(p.ControllerID, p.PlayerID) {
		return
	}
	if c := room.Controllers[p.ControllerID]; c.conn != nil {
		h.send(c.conn, EvtControllerBound, ControllerBoundEvent{
			ControllerID: p.ControllerID,
			PlayerID:     p.PlayerID,
		})
	}
	h.broadcastLocked(room)
	h.log.Info().
		Str("room", room.Code).
		Str("controller", p.ControllerID).
		Str("player", p.PlayerID).
		Msg("controller bound")
}

func (h *Hub) unbindController(s *Session, p UnbindControllerPayload) {
	room, ok := h.sessionRoom(s)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.isHost(s.PlayerID) {
		h.sendError(s, ErrUnauthorized.Error())
		return
	}
	room.UnbindController(p.ControllerID)
	h.broadcastLocked(room)
}

func (h *Hub) updateSettings(s *Session, p UpdateSettingsPayload) {
	room, ok := h.sessionRoom(s)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.isHost(s.PlayerID) {
		h.sendError(s, ErrUnauthorized.Error())
		return
	}
	room.ApplySettings(p.TargetScore, p.MatchMinutes, p.Visibility)
	h.broadcastLocked(room)
}

func (h *Hub) setPlayerMode(s *Session, p SetPlayerModePayload) {
	room, ok := h.sessionRoom(s)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	target := p.PlayerID
	if target == "" {
		target = s.PlayerID
	}
	if target != s.PlayerID && !room.isHost(s.PlayerID) {
		h.sendError(s, ErrUnauthorized.Error())
		return
	}
	player, exists := room.Players[target]
	if !exists {
		return
	}
	player.Mode = coerceMode(p.Mode)
	h.broadcastLocked(room)
}

func (h *Hub) setPlayerTeam(s *Session, p SetPlayerTeamPayload) {
	room, ok := h.sessionRoom(s)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	target := p.PlayerID
	if target == "" {
		target = s.PlayerID
	}
	if target != s.PlayerID && !room.isHost(s.PlayerID) {
		h.sendError(s, ErrUnauthorized.Error())
		return
	}
	player, exists := room.Players[target]
	if !exists {
		return
	}
	player.Team = coerceTeam(p.Team)
	h.broadcastLocked(room)
}

func (h *Hub) kickPlayer(s *Session, p KickPlayerPayload) {
	room, ok := h.sessionRoom(s)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.isHost(s.PlayerID) {
		h.sendError(s, ErrUnauthorized.Error())
		return
	}
	if _, exists := room.Players[p.PlayerID]; !exists {
		return
	}
	room.RemovePlayer(p.PlayerID)

	// A kicked player may briefly have more than one display attached
	// (duplicate tab); every one of them gets the event and the boot.
	kicked, err := MarshalEvent(EvtKicked, KickedEvent{})
	if err == nil {
		for clientID, d := range room.displays {
			if d.playerID != p.PlayerID {
				continue
			}
			if err := d.conn.Write(kicked); err != nil {
				h.log.Warn().Err(err).Str("client", clientID).Msg("kick notify failed")
			}
			d.conn.Close("kicked")
			delete(room.displays, clientID)
		}
	}
	h.broadcastLocked(room)
	h.log.Info().
		Str("room", room.Code).
		Str("player", p.PlayerID).
		Str("by", s.PlayerID).
		Msg("player kicked")
}

func (h *Hub) controllerInput(s *Session, p ControllerInputPayload) {
	room, ok := h.sessionRoom(s)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	// The session binding wins over whatever controllerId the payload claims.
	id := s.ControllerID
	if id == "" {
		id = p.ControllerID
	}
	controller, exists := room.Controllers[id]
	if !exists {
		return
	}
	controller.LastSeen = h.now()
	if controller.BoundPlayerID == "" {
		// Unbound motion is recorded but never relayed.
		return
	}
	controller.Status = ControllerStreaming

	data, err := MarshalEvent(EvtPlayerMotion, PlayerMotionEvent{
		PlayerID:     controller.BoundPlayerID,
		ControllerID: controller.ID,
		Data:         p.Data,
	})
	if err != nil {
		return
	}
	for _, d := range room.displays {
		if err := d.conn.Write(data); err != nil {
			h.log.Warn().Err(err).Str("room", room.Code).Msg("motion relay write failed")
		}
	}
}

func (h *Hub) startMatch(s *Session) {
	room, ok := h.sessionRoom(s)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.isHost(s.PlayerID) {
		h.sendError(s, ErrUnauthorized.Error())
		return
	}
	room.StartMatch(h.now())
	h.broadcastLocked(room)
	h.log.Info().Str("room", room.Code).Msg("match started")
}

func (h *Hub) stopMatch(s *Session) {
	room, ok := h.sessionRoom(s)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.isHost(s.PlayerID) {
		h.sendError(s, ErrUnauthorized.Error())
		return
	}
	room.StopMatch()
	h.broadcastLocked(room)
	h.log.Info().Str("room", room.Code).Msg("match stopped")
}

// detach undoes a session's room membership: displays come off the fanout
// list, their player is marked disconnected (record retained, host flag
// migrated), controllers are removed outright. Used on socket close and when
// a session joins a new room over a live connection.
func (h *Hub) detach(s *Session) {
	room, ok := h.sessionRoom(s)
	if ok {
		room.mu.Lock()
		changed := false
		if s.PlayerID != "" {
			room.detachDisplay(s.ClientID)
			if _, exists := room.Players[s.PlayerID]; exists {
				wasHost := room.HostPlayerID == s.PlayerID
				room.MarkDisconnected(s.PlayerID)
				if wasHost && room.HostPlayerID != s.PlayerID {
					h.log.Info().
						Str("room", room.Code).
						Str("from", s.PlayerID).
						Str("to", room.HostPlayerID).
						Msg("host migrated")
				}
				changed = true
			}
		}
		if s.ControllerID != "" {
			if _, exists := room.Controllers[s.ControllerID]; exists {
				room.RemoveController(s.ControllerID)
				changed = true
			}
		}
		if changed {
			h.broadcastLocked(room)
		}
		room.mu.Unlock()
	}

	s.Role = RoleNone
	s.RoomCode = ""
	s.PlayerID = ""
	s.ControllerID = ""
}

func (h *Hub) sessionRoom(s *Session) (*Room, bool) {
	if s.RoomCode == "" {
		return nil, false
	}
	return h.registry.Lookup(s.RoomCode)
}

// broadcastLocked serializes the room once and fans it out to every attached
// display. Caller holds the room lock.
func (h *Hub) broadcastLocked(room *Room) {
	data, err := MarshalEvent(EvtRoomState, room.Snapshot())
	if err != nil {
		h.log.Error().Err(err).Str("room", room.Code).Msg("snapshot marshal failed")
		return
	}
	for _, d := range room.displays {
		if err := d.conn.Write(data); err != nil {
			h.log.Warn().Err(err).Str("room", room.Code).Msg("broadcast write failed")
		}
	}
}

func (h *Hub) send(conn Conn, eventType string, payload any) {
	data, err := MarshalEvent(eventType, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", eventType).Msg("event marshal failed")
		return
	}
	if err := conn.Write(data); err != nil {
		h.log.Warn().Err(err).Str("event", eventType).Msg("socket write failed")
	}
}

func (h *Hub) sendError(s *Session, message string) {
	h.send(s.conn, EvtError, ErrorEvent{Message: message})
}

func coerceMode(mode string) string {
	if mode == ModeSpectator {
		return ModeSpectator
	}
	return ModePlayer
}

func coerceTeam(team string) string {
	if team == TeamB {
		return TeamB
	}
	return TeamA
}
