package game

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TeamA = "A"
	TeamB = "B"

	ModePlayer    = "player"
	ModeSpectator = "spectator"

	ControllerIdle      = "idle"
	ControllerPaired    = "paired"
	ControllerStreaming = "streaming"

	MatchIdle      = "idle"
	MatchCountdown = "countdown"
	MatchPlaying   = "playing"
	MatchFinished  = "finished"

	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

const (
	minTargetScore  = 1
	maxTargetScore  = 21
	minMatchMinutes = 1
	maxMatchMinutes = 60

	defaultTargetScore  = 11
	defaultMatchMinutes = 10

	maxPlayerNameLen = 32
)

type Settings struct {
	TargetScore  int
	MatchMinutes int
	Visibility   string
}

// NewSettings clamps client-supplied values into range; nil means the field
// was absent and takes the default.
func NewSettings(targetScore, matchMinutes *int, visibility string) Settings {
	s := Settings{
		TargetScore:  defaultTargetScore,
		MatchMinutes: defaultMatchMinutes,
		Visibility:   VisibilityPrivate,
	}
	if targetScore != nil {
		s.TargetScore = clampInt(*targetScore, minTargetScore, maxTargetScore)
	}
	if matchMinutes != nil {
		s.MatchMinutes = clampInt(*matchMinutes, minMatchMinutes, maxMatchMinutes)
	}
	if visibility == VisibilityPublic {
		s.Visibility = VisibilityPublic
	}
	return s
}

type Player struct {
	ID            string
	Name          string
	Team          string
	Mode          string
	IsHost        bool
	Connected     bool
	ControllerIDs map[string]struct{}
	JoinedAt      time.Time
}

type Controller struct {
	ID            string
	Name          string
	Status        string
	BoundPlayerID string
	LastSeen      time.Time
	conn          Conn
}

type Scores struct {
	A int
	B int
}

type Match struct {
	Status          string
	Scores          Scores
	StartedAt       time.Time
	DurationSeconds int
}

type display struct {
	conn     Conn
	playerID string
}

// Room aggregates everything a match session owns. All mutation is serialized
// by mu: the hub holds the lock across read-modify-broadcast for one command
// before the next command against the same room begins. The entity methods
// below assume the caller holds mu.
type Room struct {
	mu sync.Mutex

	Code         string
	CreatedAt    time.Time
	Settings     Settings
	HostPlayerID string
	Players      map[string]*Player
	Controllers  map[string]*Controller
	Match        Match

	displays map[string]display // client id -> attached display socket
}

func NewRoom(code string, settings Settings, now time.Time) *Room {
	return &Room{
		Code:        code,
		CreatedAt:   now,
		Settings:    settings,
		Players:     make(map[string]*Player),
		Controllers: make(map[string]*Controller),
		Match: Match{
			Status:          MatchIdle,
			DurationSeconds: settings.MatchMinutes * 60,
		},
		displays: make(map[string]display),
	}
}

// AddPlayer creates a player and, when the room is empty, makes it the host.
// An empty team request is balanced onto the team with fewer active players,
// ties going to team A.
func (r *Room) AddPlayer(name, team string, spectator bool, now time.Time) *Player {
	mode := ModePlayer
	if spectator {
		mode = ModeSpectator
	}
	if team != TeamA && team != TeamB {
		team = r.balancedTeam()
	}
	p := &Player{
		ID:            uuid.NewString(),
		Name:          cleanPlayerName(name),
		Team:          team,
		Mode:          mode,
		IsHost:        len(r.Players) == 0,
		Connected:     true,
		ControllerIDs: make(map[string]struct{}),
		JoinedAt:      now,
	}
	r.Players[p.ID] = p
	if p.IsHost {
		r.HostPlayerID = p.ID
	}
	return p
}

func (r *Room) balancedTeam() string {
	countA, countB := 0, 0
	for _, p := range r.Players {
		if p.Mode != ModePlayer {
			continue
		}
		if p.Team == TeamA {
			countA++
		} else {
			countB++
		}
	}
	if countB < countA {
		return TeamB
	}
	return TeamA
}

// RemovePlayer deletes the player outright, releasing every controller bound
// to it. If the player held the host flag, the flag migrates first.
func (r *Room) RemovePlayer(playerID string) {
	p, ok := r.Players[playerID]
	if !ok {
		return
	}
	for id := range p.ControllerIDs {
		if c, ok := r.Controllers[id]; ok {
			c.BoundPlayerID = ""
			c.Status = ControllerIdle
		}
	}
	delete(r.Players, playerID)
	if p.IsHost {
		r.migrateHost()
	}
}

// MarkDisconnected flips the player's connected flag and migrates the host
// flag away if possible. The player record is retained for the snapshot.
func (r *Room) MarkDisconnected(playerID string) {
	p, ok := r.Players[playerID]
	if !ok {
		return
	}
	p.Connected = false
	if p.IsHost {
		r.migrateHost()
	}
}

// migrateHost hands the host flag to the earliest-joined still-connected
// player, ties broken by id. If nobody is connected the departing player
// keeps the flag until a later removal forces the issue.
func (r *Room) migrateHost() {
	var next *Player
	for _, p := range r.Players {
		if !p.Connected {
			continue
		}
		if next == nil || p.JoinedAt.Before(next.JoinedAt) ||
			(p.JoinedAt.Equal(next.JoinedAt) && p.ID < next.ID) {
			next = p
		}
	}
	if next == nil {
		// Nobody left connected: a disconnected host keeps the flag. If the
		// host record itself is gone (kick), fall back to the earliest-joined
		// remaining player so the room never ends up hostless while occupied.
		if _, ok := r.Players[r.HostPlayerID]; ok {
			return
		}
		for _, p := range r.Players {
			if next == nil || p.JoinedAt.Before(next.JoinedAt) ||
				(p.JoinedAt.Equal(next.JoinedAt) && p.ID < next.ID) {
				next = p
			}
		}
		if next == nil {
			r.HostPlayerID = ""
			return
		}
	}
	if current, ok := r.Players[r.HostPlayerID]; ok {
		current.IsHost = false
	}
	next.IsHost = true
	r.HostPlayerID = next.ID
}

func (r *Room) AddController(name string, conn Conn, now time.Time) *Controller {
	c := &Controller{
		ID:       uuid.NewString(),
		Name:     cleanPlayerName(name),
		Status:   ControllerIdle,
		LastSeen: now,
		conn:     conn,
	}
	r.Controllers[c.ID] = c
	return c
}

// RemoveController drops the controller and clears any player binding to it.
func (r *Room) RemoveController(controllerID string) {
	c, ok := r.Controllers[controllerID]
	if !ok {
		return
	}
	if p, ok := r.Players[c.BoundPlayerID]; ok {
		delete(p.ControllerIDs, controllerID)
	}
	delete(r.Controllers, controllerID)
}

// BindController pairs a controller with a player, detaching it from any
// previous owner first so no controller id is referenced by two players.
func (r *Room) BindController(controllerID, playerID string) bool {
	c, ok := r.Controllers[controllerID]
	if !ok {
		return false
	}
	p, ok := r.Players[playerID]
	if !ok {
		return false
	}
	if prev, ok := r.Players[c.BoundPlayerID]; ok && c.BoundPlayerID != playerID {
		delete(prev.ControllerIDs, controllerID)
	}
	c.BoundPlayerID = playerID
	c.Status = ControllerPaired
	p.ControllerIDs[controllerID] = struct{}{}
	return true
}

func (r *Room) UnbindController(controllerID string) {
	c, ok := r.Controllers[controllerID]
	if !ok {
		return
	}
	if p, ok := r.Players[c.BoundPlayerID]; ok {
		delete(p.ControllerIDs, controllerID)
	}
	c.BoundPlayerID = ""
	c.Status = ControllerIdle
}

// ApplySettings clamps whatever the client sent and recomputes the match
// duration immediately, even mid-match. Visibility only ever widens to
// public here; private is chosen at creation.
func (r *Room) ApplySettings(targetScore, matchMinutes *int, visibility string) {
	if targetScore != nil {
		r.Settings.TargetScore = clampInt(*targetScore, minTargetScore, maxTargetScore)
	}
	if matchMinutes != nil {
		r.Settings.MatchMinutes = clampInt(*matchMinutes, minMatchMinutes, maxMatchMinutes)
	}
	if visibility == VisibilityPublic {
		r.Settings.Visibility = VisibilityPublic
	}
	r.Match.DurationSeconds = r.Settings.MatchMinutes * 60
}

// StartMatch moves to playing from any state. Calling it while already
// playing restarts the match with fresh scores.
func (r *Room) StartMatch(now time.Time) {
	r.Match.Status = MatchPlaying
	r.Match.Scores = Scores{}
	r.Match.StartedAt = now
	r.Match.DurationSeconds = r.Settings.MatchMinutes * 60
}

func (r *Room) StopMatch() {
	r.Match.Status = MatchFinished
}

func (r *Room) attachDisplay(clientID, playerID string, conn Conn) {
	r.displays[clientID] = display{conn: conn, playerID: playerID}
}

func (r *Room) detachDisplay(clientID string) {
	delete(r.displays, clientID)
}

func (r *Room) isHost(playerID string) bool {
	p, ok := r.Players[playerID]
	return ok && p.IsHost
}

// Snapshot serializes the room with players in join order and controllers in
// id order so repeated renders of unchanged state are byte-identical.
func (r *Room) Snapshot() RoomSnapshot {
	players := make([]PlayerSnapshot, 0, len(r.Players))
	for _, p := range r.Players {
		ids := make([]string, 0, len(p.ControllerIDs))
		for id := range p.ControllerIDs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		players = append(players, PlayerSnapshot{
			ID:            p.ID,
			Name:          p.Name,
			Team:          p.Team,
			Mode:          p.Mode,
			IsHost:        p.IsHost,
			Connected:     p.Connected,
			ControllerIDs: ids,
		})
	}
	byJoin := make(map[string]time.Time, len(r.Players))
	for id, p := range r.Players {
		byJoin[id] = p.JoinedAt
	}
	sort.Slice(players, func(i, j int) bool {
		ti, tj := byJoin[players[i].ID], byJoin[players[j].ID]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return players[i].ID < players[j].ID
	})

	controllers := make([]ControllerSnapshot, 0, len(r.Controllers))
	for _, c := range r.Controllers {
		snap := ControllerSnapshot{
			ID:       c.ID,
			Name:     c.Name,
			Status:   c.Status,
			LastSeen: c.LastSeen.UnixMilli(),
		}
		if c.BoundPlayerID != "" {
			bound := c.BoundPlayerID
			snap.BoundPlayerID = &bound
		}
		controllers = append(controllers, snap)
	}
	sort.Slice(controllers, func(i, j int) bool {
		return controllers[i].ID < controllers[j].ID
	})

	match := MatchSnapshot{
		Status: r.Match.Status,
		Scores: ScoresSnapshot{
			A: r.Match.Scores.A,
			B: r.Match.Scores.B,
		},
		DurationSeconds: r.Match.DurationSeconds,
	}
	if !r.Match.StartedAt.IsZero() {
		started := r.Match.StartedAt.UnixMilli()
		match.StartedAt = &started
	}

	return RoomSnapshot{
		Code:      r.Code,
		CreatedAt: r.CreatedAt.UnixMilli(),
		Settings: SettingsSnapshot{
			TargetScore:  r.Settings.TargetScore,
			MatchMinutes: r.Settings.MatchMinutes,
			Visibility:   r.Settings.Visibility,
		},
		HostPlayerID: r.HostPlayerID,
		Players:      players,
		Controllers:  controllers,
		Match:        match,
	}
}

// Listing is the public lobby row for this room.
func (r *Room) Listing() RoomListing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomListing{
		Code:        r.Code,
		CreatedAt:   r.CreatedAt.UnixMilli(),
		PlayerCount: len(r.Players),
		MatchStatus: r.Match.Status,
	}
}

func (r *Room) isPublic() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Settings.Visibility == VisibilityPublic
}

func cleanPlayerName(name string) string {
	if name == "" {
		return "Player"
	}
	runes := []rune(name)
	if len(runes) > maxPlayerNameLen {
		return string(runes[:maxPlayerNameLen])
	}
	return name
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
