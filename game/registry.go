package game

import (
	"sync"
	"time"
)

// Registry is the process-wide map from room code to room. It is the only
// place rooms are created or looked up; rooms live for the process lifetime
// once created (reaping is deliberately absent, see DESIGN.md).
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Create allocates a room under a freshly generated code. The write lock is
// held across the generate-check-insert sequence so two concurrent creates
// can never collide on the same code.
func (reg *Registry) Create(settings Settings, now time.Time) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	code := newRoomCode()
	for _, taken := reg.rooms[code]; taken; _, taken = reg.rooms[code] {
		code = newRoomCode()
	}

	room := NewRoom(code, settings, now)
	reg.rooms[code] = room
	return room
}

func (reg *Registry) Lookup(code string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[code]
	return room, ok
}

func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// PublicListings returns lobby rows for rooms whose visibility is public.
func (reg *Registry) PublicListings() []RoomListing {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.RUnlock()

	listings := make([]RoomListing, 0, len(rooms))
	for _, room := range rooms {
		if room.isPublic() {
			listings = append(listings, room.Listing())
		}
	}
	return listings
}
