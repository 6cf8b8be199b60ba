package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateUniqueCodes(t *testing.T) {
	reg := NewRegistry()
	now := time.Now()

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		room := reg.Create(NewSettings(nil, nil, ""), now)
		assert.False(t, seen[room.Code], "duplicate code %q", room.Code)
		seen[room.Code] = true
	}
	assert.Equal(t, 200, reg.Count())
}

func TestRegistryConcurrentCreate(t *testing.T) {
	reg := NewRegistry()
	now := time.Now()

	const workers = 32
	codes := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- reg.Create(NewSettings(nil, nil, ""), now).Code
		}()
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool)
	for code := range codes {
		assert.False(t, seen[code], "duplicate code %q", code)
		seen[code] = true
	}
	assert.Equal(t, workers, reg.Count())
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	room := reg.Create(NewSettings(nil, nil, ""), time.Now())

	found, ok := reg.Lookup(room.Code)
	require.True(t, ok)
	assert.Same(t, room, found)

	_, ok = reg.Lookup("ZZZZZ")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Count(), "failed lookup never mutates the registry")
}

func TestRegistryPublicListings(t *testing.T) {
	reg := NewRegistry()
	now := time.Unix(6000, 0)

	pub := reg.Create(NewSettings(nil, nil, "public"), now)
	pub.AddPlayer("host", "", false, now)
	reg.Create(NewSettings(nil, nil, ""), now) // private

	listings := reg.PublicListings()
	require.Len(t, listings, 1)
	assert.Equal(t, pub.Code, listings[0].Code)
	assert.Equal(t, 1, listings[0].PlayerCount)
	assert.Equal(t, MatchIdle, listings[0].MatchStatus)
	assert.Equal(t, now.UnixMilli(), listings[0].CreatedAt)
}
