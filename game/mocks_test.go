package game

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Conn (testify) ---

type MockConn struct {
	mock.Mock
}

func (m *MockConn) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockConn) Close(reason string) {
	m.Called(reason)
}

// --- Conn (recording fake) ---

// fakeConn records every frame so scenario tests can inspect the full event
// stream a client would have seen.
type fakeConn struct {
	mu          sync.Mutex
	frames      [][]byte
	closed      bool
	closeReason string
}

func (c *fakeConn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeReason = reason
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) events(tb testing.TB) []Envelope {
	tb.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Envelope, 0, len(c.frames))
	for _, frame := range c.frames {
		var env Envelope
		require.NoError(tb, json.Unmarshal(frame, &env))
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) eventsOfType(tb testing.TB, eventType string) []Envelope {
	tb.Helper()
	var out []Envelope
	for _, env := range c.events(tb) {
		if env.Type == eventType {
			out = append(out, env)
		}
	}
	return out
}

// lastSnapshot decodes the most recent roomState broadcast the conn received.
func (c *fakeConn) lastSnapshot(tb testing.TB) RoomSnapshot {
	tb.Helper()
	states := c.eventsOfType(tb, EvtRoomState)
	require.NotEmpty(tb, states, "no roomState received")
	var snap RoomSnapshot
	require.NoError(tb, json.Unmarshal(states[len(states)-1].Payload, &snap))
	return snap
}
