package game

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func testRoom() *Room {
	return NewRoom("ABCDE", NewSettings(nil, nil, ""), time.Unix(1000, 0))
}

func TestNewSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s := NewSettings(nil, nil, "")
		assert.Equal(t, 11, s.TargetScore)
		assert.Equal(t, 10, s.MatchMinutes)
		assert.Equal(t, VisibilityPrivate, s.Visibility)
	})

	t.Run("clamps out-of-range values", func(t *testing.T) {
		s := NewSettings(intPtr(999), intPtr(0), "")
		assert.Equal(t, 21, s.TargetScore)
		assert.Equal(t, 1, s.MatchMinutes)

		s = NewSettings(intPtr(0), intPtr(999), "")
		assert.Equal(t, 1, s.TargetScore)
		assert.Equal(t, 60, s.MatchMinutes)
	})

	t.Run("only public is accepted as visibility", func(t *testing.T) {
		assert.Equal(t, VisibilityPublic, NewSettings(nil, nil, "public").Visibility)
		assert.Equal(t, VisibilityPrivate, NewSettings(nil, nil, "banana").Visibility)
	})
}

func TestAddPlayerTeamBalance(t *testing.T) {
	r := testRoom()
	now := time.Unix(2000, 0)

	first := r.AddPlayer("host", "", false, now)
	assert.Equal(t, TeamA, first.Team)
	assert.True(t, first.IsHost)
	assert.Equal(t, first.ID, r.HostPlayerID)

	second := r.AddPlayer("p2", "", false, now.Add(time.Second))
	assert.Equal(t, TeamB, second.Team, "balances onto the emptier team")
	assert.False(t, second.IsHost)

	third := r.AddPlayer("p3", "", false, now.Add(2*time.Second))
	assert.Equal(t, TeamA, third.Team, "ties resolve to team A")

	t.Run("spectators do not count toward balance", func(t *testing.T) {
		spec := r.AddPlayer("watcher", "", true, now.Add(3*time.Second))
		assert.Equal(t, ModeSpectator, spec.Mode)
		// 2 active on A, 1 on B: next active player lands on B.
		fourth := r.AddPlayer("p4", "", false, now.Add(4*time.Second))
		assert.Equal(t, TeamB, fourth.Team)
	})

	t.Run("explicit team wins over balance", func(t *testing.T) {
		forced := r.AddPlayer("p5", TeamB, false, now.Add(5*time.Second))
		assert.Equal(t, TeamB, forced.Team)
	})
}

func TestPlayerNameClamp(t *testing.T) {
	r := testRoom()
	now := time.Now()

	assert.Equal(t, "Player", r.AddPlayer("", "", false, now).Name)

	long := strings.Repeat("x", 50)
	assert.Len(t, r.AddPlayer(long, "", false, now).Name, 32)
}

func TestBindControllerBidirectional(t *testing.T) {
	r := testRoom()
	now := time.Now()
	px := r.AddPlayer("x", "", false, now)
	py := r.AddPlayer("y", "", false, now.Add(time.Second))
	c := r.AddController("phone", nil, now)

	require.True(t, r.BindController(c.ID, px.ID))
	assert.Equal(t, px.ID, c.BoundPlayerID)
	assert.Equal(t, ControllerPaired, c.Status)
	assert.Contains(t, px.ControllerIDs, c.ID)

	t.Run("rebinding moves the controller, never duplicates it", func(t *testing.T) {
		require.True(t, r.BindController(c.ID, py.ID))
		assert.Equal(t, py.ID, c.BoundPlayerID)
		assert.NotContains(t, px.ControllerIDs, c.ID)
		assert.Contains(t, py.ControllerIDs, c.ID)
	})

	t.Run("rebinding to the same player is idempotent", func(t *testing.T) {
		require.True(t, r.BindController(c.ID, py.ID))
		assert.Contains(t, py.ControllerIDs, c.ID)
		assert.Len(t, py.ControllerIDs, 1)
	})

	t.Run("unknown ids refuse the bind", func(t *testing.T) {
		assert.False(t, r.BindController("nope", px.ID))
		assert.False(t, r.BindController(c.ID, "nope"))
	})

	t.Run("unbind resets to idle", func(t *testing.T) {
		r.UnbindController(c.ID)
		assert.Empty(t, c.BoundPlayerID)
		assert.Equal(t, ControllerIdle, c.Status)
		assert.NotContains(t, py.ControllerIDs, c.ID)
	})
}

func TestRemovePlayerReleasesControllers(t *testing.T) {
	r := testRoom()
	now := time.Now()
	host := r.AddPlayer("host", "", false, now)
	victim := r.AddPlayer("victim", "", false, now.Add(time.Second))
	c1 := r.AddController("c1", nil, now)
	c2 := r.AddController("c2", nil, now)
	require.True(t, r.BindController(c1.ID, victim.ID))
	require.True(t, r.BindController(c2.ID, victim.ID))

	r.RemovePlayer(victim.ID)

	assert.NotContains(t, r.Players, victim.ID)
	for _, c := range []*Controller{c1, c2} {
		assert.Empty(t, c.BoundPlayerID)
		assert.Equal(t, ControllerIdle, c.Status)
	}
	assert.True(t, host.IsHost)
}

func TestHostMigration(t *testing.T) {
	t.Run("earliest-joined connected player takes over", func(t *testing.T) {
		r := testRoom()
		base := time.Unix(3000, 0)
		host := r.AddPlayer("host", "", false, base)
		second := r.AddPlayer("second", "", false, base.Add(time.Second))
		third := r.AddPlayer("third", "", false, base.Add(2*time.Second))

		r.MarkDisconnected(host.ID)

		assert.False(t, host.IsHost)
		assert.False(t, host.Connected)
		assert.True(t, second.IsHost)
		assert.False(t, third.IsHost)
		assert.Equal(t, second.ID, r.HostPlayerID)
	})

	t.Run("skips disconnected players", func(t *testing.T) {
		r := testRoom()
		base := time.Unix(3000, 0)
		host := r.AddPlayer("host", "", false, base)
		second := r.AddPlayer("second", "", false, base.Add(time.Second))
		third := r.AddPlayer("third", "", false, base.Add(2*time.Second))

		r.MarkDisconnected(second.ID)
		assert.True(t, host.IsHost, "non-host disconnect does not migrate")

		r.MarkDisconnected(host.ID)
		assert.True(t, third.IsHost)
	})

	t.Run("total disconnect leaves the stale host flagged", func(t *testing.T) {
		r := testRoom()
		base := time.Unix(3000, 0)
		host := r.AddPlayer("host", "", false, base)
		second := r.AddPlayer("second", "", false, base.Add(time.Second))

		r.MarkDisconnected(second.ID)
		r.MarkDisconnected(host.ID)

		assert.True(t, host.IsHost)
		assert.Equal(t, host.ID, r.HostPlayerID)
	})

	t.Run("removing the host falls back to a disconnected player if needed", func(t *testing.T) {
		r := testRoom()
		base := time.Unix(3000, 0)
		host := r.AddPlayer("host", "", false, base)
		second := r.AddPlayer("second", "", false, base.Add(time.Second))
		r.MarkDisconnected(second.ID)

		r.RemovePlayer(host.ID)

		assert.True(t, second.IsHost, "room must not go hostless while occupied")
		assert.Equal(t, second.ID, r.HostPlayerID)
	})
}

func TestApplySettings(t *testing.T) {
	r := testRoom()
	r.ApplySettings(intPtr(15), intPtr(5), "")
	assert.Equal(t, 15, r.Settings.TargetScore)
	assert.Equal(t, 5, r.Settings.MatchMinutes)
	assert.Equal(t, 300, r.Match.DurationSeconds)

	t.Run("recomputes duration mid-match without touching status", func(t *testing.T) {
		r.StartMatch(time.Now())
		r.ApplySettings(nil, intPtr(2), "")
		assert.Equal(t, MatchPlaying, r.Match.Status)
		assert.Equal(t, 120, r.Match.DurationSeconds)
	})

	t.Run("visibility never narrows back to private", func(t *testing.T) {
		r.ApplySettings(nil, nil, "public")
		assert.Equal(t, VisibilityPublic, r.Settings.Visibility)
		r.ApplySettings(nil, nil, "private")
		assert.Equal(t, VisibilityPublic, r.Settings.Visibility)
	})
}

func TestMatchLifecycle(t *testing.T) {
	r := testRoom()
	now := time.Unix(4000, 0)

	assert.Equal(t, MatchIdle, r.Match.Status)

	r.StartMatch(now)
	assert.Equal(t, MatchPlaying, r.Match.Status)
	assert.Equal(t, Scores{}, r.Match.Scores)
	assert.Equal(t, now, r.Match.StartedAt)
	assert.Equal(t, 600, r.Match.DurationSeconds)

	r.Match.Scores = Scores{A: 3, B: 1}
	r.StopMatch()
	assert.Equal(t, MatchFinished, r.Match.Status)
	assert.Equal(t, Scores{A: 3, B: 1}, r.Match.Scores, "stop keeps scores")

	t.Run("restart resets scores from any state", func(t *testing.T) {
		r.StartMatch(now.Add(time.Minute))
		assert.Equal(t, MatchPlaying, r.Match.Status)
		assert.Equal(t, Scores{}, r.Match.Scores)
	})
}

func TestSnapshotOrdering(t *testing.T) {
	r := testRoom()
	base := time.Unix(5000, 0)
	p1 := r.AddPlayer("first", "", false, base)
	p2 := r.AddPlayer("second", "", false, base.Add(time.Second))
	p3 := r.AddPlayer("third", "", false, base.Add(2*time.Second))

	snap := r.Snapshot()
	require.Len(t, snap.Players, 3)
	assert.Equal(t, []string{p1.ID, p2.ID, p3.ID},
		[]string{snap.Players[0].ID, snap.Players[1].ID, snap.Players[2].ID},
		"players serialize in join order")

	t.Run("repeated snapshots of unchanged state are identical", func(t *testing.T) {
		assert.Equal(t, snap, r.Snapshot())
	})

	t.Run("unbound controller serializes a null boundPlayerId", func(t *testing.T) {
		r.AddController("phone", nil, base)
		again := r.Snapshot()
		require.Len(t, again.Controllers, 1)
		assert.Nil(t, again.Controllers[0].BoundPlayerID)
		assert.Equal(t, ControllerIdle, again.Controllers[0].Status)
	})
}
