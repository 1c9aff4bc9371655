package analytics

import (
	"testing"
	"time"

	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func ptrTime(t time.Time) *time.Time { return &t }
func ptrF(v float64) *float64         { return &v }

func TestClassifyActivityBoundaries(t *testing.T) {
	cases := []struct {
		days int
		want string
	}{
		{0, types.ActivityActive},
		{7, types.ActivityActive},
		{8, types.ActivityInactive},
		{30, types.ActivityInactive},
		{31, types.ActivityStale},
		{missingDays, types.ActivityStale},
	}
	for _, c := range cases {
		if got := classifyActivity(c.days); got != c.want {
			t.Errorf("classifyActivity(%d) = %q, want %q", c.days, got, c.want)
		}
	}
}

func TestDaysSince(t *testing.T) {
	if got := daysSince(time.Time{}, testNow); got != missingDays {
		t.Fatalf("zero time = %d, want %d", got, missingDays)
	}
	if got := daysSince(testNow.Add(time.Hour), testNow); got != 0 {
		t.Fatalf("future time = %d, want 0", got)
	}
	if got := daysSince(testNow.Add(-49*time.Hour), testNow); got != 2 {
		t.Fatalf("49h ago = %d, want 2 (whole days)", got)
	}
}

func TestNormalizeLastActiveFromLatestBuild(t *testing.T) {
	created := testNow.AddDate(0, 0, -20)
	oldConn := testNow.AddDate(0, 0, -15)
	newConn := testNow.AddDate(0, 0, -3)
	ws := types.Workspace{
		ID: "ws-1", Name: "dev", OwnerName: "alice",
		CreatedAt: created,
		Builds: []types.Build{
			// older build with the more recent connection must not win
			{
				CreatedAt: created,
				Resources: []types.Resource{{Agents: []types.Agent{{
					LastConnectedAt: ptrTime(oldConn),
				}}}},
			},
			{
				CreatedAt: testNow.AddDate(0, 0, -4),
				Job:       types.ProvisionerJob{Status: "succeeded"},
				Transition: "start",
				Resources: []types.Resource{{Agents: []types.Agent{{
					Status: "connected", LifecycleState: "ready",
					LastConnectedAt: ptrTime(newConn),
				}}}},
			},
		},
	}

	m := Normalize(ws, testNow)
	if !m.LastActive.Equal(newConn) {
		t.Fatalf("last active %v, want %v (latest build only)", m.LastActive, newConn)
	}
	if m.DaysSinceActive != 3 || m.ActivityStatus != types.ActivityActive {
		t.Fatalf("days %d status %q", m.DaysSinceActive, m.ActivityStatus)
	}
	if m.CurrentStatus != types.StatusRunning {
		t.Fatalf("status %q, want running", m.CurrentStatus)
	}
	if m.TotalBuilds != 2 {
		t.Fatalf("builds %d", m.TotalBuilds)
	}
}

func TestNormalizeNoBuilds(t *testing.T) {
	created := testNow.AddDate(0, 0, -40)
	m := Normalize(types.Workspace{ID: "ws-1", OwnerName: "alice", CreatedAt: created}, testNow)
	if !m.LastActive.Equal(created) {
		t.Fatalf("last active %v, want creation time", m.LastActive)
	}
	if m.ActivityStatus != types.ActivityStale {
		t.Fatalf("status %q, want stale at 40 days", m.ActivityStatus)
	}
	if m.CurrentStatus != types.StatusUnknown || m.LastBuildStatus != types.StatusUnknown {
		t.Fatalf("statuses %q %q", m.CurrentStatus, m.LastBuildStatus)
	}
}

func TestNormalizeMissingTimestampsAreStale(t *testing.T) {
	m := Normalize(types.Workspace{ID: "ws-1", OwnerName: "alice"}, testNow)
	if m.DaysSinceActive != missingDays {
		t.Fatalf("days since active %d", m.DaysSinceActive)
	}
	if m.ActivityStatus != types.ActivityStale {
		t.Fatalf("status %q, want stale", m.ActivityStatus)
	}
}

func TestUsageHoursFallbackFloorsSpan(t *testing.T) {
	first := testNow.AddDate(0, 0, -2)
	last := first.Add(time.Hour + 35*time.Minute)
	ws := types.Workspace{
		ID: "ws-1", OwnerName: "alice", CreatedAt: first,
		Builds: []types.Build{{
			CreatedAt: first,
			Resources: []types.Resource{{Agents: []types.Agent{{
				FirstConnectedAt: ptrTime(first),
				LastConnectedAt:  ptrTime(last),
			}}}},
		}},
	}
	m := Normalize(ws, testNow)
	if m.WorkspaceHours != 1 {
		t.Fatalf("workspace hours %v, want 1 (floored span)", m.WorkspaceHours)
	}
}

func TestUsageHoursPrefersPrecomputed(t *testing.T) {
	ws := types.Workspace{ID: "ws-1", OwnerName: "alice", TotalUsageHours: ptrF(12.5)}
	if m := Normalize(ws, testNow); m.WorkspaceHours != 12.5 {
		t.Fatalf("workspace hours %v, want precomputed 12.5", m.WorkspaceHours)
	}
}

func TestCurrentStatusFailedBuildWins(t *testing.T) {
	build := &types.Build{
		Job: types.ProvisionerJob{Status: "failed"},
		Resources: []types.Resource{{Agents: []types.Agent{{
			Status: "connected", LifecycleState: "ready",
		}}}},
	}
	if got := currentStatus(build); got != types.StatusError {
		t.Fatalf("status %q, want error even with a connected agent", got)
	}
}

func TestCurrentStatusStoppedBuild(t *testing.T) {
	build := &types.Build{Transition: "stop", Job: types.ProvisionerJob{Status: "succeeded"}}
	if got := currentStatus(build); got != types.StatusStopped {
		t.Fatalf("status %q, want stopped", got)
	}
}

func TestHealthStatusUnhealthyApp(t *testing.T) {
	build := &types.Build{
		Resources: []types.Resource{{Agents: []types.Agent{{
			Apps: []types.App{{Slug: "code", Health: "healthy"}, {Slug: "web", Health: "unhealthy"}},
		}}}},
	}
	if got := healthStatus(build); got != types.HealthUnhealthy {
		t.Fatalf("health %q", got)
	}
}

func TestOwnerDisplayName(t *testing.T) {
	ws := types.Workspace{OwnerName: "asmith", OwnerFirstName: "Alice", OwnerLastName: "Smith"}
	if m := Normalize(ws, testNow); m.OwnerName != "Alice Smith" || m.OwnerHandle != "asmith" {
		t.Fatalf("owner %q handle %q", m.OwnerName, m.OwnerHandle)
	}
	// one name missing falls back to the handle
	ws = types.Workspace{OwnerName: "asmith", OwnerFirstName: "Alice"}
	if m := Normalize(ws, testNow); m.OwnerName != "asmith" {
		t.Fatalf("owner %q, want handle fallback", m.OwnerName)
	}
}
