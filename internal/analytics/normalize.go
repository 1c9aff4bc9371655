package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/vectorinstitute/workspace-insights/internal/logging"
	"github.com/vectorinstitute/workspace-insights/pkg/types"
	"go.uber.org/zap"
)

// Activity classification thresholds, in days since last activity.
const (
	activeDays   = 7
	inactiveDays = 30
)

// missingDays stands in for records without a usable timestamp so they
// always classify as stale.
const missingDays = 9999

// daysSince returns the number of whole days between t and now, never
// negative. Zero timestamps map to missingDays.
func daysSince(t, now time.Time) int {
	if t.IsZero() {
		return missingDays
	}
	d := int(now.Sub(t).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// classifyActivity maps days-since-active onto the three-bucket
// classification. It is the only place the thresholds are applied.
func classifyActivity(days int) string {
	switch {
	case days <= activeDays:
		return types.ActivityActive
	case days <= inactiveDays:
		return types.ActivityInactive
	default:
		return types.ActivityStale
	}
}

// latestBuild returns the build with the greatest creation timestamp, or
// nil when the workspace has no build history. The raw list order is not
// trusted.
func latestBuild(builds []types.Build) *types.Build {
	var latest *types.Build
	for i := range builds {
		b := &builds[i]
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			latest = b
		}
	}
	return latest
}

// Normalize converts one raw workspace record into a flat metrics record.
// It is total: malformed sub-structures degrade the affected fields to
// their zero values with a logged warning, never the whole batch.
func Normalize(ws types.Workspace, now time.Time) (m types.WorkspaceMetrics) {
	defer func() {
		if r := recover(); r != nil {
			logging.L.Warn("workspace normalization degraded",
				zap.String("workspace_id", ws.ID),
				zap.String("owner", ws.OwnerName),
				zap.String("reason", fmt.Sprint(r)))
			m = degradedMetrics(ws, now)
		}
	}()

	build := latestBuild(ws.Builds)

	lastActive := ws.CreatedAt
	if build != nil {
		for _, res := range build.Resources {
			for _, agent := range res.Agents {
				if agent.LastConnectedAt != nil && agent.LastConnectedAt.After(lastActive) {
					lastActive = *agent.LastConnectedAt
				}
			}
		}
	}

	lastBuildAt := ws.CreatedAt
	lastBuildStatus := types.StatusUnknown
	if build != nil {
		lastBuildAt = build.CreatedAt
		if build.Job.Status != "" {
			lastBuildStatus = build.Job.Status
		}
	}

	dsa := daysSince(lastActive, now)

	m = types.WorkspaceMetrics{
		WorkspaceID:         ws.ID,
		WorkspaceName:       workspaceName(ws),
		OwnerHandle:         ws.OwnerName,
		OwnerName:           ownerDisplayName(ws),
		TeamName:            ws.TeamName,
		TemplateID:          ws.TemplateID,
		TemplateName:        ws.TemplateName,
		TemplateDisplayName: ws.TemplateDisplayName,
		CurrentStatus:       currentStatus(build),
		HealthStatus:        healthStatus(build),
		CreatedAt:           ws.CreatedAt,
		LastActive:          lastActive,
		LastBuildAt:         lastBuildAt,
		DaysSinceCreated:    daysSince(ws.CreatedAt, now),
		DaysSinceActive:     dsa,
		WorkspaceHours:      usageHours(ws, build),
		ActiveHours:         activeHours(ws),
		TotalBuilds:         len(ws.Builds),
		LastBuildStatus:     lastBuildStatus,
		ActivityStatus:      classifyActivity(dsa),
	}
	return m
}

// usageHours prefers the collector's precomputed total. The fallback spans
// only the latest build's agent connections, so it is strictly a lower
// bound on real usage.
func usageHours(ws types.Workspace, build *types.Build) float64 {
	if ws.TotalUsageHours != nil {
		return *ws.TotalUsageHours
	}
	if build == nil {
		return 0
	}
	var first, last time.Time
	for _, res := range build.Resources {
		for _, agent := range res.Agents {
			if agent.FirstConnectedAt != nil && (first.IsZero() || agent.FirstConnectedAt.Before(first)) {
				first = *agent.FirstConnectedAt
			}
			if agent.LastConnectedAt != nil && (last.IsZero() || agent.LastConnectedAt.After(last)) {
				last = *agent.LastConnectedAt
			}
		}
	}
	if first.IsZero() || last.IsZero() || last.Before(first) {
		return 0
	}
	return math.Floor(last.Sub(first).Hours())
}

// activeHours has no fallback computation: the value originates from the
// insights API, not from connection timestamps.
func activeHours(ws types.Workspace) float64 {
	if ws.ActiveHours == nil {
		return 0
	}
	return *ws.ActiveHours
}

// currentStatus derives the workspace status from the latest build.
// Decision order matters: a failed job wins over connected agents.
func currentStatus(build *types.Build) string {
	if build == nil {
		return types.StatusUnknown
	}
	switch build.Job.Status {
	case "failed", "canceled":
		return types.StatusError
	}
	for _, res := range build.Resources {
		for _, agent := range res.Agents {
			if agent.Status == "connected" && agent.LifecycleState == "ready" {
				return types.StatusRunning
			}
		}
	}
	if build.Job.Status == "succeeded" {
		switch build.Transition {
		case "start":
			return types.StatusRunning
		case "stop":
			return types.StatusStopped
		}
	}
	return types.StatusUnknown
}

// healthStatus reports unhealthy if any app on any agent of the latest
// build does.
func healthStatus(build *types.Build) string {
	if build == nil {
		return types.HealthHealthy
	}
	for _, res := range build.Resources {
		for _, agent := range res.Agents {
			for _, app := range agent.Apps {
				if app.Health == types.HealthUnhealthy {
					return types.HealthUnhealthy
				}
			}
		}
	}
	return types.HealthHealthy
}

func ownerDisplayName(ws types.Workspace) string {
	if ws.OwnerFirstName != "" && ws.OwnerLastName != "" {
		return ws.OwnerFirstName + " " + ws.OwnerLastName
	}
	return ws.OwnerName
}

func workspaceName(ws types.Workspace) string {
	if ws.Name != "" {
		return ws.Name
	}
	return ws.OwnerName + "/workspace"
}

// degradedMetrics is the record-isolating fallback: identity fields from
// the raw record, everything derived set to unknown/zero.
func degradedMetrics(ws types.Workspace, now time.Time) types.WorkspaceMetrics {
	dsa := daysSince(ws.CreatedAt, now)
	return types.WorkspaceMetrics{
		WorkspaceID:         ws.ID,
		WorkspaceName:       workspaceName(ws),
		OwnerHandle:         ws.OwnerName,
		OwnerName:           ws.OwnerName,
		TeamName:            ws.TeamName,
		TemplateID:          ws.TemplateID,
		TemplateName:        ws.TemplateName,
		TemplateDisplayName: ws.TemplateDisplayName,
		CurrentStatus:       types.StatusUnknown,
		HealthStatus:        types.HealthUnknown,
		CreatedAt:           ws.CreatedAt,
		LastActive:          ws.CreatedAt,
		LastBuildAt:         ws.CreatedAt,
		DaysSinceCreated:    dsa,
		DaysSinceActive:     dsa,
		LastBuildStatus:     types.StatusUnknown,
		ActivityStatus:      classifyActivity(dsa),
	}
}
