package analytics

import (
	"sort"
	"time"

	"github.com/vectorinstitute/workspace-insights/internal/logging"
	"github.com/vectorinstitute/workspace-insights/internal/metrics"
	"github.com/vectorinstitute/workspace-insights/pkg/types"
	"go.uber.org/zap"
)

// Compute runs the full analytics pipeline over one snapshot. It is a
// deterministic pure function of (snapshot, now): re-running on the same
// inputs yields identical output, which is what makes the result cacheable
// by the API layer.
func Compute(snap types.Snapshot, now time.Time) types.AggregateResult {
	start := time.Now()

	normalized := make([]types.WorkspaceMetrics, 0, len(snap.Workspaces))
	for _, ws := range snap.Workspaces {
		normalized = append(normalized, Normalize(ws, now))
	}

	teams := TeamMetrics(normalized, snap.AccumulatedUsage)
	platform := PlatformMetrics(normalized, teams, snap.AccumulatedUsage)
	templates := TemplateMetrics(normalized, snap.Templates, snap.AccumulatedUsage)
	engagement := EngagementTimeline(snap.Workspaces, now)

	sort.Slice(normalized, func(i, j int) bool {
		if !normalized[i].LastActive.Equal(normalized[j].LastActive) {
			return normalized[i].LastActive.After(normalized[j].LastActive)
		}
		return normalized[i].WorkspaceID < normalized[j].WorkspaceID
	})

	metrics.AggregateSeconds.Observe(time.Since(start).Seconds())
	logging.L.Info("analytics computed",
		zap.Int("workspaces", len(normalized)),
		zap.Int("teams", len(teams)),
		zap.Int("templates", len(templates)),
		zap.Duration("took", time.Since(start)))

	return types.AggregateResult{
		Timestamp:       snap.Timestamp,
		Platform:        platform,
		Teams:           teams,
		Workspaces:      normalized,
		Templates:       templates,
		DailyEngagement: engagement,
	}
}

// TemplateTeamBreakdown recomputes the team aggregation restricted to
// workspaces of one template, with the ledger filtered the same way. This
// is the input the company roll-up operates on.
func TemplateTeamBreakdown(snap types.Snapshot, templateID string, now time.Time) []types.TeamMetrics {
	templateName := ""
	for _, tpl := range snap.Templates {
		if tpl.ID == templateID {
			templateName = tpl.Name
			break
		}
	}

	var scoped []types.WorkspaceMetrics
	for _, ws := range snap.Workspaces {
		if ws.TemplateID != templateID {
			continue
		}
		scoped = append(scoped, Normalize(ws, now))
	}

	ledger := map[string]types.UsageLedgerEntry{}
	for k, e := range snap.AccumulatedUsage {
		if templateName != "" && e.TemplateName == templateName {
			ledger[k] = e
		}
	}
	return TeamMetrics(scoped, ledger)
}

// TemplateCompanyRollup is the on-demand company view for one template.
func TemplateCompanyRollup(snap types.Snapshot, templateID string, now time.Time) []types.CompanyMetrics {
	return RollupCompanies(TemplateTeamBreakdown(snap, templateID, now))
}
