package collector

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vectorinstitute/workspace-insights/internal/directory"
	"github.com/vectorinstitute/workspace-insights/internal/logging"
	"github.com/vectorinstitute/workspace-insights/internal/metrics"
	"github.com/vectorinstitute/workspace-insights/internal/store"
	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

// excludedTeams are dropped before any enrichment. Historical team data is
// preserved from previous snapshots; "Unassigned" only appears for users
// with no directory entry anywhere.
var excludedTeams = map[string]bool{
	"facilitators": true,
	"Unassigned":   true,
}

// CoderAPI is the slice of the Coder client the collector needs.
type CoderAPI interface {
	ListWorkspaces(ctx context.Context) ([]types.Workspace, error)
	ListBuilds(ctx context.Context, workspaceID string) ([]types.Build, error)
	ListTemplates(ctx context.Context) ([]types.Template, error)
	UserActivityHours(ctx context.Context, start, end time.Time) (map[string]float64, error)
}

// Collector captures one snapshot per run, carrying forward the accumulated
// ledger, per-workspace usage readings and daily engagement history from the
// previous snapshot.
type Collector struct {
	api   CoderAPI
	store store.Store
	dir   directory.Directory

	// ExcludedTemplates are dropped from the template list by name.
	ExcludedTemplates []string
}

func New(api CoderAPI, st store.Store, dir directory.Directory) *Collector {
	return &Collector{api: api, store: st, dir: dir}
}

// Run captures a snapshot, persists it and returns it.
func (c *Collector) Run(ctx context.Context, now time.Time) (types.Snapshot, error) {
	prev, err := c.store.LatestSnapshot(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return types.Snapshot{}, err
	}

	participants, err := c.participantMappings(ctx, prev)
	if err != nil {
		return types.Snapshot{}, err
	}

	workspaces, err := c.fetchWorkspaces(ctx, participants, now)
	if err != nil {
		return types.Snapshot{}, err
	}

	templates, err := c.fetchTemplates(ctx)
	if err != nil {
		return types.Snapshot{}, err
	}

	ledger, usage := accumulateUsage(workspaces, prev.AccumulatedUsage, prev.WorkspaceUsage, participants, now)
	engagement := accumulateEngagement(workspaces, prev.DailyEngagement)

	snap := types.Snapshot{
		Timestamp:        now.UTC(),
		Workspaces:       workspaces,
		Templates:        templates,
		AccumulatedUsage: ledger,
		WorkspaceUsage:   usage,
		DailyEngagement:  engagement,
	}
	if _, err := c.store.SaveSnapshot(ctx, snap); err != nil {
		return types.Snapshot{}, err
	}
	metrics.SnapshotsCollectedTotal.Inc()
	logging.L.Info("snapshot collected",
		zap.Int("workspaces", len(workspaces)),
		zap.Int("templates", len(templates)),
		zap.Int("ledger_entries", len(ledger)),
		zap.Int("engagement_days", len(engagement)))
	return snap, nil
}

// participantMappings merges directory records from the previous snapshot
// with the current directory. Current data wins; historical entries keep
// team assignments alive for participants removed from the directory.
func (c *Collector) participantMappings(ctx context.Context, prev types.Snapshot) (map[string]types.Participant, error) {
	merged := map[string]types.Participant{}
	for _, ws := range prev.Workspaces {
		handle := strings.ToLower(ws.OwnerName)
		if handle == "" || ws.TeamName == "" {
			continue
		}
		merged[handle] = types.Participant{
			Handle:    handle,
			TeamName:  ws.TeamName,
			FirstName: ws.OwnerFirstName,
			LastName:  ws.OwnerLastName,
		}
	}
	current, err := c.dir.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range current {
		handle := strings.ToLower(p.Handle)
		if handle == "" {
			continue
		}
		if p.TeamName == "" {
			p.TeamName = "Unassigned"
		}
		merged[handle] = p
	}
	return merged, nil
}

func (c *Collector) fetchWorkspaces(ctx context.Context, participants map[string]types.Participant, now time.Time) ([]types.Workspace, error) {
	all, err := c.api.ListWorkspaces(ctx)
	if err != nil {
		return nil, err
	}

	var kept []types.Workspace
	for _, ws := range all {
		team := "Unassigned"
		if p, ok := participants[strings.ToLower(ws.OwnerName)]; ok {
			team = p.TeamName
		}
		if !excludedTeams[team] {
			kept = append(kept, ws)
		}
	}
	if dropped := len(all) - len(kept); dropped > 0 {
		logging.L.Info("filtered excluded-team workspaces", zap.Int("dropped", dropped))
	}

	activity := c.fetchActivity(ctx, kept, now)

	for i := range kept {
		ws := &kept[i]
		builds, err := c.api.ListBuilds(ctx, ws.ID)
		if err != nil {
			// partial data is better than no snapshot
			logging.L.Warn("build history unavailable",
				zap.String("workspace_id", ws.ID), zap.Error(err))
		} else {
			ws.Builds = builds
			total := round2(workspaceUsageHours(builds))
			ws.TotalUsageHours = &total
		}

		handle := strings.ToLower(ws.OwnerName)
		active := round2(activity[handle])
		ws.ActiveHours = &active

		if p, ok := participants[handle]; ok {
			ws.TeamName = p.TeamName
			ws.OwnerFirstName = p.FirstName
			ws.OwnerLastName = p.LastName
		} else {
			ws.TeamName = "Unassigned"
		}
	}
	return kept, nil
}

// fetchActivity queries the insights API from midnight of the earliest
// workspace creation up to the start of the current hour. A failure here
// degrades to zero active hours rather than aborting the run.
func (c *Collector) fetchActivity(ctx context.Context, workspaces []types.Workspace, now time.Time) map[string]float64 {
	earliest := now.UTC()
	for _, ws := range workspaces {
		if !ws.CreatedAt.IsZero() && ws.CreatedAt.Before(earliest) {
			earliest = ws.CreatedAt
		}
	}
	start := earliest.UTC().Truncate(24 * time.Hour)
	end := now.UTC().Truncate(time.Hour)

	activity, err := c.api.UserActivityHours(ctx, start, end)
	if err != nil {
		logging.L.Warn("user activity insights unavailable", zap.Error(err))
		return map[string]float64{}
	}
	lowered := make(map[string]float64, len(activity))
	for user, hours := range activity {
		lowered[strings.ToLower(user)] = hours
	}
	return lowered
}

func (c *Collector) fetchTemplates(ctx context.Context) ([]types.Template, error) {
	templates, err := c.api.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	if len(c.ExcludedTemplates) == 0 {
		return templates, nil
	}
	excluded := map[string]bool{}
	for _, name := range c.ExcludedTemplates {
		excluded[name] = true
	}
	var kept []types.Template
	for _, t := range templates {
		if !excluded[t.Name] {
			kept = append(kept, t)
		}
	}
	return kept, nil
}

// buildUsageHours is the span between the earliest first-connection and the
// latest last-connection across all agents of one build.
func buildUsageHours(b types.Build) float64 {
	var earliest, latest *time.Time
	for _, res := range b.Resources {
		for _, agent := range res.Agents {
			if agent.FirstConnectedAt != nil {
				if earliest == nil || agent.FirstConnectedAt.Before(*earliest) {
					earliest = agent.FirstConnectedAt
				}
			}
			if agent.LastConnectedAt != nil {
				if latest == nil || agent.LastConnectedAt.After(*latest) {
					latest = agent.LastConnectedAt
				}
			}
		}
	}
	if earliest == nil || latest == nil {
		return 0
	}
	return latest.Sub(*earliest).Hours()
}

func workspaceUsageHours(builds []types.Build) float64 {
	var total float64
	for _, b := range builds {
		total += buildUsageHours(b)
	}
	return total
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
