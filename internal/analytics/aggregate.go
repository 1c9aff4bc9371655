package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

func roundHours(f float64) int {
	return int(math.Round(f))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func dateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// TeamMetrics folds normalized workspaces into per-team aggregates, sorted
// by team name. Teams that exist only in the ledger (all their workspaces
// deleted) still get an entry.
func TeamMetrics(workspaces []types.WorkspaceMetrics, ledger map[string]types.UsageLedgerEntry) []types.TeamMetrics {
	byTeam := map[string][]types.WorkspaceMetrics{}
	for _, m := range workspaces {
		byTeam[m.TeamName] = append(byTeam[m.TeamName], m)
	}
	for _, e := range ledger {
		if _, ok := byTeam[e.TeamName]; !ok {
			byTeam[e.TeamName] = nil
		}
	}

	out := make([]types.TeamMetrics, 0, len(byTeam))
	for team, group := range byTeam {
		totals := Reconcile(group, LedgerForTeam(ledger, team))

		members := buildMembers(group)
		activeUsers := 0
		for _, m := range members {
			if m.ActivityStatus == types.ActivityActive {
				activeUsers++
			}
		}

		// Active days union workspace creation and last-active calendar
		// dates. The company roll-up uses a different definition; see
		// rollup.go.
		dates := map[string]struct{}{}
		for _, m := range group {
			dates[dateKey(m.CreatedAt)] = struct{}{}
			dates[dateKey(m.LastActive)] = struct{}{}
		}

		dist := map[string]int{}
		for _, m := range group {
			dist[m.TemplateDisplayName]++
		}

		avg := 0.0
		if totals.WorkspaceCount > 0 {
			avg = totals.WorkspaceHours / float64(totals.WorkspaceCount)
		}

		out = append(out, types.TeamMetrics{
			TeamName:             team,
			TotalWorkspaces:      totals.WorkspaceCount,
			UniqueActiveUsers:    activeUsers,
			TotalWorkspaceHours:  roundHours(totals.WorkspaceHours),
			TotalActiveHours:     roundHours(totals.ActiveHours),
			AvgWorkspaceHours:    round1(avg),
			ActiveDays:           len(dates),
			TemplateDistribution: dist,
			Members:              members,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TeamName < out[j].TeamName })
	return out
}

// buildMembers produces one entry per distinct owner: workspace count, the
// most recent last-active date, and that workspace's classification.
// Sorted most recently active first.
func buildMembers(group []types.WorkspaceMetrics) []types.TeamMember {
	latest := map[string]types.WorkspaceMetrics{}
	counts := map[string]int{}
	for _, m := range group {
		counts[m.OwnerHandle]++
		if cur, ok := latest[m.OwnerHandle]; !ok || m.LastActive.After(cur.LastActive) {
			latest[m.OwnerHandle] = m
		}
	}
	members := make([]types.TeamMember, 0, len(latest))
	for owner, m := range latest {
		members = append(members, types.TeamMember{
			Handle:         owner,
			Name:           m.OwnerName,
			WorkspaceCount: counts[owner],
			LastActive:     m.LastActive,
			ActivityStatus: m.ActivityStatus,
		})
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].LastActive.Equal(members[j].LastActive) {
			return members[i].LastActive.After(members[j].LastActive)
		}
		return members[i].Handle < members[j].Handle
	})
	return members
}

// TemplateMetrics folds normalized workspaces into per-template
// aggregates, one entry per known template in input order. Templates with
// no live workspaces still report ledger-derived counts.
func TemplateMetrics(workspaces []types.WorkspaceMetrics, templates []types.Template, ledger map[string]types.UsageLedgerEntry) []types.TemplateMetrics {
	byTemplate := map[string][]types.WorkspaceMetrics{}
	for _, m := range workspaces {
		if m.TemplateID != "" {
			byTemplate[m.TemplateID] = append(byTemplate[m.TemplateID], m)
		}
	}

	out := make([]types.TemplateMetrics, 0, len(templates))
	for _, tpl := range templates {
		group := byTemplate[tpl.ID]
		totals := Reconcile(group, LedgerForTemplate(ledger, tpl.Name))

		activeWS := 0
		activeUsers := map[string]struct{}{}
		dist := map[string]int{}
		for _, m := range group {
			if m.ActivityStatus == types.ActivityActive {
				activeWS++
				activeUsers[strings.ToLower(m.OwnerHandle)] = struct{}{}
			}
			dist[m.TeamName]++
		}

		avg := 0.0
		if totals.WorkspaceCount > 0 {
			avg = totals.WorkspaceHours / float64(totals.WorkspaceCount)
		}

		display := tpl.DisplayName
		if display == "" {
			display = tpl.Name
		}

		out = append(out, types.TemplateMetrics{
			TemplateID:          tpl.ID,
			TemplateName:        tpl.Name,
			TemplateDisplayName: display,
			TotalWorkspaces:     totals.WorkspaceCount,
			ActiveWorkspaces:    activeWS,
			UniqueActiveUsers:   len(activeUsers),
			TotalWorkspaceHours: roundHours(totals.WorkspaceHours),
			TotalActiveHours:    roundHours(totals.ActiveHours),
			AvgWorkspaceHours:   round1(avg),
			TeamDistribution:    dist,
		})
	}
	return out
}

// PlatformMetrics folds the whole normalized set into the platform view.
// The all-time workspace count unions live ids with ledger ids so it stays
// consistent with the per-template all-time counts.
func PlatformMetrics(workspaces []types.WorkspaceMetrics, teams []types.TeamMetrics, ledger map[string]types.UsageLedgerEntry) types.PlatformMetrics {
	allIDs := map[string]struct{}{}
	users := map[string]struct{}{}
	templates := map[string]string{} // name -> display name
	templateCounts := map[string]int{}

	var active, inactive, stale, healthy int
	var daysSum int
	for _, m := range workspaces {
		if m.WorkspaceID != "" {
			allIDs[m.WorkspaceID] = struct{}{}
		}
		users[strings.ToLower(m.OwnerHandle)] = struct{}{}
		if m.TemplateName != "" {
			templates[m.TemplateName] = m.TemplateDisplayName
			templateCounts[m.TemplateName]++
		}
		switch m.ActivityStatus {
		case types.ActivityActive:
			active++
		case types.ActivityInactive:
			inactive++
		default:
			stale++
		}
		if m.HealthStatus == types.HealthHealthy {
			healthy++
		}
		daysSum += m.DaysSinceActive
	}
	for _, e := range ledger {
		for _, id := range e.WorkspaceIDs {
			if id != "" {
				allIDs[id] = struct{}{}
			}
		}
	}

	var popular *types.TemplatePopularity
	for _, name := range sortedKeys(templateCounts) {
		count := templateCounts[name]
		// Ties break lexicographically by template name; the iteration is
		// over sorted keys so the first max wins deterministically.
		if popular == nil || count > popular.Count {
			popular = &types.TemplatePopularity{
				Name:        name,
				DisplayName: templates[name],
				Count:       count,
			}
		}
	}

	healthyRate := 0.0
	avgDays := 0.0
	if n := len(workspaces); n > 0 {
		healthyRate = round1(float64(healthy) / float64(n) * 100)
		avgDays = round1(float64(daysSum) / float64(n))
	}

	return types.PlatformMetrics{
		TotalWorkspaces:     len(allIDs),
		TotalUsers:          len(users),
		TotalTeams:          len(teams),
		ActiveWorkspaces:    active,
		InactiveWorkspaces:  inactive,
		StaleWorkspaces:     stale,
		TotalTemplates:      len(templates),
		MostPopularTemplate: popular,
		HealthyRate:         healthyRate,
		AvgDaysSinceActive:  avgDays,
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
