package collector

import (
	"strings"
	"time"

	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

// accumulateEngagement merges the current workspaces' build activity into
// the accumulated per-date engagement sets. Dates recorded by earlier runs
// survive even after their workspaces are deleted.
func accumulateEngagement(
	workspaces []types.Workspace,
	prev map[string]types.EngagementDay,
) map[string]types.EngagementDay {
	users := map[string]map[string]bool{}
	wss := map[string]map[string]bool{}

	for date, day := range prev {
		users[date] = toSet(day.UniqueUsers)
		wss[date] = toSet(day.ActiveWorkspaces)
	}

	mark := func(date, owner, workspaceID string) {
		if users[date] == nil {
			users[date] = map[string]bool{}
			wss[date] = map[string]bool{}
		}
		users[date][owner] = true
		wss[date][workspaceID] = true
	}

	for _, ws := range workspaces {
		owner := strings.ToLower(ws.OwnerName)
		for _, b := range ws.Builds {
			if b.Transition == "start" && !b.CreatedAt.IsZero() {
				mark(dateKey(b.CreatedAt), owner, ws.ID)
			}
			for _, res := range b.Resources {
				for _, agent := range res.Agents {
					if agent.FirstConnectedAt != nil {
						mark(dateKey(*agent.FirstConnectedAt), owner, ws.ID)
					}
					if agent.LastConnectedAt != nil {
						mark(dateKey(*agent.LastConnectedAt), owner, ws.ID)
					}
				}
			}
		}
	}

	out := make(map[string]types.EngagementDay, len(users))
	for date := range users {
		out[date] = types.EngagementDay{
			UniqueUsers:      toList(users[date]),
			ActiveWorkspaces: toList(wss[date]),
		}
	}
	return out
}

func dateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

func toList(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for it := range set {
		out = append(out, it)
	}
	return out
}
