package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

// engagementWindowDays is the fixed length of the trailing daily series,
// current day included.
const engagementWindowDays = 60

// EngagementTimeline scans the full build history of every raw workspace
// and produces the trailing daily series of distinct engaged users and
// active workspaces. A user or workspace counts at most once per day no
// matter how many qualifying events fall on it.
func EngagementTimeline(workspaces []types.Workspace, now time.Time) []types.DailyEngagement {
	users := map[string]map[string]struct{}{}
	wss := map[string]map[string]struct{}{}
	for i := 0; i < engagementWindowDays; i++ {
		day := dateKey(now.AddDate(0, 0, -i))
		users[day] = map[string]struct{}{}
		wss[day] = map[string]struct{}{}
	}

	mark := func(day, owner, wsID string) {
		if set, ok := users[day]; ok {
			set[owner] = struct{}{}
			wss[day][wsID] = struct{}{}
		}
	}

	for _, ws := range workspaces {
		owner := strings.ToLower(ws.OwnerName)
		for _, build := range ws.Builds {
			if build.Transition == "start" && !build.CreatedAt.IsZero() {
				mark(dateKey(build.CreatedAt), owner, ws.ID)
			}
			for _, res := range build.Resources {
				for _, agent := range res.Agents {
					var firstDay string
					if agent.FirstConnectedAt != nil {
						firstDay = dateKey(*agent.FirstConnectedAt)
						mark(firstDay, owner, ws.ID)
					}
					if agent.LastConnectedAt != nil {
						if day := dateKey(*agent.LastConnectedAt); day != firstDay {
							mark(day, owner, ws.ID)
						}
					}
				}
			}
		}
	}

	out := make([]types.DailyEngagement, 0, engagementWindowDays)
	for day := range users {
		out = append(out, types.DailyEngagement{
			Date:             day,
			UniqueUsers:      len(users[day]),
			ActiveWorkspaces: len(wss[day]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
