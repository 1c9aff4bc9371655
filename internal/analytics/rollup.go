package analytics

import (
	"regexp"
	"sort"

	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

// Teams that are buckets rather than numbered company teams. They pass
// through company-name extraction unchanged.
var sentinelTeams = map[string]struct{}{
	"facilitators": {},
	"Unassigned":   {},
}

// companyPattern matches "<letters-and-hyphens>-<digits>", e.g. "acme-1"
// or "scotiabank-2-tangerine". The captured prefix is the company name.
var companyPattern = regexp.MustCompile(`^([a-z-]+)-\d+`)

// CompanyName extracts the company from a numbered team name. Names that
// violate the convention come back unchanged; that is the fallback, not an
// error.
func CompanyName(teamName string) string {
	if _, ok := sentinelTeams[teamName]; ok {
		return teamName
	}
	if m := companyPattern.FindStringSubmatch(teamName); m != nil {
		return m[1]
	}
	return teamName
}

// RollupCompanies groups a per-template team breakdown into company-level
// aggregates, sorted by company name. It is applied on demand, never to
// the global team list.
func RollupCompanies(teams []types.TeamMetrics) []types.CompanyMetrics {
	byCompany := map[string][]types.TeamMetrics{}
	for _, t := range teams {
		company := CompanyName(t.TeamName)
		byCompany[company] = append(byCompany[company], t)
	}

	out := make([]types.CompanyMetrics, 0, len(byCompany))
	for company, group := range byCompany {
		c := types.CompanyMetrics{
			CompanyName:          company,
			TemplateDistribution: map[string]int{},
		}

		// Members merge by handle: keep the most recently active record's
		// metadata but sum workspace counts across constituent teams.
		merged := map[string]types.TeamMember{}
		for _, t := range group {
			c.Teams = append(c.Teams, t.TeamName)
			c.TotalWorkspaces += t.TotalWorkspaces
			c.TotalWorkspaceHours += t.TotalWorkspaceHours
			c.TotalActiveHours += t.TotalActiveHours
			for tpl, n := range t.TemplateDistribution {
				c.TemplateDistribution[tpl] += n
			}
			for _, m := range t.Members {
				if cur, ok := merged[m.Handle]; ok {
					count := cur.WorkspaceCount + m.WorkspaceCount
					if m.LastActive.After(cur.LastActive) {
						cur = m
					}
					cur.WorkspaceCount = count
					merged[m.Handle] = cur
				} else {
					merged[m.Handle] = m
				}
			}
		}
		sort.Strings(c.Teams)

		// Active days here union merged member last-active dates only.
		// Team-level aggregation unions workspace created/last-active
		// dates instead; the two definitions intentionally stay apart.
		dates := map[string]struct{}{}
		for _, m := range merged {
			c.Members = append(c.Members, m)
			dates[dateKey(m.LastActive)] = struct{}{}
			if m.ActivityStatus == types.ActivityActive {
				c.UniqueActiveUsers++
			}
		}
		c.ActiveDays = len(dates)
		sort.Slice(c.Members, func(i, j int) bool {
			if !c.Members[i].LastActive.Equal(c.Members[j].LastActive) {
				return c.Members[i].LastActive.After(c.Members[j].LastActive)
			}
			return c.Members[i].Handle < c.Members[j].Handle
		})

		if c.TotalWorkspaces > 0 {
			c.AvgWorkspaceHours = round1(float64(c.TotalWorkspaceHours) / float64(c.TotalWorkspaces))
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CompanyName < out[j].CompanyName })
	return out
}
