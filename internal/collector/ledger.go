package collector

import (
	"strings"
	"time"

	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

// accumulateUsage folds the current capture into the all-time usage ledger
// and produces the per-workspace usage readings the next run will diff
// against. Ledger entries for deleted workspaces are preserved untouched.
func accumulateUsage(
	workspaces []types.Workspace,
	prevLedger map[string]types.UsageLedgerEntry,
	prevUsage map[string]types.WorkspaceUsage,
	participants map[string]types.Participant,
	now time.Time,
) (map[string]types.UsageLedgerEntry, map[string]types.WorkspaceUsage) {
	now = now.UTC()
	ledger := make(map[string]types.UsageLedgerEntry, len(prevLedger))
	for k, v := range prevLedger {
		ledger[k] = v
	}
	usage := map[string]types.WorkspaceUsage{}

	// active hours are per user; every workspace of a user carries the
	// same reading, so the per-user value is the max across them
	userActive := map[string]float64{}
	for _, ws := range workspaces {
		owner := strings.ToLower(ws.OwnerName)
		if ws.ActiveHours != nil && *ws.ActiveHours > userActive[owner] {
			userActive[owner] = *ws.ActiveHours
		}
	}

	type group struct {
		owner        string
		template     string
		active       float64
		workspaceIDs []string
		hours        map[string]float64
	}
	groups := map[string]*group{}

	for _, ws := range workspaces {
		owner := strings.ToLower(ws.OwnerName)
		if ws.ID == "" || owner == "" || ws.TemplateName == "" {
			continue
		}
		var wsHours float64
		if ws.TotalUsageHours != nil {
			wsHours = *ws.TotalUsageHours
		}
		usage[ws.ID] = types.WorkspaceUsage{
			ActiveHours:    userActive[owner],
			WorkspaceHours: wsHours,
			OwnerName:      owner,
			TemplateName:   ws.TemplateName,
		}

		key := owner + "_" + ws.TemplateName
		g, ok := groups[key]
		if !ok {
			g = &group{
				owner:    owner,
				template: ws.TemplateName,
				active:   userActive[owner],
				hours:    map[string]float64{},
			}
			groups[key] = g
		}
		g.workspaceIDs = append(g.workspaceIDs, ws.ID)
		g.hours[ws.ID] = wsHours
	}

	for key, g := range groups {
		// all of a user's workspaces carried the same active reading, so
		// any previously seen workspace gives the prior value
		var prevActive float64
		for _, id := range g.workspaceIDs {
			if u, ok := prevUsage[id]; ok {
				prevActive = u.ActiveHours
				break
			}
		}
		activeDelta := g.active - prevActive
		if activeDelta < 0 {
			activeDelta = 0
		}
		var hoursDelta float64
		for _, id := range g.workspaceIDs {
			d := g.hours[id] - prevUsage[id].WorkspaceHours
			if d > 0 {
				hoursDelta += d
			}
		}

		team := teamFor(g.owner, key, participants, ledger)

		if entry, ok := ledger[key]; ok {
			entry.TotalActiveHours += activeDelta
			entry.TotalWorkspaceHours += hoursDelta
			entry.TeamName = team
			entry.LastUpdated = now
			entry.WorkspaceIDs = mergeIDs(entry.WorkspaceIDs, g.workspaceIDs)
			ledger[key] = entry
		} else {
			var total float64
			for _, h := range g.hours {
				total += h
			}
			ledger[key] = types.UsageLedgerEntry{
				OwnerName:           g.owner,
				TemplateName:        g.template,
				TeamName:            team,
				TotalActiveHours:    g.active,
				TotalWorkspaceHours: total,
				WorkspaceIDs:        g.workspaceIDs,
				FirstSeen:           now,
				LastUpdated:         now,
			}
		}
	}
	return ledger, usage
}

// teamFor prefers the directory, falls back to the existing ledger entry
// and finally to Unassigned.
func teamFor(owner, key string, participants map[string]types.Participant, ledger map[string]types.UsageLedgerEntry) string {
	if p, ok := participants[owner]; ok && p.TeamName != "" {
		return p.TeamName
	}
	if entry, ok := ledger[key]; ok && entry.TeamName != "" {
		return entry.TeamName
	}
	return "Unassigned"
}

func mergeIDs(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, id := range existing {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range incoming {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
