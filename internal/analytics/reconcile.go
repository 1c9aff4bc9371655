package analytics

import (
	"strings"

	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

// GroupTotals is the reconciled (total, active, count) triple for one
// group of workspaces — a team, a template, or the whole platform.
type GroupTotals struct {
	WorkspaceHours float64
	ActiveHours    float64
	WorkspaceCount int
}

// Reconcile computes logically consistent usage totals for a group of
// normalized workspaces. ledger holds the all-time usage entries already
// filtered to the same group; pass nil when no ledger is available.
//
// Total workspace hours always come from the live snapshot: no all-time
// equivalent exists for raw hours, so totals undercount relative to active
// hours once workspaces have been deleted. Callers must treat that as a
// known limitation, not a bug.
func Reconcile(group []types.WorkspaceMetrics, ledger []types.UsageLedgerEntry) GroupTotals {
	t := GroupTotals{WorkspaceCount: len(group)}
	for _, m := range group {
		t.WorkspaceHours += m.WorkspaceHours
	}

	if len(ledger) > 0 {
		// Ledger entries are already per-owner all-time aggregates, so no
		// further per-owner dedup applies here.
		ids := map[string]struct{}{}
		for _, e := range ledger {
			t.ActiveHours += e.TotalActiveHours
			for _, id := range e.WorkspaceIDs {
				if id != "" {
					ids[id] = struct{}{}
				}
			}
		}
		if len(ids) > 0 {
			t.WorkspaceCount = len(ids)
		}
		return t
	}

	// Active hours are reported per user and repeated on each of that
	// user's workspaces, so summing per workspace double counts. Take the
	// max per owner, then cap at the owner's summed workspace hours to
	// absorb workspaces deleted after accruing active time. The cap is the
	// invariant that keeps active <= total for the group.
	ownerActive := map[string]float64{}
	ownerTotal := map[string]float64{}
	for _, m := range group {
		owner := strings.ToLower(m.OwnerHandle)
		if m.ActiveHours > ownerActive[owner] {
			ownerActive[owner] = m.ActiveHours
		}
		ownerTotal[owner] += m.WorkspaceHours
	}
	for owner, active := range ownerActive {
		if total := ownerTotal[owner]; active > total {
			active = total
		}
		t.ActiveHours += active
	}
	return t
}

// LedgerForTeam filters ledger entries whose team matches.
func LedgerForTeam(ledger map[string]types.UsageLedgerEntry, team string) []types.UsageLedgerEntry {
	return filterLedger(ledger, func(e types.UsageLedgerEntry) bool { return e.TeamName == team })
}

// LedgerForTemplate filters ledger entries whose template name matches.
func LedgerForTemplate(ledger map[string]types.UsageLedgerEntry, templateName string) []types.UsageLedgerEntry {
	return filterLedger(ledger, func(e types.UsageLedgerEntry) bool { return e.TemplateName == templateName })
}

func filterLedger(ledger map[string]types.UsageLedgerEntry, keep func(types.UsageLedgerEntry) bool) []types.UsageLedgerEntry {
	if len(ledger) == 0 {
		return nil
	}
	var out []types.UsageLedgerEntry
	for _, e := range ledger {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
