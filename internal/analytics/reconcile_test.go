package analytics

import (
	"testing"

	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

func TestReconcileCapsActiveAtWorkspaceHours(t *testing.T) {
	// insights report 10 active hours for alice, repeated on each of her
	// workspaces, but her live workspaces only account for 3 + 4 hours
	group := []types.WorkspaceMetrics{
		{WorkspaceID: "ws-1", OwnerHandle: "alice", ActiveHours: 10, WorkspaceHours: 3},
		{WorkspaceID: "ws-2", OwnerHandle: "Alice", ActiveHours: 10, WorkspaceHours: 4},
	}
	totals := Reconcile(group, nil)
	if totals.WorkspaceHours != 7 {
		t.Fatalf("workspace hours %v, want 7", totals.WorkspaceHours)
	}
	if totals.ActiveHours != 7 {
		t.Fatalf("active hours %v, want 7 (capped at workspace hours)", totals.ActiveHours)
	}
	if totals.WorkspaceCount != 2 {
		t.Fatalf("count %d", totals.WorkspaceCount)
	}
}

func TestReconcileActiveNotSummedPerWorkspace(t *testing.T) {
	group := []types.WorkspaceMetrics{
		{WorkspaceID: "ws-1", OwnerHandle: "alice", ActiveHours: 5, WorkspaceHours: 20},
		{WorkspaceID: "ws-2", OwnerHandle: "alice", ActiveHours: 5, WorkspaceHours: 20},
	}
	totals := Reconcile(group, nil)
	if totals.ActiveHours != 5 {
		t.Fatalf("active hours %v, want 5 (per-user max, not 10)", totals.ActiveHours)
	}
}

func TestReconcileLedgerOverridesActiveAndCount(t *testing.T) {
	group := []types.WorkspaceMetrics{
		{WorkspaceID: "ws-1", OwnerHandle: "alice", ActiveHours: 2, WorkspaceHours: 6},
	}
	ledger := []types.UsageLedgerEntry{
		{OwnerName: "alice", TotalActiveHours: 40, WorkspaceIDs: []string{"ws-1", "ws-old-1", "ws-old-2"}},
		{OwnerName: "bob", TotalActiveHours: 10, WorkspaceIDs: []string{"ws-b1"}},
	}
	totals := Reconcile(group, ledger)
	if totals.ActiveHours != 50 {
		t.Fatalf("active hours %v, want 50 from ledger", totals.ActiveHours)
	}
	if totals.WorkspaceCount != 4 {
		t.Fatalf("count %d, want 4 distinct ledger ids", totals.WorkspaceCount)
	}
	// total hours stay live-only
	if totals.WorkspaceHours != 6 {
		t.Fatalf("workspace hours %v, want 6", totals.WorkspaceHours)
	}
}

func TestReconcileLedgerCountBeatsLive(t *testing.T) {
	// 9 live workspaces but 12 all-time ids: the all-time count wins
	var group []types.WorkspaceMetrics
	for i := 0; i < 9; i++ {
		group = append(group, types.WorkspaceMetrics{
			WorkspaceID: string(rune('a' + i)), OwnerHandle: "alice", WorkspaceHours: 1,
		})
	}
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	totals := Reconcile(group, []types.UsageLedgerEntry{{OwnerName: "alice", WorkspaceIDs: ids}})
	if totals.WorkspaceCount != 12 {
		t.Fatalf("count %d, want 12", totals.WorkspaceCount)
	}
}

func TestReconcileLedgerWithoutIDsKeepsLiveCount(t *testing.T) {
	group := []types.WorkspaceMetrics{
		{WorkspaceID: "ws-1", OwnerHandle: "alice", WorkspaceHours: 2},
		{WorkspaceID: "ws-2", OwnerHandle: "bob", WorkspaceHours: 3},
	}
	totals := Reconcile(group, []types.UsageLedgerEntry{{OwnerName: "alice", TotalActiveHours: 8}})
	if totals.WorkspaceCount != 2 {
		t.Fatalf("count %d, want live count when the ledger carries no ids", totals.WorkspaceCount)
	}
	if totals.ActiveHours != 8 {
		t.Fatalf("active hours %v", totals.ActiveHours)
	}
}

func TestReconcileEmptyGroup(t *testing.T) {
	totals := Reconcile(nil, nil)
	if totals.WorkspaceHours != 0 || totals.ActiveHours != 0 || totals.WorkspaceCount != 0 {
		t.Fatalf("zero group must yield zero totals: %#v", totals)
	}
}

func TestLedgerFilters(t *testing.T) {
	ledger := map[string]types.UsageLedgerEntry{
		"a_base": {OwnerName: "a", TemplateName: "base", TeamName: "bell-1"},
		"b_base": {OwnerName: "b", TemplateName: "base", TeamName: "telus-1"},
		"a_gpu":  {OwnerName: "a", TemplateName: "gpu", TeamName: "bell-1"},
	}
	if got := LedgerForTeam(ledger, "bell-1"); len(got) != 2 {
		t.Fatalf("team filter %d entries, want 2", len(got))
	}
	if got := LedgerForTemplate(ledger, "gpu"); len(got) != 1 {
		t.Fatalf("template filter %d entries, want 1", len(got))
	}
	if got := LedgerForTeam(nil, "bell-1"); got != nil {
		t.Fatalf("nil ledger yields nil, got %#v", got)
	}
}
