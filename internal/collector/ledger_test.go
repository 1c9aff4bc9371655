package collector

import (
	"testing"
	"time"

	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

func ptrF(v float64) *float64 { return &v }

func TestAccumulateUsageFirstRun(t *testing.T) {
	now := time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC)
	workspaces := []types.Workspace{
		{ID: "ws-1", OwnerName: "Alice", TemplateName: "base", ActiveHours: ptrF(3), TotalUsageHours: ptrF(5)},
		{ID: "ws-2", OwnerName: "alice", TemplateName: "base", ActiveHours: ptrF(3), TotalUsageHours: ptrF(2)},
		{ID: "ws-3", OwnerName: "bob", TemplateName: "gpu", ActiveHours: ptrF(1), TotalUsageHours: ptrF(4)},
	}
	participants := map[string]types.Participant{
		"alice": {Handle: "alice", TeamName: "bell-1"},
	}

	ledger, usage := accumulateUsage(workspaces, nil, nil, participants, now)

	entry := ledger["alice_base"]
	if entry.TotalActiveHours != 3 {
		t.Fatalf("active hours %v, want 3 (per-user, not summed per workspace)", entry.TotalActiveHours)
	}
	if entry.TotalWorkspaceHours != 7 {
		t.Fatalf("workspace hours %v, want 7", entry.TotalWorkspaceHours)
	}
	if len(entry.WorkspaceIDs) != 2 {
		t.Fatalf("workspace ids %v", entry.WorkspaceIDs)
	}
	if entry.TeamName != "bell-1" {
		t.Fatalf("team %q", entry.TeamName)
	}
	if !entry.FirstSeen.Equal(now) || !entry.LastUpdated.Equal(now) {
		t.Fatalf("timestamps %v %v", entry.FirstSeen, entry.LastUpdated)
	}

	if ledger["bob_gpu"].TeamName != "Unassigned" {
		t.Fatalf("unknown owner should be Unassigned, got %q", ledger["bob_gpu"].TeamName)
	}
	if usage["ws-1"].WorkspaceHours != 5 || usage["ws-1"].ActiveHours != 3 {
		t.Fatalf("usage reading %#v", usage["ws-1"])
	}
}

func TestAccumulateUsageDeltas(t *testing.T) {
	now := time.Date(2026, 8, 26, 6, 0, 0, 0, time.UTC)
	firstSeen := now.AddDate(0, 0, -10)
	prevLedger := map[string]types.UsageLedgerEntry{
		"alice_base": {
			OwnerName: "alice", TemplateName: "base", TeamName: "bell-1",
			TotalActiveHours: 20, TotalWorkspaceHours: 40,
			WorkspaceIDs: []string{"ws-old", "ws-1"},
			FirstSeen:    firstSeen, LastUpdated: firstSeen,
		},
	}
	prevUsage := map[string]types.WorkspaceUsage{
		"ws-1": {ActiveHours: 10, WorkspaceHours: 6, OwnerName: "alice", TemplateName: "base"},
	}
	workspaces := []types.Workspace{
		// active went 10 -> 12, hours 6 -> 9
		{ID: "ws-1", OwnerName: "alice", TemplateName: "base", ActiveHours: ptrF(12), TotalUsageHours: ptrF(9)},
		// brand new workspace for the same pair
		{ID: "ws-2", OwnerName: "alice", TemplateName: "base", ActiveHours: ptrF(12), TotalUsageHours: ptrF(1)},
	}

	ledger, _ := accumulateUsage(workspaces, prevLedger, prevUsage, nil, now)

	entry := ledger["alice_base"]
	if entry.TotalActiveHours != 22 {
		t.Fatalf("active hours %v, want 22 (20 + delta 2)", entry.TotalActiveHours)
	}
	if entry.TotalWorkspaceHours != 44 {
		t.Fatalf("workspace hours %v, want 44 (40 + 3 + 1)", entry.TotalWorkspaceHours)
	}
	if len(entry.WorkspaceIDs) != 3 {
		t.Fatalf("workspace ids %v, want union of old and new", entry.WorkspaceIDs)
	}
	if !entry.FirstSeen.Equal(firstSeen) {
		t.Fatalf("first seen must survive updates, got %v", entry.FirstSeen)
	}
	if !entry.LastUpdated.Equal(now) {
		t.Fatalf("last updated %v", entry.LastUpdated)
	}
	// team falls back to the ledger when the directory has no entry
	if entry.TeamName != "bell-1" {
		t.Fatalf("team %q", entry.TeamName)
	}
}

func TestAccumulateUsageNegativeDeltaClamped(t *testing.T) {
	now := time.Now().UTC()
	prevLedger := map[string]types.UsageLedgerEntry{
		"alice_base": {OwnerName: "alice", TemplateName: "base", TotalActiveHours: 8, TotalWorkspaceHours: 12, FirstSeen: now, LastUpdated: now},
	}
	prevUsage := map[string]types.WorkspaceUsage{
		"ws-1": {ActiveHours: 8, WorkspaceHours: 12},
	}
	// readings went backwards (workspace rebuilt); accumulation must not shrink
	workspaces := []types.Workspace{
		{ID: "ws-1", OwnerName: "alice", TemplateName: "base", ActiveHours: ptrF(2), TotalUsageHours: ptrF(3)},
	}

	ledger, _ := accumulateUsage(workspaces, prevLedger, prevUsage, nil, now)
	entry := ledger["alice_base"]
	if entry.TotalActiveHours != 8 || entry.TotalWorkspaceHours != 12 {
		t.Fatalf("negative deltas must clamp to zero, got %v/%v", entry.TotalActiveHours, entry.TotalWorkspaceHours)
	}
}

func TestAccumulateUsagePreservesDeletedEntries(t *testing.T) {
	now := time.Now().UTC()
	prevLedger := map[string]types.UsageLedgerEntry{
		"ghost_base": {OwnerName: "ghost", TemplateName: "base", TotalActiveHours: 30, TotalWorkspaceHours: 50, WorkspaceIDs: []string{"ws-gone"}},
	}

	ledger, usage := accumulateUsage(nil, prevLedger, nil, nil, now)
	if entry := ledger["ghost_base"]; entry.TotalActiveHours != 30 {
		t.Fatalf("deleted-user entry lost: %#v", entry)
	}
	if len(usage) != 0 {
		t.Fatalf("no live workspaces means empty usage snapshot, got %#v", usage)
	}
}

func TestAccumulateUsageSkipsIncompleteRecords(t *testing.T) {
	now := time.Now().UTC()
	workspaces := []types.Workspace{
		{ID: "", OwnerName: "alice", TemplateName: "base"},
		{ID: "ws-1", OwnerName: "", TemplateName: "base"},
		{ID: "ws-2", OwnerName: "alice", TemplateName: ""},
	}
	ledger, usage := accumulateUsage(workspaces, nil, nil, nil, now)
	if len(ledger) != 0 || len(usage) != 0 {
		t.Fatalf("incomplete records must be skipped: %#v %#v", ledger, usage)
	}
}
