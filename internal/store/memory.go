package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

type memSnapshot struct {
	id   string
	snap types.Snapshot
}

type Memory struct {
	mu           sync.RWMutex
	snapshots    []memSnapshot
	participants map[string]types.Participant // lowercased handle
}

func NewMemory() *Memory {
	return &Memory{participants: map[string]types.Participant{}}
}

func (m *Memory) Close(ctx context.Context) error { return nil }

func (m *Memory) SaveSnapshot(ctx context.Context, snap types.Snapshot) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.Timestamp = stamp(snap.Timestamp)
	id := uuid.NewString()
	m.snapshots = append(m.snapshots, memSnapshot{id: id, snap: snap})
	return id, nil
}

func (m *Memory) LatestSnapshot(ctx context.Context) (types.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.snapshots) == 0 {
		return types.Snapshot{}, ErrNotFound
	}
	latest := m.snapshots[0]
	for _, s := range m.snapshots[1:] {
		if s.snap.Timestamp.After(latest.snap.Timestamp) {
			latest = s
		}
	}
	return latest.snap, nil
}

func (m *Memory) GetSnapshot(ctx context.Context, id string) (types.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.snapshots {
		if s.id == id {
			return s.snap, nil
		}
	}
	return types.Snapshot{}, ErrNotFound
}

func (m *Memory) ListSnapshots(ctx context.Context, limit int) ([]types.SnapshotMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.SnapshotMeta, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, types.SnapshotMeta{
			ID:             s.id,
			Timestamp:      s.snap.Timestamp,
			WorkspaceCount: len(s.snap.Workspaces),
			TemplateCount:  len(s.snap.Templates),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) UpsertParticipants(ctx context.Context, ps []types.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range ps {
		if p.Handle == "" {
			continue
		}
		m.participants[strings.ToLower(p.Handle)] = p
	}
	return nil
}

func (m *Memory) ListParticipants(ctx context.Context) ([]types.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Participant, 0, len(m.participants))
	for _, p := range m.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

func (m *Memory) GetParticipant(ctx context.Context, handle string) (types.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.participants[strings.ToLower(handle)]
	if !ok {
		return types.Participant{}, ErrNotFound
	}
	return p, nil
}
