package store

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

// Store defines the persistence boundary for snapshots and participants.
type Store interface {
	Close(ctx context.Context) error

	// Snapshots
	SaveSnapshot(ctx context.Context, snap types.Snapshot) (string, error)
	LatestSnapshot(ctx context.Context) (types.Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (types.Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]types.SnapshotMeta, error)

	// Participants
	UpsertParticipants(ctx context.Context, ps []types.Participant) error
	ListParticipants(ctx context.Context) ([]types.Participant, error)
	GetParticipant(ctx context.Context, handle string) (types.Participant, error)
}

var ErrNotFound = errors.New("not found")

// EnvOrMemory returns a postgres store when DATABASE_URL is set and the
// in-memory store otherwise.
func EnvOrMemory(ctx context.Context) (Store, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return NewPostgres(ctx, dsn)
	}
	return NewMemory(), nil
}

// Helper to stamp time fields for idempotent saves
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
