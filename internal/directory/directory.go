package directory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vectorinstitute/workspace-insights/internal/cache"
	"github.com/vectorinstitute/workspace-insights/internal/metrics"
	"github.com/vectorinstitute/workspace-insights/internal/store"
	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

// Directory resolves workspace owners to enrolled participants. Owners with
// no directory entry belong to the "Unassigned" team.
type Directory interface {
	Lookup(ctx context.Context, handle string) (types.Participant, error)
	List(ctx context.Context) ([]types.Participant, error)
}

const unassignedTeam = "Unassigned"

// StoreDirectory serves participant records straight from the Store.
type StoreDirectory struct {
	store store.Store
}

func NewStoreDirectory(s store.Store) *StoreDirectory {
	return &StoreDirectory{store: s}
}

func (d *StoreDirectory) Lookup(ctx context.Context, handle string) (types.Participant, error) {
	p, err := d.store.GetParticipant(ctx, handle)
	if err == store.ErrNotFound {
		return types.Participant{Handle: handle, TeamName: unassignedTeam}, nil
	}
	return p, err
}

func (d *StoreDirectory) List(ctx context.Context) ([]types.Participant, error) {
	return d.store.ListParticipants(ctx)
}

// Cached wraps a Directory with a TTL cache so hot lookups skip the store.
type Cached struct {
	next  Directory
	cache cache.Cache
	ttl   time.Duration
}

func NewCached(next Directory, c cache.Cache, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: c, ttl: ttl}
}

func (c *Cached) Lookup(ctx context.Context, handle string) (types.Participant, error) {
	key := "participant:" + handle
	if raw, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		var p types.Participant
		if err := json.Unmarshal(raw, &p); err == nil {
			metrics.CacheHitsTotal.WithLabelValues("hit").Inc()
			return p, nil
		}
	}
	metrics.CacheHitsTotal.WithLabelValues("miss").Inc()
	p, err := c.next.Lookup(ctx, handle)
	if err != nil {
		return types.Participant{}, err
	}
	if raw, err := json.Marshal(p); err == nil {
		_ = c.cache.Set(ctx, key, raw, c.ttl)
	}
	return p, nil
}

func (c *Cached) List(ctx context.Context) ([]types.Participant, error) {
	return c.next.List(ctx)
}
