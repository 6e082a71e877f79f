// Package directory maintains the id -> {name, email} lookup tables
// used to humanize numeric references in ticket records. The tables
// are read-only between refreshes and a refresh replaces them
// wholesale; lookups never observe a partial view.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/slaffer-au/searchbot/internal/domain"
)

type tables struct {
	users map[int64]domain.DirectoryEntry
	orgs  map[int64]domain.DirectoryEntry
}

// Cache holds the user and organization directories. It is the only
// state shared across message-processing cycles, and it is swapped as
// a whole pointer, so lookups need no lock.
type Cache struct {
	source  domain.DirectorySource
	store   *Store
	logger  *slog.Logger
	current atomic.Pointer[tables]
}

// New creates an empty Cache. Populate it with Load or Refresh before
// serving lookups; misses against the empty cache are just misses.
func New(source domain.DirectorySource, store *Store, logger *slog.Logger) *Cache {
	c := &Cache{source: source, store: store, logger: logger}
	c.current.Store(&tables{
		users: map[int64]domain.DirectoryEntry{},
		orgs:  map[int64]domain.DirectoryEntry{},
	})
	return c
}

// Load populates the cache from the persisted snapshot, or refreshes
// from the directory source when force is set or the snapshot is
// missing, empty, or unusable.
func (c *Cache) Load(ctx context.Context, force bool) error {
	if !force && c.store != nil {
		users, orgs, err := c.store.Load(ctx)
		if err == nil && len(users)+len(orgs) > 0 {
			c.swap(users, orgs)
			c.logger.Info("directory snapshot loaded", "users", len(users), "organizations", len(orgs))
			return nil
		}
		if err != nil && !errors.Is(err, ErrNoSnapshot) {
			c.logger.Warn("directory snapshot unusable, forcing refresh", "err", err)
		}
	}
	return c.Refresh(ctx)
}

// Refresh fetches the complete user and organization listings, swaps
// the in-memory tables atomically, then persists the new snapshot.
// A persistence failure is logged, not fatal: the refreshed tables
// are already serving lookups.
func (c *Cache) Refresh(ctx context.Context) error {
	users, err := c.source.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("directory refresh: list users: %w", err)
	}
	orgs, err := c.source.ListOrganizations(ctx)
	if err != nil {
		return fmt.Errorf("directory refresh: list organizations: %w", err)
	}

	c.swap(users, orgs)
	c.logger.Info("directory refreshed", "users", len(users), "organizations", len(orgs))

	if c.store != nil {
		if err := c.store.Save(ctx, users, orgs); err != nil {
			c.logger.Warn("directory snapshot not persisted", "err", err)
		}
	}
	return nil
}

// LookupUser resolves a user id. A miss is never an error.
func (c *Cache) LookupUser(id int64) (domain.DirectoryEntry, bool) {
	e, ok := c.current.Load().users[id]
	return e, ok
}

// LookupOrganization resolves an organization id.
func (c *Cache) LookupOrganization(id int64) (domain.DirectoryEntry, bool) {
	e, ok := c.current.Load().orgs[id]
	return e, ok
}

func (c *Cache) swap(users, orgs []domain.DirectoryEntry) {
	next := &tables{
		users: make(map[int64]domain.DirectoryEntry, len(users)),
		orgs:  make(map[int64]domain.DirectoryEntry, len(orgs)),
	}
	for _, u := range users {
		next.users[u.ID] = u
	}
	for _, o := range orgs {
		next.orgs[o.ID] = o
	}
	c.current.Store(next)
}
