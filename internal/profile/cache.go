package profile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

// Repository is the persistent, authoritative copy of risk profiles
type Repository interface {
	GetProfile(ctx context.Context, accountID uuid.UUID) (*domain.UserRiskProfile, error)
	UpsertProfile(ctx context.Context, p *domain.UserRiskProfile) error
	BuildProfileFromHistory(ctx context.Context, accountID uuid.UUID) (*domain.UserRiskProfile, error)
}

type entry struct {
	mu         sync.Mutex // serializes read-modify-write per account
	profile    *domain.UserRiskProfile
	lastAccess time.Time
}

// Cache is the fast in-memory profile store. Profiles are created lazily
// on first transaction, updated after every transaction with per-account
// serialization, and evicted after an idle TTL; the repository copy
// remains authoritative.
type Cache struct {
	repo  Repository
	log   *logger.Logger
	clock func() time.Time

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

// NewCache creates a profile cache over the given repository
func NewCache(repo Repository, log *logger.Logger) *Cache {
	return &Cache{
		repo:    repo,
		log:     log.Named("profile_cache"),
		clock:   time.Now,
		entries: make(map[uuid.UUID]*entry),
	}
}

// WithClock overrides the cache clock; used by scheduler tests
func (c *Cache) WithClock(clock func() time.Time) *Cache {
	c.clock = clock
	return c
}

// Get returns a point-in-time copy of the account's profile, loading or
// lazily building it when absent. Detectors receive the copy so a
// concurrent update never mutates an in-flight evaluation's view.
func (c *Cache) Get(ctx context.Context, accountID uuid.UUID) (*domain.UserRiskProfile, error) {
	e, err := c.entryFor(ctx, accountID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.profile == nil {
		// A concurrent loader failed after we picked up its placeholder
		return nil, domain.ErrProfileStoreUnavailable
	}
	e.lastAccess = c.clock()
	return e.profile.Clone(), nil
}

// Record folds a transaction and its assessment total into the account's
// profile. Updates for the same account are serialized on the entry lock;
// different accounts proceed concurrently.
func (c *Cache) Record(ctx context.Context, tx *domain.Transaction, totalScore float64) error {
	e, err := c.entryFor(ctx, tx.AccountID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.profile == nil {
		return domain.ErrProfileStoreUnavailable
	}

	e.profile.Observe(tx)
	e.profile.ObserveAssessment(totalScore)
	e.lastAccess = c.clock()

	if err := c.repo.UpsertProfile(ctx, e.profile); err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}
	return nil
}

// EvictIdle drops cache entries idle longer than ttl and returns the
// eviction count. The persisted copies stay authoritative.
func (c *Cache) EvictIdle(ttl time.Duration) int {
	cutoff := c.clock().Add(-ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for id, e := range c.entries {
		e.mu.Lock()
		idle := e.lastAccess.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(c.entries, id)
			evicted++
		}
	}
	if evicted > 0 {
		c.log.Debug("evicted idle profiles", logger.IntField("count", evicted))
	}
	return evicted
}

// Len returns the number of cached profiles
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) entryFor(ctx context.Context, accountID uuid.UUID) (*entry, error) {
	c.mu.Lock()
	e, ok := c.entries[accountID]
	if ok {
		c.mu.Unlock()
		return e, nil
	}
	// Insert a placeholder while holding the map lock so concurrent
	// callers for the same account share one entry, then load under the
	// entry lock only.
	e = &entry{lastAccess: c.clock()}
	e.mu.Lock()
	c.entries[accountID] = e
	c.mu.Unlock()
	defer e.mu.Unlock()

	p, err := c.load(ctx, accountID)
	if err != nil {
		c.mu.Lock()
		delete(c.entries, accountID)
		c.mu.Unlock()
		return nil, err
	}
	e.profile = p
	return e, nil
}

func (c *Cache) load(ctx context.Context, accountID uuid.UUID) (*domain.UserRiskProfile, error) {
	p, err := c.repo.GetProfile(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProfileStoreUnavailable, err)
	}
	if p != nil {
		return p, nil
	}

	// First transaction for this account: build the baseline lazily
	p, err = c.repo.BuildProfileFromHistory(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProfileStoreUnavailable, err)
	}
	if p == nil {
		p = domain.NewUserRiskProfile(accountID)
	}
	return p, nil
}
