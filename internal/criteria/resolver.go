// Package criteria resolves time-versioned threshold criteria.
package criteria

import (
	"context"
	"time"

	"github.com/openjustice-uk/kestrel/internal/domain"
)

// DefaultSnapshotTTL bounds how long a cached criteria snapshot is served
// before re-reading the repository. Criteria records are immutable within
// their validity window, so staleness only matters across a window change;
// explicit invalidation on update covers that.
const DefaultSnapshotTTL = 5 * time.Minute

// Resolver selects the criteria record in force at a date. It reads the
// full criteria set as one snapshot (cached when a cache is configured)
// so that a single orchestration call never observes a set that spans a
// reference-data update.
type Resolver struct {
	repo  domain.Repository
	cache domain.Cache
	ttl   time.Duration
}

// NewResolver creates a resolver. cache may be nil.
func NewResolver(repo domain.Repository, cache domain.Cache) *Resolver {
	return &Resolver{repo: repo, cache: cache, ttl: DefaultSnapshotTTL}
}

// FindValidAt returns the unique criteria record whose [validFrom,
// validTo) window contains the date. Zero matches means a coverage gap;
// more than one means overlapping windows. Both are data-integrity
// failures reported as lookup errors, never resolved by first-match.
func (r *Resolver) FindValidAt(ctx context.Context, date time.Time) (*domain.ThresholdCriteria, error) {
	set, err := r.snapshot(ctx)
	if err != nil {
		return nil, &domain.DependencyError{Service: "criteria store", Err: err}
	}

	var matches []*domain.ThresholdCriteria
	for _, c := range set {
		if c.Contains(date) {
			matches = append(matches, c)
		}
	}

	if len(matches) != 1 {
		return nil, domain.CriteriaNotFound(date, len(matches))
	}
	return matches[0], nil
}

// Invalidate drops the cached snapshot. Called after a criteria update so
// no in-flight assessment started afterwards sees the old set.
func (r *Resolver) Invalidate(ctx context.Context) {
	if r.cache != nil {
		_ = r.cache.Delete(ctx, domain.CriteriaSetKey)
	}
}

// snapshot returns the criteria set, from cache when possible. Cache
// failures fall through to the repository; only a repository failure is
// an error.
func (r *Resolver) snapshot(ctx context.Context) ([]*domain.ThresholdCriteria, error) {
	if r.cache != nil {
		if set, err := r.cache.GetCriteriaSet(ctx); err == nil && set != nil {
			return set, nil
		}
	}

	set, err := r.repo.ListCriteria(ctx)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		_ = r.cache.SetCriteriaSet(ctx, set, r.ttl)
	}
	return set, nil
}
