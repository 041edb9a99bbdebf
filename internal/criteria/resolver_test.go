package criteria

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openjustice-uk/kestrel/internal/domain"
)

// fakeRepo serves a fixed criteria list and counts reads.
type fakeRepo struct {
	domain.Repository

	criteria []*domain.ThresholdCriteria
	err      error
	listed   int
}

func (f *fakeRepo) ListCriteria(ctx context.Context) ([]*domain.ThresholdCriteria, error) {
	f.listed++
	if f.err != nil {
		return nil, f.err
	}
	return f.criteria, nil
}

// fakeCache is an in-memory criteria snapshot holder.
type fakeCache struct {
	domain.Cache

	set     []*domain.ThresholdCriteria
	getErr  error
	deletes int
}

func (f *fakeCache) GetCriteriaSet(ctx context.Context) ([]*domain.ThresholdCriteria, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.set, nil
}

func (f *fakeCache) SetCriteriaSet(ctx context.Context, set []*domain.ThresholdCriteria, ttl time.Duration) error {
	f.set = set
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	if key == domain.CriteriaSetKey {
		f.set = nil
	}
	f.deletes++
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func criteriaAt(id string, from time.Time, to *time.Time) *domain.ThresholdCriteria {
	return &domain.ThresholdCriteria{
		ID:                    id,
		ValidFrom:             from,
		ValidTo:               to,
		InitialLowerThreshold: decimal.NewFromInt(12000),
		InitialUpperThreshold: decimal.NewFromInt(22000),
		FullThreshold:         decimal.NewFromInt(5000),
	}
}

func TestFindValidAt(t *testing.T) {
	boundary := date(2026, 4, 1)
	repo := &fakeRepo{criteria: []*domain.ThresholdCriteria{
		criteriaAt("crit-2025", date(2025, 4, 1), &boundary),
		criteriaAt("crit-2026", boundary, nil),
	}}
	r := NewResolver(repo, nil)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"inside closed window", date(2025, 10, 1), "crit-2025"},
		{"at window start", date(2025, 4, 1), "crit-2025"},
		{"boundary belongs to the newer record", boundary, "crit-2026"},
		{"inside open-ended window", date(2030, 1, 1), "crit-2026"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.FindValidAt(context.Background(), tt.at)
			if err != nil {
				t.Fatalf("FindValidAt(%s) failed: %v", tt.at, err)
			}
			if got.ID != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.ID)
			}
		})
	}
}

func TestFindValidAtGap(t *testing.T) {
	end := date(2026, 1, 1)
	repo := &fakeRepo{criteria: []*domain.ThresholdCriteria{
		criteriaAt("crit-2025", date(2025, 1, 1), &end),
	}}
	r := NewResolver(repo, nil)

	_, err := r.FindValidAt(context.Background(), date(2026, 6, 1))
	if err == nil {
		t.Fatal("expected error for date outside every window")
	}

	var lookupErr *domain.LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("expected *domain.LookupError, got %T", err)
	}
	if lookupErr.Kind != domain.LookupCriteria {
		t.Errorf("expected kind %s, got %s", domain.LookupCriteria, lookupErr.Kind)
	}
}

func TestFindValidAtOverlap(t *testing.T) {
	// Two records in force on the same date is corruption, not a
	// first-match situation.
	repo := &fakeRepo{criteria: []*domain.ThresholdCriteria{
		criteriaAt("crit-a", date(2026, 1, 1), nil),
		criteriaAt("crit-b", date(2026, 3, 1), nil),
	}}
	r := NewResolver(repo, nil)

	_, err := r.FindValidAt(context.Background(), date(2026, 6, 1))
	if err == nil {
		t.Fatal("expected error for overlapping windows")
	}

	var lookupErr *domain.LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("expected *domain.LookupError, got %T", err)
	}
}

func TestFindValidAtRepositoryFailure(t *testing.T) {
	repo := &fakeRepo{err: errors.New("connection reset")}
	r := NewResolver(repo, nil)

	_, err := r.FindValidAt(context.Background(), date(2026, 6, 1))

	var depErr *domain.DependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("expected *domain.DependencyError, got %T", err)
	}
	if depErr.Service != "criteria store" {
		t.Errorf("expected criteria store dependency, got %q", depErr.Service)
	}
}

func TestSnapshotCached(t *testing.T) {
	repo := &fakeRepo{criteria: []*domain.ThresholdCriteria{
		criteriaAt("crit-2026", date(2026, 1, 1), nil),
	}}
	cache := &fakeCache{}
	r := NewResolver(repo, cache)

	for i := 0; i < 3; i++ {
		if _, err := r.FindValidAt(context.Background(), date(2026, 6, 1)); err != nil {
			t.Fatalf("FindValidAt failed: %v", err)
		}
	}

	// First call misses the cache and populates it; the rest are served
	// from the snapshot.
	if repo.listed != 1 {
		t.Errorf("expected 1 repository read, got %d", repo.listed)
	}
}

func TestInvalidateDropsSnapshot(t *testing.T) {
	repo := &fakeRepo{criteria: []*domain.ThresholdCriteria{
		criteriaAt("crit-2026", date(2026, 1, 1), nil),
	}}
	cache := &fakeCache{}
	r := NewResolver(repo, cache)

	if _, err := r.FindValidAt(context.Background(), date(2026, 6, 1)); err != nil {
		t.Fatalf("FindValidAt failed: %v", err)
	}

	r.Invalidate(context.Background())

	if _, err := r.FindValidAt(context.Background(), date(2026, 6, 1)); err != nil {
		t.Fatalf("FindValidAt failed: %v", err)
	}
	if repo.listed != 2 {
		t.Errorf("expected repository re-read after invalidation, got %d reads", repo.listed)
	}
}

func TestCacheFailureFallsThrough(t *testing.T) {
	repo := &fakeRepo{criteria: []*domain.ThresholdCriteria{
		criteriaAt("crit-2026", date(2026, 1, 1), nil),
	}}
	cache := &fakeCache{getErr: errors.New("redis: connection refused")}
	r := NewResolver(repo, cache)

	got, err := r.FindValidAt(context.Background(), date(2026, 6, 1))
	if err != nil {
		t.Fatalf("expected cache failure to fall through to repository, got %v", err)
	}
	if got.ID != "crit-2026" {
		t.Errorf("expected crit-2026, got %s", got.ID)
	}
}
