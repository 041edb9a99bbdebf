package criteria

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openjustice-uk/kestrel/internal/domain"
)

func TestCheckWindow(t *testing.T) {
	aprilFirst := date(2026, 4, 1)
	existing := []*domain.ThresholdCriteria{
		criteriaAt("crit-2025", date(2025, 4, 1), &aprilFirst),
		criteriaAt("crit-2026", aprilFirst, nil),
	}

	tests := []struct {
		name    string
		from    time.Time
		to      *time.Time
		wantErr bool
	}{
		{"before everything", date(2024, 1, 1), timePtr(date(2025, 4, 1)), false},
		{"abuts closed window", date(2024, 1, 1), timePtr(date(2025, 4, 1)), false},
		{"inside closed window", date(2025, 6, 1), timePtr(date(2025, 9, 1)), true},
		{"overlaps open-ended window", date(2027, 1, 1), nil, true},
		{"straddles boundary", date(2026, 3, 1), timePtr(date(2026, 5, 1)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := criteriaAt("crit-new", tt.from, tt.to)
			err := CheckWindow(existing, c)
			if tt.wantErr && err == nil {
				t.Error("expected overlap error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no overlap, got %v", err)
			}
		})
	}
}

func TestCheckWindowSkipsSelf(t *testing.T) {
	c := criteriaAt("crit-2026", date(2026, 1, 1), nil)
	existing := []*domain.ThresholdCriteria{c}

	// An update to an existing record is not an overlap with itself.
	if err := CheckWindow(existing, criteriaAt("crit-2026", date(2026, 2, 1), nil)); err != nil {
		t.Errorf("expected same-id record to be skipped, got %v", err)
	}
}

func TestCheckChildBands(t *testing.T) {
	tests := []struct {
		name    string
		bands   []domain.ChildWeighting
		wantErr bool
	}{
		{
			"well formed",
			[]domain.ChildWeighting{
				{ID: "a", LowerAge: 0, UpperAge: 12, Factor: decimal.NewFromFloat(0.9)},
				{ID: "b", LowerAge: 13, UpperAge: 17, Factor: decimal.NewFromFloat(0.8)},
			},
			false,
		},
		{
			"single age band",
			[]domain.ChildWeighting{
				{ID: "a", LowerAge: 16, UpperAge: 16, Factor: decimal.NewFromFloat(0.8)},
			},
			false,
		},
		{
			"inverted band",
			[]domain.ChildWeighting{
				{ID: "a", LowerAge: 10, UpperAge: 5, Factor: decimal.NewFromFloat(0.9)},
			},
			true,
		},
		{
			"negative lower age",
			[]domain.ChildWeighting{
				{ID: "a", LowerAge: -1, UpperAge: 5, Factor: decimal.NewFromFloat(0.9)},
			},
			true,
		},
		{
			"overlapping bands",
			[]domain.ChildWeighting{
				{ID: "a", LowerAge: 0, UpperAge: 15, Factor: decimal.NewFromFloat(0.9)},
				{ID: "b", LowerAge: 15, UpperAge: 17, Factor: decimal.NewFromFloat(0.8)},
			},
			true,
		},
		{
			"no bands",
			nil,
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := criteriaAt("crit", date(2026, 1, 1), nil)
			c.ChildWeightings = tt.bands
			err := CheckChildBands(c)
			if tt.wantErr && err == nil {
				t.Error("expected band error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected valid bands, got %v", err)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
