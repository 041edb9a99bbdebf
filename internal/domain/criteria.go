package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ChildWeighting maps an inclusive age band to a weighting factor.
// Bands must not overlap within one criteria version.
type ChildWeighting struct {
	ID       string          `json:"id"`
	LowerAge int             `json:"lowerAge"`
	UpperAge int             `json:"upperAge"`
	Factor   decimal.Decimal `json:"factor"`
}

// Contains reports whether the band covers the given age (both bounds
// inclusive).
func (w ChildWeighting) Contains(age int) bool {
	return age >= w.LowerAge && age <= w.UpperAge
}

// Width is the number of ages the band covers, used to pick the smallest
// matching band.
func (w ChildWeighting) Width() int {
	return w.UpperAge - w.LowerAge
}

// ThresholdCriteria is a time-versioned reference record holding the
// thresholds, weighting factors and living allowance in force for a
// validity window. Records are immutable within their window; validity
// windows must not overlap.
type ThresholdCriteria struct {
	ID        string     `json:"id"`
	ValidFrom time.Time  `json:"validFrom"`
	ValidTo   *time.Time `json:"validTo,omitempty"` // nil = open-ended

	InitialLowerThreshold decimal.Decimal `json:"initialLowerThreshold"`
	InitialUpperThreshold decimal.Decimal `json:"initialUpperThreshold"`
	FullThreshold         decimal.Decimal `json:"fullThreshold"`
	EligibilityThreshold  decimal.Decimal `json:"eligibilityThreshold"`
	LivingAllowance       decimal.Decimal `json:"livingAllowance"`

	ApplicantWeightingFactor decimal.Decimal `json:"applicantWeightingFactor"`
	PartnerWeightingFactor   decimal.Decimal `json:"partnerWeightingFactor"`

	ChildWeightings []ChildWeighting `json:"childWeightings,omitempty"`
}

// Contains reports whether the validity window [validFrom, validTo)
// covers the given date. A nil validTo means unbounded.
func (c *ThresholdCriteria) Contains(date time.Time) bool {
	if date.Before(c.ValidFrom) {
		return false
	}
	if c.ValidTo != nil && !date.Before(*c.ValidTo) {
		return false
	}
	return true
}

// ChildWeightingFor selects the smallest band containing the child's age.
// The second return is false when no band matches; callers must treat
// that as a hard lookup failure.
func (c *ThresholdCriteria) ChildWeightingFor(age int) (ChildWeighting, bool) {
	var best ChildWeighting
	found := false
	for _, w := range c.ChildWeightings {
		if !w.Contains(age) {
			continue
		}
		if !found || w.Width() < best.Width() {
			best = w
			found = true
		}
	}
	return best, found
}

// CriteriaStore resolves the threshold criteria in force at a given date.
type CriteriaStore interface {
	// FindValidAt returns the unique criteria record whose validity
	// window contains the date. Zero or multiple matches is a lookup
	// error (*LookupError).
	FindValidAt(ctx context.Context, date time.Time) (*ThresholdCriteria, error)
}
