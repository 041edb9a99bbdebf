package criteria

import (
	"fmt"

	"github.com/openjustice-uk/kestrel/internal/domain"
)

// CheckWindow verifies a new criteria record does not overlap any
// existing validity window. At most one record may be in force at any
// date; enforcing that at write time is what lets the resolver treat
// overlap at read time as corruption.
func CheckWindow(existing []*domain.ThresholdCriteria, c *domain.ThresholdCriteria) error {
	for _, other := range existing {
		if other.ID == c.ID {
			continue
		}
		if windowsOverlap(c, other) {
			return fmt.Errorf("validity window overlaps criteria %s", other.ID)
		}
	}
	return nil
}

// CheckChildBands verifies the child weighting age bands are well formed
// and non-overlapping within the record.
func CheckChildBands(c *domain.ThresholdCriteria) error {
	for i, w := range c.ChildWeightings {
		if w.LowerAge < 0 || w.UpperAge < w.LowerAge {
			return fmt.Errorf("child weighting %s: invalid age band [%d, %d]", w.ID, w.LowerAge, w.UpperAge)
		}
		for _, other := range c.ChildWeightings[i+1:] {
			if w.LowerAge <= other.UpperAge && other.LowerAge <= w.UpperAge {
				return fmt.Errorf("child weighting bands %s and %s overlap", w.ID, other.ID)
			}
		}
	}
	return nil
}

func windowsOverlap(a, b *domain.ThresholdCriteria) bool {
	// [from, to) intervals; nil to = unbounded.
	aBeforeB := a.ValidTo != nil && !a.ValidTo.After(b.ValidFrom)
	bBeforeA := b.ValidTo != nil && !b.ValidTo.After(a.ValidFrom)
	return !aBeforeB && !bBeforeA
}
