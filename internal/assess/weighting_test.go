package assess

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/openjustice-uk/kestrel/internal/domain"
)

func testCriteria(t *testing.T) *domain.ThresholdCriteria {
	t.Helper()
	return &domain.ThresholdCriteria{
		ID:                       "crit-2026",
		ApplicantWeightingFactor: dec(t, "1"),
		PartnerWeightingFactor:   dec(t, "0.64"),
		ChildWeightings: []domain.ChildWeighting{
			{ID: "band-0-15", LowerAge: 0, UpperAge: 15, Factor: dec(t, "0.9")},
			{ID: "band-16-17", LowerAge: 16, UpperAge: 17, Factor: dec(t, "0.8")},
		},
	}
}

func TestAdjustIncomeNoHousehold(t *testing.T) {
	req := &domain.AssessmentRequest{}

	got, err := AdjustIncome(dec(t, "10000"), req, testCriteria(t))
	if err != nil {
		t.Fatalf("AdjustIncome failed: %v", err)
	}
	if !got.Equal(dec(t, "10000")) {
		t.Errorf("expected 10000, got %s", got)
	}
}

func TestAdjustIncomePartner(t *testing.T) {
	req := &domain.AssessmentRequest{HasPartner: true}

	got, err := AdjustIncome(dec(t, "10000"), req, testCriteria(t))
	if err != nil {
		t.Fatalf("AdjustIncome failed: %v", err)
	}
	if !got.Equal(dec(t, "6400")) {
		t.Errorf("expected 6400, got %s", got)
	}
}

func TestAdjustIncomePartnerContraryInterest(t *testing.T) {
	// A partner with contrary interest is disregarded; no partner factor.
	req := &domain.AssessmentRequest{HasPartner: true, PartnerContraryInterest: true}

	got, err := AdjustIncome(dec(t, "10000"), req, testCriteria(t))
	if err != nil {
		t.Fatalf("AdjustIncome failed: %v", err)
	}
	if !got.Equal(dec(t, "10000")) {
		t.Errorf("expected 10000, got %s", got)
	}
}

func TestAdjustIncomeChildren(t *testing.T) {
	req := &domain.AssessmentRequest{
		Children: []domain.Child{{Age: 10}, {Age: 16}},
	}

	// 10000 * 0.9 * 0.8 = 7200
	got, err := AdjustIncome(dec(t, "10000"), req, testCriteria(t))
	if err != nil {
		t.Fatalf("AdjustIncome failed: %v", err)
	}
	if !got.Equal(dec(t, "7200")) {
		t.Errorf("expected 7200, got %s", got)
	}
}

func TestAdjustIncomeSmallestBandWins(t *testing.T) {
	criteria := testCriteria(t)
	// Overlapping wide band; age 17 must still select the narrower
	// [16,17] band.
	criteria.ChildWeightings = append(criteria.ChildWeightings,
		domain.ChildWeighting{ID: "band-0-17", LowerAge: 0, UpperAge: 17, Factor: dec(t, "0.5")},
	)

	req := &domain.AssessmentRequest{Children: []domain.Child{{Age: 17}}}

	got, err := AdjustIncome(dec(t, "10000"), req, criteria)
	if err != nil {
		t.Fatalf("AdjustIncome failed: %v", err)
	}
	if !got.Equal(dec(t, "8000")) {
		t.Errorf("expected 8000 (factor 0.8 from narrow band), got %s", got)
	}
}

func TestAdjustIncomeChildOutsideBands(t *testing.T) {
	req := &domain.AssessmentRequest{Children: []domain.Child{{Age: 18}}}

	_, err := AdjustIncome(dec(t, "10000"), req, testCriteria(t))
	if err == nil {
		t.Fatal("expected error for age outside every band")
	}

	var lookupErr *domain.LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("expected *domain.LookupError, got %T", err)
	}
	if lookupErr.Kind != domain.LookupChildWeighting {
		t.Errorf("expected kind %s, got %s", domain.LookupChildWeighting, lookupErr.Kind)
	}
}

func TestAdjustIncomeZeroPartnerFactor(t *testing.T) {
	criteria := testCriteria(t)
	criteria.PartnerWeightingFactor = decimal.Zero

	req := &domain.AssessmentRequest{HasPartner: true}

	_, err := AdjustIncome(dec(t, "10000"), req, criteria)
	if err == nil {
		t.Fatal("expected error for zero partner weighting factor")
	}

	var lookupErr *domain.LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("expected *domain.LookupError, got %T", err)
	}
	if lookupErr.Kind != domain.LookupWeightingFactor {
		t.Errorf("expected kind %s, got %s", domain.LookupWeightingFactor, lookupErr.Kind)
	}
}

func TestAdjustIncomeZeroApplicantFactor(t *testing.T) {
	criteria := testCriteria(t)
	criteria.ApplicantWeightingFactor = decimal.Zero

	_, err := AdjustIncome(dec(t, "10000"), &domain.AssessmentRequest{}, criteria)
	if err == nil {
		t.Fatal("expected error for zero applicant weighting factor")
	}
}

func TestAdjustIncomeRoundsOnce(t *testing.T) {
	criteria := testCriteria(t)
	criteria.PartnerWeightingFactor = dec(t, "0.333")

	req := &domain.AssessmentRequest{HasPartner: true}

	// 10001 * 0.333 = 3330.333, rounds to 3330.33
	got, err := AdjustIncome(dec(t, "10001"), req, criteria)
	if err != nil {
		t.Fatalf("AdjustIncome failed: %v", err)
	}
	if !got.Equal(dec(t, "3330.33")) {
		t.Errorf("expected 3330.33, got %s", got)
	}
}
