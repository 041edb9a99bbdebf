package assess

import (
	"github.com/shopspring/decimal"

	"github.com/openjustice-uk/kestrel/internal/domain"
)

// Result reason texts. These are user-facing and load-bearing: callers
// and downstream case workers read them verbatim.
const (
	ReasonBelowLowerThreshold = "income below lower threshold"
	ReasonAboveUpperThreshold = "income above upper threshold"
	ReasonHardshipReferral    = "income above upper threshold, referred for hardship review"
	ReasonRequiresFull        = "requires full means assessment"
	ReasonBelowFullThreshold  = "disposable income below full assessment threshold"
	ReasonAboveFullThreshold  = "disposable income above full assessment threshold"
	ReasonIneligible          = "ineligible at initial assessment with no qualifying review type"
)

// Determiner resolves the decision table for one assessment type. Pure
// function of the adjusted income, the resolved criteria and the request
// flags; no persisted state.
type Determiner func(adjusted decimal.Decimal, criteria *domain.ThresholdCriteria, req *domain.AssessmentRequest) domain.AssessmentResult

// DeterminerFor returns the decision table for the assessment type. The
// strategy is resolved once at orchestration entry; the second return is
// false for unknown types.
func DeterminerFor(t domain.AssessmentType) (Determiner, bool) {
	switch t {
	case domain.AssessmentInit:
		return determineInit, true
	case domain.AssessmentFull:
		return determineFull, true
	default:
		return nil, false
	}
}

// determineInit is the INIT decision table. Boundary values belong to the
// more favorable-to-applicant outcome: the lower bound is inclusive-pass,
// the upper bound is inclusive-fail. This tie-break is a legal threshold
// and must not change.
func determineInit(adjusted decimal.Decimal, criteria *domain.ThresholdCriteria, req *domain.AssessmentRequest) domain.AssessmentResult {
	switch {
	case adjusted.LessThanOrEqual(criteria.InitialLowerThreshold):
		return domain.AssessmentResult{Code: domain.ResultPass, Reason: ReasonBelowLowerThreshold}

	case adjusted.GreaterThanOrEqual(criteria.InitialUpperThreshold):
		if req.HardshipEligible {
			return domain.AssessmentResult{Code: domain.ResultHardship, Reason: ReasonHardshipReferral}
		}
		return domain.AssessmentResult{Code: domain.ResultFail, Reason: ReasonAboveUpperThreshold}

	default:
		return domain.AssessmentResult{Code: domain.ResultFull, Reason: ReasonRequiresFull}
	}
}

// determineFull is the FULL decision table. An applicant who already
// failed at the INIT stage with no review type justifying re-assessment
// is ineligible regardless of the recalculated figures.
func determineFull(adjusted decimal.Decimal, criteria *domain.ThresholdCriteria, req *domain.AssessmentRequest) domain.AssessmentResult {
	if req.InitResult == string(domain.ResultFail) && req.ReviewType == "" {
		return domain.AssessmentResult{Code: domain.ResultIneligible, Reason: ReasonIneligible}
	}

	if adjusted.LessThanOrEqual(criteria.FullThreshold) {
		return domain.AssessmentResult{Code: domain.ResultPass, Reason: ReasonBelowFullThreshold}
	}
	return domain.AssessmentResult{Code: domain.ResultFail, Reason: ReasonAboveFullThreshold}
}
