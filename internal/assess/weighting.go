package assess

import (
	"github.com/shopspring/decimal"

	"github.com/openjustice-uk/kestrel/internal/domain"
)

// AdjustIncome applies household weighting to the combined annual total:
//
//  1. the partner weighting factor, only when the applicant has a partner
//     whose interest is not contrary (contrary interest means the
//     partner's means are disregarded even though a partner exists);
//  2. the applicant weighting factor, unconditionally;
//  3. one child weighting factor per declared child, selected by the
//     smallest criteria band containing the child's age.
//
// Factors are multiplicative and reduce disposable income proportionally.
// A zero factor or an age outside every band is a hard lookup error;
// defaulting would silently misclassify eligibility. The result is
// rounded once, to 2 decimal places half-up.
func AdjustIncome(annualTotal decimal.Decimal, req *domain.AssessmentRequest, criteria *domain.ThresholdCriteria) (decimal.Decimal, error) {
	adjusted := annualTotal

	if req.HasPartner && !req.PartnerContraryInterest {
		if criteria.PartnerWeightingFactor.IsZero() {
			return decimal.Zero, domain.WeightingFactorMissing("partner")
		}
		adjusted = adjusted.Mul(criteria.PartnerWeightingFactor)
	}

	if criteria.ApplicantWeightingFactor.IsZero() {
		return decimal.Zero, domain.WeightingFactorMissing("applicant")
	}
	adjusted = adjusted.Mul(criteria.ApplicantWeightingFactor)

	for _, child := range req.Children {
		weighting, ok := criteria.ChildWeightingFor(child.Age)
		if !ok {
			return decimal.Zero, domain.ChildWeightingNotFound(child.Age)
		}
		if weighting.Factor.IsZero() {
			return decimal.Zero, domain.WeightingFactorMissing("child")
		}
		adjusted = adjusted.Mul(weighting.Factor)
	}

	return adjusted.Round(2), nil
}
