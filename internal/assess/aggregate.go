package assess

import (
	"github.com/shopspring/decimal"

	"github.com/openjustice-uk/kestrel/internal/domain"
)

// Aggregation holds the annualized totals across all sections. Section
// order is preserved from the input for traceability; it has no effect
// on the sums.
type Aggregation struct {
	ApplicantAnnualTotal decimal.Decimal
	PartnerAnnualTotal   decimal.Decimal
	AnnualTotal          decimal.Decimal
	Sections             []domain.SectionTotals
}

// Aggregate annualizes every detail line and accumulates per-section and
// overall applicant/partner/combined totals. A detail line's partner
// amount is optional and contributes zero when absent. Pure transform:
// the input is never mutated and re-aggregating the same input yields
// identical totals.
func Aggregate(sections []domain.Section) (*Aggregation, error) {
	agg := &Aggregation{
		ApplicantAnnualTotal: decimal.Zero,
		PartnerAnnualTotal:   decimal.Zero,
		AnnualTotal:          decimal.Zero,
		Sections:             make([]domain.SectionTotals, 0, len(sections)),
	}

	for _, section := range sections {
		totals := domain.SectionTotals{
			Name:                 section.Name,
			ApplicantAnnualTotal: decimal.Zero,
			PartnerAnnualTotal:   decimal.Zero,
		}

		for _, detail := range section.Details {
			applicant, err := Annualize(detail.ApplicantAmount, detail.ApplicantFrequency)
			if err != nil {
				return nil, err
			}
			totals.ApplicantAnnualTotal = totals.ApplicantAnnualTotal.Add(applicant)

			if detail.PartnerAmount != nil {
				partner, err := Annualize(*detail.PartnerAmount, detail.PartnerFrequency)
				if err != nil {
					return nil, err
				}
				totals.PartnerAnnualTotal = totals.PartnerAnnualTotal.Add(partner)
			}
		}

		totals.AnnualTotal = totals.ApplicantAnnualTotal.Add(totals.PartnerAnnualTotal)

		agg.ApplicantAnnualTotal = agg.ApplicantAnnualTotal.Add(totals.ApplicantAnnualTotal)
		agg.PartnerAnnualTotal = agg.PartnerAnnualTotal.Add(totals.PartnerAnnualTotal)
		agg.Sections = append(agg.Sections, totals)
	}

	agg.AnnualTotal = agg.ApplicantAnnualTotal.Add(agg.PartnerAnnualTotal)

	return agg, nil
}
