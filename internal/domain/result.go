package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResultCode is the closed set of assessment outcomes.
type ResultCode string

const (
	// INIT outcomes.
	ResultPass     ResultCode = "PASS"
	ResultFail     ResultCode = "FAIL"
	ResultFull     ResultCode = "FULL"
	ResultHardship ResultCode = "HARDSHIP APPLICATION"

	// FULL-only outcome: applicant already ineligible at INIT stage and no
	// review type justifies re-assessment.
	ResultIneligible ResultCode = "INEL"
)

// AssessmentResult pairs a result code with its human-readable reason.
// Computed once per orchestration call and never mutated afterward.
type AssessmentResult struct {
	Code   ResultCode `json:"code"`
	Reason string     `json:"reason"`
}

// SectionTotals holds the computed annual totals for one section, in the
// order the sections were submitted.
type SectionTotals struct {
	Name                 string          `json:"name"`
	ApplicantAnnualTotal decimal.Decimal `json:"applicantAnnualTotal"`
	PartnerAnnualTotal   decimal.Decimal `json:"partnerAnnualTotal"`
	AnnualTotal          decimal.Decimal `json:"annualTotal"`
}

// Assessment is the completed means assessment: inputs aggregated,
// household weighting applied, result determined against the criteria
// snapshot frozen at the start of the calculation.
type Assessment struct {
	ID              string           `json:"id"`
	CaseReferenceID int64            `json:"caseReferenceId"`
	Type            AssessmentType   `json:"type"`
	Status          AssessmentStatus `json:"status"`
	EffectiveDate   time.Time        `json:"effectiveDate"`
	CriteriaID      string           `json:"criteriaId"`

	ApplicantAnnualTotal decimal.Decimal `json:"applicantAnnualTotal"`
	PartnerAnnualTotal   decimal.Decimal `json:"partnerAnnualTotal"`
	AnnualTotal          decimal.Decimal `json:"annualTotal"`
	AdjustedIncome       decimal.Decimal `json:"adjustedIncome"`

	LowerThreshold decimal.Decimal `json:"lowerThreshold"`
	UpperThreshold decimal.Decimal `json:"upperThreshold"`
	FullThreshold  decimal.Decimal `json:"fullThreshold"`

	Result AssessmentResult `json:"result"`

	Sections []SectionTotals `json:"sections"`

	CreatedAt time.Time `json:"createdAt"`
}
