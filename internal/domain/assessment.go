// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssessmentType selects the means test stage.
type AssessmentType string

const (
	// AssessmentInit is the first-pass screening assessment.
	AssessmentInit AssessmentType = "INIT"

	// AssessmentFull is the full means test triggered when INIT is inconclusive.
	AssessmentFull AssessmentType = "FULL"
)

// RequestAction distinguishes creating a new assessment from updating one.
type RequestAction string

const (
	ActionCreate RequestAction = "CREATE"
	ActionUpdate RequestAction = "UPDATE"
)

// AssessmentStatus tracks the assessment lifecycle.
type AssessmentStatus string

const (
	StatusInProgress AssessmentStatus = "IN PROGRESS"
	StatusComplete   AssessmentStatus = "COMPLETE"
)

// Frequency is the closed set of payment frequencies. Each code maps to a
// fixed annualization multiplier.
type Frequency string

const (
	FreqWeekly     Frequency = "WEEKLY"
	FreqTwoWeekly  Frequency = "2WEEKLY"
	FreqFourWeekly Frequency = "4WEEKLY"
	FreqMonthly    Frequency = "MONTHLY"
	FreqAnnually   Frequency = "ANNUALLY"
)

// Multiplier returns the annualization multiplier for the frequency.
// The second return is false for unrecognized codes; callers must treat
// that as an error, never default.
func (f Frequency) Multiplier() (int64, bool) {
	switch f {
	case FreqWeekly:
		return 52, true
	case FreqTwoWeekly:
		return 26, true
	case FreqFourWeekly:
		return 13, true
	case FreqMonthly:
		return 12, true
	case FreqAnnually:
		return 1, true
	default:
		return 0, false
	}
}

// DetailLine is a single financial line item within a section. Immutable
// once submitted; annualized values are derived, never stored as input.
type DetailLine struct {
	CriteriaDetailCode string `json:"criteriaDetailCode"`

	ApplicantAmount    decimal.Decimal `json:"applicantAmount"`
	ApplicantFrequency Frequency       `json:"applicantFrequency"`

	// Partner amount is optional; nil means no partner contribution on
	// this line.
	PartnerAmount    *decimal.Decimal `json:"partnerAmount,omitempty"`
	PartnerFrequency Frequency        `json:"partnerFrequency,omitempty"`
}

// Section is a named group of detail lines (e.g. "income", "outgoings")
// as submitted by the caller. Totals are always computed, never trusted
// from input.
type Section struct {
	Name    string       `json:"name"`
	Details []DetailLine `json:"details"`
}

// Child carries the age used to select a child weighting band.
type Child struct {
	Age int `json:"age"`
}

// CrownCourtSummary is the slice of the linked crown court record the
// validation chain needs.
type CrownCourtSummary struct {
	RepOrderDecision string `json:"repOrderDecision"`
}

// RepOrderRefusedIneligible is the rep-order decision that forces a review
// type to be selected on a re-application.
const RepOrderRefusedIneligible = "Refused - Ineligible"

// UserSession identifies the acting user for authorization and
// reservation checks.
type UserSession struct {
	UserName  string `json:"userName"`
	SessionID string `json:"sessionId"`
}

// AssessmentRequest is the input to the assessment pipeline. It is treated
// as immutable for the duration of an orchestration call.
type AssessmentRequest struct {
	CaseReferenceID int64          `json:"caseReferenceId"`
	AssessmentType  AssessmentType `json:"assessmentType"`
	Action          RequestAction  `json:"action"`

	AssessmentDate     time.Time  `json:"assessmentDate"`
	FullAssessmentDate *time.Time `json:"fullAssessmentDate,omitempty"`

	HasPartner              bool `json:"hasPartner"`
	PartnerContraryInterest bool `json:"partnerContraryInterest"`
	HardshipEligible        bool `json:"hardshipEligible"`

	NewWorkReason string `json:"newWorkReason"`
	ReviewType    string `json:"reviewType,omitempty"`
	ReservationID string `json:"reservationId"`

	CrownCourtSummary *CrownCourtSummary `json:"crownCourtSummary,omitempty"`

	Children []Child   `json:"children,omitempty"`
	Sections []Section `json:"sections"`

	// Prior INIT outcome, only meaningful for FULL assessments.
	InitResult      string           `json:"initResult,omitempty"`
	InitAnnualTotal *decimal.Decimal `json:"initAnnualTotal,omitempty"`

	Session UserSession `json:"-"`
}

// EffectiveDate is the date used for threshold criteria resolution:
// the assessment date for INIT, the full assessment date for FULL.
func (r *AssessmentRequest) EffectiveDate() time.Time {
	if r.AssessmentType == AssessmentFull && r.FullAssessmentDate != nil {
		return *r.FullAssessmentDate
	}
	return r.AssessmentDate
}
