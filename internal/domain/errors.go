package domain

import (
	"fmt"
	"time"
)

// The error taxonomy has four categories callers must be able to tell
// apart to decide HTTP status and retry behavior:
//
//   - *ValidationError: business precondition failure. 4xx-equivalent,
//     never retried, never logged as a system failure.
//   - *LookupError: reference data missing or ambiguous. Fatal to the
//     request; indicates misconfiguration upstream, not user error.
//   - *DependencyError: external collaborator unavailable or timed out.
//     Retryable by the calling layer, never by the engine.
//   - *ContractError: arithmetic/contract defect (negative amount,
//     unknown frequency). Always fatal, never defaulted.
//
// Components raise their own specific errors; the orchestrator propagates
// them without wrapping that would obscure the category.

// ValidationError is a failed business precondition from the validation
// chain. Check names the precondition that failed.
type ValidationError struct {
	Check   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// The validation chain's fixed set of failures, in chain order.
var (
	ErrMissingCaseReference = &ValidationError{
		Check:   "case-reference",
		Message: "case reference id must be present and positive",
	}
	ErrSectionsRequired = &ValidationError{
		Check:   "sections",
		Message: "assessment must contain at least one section of financial details",
	}
	ErrRoleActionInvalid = &ValidationError{
		Check:   "role-action",
		Message: "user is not authorized to perform this action",
	}
	ErrRecordNotReserved = &ValidationError{
		Check:   "reservation",
		Message: "case record is not reserved by the current user session",
	}
	ErrOutstandingAssessment = &ValidationError{
		Check:   "outstanding-assessment",
		Message: "an incomplete assessment already exists for this case",
	}
	ErrNewWorkReasonInvalid = &ValidationError{
		Check:   "new-work-reason",
		Message: "new work reason code is not recognized",
	}
	ErrReviewTypeRequired = &ValidationError{
		Check:   "review-type",
		Message: "must select Eligibility Review / Miscalculation Review / New Application Following Ineligibility",
	}
	ErrFullAssessmentDateRequired = &ValidationError{
		Check:   "full-assessment-date",
		Message: "full assessment date is required for a FULL assessment",
	}
)

// LookupError is a reference-data failure: criteria or child weighting
// could not be resolved, or resolution was ambiguous.
type LookupError struct {
	Kind    string
	Message string
}

func (e *LookupError) Error() string { return e.Message }

// Lookup error kinds.
const (
	LookupCriteria        = "criteria"
	LookupChildWeighting  = "child-weighting"
	LookupWeightingFactor = "weighting-factor"
	LookupPolicy          = "policy"
)

// CriteriaNotFound reports zero or multiple criteria records covering the
// date. Overlap is a data-integrity violation and is reported, never
// resolved by first-match.
func CriteriaNotFound(date time.Time, matches int) *LookupError {
	msg := fmt.Sprintf("no threshold criteria in force at %s", date.Format("2006-01-02"))
	if matches > 1 {
		msg = fmt.Sprintf("%d overlapping threshold criteria in force at %s", matches, date.Format("2006-01-02"))
	}
	return &LookupError{Kind: LookupCriteria, Message: msg}
}

// WeightingFactorMissing reports a criteria record carrying a zero
// weighting factor. Factors are multiplicative, so zero would silently
// zero out income and misclassify eligibility.
func WeightingFactorMissing(name string) *LookupError {
	return &LookupError{
		Kind:    LookupWeightingFactor,
		Message: fmt.Sprintf("criteria record is missing the %s weighting factor", name),
	}
}

// PolicyRuleBroken reports a policy rule whose expression failed to
// evaluate. Policy rules are reference data; a broken rule is
// misconfiguration, not user error.
func PolicyRuleBroken(id string, err error) *LookupError {
	return &LookupError{
		Kind:    LookupPolicy,
		Message: fmt.Sprintf("policy rule %s failed to evaluate: %v", id, err),
	}
}

// ChildWeightingNotFound reports an age no weighting band covers.
func ChildWeightingNotFound(age int) *LookupError {
	return &LookupError{
		Kind:    LookupChildWeighting,
		Message: fmt.Sprintf("no child weighting band covers age %d", age),
	}
}

// DependencyError wraps a failure from an external collaborator so it is
// never mistaken for a validation failure.
type DependencyError struct {
	Service string
	Err     error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// ContractError is a programming or input defect in the calculation
// inputs.
type ContractError struct {
	Message string
}

func (e *ContractError) Error() string { return e.Message }

// UnknownFrequency reports a frequency code outside the closed set.
func UnknownFrequency(code Frequency) *ContractError {
	return &ContractError{Message: fmt.Sprintf("unknown frequency code %q", string(code))}
}

// NegativeAmount reports a negative monetary input. Incomes and
// contributions are never negative in this domain.
func NegativeAmount(amount fmt.Stringer) *ContractError {
	return &ContractError{Message: fmt.Sprintf("amount must not be negative, got %s", amount.String())}
}
