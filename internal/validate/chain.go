// Package validate implements the ordered precondition chain that gates
// the assessment pipeline. The chain stops at the first failure; errors
// are never aggregated.
package validate

import (
	"context"
	"errors"
	"fmt"

	"github.com/openjustice-uk/kestrel/internal/domain"
)

// Check is one precondition. Applies filters the check by request shape;
// Run either passes (nil) or fails with the check's specific error.
type Check struct {
	Name    string
	Applies func(req *domain.AssessmentRequest) bool
	Run     func(ctx context.Context, req *domain.AssessmentRequest) error
}

// Chain is the ordered, short-circuiting validation sequence executed
// before any calculation. Checks 2-5 call external collaborators; a
// collaborator failure surfaces as a *domain.DependencyError, never as a
// validation failure.
type Chain struct {
	authz    domain.AuthorizationService
	caseData domain.CaseDataService
	checks   []Check
}

// NewChain builds the statutory chain in its fixed order.
func NewChain(authz domain.AuthorizationService, caseData domain.CaseDataService) *Chain {
	c := &Chain{authz: authz, caseData: caseData}

	c.checks = []Check{
		{
			Name: "case-reference",
			Run: func(ctx context.Context, req *domain.AssessmentRequest) error {
				if req.CaseReferenceID <= 0 {
					return domain.ErrMissingCaseReference
				}
				return nil
			},
		},
		{
			Name: "sections",
			Run: func(ctx context.Context, req *domain.AssessmentRequest) error {
				if len(req.Sections) == 0 {
					return domain.ErrSectionsRequired
				}
				return nil
			},
		},
		{
			Name: "role-action",
			Run: func(ctx context.Context, req *domain.AssessmentRequest) error {
				action := fmt.Sprintf("%s_ASSESSMENT", req.Action)
				ok, err := c.authz.IsRoleActionValid(ctx, req.Session.UserName, action)
				if err != nil {
					return asDependency("authorization service", err)
				}
				if !ok {
					return domain.ErrRoleActionInvalid
				}
				return nil
			},
		},
		{
			Name: "reservation",
			Run: func(ctx context.Context, req *domain.AssessmentRequest) error {
				ok, err := c.authz.IsReservationValid(ctx, req.Session.UserName, req.ReservationID, req.Session.SessionID)
				if err != nil {
					return asDependency("authorization service", err)
				}
				if !ok {
					return domain.ErrRecordNotReserved
				}
				return nil
			},
		},
		{
			Name:    "outstanding-assessment",
			Applies: createInitOnly,
			Run: func(ctx context.Context, req *domain.AssessmentRequest) error {
				outstanding, err := c.caseData.HasOutstandingAssessment(ctx, req.CaseReferenceID)
				if err != nil {
					return asDependency("case data service", err)
				}
				if outstanding {
					return domain.ErrOutstandingAssessment
				}
				return nil
			},
		},
		{
			Name:    "new-work-reason",
			Applies: createInitOnly,
			Run: func(ctx context.Context, req *domain.AssessmentRequest) error {
				ok, err := c.authz.IsNewWorkReasonValid(ctx, req.Session.UserName, req.NewWorkReason)
				if err != nil {
					return asDependency("authorization service", err)
				}
				if !ok {
					return domain.ErrNewWorkReasonInvalid
				}
				return nil
			},
		},
		{
			Name: "review-type",
			Applies: func(req *domain.AssessmentRequest) bool {
				return req.AssessmentType == domain.AssessmentInit
			},
			Run: func(ctx context.Context, req *domain.AssessmentRequest) error {
				if req.ReviewType != "" {
					return nil
				}
				if req.CrownCourtSummary != nil && req.CrownCourtSummary.RepOrderDecision == domain.RepOrderRefusedIneligible {
					return domain.ErrReviewTypeRequired
				}
				return nil
			},
		},
		{
			Name: "full-assessment-date",
			Applies: func(req *domain.AssessmentRequest) bool {
				return req.AssessmentType == domain.AssessmentFull
			},
			Run: func(ctx context.Context, req *domain.AssessmentRequest) error {
				if req.FullAssessmentDate == nil || req.FullAssessmentDate.IsZero() {
					return domain.ErrFullAssessmentDateRequired
				}
				return nil
			},
		},
	}

	return c
}

// Run executes the chain in order and returns the first failure.
func (c *Chain) Run(ctx context.Context, req *domain.AssessmentRequest) error {
	for _, check := range c.checks {
		if check.Applies != nil && !check.Applies(req) {
			continue
		}
		if err := check.Run(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// Checks returns the chain's check names in execution order.
func (c *Chain) Checks() []string {
	names := make([]string, len(c.checks))
	for i, check := range c.checks {
		names[i] = check.Name
	}
	return names
}

func createInitOnly(req *domain.AssessmentRequest) bool {
	return req.Action == domain.ActionCreate && req.AssessmentType == domain.AssessmentInit
}

// asDependency ensures collaborator failures carry the dependency
// category even when an implementation returns a bare error.
func asDependency(service string, err error) error {
	var dep *domain.DependencyError
	if errors.As(err, &dep) {
		return err
	}
	return &domain.DependencyError{Service: service, Err: err}
}
