package assess

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openjustice-uk/kestrel/internal/domain"
	"github.com/openjustice-uk/kestrel/internal/policy"
	"github.com/openjustice-uk/kestrel/internal/validate"
)

// Orchestrator composes the pipeline into the end-to-end create/update
// assessment operation: validation chain, criteria resolution,
// aggregation, policy guard, household weighting, result determination,
// response assembly.
//
// The orchestrator is stateless per invocation and never retries; retry
// policy belongs to the external collaborators. It propagates component
// errors without re-wrapping so callers can distinguish the four error
// categories.
type Orchestrator struct {
	chain    *validate.Chain
	guard    *policy.Guard
	criteria domain.CriteriaStore
	repo     domain.Repository
	bus      domain.EventBus
}

// NewOrchestrator creates an orchestrator. guard, repo and bus may be nil;
// persistence and events are best-effort side effects, never part of the
// calculation contract.
func NewOrchestrator(chain *validate.Chain, guard *policy.Guard, criteria domain.CriteriaStore, repo domain.Repository, bus domain.EventBus) *Orchestrator {
	return &Orchestrator{
		chain:    chain,
		guard:    guard,
		criteria: criteria,
		repo:     repo,
		bus:      bus,
	}
}

// CreateOrUpdate runs the full assessment pipeline for the request.
func (o *Orchestrator) CreateOrUpdate(ctx context.Context, req *domain.AssessmentRequest) (*domain.Assessment, error) {
	// Resolve the decision table up front; an unknown assessment type is
	// a contract defect, not a validation failure.
	determine, ok := DeterminerFor(req.AssessmentType)
	if !ok {
		return nil, &domain.ContractError{Message: "unknown assessment type " + string(req.AssessmentType)}
	}

	// 1. Validation chain; first failure aborts before any calculation.
	if err := o.chain.Run(ctx, req); err != nil {
		return nil, err
	}

	// 2. Resolve and freeze the criteria snapshot for the remainder of
	// the call.
	crit, err := o.criteria.FindValidAt(ctx, req.EffectiveDate())
	if err != nil {
		return nil, err
	}

	// 3. Aggregate sections.
	agg, err := Aggregate(req.Sections)
	if err != nil {
		return nil, err
	}

	// Deployment policy guard, if configured.
	if o.guard != nil {
		if err := o.guard.Evaluate(ctx, req, agg.AnnualTotal); err != nil {
			return nil, err
		}
	}

	// 4. Household weighting.
	adjusted, err := AdjustIncome(agg.AnnualTotal, req, crit)
	if err != nil {
		return nil, err
	}

	// 5. Determine result.
	result := determine(adjusted, crit, req)

	// 6. Assemble response.
	assessment := &domain.Assessment{
		ID:              uuid.New().String(),
		CaseReferenceID: req.CaseReferenceID,
		Type:            req.AssessmentType,
		Status:          domain.StatusComplete,
		EffectiveDate:   req.EffectiveDate(),
		CriteriaID:      crit.ID,

		ApplicantAnnualTotal: agg.ApplicantAnnualTotal,
		PartnerAnnualTotal:   agg.PartnerAnnualTotal,
		AnnualTotal:          agg.AnnualTotal,
		AdjustedIncome:       adjusted,

		LowerThreshold: crit.InitialLowerThreshold,
		UpperThreshold: crit.InitialUpperThreshold,
		FullThreshold:  crit.FullThreshold,

		Result:   result,
		Sections: agg.Sections,

		CreatedAt: time.Now().UTC(),
	}

	if o.repo != nil {
		if err := o.repo.SaveAssessment(ctx, assessment); err != nil {
			slog.Error("failed to save assessment", "id", assessment.ID, "error", err)
		}
	}

	o.publish(ctx, assessment)

	return assessment, nil
}

// publish emits completion (and hardship referral) events. Event delivery
// is best-effort; the assessment result is already final.
func (o *Orchestrator) publish(ctx context.Context, a *domain.Assessment) {
	if o.bus == nil {
		return
	}

	payload, err := json.Marshal(a)
	if err != nil {
		slog.Error("failed to marshal assessment event", "id", a.ID, "error", err)
		return
	}

	if err := o.bus.Publish(ctx, domain.TopicAssessmentCompleted, payload); err != nil {
		slog.Error("failed to publish assessment completed", "id", a.ID, "error", err)
	}

	if a.Result.Code == domain.ResultHardship {
		if err := o.bus.Publish(ctx, domain.TopicHardshipReferral, payload); err != nil {
			slog.Error("failed to publish hardship referral", "id", a.ID, "error", err)
		}
	}
}
