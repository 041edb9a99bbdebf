package domain

import "context"

// AuthorizationService is the consumed boundary of the case-management
// authorization system. Implementations own their retry and timeout
// policy; a timed-out or unreachable call must surface a
// *DependencyError, never a validation failure.
type AuthorizationService interface {
	// IsRoleActionValid reports whether the user may perform the action.
	IsRoleActionValid(ctx context.Context, username, action string) (bool, error)

	// IsReservationValid reports whether the case record reservation
	// belongs to the user's session.
	IsReservationValid(ctx context.Context, username, reservationID, sessionID string) (bool, error)

	// IsNewWorkReasonValid reports whether the new-work-reason code is
	// recognized for the user.
	IsNewWorkReasonValid(ctx context.Context, username, code string) (bool, error)
}

// CaseDataService is the consumed boundary of the case-management data
// system.
type CaseDataService interface {
	// HasOutstandingAssessment reports whether an incomplete prior
	// assessment exists for the case.
	HasOutstandingAssessment(ctx context.Context, caseReferenceID int64) (bool, error)
}

// CollaboratorConfig selects and configures the external collaborator
// implementations.
type CollaboratorConfig struct {
	// Mode is "static" (config-seeded tables, community tier) or
	// "remote" (HTTP client against the case-management system).
	Mode string

	// Remote settings
	BaseURL     string
	TimeoutSecs int

	// Static settings
	RoleActions    []string
	NewWorkReasons []string
}
