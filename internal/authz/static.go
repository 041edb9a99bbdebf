// Package authz provides the external collaborator implementations: the
// case-management authorization and case-data services consumed by the
// validation chain.
package authz

import (
	"context"
	"sync"

	"github.com/openjustice-uk/kestrel/internal/domain"
)

// StaticAuthorizer is a config-seeded AuthorizationService for the
// community tier and for tests. Role actions and new-work-reason codes
// come from configuration; reservations can be registered at runtime.
type StaticAuthorizer struct {
	mu             sync.RWMutex
	roleActions    map[string]bool
	newWorkReasons map[string]bool
	reservations   map[string]string // reservation id -> session id
}

// NewStaticAuthorizer creates an authorizer from the collaborator config.
func NewStaticAuthorizer(cfg domain.CollaboratorConfig) *StaticAuthorizer {
	a := &StaticAuthorizer{
		roleActions:    make(map[string]bool, len(cfg.RoleActions)),
		newWorkReasons: make(map[string]bool, len(cfg.NewWorkReasons)),
		reservations:   make(map[string]string),
	}
	for _, action := range cfg.RoleActions {
		a.roleActions[action] = true
	}
	for _, code := range cfg.NewWorkReasons {
		a.newWorkReasons[code] = true
	}
	return a
}

// Reserve registers a reservation as held by a session.
func (a *StaticAuthorizer) Reserve(reservationID, sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reservations[reservationID] = sessionID
}

// IsRoleActionValid reports whether the action is in the configured set.
func (a *StaticAuthorizer) IsRoleActionValid(ctx context.Context, username, action string) (bool, error) {
	if username == "" {
		return false, nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.roleActions[action], nil
}

// IsReservationValid reports whether the reservation belongs to the
// session. With no reservation registry configured (community tier,
// single-caseworker deployments) reservations are considered held by the
// caller.
func (a *StaticAuthorizer) IsReservationValid(ctx context.Context, username, reservationID, sessionID string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.reservations) == 0 {
		return true, nil
	}
	held, ok := a.reservations[reservationID]
	return ok && held == sessionID, nil
}

// IsNewWorkReasonValid reports whether the code is in the configured set.
func (a *StaticAuthorizer) IsNewWorkReasonValid(ctx context.Context, username, code string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.newWorkReasons[code], nil
}

// RepositoryCaseData answers the outstanding-assessment check from the
// local repository. Community-tier CaseDataService.
type RepositoryCaseData struct {
	repo domain.Repository
}

// NewRepositoryCaseData creates a repository-backed case data service.
func NewRepositoryCaseData(repo domain.Repository) *RepositoryCaseData {
	return &RepositoryCaseData{repo: repo}
}

// HasOutstandingAssessment reports whether an incomplete assessment
// exists for the case.
func (c *RepositoryCaseData) HasOutstandingAssessment(ctx context.Context, caseReferenceID int64) (bool, error) {
	return c.repo.HasOutstandingAssessment(ctx, caseReferenceID)
}
