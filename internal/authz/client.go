package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/openjustice-uk/kestrel/internal/domain"
)

// Client is the HTTP implementation of AuthorizationService and
// CaseDataService against the case-management system. Every failure to
// reach the service (transport error, timeout, non-2xx) surfaces as a
// *domain.DependencyError so it is never mistaken for a validation
// failure. Retries belong to this layer's caller, never to the engine.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a case-management client from the collaborator config.
func NewClient(cfg domain.CollaboratorConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type validResponse struct {
	Valid bool `json:"valid"`
}

type outstandingResponse struct {
	Outstanding bool `json:"outstanding"`
}

// IsRoleActionValid checks the user/action pair with the authorization
// endpoint.
func (c *Client) IsRoleActionValid(ctx context.Context, username, action string) (bool, error) {
	path := fmt.Sprintf("/api/authorization/users/%s/actions/%s",
		url.PathEscape(username), url.PathEscape(action))

	var resp validResponse
	if err := c.get(ctx, "authorization service", path, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// IsReservationValid checks record reservation ownership.
func (c *Client) IsReservationValid(ctx context.Context, username, reservationID, sessionID string) (bool, error) {
	path := fmt.Sprintf("/api/authorization/users/%s/reservations/%s/sessions/%s",
		url.PathEscape(username), url.PathEscape(reservationID), url.PathEscape(sessionID))

	var resp validResponse
	if err := c.get(ctx, "authorization service", path, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// IsNewWorkReasonValid checks the new-work-reason code.
func (c *Client) IsNewWorkReasonValid(ctx context.Context, username, code string) (bool, error) {
	path := fmt.Sprintf("/api/authorization/users/%s/work-reasons/%s",
		url.PathEscape(username), url.PathEscape(code))

	var resp validResponse
	if err := c.get(ctx, "authorization service", path, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// HasOutstandingAssessment checks for an incomplete prior assessment.
func (c *Client) HasOutstandingAssessment(ctx context.Context, caseReferenceID int64) (bool, error) {
	path := fmt.Sprintf("/api/case/%d/outstanding-assessments", caseReferenceID)

	var resp outstandingResponse
	if err := c.get(ctx, "case data service", path, &resp); err != nil {
		return false, err
	}
	return resp.Outstanding, nil
}

func (c *Client) get(ctx context.Context, service, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &domain.DependencyError{Service: service, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.DependencyError{Service: service, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.DependencyError{
			Service: service,
			Err:     fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.DependencyError{Service: service, Err: err}
	}
	return nil
}
