package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openjustice-uk/kestrel/internal/assess"
	"github.com/openjustice-uk/kestrel/internal/criteria"
	"github.com/openjustice-uk/kestrel/internal/domain"
	"github.com/openjustice-uk/kestrel/internal/policy"
	"github.com/openjustice-uk/kestrel/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo         domain.Repository
	cache        domain.Cache
	orchestrator *assess.Orchestrator
	resolver     *criteria.Resolver
	guard        *policy.Guard
	version      string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, orchestrator *assess.Orchestrator, resolver *criteria.Resolver, guard *policy.Guard, version string) *Handler {
	return &Handler{
		repo:         repo,
		cache:        cache,
		orchestrator: orchestrator,
		resolver:     resolver,
		guard:        guard,
		version:      version,
	}
}

// AssessResponse is the response for POST /assessments.
type AssessResponse struct {
	Assessment *domain.Assessment `json:"assessment"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// CreateAssessment handles POST /assessments requests. The request body is
// the assessment request; the acting user comes from the session headers,
// never from the body.
func (h *Handler) CreateAssessment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req domain.AssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	req.Session = GetSession(ctx)

	assessment, err := h.orchestrator.CreateOrUpdate(ctx, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := AssessResponse{Assessment: assessment}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// GetAssessment retrieves a completed assessment by ID.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "assessment id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	a, err := h.repo.GetAssessment(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "assessment not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get assessment", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get assessment",
		})
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListCriteria returns all threshold criteria records.
func (h *Handler) ListCriteria(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	set, err := h.repo.ListCriteria(r.Context())
	if err != nil {
		slog.Error("failed to list criteria", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list criteria",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"criteria": set,
		"count":    len(set),
	})
}

// GetCriteria retrieves a criteria record by ID.
func (h *Handler) GetCriteria(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "criteria id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	c, err := h.repo.GetCriteria(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "criteria not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get criteria", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get criteria",
		})
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// CreateCriteria upserts a threshold criteria record after checking the
// validity window against the existing set and the child bands internally.
// The cached snapshot is invalidated so the next assessment sees the
// updated set.
func (h *Handler) CreateCriteria(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var c domain.ThresholdCriteria
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if c.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "criteria id is required",
		})
		return
	}
	if c.ValidFrom.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validFrom is required",
		})
		return
	}
	if c.ValidTo != nil && !c.ValidTo.After(c.ValidFrom) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validTo must be after validFrom",
		})
		return
	}

	if err := criteria.CheckChildBands(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	existing, err := h.repo.ListCriteria(ctx)
	if err != nil {
		slog.Error("failed to list criteria", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list criteria",
		})
		return
	}

	if err := criteria.CheckWindow(existing, &c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.repo.SaveCriteria(ctx, &c); err != nil {
		slog.Error("failed to save criteria", "id", c.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save criteria",
		})
		return
	}

	if h.resolver != nil {
		h.resolver.Invalidate(ctx)
	}

	slog.Info("criteria saved", "id", c.ID, "valid_from", c.ValidFrom)
	writeJSON(w, http.StatusCreated, c)
}

// ReloadCriteria drops the cached criteria snapshot.
func (h *Handler) ReloadCriteria(w http.ResponseWriter, r *http.Request) {
	if h.resolver != nil {
		h.resolver.Invalidate(r.Context())
	}

	slog.Info("criteria snapshot invalidated")
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "criteria snapshot invalidated",
	})
}

// ListPolicies returns all loaded policy rules from the guard.
// Rules are loaded from the database at startup and can be reloaded via
// POST /policies/reload.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	if h.guard == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "policy guard not available",
		})
		return
	}

	loaded := h.guard.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"policies": loaded,
		"count":    len(loaded),
		"source":   "database",
	})
}

// CreatePolicyRequest is the request body for creating a policy rule.
type CreatePolicyRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Message     string `json:"message"`
	Enabled     bool   `json:"enabled"`
}

// CreatePolicy creates a new policy rule and saves it to the database.
// After saving, call POST /policies/reload to hot-reload into the guard.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Expression == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, expression, and message are required",
		})
		return
	}

	rule := &domain.PolicyRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Message:     req.Message,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression before persisting
	if h.guard != nil {
		if err := h.guard.ValidateRule(rule); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid CEL expression: " + err.Error(),
			})
			return
		}
	}

	if h.repo != nil {
		if err := h.repo.SavePolicyRule(ctx, rule); err != nil {
			slog.Error("failed to save policy rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save policy rule",
			})
			return
		}
	}

	slog.Info("policy rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"policy":  rule,
		"message": "Policy rule created. Call POST /policies/reload to apply changes.",
	})
}

// ReloadPolicies reloads all policy rules from the database into the guard.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}
	if h.guard == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "policy guard not available",
		})
		return
	}

	rules, err := h.repo.ListPolicyRules(ctx)
	if err != nil {
		slog.Error("failed to list policy rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load policy rules from database",
		})
		return
	}

	if err := h.guard.ReloadRules(rules); err != nil {
		slog.Error("failed to reload policy rules into guard", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload policy rules: " + err.Error(),
		})
		return
	}

	slog.Info("policy rules reloaded from database", "count", len(rules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "policy rules reloaded successfully",
		"count":   len(rules),
	})
}

// writeError maps engine errors onto HTTP statuses. The four error
// categories carry the mapping: precondition and contract failures are the
// caller's fault, lookup failures are reference-data corruption, and
// dependency failures mean try again later.
func writeError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": validationErr.Message,
			"check": validationErr.Check,
		})
		return
	}

	var contractErr *domain.ContractError
	if errors.As(err, &contractErr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": contractErr.Message,
		})
		return
	}

	var lookupErr *domain.LookupError
	if errors.As(err, &lookupErr) {
		slog.Error("reference data lookup failed", "kind", lookupErr.Kind, "error", lookupErr.Message)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": lookupErr.Message,
		})
		return
	}

	var depErr *domain.DependencyError
	if errors.As(err, &depErr) {
		slog.Error("dependency unavailable", "service", depErr.Service, "error", depErr.Err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": depErr.Error(),
		})
		return
	}

	slog.Error("assessment failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
