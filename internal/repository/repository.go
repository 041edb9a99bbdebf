// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openjustice-uk/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveAssessment stores a completed assessment.
func (r *SQLRepository) SaveAssessment(ctx context.Context, a *domain.Assessment) error {
	if a.ID == "" {
		return fmt.Errorf("%w: assessment id is required", ErrInvalidInput)
	}

	sections, _ := json.Marshal(a.Sections)

	query := `
		INSERT INTO assessments (
			id, case_reference_id, type, status, effective_date, criteria_id,
			applicant_annual_total, partner_annual_total, annual_total, adjusted_income,
			lower_threshold, upper_threshold, full_threshold,
			result_code, result_reason, sections, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, a.CaseReferenceID, a.Type, a.Status,
		a.EffectiveDate, a.CriteriaID,
		a.ApplicantAnnualTotal.String(), a.PartnerAnnualTotal.String(),
		a.AnnualTotal.String(), a.AdjustedIncome.String(),
		a.LowerThreshold.String(), a.UpperThreshold.String(), a.FullThreshold.String(),
		string(a.Result.Code), a.Result.Reason,
		string(sections), a.CreatedAt,
	)
	return err
}

// GetAssessment retrieves an assessment by ID.
func (r *SQLRepository) GetAssessment(ctx context.Context, id string) (*domain.Assessment, error) {
	query := `
		SELECT id, case_reference_id, type, status, effective_date, criteria_id,
			   applicant_annual_total, partner_annual_total, annual_total, adjusted_income,
			   lower_threshold, upper_threshold, full_threshold,
			   result_code, result_reason, sections, created_at
		FROM assessments
		WHERE id = ?
	`

	var a domain.Assessment
	var applicantTotal, partnerTotal, annualTotal, adjusted string
	var lower, upper, full string
	var resultCode, sections string

	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&a.ID, &a.CaseReferenceID, &a.Type, &a.Status,
		&a.EffectiveDate, &a.CriteriaID,
		&applicantTotal, &partnerTotal, &annualTotal, &adjusted,
		&lower, &upper, &full,
		&resultCode, &a.Result.Reason, &sections, &a.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Result.Code = domain.ResultCode(resultCode)

	for _, pair := range []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&a.ApplicantAnnualTotal, applicantTotal},
		{&a.PartnerAnnualTotal, partnerTotal},
		{&a.AnnualTotal, annualTotal},
		{&a.AdjustedIncome, adjusted},
		{&a.LowerThreshold, lower},
		{&a.UpperThreshold, upper},
		{&a.FullThreshold, full},
	} {
		d, err := decimal.NewFromString(pair.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored amount %q: %w", pair.raw, err)
		}
		*pair.dst = d
	}

	if sections != "" {
		if err := json.Unmarshal([]byte(sections), &a.Sections); err != nil {
			return nil, fmt.Errorf("failed to parse stored sections: %w", err)
		}
	}

	return &a, nil
}

// HasOutstandingAssessment reports whether an incomplete assessment exists
// for the case.
func (r *SQLRepository) HasOutstandingAssessment(ctx context.Context, caseReferenceID int64) (bool, error) {
	query := `
		SELECT COUNT(1)
		FROM assessments
		WHERE case_reference_id = ? AND status != ?
	`

	var count int
	err := r.db.QueryRowContext(ctx, r.rebind(query), caseReferenceID, string(domain.StatusComplete)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveCriteria upserts a threshold criteria record.
func (r *SQLRepository) SaveCriteria(ctx context.Context, c *domain.ThresholdCriteria) error {
	if c.ID == "" {
		return fmt.Errorf("%w: criteria id is required", ErrInvalidInput)
	}

	weightings, _ := json.Marshal(c.ChildWeightings)
	now := time.Now().UTC()

	query := `
		INSERT INTO criteria (
			id, valid_from, valid_to,
			initial_lower_threshold, initial_upper_threshold, full_threshold,
			eligibility_threshold, living_allowance,
			applicant_weighting_factor, partner_weighting_factor,
			child_weightings, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			valid_from = excluded.valid_from,
			valid_to = excluded.valid_to,
			initial_lower_threshold = excluded.initial_lower_threshold,
			initial_upper_threshold = excluded.initial_upper_threshold,
			full_threshold = excluded.full_threshold,
			eligibility_threshold = excluded.eligibility_threshold,
			living_allowance = excluded.living_allowance,
			applicant_weighting_factor = excluded.applicant_weighting_factor,
			partner_weighting_factor = excluded.partner_weighting_factor,
			child_weightings = excluded.child_weightings,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, c.ValidFrom, c.ValidTo,
		c.InitialLowerThreshold.String(), c.InitialUpperThreshold.String(), c.FullThreshold.String(),
		c.EligibilityThreshold.String(), c.LivingAllowance.String(),
		c.ApplicantWeightingFactor.String(), c.PartnerWeightingFactor.String(),
		string(weightings), now, now,
	)
	return err
}

// GetCriteria retrieves a criteria record by ID.
func (r *SQLRepository) GetCriteria(ctx context.Context, id string) (*domain.ThresholdCriteria, error) {
	query := `
		SELECT id, valid_from, valid_to,
			   initial_lower_threshold, initial_upper_threshold, full_threshold,
			   eligibility_threshold, living_allowance,
			   applicant_weighting_factor, partner_weighting_factor,
			   child_weightings
		FROM criteria
		WHERE id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), id)
	c, err := scanCriteria(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListCriteria retrieves all criteria records ordered by validity start.
func (r *SQLRepository) ListCriteria(ctx context.Context) ([]*domain.ThresholdCriteria, error) {
	query := `
		SELECT id, valid_from, valid_to,
			   initial_lower_threshold, initial_upper_threshold, full_threshold,
			   eligibility_threshold, living_allowance,
			   applicant_weighting_factor, partner_weighting_factor,
			   child_weightings
		FROM criteria
		ORDER BY valid_from
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var set []*domain.ThresholdCriteria
	for rows.Next() {
		c, err := scanCriteria(rows.Scan)
		if err != nil {
			return nil, err
		}
		set = append(set, c)
	}

	return set, rows.Err()
}

// scanCriteria reads one criteria row via the given Scan function.
func scanCriteria(scan func(dest ...any) error) (*domain.ThresholdCriteria, error) {
	var c domain.ThresholdCriteria
	var validTo sql.NullTime
	var lower, upper, full, elig, living, applicant, partner string
	var weightings string

	if err := scan(
		&c.ID, &c.ValidFrom, &validTo,
		&lower, &upper, &full,
		&elig, &living,
		&applicant, &partner,
		&weightings,
	); err != nil {
		return nil, err
	}

	if validTo.Valid {
		t := validTo.Time
		c.ValidTo = &t
	}

	for _, pair := range []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&c.InitialLowerThreshold, lower},
		{&c.InitialUpperThreshold, upper},
		{&c.FullThreshold, full},
		{&c.EligibilityThreshold, elig},
		{&c.LivingAllowance, living},
		{&c.ApplicantWeightingFactor, applicant},
		{&c.PartnerWeightingFactor, partner},
	} {
		d, err := decimal.NewFromString(pair.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored amount %q: %w", pair.raw, err)
		}
		*pair.dst = d
	}

	if weightings != "" {
		if err := json.Unmarshal([]byte(weightings), &c.ChildWeightings); err != nil {
			return nil, fmt.Errorf("failed to parse child weightings for %s: %w", c.ID, err)
		}
	}

	return &c, nil
}

// SavePolicyRule upserts a policy rule.
func (r *SQLRepository) SavePolicyRule(ctx context.Context, p *domain.PolicyRule) error {
	if p.ID == "" {
		return fmt.Errorf("%w: policy rule id is required", ErrInvalidInput)
	}

	enabled := 0
	if p.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO policy_rules (
			id, version, name, description, expression, message, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			message = excluded.message,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, p.Version, p.Name, p.Description,
		p.Expression, p.Message, enabled,
		now, now,
	)
	return err
}

// ListPolicyRules retrieves all active policy rules.
func (r *SQLRepository) ListPolicyRules(ctx context.Context) ([]*domain.PolicyRule, error) {
	query := `
		SELECT id, version, name, description, expression, message, enabled
		FROM policy_rules
		WHERE enabled = 1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.PolicyRule
	for rows.Next() {
		var p domain.PolicyRule
		var description sql.NullString
		var enabled int

		if err := rows.Scan(
			&p.ID, &p.Version, &p.Name, &description,
			&p.Expression, &p.Message, &enabled,
		); err != nil {
			return nil, err
		}

		p.Description = description.String
		p.Enabled = enabled == 1
		rules = append(rules, &p)
	}

	return rules, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
