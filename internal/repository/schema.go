package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.
// Monetary values are stored as TEXT decimal strings; REAL would lose
// exactness on amounts the engine rounds to two decimal places.

const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    case_reference_id BIGINT NOT NULL,
    type TEXT NOT NULL,
    status TEXT NOT NULL,
    effective_date TIMESTAMP NOT NULL,
    criteria_id TEXT NOT NULL,
    applicant_annual_total TEXT NOT NULL,
    partner_annual_total TEXT NOT NULL,
    annual_total TEXT NOT NULL,
    adjusted_income TEXT NOT NULL,
    lower_threshold TEXT NOT NULL,
    upper_threshold TEXT NOT NULL,
    full_threshold TEXT NOT NULL,
    result_code TEXT NOT NULL,
    result_reason TEXT NOT NULL,
    sections TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_case ON assessments(case_reference_id);
CREATE INDEX IF NOT EXISTS idx_assessments_status ON assessments(case_reference_id, status);
CREATE INDEX IF NOT EXISTS idx_assessments_created ON assessments(created_at);
`

const schemaCriteria = `
CREATE TABLE IF NOT EXISTS criteria (
    id TEXT PRIMARY KEY,
    valid_from TIMESTAMP NOT NULL,
    valid_to TIMESTAMP,
    initial_lower_threshold TEXT NOT NULL,
    initial_upper_threshold TEXT NOT NULL,
    full_threshold TEXT NOT NULL,
    eligibility_threshold TEXT NOT NULL,
    living_allowance TEXT NOT NULL,
    applicant_weighting_factor TEXT NOT NULL,
    partner_weighting_factor TEXT NOT NULL,
    child_weightings TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_criteria_valid_from ON criteria(valid_from);
`

const schemaPolicyRules = `
CREATE TABLE IF NOT EXISTS policy_rules (
    id TEXT NOT NULL,
    version TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    message TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_policy_rules_enabled ON policy_rules(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAssessments,
		schemaCriteria,
		schemaPolicyRules,
	}
}
