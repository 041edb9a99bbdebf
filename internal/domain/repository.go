package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Assessment operations
	SaveAssessment(ctx context.Context, a *Assessment) error
	GetAssessment(ctx context.Context, id string) (*Assessment, error)

	// HasOutstandingAssessment reports whether an incomplete assessment
	// exists for the case. Backs the community-tier CaseDataService.
	HasOutstandingAssessment(ctx context.Context, caseReferenceID int64) (bool, error)

	// Threshold criteria operations
	SaveCriteria(ctx context.Context, c *ThresholdCriteria) error
	GetCriteria(ctx context.Context, id string) (*ThresholdCriteria, error)
	ListCriteria(ctx context.Context) ([]*ThresholdCriteria, error)

	// Policy rule operations
	SavePolicyRule(ctx context.Context, p *PolicyRule) error
	ListPolicyRules(ctx context.Context) ([]*PolicyRule, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
