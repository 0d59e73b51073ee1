// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Contract operations
	SaveContract(ctx context.Context, tenantID string, contract *Contract) error
	GetContract(ctx context.Context, tenantID string, contractID string) (*Contract, error)
	ListContracts(ctx context.Context, tenantID string) ([]*Contract, error)

	// Clause operations
	SaveClauses(ctx context.Context, tenantID string, clauses []*Clause) error
	ListClauses(ctx context.Context, tenantID string, contractID string) ([]*Clause, error)

	// Finding operations. SaveFindings replaces prior findings for the
	// contract so repeated analyses stay idempotent.
	SaveFindings(ctx context.Context, tenantID string, contractID string, findings []*Finding) error
	GetFinding(ctx context.Context, tenantID string, findingID string) (*Finding, error)
	ListFindings(ctx context.Context, tenantID string, contractID string) ([]*Finding, error)

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
