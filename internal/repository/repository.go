// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/contractops/kestrel/internal/domain"
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

// SaveContract stores or updates a contract with tenant isolation.
func (r *SQLRepository) SaveContract(ctx context.Context, tenantID string, contract *domain.Contract) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if contract.ID == "" {
		return fmt.Errorf("%w: contract ID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO contracts (
			id, tenant_id, name, counterparty,
			contract_value, contract_currency, duration_years,
			start_date, end_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			counterparty = excluded.counterparty,
			contract_value = excluded.contract_value,
			contract_currency = excluded.contract_currency,
			duration_years = excluded.duration_years,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		contract.ID, tenantID, contract.Name, contract.Counterparty,
		contract.Metadata.ContractValue, contract.Metadata.ContractCurrency,
		contract.Metadata.DurationYears,
		contract.StartDate, contract.EndDate,
		contract.CreatedAt, contract.UpdatedAt,
	)
	return err
}

// GetContract retrieves a contract by ID with tenant isolation.
func (r *SQLRepository) GetContract(ctx context.Context, tenantID string, contractID string) (*domain.Contract, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, counterparty,
			   contract_value, contract_currency, duration_years,
			   start_date, end_date, created_at, updated_at
		FROM contracts
		WHERE tenant_id = ? AND id = ?
	`

	var c domain.Contract
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, contractID).Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Counterparty,
		&c.Metadata.ContractValue, &c.Metadata.ContractCurrency,
		&c.Metadata.DurationYears,
		&c.StartDate, &c.EndDate, &c.CreatedAt, &c.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// ListContracts retrieves all contracts for a tenant.
func (r *SQLRepository) ListContracts(ctx context.Context, tenantID string) ([]*domain.Contract, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, counterparty,
			   contract_value, contract_currency, duration_years,
			   start_date, end_date, created_at, updated_at
		FROM contracts
		WHERE tenant_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []*domain.Contract
	for rows.Next() {
		var c domain.Contract
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.Name, &c.Counterparty,
			&c.Metadata.ContractValue, &c.Metadata.ContractCurrency,
			&c.Metadata.DurationYears,
			&c.StartDate, &c.EndDate, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		contracts = append(contracts, &c)
	}

	return contracts, rows.Err()
}

// SaveClauses stores a contract's clauses with tenant isolation.
func (r *SQLRepository) SaveClauses(ctx context.Context, tenantID string, clauses []*domain.Clause) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO clauses (
			id, tenant_id, contract_id, clause_type, original_text,
			risk_signals, entities, section_number, page_number, extracted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			clause_type = excluded.clause_type,
			original_text = excluded.original_text,
			risk_signals = excluded.risk_signals,
			entities = excluded.entities,
			section_number = excluded.section_number,
			page_number = excluded.page_number
	`

	for _, clause := range clauses {
		if clause.ID == "" {
			return fmt.Errorf("%w: clause ID is required", ErrInvalidInput)
		}

		signals, _ := json.Marshal(clause.RiskSignals)
		entities, _ := json.Marshal(clause.Entities)

		_, err := r.db.ExecContext(ctx, r.rebind(query),
			clause.ID, tenantID, clause.ContractID,
			clause.ClauseType, clause.OriginalText,
			string(signals), string(entities),
			clause.SectionNumber, clause.PageNumber, clause.ExtractedAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// ListClauses retrieves a contract's clauses with tenant isolation.
func (r *SQLRepository) ListClauses(ctx context.Context, tenantID string, contractID string) ([]*domain.Clause, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, contract_id, clause_type, original_text,
			   risk_signals, entities, section_number, page_number, extracted_at
		FROM clauses
		WHERE tenant_id = ? AND contract_id = ?
		ORDER BY section_number, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clauses []*domain.Clause
	for rows.Next() {
		var c domain.Clause
		var signals, entities string

		if err := rows.Scan(
			&c.ID, &c.ContractID, &c.ClauseType, &c.OriginalText,
			&signals, &entities, &c.SectionNumber, &c.PageNumber, &c.ExtractedAt,
		); err != nil {
			return nil, err
		}

		if signals != "" {
			json.Unmarshal([]byte(signals), &c.RiskSignals)
		}
		if entities != "" {
			json.Unmarshal([]byte(entities), &c.Entities)
		}

		clauses = append(clauses, &c)
	}

	return clauses, rows.Err()
}

// SaveFindings replaces a contract's findings inside one transaction so
// repeated analyses stay idempotent.
func (r *SQLRepository) SaveFindings(ctx context.Context, tenantID string, contractID string, findings []*domain.Finding) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if contractID == "" {
		return fmt.Errorf("%w: contractID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	deleteQuery := `DELETE FROM findings WHERE tenant_id = ? AND contract_id = ?`
	if _, err := tx.ExecContext(ctx, r.rebind(deleteQuery), tenantID, contractID); err != nil {
		return err
	}

	insertQuery := `
		INSERT INTO findings (
			id, tenant_id, contract_id, clause_ids,
			leakage_category, risk_type, detection_method, rule_id,
			severity, confidence, explanation, business_impact,
			recommended_action, estimated_impact, assumptions, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, f := range findings {
		clauseIDs, _ := json.Marshal(f.ClauseIDs)
		impact, _ := json.Marshal(f.EstimatedImpact)
		assumptions, _ := json.Marshal(f.Assumptions)

		_, err := tx.ExecContext(ctx, r.rebind(insertQuery),
			f.ID, tenantID, contractID, string(clauseIDs),
			f.LeakageCategory, f.RiskType, f.DetectionMethod, f.RuleID,
			f.Severity, f.Confidence, f.Explanation, f.BusinessImpact,
			f.RecommendedAction, string(impact), string(assumptions), f.DetectedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetFinding retrieves a finding by ID with tenant isolation.
func (r *SQLRepository) GetFinding(ctx context.Context, tenantID string, findingID string) (*domain.Finding, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, contract_id, clause_ids,
			   leakage_category, risk_type, detection_method, rule_id,
			   severity, confidence, explanation, business_impact,
			   recommended_action, estimated_impact, assumptions, detected_at
		FROM findings
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, findingID)
	f, err := scanFinding(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

// ListFindings retrieves a contract's findings with tenant isolation,
// ordered by severity then estimated impact.
func (r *SQLRepository) ListFindings(ctx context.Context, tenantID string, contractID string) ([]*domain.Finding, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, contract_id, clause_ids,
			   leakage_category, risk_type, detection_method, rule_id,
			   severity, confidence, explanation, business_impact,
			   recommended_action, estimated_impact, assumptions, detected_at
		FROM findings
		WHERE tenant_id = ? AND contract_id = ?
		ORDER BY CASE severity
			WHEN 'critical' THEN 0
			WHEN 'high' THEN 1
			WHEN 'medium' THEN 2
			WHEN 'low' THEN 3
			ELSE 4 END,
			detected_at
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []*domain.Finding
	for rows.Next() {
		f, err := scanFinding(rows.Scan)
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}

	return findings, rows.Err()
}

func scanFinding(scan func(dest ...any) error) (*domain.Finding, error) {
	var f domain.Finding
	var clauseIDs, impact, assumptions string
	var detectedAt time.Time

	err := scan(
		&f.ID, &f.TenantID, &f.ContractID, &clauseIDs,
		&f.LeakageCategory, &f.RiskType, &f.DetectionMethod, &f.RuleID,
		&f.Severity, &f.Confidence, &f.Explanation, &f.BusinessImpact,
		&f.RecommendedAction, &impact, &assumptions, &detectedAt,
	)
	if err != nil {
		return nil, err
	}

	f.DetectedAt = detectedAt
	json.Unmarshal([]byte(clauseIDs), &f.ClauseIDs)
	json.Unmarshal([]byte(impact), &f.EstimatedImpact)
	if assumptions != "" {
		json.Unmarshal([]byte(assumptions), &f.Assumptions)
	}

	return &f, nil
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
