package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/contractops/kestrel/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "kestrel-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetContract", func(t *testing.T) {
		contract := &domain.Contract{
			ID:           "contract-001",
			Name:         "Master Services Agreement",
			Counterparty: "Acme Corp",
			Metadata: domain.ContractMetadata{
				ContractValue:    1_000_000,
				ContractCurrency: "USD",
				DurationYears:    4,
			},
			StartDate: "2025-01-01T00:00:00Z",
			EndDate:   "2029-01-01T00:00:00Z",
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}

		if err := repo.SaveContract(ctx, tenantID, contract); err != nil {
			t.Fatalf("SaveContract failed: %v", err)
		}

		retrieved, err := repo.GetContract(ctx, tenantID, contract.ID)
		if err != nil {
			t.Fatalf("GetContract failed: %v", err)
		}

		if retrieved.ID != contract.ID {
			t.Errorf("expected ID %s, got %s", contract.ID, retrieved.ID)
		}
		if retrieved.Metadata.ContractValue != 1_000_000 {
			t.Errorf("expected value 1000000, got %v", retrieved.Metadata.ContractValue)
		}
		if retrieved.TenantID != tenantID {
			t.Errorf("expected TenantID %s, got %s", tenantID, retrieved.TenantID)
		}
	})

	t.Run("UpsertContract", func(t *testing.T) {
		contract := &domain.Contract{
			ID:        "contract-001",
			Name:      "Master Services Agreement v2",
			Metadata:  domain.ContractMetadata{ContractValue: 1_200_000, ContractCurrency: "USD", DurationYears: 4},
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}

		if err := repo.SaveContract(ctx, tenantID, contract); err != nil {
			t.Fatalf("SaveContract upsert failed: %v", err)
		}

		retrieved, err := repo.GetContract(ctx, tenantID, contract.ID)
		if err != nil {
			t.Fatalf("GetContract failed: %v", err)
		}
		if retrieved.Metadata.ContractValue != 1_200_000 {
			t.Errorf("expected updated value 1200000, got %v", retrieved.Metadata.ContractValue)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		_, err := repo.GetContract(ctx, "tenant-002", "contract-001")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		err := repo.SaveContract(ctx, "", &domain.Contract{ID: "contract-x"})
		if err == nil {
			t.Error("expected error for empty tenantID")
		}

		_, err = repo.GetContract(ctx, "", "contract-001")
		if err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("SaveAndListClauses", func(t *testing.T) {
		clauses := []*domain.Clause{
			{
				ID:           "clause-001",
				ContractID:   "contract-001",
				ClauseType:   "pricing",
				OriginalText: "Prices shall remain fixed for the term.",
				RiskSignals:  []string{"no_price_escalation"},
				Entities:     domain.ExtractedEntities{Amounts: []float64{1_000_000}, Currency: "USD"},
				ExtractedAt:  time.Now().UTC(),
			},
			{
				ID:           "clause-002",
				ContractID:   "contract-001",
				ClauseType:   "renewal",
				OriginalText: "This agreement renews automatically.",
				ExtractedAt:  time.Now().UTC(),
			},
		}

		if err := repo.SaveClauses(ctx, tenantID, clauses); err != nil {
			t.Fatalf("SaveClauses failed: %v", err)
		}

		retrieved, err := repo.ListClauses(ctx, tenantID, "contract-001")
		if err != nil {
			t.Fatalf("ListClauses failed: %v", err)
		}
		if len(retrieved) != 2 {
			t.Fatalf("expected 2 clauses, got %d", len(retrieved))
		}

		first := retrieved[0]
		if first.ClauseType != "pricing" {
			t.Errorf("expected pricing clause first, got %s", first.ClauseType)
		}
		if len(first.RiskSignals) != 1 || first.RiskSignals[0] != "no_price_escalation" {
			t.Errorf("risk signals = %v", first.RiskSignals)
		}
		if len(first.Entities.Amounts) != 1 || first.Entities.Amounts[0] != 1_000_000 {
			t.Errorf("entities = %+v", first.Entities)
		}
	})

	t.Run("SaveFindingsReplacesPrior", func(t *testing.T) {
		first := []*domain.Finding{
			{
				ID:              "finding-001",
				ContractID:      "contract-001",
				ClauseIDs:       []string{"clause-001"},
				LeakageCategory: domain.CategoryPricing,
				RiskType:        "no_price_escalation",
				DetectionMethod: domain.DetectionRule,
				RuleID:          "no_price_escalation",
				Severity:        domain.SeverityHigh,
				Confidence:      0.95,
				Explanation:     "Pricing is fixed without escalation.",
				EstimatedImpact: domain.EstimatedImpact{Currency: "USD", Value: 90_000, Confidence: 0.8},
				DetectedAt:      time.Now().UTC(),
			},
			{
				ID:              "finding-002",
				ContractID:      "contract-001",
				ClauseIDs:       []string{"clause-002"},
				LeakageCategory: domain.CategoryAutoRenewal,
				RiskType:        "auto_renewal_trap",
				DetectionMethod: domain.DetectionRule,
				RuleID:          "auto_renewal_trap",
				Severity:        domain.SeverityMedium,
				Confidence:      0.95,
				Explanation:     "Contract renews automatically.",
				EstimatedImpact: domain.EstimatedImpact{Currency: "USD", Value: 40_000, Confidence: 0.8},
				DetectedAt:      time.Now().UTC(),
			},
		}

		if err := repo.SaveFindings(ctx, tenantID, "contract-001", first); err != nil {
			t.Fatalf("SaveFindings failed: %v", err)
		}

		listed, err := repo.ListFindings(ctx, tenantID, "contract-001")
		if err != nil {
			t.Fatalf("ListFindings failed: %v", err)
		}
		if len(listed) != 2 {
			t.Fatalf("expected 2 findings, got %d", len(listed))
		}
		if listed[0].Severity != domain.SeverityHigh {
			t.Errorf("expected high severity first, got %s", listed[0].Severity)
		}

		// A re-analysis replaces the previous findings.
		second := []*domain.Finding{first[0]}
		if err := repo.SaveFindings(ctx, tenantID, "contract-001", second); err != nil {
			t.Fatalf("SaveFindings replace failed: %v", err)
		}

		listed, err = repo.ListFindings(ctx, tenantID, "contract-001")
		if err != nil {
			t.Fatalf("ListFindings failed: %v", err)
		}
		if len(listed) != 1 {
			t.Errorf("expected 1 finding after replace, got %d", len(listed))
		}

		retrieved, err := repo.GetFinding(ctx, tenantID, "finding-001")
		if err != nil {
			t.Fatalf("GetFinding failed: %v", err)
		}
		if retrieved.EstimatedImpact.Value != 90_000 {
			t.Errorf("impact = %v, want 90000", retrieved.EstimatedImpact.Value)
		}
		if len(retrieved.ClauseIDs) != 1 || retrieved.ClauseIDs[0] != "clause-001" {
			t.Errorf("clause IDs = %v", retrieved.ClauseIDs)
		}
	})

	t.Run("ListContracts", func(t *testing.T) {
		contracts, err := repo.ListContracts(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListContracts failed: %v", err)
		}
		if len(contracts) != 1 {
			t.Errorf("expected 1 contract, got %d", len(contracts))
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetContract(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}

		_, err = repo.GetFinding(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
