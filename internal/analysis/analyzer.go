// Package analysis runs the full contract analysis pipeline.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/contractops/kestrel/internal/domain"
	"github.com/contractops/kestrel/internal/riskprofile"
	"github.com/contractops/kestrel/internal/rules"
	"github.com/contractops/kestrel/internal/summary"
	"github.com/contractops/kestrel/internal/valuation"
)

// profileTTL bounds how long a cached risk profile is reused before a
// re-analysis rebuilds it.
const profileTTL = time.Hour

// Analyzer orchestrates one contract analysis: value estimation, risk
// profiling, rule evaluation, summary, and persistence.
type Analyzer struct {
	repo    domain.Repository
	cache   domain.Cache
	builder *riskprofile.Builder
	tracer  trace.Tracer

	mu     sync.RWMutex
	engine *rules.Engine
}

// NewAnalyzer creates an analyzer. The cache is optional; without one
// the risk profile is rebuilt on every run.
func NewAnalyzer(repo domain.Repository, cache domain.Cache, engine *rules.Engine, builder *riskprofile.Builder) *Analyzer {
	return &Analyzer{
		repo:    repo,
		cache:   cache,
		engine:  engine,
		builder: builder,
		tracer:  otel.Tracer("kestrel-analysis"),
	}
}

// Engine returns the current rule engine.
func (a *Analyzer) Engine() *rules.Engine {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.engine
}

// SetEngine swaps the rule engine. Used for catalog hot-reload;
// in-flight analyses finish on the engine they started with.
func (a *Analyzer) SetEngine(engine *rules.Engine) {
	a.mu.Lock()
	a.engine = engine
	a.mu.Unlock()
}

// Result is the outcome of one analysis run.
type Result struct {
	ContractID string                   `json:"contractId"`
	Findings   []*domain.Finding        `json:"findings"`
	Profile    *domain.RiskProfile      `json:"profile"`
	Summary    *summary.AnalysisSummary `json:"summary"`

	// EstimatedValue is set when the contract value was derived from
	// clause amounts rather than supplied metadata.
	EstimatedValue *valuation.Estimate `json:"estimatedValue,omitempty"`

	AnalyzedAt time.Time `json:"analyzedAt"`
	DurationMS int64     `json:"durationMs"`
}

// Analyze loads a contract and its clauses, runs detection, and
// persists the findings.
func (a *Analyzer) Analyze(ctx context.Context, tenantID, contractID string) (*Result, error) {
	ctx, span := a.tracer.Start(ctx, "analysis.analyze",
		trace.WithAttributes(attribute.String("contract.id", contractID)))
	defer span.End()

	start := time.Now()

	contract, err := a.repo.GetContract(ctx, tenantID, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contract %s: %w", contractID, err)
	}
	clauses, err := a.repo.ListClauses(ctx, tenantID, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to load clauses for %s: %w", contractID, err)
	}

	meta := contract.Metadata
	var estimate *valuation.Estimate
	if meta.ContractValue == 0 {
		if estimate = valuation.EstimateValue(clauses); estimate != nil {
			meta.ContractValue = estimate.Value
			if meta.ContractCurrency == "" {
				meta.ContractCurrency = estimate.Currency
			}
			slog.Info("contract value estimated from clauses",
				"contract_id", contractID,
				"value", estimate.Value,
				"method", estimate.Method,
			)
		}
	}

	profile := a.loadOrBuildProfile(ctx, tenantID, contract, clauses, meta)

	findings := a.Engine().DetectLeakage(ctx, rules.DetectInput{
		TenantID:   tenantID,
		ContractID: contractID,
		Clauses:    clauses,
		Metadata:   meta,
		Profile:    profile,
	})

	if err := a.repo.SaveFindings(ctx, tenantID, contractID, findings); err != nil {
		return nil, fmt.Errorf("failed to save findings for %s: %w", contractID, err)
	}

	result := &Result{
		ContractID:     contractID,
		Findings:       findings,
		Profile:        profile,
		Summary:        summary.Summarize(contractID, meta, findings),
		EstimatedValue: estimate,
		AnalyzedAt:     start.UTC(),
		DurationMS:     time.Since(start).Milliseconds(),
	}

	span.SetAttributes(
		attribute.Int("finding.count", len(findings)),
		attribute.String("risk.level", result.Summary.RiskLevel),
	)
	slog.Info("contract analyzed",
		"contract_id", contractID,
		"tenant_id", tenantID,
		"findings", len(findings),
		"risk_level", result.Summary.RiskLevel,
		"total_impact", result.Summary.TotalEstimatedImpact,
		"duration_ms", result.DurationMS,
	)

	return result, nil
}

// loadOrBuildProfile returns the cached profile when the cache has one,
// otherwise builds and caches a fresh profile. Cache failures degrade
// to a rebuild, never to a failed analysis.
func (a *Analyzer) loadOrBuildProfile(ctx context.Context, tenantID string, contract *domain.Contract, clauses []*domain.Clause, meta domain.ContractMetadata) *domain.RiskProfile {
	if a.cache != nil {
		profile, err := a.cache.GetProfile(ctx, tenantID, contract.ID)
		if err != nil {
			slog.Warn("profile cache read failed",
				"contract_id", contract.ID,
				"error", err,
			)
		} else if profile != nil {
			return profile
		}
	}

	// Build against the (possibly estimated) metadata.
	enriched := *contract
	enriched.Metadata = meta
	profile := a.builder.Build(&enriched, clauses)

	if a.cache != nil {
		if err := a.cache.SetProfile(ctx, tenantID, contract.ID, profile, profileTTL); err != nil {
			slog.Warn("profile cache write failed",
				"contract_id", contract.ID,
				"error", err,
			)
		}
	}

	return profile
}

// Profile returns the contract's risk profile, from cache when
// available, building it otherwise.
func (a *Analyzer) Profile(ctx context.Context, tenantID, contractID string) (*domain.RiskProfile, error) {
	contract, err := a.repo.GetContract(ctx, tenantID, contractID)
	if err != nil {
		return nil, err
	}
	clauses, err := a.repo.ListClauses(ctx, tenantID, contractID)
	if err != nil {
		return nil, err
	}

	meta := contract.Metadata
	if meta.ContractValue == 0 {
		if est := valuation.EstimateValue(clauses); est != nil {
			meta.ContractValue = est.Value
			if meta.ContractCurrency == "" {
				meta.ContractCurrency = est.Currency
			}
		}
	}

	return a.loadOrBuildProfile(ctx, tenantID, contract, clauses, meta), nil
}
