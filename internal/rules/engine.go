package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/contractops/kestrel/internal/domain"
)

const (
	defaultMaxWorkers  = 8
	defaultRuleTimeout = 30 * time.Second

	// ruleConfidence is fixed for rule-based detections. Impact
	// confidence varies separately.
	ruleConfidence = 0.95
)

// Engine evaluates the loaded rule catalog against a contract's clauses.
// Rules run concurrently, bounded by a worker pool; a slow, failing, or
// panicking rule never takes down the run.
type Engine struct {
	rules       []*domain.Rule
	matcher     *Matcher
	calc        *Calculator
	maxWorkers  int
	ruleTimeout time.Duration
	tracer      trace.Tracer
}

// NewEngine builds an engine from a loaded catalog. Every rule's
// expression condition is compiled here; an invalid expression fails
// construction.
func NewEngine(catalog *Catalog, cfg domain.EngineConfig) (*Engine, error) {
	matcher, err := NewMatcher()
	if err != nil {
		return nil, err
	}

	for _, rule := range catalog.Rules {
		if err := matcher.CompileRule(rule); err != nil {
			return nil, err
		}
	}

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	ruleTimeout := defaultRuleTimeout
	if cfg.RuleTimeout > 0 {
		ruleTimeout = time.Duration(cfg.RuleTimeout) * time.Second
	}

	return &Engine{
		rules:       catalog.Rules,
		matcher:     matcher,
		calc:        NewCalculator(catalog.Config.ImpactDefaults),
		maxWorkers:  maxWorkers,
		ruleTimeout: ruleTimeout,
		tracer:      otel.Tracer("kestrel-rules"),
	}, nil
}

// RuleCount returns the number of loaded, enabled rules.
func (e *Engine) RuleCount() int {
	return len(e.rules)
}

// Rules returns the loaded rules for read-only inspection.
func (e *Engine) Rules() []*domain.Rule {
	return e.rules
}

// DetectInput carries everything one detection run needs.
type DetectInput struct {
	TenantID   string
	ContractID string
	Clauses    []*domain.Clause
	Metadata   domain.ContractMetadata
	Profile    *domain.RiskProfile // nil when no profile was built
}

// DetectLeakage evaluates all rules against the input clauses. Each rule
// yields at most one finding, aggregating every matching clause. Output
// order follows catalog order regardless of completion order.
func (e *Engine) DetectLeakage(ctx context.Context, in DetectInput) []*domain.Finding {
	ctx, span := e.tracer.Start(ctx, "engine.detect_leakage",
		trace.WithAttributes(
			attribute.String("contract.id", in.ContractID),
			attribute.Int("clause.count", len(in.Clauses)),
			attribute.Int("rule.count", len(e.rules)),
		))
	defer span.End()

	start := time.Now()
	results := make([]*domain.Finding, len(e.rules))
	sem := make(chan struct{}, e.maxWorkers)
	done := make(chan int, len(e.rules))

	for idx, rule := range e.rules {
		sem <- struct{}{}
		go func(idx int, rule *domain.Rule) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("rule evaluation panic",
						"rule_id", rule.RuleID,
						"contract_id", in.ContractID,
						"panic", r,
					)
				}
				<-sem
				done <- idx
			}()

			ruleCtx, cancel := context.WithTimeout(ctx, e.ruleTimeout)
			defer cancel()

			results[idx] = e.evaluateRule(ruleCtx, rule, in)
		}(idx, rule)
	}

	for range e.rules {
		<-done
	}

	findings := make([]*domain.Finding, 0, len(e.rules))
	for _, f := range results {
		if f != nil {
			findings = append(findings, f)
		}
	}

	span.SetAttributes(attribute.Int("finding.count", len(findings)))
	slog.Info("leakage detection completed",
		"contract_id", in.ContractID,
		"rules_evaluated", len(e.rules),
		"findings", len(findings),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return findings
}

// evaluateRule runs one rule against every clause and assembles a
// finding from the matches. Returns nil when nothing matched.
func (e *Engine) evaluateRule(ctx context.Context, rule *domain.Rule, in DetectInput) *domain.Finding {
	var matched []*domain.Clause
	for _, clause := range in.Clauses {
		select {
		case <-ctx.Done():
			slog.Warn("rule evaluation timed out",
				"rule_id", rule.RuleID,
				"contract_id", in.ContractID,
			)
			return nil
		default:
		}

		ok, err := e.matcher.Matches(rule, clause, in.Metadata)
		if err != nil {
			slog.Error("rule condition error",
				"rule_id", rule.RuleID,
				"clause_id", clause.ID,
				"error", err,
			)
			continue
		}
		if ok {
			matched = append(matched, clause)
		}
	}

	if len(matched) == 0 {
		return nil
	}

	// First matching clause is the reference for impact calculation.
	reference := matched[0]
	impact, assumptions := e.calc.Calculate(
		rule.ImpactCalculation, in.Metadata, reference, rule.Category, in.Profile)

	clauseIDs := make([]string, len(matched))
	for i, c := range matched {
		clauseIDs[i] = c.ID
	}

	explanation := rule.Explanation
	if rule.BusinessImpact != "" {
		explanation += "\n\nBusiness Impact: " + rule.BusinessImpact
	}

	return &domain.Finding{
		ID:                newFindingID(in.ContractID),
		TenantID:          in.TenantID,
		ContractID:        in.ContractID,
		ClauseIDs:         clauseIDs,
		LeakageCategory:   rule.Category,
		RiskType:          rule.RuleID,
		DetectionMethod:   domain.DetectionRule,
		RuleID:            rule.RuleID,
		Severity:          rule.Severity,
		Confidence:        ruleConfidence,
		Explanation:       explanation,
		BusinessImpact:    rule.BusinessImpact,
		RecommendedAction: rule.RecommendedAction,
		EstimatedImpact:   impact,
		Assumptions:       assumptions,
		DetectedAt:        time.Now().UTC(),
	}
}

func newFindingID(contractID string) string {
	return fmt.Sprintf("finding_%s_%s", contractID, uuid.NewString()[:8])
}
