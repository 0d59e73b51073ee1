package rules

import (
	"context"
	"strings"
	"testing"

	"github.com/contractops/kestrel/internal/domain"
)

func testEngine(t *testing.T, yaml string) *Engine {
	t.Helper()
	cat, err := ParseCatalog([]byte(yaml))
	if err != nil {
		t.Fatalf("ParseCatalog failed: %v", err)
	}
	eng, err := NewEngine(cat, domain.EngineConfig{MaxWorkers: 4, RuleTimeout: 5})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return eng
}

const engineCatalog = `
rules:
  - rule_id: no_price_escalation
    category: pricing
    severity: high
    conditions:
      clause_type: pricing
      not_contains: ["escalation", "cpi", "adjustment"]
    impact_calculation:
      method: percentage_of_value
      parameters:
        risk_percentage: 0.05
    explanation: Pricing is fixed with no escalation mechanism.
    business_impact: Margins erode against inflation over the term.
    recommended_action: Add an annual CPI-linked adjustment.

  - rule_id: auto_renewal_trap
    category: auto_renewal
    severity: medium
    conditions:
      clause_type: renewal
      risk_signals: [auto_renewal]
    impact_calculation:
      method: renewal_based
    explanation: Contract renews automatically without renegotiation.

  - rule_id: never_matches
    category: liability
    severity: critical
    conditions:
      clause_type: liability
      contains: ["unlimited liability"]
    impact_calculation:
      method: percentage_of_value
    explanation: Unlimited liability exposure.
`

func TestDetectLeakageAggregatesClauses(t *testing.T) {
	eng := testEngine(t, engineCatalog)

	in := DetectInput{
		TenantID:   "tenant_a",
		ContractID: "contract_1",
		Metadata:   domain.ContractMetadata{ContractValue: 1000000, DurationYears: 3},
		Clauses: []*domain.Clause{
			{ID: "c1", ClauseType: "pricing", OriginalText: "Prices shall remain fixed for the term."},
			{ID: "c2", ClauseType: "pricing", OriginalText: "Unit rates are fixed at the amounts in Exhibit A."},
			{ID: "c3", ClauseType: "payment", OriginalText: "Payment due net 30."},
		},
	}

	findings := eng.DetectLeakage(context.Background(), in)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}

	f := findings[0]
	if f.RuleID != "no_price_escalation" {
		t.Errorf("rule_id = %s, want no_price_escalation", f.RuleID)
	}
	if len(f.ClauseIDs) != 2 || f.ClauseIDs[0] != "c1" || f.ClauseIDs[1] != "c2" {
		t.Errorf("clause IDs = %v, want [c1 c2]", f.ClauseIDs)
	}
	if f.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", f.Confidence)
	}
	if f.DetectionMethod != domain.DetectionRule {
		t.Errorf("detection method = %s, want rule", f.DetectionMethod)
	}
	if f.TenantID != "tenant_a" || f.ContractID != "contract_1" {
		t.Errorf("tenant/contract = %s/%s", f.TenantID, f.ContractID)
	}
	if !strings.HasPrefix(f.ID, "finding_contract_1_") {
		t.Errorf("finding ID = %s, want finding_contract_1_ prefix", f.ID)
	}
	if !strings.Contains(f.Explanation, "Business Impact: Margins erode") {
		t.Errorf("explanation missing business impact suffix: %q", f.Explanation)
	}
	if f.EstimatedImpact.Value != 1000000*0.05 {
		t.Errorf("impact = %v, want 50000", f.EstimatedImpact.Value)
	}
	if f.DetectedAt.IsZero() {
		t.Error("detected_at not set")
	}
}

func TestDetectLeakageMultipleRules(t *testing.T) {
	eng := testEngine(t, engineCatalog)

	in := DetectInput{
		ContractID: "contract_2",
		Metadata:   domain.ContractMetadata{ContractValue: 500000},
		Clauses: []*domain.Clause{
			{ID: "c1", ClauseType: "pricing", OriginalText: "fixed pricing"},
			{ID: "c2", ClauseType: "renewal", OriginalText: "renews automatically", RiskSignals: []string{"auto_renewal"}},
		},
	}

	findings := eng.DetectLeakage(context.Background(), in)
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}

	// Output follows catalog order, not completion order.
	if findings[0].RuleID != "no_price_escalation" || findings[1].RuleID != "auto_renewal_trap" {
		t.Errorf("order = [%s %s], want catalog order", findings[0].RuleID, findings[1].RuleID)
	}
}

func TestDetectLeakageNoMatches(t *testing.T) {
	eng := testEngine(t, engineCatalog)

	in := DetectInput{
		ContractID: "contract_3",
		Clauses: []*domain.Clause{
			{ID: "c1", ClauseType: "delivery", OriginalText: "delivery within 30 days"},
		},
	}

	findings := eng.DetectLeakage(context.Background(), in)
	if len(findings) != 0 {
		t.Fatalf("expected no findings, got %d", len(findings))
	}
}

func TestDetectLeakageIsolatesFailingRule(t *testing.T) {
	// The second rule's expression fails at runtime on an empty amounts
	// list. The first rule must still produce its finding.
	eng := testEngine(t, `
rules:
  - rule_id: healthy_rule
    category: pricing
    severity: high
    conditions:
      clause_type: pricing
    impact_calculation:
      method: percentage_of_value
    explanation: Works fine.

  - rule_id: broken_rule
    category: payment
    severity: low
    conditions:
      expression: "amounts[0] > 100.0"
    impact_calculation:
      method: percentage_of_value
    explanation: Fails on clauses with no amounts.
`)

	in := DetectInput{
		ContractID: "contract_4",
		Metadata:   domain.ContractMetadata{ContractValue: 100000},
		Clauses: []*domain.Clause{
			{ID: "c1", ClauseType: "pricing", OriginalText: "fixed pricing"},
		},
	}

	findings := eng.DetectLeakage(context.Background(), in)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].RuleID != "healthy_rule" {
		t.Errorf("rule_id = %s, want healthy_rule", findings[0].RuleID)
	}
}

func TestDetectLeakageUsesProfile(t *testing.T) {
	eng := testEngine(t, engineCatalog)

	profile := &domain.RiskProfile{
		ContractID:             "contract_5",
		ContractValue:          1000000,
		ValueTier:              domain.TierLarge,
		ComplexityLevel:        domain.ComplexityLow,
		RemainingYears:         2,
		BaseRiskMultiplier:     1.0,
		InflationRate:          0.03,
		PricingLeakProbability: 0.09,
	}

	in := DetectInput{
		ContractID: "contract_5",
		Metadata:   domain.ContractMetadata{ContractValue: 1000000},
		Clauses: []*domain.Clause{
			{ID: "c1", ClauseType: "pricing", OriginalText: "fixed pricing"},
		},
		Profile: profile,
	}

	findings := eng.DetectLeakage(context.Background(), in)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].EstimatedImpact.Value != 1000000*0.09 {
		t.Errorf("impact = %v, want dynamic 90000", findings[0].EstimatedImpact.Value)
	}
	if findings[0].EstimatedImpact.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8 with profile", findings[0].EstimatedImpact.Confidence)
	}
}

func TestNewEngineRejectsBadExpression(t *testing.T) {
	cat, err := ParseCatalog([]byte(`
rules:
  - rule_id: bad
    category: pricing
    severity: low
    conditions:
      expression: "not valid cel ("
    impact_calculation:
      method: percentage_of_value
    explanation: Broken.
`))
	if err != nil {
		t.Fatalf("ParseCatalog failed: %v", err)
	}
	if _, err := NewEngine(cat, domain.EngineConfig{}); err == nil {
		t.Error("expected construction error for invalid expression")
	}
}
