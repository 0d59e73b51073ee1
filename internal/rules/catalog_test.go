package rules

import (
	"strings"
	"testing"

	"github.com/contractops/kestrel/internal/domain"
)

const sampleCatalog = `
config:
  impact_defaults:
    inflation_rate: 0.04

rules:
  - rule_id: no_price_escalation
    category: pricing
    severity: high
    conditions:
      clause_type: pricing
      risk_signals: [no_price_escalation]
    impact_calculation:
      method: inflation_based
      parameters:
        inflation_rate: 0.03
        time_period: 3
    explanation: Contract lacks a price escalation mechanism.
    business_impact: Margins erode as costs rise over the term.
    recommended_action: Negotiate an annual CPI-linked adjustment.

  - rule_id: disabled_rule
    enabled: false
    category: renewal
    severity: low
    conditions:
      clause_type: renewal
    impact_calculation:
      method: renewal_based
    explanation: Should never load.

  - rule_id: unfavorable_payment
    category: payment
    severity: medium
    conditions:
      clause_type: payment
      contains: ["net 90", "net 120"]
    impact_calculation:
      method: percentage_of_value
      parameters:
        risk_percentage: 0.02
    explanation: Extended payment terms delay cash collection.
`

func TestParseCatalog(t *testing.T) {
	cat, err := ParseCatalog([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog failed: %v", err)
	}

	if len(cat.Rules) != 2 {
		t.Fatalf("expected 2 enabled rules, got %d", len(cat.Rules))
	}
	if cat.Config.ImpactDefaults.InflationRate != 0.04 {
		t.Errorf("expected inflation default 0.04, got %v", cat.Config.ImpactDefaults.InflationRate)
	}

	rule, ok := cat.RuleByID("no_price_escalation")
	if !ok {
		t.Fatal("no_price_escalation not found")
	}
	if rule.Category != domain.CategoryPricing {
		t.Errorf("expected pricing category, got %s", rule.Category)
	}
	if rule.Severity != domain.SeverityHigh {
		t.Errorf("expected high severity, got %s", rule.Severity)
	}
	if rule.ImpactCalculation.Method != domain.ImpactInflationBased {
		t.Errorf("expected inflation_based, got %s", rule.ImpactCalculation.Method)
	}
	if rule.ImpactCalculation.Parameters.TimePeriod == nil || *rule.ImpactCalculation.Parameters.TimePeriod != 3 {
		t.Error("expected time_period parameter 3")
	}

	if _, ok := cat.RuleByID("disabled_rule"); ok {
		t.Error("disabled rule should not load")
	}
}

func TestParseCatalogDefaultInflation(t *testing.T) {
	cat, err := ParseCatalog([]byte(`rules: []`))
	if err != nil {
		t.Fatalf("ParseCatalog failed: %v", err)
	}
	if cat.Config.ImpactDefaults.InflationRate != 0.03 {
		t.Errorf("expected default inflation 0.03, got %v", cat.Config.ImpactDefaults.InflationRate)
	}
}

func TestParseCatalogRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "empty rule_id",
			yaml: `
rules:
  - category: pricing
    severity: high
    impact_calculation:
      method: inflation_based
`,
			want: "empty rule_id",
		},
		{
			name: "duplicate rule_id",
			yaml: `
rules:
  - rule_id: dup
    category: pricing
    severity: high
    impact_calculation:
      method: inflation_based
  - rule_id: dup
    category: payment
    severity: low
    impact_calculation:
      method: opportunity_cost
`,
			want: "duplicate rule_id",
		},
		{
			name: "unknown category",
			yaml: `
rules:
  - rule_id: bad_cat
    category: astrology
    severity: high
    impact_calculation:
      method: inflation_based
`,
			want: "unknown category",
		},
		{
			name: "unknown severity",
			yaml: `
rules:
  - rule_id: bad_sev
    category: pricing
    severity: apocalyptic
    impact_calculation:
      method: inflation_based
`,
			want: "unknown severity",
		},
		{
			name: "unknown method",
			yaml: `
rules:
  - rule_id: bad_method
    category: pricing
    severity: high
    impact_calculation:
      method: vibes_based
`,
			want: "unknown impact method",
		},
		{
			name: "bad yaml",
			yaml: "rules: [",
			want: "yaml parse error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestDefaultCatalog(t *testing.T) {
	cat, err := LoadCatalog("../../rules/leakage_rules.yaml")
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}

	if cat.Config.ImpactDefaults.InflationRate != 0.03 {
		t.Errorf("default inflation = %v, want 0.03", cat.Config.ImpactDefaults.InflationRate)
	}

	rule, ok := cat.RuleByID("no_price_escalation")
	if !ok {
		t.Fatal("no_price_escalation not in the shipped catalog")
	}
	// Impact is driven by the profile's pricing leak probability, not a
	// hardcoded inflation figure.
	if rule.ImpactCalculation.Method != domain.ImpactPercentageOfValue {
		t.Errorf("no_price_escalation method = %s, want percentage_of_value", rule.ImpactCalculation.Method)
	}
	if rule.Severity != domain.SeverityHigh {
		t.Errorf("no_price_escalation severity = %s, want high", rule.Severity)
	}

	if _, ok := cat.RuleByID("late_delivery_no_penalty"); ok {
		t.Error("disabled rule late_delivery_no_penalty should not load")
	}
}

func TestRulesByCategory(t *testing.T) {
	cat, err := ParseCatalog([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog failed: %v", err)
	}

	pricing := cat.RulesByCategory(domain.CategoryPricing)
	if len(pricing) != 1 {
		t.Errorf("expected 1 pricing rule, got %d", len(pricing))
	}
	if got := cat.RulesByCategory(domain.CategoryLiability); len(got) != 0 {
		t.Errorf("expected no liability rules, got %d", len(got))
	}
}
