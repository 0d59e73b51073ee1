package domain

import "fmt"

// ImpactMethod selects one of the four impact calculation formulas.
// The set is closed: catalog values outside it fail at load time.
type ImpactMethod string

const (
	ImpactInflationBased    ImpactMethod = "inflation_based"
	ImpactPercentageOfValue ImpactMethod = "percentage_of_value"
	ImpactRenewalBased      ImpactMethod = "renewal_based"
	ImpactOpportunityCost   ImpactMethod = "opportunity_cost"
)

// ParseImpactMethod validates a catalog method string.
func ParseImpactMethod(s string) (ImpactMethod, error) {
	switch ImpactMethod(s) {
	case ImpactInflationBased, ImpactPercentageOfValue,
		ImpactRenewalBased, ImpactOpportunityCost:
		return ImpactMethod(s), nil
	}
	return "", fmt.Errorf("unknown impact method %q", s)
}

// Conditions is a rule's match criteria. Every present field must hold
// for a clause to match; absent fields are vacuously true. Unknown
// catalog keys are dropped during YAML decoding, not errors.
type Conditions struct {
	// Exact clause type match
	ClauseType string `yaml:"clause_type,omitempty" json:"clauseType,omitempty"`

	// ANY of these risk-signal tags present on the clause
	RiskSignals []string `yaml:"risk_signals,omitempty" json:"riskSignals,omitempty"`

	// Clause text contains ANY of these substrings (case-insensitive)
	Contains []string `yaml:"contains,omitempty" json:"contains,omitempty"`

	// Clause text contains NONE of these substrings
	NotContains []string `yaml:"not_contains,omitempty" json:"notContains,omitempty"`

	// Clause text contains ALL of these substrings
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`

	// Contract-level: duration_years >= threshold
	MinContractYears float64 `yaml:"min_contract_years,omitempty" json:"minContractYears,omitempty"`

	// Optional CEL expression over clause and contract variables.
	// Compiled at catalog load; must evaluate to bool.
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"`
}

// ImpactParameters are the static fallbacks for an impact formula, used
// only when no dynamic risk-profile value applies.
type ImpactParameters struct {
	InflationRate      *float64 `yaml:"inflation_rate,omitempty" json:"inflationRate,omitempty"`
	TimePeriod         *float64 `yaml:"time_period,omitempty" json:"timePeriod,omitempty"`
	RiskPercentage     *float64 `yaml:"risk_percentage,omitempty" json:"riskPercentage,omitempty"`
	RenewalProbability *float64 `yaml:"renewal_probability,omitempty" json:"renewalProbability,omitempty"`
	ExpectedIncrease   *float64 `yaml:"expected_increase,omitempty" json:"expectedIncrease,omitempty"`
	MonthsAtRisk       *float64 `yaml:"months_at_risk,omitempty" json:"monthsAtRisk,omitempty"`
}

// ImpactCalculation pairs a formula with its static parameters.
type ImpactCalculation struct {
	Method     ImpactMethod     `json:"method"`
	Parameters ImpactParameters `json:"parameters"`
}

// Rule is one entry of the leakage rule catalog. Rules are read-only
// configuration validated once at catalog load.
type Rule struct {
	RuleID   string   `json:"ruleId"`
	Enabled  bool     `json:"enabled"`
	Category Category `json:"category"`
	Severity Severity `json:"severity"`

	Conditions        Conditions        `json:"conditions"`
	ImpactCalculation ImpactCalculation `json:"impactCalculation"`

	Explanation       string `json:"explanation"`
	BusinessImpact    string `json:"businessImpact,omitempty"`
	RecommendedAction string `json:"recommendedAction,omitempty"`
}

// CatalogConfig holds catalog-wide defaults.
type CatalogConfig struct {
	ImpactDefaults ImpactDefaults `yaml:"impact_defaults" json:"impactDefaults"`
}

// ImpactDefaults are fallbacks shared by all rules.
type ImpactDefaults struct {
	InflationRate float64 `yaml:"inflation_rate" json:"inflationRate"`
}
