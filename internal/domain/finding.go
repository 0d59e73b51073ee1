package domain

import (
	"fmt"
	"time"
)

// Category classifies the kind of commercial leakage a rule detects.
// The set is closed: catalog values outside it fail at load time.
type Category string

const (
	CategoryPricing          Category = "pricing"
	CategoryPaymentTerms     Category = "payment"
	CategoryRenewal          Category = "renewal"
	CategoryAutoRenewal      Category = "auto_renewal"
	CategoryTermination      Category = "termination"
	CategoryServiceLevel     Category = "service_level"
	CategoryLiability        Category = "liability"
	CategoryPenalties        Category = "penalties"
	CategoryVolumeCommitment Category = "volume_commitment"
	CategoryDelivery         Category = "delivery"
	CategoryCompliance       Category = "compliance"
)

// ParseCategory validates a catalog category string.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryPricing, CategoryPaymentTerms, CategoryRenewal,
		CategoryAutoRenewal, CategoryTermination, CategoryServiceLevel,
		CategoryLiability, CategoryPenalties, CategoryVolumeCommitment,
		CategoryDelivery, CategoryCompliance:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Severity ranks a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// ParseSeverity validates a catalog severity string.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return Severity(s), nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Rank orders severities for sorting, critical first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// DetectionMethod records how a finding was produced.
type DetectionMethod string

const (
	DetectionRule DetectionMethod = "rule"
)

// EstimatedImpact is the monetary estimate attached to a finding.
type EstimatedImpact struct {
	Currency          string  `json:"currency"`
	Value             float64 `json:"value"`
	CalculationMethod string  `json:"calculationMethod,omitempty"`
	Confidence        float64 `json:"confidence"`
}

// Assumptions records the inputs an impact estimate was built on.
type Assumptions struct {
	InflationRate    float64        `json:"inflationRate,omitempty"`
	RemainingYears   float64        `json:"remainingYears,omitempty"`
	Probability      *float64       `json:"probability,omitempty"`
	CustomParameters map[string]any `json:"customParameters,omitempty"`
}

// Finding is one rule's aggregated detection result for a contract.
// A rule produces at most one Finding per engine run; ClauseIDs lists
// every clause that matched the rule's conditions.
type Finding struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId,omitempty"`
	ContractID string `json:"contractId"`

	ClauseIDs []string `json:"clauseIds"`

	LeakageCategory Category        `json:"leakageCategory"`
	RiskType        string          `json:"riskType"` // rule_id
	DetectionMethod DetectionMethod `json:"detectionMethod"`
	RuleID          string          `json:"ruleId"`

	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`

	Explanation       string `json:"explanation"`
	BusinessImpact    string `json:"businessImpact,omitempty"`
	RecommendedAction string `json:"recommendedAction,omitempty"`

	EstimatedImpact EstimatedImpact `json:"estimatedImpact"`
	Assumptions     Assumptions     `json:"assumptions"`

	DetectedAt time.Time `json:"detectedAt"`
}
