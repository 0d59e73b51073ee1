package domain

// ValueTier buckets contract value for risk assessment.
type ValueTier string

const (
	TierSmall          ValueTier = "small"      // < 100K
	TierMediumValue    ValueTier = "medium"     // 100K - 1M
	TierLarge          ValueTier = "large"      // 1M - 10M
	TierEnterpriseSize ValueTier = "enterprise" // >= 10M
)

// ComplexityLevel buckets clause count.
type ComplexityLevel string

const (
	ComplexityLow    ComplexityLevel = "low"    // < 10 clauses
	ComplexityMedium ComplexityLevel = "medium" // 10 - 30 clauses
	ComplexityHigh   ComplexityLevel = "high"   // > 30 clauses
)

// RiskProfile holds per-contract risk factors derived from value,
// duration, and clause composition. Built once per contract, then
// consumed read-only by impact calculations.
type RiskProfile struct {
	ContractID string `json:"contractId"`

	ContractValue float64   `json:"contractValue"`
	Currency      string    `json:"currency"`
	ValueTier     ValueTier `json:"valueTier"`

	DurationYears  float64 `json:"durationYears"`
	RemainingYears float64 `json:"remainingYears"`
	StartDate      string  `json:"startDate,omitempty"`
	EndDate        string  `json:"endDate,omitempty"`

	TotalClauses     int             `json:"totalClauses"`
	ClauseTypesFound []string        `json:"clauseTypesFound"`
	ComplexityLevel  ComplexityLevel `json:"complexityLevel"`

	RiskSignalsCount         int  `json:"riskSignalsCount"`
	HasAutoRenewal           bool `json:"hasAutoRenewal"`
	HasPriceEscalation       bool `json:"hasPriceEscalation"`
	HasLiabilityCap          bool `json:"hasLiabilityCap"`
	HasTerminationProtection bool `json:"hasTerminationProtection"`

	// Composite multiplier in [0.5, 2.0]
	BaseRiskMultiplier float64 `json:"baseRiskMultiplier"`

	// Currency-indexed annual inflation rate
	InflationRate float64 `json:"inflationRate"`

	// Category leak probabilities, each in [0.01, 0.30].
	// Each already embeds BaseRiskMultiplier.
	PricingLeakProbability      float64 `json:"pricingLeakProbability"`
	PaymentLeakProbability      float64 `json:"paymentLeakProbability"`
	RenewalLeakProbability      float64 `json:"renewalLeakProbability"`
	TerminationLeakProbability  float64 `json:"terminationLeakProbability"`
	LiabilityLeakProbability    float64 `json:"liabilityLeakProbability"`
	ServiceLevelLeakProbability float64 `json:"serviceLevelLeakProbability"`
}

// defaultRiskPercentage is used for categories the profile does not
// track dynamically.
const defaultRiskPercentage = 0.05

// RiskPercentage returns the dynamic leak probability for a leakage
// category. Categories without a tracked probability fall back to a
// fixed 5%.
func (p *RiskProfile) RiskPercentage(category Category) float64 {
	switch category {
	case CategoryPricing, CategoryVolumeCommitment:
		return p.PricingLeakProbability
	case CategoryPaymentTerms, CategoryPenalties:
		return p.PaymentLeakProbability
	case CategoryRenewal, CategoryAutoRenewal:
		return p.RenewalLeakProbability
	case CategoryTermination:
		return p.TerminationLeakProbability
	case CategoryLiability:
		return p.LiabilityLeakProbability
	case CategoryServiceLevel:
		return p.ServiceLevelLeakProbability
	default:
		return defaultRiskPercentage
	}
}
