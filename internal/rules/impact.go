package rules

import (
	"log/slog"

	"github.com/contractops/kestrel/internal/domain"
)

// maxImpactFraction caps any single finding's estimate at 30% of
// contract value. Capped estimates carry reduced confidence.
const maxImpactFraction = 0.30

// Calculator computes monetary impact estimates for matched rules.
// When a risk profile is supplied its dynamic values take precedence
// over static rule parameters.
type Calculator struct {
	defaults domain.ImpactDefaults
}

// NewCalculator creates an impact calculator with catalog-wide defaults.
func NewCalculator(defaults domain.ImpactDefaults) *Calculator {
	if defaults.InflationRate == 0 {
		defaults.InflationRate = 0.03
	}
	return &Calculator{defaults: defaults}
}

// Calculate produces an impact estimate and its assumptions for one
// matched rule. The clause is the first-matching reference clause.
func (c *Calculator) Calculate(
	calc domain.ImpactCalculation,
	meta domain.ContractMetadata,
	clause *domain.Clause,
	category domain.Category,
	profile *domain.RiskProfile,
) (domain.EstimatedImpact, domain.Assumptions) {
	contractValue := meta.ContractValue
	currency := meta.ContractCurrency
	if currency == "" {
		currency = "USD"
	}
	durationYears := meta.DurationYears

	var (
		inflationRate  float64
		remainingYears float64
		baseMultiplier float64
		dynamicPct     *float64
	)
	if profile != nil {
		inflationRate = profile.InflationRate
		remainingYears = profile.RemainingYears
		baseMultiplier = profile.BaseRiskMultiplier
		pct := profile.RiskPercentage(category)
		dynamicPct = &pct

		slog.Debug("using dynamic risk profile",
			"category", category,
			"inflation_rate", inflationRate,
			"remaining_years", remainingYears,
			"base_multiplier", baseMultiplier,
			"risk_pct", pct,
		)
	} else {
		inflationRate = c.defaults.InflationRate
		remainingYears = durationYears
		baseMultiplier = 1.0
	}

	assumptions := domain.Assumptions{
		InflationRate:  inflationRate,
		RemainingYears: remainingYears,
		Probability:    dynamicPct,
	}
	if profile != nil {
		assumptions.CustomParameters = map[string]any{
			"profile_used":     true,
			"value_tier":       string(profile.ValueTier),
			"complexity_level": string(profile.ComplexityLevel),
			"base_multiplier":  baseMultiplier,
		}
	}

	impact := domain.EstimatedImpact{
		Currency:          currency,
		CalculationMethod: string(calc.Method),
	}
	params := calc.Parameters

	switch calc.Method {
	case domain.ImpactInflationBased:
		calcInflation := inflationRate
		calcYears := remainingYears
		if profile == nil {
			if params.InflationRate != nil {
				calcInflation = *params.InflationRate
			}
			if params.TimePeriod != nil {
				calcYears = *params.TimePeriod
			}
		}

		impact.Value = contractValue * calcInflation * calcYears
		assumptions.InflationRate = calcInflation
		assumptions.RemainingYears = calcYears

	case domain.ImpactPercentageOfValue:
		// dynamicPct already embeds baseMultiplier (applied inside the
		// profile builder), so the multiplier must not be re-applied.
		riskPct := 0.10
		if dynamicPct != nil {
			riskPct = *dynamicPct
		} else if params.RiskPercentage != nil {
			riskPct = *params.RiskPercentage
		}

		impact.Value = contractValue * riskPct
		if profile != nil && dynamicPct == nil {
			impact.Value *= baseMultiplier
		}
		assumptions.Probability = &riskPct

	case domain.ImpactRenewalBased:
		expectedIncrease := 0.05
		if params.ExpectedIncrease != nil {
			expectedIncrease = *params.ExpectedIncrease
		}
		renewalProbability := 0.8
		if dynamicPct != nil {
			renewalProbability = *dynamicPct
		} else if params.RenewalProbability != nil {
			renewalProbability = *params.RenewalProbability
		}

		impact.Value = contractValue * expectedIncrease * renewalProbability
		if profile != nil && dynamicPct == nil {
			impact.Value *= baseMultiplier
		}
		assumptions.Probability = &renewalProbability
		assumptions.CustomParameters = withParam(assumptions.CustomParameters, "expected_increase", expectedIncrease)

	case domain.ImpactOpportunityCost:
		monthsAtRisk := 6.0
		if params.MonthsAtRisk != nil {
			monthsAtRisk = *params.MonthsAtRisk
		}
		var monthlyValue float64
		if contractValue != 0 {
			monthlyValue = contractValue / 12
		}

		impact.Value = monthlyValue * monthsAtRisk
		// This path never consults dynamicPct, so the multiplier
		// applies unconditionally.
		if profile != nil {
			impact.Value *= baseMultiplier
		}
		assumptions.CustomParameters = withParam(assumptions.CustomParameters, "months_at_risk", monthsAtRisk)
	}

	// No single finding may exceed 30% of total contract value.
	capped := false
	if maxImpact := contractValue * maxImpactFraction; contractValue > 0 && impact.Value > maxImpact {
		slog.Warn("impact estimate exceeds cap",
			"value", impact.Value,
			"contract_value", contractValue,
			"capped_at", maxImpact,
		)
		impact.Value = maxImpact
		capped = true
	}

	switch {
	case capped:
		impact.Confidence = 0.3
	case contractValue > 0 && profile != nil:
		impact.Confidence = 0.8
	case contractValue > 0:
		impact.Confidence = 0.7
	default:
		impact.Confidence = 0.3
	}

	return impact, assumptions
}

func withParam(params map[string]any, key string, value any) map[string]any {
	if params == nil {
		params = make(map[string]any)
	}
	params[key] = value
	return params
}
