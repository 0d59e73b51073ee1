// Package riskprofile derives per-contract risk factors from value,
// duration, and clause composition.
package riskprofile

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/contractops/kestrel/internal/domain"
)

// Base annual leak probabilities per category, before adjustments.
const (
	basePricingProb      = 0.08
	basePaymentProb      = 0.06
	baseRenewalProb      = 0.10
	baseTerminationProb  = 0.07
	baseLiabilityProb    = 0.05
	baseServiceLevelProb = 0.08
)

// Final probabilities are clamped to this range.
const (
	minLeakProbability = 0.01
	maxLeakProbability = 0.30
)

// inflationByCurrency maps contract currency to an assumed annual
// inflation rate. Unknown currencies use the default.
var inflationByCurrency = map[string]float64{
	"USD": 0.035,
	"EUR": 0.025,
	"GBP": 0.04,
	"BHD": 0.02,
	"SAR": 0.025,
	"AED": 0.03,
	"KWD": 0.035,
	"QAR": 0.03,
	"OMR": 0.025,
}

const defaultInflationRate = 0.03

// Builder constructs risk profiles. The clock is injectable for
// deterministic remaining-years computation in tests.
type Builder struct {
	now func() time.Time
}

// NewBuilder creates a profile builder using wall-clock time.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// NewBuilderAt creates a builder with a fixed clock.
func NewBuilderAt(now func() time.Time) *Builder {
	return &Builder{now: now}
}

// Build derives a risk profile from contract metadata and its clauses.
func (b *Builder) Build(contract *domain.Contract, clauses []*domain.Clause) *domain.RiskProfile {
	meta := contract.Metadata

	profile := &domain.RiskProfile{
		ContractID:    contract.ID,
		ContractValue: meta.ContractValue,
		Currency:      currencyOrDefault(meta.ContractCurrency),
		DurationYears: meta.DurationYears,
		StartDate:     contract.StartDate,
		EndDate:       contract.EndDate,
		TotalClauses:  len(clauses),
	}

	profile.ValueTier = valueTier(meta.ContractValue)
	profile.ComplexityLevel = complexityLevel(len(clauses))
	profile.InflationRate = inflationRate(profile.Currency)
	profile.RemainingYears = b.remainingYears(contract.EndDate, meta.DurationYears)

	b.scanClauses(profile, clauses)

	valueMult := valueMultiplier(profile.ValueTier)
	complexityMult := complexityMultiplier(profile.ComplexityLevel)
	durationMult := durationMultiplier(meta.DurationYears)

	// Geometric mean keeps one extreme factor from dominating.
	base := math.Cbrt(valueMult * complexityMult * durationMult)
	profile.BaseRiskMultiplier = clamp(base, 0.5, 2.0)

	b.assignProbabilities(profile)

	slog.Debug("risk profile built",
		"contract_id", contract.ID,
		"value_tier", profile.ValueTier,
		"complexity", profile.ComplexityLevel,
		"base_multiplier", profile.BaseRiskMultiplier,
		"remaining_years", profile.RemainingYears,
	)

	return profile
}

// scanClauses records protective and risky features found in clause
// signals and text.
func (b *Builder) scanClauses(profile *domain.RiskProfile, clauses []*domain.Clause) {
	typesSeen := make(map[string]bool)

	for _, clause := range clauses {
		if clause.ClauseType != "" && !typesSeen[clause.ClauseType] {
			typesSeen[clause.ClauseType] = true
			profile.ClauseTypesFound = append(profile.ClauseTypesFound, clause.ClauseType)
		}
		profile.RiskSignalsCount += len(clause.RiskSignals)

		for _, signal := range clause.RiskSignals {
			switch strings.ToLower(signal) {
			case "auto_renewal":
				profile.HasAutoRenewal = true
			case "price_escalation":
				profile.HasPriceEscalation = true
			}
		}

		text := strings.ToLower(clause.OriginalText)
		if containsAny(text, "price adjustment", "escalation", "cpi") {
			profile.HasPriceEscalation = true
		}
		if containsAny(text, "liability cap", "limited to", "not exceed") {
			profile.HasLiabilityCap = true
		}
		if containsAny(text, "termination fee", "early termination penalty") {
			profile.HasTerminationProtection = true
		}
	}
}

// assignProbabilities applies the base multiplier and feature
// adjustments to the per-category base probabilities.
func (b *Builder) assignProbabilities(p *domain.RiskProfile) {
	pricingAdj := 1.0
	renewalAdj := 1.0
	terminationAdj := 1.0
	liabilityAdj := 1.0

	if !p.HasPriceEscalation {
		pricingAdj *= 1.5
		renewalAdj *= 1.3
	}
	if !p.HasLiabilityCap {
		liabilityAdj *= 2.0
	}
	if !p.HasTerminationProtection {
		terminationAdj *= 1.4
	}
	if p.HasAutoRenewal && !p.HasPriceEscalation {
		renewalAdj *= 1.5
	}

	mult := p.BaseRiskMultiplier
	p.PricingLeakProbability = finalProbability(basePricingProb, mult, pricingAdj)
	p.PaymentLeakProbability = finalProbability(basePaymentProb, mult, 1.0)
	p.RenewalLeakProbability = finalProbability(baseRenewalProb, mult, renewalAdj)
	p.TerminationLeakProbability = finalProbability(baseTerminationProb, mult, terminationAdj)
	p.LiabilityLeakProbability = finalProbability(baseLiabilityProb, mult, liabilityAdj)
	p.ServiceLevelLeakProbability = finalProbability(baseServiceLevelProb, mult, 1.0)
}

// remainingYears derives years left from the end date when it parses
// and lies in the future; otherwise the full duration is used.
func (b *Builder) remainingYears(endDate string, durationYears float64) float64 {
	if endDate != "" {
		if end, err := time.Parse(time.RFC3339, endDate); err == nil {
			if days := end.Sub(b.now()).Hours() / 24; days > 0 {
				return days / 365.25
			}
		}
	}
	return durationYears
}

func finalProbability(base, multiplier, adjustment float64) float64 {
	p := clamp(base*multiplier*adjustment, minLeakProbability, maxLeakProbability)
	return math.Round(p*10000) / 10000
}

func valueTier(value float64) domain.ValueTier {
	switch {
	case value < 100_000:
		return domain.TierSmall
	case value < 1_000_000:
		return domain.TierMediumValue
	case value < 10_000_000:
		return domain.TierLarge
	default:
		return domain.TierEnterpriseSize
	}
}

func valueMultiplier(tier domain.ValueTier) float64 {
	switch tier {
	case domain.TierSmall:
		return 0.7
	case domain.TierMediumValue:
		return 1.0
	case domain.TierLarge:
		return 1.2
	default:
		return 1.5
	}
}

func complexityLevel(clauseCount int) domain.ComplexityLevel {
	switch {
	case clauseCount < 10:
		return domain.ComplexityLow
	case clauseCount <= 30:
		return domain.ComplexityMedium
	default:
		return domain.ComplexityHigh
	}
}

func complexityMultiplier(level domain.ComplexityLevel) float64 {
	switch level {
	case domain.ComplexityLow:
		return 0.8
	case domain.ComplexityMedium:
		return 1.0
	default:
		return 1.3
	}
}

func durationMultiplier(years float64) float64 {
	switch {
	case years < 1:
		return 0.8
	case years <= 3:
		return 1.0
	case years <= 5:
		return 1.3
	default:
		return 1.5
	}
}

func inflationRate(currency string) float64 {
	if rate, ok := inflationByCurrency[strings.ToUpper(currency)]; ok {
		return rate
	}
	return defaultInflationRate
}

func currencyOrDefault(currency string) string {
	if currency == "" {
		return "USD"
	}
	return strings.ToUpper(currency)
}

func containsAny(text string, substrings ...string) bool {
	for _, s := range substrings {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
