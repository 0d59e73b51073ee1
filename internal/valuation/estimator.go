// Package valuation estimates total contract value from clause-level
// monetary amounts when the ingested metadata does not state one.
package valuation

import (
	"log/slog"
	"sort"

	"github.com/contractops/kestrel/internal/domain"
)

// Amounts outside these bounds are treated as extraction noise (page
// numbers, percentages, phone fragments) and excluded.
const (
	minPlausibleAmount = 1_000
	maxPlausibleAmount = 1_000_000_000
)

// priorityClauseTypes are the clause types whose amounts most reliably
// reflect total contract value.
var priorityClauseTypes = map[string]bool{
	"pricing":       true,
	"payment":       true,
	"payment_terms": true,
	"service_level": true,
	"sla":           true,
}

// Estimate is a derived contract value with its derivation method.
type Estimate struct {
	Value      float64 `json:"value"`
	Currency   string  `json:"currency"`
	Method     string  `json:"method"` // single, mean, median
	SampleSize int     `json:"sampleSize"`
}

// EstimateValue derives a contract value from clause amounts. Amounts
// from priority clause types are preferred; other clauses are consulted
// only when no priority clause carries a plausible amount. Returns nil
// when no clause yields one.
func EstimateValue(clauses []*domain.Clause) *Estimate {
	type candidate struct {
		amount   float64
		currency string
	}

	var priority, general []candidate
	for _, clause := range clauses {
		for _, amount := range clause.Entities.Amounts {
			if amount < minPlausibleAmount || amount > maxPlausibleAmount {
				slog.Debug("implausible amount discarded",
					"clause_id", clause.ID,
					"clause_type", clause.ClauseType,
					"amount", amount,
				)
				continue
			}
			c := candidate{amount: amount, currency: clause.Entities.Currency}
			if priorityClauseTypes[clause.ClauseType] {
				priority = append(priority, c)
			} else {
				general = append(general, c)
			}
		}
	}

	candidates := priority
	if len(candidates) == 0 {
		candidates = general
	}
	if len(candidates) == 0 {
		return nil
	}

	// Currency comes from the first contributing clause in iteration
	// order, so it must be picked before the sort reorders candidates.
	currency := "USD"
	for _, c := range candidates {
		if c.currency != "" {
			currency = c.currency
			break
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].amount > candidates[j].amount
	})
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}

	est := &Estimate{SampleSize: len(candidates), Currency: currency}

	switch len(candidates) {
	case 1:
		est.Value = candidates[0].amount
		est.Method = "single"
	case 2:
		est.Value = (candidates[0].amount + candidates[1].amount) / 2
		est.Method = "mean"
	default:
		// Median of the top three, which is the middle element of the
		// sorted slice.
		est.Value = candidates[1].amount
		est.Method = "median"
	}

	slog.Debug("contract value estimated",
		"value", est.Value,
		"currency", est.Currency,
		"method", est.Method,
		"sample_size", est.SampleSize,
	)

	return est
}
