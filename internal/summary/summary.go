// Package summary aggregates findings into a per-contract analysis
// summary with an overall risk level.
package summary

import (
	"sort"

	"github.com/contractops/kestrel/internal/domain"
)

// Risk level thresholds as a fraction of contract value.
const (
	highImpactRatio   = 0.15
	mediumImpactRatio = 0.05
)

// AnalysisSummary is the roll-up of one detection run.
type AnalysisSummary struct {
	ContractID    string `json:"contractId"`
	TotalFindings int    `json:"totalFindings"`

	TotalEstimatedImpact float64 `json:"totalEstimatedImpact"`
	Currency             string  `json:"currency"`

	// ImpactRatio is total impact over contract value, 0 when the
	// value is unknown.
	ImpactRatio float64 `json:"impactRatio"`

	BySeverity map[domain.Severity]int `json:"bySeverity"`
	ByCategory map[domain.Category]int `json:"byCategory"`

	HighestSeverity domain.Severity `json:"highestSeverity,omitempty"`

	// RiskLevel is one of critical, high, medium, low, minimal.
	RiskLevel string `json:"riskLevel"`

	// TopFindings lists finding IDs ordered by estimated impact,
	// highest first, capped at five.
	TopFindings []string `json:"topFindings,omitempty"`
}

// Summarize rolls findings up into an AnalysisSummary.
func Summarize(contractID string, meta domain.ContractMetadata, findings []*domain.Finding) *AnalysisSummary {
	s := &AnalysisSummary{
		ContractID:    contractID,
		TotalFindings: len(findings),
		Currency:      meta.ContractCurrency,
		BySeverity:    make(map[domain.Severity]int),
		ByCategory:    make(map[domain.Category]int),
	}
	if s.Currency == "" {
		s.Currency = "USD"
	}

	for _, f := range findings {
		s.TotalEstimatedImpact += f.EstimatedImpact.Value
		s.BySeverity[f.Severity]++
		s.ByCategory[f.LeakageCategory]++

		if s.HighestSeverity == "" || f.Severity.Rank() < s.HighestSeverity.Rank() {
			s.HighestSeverity = f.Severity
		}
	}

	if meta.ContractValue > 0 {
		s.ImpactRatio = s.TotalEstimatedImpact / meta.ContractValue
	}
	s.RiskLevel = riskLevel(s)
	s.TopFindings = topFindingIDs(findings, 5)

	return s
}

// riskLevel grades the contract from severity counts and the impact
// ratio; whichever signal is worse wins.
func riskLevel(s *AnalysisSummary) string {
	switch {
	case s.BySeverity[domain.SeverityCritical] > 0:
		return "critical"
	case s.BySeverity[domain.SeverityHigh] > 0 || s.ImpactRatio > highImpactRatio:
		return "high"
	case s.BySeverity[domain.SeverityMedium] > 0 || s.ImpactRatio > mediumImpactRatio:
		return "medium"
	case s.TotalFindings > 0:
		return "low"
	default:
		return "minimal"
	}
}

func topFindingIDs(findings []*domain.Finding, limit int) []string {
	if len(findings) == 0 {
		return nil
	}

	sorted := make([]*domain.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EstimatedImpact.Value > sorted[j].EstimatedImpact.Value
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	ids := make([]string, len(sorted))
	for i, f := range sorted {
		ids[i] = f.ID
	}
	return ids
}
