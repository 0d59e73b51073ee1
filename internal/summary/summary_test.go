package summary

import (
	"testing"

	"github.com/contractops/kestrel/internal/domain"
)

func finding(id string, severity domain.Severity, category domain.Category, impact float64) *domain.Finding {
	return &domain.Finding{
		ID:              id,
		Severity:        severity,
		LeakageCategory: category,
		EstimatedImpact: domain.EstimatedImpact{Value: impact, Currency: "USD"},
	}
}

func TestSummarize(t *testing.T) {
	meta := domain.ContractMetadata{ContractValue: 1_000_000, ContractCurrency: "USD"}
	findings := []*domain.Finding{
		finding("f1", domain.SeverityHigh, domain.CategoryPricing, 90_000),
		finding("f2", domain.SeverityMedium, domain.CategoryRenewal, 40_000),
		finding("f3", domain.SeverityMedium, domain.CategoryPricing, 10_000),
	}

	s := Summarize("contract_1", meta, findings)

	if s.TotalFindings != 3 {
		t.Errorf("total findings = %d, want 3", s.TotalFindings)
	}
	if s.TotalEstimatedImpact != 140_000 {
		t.Errorf("total impact = %v, want 140000", s.TotalEstimatedImpact)
	}
	if s.ImpactRatio != 0.14 {
		t.Errorf("impact ratio = %v, want 0.14", s.ImpactRatio)
	}
	if s.BySeverity[domain.SeverityMedium] != 2 || s.BySeverity[domain.SeverityHigh] != 1 {
		t.Errorf("severity counts = %v", s.BySeverity)
	}
	if s.ByCategory[domain.CategoryPricing] != 2 {
		t.Errorf("category counts = %v", s.ByCategory)
	}
	if s.HighestSeverity != domain.SeverityHigh {
		t.Errorf("highest severity = %s, want high", s.HighestSeverity)
	}
	if s.RiskLevel != "high" {
		t.Errorf("risk level = %s, want high", s.RiskLevel)
	}
	if len(s.TopFindings) != 3 || s.TopFindings[0] != "f1" || s.TopFindings[1] != "f2" {
		t.Errorf("top findings = %v, want impact order", s.TopFindings)
	}
}

func TestRiskLevels(t *testing.T) {
	meta := domain.ContractMetadata{ContractValue: 1_000_000}

	tests := []struct {
		name     string
		findings []*domain.Finding
		want     string
	}{
		{
			name:     "no findings",
			findings: nil,
			want:     "minimal",
		},
		{
			name: "low severity only",
			findings: []*domain.Finding{
				finding("f1", domain.SeverityLow, domain.CategoryDelivery, 1_000),
			},
			want: "low",
		},
		{
			name: "impact ratio forces medium",
			findings: []*domain.Finding{
				finding("f1", domain.SeverityLow, domain.CategoryPricing, 80_000),
			},
			want: "medium",
		},
		{
			name: "impact ratio forces high",
			findings: []*domain.Finding{
				finding("f1", domain.SeverityLow, domain.CategoryPricing, 200_000),
			},
			want: "high",
		},
		{
			name: "critical wins regardless of impact",
			findings: []*domain.Finding{
				finding("f1", domain.SeverityCritical, domain.CategoryLiability, 100),
			},
			want: "critical",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize("c", meta, tt.findings)
			if s.RiskLevel != tt.want {
				t.Errorf("risk level = %s, want %s", s.RiskLevel, tt.want)
			}
		})
	}
}

func TestSummarizeUnknownValue(t *testing.T) {
	s := Summarize("c", domain.ContractMetadata{}, []*domain.Finding{
		finding("f1", domain.SeverityLow, domain.CategoryPricing, 50_000),
	})
	if s.ImpactRatio != 0 {
		t.Errorf("impact ratio = %v, want 0 for unknown value", s.ImpactRatio)
	}
	if s.Currency != "USD" {
		t.Errorf("currency = %q, want USD default", s.Currency)
	}
	if s.RiskLevel != "low" {
		t.Errorf("risk level = %s, want low", s.RiskLevel)
	}
}

func TestTopFindingsCap(t *testing.T) {
	findings := make([]*domain.Finding, 8)
	for i := range findings {
		findings[i] = finding(string(rune('a'+i)), domain.SeverityLow, domain.CategoryPricing, float64(i*1000))
	}

	s := Summarize("c", domain.ContractMetadata{ContractValue: 10_000_000}, findings)
	if len(s.TopFindings) != 5 {
		t.Errorf("top findings = %d, want cap 5", len(s.TopFindings))
	}
	if s.TopFindings[0] != "h" {
		t.Errorf("top finding = %s, want highest impact h", s.TopFindings[0])
	}
}
