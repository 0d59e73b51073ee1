// Package rules provides the leakage detection rule engine.
package rules

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/contractops/kestrel/internal/domain"
)

// Catalog is a validated, read-only set of leakage rules loaded from a
// YAML file. A missing file or invalid syntax is a construction error.
type Catalog struct {
	Rules  []*domain.Rule
	Config domain.CatalogConfig
}

// catalogYAML mirrors the on-disk catalog layout. Unknown keys are
// dropped by the YAML decoder, not treated as errors.
type catalogYAML struct {
	Rules  []ruleYAML           `yaml:"rules"`
	Config domain.CatalogConfig `yaml:"config"`
}

type ruleYAML struct {
	RuleID            string            `yaml:"rule_id"`
	Enabled           *bool             `yaml:"enabled"` // default true
	Category          string            `yaml:"category"`
	Severity          string            `yaml:"severity"`
	Conditions        domain.Conditions `yaml:"conditions"`
	ImpactCalculation impactYAML        `yaml:"impact_calculation"`
	Explanation       string            `yaml:"explanation"`
	BusinessImpact    string            `yaml:"business_impact"`
	RecommendedAction string            `yaml:"recommended_action"`
}

type impactYAML struct {
	Method     string                  `yaml:"method"`
	Parameters domain.ImpactParameters `yaml:"parameters"`
}

// LoadCatalog reads and validates a rule catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}

	slog.Info("rule catalog loaded",
		"path", path,
		"enabled_rules", len(cat.Rules),
	)

	return cat, nil
}

// ParseCatalog validates raw YAML catalog content. Disabled rules are
// filtered out; everything else is validated strictly so a bad catalog
// fails at construction rather than mid-evaluation.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw catalogYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("yaml parse error: %w", err)
	}

	cat := &Catalog{Config: raw.Config}
	if cat.Config.ImpactDefaults.InflationRate == 0 {
		cat.Config.ImpactDefaults.InflationRate = 0.03
	}

	seen := make(map[string]bool, len(raw.Rules))
	for _, r := range raw.Rules {
		if r.RuleID == "" {
			return nil, fmt.Errorf("rule with empty rule_id")
		}
		if seen[r.RuleID] {
			return nil, fmt.Errorf("duplicate rule_id %q", r.RuleID)
		}
		seen[r.RuleID] = true

		// enabled defaults to true; disabled rules never load
		if r.Enabled != nil && !*r.Enabled {
			continue
		}

		category, err := domain.ParseCategory(r.Category)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.RuleID, err)
		}
		severity, err := domain.ParseSeverity(r.Severity)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.RuleID, err)
		}
		method, err := domain.ParseImpactMethod(r.ImpactCalculation.Method)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.RuleID, err)
		}

		cat.Rules = append(cat.Rules, &domain.Rule{
			RuleID:   r.RuleID,
			Enabled:  true,
			Category: category,
			Severity: severity,
			Conditions: r.Conditions,
			ImpactCalculation: domain.ImpactCalculation{
				Method:     method,
				Parameters: r.ImpactCalculation.Parameters,
			},
			Explanation:       r.Explanation,
			BusinessImpact:    r.BusinessImpact,
			RecommendedAction: r.RecommendedAction,
		})
	}

	return cat, nil
}

// RuleByID returns a loaded rule by ID.
func (c *Catalog) RuleByID(ruleID string) (*domain.Rule, bool) {
	for _, r := range c.Rules {
		if r.RuleID == ruleID {
			return r, true
		}
	}
	return nil, false
}

// RulesByCategory returns all loaded rules in a category.
func (c *Catalog) RulesByCategory(category domain.Category) []*domain.Rule {
	var out []*domain.Rule
	for _, r := range c.Rules {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}
