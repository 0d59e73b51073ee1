package rules

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/contractops/kestrel/internal/domain"
)

// Matcher evaluates rule conditions against clauses. Condition keys
// combine with AND; absent keys are vacuously true. The optional CEL
// expression condition is pre-compiled per rule at engine construction.
type Matcher struct {
	env      *cel.Env
	programs map[string]cel.Program // key: rule_id
}

// NewMatcher creates a condition matcher with the clause CEL environment.
func NewMatcher() (*Matcher, error) {
	env, err := cel.NewEnv(
		cel.Variable("clause_type", cel.StringType),
		cel.Variable("text", cel.StringType),
		cel.Variable("risk_signals", cel.ListType(cel.StringType)),
		cel.Variable("amounts", cel.ListType(cel.DoubleType)),
		cel.Variable("currency", cel.StringType),
		cel.Variable("parties", cel.ListType(cel.StringType)),
		cel.Variable("contract_value", cel.DoubleType),
		cel.Variable("duration_years", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Matcher{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// CompileRule compiles a rule's expression condition, if present.
// An invalid expression is a construction-time error.
func (m *Matcher) CompileRule(rule *domain.Rule) error {
	expr := rule.Conditions.Expression
	if expr == "" {
		return nil
	}

	ast, issues := m.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("failed to compile expression for rule %s: %w", rule.RuleID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("rule %s: expression must return bool, got %s", rule.RuleID, ast.OutputType())
	}

	program, err := m.env.Program(ast)
	if err != nil {
		return fmt.Errorf("failed to create program for rule %s: %w", rule.RuleID, err)
	}

	m.programs[rule.RuleID] = program
	return nil
}

// Matches reports whether a clause satisfies every present condition of
// a rule.
func (m *Matcher) Matches(rule *domain.Rule, clause *domain.Clause, meta domain.ContractMetadata) (bool, error) {
	cond := rule.Conditions

	if cond.ClauseType != "" && clause.ClauseType != cond.ClauseType {
		return false, nil
	}

	if len(cond.RiskSignals) > 0 {
		if !anySignal(clause, cond.RiskSignals) {
			return false, nil
		}
	}

	textLower := strings.ToLower(clause.OriginalText)

	if len(cond.Contains) > 0 {
		if !containsAny(textLower, cond.Contains) {
			return false, nil
		}
	}

	if len(cond.NotContains) > 0 {
		if containsAny(textLower, cond.NotContains) {
			return false, nil
		}
	}

	if len(cond.Keywords) > 0 {
		if !containsAll(textLower, cond.Keywords) {
			return false, nil
		}
	}

	if cond.MinContractYears > 0 && meta.DurationYears < cond.MinContractYears {
		return false, nil
	}

	if program, ok := m.programs[rule.RuleID]; ok {
		matched, err := m.evalExpression(program, clause, meta)
		if err != nil {
			return false, fmt.Errorf("rule %s: expression evaluation: %w", rule.RuleID, err)
		}
		if !matched {
			return false, nil
		}
	}

	return true, nil
}

func (m *Matcher) evalExpression(program cel.Program, clause *domain.Clause, meta domain.ContractMetadata) (bool, error) {
	signals := clause.RiskSignals
	if signals == nil {
		signals = []string{}
	}
	amounts := clause.Entities.Amounts
	if amounts == nil {
		amounts = []float64{}
	}
	parties := clause.Entities.Parties
	if parties == nil {
		parties = []string{}
	}

	out, _, err := program.Eval(map[string]any{
		"clause_type":    clause.ClauseType,
		"text":           clause.OriginalText,
		"risk_signals":   signals,
		"amounts":        amounts,
		"currency":       clause.Entities.Currency,
		"parties":        parties,
		"contract_value": meta.ContractValue,
		"duration_years": meta.DurationYears,
	})
	if err != nil {
		return false, err
	}

	result, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, want bool", out)
	}
	return bool(result), nil
}

func anySignal(clause *domain.Clause, required []string) bool {
	for _, sig := range required {
		if clause.HasRiskSignal(sig) {
			return true
		}
	}
	return false
}

func containsAny(textLower string, substrings []string) bool {
	for _, s := range substrings {
		if strings.Contains(textLower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func containsAll(textLower string, substrings []string) bool {
	for _, s := range substrings {
		if !strings.Contains(textLower, strings.ToLower(s)) {
			return false
		}
	}
	return true
}
