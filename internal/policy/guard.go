// Package policy provides the CEL-Go based deployment policy guard.
// Commissioning areas layer local preconditions on top of the statutory
// validation chain; the guard compiles and evaluates them against the
// request shape.
package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/shopspring/decimal"

	"github.com/openjustice-uk/kestrel/internal/domain"
)

// Guard holds the compiled policy rules.
type Guard struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.PolicyRule
	Program cel.Program
}

// NewGuard creates a policy guard with the request-shaped CEL environment.
func NewGuard() (*Guard, error) {
	env, err := cel.NewEnv(
		cel.Variable("case_reference", cel.IntType),
		cel.Variable("assessment_type", cel.StringType),
		cel.Variable("action", cel.StringType),
		cel.Variable("new_work_reason", cel.StringType),
		cel.Variable("review_type", cel.StringType),
		cel.Variable("has_partner", cel.BoolType),
		cel.Variable("partner_contrary_interest", cel.BoolType),
		cel.Variable("hardship_eligible", cel.BoolType),
		cel.Variable("child_count", cel.IntType),
		cel.Variable("annual_total", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Guard{
		env:      env,
		compiled: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (g *Guard) ValidateRule(cfg *domain.PolicyRule) error {
	if cfg == nil {
		return fmt.Errorf("policy rule config is required")
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	_, err := g.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the guard.
func (g *Guard) LoadRule(cfg *domain.PolicyRule) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	compiled, err := g.compileRule(cfg)
	if err != nil {
		return err
	}

	g.compiled[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads the enabled rules.
func (g *Guard) LoadRules(configs []*domain.PolicyRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := g.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones. This enables
// hot-reloading of policy rules from the database.
func (g *Guard) ReloadRules(configs []*domain.PolicyRule) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := g.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	g.compiled = newRules
	return nil
}

// Evaluate runs every loaded rule against the request. Rules are checked
// in rule-id order for determinism; the first rejecting rule aborts with
// a validation error carrying the rule's message. A rule that fails to
// evaluate is broken reference data, not user error.
func (g *Guard) Evaluate(ctx context.Context, req *domain.AssessmentRequest, annualTotal decimal.Decimal) error {
	g.mu.RLock()
	rules := make([]*CompiledRule, 0, len(g.compiled))
	for _, rule := range g.compiled {
		rules = append(rules, rule)
	}
	g.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Config.ID < rules[j].Config.ID
	})

	activation := map[string]any{
		"case_reference":            req.CaseReferenceID,
		"assessment_type":           string(req.AssessmentType),
		"action":                    string(req.Action),
		"new_work_reason":           req.NewWorkReason,
		"review_type":               req.ReviewType,
		"has_partner":               req.HasPartner,
		"partner_contrary_interest": req.PartnerContraryInterest,
		"hardship_eligible":         req.HardshipEligible,
		"child_count":               int64(len(req.Children)),
		"annual_total":              annualTotal.InexactFloat64(),
	}

	for _, rule := range rules {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			return domain.PolicyRuleBroken(rule.Config.ID, err)
		}
		if out != types.True {
			return &domain.ValidationError{
				Check:   "policy:" + rule.Config.ID,
				Message: rule.Config.Message,
			}
		}
	}

	return nil
}

// RulesCount returns the number of loaded rules.
func (g *Guard) RulesCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.compiled)
}

// GetLoadedRules returns the currently loaded rule configurations.
func (g *Guard) GetLoadedRules() []*domain.PolicyRule {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rules := make([]*domain.PolicyRule, 0, len(g.compiled))
	for _, compiled := range g.compiled {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the guard.
func (g *Guard) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.compiled = make(map[string]*CompiledRule)
	return nil
}

func (g *Guard) compileRule(cfg *domain.PolicyRule) (*CompiledRule, error) {
	ast, issues := g.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile policy rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := g.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for policy rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{Config: cfg, Program: program}, nil
}
