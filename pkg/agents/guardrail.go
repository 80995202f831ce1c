package agents

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/acctcare/careops/pkg/models"
)

// PolicyRule is an operator-defined validation rule. The expression is
// evaluated against an environment exposing the proposed action and the
// triggering event; it must yield a boolean, true meaning the plan is
// acceptable under the rule.
type PolicyRule struct {
	Name       string
	Expression string
}

type compiledRule struct {
	name    string
	program *vm.Program
}

type policyEnv struct {
	Action *models.ActionCard `expr:"action"`
	Event  *models.RiskEvent  `expr:"event"`
}

// Guardrail validates proposed action cards. Validation is pure: the same
// card and event always produce the same violations, all rules run and all
// violations are collected.
type Guardrail struct {
	policies []compiledRule
}

// NewGuardrail compiles the optional policy rules. A rule that does not
// compile is a construction error, not a runtime violation.
func NewGuardrail(rules ...PolicyRule) (*Guardrail, error) {
	g := &Guardrail{}
	for _, rule := range rules {
		program, err := expr.Compile(rule.Expression, expr.Env(policyEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("failed to compile policy rule %q: %w", rule.Name, err)
		}
		g.policies = append(g.policies, compiledRule{name: rule.Name, program: program})
	}
	return g, nil
}

// Validate returns every violation found. A nil slice means the card passed.
func (g *Guardrail) Validate(card *models.ActionCard, event *models.RiskEvent) []string {
	if card == nil {
		return []string{"No action card to validate"}
	}

	var violations []string

	if card.Rationale == "" {
		violations = append(violations, "Missing rationale for action")
	}

	if event != nil && event.Severity == models.SeverityCritical {
		if card.Urgency != models.UrgencyCritical && card.Urgency != models.UrgencyHigh {
			violations = append(violations, "Urgency does not match critical severity")
		}
	}

	if len(card.Steps) < 2 {
		violations = append(violations, "Insufficient action steps (need at least 2)")
	}

	if card.Urgency == models.UrgencyCritical && len(card.CitedSources) == 0 {
		violations = append(violations, "Critical actions require cited sources")
	}

	env := policyEnv{Action: card, Event: event}
	for _, rule := range g.policies {
		result, err := expr.Run(rule.program, env)
		if err != nil {
			violations = append(violations, fmt.Sprintf("Policy rule %q failed to evaluate: %v", rule.name, err))
			continue
		}
		if passed, ok := result.(bool); !ok || !passed {
			violations = append(violations, fmt.Sprintf("Policy rule %q violated", rule.name))
		}
	}

	return violations
}
