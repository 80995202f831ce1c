// Package planner generates action cards from risk events and retrieved
// protocol context, using an LLM with a deterministic fallback.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/acctcare/careops/pkg/llm"
	"github.com/acctcare/careops/pkg/log"
	"github.com/acctcare/careops/pkg/models"
)

const systemPrompt = `You are a Clinical Operations AI Assistant.
Generate an action plan as JSON with these fields:
- action_type: transfer, discharge, escalate, alert, or consult
- title: Brief action title
- description: What needs to be done
- urgency: critical, high, medium, or low
- steps: Array of specific action steps
- affected_patients: Array of patient IDs if applicable
- rationale: Why this action is recommended

Base your recommendations on the provided context and cite sources.`

// actionCardSchema constrains what a generator response must look like
// before it is turned into a card. Anything that fails here triggers the
// deterministic fallback.
const actionCardSchema = `{
	"type": "object",
	"properties": {
		"action_type": {"type": "string"},
		"title": {"type": "string"},
		"description": {"type": "string"},
		"urgency": {"type": "string", "enum": ["critical", "high", "medium", "low"]},
		"steps": {"type": "array"},
		"affected_patients": {"type": "array", "items": {"type": "string"}},
		"rationale": {"type": "string"}
	},
	"required": ["action_type", "title", "description", "urgency", "steps", "rationale"]
}`

// Generator produces an action card for a risk event. Implemented by Agent
// and by test doubles.
type Generator interface {
	GeneratePlan(ctx context.Context, event *models.RiskEvent, retrievedContext string, sources []models.CitedSource) (*models.ActionCard, error)
}

// Agent is the LLM-backed plan generator.
type Agent struct {
	llm    llm.Generator
	schema *gojsonschema.Schema
	logger *slog.Logger
}

func NewAgent(generator llm.Generator) (*Agent, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(actionCardSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile action card schema: %w", err)
	}

	return &Agent{
		llm:    generator,
		schema: schema,
		logger: log.WithModule("planner"),
	}, nil
}

// GeneratePlan asks the LLM for a plan and falls back to a rule-based card
// when the model is unreachable or returns output that fails validation.
// It always returns a card.
func (a *Agent) GeneratePlan(ctx context.Context, event *models.RiskEvent, retrievedContext string, sources []models.CitedSource) (*models.ActionCard, error) {
	prompt := buildPrompt(event, retrievedContext)

	data, err := a.generate(ctx, prompt)
	if err != nil {
		a.logger.Warn("falling back to rule-based plan", "error", err)
		data = fallbackPlan(prompt)
	}

	return buildCard(data, sources), nil
}

func (a *Agent) generate(ctx context.Context, prompt string) (map[string]any, error) {
	response, err := a.llm.Generate(ctx, prompt, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("llm generation failed: %w", err)
	}

	raw, err := extractJSON(response)
	if err != nil {
		return nil, err
	}

	result, err := a.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to validate plan: %w", err)
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			violations = append(violations, e.String())
		}
		return nil, fmt.Errorf("plan failed schema validation: %s", strings.Join(violations, "; "))
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	return data, nil
}

func buildPrompt(event *models.RiskEvent, retrievedContext string) string {
	eventType := "unknown"
	severity := "medium"
	value := "N/A"
	if event != nil {
		eventType = event.EventType
		severity = string(event.Severity)
		value = fmt.Sprintf("%.1f%s", event.CurrentValue, event.Unit)
	}
	if retrievedContext == "" {
		retrievedContext = "No context available"
	}

	return fmt.Sprintf(`Risk Event Detected:
- Type: %s
- Severity: %s
- Value: %s

Relevant Protocol Context:
%s

Generate an ActionCard JSON for this situation.`, eventType, severity, value, retrievedContext)
}

// extractJSON pulls the first top-level JSON object out of a model response
// that may be wrapped in prose.
func extractJSON(response string) (string, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return response[start : end+1], nil
}

// fallbackPlan is the deterministic rule-based plan used when the LLM is
// unavailable or produced malformed output.
func fallbackPlan(prompt string) map[string]any {
	if strings.Contains(strings.ToLower(prompt), "icu") {
		return map[string]any{
			"action_type": "transfer",
			"title":       "ICU Capacity Management",
			"description": "Review patients for step-down eligibility per ICU Capacity SOP",
			"urgency":     "high",
			"steps": []any{
				"Review all ICU patients with stable vitals for >24 hours",
				"Contact charge nurse to assess discharge-ready patients",
				"Prepare step-down unit beds for transfers",
			},
			"affected_patients": []any{},
			"rationale":         "Based on ICU Capacity Management SOP, when ICU reaches critical threshold, activate surge protocol.",
		}
	}
	return map[string]any{
		"action_type": "alert",
		"title":       "Risk Alert",
		"description": "A risk event was detected requiring attention",
		"urgency":     "medium",
		"steps": []any{
			"Review the current situation",
			"Consult relevant protocols",
		},
		"rationale": "Standard response to detected risk event.",
	}
}

func buildCard(data map[string]any, sources []models.CitedSource) *models.ActionCard {
	description := stringField(data, "description", "Action required")

	return &models.ActionCard{
		CardID:         "AC-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8],
		ActionType:     models.ActionType(stringField(data, "action_type", "alert")),
		Title:          stringField(data, "title", "Risk Response Action"),
		Summary:        description,
		Description:    description,
		Urgency:        models.Urgency(stringField(data, "urgency", "medium")),
		Rationale:      stringField(data, "rationale", "Based on risk assessment"),
		Steps:          flattenSteps(data["steps"]),
		TargetPatients: stringSlice(data["affected_patients"]),
		CitedSources:   sources,
		GeneratedAt:    time.Now().UTC(),
	}
}

// flattenSteps normalizes generator steps to plain strings. Object steps are
// reduced to their description, step or text field, anything else is
// stringified.
func flattenSteps(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		if raw == nil {
			return []string{"Review situation", "Take appropriate action"}
		}
		return []string{fmt.Sprintf("%v", raw)}
	}

	steps := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case map[string]any:
			steps = append(steps, stepText(v))
		case string:
			steps = append(steps, v)
		default:
			steps = append(steps, fmt.Sprintf("%v", v))
		}
	}
	return steps
}

func stepText(obj map[string]any) string {
	for _, key := range []string{"description", "step", "text"} {
		if v, ok := obj[key].(string); ok && v != "" {
			return v
		}
	}
	return fmt.Sprintf("%v", obj)
}

func stringField(data map[string]any, key, fallback string) string {
	if v, ok := data[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func stringSlice(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
