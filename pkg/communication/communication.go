// Package communication drafts role-specific messages and reports from
// action cards, using the LLM with deterministic template fallbacks.
package communication

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/acctcare/careops/pkg/llm"
	"github.com/acctcare/careops/pkg/log"
	"github.com/acctcare/careops/pkg/models"
	"github.com/acctcare/careops/pkg/nlp"
	"github.com/acctcare/careops/pkg/notifier"
)

const physicianPrompt = `Target Audience: Physician (Clinical Focus)
Task: Convert the following Action Plan into a concise clinical advisory.
Style: Professional, concise, medical terminology, SBAR format (Situation, Background, Assessment, Recommendation).

Action Plan:
%s

Output Format:
- **SITUATION**: [Brief summary of risk]
- **BACKGROUND**: [Context if available]
- **ASSESSMENT**: [Risk severity and key metrics]
- **RECOMMENDATION**: [Specific actions]`

const nursePrompt = `Target Audience: Charge Nurse (Operational Focus)
Task: Convert the following Action Plan into a prioritized task list.
Style: Direct, action-oriented, checklist format.

Action Plan:
%s

Output Format:
**URGENT TASKS:**
1. [First action]
...

**CONTEXT:** [Brief reason]
**PROTOCOLS:** [Mentioned SOPs]`

const adminPrompt = `Target Audience: Hospital Administrator (Resource Focus)
Task: Summarize the operational impact of this event.
Style: Formal, high-level, resource-centric (beds, staff, cost).

Action Plan:
%s

Output Format:
**EXECUTIVE SUMMARY**: [What is happening]
**RESOURCE IMPACT**: [Units/Staff affected]
**REQUIRED DECISIONS**: [Approvals needed]`

const patientPrompt = `Target Audience: Patient/Family (Layman Focus)
Task: Explain the situation in simple, reassuring language.
Style: Empathetic, clear (Grade 6 reading level), avoiding jargon.

Action Plan:
%s

Risk Context:
%s

Output:
"Dear Patient/Family,

[Explanation of what is happening (e.g., unit is busy)]
[What we are doing (e.g., moving you to a quieter room)]
[Assurance of continued care]"`

const shiftReportPrompt = `Task: Generate a Shift Handoff Report for the incoming team.
Time Range: %s

Events Log:
%s

Output Format:
# Shift Handoff Report
**Status**: [Green/Yellow/Red based on severity]

## Major Events
- [Time]: [Event] (Action Taken)

## Current Risks
- [Active risks]

## Pending Actions
- [List of pending/uncompleted steps]`

// Service drafts messages via the LLM, falling back to the static role
// templates of the notifier when generation fails. Patient-facing drafts
// are PHI-redacted before delivery.
type Service struct {
	llm       llm.Generator
	formatter notifier.Formatter
	redactor  *nlp.Pipeline
	logger    *slog.Logger
}

func NewService(generator llm.Generator, formatter notifier.Formatter) *Service {
	return &Service{
		llm:       generator,
		formatter: formatter,
		redactor:  nlp.NewPipeline(),
		logger:    log.WithModule("communication"),
	}
}

// DraftMessage generates a role-specific message for an action card.
func (s *Service) DraftMessage(ctx context.Context, card *models.ActionCard, role models.Role, event *models.RiskEvent) (string, error) {
	if card == nil {
		return "", fmt.Errorf("no action card to draft from")
	}

	actionJSON, err := json.Marshal(card)
	if err != nil {
		return "", fmt.Errorf("failed to serialize action card: %w", err)
	}

	system := "You are an expert medical communication assistant."
	var prompt string
	switch role {
	case models.RolePhysician:
		prompt = fmt.Sprintf(physicianPrompt, actionJSON)
	case models.RoleNurse:
		prompt = fmt.Sprintf(nursePrompt, actionJSON)
	case models.RoleAdmin:
		prompt = fmt.Sprintf(adminPrompt, actionJSON)
	case models.RolePatient:
		riskJSON := []byte("{}")
		if event != nil {
			riskJSON, _ = json.Marshal(event)
		}
		prompt = fmt.Sprintf(patientPrompt, actionJSON, riskJSON)
		system += " Use plain language. Be empathetic."
	default:
		return "", fmt.Errorf("%w: %s", notifier.ErrUnsupportedRole, role)
	}

	message, err := s.llm.Generate(ctx, prompt, system)
	if err != nil {
		s.logger.Warn("falling back to template message", "role", role, "error", err)
		message, err = s.formatter.Format(card, role)
		if err != nil {
			return "", err
		}
	}

	if role == models.RolePatient {
		message, _ = s.redactor.Deidentify(message)
	}
	return message, nil
}

// ShiftReport drafts a handoff report over recent events.
func (s *Service) ShiftReport(ctx context.Context, events []map[string]any, hours int) (string, error) {
	if hours <= 0 {
		hours = 12
	}

	eventsJSON, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize events: %w", err)
	}

	prompt := fmt.Sprintf(shiftReportPrompt, fmt.Sprintf("Last %d hours", hours), eventsJSON)
	report, err := s.llm.Generate(ctx, prompt, "You are a clinical supervisor creating a handoff report.")
	if err != nil {
		s.logger.Warn("falling back to plain event list", "error", err)
		return fallbackReport(events, hours), nil
	}
	return report, nil
}

func fallbackReport(events []map[string]any, hours int) string {
	lines := []string{fmt.Sprintf("Shift Handoff Report (last %d hours)", hours), ""}
	if len(events) == 0 {
		lines = append(lines, "No events recorded.")
	}
	for _, e := range events {
		eventType, _ := e["event_type"].(string)
		severity, _ := e["severity"].(string)
		if eventType == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s (%s)", eventType, severity))
	}
	return strings.Join(lines, "\n")
}

// SimulationResult is the predicted cascade of a what-if scenario.
type SimulationResult struct {
	PredictedImpact         string   `json:"predicted_impact"`
	RiskLevelChange         string   `json:"risk_level_change"`
	RecommendedPreparations []string `json:"recommended_preparations"`
}

// SimulateScenario asks the LLM to predict cascade effects of a scenario.
func (s *Service) SimulateScenario(ctx context.Context, description string) (*SimulationResult, error) {
	prompt := fmt.Sprintf(`Scenario Simulation:
"%s"

Given a hospital environment with constrained ICU and ER capacity,
predict the likely cascade of effects from this scenario.

Output JSON:
{
    "predicted_impact": "string description",
    "risk_level_change": "low/medium/high/critical",
    "recommended_preparations": ["step 1", "step 2"]
}`, description)

	response, err := s.llm.Generate(ctx, prompt, "")
	if err != nil {
		return nil, fmt.Errorf("scenario simulation failed: %w", err)
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("could not parse simulation result")
	}

	var result SimulationResult
	if err := json.Unmarshal([]byte(response[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("failed to decode simulation result: %w", err)
	}
	return &result, nil
}
