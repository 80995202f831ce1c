// Package notifier formats action cards for delivery to specific audiences.
package notifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/acctcare/careops/pkg/models"
)

// ErrUnsupportedRole is returned when no template exists for a role.
var ErrUnsupportedRole = errors.New("unsupported notification role")

// Formatter renders a card for one audience.
type Formatter interface {
	Format(card *models.ActionCard, role models.Role) (string, error)
}

// RoleFormatter renders plain-text notifications per role.
type RoleFormatter struct{}

func NewRoleFormatter() *RoleFormatter {
	return &RoleFormatter{}
}

// Format renders the card. Unknown roles return ErrUnsupportedRole.
func (f *RoleFormatter) Format(card *models.ActionCard, role models.Role) (string, error) {
	if card == nil {
		return "", fmt.Errorf("no action card to format")
	}

	switch role {
	case models.RolePhysician:
		return formatPhysician(card), nil
	case models.RoleNurse:
		return formatNurse(card), nil
	case models.RoleAdmin:
		return formatAdmin(card), nil
	case models.RolePatient:
		return formatPatient(card), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedRole, role)
	}
}

func formatPhysician(card *models.ActionCard) string {
	lines := []string{
		"CLINICAL ADVISORY: " + card.Title,
		"Urgency: " + strings.ToUpper(string(card.Urgency)),
		"",
		"Summary: " + card.Summary,
		"",
		"Recommended Actions:",
		"  1. " + card.Description,
		"     Rationale: " + card.Rationale,
	}
	return strings.Join(lines, "\n")
}

func formatNurse(card *models.ActionCard) string {
	lines := []string{
		"ACTION REQUIRED: " + card.Title,
		"Priority: " + strings.ToUpper(string(card.Urgency)),
		"",
		"Task List:",
	}
	for _, step := range card.Steps {
		lines = append(lines, "  [ ] "+step)
	}
	if len(card.TargetPatients) > 0 {
		lines = append(lines, "", "  Patients: "+strings.Join(card.TargetPatients, ", "))
	}
	return strings.Join(lines, "\n")
}

func formatAdmin(card *models.ActionCard) string {
	lines := []string{
		"OPERATIONAL ALERT: " + card.Title,
		"Impact Level: " + strings.ToUpper(string(card.Urgency)),
		"",
		"Summary: " + card.Summary,
		"",
		"Resource Implications:",
		fmt.Sprintf("  - %s: %s", card.ActionType, card.Description),
	}
	return strings.Join(lines, "\n")
}

func formatPatient(card *models.ActionCard) string {
	return "Your Care Update: " + card.Title + "\n\n" + card.Summary
}
