package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acctcare/careops/pkg/models"
)

func testCard() *models.ActionCard {
	return &models.ActionCard{
		CardID:      "AC-deadbeef",
		ActionType:  models.ActionTransfer,
		Title:       "ICU Capacity Management",
		Summary:     "Review patients for step-down eligibility",
		Description: "Review patients for step-down eligibility",
		Urgency:     models.UrgencyHigh,
		Rationale:   "ICU occupancy is above the surge threshold",
		Steps: []string{
			"Review stable ICU patients",
			"Prepare step-down beds",
		},
		TargetPatients: []string{"PT-1001", "PT-1002"},
	}
}

func TestFormat_Physician(t *testing.T) {
	formatter := NewRoleFormatter()

	message, err := formatter.Format(testCard(), models.RolePhysician)

	require.NoError(t, err)
	assert.Contains(t, message, "CLINICAL ADVISORY: ICU Capacity Management")
	assert.Contains(t, message, "Urgency: HIGH")
	assert.Contains(t, message, "Rationale: ICU occupancy is above the surge threshold")
}

func TestFormat_Nurse(t *testing.T) {
	formatter := NewRoleFormatter()

	message, err := formatter.Format(testCard(), models.RoleNurse)

	require.NoError(t, err)
	assert.Contains(t, message, "ACTION REQUIRED: ICU Capacity Management")
	assert.Contains(t, message, "Priority: HIGH")
	assert.Contains(t, message, "  [ ] Review stable ICU patients")
	assert.Contains(t, message, "  [ ] Prepare step-down beds")
	assert.Contains(t, message, "Patients: PT-1001, PT-1002")
}

func TestFormat_NurseWithoutPatients(t *testing.T) {
	formatter := NewRoleFormatter()

	card := testCard()
	card.TargetPatients = nil

	message, err := formatter.Format(card, models.RoleNurse)

	require.NoError(t, err)
	assert.NotContains(t, message, "Patients:")
}

func TestFormat_Admin(t *testing.T) {
	formatter := NewRoleFormatter()

	message, err := formatter.Format(testCard(), models.RoleAdmin)

	require.NoError(t, err)
	assert.Contains(t, message, "OPERATIONAL ALERT: ICU Capacity Management")
	assert.Contains(t, message, "Impact Level: HIGH")
	assert.Contains(t, message, "transfer: Review patients for step-down eligibility")
}

func TestFormat_Patient(t *testing.T) {
	formatter := NewRoleFormatter()

	message, err := formatter.Format(testCard(), models.RolePatient)

	require.NoError(t, err)
	assert.Contains(t, message, "Your Care Update: ICU Capacity Management")
	assert.NotContains(t, message, "Rationale")
}

func TestFormat_UnsupportedRole(t *testing.T) {
	formatter := NewRoleFormatter()

	_, err := formatter.Format(testCard(), models.Role("janitor"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedRole)
}

func TestFormat_NilCard(t *testing.T) {
	formatter := NewRoleFormatter()

	_, err := formatter.Format(nil, models.RoleNurse)

	assert.Error(t, err)
}
