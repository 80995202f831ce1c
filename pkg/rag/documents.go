package rag

import "time"

// sampleDocuments returns the protocol documents seeded into every engine.
func sampleDocuments() []*Document {
	now := time.Now().UTC()

	return []*Document{
		{
			DocID:     "sop-001",
			Title:     "ICU Capacity Management SOP",
			Source:    "Hospital Policy Manual v2.3",
			DocType:   "sop",
			CreatedAt: now,
			Content: `Standard Operating Procedure: ICU Capacity Management

Purpose: This SOP outlines procedures for managing ICU bed capacity during high-occupancy periods.

Thresholds:
- Warning: ICU occupancy reaches 80%
- Critical: ICU occupancy reaches 90%

Actions when Warning threshold is reached:
1. Review all ICU patients for step-down eligibility
2. Contact charge nurse to assess discharge-ready patients
3. Notify attending physicians of capacity concerns
4. Prepare step-down unit beds for potential transfers

Actions when Critical threshold is reached:
1. Activate ICU surge protocol
2. Contact hospital administrator on-call
3. Consider transfer to affiliated facilities
4. Implement elective surgery postponement if needed
5. Document all capacity decisions in the system

Patient Selection for Transfer:
- Patients with stable vital signs for >24 hours
- No active vasoactive medication drips
- No high-flow oxygen requirement (>6L)
- Discharge readiness score >70%`,
		},
		{
			DocID:     "sop-002",
			Title:     "Sepsis Bundle Protocol",
			Source:    "Infectious Disease Guidelines 2024",
			DocType:   "guideline",
			CreatedAt: now,
			Content: `Sepsis Management Bundle - Hour-1 Protocol

Immediate Actions (within 1 hour of sepsis identification):

1. Lactate Measurement
   - Order serum lactate level
   - If lactate >2 mmol/L, repeat within 2-4 hours

2. Blood Cultures
   - Obtain 2 sets of blood cultures before antibiotics
   - Include aerobic and anaerobic bottles

3. Broad-Spectrum Antibiotics
   - Administer within 1 hour of recognition
   - Coverage: gram-positive, gram-negative, and anaerobes
   - Recommended: Piperacillin-tazobactam + Vancomycin

4. Fluid Resuscitation
   - 30 mL/kg crystalloid for hypotension or lactate >=4
   - Reassess volume status and tissue perfusion

5. Vasopressors
   - If hypotension persists after fluid resuscitation
   - Target MAP >=65 mmHg
   - First-line: Norepinephrine

Documentation Requirements:
- Time of sepsis identification
- Time of each bundle element completion
- Patient response to interventions`,
		},
		{
			DocID:     "sop-003",
			Title:     "Discharge Planning Guidelines",
			Source:    "Care Transitions Protocol",
			DocType:   "guideline",
			CreatedAt: now,
			Content: `Discharge Planning and Readmission Prevention

Discharge Readiness Criteria:
1. Stable vital signs for minimum 24 hours
2. Oral medication tolerance established
3. Adequate pain control with oral medications
4. Patient/family education completed
5. Follow-up appointments scheduled
6. Home care services arranged if needed

High-Risk Patient Identification:
- Age >65 with multiple comorbidities
- Previous admission within 30 days
- Social determinants of health concerns
- Complex medication regimen (>5 medications)
- Inadequate social support

Readmission Prevention Strategies:
1. Medication reconciliation before discharge
2. Teach-back method for patient education
3. Schedule follow-up within 7 days for high-risk patients
4. Post-discharge phone call within 48 hours
5. Connect with community health resources

Documentation:
- Discharge summary within 24 hours
- Medication list provided to patient
- Warning signs for return to ED`,
		},
	}
}
