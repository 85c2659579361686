package encounter

import (
	"time"

	"github.com/google/uuid"
)

// Encounter statuses. The reference flow moves in-progress → completed →
// billed and never reverts, but updates accept any enum value; there is
// no enforced transition graph.
const (
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusBilled     = "billed"
)

var validStatuses = map[string]bool{
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusBilled:     true,
}

// ValidStatus reports whether s is a member of the encounter status enum.
func ValidStatus(s string) bool { return validStatuses[s] }

// Encounter maps to the encounters table: a SOAP note for a clinical
// visit, optionally tied to an appointment.
type Encounter struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	ClinicianID   uuid.UUID  `db:"clinician_id" json:"clinician_id"`
	EncounterDate time.Time  `db:"encounter_date" json:"encounter_date"`

	// SOAP note
	Subjective string `db:"subjective" json:"subjective"`
	Objective  string `db:"objective" json:"objective"`
	Assessment string `db:"assessment" json:"assessment"`
	Plan       string `db:"plan" json:"plan"`

	// ENT examination
	EarExamPerformed    bool    `db:"ear_exam_performed" json:"ear_exam_performed"`
	EarExamNotes        *string `db:"ear_exam_notes" json:"ear_exam_notes,omitempty"`
	NasalExamPerformed  bool    `db:"nasal_exam_performed" json:"nasal_exam_performed"`
	NasalExamNotes      *string `db:"nasal_exam_notes" json:"nasal_exam_notes,omitempty"`
	ThroatExamPerformed bool    `db:"throat_exam_performed" json:"throat_exam_performed"`
	ThroatExamNotes     *string `db:"throat_exam_notes" json:"throat_exam_notes,omitempty"`

	AdditionalNotes *string   `db:"additional_notes" json:"additional_notes,omitempty"`
	Status          string    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
