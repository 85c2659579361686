package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. Status updates are permissive across the enum;
// there is no transition table, any status may follow any other.
const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no-show"
)

var validStatuses = map[string]bool{
	StatusScheduled: true,
	StatusConfirmed: true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

// ValidStatus reports whether s is a member of the appointment status enum.
func ValidStatus(s string) bool { return validStatuses[s] }

// Appointment maps to the appointments table. Times are clock times within
// the appointment's date, stored as HH:MM.
type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	ClinicianID     uuid.UUID  `db:"clinician_id" json:"clinician_id"`
	Date            time.Time  `db:"date" json:"date"`
	StartTime       string     `db:"start_time" json:"start_time"`
	EndTime         string     `db:"end_time" json:"end_time"`
	Status          string     `db:"status" json:"status"`
	AppointmentType string     `db:"appointment_type" json:"appointment_type"`
	Reason          *string    `db:"reason" json:"reason,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	ReminderSent    bool       `db:"reminder_sent" json:"reminder_sent"`
	ReminderSentAt  *time.Time `db:"reminder_sent_at" json:"reminder_sent_at,omitempty"`
	CreatedBy       uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}
