package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. ClinicID is the human-facing
// identifier (e.g. ENT25-00001) assigned once and never reused.
type Patient struct {
	ID                    uuid.UUID `db:"id" json:"id"`
	ClinicID              string    `db:"clinic_id" json:"clinic_id"`
	FirstName             string    `db:"first_name" json:"first_name"`
	LastName              string    `db:"last_name" json:"last_name"`
	DateOfBirth           time.Time `db:"date_of_birth" json:"date_of_birth"`
	Gender                *string   `db:"gender" json:"gender,omitempty"`
	Email                 *string   `db:"email" json:"email,omitempty"`
	Phone                 *string   `db:"phone" json:"phone,omitempty"`
	Address               *string   `db:"address" json:"address,omitempty"`
	City                  *string   `db:"city" json:"city,omitempty"`
	State                 *string   `db:"state" json:"state,omitempty"`
	PostalCode            *string   `db:"postal_code" json:"postal_code,omitempty"`
	EmergencyContactName  *string   `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string   `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	MedicalHistory        *string   `db:"medical_history" json:"medical_history,omitempty"`
	Allergies             *string   `db:"allergies" json:"allergies,omitempty"`
	CurrentMedications    *string   `db:"current_medications" json:"current_medications,omitempty"`
	InsuranceProvider     *string   `db:"insurance_provider" json:"insurance_provider,omitempty"`
	InsurancePolicyNumber *string   `db:"insurance_policy_number" json:"insurance_policy_number,omitempty"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// FullName returns the patient's display name.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Age returns the patient's age in whole years as of now.
func (p *Patient) Age(now time.Time) int {
	years := now.Year() - p.DateOfBirth.Year()
	birthday := time.Date(now.Year(), p.DateOfBirth.Month(), p.DateOfBirth.Day(), 0, 0, 0, 0, now.Location())
	if now.Before(birthday) {
		years--
	}
	return years
}
