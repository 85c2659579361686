package encounter

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, enc *Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
	Update(ctx context.Context, enc *Encounter) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Encounter, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Encounter, int, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Encounter, error)

	// ListBillable returns completed encounters with no invoice. The
	// invoice check happens in the query so the total and offsets stay
	// consistent under pagination.
	ListBillable(ctx context.Context, limit, offset int) ([]*Encounter, int, error)
}

// PatientDirectory checks patient existence before an encounter is accepted.
type PatientDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// AppointmentMarker is the slice of the appointment service the encounter
// workflow drives: completing the appointment an encounter documents.
type AppointmentMarker interface {
	MarkCompletedByEncounter(ctx context.Context, id uuid.UUID) error
}
