package encounter

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entclinic/clinic/internal/platform/apperror"
	"github.com/entclinic/clinic/internal/platform/db"
	"github.com/entclinic/clinic/internal/platform/metrics"
)

type Service struct {
	repo         Repository
	patients     PatientDirectory
	appointments AppointmentMarker
	tx           db.TxRunner
}

func NewService(repo Repository, patients PatientDirectory, appointments AppointmentMarker, tx db.TxRunner) *Service {
	return &Service{repo: repo, patients: patients, appointments: appointments, tx: tx}
}

// CreateEncounter stores a new encounter with status in-progress. When the
// encounter references an appointment, the appointment is marked completed
// in the same transaction: both writes commit together or not at all.
func (s *Service) CreateEncounter(ctx context.Context, enc *Encounter) error {
	if enc.PatientID == uuid.Nil {
		return apperror.Validation("patient_id is required")
	}
	if enc.ClinicianID == uuid.Nil {
		return apperror.Validation("clinician_id is required")
	}
	if missing := missingSOAPFields(enc); len(missing) > 0 {
		return apperror.Validation("required SOAP fields blank: %s", strings.Join(missing, ", "))
	}

	exists, err := s.patients.Exists(ctx, enc.PatientID)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.Validation("patient %s does not exist", enc.PatientID)
	}

	if enc.EncounterDate.IsZero() {
		enc.EncounterDate = time.Now().UTC()
	}
	enc.Status = StatusInProgress

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, enc); err != nil {
			return err
		}
		if enc.AppointmentID != nil {
			return s.appointments.MarkCompletedByEncounter(ctx, *enc.AppointmentID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.EncounterStatusChanged("", StatusInProgress)
	return nil
}

func (s *Service) GetEncounter(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	enc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.NotFound("encounter", id.String())
	}
	return enc, nil
}

// UpdateEncounter is a full field replacement. Status may be set to any
// enum value directly; skips and reversions are not guarded against.
func (s *Service) UpdateEncounter(ctx context.Context, enc *Encounter) error {
	existing, err := s.repo.GetByID(ctx, enc.ID)
	if err != nil {
		return apperror.NotFound("encounter", enc.ID.String())
	}
	if enc.Status == "" {
		enc.Status = existing.Status
	}
	if !ValidStatus(enc.Status) {
		return apperror.Validation("invalid status: %s", enc.Status)
	}
	if missing := missingSOAPFields(enc); len(missing) > 0 {
		return apperror.Validation("required SOAP fields blank: %s", strings.Join(missing, ", "))
	}
	enc.PatientID = existing.PatientID
	enc.AppointmentID = existing.AppointmentID
	if err := s.repo.Update(ctx, enc); err != nil {
		return err
	}
	if existing.Status != enc.Status {
		metrics.EncounterStatusChanged(existing.Status, enc.Status)
	}
	return nil
}

// MarkAsCompleted sets the encounter completed and, when an appointment is
// linked, completes it too. A double-write of the same fact; idempotent.
func (s *Service) MarkAsCompleted(ctx context.Context, id uuid.UUID) error {
	enc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return apperror.NotFound("encounter", id.String())
	}
	prev := enc.Status
	enc.Status = StatusCompleted

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, enc); err != nil {
			return err
		}
		if enc.AppointmentID != nil {
			return s.appointments.MarkCompletedByEncounter(ctx, *enc.AppointmentID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if prev != StatusCompleted {
		metrics.EncounterStatusChanged(prev, StatusCompleted)
	}
	return nil
}

// RevertToCompleted flips a billed encounter back to completed. Unlike
// MarkAsCompleted this never touches a linked appointment; the encounter
// was already completed once and the appointment state reflects that.
func (s *Service) RevertToCompleted(ctx context.Context, id uuid.UUID) error {
	enc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return apperror.NotFound("encounter", id.String())
	}
	prev := enc.Status
	enc.Status = StatusCompleted
	if err := s.repo.Update(ctx, enc); err != nil {
		return err
	}
	if prev != StatusCompleted {
		metrics.EncounterStatusChanged(prev, StatusCompleted)
	}
	return nil
}

// MarkAsBilled flips only the encounter status. Invoked by the billing
// workflow once an invoice exists for this encounter.
func (s *Service) MarkAsBilled(ctx context.Context, id uuid.UUID) error {
	enc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return apperror.NotFound("encounter", id.String())
	}
	prev := enc.Status
	enc.Status = StatusBilled
	if err := s.repo.Update(ctx, enc); err != nil {
		return err
	}
	if prev != StatusBilled {
		metrics.EncounterStatusChanged(prev, StatusBilled)
	}
	return nil
}

// DeleteEncounter is a hard delete. A linked invoice survives with its
// encounter reference nulled by the storage layer; it is not deleted.
func (s *Service) DeleteEncounter(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return apperror.NotFound("encounter", id.String())
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListEncounters(ctx context.Context, limit, offset int) ([]*Encounter, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListEncountersByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// ListBillableEncounters returns completed encounters that have no
// invoice yet.
func (s *Service) ListBillableEncounters(ctx context.Context, limit, offset int) ([]*Encounter, int, error) {
	return s.repo.ListBillable(ctx, limit, offset)
}

func (s *Service) ListEncountersByStatus(ctx context.Context, status string, limit, offset int) ([]*Encounter, int, error) {
	if !ValidStatus(status) {
		return nil, 0, apperror.Validation("invalid status: %s", status)
	}
	return s.repo.ListByStatus(ctx, status, limit, offset)
}

func missingSOAPFields(enc *Encounter) []string {
	var missing []string
	if strings.TrimSpace(enc.Subjective) == "" {
		missing = append(missing, "subjective")
	}
	if strings.TrimSpace(enc.Objective) == "" {
		missing = append(missing, "objective")
	}
	if strings.TrimSpace(enc.Assessment) == "" {
		missing = append(missing, "assessment")
	}
	if strings.TrimSpace(enc.Plan) == "" {
		missing = append(missing, "plan")
	}
	return missing
}
