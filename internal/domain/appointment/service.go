package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/entclinic/clinic/internal/platform/apperror"
)

type Service struct {
	repo     Repository
	patients PatientDirectory
}

func NewService(repo Repository, patients PatientDirectory) *Service {
	return &Service{repo: repo, patients: patients}
}

// CreateAppointment stores a new appointment with status scheduled.
func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return apperror.Validation("patient_id is required")
	}
	if a.ClinicianID == uuid.Nil {
		return apperror.Validation("clinician_id is required")
	}
	if a.Date.IsZero() {
		return apperror.Validation("date is required")
	}
	if a.AppointmentType == "" {
		return apperror.Validation("appointment_type is required")
	}
	start, err := parseClock(a.StartTime)
	if err != nil {
		return apperror.Validation("start_time must be HH:MM, got %q", a.StartTime)
	}
	end, err := parseClock(a.EndTime)
	if err != nil {
		return apperror.Validation("end_time must be HH:MM, got %q", a.EndTime)
	}
	if !end.After(start) {
		return apperror.Validation("end_time must be after start_time")
	}

	exists, err := s.patients.Exists(ctx, a.PatientID)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.Validation("patient %s does not exist", a.PatientID)
	}

	a.Status = StatusScheduled
	return s.repo.Create(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.NotFound("appointment", id.String())
	}
	return a, nil
}

// UpdateAppointment replaces the mutable fields. Blank fields keep their
// stored value, so a partial update never erases the schedule. Status,
// when supplied, may be any enum value.
func (s *Service) UpdateAppointment(ctx context.Context, a *Appointment) error {
	existing, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return apperror.NotFound("appointment", a.ID.String())
	}
	if a.Status == "" {
		a.Status = existing.Status
	}
	if !ValidStatus(a.Status) {
		return apperror.Validation("invalid status: %s", a.Status)
	}
	if a.Date.IsZero() {
		a.Date = existing.Date
	}
	if a.AppointmentType == "" {
		a.AppointmentType = existing.AppointmentType
	}
	if a.StartTime == "" {
		a.StartTime = existing.StartTime
	}
	if a.EndTime == "" {
		a.EndTime = existing.EndTime
	}
	start, err := parseClock(a.StartTime)
	if err != nil {
		return apperror.Validation("start_time must be HH:MM, got %q", a.StartTime)
	}
	end, err := parseClock(a.EndTime)
	if err != nil {
		return apperror.Validation("end_time must be HH:MM, got %q", a.EndTime)
	}
	if !end.After(start) {
		return apperror.Validation("end_time must be after start_time")
	}
	a.PatientID = existing.PatientID
	a.CreatedBy = existing.CreatedBy
	return s.repo.Update(ctx, a)
}

// UpdateStatus sets the appointment status. Any enum value is accepted
// from any current status.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus string) error {
	if !ValidStatus(newStatus) {
		return apperror.Validation("invalid status: %s", newStatus)
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return apperror.NotFound("appointment", id.String())
	}
	a.Status = newStatus
	return s.repo.Update(ctx, a)
}

// MarkCompletedByEncounter sets the appointment completed. Called when an
// encounter referencing this appointment is created or completed;
// unconditional, and a no-op when already completed.
func (s *Service) MarkCompletedByEncounter(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return apperror.NotFound("appointment", id.String())
	}
	if a.Status == StatusCompleted {
		return nil
	}
	a.Status = StatusCompleted
	return s.repo.Update(ctx, a)
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return apperror.NotFound("appointment", id.String())
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListAppointmentsByDate(ctx context.Context, date time.Time, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByDate(ctx, date, limit, offset)
}

func parseClock(v string) (time.Time, error) {
	return time.Parse("15:04", v)
}
