package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/entclinic/clinic/internal/platform/apperror"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreatePatient assigns the clinic identifier and stores the patient.
// The identifier is ENT{YY}-{NNNNN}: two-digit year of registration plus a
// zero-padded suffix drawn from an atomic sequence.
func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.FirstName == "" {
		return apperror.Validation("first_name is required")
	}
	if p.LastName == "" {
		return apperror.Validation("last_name is required")
	}
	if p.DateOfBirth.IsZero() {
		return apperror.Validation("date_of_birth is required")
	}
	if p.DateOfBirth.After(s.now()) {
		return apperror.Validation("date_of_birth cannot be in the future")
	}

	seq, err := s.repo.NextClinicSequence(ctx)
	if err != nil {
		return fmt.Errorf("next patient sequence: %w", err)
	}
	p.ClinicID = fmt.Sprintf("ENT%s-%05d", s.now().Format("06"), seq)

	return s.repo.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.NotFound("patient", id.String())
	}
	return p, nil
}

func (s *Service) GetPatientByClinicID(ctx context.Context, clinicID string) (*Patient, error) {
	p, err := s.repo.GetByClinicID(ctx, clinicID)
	if err != nil {
		return nil, apperror.NotFound("patient", clinicID)
	}
	return p, nil
}

// UpdatePatient replaces the mutable demographic fields. The clinic
// identifier is never changed.
func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return apperror.NotFound("patient", p.ID.String())
	}
	if p.FirstName == "" || p.LastName == "" {
		return apperror.Validation("first_name and last_name are required")
	}
	p.ClinicID = existing.ClinicID
	return s.repo.Update(ctx, p)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return apperror.NotFound("patient", id.String())
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) SearchPatients(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, query, limit, offset)
}
