package billingcode

import (
	"context"

	"github.com/google/uuid"

	"github.com/entclinic/clinic/internal/platform/apperror"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateBillingCode(ctx context.Context, bc *BillingCode) error {
	if bc.Code == "" {
		return apperror.Validation("code is required")
	}
	if bc.Description == "" {
		return apperror.Validation("description is required")
	}
	if !ValidType(bc.Type) {
		return apperror.Validation("type must be cpt, diagnostic, or other; got %q", bc.Type)
	}
	if bc.DefaultPrice != nil && *bc.DefaultPrice < 0 {
		return apperror.Validation("default_price cannot be negative")
	}
	if existing, err := s.repo.GetByCode(ctx, bc.Code); err == nil && existing != nil {
		return apperror.Conflict("billing code %s already exists", bc.Code)
	}
	return s.repo.Create(ctx, bc)
}

func (s *Service) GetBillingCode(ctx context.Context, id uuid.UUID) (*BillingCode, error) {
	bc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.NotFound("billing code", id.String())
	}
	return bc, nil
}

func (s *Service) UpdateBillingCode(ctx context.Context, bc *BillingCode) error {
	if _, err := s.repo.GetByID(ctx, bc.ID); err != nil {
		return apperror.NotFound("billing code", bc.ID.String())
	}
	if !ValidType(bc.Type) {
		return apperror.Validation("type must be cpt, diagnostic, or other; got %q", bc.Type)
	}
	if bc.DefaultPrice != nil && *bc.DefaultPrice < 0 {
		return apperror.Validation("default_price cannot be negative")
	}
	return s.repo.Update(ctx, bc)
}

// DeleteBillingCode removes a code from the catalog. Refused when any
// invoice line item references it; deactivate instead to retire a code.
func (s *Service) DeleteBillingCode(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return apperror.NotFound("billing code", id.String())
	}
	refs, err := s.repo.CountInvoiceReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return apperror.Conflict("billing code is referenced by %d invoice item(s)", refs)
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListBillingCodes(ctx context.Context, activeOnly bool, limit, offset int) ([]*BillingCode, int, error) {
	return s.repo.List(ctx, activeOnly, limit, offset)
}
