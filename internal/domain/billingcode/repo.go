package billingcode

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, bc *BillingCode) error
	GetByID(ctx context.Context, id uuid.UUID) (*BillingCode, error)
	GetByCode(ctx context.Context, code string) (*BillingCode, error)
	Update(ctx context.Context, bc *BillingCode) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*BillingCode, int, error)

	// CountInvoiceReferences returns how many invoice line items reference
	// this code. A referenced code must not be deleted.
	CountInvoiceReferences(ctx context.Context, id uuid.UUID) (int64, error)
}
