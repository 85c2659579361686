package invoice

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetByNumber(ctx context.Context, number string) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Invoice, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Invoice, int, error)
	ExistsForEncounter(ctx context.Context, encounterID uuid.UUID) (bool, error)

	// NextInvoiceSequence returns the next value of the invoice number
	// sequence. One global counter across all months; atomic.
	NextInvoiceSequence(ctx context.Context) (int64, error)

	// Line items
	ListItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error)
	CreateItem(ctx context.Context, item *InvoiceItem) error
	UpdateItem(ctx context.Context, item *InvoiceItem) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	DeleteItemsByInvoice(ctx context.Context, invoiceID uuid.UUID) error

	// Payments
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
	CreatePayment(ctx context.Context, p *Payment) error
}

// PatientDirectory checks patient existence before an invoice is accepted.
type PatientDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// EncounterMarker flips an encounter to billed when a directly created
// invoice references it.
type EncounterMarker interface {
	MarkAsBilled(ctx context.Context, id uuid.UUID) error
}
