package invoice

import (
	"time"

	"github.com/google/uuid"
)

// Invoice statuses. draft, sent, and cancelled are set explicitly;
// paid, partially_paid, and overdue are derived by RecomputeTotals.
const (
	StatusDraft         = "draft"
	StatusSent          = "sent"
	StatusPaid          = "paid"
	StatusPartiallyPaid = "partially_paid"
	StatusOverdue       = "overdue"
	StatusCancelled     = "cancelled"
)

var validStatuses = map[string]bool{
	StatusDraft:         true,
	StatusSent:          true,
	StatusPaid:          true,
	StatusPartiallyPaid: true,
	StatusOverdue:       true,
	StatusCancelled:     true,
}

// ValidStatus reports whether s is a member of the invoice status enum.
func ValidStatus(s string) bool { return validStatuses[s] }

// Invoice maps to the invoices table. TotalAmount, AmountPaid, and
// AmountDue are cached projections of the item and payment rows; the only
// write path for them is RecomputeTotals.
type Invoice struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	InvoiceNumber string     `db:"invoice_number" json:"invoice_number"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	EncounterID   *uuid.UUID `db:"encounter_id" json:"encounter_id,omitempty"`
	InvoiceDate   time.Time  `db:"invoice_date" json:"invoice_date"`
	DueDate       time.Time  `db:"due_date" json:"due_date"`
	TotalAmount   float64    `db:"total_amount" json:"total_amount"`
	AmountPaid    float64    `db:"amount_paid" json:"amount_paid"`
	AmountDue     float64    `db:"amount_due" json:"amount_due"`
	Status        string     `db:"status" json:"status"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedBy     uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// InvoiceItem maps to the invoice_items table. Description and UnitPrice
// are snapshots taken from the billing code at creation; BillingCodeID is
// nulled if the catalog entry is ever deleted.
type InvoiceItem struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	InvoiceID     uuid.UUID  `db:"invoice_id" json:"invoice_id"`
	BillingCodeID *uuid.UUID `db:"billing_code_id" json:"billing_code_id,omitempty"`
	Description   string     `db:"description" json:"description"`
	Quantity      int        `db:"quantity" json:"quantity"`
	UnitPrice     float64    `db:"unit_price" json:"unit_price"`
	TotalPrice    float64    `db:"total_price" json:"total_price"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Payment maps to the payments table. Payments are append-only: the
// system has no refund or void operation.
type Payment struct {
	ID            uuid.UUID `db:"id" json:"id"`
	InvoiceID     uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Amount        float64   `db:"amount" json:"amount"`
	PaymentDate   time.Time `db:"payment_date" json:"payment_date"`
	PaymentMethod string    `db:"payment_method" json:"payment_method"`
	TransactionID *string   `db:"transaction_id" json:"transaction_id,omitempty"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	RecordedBy    uuid.UUID `db:"recorded_by" json:"recorded_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// IsPaid reports whether the invoice is in the immutable paid state.
func (inv *Invoice) IsPaid() bool { return inv.Status == StatusPaid }

// RecomputeTotals derives the cached totals and status from the invoice's
// items and payments. Pure function of (items, payments, due_date, today);
// calling it twice with no intervening writes yields identical fields.
//
// Status precedence: due ≤ 0 wins, then any payment, then a lapsed due
// date; otherwise the explicitly set status (draft/sent/cancelled) stands.
// Payment-driven statuses therefore outrank manually set ones. Overpayment
// leaves amount_due negative; only the status is clamped to paid.
func (inv *Invoice) RecomputeTotals(items []*InvoiceItem, payments []*Payment, today time.Time) {
	var total, paid float64
	for _, it := range items {
		total += it.TotalPrice
	}
	for _, p := range payments {
		paid += p.Amount
	}

	inv.TotalAmount = total
	inv.AmountPaid = paid
	inv.AmountDue = total - paid

	switch {
	case inv.AmountDue <= 0:
		inv.Status = StatusPaid
	case inv.AmountPaid > 0:
		inv.Status = StatusPartiallyPaid
	case inv.DueDate.Before(today):
		inv.Status = StatusOverdue
	}
}
