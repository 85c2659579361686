package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/entclinic/clinic/internal/platform/apperror"
	"github.com/entclinic/clinic/internal/platform/db"
	"github.com/entclinic/clinic/internal/platform/metrics"
)

type Service struct {
	repo       Repository
	patients   PatientDirectory
	encounters EncounterMarker
	tx         db.TxRunner
	now        func() time.Time
}

func NewService(repo Repository, patients PatientDirectory, encounters EncounterMarker, tx db.TxRunner) *Service {
	return &Service{repo: repo, patients: patients, encounters: encounters, tx: tx, now: time.Now}
}

// Detail is an invoice with its line items and payment history.
type Detail struct {
	Invoice  *Invoice       `json:"invoice"`
	Items    []*InvoiceItem `json:"items"`
	Payments []*Payment     `json:"payments"`
}

// CreateInvoice stores a directly created invoice with its line items.
// Unlike the encounter billing workflow there is no completeness check,
// but a referenced encounter is still marked billed in the same
// transaction so it drops out of the billable list.
func (s *Service) CreateInvoice(ctx context.Context, inv *Invoice, items []*InvoiceItem) error {
	err := s.tx(ctx, func(ctx context.Context) error {
		if err := s.CreateWithItems(ctx, inv, items); err != nil {
			return err
		}
		if inv.EncounterID != nil {
			return s.encounters.MarkAsBilled(ctx, *inv.EncounterID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.InvoiceCreated("direct")
	return nil
}

// CreateWithItems validates and stores an invoice plus its items in one
// transaction, assigns the invoice number, and derives the totals. Status
// defaults to draft; the caller may supply any valid status. The caller
// supplies snapshot descriptions and unit prices on the items; each
// item's total_price is recomputed here and never trusted from input.
func (s *Service) CreateWithItems(ctx context.Context, inv *Invoice, items []*InvoiceItem) error {
	if inv.PatientID == uuid.Nil {
		return apperror.Validation("patient_id is required")
	}
	if inv.Status != "" && !ValidStatus(inv.Status) {
		return apperror.Validation("invalid status: %s", inv.Status)
	}
	exists, err := s.patients.Exists(ctx, inv.PatientID)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.Validation("patient %s does not exist", inv.PatientID)
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = s.today()
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.InvoiceDate.AddDate(0, 0, 30)
	}
	if inv.DueDate.Before(inv.InvoiceDate) {
		return apperror.Validation("due_date cannot precede invoice_date")
	}
	for _, it := range items {
		if err := validateItem(it); err != nil {
			return err
		}
	}

	return s.tx(ctx, func(ctx context.Context) error {
		number, err := s.nextInvoiceNumber(ctx)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number
		if inv.Status == "" {
			inv.Status = StatusDraft
		}
		if err := s.repo.Create(ctx, inv); err != nil {
			return err
		}
		for _, it := range items {
			it.InvoiceID = inv.ID
			it.TotalPrice = float64(it.Quantity) * it.UnitPrice
			if err := s.repo.CreateItem(ctx, it); err != nil {
				return err
			}
		}
		return s.recompute(ctx, inv)
	})
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.NotFound("invoice", id.String())
	}
	return inv, nil
}

// GetInvoiceDetail loads the invoice with its items and payments.
func (s *Service) GetInvoiceDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	inv, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Invoice: inv, Items: items, Payments: payments}, nil
}

// UpdateInvoice replaces the invoice's mutable header fields and its line
// items, then re-derives the totals. One transaction: delete-removed,
// upsert-kept, recompute commit together. A paid invoice is immutable; the
// call fails before any write.
func (s *Service) UpdateInvoice(ctx context.Context, id uuid.UUID, header *Invoice, desired []*InvoiceItem) (*Invoice, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.NotFound("invoice", id.String())
	}
	if existing.IsPaid() {
		return nil, apperror.Immutable("invoice %s is paid and cannot be modified", existing.InvoiceNumber)
	}
	if header.Status != "" && !ValidStatus(header.Status) {
		return nil, apperror.Validation("invalid status: %s", header.Status)
	}
	for _, it := range desired {
		if err := validateItem(it); err != nil {
			return nil, err
		}
	}

	if !header.InvoiceDate.IsZero() {
		existing.InvoiceDate = header.InvoiceDate
	}
	if !header.DueDate.IsZero() {
		existing.DueDate = header.DueDate
	}
	if existing.DueDate.Before(existing.InvoiceDate) {
		return nil, apperror.Validation("due_date cannot precede invoice_date")
	}
	if header.Status != "" {
		existing.Status = header.Status
	}
	if header.Notes != nil {
		existing.Notes = header.Notes
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, existing); err != nil {
			return err
		}
		if err := s.replaceItems(ctx, existing.ID, desired); err != nil {
			return err
		}
		return s.recompute(ctx, existing)
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// AddPayment appends a payment and re-derives the totals atomically. The
// only path that moves an invoice toward paid or partially_paid.
// Overpayment is accepted: amount_due goes negative and the status clamps
// to paid.
func (s *Service) AddPayment(ctx context.Context, invoiceID uuid.UUID, p *Payment) error {
	if p.Amount <= 0 {
		return apperror.Validation("payment amount must be positive, got %.2f", p.Amount)
	}
	if p.PaymentMethod == "" {
		return apperror.Validation("payment_method is required")
	}
	inv, err := s.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return apperror.NotFound("invoice", invoiceID.String())
	}
	if inv.IsPaid() {
		return apperror.Immutable("invoice %s is paid and cannot accept further payments", inv.InvoiceNumber)
	}
	p.InvoiceID = invoiceID
	if p.PaymentDate.IsZero() {
		p.PaymentDate = s.today()
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreatePayment(ctx, p); err != nil {
			return err
		}
		return s.recompute(ctx, inv)
	})
	if err != nil {
		return err
	}
	metrics.PaymentRecorded(p.Amount)
	return nil
}

// DeleteInvoice removes the invoice and its line items. Payments cascade
// at the storage layer. Paid invoices cannot be deleted. Encounter
// handling, if any, belongs to the caller's transaction.
func (s *Service) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return apperror.NotFound("invoice", id.String())
	}
	if inv.IsPaid() {
		return apperror.Immutable("invoice %s is paid and cannot be deleted", inv.InvoiceNumber)
	}
	return s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.DeleteItemsByInvoice(ctx, id); err != nil {
			return err
		}
		return s.repo.Delete(ctx, id)
	})
}

// Recompute re-derives the cached totals from the stored items and
// payments. Idempotent: with no intervening writes a second call leaves
// every field unchanged.
func (s *Service) Recompute(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.NotFound("invoice", id.String())
	}
	if err := s.tx(ctx, func(ctx context.Context) error {
		return s.recompute(ctx, inv)
	}); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) ListInvoices(ctx context.Context, limit, offset int) ([]*Invoice, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListInvoicesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListInvoicesByStatus(ctx context.Context, status string, limit, offset int) ([]*Invoice, int, error) {
	if !ValidStatus(status) {
		return nil, 0, apperror.Validation("invalid status: %s", status)
	}
	return s.repo.ListByStatus(ctx, status, limit, offset)
}

// replaceItems diffs desired against stored items by id: present means
// update, absent means create, stored-but-missing means delete. Each
// total_price is recomputed server-side.
func (s *Service) replaceItems(ctx context.Context, invoiceID uuid.UUID, desired []*InvoiceItem) error {
	current, err := s.repo.ListItems(ctx, invoiceID)
	if err != nil {
		return err
	}
	keep := make(map[uuid.UUID]bool, len(desired))

	for _, it := range desired {
		it.InvoiceID = invoiceID
		it.TotalPrice = float64(it.Quantity) * it.UnitPrice
		if it.ID != uuid.Nil {
			keep[it.ID] = true
			if err := s.repo.UpdateItem(ctx, it); err != nil {
				return err
			}
		} else {
			if err := s.repo.CreateItem(ctx, it); err != nil {
				return err
			}
		}
	}
	for _, cur := range current {
		if !keep[cur.ID] {
			if err := s.repo.DeleteItem(ctx, cur.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) recompute(ctx context.Context, inv *Invoice) error {
	items, err := s.repo.ListItems(ctx, inv.ID)
	if err != nil {
		return err
	}
	payments, err := s.repo.ListPayments(ctx, inv.ID)
	if err != nil {
		return err
	}
	prev := inv.Status
	inv.RecomputeTotals(items, payments, s.today())
	if err := s.repo.Update(ctx, inv); err != nil {
		return err
	}
	if prev != inv.Status {
		metrics.InvoiceStatusChanged(prev, inv.Status)
	}
	return nil
}

// nextInvoiceNumber builds ENT-INV-YYYYMM-NNNNN. The month is the current
// month but the suffix comes from one global sequence that never resets,
// matching the clinic's historical numbering.
func (s *Service) nextInvoiceNumber(ctx context.Context) (string, error) {
	seq, err := s.repo.NextInvoiceSequence(ctx)
	if err != nil {
		return "", fmt.Errorf("next invoice sequence: %w", err)
	}
	return fmt.Sprintf("ENT-INV-%s-%05d", s.now().Format("200601"), seq), nil
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func validateItem(it *InvoiceItem) error {
	if it.Description == "" {
		return apperror.Validation("item description is required")
	}
	if it.Quantity < 1 {
		return apperror.Validation("item quantity must be at least 1, got %d", it.Quantity)
	}
	if it.UnitPrice < 0 {
		return apperror.Validation("item unit_price cannot be negative, got %.2f", it.UnitPrice)
	}
	return nil
}
