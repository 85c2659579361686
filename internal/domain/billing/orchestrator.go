// Package billing coordinates the encounter-to-invoice workflow. It owns no
// tables of its own; it drives the encounter, invoice, and billing code
// services so that "invoice an encounter" and "delete an invoice" keep both
// aggregates consistent inside one transaction.
package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/entclinic/clinic/internal/domain/billingcode"
	"github.com/entclinic/clinic/internal/domain/encounter"
	"github.com/entclinic/clinic/internal/domain/invoice"
	"github.com/entclinic/clinic/internal/platform/apperror"
	"github.com/entclinic/clinic/internal/platform/db"
	"github.com/entclinic/clinic/internal/platform/metrics"
)

// Encounters is the slice of the encounter service the billing workflow
// drives.
type Encounters interface {
	GetEncounter(ctx context.Context, id uuid.UUID) (*encounter.Encounter, error)
	MarkAsBilled(ctx context.Context, id uuid.UUID) error
	RevertToCompleted(ctx context.Context, id uuid.UUID) error
	ListBillableEncounters(ctx context.Context, limit, offset int) ([]*encounter.Encounter, int, error)
}

// Invoices is the slice of the invoice service the billing workflow drives.
type Invoices interface {
	CreateWithItems(ctx context.Context, inv *invoice.Invoice, items []*invoice.InvoiceItem) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
	DeleteInvoice(ctx context.Context, id uuid.UUID) error
}

// Catalog resolves billing codes when invoice lines reference them.
type Catalog interface {
	GetBillingCode(ctx context.Context, id uuid.UUID) (*billingcode.BillingCode, error)
}

// InvoiceIndex answers whether an encounter already has an invoice.
type InvoiceIndex interface {
	ExistsForEncounter(ctx context.Context, encounterID uuid.UUID) (bool, error)
}

type Orchestrator struct {
	encounters Encounters
	invoices   Invoices
	catalog    Catalog
	index      InvoiceIndex
	tx         db.TxRunner
}

func NewOrchestrator(encounters Encounters, invoices Invoices, catalog Catalog, index InvoiceIndex, tx db.TxRunner) *Orchestrator {
	return &Orchestrator{encounters: encounters, invoices: invoices, catalog: catalog, index: index, tx: tx}
}

// ItemRequest is one line of an encounter invoice. When BillingCodeID is
// set, description and unit price default to the catalog entry; either can
// be overridden. The resulting invoice item stores a snapshot, so later
// catalog edits never change past invoices.
type ItemRequest struct {
	BillingCodeID *uuid.UUID `json:"billing_code_id"`
	Description   string     `json:"description"`
	Quantity      int        `json:"quantity"`
	UnitPrice     *float64   `json:"unit_price"`
}

// InvoiceRequest carries the header fields for invoicing an encounter.
type InvoiceRequest struct {
	DueDate string        `json:"due_date"`
	Notes   *string       `json:"notes"`
	Items   []ItemRequest `json:"items"`
}

// CreateInvoiceForEncounter issues an invoice for a completed encounter.
// The invoice and the encounter's billed status commit in one transaction;
// a failed invoice never leaves the encounter marked billed.
func (o *Orchestrator) CreateInvoiceForEncounter(ctx context.Context, encounterID uuid.UUID, inv *invoice.Invoice, reqs []ItemRequest) (*invoice.Invoice, error) {
	enc, err := o.encounters.GetEncounter(ctx, encounterID)
	if err != nil {
		return nil, err
	}
	if enc.Status != encounter.StatusCompleted {
		return nil, apperror.Conflict("encounter must be completed before invoicing, status is %s", enc.Status)
	}
	exists, err := o.index.ExistsForEncounter(ctx, encounterID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperror.Conflict("encounter %s is already invoiced", encounterID)
	}
	if len(reqs) == 0 {
		return nil, apperror.Validation("at least one invoice item is required")
	}

	items := make([]*invoice.InvoiceItem, 0, len(reqs))
	for _, r := range reqs {
		item, err := o.resolveItem(ctx, r)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	inv.PatientID = enc.PatientID
	inv.EncounterID = &enc.ID

	err = o.tx(ctx, func(ctx context.Context) error {
		if err := o.invoices.CreateWithItems(ctx, inv, items); err != nil {
			return err
		}
		return o.encounters.MarkAsBilled(ctx, enc.ID)
	})
	if err != nil {
		return nil, err
	}

	metrics.InvoiceCreated("encounter")
	return inv, nil
}

// DeleteInvoice removes an invoice and, when the linked encounter is
// billed, reverts it to completed so it can be re-invoiced. An encounter
// in any other status is left untouched. Paid invoices are immutable.
func (o *Orchestrator) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	inv, err := o.invoices.GetInvoice(ctx, id)
	if err != nil {
		return err
	}
	if inv.IsPaid() {
		return apperror.Immutable("invoice %s is paid and cannot be deleted", inv.InvoiceNumber)
	}
	return o.tx(ctx, func(ctx context.Context) error {
		if inv.EncounterID != nil {
			enc, err := o.encounters.GetEncounter(ctx, *inv.EncounterID)
			if err != nil {
				return err
			}
			if enc.Status == encounter.StatusBilled {
				if err := o.encounters.RevertToCompleted(ctx, enc.ID); err != nil {
					return err
				}
			}
		}
		return o.invoices.DeleteInvoice(ctx, id)
	})
}

// BillableEncounters lists completed encounters that have no invoice yet.
func (o *Orchestrator) BillableEncounters(ctx context.Context, limit, offset int) ([]*encounter.Encounter, int, error) {
	return o.encounters.ListBillableEncounters(ctx, limit, offset)
}

func (o *Orchestrator) resolveItem(ctx context.Context, r ItemRequest) (*invoice.InvoiceItem, error) {
	item := &invoice.InvoiceItem{
		BillingCodeID: r.BillingCodeID,
		Description:   r.Description,
		Quantity:      r.Quantity,
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if r.UnitPrice != nil {
		item.UnitPrice = *r.UnitPrice
	}

	if r.BillingCodeID == nil {
		if r.UnitPrice == nil {
			return nil, apperror.Validation("unit_price is required when no billing code is given")
		}
		return item, nil
	}

	code, err := o.catalog.GetBillingCode(ctx, *r.BillingCodeID)
	if err != nil {
		return nil, apperror.Validation("billing code %s does not exist", r.BillingCodeID)
	}
	if item.Description == "" {
		item.Description = code.Description
	}
	if r.UnitPrice == nil {
		if code.DefaultPrice == nil {
			return nil, apperror.Validation("billing code %s has no default price, unit_price is required", code.Code)
		}
		item.UnitPrice = *code.DefaultPrice
	}
	return item, nil
}
