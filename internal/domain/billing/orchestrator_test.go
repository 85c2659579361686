package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/entclinic/clinic/internal/domain/billingcode"
	"github.com/entclinic/clinic/internal/domain/encounter"
	"github.com/entclinic/clinic/internal/domain/invoice"
	"github.com/entclinic/clinic/internal/platform/apperror"
)

type fakeEncounters struct {
	encounters map[uuid.UUID]*encounter.Encounter
	index      InvoiceIndex
}

func newFakeEncounters(encs ...*encounter.Encounter) *fakeEncounters {
	f := &fakeEncounters{encounters: make(map[uuid.UUID]*encounter.Encounter)}
	for _, e := range encs {
		f.encounters[e.ID] = e
	}
	return f
}

func (f *fakeEncounters) GetEncounter(_ context.Context, id uuid.UUID) (*encounter.Encounter, error) {
	enc, ok := f.encounters[id]
	if !ok {
		return nil, apperror.NotFound("encounter", id.String())
	}
	copied := *enc
	return &copied, nil
}

func (f *fakeEncounters) MarkAsBilled(_ context.Context, id uuid.UUID) error {
	enc, ok := f.encounters[id]
	if !ok {
		return apperror.NotFound("encounter", id.String())
	}
	enc.Status = encounter.StatusBilled
	return nil
}

func (f *fakeEncounters) RevertToCompleted(_ context.Context, id uuid.UUID) error {
	enc, ok := f.encounters[id]
	if !ok {
		return apperror.NotFound("encounter", id.String())
	}
	enc.Status = encounter.StatusCompleted
	return nil
}

func (f *fakeEncounters) ListBillableEncounters(ctx context.Context, limit, offset int) ([]*encounter.Encounter, int, error) {
	var result []*encounter.Encounter
	for _, e := range f.encounters {
		if e.Status != encounter.StatusCompleted {
			continue
		}
		if invoiced, _ := f.index.ExistsForEncounter(ctx, e.ID); invoiced {
			continue
		}
		result = append(result, e)
	}
	return result, len(result), nil
}

// fakeInvoices mirrors the invoice service's observable behavior: numbers,
// derived totals, paid-invoice immutability.
type fakeInvoices struct {
	invoices map[uuid.UUID]*invoice.Invoice
	items    map[uuid.UUID][]*invoice.InvoiceItem
	seq      int64
}

func newFakeInvoices() *fakeInvoices {
	return &fakeInvoices{
		invoices: make(map[uuid.UUID]*invoice.Invoice),
		items:    make(map[uuid.UUID][]*invoice.InvoiceItem),
	}
}

func (f *fakeInvoices) CreateWithItems(_ context.Context, inv *invoice.Invoice, items []*invoice.InvoiceItem) error {
	for _, it := range items {
		if it.Quantity < 1 {
			return apperror.Validation("quantity must be at least 1")
		}
		if it.UnitPrice < 0 {
			return apperror.Validation("unit_price cannot be negative")
		}
		it.TotalPrice = float64(it.Quantity) * it.UnitPrice
	}
	f.seq++
	inv.ID = uuid.New()
	inv.InvoiceNumber = fmt.Sprintf("ENT-INV-202609-%05d", f.seq)
	if inv.Status == "" {
		inv.Status = invoice.StatusDraft
	}
	inv.RecomputeTotals(items, nil, time.Now())
	stored := *inv
	f.invoices[inv.ID] = &stored
	f.items[inv.ID] = items
	return nil
}

func (f *fakeInvoices) GetInvoice(_ context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, apperror.NotFound("invoice", id.String())
	}
	copied := *inv
	return &copied, nil
}

func (f *fakeInvoices) DeleteInvoice(_ context.Context, id uuid.UUID) error {
	inv, ok := f.invoices[id]
	if !ok {
		return apperror.NotFound("invoice", id.String())
	}
	if inv.IsPaid() {
		return apperror.Immutable("invoice %s is paid and cannot be deleted", inv.InvoiceNumber)
	}
	delete(f.invoices, id)
	delete(f.items, id)
	return nil
}

func (f *fakeInvoices) ExistsForEncounter(_ context.Context, encounterID uuid.UUID) (bool, error) {
	for _, inv := range f.invoices {
		if inv.EncounterID != nil && *inv.EncounterID == encounterID {
			return true, nil
		}
	}
	return false, nil
}

type fakeCatalog struct {
	codes map[uuid.UUID]*billingcode.BillingCode
}

func (f *fakeCatalog) GetBillingCode(_ context.Context, id uuid.UUID) (*billingcode.BillingCode, error) {
	code, ok := f.codes[id]
	if !ok {
		return nil, apperror.NotFound("billing code", id.String())
	}
	return code, nil
}

func passthroughTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func price(v float64) *float64 { return &v }

func completedEncounter() *encounter.Encounter {
	return &encounter.Encounter{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		Status:    encounter.StatusCompleted,
	}
}

type fixture struct {
	orch       *Orchestrator
	encounters *fakeEncounters
	invoices   *fakeInvoices
	officeCode uuid.UUID
	earwaxCode uuid.UUID
	diagCode   uuid.UUID
}

func newFixture(encs ...*encounter.Encounter) *fixture {
	f := &fixture{
		encounters: newFakeEncounters(encs...),
		invoices:   newFakeInvoices(),
		officeCode: uuid.New(),
		earwaxCode: uuid.New(),
		diagCode:   uuid.New(),
	}
	catalog := &fakeCatalog{codes: map[uuid.UUID]*billingcode.BillingCode{
		f.officeCode: {ID: f.officeCode, Code: "99213", Description: "Office visit, established patient (Level 3)", Type: billingcode.TypeCPT, DefaultPrice: price(95.00)},
		f.earwaxCode: {ID: f.earwaxCode, Code: "69210", Description: "Removal of impacted earwax", Type: billingcode.TypeCPT, DefaultPrice: price(85.00)},
		f.diagCode:   {ID: f.diagCode, Code: "H66.9", Description: "Otitis media, unspecified", Type: billingcode.TypeDiagnostic},
	}}
	f.encounters.index = f.invoices
	f.orch = NewOrchestrator(f.encounters, f.invoices, catalog, f.invoices, passthroughTx)
	return f
}

func TestCreateInvoiceForEncounter(t *testing.T) {
	enc := completedEncounter()
	f := newFixture(enc)

	inv, err := f.orch.CreateInvoiceForEncounter(context.Background(), enc.ID, &invoice.Invoice{CreatedBy: uuid.New()}, []ItemRequest{
		{BillingCodeID: &f.officeCode},
		{BillingCodeID: &f.earwaxCode},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.TotalAmount != 180.00 {
		t.Errorf("expected total 180.00, got %.2f", inv.TotalAmount)
	}
	if inv.PatientID != enc.PatientID {
		t.Errorf("patient not taken from encounter")
	}
	if inv.EncounterID == nil || *inv.EncounterID != enc.ID {
		t.Errorf("invoice not linked to encounter")
	}
	if !strings.HasPrefix(inv.InvoiceNumber, "ENT-INV-") {
		t.Errorf("unexpected invoice number %s", inv.InvoiceNumber)
	}
	if got := f.encounters.encounters[enc.ID].Status; got != encounter.StatusBilled {
		t.Errorf("expected encounter billed, got %s", got)
	}
}

func TestCreateInvoiceForEncounter_SnapshotsCatalogDefaults(t *testing.T) {
	enc := completedEncounter()
	f := newFixture(enc)

	inv, err := f.orch.CreateInvoiceForEncounter(context.Background(), enc.ID, &invoice.Invoice{CreatedBy: uuid.New()}, []ItemRequest{
		{BillingCodeID: &f.officeCode, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items := f.invoices.items[inv.ID]
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	if it.Description != "Office visit, established patient (Level 3)" {
		t.Errorf("description not snapshotted from catalog: %q", it.Description)
	}
	if it.UnitPrice != 95.00 || it.TotalPrice != 190.00 {
		t.Errorf("price not taken from catalog default: unit %.2f total %.2f", it.UnitPrice, it.TotalPrice)
	}
	if it.BillingCodeID == nil || *it.BillingCodeID != f.officeCode {
		t.Errorf("item does not reference the billing code")
	}
}

func TestCreateInvoiceForEncounter_OverridesCatalog(t *testing.T) {
	enc := completedEncounter()
	f := newFixture(enc)

	inv, err := f.orch.CreateInvoiceForEncounter(context.Background(), enc.ID, &invoice.Invoice{CreatedBy: uuid.New()}, []ItemRequest{
		{BillingCodeID: &f.officeCode, Description: "Extended office visit", UnitPrice: price(120.00)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	it := f.invoices.items[inv.ID][0]
	if it.Description != "Extended office visit" || it.UnitPrice != 120.00 {
		t.Errorf("overrides not honored: %q %.2f", it.Description, it.UnitPrice)
	}
}

func TestCreateInvoiceForEncounter_NotCompleted(t *testing.T) {
	enc := completedEncounter()
	enc.Status = encounter.StatusInProgress
	f := newFixture(enc)

	_, err := f.orch.CreateInvoiceForEncounter(context.Background(), enc.ID, &invoice.Invoice{}, []ItemRequest{
		{BillingCodeID: &f.officeCode},
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	if got := f.encounters.encounters[enc.ID].Status; got != encounter.StatusInProgress {
		t.Errorf("encounter status changed by rejected invoicing: %s", got)
	}
	if len(f.invoices.invoices) != 0 {
		t.Errorf("invoice created for non-completed encounter")
	}
}

func TestCreateInvoiceForEncounter_AlreadyInvoiced(t *testing.T) {
	enc := completedEncounter()
	f := newFixture(enc)

	items := []ItemRequest{{BillingCodeID: &f.officeCode}}
	if _, err := f.orch.CreateInvoiceForEncounter(context.Background(), enc.ID, &invoice.Invoice{}, items); err != nil {
		t.Fatalf("first invoicing failed: %v", err)
	}

	// Encounter is billed now; even forced back to completed it stays
	// invoiced.
	f.encounters.encounters[enc.ID].Status = encounter.StatusCompleted
	_, err := f.orch.CreateInvoiceForEncounter(context.Background(), enc.ID, &invoice.Invoice{}, items)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("expected conflict on second invoicing, got %v", err)
	}
}

func TestCreateInvoiceForEncounter_NoDefaultPrice(t *testing.T) {
	enc := completedEncounter()
	f := newFixture(enc)

	_, err := f.orch.CreateInvoiceForEncounter(context.Background(), enc.ID, &invoice.Invoice{}, []ItemRequest{
		{BillingCodeID: &f.diagCode},
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("expected validation error for priceless code, got %v", err)
	}

	// An explicit price makes the same code billable.
	_, err = f.orch.CreateInvoiceForEncounter(context.Background(), enc.ID, &invoice.Invoice{}, []ItemRequest{
		{BillingCodeID: &f.diagCode, UnitPrice: price(0.00)},
	})
	if err != nil {
		t.Errorf("unexpected error with explicit price: %v", err)
	}
}

func TestCreateInvoiceForEncounter_FreeFormItemNeedsPrice(t *testing.T) {
	enc := completedEncounter()
	f := newFixture(enc)

	_, err := f.orch.CreateInvoiceForEncounter(context.Background(), enc.ID, &invoice.Invoice{}, []ItemRequest{
		{Description: "Supplies"},
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreateInvoiceForEncounter_NoItems(t *testing.T) {
	enc := completedEncounter()
	f := newFixture(enc)

	_, err := f.orch.CreateInvoiceForEncounter(context.Background(), enc.ID, &invoice.Invoice{}, nil)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestDeleteInvoice_RevertsEncounter(t *testing.T) {
	enc := completedEncounter()
	f := newFixture(enc)

	inv, err := f.orch.CreateInvoiceForEncounter(context.Background(), enc.ID, &invoice.Invoice{}, []ItemRequest{
		{BillingCodeID: &f.officeCode},
	})
	if err != nil {
		t.Fatalf("invoicing failed: %v", err)
	}

	if err := f.orch.DeleteInvoice(context.Background(), inv.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.encounters.encounters[enc.ID].Status; got != encounter.StatusCompleted {
		t.Errorf("encounter not reverted to completed, got %s", got)
	}
	if _, err := f.invoices.GetInvoice(context.Background(), inv.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("invoice still present after delete")
	}

	// The encounter can be invoiced again.
	if _, err := f.orch.CreateInvoiceForEncounter(context.Background(), enc.ID, &invoice.Invoice{}, []ItemRequest{
		{BillingCodeID: &f.officeCode},
	}); err != nil {
		t.Errorf("re-invoicing after delete failed: %v", err)
	}
}

func TestDeleteInvoice_LeavesNonBilledEncounterAlone(t *testing.T) {
	enc := completedEncounter()
	enc.Status = encounter.StatusInProgress
	f := newFixture(enc)

	// A direct invoice can reference an encounter that was never billed.
	inv := &invoice.Invoice{PatientID: enc.PatientID, EncounterID: &enc.ID}
	if err := f.invoices.CreateWithItems(context.Background(), inv, []*invoice.InvoiceItem{
		{Description: "Removal of impacted earwax", Quantity: 1, UnitPrice: 85.00},
	}); err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	if err := f.orch.DeleteInvoice(context.Background(), inv.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.encounters.encounters[enc.ID].Status; got != encounter.StatusInProgress {
		t.Errorf("encounter status changed by invoice delete: got %s, want %s", got, encounter.StatusInProgress)
	}
	if _, err := f.invoices.GetInvoice(context.Background(), inv.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("invoice still present after delete")
	}
}

func TestDeleteInvoice_PaidIsImmutable(t *testing.T) {
	enc := completedEncounter()
	f := newFixture(enc)

	inv, err := f.orch.CreateInvoiceForEncounter(context.Background(), enc.ID, &invoice.Invoice{}, []ItemRequest{
		{BillingCodeID: &f.officeCode},
	})
	if err != nil {
		t.Fatalf("invoicing failed: %v", err)
	}
	f.invoices.invoices[inv.ID].Status = invoice.StatusPaid

	err = f.orch.DeleteInvoice(context.Background(), inv.ID)
	if !errors.Is(err, apperror.ErrImmutableState) {
		t.Errorf("expected immutable state error, got %v", err)
	}
	if got := f.encounters.encounters[enc.ID].Status; got != encounter.StatusBilled {
		t.Errorf("encounter reverted despite rejected delete: %s", got)
	}
}

func TestBillableEncounters(t *testing.T) {
	billable := completedEncounter()
	invoiced := completedEncounter()
	inProgress := completedEncounter()
	inProgress.Status = encounter.StatusInProgress
	f := newFixture(billable, invoiced, inProgress)

	if _, err := f.orch.CreateInvoiceForEncounter(context.Background(), invoiced.ID, &invoice.Invoice{}, []ItemRequest{
		{BillingCodeID: &f.officeCode},
	}); err != nil {
		t.Fatalf("invoicing failed: %v", err)
	}

	got, total, err := f.orch.BillableEncounters(context.Background(), 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(got) != 1 {
		t.Fatalf("expected exactly 1 billable encounter, got %d", len(got))
	}
	if got[0].ID != billable.ID {
		t.Errorf("wrong encounter listed as billable")
	}
}
