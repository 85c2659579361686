package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/entclinic/clinic/internal/platform/apperror"
)

// -- Mock Repository --

type mockRepo struct {
	invoices map[uuid.UUID]*Invoice
	items    map[uuid.UUID]*InvoiceItem
	payments map[uuid.UUID]*Payment
	seq      int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		invoices: make(map[uuid.UUID]*Invoice),
		items:    make(map[uuid.UUID]*InvoiceItem),
		payments: make(map[uuid.UUID]*Payment),
	}
}

func (m *mockRepo) Create(_ context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	stored := *inv
	m.invoices[inv.ID] = &stored
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	copied := *inv
	return &copied, nil
}

func (m *mockRepo) GetByNumber(_ context.Context, number string) (*Invoice, error) {
	for _, inv := range m.invoices {
		if inv.InvoiceNumber == number {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockRepo) Update(_ context.Context, inv *Invoice) error {
	stored := *inv
	m.invoices[inv.ID] = &stored
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.invoices, id)
	for pid, p := range m.payments {
		if p.InvoiceID == id {
			delete(m.payments, pid)
		}
	}
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Invoice, int, error) {
	var result []*Invoice
	for _, inv := range m.invoices {
		result = append(result, inv)
	}
	return result, len(result), nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	var result []*Invoice
	for _, inv := range m.invoices {
		if inv.PatientID == patientID {
			result = append(result, inv)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) ListByStatus(_ context.Context, status string, limit, offset int) ([]*Invoice, int, error) {
	var result []*Invoice
	for _, inv := range m.invoices {
		if inv.Status == status {
			result = append(result, inv)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) ExistsForEncounter(_ context.Context, encounterID uuid.UUID) (bool, error) {
	for _, inv := range m.invoices {
		if inv.EncounterID != nil && *inv.EncounterID == encounterID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) NextInvoiceSequence(_ context.Context) (int64, error) {
	m.seq++
	return m.seq, nil
}

func (m *mockRepo) ListItems(_ context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	var result []*InvoiceItem
	for _, it := range m.items {
		if it.InvoiceID == invoiceID {
			copied := *it
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockRepo) CreateItem(_ context.Context, item *InvoiceItem) error {
	item.ID = uuid.New()
	stored := *item
	m.items[item.ID] = &stored
	return nil
}

func (m *mockRepo) UpdateItem(_ context.Context, item *InvoiceItem) error {
	if _, ok := m.items[item.ID]; !ok {
		return fmt.Errorf("item not found")
	}
	stored := *item
	m.items[item.ID] = &stored
	return nil
}

func (m *mockRepo) DeleteItem(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockRepo) DeleteItemsByInvoice(_ context.Context, invoiceID uuid.UUID) error {
	for id, it := range m.items {
		if it.InvoiceID == invoiceID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *mockRepo) ListPayments(_ context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	var result []*Payment
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID {
			copied := *p
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockRepo) CreatePayment(_ context.Context, p *Payment) error {
	p.ID = uuid.New()
	stored := *p
	m.payments[p.ID] = &stored
	return nil
}

type allPatients struct{}

func (allPatients) Exists(context.Context, uuid.UUID) (bool, error) { return true, nil }

// billedSpy records which encounters were marked billed.
type billedSpy struct {
	marked []uuid.UUID
}

func (s *billedSpy) MarkAsBilled(_ context.Context, id uuid.UUID) error {
	s.marked = append(s.marked, id)
	return nil
}

func passthroughTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// -- Tests --

var testNow = time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)

func newTestService(repo *mockRepo) *Service {
	return newTestServiceWithSpy(repo, &billedSpy{})
}

func newTestServiceWithSpy(repo *mockRepo, spy *billedSpy) *Service {
	svc := NewService(repo, allPatients{}, spy, passthroughTx)
	svc.now = func() time.Time { return testNow }
	return svc
}

func officeVisitItems() []*InvoiceItem {
	return []*InvoiceItem{
		{Description: "Office visit, established patient (Level 3)", Quantity: 1, UnitPrice: 95.00},
		{Description: "Removal of impacted earwax", Quantity: 1, UnitPrice: 85.00},
	}
}

func TestCreateInvoice(t *testing.T) {
	svc := newTestService(newMockRepo())

	inv := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New()}
	if err := svc.CreateInvoice(context.Background(), inv, officeVisitItems()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Status != StatusDraft {
		t.Errorf("expected draft, got %s", inv.Status)
	}
	if inv.TotalAmount != 180.00 || inv.AmountDue != 180.00 {
		t.Errorf("expected total/due 180.00, got %.2f/%.2f", inv.TotalAmount, inv.AmountDue)
	}
	if !strings.HasPrefix(inv.InvoiceNumber, "ENT-INV-202609-") {
		t.Errorf("unexpected invoice number %s", inv.InvoiceNumber)
	}
	if !strings.HasSuffix(inv.InvoiceNumber, "00001") {
		t.Errorf("expected first suffix 00001, got %s", inv.InvoiceNumber)
	}
}

func TestCreateInvoice_GlobalSequence(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	first := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New()}
	second := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New()}
	svc.CreateInvoice(context.Background(), first, officeVisitItems())
	svc.CreateInvoice(context.Background(), second, officeVisitItems())

	if !strings.HasSuffix(second.InvoiceNumber, "00002") {
		t.Errorf("suffix is a single global counter; got %s", second.InvoiceNumber)
	}
}

func TestCreateInvoice_CallerStatus(t *testing.T) {
	svc := newTestService(newMockRepo())

	inv := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New(), Status: StatusSent}
	if err := svc.CreateInvoice(context.Background(), inv, officeVisitItems()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Status != StatusSent {
		t.Errorf("caller status not honored: expected sent, got %s", inv.Status)
	}
}

func TestCreateInvoice_InvalidStatus(t *testing.T) {
	svc := newTestService(newMockRepo())

	inv := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New(), Status: "archived"}
	err := svc.CreateInvoice(context.Background(), inv, officeVisitItems())
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreateInvoice_MarksLinkedEncounterBilled(t *testing.T) {
	spy := &billedSpy{}
	svc := newTestServiceWithSpy(newMockRepo(), spy)

	encID := uuid.New()
	inv := &Invoice{PatientID: uuid.New(), EncounterID: &encID, CreatedBy: uuid.New()}
	if err := svc.CreateInvoice(context.Background(), inv, officeVisitItems()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spy.marked) != 1 || spy.marked[0] != encID {
		t.Errorf("expected encounter %s marked billed, got %v", encID, spy.marked)
	}
}

func TestCreateInvoice_NoEncounterNoSideEffect(t *testing.T) {
	spy := &billedSpy{}
	svc := newTestServiceWithSpy(newMockRepo(), spy)

	inv := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New()}
	if err := svc.CreateInvoice(context.Background(), inv, officeVisitItems()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spy.marked) != 0 {
		t.Errorf("expected no encounter side effect, got %v", spy.marked)
	}
}

func TestCreateInvoice_DueDateBeforeInvoiceDate(t *testing.T) {
	svc := newTestService(newMockRepo())

	inv := &Invoice{
		PatientID:   uuid.New(),
		CreatedBy:   uuid.New(),
		InvoiceDate: testNow,
		DueDate:     testNow.AddDate(0, 0, -5),
	}
	err := svc.CreateInvoice(context.Background(), inv, officeVisitItems())
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreateInvoice_ItemValidation(t *testing.T) {
	svc := newTestService(newMockRepo())

	tests := []struct {
		name string
		item *InvoiceItem
	}{
		{"zero quantity", &InvoiceItem{Description: "x", Quantity: 0, UnitPrice: 10}},
		{"negative price", &InvoiceItem{Description: "x", Quantity: 1, UnitPrice: -1}},
		{"blank description", &InvoiceItem{Quantity: 1, UnitPrice: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New()}
			err := svc.CreateInvoice(context.Background(), inv, []*InvoiceItem{tt.item})
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAddPayment_FullPaysInvoice(t *testing.T) {
	svc := newTestService(newMockRepo())

	inv := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New()}
	svc.CreateInvoice(context.Background(), inv, officeVisitItems())

	p := &Payment{Amount: 180.00, PaymentMethod: "card", RecordedBy: uuid.New()}
	if err := svc.AddPayment(context.Background(), inv.ID, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := svc.GetInvoice(context.Background(), inv.ID)
	if got.Status != StatusPaid {
		t.Errorf("expected paid, got %s", got.Status)
	}
	if got.AmountDue != 0.00 {
		t.Errorf("expected due 0.00, got %.2f", got.AmountDue)
	}
}

func TestAddPayment_PartialPayment(t *testing.T) {
	svc := newTestService(newMockRepo())

	inv := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New()}
	svc.CreateInvoice(context.Background(), inv, officeVisitItems())

	p := &Payment{Amount: 90.00, PaymentMethod: "cash", RecordedBy: uuid.New()}
	if err := svc.AddPayment(context.Background(), inv.ID, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := svc.GetInvoice(context.Background(), inv.ID)
	if got.Status != StatusPartiallyPaid {
		t.Errorf("expected partially_paid, got %s", got.Status)
	}
	if got.AmountDue != 90.00 {
		t.Errorf("expected due 90.00, got %.2f", got.AmountDue)
	}
}

func TestAddPayment_Overpayment(t *testing.T) {
	svc := newTestService(newMockRepo())

	inv := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New()}
	svc.CreateInvoice(context.Background(), inv, officeVisitItems())

	p := &Payment{Amount: 200.00, PaymentMethod: "card", RecordedBy: uuid.New()}
	if err := svc.AddPayment(context.Background(), inv.ID, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := svc.GetInvoice(context.Background(), inv.ID)
	if got.Status != StatusPaid {
		t.Errorf("expected paid, got %s", got.Status)
	}
	if got.AmountDue != -20.00 {
		t.Errorf("amount_due is not clamped: expected -20.00, got %.2f", got.AmountDue)
	}
}

func TestAddPayment_NonPositiveAmount(t *testing.T) {
	svc := newTestService(newMockRepo())

	inv := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New()}
	svc.CreateInvoice(context.Background(), inv, officeVisitItems())

	for _, amount := range []float64{0, -50} {
		p := &Payment{Amount: amount, PaymentMethod: "cash", RecordedBy: uuid.New()}
		err := svc.AddPayment(context.Background(), inv.ID, p)
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("amount %.2f: expected validation error, got %v", amount, err)
		}
	}
}

func TestPaidInvoiceIsImmutable(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	inv := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New()}
	svc.CreateInvoice(context.Background(), inv, officeVisitItems())
	svc.AddPayment(context.Background(), inv.ID, &Payment{Amount: 180.00, PaymentMethod: "card", RecordedBy: uuid.New()})

	before, _ := svc.GetInvoice(context.Background(), inv.ID)
	itemsBefore, _ := repo.ListItems(context.Background(), inv.ID)

	t.Run("add payment", func(t *testing.T) {
		err := svc.AddPayment(context.Background(), inv.ID, &Payment{Amount: 10, PaymentMethod: "cash", RecordedBy: uuid.New()})
		if !errors.Is(err, apperror.ErrImmutableState) {
			t.Errorf("expected immutable state error, got %v", err)
		}
	})

	t.Run("update", func(t *testing.T) {
		_, err := svc.UpdateInvoice(context.Background(), inv.ID, &Invoice{Status: StatusSent}, nil)
		if !errors.Is(err, apperror.ErrImmutableState) {
			t.Errorf("expected immutable state error, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		err := svc.DeleteInvoice(context.Background(), inv.ID)
		if !errors.Is(err, apperror.ErrImmutableState) {
			t.Errorf("expected immutable state error, got %v", err)
		}
	})

	// No side effects from any rejected mutation.
	after, _ := svc.GetInvoice(context.Background(), inv.ID)
	if *after != *before {
		t.Errorf("invoice changed by rejected mutation: %+v vs %+v", before, after)
	}
	itemsAfter, _ := repo.ListItems(context.Background(), inv.ID)
	if len(itemsAfter) != len(itemsBefore) {
		t.Errorf("item count changed: %d vs %d", len(itemsBefore), len(itemsAfter))
	}
}

func TestUpdateInvoice_ReplaceItemsDiff(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	inv := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New()}
	svc.CreateInvoice(context.Background(), inv, officeVisitItems())

	current, _ := repo.ListItems(context.Background(), inv.ID)
	if len(current) != 2 {
		t.Fatalf("expected 2 items, got %d", len(current))
	}
	var keep *InvoiceItem
	for _, it := range current {
		if it.UnitPrice == 95.00 {
			keep = it
		}
	}

	// Keep one item with a new quantity, drop the other, add a new one.
	desired := []*InvoiceItem{
		{ID: keep.ID, Description: keep.Description, Quantity: 2, UnitPrice: 95.00},
		{Description: "Nasal endoscopy, diagnostic", Quantity: 1, UnitPrice: 225.00},
	}
	updated, err := svc.UpdateInvoice(context.Background(), inv.ID, &Invoice{}, desired)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items, _ := repo.ListItems(context.Background(), inv.ID)
	if len(items) != 2 {
		t.Fatalf("expected 2 items after replace, got %d", len(items))
	}
	if updated.TotalAmount != 415.00 {
		t.Errorf("expected total 415.00, got %.2f", updated.TotalAmount)
	}
	for _, it := range items {
		if it.TotalPrice != float64(it.Quantity)*it.UnitPrice {
			t.Errorf("total_price not derived server-side: %+v", it)
		}
	}
}

func TestUpdateInvoice_TotalPriceNeverTrusted(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	inv := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New()}
	svc.CreateInvoice(context.Background(), inv, []*InvoiceItem{
		{Description: "Specimen handling", Quantity: 1, UnitPrice: 15.00},
	})

	desired := []*InvoiceItem{
		{Description: "Office visit", Quantity: 1, UnitPrice: 95.00, TotalPrice: 1.00},
	}
	updated, err := svc.UpdateInvoice(context.Background(), inv.ID, &Invoice{}, desired)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.TotalAmount != 95.00 {
		t.Errorf("client-sent total_price must be ignored; got %.2f", updated.TotalAmount)
	}
}

func TestRecompute_OverdueOnUnrelatedEdit(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	inv := &Invoice{
		PatientID:   uuid.New(),
		CreatedBy:   uuid.New(),
		InvoiceDate: testNow.AddDate(0, 0, -40),
		DueDate:     testNow.AddDate(0, 0, -1),
	}
	svc.CreateInvoice(context.Background(), inv, officeVisitItems())

	// Simulate an explicitly sent invoice that lapsed.
	stored, _ := repo.GetByID(context.Background(), inv.ID)
	stored.Status = StatusSent
	repo.Update(context.Background(), stored)

	got, err := svc.Recompute(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusOverdue {
		t.Errorf("expected overdue, got %s", got.Status)
	}
}

func TestRecompute_Idempotent(t *testing.T) {
	svc := newTestService(newMockRepo())

	inv := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New()}
	svc.CreateInvoice(context.Background(), inv, officeVisitItems())
	svc.AddPayment(context.Background(), inv.ID, &Payment{Amount: 90, PaymentMethod: "cash", RecordedBy: uuid.New()})

	first, err := svc.Recompute(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Recompute(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *first != *second {
		t.Errorf("recompute not idempotent: %+v vs %+v", first, second)
	}
}

func TestDeleteInvoice_RemovesItems(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	inv := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New()}
	svc.CreateInvoice(context.Background(), inv, officeVisitItems())

	if err := svc.DeleteInvoice(context.Background(), inv.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, _ := repo.ListItems(context.Background(), inv.ID)
	if len(items) != 0 {
		t.Errorf("expected items removed, got %d", len(items))
	}
	if _, err := svc.GetInvoice(context.Background(), inv.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestInvariants_AfterMixedMutations(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	inv := &Invoice{PatientID: uuid.New(), CreatedBy: uuid.New()}
	svc.CreateInvoice(context.Background(), inv, officeVisitItems())
	svc.AddPayment(context.Background(), inv.ID, &Payment{Amount: 30, PaymentMethod: "cash", RecordedBy: uuid.New()})
	svc.UpdateInvoice(context.Background(), inv.ID, &Invoice{}, []*InvoiceItem{
		{Description: "Laryngoscopy, flexible", Quantity: 1, UnitPrice: 210.00},
	})
	svc.AddPayment(context.Background(), inv.ID, &Payment{Amount: 45, PaymentMethod: "card", RecordedBy: uuid.New()})

	got, _ := svc.GetInvoice(context.Background(), inv.ID)
	items, _ := repo.ListItems(context.Background(), inv.ID)
	payments, _ := repo.ListPayments(context.Background(), inv.ID)

	var itemSum, paySum float64
	for _, it := range items {
		itemSum += it.TotalPrice
	}
	for _, p := range payments {
		paySum += p.Amount
	}
	if got.TotalAmount != itemSum {
		t.Errorf("total_amount %.2f != sum of items %.2f", got.TotalAmount, itemSum)
	}
	if got.AmountPaid != paySum {
		t.Errorf("amount_paid %.2f != sum of payments %.2f", got.AmountPaid, paySum)
	}
	if got.AmountDue != got.TotalAmount-got.AmountPaid {
		t.Errorf("amount_due %.2f != total - paid", got.AmountDue)
	}
}
