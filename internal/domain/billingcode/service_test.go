package billingcode

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/entclinic/clinic/internal/platform/apperror"
)

// -- Mock Repository --

type mockRepo struct {
	codes      map[uuid.UUID]*BillingCode
	references map[uuid.UUID]int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		codes:      make(map[uuid.UUID]*BillingCode),
		references: make(map[uuid.UUID]int64),
	}
}

func (m *mockRepo) Create(_ context.Context, bc *BillingCode) error {
	bc.ID = uuid.New()
	bc.CreatedAt = time.Now()
	bc.UpdatedAt = time.Now()
	m.codes[bc.ID] = bc
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*BillingCode, error) {
	bc, ok := m.codes[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return bc, nil
}

func (m *mockRepo) GetByCode(_ context.Context, code string) (*BillingCode, error) {
	for _, bc := range m.codes {
		if bc.Code == code {
			return bc, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockRepo) Update(_ context.Context, bc *BillingCode) error {
	m.codes[bc.ID] = bc
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.codes, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, activeOnly bool, limit, offset int) ([]*BillingCode, int, error) {
	var result []*BillingCode
	for _, bc := range m.codes {
		if activeOnly && !bc.Active {
			continue
		}
		result = append(result, bc)
	}
	return result, len(result), nil
}

func (m *mockRepo) CountInvoiceReferences(_ context.Context, id uuid.UUID) (int64, error) {
	return m.references[id], nil
}

// -- Tests --

func price(v float64) *float64 { return &v }

func TestCreateBillingCode(t *testing.T) {
	svc := NewService(newMockRepo())

	bc := &BillingCode{Code: "99213", Description: "Office visit, established patient (Level 3)", Type: TypeCPT, DefaultPrice: price(95.00), Active: true}
	if err := svc.CreateBillingCode(context.Background(), bc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bc.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
}

func TestCreateBillingCode_Validation(t *testing.T) {
	svc := NewService(newMockRepo())

	tests := []struct {
		name string
		bc   *BillingCode
	}{
		{"missing code", &BillingCode{Description: "x", Type: TypeCPT}},
		{"missing description", &BillingCode{Code: "99213", Type: TypeCPT}},
		{"bad type", &BillingCode{Code: "99213", Description: "x", Type: "icd9"}},
		{"negative price", &BillingCode{Code: "99213", Description: "x", Type: TypeCPT, DefaultPrice: price(-5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CreateBillingCode(context.Background(), tt.bc)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateBillingCode_DuplicateCode(t *testing.T) {
	svc := NewService(newMockRepo())

	first := &BillingCode{Code: "69210", Description: "Removal of impacted earwax", Type: TypeCPT, DefaultPrice: price(85.00)}
	svc.CreateBillingCode(context.Background(), first)

	dup := &BillingCode{Code: "69210", Description: "duplicate", Type: TypeCPT}
	err := svc.CreateBillingCode(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("expected conflict error, got %v", err)
	}
}

func TestCreateBillingCode_NilPriceAllowed(t *testing.T) {
	svc := NewService(newMockRepo())

	// Diagnostic codes carry no price of their own.
	bc := &BillingCode{Code: "H66.9", Description: "Otitis media, unspecified", Type: TypeDiagnostic}
	if err := svc.CreateBillingCode(context.Background(), bc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteBillingCode_RefusedWhenReferenced(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	bc := &BillingCode{Code: "99213", Description: "Office visit", Type: TypeCPT, DefaultPrice: price(95.00)}
	svc.CreateBillingCode(context.Background(), bc)
	repo.references[bc.ID] = 3

	err := svc.DeleteBillingCode(context.Background(), bc.ID)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("expected conflict error, got %v", err)
	}
	if _, err := svc.GetBillingCode(context.Background(), bc.ID); err != nil {
		t.Error("code must survive a refused delete")
	}
}

func TestDeleteBillingCode_Unreferenced(t *testing.T) {
	svc := NewService(newMockRepo())

	bc := &BillingCode{Code: "99000", Description: "Specimen handling", Type: TypeOther, DefaultPrice: price(15.00)}
	svc.CreateBillingCode(context.Background(), bc)

	if err := svc.DeleteBillingCode(context.Background(), bc.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetBillingCode(context.Background(), bc.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}
