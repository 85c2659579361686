package billingcode

import (
	"time"

	"github.com/google/uuid"
)

// Billing code types: CPT procedure codes, ICD-10 diagnostic codes, and
// miscellaneous HCPCS-style codes.
const (
	TypeCPT        = "cpt"
	TypeDiagnostic = "diagnostic"
	TypeOther      = "other"
)

var validTypes = map[string]bool{
	TypeCPT:        true,
	TypeDiagnostic: true,
	TypeOther:      true,
}

// ValidType reports whether t is a member of the billing code type enum.
func ValidType(t string) bool { return validTypes[t] }

// BillingCode maps to the billing_codes table. DefaultPrice is nil for
// codes that carry no charge of their own (diagnostic codes). Invoice line
// items snapshot description and price at creation, so catalog edits never
// rewrite historical invoices.
type BillingCode struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Description  string    `db:"description" json:"description"`
	Type         string    `db:"type" json:"type"`
	DefaultPrice *float64  `db:"default_price" json:"default_price,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
