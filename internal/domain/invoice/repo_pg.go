package invoice

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/entclinic/clinic/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const invCols = `id, invoice_number, patient_id, encounter_id, invoice_date, due_date,
	total_amount, amount_paid, amount_due, status, notes, created_by, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoices (
			id, invoice_number, patient_id, encounter_id, invoice_date, due_date,
			total_amount, amount_paid, amount_due, status, notes, created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		inv.ID, inv.InvoiceNumber, inv.PatientID, inv.EncounterID, inv.InvoiceDate, inv.DueDate,
		inv.TotalAmount, inv.AmountPaid, inv.AmountDue, inv.Status, inv.Notes, inv.CreatedBy,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invCols+` FROM invoices WHERE id = $1`, id))
}

func (r *repoPG) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invCols+` FROM invoices WHERE invoice_number = $1`, number))
}

func (r *repoPG) Update(ctx context.Context, inv *Invoice) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET
			invoice_date=$2, due_date=$3, total_amount=$4, amount_paid=$5,
			amount_due=$6, status=$7, notes=$8, updated_at=NOW()
		WHERE id = $1`,
		inv.ID, inv.InvoiceDate, inv.DueDate, inv.TotalAmount, inv.AmountPaid,
		inv.AmountDue, inv.Status, inv.Notes,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Invoice, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+invCols+` FROM invoices ORDER BY invoice_date DESC, invoice_number DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectInvoices(rows, total)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+invCols+` FROM invoices WHERE patient_id = $1 ORDER BY invoice_date DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectInvoices(rows, total)
}

func (r *repoPG) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Invoice, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+invCols+` FROM invoices WHERE status = $1 ORDER BY invoice_date DESC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectInvoices(rows, total)
}

func (r *repoPG) ExistsForEncounter(ctx context.Context, encounterID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE encounter_id = $1)`, encounterID).Scan(&exists)
	return exists, err
}

func (r *repoPG) NextInvoiceSequence(ctx context.Context) (int64, error) {
	var next int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&next)
	return next, err
}

// -- Line items --

const itemCols = `id, invoice_id, billing_code_id, description, quantity, unit_price, total_price, created_at, updated_at`

func (r *repoPG) ListItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM invoice_items WHERE invoice_id = $1 ORDER BY created_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.BillingCodeID, &it.Description,
			&it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, nil
}

func (r *repoPG) CreateItem(ctx context.Context, item *InvoiceItem) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoice_items (id, invoice_id, billing_code_id, description, quantity, unit_price, total_price)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		item.ID, item.InvoiceID, item.BillingCodeID, item.Description, item.Quantity, item.UnitPrice, item.TotalPrice,
	)
	return err
}

func (r *repoPG) UpdateItem(ctx context.Context, item *InvoiceItem) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoice_items SET
			billing_code_id=$2, description=$3, quantity=$4, unit_price=$5, total_price=$6, updated_at=NOW()
		WHERE id = $1`,
		item.ID, item.BillingCodeID, item.Description, item.Quantity, item.UnitPrice, item.TotalPrice,
	)
	return err
}

func (r *repoPG) DeleteItem(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM invoice_items WHERE id = $1`, id)
	return err
}

func (r *repoPG) DeleteItemsByInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID)
	return err
}

// -- Payments --

func (r *repoPG) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, amount, payment_date, payment_method, transaction_id, notes, recorded_by, created_at
		FROM payments WHERE invoice_id = $1 ORDER BY payment_date, created_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.PaymentDate, &p.PaymentMethod,
			&p.TransactionID, &p.Notes, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, &p)
	}
	return payments, nil
}

func (r *repoPG) CreatePayment(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payments (id, invoice_id, amount, payment_date, payment_method, transaction_id, notes, recorded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.InvoiceID, p.Amount, p.PaymentDate, p.PaymentMethod, p.TransactionID, p.Notes, p.RecordedBy,
	)
	return err
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.PatientID, &inv.EncounterID, &inv.InvoiceDate, &inv.DueDate,
		&inv.TotalAmount, &inv.AmountPaid, &inv.AmountDue, &inv.Status, &inv.Notes,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func collectInvoices(rows pgx.Rows, total int) ([]*Invoice, int, error) {
	var invoices []*Invoice
	for rows.Next() {
		var inv Invoice
		err := rows.Scan(
			&inv.ID, &inv.InvoiceNumber, &inv.PatientID, &inv.EncounterID, &inv.InvoiceDate, &inv.DueDate,
			&inv.TotalAmount, &inv.AmountPaid, &inv.AmountDue, &inv.Status, &inv.Notes,
			&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, &inv)
	}
	return invoices, total, nil
}
