package billingcode

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

const codeCols = `id, code, description, type, default_price, active, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, bc *BillingCode) error {
	bc.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO billing_codes (id, code, description, type, default_price, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		bc.ID, bc.Code, bc.Description, bc.Type, bc.DefaultPrice, bc.Active,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*BillingCode, error) {
	return scanCode(r.conn(ctx).QueryRow(ctx, `SELECT `+codeCols+` FROM billing_codes WHERE id = $1`, id))
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*BillingCode, error) {
	return scanCode(r.conn(ctx).QueryRow(ctx, `SELECT `+codeCols+` FROM billing_codes WHERE code = $1`, code))
}

func (r *repoPG) Update(ctx context.Context, bc *BillingCode) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE billing_codes SET
			code=$2, description=$3, type=$4, default_price=$5, active=$6, updated_at=NOW()
		WHERE id = $1`,
		bc.ID, bc.Code, bc.Description, bc.Type, bc.DefaultPrice, bc.Active,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM billing_codes WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*BillingCode, int, error) {
	where := ``
	if activeOnly {
		where = ` WHERE active`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM billing_codes`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+codeCols+` FROM billing_codes`+where+` ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var codes []*BillingCode
	for rows.Next() {
		var bc BillingCode
		if err := rows.Scan(&bc.ID, &bc.Code, &bc.Description, &bc.Type, &bc.DefaultPrice, &bc.Active, &bc.CreatedAt, &bc.UpdatedAt); err != nil {
			return nil, 0, err
		}
		codes = append(codes, &bc)
	}
	return codes, total, nil
}

func (r *repoPG) CountInvoiceReferences(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoice_items WHERE billing_code_id = $1`, id).Scan(&count)
	return count, err
}

func scanCode(row pgx.Row) (*BillingCode, error) {
	var bc BillingCode
	err := row.Scan(&bc.ID, &bc.Code, &bc.Description, &bc.Type, &bc.DefaultPrice, &bc.Active, &bc.CreatedAt, &bc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &bc, nil
}
