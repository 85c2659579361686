package patient

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

const patientCols = `id, clinic_id, first_name, last_name, date_of_birth, gender,
	email, phone, address, city, state, postal_code,
	emergency_contact_name, emergency_contact_phone,
	medical_history, allergies, current_medications,
	insurance_provider, insurance_policy_number, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (
			id, clinic_id, first_name, last_name, date_of_birth, gender,
			email, phone, address, city, state, postal_code,
			emergency_contact_name, emergency_contact_phone,
			medical_history, allergies, current_medications,
			insurance_provider, insurance_policy_number
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,
			$11,$12,$13,$14,$15,$16,$17,$18,$19
		)`,
		p.ID, p.ClinicID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.Email, p.Phone, p.Address, p.City, p.State, p.PostalCode,
		p.EmergencyContactName, p.EmergencyContactPhone,
		p.MedicalHistory, p.Allergies, p.CurrentMedications,
		p.InsuranceProvider, p.InsurancePolicyNumber,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) GetByClinicID(ctx context.Context, clinicID string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE clinic_id = $1`, clinicID))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET
			first_name=$2, last_name=$3, date_of_birth=$4, gender=$5,
			email=$6, phone=$7, address=$8, city=$9, state=$10, postal_code=$11,
			emergency_contact_name=$12, emergency_contact_phone=$13,
			medical_history=$14, allergies=$15, current_medications=$16,
			insurance_provider=$17, insurance_policy_number=$18, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.Email, p.Phone, p.Address, p.City, p.State, p.PostalCode,
		p.EmergencyContactName, p.EmergencyContactPhone,
		p.MedicalHistory, p.Allergies, p.CurrentMedications,
		p.InsuranceProvider, p.InsurancePolicyNumber,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	return err
}

func (r *repoPG) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients ORDER BY last_name, first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectPatients(rows, total)
}

func (r *repoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	pattern := "%" + query + "%"
	where := `WHERE first_name ILIKE $1 OR last_name ILIKE $1 OR clinic_id ILIKE $1`
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients `+where, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients `+where+` ORDER BY last_name, first_name LIMIT $2 OFFSET $3`,
		pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectPatients(rows, total)
}

func (r *repoPG) NextClinicSequence(ctx context.Context) (int64, error) {
	var next int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT nextval('patient_number_seq')`).Scan(&next)
	return next, err
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.ClinicID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender,
		&p.Email, &p.Phone, &p.Address, &p.City, &p.State, &p.PostalCode,
		&p.EmergencyContactName, &p.EmergencyContactPhone,
		&p.MedicalHistory, &p.Allergies, &p.CurrentMedications,
		&p.InsuranceProvider, &p.InsurancePolicyNumber, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPatients(rows pgx.Rows, total int) ([]*Patient, int, error) {
	var patients []*Patient
	for rows.Next() {
		var p Patient
		err := rows.Scan(
			&p.ID, &p.ClinicID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender,
			&p.Email, &p.Phone, &p.Address, &p.City, &p.State, &p.PostalCode,
			&p.EmergencyContactName, &p.EmergencyContactPhone,
			&p.MedicalHistory, &p.Allergies, &p.CurrentMedications,
			&p.InsuranceProvider, &p.InsurancePolicyNumber, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, &p)
	}
	return patients, total, nil
}
