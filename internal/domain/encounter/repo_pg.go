package encounter

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

const encCols = `id, patient_id, appointment_id, clinician_id, encounter_date,
	subjective, objective, assessment, plan,
	ear_exam_performed, ear_exam_notes,
	nasal_exam_performed, nasal_exam_notes,
	throat_exam_performed, throat_exam_notes,
	additional_notes, status, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, enc *Encounter) error {
	enc.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO encounters (
			id, patient_id, appointment_id, clinician_id, encounter_date,
			subjective, objective, assessment, plan,
			ear_exam_performed, ear_exam_notes,
			nasal_exam_performed, nasal_exam_notes,
			throat_exam_performed, throat_exam_notes,
			additional_notes, status
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,
			$10,$11,$12,$13,$14,$15,$16,$17
		)`,
		enc.ID, enc.PatientID, enc.AppointmentID, enc.ClinicianID, enc.EncounterDate,
		enc.Subjective, enc.Objective, enc.Assessment, enc.Plan,
		enc.EarExamPerformed, enc.EarExamNotes,
		enc.NasalExamPerformed, enc.NasalExamNotes,
		enc.ThroatExamPerformed, enc.ThroatExamNotes,
		enc.AdditionalNotes, enc.Status,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return scanEnc(r.conn(ctx).QueryRow(ctx, `SELECT `+encCols+` FROM encounters WHERE id = $1`, id))
}

func (r *repoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Encounter, error) {
	return scanEnc(r.conn(ctx).QueryRow(ctx,
		`SELECT `+encCols+` FROM encounters WHERE appointment_id = $1`, appointmentID))
}

func (r *repoPG) Update(ctx context.Context, enc *Encounter) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE encounters SET
			clinician_id=$2, encounter_date=$3,
			subjective=$4, objective=$5, assessment=$6, plan=$7,
			ear_exam_performed=$8, ear_exam_notes=$9,
			nasal_exam_performed=$10, nasal_exam_notes=$11,
			throat_exam_performed=$12, throat_exam_notes=$13,
			additional_notes=$14, status=$15, updated_at=NOW()
		WHERE id = $1`,
		enc.ID, enc.ClinicianID, enc.EncounterDate,
		enc.Subjective, enc.Objective, enc.Assessment, enc.Plan,
		enc.EarExamPerformed, enc.EarExamNotes,
		enc.NasalExamPerformed, enc.NasalExamNotes,
		enc.ThroatExamPerformed, enc.ThroatExamNotes,
		enc.AdditionalNotes, enc.Status,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM encounters WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Encounter, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM encounters`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+encCols+` FROM encounters ORDER BY encounter_date DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectEncs(rows, total)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM encounters WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+encCols+` FROM encounters WHERE patient_id = $1 ORDER BY encounter_date DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectEncs(rows, total)
}

func (r *repoPG) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Encounter, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM encounters WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+encCols+` FROM encounters WHERE status = $1 ORDER BY encounter_date DESC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectEncs(rows, total)
}

const billableWhere = ` FROM encounters
	WHERE status = 'completed'
	AND NOT EXISTS (SELECT 1 FROM invoices WHERE invoices.encounter_id = encounters.id)`

func (r *repoPG) ListBillable(ctx context.Context, limit, offset int) ([]*Encounter, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+billableWhere).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+encCols+billableWhere+` ORDER BY encounter_date DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectEncs(rows, total)
}

func scanEnc(row pgx.Row) (*Encounter, error) {
	var e Encounter
	err := row.Scan(
		&e.ID, &e.PatientID, &e.AppointmentID, &e.ClinicianID, &e.EncounterDate,
		&e.Subjective, &e.Objective, &e.Assessment, &e.Plan,
		&e.EarExamPerformed, &e.EarExamNotes,
		&e.NasalExamPerformed, &e.NasalExamNotes,
		&e.ThroatExamPerformed, &e.ThroatExamNotes,
		&e.AdditionalNotes, &e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEncs(rows pgx.Rows, total int) ([]*Encounter, int, error) {
	var encs []*Encounter
	for rows.Next() {
		var e Encounter
		err := rows.Scan(
			&e.ID, &e.PatientID, &e.AppointmentID, &e.ClinicianID, &e.EncounterDate,
			&e.Subjective, &e.Objective, &e.Assessment, &e.Plan,
			&e.EarExamPerformed, &e.EarExamNotes,
			&e.NasalExamPerformed, &e.NasalExamNotes,
			&e.ThroatExamPerformed, &e.ThroatExamNotes,
			&e.AdditionalNotes, &e.Status, &e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		encs = append(encs, &e)
	}
	return encs, total, nil
}
