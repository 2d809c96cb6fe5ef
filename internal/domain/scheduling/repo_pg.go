package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const appointmentColumns = `id, patient_id, doctor_id, scheduled_at, reason,
	status, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment (
			id, patient_id, doctor_id, scheduled_at, reason, status
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.PatientID, a.DoctorID, a.ScheduledAt, a.Reason, a.Status,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(r.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointment WHERE id = $1`, id))
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE appointment SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, day time.Time, limit, offset int) ([]*Appointment, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE doctor_id = $1 AND scheduled_at::date = $2::date`,
		doctorID, day).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointment
		WHERE doctor_id = $1 AND scheduled_at::date = $2::date
		ORDER BY scheduled_at LIMIT $3 OFFSET $4`,
		doctorID, day, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	return r.collect(rows, total)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE patient_id = $1`, patientID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointment
		WHERE patient_id = $1
		ORDER BY scheduled_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	return r.collect(rows, total)
}

func (r *repoPG) collect(rows pgx.Rows, total int) ([]*Appointment, int, error) {
	var appts []*Appointment
	for rows.Next() {
		var a Appointment
		err := rows.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt,
			&a.Reason, &a.Status, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, &a)
	}
	return appts, total, rows.Err()
}

func (r *repoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt,
		&a.Reason, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
