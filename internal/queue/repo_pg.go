package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const tokenColumns = `id, token_number, patient_id, doctor_id, appointment_id,
	priority, status, estimated_wait_minutes, created_at, called_at, started_at, completed_at`

func (r *repoPG) Issue(ctx context.Context, t *Token) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Serialize numbering per doctor for the duration of the transaction so
	// concurrent issues cannot observe the same max token number.
	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, t.DoctorID)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(token_number), 0) + 1
		FROM queue_token
		WHERE doctor_id = $1 AND created_at::date = CURRENT_DATE`,
		t.DoctorID,
	).Scan(&t.TokenNumber)
	if err != nil {
		return err
	}

	t.ID = uuid.New()
	t.Status = StatusWaiting

	_, err = tx.Exec(ctx, `
		INSERT INTO queue_token (
			id, token_number, patient_id, doctor_id, appointment_id,
			priority, status, estimated_wait_minutes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.TokenNumber, t.PatientID, t.DoctorID, t.AppointmentID,
		t.Priority, t.Status, t.EstimatedWaitMinutes,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveTokenExists
		}
		return err
	}

	err = tx.QueryRow(ctx, `SELECT created_at FROM queue_token WHERE id = $1`, t.ID).Scan(&t.CreatedAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Token, error) {
	return r.scanToken(r.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM queue_token WHERE id = $1`, id))
}

func (r *repoPG) ActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Token, error) {
	t, err := r.scanToken(r.pool.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM queue_token
		WHERE patient_id = $1 AND status IN ('waiting', 'called', 'in_progress')
		ORDER BY created_at DESC
		LIMIT 1`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotQueued
	}
	return t, err
}

func (r *repoPG) ActiveByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Token, error) {
	t, err := r.scanToken(r.pool.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM queue_token
		WHERE appointment_id = $1 AND status IN ('waiting', 'called', 'in_progress')
		LIMIT 1`, appointmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotQueued
	}
	return t, err
}

func (r *repoPG) UpdateStatus(ctx context.Context, t *Token) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE queue_token SET
			status = $2, called_at = $3, started_at = $4, completed_at = $5
		WHERE id = $1`,
		t.ID, t.Status, t.CalledAt, t.StartedAt, t.CompletedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) ListWaiting(ctx context.Context, doctorID uuid.UUID) ([]*Token, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+tokenColumns+`
		FROM queue_token
		WHERE doctor_id = $1 AND status = 'waiting'
		ORDER BY priority DESC, created_at ASC`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*Token
	for rows.Next() {
		t, err := r.scanTokenRow(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *repoPG) ListActive(ctx context.Context, doctorID uuid.UUID) ([]*AdminEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.token_number, t.patient_id,
			COALESCE(p.first_name, ''), COALESCE(p.last_name, ''),
			t.status, t.estimated_wait_minutes, t.created_at
		FROM queue_token t
		LEFT JOIN patient p ON p.id = t.patient_id
		WHERE t.doctor_id = $1 AND t.status IN ('waiting', 'called', 'in_progress')
		ORDER BY
			CASE t.status WHEN 'in_progress' THEN 0 WHEN 'called' THEN 1 ELSE 2 END,
			t.priority DESC, t.created_at ASC`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*AdminEntry
	for rows.Next() {
		var e AdminEntry
		err := rows.Scan(&e.ID, &e.TokenNumber, &e.PatientID,
			&e.Patient.FirstName, &e.Patient.LastName,
			&e.Status, &e.EstimatedWaitTime, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *repoPG) SaveWaitTimes(ctx context.Context, tokens []*Token) error {
	if len(tokens) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range tokens {
		batch.Queue(`UPDATE queue_token SET estimated_wait_minutes = $2 WHERE id = $1`,
			t.ID, t.EstimatedWaitMinutes)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range tokens {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save wait times: %w", err)
		}
	}
	return nil
}

func (r *repoPG) scanToken(row pgx.Row) (*Token, error) {
	var t Token
	err := row.Scan(
		&t.ID, &t.TokenNumber, &t.PatientID, &t.DoctorID, &t.AppointmentID,
		&t.Priority, &t.Status, &t.EstimatedWaitMinutes,
		&t.CreatedAt, &t.CalledAt, &t.StartedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) scanTokenRow(rows pgx.Rows) (*Token, error) {
	var t Token
	err := rows.Scan(
		&t.ID, &t.TokenNumber, &t.PatientID, &t.DoctorID, &t.AppointmentID,
		&t.Priority, &t.Status, &t.EstimatedWaitMinutes,
		&t.CreatedAt, &t.CalledAt, &t.StartedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
