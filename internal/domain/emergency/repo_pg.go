package emergency

import (
	"context"

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

const requestColumns = `id, patient_id, doctor_id, complaint, severity, token_id, created_at`

func (r *repoPG) Create(ctx context.Context, req *Request) error {
	req.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO emergency_request (
			id, patient_id, doctor_id, complaint, severity, token_id
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		req.ID, req.PatientID, req.DoctorID, req.Complaint, req.Severity, req.TokenID,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	var req Request
	err := r.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM emergency_request WHERE id = $1`, id).
		Scan(&req.ID, &req.PatientID, &req.DoctorID, &req.Complaint,
			&req.Severity, &req.TokenID, &req.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM emergency_request WHERE doctor_id = $1`, doctorID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM emergency_request
		WHERE doctor_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reqs []*Request
	for rows.Next() {
		req, err := scanRequestRow(rows)
		if err != nil {
			return nil, 0, err
		}
		reqs = append(reqs, req)
	}
	return reqs, total, rows.Err()
}

func scanRequestRow(rows pgx.Rows) (*Request, error) {
	var req Request
	err := rows.Scan(&req.ID, &req.PatientID, &req.DoctorID, &req.Complaint,
		&req.Severity, &req.TokenID, &req.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
