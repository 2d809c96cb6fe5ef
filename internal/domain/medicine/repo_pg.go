package medicine

import (
	"context"
	"fmt"
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

const medicineColumns = `id, name, batch, quantity, reorder_level, expiry_date, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, m *Medicine) error {
	m.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO medicine (
			id, name, batch, quantity, reorder_level, expiry_date
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.Name, m.Batch, m.Quantity, m.ReorderLevel, m.ExpiryDate,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return scanMedicine(r.pool.QueryRow(ctx,
		`SELECT `+medicineColumns+` FROM medicine WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, m *Medicine) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE medicine SET
			name = $2, batch = $3, quantity = $4, reorder_level = $5,
			expiry_date = $6, updated_at = NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.Batch, m.Quantity, m.ReorderLevel, m.ExpiryDate,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM medicine WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Medicine, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM medicine`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+medicineColumns+` FROM medicine ORDER BY name, batch LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	meds, err := collectMedicines(rows)
	return meds, total, err
}

func (r *repoPG) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*Medicine, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE medicine SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING `+medicineColumns, id, delta)
	m, err := scanMedicine(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("medicine not found or stock would go negative")
	}
	return m, err
}

func (r *repoPG) ListLowStock(ctx context.Context) ([]*Medicine, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+medicineColumns+` FROM medicine WHERE quantity <= reorder_level ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMedicines(rows)
}

func (r *repoPG) ListExpiring(ctx context.Context, before time.Time) ([]*Medicine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+medicineColumns+`
		FROM medicine
		WHERE expiry_date IS NOT NULL AND expiry_date <= $1
		ORDER BY expiry_date`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMedicines(rows)
}

func scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.Name, &m.Batch, &m.Quantity, &m.ReorderLevel,
		&m.ExpiryDate, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMedicines(rows pgx.Rows) ([]*Medicine, error) {
	var meds []*Medicine
	for rows.Next() {
		var m Medicine
		err := rows.Scan(&m.ID, &m.Name, &m.Batch, &m.Quantity, &m.ReorderLevel,
			&m.ExpiryDate, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, err
		}
		meds = append(meds, &m)
	}
	return meds, rows.Err()
}
