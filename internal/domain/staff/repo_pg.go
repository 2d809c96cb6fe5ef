package staff

import (
	"context"
	"errors"
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

const checkinColumns = `id, staff_id, lat, lng, checked_in_at, checked_out_at`

func (r *repoPG) Create(ctx context.Context, c *Checkin) error {
	c.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO staff_checkin (id, staff_id, lat, lng)
		VALUES ($1, $2, $3, $4)
		RETURNING checked_in_at`,
		c.ID, c.StaffID, c.Lat, c.Lng,
	).Scan(&c.CheckedInAt)
	return err
}

func (r *repoPG) Open(ctx context.Context, staffID uuid.UUID) (*Checkin, error) {
	var c Checkin
	err := r.pool.QueryRow(ctx, `
		SELECT `+checkinColumns+`
		FROM staff_checkin
		WHERE staff_id = $1 AND checked_out_at IS NULL
		ORDER BY checked_in_at DESC
		LIMIT 1`, staffID).
		Scan(&c.ID, &c.StaffID, &c.Lat, &c.Lng, &c.CheckedInAt, &c.CheckedOutAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoOpenCheckin
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) Close(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE staff_checkin SET checked_out_at = $2 WHERE id = $1 AND checked_out_at IS NULL`,
		id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoOpenCheckin
	}
	return nil
}

func (r *repoPG) ListByStaff(ctx context.Context, staffID uuid.UUID, limit, offset int) ([]*Checkin, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM staff_checkin WHERE staff_id = $1`, staffID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+checkinColumns+`
		FROM staff_checkin
		WHERE staff_id = $1
		ORDER BY checked_in_at DESC LIMIT $2 OFFSET $3`,
		staffID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var checkins []*Checkin
	for rows.Next() {
		var c Checkin
		err := rows.Scan(&c.ID, &c.StaffID, &c.Lat, &c.Lng, &c.CheckedInAt, &c.CheckedOutAt)
		if err != nil {
			return nil, 0, err
		}
		checkins = append(checkins, &c)
	}
	return checkins, total, rows.Err()
}
