package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientColumns = `id, active, first_name, last_name, birth_date, gender,
	phone, email, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patient (
			id, active, first_name, last_name, birth_date, gender, phone, email
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Active, p.FirstName, p.LastName, p.BirthDate, p.Gender, p.Phone, p.Email,
	)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.pool.QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE patient SET
			active = $2, first_name = $3, last_name = $4, birth_date = $5,
			gender = $6, phone = $7, email = $8, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Active, p.FirstName, p.LastName, p.BirthDate, p.Gender, p.Phone, p.Email,
	)
	return err
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	return err
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+patientColumns+` FROM patient ORDER BY last_name, first_name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := r.scanPatientRow(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func (r *patientRepoPG) SearchByName(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	pattern := "%" + name + "%"
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM patient WHERE first_name ILIKE $1 OR last_name ILIKE $1`,
		pattern).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patient
		WHERE first_name ILIKE $1 OR last_name ILIKE $1
		ORDER BY last_name, first_name LIMIT $2 OFFSET $3`,
		pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := r.scanPatientRow(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Active, &p.FirstName, &p.LastName, &p.BirthDate,
		&p.Gender, &p.Phone, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) scanPatientRow(rows pgx.Rows) (*Patient, error) {
	var p Patient
	err := rows.Scan(&p.ID, &p.Active, &p.FirstName, &p.LastName, &p.BirthDate,
		&p.Gender, &p.Phone, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// -- Doctor Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

const doctorColumns = `id, active, first_name, last_name, specialty,
	consultation_room, phone, email, created_at, updated_at`

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctor (
			id, active, first_name, last_name, specialty, consultation_room, phone, email
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.Active, d.FirstName, d.LastName, d.Specialty, d.ConsultationRoom, d.Phone, d.Email,
	)
	return err
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return r.scanDoctor(r.pool.QueryRow(ctx,
		`SELECT `+doctorColumns+` FROM doctor WHERE id = $1`, id))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE doctor SET
			active = $2, first_name = $3, last_name = $4, specialty = $5,
			consultation_room = $6, phone = $7, email = $8, updated_at = NOW()
		WHERE id = $1`,
		d.ID, d.Active, d.FirstName, d.LastName, d.Specialty, d.ConsultationRoom, d.Phone, d.Email,
	)
	return err
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM doctor WHERE id = $1`, id)
	return err
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM doctor`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+doctorColumns+` FROM doctor ORDER BY last_name, first_name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var doctors []*Doctor
	for rows.Next() {
		d, err := r.scanDoctorRow(rows)
		if err != nil {
			return nil, 0, err
		}
		doctors = append(doctors, d)
	}
	return doctors, total, rows.Err()
}

func (r *doctorRepoPG) SearchByName(ctx context.Context, name string, limit, offset int) ([]*Doctor, int, error) {
	pattern := "%" + name + "%"
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor WHERE first_name ILIKE $1 OR last_name ILIKE $1`,
		pattern).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+doctorColumns+`
		FROM doctor
		WHERE first_name ILIKE $1 OR last_name ILIKE $1
		ORDER BY last_name, first_name LIMIT $2 OFFSET $3`,
		pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var doctors []*Doctor
	for rows.Next() {
		d, err := r.scanDoctorRow(rows)
		if err != nil {
			return nil, 0, err
		}
		doctors = append(doctors, d)
	}
	return doctors, total, rows.Err()
}

func (r *doctorRepoPG) scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Active, &d.FirstName, &d.LastName, &d.Specialty,
		&d.ConsultationRoom, &d.Phone, &d.Email, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepoPG) scanDoctorRow(rows pgx.Rows) (*Doctor, error) {
	var d Doctor
	err := rows.Scan(&d.ID, &d.Active, &d.FirstName, &d.LastName, &d.Specialty,
		&d.ConsultationRoom, &d.Phone, &d.Email, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
