package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/errors"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Repository provides database operations for patients
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new patient repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const patientColumns = `
	id, dni, first_name, last_name, birth_date, gender, blood_type, allergies,
	phone, mobile, email,
	street, district, city, postal_code, country,
	legacy_ref, deleted_at, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	p := &Patient{}
	err := row.Scan(
		&p.ID, &p.DNI, &p.FirstName, &p.LastName, &p.BirthDate, &p.Gender, &p.BloodType, &p.Allergies,
		&p.Contact.Phone, &p.Contact.Mobile, &p.Contact.Email,
		&p.Address.Street, &p.Address.District, &p.Address.City, &p.Address.PostalCode, &p.Address.Country,
		&p.LegacyRef, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new patient
func (r *Repository) Create(ctx context.Context, p *Patient) error {
	query := `
		INSERT INTO patients (
			id, dni, first_name, last_name, birth_date, gender, blood_type, allergies,
			phone, mobile, email,
			street, district, city, postal_code, country,
			legacy_ref
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, $14, $15, $16,
			$17
		)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.DNI, p.FirstName, p.LastName, p.BirthDate, p.Gender, p.BloodType, p.Allergies,
		p.Contact.Phone, p.Contact.Mobile, p.Contact.Email,
		p.Address.Street, p.Address.District, p.Address.City, p.Address.PostalCode, p.Address.Country,
		p.LegacyRef,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("patient with this DNI already exists")
		}
		return errors.Wrap(err, "failed to create patient")
	}

	return nil
}

// Get retrieves a patient by ID (excluding soft-deleted)
func (r *Repository) Get(ctx context.Context, id types.ID) (*Patient, error) {
	query := fmt.Sprintf(`SELECT %s FROM patients WHERE id = $1 AND deleted_at IS NULL`, patientColumns)

	p, err := scanPatient(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("patient", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get patient")
	}

	return p, nil
}

// GetByDNI retrieves a patient by DNI
func (r *Repository) GetByDNI(ctx context.Context, dni types.DNI) (*Patient, error) {
	query := fmt.Sprintf(`SELECT %s FROM patients WHERE dni = $1 AND deleted_at IS NULL`, patientColumns)

	p, err := scanPatient(r.pool.QueryRow(ctx, query, dni))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("patient", dni.Masked())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get patient by DNI")
	}

	return p, nil
}

// Update updates a patient
func (r *Repository) Update(ctx context.Context, p *Patient) error {
	query := `
		UPDATE patients SET
			first_name = $2, last_name = $3, blood_type = $4, allergies = $5,
			phone = $6, mobile = $7, email = $8,
			street = $9, district = $10, city = $11, postal_code = $12, country = $13,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query,
		p.ID, p.FirstName, p.LastName, p.BloodType, p.Allergies,
		p.Contact.Phone, p.Contact.Mobile, p.Contact.Email,
		p.Address.Street, p.Address.District, p.Address.City, p.Address.PostalCode, p.Address.Country,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update patient")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("patient", p.ID.String())
	}

	return nil
}

// Delete soft-deletes a patient
func (r *Repository) Delete(ctx context.Context, id types.ID) error {
	query := `UPDATE patients SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete patient")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("patient", id.String())
	}

	return nil
}

// List lists patients with optional search
func (r *Repository) List(ctx context.Context, filter ListPatientsFilter) ([]Patient, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []interface{}
	argNum := 1

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR dni LIKE $%d)", argNum, argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM patients %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count patients")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM patients
		%s
		ORDER BY last_name, first_name
		LIMIT $%d OFFSET $%d`, patientColumns, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list patients")
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan patient")
		}
		patients = append(patients, *p)
	}

	return patients, total, nil
}

// UpsertLegacy inserts or refreshes a patient imported from the legacy
// system, matching on DNI.
func (r *Repository) UpsertLegacy(ctx context.Context, p *Patient) error {
	query := `
		INSERT INTO patients (
			id, dni, first_name, last_name, birth_date, gender, blood_type, allergies,
			phone, mobile, email,
			street, district, city, postal_code, country,
			legacy_ref
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, $14, $15, $16,
			$17
		)
		ON CONFLICT (dni) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			legacy_ref = EXCLUDED.legacy_ref,
			updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.DNI, p.FirstName, p.LastName, p.BirthDate, p.Gender, p.BloodType, p.Allergies,
		p.Contact.Phone, p.Contact.Mobile, p.Contact.Email,
		p.Address.Street, p.Address.District, p.Address.City, p.Address.PostalCode, p.Address.Country,
		p.LegacyRef,
	)

	if err != nil {
		return errors.Wrap(err, "failed to upsert legacy patient")
	}

	return nil
}
