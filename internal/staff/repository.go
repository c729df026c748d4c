package staff

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/errors"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Repository provides database operations for staff members
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new staff repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const memberColumns = `
	id, dni, first_name, last_name, email, password_hash, role, specialty, signature_path, active,
	created_at, updated_at`

func scanMember(row pgx.Row) (*Member, error) {
	m := &Member{}
	err := row.Scan(
		&m.ID, &m.DNI, &m.FirstName, &m.LastName, &m.Email, &m.PasswordHash,
		&m.Role, &m.Specialty, &m.SignaturePath, &m.Active,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Create inserts a new staff member
func (r *Repository) Create(ctx context.Context, m *Member) error {
	query := `
		INSERT INTO users (
			id, dni, first_name, last_name, email, password_hash, role, specialty, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		m.ID, m.DNI, m.FirstName, m.LastName, m.Email, m.PasswordHash,
		m.Role, m.Specialty, m.Active,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("staff member with this DNI or email already exists")
		}
		return errors.Wrap(err, "failed to create staff member")
	}

	return nil
}

// Get retrieves a staff member by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Member, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, memberColumns)

	m, err := scanMember(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("staff member", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get staff member")
	}

	return m, nil
}

// Update updates a staff member
func (r *Repository) Update(ctx context.Context, m *Member) error {
	query := `
		UPDATE users SET
			first_name = $2, last_name = $3, email = $4, specialty = $5,
			signature_path = $6, active = $7,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		m.ID, m.FirstName, m.LastName, m.Email, m.Specialty, m.SignaturePath, m.Active,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update staff member")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("staff member", m.ID.String())
	}

	return nil
}

// List lists staff members with optional filters
func (r *Repository) List(ctx context.Context, filter ListMembersFilter) ([]Member, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argNum))
		args = append(args, *filter.Role)
		argNum++
	}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", argNum))
		args = append(args, *filter.Active)
		argNum++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d)", argNum, argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM users %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count staff members")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		%s
		ORDER BY last_name, first_name
		LIMIT $%d OFFSET $%d`, memberColumns, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list staff members")
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan staff member")
		}
		members = append(members, *m)
	}

	return members, total, nil
}
