package alert

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/errors"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Repository provides database operations for alerts
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new alert repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new alert
func (r *Repository) Create(ctx context.Context, a *Alert) error {
	query := `
		INSERT INTO alerts (id, patient_id, level, message, source, acknowledged)
		VALUES ($1, $2, $3, $4, $5, FALSE)`

	_, err := r.pool.Exec(ctx, query, a.ID, a.PatientID, a.Level, a.Message, a.Source)
	if err != nil {
		return errors.Wrap(err, "failed to create alert")
	}

	return nil
}

// Get retrieves an alert by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Alert, error) {
	query := `
		SELECT id, patient_id, level, message, source,
			acknowledged, acknowledged_by, acknowledged_at, created_at
		FROM alerts
		WHERE id = $1`

	a := &Alert{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.PatientID, &a.Level, &a.Message, &a.Source,
		&a.Acknowledged, &a.AcknowledgedBy, &a.AcknowledgedAt, &a.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("alert", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get alert")
	}

	return a, nil
}

// Acknowledge marks an alert as acknowledged. Acknowledging twice is a
// no-op rejected with Conflict.
func (r *Repository) Acknowledge(ctx context.Context, id types.ID, by types.ID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE alerts
		SET acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = NOW()
		WHERE id = $1 AND acknowledged = FALSE`,
		id, by,
	)
	if err != nil {
		return errors.Wrap(err, "failed to acknowledge alert")
	}

	if result.RowsAffected() == 0 {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return getErr
		}
		return errors.Conflict("alert already acknowledged")
	}

	return nil
}

// List lists alerts with optional filters
func (r *Repository) List(ctx context.Context, filter ListAlertsFilter) ([]Alert, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Level != nil {
		conditions = append(conditions, fmt.Sprintf("level = $%d", argNum))
		args = append(args, *filter.Level)
		argNum++
	}

	if filter.PatientID != nil {
		conditions = append(conditions, fmt.Sprintf("patient_id = $%d", argNum))
		args = append(args, *filter.PatientID)
		argNum++
	}

	if filter.OnlyUnacked {
		conditions = append(conditions, "acknowledged = FALSE")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM alerts %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count alerts")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT id, patient_id, level, message, source,
			acknowledged, acknowledged_by, acknowledged_at, created_at
		FROM alerts
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list alerts")
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		err := rows.Scan(
			&a.ID, &a.PatientID, &a.Level, &a.Message, &a.Source,
			&a.Acknowledged, &a.AcknowledgedBy, &a.AcknowledgedAt, &a.CreatedAt,
		)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan alert")
		}
		alerts = append(alerts, a)
	}

	return alerts, total, nil
}
