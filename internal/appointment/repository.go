package appointment

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/errors"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Repository provides database operations for appointments and vitals
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new appointment repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const appointmentColumns = `
	id, patient_id, staff_id, scheduled_at, reason, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	a := &Appointment{}
	err := row.Scan(
		&a.ID, &a.PatientID, &a.StaffID, &a.ScheduledAt, &a.Reason, &a.Status,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new appointment, rejecting double-booked timeslots
// for the same staff member.
func (r *Repository) Create(ctx context.Context, a *Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var conflicts int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE staff_id = $1 AND scheduled_at = $2 AND status = 'SCHEDULED'`,
		a.StaffID, a.ScheduledAt,
	).Scan(&conflicts)
	if err != nil {
		return errors.Wrap(err, "failed to check timeslot")
	}
	if conflicts > 0 {
		return errors.Conflict("staff member already has an appointment at this time")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (id, patient_id, staff_id, scheduled_at, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.PatientID, a.StaffID, a.ScheduledAt, a.Reason, a.Status,
	)
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return errors.BadRequest("patient or staff member does not exist")
		}
		return errors.Wrap(err, "failed to create appointment")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// Get retrieves an appointment by ID, including vitals if recorded
func (r *Repository) Get(ctx context.Context, id types.ID) (*Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE id = $1`, appointmentColumns)

	a, err := scanAppointment(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("appointment", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get appointment")
	}

	vitals, err := r.GetVitals(ctx, id)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); !ok || appErr.Code != "NOT_FOUND" {
			return nil, err
		}
	} else {
		a.Vitals = vitals
	}

	return a, nil
}

// Update reschedules an appointment while it is still SCHEDULED
func (r *Repository) Update(ctx context.Context, a *Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var conflicts int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE staff_id = $1 AND scheduled_at = $2 AND status = 'SCHEDULED' AND id <> $3`,
		a.StaffID, a.ScheduledAt, a.ID,
	).Scan(&conflicts)
	if err != nil {
		return errors.Wrap(err, "failed to check timeslot")
	}
	if conflicts > 0 {
		return errors.Conflict("staff member already has an appointment at this time")
	}

	result, err := tx.Exec(ctx, `
		UPDATE appointments
		SET scheduled_at = $2, reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'SCHEDULED'`,
		a.ID, a.ScheduledAt, a.Reason,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update appointment")
	}

	if result.RowsAffected() == 0 {
		// Either missing or already in a terminal state
		if _, getErr := r.Get(ctx, a.ID); getErr != nil {
			return getErr
		}
		return errors.Conflict("only scheduled appointments can be updated")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// UpdateStatus persists an appointment status change
func (r *Repository) UpdateStatus(ctx context.Context, id types.ID, status Status) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE appointments SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update appointment status")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("appointment", id.String())
	}

	return nil
}

// List lists appointments with optional filters
func (r *Repository) List(ctx context.Context, filter ListAppointmentsFilter) ([]Appointment, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.PatientID != nil {
		conditions = append(conditions, fmt.Sprintf("patient_id = $%d", argNum))
		args = append(args, *filter.PatientID)
		argNum++
	}

	if filter.StaffID != nil {
		conditions = append(conditions, fmt.Sprintf("staff_id = $%d", argNum))
		args = append(args, *filter.StaffID)
		argNum++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}

	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("scheduled_at >= $%d", argNum))
		args = append(args, *filter.From)
		argNum++
	}

	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("scheduled_at < $%d", argNum))
		args = append(args, *filter.To)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM appointments %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count appointments")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM appointments
		%s
		ORDER BY scheduled_at DESC
		LIMIT $%d OFFSET $%d`, appointmentColumns, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list appointments")
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan appointment")
		}
		appointments = append(appointments, *a)
	}

	return appointments, total, nil
}

// --- Vital signs ---

// RecordVitals inserts vital signs for an appointment. Each
// appointment gets at most one set of vitals.
func (r *Repository) RecordVitals(ctx context.Context, v *VitalSigns) error {
	query := `
		INSERT INTO vital_signs (
			id, appointment_id, blood_pressure, heart_rate, respiratory_rate,
			temperature, weight, height, oxygen_saturation, observations, recorded_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		v.ID, v.AppointmentID, v.BloodPressure, v.HeartRate, v.RespiratoryRate,
		v.Temperature, v.Weight, v.Height, v.OxygenSaturation, v.Observations, v.RecordedBy,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("vital signs already recorded for this appointment")
		}
		return errors.Wrap(err, "failed to record vital signs")
	}

	return nil
}

// UpdateVitals replaces the recorded measurements for an appointment
func (r *Repository) UpdateVitals(ctx context.Context, v *VitalSigns) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE vital_signs
		SET blood_pressure = $2, heart_rate = $3, respiratory_rate = $4,
			temperature = $5, weight = $6, height = $7, oxygen_saturation = $8,
			observations = $9, recorded_by = $10, recorded_at = NOW()
		WHERE appointment_id = $1`,
		v.AppointmentID, v.BloodPressure, v.HeartRate, v.RespiratoryRate,
		v.Temperature, v.Weight, v.Height, v.OxygenSaturation, v.Observations, v.RecordedBy,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update vital signs")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("vital signs", v.AppointmentID.String())
	}

	return nil
}

// GetVitals retrieves the vital signs for an appointment
func (r *Repository) GetVitals(ctx context.Context, appointmentID types.ID) (*VitalSigns, error) {
	query := `
		SELECT id, appointment_id, blood_pressure, heart_rate, respiratory_rate,
			temperature, weight, height, oxygen_saturation, observations, recorded_by, recorded_at
		FROM vital_signs
		WHERE appointment_id = $1`

	v := &VitalSigns{}
	err := r.pool.QueryRow(ctx, query, appointmentID).Scan(
		&v.ID, &v.AppointmentID, &v.BloodPressure, &v.HeartRate, &v.RespiratoryRate,
		&v.Temperature, &v.Weight, &v.Height, &v.OxygenSaturation, &v.Observations, &v.RecordedBy, &v.RecordedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("vital signs", appointmentID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get vital signs")
	}

	return v, nil
}
