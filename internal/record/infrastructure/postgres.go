package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EdwardMor3h/topico-enfermeria/internal/record/domain"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/errors"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// PostgresRepository implements domain.Repository, and doubles as the
// workflow's PatientDirectory and AppointmentSource since all three
// read the same database.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new record repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var (
	_ domain.Repository        = (*PostgresRepository)(nil)
	_ domain.PatientDirectory  = (*PostgresRepository)(nil)
	_ domain.AppointmentSource = (*PostgresRepository)(nil)
)

const consultationColumns = `
	id, patient_id, doctor_id, appointment_id, diagnosis, treatment, notes,
	deleted_at, created_at, updated_at`

func scanConsultation(row pgx.Row) (*domain.Consultation, error) {
	c := &domain.Consultation{}
	err := row.Scan(
		&c.ID, &c.PatientID, &c.DoctorID, &c.AppointmentID, &c.Diagnosis, &c.Treatment, &c.Notes,
		&c.DeletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

const historyColumns = `
	id, consultation_id, patient_id, diagnosis,
	blood_pressure, heart_rate, respiratory_rate, temperature, weight, height, oxygen_saturation,
	medical_signature, signed_by, signed_at, created_at, updated_at`

func scanHistory(row pgx.Row) (*domain.ClinicalHistory, error) {
	h := &domain.ClinicalHistory{}
	err := row.Scan(
		&h.ID, &h.ConsultationID, &h.PatientID, &h.Diagnosis,
		&h.Vitals.BloodPressure, &h.Vitals.HeartRate, &h.Vitals.RespiratoryRate,
		&h.Vitals.Temperature, &h.Vitals.Weight, &h.Vitals.Height, &h.Vitals.OxygenSaturation,
		&h.MedicalSignature, &h.SignedBy, &h.SignedAt, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// CreateConsultationWithHistory persists consultation, history and the
// appointment flip atomically. Either everything lands or nothing
// does: no orphan consultations, no dangling SCHEDULED appointments.
func (r *PostgresRepository) CreateConsultationWithHistory(ctx context.Context, c *domain.Consultation, h *domain.ClinicalHistory, attendAppointmentID *types.ID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO consultations (id, patient_id, doctor_id, appointment_id, diagnosis, treatment, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.PatientID, c.DoctorID, c.AppointmentID, c.Diagnosis, c.Treatment, c.Notes,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create consultation")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO clinical_histories (
			id, consultation_id, patient_id, diagnosis,
			blood_pressure, heart_rate, respiratory_rate, temperature, weight, height, oxygen_saturation
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		h.ID, h.ConsultationID, h.PatientID, h.Diagnosis,
		h.Vitals.BloodPressure, h.Vitals.HeartRate, h.Vitals.RespiratoryRate,
		h.Vitals.Temperature, h.Vitals.Weight, h.Vitals.Height, h.Vitals.OxygenSaturation,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("consultation already has a clinical history")
		}
		return errors.Wrap(err, "failed to create clinical history")
	}

	if attendAppointmentID != nil {
		result, err := tx.Exec(ctx, `
			UPDATE appointments SET status = 'ATTENDED', updated_at = NOW()
			WHERE id = $1 AND status = 'SCHEDULED'`,
			*attendAppointmentID,
		)
		if err != nil {
			return errors.Wrap(err, "failed to attend appointment")
		}
		if result.RowsAffected() == 0 {
			// The appointment moved out of SCHEDULED between the
			// heuristic match and this transaction.
			return errors.Conflict("matched appointment is no longer scheduled")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// GetConsultation retrieves a non-deleted consultation
func (r *PostgresRepository) GetConsultation(ctx context.Context, id types.ID) (*domain.Consultation, error) {
	query := fmt.Sprintf(`SELECT %s FROM consultations WHERE id = $1 AND deleted_at IS NULL`, consultationColumns)

	c, err := scanConsultation(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("consultation", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get consultation")
	}

	return c, nil
}

// ListConsultations lists non-deleted consultations
func (r *PostgresRepository) ListConsultations(ctx context.Context, filter domain.ListFilter) ([]domain.Consultation, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []interface{}
	argNum := 1

	if filter.PatientID != nil {
		conditions = append(conditions, fmt.Sprintf("patient_id = $%d", argNum))
		args = append(args, *filter.PatientID)
		argNum++
	}

	if filter.DoctorID != nil {
		conditions = append(conditions, fmt.Sprintf("doctor_id = $%d", argNum))
		args = append(args, *filter.DoctorID)
		argNum++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM consultations %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count consultations")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM consultations
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, consultationColumns, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list consultations")
	}
	defer rows.Close()

	var consultations []domain.Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan consultation")
		}
		consultations = append(consultations, *c)
	}

	return consultations, total, nil
}

// UpdateConsultationWithHistory persists a revision and its diagnosis
// mirror atomically. The history update is guarded against a
// concurrent signing.
func (r *PostgresRepository) UpdateConsultationWithHistory(ctx context.Context, c *domain.Consultation, h *domain.ClinicalHistory) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE consultations SET diagnosis = $2, treatment = $3, notes = $4, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		c.ID, c.Diagnosis, c.Treatment, c.Notes,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update consultation")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("consultation", c.ID.String())
	}

	result, err = tx.Exec(ctx, `
		UPDATE clinical_histories SET diagnosis = $2, updated_at = NOW()
		WHERE id = $1 AND medical_signature IS NULL`,
		h.ID, h.Diagnosis,
	)
	if err != nil {
		return errors.Wrap(err, "failed to mirror diagnosis")
	}
	if result.RowsAffected() == 0 {
		return errors.Conflict("consultation is sealed by a signed clinical history")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// SoftDeleteConsultation marks a consultation deleted
func (r *PostgresRepository) SoftDeleteConsultation(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE consultations SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return errors.Wrap(err, "failed to delete consultation")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("consultation", id.String())
	}

	return nil
}

// GetHistory retrieves a clinical history by ID
func (r *PostgresRepository) GetHistory(ctx context.Context, id types.ID) (*domain.ClinicalHistory, error) {
	query := fmt.Sprintf(`SELECT %s FROM clinical_histories WHERE id = $1`, historyColumns)

	h, err := scanHistory(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("clinical history", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get clinical history")
	}

	return h, nil
}

// GetHistoryByConsultation retrieves the history derived from a consultation
func (r *PostgresRepository) GetHistoryByConsultation(ctx context.Context, consultationID types.ID) (*domain.ClinicalHistory, error) {
	query := fmt.Sprintf(`SELECT %s FROM clinical_histories WHERE consultation_id = $1`, historyColumns)

	h, err := scanHistory(r.pool.QueryRow(ctx, query, consultationID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("clinical history", consultationID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get clinical history")
	}

	return h, nil
}

// ListHistories lists clinical histories
func (r *PostgresRepository) ListHistories(ctx context.Context, filter domain.ListFilter) ([]domain.ClinicalHistory, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.PatientID != nil {
		conditions = append(conditions, fmt.Sprintf("patient_id = $%d", argNum))
		args = append(args, *filter.PatientID)
		argNum++
	}

	if filter.Signed != nil {
		if *filter.Signed {
			conditions = append(conditions, "medical_signature IS NOT NULL")
		} else {
			conditions = append(conditions, "medical_signature IS NULL")
		}
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM clinical_histories %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count clinical histories")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM clinical_histories
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, historyColumns, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list clinical histories")
	}
	defer rows.Close()

	var histories []domain.ClinicalHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan clinical history")
		}
		histories = append(histories, *h)
	}

	return histories, total, nil
}

// SetSignature seals a history. The WHERE clause is the arbiter under
// concurrency: of two simultaneous signs exactly one updates a row,
// the other sees zero rows and loses.
func (r *PostgresRepository) SetSignature(ctx context.Context, historyID types.ID, signature string, by types.ID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE clinical_histories
		SET medical_signature = $2, signed_by = $3, signed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND medical_signature IS NULL`,
		historyID, signature, by,
	)
	if err != nil {
		return errors.Wrap(err, "failed to sign clinical history")
	}

	if result.RowsAffected() == 0 {
		if _, getErr := r.GetHistory(ctx, historyID); getErr != nil {
			return getErr
		}
		return domain.ErrAlreadySigned
	}

	return nil
}

// PatientExists reports whether a non-deleted patient exists
func (r *PostgresRepository) PatientExists(ctx context.Context, id types.ID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM patients WHERE id = $1 AND deleted_at IS NULL)`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check patient")
	}
	return exists, nil
}

// LatestScheduledVisit finds the patient's most recent SCHEDULED
// appointment and its intake vitals. Returns nil with no match.
func (r *PostgresRepository) LatestScheduledVisit(ctx context.Context, patientID types.ID) (*domain.ScheduledVisit, error) {
	query := `
		SELECT a.id,
			v.blood_pressure, v.heart_rate, v.respiratory_rate,
			v.temperature, v.weight, v.height, v.oxygen_saturation,
			v.id IS NOT NULL
		FROM appointments a
		LEFT JOIN vital_signs v ON v.appointment_id = a.id
		WHERE a.patient_id = $1 AND a.status = 'SCHEDULED'
		ORDER BY a.scheduled_at DESC
		LIMIT 1`

	visit := &domain.ScheduledVisit{}
	vitals := domain.VitalsSnapshot{}
	var hasVitals bool

	err := r.pool.QueryRow(ctx, query, patientID).Scan(
		&visit.AppointmentID,
		&vitals.BloodPressure, &vitals.HeartRate, &vitals.RespiratoryRate,
		&vitals.Temperature, &vitals.Weight, &vitals.Height, &vitals.OxygenSaturation,
		&hasVitals,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find scheduled visit")
	}

	if hasVitals {
		visit.Vitals = &vitals
	}

	return visit, nil
}
