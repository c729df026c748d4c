package domain

import (
	"context"
	"fmt"

	"github.com/EdwardMor3h/topico-enfermeria/internal/alert"
	clinicauth "github.com/EdwardMor3h/topico-enfermeria/internal/auth"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/errors"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/events"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/metrics"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Actor identifies the authenticated staff member driving an
// operation. Authorization is decided here, at the workflow boundary,
// not in the transport layer.
type Actor struct {
	ID   types.ID
	Role clinicauth.Role
}

// Workflow orchestrates the consultation/history lifecycle over
// injected dependencies.
type Workflow struct {
	records      Repository
	patients     PatientDirectory
	appointments AppointmentSource
	alerts       alert.Notifier
	bus          events.EventBus
}

// NewWorkflow creates a new clinical record workflow
func NewWorkflow(
	records Repository,
	patients PatientDirectory,
	appointments AppointmentSource,
	alerts alert.Notifier,
	bus events.EventBus,
) *Workflow {
	return &Workflow{
		records:      records,
		patients:     patients,
		appointments: appointments,
		alerts:       alerts,
		bus:          bus,
	}
}

func (w *Workflow) authorize(actor Actor, cap clinicauth.Capability) error {
	allowed := actor.Role.Can(cap)
	metrics.RecordAuthorizationDecision(string(cap), allowed)
	if !allowed {
		return errors.Forbidden(fmt.Sprintf("role %s cannot perform %s", actor.Role, cap))
	}
	return nil
}

func (w *Workflow) notify(ctx context.Context, level alert.Level, patientID *types.ID, message string) {
	if w.alerts != nil {
		w.alerts.Notify(ctx, level, patientID, "record", message)
	}
}

func (w *Workflow) publish(ctx context.Context, actor Actor, eventType string, data map[string]any) {
	if w.bus == nil {
		return
	}
	event := events.NewEvent(eventType, "record", data).WithActor(actor.ID, string(actor.Role))
	w.bus.Publish(ctx, event)
}

// CreateConsultationInput carries the clinical fields of a new
// consultation. The acting doctor becomes the owner.
type CreateConsultationInput struct {
	PatientID types.ID
	Diagnosis string
	Treatment string
	Notes     *string
}

// CreateConsultation creates a consultation and its derived clinical
// history in one transaction. When the patient has a SCHEDULED
// appointment, its vitals are copied verbatim into the history and the
// appointment is flipped to ATTENDED in the same transaction; with no
// such appointment the snapshot stays all-null.
func (w *Workflow) CreateConsultation(ctx context.Context, actor Actor, input CreateConsultationInput) (*Consultation, *ClinicalHistory, error) {
	if err := w.authorize(actor, clinicauth.CapConsultationCreate); err != nil {
		return nil, nil, err
	}

	c, err := NewConsultation(input.PatientID, actor.ID, input.Diagnosis, input.Treatment, input.Notes)
	if err != nil {
		return nil, nil, errors.Validation("validation failed", map[string]string{"consultation": err.Error()})
	}

	exists, err := w.patients.PatientExists(ctx, input.PatientID)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		w.notify(ctx, alert.LevelWarning, &input.PatientID,
			fmt.Sprintf("consultation attempt for unknown patient %s", input.PatientID))
		return nil, nil, errors.NotFound("patient", input.PatientID.String())
	}

	visit, err := w.appointments.LatestScheduledVisit(ctx, input.PatientID)
	if err != nil {
		return nil, nil, err
	}

	var vitals VitalsSnapshot
	var attendAppointmentID *types.ID
	if visit != nil {
		attendAppointmentID = &visit.AppointmentID
		c.AppointmentID = &visit.AppointmentID
		if visit.Vitals != nil {
			vitals = *visit.Vitals
		}
	}

	h := DeriveHistory(c, vitals)

	if err := w.records.CreateConsultationWithHistory(ctx, c, h, attendAppointmentID); err != nil {
		return nil, nil, err
	}

	metrics.RecordConsultationCreated()
	if attendAppointmentID != nil {
		metrics.RecordAppointmentStatusChange("SCHEDULED", "ATTENDED")
	}

	w.notify(ctx, alert.LevelInfo, &c.PatientID,
		fmt.Sprintf("consultation %s created for patient %s", c.ID, c.PatientID))
	w.publish(ctx, actor, "consultation.created", map[string]any{
		"consultation_id": c.ID,
		"history_id":      h.ID,
		"patient_id":      c.PatientID,
		"appointment_id":  c.AppointmentID,
	})

	return c, h, nil
}

// UpdateConsultationInput carries a consultation revision
type UpdateConsultationInput struct {
	Diagnosis string
	Treatment string
	Notes     *string
}

// UpdateConsultation revises a consultation while its history is still
// unsigned. Diagnosis changes mirror into the history in the same
// transaction. A signed history makes the consultation immutable.
func (w *Workflow) UpdateConsultation(ctx context.Context, actor Actor, id types.ID, input UpdateConsultationInput) (*Consultation, error) {
	if err := w.authorize(actor, clinicauth.CapConsultationUpdate); err != nil {
		return nil, err
	}

	c, err := w.records.GetConsultation(ctx, id)
	if err != nil {
		return nil, err
	}

	h, err := w.records.GetHistoryByConsultation(ctx, id)
	if err != nil {
		return nil, err
	}

	if h.Signed() {
		return nil, errors.Conflict("consultation is sealed by a signed clinical history")
	}

	if err := c.Revise(input.Diagnosis, input.Treatment, input.Notes); err != nil {
		return nil, errors.Validation("validation failed", map[string]string{"consultation": err.Error()})
	}
	if err := h.MirrorDiagnosis(c.Diagnosis); err != nil {
		return nil, errors.Conflict("consultation is sealed by a signed clinical history")
	}

	if err := w.records.UpdateConsultationWithHistory(ctx, c, h); err != nil {
		return nil, err
	}

	w.publish(ctx, actor, "consultation.updated", map[string]any{
		"consultation_id": c.ID,
		"patient_id":      c.PatientID,
	})

	return c, nil
}

// DeleteConsultation soft-deletes a consultation. Admin only.
func (w *Workflow) DeleteConsultation(ctx context.Context, actor Actor, id types.ID) error {
	if err := w.authorize(actor, clinicauth.CapConsultationDelete); err != nil {
		return err
	}

	c, err := w.records.GetConsultation(ctx, id)
	if err != nil {
		return err
	}

	if err := w.records.SoftDeleteConsultation(ctx, id); err != nil {
		return err
	}

	w.notify(ctx, alert.LevelWarning, &c.PatientID,
		fmt.Sprintf("consultation %s deleted by %s", c.ID, actor.ID))
	w.publish(ctx, actor, "consultation.deleted", map[string]any{
		"consultation_id": c.ID,
		"patient_id":      c.PatientID,
	})

	return nil
}

// SignClinicalHistory seals a history. Only the owning doctor or an
// admin may sign, and only once: concurrent double-submits resolve to
// exactly one winner at the store level.
func (w *Workflow) SignClinicalHistory(ctx context.Context, actor Actor, historyID types.ID, signature string) (*ClinicalHistory, error) {
	if err := w.authorize(actor, clinicauth.CapHistorySign); err != nil {
		return nil, err
	}

	if signature == "" {
		return nil, errors.Validation("validation failed", map[string]string{
			"signature": "signature is required",
		})
	}

	h, err := w.records.GetHistory(ctx, historyID)
	if err != nil {
		return nil, err
	}

	c, err := w.records.GetConsultation(ctx, h.ConsultationID)
	if err != nil {
		return nil, err
	}

	if !actor.Role.IsAdmin() && actor.ID != c.DoctorID {
		return nil, errors.Forbidden("only the owning doctor or an admin may sign this history")
	}

	if h.Signed() {
		return nil, errors.Conflict("clinical history is already signed")
	}

	if err := w.records.SetSignature(ctx, historyID, signature, actor.ID); err != nil {
		if err == ErrAlreadySigned {
			return nil, errors.Conflict("clinical history is already signed")
		}
		return nil, err
	}

	h, err = w.records.GetHistory(ctx, historyID)
	if err != nil {
		return nil, err
	}

	metrics.RecordHistorySigned()
	w.notify(ctx, alert.LevelInfo, &h.PatientID,
		fmt.Sprintf("clinical history %s signed by %s for patient %s", h.ID, actor.ID, h.PatientID))
	w.publish(ctx, actor, "history.signed", map[string]any{
		"history_id":      h.ID,
		"consultation_id": h.ConsultationID,
		"patient_id":      h.PatientID,
	})

	return h, nil
}

// ExportedHistory is the signed record as handed to the external PDF
// exporter.
type ExportedHistory struct {
	History      *ClinicalHistory `json:"history"`
	Consultation *Consultation    `json:"consultation"`
}

// ExportHistory returns the fully-populated signed record. Unsigned
// histories cannot be exported.
func (w *Workflow) ExportHistory(ctx context.Context, actor Actor, historyID types.ID) (*ExportedHistory, error) {
	if err := w.authorize(actor, clinicauth.CapHistoryRead); err != nil {
		return nil, err
	}

	h, err := w.records.GetHistory(ctx, historyID)
	if err != nil {
		return nil, err
	}

	if !h.Signed() {
		return nil, errors.Conflict("clinical history is not signed yet")
	}

	c, err := w.records.GetConsultation(ctx, h.ConsultationID)
	if err != nil {
		return nil, err
	}

	return &ExportedHistory{History: h, Consultation: c}, nil
}

// GetConsultation retrieves a consultation
func (w *Workflow) GetConsultation(ctx context.Context, actor Actor, id types.ID) (*Consultation, error) {
	if err := w.authorize(actor, clinicauth.CapConsultationRead); err != nil {
		return nil, err
	}
	return w.records.GetConsultation(ctx, id)
}

// ListConsultations lists consultations
func (w *Workflow) ListConsultations(ctx context.Context, actor Actor, filter ListFilter) ([]Consultation, int, error) {
	if err := w.authorize(actor, clinicauth.CapConsultationRead); err != nil {
		return nil, 0, err
	}
	return w.records.ListConsultations(ctx, filter)
}

// GetHistory retrieves a clinical history
func (w *Workflow) GetHistory(ctx context.Context, actor Actor, id types.ID) (*ClinicalHistory, error) {
	if err := w.authorize(actor, clinicauth.CapHistoryRead); err != nil {
		return nil, err
	}
	return w.records.GetHistory(ctx, id)
}

// GetHistoryByConsultation retrieves the history derived from a
// consultation.
func (w *Workflow) GetHistoryByConsultation(ctx context.Context, actor Actor, consultationID types.ID) (*ClinicalHistory, error) {
	if err := w.authorize(actor, clinicauth.CapHistoryRead); err != nil {
		return nil, err
	}
	return w.records.GetHistoryByConsultation(ctx, consultationID)
}

// ListHistories lists clinical histories
func (w *Workflow) ListHistories(ctx context.Context, actor Actor, filter ListFilter) ([]ClinicalHistory, int, error) {
	if err := w.authorize(actor, clinicauth.CapHistoryRead); err != nil {
		return nil, 0, err
	}
	return w.records.ListHistories(ctx, filter)
}
