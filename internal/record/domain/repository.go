package domain

import (
	"context"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Repository defines persistence for consultations and histories
type Repository interface {
	// CreateConsultationWithHistory persists the consultation, its
	// derived history and, when attendAppointmentID is set, the
	// SCHEDULED -> ATTENDED flip of the matched appointment, all in
	// one transaction.
	CreateConsultationWithHistory(ctx context.Context, c *Consultation, h *ClinicalHistory, attendAppointmentID *types.ID) error

	GetConsultation(ctx context.Context, id types.ID) (*Consultation, error)
	ListConsultations(ctx context.Context, filter ListFilter) ([]Consultation, int, error)

	// UpdateConsultationWithHistory persists a consultation revision
	// and the diagnosis mirror into its unsigned history in one
	// transaction.
	UpdateConsultationWithHistory(ctx context.Context, c *Consultation, h *ClinicalHistory) error

	// SoftDeleteConsultation marks the consultation deleted
	SoftDeleteConsultation(ctx context.Context, id types.ID) error

	GetHistory(ctx context.Context, id types.ID) (*ClinicalHistory, error)
	GetHistoryByConsultation(ctx context.Context, consultationID types.ID) (*ClinicalHistory, error)
	ListHistories(ctx context.Context, filter ListFilter) ([]ClinicalHistory, int, error)

	// SetSignature seals a history. The store guards the transition
	// so that concurrent double-submits resolve to exactly one
	// winner; the loser gets ErrAlreadySigned.
	SetSignature(ctx context.Context, historyID types.ID, signature string, by types.ID) error
}

// ListFilter defines filters for listing consultations and histories
type ListFilter struct {
	PatientID *types.ID `json:"patient_id,omitempty"`
	DoctorID  *types.ID `json:"doctor_id,omitempty"`
	Signed    *bool     `json:"signed,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Offset    int       `json:"offset,omitempty"`
}

// PatientDirectory resolves patients for the workflow
type PatientDirectory interface {
	// PatientExists reports whether a non-deleted patient exists
	PatientExists(ctx context.Context, id types.ID) (bool, error)
}

// ScheduledVisit is a patient's upcoming or in-progress appointment
// together with its intake vitals, if any were recorded.
type ScheduledVisit struct {
	AppointmentID types.ID
	Vitals        *VitalsSnapshot
}

// AppointmentSource finds the visit a new consultation attends. The
// heuristic is isolated behind this interface so it can be replaced
// without touching the workflow.
type AppointmentSource interface {
	// LatestScheduledVisit returns the patient's most recent
	// SCHEDULED appointment, or nil when there is none.
	LatestScheduledVisit(ctx context.Context, patientID types.ID) (*ScheduledVisit, error)
}
