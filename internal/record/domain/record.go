package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Domain sentinels. The workflow maps these to transport errors.
var (
	ErrAlreadySigned = errors.New("clinical history is already signed")
	ErrNotSigned     = errors.New("clinical history is not signed")
	ErrNotOwner      = errors.New("caller is not the owning doctor")
)

// Consultation is the aggregate root of a clinical encounter. Every
// consultation derives exactly one clinical history at creation time.
type Consultation struct {
	ID        types.ID `json:"id"`
	PatientID types.ID `json:"patient_id"`
	DoctorID  types.ID `json:"doctor_id"`

	// AppointmentID links the scheduled visit this consultation
	// attended, when one was matched.
	AppointmentID *types.ID `json:"appointment_id,omitempty"`

	Diagnosis string  `json:"diagnosis"`
	Treatment string  `json:"treatment"`
	Notes     *string `json:"notes,omitempty"`

	DeletedAt *time.Time `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewConsultation creates a consultation with validation
func NewConsultation(patientID, doctorID types.ID, diagnosis, treatment string, notes *string) (*Consultation, error) {
	if patientID.IsZero() {
		return nil, fmt.Errorf("patient is required")
	}
	if doctorID.IsZero() {
		return nil, fmt.Errorf("doctor is required")
	}
	if diagnosis == "" {
		return nil, fmt.Errorf("diagnosis is required")
	}
	if treatment == "" {
		return nil, fmt.Errorf("treatment is required")
	}

	now := time.Now().UTC()
	return &Consultation{
		ID:        types.NewID(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Diagnosis: diagnosis,
		Treatment: treatment,
		Notes:     notes,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Revise applies clinical changes to the consultation. The caller must
// have checked that the derived history is still unsigned.
func (c *Consultation) Revise(diagnosis, treatment string, notes *string) error {
	if diagnosis == "" {
		return fmt.Errorf("diagnosis is required")
	}
	if treatment == "" {
		return fmt.Errorf("treatment is required")
	}

	c.Diagnosis = diagnosis
	c.Treatment = treatment
	c.Notes = notes
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// VitalsSnapshot is the copy of intake measurements frozen into a
// clinical history. Measurements absent at intake stay nil.
type VitalsSnapshot struct {
	BloodPressure    *string  `json:"blood_pressure,omitempty"`
	HeartRate        *int     `json:"heart_rate,omitempty"`
	RespiratoryRate  *int     `json:"respiratory_rate,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	Weight           *float64 `json:"weight,omitempty"`
	Height           *float64 `json:"height,omitempty"`
	OxygenSaturation *float64 `json:"oxygen_saturation,omitempty"`
}

// Empty reports whether no measurement was captured
func (v VitalsSnapshot) Empty() bool {
	return v.BloodPressure == nil && v.HeartRate == nil && v.RespiratoryRate == nil &&
		v.Temperature == nil && v.Weight == nil && v.Height == nil && v.OxygenSaturation == nil
}

// ClinicalHistory is the permanent record derived from a consultation.
// One history per consultation; the signature seals it for good.
type ClinicalHistory struct {
	ID             types.ID `json:"id"`
	ConsultationID types.ID `json:"consultation_id"`
	PatientID      types.ID `json:"patient_id"`

	Diagnosis string         `json:"diagnosis"`
	Vitals    VitalsSnapshot `json:"vitals"`

	// MedicalSignature is nil until the owning doctor signs. Once set
	// it never changes.
	MedicalSignature *string    `json:"medical_signature,omitempty"`
	SignedBy         *types.ID  `json:"signed_by,omitempty"`
	SignedAt         *time.Time `json:"signed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeriveHistory builds the clinical history for a freshly created
// consultation. The vitals snapshot is copied verbatim from the
// matched visit; with no matched visit it stays all-null.
func DeriveHistory(c *Consultation, vitals VitalsSnapshot) *ClinicalHistory {
	now := time.Now().UTC()
	return &ClinicalHistory{
		ID:             types.NewID(),
		ConsultationID: c.ID,
		PatientID:      c.PatientID,
		Diagnosis:      c.Diagnosis,
		Vitals:         vitals,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Signed reports whether the history carries its seal
func (h *ClinicalHistory) Signed() bool {
	return h.MedicalSignature != nil
}

// Sign seals the history. Signing twice fails with ErrAlreadySigned.
func (h *ClinicalHistory) Sign(signature string, by types.ID) error {
	if signature == "" {
		return fmt.Errorf("signature is required")
	}
	if h.Signed() {
		return ErrAlreadySigned
	}

	now := time.Now().UTC()
	h.MedicalSignature = &signature
	h.SignedBy = &by
	h.SignedAt = &now
	h.UpdatedAt = now
	return nil
}

// MirrorDiagnosis propagates a revised consultation diagnosis into the
// unsigned history.
func (h *ClinicalHistory) MirrorDiagnosis(diagnosis string) error {
	if h.Signed() {
		return ErrAlreadySigned
	}
	h.Diagnosis = diagnosis
	h.UpdatedAt = time.Now().UTC()
	return nil
}
