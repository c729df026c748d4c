package domain

import (
	"testing"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

func ptr[T any](v T) *T { return &v }

func TestNewConsultationValidation(t *testing.T) {
	patientID := types.NewID()
	doctorID := types.NewID()

	tests := []struct {
		name      string
		patientID types.ID
		doctorID  types.ID
		diagnosis string
		treatment string
		wantErr   bool
	}{
		{"valid", patientID, doctorID, "Faringitis aguda", "Paracetamol 500mg cada 8 horas", false},
		{"missing patient", types.ID(""), doctorID, "Faringitis aguda", "Paracetamol 500mg", true},
		{"missing doctor", patientID, types.ID(""), "Faringitis aguda", "Paracetamol 500mg", true},
		{"empty diagnosis", patientID, doctorID, "", "Paracetamol 500mg", true},
		{"empty treatment", patientID, doctorID, "Faringitis aguda", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewConsultation(tt.patientID, tt.doctorID, tt.diagnosis, tt.treatment, nil)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c.ID.IsZero() {
				t.Error("Expected a generated ID")
			}
			if c.Diagnosis != tt.diagnosis {
				t.Errorf("Expected diagnosis '%s', got '%s'", tt.diagnosis, c.Diagnosis)
			}
		})
	}
}

func TestConsultationRevise(t *testing.T) {
	c, err := NewConsultation(types.NewID(), types.NewID(), "Gripe", "Reposo", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := c.Revise("Bronquitis", "Amoxicilina 500mg", ptr("control en 7 dias")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c.Diagnosis != "Bronquitis" {
		t.Errorf("Expected diagnosis 'Bronquitis', got '%s'", c.Diagnosis)
	}
	if c.Notes == nil || *c.Notes != "control en 7 dias" {
		t.Error("Expected notes to be updated")
	}

	if err := c.Revise("", "Amoxicilina", nil); err == nil {
		t.Error("Expected error for empty diagnosis")
	}
}

func TestVitalsSnapshotEmpty(t *testing.T) {
	if !(VitalsSnapshot{}).Empty() {
		t.Error("Expected zero snapshot to be empty")
	}
	if (VitalsSnapshot{HeartRate: ptr(72)}).Empty() {
		t.Error("Expected snapshot with heart rate to be non-empty")
	}
	if (VitalsSnapshot{Weight: ptr(68.5)}).Empty() {
		t.Error("Expected snapshot with weight to be non-empty")
	}
}

func TestDeriveHistoryCopiesVitalsVerbatim(t *testing.T) {
	c, _ := NewConsultation(types.NewID(), types.NewID(), "Hipertension", "Losartan 50mg", nil)

	vitals := VitalsSnapshot{
		BloodPressure:    ptr("140/90"),
		HeartRate:        ptr(72),
		Temperature:      ptr(36.5),
		OxygenSaturation: ptr(97.0),
	}

	h := DeriveHistory(c, vitals)

	if h.ConsultationID != c.ID {
		t.Errorf("Expected consultation ID '%s', got '%s'", c.ID, h.ConsultationID)
	}
	if h.PatientID != c.PatientID {
		t.Errorf("Expected patient ID '%s', got '%s'", c.PatientID, h.PatientID)
	}
	if h.Diagnosis != c.Diagnosis {
		t.Errorf("Expected diagnosis '%s', got '%s'", c.Diagnosis, h.Diagnosis)
	}
	if h.Vitals.BloodPressure == nil || *h.Vitals.BloodPressure != "140/90" {
		t.Error("Expected blood pressure copied verbatim")
	}
	if h.Vitals.HeartRate == nil || *h.Vitals.HeartRate != 72 {
		t.Error("Expected heart rate copied verbatim")
	}
	if h.Vitals.Temperature == nil || *h.Vitals.Temperature != 36.5 {
		t.Error("Expected temperature copied verbatim")
	}
	if h.Vitals.RespiratoryRate != nil || h.Vitals.Weight != nil || h.Vitals.Height != nil {
		t.Error("Expected absent measurements to stay nil")
	}
	if h.Signed() {
		t.Error("Expected fresh history to be unsigned")
	}
}

func TestDeriveHistoryWithoutVisit(t *testing.T) {
	c, _ := NewConsultation(types.NewID(), types.NewID(), "Control", "Ninguno", nil)

	h := DeriveHistory(c, VitalsSnapshot{})

	if !h.Vitals.Empty() {
		t.Error("Expected all-null vitals snapshot with no matched visit")
	}
}

func TestSignOnce(t *testing.T) {
	c, _ := NewConsultation(types.NewID(), types.NewID(), "Gripe", "Reposo", nil)
	h := DeriveHistory(c, VitalsSnapshot{})
	doctorID := c.DoctorID

	if err := h.Sign("Dr. Quispe Mamani, CMP 45678", doctorID); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !h.Signed() {
		t.Error("Expected history to be signed")
	}
	if h.SignedBy == nil || *h.SignedBy != doctorID {
		t.Error("Expected signer to be recorded")
	}
	if h.SignedAt == nil {
		t.Error("Expected signing time to be recorded")
	}

	if err := h.Sign("segunda firma", doctorID); err != ErrAlreadySigned {
		t.Errorf("Expected ErrAlreadySigned, got %v", err)
	}
	if *h.MedicalSignature != "Dr. Quispe Mamani, CMP 45678" {
		t.Error("Expected original signature to survive a second attempt")
	}
}

func TestSignEmptySignature(t *testing.T) {
	c, _ := NewConsultation(types.NewID(), types.NewID(), "Gripe", "Reposo", nil)
	h := DeriveHistory(c, VitalsSnapshot{})

	if err := h.Sign("", c.DoctorID); err == nil {
		t.Error("Expected error for empty signature")
	}
	if h.Signed() {
		t.Error("Expected history to stay unsigned")
	}
}

func TestMirrorDiagnosis(t *testing.T) {
	c, _ := NewConsultation(types.NewID(), types.NewID(), "Gripe", "Reposo", nil)
	h := DeriveHistory(c, VitalsSnapshot{})

	if err := h.MirrorDiagnosis("Bronquitis"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if h.Diagnosis != "Bronquitis" {
		t.Errorf("Expected diagnosis 'Bronquitis', got '%s'", h.Diagnosis)
	}

	if err := h.Sign("Dr. Flores, CMP 12345", c.DoctorID); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := h.MirrorDiagnosis("Neumonia"); err != ErrAlreadySigned {
		t.Errorf("Expected ErrAlreadySigned, got %v", err)
	}
	if h.Diagnosis != "Bronquitis" {
		t.Error("Expected sealed diagnosis to stay unchanged")
	}
}
