package domain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/EdwardMor3h/topico-enfermeria/internal/alert"
	clinicauth "github.com/EdwardMor3h/topico-enfermeria/internal/auth"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/errors"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/events"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// --- In-memory fakes ---

type memRecords struct {
	mu            sync.Mutex
	consultations map[types.ID]*Consultation
	histories     map[types.ID]*ClinicalHistory
	flipped       []types.ID
}

func newMemRecords() *memRecords {
	return &memRecords{
		consultations: make(map[types.ID]*Consultation),
		histories:     make(map[types.ID]*ClinicalHistory),
	}
}

func (m *memRecords) CreateConsultationWithHistory(_ context.Context, c *Consultation, h *ClinicalHistory, attendAppointmentID *types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.histories {
		if existing.ConsultationID == c.ID {
			return errors.Conflict("consultation already has a clinical history")
		}
	}
	cc, hc := *c, *h
	m.consultations[c.ID] = &cc
	m.histories[h.ID] = &hc
	if attendAppointmentID != nil {
		m.flipped = append(m.flipped, *attendAppointmentID)
	}
	return nil
}

func (m *memRecords) GetConsultation(_ context.Context, id types.ID) (*Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[id]
	if !ok || c.DeletedAt != nil {
		return nil, errors.NotFound("consultation", id.String())
	}
	cc := *c
	return &cc, nil
}

func (m *memRecords) ListConsultations(_ context.Context, filter ListFilter) ([]Consultation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Consultation
	for _, c := range m.consultations {
		if c.DeletedAt != nil {
			continue
		}
		if filter.PatientID != nil && c.PatientID != *filter.PatientID {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memRecords) UpdateConsultationWithHistory(_ context.Context, c *Consultation, h *ClinicalHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.histories[h.ID]
	if !ok {
		return errors.NotFound("clinical history", h.ID.String())
	}
	if stored.Signed() {
		return errors.Conflict("consultation is sealed by a signed clinical history")
	}
	cc, hc := *c, *h
	m.consultations[c.ID] = &cc
	m.histories[h.ID] = &hc
	return nil
}

func (m *memRecords) SoftDeleteConsultation(_ context.Context, id types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[id]
	if !ok || c.DeletedAt != nil {
		return errors.NotFound("consultation", id.String())
	}
	now := time.Now().UTC()
	c.DeletedAt = &now
	return nil
}

func (m *memRecords) GetHistory(_ context.Context, id types.ID) (*ClinicalHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.histories[id]
	if !ok {
		return nil, errors.NotFound("clinical history", id.String())
	}
	hc := *h
	return &hc, nil
}

func (m *memRecords) GetHistoryByConsultation(_ context.Context, consultationID types.ID) (*ClinicalHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.histories {
		if h.ConsultationID == consultationID {
			hc := *h
			return &hc, nil
		}
	}
	return nil, errors.NotFound("clinical history", consultationID.String())
}

func (m *memRecords) ListHistories(_ context.Context, filter ListFilter) ([]ClinicalHistory, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ClinicalHistory
	for _, h := range m.histories {
		if filter.Signed != nil && h.Signed() != *filter.Signed {
			continue
		}
		out = append(out, *h)
	}
	return out, len(out), nil
}

func (m *memRecords) SetSignature(_ context.Context, historyID types.ID, signature string, by types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.histories[historyID]
	if !ok {
		return errors.NotFound("clinical history", historyID.String())
	}
	if h.Signed() {
		return ErrAlreadySigned
	}
	now := time.Now().UTC()
	h.MedicalSignature = &signature
	h.SignedBy = &by
	h.SignedAt = &now
	return nil
}

func (m *memRecords) historyCountFor(consultationID types.ID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, h := range m.histories {
		if h.ConsultationID == consultationID {
			count++
		}
	}
	return count
}

type memPatients struct {
	known map[types.ID]bool
}

func (m *memPatients) PatientExists(_ context.Context, id types.ID) (bool, error) {
	return m.known[id], nil
}

type memVisits struct {
	visit *ScheduledVisit
}

func (m *memVisits) LatestScheduledVisit(_ context.Context, _ types.ID) (*ScheduledVisit, error) {
	return m.visit, nil
}

type memNotifier struct {
	mu     sync.Mutex
	levels []alert.Level
}

func (m *memNotifier) Notify(_ context.Context, level alert.Level, _ *types.ID, _ string, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels = append(m.levels, level)
}

func (m *memNotifier) count(level alert.Level) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.levels {
		if l == level {
			n++
		}
	}
	return n
}

// --- Fixtures ---

type fixture struct {
	records  *memRecords
	patients *memPatients
	visits   *memVisits
	notifier *memNotifier
	workflow *Workflow

	patientID types.ID
	doctor    Actor
	nurse     Actor
	admin     Actor
}

func newFixture() *fixture {
	patientID := types.NewID()
	f := &fixture{
		records:   newMemRecords(),
		patients:  &memPatients{known: map[types.ID]bool{patientID: true}},
		visits:    &memVisits{},
		notifier:  &memNotifier{},
		patientID: patientID,
		doctor:    Actor{ID: types.NewID(), Role: clinicauth.RoleDoctor},
		nurse:     Actor{ID: types.NewID(), Role: clinicauth.RoleNurse},
		admin:     Actor{ID: types.NewID(), Role: clinicauth.RoleAdmin},
	}
	f.workflow = NewWorkflow(f.records, f.patients, f.visits, f.notifier, events.NopBus{})
	return f
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("Expected *errors.AppError, got %T: %v", err, err)
	}
	return appErr.Code
}

// --- Tests ---

func TestCreateConsultationDerivesExactlyOneHistory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c, h, err := f.workflow.CreateConsultation(ctx, f.doctor, CreateConsultationInput{
		PatientID: f.patientID,
		Diagnosis: "Faringitis aguda",
		Treatment: "Paracetamol 500mg cada 8 horas",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if c.DoctorID != f.doctor.ID {
		t.Error("Expected acting doctor to own the consultation")
	}
	if h.ConsultationID != c.ID {
		t.Error("Expected history to point at the consultation")
	}
	if h.Diagnosis != c.Diagnosis {
		t.Errorf("Expected mirrored diagnosis '%s', got '%s'", c.Diagnosis, h.Diagnosis)
	}
	if got := f.records.historyCountFor(c.ID); got != 1 {
		t.Errorf("Expected exactly 1 history, got %d", got)
	}
	if f.notifier.count(alert.LevelInfo) != 1 {
		t.Error("Expected an info alert for the new consultation")
	}
}

func TestCreateConsultationCopiesVitalsAndFlipsAppointment(t *testing.T) {
	f := newFixture()
	appointmentID := types.NewID()
	f.visits.visit = &ScheduledVisit{
		AppointmentID: appointmentID,
		Vitals: &VitalsSnapshot{
			HeartRate:   ptr(72),
			Temperature: ptr(36.5),
		},
	}

	c, h, err := f.workflow.CreateConsultation(context.Background(), f.doctor, CreateConsultationInput{
		PatientID: f.patientID,
		Diagnosis: "Control de rutina",
		Treatment: "Ninguno",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if c.AppointmentID == nil || *c.AppointmentID != appointmentID {
		t.Error("Expected consultation linked to the matched appointment")
	}
	if h.Vitals.HeartRate == nil || *h.Vitals.HeartRate != 72 {
		t.Error("Expected heart rate copied verbatim")
	}
	if h.Vitals.Temperature == nil || *h.Vitals.Temperature != 36.5 {
		t.Error("Expected temperature copied verbatim")
	}
	if len(f.records.flipped) != 1 || f.records.flipped[0] != appointmentID {
		t.Error("Expected the matched appointment flipped in the same transaction")
	}
}

func TestCreateConsultationWithoutVisitLeavesVitalsNull(t *testing.T) {
	f := newFixture()

	_, h, err := f.workflow.CreateConsultation(context.Background(), f.doctor, CreateConsultationInput{
		PatientID: f.patientID,
		Diagnosis: "Cefalea tensional",
		Treatment: "Ibuprofeno 400mg",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !h.Vitals.Empty() {
		t.Error("Expected all-null vitals with no matched visit")
	}
	if len(f.records.flipped) != 0 {
		t.Error("Expected no appointment flip")
	}
}

func TestCreateConsultationUnknownPatient(t *testing.T) {
	f := newFixture()
	unknown := types.NewID()

	_, _, err := f.workflow.CreateConsultation(context.Background(), f.doctor, CreateConsultationInput{
		PatientID: unknown,
		Diagnosis: "Gripe",
		Treatment: "Reposo",
	})
	if err == nil {
		t.Fatal("Expected error for unknown patient")
	}
	if code := codeOf(t, err); code != "NOT_FOUND" {
		t.Errorf("Expected code 'NOT_FOUND', got '%s'", code)
	}

	if len(f.records.consultations) != 0 || len(f.records.histories) != 0 {
		t.Error("Expected no rows persisted for a rejected consultation")
	}
	if f.notifier.count(alert.LevelWarning) != 1 {
		t.Error("Expected a warning alert for the unknown patient")
	}
}

func TestCreateConsultationForbiddenForNurse(t *testing.T) {
	f := newFixture()

	_, _, err := f.workflow.CreateConsultation(context.Background(), f.nurse, CreateConsultationInput{
		PatientID: f.patientID,
		Diagnosis: "Gripe",
		Treatment: "Reposo",
	})
	if err == nil {
		t.Fatal("Expected error for nurse creating a consultation")
	}
	if code := codeOf(t, err); code != "FORBIDDEN" {
		t.Errorf("Expected code 'FORBIDDEN', got '%s'", code)
	}
}

func TestCreateConsultationValidation(t *testing.T) {
	f := newFixture()

	_, _, err := f.workflow.CreateConsultation(context.Background(), f.doctor, CreateConsultationInput{
		PatientID: f.patientID,
		Diagnosis: "",
		Treatment: "Reposo",
	})
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if code := codeOf(t, err); code != "VALIDATION_ERROR" {
		t.Errorf("Expected code 'VALIDATION_ERROR', got '%s'", code)
	}
}

func TestUpdateConsultationMirrorsDiagnosis(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c, h, err := f.workflow.CreateConsultation(ctx, f.doctor, CreateConsultationInput{
		PatientID: f.patientID,
		Diagnosis: "Gripe",
		Treatment: "Reposo",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	updated, err := f.workflow.UpdateConsultation(ctx, f.doctor, c.ID, UpdateConsultationInput{
		Diagnosis: "Bronquitis",
		Treatment: "Amoxicilina 500mg",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if updated.Diagnosis != "Bronquitis" {
		t.Errorf("Expected diagnosis 'Bronquitis', got '%s'", updated.Diagnosis)
	}

	stored, err := f.workflow.GetHistory(ctx, f.doctor, h.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stored.Diagnosis != "Bronquitis" {
		t.Errorf("Expected mirrored diagnosis 'Bronquitis', got '%s'", stored.Diagnosis)
	}
}

func TestUpdateConsultationIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c, h, err := f.workflow.CreateConsultation(ctx, f.doctor, CreateConsultationInput{
		PatientID: f.patientID,
		Diagnosis: "Gripe",
		Treatment: "Reposo",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	input := UpdateConsultationInput{
		Diagnosis: "Bronquitis",
		Treatment: "Amoxicilina 500mg",
	}
	first, err := f.workflow.UpdateConsultation(ctx, f.doctor, c.ID, input)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := f.workflow.UpdateConsultation(ctx, f.doctor, c.ID, input)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if second.Diagnosis != first.Diagnosis {
		t.Errorf("Expected diagnosis '%s', got '%s'", first.Diagnosis, second.Diagnosis)
	}
	if second.Treatment != first.Treatment {
		t.Errorf("Expected treatment '%s', got '%s'", first.Treatment, second.Treatment)
	}

	if got := f.records.historyCountFor(c.ID); got != 1 {
		t.Errorf("Expected 1 history, got %d", got)
	}
	stored, err := f.workflow.GetHistory(ctx, f.doctor, h.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stored.Diagnosis != "Bronquitis" {
		t.Errorf("Expected mirrored diagnosis 'Bronquitis', got '%s'", stored.Diagnosis)
	}
}

func TestUpdateSealedConsultationRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c, h, err := f.workflow.CreateConsultation(ctx, f.doctor, CreateConsultationInput{
		PatientID: f.patientID,
		Diagnosis: "Gripe",
		Treatment: "Reposo",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := f.workflow.SignClinicalHistory(ctx, f.doctor, h.ID, "Dr. Flores, CMP 12345"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_, err = f.workflow.UpdateConsultation(ctx, f.doctor, c.ID, UpdateConsultationInput{
		Diagnosis: "Neumonia",
		Treatment: "Hospitalizacion",
	})
	if err == nil {
		t.Fatal("Expected error updating a sealed consultation")
	}
	if code := codeOf(t, err); code != "CONFLICT" {
		t.Errorf("Expected code 'CONFLICT', got '%s'", code)
	}

	stored, _ := f.workflow.GetConsultation(ctx, f.doctor, c.ID)
	if stored.Diagnosis != "Gripe" {
		t.Error("Expected sealed consultation to stay unchanged")
	}
}

func TestSignClinicalHistoryOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, h, err := f.workflow.CreateConsultation(ctx, f.doctor, CreateConsultationInput{
		PatientID: f.patientID,
		Diagnosis: "Gripe",
		Treatment: "Reposo",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	signed, err := f.workflow.SignClinicalHistory(ctx, f.doctor, h.ID, "Dr. Quispe, CMP 45678")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !signed.Signed() {
		t.Error("Expected history to be signed")
	}
	if signed.SignedBy == nil || *signed.SignedBy != f.doctor.ID {
		t.Error("Expected signer to be the acting doctor")
	}

	_, err = f.workflow.SignClinicalHistory(ctx, f.doctor, h.ID, "segunda firma")
	if err == nil {
		t.Fatal("Expected error on second signing")
	}
	if code := codeOf(t, err); code != "CONFLICT" {
		t.Errorf("Expected code 'CONFLICT', got '%s'", code)
	}

	stored, _ := f.workflow.GetHistory(ctx, f.doctor, h.ID)
	if *stored.MedicalSignature != "Dr. Quispe, CMP 45678" {
		t.Error("Expected the first signature to win")
	}
}

func TestSignClinicalHistoryOwnership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, h, err := f.workflow.CreateConsultation(ctx, f.doctor, CreateConsultationInput{
		PatientID: f.patientID,
		Diagnosis: "Gripe",
		Treatment: "Reposo",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	otherDoctor := Actor{ID: types.NewID(), Role: clinicauth.RoleDoctor}
	_, err = f.workflow.SignClinicalHistory(ctx, otherDoctor, h.ID, "Dr. Ajeno, CMP 99999")
	if err == nil {
		t.Fatal("Expected error for non-owning doctor")
	}
	if code := codeOf(t, err); code != "FORBIDDEN" {
		t.Errorf("Expected code 'FORBIDDEN', got '%s'", code)
	}

	// an admin may sign on the owner's behalf
	if _, err := f.workflow.SignClinicalHistory(ctx, f.admin, h.ID, "Adm. Rojas"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestSignClinicalHistoryEmptySignature(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, h, err := f.workflow.CreateConsultation(ctx, f.doctor, CreateConsultationInput{
		PatientID: f.patientID,
		Diagnosis: "Gripe",
		Treatment: "Reposo",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_, err = f.workflow.SignClinicalHistory(ctx, f.doctor, h.ID, "")
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if code := codeOf(t, err); code != "VALIDATION_ERROR" {
		t.Errorf("Expected code 'VALIDATION_ERROR', got '%s'", code)
	}
}

func TestDeleteConsultationAdminOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c, _, err := f.workflow.CreateConsultation(ctx, f.doctor, CreateConsultationInput{
		PatientID: f.patientID,
		Diagnosis: "Gripe",
		Treatment: "Reposo",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := f.workflow.DeleteConsultation(ctx, f.doctor, c.ID); err == nil {
		t.Error("Expected doctor deletion to be forbidden")
	}

	if err := f.workflow.DeleteConsultation(ctx, f.admin, c.ID); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := f.workflow.GetConsultation(ctx, f.admin, c.ID); err == nil {
		t.Error("Expected deleted consultation to be gone")
	}
	if f.notifier.count(alert.LevelWarning) != 1 {
		t.Error("Expected a warning alert for the deletion")
	}
}

func TestExportHistory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c, h, err := f.workflow.CreateConsultation(ctx, f.doctor, CreateConsultationInput{
		PatientID: f.patientID,
		Diagnosis: "Gripe",
		Treatment: "Reposo",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_, err = f.workflow.ExportHistory(ctx, f.doctor, h.ID)
	if err == nil {
		t.Fatal("Expected error exporting an unsigned history")
	}
	if code := codeOf(t, err); code != "CONFLICT" {
		t.Errorf("Expected code 'CONFLICT', got '%s'", code)
	}

	if _, err := f.workflow.SignClinicalHistory(ctx, f.doctor, h.ID, "Dr. Flores, CMP 12345"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	export, err := f.workflow.ExportHistory(ctx, f.doctor, h.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if export.Consultation.ID != c.ID {
		t.Error("Expected the export to include the source consultation")
	}
	if !export.History.Signed() {
		t.Error("Expected the exported history to be signed")
	}
}

func TestRoleCapabilities(t *testing.T) {
	tests := []struct {
		role    clinicauth.Role
		cap     clinicauth.Capability
		allowed bool
	}{
		{clinicauth.RoleNurse, clinicauth.CapVitalsWrite, true},
		{clinicauth.RoleNurse, clinicauth.CapConsultationCreate, false},
		{clinicauth.RoleNurse, clinicauth.CapHistorySign, false},
		{clinicauth.RoleDoctor, clinicauth.CapConsultationCreate, true},
		{clinicauth.RoleDoctor, clinicauth.CapHistorySign, true},
		{clinicauth.RoleDoctor, clinicauth.CapPatientWrite, false},
		{clinicauth.RoleDoctor, clinicauth.CapConsultationDelete, false},
		{clinicauth.RoleAdmin, clinicauth.CapConsultationDelete, true},
		{clinicauth.RoleAdmin, clinicauth.CapStaffManage, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+" "+string(tt.cap), func(t *testing.T) {
			if got := tt.role.Can(tt.cap); got != tt.allowed {
				t.Errorf("Expected %v, got %v", tt.allowed, got)
			}
		})
	}
}
