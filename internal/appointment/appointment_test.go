package appointment

import (
	"testing"
	"time"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

func ptr[T any](v T) *T { return &v }

func TestAppointmentStatusValues(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusScheduled, "SCHEDULED"},
		{StatusAttended, "ATTENDED"},
		{StatusCancelled, "CANCELLED"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if string(tt.status) != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, tt.status)
			}
		})
	}
}

func TestMarkAttended(t *testing.T) {
	a := Appointment{
		ID:          types.NewID(),
		PatientID:   types.NewID(),
		StaffID:     types.NewID(),
		ScheduledAt: time.Now().Add(time.Hour),
		Status:      StatusScheduled,
	}

	if err := a.MarkAttended(); err != nil {
		t.Fatalf("MarkAttended failed: %v", err)
	}

	if a.Status != StatusAttended {
		t.Errorf("Expected status ATTENDED, got '%s'", a.Status)
	}
}

func TestMarkAttendedFromTerminalStates(t *testing.T) {
	for _, status := range []Status{StatusAttended, StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			a := Appointment{Status: status}
			if err := a.MarkAttended(); err == nil {
				t.Errorf("MarkAttended from %s should fail", status)
			}
		})
	}
}

func TestCancel(t *testing.T) {
	a := Appointment{Status: StatusScheduled}

	if err := a.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if a.Status != StatusCancelled {
		t.Errorf("Expected status CANCELLED, got '%s'", a.Status)
	}

	if err := a.Cancel(); err == nil {
		t.Error("Cancelling twice should fail")
	}
}

func TestCanRecordVitals(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{StatusScheduled, true},
		{StatusAttended, false},
		{StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			a := Appointment{Status: tt.status}
			if a.CanRecordVitals() != tt.expected {
				t.Errorf("CanRecordVitals for %s: expected %v", tt.status, tt.expected)
			}
		})
	}
}

func TestVitalSignsCritical(t *testing.T) {
	tests := []struct {
		name     string
		vitals   VitalSigns
		critical bool
	}{
		{"all nil", VitalSigns{}, false},
		{"normal", VitalSigns{
			HeartRate:        ptr(72),
			Temperature:      ptr(36.5),
			OxygenSaturation: ptr(98.0),
		}, false},
		{"low oxygen", VitalSigns{OxygenSaturation: ptr(85.0)}, true},
		{"high fever", VitalSigns{Temperature: ptr(40.1)}, true},
		{"bradycardia", VitalSigns{HeartRate: ptr(35)}, true},
		{"tachycardia", VitalSigns{HeartRate: ptr(150)}, true},
		{"boundary oxygen 90", VitalSigns{OxygenSaturation: ptr(90.0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.vitals.Critical() != tt.critical {
				t.Errorf("Critical() = %v, expected %v", tt.vitals.Critical(), tt.critical)
			}
		})
	}
}

func TestVitalSignsAbnormal(t *testing.T) {
	tests := []struct {
		name     string
		vitals   VitalSigns
		abnormal bool
	}{
		{"all nil", VitalSigns{}, false},
		{"normal", VitalSigns{
			HeartRate:        ptr(72),
			RespiratoryRate:  ptr(16),
			Temperature:      ptr(36.5),
			OxygenSaturation: ptr(98.0),
		}, false},
		{"mild fever", VitalSigns{Temperature: ptr(38.2)}, true},
		{"mild hypoxia", VitalSigns{OxygenSaturation: ptr(92.0)}, true},
		{"fast breathing", VitalSigns{RespiratoryRate: ptr(28)}, true},
		{"critical implies abnormal", VitalSigns{OxygenSaturation: ptr(85.0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.vitals.Abnormal() != tt.abnormal {
				t.Errorf("Abnormal() = %v, expected %v", tt.vitals.Abnormal(), tt.abnormal)
			}
		})
	}
}

func TestCreateAppointmentRequestParsing(t *testing.T) {
	req := CreateAppointmentRequest{
		PatientID:   types.NewID(),
		StaffID:     types.NewID(),
		ScheduledAt: "2026-09-15T10:30:00Z",
	}

	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		t.Fatalf("Valid RFC 3339 timestamp rejected: %v", err)
	}

	if scheduledAt.Hour() != 10 || scheduledAt.Minute() != 30 {
		t.Errorf("Unexpected parsed time: %v", scheduledAt)
	}

	if _, err := time.Parse(time.RFC3339, "2026-09-15 10:30"); err == nil {
		t.Error("Non-RFC 3339 timestamp should be rejected")
	}
}
