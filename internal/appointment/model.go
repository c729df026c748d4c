package appointment

import (
	"fmt"
	"time"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Status defines the appointment lifecycle state
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusAttended  Status = "ATTENDED"
	StatusCancelled Status = "CANCELLED"
)

// Appointment represents a scheduled patient visit
type Appointment struct {
	ID          types.ID  `json:"id"`
	PatientID   types.ID  `json:"patient_id"`
	StaffID     types.ID  `json:"staff_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Reason      *string   `json:"reason,omitempty"`
	Status      Status    `json:"status"`

	Vitals *VitalSigns `json:"vitals,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarkAttended transitions the appointment to ATTENDED
func (a *Appointment) MarkAttended() error {
	if a.Status != StatusScheduled {
		return fmt.Errorf("cannot attend appointment in status %s", a.Status)
	}
	a.Status = StatusAttended
	return nil
}

// Cancel transitions the appointment to CANCELLED
func (a *Appointment) Cancel() error {
	if a.Status != StatusScheduled {
		return fmt.Errorf("cannot cancel appointment in status %s", a.Status)
	}
	a.Status = StatusCancelled
	return nil
}

// CanRecordVitals reports whether vital signs may still be recorded
func (a *Appointment) CanRecordVitals() bool {
	return a.Status == StatusScheduled
}

// VitalSigns holds the measurements taken at patient intake. All
// measurements are optional; absent values stay nil.
type VitalSigns struct {
	ID            types.ID `json:"id"`
	AppointmentID types.ID `json:"appointment_id"`

	BloodPressure    *string  `json:"blood_pressure,omitempty"` // e.g. "120/80"
	HeartRate        *int     `json:"heart_rate,omitempty"`
	RespiratoryRate  *int     `json:"respiratory_rate,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	Weight           *float64 `json:"weight,omitempty"`
	Height           *float64 `json:"height,omitempty"`
	OxygenSaturation *float64 `json:"oxygen_saturation,omitempty"`

	Observations *string `json:"observations,omitempty"`

	RecordedBy types.ID  `json:"recorded_by"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Critical reports whether any measurement is in a range that needs
// immediate attention.
func (v VitalSigns) Critical() bool {
	if v.OxygenSaturation != nil && *v.OxygenSaturation < 90 {
		return true
	}
	if v.Temperature != nil && *v.Temperature >= 39.5 {
		return true
	}
	if v.HeartRate != nil && (*v.HeartRate < 40 || *v.HeartRate > 140) {
		return true
	}
	return false
}

// Abnormal reports whether any measurement is outside normal adult
// ranges, short of critical.
func (v VitalSigns) Abnormal() bool {
	if v.Critical() {
		return true
	}
	if v.OxygenSaturation != nil && *v.OxygenSaturation < 94 {
		return true
	}
	if v.Temperature != nil && (*v.Temperature >= 38 || *v.Temperature < 35) {
		return true
	}
	if v.HeartRate != nil && (*v.HeartRate < 50 || *v.HeartRate > 110) {
		return true
	}
	if v.RespiratoryRate != nil && (*v.RespiratoryRate < 10 || *v.RespiratoryRate > 24) {
		return true
	}
	return false
}

// CreateAppointmentRequest is the request to schedule an appointment
type CreateAppointmentRequest struct {
	PatientID   types.ID `json:"patient_id"`
	StaffID     types.ID `json:"staff_id"`
	ScheduledAt string   `json:"scheduled_at"` // RFC 3339
	Reason      *string  `json:"reason,omitempty"`
}

// UpdateAppointmentRequest is the request to reschedule an appointment
type UpdateAppointmentRequest struct {
	ScheduledAt string  `json:"scheduled_at"` // RFC 3339
	Reason      *string `json:"reason,omitempty"`
}

// UpdateStatusRequest is the request to change appointment status
type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

// RecordVitalsRequest is the request to record vital signs
type RecordVitalsRequest struct {
	BloodPressure    *string  `json:"blood_pressure,omitempty"`
	HeartRate        *int     `json:"heart_rate,omitempty"`
	RespiratoryRate  *int     `json:"respiratory_rate,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	Weight           *float64 `json:"weight,omitempty"`
	Height           *float64 `json:"height,omitempty"`
	OxygenSaturation *float64 `json:"oxygen_saturation,omitempty"`
	Observations     *string  `json:"observations,omitempty"`
}

// ListAppointmentsFilter defines filters for listing appointments
type ListAppointmentsFilter struct {
	PatientID *types.ID  `json:"patient_id,omitempty"`
	StaffID   *types.ID  `json:"staff_id,omitempty"`
	Status    *Status    `json:"status,omitempty"`
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}
