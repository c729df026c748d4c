// Package auth provides authorization types for the clinic.
package auth

// Role represents a user role in the system.
type Role string

const (
	RoleAdmin  Role = "ADMIN"  // Full access, clinic administrator
	RoleDoctor Role = "DOCTOR" // Consultations, clinical histories, signing
	RoleNurse  Role = "NURSE"  // Appointments, vital signs, patient intake
)

// ParseRole normalizes a role claim to a known Role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleDoctor, RoleNurse:
		return Role(s), true
	}
	return "", false
}

// Capability represents a specific action on a resource.
type Capability string

const (
	CapPatientRead   Capability = "patient.read"
	CapPatientWrite  Capability = "patient.write"
	CapPatientDelete Capability = "patient.delete"

	CapAppointmentRead   Capability = "appointment.read"
	CapAppointmentWrite  Capability = "appointment.write"
	CapAppointmentStatus Capability = "appointment.status"

	CapVitalsWrite Capability = "vitals.write"

	CapConsultationCreate Capability = "consultation.create"
	CapConsultationRead   Capability = "consultation.read"
	CapConsultationUpdate Capability = "consultation.update"
	CapConsultationDelete Capability = "consultation.delete"

	CapHistoryRead Capability = "history.read"
	CapHistorySign Capability = "history.sign"

	CapStaffManage Capability = "staff.manage"
	CapAlertRead   Capability = "alert.read"
	CapAuditRead   Capability = "audit.read"
)

// capabilities maps each role to the set of actions it may perform.
// ADMIN is a superset by construction, not by special-casing call sites.
var capabilities = map[Role]map[Capability]bool{
	RoleAdmin: {
		CapPatientRead: true, CapPatientWrite: true, CapPatientDelete: true,
		CapAppointmentRead: true, CapAppointmentWrite: true, CapAppointmentStatus: true,
		CapVitalsWrite:        true,
		CapConsultationCreate: true, CapConsultationRead: true,
		CapConsultationUpdate: true, CapConsultationDelete: true,
		CapHistoryRead: true, CapHistorySign: true,
		CapStaffManage: true, CapAlertRead: true, CapAuditRead: true,
	},
	RoleDoctor: {
		CapPatientRead:     true,
		CapAppointmentRead: true, CapAppointmentStatus: true,
		CapConsultationCreate: true, CapConsultationRead: true,
		CapConsultationUpdate: true,
		CapHistoryRead:        true, CapHistorySign: true,
	},
	RoleNurse: {
		CapPatientRead: true, CapPatientWrite: true,
		CapAppointmentRead: true, CapAppointmentWrite: true, CapAppointmentStatus: true,
		CapVitalsWrite: true,
		CapHistoryRead: true,
	},
}

// Can reports whether the role grants the given capability.
func (r Role) Can(cap Capability) bool {
	return capabilities[r][cap]
}

// IsAdmin reports whether the role is the clinic administrator.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}
