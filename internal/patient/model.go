package patient

import (
	"time"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Gender values accepted on patient records
type Gender string

const (
	GenderFemale Gender = "FEMALE"
	GenderMale   Gender = "MALE"
	GenderOther  Gender = "OTHER"
)

// Patient represents a registered patient
type Patient struct {
	ID        types.ID  `json:"id"`
	DNI       types.DNI `json:"dni"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	BirthDate time.Time `json:"birth_date"`
	Gender    Gender    `json:"gender"`
	BloodType *string   `json:"blood_type,omitempty"`
	Allergies *string   `json:"allergies,omitempty"`

	Address types.Address     `json:"address"`
	Contact types.ContactInfo `json:"contact"`

	// LegacyRef is set for patients imported from the legacy system
	LegacyRef *string `json:"legacy_ref,omitempty"`

	DeletedAt *time.Time `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// FullName returns the patient's full name
func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Age returns the patient's age in full years at the given moment
func (p Patient) Age(at time.Time) int {
	years := at.Year() - p.BirthDate.Year()
	anniversary := p.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	return years
}

// CreatePatientRequest is the request to register a patient
type CreatePatientRequest struct {
	DNI       string            `json:"dni"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	BirthDate string            `json:"birth_date"` // YYYY-MM-DD
	Gender    Gender            `json:"gender"`
	BloodType *string           `json:"blood_type,omitempty"`
	Allergies *string           `json:"allergies,omitempty"`
	Address   types.Address     `json:"address"`
	Contact   types.ContactInfo `json:"contact"`
}

// UpdatePatientRequest is the request to update a patient
type UpdatePatientRequest struct {
	FirstName *string            `json:"first_name,omitempty"`
	LastName  *string            `json:"last_name,omitempty"`
	BloodType *string            `json:"blood_type,omitempty"`
	Allergies *string            `json:"allergies,omitempty"`
	Address   *types.Address     `json:"address,omitempty"`
	Contact   *types.ContactInfo `json:"contact,omitempty"`
}

// ListPatientsFilter defines filters for listing patients
type ListPatientsFilter struct {
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}
