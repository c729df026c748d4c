package staff

import (
	"time"

	clinicauth "github.com/EdwardMor3h/topico-enfermeria/internal/auth"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Member represents a clinic staff member (doctor, nurse or admin)
type Member struct {
	ID        types.ID        `json:"id"`
	DNI       types.DNI       `json:"dni"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Email     string          `json:"email"`
	Role      clinicauth.Role `json:"role"`
	Specialty *string         `json:"specialty,omitempty"`

	// SignaturePath points at the doctor's stored signature image, used
	// when rendering prescriptions. Unrelated to the per-history seal.
	SignaturePath *string `json:"signature_path,omitempty"`

	Active bool `json:"active"`

	PasswordHash string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns the member's full name
func (m Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

// CreateMemberRequest is the request to register a staff member
type CreateMemberRequest struct {
	DNI       string  `json:"dni"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	Specialty *string `json:"specialty,omitempty"`
}

// UpdateMemberRequest is the request to update a staff member
type UpdateMemberRequest struct {
	FirstName     *string `json:"first_name,omitempty"`
	LastName      *string `json:"last_name,omitempty"`
	Email         *string `json:"email,omitempty"`
	Specialty     *string `json:"specialty,omitempty"`
	SignaturePath *string `json:"signature_path,omitempty"`
	Active        *bool   `json:"active,omitempty"`
}

// ListMembersFilter defines filters for listing staff
type ListMembersFilter struct {
	Role   *clinicauth.Role `json:"role,omitempty"`
	Active *bool            `json:"active,omitempty"`
	Search string           `json:"search,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}
