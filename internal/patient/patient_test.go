package patient

import (
	"testing"
	"time"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

func TestPatientCreation(t *testing.T) {
	bloodType := "O+"

	p := Patient{
		ID:        types.NewID(),
		DNI:       types.DNI("71234567"),
		FirstName: "Rosa",
		LastName:  "Quispe",
		BirthDate: time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC),
		Gender:    GenderFemale,
		BloodType: &bloodType,
		Address: types.Address{
			Street:   "Av. Los Alamos 450",
			District: "San Juan de Lurigancho",
			City:     "Lima",
			Country:  "PE",
		},
		Contact: types.ContactInfo{
			Phone: "+51 987 654 321",
			Email: "rosa.quispe@example.pe",
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if p.ID.IsZero() {
		t.Error("Patient ID should not be zero")
	}

	if p.DNI != "71234567" {
		t.Errorf("Expected DNI '71234567', got '%s'", p.DNI)
	}

	if p.Gender != GenderFemale {
		t.Errorf("Expected gender FEMALE, got '%s'", p.Gender)
	}

	if p.BloodType == nil || *p.BloodType != "O+" {
		t.Error("Blood type should be set correctly")
	}

	if p.Address.Country != "PE" {
		t.Errorf("Expected country 'PE', got '%s'", p.Address.Country)
	}

	if p.LegacyRef != nil {
		t.Error("Patient registered directly should have nil LegacyRef")
	}
}

func TestPatientFullName(t *testing.T) {
	tests := []struct {
		firstName string
		lastName  string
		expected  string
	}{
		{"Rosa", "Quispe", "Rosa Quispe"},
		{"Juan Carlos", "Mendoza", "Juan Carlos Mendoza"},
		{"", "Flores", " Flores"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			p := Patient{
				FirstName: tt.firstName,
				LastName:  tt.lastName,
			}

			if p.FullName() != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, p.FullName())
			}
		})
	}
}

func TestPatientAge(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		birthDate time.Time
		expected  int
	}{
		{"birthday passed", time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC), 36},
		{"birthday pending", time.Date(1990, 9, 15, 0, 0, 0, 0, time.UTC), 35},
		{"birthday today", time.Date(2000, 6, 1, 0, 0, 0, 0, time.UTC), 26},
		{"newborn", time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Patient{BirthDate: tt.birthDate}
			if got := p.Age(now); got != tt.expected {
				t.Errorf("Expected age %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestCreatePatientRequestValidation(t *testing.T) {
	req := CreatePatientRequest{
		DNI:       "45678912",
		FirstName: "Miguel",
		LastName:  "Torres",
		BirthDate: "1985-11-02",
		Gender:    GenderMale,
	}

	if _, err := types.ParseDNI(req.DNI); err != nil {
		t.Errorf("Valid DNI rejected: %v", err)
	}

	if _, err := time.Parse("2006-01-02", req.BirthDate); err != nil {
		t.Errorf("Valid birth date rejected: %v", err)
	}
}

func TestInvalidDNI(t *testing.T) {
	tests := []string{"", "1234567", "123456789", "1234567a", "abcdefgh"}

	for _, dni := range tests {
		t.Run(dni, func(t *testing.T) {
			if _, err := types.ParseDNI(dni); err == nil {
				t.Errorf("Expected error for DNI '%s'", dni)
			}
		})
	}
}

func TestUpdatePatientRequest(t *testing.T) {
	newAllergies := "penicillin"
	newPhone := types.ContactInfo{Phone: "+51 912 345 678"}

	req := UpdatePatientRequest{
		Allergies: &newAllergies,
		Contact:   &newPhone,
	}

	if req.Allergies == nil || *req.Allergies != "penicillin" {
		t.Error("Allergies should be set correctly")
	}

	if req.FirstName != nil {
		t.Error("Unset fields should stay nil")
	}
}
