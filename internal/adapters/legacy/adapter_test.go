package legacy

import (
	"testing"

	"github.com/EdwardMor3h/topico-enfermeria/internal/patient"
)

func TestMapGender(t *testing.T) {
	tests := []struct {
		code string
		want patient.Gender
	}{
		{"F", patient.GenderFemale},
		{"f", patient.GenderFemale},
		{"2", patient.GenderFemale},
		{"M", patient.GenderMale},
		{"1", patient.GenderMale},
		{"X", patient.GenderOther},
		{"", patient.GenderOther},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := mapGender(tt.code); got != tt.want {
				t.Errorf("Expected '%s', got '%s'", tt.want, got)
			}
		})
	}
}
