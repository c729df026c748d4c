package alert

import (
	"time"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Level defines the severity of an alert
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Alert represents an operational alert raised by the clinic workflows
type Alert struct {
	ID        types.ID  `json:"id"`
	PatientID *types.ID `json:"patient_id,omitempty"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`

	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy *types.ID  `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ListAlertsFilter defines filters for listing alerts
type ListAlertsFilter struct {
	Level       *Level    `json:"level,omitempty"`
	PatientID   *types.ID `json:"patient_id,omitempty"`
	OnlyUnacked bool      `json:"only_unacked,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	Offset      int       `json:"offset,omitempty"`
}
