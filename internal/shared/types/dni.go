package types

import (
	"fmt"
	"regexp"
)

// DNI represents a Peruvian national identity document number (8 digits).
type DNI string

var dniRegex = regexp.MustCompile(`^\d{8}$`)

// ParseDNI validates and parses a DNI string
func ParseDNI(s string) (DNI, error) {
	if !dniRegex.MatchString(s) {
		return "", fmt.Errorf("DNI must be exactly 8 digits")
	}
	return DNI(s), nil
}

// String returns the string representation
func (d DNI) String() string {
	return string(d)
}

// Masked returns a masked version for display (last 3 digits visible)
func (d DNI) Masked() string {
	if len(d) < 8 {
		return "********"
	}
	return "*****" + string(d)[5:]
}

// IsZero checks if the DNI is empty
func (d DNI) IsZero() bool {
	return d == ""
}
