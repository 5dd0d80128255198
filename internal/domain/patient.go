package domain

import (
	"fmt"
	"strings"
)

// Accepted patient age range. Trials for minors are out of scope.
const (
	MinPatientAge = 18
	MaxPatientAge = 120
)

// PatientProfile is the clinical profile submitted with a match request.
// Immutable for the duration of one request; never persisted.
type PatientProfile struct {
	Age         int
	Gender      string
	Conditions  string
	Medications string
	Biomarkers  string
}

// Validate checks the profile before any retrieval work.
// Conditions are required; age must be inside the accepted range.
func (p PatientProfile) Validate() error {
	if strings.TrimSpace(p.Conditions) == "" {
		return fmt.Errorf("%w: conditions are required", ErrInvalidProfile)
	}
	if p.Age < MinPatientAge || p.Age > MaxPatientAge {
		return fmt.Errorf("%w: age must be between %d and %d, got %d",
			ErrInvalidProfile, MinPatientAge, MaxPatientAge, p.Age)
	}
	return nil
}
