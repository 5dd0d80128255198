package domain

import (
	"errors"
	"testing"
)

func TestPatientProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile PatientProfile
		wantErr bool
	}{
		{
			name:    "valid profile",
			profile: PatientProfile{Age: 55, Gender: "Male", Conditions: "Non-Small Cell Lung Cancer"},
		},
		{
			name:    "missing conditions",
			profile: PatientProfile{Age: 55, Gender: "Male"},
			wantErr: true,
		},
		{
			name:    "whitespace-only conditions",
			profile: PatientProfile{Age: 55, Conditions: "   "},
			wantErr: true,
		},
		{
			name:    "age below range",
			profile: PatientProfile{Age: 17, Conditions: "Diabetes"},
			wantErr: true,
		},
		{
			name:    "age above range",
			profile: PatientProfile{Age: 121, Conditions: "Diabetes"},
			wantErr: true,
		},
		{
			name:    "age at boundaries",
			profile: PatientProfile{Age: 18, Conditions: "Diabetes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidProfile) {
					t.Errorf("expected ErrInvalidProfile, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
