package retrieval

import (
	"fmt"
	"strings"

	"github.com/meridian-oss/trialmatch/internal/domain"
)

// ComposeQuery maps a patient profile to the canonical query text used for
// embedding. Field order and labels are fixed; the same profile always yields
// the same string, which keeps retrieval deterministic. Optional fields are
// skipped when empty rather than emitted with placeholder values.
func ComposeQuery(profile domain.PatientProfile) (string, error) {
	if err := profile.Validate(); err != nil {
		return "", err
	}

	parts := []string{
		fmt.Sprintf("Age: %d years old", profile.Age),
	}
	if g := strings.TrimSpace(profile.Gender); g != "" {
		parts = append(parts, "Gender: "+g)
	}
	parts = append(parts, "Conditions: "+strings.TrimSpace(profile.Conditions))
	if m := strings.TrimSpace(profile.Medications); m != "" {
		parts = append(parts, "Current medications: "+m)
	}
	if b := strings.TrimSpace(profile.Biomarkers); b != "" {
		parts = append(parts, "Biomarkers: "+b)
	}

	return strings.Join(parts, " | "), nil
}
