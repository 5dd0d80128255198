package classify

import (
	"fmt"
	"strings"

	"github.com/meridian-oss/trialmatch/internal/domain"
)

// criteriaPromptLimit bounds the eligibility criteria text included in the
// prompt so one verbose trial cannot blow the context window.
const criteriaPromptLimit = 1000

// buildPrompt assembles the grounding prompt: the trial's criteria plus the
// patient's structured fields, with an explicit instruction to answer in JSON.
// The model output is still treated as untrusted free text by the parser.
func buildPrompt(profile domain.PatientProfile, trial domain.TrialRecord) string {
	var b strings.Builder

	b.WriteString("You are a clinical trial matching expert. Analyze if this patient is eligible for the trial.\n\n")

	b.WriteString("PATIENT PROFILE:\n")
	fmt.Fprintf(&b, "- Age: %d years old\n", profile.Age)
	fmt.Fprintf(&b, "- Gender: %s\n", orDefault(profile.Gender, "Not specified"))
	fmt.Fprintf(&b, "- Primary Condition: %s\n", profile.Conditions)
	fmt.Fprintf(&b, "- Current Medications: %s\n", orDefault(profile.Medications, "None listed"))
	fmt.Fprintf(&b, "- Biomarkers: %s\n", orDefault(profile.Biomarkers, "Not specified"))

	b.WriteString("\nCLINICAL TRIAL:\n")
	fmt.Fprintf(&b, "- Title: %s\n", trial.Title)
	fmt.Fprintf(&b, "- NCT ID: %s\n", trial.NCTID)
	fmt.Fprintf(&b, "- Conditions Studied: %s\n", trial.Conditions)
	fmt.Fprintf(&b, "- Phase: %s\n", trial.Phase)
	fmt.Fprintf(&b, "- Eligibility Criteria: %s\n", truncateRunes(orDefault(trial.Eligibility, "Not specified"), criteriaPromptLimit))
	fmt.Fprintf(&b, "- Age Range: %s to %s\n", orDefault(trial.MinAge, "No minimum"), orDefault(trial.MaxAge, "No maximum"))
	fmt.Fprintf(&b, "- Gender Requirement: %s\n", orDefault(trial.Gender, "All"))

	b.WriteString("\nTASK:\n")
	b.WriteString("1. Determine eligibility status: ELIGIBLE, NOT_ELIGIBLE, or NEEDS_REVIEW\n")
	b.WriteString("2. Provide a brief, clear explanation in simple language\n\n")
	b.WriteString("Respond in JSON format:\n")
	b.WriteString(`{"status": "ELIGIBLE/NOT_ELIGIBLE/NEEDS_REVIEW", "explanation": "Simple language explanation for the patient"}`)
	b.WriteString("\nNO preamble.\n")

	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
