package classify

import (
	"encoding/json"
	"strings"

	"github.com/meridian-oss/trialmatch/internal/domain"
)

// verdictDTO covers both the requested response shape and the legacy field
// name some models echo back from the criteria examples they were tuned on.
type verdictDTO struct {
	Status            string `json:"status"`
	EligibilityStatus string `json:"eligibility_status"`
	Explanation       string `json:"explanation"`
}

// parseVerdict extracts a status and explanation from a raw model response.
// The response is untrusted text: JSON is attempted first, then a keyword
// scan. When no recognizable status is found the verdict is NEEDS_REVIEW
// with the raw text as explanation.
func parseVerdict(raw string) (domain.Status, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.StatusNeedsReview, ""
	}

	if dto, ok := extractJSON(raw); ok {
		token := dto.Status
		if token == "" {
			token = dto.EligibilityStatus
		}
		if status, ok := normalizeStatus(token); ok {
			return status, strings.TrimSpace(dto.Explanation)
		}
		// Parsed JSON with an unknown status token: keep the explanation.
		if dto.Explanation != "" {
			return domain.StatusNeedsReview, strings.TrimSpace(dto.Explanation)
		}
	}

	if status, ok := scanStatusKeyword(raw); ok {
		return status, raw
	}

	return domain.StatusNeedsReview, raw
}

// extractJSON pulls the outermost JSON object out of the response. Models
// routinely wrap JSON in prose or markdown fences.
func extractJSON(raw string) (verdictDTO, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return verdictDTO{}, false
	}

	var dto verdictDTO
	if err := json.Unmarshal([]byte(raw[start:end+1]), &dto); err != nil {
		return verdictDTO{}, false
	}
	return dto, true
}

// normalizeStatus maps a status token to one of the three defined verdicts.
// LIKELY_ELIGIBLE is a legacy token still emitted by some prompts; it folds
// into ELIGIBLE rather than being dropped.
func normalizeStatus(token string) (domain.Status, bool) {
	token = strings.ToUpper(strings.TrimSpace(token))
	token = strings.ReplaceAll(token, " ", "_")

	switch token {
	case "ELIGIBLE", "LIKELY_ELIGIBLE":
		return domain.StatusEligible, true
	case "NOT_ELIGIBLE", "INELIGIBLE":
		return domain.StatusNotEligible, true
	case "NEEDS_REVIEW":
		return domain.StatusNeedsReview, true
	}
	return "", false
}

// scanStatusKeyword finds a status token in free-form text. Negative tokens
// are checked first: "NOT_ELIGIBLE" contains "ELIGIBLE".
func scanStatusKeyword(raw string) (domain.Status, bool) {
	text := strings.ToUpper(raw)
	text = strings.ReplaceAll(text, " ", "_")

	switch {
	case strings.Contains(text, "NOT_ELIGIBLE"), strings.Contains(text, "INELIGIBLE"):
		return domain.StatusNotEligible, true
	case strings.Contains(text, "NEEDS_REVIEW"):
		return domain.StatusNeedsReview, true
	case strings.Contains(text, "ELIGIBLE"):
		return domain.StatusEligible, true
	}
	return "", false
}
