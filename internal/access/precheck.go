package access

import (
	"strings"

	"github.com/medtrust/ehr/pkg/types"
)

// weakWords are justifications that say nothing on their own.
var weakWords = map[string]bool{
	"need":   true,
	"want":   true,
	"check":  true,
	"look":   true,
	"see":    true,
	"access": true,
}

// medicalKeywords signal genuine clinical context in a justification.
var medicalKeywords = []string{
	"emergency",
	"critical",
	"urgent",
	"cardiac",
	"stroke",
	"trauma",
	"unconscious",
	"bleeding",
	"fracture",
	"seizure",
	"overdose",
	"respiratory",
	"sepsis",
	"icu",
	"resuscitation",
	"deteriorating",
}

// PrecheckJustification scores a free-text clinical justification before the
// request is committed. The result is advisory only: it coaches the
// requester and never blocks submission. Pure function, safe to call
// repeatedly.
func PrecheckJustification(text string) types.PrecheckResult {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return types.PrecheckResult{
			Status:  types.PrecheckInvalid,
			Message: "Justification is empty",
		}
	}

	words := strings.Fields(normalized)
	wordCount := len(words)

	if wordCount <= 3 && allWeakWords(words) {
		return types.PrecheckResult{
			Status:  types.PrecheckInvalid,
			Message: "Justification does not state a clinical reason",
		}
	}

	if wordCount < 3 {
		return types.PrecheckResult{
			Status:  types.PrecheckInvalid,
			Message: "Justification is too short to review",
		}
	}

	if wordCount >= 5 && containsMedicalContext(normalized) {
		return types.PrecheckResult{
			Status:  types.PrecheckValid,
			Message: "Justification includes clear medical context",
		}
	}

	return types.PrecheckResult{
		Status:  types.PrecheckWeak,
		Message: "Add clinical detail to strengthen the justification",
	}
}

func allWeakWords(words []string) bool {
	for _, w := range words {
		if !weakWords[strings.Trim(w, ".,!?")] {
			return false
		}
	}
	return true
}

func containsMedicalContext(text string) bool {
	for _, keyword := range medicalKeywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
