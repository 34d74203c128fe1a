package onboarding

import "proofengine/internal/domain"

// Error types reported on recoverable scoring failures.
const (
	ErrorTypeValidationFailed   = "validation_failed"
	ErrorTypeUserActionRequired = "user_action_required"
)

// missingScoringData checks that the scoring response plausibly analyzed
// the submitted deck: a venture subtree must exist when a venture name was
// expected, a team subtree when a founder name was expected. Presence is
// structural only; no fuzzy name matching.
func missingScoringData(res domain.ScoringResult, expectedFounder, expectedVenture string) []string {
	var missing []string
	if expectedVenture != "" && !res.HasVenture() {
		missing = append(missing, "venture")
	}
	if expectedFounder != "" && !res.HasTeam() {
		missing = append(missing, "team")
	}
	return missing
}

// missingDataMessage builds the user guidance for each distinct rejection.
func missingDataMessage(missing []string) string {
	hasVenture, hasTeam := false, false
	for _, m := range missing {
		switch m {
		case "venture":
			hasVenture = true
		case "team":
			hasTeam = true
		}
	}
	switch {
	case hasVenture && hasTeam:
		return "We couldn't find venture and team details in your pitch deck. Please upload a file with venture and team details."
	case hasVenture:
		return "We couldn't find venture details in your pitch deck. Please upload a file that includes details about your venture."
	case hasTeam:
		return "We couldn't find team details in your pitch deck. Please upload a file that includes details about your team."
	default:
		return ""
	}
}
