package models

import "strings"

// ResponseKind classifies a free-text reply against the fixed attendance
// vocabulary.
type ResponseKind int

const (
	ResponseNone ResponseKind = iota
	ResponseAffirmative
	ResponseNegative
	ResponseMassSkip
	ResponseHoliday
)

// Token sets are matched case-insensitively with a contains check; casual
// phrasing like "yes i attended" still resolves.
var (
	affirmativeTokens = []string{"yes", "yeah", "yep", "attended", "present", "haan", "i did"}
	negativeTokens    = []string{"no", "nope", "nah", "absent", "missed", "skipped it", "didn't go", "didnt go"}
	massSkipTokens    = []string{"mass bunk", "mass skip", "massbunk", "everyone skipped", "whole class skipped", "nobody went"}
	holidayTokens     = []string{"holiday", "no class", "class cancelled", "class canceled", "off today", "leave"}
)

// MatchResponse returns the vocabulary class of text. Longer, more specific
// sets are checked first so "mass bunk" does not fall through to the
// negative set via "bunk"-adjacent phrasing.
func MatchResponse(text string) ResponseKind {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return ResponseNone
	}

	switch {
	case containsAny(normalized, massSkipTokens):
		return ResponseMassSkip
	case containsAny(normalized, holidayTokens):
		return ResponseHoliday
	case containsAny(normalized, affirmativeTokens):
		return ResponseAffirmative
	case containsAny(normalized, negativeTokens):
		return ResponseNegative
	default:
		return ResponseNone
	}
}

// Outcome maps a matched response onto the record status it resolves to.
// ResponseNone maps to the zero status.
func (k ResponseKind) Outcome() RecordStatus {
	switch k {
	case ResponseAffirmative:
		return StatusPresent
	case ResponseNegative:
		return StatusAbsent
	case ResponseMassSkip:
		return StatusMassSkipped
	case ResponseHoliday:
		return StatusHoliday
	default:
		return ""
	}
}

// IsAffirmative reports a plain yes, used by yes/no confirmations.
func IsAffirmative(text string) bool {
	return MatchResponse(text) == ResponseAffirmative
}

// IsNegative reports a plain no, used by yes/no confirmations.
func IsNegative(text string) bool {
	return MatchResponse(text) == ResponseNegative
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if text == token || strings.Contains(text, token) {
			return true
		}
	}
	return false
}
