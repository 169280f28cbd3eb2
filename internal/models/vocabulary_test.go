package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchResponse(t *testing.T) {
	cases := []struct {
		text string
		want ResponseKind
	}{
		{"yes", ResponseAffirmative},
		{"YES", ResponseAffirmative},
		{"yeah i attended", ResponseAffirmative},
		{"present", ResponseAffirmative},
		{"no", ResponseNegative},
		{"nope missed it", ResponseNegative},
		{"absent", ResponseNegative},
		{"mass bunk", ResponseMassSkip},
		{"it was a MASS BUNK today", ResponseMassSkip},
		{"everyone skipped", ResponseMassSkip},
		{"holiday", ResponseHoliday},
		{"no class today", ResponseHoliday},
		{"", ResponseNone},
		{"what is my schedule", ResponseNone},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MatchResponse(tc.text), "text=%q", tc.text)
	}
}

func TestMatchResponseSpecificSetsWinOverGeneral(t *testing.T) {
	// "no class" contains "no"; the holiday set must win.
	assert.Equal(t, ResponseHoliday, MatchResponse("no class"))
	// "everyone skipped" could read as negative; mass-skip set must win.
	assert.Equal(t, ResponseMassSkip, MatchResponse("everyone skipped"))
}

func TestResponseOutcome(t *testing.T) {
	assert.Equal(t, StatusPresent, ResponseAffirmative.Outcome())
	assert.Equal(t, StatusAbsent, ResponseNegative.Outcome())
	assert.Equal(t, StatusMassSkipped, ResponseMassSkip.Outcome())
	assert.Equal(t, StatusHoliday, ResponseHoliday.Outcome())
	assert.Equal(t, RecordStatus(""), ResponseNone.Outcome())
}

func TestParseCommand(t *testing.T) {
	kind, arg := ParseCommand("edit physics")
	assert.Equal(t, CommandEditSubject, kind)
	assert.Equal(t, "physics", arg)

	kind, arg = ParseCommand("add subject Linear Algebra")
	assert.Equal(t, CommandAddSubject, kind)
	assert.Equal(t, "linear algebra", arg)

	kind, _ = ParseCommand("CANCEL")
	assert.Equal(t, CommandCancel, kind)

	kind, _ = ParseCommand("delete account")
	assert.Equal(t, CommandDeleteAccount, kind)

	kind, _ = ParseCommand("gibberish input")
	assert.Equal(t, CommandUnknown, kind)
}

func TestRecordStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusPresent.Terminal())
	assert.True(t, StatusAbsent.Terminal())
	assert.True(t, StatusMassSkipped.Terminal())
	assert.True(t, StatusHoliday.Terminal())
	assert.False(t, RecordStatus("bogus").Terminal())
}
