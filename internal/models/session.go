package models

import "time"

// SessionKind identifies the interactive flow a session represents.
type SessionKind string

const (
	SessionEdit          SessionKind = "edit"
	SessionDeleteConfirm SessionKind = "delete_confirm"
	SessionClearConfirm  SessionKind = "clear_confirm"
	SessionImportConfirm SessionKind = "import_confirm"
)

// EditStage is the state of the edit wizard.
type EditStage string

const (
	EditMenu     EditStage = "menu"
	EditName     EditStage = "name"
	EditDay      EditStage = "day"
	EditTime     EditStage = "time"
	EditAttended EditStage = "attended"
	EditTotal    EditStage = "total"
)

// Session is one in-flight interactive flow for a user. At most one exists
// per user at any time; transient, process memory only.
type Session struct {
	Kind     SessionKind
	UserID   string
	IssuedAt time.Time

	// Edit wizard state.
	Stage     EditStage
	SubjectID string

	// Import confirmation payload.
	Drafts []SubjectDraft
}

// Expired reports whether the session has outlived ttl at the given instant.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.IssuedAt) > ttl
}

// Touch refreshes the issued-at stamp, extending the flow's lifetime after
// a valid intermediate input.
func (s *Session) Touch(now time.Time) {
	s.IssuedAt = now
}

// Describe names the flow for conflict messages.
func (s *Session) Describe() string {
	switch s.Kind {
	case SessionEdit:
		return "an edit in progress"
	case SessionDeleteConfirm:
		return "a pending delete confirmation"
	case SessionClearConfirm:
		return "a pending clear confirmation"
	case SessionImportConfirm:
		return "a pending timetable import"
	default:
		return "an open flow"
	}
}
