package models

import "time"

// RecordStatus is the lifecycle state of one scheduled-occurrence record.
// pending is entered at creation; every other status is terminal.
type RecordStatus string

const (
	StatusPending     RecordStatus = "pending"
	StatusPresent     RecordStatus = "present"
	StatusAbsent      RecordStatus = "absent"
	StatusMassSkipped RecordStatus = "mass_skipped"
	StatusHoliday     RecordStatus = "holiday"
)

// Valid returns true when the status is a supported value.
func (s RecordStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPresent, StatusAbsent, StatusMassSkipped, StatusHoliday:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is final.
func (s RecordStatus) Terminal() bool {
	return s != StatusPending && s.Valid()
}

// AttendanceRecord is one (user, subject, calendar date) occurrence.
// ReminderSent and ConfirmationSent flip false→true at most once; they gate
// notification idempotency across overlapping scheduler passes.
type AttendanceRecord struct {
	ID               string       `db:"id" json:"id"`
	UserID           string       `db:"user_id" json:"user_id"`
	SubjectID        string       `db:"subject_id" json:"subject_id"`
	ClassDate        time.Time    `db:"class_date" json:"class_date"`
	ScheduledAt      time.Time    `db:"scheduled_at" json:"scheduled_at"`
	EndsAt           time.Time    `db:"ends_at" json:"ends_at"`
	Status           RecordStatus `db:"status" json:"status"`
	ReminderSent     bool         `db:"reminder_sent" json:"reminder_sent"`
	ConfirmationSent bool         `db:"confirmation_sent" json:"confirmation_sent"`
	AutoResolved     bool         `db:"auto_resolved" json:"auto_resolved"`
	RespondedAt      *time.Time   `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}
