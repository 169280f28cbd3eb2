package models

import "time"

// RegistrationStage tracks how far a user has progressed through onboarding.
type RegistrationStage string

const (
	StageCollectingName     RegistrationStage = "collecting_name"
	StageCollectingTimezone RegistrationStage = "collecting_timezone"
	StageCompleted          RegistrationStage = "completed"
)

// Valid returns true when the stage is a supported value.
func (s RegistrationStage) Valid() bool {
	switch s {
	case StageCollectingName, StageCollectingTimezone, StageCompleted:
		return true
	default:
		return false
	}
}

// User is a bot user keyed by their stable WhatsApp address.
type User struct {
	ID            string            `db:"id" json:"id"`
	Address       string            `db:"address" json:"address"`
	DisplayName   string            `db:"display_name" json:"display_name"`
	Timezone      string            `db:"timezone" json:"timezone"`
	AlertsEnabled bool              `db:"alerts_enabled" json:"alerts_enabled"`
	Stage         RegistrationStage `db:"stage" json:"stage"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// Registered reports whether onboarding is complete.
func (u *User) Registered() bool {
	return u.Stage == StageCompleted
}
