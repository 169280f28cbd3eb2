package dto

import "time"

// SubjectReportRow is one subject line in an attendance report.
type SubjectReportRow struct {
	SubjectID             string `json:"subject_id"`
	Name                  string `json:"name"`
	Day                   string `json:"day"`
	StartTime             string `json:"start_time"`
	Attended              int    `json:"attended"`
	Total                 int    `json:"total"`
	MassSkipped           int    `json:"mass_skipped"`
	Holidays              int    `json:"holidays"`
	Percentage            int    `json:"percentage"`
	PercentageAdjusted    int    `json:"percentage_excluding_mass_skips"`
	ClassesNeeded         int    `json:"classes_needed"`
	ClassesNeededAdjusted int    `json:"classes_needed_excluding_mass_skips"`
	ClassesCanMiss        int    `json:"classes_can_miss"`
}

// AttendanceReport is the consolidated per-user report.
type AttendanceReport struct {
	UserID      string             `json:"user_id"`
	DisplayName string             `json:"display_name"`
	Timezone    string             `json:"timezone"`
	Threshold   int                `json:"threshold"`
	Subjects    []SubjectReportRow `json:"subjects"`
	GeneratedAt time.Time          `json:"generated_at"`
}
