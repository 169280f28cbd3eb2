package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/dto"
	"github.com/AryaDuhan/Whatsapp-BOT/internal/models"
)

// Plain-text message templates. Kept together so copy changes stay out of
// the control flow.

func reminderText(subject *models.Subject, timezone string, scheduledAt time.Time) string {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return fmt.Sprintf("Reminder: %s starts at %s. Don't be late!",
		subject.Name, scheduledAt.In(loc).Format("15:04"))
}

func confirmationText(subject *models.Subject) string {
	return fmt.Sprintf("Did you attend %s? Reply yes/no, or 'mass bunk' / 'holiday' if the class didn't run.", subject.Name)
}

func autoResolvedText(subject *models.Subject) string {
	return fmt.Sprintf("No response received for %s, so it was marked absent automatically. Use 'edit %s' to correct the counters if that's wrong.",
		subject.Name, strings.ToLower(subject.Name))
}

func resolutionText(subject *models.Subject, outcome models.RecordStatus) string {
	switch outcome {
	case models.StatusPresent:
		return fmt.Sprintf("Marked present for %s. Attendance: %d%% (%d/%d).",
			subject.Name, subject.AttendancePercentage(), subject.Attended, subject.Total)
	case models.StatusAbsent:
		return fmt.Sprintf("Marked absent for %s. Attendance: %d%% (%d/%d).",
			subject.Name, subject.AttendancePercentage(), subject.Attended, subject.Total)
	case models.StatusMassSkipped:
		return fmt.Sprintf("Noted, the whole class skipped %s. It won't count against you in the adjusted percentage.", subject.Name)
	case models.StatusHoliday:
		return fmt.Sprintf("Noted, %s didn't happen. Holidays never count towards attendance.", subject.Name)
	default:
		return ""
	}
}

func welcomeText() string {
	return "Welcome! I'll track your class attendance. What's your name?"
}

func askTimezoneText(name string) string {
	return fmt.Sprintf("Nice to meet you, %s. Which timezone are you in? (an IANA name like Asia/Kolkata or Europe/Berlin)", name)
}

func invalidTimezoneText() string {
	return "I don't recognise that timezone. Please send an IANA name like Asia/Kolkata or America/New_York."
}

func registrationDoneText() string {
	return "You're all set. Send 'help' to see what I can do."
}

func helpText() string {
	return strings.Join([]string{
		"Commands:",
		"  add <name>, <day> <HH:MM>-<HH:MM> - add a subject",
		"  list - your subjects and percentages",
		"  edit <name> - edit a subject",
		"  delete <name> - remove a subject",
		"  clear all - remove every subject",
		"  report - attendance summary",
		"  timezone <zone> - change timezone",
		"  alerts on/off - low-attendance alerts",
		"  delete account - erase everything",
		"  cancel - abort the current flow",
		"Send a timetable photo to import subjects in bulk.",
	}, "\n")
}

func busyText(open string) string {
	return fmt.Sprintf("You already have %s. Finish it or send 'cancel' first.", open)
}

func expiredText() string {
	return "That flow expired. Please start again."
}

func cancelledText() string {
	return "Cancelled."
}

func subjectListText(subjects []models.Subject) string {
	if len(subjects) == 0 {
		return "No subjects yet. Use 'add' or send a timetable photo."
	}
	lines := make([]string, 0, len(subjects)+1)
	lines = append(lines, "Your subjects:")
	for _, s := range subjects {
		lines = append(lines, fmt.Sprintf("  %s - %s %s, %d%% (%d/%d), excl. mass bunks %d%%",
			s.Name, s.Weekday().String(), s.StartTime,
			s.AttendancePercentage(), s.Attended, s.Total, s.PercentageExcludingMassSkips()))
	}
	return strings.Join(lines, "\n")
}

func editMenuText(subject *models.Subject) string {
	return strings.Join([]string{
		fmt.Sprintf("Editing %s. What do you want to change?", subject.Name),
		"  1. name",
		"  2. day",
		"  3. time",
		"  4. attended count",
		"  5. total count",
		"Send a number, or 'cancel' to stop.",
	}, "\n")
}

func editPromptText(stage models.EditStage) string {
	switch stage {
	case models.EditName:
		return "New name?"
	case models.EditDay:
		return "New day? (e.g. Monday)"
	case models.EditTime:
		return "New time range? (HH:MM-HH:MM)"
	case models.EditAttended:
		return "New attended count?"
	case models.EditTotal:
		return "New total count?"
	default:
		return ""
	}
}

func deleteConfirmText(subject *models.Subject) string {
	return fmt.Sprintf("Delete %s? Its history is kept but it will stop being tracked. Reply yes or no.", subject.Name)
}

func clearConfirmText(count int) string {
	return fmt.Sprintf("Remove all %d subjects from tracking? Reply yes or no.", count)
}

func importPreviewText(drafts []models.SubjectDraft) string {
	lines := make([]string, 0, len(drafts)+2)
	lines = append(lines, fmt.Sprintf("I found %d subjects in your timetable:", len(drafts)))
	for _, d := range drafts {
		lines = append(lines, fmt.Sprintf("  %s - %s %s (%.1fh)",
			d.Name, time.Weekday(d.DayOfWeek).String(), d.StartTime, d.DurationHours))
	}
	lines = append(lines, "Import them all? Reply yes or no.")
	return strings.Join(lines, "\n")
}

func reportText(report *dto.AttendanceReport) string {
	if len(report.Subjects) == 0 {
		return "No subjects to report on yet. Use 'add' or send a timetable photo."
	}
	lines := make([]string, 0, len(report.Subjects)+2)
	lines = append(lines, fmt.Sprintf("Attendance report (target %d%%):", report.Threshold))
	for _, row := range report.Subjects {
		line := fmt.Sprintf("  %s: %d%% (%d/%d)", row.Name, row.Percentage, row.Attended, row.Total)
		if row.MassSkipped > 0 {
			line += fmt.Sprintf(", excl. mass bunks %d%%", row.PercentageAdjusted)
		}
		if row.Percentage < report.Threshold {
			line += fmt.Sprintf(". Attend the next %d classes to reach %d%%.", row.ClassesNeeded, report.Threshold)
		} else {
			line += fmt.Sprintf(". You can miss %d more.", row.ClassesCanMiss)
		}
		lines = append(lines, line)
	}
	lines = append(lines, "Holidays and classes before tracking started are excluded.")
	return strings.Join(lines, "\n")
}

func lowAttendanceAlertText(rows []dto.SubjectReportRow, threshold int) string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, fmt.Sprintf("Attendance alert - these subjects are below %d%%:", threshold))
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("  %s: %d%% (%d/%d) - attend the next %d classes to recover; excluding mass bunks you're at %d%% and need %d",
			row.Name, row.Percentage, row.Attended, row.Total, row.ClassesNeeded, row.PercentageAdjusted, row.ClassesNeededAdjusted))
	}
	return strings.Join(lines, "\n")
}

func unknownText() string {
	return "Sorry, I didn't get that. Send 'help' to see the commands."
}
