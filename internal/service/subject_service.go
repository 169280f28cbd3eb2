package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/dto"
	"github.com/AryaDuhan/Whatsapp-BOT/internal/models"
	appErrors "github.com/AryaDuhan/Whatsapp-BOT/pkg/errors"
)

type subjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	FindByName(ctx context.Context, userID, name string) (*models.Subject, error)
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	BulkCreate(ctx context.Context, userID string, drafts []models.SubjectDraft) error
	Update(ctx context.Context, subject *models.Subject) error
	Deactivate(ctx context.Context, id string) error
	DeactivateAll(ctx context.Context, userID string) (int, error)
}

// SubjectService manages weekly schedule entries and their derived
// attendance figures.
type SubjectService struct {
	subjects  subjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs the service.
func NewSubjectService(subjects subjectRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{subjects: subjects, validator: validate, logger: logger}
}

// Add validates and inserts one subject.
func (s *SubjectService) Add(ctx context.Context, userID string, draft models.SubjectDraft) (*models.Subject, error) {
	if err := s.validateDraft(draft); err != nil {
		return nil, err
	}
	subject := &models.Subject{
		UserID:        userID,
		Name:          draft.Name,
		DayOfWeek:     draft.DayOfWeek,
		StartTime:     draft.StartTime,
		DurationHours: draft.DurationHours,
	}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, err
	}
	s.logger.Info("subject added", zap.String("subject_id", subject.ID), zap.String("user_id", userID))
	return subject, nil
}

// Import inserts all confirmed drafts from a timetable image in one shot.
func (s *SubjectService) Import(ctx context.Context, userID string, drafts []models.SubjectDraft) error {
	for _, draft := range drafts {
		if err := s.validateDraft(draft); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("entry %q: %s", draft.Name, appErrors.FromError(err).Message))
		}
	}
	return s.subjects.BulkCreate(ctx, userID, drafts)
}

func (s *SubjectService) validateDraft(draft models.SubjectDraft) error {
	if err := s.validator.Struct(draft); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject")
	}
	if _, _, err := ParseClock(draft.StartTime); err != nil {
		return err
	}
	return nil
}

// FindByID fetches one subject.
func (s *SubjectService) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	return s.subjects.FindByID(ctx, id)
}

// FindByName resolves an active subject by its owner and name.
func (s *SubjectService) FindByName(ctx context.Context, userID, name string) (*models.Subject, error) {
	return s.subjects.FindByName(ctx, userID, name)
}

// ListActive returns the user's active subjects.
func (s *SubjectService) ListActive(ctx context.Context, userID string) ([]models.Subject, error) {
	return s.subjects.List(ctx, models.SubjectFilter{UserID: userID, ActiveOnly: true})
}

// ListAllActive returns every active subject across users, for scheduler scans.
func (s *SubjectService) ListAllActive(ctx context.Context) ([]models.Subject, error) {
	return s.subjects.List(ctx, models.SubjectFilter{ActiveOnly: true})
}

// Deactivate soft-deletes one subject.
func (s *SubjectService) Deactivate(ctx context.Context, id string) error {
	return s.subjects.Deactivate(ctx, id)
}

// DeactivateAll soft-deletes every subject the user owns.
func (s *SubjectService) DeactivateAll(ctx context.Context, userID string) (int, error) {
	return s.subjects.DeactivateAll(ctx, userID)
}

// ApplyEdit validates and persists one wizard field edit.
func (s *SubjectService) ApplyEdit(ctx context.Context, subject *models.Subject, stage models.EditStage, value string) error {
	value = strings.TrimSpace(value)

	switch stage {
	case models.EditName:
		if value == "" {
			return appErrors.Clone(appErrors.ErrValidation, "name cannot be empty")
		}
		subject.Name = value

	case models.EditDay:
		day, err := ParseWeekday(value)
		if err != nil {
			return err
		}
		subject.DayOfWeek = int(day)

	case models.EditTime:
		start, duration, err := ParseTimeRange(value)
		if err != nil {
			return err
		}
		subject.StartTime = start
		subject.DurationHours = duration

	case models.EditAttended:
		count, err := parseCounter(value)
		if err != nil {
			return err
		}
		if count > subject.Total {
			return appErrors.Clone(appErrors.ErrValidation, "attended cannot exceed total")
		}
		subject.Attended = count

	case models.EditTotal:
		count, err := parseCounter(value)
		if err != nil {
			return err
		}
		if count < subject.Attended {
			return appErrors.Clone(appErrors.ErrValidation, "total cannot be below attended")
		}
		if count < subject.MassSkipped {
			return appErrors.Clone(appErrors.ErrValidation, "total cannot be below mass-skipped count")
		}
		subject.Total = count

	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown edit field")
	}

	return s.subjects.Update(ctx, subject)
}

// BuildReport assembles the consolidated per-user attendance report.
func (s *SubjectService) BuildReport(ctx context.Context, user *models.User, threshold int) (*dto.AttendanceReport, error) {
	subjects, err := s.ListActive(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	report := &dto.AttendanceReport{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Timezone:    user.Timezone,
		Threshold:   threshold,
		Subjects:    make([]dto.SubjectReportRow, 0, len(subjects)),
		GeneratedAt: time.Now().UTC(),
	}
	for i := range subjects {
		report.Subjects = append(report.Subjects, reportRow(&subjects[i], threshold))
	}
	return report, nil
}

// LowAttendanceRows filters a user's subjects to those below the threshold
// with non-zero counters, as the daily alert pass consumes them.
func LowAttendanceRows(subjects []models.Subject, threshold int) []dto.SubjectReportRow {
	rows := make([]dto.SubjectReportRow, 0)
	for i := range subjects {
		subject := &subjects[i]
		if subject.Total == 0 {
			continue
		}
		if subject.AttendancePercentage() >= threshold {
			continue
		}
		rows = append(rows, reportRow(subject, threshold))
	}
	return rows
}

func reportRow(subject *models.Subject, threshold int) dto.SubjectReportRow {
	return dto.SubjectReportRow{
		SubjectID:             subject.ID,
		Name:                  subject.Name,
		Day:                   subject.Weekday().String(),
		StartTime:             subject.StartTime,
		Attended:              subject.Attended,
		Total:                 subject.Total,
		MassSkipped:           subject.MassSkipped,
		Holidays:              subject.Holidays,
		Percentage:            subject.AttendancePercentage(),
		PercentageAdjusted:    subject.PercentageExcludingMassSkips(),
		ClassesNeeded:         models.ClassesNeeded(subject.Attended, subject.Total, threshold),
		ClassesNeededAdjusted: models.ClassesNeeded(subject.Attended, subject.Total-subject.MassSkipped, threshold),
		ClassesCanMiss:        models.ClassesCanMiss(subject.Attended, subject.Total, threshold),
	}
}

// ParseWeekday resolves a day name ("monday", "tue") to a time.Weekday.
func ParseWeekday(value string) (time.Weekday, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for day := time.Sunday; day <= time.Saturday; day++ {
		name := strings.ToLower(day.String())
		if normalized == name || normalized == name[:3] {
			return day, nil
		}
	}
	return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%q is not a weekday", value))
}

// ParseTimeRange parses "HH:MM-HH:MM" into a start time and a duration in
// hours, requiring the end to come after the start and the length to stay
// within the class-duration bounds.
func ParseTimeRange(value string) (string, float64, error) {
	parts := strings.SplitN(strings.TrimSpace(value), "-", 2)
	if len(parts) != 2 {
		return "", 0, appErrors.Clone(appErrors.ErrValidation, "expected a range like 10:00-12:00")
	}
	startH, startM, err := ParseClock(parts[0])
	if err != nil {
		return "", 0, err
	}
	endH, endM, err := ParseClock(parts[1])
	if err != nil {
		return "", 0, err
	}
	minutes := (endH*60 + endM) - (startH*60 + startM)
	if minutes <= 0 {
		return "", 0, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}
	hours := float64(minutes) / 60
	if hours < models.MinDurationHours || hours > models.MaxDurationHours {
		return "", 0, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("class length must be between %.1f and %.0f hours", models.MinDurationHours, models.MaxDurationHours))
	}
	return fmt.Sprintf("%02d:%02d", startH, startM), hours, nil
}

// ParseScheduleSpec parses the add-command argument
// "<name>, <day> <HH:MM>-<HH:MM>" into a draft.
func ParseScheduleSpec(arg string) (models.SubjectDraft, error) {
	parts := strings.SplitN(arg, ",", 2)
	if len(parts) != 2 {
		return models.SubjectDraft{}, appErrors.Clone(appErrors.ErrValidation,
			"expected: add <name>, <day> <HH:MM>-<HH:MM>")
	}
	name := strings.TrimSpace(parts[0])
	rest := strings.Fields(strings.TrimSpace(parts[1]))
	if name == "" || len(rest) != 2 {
		return models.SubjectDraft{}, appErrors.Clone(appErrors.ErrValidation,
			"expected: add <name>, <day> <HH:MM>-<HH:MM>")
	}
	day, err := ParseWeekday(rest[0])
	if err != nil {
		return models.SubjectDraft{}, err
	}
	start, duration, err := ParseTimeRange(rest[1])
	if err != nil {
		return models.SubjectDraft{}, err
	}
	return models.SubjectDraft{
		Name:          name,
		DayOfWeek:     int(day),
		StartTime:     start,
		DurationHours: duration,
	}, nil
}

func parseCounter(value string) (int, error) {
	count, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || count < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "expected a non-negative whole number")
	}
	return count, nil
}
