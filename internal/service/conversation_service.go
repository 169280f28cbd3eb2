package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/dto"
	"github.com/AryaDuhan/Whatsapp-BOT/internal/models"
	appErrors "github.com/AryaDuhan/Whatsapp-BOT/pkg/errors"
)

// TimetableExtractor converts a timetable image into candidate schedule
// entries. The classifier itself is an external service.
type TimetableExtractor interface {
	Extract(ctx context.Context, mediaURL string) ([]models.SubjectDraft, error)
}

// ReportInvalidator drops a user's cached report after their counters or
// subjects change.
type ReportInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// ConversationService routes every inbound message. It serialises a user's
// interactive flows against the commands and against the scheduler: the
// routing precedence is wizard input first, then an open yes/no
// confirmation, then the attendance vocabulary, then top-level commands.
type ConversationService struct {
	sessions   *SessionStore
	users      *UserService
	subjects   *SubjectService
	records    *RecordService
	extractor  TimetableExtractor
	dispatcher Dispatcher
	reports    ReportInvalidator
	threshold  int
	logger     *zap.Logger
	now        func() time.Time
}

// NewConversationService constructs the coordinator.
func NewConversationService(sessions *SessionStore, users *UserService, subjects *SubjectService, records *RecordService,
	extractor TimetableExtractor, dispatcher Dispatcher, reports ReportInvalidator, threshold int, logger *zap.Logger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{
		sessions:   sessions,
		users:      users,
		subjects:   subjects,
		records:    records,
		extractor:  extractor,
		dispatcher: dispatcher,
		reports:    reports,
		threshold:  threshold,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *ConversationService) invalidateReport(ctx context.Context, userID string) {
	if s.reports != nil {
		s.reports.Invalidate(ctx, userID)
	}
}

// HandleMessage processes one inbound message event end to end.
func (s *ConversationService) HandleMessage(ctx context.Context, msg dto.InboundMessage) error {
	user, isNew, err := s.users.EnsureUser(ctx, msg.Address)
	if err != nil {
		return err
	}
	if isNew {
		s.reply(ctx, user, welcomeText())
		return nil
	}

	if !user.Registered() {
		text, err := s.users.HandleRegistrationInput(ctx, user, msg.Text)
		if err != nil {
			return err
		}
		s.reply(ctx, user, text)
		return nil
	}

	now := s.now()
	session, expired := s.sessions.Get(user.ID, now)
	if expired {
		// The stale flow is gone; tell the user before treating this
		// message as fresh input.
		s.reply(ctx, user, expiredText())
	}

	if session != nil {
		if kind, _ := models.ParseCommand(msg.Text); kind == models.CommandCancel {
			s.sessions.End(user.ID)
			s.reply(ctx, user, cancelledText())
			return nil
		}
		if session.Kind == models.SessionEdit {
			return s.handleWizardInput(ctx, user, session, msg.Text)
		}
		if models.IsAffirmative(msg.Text) || models.IsNegative(msg.Text) {
			return s.resolveConfirmation(ctx, user, session, models.IsAffirmative(msg.Text))
		}
		// Not an answer to the open confirmation; fall through so plain
		// commands still work while it waits.
	}

	if msg.HasAttachment {
		return s.beginImport(ctx, user, msg.MediaURL)
	}

	if kind := models.MatchResponse(msg.Text); kind != models.ResponseNone {
		handled, err := s.resolveAttendance(ctx, user, kind)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}

	return s.dispatchCommand(ctx, user, msg.Text)
}

// SweepSessions expires idle flows and notifies their owners; the scheduler
// invokes this on its 5-minute cadence.
func (s *ConversationService) SweepSessions(ctx context.Context) error {
	for _, userID := range s.sessions.Sweep(s.now()) {
		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			s.logger.Warn("sweep: user lookup failed", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		s.reply(ctx, user, expiredText())
	}
	return nil
}

func (s *ConversationService) dispatchCommand(ctx context.Context, user *models.User, text string) error {
	kind, arg := models.ParseCommand(text)

	switch kind {
	case models.CommandHelp:
		s.reply(ctx, user, helpText())

	case models.CommandAddSubject:
		draft, err := ParseScheduleSpec(arg)
		if err != nil {
			s.reply(ctx, user, appErrors.FromError(err).Message)
			return nil
		}
		subject, err := s.subjects.Add(ctx, user.ID, draft)
		if err != nil {
			return s.replyServiceError(ctx, user, err)
		}
		s.invalidateReport(ctx, user.ID)
		s.reply(ctx, user, fmt.Sprintf("Added %s, %s %s.", subject.Name, subject.Weekday(), subject.StartTime))

	case models.CommandListSubjects:
		subjects, err := s.subjects.ListActive(ctx, user.ID)
		if err != nil {
			return err
		}
		s.reply(ctx, user, subjectListText(subjects))

	case models.CommandEditSubject:
		return s.beginEdit(ctx, user, arg)

	case models.CommandDeleteSubject:
		return s.beginDelete(ctx, user, arg)

	case models.CommandClearAll:
		return s.beginClear(ctx, user)

	case models.CommandReport:
		report, err := s.subjects.BuildReport(ctx, user, s.threshold)
		if err != nil {
			return err
		}
		s.reply(ctx, user, reportText(report))

	case models.CommandTimezone:
		if arg == "" {
			s.reply(ctx, user, fmt.Sprintf("Your timezone is %s. Send 'timezone <zone>' to change it.", user.Timezone))
			return nil
		}
		if err := s.users.SetTimezone(ctx, user, arg); err != nil {
			s.reply(ctx, user, invalidTimezoneText())
			return nil
		}
		s.reply(ctx, user, fmt.Sprintf("Timezone set to %s.", user.Timezone))

	case models.CommandAlertsOn:
		if err := s.users.SetAlerts(ctx, user, true); err != nil {
			return err
		}
		s.reply(ctx, user, "Low-attendance alerts are on.")

	case models.CommandAlertsOff:
		if err := s.users.SetAlerts(ctx, user, false); err != nil {
			return err
		}
		s.reply(ctx, user, "Low-attendance alerts are off.")

	case models.CommandDeleteAccount:
		if arg != "confirm" {
			s.reply(ctx, user, "This erases your account, subjects, and history. Send 'delete account confirm' to proceed.")
			return nil
		}
		if err := s.users.DeleteAccount(ctx, user); err != nil {
			return err
		}
		s.invalidateReport(ctx, user.ID)
		s.sessions.End(user.ID)
		s.reply(ctx, user, "Your account and all data have been deleted. Goodbye!")

	case models.CommandCancel:
		s.reply(ctx, user, "Nothing to cancel.")

	case models.CommandUnknown:
		s.reply(ctx, user, unknownText())
	}

	return nil
}

func (s *ConversationService) beginEdit(ctx context.Context, user *models.User, name string) error {
	if name == "" {
		s.reply(ctx, user, "Which subject? Use 'edit <name>'.")
		return nil
	}
	open, ok := s.sessions.TryBegin(user.ID, s.now())
	if !ok {
		s.reply(ctx, user, busyText(open))
		return nil
	}
	subject, err := s.subjects.FindByName(ctx, user.ID, name)
	if err != nil {
		s.sessions.End(user.ID)
		if errors.Is(err, appErrors.ErrNotFound) {
			s.reply(ctx, user, fmt.Sprintf("No subject called %q. Send 'list' to see them.", name))
			return nil
		}
		return err
	}
	s.sessions.Put(&models.Session{
		Kind:      models.SessionEdit,
		UserID:    user.ID,
		IssuedAt:  s.now(),
		Stage:     models.EditMenu,
		SubjectID: subject.ID,
	})
	s.reply(ctx, user, editMenuText(subject))
	return nil
}

func (s *ConversationService) beginDelete(ctx context.Context, user *models.User, name string) error {
	if name == "" {
		s.reply(ctx, user, "Which subject? Use 'delete <name>'.")
		return nil
	}
	open, ok := s.sessions.TryBegin(user.ID, s.now())
	if !ok {
		s.reply(ctx, user, busyText(open))
		return nil
	}
	subject, err := s.subjects.FindByName(ctx, user.ID, name)
	if err != nil {
		s.sessions.End(user.ID)
		if errors.Is(err, appErrors.ErrNotFound) {
			s.reply(ctx, user, fmt.Sprintf("No subject called %q.", name))
			return nil
		}
		return err
	}
	s.sessions.Put(&models.Session{
		Kind:      models.SessionDeleteConfirm,
		UserID:    user.ID,
		IssuedAt:  s.now(),
		SubjectID: subject.ID,
	})
	s.reply(ctx, user, deleteConfirmText(subject))
	return nil
}

func (s *ConversationService) beginClear(ctx context.Context, user *models.User) error {
	open, ok := s.sessions.TryBegin(user.ID, s.now())
	if !ok {
		s.reply(ctx, user, busyText(open))
		return nil
	}
	subjects, err := s.subjects.ListActive(ctx, user.ID)
	if err != nil {
		s.sessions.End(user.ID)
		return err
	}
	if len(subjects) == 0 {
		s.sessions.End(user.ID)
		s.reply(ctx, user, "You have no subjects to clear.")
		return nil
	}
	s.sessions.Put(&models.Session{
		Kind:     models.SessionClearConfirm,
		UserID:   user.ID,
		IssuedAt: s.now(),
	})
	s.reply(ctx, user, clearConfirmText(len(subjects)))
	return nil
}

func (s *ConversationService) beginImport(ctx context.Context, user *models.User, mediaURL string) error {
	if s.extractor == nil {
		s.reply(ctx, user, "Timetable import isn't available right now.")
		return nil
	}
	open, ok := s.sessions.TryBegin(user.ID, s.now())
	if !ok {
		s.reply(ctx, user, busyText(open))
		return nil
	}
	drafts, err := s.extractor.Extract(ctx, mediaURL)
	if err != nil {
		s.sessions.End(user.ID)
		s.logger.Warn("timetable extraction failed", zap.String("user_id", user.ID), zap.Error(err))
		s.reply(ctx, user, "I couldn't read that timetable. Try a clearer photo, or add subjects manually.")
		return nil
	}
	if len(drafts) == 0 {
		s.sessions.End(user.ID)
		s.reply(ctx, user, "I couldn't find any classes in that image.")
		return nil
	}
	s.sessions.Put(&models.Session{
		Kind:     models.SessionImportConfirm,
		UserID:   user.ID,
		IssuedAt: s.now(),
		Drafts:   drafts,
	})
	s.reply(ctx, user, importPreviewText(drafts))
	return nil
}

func (s *ConversationService) resolveConfirmation(ctx context.Context, user *models.User, session *models.Session, confirmed bool) error {
	s.sessions.End(user.ID)

	if !confirmed {
		s.reply(ctx, user, "Okay, nothing changed.")
		return nil
	}

	switch session.Kind {
	case models.SessionDeleteConfirm:
		subject, err := s.subjects.FindByID(ctx, session.SubjectID)
		if err != nil {
			return err
		}
		if err := s.subjects.Deactivate(ctx, subject.ID); err != nil {
			return err
		}
		s.invalidateReport(ctx, user.ID)
		s.reply(ctx, user, fmt.Sprintf("%s removed from tracking.", subject.Name))

	case models.SessionClearConfirm:
		count, err := s.subjects.DeactivateAll(ctx, user.ID)
		if err != nil {
			return err
		}
		s.invalidateReport(ctx, user.ID)
		s.reply(ctx, user, fmt.Sprintf("Removed %d subjects from tracking.", count))

	case models.SessionImportConfirm:
		if err := s.subjects.Import(ctx, user.ID, session.Drafts); err != nil {
			return s.replyServiceError(ctx, user, err)
		}
		s.invalidateReport(ctx, user.ID)
		s.reply(ctx, user, fmt.Sprintf("Imported %d subjects. Send 'list' to see them.", len(session.Drafts)))
	}

	return nil
}

func (s *ConversationService) handleWizardInput(ctx context.Context, user *models.User, session *models.Session, text string) error {
	subject, err := s.subjects.FindByID(ctx, session.SubjectID)
	if err != nil {
		s.sessions.End(user.ID)
		if errors.Is(err, appErrors.ErrNotFound) {
			s.reply(ctx, user, "That subject no longer exists.")
			return nil
		}
		return err
	}

	text = strings.TrimSpace(text)

	if session.Stage == models.EditMenu {
		stage, ok := wizardStageForChoice(text)
		if !ok {
			s.reply(ctx, user, editMenuText(subject))
			return nil
		}
		session.Stage = stage
		session.Touch(s.now())
		s.reply(ctx, user, editPromptText(stage))
		return nil
	}

	if err := s.subjects.ApplyEdit(ctx, subject, session.Stage, text); err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Code == appErrors.ErrValidation.Code {
			s.reply(ctx, user, appErr.Message+" "+editPromptText(session.Stage))
			return nil
		}
		return err
	}

	s.invalidateReport(ctx, user.ID)
	session.Stage = models.EditMenu
	session.Touch(s.now())
	s.reply(ctx, user, "Updated.\n"+editMenuText(subject))
	return nil
}

func wizardStageForChoice(text string) (models.EditStage, bool) {
	switch text {
	case "1":
		return models.EditName, true
	case "2":
		return models.EditDay, true
	case "3":
		return models.EditTime, true
	case "4":
		return models.EditAttended, true
	case "5":
		return models.EditTotal, true
	default:
		return "", false
	}
}

// resolveAttendance applies a vocabulary match to the user's latest pending
// prompted record. Returns false when no such record exists so the message
// falls through to command handling.
func (s *ConversationService) resolveAttendance(ctx context.Context, user *models.User, kind models.ResponseKind) (bool, error) {
	record, err := s.records.LatestPendingForUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := s.records.Resolve(ctx, record, kind.Outcome()); err != nil {
		if errors.Is(err, appErrors.ErrRecordFinalized) {
			s.reply(ctx, user, "That class is already recorded.")
			return true, nil
		}
		return false, err
	}

	s.invalidateReport(ctx, user.ID)

	// Re-read the subject so the reply shows post-increment counters.
	subject, err := s.subjects.FindByID(ctx, record.SubjectID)
	if err != nil {
		return false, err
	}
	s.reply(ctx, user, resolutionText(subject, kind.Outcome()))
	return true, nil
}

func (s *ConversationService) replyServiceError(ctx context.Context, user *models.User, err error) error {
	appErr := appErrors.FromError(err)
	if appErr.Code == appErrors.ErrValidation.Code {
		s.reply(ctx, user, appErr.Message)
		return nil
	}
	return err
}

// reply sends best-effort; a delivery failure never aborts message handling.
func (s *ConversationService) reply(ctx context.Context, user *models.User, text string) {
	if text == "" {
		return
	}
	if err := s.dispatcher.Send(ctx, user.Address, text); err != nil {
		s.logger.Warn("reply dispatch failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}
