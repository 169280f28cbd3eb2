package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/models"
	appErrors "github.com/AryaDuhan/Whatsapp-BOT/pkg/errors"
)

type passObserver interface {
	ObservePass(pass string, duration time.Duration)
	ObservePassError(pass string)
}

// SchedulerService implements the periodic passes the cron runner fires.
// Every pass is window-based and idempotent: it derives the set of due work
// from the clock and the database on each tick, so a missed tick is caught
// by a later one and a duplicate tick finds nothing left to do.
type SchedulerService struct {
	users      *UserService
	subjects   *SubjectService
	records    *RecordService
	dispatcher Dispatcher
	reports    ReportInvalidator
	metrics    passObserver
	logger     *zap.Logger

	reminderLead      time.Duration
	confirmationDelay time.Duration
	overdueAfter      time.Duration
	window            time.Duration

	now func() time.Time
}

// NewSchedulerService constructs the service.
func NewSchedulerService(users *UserService, subjects *SubjectService, records *RecordService, dispatcher Dispatcher,
	reports ReportInvalidator, metrics passObserver, reminderLead, confirmationDelay, overdueAfter, window time.Duration, logger *zap.Logger) *SchedulerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulerService{
		users:             users,
		subjects:          subjects,
		records:           records,
		dispatcher:        dispatcher,
		reports:           reports,
		metrics:           metrics,
		logger:            logger,
		reminderLead:      reminderLead,
		confirmationDelay: confirmationDelay,
		overdueAfter:      overdueAfter,
		window:            window,
		now:               time.Now,
	}
}

// RunReminderPass sends the pre-class reminder for every subject whose next
// start minus the lead falls inside the evaluation window right now.
func (s *SchedulerService) RunReminderPass(ctx context.Context) error {
	now := s.now()
	defer s.observePass("reminder", now)

	return s.eachSubject(ctx, "reminder", func(user *models.User, subject *models.Subject) error {
		next, err := NextOccurrence(subject.Weekday(), subject.StartTime, user.Timezone, now)
		if err != nil {
			return err
		}
		if !s.inWindow(now, next.Add(-s.reminderLead)) {
			return nil
		}
		record, err := s.records.EnsureRecord(ctx, user, subject, next)
		if err != nil {
			return err
		}
		return s.records.SendReminder(ctx, user, subject, record)
	})
}

// RunConfirmationPass sends the post-class attendance prompt once the class
// ended plus the settle delay. It creates the record if the reminder pass
// never ran for that occurrence.
func (s *SchedulerService) RunConfirmationPass(ctx context.Context) error {
	now := s.now()
	defer s.observePass("confirmation", now)

	return s.eachSubject(ctx, "confirmation", func(user *models.User, subject *models.Subject) error {
		last, err := LastOccurrence(subject.Weekday(), subject.StartTime, user.Timezone, now)
		if err != nil {
			return err
		}
		target := last.Add(subject.Duration()).Add(s.confirmationDelay)
		if !s.inWindow(now, target) {
			return nil
		}
		record, err := s.records.EnsureRecord(ctx, user, subject, last)
		if err != nil {
			return err
		}
		return s.records.SendConfirmation(ctx, user, subject, record)
	})
}

// RunOverduePass auto-resolves pending records whose response window has
// lapsed, marking them absent and telling the user what happened.
func (s *SchedulerService) RunOverduePass(ctx context.Context) error {
	now := s.now()
	defer s.observePass("overdue", now)

	overdue, err := s.records.ListOverduePending(ctx, now, s.confirmationDelay, s.overdueAfter)
	if err != nil {
		return fmt.Errorf("list overdue records: %w", err)
	}

	for i := range overdue {
		record := &overdue[i]
		if err := s.autoResolveOne(ctx, record); err != nil {
			s.observePassError("overdue")
			s.logger.Warn("overdue pass: record failed",
				zap.String("record_id", record.ID), zap.Error(err))
		}
	}
	if len(overdue) > 0 {
		s.logger.Info("overdue pass complete", zap.Int("records", len(overdue)))
	}
	return nil
}

func (s *SchedulerService) autoResolveOne(ctx context.Context, record *models.AttendanceRecord) error {
	if err := s.records.AutoResolveOverdue(ctx, record); err != nil {
		if errors.Is(err, appErrors.ErrRecordFinalized) {
			// The user answered between the query and this write.
			return nil
		}
		return err
	}
	if s.reports != nil {
		s.reports.Invalidate(ctx, record.UserID)
	}

	subject, err := s.subjects.FindByID(ctx, record.SubjectID)
	if err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		return err
	}
	// The record is already resolved; the notice is best-effort.
	if err := s.dispatcher.Send(ctx, user.Address, autoResolvedText(subject)); err != nil {
		s.logger.Warn("auto-resolve notice failed", zap.String("record_id", record.ID), zap.Error(err))
	}
	return nil
}

// eachSubject runs fn for every active subject of a registered owner,
// isolating per-item failures so one bad row never starves the rest.
func (s *SchedulerService) eachSubject(ctx context.Context, pass string, fn func(*models.User, *models.Subject) error) error {
	subjects, err := s.subjects.ListAllActive(ctx)
	if err != nil {
		return fmt.Errorf("list subjects for %s pass: %w", pass, err)
	}

	users := make(map[string]*models.User)
	for i := range subjects {
		subject := &subjects[i]

		user, ok := users[subject.UserID]
		if !ok {
			user, err = s.users.FindByID(ctx, subject.UserID)
			if err != nil {
				s.observePassError(pass)
				s.logger.Warn("pass: owner lookup failed",
					zap.String("pass", pass), zap.String("user_id", subject.UserID), zap.Error(err))
				continue
			}
			users[subject.UserID] = user
		}
		if !user.Registered() {
			continue
		}

		if err := fn(user, subject); err != nil {
			s.observePassError(pass)
			s.logger.Warn("pass: subject failed",
				zap.String("pass", pass), zap.String("subject_id", subject.ID), zap.Error(err))
		}
	}
	return nil
}

// inWindow reports whether now lies within the evaluation window of target.
func (s *SchedulerService) inWindow(now, target time.Time) bool {
	diff := now.Sub(target)
	if diff < 0 {
		diff = -diff
	}
	return diff < s.window
}

func (s *SchedulerService) observePass(pass string, started time.Time) {
	if s.metrics != nil {
		s.metrics.ObservePass(pass, s.now().Sub(started))
	}
}

func (s *SchedulerService) observePassError(pass string) {
	if s.metrics != nil {
		s.metrics.ObservePassError(pass)
	}
}
