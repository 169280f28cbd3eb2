package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/models"
	appErrors "github.com/AryaDuhan/Whatsapp-BOT/pkg/errors"
)

// Dispatcher delivers one text message to a user's WhatsApp address.
// Delivery failure never rolls back state already committed.
type Dispatcher interface {
	Send(ctx context.Context, address, text string) error
}

type recordRepository interface {
	Ensure(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	SetReminderSent(ctx context.Context, id string) (bool, error)
	SetConfirmationSent(ctx context.Context, id string) (bool, error)
	Resolve(ctx context.Context, id string, outcome models.RecordStatus, autoResolved bool, respondedAt time.Time) error
	ListOverduePending(ctx context.Context, eligibleBefore time.Time, delay time.Duration) ([]models.AttendanceRecord, error)
	FindLatestPendingForUser(ctx context.Context, userID string) (*models.AttendanceRecord, error)
	FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
}

type lifecycleObserver interface {
	ObserveDispatch(kind string, success bool)
	ObserveResolution(status string, auto bool)
}

// RecordService owns the attendance-record lifecycle: pending → terminal,
// with the two one-way notification flags. Both the scheduler and inbound
// replies drive transitions through here; idempotency lives in the
// repository's guarded writes, so interleaved callers cannot double-fire.
type RecordService struct {
	records    recordRepository
	dispatcher Dispatcher
	metrics    lifecycleObserver
	logger     *zap.Logger
}

// NewRecordService constructs the service.
func NewRecordService(records recordRepository, dispatcher Dispatcher, metrics lifecycleObserver, logger *zap.Logger) *RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{records: records, dispatcher: dispatcher, metrics: metrics, logger: logger}
}

// EnsureRecord is the idempotent get-or-create for one occurrence of a
// subject, keyed by the occurrence's calendar date in the user's timezone.
func (s *RecordService) EnsureRecord(ctx context.Context, user *models.User, subject *models.Subject, occurrence time.Time) (*models.AttendanceRecord, error) {
	record := &models.AttendanceRecord{
		UserID:      user.ID,
		SubjectID:   subject.ID,
		ClassDate:   ClassDate(occurrence, user.Timezone),
		ScheduledAt: occurrence.UTC(),
		EndsAt:      occurrence.Add(subject.Duration()).UTC(),
	}
	return s.records.Ensure(ctx, record)
}

// SendReminder dispatches the pre-class reminder once per record. The flag
// flips only after a confirmed send; a failed dispatch leaves it unset so
// the next tick inside the window retries.
func (s *RecordService) SendReminder(ctx context.Context, user *models.User, subject *models.Subject, record *models.AttendanceRecord) error {
	if record.ReminderSent {
		return nil
	}
	if record.Status.Terminal() {
		s.logger.Info("reminder skipped, record already resolved",
			zap.String("record_id", record.ID), zap.String("status", string(record.Status)))
		return nil
	}

	text := reminderText(subject, user.Timezone, record.ScheduledAt)
	if err := s.dispatcher.Send(ctx, user.Address, text); err != nil {
		s.observeDispatch("reminder", false)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reminder dispatch failed")
	}
	s.observeDispatch("reminder", true)

	flipped, err := s.records.SetReminderSent(ctx, record.ID)
	if err != nil {
		return err
	}
	if !flipped {
		// Another pass won the race after our send; harmless, but worth a trace.
		s.logger.Debug("reminder flag already set", zap.String("record_id", record.ID))
	}
	record.ReminderSent = true
	return nil
}

// SendConfirmation dispatches the post-class attendance prompt once per
// record, same flag contract as SendReminder.
func (s *RecordService) SendConfirmation(ctx context.Context, user *models.User, subject *models.Subject, record *models.AttendanceRecord) error {
	if record.ConfirmationSent {
		return nil
	}
	if record.Status.Terminal() {
		s.logger.Info("confirmation skipped, record already resolved",
			zap.String("record_id", record.ID), zap.String("status", string(record.Status)))
		return nil
	}

	if err := s.dispatcher.Send(ctx, user.Address, confirmationText(subject)); err != nil {
		s.observeDispatch("confirmation", false)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "confirmation dispatch failed")
	}
	s.observeDispatch("confirmation", true)

	flipped, err := s.records.SetConfirmationSent(ctx, record.ID)
	if err != nil {
		return err
	}
	if !flipped {
		s.logger.Debug("confirmation flag already set", zap.String("record_id", record.ID))
	}
	record.ConfirmationSent = true
	return nil
}

// Resolve finalises a pending record with the user's outcome and stamps the
// response time. Terminal records return ErrRecordFinalized untouched.
func (s *RecordService) Resolve(ctx context.Context, record *models.AttendanceRecord, outcome models.RecordStatus) error {
	if err := s.records.Resolve(ctx, record.ID, outcome, false, time.Now().UTC()); err != nil {
		if errors.Is(err, appErrors.ErrRecordFinalized) {
			s.logger.Info("resolve ignored, record already terminal", zap.String("record_id", record.ID))
		}
		return err
	}
	record.Status = outcome
	s.observeResolution(outcome, false)
	return nil
}

// AutoResolveOverdue forces absent with autoResolved set, used by the
// overdue pass when a record outlived the response timeout.
func (s *RecordService) AutoResolveOverdue(ctx context.Context, record *models.AttendanceRecord) error {
	if err := s.records.Resolve(ctx, record.ID, models.StatusAbsent, true, time.Now().UTC()); err != nil {
		return err
	}
	record.Status = models.StatusAbsent
	record.AutoResolved = true
	s.observeResolution(models.StatusAbsent, true)
	return nil
}

// ListOverduePending surfaces pending records whose confirmation-eligible
// instant passed more than the timeout ago.
func (s *RecordService) ListOverduePending(ctx context.Context, now time.Time, confirmationDelay, overdueAfter time.Duration) ([]models.AttendanceRecord, error) {
	return s.records.ListOverduePending(ctx, now.Add(-overdueAfter), confirmationDelay)
}

// LatestPendingForUser finds the record an inbound attendance reply applies to.
func (s *RecordService) LatestPendingForUser(ctx context.Context, userID string) (*models.AttendanceRecord, error) {
	return s.records.FindLatestPendingForUser(ctx, userID)
}

func (s *RecordService) observeDispatch(kind string, success bool) {
	if s.metrics != nil {
		s.metrics.ObserveDispatch(kind, success)
	}
}

func (s *RecordService) observeResolution(status models.RecordStatus, auto bool) {
	if s.metrics != nil {
		s.metrics.ObserveResolution(string(status), auto)
	}
}
