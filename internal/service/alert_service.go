package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AryaDuhan/Whatsapp-BOT/pkg/jobs"
)

// alertPayload is one consolidated message for one user.
type alertPayload struct {
	Address string
	Text    string
}

// AlertService fans the daily low-attendance digest out through a worker
// queue so one slow gateway call never stalls the whole pass. Each user
// gets at most one message per run, listing every subject under the bar.
type AlertService struct {
	users      *UserService
	subjects   *SubjectService
	dispatcher Dispatcher
	queue      *jobs.Queue
	threshold  int
	logger     *zap.Logger
}

// NewAlertService constructs the service and its queue.
func NewAlertService(users *UserService, subjects *SubjectService, dispatcher Dispatcher, threshold int, cfg jobs.QueueConfig, logger *zap.Logger) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AlertService{
		users:      users,
		subjects:   subjects,
		dispatcher: dispatcher,
		threshold:  threshold,
		logger:     logger,
	}
	s.queue = jobs.NewQueue("low-attendance-alerts", s.deliver, cfg)
	return s
}

// Start launches the queue workers.
func (s *AlertService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *AlertService) Stop() {
	s.queue.Stop()
}

// RunDaily enqueues one digest per opted-in user whose subjects sit below
// the threshold. Returns the number of alerts queued.
func (s *AlertService) RunDaily(ctx context.Context) (int, error) {
	users, err := s.users.ListWithAlerts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list alert users: %w", err)
	}

	queued := 0
	for i := range users {
		user := &users[i]
		subjects, err := s.subjects.ListActive(ctx, user.ID)
		if err != nil {
			s.logger.Warn("alert pass: subject list failed", zap.String("user_id", user.ID), zap.Error(err))
			continue
		}
		rows := LowAttendanceRows(subjects, s.threshold)
		if len(rows) == 0 {
			continue
		}
		job := jobs.Job{
			ID:   uuid.NewString(),
			Type: "low-attendance-digest",
			Payload: alertPayload{
				Address: user.Address,
				Text:    lowAttendanceAlertText(rows, s.threshold),
			},
		}
		if err := s.queue.Enqueue(job); err != nil {
			return queued, fmt.Errorf("enqueue alert for %s: %w", user.ID, err)
		}
		queued++
	}

	s.logger.Info("daily alert pass complete", zap.Int("queued", queued), zap.Int("candidates", len(users)))
	return queued, nil
}

func (s *AlertService) deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(alertPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	return s.dispatcher.Send(ctx, payload.Address, payload.Text)
}
