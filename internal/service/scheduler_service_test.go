package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/models"
)

type schedulerEnv struct {
	svc        *SchedulerService
	users      *userRepoStub
	subjects   *subjectRepoStub
	records    *recordRepoStub
	dispatcher *dispatcherStub
	metrics    *metricsStub
	now        time.Time
}

func newSchedulerEnv(t *testing.T) *schedulerEnv {
	t.Helper()

	users := newUserRepoStub()
	subjects := newSubjectRepoStub()
	records := newRecordRepoStub(subjects)
	dispatcher := &dispatcherStub{}
	metrics := newMetricsStub()

	userSvc := NewUserService(users, nil)
	subjectSvc := NewSubjectService(subjects, nil, nil)
	recordSvc := NewRecordService(records, dispatcher, metrics, nil)

	svc := NewSchedulerService(userSvc, subjectSvc, recordSvc, dispatcher, nil, metrics,
		10*time.Minute, 10*time.Minute, 2*time.Hour, time.Minute, nil)

	env := &schedulerEnv{
		svc:        svc,
		users:      users,
		subjects:   subjects,
		records:    records,
		dispatcher: dispatcher,
		metrics:    metrics,
	}
	svc.now = func() time.Time { return env.now }
	return env
}

func (e *schedulerEnv) seed(t *testing.T) (*models.User, *models.Subject) {
	t.Helper()
	user := &models.User{
		Address:       "911234567890",
		DisplayName:   "Arya",
		Timezone:      "Asia/Kolkata",
		AlertsEnabled: true,
		Stage:         models.StageCompleted,
	}
	require.NoError(t, e.users.Create(context.Background(), user))

	subject := &models.Subject{
		UserID:        user.ID,
		Name:          "Physics",
		DayOfWeek:     int(time.Monday),
		StartTime:     "10:00",
		DurationHours: 1,
	}
	require.NoError(t, e.subjects.Create(context.Background(), subject))
	return user, subject
}

// istAt returns the given Monday clock time in Asia/Kolkata as UTC.
func istAt(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	// 2025-09-01 is a Monday.
	return time.Date(2025, 9, 1, hour, minute, 0, 0, loc).UTC()
}

func TestReminderPassFiresInsideWindow(t *testing.T) {
	env := newSchedulerEnv(t)
	_, subject := env.seed(t)
	ctx := context.Background()

	// 09:50 local, ten minutes before a 10:00 class.
	env.now = istAt(t, 9, 50)
	require.NoError(t, env.svc.RunReminderPass(ctx))

	assert.Contains(t, env.dispatcher.last(), "Reminder: Physics starts at 10:00")

	records, err := env.records.ListOverduePending(ctx, env.now.Add(48*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, subject.ID, records[0].SubjectID)
	assert.True(t, records[0].ReminderSent)
	assert.Equal(t, models.StatusPending, records[0].Status)

	// A second tick inside the window must not re-send.
	env.now = env.now.Add(30 * time.Second)
	require.NoError(t, env.svc.RunReminderPass(ctx))
	assert.Len(t, env.dispatcher.sent, 1)
}

func TestReminderPassQuietOutsideWindow(t *testing.T) {
	env := newSchedulerEnv(t)
	env.seed(t)
	ctx := context.Background()

	env.now = istAt(t, 9, 30)
	require.NoError(t, env.svc.RunReminderPass(ctx))
	assert.Empty(t, env.dispatcher.sent)

	records, err := env.records.ListOverduePending(ctx, env.now.Add(48*time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestConfirmationPassCreatesRecordWhenReminderMissed(t *testing.T) {
	env := newSchedulerEnv(t)
	_, subject := env.seed(t)
	ctx := context.Background()

	// Class 10:00-11:00, confirmation due 11:10.
	env.now = istAt(t, 11, 10)
	require.NoError(t, env.svc.RunConfirmationPass(ctx))

	assert.Contains(t, env.dispatcher.last(), "Did you attend Physics?")

	records, err := env.records.ListOverduePending(ctx, env.now.Add(48*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, subject.ID, records[0].SubjectID)
	assert.True(t, records[0].ConfirmationSent)
	assert.False(t, records[0].ReminderSent)
}

func TestConfirmationRetriesAfterDispatchFailure(t *testing.T) {
	env := newSchedulerEnv(t)
	env.seed(t)
	ctx := context.Background()

	env.now = istAt(t, 11, 10)
	env.dispatcher.failed = true
	require.NoError(t, env.svc.RunConfirmationPass(ctx))

	records, err := env.records.ListOverduePending(ctx, env.now.Add(48*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].ConfirmationSent, "flag must stay unset after a failed send")

	// Next tick inside the window succeeds and flips the flag.
	env.dispatcher.failed = false
	env.now = env.now.Add(30 * time.Second)
	require.NoError(t, env.svc.RunConfirmationPass(ctx))

	records, err = env.records.ListOverduePending(ctx, env.now.Add(48*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].ConfirmationSent)
}

func TestOverduePassAutoResolvesAbsent(t *testing.T) {
	env := newSchedulerEnv(t)
	user, subject := env.seed(t)
	ctx := context.Background()

	classStart := istAt(t, 10, 0)
	record, err := env.records.Ensure(ctx, &models.AttendanceRecord{
		UserID:      user.ID,
		SubjectID:   subject.ID,
		ClassDate:   time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		ScheduledAt: classStart,
		EndsAt:      classStart.Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = env.records.SetConfirmationSent(ctx, record.ID)
	require.NoError(t, err)

	// Confirmation became eligible 11:10; timeout lapses 13:10.
	env.now = istAt(t, 13, 30)
	require.NoError(t, env.svc.RunOverduePass(ctx))

	resolved, err := env.records.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAbsent, resolved.Status)
	assert.True(t, resolved.AutoResolved)

	refreshed, err := env.subjects.FindByID(ctx, subject.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.Total)
	assert.Equal(t, 0, refreshed.Attended)

	assert.Contains(t, env.dispatcher.last(), "marked absent automatically")
	assert.Equal(t, 1, env.metrics.resolutions["absent/true"])
}

func TestOverduePassLeavesFreshRecordsAlone(t *testing.T) {
	env := newSchedulerEnv(t)
	user, subject := env.seed(t)
	ctx := context.Background()

	classStart := istAt(t, 10, 0)
	_, err := env.records.Ensure(ctx, &models.AttendanceRecord{
		UserID:      user.ID,
		SubjectID:   subject.ID,
		ClassDate:   time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		ScheduledAt: classStart,
		EndsAt:      classStart.Add(time.Hour),
	})
	require.NoError(t, err)

	// Only an hour past class end: inside the response window.
	env.now = istAt(t, 12, 0)
	require.NoError(t, env.svc.RunOverduePass(ctx))

	records, err := env.records.ListOverduePending(ctx, env.now.Add(48*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.StatusPending, records[0].Status)
	assert.Empty(t, env.dispatcher.sent)
}

func TestPassSkipsUnregisteredOwners(t *testing.T) {
	env := newSchedulerEnv(t)
	ctx := context.Background()

	user := &models.User{Address: "911111111111", Stage: models.StageCollectingTimezone}
	require.NoError(t, env.users.Create(ctx, user))
	subject := &models.Subject{
		UserID:        user.ID,
		Name:          "Physics",
		DayOfWeek:     int(time.Monday),
		StartTime:     "10:00",
		DurationHours: 1,
	}
	require.NoError(t, env.subjects.Create(ctx, subject))

	env.now = istAt(t, 9, 50)
	require.NoError(t, env.svc.RunReminderPass(ctx))
	assert.Empty(t, env.dispatcher.sent)
}
