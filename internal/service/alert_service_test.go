package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/models"
	"github.com/AryaDuhan/Whatsapp-BOT/pkg/jobs"
)

func TestRunDailyAlertsOnlyLowAttendance(t *testing.T) {
	users := newUserRepoStub()
	subjects := newSubjectRepoStub()
	dispatcher := &dispatcherStub{}
	ctx := context.Background()

	atRisk := &models.User{Address: "911111111111", DisplayName: "Arya", Timezone: "Asia/Kolkata", AlertsEnabled: true, Stage: models.StageCompleted}
	safe := &models.User{Address: "922222222222", DisplayName: "Dev", Timezone: "Asia/Kolkata", AlertsEnabled: true, Stage: models.StageCompleted}
	optedOut := &models.User{Address: "933333333333", DisplayName: "Mia", Timezone: "Asia/Kolkata", AlertsEnabled: false, Stage: models.StageCompleted}
	for _, u := range []*models.User{atRisk, safe, optedOut} {
		require.NoError(t, users.Create(ctx, u))
	}

	require.NoError(t, subjects.Create(ctx, &models.Subject{
		UserID: atRisk.ID, Name: "Physics", DayOfWeek: 1, StartTime: "10:00", DurationHours: 1,
		Attended: 5, Total: 10, MassSkipped: 2,
	}))
	require.NoError(t, subjects.Create(ctx, &models.Subject{
		UserID: safe.ID, Name: "Maths", DayOfWeek: 2, StartTime: "09:00", DurationHours: 1,
		Attended: 9, Total: 10,
	}))
	require.NoError(t, subjects.Create(ctx, &models.Subject{
		UserID: optedOut.ID, Name: "Chemistry", DayOfWeek: 3, StartTime: "11:00", DurationHours: 1,
		Attended: 1, Total: 10,
	}))

	svc := NewAlertService(NewUserService(users, nil), NewSubjectService(subjects, nil, nil), dispatcher, 75,
		jobs.QueueConfig{Workers: 1}, nil)
	svc.Start(ctx)
	defer svc.Stop()

	queued, err := svc.RunDaily(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	assert.Eventually(t, func() bool {
		dispatcher.mu.Lock()
		defer dispatcher.mu.Unlock()
		return len(dispatcher.sent) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{atRisk.Address}, dispatcher.to)
	assert.Contains(t, dispatcher.last(), "below 75%")
	assert.Contains(t, dispatcher.last(), "Physics: 50% (5/10)")
	assert.Contains(t, dispatcher.last(), "attend the next 10 classes")
	// The classes-needed figure is spelled out for both counting modes:
	// excluding the two mass bunks the denominator is 8, so 5/8 = 63% and
	// four straight attendances recover the threshold.
	assert.Contains(t, dispatcher.last(), "excluding mass bunks you're at 63% and need 4")
}

func TestLowAttendanceRowsSkipsUncountedSubjects(t *testing.T) {
	subjects := []models.Subject{
		{Name: "Fresh", Total: 0, Attended: 0},
		{Name: "Low", Total: 10, Attended: 5, MassSkipped: 2},
		{Name: "Fine", Total: 10, Attended: 9},
	}
	rows := LowAttendanceRows(subjects, 75)
	require.Len(t, rows, 1)
	assert.Equal(t, "Low", rows[0].Name)
	assert.Equal(t, 50, rows[0].Percentage)
	assert.Equal(t, 10, rows[0].ClassesNeeded)
	assert.Equal(t, 63, rows[0].PercentageAdjusted)
	assert.Equal(t, 4, rows[0].ClassesNeededAdjusted)
}
