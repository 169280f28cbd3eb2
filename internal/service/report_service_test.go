package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/models"
	appErrors "github.com/AryaDuhan/Whatsapp-BOT/pkg/errors"
)

// cacheStub stores marshalled values like the Redis-backed cache does.
type cacheStub struct {
	values map[string][]byte
	gets   int
	sets   int
}

func newCacheStub() *cacheStub {
	return &cacheStub{values: make(map[string][]byte)}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	c.gets++
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.sets++
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	return nil
}

func (c *cacheStub) Delete(ctx context.Context, key string) error {
	delete(c.values, key)
	return nil
}

func reportFixtures(t *testing.T) (*ReportService, *cacheStub, *models.User) {
	t.Helper()
	users := newUserRepoStub()
	subjects := newSubjectRepoStub()
	ctx := context.Background()

	user := &models.User{Address: "911234567890", DisplayName: "Arya", Timezone: "Asia/Kolkata", Stage: models.StageCompleted}
	require.NoError(t, users.Create(ctx, user))
	require.NoError(t, subjects.Create(ctx, &models.Subject{
		UserID: user.ID, Name: "Physics", DayOfWeek: 1, StartTime: "10:00", DurationHours: 1,
		Attended: 6, Total: 10, MassSkipped: 2,
	}))

	cache := newCacheStub()
	svc := NewReportService(NewSubjectService(subjects, nil, nil), NewUserService(users, nil), cache, 75, 10*time.Minute, nil)
	return svc, cache, user
}

func TestReportSummaryCachesResult(t *testing.T) {
	svc, cache, user := reportFixtures(t)
	ctx := context.Background()

	report, err := svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, report.Subjects, 1)
	assert.Equal(t, 60, report.Subjects[0].Percentage)
	assert.Equal(t, 75, report.Subjects[0].PercentageAdjusted)
	assert.Equal(t, 1, cache.sets)

	// Second read comes from cache, not a rebuild.
	again, err := svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, report.GeneratedAt.Unix(), again.GeneratedAt.Unix())
	assert.Equal(t, 1, cache.sets)

	svc.Invalidate(ctx, user.ID)
	_, err = svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets)
}

func TestReportRenderCSV(t *testing.T) {
	svc, _, user := reportFixtures(t)

	data, err := svc.RenderCSV(context.Background(), user.ID)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Subject")
	assert.Contains(t, lines[1], "Physics")
	assert.Contains(t, lines[1], "60%")
	assert.Contains(t, lines[1], "75%")
}

func TestReportRenderPDFProducesDocument(t *testing.T) {
	svc, _, user := reportFixtures(t)

	data, err := svc.RenderPDF(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}
