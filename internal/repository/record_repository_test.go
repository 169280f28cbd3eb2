package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/models"
	appErrors "github.com/AryaDuhan/Whatsapp-BOT/pkg/errors"
)

func newRecordRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func recordRow(id string, status models.RecordStatus, confirmationSent bool) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "user_id", "subject_id", "class_date", "scheduled_at", "ends_at",
		"status", "reminder_sent", "confirmation_sent", "auto_resolved", "responded_at", "created_at", "updated_at",
	}).AddRow(id, "user-1", "subject-1", now, now, now, string(status), false, confirmationSent, false, nil, now, now)
}

func TestRecordRepositoryResolveAppliesCounters(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE attendance_records SET status").
		WithArgs("record-1", string(models.StatusPresent), false, sqlmock.AnyArg(), sqlmock.AnyArg(), string(models.StatusPending)).
		WillReturnRows(sqlmock.NewRows([]string{"subject_id"}).AddRow("subject-1"))
	mock.ExpectExec("UPDATE subjects SET total = total \\+ 1, attended = attended \\+ 1").
		WithArgs("subject-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Resolve(context.Background(), "record-1", models.StatusPresent, false, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryResolveHolidaySkipsTotal(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE attendance_records SET status").
		WithArgs("record-1", string(models.StatusHoliday), false, sqlmock.AnyArg(), sqlmock.AnyArg(), string(models.StatusPending)).
		WillReturnRows(sqlmock.NewRows([]string{"subject_id"}).AddRow("subject-1"))
	mock.ExpectExec("UPDATE subjects SET holidays = holidays \\+ 1").
		WithArgs("subject-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Resolve(context.Background(), "record-1", models.StatusHoliday, false, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryResolveFinalizedRollsBack(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE attendance_records SET status").
		WithArgs("record-1", string(models.StatusAbsent), true, sqlmock.AnyArg(), sqlmock.AnyArg(), string(models.StatusPending)).
		WillReturnRows(sqlmock.NewRows([]string{"subject_id"}))
	mock.ExpectRollback()

	err := repo.Resolve(context.Background(), "record-1", models.StatusAbsent, true, time.Now().UTC())
	assert.ErrorIs(t, err, appErrors.ErrRecordFinalized)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryResolveRejectsPendingOutcome(t *testing.T) {
	db, _, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	err := repo.Resolve(context.Background(), "record-1", models.StatusPending, false, time.Now().UTC())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRecordRepositorySetFlagGuard(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectExec("UPDATE attendance_records SET reminder_sent = TRUE").
		WithArgs("record-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	flipped, err := repo.SetReminderSent(context.Background(), "record-1")
	require.NoError(t, err)
	assert.True(t, flipped)

	// Second attempt matches zero rows: already set.
	mock.ExpectExec("UPDATE attendance_records SET reminder_sent = TRUE").
		WithArgs("record-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	flipped, err = repo.SetReminderSent(context.Background(), "record-1")
	require.NoError(t, err)
	assert.False(t, flipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryEnsureReturnsExisting(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	classDate := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM attendance_records WHERE subject_id").
		WithArgs("subject-1", classDate).
		WillReturnRows(recordRow("record-1", models.StatusPending, false))

	record, err := repo.Ensure(context.Background(), &models.AttendanceRecord{
		UserID:    "user-1",
		SubjectID: "subject-1",
		ClassDate: classDate,
	})
	require.NoError(t, err)
	assert.Equal(t, "record-1", record.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryFindLatestPending(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM attendance_records WHERE user_id").
		WithArgs("user-1", string(models.StatusPending)).
		WillReturnRows(recordRow("record-7", models.StatusPending, true))

	record, err := repo.FindLatestPendingForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "record-7", record.ID)
	assert.True(t, record.ConfirmationSent)
}
