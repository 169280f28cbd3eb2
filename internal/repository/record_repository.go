package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/models"
	appErrors "github.com/AryaDuhan/Whatsapp-BOT/pkg/errors"
)

const recordColumns = "id, user_id, subject_id, class_date, scheduled_at, ends_at, status, reminder_sent, confirmation_sent, auto_resolved, responded_at, created_at, updated_at"

// RecordRepository persists attendance records. The (subject_id, class_date)
// unique index backs the idempotent get-or-create.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs the repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Ensure returns the record for (subject, calendar date), creating it in
// pending when absent. Creation races resolve through ON CONFLICT DO
// NOTHING followed by a re-select, so concurrent passes converge on one row.
func (r *RecordRepository) Ensure(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	existing, err := r.find(ctx, record.SubjectID, record.ClassDate)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, appErrors.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Status = models.StatusPending
	record.CreatedAt = now
	record.UpdatedAt = now
	query := `INSERT INTO attendance_records (id, user_id, subject_id, class_date, scheduled_at, ends_at, status, reminder_sent, confirmation_sent, auto_resolved, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, FALSE, FALSE, $8, $9)
ON CONFLICT (subject_id, class_date) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, record.ID, record.UserID, record.SubjectID, record.ClassDate,
		record.ScheduledAt, record.EndsAt, record.Status, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert attendance record: %w", err)
	}

	return r.find(ctx, record.SubjectID, record.ClassDate)
}

func (r *RecordRepository) find(ctx context.Context, subjectID string, classDate time.Time) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_records WHERE subject_id = $1 AND class_date = $2 LIMIT 1", recordColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, subjectID, classDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find attendance record: %w", err)
	}
	return &record, nil
}

// FindByID fetches one record.
func (r *RecordRepository) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_records WHERE id = $1 LIMIT 1", recordColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find attendance record by id: %w", err)
	}
	return &record, nil
}

// SetReminderSent flips the reminder flag. Already-set flags are a no-op;
// the boolean result reports whether this call performed the flip.
func (r *RecordRepository) SetReminderSent(ctx context.Context, id string) (bool, error) {
	return r.setFlag(ctx, id, "reminder_sent")
}

// SetConfirmationSent flips the confirmation flag, same contract as
// SetReminderSent.
func (r *RecordRepository) SetConfirmationSent(ctx context.Context, id string) (bool, error) {
	return r.setFlag(ctx, id, "confirmation_sent")
}

func (r *RecordRepository) setFlag(ctx context.Context, id, column string) (bool, error) {
	query := fmt.Sprintf("UPDATE attendance_records SET %s = TRUE, updated_at = $2 WHERE id = $1 AND %s = FALSE", column, column)
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set %s: %w", column, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set %s affected: %w", column, err)
	}
	return affected > 0, nil
}

// Resolve transitions a pending record to a terminal outcome and applies the
// counter increments to the owning subject in the same transaction. A record
// already in a terminal state returns ErrRecordFinalized and leaves both the
// record and the counters untouched.
func (r *RecordRepository) Resolve(ctx context.Context, id string, outcome models.RecordStatus, autoResolved bool, respondedAt time.Time) error {
	if !outcome.Terminal() {
		return appErrors.Clone(appErrors.ErrValidation, "outcome must be terminal")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin resolve: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var subjectID string
	query := `UPDATE attendance_records SET status = $2, auto_resolved = $3, responded_at = $4, updated_at = $5
WHERE id = $1 AND status = $6 RETURNING subject_id`
	err = tx.QueryRowxContext(ctx, query, id, outcome, autoResolved, respondedAt, time.Now().UTC(), models.StatusPending).Scan(&subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrRecordFinalized
		}
		return fmt.Errorf("resolve record: %w", err)
	}

	var increment string
	switch outcome {
	case models.StatusPresent:
		increment = "total = total + 1, attended = attended + 1"
	case models.StatusAbsent:
		increment = "total = total + 1"
	case models.StatusMassSkipped:
		increment = "total = total + 1, mass_skipped = mass_skipped + 1"
	case models.StatusHoliday:
		// Holidays never enter total or either percentage.
		increment = "holidays = holidays + 1"
	}
	counterQuery := fmt.Sprintf("UPDATE subjects SET %s, updated_at = $2 WHERE id = $1", increment)
	if _, err := tx.ExecContext(ctx, counterQuery, subjectID, time.Now().UTC()); err != nil {
		return fmt.Errorf("apply counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit resolve: %w", err)
	}
	committed = true
	return nil
}

// ListOverduePending returns pending records whose confirmation-eligible
// instant (class end + delay) is older than the cutoff.
func (r *RecordRepository) ListOverduePending(ctx context.Context, eligibleBefore time.Time, delay time.Duration) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_records WHERE status = $1 AND ends_at < $2", recordColumns)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, models.StatusPending, eligibleBefore.Add(-delay)); err != nil {
		return nil, fmt.Errorf("list overdue pending: %w", err)
	}
	return records, nil
}

// FindLatestPendingForUser returns the most recent pending record awaiting
// the user's outcome response, if any.
func (r *RecordRepository) FindLatestPendingForUser(ctx context.Context, userID string) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_records WHERE user_id = $1 AND status = $2 AND confirmation_sent = TRUE ORDER BY scheduled_at DESC LIMIT 1", recordColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, userID, models.StatusPending); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find pending record: %w", err)
	}
	return &record, nil
}
