package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/models"
	appErrors "github.com/AryaDuhan/Whatsapp-BOT/pkg/errors"
)

const subjectColumns = "id, user_id, name, day_of_week, start_time, duration_hours, total, attended, mass_skipped, holidays, active, created_at, updated_at"

// SubjectRepository persists weekly schedule entries.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs the repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// FindByID fetches one subject.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE id = $1 LIMIT 1", subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

// FindByName resolves a subject by owner and case-insensitive name.
func (r *SubjectRepository) FindByName(ctx context.Context, userID, name string) (*models.Subject, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE user_id = $1 AND LOWER(name) = LOWER($2) AND active = TRUE LIMIT 1", subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, userID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find subject by name: %w", err)
	}
	return &subject, nil
}

// List returns subjects matching the filter, ordered by weekday then start.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.UserID != "" {
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.DayOfWeek != nil {
		where = append(where, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, *filter.DayOfWeek)
	}
	if filter.ActiveOnly {
		where = append(where, "active = TRUE")
	}
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE %s ORDER BY day_of_week, start_time, name",
		subjectColumns, strings.Join(where, " AND "))
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// Create inserts a subject with zeroed counters.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	now := time.Now().UTC()
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	subject.Active = true
	subject.CreatedAt = now
	subject.UpdatedAt = now
	query := `INSERT INTO subjects (id, user_id, name, day_of_week, start_time, duration_hours, total, attended, mass_skipped, holidays, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := r.db.ExecContext(ctx, query, subject.ID, subject.UserID, subject.Name, subject.DayOfWeek, subject.StartTime, subject.DurationHours,
		subject.Total, subject.Attended, subject.MassSkipped, subject.Holidays, subject.Active, subject.CreatedAt, subject.UpdatedAt); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// BulkCreate inserts the confirmed import drafts for a user.
func (r *SubjectRepository) BulkCreate(ctx context.Context, userID string, drafts []models.SubjectDraft) error {
	if len(drafts) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create subjects: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	query := `INSERT INTO subjects (id, user_id, name, day_of_week, start_time, duration_hours, total, attended, mass_skipped, holidays, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, 0, TRUE, $7, $7)`
	for _, draft := range drafts {
		if _, err := tx.ExecContext(ctx, query, uuid.NewString(), userID, draft.Name, draft.DayOfWeek, draft.StartTime, draft.DurationHours, now); err != nil {
			return fmt.Errorf("bulk create subject %q: %w", draft.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create subjects: %w", err)
	}
	committed = true
	return nil
}

// Update persists edited schedule fields and counter overrides.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	query := `UPDATE subjects SET name = $2, day_of_week = $3, start_time = $4, duration_hours = $5, total = $6, attended = $7, mass_skipped = $8, holidays = $9, updated_at = $10
WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, subject.ID, subject.Name, subject.DayOfWeek, subject.StartTime, subject.DurationHours,
		subject.Total, subject.Attended, subject.MassSkipped, subject.Holidays, subject.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes a subject; history is preserved and the entry is
// excluded from future scheduling.
func (r *SubjectRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE subjects SET active = FALSE, updated_at = $2 WHERE id = $1", id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate subject: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

// DeactivateAll soft-deletes every active subject owned by the user.
func (r *SubjectRepository) DeactivateAll(ctx context.Context, userID string) (int, error) {
	result, err := r.db.ExecContext(ctx, "UPDATE subjects SET active = FALSE, updated_at = $2 WHERE user_id = $1 AND active = TRUE", userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deactivate subjects: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate subjects affected: %w", err)
	}
	return int(affected), nil
}
