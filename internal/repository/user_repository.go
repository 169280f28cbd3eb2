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

const userColumns = "id, address, display_name, timezone, alerts_enabled, stage, created_at, updated_at"

// UserRepository persists bot users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByAddress looks a user up by their stable WhatsApp address.
func (r *UserRepository) FindByAddress(ctx context.Context, address string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE address = $1 LIMIT 1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find user by address: %w", err)
	}
	return &user, nil
}

// FindByID fetches a user by primary key.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1 LIMIT 1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Create inserts a new user. First contact starts in collecting-name.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Stage == "" {
		user.Stage = models.StageCollectingName
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	query := `INSERT INTO users (id, address, display_name, timezone, alerts_enabled, stage, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query, user.ID, user.Address, user.DisplayName, user.Timezone, user.AlertsEnabled, user.Stage, user.CreatedAt, user.UpdatedAt); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update persists mutable user fields.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	query := `UPDATE users SET display_name = $2, timezone = $3, alerts_enabled = $4, stage = $5, updated_at = $6 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, user.ID, user.DisplayName, user.Timezone, user.AlertsEnabled, user.Stage, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

// ListWithAlerts returns completed registrations with alerts enabled.
func (r *UserRepository) ListWithAlerts(ctx context.Context) ([]models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE alerts_enabled = TRUE AND stage = $1", userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, models.StageCompleted); err != nil {
		return nil, fmt.Errorf("list users with alerts: %w", err)
	}
	return users, nil
}

// Delete removes the user and cascades over their subjects and records.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete user: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, query := range []string{
		"DELETE FROM attendance_records WHERE user_id = $1",
		"DELETE FROM subjects WHERE user_id = $1",
		"DELETE FROM users WHERE id = $1",
	} {
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("delete user cascade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete user: %w", err)
	}
	committed = true
	return nil
}
