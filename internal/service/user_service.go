package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/models"
	appErrors "github.com/AryaDuhan/Whatsapp-BOT/pkg/errors"
)

type userRepository interface {
	FindByAddress(ctx context.Context, address string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	ListWithAlerts(ctx context.Context) ([]models.User, error)
	Delete(ctx context.Context, id string) error
}

// UserService manages registration and user settings. Users are created on
// first contact and only ever deleted by the explicit cascading command.
type UserService struct {
	users  userRepository
	logger *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(users userRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, logger: logger}
}

// EnsureUser returns the user for an address, creating a fresh registration
// on first contact. The second return value reports whether the user is new.
func (s *UserService) EnsureUser(ctx context.Context, address string) (*models.User, bool, error) {
	user, err := s.users.FindByAddress(ctx, address)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, appErrors.ErrNotFound) {
		return nil, false, err
	}

	user = &models.User{
		Address:       address,
		AlertsEnabled: true,
		Stage:         models.StageCollectingName,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, false, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, true, nil
}

// FindByID fetches a user for the ops API.
func (s *UserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

// HandleRegistrationInput advances an incomplete registration with the
// user's reply and returns the next prompt.
func (s *UserService) HandleRegistrationInput(ctx context.Context, user *models.User, text string) (string, error) {
	text = strings.TrimSpace(text)

	switch user.Stage {
	case models.StageCollectingName:
		if text == "" {
			return welcomeText(), nil
		}
		user.DisplayName = text
		user.Stage = models.StageCollectingTimezone
		if err := s.users.Update(ctx, user); err != nil {
			return "", err
		}
		return askTimezoneText(user.DisplayName), nil

	case models.StageCollectingTimezone:
		if err := ValidateTimezone(text); err != nil {
			// Fail closed: the stage does not advance on a bad zone.
			return invalidTimezoneText(), nil
		}
		user.Timezone = text
		user.Stage = models.StageCompleted
		if err := s.users.Update(ctx, user); err != nil {
			return "", err
		}
		return registrationDoneText(), nil

	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "registration already complete")
	}
}

// SetTimezone updates the user's timezone, failing closed on an invalid
// identifier.
func (s *UserService) SetTimezone(ctx context.Context, user *models.User, timezone string) error {
	if err := ValidateTimezone(timezone); err != nil {
		return err
	}
	user.Timezone = timezone
	return s.users.Update(ctx, user)
}

// SetAlerts toggles the low-attendance alert preference.
func (s *UserService) SetAlerts(ctx context.Context, user *models.User, enabled bool) error {
	user.AlertsEnabled = enabled
	return s.users.Update(ctx, user)
}

// ListWithAlerts feeds the daily low-attendance pass.
func (s *UserService) ListWithAlerts(ctx context.Context) ([]models.User, error) {
	return s.users.ListWithAlerts(ctx)
}

// DeleteAccount removes the user and everything they own.
func (s *UserService) DeleteAccount(ctx context.Context, user *models.User) error {
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", user.ID))
	return nil
}

// ValidateTimezone accepts only resolvable IANA zone identifiers.
func ValidateTimezone(timezone string) error {
	timezone = strings.TrimSpace(timezone)
	if timezone == "" || timezone == "Local" {
		return appErrors.ErrInvalidTimezone
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidTimezone.Code, appErrors.ErrInvalidTimezone.Status, appErrors.ErrInvalidTimezone.Message)
	}
	return nil
}
