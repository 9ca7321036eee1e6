package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticket-marketplace/internal/auth"
	"ticket-marketplace/internal/domain"
	"ticket-marketplace/internal/logger"
	"ticket-marketplace/internal/models"
	"ticket-marketplace/internal/policy"
)

type UserDBLayer interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, user models.User) error
	UpdateProfile(ctx context.Context, user models.User) error
	SetRole(ctx context.Context, id string, from, to models.Role, clearFraud bool) (bool, error)
	MarkFraud(ctx context.Context, id string) (bool, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

type EventPublisher interface {
	Publish(topic, key string, payload interface{}) error
}

type UserService struct {
	DB     UserDBLayer
	Events EventPublisher
	Logger *logger.Logger
	Topic  string

	now func() time.Time
}

func NewUserService(db UserDBLayer, events EventPublisher, log *logger.Logger, topic string) *UserService {
	return &UserService{
		DB:     db,
		Events: events,
		Logger: log,
		Topic:  topic,
		now:    time.Now,
	}
}

// EnsureUser resolves a verified principal to the stored account, creating
// it with the default role on first login and refreshing the profile
// fields on later ones. Role and moderation flags are never touched here.
func (s *UserService) EnsureUser(ctx context.Context, principal auth.Principal) (*models.User, error) {
	user, err := s.DB.GetUserByID(ctx, principal.ID)
	if err == nil {
		if user.Name != principal.Name || user.Email != principal.Email || user.PhotoURL != principal.PhotoURL {
			user.Name = principal.Name
			user.Email = principal.Email
			user.PhotoURL = principal.PhotoURL
			if err := s.DB.UpdateProfile(ctx, *user); err != nil {
				s.Logger.Error("USER", fmt.Sprintf("Failed to refresh profile for %s: %v", user.ID, err))
			}
		}
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", principal.ID, err)
	}

	created := models.User{
		ID:        principal.ID,
		Name:      principal.Name,
		Email:     principal.Email,
		PhotoURL:  principal.PhotoURL,
		Role:      models.RoleUser,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	if err := s.DB.CreateUser(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to register user %s: %w", principal.ID, err)
	}

	s.Logger.Info("USER", fmt.Sprintf("Registered %s (%s)", created.ID, created.Email))
	s.publish("registered", created)
	return &created, nil
}

// GetUserByID is the read-only lookup other services use to check vendor
// standing.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.DB.GetUserByID(ctx, id)
}

// List returns every account for the admin table.
func (s *UserService) List(ctx context.Context, actor *models.User) ([]models.User, error) {
	if !policy.Allowed(actor.Role, policy.ActionListUsers) {
		return nil, fmt.Errorf("%w: only admins list users", domain.ErrForbidden)
	}
	return s.DB.ListUsers(ctx)
}

// PromoteToVendor upgrades a regular user to vendor. Any previous fraud
// flag is cleared with the promotion, giving the account a clean slate.
func (s *UserService) PromoteToVendor(ctx context.Context, actor *models.User, id string) error {
	if !policy.Allowed(actor.Role, policy.ActionPromoteUser) {
		return fmt.Errorf("%w: only admins promote users", domain.ErrForbidden)
	}

	target, err := s.DB.GetUserByID(ctx, id)
	if err != nil {
		return fmt.Errorf("user %s: %w", id, err)
	}
	if target.Role != models.RoleUser {
		return fmt.Errorf("%w: only regular users can become vendors, %s is %s", domain.ErrInvalidTransition, id, target.Role)
	}

	ok, err := s.DB.SetRole(ctx, id, models.RoleUser, models.RoleVendor, true)
	if err != nil {
		return fmt.Errorf("failed to promote user %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("%w: user %s changed role concurrently", domain.ErrConflict, id)
	}

	s.Logger.Info("USER", fmt.Sprintf("Promoted %s to vendor by %s", id, actor.ID))
	target.Role = models.RoleVendor
	target.IsFraud = false
	s.publish("promoted_vendor", *target)
	return nil
}

// PromoteToAdmin upgrades a user or vendor to admin.
func (s *UserService) PromoteToAdmin(ctx context.Context, actor *models.User, id string) error {
	if !policy.Allowed(actor.Role, policy.ActionPromoteUser) {
		return fmt.Errorf("%w: only admins promote users", domain.ErrForbidden)
	}

	target, err := s.DB.GetUserByID(ctx, id)
	if err != nil {
		return fmt.Errorf("user %s: %w", id, err)
	}
	if target.Role == models.RoleAdmin {
		return fmt.Errorf("%w: user %s is already an admin", domain.ErrInvalidTransition, id)
	}

	ok, err := s.DB.SetRole(ctx, id, target.Role, models.RoleAdmin, false)
	if err != nil {
		return fmt.Errorf("failed to promote user %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("%w: user %s changed role concurrently", domain.ErrConflict, id)
	}

	s.Logger.Info("USER", fmt.Sprintf("Promoted %s to admin by %s", id, actor.ID))
	target.Role = models.RoleAdmin
	s.publish("promoted_admin", *target)
	return nil
}

// MarkFraud flags a vendor and deactivates the account. The flag is
// one-directional; clearing it only happens through a fresh vendor
// promotion after a demotion, never directly.
func (s *UserService) MarkFraud(ctx context.Context, actor *models.User, id string) error {
	if !policy.Allowed(actor.Role, policy.ActionMarkVendorFraud) {
		return fmt.Errorf("%w: only admins flag vendors", domain.ErrForbidden)
	}

	target, err := s.DB.GetUserByID(ctx, id)
	if err != nil {
		return fmt.Errorf("user %s: %w", id, err)
	}
	if target.Role != models.RoleVendor {
		return fmt.Errorf("%w: only vendors can be flagged as fraud, %s is %s", domain.ErrInvalidTransition, id, target.Role)
	}
	if target.IsFraud {
		return nil
	}

	ok, err := s.DB.MarkFraud(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to flag vendor %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("%w: user %s changed role concurrently", domain.ErrConflict, id)
	}

	s.Logger.Warn("USER", fmt.Sprintf("Vendor %s flagged as fraud by %s", id, actor.ID))
	target.IsFraud = true
	target.IsActive = false
	s.publish("marked_fraud", *target)
	return nil
}

func (s *UserService) publish(eventType string, user models.User) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(s.Topic, user.ID, models.NewUserEvent(eventType, user)); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish user %s event for %s: %v", eventType, user.ID, err))
	}
}
