// Package moderation implements the admin-only operations: removing user
// accounts and deleting messages from history.
package moderation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rmacedo/salachat-server/internal/store"
)

var (
	// ErrForbidden is returned when the requester is not an admin.
	ErrForbidden = errors.New("admin role required")
	// ErrNotFound is returned when the target user or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrLastAdmin is returned when deleting a user would leave no admins.
	ErrLastAdmin = errors.New("cannot delete the last admin")
)

// Notifier pushes moderation outcomes to connected sessions.
type Notifier interface {
	NotifyUsersChanged()
	NotifyMessageDeleted(id int64)
}

// Service performs admin operations over the store and notifies the room.
type Service struct {
	store    store.Store
	notifier Notifier
	logger   zerolog.Logger
}

// NewService creates a moderation service.
func NewService(st store.Store, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		logger:   logger.With().Str("component", "moderation").Logger(),
	}
}

// DeleteUser removes the account named target. The requester must be an
// admin. Messages authored by the target stay in history, and any live
// sessions of the target stay connected until they disconnect themselves.
func (s *Service) DeleteUser(ctx context.Context, requester, target string) error {
	if err := s.requireAdmin(ctx, requester); err != nil {
		return err
	}

	user, err := s.store.GetUserByUsername(ctx, target)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load user %q: %w", target, err)
	}

	if user.Role == store.RoleAdmin {
		admins, err := s.store.CountAdmins(ctx)
		if err != nil {
			return fmt.Errorf("count admins: %w", err)
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}

	if err := s.store.DeleteUser(ctx, target); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete user %q: %w", target, err)
	}

	s.logger.Info().Str("requester", requester).Str("target", target).Msg("user deleted")
	s.notifier.NotifyUsersChanged()
	return nil
}

// DeleteMessage removes a message from history. The requester must be an
// admin. Connected sessions are told to drop the message from their view.
func (s *Service) DeleteMessage(ctx context.Context, requester string, id int64) error {
	if err := s.requireAdmin(ctx, requester); err != nil {
		return err
	}

	if err := s.store.DeleteMessage(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete message %d: %w", id, err)
	}

	s.logger.Info().Str("requester", requester).Int64("message_id", id).Msg("message deleted")
	s.notifier.NotifyMessageDeleted(id)
	return nil
}

func (s *Service) requireAdmin(ctx context.Context, requester string) error {
	user, err := s.store.GetUserByUsername(ctx, requester)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrForbidden
		}
		return fmt.Errorf("load requester %q: %w", requester, err)
	}
	if user.Role != store.RoleAdmin {
		return ErrForbidden
	}
	return nil
}
