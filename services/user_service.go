package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"wizardAPI/internal/apperror"
	"wizardAPI/internal/logger"
	"wizardAPI/internal/types/user"
	"wizardAPI/repository"
)

type UserService struct {
	repo repository.UserRepository
	log  *logger.Logger
}

func NewUserService(repo repository.UserRepository, log *logger.Logger) *UserService {
	return &UserService{repo: repo, log: log.With("service", "user")}
}

// ResolveUserID maps a verified token subject to the internal user id.
func (s *UserService) ResolveUserID(ctx context.Context, subject string) (uuid.UUID, error) {
	u, err := s.repo.GetByAuthSubject(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, apperror.Unauthorized("User not found")
		}
		return uuid.Nil, err
	}
	return u.ID, nil
}

func (s *UserService) SyncUser(ctx context.Context, req *user.UpsertUserRequest) (*user.User, error) {
	u, err := s.repo.Upsert(ctx, req)
	if err != nil {
		return nil, err
	}
	s.log.Info("user synced", "user_id", u.ID)
	return u, nil
}

// DeleteUser removes the account and, by cascade, its enrollments and
// completion history. Deleting an unknown subject is not an error.
func (s *UserService) DeleteUser(ctx context.Context, subject string) error {
	err := s.repo.DeleteByAuthSubject(ctx, subject)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Warn("delete for unknown user ignored", "auth_subject", subject)
		return nil
	}
	return err
}
