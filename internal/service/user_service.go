package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"genstudio/internal/cache"
	apperrors "genstudio/internal/errors"
	"genstudio/internal/model"
	"genstudio/internal/repository"
)

const userCacheTTL = 5 * time.Minute

// UserService exposes read access to accounts.
type UserService interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type userService struct {
	repo  repository.UserRepository
	cache *cache.Client
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client) UserService {
	return &userService{repo: repo, cache: cache}
}

func userCacheKey(id uuid.UUID) string {
	return "user:" + id.String()
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var cached model.User
	if s.cache.GetJSON(ctx, userCacheKey(id), &cached) {
		return &cached, nil
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	_ = s.cache.SetJSON(ctx, userCacheKey(id), user, userCacheTTL)
	return user, nil
}
