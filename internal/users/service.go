package users

import (
	"context"
	"errors"
	"strings"
)

type Service struct {
	Repo Repo

	// FallbackAPIKey is used when the caller has not stored a provider
	// key of their own. Typically the platform key from configuration.
	FallbackAPIKey string
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// UpsertFromAuth persists the user identity from OAuth so pipeline runs
// and documents have a stable owner.
func (s *Service) UpsertFromAuth(ctx context.Context, user User) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(user.ID) == "" || strings.TrimSpace(user.Email) == "" {
		return User{}, errors.New("user id and email are required")
	}
	return s.Repo.Upsert(ctx, user)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

// EnsureExists creates a bare user record for callers seen for the
// first time, so pipeline runs and documents have an owner row.
func (s *Service) EnsureExists(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	user, err := s.Repo.GetByID(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}
	return s.Repo.Upsert(ctx, User{ID: userID, IsOnboarded: true})
}

// ResolveAPIKey returns the provider credential to use for the caller:
// their stored key when present, the platform fallback otherwise.
func (s *Service) ResolveAPIKey(ctx context.Context, userID string) (string, error) {
	if s == nil || s.Repo == nil {
		return "", errors.New("users service not configured")
	}
	user, err := s.Repo.GetByID(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if key := strings.TrimSpace(user.APIKey); key != "" {
		return key, nil
	}
	if s.FallbackAPIKey != "" {
		return s.FallbackAPIKey, nil
	}
	return "", errors.New("no provider api key available")
}

func (s *Service) SaveAPIKey(ctx context.Context, userID, apiKey string) error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	return s.Repo.SetAPIKey(ctx, userID, strings.TrimSpace(apiKey))
}

func (s *Service) MarkOnboarded(ctx context.Context, userID string) error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	return s.Repo.SetOnboarded(ctx, userID, true)
}
