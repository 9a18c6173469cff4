package users

import "context"

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "user not found" }

type Repo interface {
	Upsert(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, userID string) (User, error)
	SetAPIKey(ctx context.Context, userID, apiKey string) error
	SetOnboarded(ctx context.Context, userID string, onboarded bool) error
}
