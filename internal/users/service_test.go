package users

import (
	"context"
	"testing"
)

func TestUpsertFromAuthMarksNewThenReturning(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	first, err := svc.UpsertFromAuth(context.Background(), User{ID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !first.IsNewUser {
		t.Fatalf("expected first upsert to mark a new user")
	}

	second, err := svc.UpsertFromAuth(context.Background(), User{ID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.IsNewUser {
		t.Fatalf("expected returning user on second upsert")
	}
}

func TestResolveAPIKeyPrefersStoredKey(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.FallbackAPIKey = "platform-key"

	if _, err := svc.UpsertFromAuth(context.Background(), User{ID: "u1", Email: "u1@example.com"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	key, err := svc.ResolveAPIKey(context.Background(), "u1")
	if err != nil {
		t.Fatalf("resolve without stored key: %v", err)
	}
	if key != "platform-key" {
		t.Fatalf("expected fallback key, got %q", key)
	}

	if err := svc.SaveAPIKey(context.Background(), "u1", "user-key"); err != nil {
		t.Fatalf("save api key: %v", err)
	}
	key, err = svc.ResolveAPIKey(context.Background(), "u1")
	if err != nil {
		t.Fatalf("resolve with stored key: %v", err)
	}
	if key != "user-key" {
		t.Fatalf("expected stored key, got %q", key)
	}
}

func TestResolveAPIKeyFallsBackForUnknownUser(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	svc.FallbackAPIKey = "platform-key"

	key, err := svc.ResolveAPIKey(context.Background(), "missing")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if key != "platform-key" {
		t.Fatalf("expected fallback key, got %q", key)
	}
}
