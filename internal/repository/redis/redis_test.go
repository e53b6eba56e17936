package redis_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/msomdec/calendar-api/internal/domain"
	"github.com/msomdec/calendar-api/internal/repository/redis"
)

func newTestStore(t *testing.T) *redis.StateStore {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb, err := redis.NewClient(context.Background(), addr, os.Getenv("REDIS_TEST_PASSWORD"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return redis.NewStateStore(rdb)
}

func TestStateStore_ConsumeOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	state := uuid.NewString()

	err := store.Save(ctx, domain.OAuthState{State: state, Provider: domain.ProviderGitHub, ExpiresAt: time.Now().Add(time.Minute)})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Consume(ctx, state)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if got.Provider != domain.ProviderGitHub {
		t.Fatalf("expected provider github, got %q", got.Provider)
	}

	if _, err := store.Consume(ctx, state); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on reuse, got %v", err)
	}
}

func TestStateStore_RejectsExpired(t *testing.T) {
	store := newTestStore(t)

	err := store.Save(context.Background(), domain.OAuthState{State: uuid.NewString(), Provider: domain.ProviderGoogle, ExpiresAt: time.Now().Add(-time.Second)})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
