// Package redis keeps pending OAuth states in Redis so that several
// server instances can share them.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/msomdec/calendar-api/internal/domain"
)

const keyPrefix = "oauth_state:"

// NewClient creates and pings a Redis client with optional password auth.
func NewClient(ctx context.Context, addr, password string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// StateStore implements domain.OAuthStateStore. Entries expire on their own
// through the key TTL.
type StateStore struct {
	rdb *goredis.Client
	now func() time.Time
}

var _ domain.OAuthStateStore = (*StateStore)(nil)

func NewStateStore(rdb *goredis.Client) *StateStore {
	return &StateStore{rdb: rdb, now: time.Now}
}

type stateRecord struct {
	Provider  domain.Provider `json:"provider"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func (s *StateStore) Save(ctx context.Context, state domain.OAuthState) error {
	ttl := state.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("%w: state already expired", domain.ErrInvalidInput)
	}

	payload, err := json.Marshal(stateRecord{Provider: state.Provider, ExpiresAt: state.ExpiresAt})
	if err != nil {
		return fmt.Errorf("encode oauth state: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+state.State, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// Consume reads and deletes the state atomically with GETDEL.
func (s *StateStore) Consume(ctx context.Context, state string) (*domain.OAuthState, error) {
	payload, err := s.rdb.GetDel(ctx, keyPrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("consume oauth state: %w", err)
	}

	var rec stateRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode oauth state: %w", err)
	}
	return &domain.OAuthState{State: state, Provider: rec.Provider, ExpiresAt: rec.ExpiresAt}, nil
}
