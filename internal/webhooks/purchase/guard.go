package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grupofy/grupofy-backend/pkg/redis"
)

// IdempotencyGuard short-circuits duplicate webhook deliveries before they
// touch the database. It is an optimization on top of the transaction_id
// unique constraint, not the source of truth.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether the transaction was already seen, marking it
// as seen otherwise.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, transactionID string) (bool, error) {
	if transactionID == "" {
		return false, errors.New("transaction id is required")
	}
	key := g.store.IdempotencyKey(g.scope, transactionID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release drops the mark so a failed ingestion can be retried.
func (g *IdempotencyGuard) Release(ctx context.Context, transactionID string) error {
	if transactionID == "" {
		return errors.New("transaction id is required")
	}
	key := g.store.IdempotencyKey(g.scope, transactionID)
	return g.store.Del(ctx, key)
}
