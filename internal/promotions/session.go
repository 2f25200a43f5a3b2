package promotions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/aoinlabs/storefront-backend/pkg/redis"
)

// AppliedPromotion is the per-cart promotion session. It records the cart
// fingerprint the discount was computed against; a fingerprint mismatch on a
// later read means the cart changed and the promotion no longer holds.
type AppliedPromotion struct {
	Code           string                     `json:"code"`
	PromotionID    uuid.UUID                  `json:"promotion_id"`
	DiscountAmount decimal.Decimal            `json:"discount_amount"`
	ItemDiscounts  map[string]decimal.Decimal `json:"item_discounts,omitempty"`
	Fingerprint    string                     `json:"fingerprint"`
	Generation     int64                      `json:"generation"`
	AppliedAt      time.Time                  `json:"applied_at"`
}

type sessionBackend interface {
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
	Eval(ctx context.Context, script string, keys []string, args ...any) (any, error)
	PromotionKey(cartID string) string
}

// saveIfNewestScript writes the session only when no session with a higher
// generation is already stored. The check and the write happen in one script
// so two racing applies cannot interleave between them.
const saveIfNewestScript = `
local existing = redis.call('GET', KEYS[1])
if existing then
  local current = cjson.decode(existing)
  if tonumber(current.generation or 0) > tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`

// SessionStore persists applied promotions in Redis with a TTL.
type SessionStore struct {
	backend sessionBackend
	ttl     time.Duration
}

// NewSessionStore builds the store on top of the shared Redis client.
func NewSessionStore(client *redis.Client, ttl time.Duration) (*SessionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &SessionStore{backend: client, ttl: ttl}, nil
}

// Load returns the stored promotion for the cart, or nil when none exists.
func (s *SessionStore) Load(ctx context.Context, cartID uuid.UUID) (*AppliedPromotion, error) {
	raw, err := s.backend.Get(ctx, s.backend.PromotionKey(cartID.String()))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var applied AppliedPromotion
	if err := json.Unmarshal([]byte(raw), &applied); err != nil {
		return nil, err
	}
	return &applied, nil
}

// SaveIfNewest stores the promotion session under the cart key unless a newer
// generation is already present. It reports whether the write happened.
func (s *SessionStore) SaveIfNewest(ctx context.Context, cartID uuid.UUID, applied AppliedPromotion) (bool, error) {
	raw, err := json.Marshal(applied)
	if err != nil {
		return false, err
	}
	res, err := s.backend.Eval(ctx, saveIfNewestScript,
		[]string{s.backend.PromotionKey(cartID.String())},
		string(raw), applied.Generation, s.ttl.Milliseconds())
	if err != nil {
		return false, err
	}
	stored, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result %T", res)
	}
	return stored == 1, nil
}

// Delete drops the stored promotion for the cart.
func (s *SessionStore) Delete(ctx context.Context, cartID uuid.UUID) error {
	return s.backend.Del(ctx, s.backend.PromotionKey(cartID.String()))
}

// NextGeneration hands out a monotonically increasing apply counter per cart.
// Concurrent applies use it to decide which evaluator response wins.
func (s *SessionStore) NextGeneration(ctx context.Context, cartID uuid.UUID) (int64, error) {
	return s.backend.Incr(ctx, s.backend.PromotionKey(cartID.String())+":gen")
}
