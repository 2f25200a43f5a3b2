package promotions

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type fakeSessionBackend struct {
	data map[string]string
	gen  map[string]int64
}

func newFakeSessionBackend() *fakeSessionBackend {
	return &fakeSessionBackend{data: map[string]string{}, gen: map[string]int64{}}
}

func (f *fakeSessionBackend) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeSessionBackend) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeSessionBackend) Incr(ctx context.Context, key string) (int64, error) {
	f.gen[key]++
	return f.gen[key], nil
}

// Eval mimics the server-side compare-and-set: the write is refused when the
// stored session carries a higher generation than the incoming one.
func (f *fakeSessionBackend) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	payload := args[0].(string)
	incoming := args[1].(int64)
	if existing, ok := f.data[keys[0]]; ok {
		var current AppliedPromotion
		if err := json.Unmarshal([]byte(existing), &current); err != nil {
			return nil, err
		}
		if current.Generation > incoming {
			return int64(0), nil
		}
	}
	f.data[keys[0]] = payload
	return int64(1), nil
}

func (f *fakeSessionBackend) PromotionKey(cartID string) string {
	return "sf:promotion:" + cartID
}

func sessionFixture(code string, generation int64) AppliedPromotion {
	return AppliedPromotion{
		Code:           code,
		PromotionID:    uuid.New(),
		DiscountAmount: decimal.RequireFromString("10.00"),
		Fingerprint:    "fp",
		Generation:     generation,
		AppliedAt:      time.Now().UTC(),
	}
}

func TestSaveIfNewestRejectsStaleGeneration(t *testing.T) {
	t.Parallel()

	backend := newFakeSessionBackend()
	store := &SessionStore{backend: backend, ttl: time.Hour}
	cartID := uuid.New()

	stored, err := store.SaveIfNewest(context.Background(), cartID, sessionFixture("NEWER", 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stored {
		t.Fatal("first save should land")
	}

	// A slower apply holding an older generation finishes last. The write
	// must be refused so the newer session survives.
	stored, err = store.SaveIfNewest(context.Background(), cartID, sessionFixture("OLDER", 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored {
		t.Fatal("stale generation must not overwrite a newer session")
	}

	applied, err := store.Load(context.Background(), cartID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if applied == nil || applied.Code != "NEWER" {
		t.Fatalf("expected NEWER to survive, got %+v", applied)
	}
}

func TestSaveIfNewestAcceptsNewerGeneration(t *testing.T) {
	t.Parallel()

	backend := newFakeSessionBackend()
	store := &SessionStore{backend: backend, ttl: time.Hour}
	cartID := uuid.New()

	if _, err := store.SaveIfNewest(context.Background(), cartID, sessionFixture("FIRST", 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, err := store.SaveIfNewest(context.Background(), cartID, sessionFixture("SECOND", 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stored {
		t.Fatal("newer generation should replace the older session")
	}

	applied, err := store.Load(context.Background(), cartID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if applied == nil || applied.Code != "SECOND" {
		t.Fatalf("expected SECOND, got %+v", applied)
	}
}

func TestLoadMissingSessionReturnsNil(t *testing.T) {
	t.Parallel()

	store := &SessionStore{backend: newFakeSessionBackend(), ttl: time.Hour}
	applied, err := store.Load(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied != nil {
		t.Fatalf("expected nil session, got %+v", applied)
	}
}
