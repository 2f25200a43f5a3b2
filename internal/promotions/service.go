package promotions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/aoinlabs/storefront-backend/pkg/errors"
	"github.com/aoinlabs/storefront-backend/pkg/logger"
	"github.com/aoinlabs/storefront-backend/pkg/types"
)

type cartReader interface {
	Snapshot(ctx context.Context, actor types.Actor) (*types.CartSnapshot, error)
}

type promotionSessions interface {
	Load(ctx context.Context, cartID uuid.UUID) (*AppliedPromotion, error)
	SaveIfNewest(ctx context.Context, cartID uuid.UUID, applied AppliedPromotion) (bool, error)
	Delete(ctx context.Context, cartID uuid.UUID) error
	NextGeneration(ctx context.Context, cartID uuid.UUID) (int64, error)
}

// Service applies and removes promotion codes against the actor's cart.
type Service interface {
	Apply(ctx context.Context, actor types.Actor, code string) (*AppliedPromotion, error)
	Remove(ctx context.Context, actor types.Actor) error
	RemoveForCart(ctx context.Context, cartID uuid.UUID) error
	Current(ctx context.Context, actor types.Actor) (*AppliedPromotion, error)
}

type service struct {
	cart      cartReader
	evaluator Evaluator
	sessions  promotionSessions
	logg      *logger.Logger
}

// NewService builds the promotion applier.
func NewService(cart cartReader, evaluator Evaluator, sessions promotionSessions, logg *logger.Logger) (Service, error) {
	if cart == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	return &service{cart: cart, evaluator: evaluator, sessions: sessions, logg: logg}, nil
}

// Apply sends the current snapshot to the evaluator and, on success, stores
// the discount against the snapshot's fingerprint. When two applies race, the
// one holding the newest generation wins and the stale response is dropped.
func (s *service) Apply(ctx context.Context, actor types.Actor, code string) (*AppliedPromotion, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, "promotion code is required")
	}

	snapshot, err := s.cart.Snapshot(ctx, actor)
	if err != nil {
		return nil, err
	}
	if snapshot.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, "cannot apply a promotion to an empty cart")
	}

	generation, err := s.sessions.NextGeneration(ctx, snapshot.CartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve promotion generation")
	}

	result, err := s.evaluator.Evaluate(ctx, normalized, snapshot)
	if err != nil {
		return nil, err
	}

	if subtotal := snapshot.Subtotal; result.DiscountAmount.GreaterThan(subtotal) {
		result.DiscountAmount = subtotal
	}

	applied := AppliedPromotion{
		Code:           normalized,
		PromotionID:    result.PromotionID,
		DiscountAmount: result.DiscountAmount,
		ItemDiscounts:  result.ItemDiscounts,
		Fingerprint:    snapshot.Fingerprint(),
		Generation:     generation,
		AppliedAt:      time.Now().UTC(),
	}

	// A newer apply may have finished while this one was in flight. The store
	// rejects the write atomically instead of letting a stale response
	// overwrite the newer session.
	stored, err := s.sessions.SaveIfNewest(ctx, snapshot.CartID, applied)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store promotion session")
	}
	if !stored {
		existing, err := s.sessions.Load(ctx, snapshot.CartID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotion session")
		}
		if existing != nil {
			return existing, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodePromoUnavailable, "Failed to apply promotion code")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"cart_id":    snapshot.CartID.String(),
			"promo_code": normalized,
			"discount":   applied.DiscountAmount.StringFixed(2),
		})
		s.logg.Info(logCtx, "promotion applied")
	}
	return &applied, nil
}

// Remove drops the promotion locally. No evaluator round-trip is needed.
func (s *service) Remove(ctx context.Context, actor types.Actor) error {
	if err := authorize(actor); err != nil {
		return err
	}
	snapshot, err := s.cart.Snapshot(ctx, actor)
	if err != nil {
		return err
	}
	if snapshot.CartID == uuid.Nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, snapshot.CartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete promotion session")
	}
	return nil
}

// RemoveForCart drops the promotion session for a specific cart. Checkout uses
// this after handoff: the cart has already flipped to converted, so a
// snapshot-based Remove would no longer see it.
func (s *service) RemoveForCart(ctx context.Context, cartID uuid.UUID) error {
	if cartID == uuid.Nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete promotion session")
	}
	return nil
}

// Current returns the promotion still valid for the actor's cart. A stored
// promotion whose fingerprint no longer matches the cart is dropped here,
// which is how cart mutations implicitly invalidate discounts.
func (s *service) Current(ctx context.Context, actor types.Actor) (*AppliedPromotion, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user is required")
	}
	snapshot, err := s.cart.Snapshot(ctx, actor)
	if err != nil {
		return nil, err
	}
	if snapshot.CartID == uuid.Nil {
		return nil, nil
	}
	applied, err := s.sessions.Load(ctx, snapshot.CartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotion session")
	}
	if applied == nil {
		return nil, nil
	}
	if applied.Fingerprint != snapshot.Fingerprint() {
		if err := s.sessions.Delete(ctx, snapshot.CartID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate promotion session")
		}
		return nil, nil
	}
	return applied, nil
}

func authorize(actor types.Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user is required")
	}
	if !actor.CanMutateCart() {
		return pkgerrors.New(pkgerrors.CodeRoleNotPermitted, "your role cannot modify the cart")
	}
	return nil
}
