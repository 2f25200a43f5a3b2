package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	cartpkg "github.com/aoinlabs/storefront-backend/internal/cart"
	"github.com/aoinlabs/storefront-backend/internal/promotions"
	"github.com/aoinlabs/storefront-backend/pkg/config"
	"github.com/aoinlabs/storefront-backend/pkg/enums"
	pkgerrors "github.com/aoinlabs/storefront-backend/pkg/errors"
	"github.com/aoinlabs/storefront-backend/pkg/logger"
	"github.com/aoinlabs/storefront-backend/pkg/outbox"
	"github.com/aoinlabs/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartReader interface {
	Snapshot(ctx context.Context, actor types.Actor) (*types.CartSnapshot, error)
}

type promotionReader interface {
	Current(ctx context.Context, actor types.Actor) (*promotions.AppliedPromotion, error)
	RemoveForCart(ctx context.Context, cartID uuid.UUID) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// AppliedDiscount summarizes the promotion included in a handoff.
type AppliedDiscount struct {
	Code        string          `json:"code"`
	PromotionID uuid.UUID       `json:"promotion_id"`
	Amount      decimal.Decimal `json:"amount"`
}

// Handoff is the immutable order request passed downstream. FinalTotal is
// subtotal minus discount, never below zero, plus the flat shipping fee.
type Handoff struct {
	CheckoutID  uuid.UUID                `json:"checkout_id"`
	CartID      uuid.UUID                `json:"cart_id"`
	UserID      uuid.UUID                `json:"user_id"`
	Currency    enums.Currency           `json:"currency"`
	Items       []types.CartSnapshotItem `json:"items"`
	Subtotal    decimal.Decimal          `json:"subtotal"`
	Discount    *AppliedDiscount         `json:"discount,omitempty"`
	ShippingFee decimal.Decimal          `json:"shipping_fee"`
	FinalTotal  decimal.Decimal          `json:"final_total"`
	CreatedAt   time.Time                `json:"created_at"`
}

// Service owns the checkout handoff.
type Service interface {
	State(ctx context.Context, actor types.Actor) (enums.CheckoutState, error)
	Handoff(ctx context.Context, actor types.Actor) (*Handoff, error)
}

type service struct {
	cart        cartReader
	cartStatus  cartpkg.CartRepository
	promos      promotionReader
	tx          txRunner
	events      eventEmitter
	shippingFee decimal.Decimal
	currency    enums.Currency
	logg        *logger.Logger
}

// NewService builds the checkout service.
func NewService(
	cart cartReader,
	cartStatus cartpkg.CartRepository,
	promos promotionReader,
	tx txRunner,
	events eventEmitter,
	cfg config.CheckoutConfig,
	logg *logger.Logger,
) (Service, error) {
	if cart == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if cartStatus == nil {
		return nil, fmt.Errorf("cart status repository required")
	}
	if promos == nil {
		return nil, fmt.Errorf("promotion reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}

	fee := decimal.Zero
	if cfg.ShippingFlatFee != "" {
		parsed, err := decimal.NewFromString(cfg.ShippingFlatFee)
		if err != nil {
			return nil, fmt.Errorf("invalid shipping fee %q: %w", cfg.ShippingFlatFee, err)
		}
		if parsed.IsNegative() {
			return nil, fmt.Errorf("shipping fee cannot be negative")
		}
		fee = parsed
	}
	currency, err := enums.ParseCurrency(cfg.Currency)
	if err != nil {
		currency = enums.CurrencyUSD
	}

	return &service{
		cart:        cart,
		cartStatus:  cartStatus,
		promos:      promos,
		tx:          tx,
		events:      events,
		shippingFee: fee,
		currency:    currency,
		logg:        logg,
	}, nil
}

// State reports where the actor's cart sits in the checkout lifecycle.
func (s *service) State(ctx context.Context, actor types.Actor) (enums.CheckoutState, error) {
	snapshot, err := s.cart.Snapshot(ctx, actor)
	if err != nil {
		return "", err
	}
	if snapshot.IsEmpty() {
		return enums.CheckoutStateEmpty, nil
	}
	return enums.CheckoutStateReady, nil
}

// Handoff freezes the cart into an order request. The cart flips to converted
// and the handoff event is queued in the same transaction, so downstream
// consumers see exactly the totals the buyer saw.
func (s *service) Handoff(ctx context.Context, actor types.Actor) (*Handoff, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user is required")
	}
	if !actor.CanMutateCart() {
		return nil, pkgerrors.New(pkgerrors.CodeRoleNotPermitted, "your role cannot modify the cart")
	}

	snapshot, err := s.cart.Snapshot(ctx, actor)
	if err != nil {
		return nil, err
	}
	if snapshot.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot check out an empty cart")
	}

	applied, err := s.promos.Current(ctx, actor)
	if err != nil {
		return nil, err
	}

	discountAmount := decimal.Zero
	var discount *AppliedDiscount
	if applied != nil {
		discountAmount = applied.DiscountAmount
		discount = &AppliedDiscount{
			Code:        applied.Code,
			PromotionID: applied.PromotionID,
			Amount:      applied.DiscountAmount,
		}
	}

	net := snapshot.Subtotal.Sub(discountAmount)
	if net.IsNegative() {
		net = decimal.Zero
	}

	handoff := &Handoff{
		CheckoutID:  uuid.New(),
		CartID:      snapshot.CartID,
		UserID:      actor.UserID,
		Currency:    s.currency,
		Items:       snapshot.Items,
		Subtotal:    snapshot.Subtotal,
		Discount:    discount,
		ShippingFee: s.shippingFee,
		FinalTotal:  net.Add(s.shippingFee),
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.cartStatus.WithTx(tx)
		if err := txRepo.UpdateStatus(ctx, snapshot.CartID, actor.UserID, enums.CartStatusConverted); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCheckoutHandedOff,
			AggregateType: enums.AggregateCheckout,
			AggregateID:   handoff.CheckoutID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data:          handoff,
			Version:       1,
		})
	}); err != nil {
		var domain *pkgerrors.Error
		if errors.As(err, &domain) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist checkout handoff")
	}

	// best effort: the promotion session is consumed with the cart. The cart is
	// already converted, so the session must be deleted by its cart id rather
	// than through a fresh snapshot, which would no longer find the cart.
	if err := s.promos.RemoveForCart(ctx, snapshot.CartID); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "failed to clear promotion session after handoff")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"checkout_id": handoff.CheckoutID.String(),
			"cart_id":     handoff.CartID.String(),
			"final_total": handoff.FinalTotal.StringFixed(2),
		})
		s.logg.Info(logCtx, "checkout handed off")
	}
	return handoff, nil
}
