package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aoinlabs/storefront-backend/api/responses"
	"github.com/aoinlabs/storefront-backend/api/validators"
	promosvc "github.com/aoinlabs/storefront-backend/internal/promotions"
	pkgerrors "github.com/aoinlabs/storefront-backend/pkg/errors"
	"github.com/aoinlabs/storefront-backend/pkg/logger"
)

// PromotionApply validates a code against the evaluator and stores the
// resulting discount for the actor's cart.
func PromotionApply(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotion service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload applyPromotionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		applied, err := svc.Apply(r.Context(), actor, payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPromotionResponse(applied))
	}
}

// PromotionRemove drops the applied promotion without calling the evaluator.
func PromotionRemove(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotion service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Remove(r.Context(), actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

// PromotionCurrent returns the promotion applied to the cart, if it still
// matches the cart's present contents.
func PromotionCurrent(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotion service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		applied, err := svc.Current(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if applied == nil {
			responses.WriteSuccess(w, map[string]any{"promotion": nil})
			return
		}

		responses.WriteSuccess(w, newPromotionResponse(applied))
	}
}

type applyPromotionRequest struct {
	Code string `json:"promo_code" validate:"required,min=1,max=64"`
}

type promotionResponse struct {
	Code           string                     `json:"code"`
	PromotionID    uuid.UUID                  `json:"promotion_id"`
	DiscountAmount decimal.Decimal            `json:"discount_amount"`
	ItemDiscounts  map[string]decimal.Decimal `json:"item_discounts,omitempty"`
	AppliedAt      time.Time                  `json:"applied_at"`
}

func newPromotionResponse(applied *promosvc.AppliedPromotion) promotionResponse {
	if applied == nil {
		return promotionResponse{}
	}
	return promotionResponse{
		Code:           applied.Code,
		PromotionID:    applied.PromotionID,
		DiscountAmount: applied.DiscountAmount,
		ItemDiscounts:  applied.ItemDiscounts,
		AppliedAt:      applied.AppliedAt,
	}
}
