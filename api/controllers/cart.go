package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aoinlabs/storefront-backend/api/middleware"
	"github.com/aoinlabs/storefront-backend/api/responses"
	"github.com/aoinlabs/storefront-backend/api/validators"
	cartsvc "github.com/aoinlabs/storefront-backend/internal/cart"
	promosvc "github.com/aoinlabs/storefront-backend/internal/promotions"
	pkgerrors "github.com/aoinlabs/storefront-backend/pkg/errors"
	"github.com/aoinlabs/storefront-backend/pkg/logger"
	"github.com/aoinlabs/storefront-backend/pkg/types"
)

// CartFetch returns the actor's active cart, or an empty view when none
// exists. When a promotion is still valid for the cart's current contents it
// rides along in the response; a stale one is dropped silently.
func CartFetch(svc cartsvc.Service, promos promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := newCartResponse(view)
		if promos != nil {
			if applied, promoErr := promos.Current(r.Context(), actor); promoErr == nil && applied != nil {
				promo := newPromotionResponse(applied)
				resp.Promotion = &promo
			}
		}

		responses.WriteSuccess(w, resp)
	}
}

// CartAddLine adds a product selection to the cart, merging quantities when
// the same product and attribute selection already exists.
func CartAddLine(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.AddOrUpdateLine(r.Context(), actor, cartsvc.LineInput{
			ProductID:  payload.ProductID,
			Quantity:   payload.Quantity,
			Attributes: payload.Attributes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCartResponse(view))
	}
}

// CartSetQuantity replaces the quantity on an existing line.
func CartSetQuantity(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.SetQuantity(r.Context(), actor, productID, payload.Attributes, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(view))
	}
}

// CartRemoveLine removes one line from the cart.
func CartRemoveLine(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload removeLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.RemoveLine(r.Context(), actor, productID, payload.Attributes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(view))
	}
}

// CartClear empties the actor's cart.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Clear(r.Context(), actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

type addLineRequest struct {
	ProductID  uuid.UUID                `json:"product_id" validate:"required"`
	Quantity   int                      `json:"quantity" validate:"required,min=1"`
	Attributes types.AttributeSelection `json:"attributes,omitempty"`
}

type setQuantityRequest struct {
	Quantity   int                      `json:"quantity" validate:"required,min=1"`
	Attributes types.AttributeSelection `json:"attributes,omitempty"`
}

type removeLineRequest struct {
	Attributes types.AttributeSelection `json:"attributes,omitempty"`
}

type cartResponse struct {
	CartID      uuid.UUID          `json:"cart_id"`
	Currency    string             `json:"currency"`
	Lines       []cartLineResponse `json:"lines"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
	Fingerprint string             `json:"fingerprint"`
	Promotion   *promotionResponse `json:"promotion,omitempty"`
}

type cartLineResponse struct {
	ProductID    uuid.UUID                `json:"product_id"`
	Title        string                   `json:"title"`
	Quantity     int                      `json:"quantity"`
	UnitPrice    decimal.Decimal          `json:"unit_price"`
	LineSubtotal decimal.Decimal          `json:"line_subtotal"`
	Attributes   types.AttributeSelection `json:"attributes,omitempty"`
	Status       string                   `json:"status"`
}

func newCartResponse(view *cartsvc.View) cartResponse {
	if view == nil {
		return cartResponse{Lines: []cartLineResponse{}, Subtotal: decimal.Zero}
	}
	lines := make([]cartLineResponse, 0, len(view.Lines))
	for _, line := range view.Lines {
		lines = append(lines, cartLineResponse{
			ProductID:    line.ProductID,
			Title:        line.Title,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			LineSubtotal: line.LineSubtotal,
			Attributes:   line.Attributes,
			Status:       string(line.Status),
		})
	}
	return cartResponse{
		CartID:      view.CartID,
		Currency:    string(view.Currency),
		Lines:       lines,
		Subtotal:    view.Subtotal,
		Fingerprint: view.Fingerprint,
	}
}

func actorFromRequest(r *http.Request) (types.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return types.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}
