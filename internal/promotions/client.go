package promotions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aoinlabs/storefront-backend/pkg/config"
	pkgerrors "github.com/aoinlabs/storefront-backend/pkg/errors"
	"github.com/aoinlabs/storefront-backend/pkg/metrics"
	"github.com/aoinlabs/storefront-backend/pkg/types"
)

// EvaluationResult is the evaluator's verdict for a code against a snapshot.
type EvaluationResult struct {
	PromotionID    uuid.UUID                  `json:"promotion_id"`
	DiscountAmount decimal.Decimal            `json:"discount_amount"`
	ItemDiscounts  map[string]decimal.Decimal `json:"item_discounts,omitempty"`
	Message        string                     `json:"message,omitempty"`
}

// Evaluator asks the pricing backend whether a code applies to a snapshot.
// The backend is the sole authority on validity and discount amounts.
type Evaluator interface {
	Evaluate(ctx context.Context, code string, snapshot *types.CartSnapshot) (*EvaluationResult, error)
}

type evaluationRequest struct {
	PromoCode string          `json:"promo_code"`
	CartItems []evaluatorItem `json:"cart_items"`
}

type evaluatorItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type evaluatorErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// HTTPEvaluator calls the external promotion evaluator over HTTP.
type HTTPEvaluator struct {
	baseURL string
	client  *http.Client
	metrics *metrics.PromotionMetrics
}

// NewHTTPEvaluator builds the evaluator client from configuration.
func NewHTTPEvaluator(cfg config.PromoConfig, promMetrics *metrics.PromotionMetrics) (*HTTPEvaluator, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.EvaluatorURL), "/")
	if base == "" {
		return nil, fmt.Errorf("promotion evaluator url required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPEvaluator{
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
		metrics: promMetrics,
	}, nil
}

// Evaluate submits the code and snapshot; the response carries the discount.
func (e *HTTPEvaluator) Evaluate(ctx context.Context, code string, snapshot *types.CartSnapshot) (*EvaluationResult, error) {
	started := time.Now()
	result, outcome, err := e.evaluate(ctx, code, snapshot)
	e.metrics.ObserveEvaluation(outcome, time.Since(started))
	return result, err
}

func (e *HTTPEvaluator) evaluate(ctx context.Context, code string, snapshot *types.CartSnapshot) (*EvaluationResult, string, error) {
	items := make([]evaluatorItem, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		items = append(items, evaluatorItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.UnitPrice,
		})
	}
	body, err := json.Marshal(evaluationRequest{PromoCode: code, CartItems: items})
	if err != nil {
		return nil, "error", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode evaluation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, "error", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build evaluation request")
	}
	req.Header.Set("Content-Type", "application/json")

	// Evaluator transport failures surface as the service being unavailable,
	// not as the generic network-failure code used for cart mutations.
	res, err := e.client.Do(req)
	if err != nil {
		return nil, "unavailable", pkgerrors.Wrap(pkgerrors.CodePromoUnavailable, err, "promotion evaluator unreachable")
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, "unavailable", pkgerrors.Wrap(pkgerrors.CodePromoUnavailable, err, "read evaluator response")
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		var result EvaluationResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, "error", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode evaluator response")
		}
		if result.DiscountAmount.IsNegative() {
			return nil, "error", pkgerrors.New(pkgerrors.CodeDependency, "evaluator returned negative discount")
		}
		return &result, "applied", nil

	case res.StatusCode >= 400 && res.StatusCode < 500:
		msg := evaluatorMessage(payload)
		if msg == "" {
			msg = "Invalid promotion code"
		}
		return nil, "invalid", pkgerrors.New(pkgerrors.CodePromoInvalid, msg)

	default:
		return nil, "unavailable", pkgerrors.New(pkgerrors.CodePromoUnavailable, "Failed to apply promotion code")
	}
}

func evaluatorMessage(payload []byte) string {
	var body evaluatorErrorBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
