package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aoinlabs/storefront-backend/pkg/db/models"
	"github.com/aoinlabs/storefront-backend/pkg/enums"
	pkgerrors "github.com/aoinlabs/storefront-backend/pkg/errors"
	"github.com/aoinlabs/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindAvailableByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Service exposes the cart workflow: every mutation re-derives totals and the
// content fingerprint inside one transaction.
type Service interface {
	Get(ctx context.Context, actor types.Actor) (*View, error)
	AddOrUpdateLine(ctx context.Context, actor types.Actor, input LineInput) (*View, error)
	SetQuantity(ctx context.Context, actor types.Actor, productID uuid.UUID, attrs types.AttributeSelection, quantity int) (*View, error)
	RemoveLine(ctx context.Context, actor types.Actor, productID uuid.UUID, attrs types.AttributeSelection) (*View, error)
	Clear(ctx context.Context, actor types.Actor) error
	Snapshot(ctx context.Context, actor types.Actor) (*types.CartSnapshot, error)
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products productLoader
	lines    *lineLock
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products productLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{repo: repo, tx: tx, products: products, lines: newLineLock()}, nil
}

// LineInput captures the payload for adding or merging a line.
type LineInput struct {
	ProductID  uuid.UUID
	Quantity   int
	Attributes types.AttributeSelection
}

// LineView is a single cart line as returned to callers.
type LineView struct {
	ProductID    uuid.UUID
	Title        string
	Quantity     int
	UnitPrice    decimal.Decimal
	LineSubtotal decimal.Decimal
	Attributes   types.AttributeSelection
	Status       enums.CartLineStatus
}

// View is the cart read model. Subtotal covers only lines with status ok.
type View struct {
	CartID      uuid.UUID
	Currency    enums.Currency
	Lines       []LineView
	Subtotal    decimal.Decimal
	Fingerprint string
}

// Get returns the actor's active cart; an empty view when none exists.
func (s *service) Get(ctx context.Context, actor types.Actor) (*View, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user is required")
	}

	record, err := s.repo.FindActiveByUser(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &View{Currency: enums.CurrencyUSD, Subtotal: decimal.Zero}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	return s.buildView(ctx, record)
}

// AddOrUpdateLine merges the input into the actor's active cart. A line with
// the same product and attribute selection absorbs the quantity; otherwise a
// new line is appended. Quantities stack, so the stock check covers the sum.
func (s *service) AddOrUpdateLine(ctx context.Context, actor types.Actor, input LineInput) (*View, error) {
	if err := s.authorizeMutation(actor); err != nil {
		return nil, err
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be at least 1")
	}

	prod, err := s.loadProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if prod.Attributes != nil && !prod.Attributes.Allows(input.Attributes) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attribute selection not offered by product")
	}

	key := lineKey(actor.UserID, input.ProductID)
	s.lines.lock(key)
	defer s.lines.unlock(key)

	var saved *models.CartRecord
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		record, err := s.findOrCreateActive(ctx, txRepo, actor.UserID)
		if err != nil {
			return err
		}

		attrKey := input.Attributes.Key()
		line := findLine(record.Lines, input.ProductID, attrKey)

		target := input.Quantity
		if line != nil && line.Status == enums.CartLineStatusOK {
			target += line.Quantity
		}
		if target > prod.Stock {
			return stockExceeded(prod, target)
		}

		if line == nil {
			line = &models.CartLine{
				CartID:       record.ID,
				ProductID:    input.ProductID,
				AttributeKey: attrKey,
				Attributes:   input.Attributes,
			}
		}
		line.Quantity = target
		line.UnitPrice = prod.UnitPrice
		line.LineSubtotal = prod.UnitPrice.Mul(decimal.NewFromInt(int64(target)))
		line.Status = enums.CartLineStatusOK
		line.RemovedAt = nil
		if err := txRepo.SaveLine(ctx, line); err != nil {
			return err
		}

		syncLine(record, line)
		saved, err = s.persistTotals(ctx, txRepo, record)
		return err
	}); err != nil {
		return nil, wrapTxErr(err)
	}

	return s.buildView(ctx, saved)
}

// SetQuantity replaces the quantity of an existing line.
func (s *service) SetQuantity(ctx context.Context, actor types.Actor, productID uuid.UUID, attrs types.AttributeSelection, quantity int) (*View, error) {
	if err := s.authorizeMutation(actor); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be at least 1")
	}

	prod, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > prod.Stock {
		return nil, stockExceeded(prod, quantity)
	}

	key := lineKey(actor.UserID, productID)
	s.lines.lock(key)
	defer s.lines.unlock(key)

	var saved *models.CartRecord
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		record, err := txRepo.FindActiveByUser(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "active cart not found")
			}
			return err
		}

		line := findLine(record.Lines, productID, attrs.Key())
		if line == nil || line.Status != enums.CartLineStatusOK {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}

		line.Quantity = quantity
		line.UnitPrice = prod.UnitPrice
		line.LineSubtotal = prod.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
		if err := txRepo.SaveLine(ctx, line); err != nil {
			return err
		}

		syncLine(record, line)
		saved, err = s.persistTotals(ctx, txRepo, record)
		return err
	}); err != nil {
		return nil, wrapTxErr(err)
	}

	return s.buildView(ctx, saved)
}

// RemoveLine soft-removes the matching line; the row is kept for auditing but
// stops counting toward totals immediately.
func (s *service) RemoveLine(ctx context.Context, actor types.Actor, productID uuid.UUID, attrs types.AttributeSelection) (*View, error) {
	if err := s.authorizeMutation(actor); err != nil {
		return nil, err
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	key := lineKey(actor.UserID, productID)
	s.lines.lock(key)
	defer s.lines.unlock(key)

	var saved *models.CartRecord
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		record, err := txRepo.FindActiveByUser(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "active cart not found")
			}
			return err
		}

		line := findLine(record.Lines, productID, attrs.Key())
		if line == nil || line.Status != enums.CartLineStatusOK {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}

		markRemoved(line)
		if err := txRepo.SaveLine(ctx, line); err != nil {
			return err
		}

		syncLine(record, line)
		saved, err = s.persistTotals(ctx, txRepo, record)
		return err
	}); err != nil {
		return nil, wrapTxErr(err)
	}

	return s.buildView(ctx, saved)
}

// Clear soft-removes every line of the active cart. Clearing a cart that does
// not exist is a no-op.
func (s *service) Clear(ctx context.Context, actor types.Actor) error {
	if err := s.authorizeMutation(actor); err != nil {
		return err
	}

	key := lineKey(actor.UserID, uuid.Nil)
	s.lines.lock(key)
	defer s.lines.unlock(key)

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		record, err := txRepo.FindActiveByUser(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if err := txRepo.RemoveAllLines(ctx, record.ID); err != nil {
			return err
		}
		for i := range record.Lines {
			markRemoved(&record.Lines[i])
		}
		_, err = s.persistTotals(ctx, txRepo, record)
		return err
	}); err != nil {
		return wrapTxErr(err)
	}
	return nil
}

// Snapshot builds the pricing snapshot handed to the promotion evaluator and
// the checkout builder.
func (s *service) Snapshot(ctx context.Context, actor types.Actor) (*types.CartSnapshot, error) {
	view, err := s.Get(ctx, actor)
	if err != nil {
		return nil, err
	}
	return snapshotFromView(view), nil
}

func (s *service) authorizeMutation(actor types.Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user is required")
	}
	if !actor.CanMutateCart() {
		return pkgerrors.New(pkgerrors.CodeRoleNotPermitted, "your role cannot modify the cart")
	}
	return nil
}

func (s *service) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	prod, err := s.products.FindAvailableByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return prod, nil
}

func (s *service) findOrCreateActive(ctx context.Context, repo CartRepository, userID uuid.UUID) (*models.CartRecord, error) {
	record, err := repo.FindActiveByUser(ctx, userID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return repo.Create(ctx, &models.CartRecord{
		UserID:   userID,
		Status:   enums.CartStatusActive,
		Currency: enums.CurrencyUSD,
		Subtotal: decimal.Zero,
		Total:    decimal.Zero,
	})
}

// persistTotals recomputes subtotal and fingerprint from the in-memory lines
// and saves the record. The fingerprint changing is what implicitly drops any
// previously applied promotion.
func (s *service) persistTotals(ctx context.Context, repo CartRepository, record *models.CartRecord) (*models.CartRecord, error) {
	snapshot := snapshotFromRecord(record)
	record.Subtotal = snapshot.Subtotal
	record.Total = snapshot.Subtotal
	record.DiscountAmount = decimal.Zero
	record.Fingerprint = snapshot.Fingerprint()
	return repo.Update(ctx, record)
}

func (s *service) buildView(ctx context.Context, record *models.CartRecord) (*View, error) {
	view := &View{
		CartID:      record.ID,
		Currency:    record.Currency,
		Subtotal:    decimal.Zero,
		Fingerprint: record.Fingerprint,
	}

	ids := make([]uuid.UUID, 0, len(record.Lines))
	for _, line := range record.Lines {
		ids = append(ids, line.ProductID)
	}
	catalog, err := s.products.ListByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	// Removed and unavailable lines stay listed for display, but only lines
	// with status ok count toward the subtotal.
	for _, line := range record.Lines {
		lv := LineView{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			LineSubtotal: line.LineSubtotal,
			Attributes:   line.Attributes,
			Status:       line.Status,
		}
		prod, ok := byID[line.ProductID]
		if ok {
			lv.Title = prod.Title
		}
		if lv.Status == enums.CartLineStatusOK && (!ok || !prod.IsActive) {
			// product withdrawn since the line was added
			lv.Status = enums.CartLineStatusUnavailable
		}
		if lv.Status == enums.CartLineStatusOK {
			view.Subtotal = view.Subtotal.Add(line.LineSubtotal)
		}
		view.Lines = append(view.Lines, lv)
	}

	return view, nil
}

func snapshotFromRecord(record *models.CartRecord) *types.CartSnapshot {
	snapshot := &types.CartSnapshot{CartID: record.ID, Subtotal: decimal.Zero}
	for _, line := range record.Lines {
		if line.Status != enums.CartLineStatusOK {
			continue
		}
		snapshot.Items = append(snapshot.Items, types.CartSnapshotItem{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			Attributes:   line.Attributes,
			AttributeKey: line.AttributeKey,
		})
		snapshot.Subtotal = snapshot.Subtotal.Add(line.LineSubtotal)
	}
	return snapshot
}

func snapshotFromView(view *View) *types.CartSnapshot {
	snapshot := &types.CartSnapshot{CartID: view.CartID, Subtotal: decimal.Zero}
	for _, line := range view.Lines {
		if line.Status != enums.CartLineStatusOK {
			continue
		}
		snapshot.Items = append(snapshot.Items, types.CartSnapshotItem{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			Attributes:   line.Attributes,
			AttributeKey: line.Attributes.Key(),
		})
		snapshot.Subtotal = snapshot.Subtotal.Add(line.LineSubtotal)
	}
	return snapshot
}

func findLine(lines []models.CartLine, productID uuid.UUID, attrKey string) *models.CartLine {
	for i := range lines {
		if lines[i].ProductID == productID && lines[i].AttributeKey == attrKey {
			return &lines[i]
		}
	}
	return nil
}

func syncLine(record *models.CartRecord, line *models.CartLine) {
	for i := range record.Lines {
		if record.Lines[i].ProductID == line.ProductID && record.Lines[i].AttributeKey == line.AttributeKey {
			record.Lines[i] = *line
			return
		}
	}
	record.Lines = append(record.Lines, *line)
}

// timeNow is swapped in tests.
var timeNow = time.Now

func markRemoved(line *models.CartLine) {
	now := timeNow()
	line.Status = enums.CartLineStatusRemoved
	line.RemovedAt = &now
}

func stockExceeded(prod *models.Product, requested int) error {
	return pkgerrors.New(pkgerrors.CodeStockExceeded, "Maximum stock limit reached").
		WithDetails(map[string]any{
			"product_id": prod.ID,
			"stock":      prod.Stock,
			"requested":  requested,
		})
}

func wrapTxErr(err error) error {
	var domain *pkgerrors.Error
	if errors.As(err, &domain) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
}
