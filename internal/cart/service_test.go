package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aoinlabs/storefront-backend/pkg/db/models"
	"github.com/aoinlabs/storefront-backend/pkg/enums"
	pkgerrors "github.com/aoinlabs/storefront-backend/pkg/errors"
	"github.com/aoinlabs/storefront-backend/pkg/types"
)

func TestAddOrUpdateLineCreatesCartAndLine(t *testing.T) {
	t.Parallel()

	prod := testProduct("19.99", 10)
	repo := newStubCartRepo()
	svc := newTestService(t, repo, prod)
	actor := customerActor()

	view, err := svc.AddOrUpdateLine(context.Background(), actor, LineInput{
		ProductID: prod.ID,
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(view.Lines))
	}
	if !view.Subtotal.Equal(decimal.RequireFromString("39.98")) {
		t.Fatalf("unexpected subtotal %s", view.Subtotal)
	}
	if view.Fingerprint == "" {
		t.Fatal("expected fingerprint to be set")
	}
}

func TestAddOrUpdateLineMergesSameSelection(t *testing.T) {
	t.Parallel()

	prod := testProduct("5.00", 10)
	repo := newStubCartRepo()
	svc := newTestService(t, repo, prod)
	actor := customerActor()
	attrs := types.AttributeSelection{"size": {"M"}}

	if _, err := svc.AddOrUpdateLine(context.Background(), actor, LineInput{ProductID: prod.ID, Quantity: 2, Attributes: attrs}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	view, err := svc.AddOrUpdateLine(context.Background(), actor, LineInput{ProductID: prod.ID, Quantity: 3, Attributes: attrs})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if len(view.Lines) != 1 {
		t.Fatalf("expected merged line, got %d lines", len(view.Lines))
	}
	if view.Lines[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", view.Lines[0].Quantity)
	}
	if !view.Subtotal.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("unexpected subtotal %s", view.Subtotal)
	}
}

func TestAddOrUpdateLineDistinctAttributesStaySeparate(t *testing.T) {
	t.Parallel()

	prod := testProduct("5.00", 10)
	repo := newStubCartRepo()
	svc := newTestService(t, repo, prod)
	actor := customerActor()

	if _, err := svc.AddOrUpdateLine(context.Background(), actor, LineInput{ProductID: prod.ID, Quantity: 1, Attributes: types.AttributeSelection{"size": {"M"}}}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	view, err := svc.AddOrUpdateLine(context.Background(), actor, LineInput{ProductID: prod.ID, Quantity: 1, Attributes: types.AttributeSelection{"size": {"L"}}})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if len(view.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(view.Lines))
	}
}

func TestAddOrUpdateLineStockExceeded(t *testing.T) {
	t.Parallel()

	prod := testProduct("5.00", 3)
	repo := newStubCartRepo()
	svc := newTestService(t, repo, prod)
	actor := customerActor()

	if _, err := svc.AddOrUpdateLine(context.Background(), actor, LineInput{ProductID: prod.ID, Quantity: 2}); err != nil {
		t.Fatalf("first add: %v", err)
	}

	_, err := svc.AddOrUpdateLine(context.Background(), actor, LineInput{ProductID: prod.ID, Quantity: 2})
	if err == nil {
		t.Fatal("expected stock error on merged quantity")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStockExceeded {
		t.Fatalf("unexpected error code: %v", err)
	}

	// failed merge must not change the stored quantity
	view, err := svc.Get(context.Background(), actor)
	if err != nil {
		t.Fatalf("get after failure: %v", err)
	}
	if view.Lines[0].Quantity != 2 {
		t.Fatalf("expected quantity 2 after rejected merge, got %d", view.Lines[0].Quantity)
	}
}

func TestAddOrUpdateLineInvalidQuantity(t *testing.T) {
	t.Parallel()

	prod := testProduct("5.00", 3)
	svc := newTestService(t, newStubCartRepo(), prod)

	_, err := svc.AddOrUpdateLine(context.Background(), customerActor(), LineInput{ProductID: prod.ID, Quantity: 0})
	if err == nil {
		t.Fatal("expected invalid quantity error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidQuantity {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestMerchantCannotMutate(t *testing.T) {
	t.Parallel()

	prod := testProduct("5.00", 3)
	svc := newTestService(t, newStubCartRepo(), prod)
	merchant := types.Actor{UserID: uuid.New(), Role: enums.RoleMerchant}

	_, err := svc.AddOrUpdateLine(context.Background(), merchant, LineInput{ProductID: prod.ID, Quantity: 1})
	if err == nil {
		t.Fatal("expected role error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeRoleNotPermitted {
		t.Fatalf("unexpected error code: %v", err)
	}

	if err := svc.Clear(context.Background(), merchant); err == nil {
		t.Fatal("expected role error on clear")
	}
}

func TestSetQuantityReplacesValue(t *testing.T) {
	t.Parallel()

	prod := testProduct("10.00", 10)
	repo := newStubCartRepo()
	svc := newTestService(t, repo, prod)
	actor := customerActor()

	if _, err := svc.AddOrUpdateLine(context.Background(), actor, LineInput{ProductID: prod.ID, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	view, err := svc.SetQuantity(context.Background(), actor, prod.ID, nil, 7)
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if view.Lines[0].Quantity != 7 {
		t.Fatalf("expected quantity 7, got %d", view.Lines[0].Quantity)
	}
	if !view.Subtotal.Equal(decimal.RequireFromString("70.00")) {
		t.Fatalf("unexpected subtotal %s", view.Subtotal)
	}
}

func TestSetQuantityBounds(t *testing.T) {
	t.Parallel()

	prod := testProduct("10.00", 5)
	repo := newStubCartRepo()
	svc := newTestService(t, repo, prod)
	actor := customerActor()

	if _, err := svc.AddOrUpdateLine(context.Background(), actor, LineInput{ProductID: prod.ID, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := svc.SetQuantity(context.Background(), actor, prod.ID, nil, 0); err == nil {
		t.Fatal("expected invalid quantity error")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidQuantity {
		t.Fatalf("unexpected error code: %v", err)
	}

	if _, err := svc.SetQuantity(context.Background(), actor, prod.ID, nil, 6); err == nil {
		t.Fatal("expected stock error")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStockExceeded {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestRemoveLineDropsFromSubtotal(t *testing.T) {
	t.Parallel()

	prod := testProduct("10.00", 10)
	repo := newStubCartRepo()
	svc := newTestService(t, repo, prod)
	actor := customerActor()

	if _, err := svc.AddOrUpdateLine(context.Background(), actor, LineInput{ProductID: prod.ID, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	before, _ := svc.Get(context.Background(), actor)

	view, err := svc.RemoveLine(context.Background(), actor, prod.ID, nil)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(view.Lines) != 1 {
		t.Fatalf("removed line should stay listed, got %d lines", len(view.Lines))
	}
	if view.Lines[0].Status != enums.CartLineStatusRemoved {
		t.Fatalf("expected status removed, got %s", view.Lines[0].Status)
	}
	if !view.Subtotal.IsZero() {
		t.Fatalf("removed line must not contribute to subtotal, got %s", view.Subtotal)
	}
	if view.Fingerprint == before.Fingerprint {
		t.Fatal("fingerprint should change when a line is removed")
	}
}

func TestRemoveLineMissing(t *testing.T) {
	t.Parallel()

	prod := testProduct("10.00", 10)
	repo := newStubCartRepo()
	svc := newTestService(t, repo, prod)
	actor := customerActor()

	if _, err := svc.AddOrUpdateLine(context.Background(), actor, LineInput{ProductID: prod.ID, Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := svc.RemoveLine(context.Background(), actor, uuid.New(), nil)
	if err == nil {
		t.Fatal("expected not found error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestClearEmptiesCart(t *testing.T) {
	t.Parallel()

	prod := testProduct("10.00", 10)
	repo := newStubCartRepo()
	svc := newTestService(t, repo, prod)
	actor := customerActor()

	if _, err := svc.AddOrUpdateLine(context.Background(), actor, LineInput{ProductID: prod.ID, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Clear(context.Background(), actor); err != nil {
		t.Fatalf("clear: %v", err)
	}

	view, err := svc.Get(context.Background(), actor)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for _, line := range view.Lines {
		if line.Status != enums.CartLineStatusRemoved {
			t.Fatalf("expected every line removed, got %s", line.Status)
		}
	}
	if !view.Subtotal.IsZero() {
		t.Fatalf("expected zero subtotal, got %s", view.Subtotal)
	}
}

func TestClearWithoutCartIsNoop(t *testing.T) {
	t.Parallel()

	prod := testProduct("10.00", 10)
	svc := newTestService(t, newStubCartRepo(), prod)

	if err := svc.Clear(context.Background(), customerActor()); err != nil {
		t.Fatalf("expected noop, got %v", err)
	}
}

func TestFingerprintStableAcrossGets(t *testing.T) {
	t.Parallel()

	prod := testProduct("10.00", 10)
	repo := newStubCartRepo()
	svc := newTestService(t, repo, prod)
	actor := customerActor()

	if _, err := svc.AddOrUpdateLine(context.Background(), actor, LineInput{ProductID: prod.ID, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	first, _ := svc.Get(context.Background(), actor)
	second, _ := svc.Get(context.Background(), actor)
	if first.Fingerprint != second.Fingerprint {
		t.Fatal("fingerprint must be stable for unchanged carts")
	}
}

func TestUnavailableProductExcludedFromSubtotal(t *testing.T) {
	t.Parallel()

	prod := testProduct("10.00", 10)
	repo := newStubCartRepo()
	loader := &stubProductLoader{products: map[uuid.UUID]*models.Product{prod.ID: prod}}
	svc := newTestServiceWithLoader(t, repo, loader)
	actor := customerActor()

	if _, err := svc.AddOrUpdateLine(context.Background(), actor, LineInput{ProductID: prod.ID, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	prod.IsActive = false
	view, err := svc.Get(context.Background(), actor)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(view.Lines) != 1 {
		t.Fatalf("expected line kept, got %d", len(view.Lines))
	}
	if view.Lines[0].Status != enums.CartLineStatusUnavailable {
		t.Fatalf("expected unavailable status, got %s", view.Lines[0].Status)
	}
	if !view.Subtotal.IsZero() {
		t.Fatalf("unavailable line must not count, subtotal %s", view.Subtotal)
	}
}

func customerActor() types.Actor {
	return types.Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
}

func testProduct(price string, stock int) *models.Product {
	return &models.Product{
		ID:        uuid.New(),
		SKU:       "SKU-1",
		Title:     "Test Product",
		UnitPrice: decimal.RequireFromString(price),
		Currency:  enums.CurrencyUSD,
		Stock:     stock,
		IsActive:  true,
	}
}

func newTestService(t *testing.T, repo CartRepository, prods ...*models.Product) Service {
	t.Helper()
	loader := &stubProductLoader{products: map[uuid.UUID]*models.Product{}}
	for _, p := range prods {
		loader.products[p.ID] = p
	}
	return newTestServiceWithLoader(t, repo, loader)
}

func newTestServiceWithLoader(t *testing.T, repo CartRepository, loader *stubProductLoader) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, loader)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

// stubCartRepo keeps a single cart in memory, cloning on read so callers
// mutating the returned record do not leak into stored state until Update.
type stubCartRepo struct {
	record *models.CartRecord
}

func newStubCartRepo() *stubCartRepo {
	return &stubCartRepo{}
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) CartRepository { return s }

func (s *stubCartRepo) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	if s.record == nil || s.record.UserID != userID || s.record.Status != enums.CartStatusActive {
		return nil, gorm.ErrRecordNotFound
	}
	return s.clone(), nil
}

func (s *stubCartRepo) FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.CartRecord, error) {
	if s.record == nil || s.record.ID != id || s.record.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.clone(), nil
}

func (s *stubCartRepo) Create(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error) {
	record.ID = uuid.New()
	s.record = record
	return s.clone(), nil
}

func (s *stubCartRepo) Update(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error) {
	lines := s.record.Lines
	stored := *record
	stored.Lines = lines
	for _, line := range record.Lines {
		replaceStored(&stored, line)
	}
	s.record = &stored
	return s.clone(), nil
}

func (s *stubCartRepo) UpdateStatus(ctx context.Context, id, userID uuid.UUID, status enums.CartStatus) error {
	if s.record != nil && s.record.ID == id && s.record.UserID == userID {
		s.record.Status = status
	}
	return nil
}

func (s *stubCartRepo) SaveLine(ctx context.Context, line *models.CartLine) error {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	if s.record != nil && s.record.ID == line.CartID {
		replaceStored(s.record, *line)
	}
	return nil
}

func (s *stubCartRepo) RemoveAllLines(ctx context.Context, cartID uuid.UUID) error {
	if s.record == nil || s.record.ID != cartID {
		return nil
	}
	for i := range s.record.Lines {
		s.record.Lines[i].Status = enums.CartLineStatusRemoved
	}
	return nil
}

func (s *stubCartRepo) clone() *models.CartRecord {
	if s.record == nil {
		return nil
	}
	copied := *s.record
	copied.Lines = append([]models.CartLine(nil), s.record.Lines...)
	return &copied
}

func replaceStored(record *models.CartRecord, line models.CartLine) {
	for i := range record.Lines {
		if record.Lines[i].ProductID == line.ProductID && record.Lines[i].AttributeKey == line.AttributeKey {
			record.Lines[i] = line
			return
		}
	}
	record.Lines = append(record.Lines, line)
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubProductLoader struct {
	products map[uuid.UUID]*models.Product
}

func (s *stubProductLoader) FindAvailableByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	prod, ok := s.products[id]
	if !ok || !prod.IsActive || prod.IsDeleted {
		return nil, gorm.ErrRecordNotFound
	}
	return prod, nil
}

func (s *stubProductLoader) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	for _, id := range ids {
		if prod, ok := s.products[id]; ok && !prod.IsDeleted {
			rows = append(rows, *prod)
		}
	}
	return rows, nil
}
