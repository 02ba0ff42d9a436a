package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/commerce-backend/models"
	"github.com/storefront/commerce-backend/repository"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ---- fakes ----

// fakeProductRepo keeps stock in memory behind a mutex so the conditional
// decrement behaves like the store's atomic update.
type fakeProductRepo struct {
	mu           sync.Mutex
	products     map[string]*models.Product
	reserveErr   map[string]error
	releaseCalls []string
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{
		products:   make(map[string]*models.Product),
		reserveErr: make(map[string]error),
	}
}

func (f *fakeProductRepo) add(name string, price float64, stock int) string {
	oid := primitive.NewObjectID()
	f.products[oid.Hex()] = &models.Product{ID: oid, Name: name, Price: price, Stock: stock}
	return oid.Hex()
}

func (f *fakeProductRepo) stockOf(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

func (f *fakeProductRepo) ReserveStock(ctx context.Context, id string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reserveErr[id]; err != nil {
		return err
	}
	p, ok := f.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Stock < quantity {
		return repository.ErrInsufficientStock
	}
	p.Stock -= quantity
	return nil
}

func (f *fakeProductRepo) ReleaseStock(ctx context.Context, id string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Stock += quantity
	f.releaseCalls = append(f.releaseCalls, id)
	return nil
}

func (f *fakeProductRepo) FindByID(ctx context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProductRepo) Find(ctx context.Context, category string, limit, skip int) ([]*models.Product, error) {
	return nil, nil
}
func (f *fakeProductRepo) FindAll(ctx context.Context) ([]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Product, 0, len(f.products))
	for _, p := range f.products {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeProductRepo) Categories(ctx context.Context) ([]string, error)    { return nil, nil }
func (f *fakeProductRepo) Create(ctx context.Context, p *models.Product) error { return nil }
func (f *fakeProductRepo) Update(ctx context.Context, id string, u map[string]interface{}) error {
	return nil
}
func (f *fakeProductRepo) Delete(ctx context.Context, id string) error          { return nil }
func (f *fakeProductRepo) SetStock(ctx context.Context, id string, s int) error { return nil }

type fakeCartRepo struct {
	mu       sync.Mutex
	cart     *models.Cart
	clearErr error
	cleared  bool
}

func (f *fakeCartRepo) Get(ctx context.Context, userID string) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cart == nil {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	cp := *f.cart
	cp.Items = append([]models.CartItem(nil), f.cart.Items...)
	return &cp, nil
}

func (f *fakeCartRepo) Save(ctx context.Context, cart *models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart.RecomputeTotal()
	f.cart = cart
	return nil
}

func (f *fakeCartRepo) Clear(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = true
	if f.cart != nil {
		f.cart.Items = []models.CartItem{}
		f.cart.TotalAmount = 0
	}
	return nil
}

type fakeOrderRepo struct {
	mu        sync.Mutex
	createErr error
	created   []*models.Order
	statuses  map[uuid.UUID]models.OrderStatus
	payments  map[uuid.UUID]models.PaymentStatus
	completed []models.Order
	between   []models.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		statuses: make(map[uuid.UUID]models.OrderStatus),
		payments: make(map[uuid.UUID]models.PaymentStatus),
	}
}

func (f *fakeOrderRepo) CreateWithItems(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	order.ID = uuid.New()
	order.CreatedAt = time.Now().UTC()
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	f.created = append(f.created, order)
	return nil
}

func (f *fakeOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.created {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrderRepo) FindByIDAndUserID(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	o, err := f.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrderRepo) FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.created {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return nil
}

func (f *fakeOrderRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[id] = status
	return nil
}

func (f *fakeOrderRepo) FindCompleted(ctx context.Context, start, end *time.Time) ([]models.Order, error) {
	return f.completed, nil
}
func (f *fakeOrderRepo) FindBetween(ctx context.Context, start, end *time.Time) ([]models.Order, error) {
	return f.between, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published [][]byte
}

func (f *fakePublisher) Publish(ctx context.Context, key string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, message)
	return nil
}

// ---- helpers ----

var testAddress = models.ShippingAddress{
	Address:    "1 Main St",
	City:       "Springfield",
	PostalCode: "12345",
	Country:    "US",
}

func newPlacementFixture() (*OrderService, *fakeProductRepo, *fakeCartRepo, *fakeOrderRepo, *fakePublisher) {
	productRepo := newFakeProductRepo()
	cartRepo := &fakeCartRepo{}
	orderRepo := newFakeOrderRepo()
	publisher := &fakePublisher{}
	svc := NewOrderService(orderRepo, cartRepo, productRepo, publisher, zap.NewNop())
	return svc, productRepo, cartRepo, orderRepo, publisher
}

func cartWith(userID string, items ...models.CartItem) *models.Cart {
	cart := &models.Cart{UserID: userID, Items: items}
	cart.RecomputeTotal()
	return cart
}

// ---- tests ----

func TestPlaceOrder_EmptyCart(t *testing.T) {
	svc, productRepo, cartRepo, orderRepo, _ := newPlacementFixture()
	userID := uuid.New().String()
	pid := productRepo.add("Widget", 10.00, 5)
	cartRepo.cart = cartWith(userID)

	order, err := svc.PlaceOrder(context.Background(), userID, testAddress)

	assert.Nil(t, order)
	assert.ErrorIs(t, err, ErrCartEmpty)
	assert.Empty(t, orderRepo.created)
	assert.Equal(t, 5, productRepo.stockOf(pid))
	assert.False(t, cartRepo.cleared)
}

func TestPlaceOrder_Success(t *testing.T) {
	svc, productRepo, cartRepo, orderRepo, publisher := newPlacementFixture()
	userID := uuid.New().String()
	pidA := productRepo.add("Product A", 10.00, 5)
	pidB := productRepo.add("Product B", 5.00, 5)
	cartRepo.cart = cartWith(userID,
		models.CartItem{ProductID: pidA, Quantity: 2, Price: 10.00, Name: "Product A"},
		models.CartItem{ProductID: pidB, Quantity: 1, Price: 5.00, Name: "Product B"},
	)

	order, err := svc.PlaceOrder(context.Background(), userID, testAddress)

	assert.NoError(t, err)
	assert.NotNil(t, order)
	assert.Equal(t, 25.00, order.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Len(t, order.Items, 2)

	// Total equals the sum of item price x quantity.
	sum := 0.0
	for _, item := range order.Items {
		sum += item.Price * float64(item.Quantity)
	}
	assert.Equal(t, order.TotalAmount, sum)

	// Stock decremented by exactly the ordered quantities.
	assert.Equal(t, 3, productRepo.stockOf(pidA))
	assert.Equal(t, 4, productRepo.stockOf(pidB))

	// Cart cleared only after the order committed.
	assert.True(t, cartRepo.cleared)
	assert.Empty(t, cartRepo.cart.Items)

	assert.Len(t, orderRepo.created, 1)
	assert.Len(t, publisher.published, 1)
}

func TestPlaceOrder_InsufficientStockFirstItem(t *testing.T) {
	svc, productRepo, cartRepo, orderRepo, _ := newPlacementFixture()
	userID := uuid.New().String()
	pidA := productRepo.add("Product A", 10.00, 1)
	pidB := productRepo.add("Product B", 5.00, 5)
	cartRepo.cart = cartWith(userID,
		models.CartItem{ProductID: pidA, Quantity: 2, Price: 10.00, Name: "Product A"},
		models.CartItem{ProductID: pidB, Quantity: 1, Price: 5.00, Name: "Product B"},
	)

	order, err := svc.PlaceOrder(context.Background(), userID, testAddress)

	assert.Nil(t, order)
	var stockErr *StockError
	assert.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Product A", stockErr.ProductName)

	// No partial decrement survives and no order exists.
	assert.Equal(t, 1, productRepo.stockOf(pidA))
	assert.Equal(t, 5, productRepo.stockOf(pidB))
	assert.Empty(t, orderRepo.created)
	assert.False(t, cartRepo.cleared)
}

func TestPlaceOrder_FailureAtLaterItemRestoresEarlierDecrements(t *testing.T) {
	svc, productRepo, cartRepo, orderRepo, _ := newPlacementFixture()
	userID := uuid.New().String()
	pidA := productRepo.add("Product A", 10.00, 5)
	pidB := productRepo.add("Product B", 5.00, 0)
	cartRepo.cart = cartWith(userID,
		models.CartItem{ProductID: pidA, Quantity: 2, Price: 10.00, Name: "Product A"},
		models.CartItem{ProductID: pidB, Quantity: 1, Price: 5.00, Name: "Product B"},
	)

	order, err := svc.PlaceOrder(context.Background(), userID, testAddress)

	assert.Nil(t, order)
	var stockErr *StockError
	assert.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Product B", stockErr.ProductName)

	// A's decrement was applied before B failed; it must be reversed.
	assert.Equal(t, 5, productRepo.stockOf(pidA))
	assert.Equal(t, []string{pidA}, productRepo.releaseCalls)
	assert.Empty(t, orderRepo.created)
}

func TestPlaceOrder_PersistenceErrorRollsBackAllReservations(t *testing.T) {
	svc, productRepo, cartRepo, orderRepo, publisher := newPlacementFixture()
	userID := uuid.New().String()
	pidA := productRepo.add("Product A", 10.00, 5)
	pidB := productRepo.add("Product B", 5.00, 5)
	cartRepo.cart = cartWith(userID,
		models.CartItem{ProductID: pidA, Quantity: 2, Price: 10.00, Name: "Product A"},
		models.CartItem{ProductID: pidB, Quantity: 1, Price: 5.00, Name: "Product B"},
	)
	orderRepo.createErr = errors.New("connection reset")

	order, err := svc.PlaceOrder(context.Background(), userID, testAddress)

	assert.Nil(t, order)
	var persistenceErr *PersistenceError
	assert.ErrorAs(t, err, &persistenceErr)

	// Both reservations reversed, in reverse order of application.
	assert.Equal(t, 5, productRepo.stockOf(pidA))
	assert.Equal(t, 5, productRepo.stockOf(pidB))
	assert.Equal(t, []string{pidB, pidA}, productRepo.releaseCalls)
	assert.False(t, cartRepo.cleared)
	assert.Empty(t, publisher.published)
}

func TestPlaceOrder_ProductVanishedMidPlacement(t *testing.T) {
	svc, _, cartRepo, orderRepo, _ := newPlacementFixture()
	userID := uuid.New().String()
	missing := primitive.NewObjectID().Hex()
	cartRepo.cart = cartWith(userID,
		models.CartItem{ProductID: missing, Quantity: 1, Price: 3.50, Name: "Gone"},
	)

	order, err := svc.PlaceOrder(context.Background(), userID, testAddress)

	assert.Nil(t, order)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, orderRepo.created)
}

func TestPlaceOrder_CartClearFailureDoesNotFailPlacement(t *testing.T) {
	svc, productRepo, cartRepo, orderRepo, _ := newPlacementFixture()
	userID := uuid.New().String()
	pid := productRepo.add("Widget", 2.00, 10)
	cartRepo.cart = cartWith(userID,
		models.CartItem{ProductID: pid, Quantity: 3, Price: 2.00, Name: "Widget"},
	)
	cartRepo.clearErr = errors.New("cart store unavailable")

	order, err := svc.PlaceOrder(context.Background(), userID, testAddress)

	// The order stands; a stale cart is not a data-integrity violation.
	assert.NoError(t, err)
	assert.NotNil(t, order)
	assert.Len(t, orderRepo.created, 1)
	assert.Equal(t, 7, productRepo.stockOf(pid))
}

func TestPlaceOrder_ConcurrentLastUnit(t *testing.T) {
	productRepo := newFakeProductRepo()
	pid := productRepo.add("Last One", 99.99, 1)

	userA := uuid.New().String()
	userB := uuid.New().String()
	cartA := &fakeCartRepo{cart: cartWith(userA,
		models.CartItem{ProductID: pid, Quantity: 1, Price: 99.99, Name: "Last One"})}
	cartB := &fakeCartRepo{cart: cartWith(userB,
		models.CartItem{ProductID: pid, Quantity: 1, Price: 99.99, Name: "Last One"})}
	orderRepo := newFakeOrderRepo()

	svcA := NewOrderService(orderRepo, cartA, productRepo, nil, zap.NewNop())
	svcB := NewOrderService(orderRepo, cartB, productRepo, nil, zap.NewNop())

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = svcA.PlaceOrder(context.Background(), userA, testAddress)
	}()
	go func() {
		defer wg.Done()
		_, results[1] = svcB.PlaceOrder(context.Background(), userB, testAddress)
	}()
	wg.Wait()

	successes := 0
	stockErrors := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var stockErr *StockError
		if errors.As(err, &stockErr) {
			stockErrors++
		}
	}

	// Exactly one placement wins the last unit.
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, stockErrors)
	assert.Equal(t, 0, productRepo.stockOf(pid))
	assert.Len(t, orderRepo.created, 1)
}

func TestPlaceOrder_InvalidUserID(t *testing.T) {
	svc, _, _, orderRepo, _ := newPlacementFixture()

	order, err := svc.PlaceOrder(context.Background(), "not-a-uuid", testAddress)

	assert.Nil(t, order)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Empty(t, orderRepo.created)
}

func TestUpdateStatus_RejectsUnknownValue(t *testing.T) {
	svc, _, _, orderRepo, _ := newPlacementFixture()

	err := svc.UpdateStatus(context.Background(), uuid.New(), models.OrderStatus("teleported"))

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Empty(t, orderRepo.statuses)
}

// Status transitions are deliberately unvalidated beyond enum membership:
// any legal value may follow any other.
func TestUpdateStatus_AnyValidTransitionAllowed(t *testing.T) {
	svc, _, _, orderRepo, publisher := newPlacementFixture()
	orderID := uuid.New()

	assert.NoError(t, svc.UpdateStatus(context.Background(), orderID, models.OrderStatusShipped))
	assert.Equal(t, models.OrderStatusShipped, orderRepo.statuses[orderID])

	// Backwards to pending is accepted too.
	assert.NoError(t, svc.UpdateStatus(context.Background(), orderID, models.OrderStatusPending))
	assert.Equal(t, models.OrderStatusPending, orderRepo.statuses[orderID])

	assert.Len(t, publisher.published, 2)
}

func TestUpdatePaymentStatus_IndependentOfOrderStatus(t *testing.T) {
	svc, _, _, orderRepo, _ := newPlacementFixture()
	orderID := uuid.New()

	assert.NoError(t, svc.UpdateStatus(context.Background(), orderID, models.OrderStatusCancelled))
	assert.NoError(t, svc.UpdatePaymentStatus(context.Background(), orderID, models.PaymentStatusPaid))

	// A cancelled order may still record paid; no cross-field automaton.
	assert.Equal(t, models.OrderStatusCancelled, orderRepo.statuses[orderID])
	assert.Equal(t, models.PaymentStatusPaid, orderRepo.payments[orderID])

	err := svc.UpdatePaymentStatus(context.Background(), orderID, models.PaymentStatus("iou"))
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestGetOrder_OwnerAndAdminAccess(t *testing.T) {
	svc, productRepo, cartRepo, _, _ := newPlacementFixture()
	userID := uuid.New().String()
	pid := productRepo.add("Widget", 4.00, 10)
	cartRepo.cart = cartWith(userID,
		models.CartItem{ProductID: pid, Quantity: 1, Price: 4.00, Name: "Widget"},
	)

	order, err := svc.PlaceOrder(context.Background(), userID, testAddress)
	assert.NoError(t, err)

	got, err := svc.GetOrder(context.Background(), order.ID, userID, false)
	assert.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	// A different non-admin user cannot read it.
	_, err = svc.GetOrder(context.Background(), order.ID, uuid.New().String(), false)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// An admin can.
	got, err = svc.GetOrder(context.Background(), order.ID, uuid.New().String(), true)
	assert.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}
