package productsvc

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/events"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/pagination"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

type fakeStore struct {
	products   map[int64]*models.Product
	categories map[int64]*models.Category
	carts      map[int64]*models.Cart
	cartItems  map[int64]*models.CartItem
	orders     map[int64]*models.Order

	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:   map[int64]*models.Product{},
		categories: map[int64]*models.Category{},
		carts:      map[int64]*models.Cart{},
		cartItems:  map[int64]*models.CartItem{},
		orders:     map[int64]*models.Order{},
	}
}

func (f *fakeStore) nextSeq() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) WithTx(tx *gorm.DB) Store { return f }

func (f *fakeStore) CreateProduct(ctx context.Context, product *models.Product) error {
	product.ID = f.nextSeq()
	product.CreatedAt = time.Now()
	copied := *product
	f.products[product.ID] = &copied
	return nil
}

func (f *fakeStore) FindProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *product
	return &copied, nil
}

func (f *fakeStore) ListProducts(ctx context.Context, filter ProductFilter, cursor *pagination.Cursor, limit int) ([]models.Product, error) {
	var rows []models.Product
	for _, product := range f.products {
		if !product.IsActive || product.IsDeleted {
			continue
		}
		if filter.CategoryID != nil && (product.CategoryID == nil || *product.CategoryID != *filter.CategoryID) {
			continue
		}
		if filter.Gender != "" && product.Gender != filter.Gender {
			continue
		}
		rows = append(rows, *product)
		if len(rows) == limit {
			break
		}
	}
	return rows, nil
}

func (f *fakeStore) SaveProduct(ctx context.Context, product *models.Product) error {
	copied := *product
	f.products[product.ID] = &copied
	return nil
}

func (f *fakeStore) AdjustStock(ctx context.Context, productID int64, delta int) error {
	product, ok := f.products[productID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	product.Stock += delta
	return nil
}

func (f *fakeStore) CreateCategory(ctx context.Context, category *models.Category) error {
	for _, existing := range f.categories {
		if existing.Name == category.Name {
			return errDuplicateCategory
		}
	}
	category.ID = f.nextSeq()
	copied := *category
	f.categories[category.ID] = &copied
	return nil
}

func (f *fakeStore) FindCategory(ctx context.Context, id int64) (*models.Category, error) {
	category, ok := f.categories[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *category
	return &copied, nil
}

func (f *fakeStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	for _, category := range f.categories {
		rows = append(rows, *category)
	}
	return rows, nil
}

func (f *fakeStore) SaveCategory(ctx context.Context, category *models.Category) error {
	copied := *category
	f.categories[category.ID] = &copied
	return nil
}

func (f *fakeStore) DeleteCategory(ctx context.Context, id int64) (bool, error) {
	if _, ok := f.categories[id]; !ok {
		return false, nil
	}
	delete(f.categories, id)
	return true, nil
}

func (f *fakeStore) FindCartByUser(ctx context.Context, userID int64) (*models.Cart, error) {
	for _, cart := range f.carts {
		if cart.UserID == userID {
			copied := *cart
			copied.Items = nil
			for _, item := range f.cartItems {
				if item.CartID == cart.ID {
					line := *item
					if product, ok := f.products[item.ProductID]; ok {
						copiedProduct := *product
						line.Product = &copiedProduct
					}
					copied.Items = append(copied.Items, line)
				}
			}
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) CreateCart(ctx context.Context, cart *models.Cart) error {
	cart.ID = f.nextSeq()
	copied := *cart
	f.carts[cart.ID] = &copied
	return nil
}

func (f *fakeStore) FindCartItem(ctx context.Context, cartID, productID int64) (*models.CartItem, error) {
	for _, item := range f.cartItems {
		if item.CartID == cartID && item.ProductID == productID {
			copied := *item
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	item.ID = f.nextSeq()
	copied := *item
	f.cartItems[item.ID] = &copied
	return nil
}

func (f *fakeStore) SaveCartItem(ctx context.Context, item *models.CartItem) error {
	copied := *item
	f.cartItems[item.ID] = &copied
	return nil
}

func (f *fakeStore) DeleteCartItem(ctx context.Context, cartID, productID int64) (bool, error) {
	for id, item := range f.cartItems {
		if item.CartID == cartID && item.ProductID == productID {
			delete(f.cartItems, id)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ClearCartItems(ctx context.Context, userID int64) error {
	for _, cart := range f.carts {
		if cart.UserID != userID {
			continue
		}
		for id, item := range f.cartItems {
			if item.CartID == cart.ID {
				delete(f.cartItems, id)
			}
		}
	}
	return nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, order *models.Order) error {
	order.ID = f.nextSeq()
	order.CreatedAt = time.Now()
	for i := range order.Items {
		order.Items[i].ID = f.nextSeq()
		order.Items[i].OrderID = order.ID
	}
	copied := *order
	copied.Items = append([]models.OrderItem(nil), order.Items...)
	f.orders[order.ID] = &copied
	return nil
}

func (f *fakeStore) FindOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	copied.Items = append([]models.OrderItem(nil), order.Items...)
	return &copied, nil
}

func (f *fakeStore) ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	var rows []models.Order
	for _, order := range f.orders {
		if order.UserID == userID {
			rows = append(rows, *order)
		}
	}
	return rows, nil
}

func (f *fakeStore) ListAllOrders(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	var rows []models.Order
	for _, order := range f.orders {
		rows = append(rows, *order)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeStore) SaveOrder(ctx context.Context, order *models.Order) error {
	copied := *order
	copied.Items = append([]models.OrderItem(nil), order.Items...)
	f.orders[order.ID] = &copied
	return nil
}

type fakeError string

func (e fakeError) Error() string { return string(e) }

const errDuplicateCategory = fakeError(`duplicate key value violates unique constraint "uq_categories_name"`)

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type recordedEvent struct {
	topic   events.Topic
	payload any
}

type fakePublisher struct {
	published []recordedEvent
	failWith  error
}

func (f *fakePublisher) PublishEvent(ctx context.Context, topic events.Topic, payload any) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.published = append(f.published, recordedEvent{topic: topic, payload: payload})
	return nil
}

func (f *fakePublisher) lastTopic() events.Topic {
	if len(f.published) == 0 {
		return ""
	}
	return f.published[len(f.published)-1].topic
}

func newTestService() (*Service, *fakeStore, *fakePublisher) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	return NewService(store, fakeTx{}, publisher, testLogger()), store, publisher
}

func seedProduct(store *fakeStore, name string, price string, stock int) *models.Product {
	product := &models.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	_ = store.CreateProduct(context.Background(), product)
	return product
}

func TestCreateProductValidation(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService()

	_, err := svc.CreateProduct(context.Background(), ProductInput{
		Name:  "",
		Price: decimal.RequireFromString("10.00"),
	})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.CreateProduct(context.Background(), ProductInput{
		Name:  "Tee",
		Price: decimal.Zero,
	})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for zero price, got %v", err)
	}
}

func TestCreateProductRejectsUnknownCategory(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService()

	missing := int64(99)
	_, err := svc.CreateProduct(context.Background(), ProductInput{
		Name:       "Tee",
		Price:      decimal.RequireFromString("10.00"),
		CategoryID: &missing,
	})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteProductIsSoft(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService()
	product := seedProduct(store, "Tee", "10.00", 5)

	if err := svc.DeleteProduct(context.Background(), product.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	stored := store.products[product.ID]
	if stored == nil || !stored.IsDeleted || stored.IsActive {
		t.Fatalf("expected soft delete, got %+v", stored)
	}

	_, err := svc.GetProduct(context.Background(), product.ID)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("deleted product must read as not found, got %v", err)
	}
}

func TestCreateCategoryDuplicateName(t *testing.T) {
	t.Parallel()

	svc, _, publisher := newTestService()

	if _, err := svc.CreateCategory(context.Background(), CategoryInput{Name: "Shirts"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if publisher.lastTopic() != events.TopicCategoryCreated {
		t.Fatalf("expected category.created, got %q", publisher.lastTopic())
	}

	_, err := svc.CreateCategory(context.Background(), CategoryInput{Name: "Shirts"})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateCategoryPublishFailurePropagates(t *testing.T) {
	t.Parallel()

	svc, store, publisher := newTestService()
	publisher.failWith = fakeError("broker down")

	_, err := svc.CreateCategory(context.Background(), CategoryInput{Name: "Shirts"})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error from failed publish, got %v", err)
	}
	if len(store.categories) != 1 {
		t.Fatal("the local write must stay committed despite the failed publish")
	}
}

func TestDeleteCategoryNotFound(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService()

	err := svc.DeleteCategory(context.Background(), 42)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddToCartAccumulatesQuantity(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService()
	product := seedProduct(store, "Tee", "10.00", 50)

	if _, err := svc.AddToCart(context.Background(), 1, AddToCartInput{ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	cart, err := svc.AddToCart(context.Background(), 1, AddToCartInput{ProductID: product.ID, Quantity: 3})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if len(cart.Items) != 1 {
		t.Fatalf("expected one line, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 5 {
		t.Fatalf("expected accumulated quantity 5, got %d", cart.Items[0].Quantity)
	}
	if !cart.Total.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("expected total 50.00, got %s", cart.Total)
	}
}

func TestAddToCartRejectsBadQuantity(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService()
	product := seedProduct(store, "Tee", "10.00", 50)

	_, err := svc.AddToCart(context.Background(), 1, AddToCartInput{ProductID: product.ID, Quantity: 0})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddToCartRejectsUnavailableProduct(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService()
	product := seedProduct(store, "Tee", "10.00", 50)
	store.products[product.ID].IsActive = false

	_, err := svc.AddToCart(context.Background(), 1, AddToCartInput{ProductID: product.ID, Quantity: 1})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRemoveCartItemNotFound(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService()

	_, err := svc.RemoveCartItem(context.Background(), 1, 99)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateOrderSnapshotsAndDecrementsStock(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService()
	product := seedProduct(store, "Tee", "10.00", 5)

	if _, err := svc.AddToCart(context.Background(), 1, AddToCartInput{ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("add to cart: %v", err)
	}

	order, err := svc.CreateOrder(context.Background(), 1, CreateOrderInput{ShippingAddress: "1 Main St"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if !order.TotalPrice.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("expected total 20.00, got %s", order.TotalPrice)
	}
	if store.products[product.ID].Stock != 3 {
		t.Fatalf("expected stock 3, got %d", store.products[product.ID].Stock)
	}

	cart, err := svc.GetCart(context.Background(), 1)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("cart must be emptied after checkout, got %d lines", len(cart.Items))
	}

	// Later catalog edits must not touch the snapshot.
	store.products[product.ID].Name = "Renamed"
	store.products[product.ID].Price = decimal.RequireFromString("99.00")

	reread, err := svc.GetOrder(context.Background(), 1, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if reread.Items[0].ProductName != "Tee" || !reread.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("order snapshot changed: %+v", reread.Items[0])
	}
}

func TestCreateOrderEmptyCart(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService()

	_, err := svc.CreateOrder(context.Background(), 1, CreateOrderInput{})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService()
	product := seedProduct(store, "Tee", "10.00", 1)

	if _, err := svc.AddToCart(context.Background(), 1, AddToCartInput{ProductID: product.ID, Quantity: 1}); err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	store.products[product.ID].Stock = 0

	_, err := svc.CreateOrder(context.Background(), 1, CreateOrderInput{})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if store.products[product.ID].Stock != 0 {
		t.Fatalf("stock must be untouched, got %d", store.products[product.ID].Stock)
	}
}

func TestCancelOrderRestoresStock(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService()
	product := seedProduct(store, "Tee", "10.00", 5)

	if _, err := svc.AddToCart(context.Background(), 1, AddToCartInput{ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	order, err := svc.CreateOrder(context.Background(), 1, CreateOrderInput{})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	cancelled, err := svc.CancelOrder(context.Background(), 1, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}
	if store.products[product.ID].Stock != 5 {
		t.Fatalf("expected stock restored to 5, got %d", store.products[product.ID].Stock)
	}

	_, err = svc.CancelOrder(context.Background(), 1, order.ID)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("cancelling twice must fail, got %v", err)
	}
}

func TestGetOrderIsOwnerScoped(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService()
	product := seedProduct(store, "Tee", "10.00", 5)

	if _, err := svc.AddToCart(context.Background(), 1, AddToCartInput{ProductID: product.ID, Quantity: 1}); err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	order, err := svc.CreateOrder(context.Background(), 1, CreateOrderInput{})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	_, err = svc.GetOrder(context.Background(), 2, order.ID)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("other users must see not found, got %v", err)
	}
}

func TestUpdateOrderStatusLifecycle(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService()
	product := seedProduct(store, "Tee", "10.00", 5)

	if _, err := svc.AddToCart(context.Background(), 1, AddToCartInput{ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	order, err := svc.CreateOrder(context.Background(), 1, CreateOrderInput{})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	confirmed, err := svc.UpdateOrderStatus(context.Background(), order.ID, enums.OrderStatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}

	_, err = svc.UpdateOrderStatus(context.Background(), order.ID, enums.OrderStatusPending)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("confirmed order must not revert to pending, got %v", err)
	}

	cancelled, err := svc.UpdateOrderStatus(context.Background(), order.ID, enums.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("cancel confirmed order: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if store.products[product.ID].Stock != 5 {
		t.Fatalf("expected stock restored to 5, got %d", store.products[product.ID].Stock)
	}

	_, err = svc.UpdateOrderStatus(context.Background(), order.ID, enums.OrderStatusConfirmed)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("cancelled order must stay cancelled, got %v", err)
	}
}

func TestAdminListOrdersPaginates(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService()
	product := seedProduct(store, "Tee", "10.00", 100)

	for userID := int64(1); userID <= 3; userID++ {
		if _, err := svc.AddToCart(context.Background(), userID, AddToCartInput{ProductID: product.ID, Quantity: 1}); err != nil {
			t.Fatalf("add to cart: %v", err)
		}
		if _, err := svc.CreateOrder(context.Background(), userID, CreateOrderInput{}); err != nil {
			t.Fatalf("create order: %v", err)
		}
	}

	page, err := svc.AdminListOrders(context.Background(), pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(page.Orders))
	}
	if page.NextCursor == "" {
		t.Fatal("expected a next cursor")
	}
	if page.Orders[0].UserID == page.Orders[1].UserID {
		t.Fatalf("expected orders from distinct users, got %d twice", page.Orders[0].UserID)
	}
}
