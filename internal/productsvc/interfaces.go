package productsvc

import (
	"context"

	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/events"
	"github.com/threadline/threadline-backend/pkg/pagination"
)

// Store is the persistence surface the product service works against.
type Store interface {
	WithTx(tx *gorm.DB) Store

	CreateProduct(ctx context.Context, product *models.Product) error
	FindProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter, cursor *pagination.Cursor, limit int) ([]models.Product, error)
	SaveProduct(ctx context.Context, product *models.Product) error
	AdjustStock(ctx context.Context, productID int64, delta int) error

	CreateCategory(ctx context.Context, category *models.Category) error
	FindCategory(ctx context.Context, id int64) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	SaveCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id int64) (bool, error)

	FindCartByUser(ctx context.Context, userID int64) (*models.Cart, error)
	CreateCart(ctx context.Context, cart *models.Cart) error
	FindCartItem(ctx context.Context, cartID, productID int64) (*models.CartItem, error)
	CreateCartItem(ctx context.Context, item *models.CartItem) error
	SaveCartItem(ctx context.Context, item *models.CartItem) error
	DeleteCartItem(ctx context.Context, cartID, productID int64) (bool, error)
	ClearCartItems(ctx context.Context, userID int64) error

	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error)
	ListAllOrders(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventPublisher interface {
	PublishEvent(ctx context.Context, topic events.Topic, payload any) error
}
