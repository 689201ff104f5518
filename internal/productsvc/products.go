package productsvc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/db/models"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/events"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/pagination"
)

// Service implements catalog, cart and order operations.
type Service struct {
	store    Store
	tx       txRunner
	producer eventPublisher
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(store Store, tx txRunner, producer eventPublisher, logg *logger.Logger) *Service {
	return &Service{
		store:    store,
		tx:       tx,
		producer: producer,
		logg:     logg,
		now:      time.Now,
	}
}

// ProductDTO is the external view of a catalog item.
type ProductDTO struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Gender      string          `json:"gender,omitempty"`
	ImageURLs   []string        `json:"image_urls,omitempty"`
	Sizes       []string        `json:"sizes,omitempty"`
	CategoryID  *int64          `json:"category_id,omitempty"`
	Category    string          `json:"category,omitempty"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ProductInput captures a create or full-update request.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Gender      string
	ImageURLs   []string
	Sizes       []string
	CategoryID  *int64
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if in.Price.IsNegative() || in.Price.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if in.Stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	return nil
}

// ProductsPage is one cursor page of products.
type ProductsPage struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// ListProducts returns live catalog items.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter, params pagination.Params) (*ProductsPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.store.ListProducts(ctx, filter, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	page := &ProductsPage{Products: make([]ProductDTO, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		rows = rows[:limit]
	}
	for i := range rows {
		page.Products = append(page.Products, toProductDTO(&rows[i]))
	}
	return page, nil
}

// GetProduct returns one live catalog item.
func (s *Service) GetProduct(ctx context.Context, id int64) (*ProductDTO, error) {
	product, err := s.loadLiveProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toProductDTO(product)
	return &dto, nil
}

// CreateProduct adds a catalog item. Admin only, enforced at the router.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (*ProductDTO, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if err := s.ensureCategoryExists(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Stock:       input.Stock,
		Gender:      strings.TrimSpace(input.Gender),
		ImageURLs:   input.ImageURLs,
		Sizes:       input.Sizes,
		CategoryID:  input.CategoryID,
		IsActive:    true,
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}

	dto := toProductDTO(product)
	return &dto, nil
}

// UpdateProduct replaces a catalog item's editable fields.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input ProductInput) (*ProductDTO, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if err := s.ensureCategoryExists(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	product, err := s.loadLiveProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	product.Name = strings.TrimSpace(input.Name)
	product.Description = strings.TrimSpace(input.Description)
	product.Price = input.Price
	product.Stock = input.Stock
	product.Gender = strings.TrimSpace(input.Gender)
	product.ImageURLs = input.ImageURLs
	product.Sizes = input.Sizes
	product.CategoryID = input.CategoryID

	if err := s.store.SaveProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save product")
	}

	dto := toProductDTO(product)
	return &dto, nil
}

// SetProductActive toggles a product's availability without deleting it.
func (s *Service) SetProductActive(ctx context.Context, id int64, active bool) (*ProductDTO, error) {
	product, err := s.store.FindProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.IsDeleted {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	if product.IsActive != active {
		product.IsActive = active
		if err := s.store.SaveProduct(ctx, product); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save product")
		}
	}

	dto := toProductDTO(product)
	return &dto, nil
}

// DeleteProduct soft-deletes a catalog item. Order history keeps its
// snapshots, so the row stays.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	product, err := s.loadLiveProduct(ctx, id)
	if err != nil {
		return err
	}

	product.IsDeleted = true
	product.IsActive = false
	if err := s.store.SaveProduct(ctx, product); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *Service) loadLiveProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.store.FindProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.IsDeleted {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *Service) ensureCategoryExists(ctx context.Context, categoryID *int64) error {
	if categoryID == nil {
		return nil
	}
	if _, err := s.store.FindCategory(ctx, *categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return nil
}

// publish fans an event out and surfaces a failed publish to the
// caller. The local write that preceded it stays committed; the two are
// not transactional.
func (s *Service) publish(ctx context.Context, topic events.Topic, payload any) error {
	if s.producer == nil {
		return nil
	}
	if err := s.producer.PublishEvent(ctx, topic, payload); err != nil {
		s.logg.Error(s.logg.WithTopic(ctx, topic.String()), "event publish failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish "+topic.String())
	}
	return nil
}

func toProductDTO(product *models.Product) ProductDTO {
	dto := ProductDTO{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Stock:       product.Stock,
		Gender:      product.Gender,
		ImageURLs:   product.ImageURLs,
		Sizes:       product.Sizes,
		CategoryID:  product.CategoryID,
		IsActive:    product.IsActive,
		CreatedAt:   product.CreatedAt,
	}
	if product.Category != nil {
		dto.Category = product.Category.Name
	}
	return dto
}
