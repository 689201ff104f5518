package productsvc

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/db/models"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
)

// CartDTO is a user's open cart with line and grand totals computed
// from the live catalog.
type CartDTO struct {
	ID    int64           `json:"id"`
	Items []CartItemDTO   `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// CartItemDTO is one line of the cart.
type CartItemDTO struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Size        string          `json:"size,omitempty"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Available   bool            `json:"available"`
}

// AddToCartInput captures an add request.
type AddToCartInput struct {
	ProductID int64
	Quantity  int
	Size      string
}

// GetCart returns the user's cart, creating an empty one on first use.
func (s *Service) GetCart(ctx context.Context, userID int64) (*CartDTO, error) {
	cart, err := s.loadOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := toCartDTO(cart)
	return &dto, nil
}

// AddToCart puts a product in the cart. Adding a product that is
// already in the cart accumulates its quantity.
func (s *Service) AddToCart(ctx context.Context, userID int64, input AddToCartInput) (*CartDTO, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.loadLiveProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Purchasable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product is not available")
	}

	cart, err := s.loadOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	item, err := s.store.FindCartItem(ctx, cart.ID, product.ID)
	switch {
	case err == nil:
		item.Quantity += input.Quantity
		if input.Size != "" {
			item.Size = input.Size
		}
		if err := s.store.SaveCartItem(ctx, item); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = &models.CartItem{
			CartID:    cart.ID,
			ProductID: product.ID,
			Quantity:  input.Quantity,
			Size:      input.Size,
		}
		if err := s.store.CreateCartItem(ctx, item); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}

	return s.GetCart(ctx, userID)
}

// UpdateCartItem sets a line's quantity outright.
func (s *Service) UpdateCartItem(ctx context.Context, userID, productID int64, quantity int) (*CartDTO, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	cart, err := s.loadOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	item, err := s.store.FindCartItem(ctx, cart.ID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}

	item.Quantity = quantity
	if err := s.store.SaveCartItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
	}
	return s.GetCart(ctx, userID)
}

// RemoveCartItem drops one product line from the cart.
func (s *Service) RemoveCartItem(ctx context.Context, userID, productID int64) (*CartDTO, error) {
	cart, err := s.loadOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	removed, err := s.store.DeleteCartItem(ctx, cart.ID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
	}
	return s.GetCart(ctx, userID)
}

// ClearCart empties the cart.
func (s *Service) ClearCart(ctx context.Context, userID int64) error {
	if err := s.store.ClearCartItems(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *Service) loadOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	cart, err := s.store.FindCartByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	cart = &models.Cart{UserID: userID}
	if err := s.store.CreateCart(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return cart, nil
}

func toCartDTO(cart *models.Cart) CartDTO {
	dto := CartDTO{
		ID:    cart.ID,
		Items: make([]CartItemDTO, 0, len(cart.Items)),
		Total: decimal.Zero,
	}
	for i := range cart.Items {
		item := &cart.Items[i]
		line := CartItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Size:      item.Size,
			LineTotal: decimal.Zero,
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
			line.UnitPrice = item.Product.Price
			line.Available = item.Product.Purchasable()
			line.LineTotal = item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		}
		if line.Available {
			dto.Total = dto.Total.Add(line.LineTotal)
		}
		dto.Items = append(dto.Items, line)
	}
	return dto
}
