package productsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/pagination"
)

// OrderDTO is the external view of a placed order.
type OrderDTO struct {
	ID              int64             `json:"id"`
	UserID          int64             `json:"user_id"`
	Status          enums.OrderStatus `json:"status"`
	TotalPrice      decimal.Decimal   `json:"total_price"`
	ShippingAddress string            `json:"shipping_address,omitempty"`
	Items           []OrderItemDTO    `json:"items"`
	CreatedAt       time.Time         `json:"created_at"`
}

// OrderItemDTO is one snapshotted line of an order.
type OrderItemDTO struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Size        string          `json:"size,omitempty"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// CreateOrderInput captures a checkout request.
type CreateOrderInput struct {
	ShippingAddress string
}

// CreateOrder turns the user's cart into an order. Stock is checked and
// decremented, prices and names are frozen on the order lines, and the
// cart is emptied, all inside one transaction.
func (s *Service) CreateOrder(ctx context.Context, userID int64, input CreateOrderInput) (*OrderDTO, error) {
	var order *models.Order

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.store.WithTx(tx)

		cart, err := store.FindCartByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(cart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(cart.Items))
		for i := range cart.Items {
			line := &cart.Items[i]

			// Re-read inside the transaction so the stock check
			// holds against concurrent checkouts.
			product, err := store.FindProduct(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeStateConflict,
						fmt.Sprintf("product %d is no longer available", line.ProductID))
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if !product.Purchasable() {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("%s is no longer available", product.Name))
			}
			if product.Stock < line.Quantity {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("insufficient stock for %s", product.Name))
			}
			if err := store.AdjustStock(ctx, product.ID, -line.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
			}

			item := models.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				UnitPrice:   product.Price,
				Quantity:    line.Quantity,
				Size:        line.Size,
			}
			total = total.Add(item.LineTotal())
			items = append(items, item)
		}

		order = &models.Order{
			UserID:          userID,
			Status:          enums.OrderStatusPending,
			TotalPrice:      total,
			ShippingAddress: strings.TrimSpace(input.ShippingAddress),
			Items:           items,
		}
		if err := store.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := store.ClearCartItems(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil {
			return nil, coded
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "place order")
	}

	dto := toOrderDTO(order)
	return &dto, nil
}

// ListOrders returns the user's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, userID int64) ([]OrderDTO, error) {
	rows, err := s.store.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toOrderDTO(&rows[i]))
	}
	return out, nil
}

// OrdersPage is one cursor page of orders across all users.
type OrdersPage struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// AdminListOrders returns a cursor page of every user's orders.
func (s *Service) AdminListOrders(ctx context.Context, params pagination.Params) (*OrdersPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.store.ListAllOrders(ctx, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	page := &OrdersPage{Orders: make([]OrderDTO, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		rows = rows[:limit]
	}
	for i := range rows {
		page.Orders = append(page.Orders, toOrderDTO(&rows[i]))
	}
	return page, nil
}

// AdminGetOrder returns any order regardless of owner.
func (s *Service) AdminGetOrder(ctx context.Context, orderID int64) (*OrderDTO, error) {
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	dto := toOrderDTO(order)
	return &dto, nil
}

// GetOrder returns one of the user's orders. Other users' orders read
// as not found.
func (s *Service) GetOrder(ctx context.Context, userID, orderID int64) (*OrderDTO, error) {
	order, err := s.loadOwnedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	dto := toOrderDTO(order)
	return &dto, nil
}

// CancelOrder cancels a pending or confirmed order and restores its
// stock.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID int64) (*OrderDTO, error) {
	var order *models.Order

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.store.WithTx(tx)

		loaded, err := store.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if loaded.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !loaded.Status.Cancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order is %s and can no longer be cancelled", loaded.Status))
		}

		for _, item := range loaded.Items {
			if err := store.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
			}
		}

		loaded.Status = enums.OrderStatusCancelled
		if err := store.SaveOrder(ctx, loaded); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}
		order = loaded
		return nil
	})
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil {
			return nil, coded
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}

	dto := toOrderDTO(order)
	return &dto, nil
}

// UpdateOrderStatus moves an order along its lifecycle. Admin only,
// enforced at the router. Confirmation requires a pending order;
// cancellation is allowed from pending or confirmed and restores stock
// like a user cancellation. A cancelled order never leaves that status.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID int64, next enums.OrderStatus) (*OrderDTO, error) {
	if !next.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}

	var order *models.Order

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.store.WithTx(tx)

		loaded, err := store.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if loaded.Status == next {
			order = loaded
			return nil
		}

		switch next {
		case enums.OrderStatusCancelled:
			if !loaded.Status.Cancellable() {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("order is %s and can no longer be cancelled", loaded.Status))
			}
			for _, item := range loaded.Items {
				if err := store.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
				}
			}
		case enums.OrderStatusConfirmed:
			if loaded.Status != enums.OrderStatusPending {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("order is %s and cannot become %s", loaded.Status, next))
			}
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order is %s and cannot become %s", loaded.Status, next))
		}

		loaded.Status = next
		if err := store.SaveOrder(ctx, loaded); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}
		order = loaded
		return nil
	})
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil {
			return nil, coded
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	dto := toOrderDTO(order)
	return &dto, nil
}

func (s *Service) loadOwnedOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func toOrderDTO(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              order.ID,
		UserID:          order.UserID,
		Status:          order.Status,
		TotalPrice:      order.TotalPrice,
		ShippingAddress: order.ShippingAddress,
		Items:           make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:       order.CreatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Size:        item.Size,
			LineTotal:   item.LineTotal(),
		})
	}
	return dto
}
