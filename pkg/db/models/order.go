package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/threadline/threadline-backend/pkg/enums"
)

// Order is a placed order with prices snapshotted at creation time.
type Order struct {
	ID              int64             `gorm:"column:id;primaryKey;autoIncrement"`
	UserID          int64             `gorm:"column:user_id;not null;index:idx_orders_user_id"`
	Status          enums.OrderStatus `gorm:"column:status;not null;default:'Pending'"`
	TotalPrice      decimal.Decimal   `gorm:"column:total_price;type:numeric(12,2);not null"`
	ShippingAddress string            `gorm:"column:shipping_address;not null;default:''"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

// OrderItem freezes the product name and unit price as they were when
// the order was placed. Later catalog edits never touch these rows.
type OrderItem struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID     int64           `gorm:"column:order_id;not null;index:idx_order_items_order_id"`
	ProductID   int64           `gorm:"column:product_id;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	Size        string          `gorm:"column:size;not null;default:''"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }

// LineTotal is unit price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
