package models

import "time"

// Cart holds one open cart per user.
type Cart struct {
	ID        int64      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64      `gorm:"column:user_id;not null;uniqueIndex:uq_carts_user_id"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Cart) TableName() string { return "carts" }

// CartItem is one product line in a cart. A product appears at most once
// per cart; adding again accumulates quantity.
type CartItem struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	CartID    int64     `gorm:"column:cart_id;not null;uniqueIndex:uq_cart_items_cart_product"`
	ProductID int64     `gorm:"column:product_id;not null;uniqueIndex:uq_cart_items_cart_product"`
	Product   *Product  `gorm:"foreignKey:ProductID"`
	Quantity  int       `gorm:"column:quantity;not null"`
	Size      string    `gorm:"column:size;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartItem) TableName() string { return "cart_items" }
