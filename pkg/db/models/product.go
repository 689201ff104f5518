package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product is a catalog item. Soft-deleted products stay on disk so order
// history keeps resolving, but they drop out of every listing.
type Product struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string          `gorm:"column:name;not null"`
	Description string          `gorm:"column:description;not null;default:''"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Stock       int             `gorm:"column:stock;not null;default:0"`
	Gender      string          `gorm:"column:gender;not null;default:''"`
	ImageURLs   pq.StringArray  `gorm:"column:image_urls;type:text[]"`
	Sizes       pq.StringArray  `gorm:"column:sizes;type:text[]"`
	CategoryID  *int64          `gorm:"column:category_id;index:idx_products_category_id"`
	Category    *Category       `gorm:"foreignKey:CategoryID"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	IsDeleted   bool            `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

// Purchasable reports whether the product can be added to a cart.
func (p Product) Purchasable() bool {
	return p.IsActive && !p.IsDeleted
}
