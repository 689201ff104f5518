package models

import "time"

// Address is a shipping address owned by the user service.
type Address struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID     int64     `gorm:"column:user_id;not null;index:idx_addresses_user_id"`
	Line1      string    `gorm:"column:line1;not null"`
	Line2      string    `gorm:"column:line2;not null;default:''"`
	City       string    `gorm:"column:city;not null"`
	State      string    `gorm:"column:state;not null;default:''"`
	PostalCode string    `gorm:"column:postal_code;not null"`
	Country    string    `gorm:"column:country;not null"`
	IsDefault  bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Address) TableName() string { return "addresses" }
