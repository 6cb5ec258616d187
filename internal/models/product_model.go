package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product 商品模型
type Product struct {
	ID uint `gorm:"primaryKey" json:"id"`

	SellerID uint            `gorm:"not null;index" json:"seller_id"`
	Name     string          `gorm:"size:255;not null" json:"name"`
	Price    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Unit     string          `gorm:"size:32;not null" json:"unit"`
	ImageURL string          `gorm:"size:500" json:"image_url"`

	CreatedAt time.Time `json:"created_at"`
}

func (Product) TableName() string {
	return "products"
}
