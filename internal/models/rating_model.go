package models

import (
	"time"
)

const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

// Rating 顾客对卖家的评分, ProductID 为空时是对卖家整体的评分.
// 每个 (user, seller, product) 只保留一条. 唯一约束不比较 NULL,
// 所以 product_id 为空与不为空各建一个部分唯一索引
type Rating struct {
	ID uint `gorm:"primaryKey" json:"id"`

	UserID    uint   `gorm:"not null;index;uniqueIndex:idx_ratings_product_slot,priority:1,where:product_id IS NOT NULL;uniqueIndex:idx_ratings_seller_slot,priority:1,where:product_id IS NULL" json:"user_id"`
	SellerID  uint   `gorm:"not null;index;uniqueIndex:idx_ratings_product_slot,priority:2;uniqueIndex:idx_ratings_seller_slot,priority:2" json:"seller_id"`
	ProductID *uint  `gorm:"index;uniqueIndex:idx_ratings_product_slot,priority:3" json:"product_id"`
	Score     int    `gorm:"not null" json:"score"`
	Feedback  string `gorm:"size:1000" json:"feedback"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Rating) TableName() string {
	return "ratings"
}
