package models

import (
	"time"
)

// 卖家未填写地址/联系方式时的占位文案
const (
	SellerAddressPlaceholder = "Seller address will be available soon"
	SellerContactPlaceholder = "Seller contact will be available soon"
)

// Seller 卖家资料, 主键即用户 ID. 信任分由评分实时计算, 不落库
type Seller struct {
	UserID uint `gorm:"primaryKey;autoIncrement:false" json:"user_id"`

	ShopName string `gorm:"size:255;not null" json:"shop_name"`
	Address  string `gorm:"size:500;not null" json:"address"`
	Contact  string `gorm:"size:255;not null" json:"contact"`
	// Paid99 入驻费是否已缴, 未缴不能上架商品
	Paid99 bool `gorm:"column:paid_99;not null" json:"paid_99"`

	CreatedAt time.Time `json:"created_at"`
}

func (Seller) TableName() string {
	return "sellers"
}

// HasPlaceholderContact 地址或联系方式仍为占位文案
func (s *Seller) HasPlaceholderContact() bool {
	return s.Address == "" || s.Contact == "" ||
		s.Address == SellerAddressPlaceholder || s.Contact == SellerContactPlaceholder
}
