package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GroupMember 团购成员. 同一用户在同一团中只有一条记录
type GroupMember struct {
	ID uint `gorm:"primaryKey" json:"id"`

	GroupID uint `gorm:"not null;uniqueIndex:idx_group_user" json:"group_id"`
	UserID  uint `gorm:"not null;uniqueIndex:idx_group_user;index" json:"user_id"`
	// SellerID 冗余自商品, 便于按卖家查询
	SellerID   uint            `gorm:"not null;index" json:"seller_id"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	JoinedAt   time.Time       `gorm:"not null" json:"joined_at"`

	IsPickedUp bool       `gorm:"not null;index" json:"is_picked_up"`
	PickupOTP  *string    `gorm:"column:pickup_otp;size:6;index" json:"-"`
	PickedUpAt *time.Time `json:"picked_up_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (GroupMember) TableName() string {
	return "group_members"
}
