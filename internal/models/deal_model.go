package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DealStatus 成交单状态
type DealStatus string

const (
	DealPending   DealStatus = "pending"
	DealCompleted DealStatus = "completed"
	DealCancelled DealStatus = "cancelled"
)

// Deal 成交单, 每个团至多一张. 金额与人数为接单时的快照
type Deal struct {
	ID uint `gorm:"primaryKey" json:"id"`

	GroupID      uint            `gorm:"not null;uniqueIndex" json:"group_id"`
	SellerID     uint            `gorm:"not null;index" json:"seller_id"`
	TotalAmount  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	TotalMembers int             `gorm:"not null" json:"total_members"`
	Status       DealStatus      `gorm:"size:16;not null;index" json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (Deal) TableName() string {
	return "deals"
}
