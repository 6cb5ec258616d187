package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GroupState 团购状态, 由各标志位推导
type GroupState string

const (
	GroupOpen              GroupState = "open"
	GroupLocked            GroupState = "locked"
	GroupAccepted          GroupState = "accepted"
	GroupPartiallyPickedUp GroupState = "partially_picked_up"
	GroupCompleted         GroupState = "completed"
)

// Group 团购模型. TotalPrice/Members 是未提货成员的实时汇总
type Group struct {
	ID uint `gorm:"primaryKey" json:"id"`

	ProductID  uint            `gorm:"not null;index" json:"product_id"`
	SellerID   uint            `gorm:"not null;index" json:"seller_id"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	Members    int             `gorm:"not null" json:"members"`

	LockedAt    *time.Time `gorm:"index" json:"locked_at"`
	IsAccepted  bool       `gorm:"not null" json:"is_accepted"`
	IsPickedUp  bool       `gorm:"not null" json:"is_picked_up"`
	PickedUpAt  *time.Time `json:"picked_up_at"`
	IsCompleted bool       `gorm:"not null;index" json:"is_completed"`

	// HasPickups 由列表查询的 EXISTS 子查询填充, 不建列
	HasPickups bool `gorm:"->;-:migration" json:"-"`

	Product      *Product      `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	GroupMembers []GroupMember `gorm:"foreignKey:GroupID" json:"group_members,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Group) TableName() string {
	return "groups"
}

// IsLocked 是否已锁团
func (g *Group) IsLocked() bool {
	return g.LockedAt != nil
}

// State 推导当前状态. 已接单且存在已提货成员时为部分提货,
// 依据 HasPickups 或预加载的 GroupMembers
func (g *Group) State() GroupState {
	switch {
	case g.IsCompleted:
		return GroupCompleted
	case g.IsAccepted:
		if g.HasPickups {
			return GroupPartiallyPickedUp
		}
		for _, m := range g.GroupMembers {
			if m.IsPickedUp {
				return GroupPartiallyPickedUp
			}
		}
		return GroupAccepted
	case g.LockedAt != nil:
		return GroupLocked
	default:
		return GroupOpen
	}
}
