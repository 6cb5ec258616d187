package repositories

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Gopher0727/LockDeal/internal/models"
)

// GroupTotals 未提货成员的汇总
type GroupTotals struct {
	Total   decimal.Decimal
	Members int64
}

// MemberRepository 团购成员仓储
type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// Create 创建成员记录
func (r *MemberRepository) Create(ctx context.Context, member *models.GroupMember) error {
	return r.db.WithContext(ctx).Omit("User").Create(member).Error
}

// Save 保存成员记录
func (r *MemberRepository) Save(ctx context.Context, member *models.GroupMember) error {
	return r.db.WithContext(ctx).Omit("User").Save(member).Error
}

// GetByID 根据ID获取成员
func (r *MemberRepository) GetByID(ctx context.Context, id uint) (*models.GroupMember, error) {
	var member models.GroupMember
	if err := r.db.WithContext(ctx).First(&member, id).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// GetByGroupAndUser 获取用户在团中的成员记录
func (r *MemberRepository) GetByGroupAndUser(ctx context.Context, groupID, userID uint) (*models.GroupMember, error) {
	var member models.GroupMember
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// ListByGroup 团中全部成员, 按加入顺序
func (r *MemberRepository) ListByGroup(ctx context.Context, groupID uint) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := r.db.WithContext(ctx).Preload("User").
		Where("group_id = ?", groupID).
		Order("id").
		Find(&members).Error
	return members, err
}

// FindByCode 团中持有该提货码的第一个成员
func (r *MemberRepository) FindByCode(ctx context.Context, groupID uint, code string) (*models.GroupMember, error) {
	var member models.GroupMember
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND pickup_otp = ?", groupID, code).
		Order("id").
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// CodeInUse 提货码是否已被同团其他未提货成员占用
func (r *MemberRepository) CodeInUse(ctx context.Context, groupID uint, code string, exceptMemberID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ? AND pickup_otp = ? AND id <> ? AND is_picked_up = ?", groupID, code, exceptMemberID, false).
		Count(&count).Error
	return count > 0, err
}

// ActiveTotals 汇总团中未提货成员的金额与人数
func (r *MemberRepository) ActiveTotals(ctx context.Context, groupID uint) (GroupTotals, error) {
	var row struct {
		Total   decimal.NullDecimal
		Members int64
	}
	err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Select("SUM(total_price) AS total, COUNT(*) AS members").
		Where("group_id = ? AND is_picked_up = ?", groupID, false).
		Scan(&row).Error
	if err != nil {
		return GroupTotals{}, err
	}

	totals := GroupTotals{Total: decimal.Zero, Members: row.Members}
	if row.Total.Valid {
		totals.Total = row.Total.Decimal
	}
	return totals, nil
}

// CountPending 团中尚未提货的成员数
func (r *MemberRepository) CountPending(ctx context.Context, groupID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ? AND is_picked_up = ?", groupID, false).
		Count(&count).Error
	return count, err
}

// ListPendingForCustomer 用户在该卖家已接单团中尚未提货的成员记录, 按团ID排序
func (r *MemberRepository) ListPendingForCustomer(ctx context.Context, userID, sellerID uint) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := r.db.WithContext(ctx).
		Joins("JOIN groups ON groups.id = group_members.group_id").
		Where("group_members.user_id = ? AND group_members.is_picked_up = ?", userID, false).
		Where("groups.seller_id = ? AND groups.is_accepted = ? AND groups.locked_at IS NOT NULL", sellerID, true).
		Order("group_members.group_id").
		Find(&members).Error
	return members, err
}

// HasPickedUpFromSeller 用户是否在该卖家处提过货
func (r *MemberRepository) HasPickedUpFromSeller(ctx context.Context, userID, sellerID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("user_id = ? AND seller_id = ? AND is_picked_up = ?", userID, sellerID, true).
		Count(&count).Error
	return count > 0, err
}
