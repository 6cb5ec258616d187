package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/LockDeal/internal/models"
)

// Threshold 团购进入卖家可见列表/周期锁团的门槛, 人数或总额满足其一即可
type Threshold struct {
	MinMembers int
	MinTotal   decimal.Decimal
}

// GroupRepository 团购仓储
type GroupRepository struct {
	db *gorm.DB
}

// NewGroupRepository 创建团购仓储实例
func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create 创建团购
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(group).Error
}

// GetByID 根据ID获取团购, 预加载商品与成员
func (r *GroupRepository) GetByID(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("GroupMembers", func(db *gorm.DB) *gorm.DB { return db.Order("group_members.id") }).
		Preload("GroupMembers.User").
		First(&group, id).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// Get 只读取团购行本身
func (r *GroupRepository) Get(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// GetForUpdate 在事务中以 SELECT ... FOR UPDATE 读取团购行
func (r *GroupRepository) GetForUpdate(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&group, id).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// Save 保存团购自身字段, 不级联关联
func (r *GroupRepository) Save(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(group).Error
}

// CountOpenBySeller 统计卖家未完成的团购数
func (r *GroupRepository) CountOpenBySeller(ctx context.Context, sellerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Group{}).
		Where("seller_id = ? AND is_completed = ?", sellerID, false).
		Count(&count).Error
	return count, err
}

// CountByProduct 统计商品下的团购数
func (r *GroupRepository) CountByProduct(ctx context.Context, productID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Group{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	return count, err
}

// withPickups 附带 has_pickups 列, 列表无需预加载成员即可推导部分提货状态
func withPickups(db *gorm.DB) *gorm.DB {
	return db.Select("groups.*, EXISTS (SELECT 1 FROM group_members gm WHERE gm.group_id = groups.id AND gm.is_picked_up = ?) AS has_pickups", true)
}

func meetsThreshold(db *gorm.DB, t Threshold) *gorm.DB {
	return db.Where("(groups.members >= ? OR groups.total_price >= ?)", t.MinMembers, t.MinTotal)
}

// ListAvailable 其他卖家的已锁定, 未接单, 达到门槛且无人提货的团购
func (r *GroupRepository) ListAvailable(ctx context.Context, sellerID uint, t Threshold) ([]models.Group, error) {
	var groups []models.Group
	db := r.db.WithContext(ctx).
		Scopes(withPickups).
		Preload("Product").
		Where("groups.seller_id <> ?", sellerID).
		Where("groups.locked_at IS NOT NULL AND groups.is_accepted = ?", false).
		Where("NOT EXISTS (SELECT 1 FROM group_members gm WHERE gm.group_id = groups.id AND gm.is_picked_up = ?)", true)
	err := meetsThreshold(db, t).Order("groups.id").Find(&groups).Error
	return groups, err
}

// ListAccepted 其他卖家已接单, 仍在提货中的团购
func (r *GroupRepository) ListAccepted(ctx context.Context, sellerID uint) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Scopes(withPickups).
		Preload("Product").
		Where("groups.seller_id <> ? AND groups.is_accepted = ? AND groups.locked_at IS NOT NULL AND groups.is_completed = ?", sellerID, true, false).
		Order("groups.id").
		Find(&groups).Error
	return groups, err
}

// ListCompleted 其他卖家已完成的团购
func (r *GroupRepository) ListCompleted(ctx context.Context, sellerID uint) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Scopes(withPickups).
		Preload("Product").
		Where("groups.seller_id <> ? AND groups.is_accepted = ? AND groups.is_completed = ?", sellerID, true, true).
		Order("groups.id").
		Find(&groups).Error
	return groups, err
}

// ListBySeller 卖家自己商品上的团购
func (r *GroupRepository) ListBySeller(ctx context.Context, sellerID uint) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Scopes(withPickups).
		Preload("Product").
		Where("groups.seller_id = ?", sellerID).
		Order("groups.id").
		Find(&groups).Error
	return groups, err
}

// ListByMember 用户参与的团购, 只预加载该用户自己的成员记录
func (r *GroupRepository) ListByMember(ctx context.Context, userID uint) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Scopes(withPickups).
		Preload("Product").
		Preload("GroupMembers", "user_id = ?", userID).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", userID).
		Order("groups.id").
		Find(&groups).Error
	return groups, err
}

// LockEligible 锁定全部达到门槛的未锁团购, 返回本次锁定数量
func (r *GroupRepository) LockEligible(ctx context.Context, now time.Time, t Threshold) (int64, error) {
	db := r.db.WithContext(ctx).Model(&models.Group{}).Where("locked_at IS NULL")
	res := meetsThreshold(db, t).Updates(map[string]any{"locked_at": now, "updated_at": now})
	return res.RowsAffected, res.Error
}
