package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/LockDeal/internal/models"
)

// DealRepository 成交单仓储
type DealRepository struct {
	db *gorm.DB
}

func NewDealRepository(db *gorm.DB) *DealRepository {
	return &DealRepository{db: db}
}

// Create 创建成交单, group_id 上的唯一索引保证每团至多一张
func (r *DealRepository) Create(ctx context.Context, deal *models.Deal) error {
	return r.db.WithContext(ctx).Create(deal).Error
}

// Save 保存成交单
func (r *DealRepository) Save(ctx context.Context, deal *models.Deal) error {
	return r.db.WithContext(ctx).Save(deal).Error
}

// GetByID 根据ID获取成交单
func (r *DealRepository) GetByID(ctx context.Context, id uint) (*models.Deal, error) {
	var deal models.Deal
	if err := r.db.WithContext(ctx).First(&deal, id).Error; err != nil {
		return nil, err
	}
	return &deal, nil
}

// GetByGroup 根据团ID获取成交单
func (r *DealRepository) GetByGroup(ctx context.Context, groupID uint) (*models.Deal, error) {
	var deal models.Deal
	if err := r.db.WithContext(ctx).Where("group_id = ?", groupID).First(&deal).Error; err != nil {
		return nil, err
	}
	return &deal, nil
}

// ListBySeller 卖家的全部成交单, 新的在前
func (r *DealRepository) ListBySeller(ctx context.Context, sellerID uint) ([]models.Deal, error) {
	var deals []models.Deal
	err := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).Order("id DESC").Find(&deals).Error
	return deals, err
}

// CountByGroup 团下的成交单数量
func (r *DealRepository) CountByGroup(ctx context.Context, groupID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Deal{}).Where("group_id = ?", groupID).Count(&count).Error
	return count, err
}
