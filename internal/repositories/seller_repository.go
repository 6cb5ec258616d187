package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/LockDeal/internal/models"
)

// SellerRepository 卖家资料仓储
type SellerRepository struct {
	db *gorm.DB
}

func NewSellerRepository(db *gorm.DB) *SellerRepository {
	return &SellerRepository{db: db}
}

// Create 创建卖家资料
func (r *SellerRepository) Create(ctx context.Context, seller *models.Seller) error {
	return r.db.WithContext(ctx).Create(seller).Error
}

// GetByUserID 根据用户 ID 获取卖家资料
func (r *SellerRepository) GetByUserID(ctx context.Context, userID uint) (*models.Seller, error) {
	var seller models.Seller
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&seller).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

// Save 保存卖家资料
func (r *SellerRepository) Save(ctx context.Context, seller *models.Seller) error {
	return r.db.WithContext(ctx).Save(seller).Error
}
