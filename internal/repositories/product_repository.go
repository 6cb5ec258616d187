package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/LockDeal/internal/models"
)

// ProductRepository 商品仓储
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create 创建商品
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// GetByID 根据ID获取商品
func (r *ProductRepository) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// Save 更新商品
func (r *ProductRepository) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// Delete 删除商品
func (r *ProductRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Product{}, id).Error
}

// List 分页列出商品
func (r *ProductRepository) List(ctx context.Context, limit, offset int) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Product{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("id").Limit(limit).Offset(offset).Find(&products).Error
	return products, total, err
}

// ListBySeller 列出卖家的全部商品
func (r *ProductRepository) ListBySeller(ctx context.Context, sellerID uint) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).Order("id").Find(&products).Error
	return products, err
}
