package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/LockDeal/internal/models"
)

// RatingRepository 评分仓储
type RatingRepository struct {
	db *gorm.DB
}

func NewRatingRepository(db *gorm.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// FindSlot 查找 (user, seller, product) 对应的评分, productID 为 nil 时匹配 product_id IS NULL
func (r *RatingRepository) FindSlot(ctx context.Context, userID, sellerID uint, productID *uint) (*models.Rating, error) {
	var rating models.Rating
	db := r.db.WithContext(ctx).Where("user_id = ? AND seller_id = ?", userID, sellerID)
	if productID == nil {
		db = db.Where("product_id IS NULL")
	} else {
		db = db.Where("product_id = ?", *productID)
	}
	if err := db.First(&rating).Error; err != nil {
		return nil, err
	}
	return &rating, nil
}

// Create 创建评分
func (r *RatingRepository) Create(ctx context.Context, rating *models.Rating) error {
	return r.db.WithContext(ctx).Create(rating).Error
}

// Upsert 写入评分, 同一格已有评分时覆盖分值与留言, 返回落库后的记录
func (r *RatingRepository) Upsert(ctx context.Context, rating *models.Rating) (*models.Rating, error) {
	cols := []clause.Column{{Name: "user_id"}, {Name: "seller_id"}}
	slot := "product_id IS NULL"
	if rating.ProductID != nil {
		cols = append(cols, clause.Column{Name: "product_id"})
		slot = "product_id IS NOT NULL"
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:     cols,
		TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: slot}}},
		DoUpdates:   clause.AssignmentColumns([]string{"score", "feedback", "updated_at"}),
	}).Create(rating).Error
	if err != nil {
		return nil, err
	}
	// 冲突更新时 rating.ID 不可靠, 按格重新读取
	return r.FindSlot(ctx, rating.UserID, rating.SellerID, rating.ProductID)
}

// ScoresForSeller 卖家收到的全部分值
func (r *RatingRepository) ScoresForSeller(ctx context.Context, sellerID uint) ([]int, error) {
	var scores []int
	err := r.db.WithContext(ctx).Model(&models.Rating{}).
		Where("seller_id = ?", sellerID).
		Pluck("score", &scores).Error
	return scores, err
}

// ListBySeller 卖家收到的评分, 新的在前
func (r *RatingRepository) ListBySeller(ctx context.Context, sellerID uint) ([]models.Rating, error) {
	var ratings []models.Rating
	err := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).Order("id DESC").Find(&ratings).Error
	return ratings, err
}

// ListByUser 用户给出的评分, 新的在前
func (r *RatingRepository) ListByUser(ctx context.Context, userID uint) ([]models.Rating, error) {
	var ratings []models.Rating
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&ratings).Error
	return ratings, err
}
