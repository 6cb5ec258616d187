package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/Gopher0727/LockDeal/internal/models"
	"github.com/Gopher0727/LockDeal/internal/repositories"
	logger "github.com/Gopher0727/LockDeal/middleware/log"
)

// RatingService 顾客评分, 同一 (顾客, 卖家, 商品) 只保留最新一次
type RatingService struct {
	store *repositories.Store
	trust *TrustService
	log   *logger.Logger
}

func NewRatingService(store *repositories.Store, trust *TrustService, log *logger.Logger) *RatingService {
	return &RatingService{store: store, trust: trust, log: log}
}

// RateRequest 评分请求
type RateRequest struct {
	SellerID  uint   `json:"seller_id" binding:"required"`
	ProductID *uint  `json:"product_id"`
	Score     int    `json:"score" binding:"required"`
	Feedback  string `json:"feedback"`
}

// Rate 评分或修改评分. 顾客必须在该卖家处提过货
func (s *RatingService) Rate(ctx context.Context, actor Actor, req RateRequest) (*models.Rating, error) {
	if err := Authorize(ActionRate, actor, 0); err != nil {
		return nil, err
	}
	if req.Score < models.MinRatingScore || req.Score > models.MaxRatingScore {
		return nil, validationf("score must be between %d and %d", models.MinRatingScore, models.MaxRatingScore)
	}

	var rating *models.Rating
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		if _, err := tx.Sellers.GetByUserID(ctx, req.SellerID); err != nil {
			return dbErr(err, "seller")
		}
		if req.ProductID != nil {
			if _, err := tx.Products.GetByID(ctx, *req.ProductID); err != nil {
				return dbErr(err, "product")
			}
		}

		picked, err := tx.Members.HasPickedUpFromSeller(ctx, actor.UserID, req.SellerID)
		if err != nil {
			return dbErr(err, "group members")
		}
		if !picked {
			return forbiddenf("user %d has no completed pickup from seller %d", actor.UserID, req.SellerID)
		}

		rating, err = tx.Ratings.Upsert(ctx, &models.Rating{
			UserID:    actor.UserID,
			SellerID:  req.SellerID,
			ProductID: req.ProductID,
			Score:     req.Score,
			Feedback:  req.Feedback,
		})
		return dbErr(err, "rating")
	})
	if err != nil {
		return nil, finish(err)
	}

	fields := []zap.Field{zap.Uint("seller_id", req.SellerID), zap.Uint("user_id", actor.UserID), zap.Int("score", req.Score)}
	if score, err := s.trust.CalculateTrustScore(ctx, req.SellerID); err == nil {
		fields = append(fields, zap.Float64("trust_score", score))
	}
	s.log.InfoContext(ctx, "seller rated", fields...)
	return rating, nil
}

// ListForSeller 卖家收到的评分
func (s *RatingService) ListForSeller(ctx context.Context, sellerID uint) ([]models.Rating, error) {
	if _, err := s.store.Sellers.GetByUserID(ctx, sellerID); err != nil {
		return nil, dbErr(err, "seller")
	}
	ratings, err := s.store.Ratings.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, dbErr(err, "ratings")
	}
	return ratings, nil
}

// ListMine 顾客: 给出的评分; 卖家: 收到的评分
func (s *RatingService) ListMine(ctx context.Context, actor Actor) ([]models.Rating, error) {
	var (
		ratings []models.Rating
		err     error
	)
	if actor.Role == models.RoleSeller {
		ratings, err = s.store.Ratings.ListBySeller(ctx, actor.UserID)
	} else {
		ratings, err = s.store.Ratings.ListByUser(ctx, actor.UserID)
	}
	if err != nil {
		return nil, dbErr(err, "ratings")
	}
	return ratings, nil
}
