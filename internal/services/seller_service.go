package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/LockDeal/internal/models"
	"github.com/Gopher0727/LockDeal/internal/repositories"
	logger "github.com/Gopher0727/LockDeal/middleware/log"
)

// SellerService 卖家资料与信任权限查询
type SellerService struct {
	store *repositories.Store
	trust *TrustService
	log   *logger.Logger
}

func NewSellerService(store *repositories.Store, trust *TrustService, log *logger.Logger) *SellerService {
	return &SellerService{store: store, trust: trust, log: log}
}

// RegisterSellerRequest 卖家资料, 地址与联系方式可先留空
type RegisterSellerRequest struct {
	ShopName string `json:"shop_name" binding:"required"`
	Address  string `json:"address"`
	Contact  string `json:"contact"`
}

// SellerProfile 卖家资料及实时信任分
type SellerProfile struct {
	*models.Seller
	TrustScore float64 `json:"trust_score"`
}

// GroupCapacity 开团额度
type GroupCapacity struct {
	CanCreate   bool        `json:"can_create"`
	OpenGroups  int64       `json:"open_groups"`
	Permissions Permissions `json:"permissions"`
}

// Register 创建或更新卖家资料
func (s *SellerService) Register(ctx context.Context, actor Actor, req RegisterSellerRequest) (*models.Seller, error) {
	if err := Authorize(ActionRegisterSeller, actor, 0); err != nil {
		return nil, err
	}
	shop := strings.TrimSpace(req.ShopName)
	if shop == "" {
		return nil, validationf("shop_name is required")
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		address = models.SellerAddressPlaceholder
	}
	contact := strings.TrimSpace(req.Contact)
	if contact == "" {
		contact = models.SellerContactPlaceholder
	}

	var seller *models.Seller
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		if _, err := tx.Users.GetByID(ctx, actor.UserID); err != nil {
			return dbErr(err, "user")
		}

		existing, err := tx.Sellers.GetByUserID(ctx, actor.UserID)
		switch {
		case err == nil:
			existing.ShopName, existing.Address, existing.Contact = shop, address, contact
			seller = existing
			return dbErr(tx.Sellers.Save(ctx, seller), "seller")
		case errors.Is(err, gorm.ErrRecordNotFound):
			seller = &models.Seller{UserID: actor.UserID, ShopName: shop, Address: address, Contact: contact}
			return dbErr(tx.Sellers.Create(ctx, seller), "seller")
		default:
			return dbErr(err, "seller")
		}
	})
	if err != nil {
		return nil, finish(err)
	}

	s.log.InfoContext(ctx, "seller profile saved", zap.Uint("seller_id", actor.UserID))
	return seller, nil
}

// MarkPaid 记录入驻费已缴. 支付本身不在本服务内
func (s *SellerService) MarkPaid(ctx context.Context, sellerID uint) (*models.Seller, error) {
	seller, err := s.store.Sellers.GetByUserID(ctx, sellerID)
	if err != nil {
		return nil, dbErr(err, "seller")
	}
	if seller.Paid99 {
		return seller, nil
	}
	seller.Paid99 = true
	if err := s.store.Sellers.Save(ctx, seller); err != nil {
		return nil, dbErr(err, "seller")
	}
	s.log.InfoContext(ctx, "seller onboarding fee recorded", zap.Uint("seller_id", sellerID))
	return seller, nil
}

func (s *SellerService) requireSeller(ctx context.Context, sellerID uint) (*models.Seller, error) {
	seller, err := s.store.Sellers.GetByUserID(ctx, sellerID)
	if err != nil {
		return nil, dbErr(err, "seller")
	}
	return seller, nil
}

// Get 卖家资料及信任分
func (s *SellerService) Get(ctx context.Context, sellerID uint) (*SellerProfile, error) {
	seller, err := s.requireSeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	score, err := s.trust.CalculateTrustScore(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return &SellerProfile{Seller: seller, TrustScore: score}, nil
}

// TrustScore 卖家信任分
func (s *SellerService) TrustScore(ctx context.Context, sellerID uint) (float64, error) {
	if _, err := s.requireSeller(ctx, sellerID); err != nil {
		return 0, err
	}
	return s.trust.CalculateTrustScore(ctx, sellerID)
}

// Permissions 卖家当前档位权限
func (s *SellerService) Permissions(ctx context.Context, sellerID uint) (Permissions, error) {
	if _, err := s.requireSeller(ctx, sellerID); err != nil {
		return Permissions{}, err
	}
	return s.trust.GetPermissions(ctx, sellerID)
}

// CanCreateGroup 卖家是否还能开新团
func (s *SellerService) CanCreateGroup(ctx context.Context, sellerID uint) (*GroupCapacity, error) {
	if _, err := s.requireSeller(ctx, sellerID); err != nil {
		return nil, err
	}
	reached, perms, err := s.trust.CheckSellerLimits(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	open, err := s.store.Groups.CountOpenBySeller(ctx, sellerID)
	if err != nil {
		return nil, dbErr(err, "groups")
	}
	return &GroupCapacity{CanCreate: !reached, OpenGroups: open, Permissions: perms}, nil
}

// CanSetPrice 价格是否在卖家档位上限内
func (s *SellerService) CanSetPrice(ctx context.Context, sellerID uint, price decimal.Decimal) (bool, Permissions, error) {
	if price.Sign() <= 0 {
		return false, Permissions{}, fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	if _, err := s.requireSeller(ctx, sellerID); err != nil {
		return false, Permissions{}, err
	}
	return s.trust.CanSetPrice(ctx, sellerID, price)
}
