package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Gopher0727/LockDeal/internal/models"
	"github.com/Gopher0727/LockDeal/internal/repositories"
	logger "github.com/Gopher0727/LockDeal/middleware/log"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ProductService 商品管理. 上架需已缴入驻费, 价格受信任档位限制
type ProductService struct {
	store *repositories.Store
	trust *TrustService
	log   *logger.Logger
}

func NewProductService(store *repositories.Store, trust *TrustService, log *logger.Logger) *ProductService {
	return &ProductService{store: store, trust: trust, log: log}
}

// CreateProductRequest 创建商品请求
type CreateProductRequest struct {
	Name     string          `json:"name" binding:"required"`
	Price    decimal.Decimal `json:"price"`
	Unit     string          `json:"unit" binding:"required"`
	ImageURL string          `json:"image_url"`
}

// UpdateProductRequest 更新商品请求, 只修改非空字段
type UpdateProductRequest struct {
	Name     *string          `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Unit     *string          `json:"unit"`
	ImageURL *string          `json:"image_url"`
}

// ProductPage 商品分页
type ProductPage struct {
	Items []models.Product `json:"items"`
	Total int64            `json:"total"`
}

func (s *ProductService) checkPrice(ctx context.Context, sellerID uint, price decimal.Decimal) error {
	if price.Sign() <= 0 {
		return validationf("price must be positive")
	}
	ok, perms, err := s.trust.CanSetPrice(ctx, sellerID, price)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s is above %s (trust score %.2f)", ErrPriceLimitExceeded, price, perms.PriceLimit, perms.TrustScore)
	}
	return nil
}

// Create 上架商品
func (s *ProductService) Create(ctx context.Context, actor Actor, req CreateProductRequest) (*models.Product, error) {
	if err := Authorize(ActionManageProduct, actor, 0); err != nil {
		return nil, err
	}
	name, unit := strings.TrimSpace(req.Name), strings.TrimSpace(req.Unit)
	if name == "" || unit == "" {
		return nil, validationf("name and unit are required")
	}

	seller, err := s.store.Sellers.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, dbErr(err, "seller profile")
	}
	if !seller.Paid99 {
		return nil, forbiddenf("seller %d has not paid the onboarding fee", actor.UserID)
	}
	if err := s.checkPrice(ctx, actor.UserID, req.Price); err != nil {
		return nil, err
	}

	product := &models.Product{
		SellerID: actor.UserID,
		Name:     name,
		Price:    req.Price,
		Unit:     unit,
		ImageURL: req.ImageURL,
	}
	if err := s.store.Products.Create(ctx, product); err != nil {
		return nil, dbErr(err, "product")
	}

	s.log.InfoContext(ctx, "product created", zap.Uint("product_id", product.ID), zap.Uint("seller_id", actor.UserID))
	return product, nil
}

// Update 修改商品, 仅限所属卖家
func (s *ProductService) Update(ctx context.Context, actor Actor, productID uint, req UpdateProductRequest) (*models.Product, error) {
	if err := Authorize(ActionManageProduct, actor, 0); err != nil {
		return nil, err
	}
	product, err := s.store.Products.GetByID(ctx, productID)
	if err != nil {
		return nil, dbErr(err, "product")
	}
	if err := Authorize(ActionManageProduct, actor, product.SellerID); err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, validationf("name must not be empty")
		}
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Unit != nil {
		if strings.TrimSpace(*req.Unit) == "" {
			return nil, validationf("unit must not be empty")
		}
		product.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}
	if req.Price != nil {
		if err := s.checkPrice(ctx, actor.UserID, *req.Price); err != nil {
			return nil, err
		}
		product.Price = *req.Price
	}

	if err := s.store.Products.Save(ctx, product); err != nil {
		return nil, dbErr(err, "product")
	}
	return product, nil
}

// Delete 删除商品. 已有团购的商品不能删除
func (s *ProductService) Delete(ctx context.Context, actor Actor, productID uint) error {
	if err := Authorize(ActionManageProduct, actor, 0); err != nil {
		return err
	}
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		product, err := tx.Products.GetByID(ctx, productID)
		if err != nil {
			return dbErr(err, "product")
		}
		if err := Authorize(ActionManageProduct, actor, product.SellerID); err != nil {
			return err
		}
		groups, err := tx.Groups.CountByProduct(ctx, productID)
		if err != nil {
			return dbErr(err, "groups")
		}
		if groups > 0 {
			return fmt.Errorf("%w: product %d has %d groups and cannot be deleted", ErrInvalidState, productID, groups)
		}
		return dbErr(tx.Products.Delete(ctx, productID), "product")
	})
	return finish(err)
}

// Get 获取商品
func (s *ProductService) Get(ctx context.Context, productID uint) (*models.Product, error) {
	product, err := s.store.Products.GetByID(ctx, productID)
	if err != nil {
		return nil, dbErr(err, "product")
	}
	return product, nil
}

// List 分页列出商品
func (s *ProductService) List(ctx context.Context, limit, offset int) (*ProductPage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	offset = max(offset, 0)

	items, total, err := s.store.Products.List(ctx, limit, offset)
	if err != nil {
		return nil, dbErr(err, "products")
	}
	return &ProductPage{Items: items, Total: total}, nil
}

// ListBySeller 列出卖家的商品
func (s *ProductService) ListBySeller(ctx context.Context, sellerID uint) ([]models.Product, error) {
	products, err := s.store.Products.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, dbErr(err, "products")
	}
	return products, nil
}
