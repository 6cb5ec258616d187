package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/LockDeal/internal/models"
	"github.com/Gopher0727/LockDeal/internal/repositories"
	logger "github.com/Gopher0727/LockDeal/middleware/log"
)

// DealService 成交单查询与取消, 以及卖家查看顾客待提货项
type DealService struct {
	store *repositories.Store
	log   *logger.Logger
}

func NewDealService(store *repositories.Store, log *logger.Logger) *DealService {
	return &DealService{store: store, log: log}
}

// PendingItem 顾客在卖家处尚未提走的一项
type PendingItem struct {
	GroupID      uint            `json:"group_id"`
	MemberID     uint            `json:"member_id"`
	ProductID    uint            `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductUnit  string          `json:"product_unit"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Quantity     int             `json:"quantity"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

// CustomerPending 顾客待提货汇总
type CustomerPending struct {
	CustomerID   uint            `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Items        []PendingItem   `json:"items"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// ListForSeller 卖家的成交单
func (s *DealService) ListForSeller(ctx context.Context, actor Actor) ([]models.Deal, error) {
	if err := Authorize(ActionManageDeal, actor, 0); err != nil {
		return nil, err
	}
	deals, err := s.store.Deals.ListBySeller(ctx, actor.UserID)
	if err != nil {
		return nil, dbErr(err, "deals")
	}
	return deals, nil
}

// Get 成交单详情. 卖家本人或团成员可见
func (s *DealService) Get(ctx context.Context, actor Actor, dealID uint) (*models.Deal, error) {
	deal, err := s.store.Deals.GetByID(ctx, dealID)
	if err != nil {
		return nil, dbErr(err, "deal")
	}
	if actor.Role == models.RoleSeller {
		if err := Authorize(ActionManageDeal, actor, deal.SellerID); err != nil {
			return nil, err
		}
		return deal, nil
	}

	_, err = s.store.Members.GetByGroupAndUser(ctx, deal.GroupID, actor.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, forbiddenf("user %d is not part of deal %d", actor.UserID, dealID)
	}
	if err != nil {
		return nil, dbErr(err, "group member")
	}
	return deal, nil
}

// Cancel 取消待处理的成交单
func (s *DealService) Cancel(ctx context.Context, actor Actor, dealID uint) (*models.Deal, error) {
	if err := Authorize(ActionManageDeal, actor, 0); err != nil {
		return nil, err
	}

	var deal *models.Deal
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		deal, err = tx.Deals.GetByID(ctx, dealID)
		if err != nil {
			return dbErr(err, "deal")
		}
		if err := Authorize(ActionManageDeal, actor, deal.SellerID); err != nil {
			return err
		}
		// 先锁团行, 与提货确认串行
		if _, err := tx.Groups.GetForUpdate(ctx, deal.GroupID); err != nil {
			return dbErr(err, "group")
		}
		if deal.Status != models.DealPending {
			return fmt.Errorf("%w: deal %d is %s", ErrInvalidState, dealID, deal.Status)
		}
		deal.Status = models.DealCancelled
		return dbErr(tx.Deals.Save(ctx, deal), "deal")
	})
	if err != nil {
		return nil, finish(err)
	}

	s.log.InfoContext(ctx, "deal cancelled", zap.Uint("deal_id", dealID), zap.Uint("seller_id", actor.UserID))
	return deal, nil
}

// CustomerPendingItems 顾客在本卖家已接单团中尚未提走的份额
func (s *DealService) CustomerPendingItems(ctx context.Context, actor Actor, customerID uint) (*CustomerPending, error) {
	if err := Authorize(ActionViewSellerQueues, actor, 0); err != nil {
		return nil, err
	}
	customer, err := s.store.Users.GetByID(ctx, customerID)
	if err != nil {
		return nil, dbErr(err, "customer")
	}
	if customer.Role != models.RoleCustomer {
		return nil, fmt.Errorf("customer %w", ErrNotFound)
	}

	members, err := s.store.Members.ListPendingForCustomer(ctx, customerID, actor.UserID)
	if err != nil {
		return nil, dbErr(err, "group members")
	}

	pending := &CustomerPending{
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		Items:        make([]PendingItem, 0, len(members)),
		TotalAmount:  decimal.Zero,
	}
	products := make(map[uint]*models.Product)
	for _, m := range members {
		group, err := s.store.Groups.Get(ctx, m.GroupID)
		if err != nil {
			return nil, dbErr(err, "group")
		}
		product, ok := products[group.ProductID]
		if !ok {
			if product, err = s.store.Products.GetByID(ctx, group.ProductID); err != nil {
				return nil, dbErr(err, "product")
			}
			products[group.ProductID] = product
		}
		pending.Items = append(pending.Items, PendingItem{
			GroupID:      m.GroupID,
			MemberID:     m.ID,
			ProductID:    product.ID,
			ProductName:  product.Name,
			ProductUnit:  product.Unit,
			ProductPrice: product.Price,
			Quantity:     m.Quantity,
			TotalPrice:   m.TotalPrice,
		})
		pending.TotalAmount = pending.TotalAmount.Add(m.TotalPrice)
	}
	return pending, nil
}
