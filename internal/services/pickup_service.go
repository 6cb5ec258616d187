package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/LockDeal/internal/models"
	"github.com/Gopher0727/LockDeal/internal/repositories"
	logger "github.com/Gopher0727/LockDeal/middleware/log"
)

// AttemptLimiter 提货码校验次数限制
type AttemptLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

// VerifyPickupRequest 核销请求. UserID 为空时按提货码在团内查找成员
type VerifyPickupRequest struct {
	GroupID uint   `json:"group_id"`
	Code    string `json:"otp" binding:"required"`
	UserID  *uint  `json:"user_id"`
}

// ManifestItem 本次提走的一项
type ManifestItem struct {
	GroupID      uint            `json:"group_id"`
	MemberID     uint            `json:"member_id"`
	ProductID    uint            `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductUnit  string          `json:"product_unit"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Quantity     int             `json:"quantity"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

// PickupManifest 核销成功后的提货清单
type PickupManifest struct {
	CustomerID    uint           `json:"customer_id"`
	CustomerName  string         `json:"customer_name"`
	Items         []ManifestItem `json:"items"`
	TotalItems    int            `json:"total_items"`
	SellerAddress string         `json:"seller_address"`
	SellerContact string         `json:"seller_contact"`
}

// PickupService 提货码签发与核销
type PickupService struct {
	store    *repositories.Store
	groups   *GroupService
	codes    *CodeIssuer
	notifier OTPNotifier
	limiter  AttemptLimiter
	attempts int64
	window   PickupWindow
	clock    Clock
	log      *logger.Logger
}

// NewPickupService 创建提货服务. limiter 为 nil 或 attemptsPerMinute <= 0 时不限次数
func NewPickupService(
	store *repositories.Store,
	groups *GroupService,
	codes *CodeIssuer,
	notifier OTPNotifier,
	limiter AttemptLimiter,
	attemptsPerMinute int,
	window PickupWindow,
	clock Clock,
	log *logger.Logger,
) *PickupService {
	if window == nil {
		window = AnyDay
	}
	return &PickupService{
		store:    store,
		groups:   groups,
		codes:    codes,
		notifier: notifier,
		limiter:  limiter,
		attempts: int64(attemptsPerMinute),
		window:   window,
		clock:    clock,
		log:      log,
	}
}

// IssuePickupOTP 为成员重新签发提货码, 旧码作废
func (s *PickupService) IssuePickupOTP(ctx context.Context, memberID uint) (string, error) {
	var code string
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		member, err := tx.Members.GetByID(ctx, memberID)
		if err != nil {
			return dbErr(err, "group member")
		}
		if member.IsPickedUp {
			return fmt.Errorf("%w: member %d already picked up", ErrInvalidState, memberID)
		}
		code, err = s.codes.Issue(ctx, tx, member)
		return err
	})
	if err != nil {
		return "", finish(err)
	}
	return code, nil
}

// RegenerateOTP 顾客为自己在已接单团中的份额重新获取提货码, 并重新通知
func (s *PickupService) RegenerateOTP(ctx context.Context, actor Actor, groupID uint) (string, error) {
	if err := Authorize(ActionRegenerateOTP, actor, 0); err != nil {
		return "", err
	}

	var code string
	var notice PickupNotice
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		group, err := tx.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			return dbErr(err, "group")
		}
		if !group.IsAccepted {
			return ErrNotAccepted
		}

		member, err := tx.Members.GetByGroupAndUser(ctx, groupID, actor.UserID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return forbiddenf("user %d is not a member of group %d", actor.UserID, groupID)
		}
		if err != nil {
			return dbErr(err, "group member")
		}
		if member.IsPickedUp {
			return fmt.Errorf("%w: order already picked up", ErrInvalidState)
		}

		code, err = s.codes.Issue(ctx, tx, member)
		if err != nil {
			return err
		}

		notice = PickupNotice{GroupID: groupID, MemberID: member.ID, UserID: actor.UserID, Code: code}
		if user, err := tx.Users.GetByID(ctx, actor.UserID); err == nil {
			notice.Email, notice.Name = user.Email, user.Name
		}
		if product, err := tx.Products.GetByID(ctx, group.ProductID); err == nil {
			notice.ProductName = product.Name
		}
		return nil
	})
	if err != nil {
		return "", finish(err)
	}

	deliver(ctx, s.notifier, s.log, []PickupNotice{notice})
	return code, nil
}

func (s *PickupService) checkAttempts(ctx context.Context, groupID uint) error {
	if s.limiter == nil || s.attempts <= 0 {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, fmt.Sprintf("pickup:%d", groupID), s.attempts, time.Minute)
	if err != nil {
		// 限流器不可用时放行, 核销本身仍需正确的码
		s.log.WarnContext(ctx, "pickup attempt limiter unavailable", zap.Error(err))
		return nil
	}
	if !allowed {
		return ErrTooManyAttempts
	}
	return nil
}

// VerifyPickup 卖家核销提货码, 并一次性提走该顾客在本卖家所有已接单团中的未提货份额
func (s *PickupService) VerifyPickup(ctx context.Context, actor Actor, req VerifyPickupRequest) (*PickupManifest, error) {
	if err := Authorize(ActionVerifyPickup, actor, 0); err != nil {
		return nil, err
	}
	if err := s.checkAttempts(ctx, req.GroupID); err != nil {
		return nil, err
	}

	var manifest *PickupManifest
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		group, err := tx.Groups.Get(ctx, req.GroupID)
		if err != nil {
			return dbErr(err, "group")
		}
		if err := Authorize(ActionVerifyPickup, actor, group.SellerID); err != nil {
			return err
		}
		if !group.IsAccepted {
			return ErrNotAccepted
		}
		now := s.clock.Now()
		if !s.window(now) {
			return ErrPickupWindowClosed
		}

		member, err := s.matchMember(ctx, tx, group.ID, req)
		if err != nil {
			return err
		}
		pending, err := tx.Members.ListPendingForCustomer(ctx, member.UserID, group.SellerID)
		if err != nil {
			return dbErr(err, "group members")
		}

		// 涉及的团按 ID 升序统一加锁, 并发核销之间不会互相等待成环
		ids := []uint{group.ID}
		for _, m := range pending {
			ids = append(ids, m.GroupID)
		}
		slices.Sort(ids)
		ids = slices.Compact(ids)
		locked := make(map[uint]*models.Group, len(ids))
		for _, id := range ids {
			g, err := tx.Groups.GetForUpdate(ctx, id)
			if err != nil {
				return dbErr(err, "group")
			}
			locked[id] = g
		}

		// 加锁后重新读取, 期间可能已被其他核销提走
		if member, err = s.matchMember(ctx, tx, group.ID, req); err != nil {
			return err
		}
		if pending, err = tx.Members.ListPendingForCustomer(ctx, member.UserID, group.SellerID); err != nil {
			return dbErr(err, "group members")
		}

		items := make([]ManifestItem, 0, len(pending))
		for i := range pending {
			m := &pending[i]
			g, ok := locked[m.GroupID]
			if !ok {
				// 加锁前尚未接单的团留到下次核销
				continue
			}
			product, err := tx.Products.GetByID(ctx, g.ProductID)
			if err != nil {
				return dbErr(err, "product")
			}

			if err := s.groups.confirmInTx(ctx, tx, g, m, now); err != nil {
				return err
			}
			items = append(items, ManifestItem{
				GroupID:      g.ID,
				MemberID:     m.ID,
				ProductID:    product.ID,
				ProductName:  product.Name,
				ProductUnit:  product.Unit,
				ProductPrice: product.Price,
				Quantity:     m.Quantity,
				TotalPrice:   m.TotalPrice,
			})
		}

		manifest, err = s.buildManifest(ctx, tx, locked[group.ID], member, items)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidOTP) {
			s.log.WarnContext(ctx, "pickup code rejected", zap.Uint("group_id", req.GroupID), zap.Uint("seller_id", actor.UserID))
		}
		return nil, finish(err)
	}

	s.log.InfoContext(ctx, "pickup verified",
		zap.Uint("group_id", req.GroupID),
		zap.Uint("customer_id", manifest.CustomerID),
		zap.Int("items", manifest.TotalItems),
	)
	return manifest, nil
}

// matchMember 按 (团, 用户) 或仅按提货码找到成员, 码不匹配返回 ErrInvalidOTP
func (s *PickupService) matchMember(ctx context.Context, tx *repositories.Store, groupID uint, req VerifyPickupRequest) (*models.GroupMember, error) {
	if len(req.Code) != 6 {
		return nil, fmt.Errorf("%w: pickup code must have 6 digits", ErrInvalidOTP)
	}
	if req.UserID != nil {
		member, err := tx.Members.GetByGroupAndUser(ctx, groupID, *req.UserID)
		if err != nil {
			return nil, dbErr(err, "group member")
		}
		if member.PickupOTP == nil || subtle.ConstantTimeCompare([]byte(*member.PickupOTP), []byte(req.Code)) != 1 {
			return nil, ErrInvalidOTP
		}
		return member, nil
	}

	member, err := tx.Members.FindByCode(ctx, groupID, req.Code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidOTP
	}
	if err != nil {
		return nil, dbErr(err, "group member")
	}
	return member, nil
}

// buildManifest 组装提货清单. 成员所属卖家联系方式为占位文案时回退到商品卖家
func (s *PickupService) buildManifest(ctx context.Context, tx *repositories.Store, group *models.Group, member *models.GroupMember, items []ManifestItem) (*PickupManifest, error) {
	customer, err := tx.Users.GetByID(ctx, member.UserID)
	if err != nil {
		return nil, dbErr(err, "customer")
	}

	manifest := &PickupManifest{
		CustomerID:    customer.ID,
		CustomerName:  customer.Name,
		Items:         items,
		TotalItems:    len(items),
		SellerAddress: models.SellerAddressPlaceholder,
		SellerContact: models.SellerContactPlaceholder,
	}

	seller, err := tx.Sellers.GetByUserID(ctx, member.SellerID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dbErr(err, "seller")
	}
	if seller == nil || seller.HasPlaceholderContact() {
		product, err := tx.Products.GetByID(ctx, group.ProductID)
		if err != nil {
			return nil, dbErr(err, "product")
		}
		if fallback, err := tx.Sellers.GetByUserID(ctx, product.SellerID); err == nil && !fallback.HasPlaceholderContact() {
			seller = fallback
		}
	}
	if seller != nil {
		if seller.Address != "" {
			manifest.SellerAddress = seller.Address
		}
		if seller.Contact != "" {
			manifest.SellerContact = seller.Contact
		}
	}
	return manifest, nil
}
