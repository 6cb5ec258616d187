package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/LockDeal/config"
	"github.com/Gopher0727/LockDeal/internal/models"
	"github.com/Gopher0727/LockDeal/internal/repositories"
	logger "github.com/Gopher0727/LockDeal/middleware/log"
)

// DefaultThreshold 人数 >= 10 或总额 >= 1000
func DefaultThreshold() repositories.Threshold {
	return repositories.Threshold{MinMembers: 10, MinTotal: decimal.NewFromInt(1000)}
}

// ThresholdFromConfig 读取 policy.available_min_members / available_min_total
func ThresholdFromConfig(cfg config.PolicyConfig) (repositories.Threshold, error) {
	total, err := decimal.NewFromString(cfg.AvailableMinTotal)
	if err != nil {
		return repositories.Threshold{}, fmt.Errorf("policy.available_min_total: %w", err)
	}
	if cfg.AvailableMinMembers <= 0 || !total.IsPositive() {
		return repositories.Threshold{}, fmt.Errorf("policy.available_min_members and available_min_total must be positive")
	}
	return repositories.Threshold{MinMembers: cfg.AvailableMinMembers, MinTotal: total}, nil
}

// GroupService 团购生命周期: 开团, 参团, 锁团, 接单, 确认提货
type GroupService struct {
	store     *repositories.Store
	trust     *TrustService
	codes     *CodeIssuer
	notifier  OTPNotifier
	clock     Clock
	threshold repositories.Threshold
	log       *logger.Logger
}

// NewGroupService 创建团购服务实例
func NewGroupService(
	store *repositories.Store,
	trust *TrustService,
	codes *CodeIssuer,
	notifier OTPNotifier,
	clock Clock,
	threshold repositories.Threshold,
	log *logger.Logger,
) *GroupService {
	return &GroupService{
		store:     store,
		trust:     trust,
		codes:     codes,
		notifier:  notifier,
		clock:     clock,
		threshold: threshold,
		log:       log,
	}
}

// AcceptResult 接单结果. Codes 按成员ID记录本次签发的提货码, 不对卖家输出
type AcceptResult struct {
	Group *models.Group   `json:"group"`
	Deal  *models.Deal    `json:"deal"`
	Codes map[uint]string `json:"-"`
}

// MembershipView 顾客在团中的份额
type MembershipView struct {
	MemberID   uint            `json:"member_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	IsPickedUp bool            `json:"is_picked_up"`
	PickupCode *string         `json:"pickup_code,omitempty"`
}

// GroupView 团购列表项, 顾客视角附带自己的成员信息
type GroupView struct {
	*models.Group
	State      models.GroupState `json:"state"`
	Membership *MembershipView   `json:"membership,omitempty"`
}

func viewsOf(groups []models.Group) []GroupView {
	views := make([]GroupView, 0, len(groups))
	for i := range groups {
		views = append(views, GroupView{Group: &groups[i], State: groups[i].State()})
	}
	return views
}

// CreateGroup 在商品上开团, 卖家未完成团数达到档位上限时拒绝
func (s *GroupService) CreateGroup(ctx context.Context, actor Actor, productID uint) (*models.Group, error) {
	if err := Authorize(ActionCreateGroup, actor, 0); err != nil {
		return nil, err
	}

	var group *models.Group
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		product, err := tx.Products.GetByID(ctx, productID)
		if err != nil {
			return dbErr(err, "product")
		}

		reached, perms, err := s.trust.checkLimitsWith(ctx, tx, product.SellerID)
		if err != nil {
			return err
		}
		if reached {
			return forbiddenf("seller %d has reached the limit of %d open groups", product.SellerID, *perms.MaxGroups)
		}

		group = &models.Group{
			ProductID:  product.ID,
			SellerID:   product.SellerID,
			TotalPrice: decimal.Zero,
		}
		if err := tx.Groups.Create(ctx, group); err != nil {
			return dbErr(err, "group")
		}
		group.Product = product
		return nil
	})
	if err != nil {
		return nil, finish(err)
	}

	s.log.InfoContext(ctx, "group created",
		zap.Uint("group_id", group.ID),
		zap.Uint("product_id", productID),
		zap.Uint("seller_id", group.SellerID),
	)
	return group, nil
}

// GetGroup 获取团购详情 (含成员)
func (s *GroupService) GetGroup(ctx context.Context, groupID uint) (*models.Group, error) {
	group, err := s.store.Groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, dbErr(err, "group")
	}
	return group, nil
}

// Join 参团或修改数量, 之后在同一事务内按成员汇总重算团总额
func (s *GroupService) Join(ctx context.Context, actor Actor, groupID uint, quantity int) (*models.GroupMember, error) {
	if err := Authorize(ActionJoinGroup, actor, 0); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, validationf("quantity must be positive, got %d", quantity)
	}

	var member *models.GroupMember
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		group, err := tx.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			return dbErr(err, "group")
		}
		if group.IsLocked() {
			return fmt.Errorf("%w: group %d is %s, joining is closed", ErrInvalidState, group.ID, group.State())
		}

		product, err := tx.Products.GetByID(ctx, group.ProductID)
		if err != nil {
			return dbErr(err, "product")
		}
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(quantity)))

		member, err = tx.Members.GetByGroupAndUser(ctx, groupID, actor.UserID)
		switch {
		case err == nil:
			member.Quantity = quantity
			member.TotalPrice = lineTotal
			if err := tx.Members.Save(ctx, member); err != nil {
				return dbErr(err, "group member")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			member = &models.GroupMember{
				GroupID:    groupID,
				UserID:     actor.UserID,
				SellerID:   product.SellerID,
				Quantity:   quantity,
				TotalPrice: lineTotal,
				JoinedAt:   s.clock.Now(),
			}
			if err := tx.Members.Create(ctx, member); err != nil {
				return dbErr(err, "group member")
			}
		default:
			return dbErr(err, "group member")
		}

		if err := refreshTotals(ctx, tx, group); err != nil {
			return err
		}
		return dbErr(tx.Groups.Save(ctx, group), "group")
	})
	if err != nil {
		return nil, finish(err)
	}

	s.log.InfoContext(ctx, "group joined",
		zap.Uint("group_id", groupID),
		zap.Uint("user_id", actor.UserID),
		zap.Int("quantity", quantity),
	)
	return member, nil
}

// Lock 锁团, 锁定后不再接受参团
func (s *GroupService) Lock(ctx context.Context, actor Actor, groupID uint) (*models.Group, error) {
	if err := Authorize(ActionLockGroup, actor, 0); err != nil {
		return nil, err
	}

	var group *models.Group
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		group, err = tx.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			return dbErr(err, "group")
		}
		if err := Authorize(ActionLockGroup, actor, group.SellerID); err != nil {
			return err
		}
		if group.IsLocked() {
			return ErrAlreadyLocked
		}

		now := s.clock.Now()
		group.LockedAt = &now
		return dbErr(tx.Groups.Save(ctx, group), "group")
	})
	if err != nil {
		return nil, finish(err)
	}

	s.log.InfoContext(ctx, "group locked", zap.Uint("group_id", groupID), zap.Uint("seller_id", actor.UserID))
	return group, nil
}

// Accept 卖家接单: 必要时自动锁团, 创建唯一成交单, 给每个成员签发提货码并在提交后通知
func (s *GroupService) Accept(ctx context.Context, actor Actor, groupID uint) (*AcceptResult, error) {
	if err := Authorize(ActionAcceptGroup, actor, 0); err != nil {
		return nil, err
	}

	result := &AcceptResult{Codes: make(map[uint]string)}
	var notices []PickupNotice
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		group, err := tx.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			return dbErr(err, "group")
		}
		product, err := tx.Products.GetByID(ctx, group.ProductID)
		if err != nil {
			return dbErr(err, "product")
		}
		if err := Authorize(ActionAcceptGroup, actor, product.SellerID); err != nil {
			return err
		}
		if group.IsAccepted {
			return ErrAlreadyAccepted
		}

		now := s.clock.Now()
		if group.LockedAt == nil {
			group.LockedAt = &now
		}
		group.IsAccepted = true
		if err := tx.Groups.Save(ctx, group); err != nil {
			return dbErr(err, "group")
		}

		deal, err := ensureDeal(ctx, tx, group)
		if err != nil {
			return err
		}

		members, err := tx.Members.ListByGroup(ctx, group.ID)
		if err != nil {
			return dbErr(err, "group members")
		}
		for i := range members {
			m := &members[i]
			code, err := s.codes.Issue(ctx, tx, m)
			if err != nil {
				return err
			}
			result.Codes[m.ID] = code

			notice := PickupNotice{GroupID: group.ID, MemberID: m.ID, UserID: m.UserID, ProductName: product.Name, Code: code}
			if m.User != nil {
				notice.Email, notice.Name = m.User.Email, m.User.Name
			}
			notices = append(notices, notice)
		}

		group.Product = product
		result.Group, result.Deal = group, deal
		return nil
	})
	if err != nil {
		return nil, finish(err)
	}

	s.log.InfoContext(ctx, "group accepted",
		zap.Uint("group_id", groupID),
		zap.Uint("deal_id", result.Deal.ID),
		zap.Int("codes_issued", len(result.Codes)),
	)
	deliver(ctx, s.notifier, s.log, notices)
	return result, nil
}

// ConfirmPickup 卖家确认某成员已提货
func (s *GroupService) ConfirmPickup(ctx context.Context, actor Actor, memberID uint) (*models.Group, error) {
	if err := Authorize(ActionConfirmPickup, actor, 0); err != nil {
		return nil, err
	}

	var group *models.Group
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		member, err := tx.Members.GetByID(ctx, memberID)
		if err != nil {
			return dbErr(err, "group member")
		}
		group, err = tx.Groups.GetForUpdate(ctx, member.GroupID)
		if err != nil {
			return dbErr(err, "group")
		}
		if err := Authorize(ActionConfirmPickup, actor, group.SellerID); err != nil {
			return err
		}
		if !group.IsAccepted {
			return ErrNotAccepted
		}
		return s.confirmInTx(ctx, tx, group, member, s.clock.Now())
	})
	if err != nil {
		return nil, finish(err)
	}

	s.log.InfoContext(ctx, "pickup confirmed",
		zap.Uint("group_id", group.ID),
		zap.Uint("member_id", memberID),
		zap.Bool("group_completed", group.IsCompleted),
	)
	return group, nil
}

// confirmInTx 标记成员已提货, 重算团汇总, 必要时完成团与成交单. group 需已加行锁
func (s *GroupService) confirmInTx(ctx context.Context, tx *repositories.Store, group *models.Group, member *models.GroupMember, now time.Time) error {
	if member.IsPickedUp {
		return nil
	}

	// 成交单快照取提货前的汇总
	deal, err := ensureDeal(ctx, tx, group)
	if err != nil {
		return err
	}

	member.IsPickedUp = true
	member.PickedUpAt = &now
	member.PickupOTP = nil
	if err := tx.Members.Save(ctx, member); err != nil {
		return dbErr(err, "group member")
	}

	if err := refreshTotals(ctx, tx, group); err != nil {
		return err
	}
	if group.TotalPrice.Sign() <= 0 || group.Members <= 0 {
		group.IsCompleted = true
		group.IsPickedUp = true
		if group.PickedUpAt == nil {
			group.PickedUpAt = &now
		}
	}
	if err := tx.Groups.Save(ctx, group); err != nil {
		return dbErr(err, "group")
	}

	pending, err := tx.Members.CountPending(ctx, group.ID)
	if err != nil {
		return dbErr(err, "group members")
	}
	if pending == 0 && deal.Status == models.DealPending {
		deal.Status = models.DealCompleted
		deal.CompletedAt = &now
		if err := tx.Deals.Save(ctx, deal); err != nil {
			return dbErr(err, "deal")
		}
	}
	return nil
}

// ensureDeal 取团的成交单, 不存在时按当前汇总创建
func ensureDeal(ctx context.Context, tx *repositories.Store, group *models.Group) (*models.Deal, error) {
	deal, err := tx.Deals.GetByGroup(ctx, group.ID)
	if err == nil {
		return deal, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dbErr(err, "deal")
	}

	deal = &models.Deal{
		GroupID:      group.ID,
		SellerID:     group.SellerID,
		TotalAmount:  group.TotalPrice,
		TotalMembers: group.Members,
		Status:       models.DealPending,
	}
	if err := tx.Deals.Create(ctx, deal); err != nil {
		return nil, dbErr(err, "deal")
	}
	return deal, nil
}

// refreshTotals 按未提货成员重算团总额与人数, 下限为 0
func refreshTotals(ctx context.Context, tx *repositories.Store, group *models.Group) error {
	totals, err := tx.Members.ActiveTotals(ctx, group.ID)
	if err != nil {
		return dbErr(err, "group members")
	}
	group.TotalPrice = decimal.Max(totals.Total, decimal.Zero)
	group.Members = int(max(totals.Members, 0))
	return nil
}

// ListAvailable 卖家可接的其他卖家团购
func (s *GroupService) ListAvailable(ctx context.Context, actor Actor) ([]GroupView, error) {
	if err := Authorize(ActionViewSellerQueues, actor, 0); err != nil {
		return nil, err
	}
	groups, err := s.store.Groups.ListAvailable(ctx, actor.UserID, s.threshold)
	if err != nil {
		return nil, dbErr(err, "groups")
	}
	return viewsOf(groups), nil
}

// ListAccepted 其他卖家已接单未完成的团购
func (s *GroupService) ListAccepted(ctx context.Context, actor Actor) ([]GroupView, error) {
	if err := Authorize(ActionViewSellerQueues, actor, 0); err != nil {
		return nil, err
	}
	groups, err := s.store.Groups.ListAccepted(ctx, actor.UserID)
	if err != nil {
		return nil, dbErr(err, "groups")
	}
	return viewsOf(groups), nil
}

// ListCompleted 其他卖家已完成的团购
func (s *GroupService) ListCompleted(ctx context.Context, actor Actor) ([]GroupView, error) {
	if err := Authorize(ActionViewSellerQueues, actor, 0); err != nil {
		return nil, err
	}
	groups, err := s.store.Groups.ListCompleted(ctx, actor.UserID)
	if err != nil {
		return nil, dbErr(err, "groups")
	}
	return viewsOf(groups), nil
}

// ListMine 顾客: 参与的团及自己的份额; 卖家: 自己商品上的团
func (s *GroupService) ListMine(ctx context.Context, actor Actor) ([]GroupView, error) {
	if actor.Role == models.RoleSeller {
		groups, err := s.store.Groups.ListBySeller(ctx, actor.UserID)
		if err != nil {
			return nil, dbErr(err, "groups")
		}
		return viewsOf(groups), nil
	}

	groups, err := s.store.Groups.ListByMember(ctx, actor.UserID)
	if err != nil {
		return nil, dbErr(err, "groups")
	}
	views := make([]GroupView, 0, len(groups))
	for i := range groups {
		g := &groups[i]
		view := GroupView{Group: g, State: g.State()}
		if len(g.GroupMembers) > 0 {
			m := g.GroupMembers[0]
			view.Membership = &MembershipView{
				MemberID:   m.ID,
				Quantity:   m.Quantity,
				TotalPrice: m.TotalPrice,
				IsPickedUp: m.IsPickedUp,
				PickupCode: m.PickupOTP,
			}
			g.GroupMembers = nil
		}
		views = append(views, view)
	}
	return views, nil
}

// LockEligibleGroups 锁定全部达到门槛的未锁团购, 可重复执行
func (s *GroupService) LockEligibleGroups(ctx context.Context) (int64, error) {
	n, err := s.store.Groups.LockEligible(ctx, s.clock.Now(), s.threshold)
	if err != nil {
		return 0, dbErr(err, "groups")
	}
	s.log.InfoContext(ctx, "eligible groups locked", zap.Int64("locked", n))
	return n, nil
}
