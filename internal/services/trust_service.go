package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Gopher0727/LockDeal/config"
	"github.com/Gopher0727/LockDeal/internal/repositories"
)

// Tier 一个信任档位. Unlimited 时 MaxGroups 与 PriceLimit 不生效
type Tier struct {
	MinScore   float64
	Unlimited  bool
	MaxGroups  int
	PriceLimit decimal.Decimal
}

// Policy 信任分到权限的映射. Tiers 按 MinScore 从高到低, 最后一档兜底
type Policy struct {
	DefaultScore float64
	Tiers        []Tier
}

// DefaultPolicy >=3.5 不限; [2.5,3.5) 50 团/20000; <2.5 20 团/7000
func DefaultPolicy() Policy {
	return Policy{
		DefaultScore: 3.0,
		Tiers: []Tier{
			{MinScore: 3.5, Unlimited: true},
			{MinScore: 2.5, MaxGroups: 50, PriceLimit: decimal.NewFromInt(20000)},
			{MinScore: 0, MaxGroups: 20, PriceLimit: decimal.NewFromInt(7000)},
		},
	}
}

// PolicyFromConfig 由配置构造策略
func PolicyFromConfig(cfg config.PolicyConfig) (Policy, error) {
	standard, err := decimal.NewFromString(cfg.StandardPriceLimit)
	if err != nil {
		return Policy{}, fmt.Errorf("policy.standard_price_limit: %w", err)
	}
	restricted, err := decimal.NewFromString(cfg.RestrictedPriceLimit)
	if err != nil {
		return Policy{}, fmt.Errorf("policy.restricted_price_limit: %w", err)
	}
	if cfg.TrustedMinScore < cfg.StandardMinScore {
		return Policy{}, fmt.Errorf("policy.trusted_min_score must not be below policy.standard_min_score")
	}

	p := Policy{
		DefaultScore: cfg.DefaultTrustScore,
		Tiers: []Tier{
			{MinScore: cfg.TrustedMinScore, Unlimited: true},
			{MinScore: cfg.StandardMinScore, MaxGroups: cfg.StandardMaxGroups, PriceLimit: standard},
			{MinScore: 0, MaxGroups: cfg.RestrictedMaxGroups, PriceLimit: restricted},
		},
	}
	sort.SliceStable(p.Tiers, func(i, j int) bool { return p.Tiers[i].MinScore > p.Tiers[j].MinScore })
	return p, nil
}

// TierFor 返回分数所属档位
func (p Policy) TierFor(score float64) Tier {
	for _, t := range p.Tiers {
		if score >= t.MinScore {
			return t
		}
	}
	return p.Tiers[len(p.Tiers)-1]
}

// Permissions 卖家当前的权限
type Permissions struct {
	TrustScore float64          `json:"trust_score"`
	Unlimited  bool             `json:"unlimited"`
	MaxGroups  *int             `json:"max_groups"`
	PriceLimit *decimal.Decimal `json:"price_limit"`
}

// Permissions 由分数计算权限
func (p Policy) Permissions(score float64) Permissions {
	t := p.TierFor(score)
	perms := Permissions{TrustScore: score, Unlimited: t.Unlimited}
	if !t.Unlimited {
		maxGroups, limit := t.MaxGroups, t.PriceLimit
		perms.MaxGroups = &maxGroups
		perms.PriceLimit = &limit
	}
	return perms
}

// AllowsPrice price <= 档位上限
func (perms Permissions) AllowsPrice(price decimal.Decimal) bool {
	return perms.Unlimited || price.LessThanOrEqual(*perms.PriceLimit)
}

// MeanScore 分值的算术平均, 没有评分时 ok 为 false
func MeanScore(scores []int) (mean float64, ok bool) {
	if len(scores) == 0 {
		return 0, false
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores)), true
}

// TrustService 信任分与权限. 每次调用都按评分重新计算, 不做缓存
type TrustService struct {
	store  *repositories.Store
	policy Policy
}

func NewTrustService(store *repositories.Store, policy Policy) *TrustService {
	return &TrustService{store: store, policy: policy}
}

// Policy 当前策略
func (s *TrustService) Policy() Policy {
	return s.policy
}

// CalculateTrustScore 卖家评分均值, 没有评分时取默认分
func (s *TrustService) CalculateTrustScore(ctx context.Context, sellerID uint) (float64, error) {
	return s.scoreWith(ctx, s.store, sellerID)
}

func (s *TrustService) scoreWith(ctx context.Context, store *repositories.Store, sellerID uint) (float64, error) {
	scores, err := store.Ratings.ScoresForSeller(ctx, sellerID)
	if err != nil {
		return 0, dbErr(err, "ratings")
	}
	if mean, ok := MeanScore(scores); ok {
		return mean, nil
	}
	return s.policy.DefaultScore, nil
}

// GetPermissions 卖家当前权限
func (s *TrustService) GetPermissions(ctx context.Context, sellerID uint) (Permissions, error) {
	score, err := s.CalculateTrustScore(ctx, sellerID)
	if err != nil {
		return Permissions{}, err
	}
	return s.policy.Permissions(score), nil
}

// CheckSellerLimits 返回卖家未完成团数是否已达上限, 以及当前权限
func (s *TrustService) CheckSellerLimits(ctx context.Context, sellerID uint) (bool, Permissions, error) {
	return s.checkLimitsWith(ctx, s.store, sellerID)
}

func (s *TrustService) checkLimitsWith(ctx context.Context, store *repositories.Store, sellerID uint) (bool, Permissions, error) {
	score, err := s.scoreWith(ctx, store, sellerID)
	if err != nil {
		return false, Permissions{}, err
	}
	perms := s.policy.Permissions(score)
	if perms.Unlimited {
		return false, perms, nil
	}

	open, err := store.Groups.CountOpenBySeller(ctx, sellerID)
	if err != nil {
		return false, Permissions{}, dbErr(err, "groups")
	}
	return open >= int64(*perms.MaxGroups), perms, nil
}

// CanSetPrice price 是否在卖家档位上限内
func (s *TrustService) CanSetPrice(ctx context.Context, sellerID uint, price decimal.Decimal) (bool, Permissions, error) {
	perms, err := s.GetPermissions(ctx, sellerID)
	if err != nil {
		return false, Permissions{}, err
	}
	return perms.AllowsPrice(price), perms, nil
}
