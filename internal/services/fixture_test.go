package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Gopher0727/LockDeal/internal/models"
	"github.com/Gopher0727/LockDeal/internal/repositories"
	"github.com/Gopher0727/LockDeal/internal/storage"
	logger "github.com/Gopher0727/LockDeal/middleware/log"
)

var dbSeq atomic.Int64

// 2026-10-17 是周六, 2026-10-14 是周三
var (
	saturday  = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	wednesday = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
)

func newTestStore(t testing.TB) *repositories.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:services_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, storage.Migrate(db))
	return repositories.NewStore(db, nil)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []PickupNotice
	err     error
}

func (n *recordingNotifier) NotifyPickupOTP(_ context.Context, notice PickupNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *recordingNotifier) sent() []PickupNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]PickupNotice(nil), n.notices...)
}

type countingLimiter struct {
	mu    sync.Mutex
	calls map[string]int64
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int64, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.calls == nil {
		l.calls = make(map[string]int64)
	}
	l.calls[key]++
	return l.calls[key] <= limit, nil
}

type fixture struct {
	t        testing.TB
	ctx      context.Context
	store    *repositories.Store
	clock    *fakeClock
	notifier *recordingNotifier
	limiter  *countingLimiter

	trust    *TrustService
	groups   *GroupService
	pickup   *PickupService
	products *ProductService
	sellers  *SellerService
	ratings  *RatingService
	deals    *DealService
	users    *UserService

	seq int
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	policy    Policy
	window    PickupWindow
	attempts  int
	threshold repositories.Threshold
}

func withPolicy(p Policy) fixtureOption { return func(c *fixtureConfig) { c.policy = p } }

func withWindow(w PickupWindow) fixtureOption { return func(c *fixtureConfig) { c.window = w } }

func withAttempts(n int) fixtureOption { return func(c *fixtureConfig) { c.attempts = n } }

func withThreshold(th repositories.Threshold) fixtureOption {
	return func(c *fixtureConfig) { c.threshold = th }
}

func newFixture(t testing.TB, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{policy: DefaultPolicy(), window: AnyDay, threshold: DefaultThreshold()}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := newTestStore(t)
	clock := &fakeClock{now: saturday}
	notifier := &recordingNotifier{}
	limiter := &countingLimiter{}
	log := logger.NewNop()
	codes := NewCodeIssuer()

	trust := NewTrustService(store, cfg.policy)
	groups := NewGroupService(store, trust, codes, notifier, clock, cfg.threshold, log)

	return &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    store,
		clock:    clock,
		notifier: notifier,
		limiter:  limiter,
		trust:    trust,
		groups:   groups,
		pickup:   NewPickupService(store, groups, codes, notifier, limiter, cfg.attempts, cfg.window, clock, log),
		products: NewProductService(store, trust, log),
		sellers:  NewSellerService(store, trust, log),
		ratings:  NewRatingService(store, trust, log),
		deals:    NewDealService(store, log),
		users:    NewUserService(store, log),
	}
}

func (f *fixture) user(role models.Role, name string) Actor {
	f.t.Helper()
	f.seq++
	u := &models.User{Name: name, Email: fmt.Sprintf("%s.%d@lockdeal.test", name, f.seq), Role: role}
	require.NoError(f.t, f.store.Users.Create(f.ctx, u))
	return Actor{UserID: u.ID, Role: role}
}

func (f *fixture) customer(name string) Actor {
	return f.user(models.RoleCustomer, name)
}

// seller 创建卖家用户及资料, 联系方式已填写且已缴费
func (f *fixture) seller(name string) Actor {
	f.t.Helper()
	a := f.user(models.RoleSeller, name)
	require.NoError(f.t, f.store.Sellers.Create(f.ctx, &models.Seller{
		UserID:   a.UserID,
		ShopName: name + " shop",
		Address:  "Jl. " + name,
		Contact:  "0812-" + name,
		Paid99:   true,
	}))
	return a
}

// product 直接落库, 不经过价格档位检查
func (f *fixture) product(seller Actor, price string) *models.Product {
	f.t.Helper()
	p := &models.Product{SellerID: seller.UserID, Name: "Beras", Price: decimal.RequireFromString(price), Unit: "kg"}
	require.NoError(f.t, f.store.Products.Create(f.ctx, p))
	return p
}

func (f *fixture) group(seller Actor, price string) *models.Group {
	f.t.Helper()
	g, err := f.groups.CreateGroup(f.ctx, seller, f.product(seller, price).ID)
	require.NoError(f.t, err)
	return g
}

func (f *fixture) join(c Actor, groupID uint, qty int) *models.GroupMember {
	f.t.Helper()
	m, err := f.groups.Join(f.ctx, c, groupID, qty)
	require.NoError(f.t, err)
	return m
}

func (f *fixture) reload(groupID uint) *models.Group {
	f.t.Helper()
	g, err := f.groups.GetGroup(f.ctx, groupID)
	require.NoError(f.t, err)
	return g
}

func (f *fixture) member(memberID uint) *models.GroupMember {
	f.t.Helper()
	m, err := f.store.Members.GetByID(f.ctx, memberID)
	require.NoError(f.t, err)
	return m
}

func (f *fixture) deal(groupID uint) *models.Deal {
	f.t.Helper()
	d, err := f.store.Deals.GetByGroup(f.ctx, groupID)
	require.NoError(f.t, err)
	return d
}

// pickedUp 伪造一次已完成的提货, 用于评分前置条件
func (f *fixture) pickedUp(c Actor, seller Actor) {
	f.t.Helper()
	g := f.group(seller, "10")
	m := f.join(c, g.ID, 1)
	_, err := f.groups.Accept(f.ctx, seller, g.ID)
	require.NoError(f.t, err)
	_, err = f.groups.ConfirmPickup(f.ctx, seller, m.ID)
	require.NoError(f.t, err)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
