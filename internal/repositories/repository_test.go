package repositories

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Gopher0727/LockDeal/internal/models"
	"github.com/Gopher0727/LockDeal/internal/storage"
)

var dbSeq atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, storage.Migrate(db))
	return db
}

func seedGroup(t *testing.T, s *Store, sellerID uint, price string) (*models.Product, *models.Group) {
	t.Helper()
	ctx := context.Background()

	product := &models.Product{SellerID: sellerID, Name: "Beras", Price: decimal.RequireFromString(price), Unit: "kg"}
	require.NoError(t, s.Products.Create(ctx, product))

	group := &models.Group{ProductID: product.ID, SellerID: sellerID, TotalPrice: decimal.Zero}
	require.NoError(t, s.Groups.Create(ctx, group))
	return product, group
}

func addMember(t *testing.T, s *Store, g *models.Group, userID uint, qty int, price decimal.Decimal) *models.GroupMember {
	t.Helper()
	m := &models.GroupMember{
		GroupID:    g.ID,
		UserID:     userID,
		SellerID:   g.SellerID,
		Quantity:   qty,
		TotalPrice: price.Mul(decimal.NewFromInt(int64(qty))),
		JoinedAt:   time.Now(),
	}
	require.NoError(t, s.Members.Create(context.Background(), m))
	return m
}

func TestMemberRepository_ActiveTotals(t *testing.T) {
	s := NewStore(newTestDB(t), nil)
	ctx := context.Background()
	product, group := seedGroup(t, s, 1, "100")

	totals, err := s.Members.ActiveTotals(ctx, group.ID)
	require.NoError(t, err)
	assert.True(t, totals.Total.IsZero())
	assert.Zero(t, totals.Members)

	addMember(t, s, group, 10, 2, product.Price)
	picked := addMember(t, s, group, 11, 3, product.Price)
	addMember(t, s, group, 12, 1, product.Price)

	totals, err = s.Members.ActiveTotals(ctx, group.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(600).Equal(totals.Total), totals.Total.String())
	assert.EqualValues(t, 3, totals.Members)

	picked.IsPickedUp = true
	require.NoError(t, s.Members.Save(ctx, picked))

	totals, err = s.Members.ActiveTotals(ctx, group.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(300).Equal(totals.Total), totals.Total.String())
	assert.EqualValues(t, 2, totals.Members)

	pending, err := s.Members.CountPending(ctx, group.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending)

	has, err := s.Members.HasPickedUpFromSeller(ctx, 11, 1)
	require.NoError(t, err)
	assert.True(t, has)
	has, err = s.Members.HasPickedUpFromSeller(ctx, 10, 1)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMemberRepository_UniqueGroupUser(t *testing.T) {
	s := NewStore(newTestDB(t), nil)
	product, group := seedGroup(t, s, 1, "100")

	addMember(t, s, group, 10, 1, product.Price)
	dup := &models.GroupMember{GroupID: group.ID, UserID: 10, SellerID: 1, Quantity: 1, TotalPrice: product.Price, JoinedAt: time.Now()}
	assert.Error(t, s.Members.Create(context.Background(), dup))
}

func TestMemberRepository_Codes(t *testing.T) {
	s := NewStore(newTestDB(t), nil)
	ctx := context.Background()
	product, group := seedGroup(t, s, 1, "100")

	a := addMember(t, s, group, 10, 1, product.Price)
	b := addMember(t, s, group, 11, 1, product.Price)

	code := "123456"
	a.PickupOTP = &code
	require.NoError(t, s.Members.Save(ctx, a))

	inUse, err := s.Members.CodeInUse(ctx, group.ID, code, b.ID)
	require.NoError(t, err)
	assert.True(t, inUse)

	inUse, err = s.Members.CodeInUse(ctx, group.ID, code, a.ID)
	require.NoError(t, err)
	assert.False(t, inUse, "a member's own code does not collide with itself")

	found, err := s.Members.FindByCode(ctx, group.ID, code)
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)

	_, err = s.Members.FindByCode(ctx, group.ID, "000000")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGroupRepository_Queries(t *testing.T) {
	s := NewStore(newTestDB(t), nil)
	ctx := context.Background()
	threshold := Threshold{MinMembers: 2, MinTotal: decimal.NewFromInt(1000)}

	// 卖家 1: 人数达标 / 金额达标 / 都不达标
	p1, byMembers := seedGroup(t, s, 1, "100")
	addMember(t, s, byMembers, 10, 1, p1.Price)
	addMember(t, s, byMembers, 11, 1, p1.Price)
	byMembers.Members, byMembers.TotalPrice = 2, decimal.NewFromInt(200)
	require.NoError(t, s.Groups.Save(ctx, byMembers))

	p2, byTotal := seedGroup(t, s, 1, "1500")
	addMember(t, s, byTotal, 10, 1, p2.Price)
	byTotal.Members, byTotal.TotalPrice = 1, decimal.NewFromInt(1500)
	require.NoError(t, s.Groups.Save(ctx, byTotal))

	_, small := seedGroup(t, s, 1, "10")

	locked, err := s.Groups.LockEligible(ctx, time.Now(), threshold)
	require.NoError(t, err)
	assert.EqualValues(t, 2, locked)

	again, err := s.Groups.LockEligible(ctx, time.Now(), threshold)
	require.NoError(t, err)
	assert.Zero(t, again, "already locked groups are left alone")

	got, err := s.Groups.GetByID(ctx, small.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LockedAt)

	available, err := s.Groups.ListAvailable(ctx, 2, threshold)
	require.NoError(t, err)
	assert.Len(t, available, 2)

	own, err := s.Groups.ListAvailable(ctx, 1, threshold)
	require.NoError(t, err)
	assert.Empty(t, own, "a seller never sees its own groups as available")

	open, err := s.Groups.CountOpenBySeller(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, open)

	mine, err := s.Groups.ListByMember(ctx, 10)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, g := range mine {
		require.Len(t, g.GroupMembers, 1)
		assert.Equal(t, uint(10), g.GroupMembers[0].UserID)
		assert.NotNil(t, g.Product)
	}
}

func TestRatingRepository_FindSlot(t *testing.T) {
	s := NewStore(newTestDB(t), nil)
	ctx := context.Background()
	productID := uint(5)

	require.NoError(t, s.Ratings.Create(ctx, &models.Rating{UserID: 1, SellerID: 2, Score: 4}))
	require.NoError(t, s.Ratings.Create(ctx, &models.Rating{UserID: 1, SellerID: 2, ProductID: &productID, Score: 2}))

	general, err := s.Ratings.FindSlot(ctx, 1, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, general.Score)

	specific, err := s.Ratings.FindSlot(ctx, 1, 2, &productID)
	require.NoError(t, err)
	assert.Equal(t, 2, specific.Score)

	other := uint(6)
	_, err = s.Ratings.FindSlot(ctx, 1, 2, &other)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	scores, err := s.Ratings.ScoresForSeller(ctx, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{4, 2}, scores)
}

func TestStore_TransactionRollback(t *testing.T) {
	s := NewStore(newTestDB(t), nil)
	ctx := context.Background()

	err := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.Users.Create(ctx, &models.User{Name: "a", Email: "a@lockdeal.test", Role: models.RoleCustomer}); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	_, err = s.Users.GetByEmail(ctx, "a@lockdeal.test")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRatingRepository_Upsert(t *testing.T) {
	s := NewStore(newTestDB(t), nil)
	ctx := context.Background()
	productID := uint(5)

	first, err := s.Ratings.Upsert(ctx, &models.Rating{UserID: 1, SellerID: 2, Score: 2, Feedback: "slow"})
	require.NoError(t, err)
	again, err := s.Ratings.Upsert(ctx, &models.Rating{UserID: 1, SellerID: 2, Score: 5, Feedback: "better"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 5, again.Score)
	assert.Equal(t, "better", again.Feedback)

	_, err = s.Ratings.Upsert(ctx, &models.Rating{UserID: 1, SellerID: 2, ProductID: &productID, Score: 3})
	require.NoError(t, err)
	_, err = s.Ratings.Upsert(ctx, &models.Rating{UserID: 1, SellerID: 2, ProductID: &productID, Score: 4})
	require.NoError(t, err)

	scores, err := s.Ratings.ScoresForSeller(ctx, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{5, 4}, scores)

	// 绕过 Upsert 的重复写入被唯一索引拦下
	assert.Error(t, s.Ratings.Create(ctx, &models.Rating{UserID: 1, SellerID: 2, Score: 1}))
	assert.Error(t, s.Ratings.Create(ctx, &models.Rating{UserID: 1, SellerID: 2, ProductID: &productID, Score: 1}))
}

func TestUserRepository_Cache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewStore(newTestDB(t), rdb)
	ctx := context.Background()

	user := &models.User{Name: "Sari", Email: "sari@lockdeal.test", Role: models.RoleCustomer}
	require.NoError(t, s.Users.Create(ctx, user))

	got, err := s.Users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sari", got.Name)
	assert.True(t, mr.Exists(userCacheKey(user.ID)))
	assert.Equal(t, userCacheTTL, mr.TTL(userCacheKey(user.ID)))

	user.Name = "Sari W."
	require.NoError(t, s.Users.Update(ctx, user))
	assert.False(t, mr.Exists(userCacheKey(user.ID)), "update evicts the cached copy")

	got, err = s.Users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sari W.", got.Name)
}
