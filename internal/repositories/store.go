package repositories

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Store 聚合全部仓储, 共享同一个 *gorm.DB 句柄
type Store struct {
	db    *gorm.DB
	redis *redis.Client

	Users    *UserRepository
	Sellers  *SellerRepository
	Products *ProductRepository
	Groups   *GroupRepository
	Members  *MemberRepository
	Deals    *DealRepository
	Ratings  *RatingRepository
}

// NewStore 创建仓储集合. rdb 可为 nil, 此时用户缓存关闭
func NewStore(db *gorm.DB, rdb *redis.Client) *Store {
	return &Store{
		db:       db,
		redis:    rdb,
		Users:    NewUserRepository(db, rdb),
		Sellers:  NewSellerRepository(db),
		Products: NewProductRepository(db),
		Groups:   NewGroupRepository(db),
		Members:  NewMemberRepository(db),
		Deals:    NewDealRepository(db),
		Ratings:  NewRatingRepository(db),
	}
}

// Transaction 在一个数据库事务中执行 fn, fn 返回错误时整体回滚
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx, s.redis))
	})
}

// DB 返回底层句柄
func (s *Store) DB() *gorm.DB {
	return s.db
}
