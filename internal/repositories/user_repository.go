package repositories

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Gopher0727/LockDeal/internal/models"
)

// 用户档案读多写少, 按 ID 缓存一份 JSON. redis 为 nil 时直接读库
const userCacheTTL = 10 * time.Minute

type UserRepository struct {
	db    *gorm.DB
	cache *redis.Client
}

func NewUserRepository(db *gorm.DB, cache *redis.Client) *UserRepository {
	return &UserRepository{db: db, cache: cache}
}

func userCacheKey(id uint) string {
	return "lockdeal:user:" + strconv.FormatUint(uint64(id), 10)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID 先查缓存, 未命中读库并回填
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if user, ok := r.cached(ctx, id); ok {
		return user, nil
	}

	user := new(models.User)
	if err := r.db.WithContext(ctx).First(user, id).Error; err != nil {
		return nil, err
	}
	r.fill(ctx, user)
	return user, nil
}

// GetByEmail 邮箱已在 service 层统一小写
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := new(models.User)
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Update 写库后删缓存, 下次读再回填
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.Del(ctx, userCacheKey(user.ID))
	}
	return nil
}

func (r *UserRepository) cached(ctx context.Context, id uint) (*models.User, bool) {
	if r.cache == nil {
		return nil, false
	}
	raw, err := r.cache.Get(ctx, userCacheKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	user := new(models.User)
	if json.Unmarshal(raw, user) != nil {
		return nil, false
	}
	return user, true
}

// fill 回填失败不影响读取
func (r *UserRepository) fill(ctx context.Context, user *models.User) {
	if r.cache == nil {
		return
	}
	if data, err := json.Marshal(user); err == nil {
		r.cache.Set(ctx, userCacheKey(user.ID), data, userCacheTTL)
	}
}
