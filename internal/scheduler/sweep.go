package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopher0727/LockDeal/internal/services"
	logger "github.com/Gopher0727/LockDeal/middleware/log"
)

// GroupLocker 周期任务要调用的锁团操作
type GroupLocker interface {
	LockEligibleGroups(ctx context.Context) (int64, error)
}

// Lease 多实例部署时保证同一窗口只有一个实例执行
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisLease 基于 SET NX 的租约
type RedisLease struct {
	client *redis.Client
	owner  string
}

func NewRedisLease(client *redis.Client) *RedisLease {
	return &RedisLease{client: client, owner: uuid.NewString()}
}

func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	return ok, nil
}

// releaseScript 只删除自己持有的租约
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLease) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, l.client, []string{key}, l.owner).Err(); err != nil {
		return fmt.Errorf("release lease %s: %w", key, err)
	}
	return nil
}

// localLease 单实例部署使用的进程内租约
type localLease struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func newLocalLease(now func() time.Time) *localLease {
	return &localLease{expires: make(map[string]time.Time), now: now}
}

func (l *localLease) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if exp, ok := l.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	l.expires[key] = now.Add(ttl)
	return true, nil
}

func (l *localLease) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.expires, key)
	return nil
}

// WeeklySweep 每到指定星期锁定所有达到门槛的团购, 每个日期最多执行一次
type WeeklySweep struct {
	groups   GroupLocker
	lease    Lease
	clock    services.Clock
	weekday  time.Weekday
	interval time.Duration
	leaseTTL time.Duration
	log      *logger.Logger
}

// NewWeeklySweep lease 为 nil 时视为单实例部署, 使用进程内租约
func NewWeeklySweep(groups GroupLocker, lease Lease, clock services.Clock, weekday time.Weekday, interval, leaseTTL time.Duration, log *logger.Logger) *WeeklySweep {
	if interval <= 0 {
		interval = time.Hour
	}
	if leaseTTL <= 0 {
		leaseTTL = 23 * time.Hour
	}
	if lease == nil {
		lease = newLocalLease(clock.Now)
	}
	return &WeeklySweep{
		groups:   groups,
		lease:    lease,
		clock:    clock,
		weekday:  weekday,
		interval: interval,
		leaseTTL: leaseTTL,
		log:      log,
	}
}

func leaseKey(now time.Time) string {
	return "lockdeal:sweep:" + now.Format(time.DateOnly)
}

// RunOnce 执行一次检查. ran 表示本次是否真正执行了锁团
func (s *WeeklySweep) RunOnce(ctx context.Context) (ran bool, locked int64, err error) {
	now := s.clock.Now()
	if now.Weekday() != s.weekday {
		return false, 0, nil
	}

	ok, err := s.lease.Acquire(ctx, leaseKey(now), s.leaseTTL)
	if err != nil {
		return false, 0, err
	}
	if !ok {
		s.log.DebugContext(ctx, "weekly sweep already done", zap.String("date", now.Format(time.DateOnly)))
		return false, 0, nil
	}

	locked, err = s.groups.LockEligibleGroups(ctx)
	if err != nil {
		// 放弃租约, 下一次 tick 重试
		if rerr := s.lease.Release(ctx, leaseKey(now)); rerr != nil {
			s.log.WarnContext(ctx, "release sweep lease failed", zap.Error(rerr))
		}
		return true, 0, err
	}
	s.log.InfoContext(ctx, "weekly sweep finished",
		zap.String("date", now.Format(time.DateOnly)),
		zap.Int64("locked", locked),
	)
	return true, locked, nil
}

// Start 立即检查一次, 之后每个 interval 检查一次, ctx 取消后返回
func (s *WeeklySweep) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		sweepCtx := logger.WithTraceID(ctx, "")
		if _, _, err := s.RunOnce(sweepCtx); err != nil {
			s.log.ErrorContext(sweepCtx, "weekly sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
