package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopher0727/LockDeal/config"
	"github.com/Gopher0727/LockDeal/internal/handlers"
	"github.com/Gopher0727/LockDeal/internal/middlewares"
	"github.com/Gopher0727/LockDeal/internal/notify"
	"github.com/Gopher0727/LockDeal/internal/repositories"
	"github.com/Gopher0727/LockDeal/internal/routers"
	"github.com/Gopher0727/LockDeal/internal/scheduler"
	"github.com/Gopher0727/LockDeal/internal/services"
	"github.com/Gopher0727/LockDeal/internal/storage"
	"github.com/Gopher0727/LockDeal/middleware/jwt"
	logger "github.com/Gopher0727/LockDeal/middleware/log"
	"github.com/Gopher0727/LockDeal/utils/ratelimit"
)

func main() {
	configPath := flag.String("config", "./config.toml", "配置文件路径")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "lockdeal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("配置初始化失败: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化 PostgreSQL (含迁移)
	db, err := storage.InitPostgres(&cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres 初始化失败: %w", err)
	}

	// 初始化 Redis, 未启用时限流与分布式租约退化为单机
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = storage.InitRedis(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis 初始化失败: %w", err)
		}
		defer redisClient.Close()
	}

	store := repositories.NewStore(db, redisClient)

	policy, err := services.PolicyFromConfig(cfg.Policy)
	if err != nil {
		return err
	}
	threshold, err := services.ThresholdFromConfig(cfg.Policy)
	if err != nil {
		return err
	}
	window := services.AnyDay
	if cfg.Pickup.WeekendOnly {
		window = services.WeekendOnly
	}

	// 提货码通知: Kafka 可用时发事件, 否则只记日志
	var notifier services.OTPNotifier = services.NewLogNotifier(log)
	if cfg.Kafka.Enabled {
		kafkaNotifier, err := notify.NewKafkaNotifier(&cfg.Kafka, log)
		if err != nil {
			log.Warn("Kafka 生产者初始化失败, 提货码只写日志", zap.Error(err))
		} else {
			defer kafkaNotifier.Close()
			asyncNotifier := notify.NewAsyncNotifier(kafkaNotifier, cfg.Kafka.NotifyWorkers, cfg.Kafka.NotifyQueue, 5*time.Second, log)
			defer asyncNotifier.Close()
			notifier = asyncNotifier

			if cfg.Kafka.Consume {
				consumer := notify.NewPickupOTPConsumer(notify.NewLogDeliverer(log), log)
				if err := notify.StartConsumer(ctx, cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, cfg.Kafka.Topic, consumer, log); err != nil {
					return err
				}
			}
		}
	}

	var (
		limiter       ratelimit.Limiter
		attemptLimits services.AttemptLimiter
		lease         scheduler.Lease
	)
	if redisClient != nil {
		windowLimiter := ratelimit.NewWindowLimiter(redisClient, log.Logger, true)
		limiter, attemptLimits = windowLimiter, windowLimiter
		lease = scheduler.NewRedisLease(redisClient)
	}

	// 初始化服务层
	clock := services.SystemClock{}
	codes := services.NewCodeIssuer()
	trustService := services.NewTrustService(store, policy)
	groupService := services.NewGroupService(store, trustService, codes, notifier, clock, threshold, log)
	pickupService := services.NewPickupService(store, groupService, codes, notifier, attemptLimits, cfg.Pickup.AttemptsPerMinute, window, clock, log)
	productService := services.NewProductService(store, trustService, log)
	sellerService := services.NewSellerService(store, trustService, log)
	ratingService := services.NewRatingService(store, trustService, log)
	dealService := services.NewDealService(store, log)
	userService := services.NewUserService(store, log)

	// 周期锁团
	if cfg.Sweep.Enabled {
		weekday, err := cfg.Sweep.ParseWeekday()
		if err != nil {
			return err
		}
		sweep := scheduler.NewWeeklySweep(groupService, lease, clock, weekday, cfg.Sweep.Interval, cfg.Sweep.LeaseTTL, log)
		go sweep.Start(ctx)
	}

	tokenManager := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.RefreshHours)
	if cfg.JWT.Secret == "" {
		log.Warn("jwt.secret 为空, 请在生产环境配置")
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	routers.SetupRoutes(r, cfg, middlewares.NewMiddlewareManager(tokenManager, limiter, log), routers.Handlers{
		Auth:    handlers.NewAuthHandler(userService, tokenManager),
		Group:   handlers.NewGroupHandler(groupService, pickupService),
		Seller:  handlers.NewSellerHandler(sellerService, productService, ratingService),
		Product: handlers.NewProductHandler(productService),
		Rating:  handlers.NewRatingHandler(ratingService),
		Deal:    handlers.NewDealHandler(dealService),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("正在启动服务器", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("正在关闭服务器")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
