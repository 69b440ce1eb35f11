//go:build wireinject
// +build wireinject

// Wire依赖注入配置文件
//
// 教学说明：
// 1. Wire是Google开发的编译期依赖注入工具
// 2. 与运行时反射注入不同，Wire在编译期生成代码
// 3. 优势：零运行时开销、类型安全、编译期检测循环依赖
//
// Wire工作流程：
// Step 1: 编写wire.go（本文件），定义Providers和Injector
// Step 2: 运行 `wire gen ./cmd/api`
// Step 3: Wire生成wire_gen.go，包含完整的依赖创建代码
// Step 4: main.go把newApp替换为InitializeApp
//
// 说明：这里只组装MySQL/Postgres + Redis的生产配置，内存存储走app.go中的newStorage

package main

import (
	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xiebiao/rentalhub/internal/application/availability"
	appproduct "github.com/xiebiao/rentalhub/internal/application/product"
	"github.com/xiebiao/rentalhub/internal/application/rental"
	"github.com/xiebiao/rentalhub/internal/application/scheduler"
	appuser "github.com/xiebiao/rentalhub/internal/application/user"
	"github.com/xiebiao/rentalhub/internal/domain/notification"
	"github.com/xiebiao/rentalhub/internal/domain/order"
	"github.com/xiebiao/rentalhub/internal/domain/product"
	"github.com/xiebiao/rentalhub/internal/domain/reservation"
	"github.com/xiebiao/rentalhub/internal/domain/user"
	"github.com/xiebiao/rentalhub/internal/infrastructure/config"
	"github.com/xiebiao/rentalhub/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/rentalhub/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/rentalhub/internal/interface/http/handler"
	"github.com/xiebiao/rentalhub/internal/interface/http/middleware"
	"github.com/xiebiao/rentalhub/internal/interface/http/router"
	"github.com/xiebiao/rentalhub/pkg/jwt"
)

// ========================================
// Wire Provider Sets (依赖分组)
// ========================================

// infrastructureSet 基础设施层依赖：数据库、Redis、通知端
var infrastructureSet = wire.NewSet(
	provideDB,
	provideRedis,
	provideLocker,
	newNotifier,
	provideJWTManager,
)

// repositorySet 仓储层依赖
var repositorySet = wire.NewSet(
	mysql.NewUserRepository,
	mysql.NewProductRepository,
	mysql.NewReservationRepository,
	mysql.NewOrderRepository,
	mysql.NewNotificationRepository,
	mysql.NewTxManager,
	wire.Bind(new(rental.TxManager), new(*mysql.TxManager)),
	redis.NewSessionStore,
	wire.Bind(new(appuser.SessionStore), new(*redis.SessionStore)),
	wire.Bind(new(middleware.Blacklist), new(*redis.SessionStore)),
)

// domainSet 领域层依赖
var domainSet = wire.NewSet(
	user.NewService,
	product.NewService,
)

// applicationSet 应用层依赖
var applicationSet = wire.NewSet(
	availability.NewService,
	provideLateFees,
	appuser.NewRegisterUseCase,
	appuser.NewLoginUseCase,
	appuser.NewLogoutUseCase,
	appproduct.NewPublishProductUseCase,
	appproduct.NewGetProductUseCase,
	appproduct.NewListProductsUseCase,
	appproduct.NewRestockUseCase,
	rental.NewCreateOrderUseCase,
	provideTransitionUseCase,
	rental.NewGetOrderUseCase,
	rental.NewListOrdersUseCase,
	rental.NewLateFeeUseCase,
	provideExpiryScheduler,
)

// interfaceSet 接口层依赖
var interfaceSet = wire.NewSet(
	handler.NewUserHandler,
	handler.NewProductHandler,
	handler.NewOrderHandler,
	handler.NewSchedulerHandler,
	wire.Struct(new(router.Handlers), "*"),
	middleware.NewAuthMiddleware,
	provideEngine,
	provideApp,
)

// ========================================
// Custom Providers (自定义Provider)
// ========================================
// 教学说明：构造函数的参数需要从Config中提取时，编写自定义Provider

func provideDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := mysql.NewDB(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}

func provideRedis(cfg *config.Config, logger *zap.Logger) (*goredis.Client, func(), error) {
	client, err := redis.NewClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// provideLocker lock_ttl为0时不加跨实例锁
func provideLocker(cfg *config.Config, client *goredis.Client) scheduler.Locker {
	if cfg.Scheduler.LockTTL <= 0 {
		return nil
	}
	return redis.NewSweepLock(client)
}

func provideJWTManager(cfg *config.Config) *jwt.Manager {
	return jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpire, cfg.JWT.RefreshTokenExpire)
}

func provideLateFees(cfg *config.Config) rental.LateFeeSettings {
	return rental.NewStaticLateFeeSettings(cfg.LateFee.RateDecimal(), cfg.LateFee.GracePeriodHours)
}

func provideTransitionUseCase(
	cfg *config.Config,
	orderRepo order.Repository,
	productRepo product.Repository,
	reservationRepo reservation.Repository,
	txManager rental.TxManager,
	lateFees rental.LateFeeSettings,
	logger *zap.Logger,
) *rental.TransitionUseCase {
	return rental.NewTransitionUseCase(orderRepo, productRepo, reservationRepo, txManager, lateFees,
		cfg.Reservation.MaxConflictRetries, logger)
}

func provideExpiryScheduler(
	cfg *config.Config,
	orderRepo order.Repository,
	logRepo notification.Repository,
	notifier notification.Notifier,
	locker scheduler.Locker,
	logger *zap.Logger,
) *scheduler.ExpiryScheduler {
	return scheduler.NewExpiryScheduler(orderRepo, logRepo, notifier, locker, scheduler.Config{
		Lookahead:   cfg.Scheduler.Lookahead(),
		TickTimeout: cfg.Scheduler.TickTimeout,
		BatchSize:   cfg.Scheduler.BatchSize,
		LockTTL:     cfg.Scheduler.LockTTL,
	}, logger)
}

func provideEngine(cfg *config.Config, h router.Handlers, auth *middleware.AuthMiddleware, logger *zap.Logger) *gin.Engine {
	return router.New(h, auth, logger, router.Options{
		Mode:          cfg.Server.Mode,
		EnableSwagger: cfg.Server.Mode != gin.ReleaseMode,
	})
}

func provideApp(engine *gin.Engine, expiry *scheduler.ExpiryScheduler) *app {
	return &app{engine: engine, scheduler: expiry}
}

// ========================================
// Injector (注入器)
// ========================================

// InitializeApp 组装整个应用
// 返回的cleanup按依赖逆序关闭数据库、Redis和消息发布者
func InitializeApp(cfg *config.Config, logger *zap.Logger) (*app, func(), error) {
	wire.Build(
		infrastructureSet,
		repositorySet,
		domainSet,
		applicationSet,
		interfaceSet,
	)
	return nil, nil, nil
}
