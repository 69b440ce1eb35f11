package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

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
	"github.com/xiebiao/rentalhub/internal/infrastructure/notify"
	"github.com/xiebiao/rentalhub/internal/infrastructure/persistence/memory"
	"github.com/xiebiao/rentalhub/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/rentalhub/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/rentalhub/internal/interface/http/handler"
	"github.com/xiebiao/rentalhub/internal/interface/http/middleware"
	"github.com/xiebiao/rentalhub/internal/interface/http/router"
	"github.com/xiebiao/rentalhub/pkg/jwt"
	"github.com/xiebiao/rentalhub/pkg/mq"
)

// mqExchangeType 通知使用topic交换机，消费者按rental.*订阅
const mqExchangeType = "topic"

// app 组装完成的应用
type app struct {
	engine    *gin.Engine
	scheduler *scheduler.ExpiryScheduler
}

// sessionStore 会话存储（登录写会话、登出写黑名单、中间件查黑名单）
type sessionStore interface {
	appuser.SessionStore
	middleware.Blacklist
}

// transactor 事务管理器(租赁状态机与报损共用)
type transactor interface {
	rental.TxManager
	appproduct.TxManager
}

// storage 存储层依赖
type storage struct {
	txManager     transactor
	users         user.Repository
	products      product.Repository
	reservations  reservation.Repository
	orders        order.Repository
	notifications notification.Repository
	sessions      sessionStore
	locker        scheduler.Locker // nil表示单实例部署,不加跨实例锁
}

// newApp 手动依赖注入
// 学习要点：依赖注入链 Repository ← Service ← UseCase ← Handler
func newApp(cfg *config.Config, logger *zap.Logger) (*app, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	st, closeStorage, err := newStorage(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanups = append(cleanups, closeStorage)

	notifier, closeNotifier, err := newNotifier(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cleanups = append(cleanups, closeNotifier)

	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpire, cfg.JWT.RefreshTokenExpire)

	// 领域层
	userService := user.NewService(st.users)
	productService := product.NewService(st.products)

	// 应用层
	availabilitySvc := availability.NewService(st.products, st.reservations, logger)
	lateFees := rental.NewStaticLateFeeSettings(cfg.LateFee.RateDecimal(), cfg.LateFee.GracePeriodHours)

	expiry := scheduler.NewExpiryScheduler(st.orders, st.notifications, notifier, st.locker, scheduler.Config{
		Lookahead:   cfg.Scheduler.Lookahead(),
		TickTimeout: cfg.Scheduler.TickTimeout,
		BatchSize:   cfg.Scheduler.BatchSize,
		LockTTL:     cfg.Scheduler.LockTTL,
	}, logger)

	// 接口层
	handlers := router.Handlers{
		User: handler.NewUserHandler(
			appuser.NewRegisterUseCase(userService),
			appuser.NewLoginUseCase(userService, jwtManager, st.sessions, logger),
			appuser.NewLogoutUseCase(st.sessions),
			jwtManager,
		),
		Product: handler.NewProductHandler(
			appproduct.NewPublishProductUseCase(productService),
			appproduct.NewGetProductUseCase(productService),
			appproduct.NewListProductsUseCase(productService),
			appproduct.NewRestockUseCase(productService, st.products, st.reservations, st.txManager),
			availabilitySvc,
		),
		Order: handler.NewOrderHandler(
			rental.NewCreateOrderUseCase(st.orders, st.products, availabilitySvc, st.txManager, logger),
			rental.NewTransitionUseCase(st.orders, st.products, st.reservations, st.txManager, lateFees,
				cfg.Reservation.MaxConflictRetries, logger),
			rental.NewGetOrderUseCase(st.orders),
			rental.NewListOrdersUseCase(st.orders),
			rental.NewLateFeeUseCase(st.orders, lateFees),
		),
		Scheduler: handler.NewSchedulerHandler(expiry),
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, st.sessions)

	engine := router.New(handlers, authMiddleware, logger, router.Options{
		Mode:          cfg.Server.Mode,
		EnableSwagger: cfg.Server.Mode != gin.ReleaseMode,
	})

	return &app{engine: engine, scheduler: expiry}, cleanup, nil
}

// newStorage 按database.driver选择存储实现
// memory: 进程内存储,不依赖MySQL/Redis,用于本地演示
func newStorage(cfg *config.Config, logger *zap.Logger) (*storage, func(), error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("使用内存存储,重启后数据丢失")
		store := memory.NewStore()
		return &storage{
			txManager:     memory.NewTxManager(store),
			users:         memory.NewUserRepository(store),
			products:      memory.NewProductRepository(store),
			reservations:  memory.NewReservationRepository(store),
			orders:        memory.NewOrderRepository(store),
			notifications: memory.NewNotificationRepository(store),
			sessions:      memory.NewSessionStore(),
		}, func() {}, nil
	}

	db, err := mysql.NewDB(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化数据库失败: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("获取SQL DB失败: %w", err)
	}

	redisClient, err := redis.NewClient(cfg, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("初始化Redis失败: %w", err)
	}

	st := &storage{
		txManager:     mysql.NewTxManager(db),
		users:         mysql.NewUserRepository(db),
		products:      mysql.NewProductRepository(db),
		reservations:  mysql.NewReservationRepository(db),
		orders:        mysql.NewOrderRepository(db),
		notifications: mysql.NewNotificationRepository(db),
		sessions:      redis.NewSessionStore(redisClient),
	}
	if cfg.Scheduler.LockTTL > 0 {
		st.locker = redis.NewSweepLock(redisClient)
	}

	closeFn := func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("关闭Redis失败", zap.Error(err))
		}
		if err := sqlDB.Close(); err != nil {
			logger.Warn("关闭数据库失败", zap.Error(err))
		}
	}
	return st, closeFn, nil
}

// newNotifier 按notify.driver选择通知端
func newNotifier(cfg *config.Config, logger *zap.Logger) (notification.Notifier, func(), error) {
	if cfg.Notify.Driver != "mq" {
		return notify.NewLogNotifier(logger), func() {}, nil
	}

	publisher, err := mq.NewPublisher(cfg.Notify.AMQPURL, cfg.Notify.Exchange, mqExchangeType, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化消息发布者失败: %w", err)
	}
	closeFn := func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("关闭消息发布者失败", zap.Error(err))
		}
	}
	return notify.NewMQNotifier(publisher, cfg.Notify.Exchange, logger), closeFn, nil
}
