package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/rentalhub/internal/infrastructure/config"
	"github.com/xiebiao/rentalhub/internal/infrastructure/logger"
	"github.com/xiebiao/rentalhub/pkg/metrics"
	"github.com/xiebiao/rentalhub/pkg/tracing"
)

// shutdownTimeout 优雅关闭等待时间
const shutdownTimeout = 15 * time.Second

// main 主程序入口
// 说明：手动依赖注入（组装过程见app.go，Wire版本见wire.go）
func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 2. 初始化日志
	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("服务异常退出", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	zapLogger.Info("配置加载成功",
		zap.Int("port", cfg.Server.Port),
		zap.String("mode", cfg.Server.Mode),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("notify_driver", cfg.Notify.Driver))

	// 3. 监控与链路追踪
	metrics.InitMetrics()

	if cfg.Tracing.Enabled {
		shutdownTracer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			return fmt.Errorf("初始化链路追踪失败: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(ctx); err != nil {
				zapLogger.Warn("关闭链路追踪失败", zap.Error(err))
			}
		}()
	}

	// 4. 依赖注入（手动组装）
	application, cleanup, err := newApp(cfg, zapLogger)
	if err != nil {
		return err
	}
	defer cleanup()

	// 5. 启动到期提醒任务
	if cfg.Scheduler.Enabled {
		if err := application.scheduler.Start(cfg.Scheduler.IntervalMinutes); err != nil {
			return fmt.Errorf("启动到期提醒任务失败: %w", err)
		}
	}
	defer application.scheduler.Stop()

	// 6. 启动HTTP服务
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      application.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("服务启动成功",
			zap.String("addr", srv.Addr),
			zap.String("health", "/ping"),
			zap.String("metrics", "/metrics"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 7. 优雅关闭
	// 教学要点：先停止接收新请求，等处理中的请求结束，再停后台任务、关闭连接
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zapLogger.Info("收到退出信号", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("HTTP服务异常: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("关闭HTTP服务失败: %w", err)
	}

	zapLogger.Info("服务已停止")
	return nil
}
