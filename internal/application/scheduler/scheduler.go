// Package scheduler 到期提醒后台扫描
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiebiao/rentalhub/internal/domain/notification"
	"github.com/xiebiao/rentalhub/internal/domain/order"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
	"github.com/xiebiao/rentalhub/pkg/metrics"
	"github.com/xiebiao/rentalhub/pkg/saga"
)

// Locker 跨实例互斥锁(Redis实现见persistence/redis.SweepLock)
type Locker interface {
	TryLock(ctx context.Context, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Config 扫描配置
type Config struct {
	Lookahead   time.Duration // 提前提醒窗口
	TickTimeout time.Duration // 单次扫描时限
	BatchSize   int           // 单次最多处理的订单数
	LockTTL     time.Duration // 跨实例锁过期时间
}

// SweepResult 单次扫描结果
type SweepResult struct {
	StartedAt time.Time `json:"started_at"`
	Scanned   int       `json:"scanned"`
	Notified  int       `json:"notified"`
	Duplicate int       `json:"duplicate"` // 扫描后被其他实例抢先通知
	Failed    int       `json:"failed"`
	Skipped   bool      `json:"skipped"` // 上一次扫描未结束或其他实例持有锁
}

// Status 调度器状态
type Status struct {
	Running         bool         `json:"running"`
	IntervalMinutes int          `json:"interval_minutes"`
	LastSweep       *SweepResult `json:"last_sweep,omitempty"`
	LastError       string       `json:"last_error,omitempty"`
}

// ExpiryScheduler 到期提醒调度器
// 教学要点:
// 1. 进程内单例,由main创建,start/stop通过持有的cancel句柄控制,而不是全局布尔变量
// 2. 每个周期扫描"租用中且计划归还时间落在提前量窗口内或已过期"的订单
// 3. 同一订单同一阈值只通知一次:先写通知记录(唯一索引),再发送;发送失败删除记录
// 4. 单个订单失败只记日志,单次扫描失败也只记日志,循环继续
// 5. 扫描不可重入:上一次未结束时,本次直接跳过
type ExpiryScheduler struct {
	orderRepo order.Repository
	logRepo   notification.Repository
	notifier  notification.Notifier
	locker    Locker
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration

	sweeping atomic.Bool

	statMu    sync.Mutex
	lastSweep *SweepResult
	lastErr   error
}

// NewExpiryScheduler 创建调度器
// locker可为nil(单实例部署)
func NewExpiryScheduler(
	orderRepo order.Repository,
	logRepo notification.Repository,
	notifier notification.Notifier,
	locker Locker,
	cfg Config,
	logger *zap.Logger,
) *ExpiryScheduler {
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &ExpiryScheduler{
		orderRepo: orderRepo,
		logRepo:   logRepo,
		notifier:  notifier,
		locker:    locker,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "expiry-scheduler")),
		now:       time.Now,
	}
}

// Start 启动周期扫描
// 已在运行且间隔相同:无操作;间隔不同:按新间隔重启
func (s *ExpiryScheduler) Start(intervalMinutes int) error {
	if intervalMinutes <= 0 {
		return apperrors.Newf(apperrors.ErrCodeInvalidParams, "扫描间隔必须大于0分钟: %d", intervalMinutes)
	}
	s.start(time.Duration(intervalMinutes) * time.Minute)
	return nil
}

func (s *ExpiryScheduler) start(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		if s.interval == interval {
			return
		}
		s.logger.Info("restarting scheduler with new interval",
			zap.Duration("old", s.interval), zap.Duration("new", interval))
		s.stopLocked()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.interval = interval

	go s.loop(ctx, interval, done)

	metrics.SetSchedulerRunning(true)
	s.logger.Info("scheduler started", zap.Duration("interval", interval))
}

// Stop 停止扫描并等待正在进行的扫描结束
func (s *ExpiryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.stopLocked()
	s.logger.Info("scheduler stopped")
}

func (s *ExpiryScheduler) stopLocked() {
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.interval = 0
	metrics.SetSchedulerRunning(false)
}

// IsRunning 是否在运行
func (s *ExpiryScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Status 当前状态(管理后台展示)
func (s *ExpiryScheduler) Status() Status {
	s.mu.Lock()
	st := Status{
		Running:         s.cancel != nil,
		IntervalMinutes: int(s.interval / time.Minute),
	}
	s.mu.Unlock()

	s.statMu.Lock()
	defer s.statMu.Unlock()
	if s.lastSweep != nil {
		last := *s.lastSweep
		st.LastSweep = &last
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *ExpiryScheduler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick 单个周期:带时限执行一次扫描,错误只记录不外抛
func (s *ExpiryScheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweep panicked", zap.Any("panic", r))
			metrics.RecordSweep("panic", 0)
		}
	}()

	tickCtx, cancel := context.WithTimeout(ctx, s.cfg.TickTimeout)
	defer cancel()

	if _, err := s.SweepOnce(tickCtx); err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
	}
}

// SweepOnce 执行一次扫描(周期任务与管理接口共用)
func (s *ExpiryScheduler) SweepOnce(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{StartedAt: s.now()}

	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Warn("previous sweep still running, skipped")
		result.Skipped = true
		metrics.RecordSweep("skipped", 0)
		return result, nil
	}
	defer s.sweeping.Store(false)

	start := time.Now()
	err := s.sweep(ctx, result)

	label := "success"
	switch {
	case result.Skipped:
		label = "skipped"
	case err != nil:
		label = "error"
	}
	metrics.RecordSweep(label, time.Since(start))
	s.recordStatus(result, err)

	if err != nil {
		return result, err
	}
	s.logger.Info("sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("notified", result.Notified),
		zap.Int("duplicate", result.Duplicate),
		zap.Int("failed", result.Failed),
		zap.Bool("skipped", result.Skipped))
	return result, nil
}

func (s *ExpiryScheduler) sweep(ctx context.Context, result *SweepResult) error {
	if s.locker != nil && s.cfg.LockTTL > 0 {
		release, ok, err := s.locker.TryLock(ctx, s.cfg.LockTTL)
		if err != nil {
			return err
		}
		if !ok {
			result.Skipped = true
			return nil
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				s.logger.Warn("release sweep lock failed", zap.Error(err))
			}
		}()
	}

	now := s.now()
	orders, err := s.orderRepo.ListAwaitingReminder(ctx, now, now.Add(s.cfg.Lookahead), s.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Scanned++

		kind, ok := notification.KindFor(o.PlannedEndAt(), now, s.cfg.Lookahead)
		if !ok {
			continue
		}

		err := s.notify(ctx, o, kind, now)
		switch {
		case err == nil:
			result.Notified++
			metrics.RecordNotification(string(kind), "sent")
		case errors.Is(err, notification.ErrAlreadyNotified):
			result.Duplicate++
			metrics.RecordNotification(string(kind), "duplicate")
		default:
			result.Failed++
			metrics.RecordNotification(string(kind), "failed")
			s.logger.Warn("notify order failed",
				zap.Uint("order_id", o.ID),
				zap.String("kind", string(kind)),
				zap.Error(err))
		}
	}
	return nil
}

// notify 写通知记录 → 发送通知
// 发送失败时补偿删除记录,下个周期重新尝试
func (s *ExpiryScheduler) notify(ctx context.Context, o *order.Order, kind notification.Kind, now time.Time) error {
	eventID := uuid.NewString()
	msg := notification.Message{
		EventID:    eventID,
		OrderID:    o.ID,
		OrderNo:    o.OrderNo,
		CustomerID: o.CustomerID,
		VendorID:   o.VendorID,
		Kind:       kind,
		PlannedEnd: o.PlannedEndAt().Unix(),
	}

	sg := saga.NewSaga(0, saga.WithLogger(s.logger), saga.WithName("expiry-notify"))
	sg.AddStep("record",
		func(ctx context.Context) error {
			return s.logRepo.Record(ctx, notification.NewLog(o.ID, kind, eventID, now))
		},
		func(ctx context.Context) error {
			return s.logRepo.Delete(ctx, o.ID, kind)
		})
	sg.AddStep("notify",
		func(ctx context.Context) error {
			return s.notifier.Notify(ctx, msg)
		},
		nil)

	err := sg.Execute(ctx)
	switch {
	case err == nil:
		metrics.RecordSaga("success")
	case errors.Is(err, notification.ErrAlreadyNotified):
		// 重复不算失败
	default:
		metrics.RecordSaga("compensated")
	}
	return err
}

func (s *ExpiryScheduler) recordStatus(result *SweepResult, err error) {
	s.statMu.Lock()
	defer s.statMu.Unlock()
	r := *result
	s.lastSweep = &r
	s.lastErr = err
}
