// Package saga 实现带补偿的多步骤执行器
//
// 核心思想：
// 1. 将一个跨资源的操作拆分为多个本地步骤
// 2. 每个步骤有对应的补偿操作
// 3. 某步失败时，按逆序执行已完成步骤的补偿操作
//
// 本项目的用法：到期提醒 = 写通知记录(补偿:删除记录) → 发送通知
// 发送失败时删除记录，下一个扫描周期会重新尝试
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Step 表示Saga中的一个步骤
// Action和Compensate都必须支持幂等（允许重试）
type Step struct {
	Name       string                          // 步骤名称（用于日志）
	Action     func(ctx context.Context) error // 正向操作
	Compensate func(ctx context.Context) error // 补偿操作（可为nil）
}

// Saga 表示一次带补偿的执行
// 注意：Saga实例不是并发安全的，每次执行创建新实例
type Saga struct {
	name     string
	steps    []Step
	executed []Step
	timeout  time.Duration
	logger   *zap.Logger
}

// Option Saga配置项
type Option func(*Saga)

// WithLogger 设置日志（补偿失败时记录）
func WithLogger(l *zap.Logger) Option {
	return func(s *Saga) {
		s.logger = l
	}
}

// WithName 设置名称（出现在日志中）
func WithName(name string) Option {
	return func(s *Saga) {
		s.name = name
	}
}

// NewSaga 创建Saga
//
// 示例：
//
//	s := saga.NewSaga(10*time.Second, saga.WithLogger(logger))
//	s.AddStep("记录通知", recordLog, deleteLog)
//	s.AddStep("发送通知", notify, nil)
//	err := s.Execute(ctx)
func NewSaga(timeout time.Duration, opts ...Option) *Saga {
	s := &Saga{
		steps:   make([]Step, 0, 2),
		timeout: timeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddStep 添加一个步骤（按添加顺序执行，按逆序补偿）
func (s *Saga) AddStep(name string, action, compensate func(ctx context.Context) error) {
	s.steps = append(s.steps, Step{
		Name:       name,
		Action:     action,
		Compensate: compensate,
	})
}

// Execute 执行Saga
//
// 执行流程：
// 1. 按顺序执行每个步骤的Action
// 2. 某步失败或超时，逆序执行已完成步骤的Compensate
// 3. 返回失败原因；补偿也失败时一并返回
//
// 补偿使用独立的Context，避免因原Context超时导致补偿无法执行
func (s *Saga) Execute(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	for i, step := range s.steps {
		if err := ctx.Err(); err != nil {
			cErr := s.compensate(context.Background())
			return errors.Join(fmt.Errorf("saga超时: %w", err), cErr)
		}

		if step.Action != nil {
			if err := step.Action(ctx); err != nil {
				cErr := s.compensate(context.Background())
				return errors.Join(fmt.Errorf("步骤[%d:%s]执行失败: %w", i, step.Name, err), cErr)
			}
		}

		s.executed = append(s.executed, step)
	}

	return nil
}

// compensate 逆序补偿
// 即使某个补偿失败，也继续执行后续补偿（尽最大努力），失败的步骤记录日志
func (s *Saga) compensate(ctx context.Context) error {
	var errs []error

	for i := len(s.executed) - 1; i >= 0; i-- {
		step := s.executed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.logger.Error("补偿失败，需人工介入",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("补偿[%s]失败: %w", step.Name, err))
		}
	}

	s.executed = nil
	return errors.Join(errs...)
}
