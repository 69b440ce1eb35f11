package rental

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xiebiao/rentalhub/internal/domain/order"
	"github.com/xiebiao/rentalhub/internal/domain/product"
	"github.com/xiebiao/rentalhub/internal/domain/reservation"
	"github.com/xiebiao/rentalhub/internal/domain/user"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
	"github.com/xiebiao/rentalhub/pkg/metrics"
	"github.com/xiebiao/rentalhub/pkg/tracing"
)

// TransitionUseCase 订单状态流转用例
// 这是整个项目最核心的用例:状态流转与预留的增删在同一事务内完成
//
// 核心问题:超租
// 场景:商品只有1件,两个订单同时确认同一时间段
// 错误实现:
//  1. 两个请求各自查询可用数量 → 都是1
//  2. 各自写入预留
//     结果:同一件实物在同一时间被租给两个人
//
// 正确实现:悲观锁
//  1. SELECT FOR UPDATE 锁定订单行(同一订单的并发动作串行化)
//  2. 按商品ID升序 SELECT FOR UPDATE 锁定商品行(避免死锁)
//  3. 锁内重新计算可用数量
//  4. 写入预留、更新订单状态
//  5. COMMIT释放锁
//
// 死锁/锁等待超时被转换为ErrConcurrencyConflict,这里有限次重试
type TransitionUseCase struct {
	orderRepo       order.Repository
	productRepo     product.Repository
	reservationRepo reservation.Repository
	txManager       TxManager
	lateFees        LateFeeSettings
	maxRetries      int
	logger          *zap.Logger
	now             func() time.Time
}

// NewTransitionUseCase 创建状态流转用例
func NewTransitionUseCase(
	orderRepo order.Repository,
	productRepo product.Repository,
	reservationRepo reservation.Repository,
	txManager TxManager,
	lateFees LateFeeSettings,
	maxRetries int,
	logger *zap.Logger,
) *TransitionUseCase {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &TransitionUseCase{
		orderRepo:       orderRepo,
		productRepo:     productRepo,
		reservationRepo: reservationRepo,
		txManager:       txManager,
		lateFees:        lateFees,
		maxRetries:      maxRetries,
		logger:          logger,
		now:             time.Now,
	}
}

// WithClock 替换时钟(测试使用)
func (uc *TransitionUseCase) WithClock(now func() time.Time) *TransitionUseCase {
	uc.now = now
	return uc
}

// TransitionRequest 状态流转请求
type TransitionRequest struct {
	OrderID uint
	Action  order.Action
	Actor   user.Actor
}

// Execute 执行状态流转
// 失败时订单状态与预留保持不变(事务回滚)
func (uc *TransitionUseCase) Execute(ctx context.Context, req TransitionRequest) (resp *OrderResponse, err error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, tracerName, "Transition",
		attribute.Int("order.id", int(req.OrderID)),
		attribute.String("order.action", string(req.Action)))
	defer func() {
		tracing.EndSpan(span, err)
		metrics.RecordTransition(string(req.Action), resultLabel(err), time.Since(start))
	}()

	if _, ok := order.TargetStatus(req.Action); !ok {
		return nil, order.ErrInvalidAction
	}

	var o *order.Order
	for attempt := 0; ; attempt++ {
		o, err = uc.apply(ctx, req)
		if err == nil || !errors.Is(err, apperrors.ErrConcurrencyConflict) {
			break
		}

		metrics.RecordReservationConflict()
		if attempt >= uc.maxRetries {
			uc.logger.Warn("transition conflict retries exhausted",
				zap.Uint("order_id", req.OrderID),
				zap.String("action", string(req.Action)),
				zap.Int("attempts", attempt+1))
			if req.Action == order.ActionConfirm {
				return nil, apperrors.WithCode(apperrors.ErrCodeUnavailable, err, "所选时间段内可租数量不足,请稍后重试")
			}
			return nil, err
		}
		uc.logger.Debug("transition conflict, retrying",
			zap.Uint("order_id", req.OrderID),
			zap.String("action", string(req.Action)),
			zap.Int("attempt", attempt+1))
	}
	if err != nil {
		return nil, err
	}

	uc.logger.Info("order transitioned",
		zap.Uint("order_id", o.ID),
		zap.String("action", string(req.Action)),
		zap.String("status", o.Status.String()),
		zap.String("actor_role", string(req.Actor.Role)),
		zap.Uint("actor_id", req.Actor.UserID))

	return toOrderResponse(o), nil
}

// apply 单次事务尝试
func (uc *TransitionUseCase) apply(ctx context.Context, req TransitionRequest) (*order.Order, error) {
	var result *order.Order
	err := uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		o, err := uc.orderRepo.LockByID(txCtx, req.OrderID)
		if err != nil {
			return err
		}

		// 先校验权限,再校验状态:无权限的操作者看不到订单当前状态
		if err := o.Authorize(req.Actor, req.Action); err != nil {
			return err
		}
		if !o.CanApply(req.Action) {
			return order.ErrInvalidTransition
		}

		now := uc.now()
		switch req.Action {
		case order.ActionSend:
			if err := uc.precheck(txCtx, o); err != nil {
				return err
			}
		case order.ActionConfirm:
			if err := uc.reserve(txCtx, o, now); err != nil {
				return err
			}
		case order.ActionReturn:
			// 按时归还(含宽限期内)不记录滞纳金,LateFee保持为空
			if fee := o.LateFeeAt(now, uc.lateFees.LateFeeConfig()); fee.IsPositive() {
				o.LateFee = &fee
			}
			if err := uc.release(txCtx, o, req.Action, now); err != nil {
				return err
			}
		case order.ActionCancel:
			if err := uc.release(txCtx, o, req.Action, now); err != nil {
				return err
			}
		}

		if err := o.Apply(req.Action, now); err != nil {
			return err
		}
		if err := uc.orderRepo.Update(txCtx, o); err != nil {
			return err
		}

		result = o
		return nil
	})
	return result, err
}

// reserve 锁定商品并为每个订单行写入预留
// 教学要点:
// 1. 商品按ID升序加锁,所有事务加锁顺序一致,不会互相等待成环
// 2. 同一订单中同一商品的多行:前一行写入的预留在本事务内可见,后一行检查时已计入
// 3. 商品已不存在视为库存为0
func (uc *TransitionUseCase) reserve(ctx context.Context, o *order.Order, now time.Time) error {
	lines := append([]order.OrderLine(nil), o.Lines...)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	locked := make(map[uint]*product.Product)
	for _, l := range lines {
		p, ok := locked[l.ProductID]
		if !ok {
			var err error
			p, err = uc.productRepo.LockByID(ctx, l.ProductID)
			if err != nil {
				if errors.Is(err, product.ErrProductNotFound) {
					return apperrors.Newf(apperrors.ErrCodeUnavailable, "商品%d已下架,无法确认订单", l.ProductID)
				}
				return err
			}
			locked[l.ProductID] = p
		}

		existing, err := uc.reservationRepo.FindActiveOverlapping(ctx, l.ProductID, l.Window)
		if err != nil {
			return err
		}
		if !reservation.IsAvailable(p.QuantityOnHand, existing, l.Window, l.Quantity) {
			return apperrors.Newf(apperrors.ErrCodeUnavailable,
				"商品《%s》在所选时间段内仅剩%d件,需要%d件",
				p.Name, reservation.AvailableQuantity(p.QuantityOnHand, existing, l.Window), l.Quantity)
		}

		r, err := reservation.New(l.ProductID, o.ID, l.ID, l.Quantity, l.Window, now)
		if err != nil {
			return err
		}
		if err := uc.reservationRepo.Create(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// precheck 发送报价前的可用性预检(不加锁、不写预留)
// 报价单不占用库存,预检只用于尽早发现明显无法满足的报价
func (uc *TransitionUseCase) precheck(ctx context.Context, o *order.Order) error {
	wanted := make(map[uint]int)
	for _, l := range o.Lines {
		wanted[l.ProductID] += l.Quantity
	}

	for _, pid := range sortedKeys(wanted) {
		p, err := uc.productRepo.FindByID(ctx, pid)
		if err != nil {
			if errors.Is(err, product.ErrProductNotFound) {
				return apperrors.Newf(apperrors.ErrCodeUnavailable, "商品%d已下架", pid)
			}
			return err
		}
		existing, err := uc.reservationRepo.FindActiveOverlapping(ctx, pid, o.Window)
		if err != nil {
			return err
		}
		if !reservation.IsAvailable(p.QuantityOnHand, existing, o.Window, wanted[pid]) {
			return apperrors.Newf(apperrors.ErrCodeUnavailable,
				"商品《%s》在所选时间段内仅剩%d件,需要%d件",
				p.Name, reservation.AvailableQuantity(p.QuantityOnHand, existing, o.Window), wanted[pid])
		}
	}
	return nil
}

// release 释放订单的全部生效预留
// 幂等:已释放的预留不会被重复处理,释放0条不算错误
func (uc *TransitionUseCase) release(ctx context.Context, o *order.Order, action order.Action, now time.Time) error {
	n, err := uc.reservationRepo.ReleaseByOrder(ctx, o.ID, now)
	if err != nil {
		return err
	}
	metrics.RecordReservationsReleased(string(action), n)
	return nil
}
