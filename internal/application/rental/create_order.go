package rental

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xiebiao/rentalhub/internal/application/availability"
	"github.com/xiebiao/rentalhub/internal/domain/order"
	"github.com/xiebiao/rentalhub/internal/domain/product"
	"github.com/xiebiao/rentalhub/internal/domain/reservation"
	"github.com/xiebiao/rentalhub/internal/domain/user"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
	"github.com/xiebiao/rentalhub/pkg/metrics"
	"github.com/xiebiao/rentalhub/pkg/tracing"
)

// CreateOrderUseCase 创建报价单用例
// 教学要点:
// 1. 报价单(QUOTATION)不占用库存,这里只做"非约束性"的可用性预检
// 2. 真正的占用发生在确认(confirm)时,在事务内加锁重新检查后写入预留
// 3. 单价取数据库中商品当前日租金,不信任客户端传入的价格
type CreateOrderUseCase struct {
	orderRepo    order.Repository
	productRepo  product.Repository
	availability *availability.Service
	txManager    TxManager
	logger       *zap.Logger
	now          func() time.Time
}

// NewCreateOrderUseCase 创建下单用例
func NewCreateOrderUseCase(
	orderRepo order.Repository,
	productRepo product.Repository,
	availabilitySvc *availability.Service,
	txManager TxManager,
	logger *zap.Logger,
) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		availability: availabilitySvc,
		txManager:    txManager,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateOrderRequest 下单请求DTO
type CreateOrderRequest struct {
	Actor      user.Actor        // 当前操作者(从JWT中提取)
	CustomerID uint              // 管理员代客下单时必填,租客下单时忽略
	VendorID   uint              // 可选,非0时校验商品归属
	Start      time.Time         // 租期开始
	End        time.Time         // 租期结束(计划归还时间)
	Lines      []CreateOrderLine // 订单明细
	CouponCode string
}

// CreateOrderLine 订单明细项
type CreateOrderLine struct {
	ProductID uint
	Quantity  int
}

// Execute 执行下单
// 流程:
//  1. 权限与参数校验
//  2. 查询商品,校验同属一个出租方
//  3. 可用性预检(按商品汇总数量)
//  4. 生成订单号,按日租金快照计算金额并保存
func (uc *CreateOrderUseCase) Execute(ctx context.Context, req CreateOrderRequest) (resp *OrderResponse, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "CreateOrder",
		attribute.Int("order.lines", len(req.Lines)))
	defer func() {
		tracing.EndSpan(span, err)
		metrics.RecordOrderCreated(resultLabel(err))
	}()

	customerID, err := uc.resolveCustomer(req)
	if err != nil {
		return nil, err
	}

	w, err := reservation.NewWindow(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if len(req.Lines) == 0 {
		return nil, order.ErrInvalidOrderLines
	}

	// 同一商品可能出现在多行,预检按商品汇总
	wanted := make(map[uint]int)
	for _, l := range req.Lines {
		if l.Quantity <= 0 {
			return nil, order.ErrInvalidQuantity
		}
		wanted[l.ProductID] += l.Quantity
	}

	products := make(map[uint]*product.Product, len(wanted))
	vendorID := req.VendorID
	for _, pid := range sortedKeys(wanted) {
		p, err := uc.productRepo.FindByID(ctx, pid)
		if err != nil {
			return nil, err
		}
		if vendorID == 0 {
			vendorID = p.VendorID
		}
		if !p.IsOwnedBy(vendorID) {
			return nil, order.ErrVendorMismatch
		}
		products[pid] = p
	}

	for _, pid := range sortedKeys(wanted) {
		available, err := uc.availability.GetAvailableQuantity(ctx, pid, w.Start, w.End)
		if err != nil {
			return nil, err
		}
		if wanted[pid] > available {
			return nil, apperrors.Newf(apperrors.ErrCodeUnavailable,
				"商品《%s》在所选时间段内仅剩%d件,需要%d件", products[pid].Name, available, wanted[pid])
		}
	}

	lines := make([]order.OrderLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = order.OrderLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: products[l.ProductID].DailyRate,
			Window:    w,
		}
	}

	now := uc.now()
	o := order.NewOrder(order.GenerateOrderNo(now), customerID, vendorID, w, lines, req.CouponCode, now)

	err = uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		return uc.orderRepo.Create(txCtx, o)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("order created",
		zap.Uint("order_id", o.ID),
		zap.String("order_no", o.OrderNo),
		zap.Uint("customer_id", o.CustomerID),
		zap.Uint("vendor_id", o.VendorID),
		zap.Int64("total_amount", o.TotalAmount))

	return toOrderResponse(o), nil
}

// resolveCustomer 确定下单租客
// 租客只能为自己下单;管理员可代客下单
func (uc *CreateOrderUseCase) resolveCustomer(req CreateOrderRequest) (uint, error) {
	switch {
	case req.Actor.IsAnonymous():
		return 0, apperrors.ErrUnauthorized
	case req.Actor.IsAdmin():
		if req.CustomerID == 0 {
			return 0, apperrors.New(apperrors.ErrCodeInvalidParams, "管理员代客下单需指定customer_id")
		}
		return req.CustomerID, nil
	case req.Actor.Role == user.RoleCustomer:
		return req.Actor.UserID, nil
	default:
		return 0, order.ErrForbidden
	}
}

func sortedKeys(m map[uint]int) []uint {
	keys := make([]uint, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// resultLabel 指标结果标签
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, apperrors.ErrInvalidOrderStatus):
		return "invalid_transition"
	case errors.Is(err, apperrors.ErrForbidden), errors.Is(err, apperrors.ErrUnauthorized):
		return "forbidden"
	case errors.Is(err, apperrors.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "error"
	}
}
