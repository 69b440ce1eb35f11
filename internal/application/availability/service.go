package availability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xiebiao/rentalhub/internal/domain/product"
	"github.com/xiebiao/rentalhub/internal/domain/reservation"
	"github.com/xiebiao/rentalhub/pkg/metrics"
	"github.com/xiebiao/rentalhub/pkg/tracing"
)

const tracerName = "rentalhub/availability"

// Service 可用性查询服务(只读)
// 设计说明:
// 1. 只读取商品实物数量与生效预留,从不写入
// 2. 查询结果是"查询时刻"的快照,下单确认时还会在事务中重新计算
// 3. 商品不存在视为库存为0,而不是报错
type Service struct {
	productRepo     product.Repository
	reservationRepo reservation.Repository
	logger          *zap.Logger
}

// NewService 创建可用性服务
func NewService(productRepo product.Repository, reservationRepo reservation.Repository, logger *zap.Logger) *Service {
	return &Service{
		productRepo:     productRepo,
		reservationRepo: reservationRepo,
		logger:          logger,
	}
}

// Query 可用性查询参数
type Query struct {
	ProductID uint
	Start     time.Time
	End       time.Time
	Quantity  int // 仅CheckAvailability使用
}

// Result 可用性查询结果
type Result struct {
	ProductID uint      `json:"product_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available int       `json:"available"`
	Requested int       `json:"requested,omitempty"`
	OK        bool      `json:"ok"`
}

// GetAvailableQuantity 查询窗口内可用数量
func (s *Service) GetAvailableQuantity(ctx context.Context, productID uint, start, end time.Time) (int, error) {
	w, err := reservation.NewWindow(start, end)
	if err != nil {
		return 0, err
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "GetAvailableQuantity",
		attribute.Int("product.id", int(productID)))
	available, err := s.available(ctx, productID, w)
	tracing.EndSpan(span, err)
	return available, err
}

// CheckAvailability 判断请求数量能否满足
// 数量<=0属于参数错误,不进入计算
func (s *Service) CheckAvailability(ctx context.Context, productID uint, start, end time.Time, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, reservation.ErrInvalidQuantity
	}

	available, err := s.GetAvailableQuantity(ctx, productID, start, end)
	if err != nil {
		return false, err
	}

	ok := quantity <= available
	metrics.RecordAvailabilityCheck(ok)
	return ok, nil
}

// Check 组合查询(HTTP接口使用)
func (s *Service) Check(ctx context.Context, q Query) (*Result, error) {
	available, err := s.GetAvailableQuantity(ctx, q.ProductID, q.Start, q.End)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ProductID: q.ProductID,
		Start:     q.Start,
		End:       q.End,
		Available: available,
		Requested: q.Quantity,
		OK:        available > 0,
	}
	if q.Quantity != 0 {
		if q.Quantity < 0 {
			return nil, reservation.ErrInvalidQuantity
		}
		res.OK = q.Quantity <= available
		metrics.RecordAvailabilityCheck(res.OK)
	}
	return res, nil
}

func (s *Service) available(ctx context.Context, productID uint, w reservation.Window) (int, error) {
	p, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			s.logger.Debug("product not found, treated as zero inventory", zap.Uint("product_id", productID))
			return 0, nil
		}
		return 0, err
	}

	reserved, err := s.reservationRepo.FindActiveOverlapping(ctx, productID, w)
	if err != nil {
		return 0, err
	}

	return reservation.AvailableQuantity(p.QuantityOnHand, reserved, w), nil
}
