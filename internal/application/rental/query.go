package rental

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xiebiao/rentalhub/internal/domain/order"
	"github.com/xiebiao/rentalhub/internal/domain/user"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

// GetOrderUseCase 查询订单详情
type GetOrderUseCase struct {
	orderRepo order.Repository
}

// NewGetOrderUseCase 创建订单详情用例
func NewGetOrderUseCase(orderRepo order.Repository) *GetOrderUseCase {
	return &GetOrderUseCase{orderRepo: orderRepo}
}

// Execute 查询订单
// 无权查看时返回ErrForbidden(与不存在区分,便于排查)
func (uc *GetOrderUseCase) Execute(ctx context.Context, orderID uint, actor user.Actor) (*OrderResponse, error) {
	o, err := uc.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.CanView(actor) {
		return nil, order.ErrForbidden
	}
	return toOrderResponse(o), nil
}

// ListOrdersUseCase 查询"我的订单"
// 租客看自己下的单,出租方看自己收到的单
type ListOrdersUseCase struct {
	orderRepo order.Repository
}

// NewListOrdersUseCase 创建订单列表用例
func NewListOrdersUseCase(orderRepo order.Repository) *ListOrdersUseCase {
	return &ListOrdersUseCase{orderRepo: orderRepo}
}

// ListOrdersResponse 订单列表
type ListOrdersResponse struct {
	Orders   []*OrderResponse
	Total    int64
	Page     int
	PageSize int
}

// Execute 查询订单列表
func (uc *ListOrdersUseCase) Execute(ctx context.Context, actor user.Actor, page, pageSize int) (*ListOrdersResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var (
		orders []*order.Order
		total  int64
		err    error
	)
	switch {
	case actor.IsAnonymous():
		return nil, apperrors.ErrUnauthorized
	case actor.Role == user.RoleVendor:
		orders, total, err = uc.orderRepo.ListByVendor(ctx, actor.UserID, page, pageSize)
	case actor.Role == user.RoleCustomer:
		orders, total, err = uc.orderRepo.ListByCustomer(ctx, actor.UserID, page, pageSize)
	default:
		return nil, apperrors.New(apperrors.ErrCodeInvalidParams, "管理员请使用后台查询")
	}
	if err != nil {
		return nil, err
	}

	resp := &ListOrdersResponse{
		Orders:   make([]*OrderResponse, len(orders)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for i, o := range orders {
		resp.Orders[i] = toOrderResponse(o)
	}
	return resp, nil
}

// ComputeLateFee 计算订单滞纳金
//   - 已归还:按实际归还时间计算
//   - 租用中:按now预估(如果现在归还需要付多少)
//   - 其他状态:不产生滞纳金
func ComputeLateFee(o *order.Order, cfg order.LateFeeConfig, now time.Time) decimal.Decimal {
	switch o.Status {
	case order.StatusReturned:
		if o.ActualReturnAt == nil {
			return decimal.Zero.Round(2)
		}
		return o.LateFeeAt(*o.ActualReturnAt, cfg)
	case order.StatusPickedUp:
		return o.LateFeeAt(now, cfg)
	default:
		return decimal.Zero.Round(2)
	}
}

// LateFeeUseCase 查询订单滞纳金
type LateFeeUseCase struct {
	orderRepo order.Repository
	lateFees  LateFeeSettings
	now       func() time.Time
}

// NewLateFeeUseCase 创建滞纳金查询用例
func NewLateFeeUseCase(orderRepo order.Repository, lateFees LateFeeSettings) *LateFeeUseCase {
	return &LateFeeUseCase{orderRepo: orderRepo, lateFees: lateFees, now: time.Now}
}

// LateFeeResponse 滞纳金
type LateFeeResponse struct {
	OrderID   uint   `json:"order_id"`
	Status    string `json:"status"`
	DelayDays int    `json:"delay_days"`
	LateFee   string `json:"late_fee"`
	Estimated bool   `json:"estimated"` // true表示尚未归还,按当前时间预估
}

// Execute 查询滞纳金
// 已归还的订单优先返回归还时落库的金额,避免费率调整后前后不一致
func (uc *LateFeeUseCase) Execute(ctx context.Context, orderID uint, actor user.Actor) (*LateFeeResponse, error) {
	o, err := uc.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.CanView(actor) {
		return nil, order.ErrForbidden
	}

	now := uc.now()
	resp := &LateFeeResponse{
		OrderID:   o.ID,
		Status:    o.Status.String(),
		Estimated: o.Status == order.StatusPickedUp,
	}

	switch {
	case o.Status == order.StatusReturned && o.ActualReturnAt != nil:
		resp.DelayDays = order.DelayDays(o.PlannedEndAt(), *o.ActualReturnAt)
	case o.Status == order.StatusPickedUp:
		resp.DelayDays = order.DelayDays(o.PlannedEndAt(), now)
	}

	fee := ComputeLateFee(o, uc.lateFees.LateFeeConfig(), now)
	if o.Status == order.StatusReturned && o.LateFee != nil {
		fee = *o.LateFee
	}
	resp.LateFee = fee.StringFixed(2)
	return resp, nil
}
