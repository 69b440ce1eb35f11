package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xiebiao/rentalhub/internal/application/rental"
	"github.com/xiebiao/rentalhub/internal/domain/order"
	"github.com/xiebiao/rentalhub/internal/interface/http/dto"
	"github.com/xiebiao/rentalhub/internal/interface/http/middleware"
	"github.com/xiebiao/rentalhub/pkg/response"
)

// OrderHandler 租赁订单HTTP处理器
type OrderHandler struct {
	createUseCase     *rental.CreateOrderUseCase
	transitionUseCase *rental.TransitionUseCase
	getUseCase        *rental.GetOrderUseCase
	listUseCase       *rental.ListOrdersUseCase
	lateFeeUseCase    *rental.LateFeeUseCase
}

// NewOrderHandler 创建订单处理器
func NewOrderHandler(
	createUseCase *rental.CreateOrderUseCase,
	transitionUseCase *rental.TransitionUseCase,
	getUseCase *rental.GetOrderUseCase,
	listUseCase *rental.ListOrdersUseCase,
	lateFeeUseCase *rental.LateFeeUseCase,
) *OrderHandler {
	return &OrderHandler{
		createUseCase:     createUseCase,
		transitionUseCase: transitionUseCase,
		getUseCase:        getUseCase,
		listUseCase:       listUseCase,
		lateFeeUseCase:    lateFeeUseCase,
	}
}

// CreateOrder 创建报价单
// @Summary      创建报价单
// @Description  租客下单（管理员可代客下单），状态为QUOTATION；只做可用性预检，不占用库存
// @Tags         订单
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.CreateOrderRequest true "订单信息"
// @Success      200 {object} response.Response{data=rental.OrderResponse} "下单成功"
// @Failure      400 {object} response.Response "时间窗口非法/可用数量不足"
// @Router       /api/v1/orders [post]
//
// 教学说明：报价单不占用库存
// 下单时只检查"当前是否可租"，真正的占用发生在confirm时（锁内重算可用数量后写入预留）。
// 这样未确认的报价单不会把商品长期锁死。
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	lines := make([]rental.CreateOrderLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = rental.CreateOrderLine{ProductID: l.ProductID, Quantity: l.Quantity}
	}

	result, err := h.createUseCase.Execute(c.Request.Context(), rental.CreateOrderRequest{
		Actor:      middleware.GetActor(c),
		CustomerID: req.CustomerID,
		VendorID:   req.VendorID,
		Start:      req.Start,
		End:        req.End,
		Lines:      lines,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListOrders 我的订单
// @Summary      我的订单
// @Description  租客看到自己下的单，出租方看到自己商品的单
// @Tags         订单
// @Produce      json
// @Security     BearerAuth
// @Param        page      query int false "页码" default(1)
// @Param        page_size query int false "每页数量" default(20)
// @Success      200 {object} response.Response{data=response.PageData} "查询成功"
// @Router       /api/v1/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var req dto.ListOrdersRequest
	_ = c.ShouldBindQuery(&req) // 非法分页参数回退为默认值

	result, err := h.listUseCase.Execute(c.Request.Context(), middleware.GetActor(c), req.Page, req.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithPage(c, result.Orders, result.Total, result.Page, result.PageSize)
}

// GetOrder 订单详情
// @Summary      订单详情
// @Tags         订单
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "订单ID"
// @Success      200 {object} response.Response{data=rental.OrderResponse} "查询成功"
// @Router       /api/v1/orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.getUseCase.Execute(c.Request.Context(), id, middleware.GetActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// SendOrder 发送报价
// @Summary      发送报价 QUOTATION→SENT
// @Tags         订单
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "订单ID"
// @Success      200 {object} response.Response{data=rental.OrderResponse} "操作成功"
// @Router       /api/v1/orders/{id}/send [post]
func (h *OrderHandler) SendOrder(c *gin.Context) {
	h.transition(c, order.ActionSend)
}

// ConfirmOrder 确认订单
// @Summary      确认订单 QUOTATION|SENT→CONFIRMED
// @Description  锁内重新检查可用数量并写入预留，不足时返回可用数量不足
// @Tags         订单
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "订单ID"
// @Success      200 {object} response.Response{data=rental.OrderResponse} "操作成功"
// @Router       /api/v1/orders/{id}/confirm [post]
func (h *OrderHandler) ConfirmOrder(c *gin.Context) {
	h.transition(c, order.ActionConfirm)
}

// PickupOrder 取货
// @Summary      取货 CONFIRMED→PICKED_UP
// @Tags         订单
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "订单ID"
// @Success      200 {object} response.Response{data=rental.OrderResponse} "操作成功"
// @Router       /api/v1/orders/{id}/pickup [post]
func (h *OrderHandler) PickupOrder(c *gin.Context) {
	h.transition(c, order.ActionPickup)
}

// ReturnOrder 归还
// @Summary      归还 PICKED_UP→RETURNED
// @Description  释放预留并计算滞纳金
// @Tags         订单
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "订单ID"
// @Success      200 {object} response.Response{data=rental.OrderResponse} "操作成功"
// @Router       /api/v1/orders/{id}/return [post]
func (h *OrderHandler) ReturnOrder(c *gin.Context) {
	h.transition(c, order.ActionReturn)
}

// CancelOrder 取消
// @Summary      取消 QUOTATION|SENT|CONFIRMED→CANCELLED
// @Description  释放预留；已取货的订单不能取消
// @Tags         订单
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "订单ID"
// @Success      200 {object} response.Response{data=rental.OrderResponse} "操作成功"
// @Router       /api/v1/orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	h.transition(c, order.ActionCancel)
}

// LateFee 滞纳金查询
// @Summary      滞纳金查询
// @Description  已归还返回最终金额，取货未还按当前时间预估
// @Tags         订单
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "订单ID"
// @Success      200 {object} response.Response{data=rental.LateFeeResponse} "查询成功"
// @Router       /api/v1/orders/{id}/late-fee [get]
func (h *OrderHandler) LateFee(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.lateFeeUseCase.Execute(c.Request.Context(), id, middleware.GetActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

func (h *OrderHandler) transition(c *gin.Context, action order.Action) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.transitionUseCase.Execute(c.Request.Context(), rental.TransitionRequest{
		OrderID: id,
		Action:  action,
		Actor:   middleware.GetActor(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
