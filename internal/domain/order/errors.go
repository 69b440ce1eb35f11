package order

import (
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

// 订单领域错误定义
var (
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = apperrors.New(apperrors.ErrCodeOrderNotFound, "订单不存在")

	// ErrInvalidTransition 当前状态不允许此操作
	ErrInvalidTransition = apperrors.New(apperrors.ErrCodeInvalidOrderStatus, "订单状态不允许此操作")

	// ErrForbidden 无权操作此订单
	ErrForbidden = apperrors.New(apperrors.ErrCodeForbidden, "无权操作此订单")

	// ErrInvalidAction 未知动作
	ErrInvalidAction = apperrors.New(apperrors.ErrCodeInvalidParams, "未知的订单动作")

	// ErrInvalidOrderLines 订单行为空
	ErrInvalidOrderLines = apperrors.New(apperrors.ErrCodeInvalidParams, "订单明细不能为空")

	// ErrInvalidQuantity 租用数量不合法
	ErrInvalidQuantity = apperrors.New(apperrors.ErrCodeInvalidParams, "租用数量必须大于0")

	// ErrVendorMismatch 商品不属于该出租方
	ErrVendorMismatch = apperrors.New(apperrors.ErrCodeInvalidParams, "订单中的商品必须属于同一出租方")

	// ErrNotReturned 订单尚未归还
	ErrNotReturned = apperrors.New(apperrors.ErrCodeInvalidOrderStatus, "订单尚未归还")
)
