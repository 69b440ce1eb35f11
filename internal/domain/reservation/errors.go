package reservation

import (
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

var (
	// ErrInvalidWindow 时间窗口不合法
	ErrInvalidWindow = apperrors.New(apperrors.ErrCodeInvalidParams, "租用结束时间必须晚于开始时间")

	// ErrInvalidQuantity 预留数量不合法
	ErrInvalidQuantity = apperrors.New(apperrors.ErrCodeInvalidParams, "租用数量必须大于0")

	// ErrReservationNotFound 预留记录不存在
	ErrReservationNotFound = apperrors.New(apperrors.ErrCodeReservationNotFound, "预留记录不存在")

	// ErrDuplicateReservation 订单行已有预留
	ErrDuplicateReservation = apperrors.New(apperrors.ErrCodeDuplicateEntry, "订单行已存在预留")
)
