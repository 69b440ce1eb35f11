package product

import (
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

// 商品领域错误定义
var (
	// ErrProductNotFound 商品不存在
	ErrProductNotFound = apperrors.New(apperrors.ErrCodeProductNotFound, "商品不存在")

	// ErrInvalidName 商品名称不合法
	ErrInvalidName = apperrors.New(apperrors.ErrCodeInvalidParams, "商品名称长度应为1-200个字符")

	// ErrInvalidRate 日租金不合法
	ErrInvalidRate = apperrors.New(apperrors.ErrCodeInvalidParams, "日租金必须在1-99999999分之间")

	// ErrInvalidQuantity 数量不合法
	ErrInvalidQuantity = apperrors.New(apperrors.ErrCodeInvalidParams, "数量不合法")

	// ErrInsufficientStock 报损后数量为负
	ErrInsufficientStock = apperrors.New(apperrors.ErrCodeInsufficientStock, "实物数量不足")

	// ErrForbidden 无权操作此商品
	ErrForbidden = apperrors.New(apperrors.ErrCodeForbidden, "无权操作此商品")
)
