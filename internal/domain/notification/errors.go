package notification

import (
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

var (
	// ErrAlreadyNotified 同一订单同一阈值已通知过
	ErrAlreadyNotified = apperrors.New(apperrors.ErrCodeNotificationRecorded, "该订单已发送过此类提醒")

	// ErrNotifyFailed 通知发送失败
	ErrNotifyFailed = apperrors.New(apperrors.ErrCodeNotifyError, "通知发送失败")
)
