package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesCode(t *testing.T) {
	detailed := Newf(ErrCodeUnavailable, "商品%d在所选时间段内仅剩%d件", 3, 1)

	assert.True(t, errors.Is(detailed, ErrUnavailable))
	assert.False(t, errors.Is(detailed, ErrInvalidOrderStatus))
	assert.True(t, errors.Is(fmt.Errorf("confirm: %w", detailed), ErrUnavailable))
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("deadlock")
	err := WithCode(ErrCodeConcurrencyConflict, cause, "操作冲突")

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrConcurrencyConflict))
	assert.Equal(t, "[40010] 操作冲突: deadlock", err.Error())
}

func TestGetAppError(t *testing.T) {
	plain := errors.New("boom")
	appErr := GetAppError(plain)
	assert.Equal(t, ErrCodeInternal, appErr.Code)
	assert.Equal(t, plain, appErr.Err)

	assert.Equal(t, ErrForbidden, GetAppError(fmt.Errorf("wrap: %w", ErrForbidden)))
}

func TestIsCode(t *testing.T) {
	assert.True(t, IsCode(ErrOrderNotFound, ErrCodeOrderNotFound))
	assert.False(t, IsCode(errors.New("x"), ErrCodeOrderNotFound))
	assert.False(t, IsCode(nil, ErrCodeOrderNotFound))
	assert.True(t, IsAppError(ErrBindError))
}
