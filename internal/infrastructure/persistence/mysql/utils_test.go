package mysql

import (
	"errors"
	"fmt"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

func TestIsDuplicateError(t *testing.T) {
	assert.False(t, isDuplicateError(nil))
	assert.True(t, isDuplicateError(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicateError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry '1' for key 'uk'"}))
	assert.True(t, isDuplicateError(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isDuplicateError(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isDuplicateError(&mysqldriver.MySQLError{Number: 1213}))
	assert.False(t, isDuplicateError(errors.New("connection refused")))
}

func TestIsLockConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"mysql死锁", &mysqldriver.MySQLError{Number: 1213}, true},
		{"mysql锁等待超时", &mysqldriver.MySQLError{Number: 1205}, true},
		{"mysql唯一冲突", &mysqldriver.MySQLError{Number: 1062}, false},
		{"pg死锁", &pgconn.PgError{Code: "40P01"}, true},
		{"pg串行化失败", &pgconn.PgError{Code: "40001"}, true},
		{"pg锁不可用", &pgconn.PgError{Code: "55P03"}, true},
		{"pg唯一冲突", &pgconn.PgError{Code: "23505"}, false},
		{"被AppError包装", apperrors.WithCode(apperrors.ErrCodeDatabaseError, &mysqldriver.MySQLError{Number: 1213}, "锁定商品失败"), true},
		{"普通错误", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isLockConflict(tt.err))
		})
	}
}

func TestTranslateLockError(t *testing.T) {
	assert.NoError(t, translateLockError(nil))

	err := translateLockError(apperrors.WithCode(apperrors.ErrCodeDatabaseError, &mysqldriver.MySQLError{Number: 1213}, "锁定商品失败"))
	assert.True(t, errors.Is(err, apperrors.ErrConcurrencyConflict))

	plain := errors.New("boom")
	assert.Equal(t, plain, translateLockError(plain))
}
