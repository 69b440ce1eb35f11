package mysql

import (
	"errors"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

// MySQL错误码
const (
	mysqlErrDuplicateEntry  = 1062 // Duplicate entry 'xxx' for key 'yyy'
	mysqlErrLockWaitTimeout = 1205 // Lock wait timeout exceeded
	mysqlErrDeadlock        = 1213 // Deadlock found when trying to get lock
)

// PostgreSQL SQLSTATE
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// isDuplicateError 判断是否为唯一索引冲突错误
func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDuplicateEntry
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	// 兼容检查:错误信息包含"Duplicate entry"
	return strings.Contains(err.Error(), "Duplicate entry")
}

// isLockConflict 判断是否为锁冲突(死锁、锁等待超时、串行化失败)
// 这类错误说明并发事务在抢同一批行,换个时机重试通常能成功
func isLockConflict(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDeadlock || myErr.Number == mysqlErrLockWaitTimeout
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
	}
	return false
}

// translateLockError 锁冲突 → ErrConcurrencyConflict,其它错误原样返回
func translateLockError(err error) error {
	if isLockConflict(err) {
		return apperrors.WithCode(apperrors.ErrCodeConcurrencyConflict, err, apperrors.ErrConcurrencyConflict.Message)
	}
	return err
}
