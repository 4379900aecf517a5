// Package repository 提供 Repository 接口的 GORM 实现
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"moment_social_server/pkg/errorx"
)

// wrapDBError 统一包装数据库错误
func wrapDBError(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorx.Wrap(err, errorx.CodeNotFound, msg)
	}
	return errorx.Wrap(err, errorx.CodeDBError, msg)
}

// wrapDBErrorf 统一包装数据库错误（格式化消息）
func wrapDBErrorf(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorx.Wrapf(err, errorx.CodeNotFound, format, args...)
	}
	return errorx.Wrapf(err, errorx.CodeDBError, format, args...)
}

// IsDuplicateKey 判断是否唯一约束冲突
// 双人会话自修复把并发补插成员撞约束视为"已被并发请求修好"，
// 因此这里同时兼容 gorm 的翻译错误和 MySQL 1062 原始错误码
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
