package errorx

import (
	"errors"
	"fmt"
)

// CodeError 带业务错误码的自定义错误
// 实现了 error 接口，支持 %w 包装底层错误，且能被 errors.Is/errors.As 识别
type CodeError struct {
	Code  int    // 业务错误码
	Msg   string // 错误消息
	cause error  // 被包装的底层错误
}

// Error 实现 Go 标准 error 接口
// 当存在底层错误时，返回格式为 "消息: 底层错误"；否则仅返回消息
func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

// Unwrap 实现 errors.Unwrap 接口，支持 errors.Is/errors.As 向下追溯
func (e *CodeError) Unwrap() error {
	return e.cause
}

// Is 按错误码比较，使预定义实例可以作为 errors.Is 的目标
func (e *CodeError) Is(target error) bool {
	var codeErr *CodeError
	if errors.As(target, &codeErr) {
		return e.Code == codeErr.Code
	}
	return false
}

// New 创建一个新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  msg,
	}
}

// Newf 创建一个带格式化消息的 CodeError
func Newf(code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Wrap 包装底层错误，添加业务错误码和消息
func Wrap(err error, code int, msg string) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   msg,
		cause: err,
	}
}

// Wrapf 包装底层错误，支持格式化消息
// 用法: errorx.Wrapf(err, CodeDBError, "查询会话 %s", conversationId)
func Wrapf(err error, code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   fmt.Sprintf(format, args...),
		cause: err,
	}
}

// GetCode 从错误中提取业务错误码，如果不是 CodeError 则返回默认码
func GetCode(err error) int {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code
	}
	return CodeServerBusy
}

// 业务状态码常量定义
const (
	CodeSuccess        = 1000 // 成功
	CodeInvalidParam   = 1001 // 请求参数错误
	CodeServerBusy     = 1005 // 服务繁忙
	CodeUnauthorized   = 1006 // 认证失败
	CodeNotParticipant = 1007 // 不是会话成员
	CodeNotFound       = 1008 // 资源不存在
	CodeInvalidState   = 1009 // 数据状态非法
	CodeDBError        = 1010 // 数据库错误
	CodeCacheError     = 1011 // 缓存错误
	CodeOutOfOrder     = 1012 // 信令时序错误
)

// 预定义常用错误实例
// 既可直接返回，也可用于 errors.Is 比较
var (
	ErrInvalidParam         = New(CodeInvalidParam, "请求参数错误")
	ErrServerBusy           = New(CodeServerBusy, "服务繁忙")
	ErrAuthenticationFailed = New(CodeUnauthorized, "认证失败，请重新登录")
	ErrNotParticipant       = New(CodeNotParticipant, "不是该会话的成员")
	ErrConversationNotFound = New(CodeNotFound, "会话不存在")
	ErrInvalidConversation  = New(CodeInvalidState, "会话成员数据异常")
	ErrSignalingOutOfOrder  = New(CodeOutOfOrder, "信令时序错误")
)

// IsNotFound 检查错误是否为"未找到"类型
func IsNotFound(err error) bool {
	var codeErr *CodeError
	if errors.As(err, &codeErr) && codeErr.Code == CodeNotFound {
		return true
	}
	return err != nil && err.Error() == "record not found"
}
