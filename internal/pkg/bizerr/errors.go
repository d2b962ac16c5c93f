// Package bizerr 定义业务错误分类。
//
// 每个业务错误带有稳定的错误码，调用方通过 errors.Is 比较错误码，
// 接口层通过 Kind 决定 HTTP 状态码以及消费者是否重试。
package bizerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误种类
type Kind int

const (
	KindSystem Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindBusinessRule
	KindPublishFailure
	KindDownstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindBusinessRule:
		return "business_rule"
	case KindPublishFailure:
		return "publish_failure"
	case KindDownstream:
		return "downstream"
	default:
		return "system"
	}
}

// SystemErrorCode 未知错误对外统一返回的错误码
const SystemErrorCode = "SYSTEM_ERROR"

// Error 是带错误码的业务错误
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

// New 创建一个业务错误
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error   { return New(KindValidation, code, message) }
func Conflict(code, message string) *Error     { return New(KindConflict, code, message) }
func NotFound(code, message string) *Error     { return New(KindNotFound, code, message) }
func BusinessRule(code, message string) *Error { return New(KindBusinessRule, code, message) }
func PublishFailure(code, message string) *Error {
	return New(KindPublishFailure, code, message)
}
func Downstream(code, message string) *Error { return New(KindDownstream, code, message) }

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is 按错误码匹配，使得 Wrap/WithMessage 之后的副本仍能与哨兵错误比较
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Wrap 返回附带底层原因的副本，哨兵错误本身不被修改
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

// WithMessage 返回替换了提示信息的副本
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// As 取出错误链上的业务错误
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf 返回错误种类，非业务错误一律视为系统错误
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindSystem
}

// CodeOf 返回对外暴露的错误码
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return SystemErrorCode
}

// Retryable 报告该错误在稍后重试时是否可能成功。
// 冲突(锁被占用)、下游失败、发送失败、未知系统错误可以重试；
// 参数错误、数据不存在、业务规则拒绝属于终态。
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindBusinessRule:
		return false
	default:
		return true
	}
}

// HTTPStatus 把错误种类映射为 HTTP 状态码
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindBusinessRule:
		return http.StatusUnprocessableEntity
	case KindPublishFailure, KindDownstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
