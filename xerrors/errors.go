// Package xerrors 提供定价引擎统一的结构化错误模型。
//
// 错误分三类：ValidationError 在定价开始前由合约或方法校验抛出，ModelError 表示数值模型本身
// 不成立，ConfigurationError 表示引擎配置非法。包级哨兵只用作模板，调用方通过 Derive 派生实例。
package xerrors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorType 错误的大类
type ErrorType uint

const (
	ErrUnknown ErrorType = iota
	// ErrValidation 合约或请求参数不合法，在定价开始前抛出。
	ErrValidation
	// ErrModel 数值模型本身不成立，例如格点风险中性概率越界。
	ErrModel
	// ErrConfiguration 引擎配置非法，例如路径数或步数不为正。
	ErrConfiguration
)

var typeNames = [...]string{"Unknown", "ValidationError", "ModelError", "ConfigurationError"}

func (t ErrorType) String() string {
	if int(t) >= len(typeNames) {
		return typeNames[ErrUnknown]
	}
	return typeNames[t]
}

// Error 带错误码、调试细节与上下文字段的错误。
type Error struct {
	Type    ErrorType      `json:"type"`
	Code    int            `json:"code"`
	Message string         `json:"message"`          // 对外展示
	Detail  string         `json:"detail,omitempty"` // 本次出错的具体取值
	Context map[string]any `json:"context,omitempty"`
	Stack   []string       `json:"-"`
}

// New 创建一个错误模板，不捕获堆栈。
func New(errType ErrorType, code int, message, detail string) *Error {
	return &Error{Type: errType, Code: code, Message: message, Detail: detail}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %d: %s", e.Type, e.Code, e.Message)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is 按大类与错误码匹配，使派生实例可以配合 errors.Is 与哨兵比较。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code && e.Type == t.Type
}

// Derive 以哨兵为模板派生一个带细节与调用栈的新实例，哨兵本身保持不变。
func (e *Error) Derive(format string, args ...any) *Error {
	d := &Error{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Detail:  fmt.Sprintf(format, args...),
	}
	d.Stack = callers(3)
	return d
}

// WithContext 附加上下文字段，只应作用于派生实例。
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// callers 记录最多 8 层调用栈。
func callers(skip int) []string {
	var pcs [8]uintptr
	n := runtime.Callers(skip, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	var out []string
	for {
		f, more := frames.Next()
		out = append(out, fmt.Sprintf("%s:%d (%s)", f.File, f.Line, f.Function))
		if !more {
			return out
		}
	}
}

// Validation 以通用校验错误码构造合约校验错误。
func Validation(msg, detail string) *Error {
	e := New(ErrValidation, CodeInvalidContract, msg, detail)
	e.Stack = callers(3)
	return e
}

// FromError 沿错误链查找 *Error
func FromError(err error) (*Error, bool) {
	var e *Error
	if err != nil && errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// TypeOf 返回错误链上第一个 *Error 的大类。
func TypeOf(err error) ErrorType {
	if e, ok := FromError(err); ok {
		return e.Type
	}
	return ErrUnknown
}

func IsValidation(err error) bool    { return TypeOf(err) == ErrValidation }
func IsModel(err error) bool         { return TypeOf(err) == ErrModel }
func IsConfiguration(err error) bool { return TypeOf(err) == ErrConfiguration }

// HTTPStatus 映射 HTTP 状态码
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrModel:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode 映射 gRPC 状态码
func (e *Error) GRPCCode() codes.Code {
	switch e.Type {
	case ErrValidation:
		return codes.InvalidArgument
	case ErrModel:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

// ToGRPCStatus 转换为 gRPC Status，细节随消息一并带出。
func (e *Error) ToGRPCStatus() *status.Status {
	return status.New(e.GRPCCode(), e.Error())
}
