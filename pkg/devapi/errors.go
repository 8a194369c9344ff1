package devapi

import (
	"errors"
	"fmt"
)

// Kind 跨转换边界的归一化错误类别
type Kind int

const (
	// KindOther 原生库初始化失败或其他意外错误
	KindOther Kind = iota
	// KindNotSupported 当前硬件上没有对应实现
	KindNotSupported
	// KindHandleNotFound 找不到对应的设备
	KindHandleNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNotSupported:
		return "not supported"
	case KindHandleNotFound:
		return "handle not found"
	default:
		return "other"
	}
}

// Sentinel errors for errors.Is checks against a Kind.
var (
	ErrNotSupported   = &Error{Kind: KindNotSupported}
	ErrHandleNotFound = &Error{Kind: KindHandleNotFound}
	ErrOther          = &Error{Kind: KindOther}
)

// Error 设备查询错误，每个错误恰好属于一个 Kind
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// NewError 包装一个原生错误
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf 以格式化消息构造错误
func Errorf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Unsupported 返回 op 的 NotSupported 错误
func Unsupported(op string) *Error {
	return &Error{Kind: KindNotSupported, Op: op}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按 Kind 匹配哨兵错误
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf 返回错误链中第一个 *Error 的 Kind，非本包错误视为 KindOther
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}
