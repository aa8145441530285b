package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误类别，路由层据此映射 HTTP 状态码
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInvalidTransition
	KindInvalidSignature
	KindUpstreamGateway
)

// Error 携带类别与业务上下文的错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *Error        { return New(KindValidation, msg) }
func NotFound(msg string) *Error          { return New(KindNotFound, msg) }
func InvalidTransition(msg string) *Error { return New(KindInvalidTransition, msg) }
func InvalidSignature(msg string) *Error  { return New(KindInvalidSignature, msg) }

func Upstream(msg string, err error) *Error { return Wrap(KindUpstreamGateway, msg, err) }
func Internal(msg string, err error) *Error { return Wrap(KindInternal, msg, err) }

// KindOf 取出错误类别；非 *Error 一律视为 internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

func IsNotFound(err error) bool   { return IsKind(err, KindNotFound) }
func IsValidation(err error) bool { return IsKind(err, KindValidation) }
