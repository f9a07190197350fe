package errs

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Well-known codes. The wire protocol carries these in error acks so the
// client can roll back optimistic state deterministically.
const (
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeInternal     = 500
	CodeBadRequest   = 400
)

var (
	ErrUnauthorized = NewCodeError(CodeUnauthorized, "unauthorized")
	ErrForbidden    = NewCodeError(CodeForbidden, "forbidden")
	ErrNotFound     = NewCodeError(CodeNotFound, "not found")
	ErrBadRequest   = NewCodeError(CodeBadRequest, "bad request")
	ErrInternal     = NewCodeError(CodeInternal, "internal error")
)

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

// WrapMsg clones the coded error with extra detail and a stack.
func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	retErr := &CodeError{Code: e.Code, Msg: e.Msg, Detail: e.Detail}
	if msg != "" || len(kv) > 0 {
		detail := toString(msg, kv)
		if retErr.Detail == "" {
			retErr.Detail = detail
		} else {
			retErr.Detail += ", " + detail
		}
	}
	return errors.WithStack(retErr)
}

func (e *CodeError) Is(err error) bool {
	var codeErr *CodeError
	if !stderrors.As(err, &codeErr) {
		return false
	}
	return e.Code == codeErr.Code
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// Code extracts the code from any error in the chain; unknown errors map to
// CodeInternal.
func Code(err error) int {
	var codeErr *CodeError
	if stderrors.As(err, &codeErr) {
		return codeErr.Code
	}
	return CodeInternal
}

// Msg extracts the public message from any error in the chain.
func Msg(err error) string {
	var codeErr *CodeError
	if stderrors.As(err, &codeErr) {
		return codeErr.Msg
	}
	return "internal error"
}

func toString(msg string, kv []any) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if i > 0 || msg != "" {
			sb.WriteString(" ")
		}
		sb.WriteString(toStr(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(toStr(kv[i+1]))
		}
	}
	return sb.String()
}

func toStr(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return t.Error()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", t)
	}
}
