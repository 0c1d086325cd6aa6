package uerror

import (
	"encoding/json"
	"errors"
)

type Error struct {
	Code   int32
	ErrMsg string
}

var (
	ErrRequestTimeout  = NewError(405, "request timeout")
	ErrRequestFull     = NewError(502, "request full")
	ErrEncoderNotFound = NewError(404, "encoder not found")
	ErrMethodNotFound  = NewError(404, "method not found")
)

const (
	CodeOK      int32 = 200
	CodeUnknown int32 = 502
)

func NewError(code int32, errMsg string) error {
	return &Error{Code: code, ErrMsg: errMsg}
}

func (e *Error) Error() string {
	if e == nil {
		return "nil"
	}
	bin, _ := json.Marshal(e)
	return string(bin)
}

// ParseError turns any error into an *Error. Errors that are not (or do not
// wrap) an *Error get CodeUnknown; a JSON encoded Error text is decoded so a
// code survives being flattened to a string.
func ParseError(e error) *Error {
	if e == nil {
		return nil
	}
	var werr *Error
	if errors.As(e, &werr) {
		return werr
	}
	err := &Error{}
	if je := json.Unmarshal([]byte(e.Error()), err); je != nil || err.Code == 0 {
		err.Code = CodeUnknown
		err.ErrMsg = e.Error()
	}
	return err
}

// GetCode is CodeOK for a nil *Error.
func (e *Error) GetCode() int32 {
	if e == nil {
		return CodeOK
	}
	return e.Code
}
