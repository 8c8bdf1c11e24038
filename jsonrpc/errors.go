// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Reserved error codes defined by JSON-RPC 2.0.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Server error range, inclusive on both ends. CodeServerError is the generic
// code used when an error carries only a message.
const (
	ServerCodeMin   = -32099
	ServerCodeMax   = -32000
	CodeServerError = ServerCodeMax
)

// ErrInvalidServerErrorCode is returned by NormalizeError when the normalized
// code falls outside the server error range.
var ErrInvalidServerErrorCode = errors.New("error code is not in server code range")

var reservedMessages = map[int]string{
	CodeParseError:     "Parse error",
	CodeInvalidRequest: "Invalid Request",
	CodeMethodNotFound: "Method not found",
	CodeInvalidParams:  "Invalid params",
	CodeInternalError:  "Internal error",
}

const serverErrorMessage = "Server error"

// Error is the error object of a JSON-RPC error response.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Is reports whether target is a *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Canonical reserved errors, usable as errors.Is targets.
var (
	ErrParse          = NewError(CodeParseError)
	ErrInvalidRequest = NewError(CodeInvalidRequest)
	ErrMethodNotFound = NewError(CodeMethodNotFound)
	ErrInvalidParams  = NewError(CodeInvalidParams)
	ErrInternal       = NewError(CodeInternalError)
)

// NewError returns the canonical error for a reserved code, or a server
// error with the given code and the generic server message.
func NewError(code int) *Error {
	if msg, ok := reservedMessages[code]; ok {
		return &Error{Code: code, Message: msg}
	}
	return &Error{Code: code, Message: serverErrorMessage}
}

// IsReservedCode reports whether code is one of the five reserved codes.
func IsReservedCode(code int) bool {
	_, ok := reservedMessages[code]
	return ok
}

// IsServerCode reports whether code lies in [-32099, -32000].
func IsServerCode(code int) bool {
	return code >= ServerCodeMin && code <= ServerCodeMax
}

// NormalizeError converts v into a well-formed error object.
//
//   - nil yields the internal error
//   - a string or a plain error yields a server error carrying the message
//   - a reserved code is replaced by its canonical error, dropping the message
//
// Any other code must lie in the server range, otherwise
// ErrInvalidServerErrorCode is returned.
func NormalizeError(v interface{}) (*Error, error) {
	switch e := v.(type) {
	case nil:
		return NewError(CodeInternalError), nil
	case string:
		return &Error{Code: CodeServerError, Message: e}, nil
	case *Error:
		if e == nil {
			return NewError(CodeInternalError), nil
		}
		return normalizeCode(*e)
	case Error:
		return normalizeCode(e)
	case error:
		var rpcErr *Error
		if errors.As(e, &rpcErr) {
			return normalizeCode(*rpcErr)
		}
		return &Error{Code: CodeServerError, Message: e.Error()}, nil
	default:
		return &Error{Code: CodeServerError, Message: fmt.Sprint(v)}, nil
	}
}

// MustNormalizeError is like NormalizeError but panics on an invalid code.
func MustNormalizeError(v interface{}) *Error {
	e, err := NormalizeError(v)
	if err != nil {
		panic(err)
	}
	return e
}

func normalizeCode(e Error) (*Error, error) {
	if IsReservedCode(e.Code) {
		return NewError(e.Code), nil
	}
	if !IsServerCode(e.Code) {
		return nil, errors.Wrapf(ErrInvalidServerErrorCode, "code %d", e.Code)
	}
	if e.Message == "" {
		e.Message = serverErrorMessage
	}
	return &e, nil
}
