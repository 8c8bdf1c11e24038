// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package jsonrpc

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Payload is an envelope as seen on the wire, with its members left
// undecoded. Structural checks only look at which members are present.
type Payload map[string]json.RawMessage

// ParsePayload decodes a single JSON object.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "decode payload")
	}
	if p == nil {
		return nil, errors.New("decode payload: not an object")
	}
	return p, nil
}

// ParsePayloads decodes either a single object or a batch array.
func ParsePayloads(data []byte) ([]Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []Payload
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, errors.Wrap(err, "decode batch")
		}
		for i, p := range batch {
			if p == nil {
				return nil, errors.Errorf("decode batch: element %d is not an object", i)
			}
		}
		return batch, nil
	}
	p, err := ParsePayload(trimmed)
	if err != nil {
		return nil, err
	}
	return []Payload{p}, nil
}

// NewPayload converts v into a Payload. Raw JSON is decoded, anything else
// goes through json.Marshal first.
func NewPayload(v interface{}) (Payload, error) {
	switch x := v.(type) {
	case Payload:
		return x, nil
	case json.RawMessage:
		return ParsePayload(x)
	case []byte:
		return ParsePayload(x)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode payload")
	}
	return ParsePayload(data)
}

// Has reports whether member key is present, even when its value is null.
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// ID returns the raw id member.
func (p Payload) ID() json.RawMessage {
	return p["id"]
}

// Key returns the correlation key of the id. Numeric ids produce the same
// key as Request.Key.
func (p Payload) Key() string {
	return string(bytes.TrimSpace(p["id"]))
}

// Version returns the jsonrpc member, or "" when absent or not a string.
func (p Payload) Version() string {
	return p.str("jsonrpc")
}

// Method returns the method member, or "" when absent or not a string.
func (p Payload) Method() string {
	return p.str("method")
}

// Params returns the raw params member.
func (p Payload) Params() json.RawMessage {
	return p["params"]
}

// Result returns the raw result member.
func (p Payload) Result() json.RawMessage {
	return p["result"]
}

// RPCError decodes the error member. A malformed error member decodes into
// the internal error.
func (p Payload) RPCError() *Error {
	raw, ok := p["error"]
	if !ok {
		return nil
	}
	var e Error
	if err := json.Unmarshal(raw, &e); err != nil || e.Code == 0 {
		return NewError(CodeInternalError)
	}
	return &e
}

func (p Payload) str(key string) string {
	raw, ok := p[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func isPayload(p Payload) bool {
	return p.Has("id") && p.Version() == Version
}

// IsRequest reports whether p has an id, the 2.0 version tag and a method.
func IsRequest(p Payload) bool {
	return isPayload(p) && p.Has("method")
}

// IsResponse reports whether p has an id, the 2.0 version tag and either a
// result or an error.
func IsResponse(p Payload) bool {
	return isPayload(p) && (IsResult(p) || IsError(p))
}

// IsResult reports whether p carries a result member.
func IsResult(p Payload) bool {
	return p.Has("result")
}

// IsError reports whether p carries an error member.
func IsError(p Payload) bool {
	return p.Has("error")
}

// IsNotification reports whether p is a request without an id.
func IsNotification(p Payload) bool {
	return !p.Has("id") && p.Version() == Version && p.Has("method")
}

// Notification is a request without id, used for pushed events.
type Notification struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// FormatNotification builds a notification.
func FormatNotification(method string, params ...interface{}) Notification {
	if params == nil {
		params = []interface{}{}
	}
	return Notification{JSONRPC: Version, Method: method, Params: params}
}
