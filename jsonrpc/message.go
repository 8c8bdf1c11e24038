// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package jsonrpc

import (
	"encoding/json"
	"math/rand"
	"strconv"
	"time"
)

// Version is the only protocol version accepted on the wire.
const Version = "2.0"

// Request is an outgoing JSON-RPC request.
type Request struct {
	ID      int64         `json:"id"`
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// Key returns the correlation key of the request id.
func (r Request) Key() string {
	return strconv.FormatInt(r.ID, 10)
}

// Result is a successful JSON-RPC response.
type Result struct {
	ID      json.RawMessage `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  interface{}     `json:"result"`
}

// ErrorResponse is a failed JSON-RPC response.
type ErrorResponse struct {
	ID      json.RawMessage `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Error   *Error          `json:"error"`
}

var now = time.Now

// NextID returns a request id built from the current time in milliseconds
// and three random digits.
func NextID() int64 {
	return now().UnixNano()/int64(time.Millisecond)*1000 + rand.Int63n(1000)
}

// FormatRequest builds a request. The id is generated when not given.
func FormatRequest(method string, params []interface{}, id ...int64) Request {
	if params == nil {
		params = []interface{}{}
	}
	req := Request{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
	}
	if len(id) > 0 {
		req.ID = id[0]
	} else {
		req.ID = NextID()
	}
	return req
}

// FormatResult builds a successful response for id.
func FormatResult(id interface{}, result interface{}) Result {
	return Result{
		ID:      rawID(id),
		JSONRPC: Version,
		Result:  result,
	}
}

// FormatError builds an error response for id. err is normalized with
// NormalizeError.
func FormatError(id interface{}, err interface{}) (ErrorResponse, error) {
	e, nerr := NormalizeError(err)
	if nerr != nil {
		return ErrorResponse{}, nerr
	}
	return ErrorResponse{
		ID:      rawID(id),
		JSONRPC: Version,
		Error:   e,
	}, nil
}

func rawID(id interface{}) json.RawMessage {
	switch v := id.(type) {
	case json.RawMessage:
		if len(v) == 0 {
			return json.RawMessage("null")
		}
		return v
	case int64:
		return json.RawMessage(strconv.FormatInt(v, 10))
	case nil:
		return json.RawMessage("null")
	}
	data, err := json.Marshal(id)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
