// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rpc

import (
	"context"
	"encoding/json"

	"github.com/pagewallet/pagewallet/jsonrpc"
)

// maxBodySize bounds a single http request body.
const maxBodySize = 1 << 20

// Handler answers one method call made by origin.
type Handler interface {
	Handle(ctx context.Context, origin, method string, params json.RawMessage) (interface{}, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, origin, method string, params json.RawMessage) (interface{}, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, origin, method string, params json.RawMessage) (interface{}, error) {
	return f(ctx, origin, method, params)
}

// errorResponse formats err for id. Errors whose code cannot be sent are
// replaced by the internal error.
func errorResponse(id json.RawMessage, err error) jsonrpc.ErrorResponse {
	resp, nerr := jsonrpc.FormatError(id, err)
	if nerr != nil {
		log.Warn("unsendable error code", "err", err, "reason", nerr)
		resp, _ = jsonrpc.FormatError(id, jsonrpc.ErrInternal)
	}
	return resp
}
