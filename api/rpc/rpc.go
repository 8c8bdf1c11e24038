// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/inconshreveable/log15"
	"github.com/pagewallet/pagewallet/api/utils"
	"github.com/pagewallet/pagewallet/jsonrpc"
	"github.com/pagewallet/pagewallet/notify"
	"github.com/pkg/errors"
)

var log = log15.New("pkg", "rpc")

type RPC struct {
	handler Handler
}

func New(handler Handler) *RPC {
	return &RPC{
		handler,
	}
}

// Dispatch answers data, a single request or a batch. It returns nil when
// there is nothing to answer, i.e. data held notifications only.
func (r *RPC) Dispatch(ctx context.Context, origin string, data []byte) interface{} {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return r.call(ctx, origin, trimmed)
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(trimmed, &batch); err != nil {
		return errorResponse(nil, jsonrpc.ErrParse)
	}
	if len(batch) == 0 {
		return errorResponse(nil, jsonrpc.ErrInvalidRequest)
	}
	responses := make([]interface{}, 0, len(batch))
	for _, item := range batch {
		if resp := r.call(ctx, origin, item); resp != nil {
			responses = append(responses, resp)
		}
	}
	if len(responses) == 0 {
		return nil
	}
	return responses
}

// call answers one request. Notifications are handled but yield nil.
func (r *RPC) call(ctx context.Context, origin string, data []byte) interface{} {
	p, err := jsonrpc.ParsePayload(data)
	if err != nil {
		if json.Valid(data) {
			return errorResponse(nil, jsonrpc.ErrInvalidRequest)
		}
		return errorResponse(nil, jsonrpc.ErrParse)
	}

	notification := jsonrpc.IsNotification(p)
	if !notification && !jsonrpc.IsRequest(p) {
		return errorResponse(p.ID(), jsonrpc.ErrInvalidRequest)
	}
	method := p.Method()
	if method == "" {
		return errorResponse(p.ID(), jsonrpc.ErrInvalidRequest)
	}

	result, err := r.handler.Handle(ctx, origin, method, p.Params())
	if notification {
		if err != nil {
			log.Debug("notification failed", "method", method, "err", err)
		}
		return nil
	}
	if err != nil {
		log.Debug("request failed", "method", method, "origin", origin, "err", err)
		return errorResponse(p.ID(), err)
	}
	return jsonrpc.FormatResult(p.ID(), result)
}

func (r *RPC) handleRPC(w http.ResponseWriter, req *http.Request) error {
	data, err := io.ReadAll(io.LimitReader(req.Body, maxBodySize))
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	resp := r.Dispatch(req.Context(), Origin(req), data)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	return utils.WriteJSON(w, resp)
}

// Origin returns the origin a request was made from, taken from the Origin
// header or else the Referer. It is empty for non-browser callers.
func Origin(req *http.Request) string {
	if o := req.Header.Get("Origin"); o != "" && o != "null" {
		return o
	}
	if ref := req.Header.Get("Referer"); ref != "" {
		if o, err := notify.Origin(ref); err == nil {
			return o
		}
	}
	return ""
}

func (r *RPC) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(r.handleRPC))
}
