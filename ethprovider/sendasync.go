// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ethprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/pagewallet/pagewallet/jsonrpc"
	"github.com/pkg/errors"
)

// AsyncResult is the outcome of one item of a SendAsync call.
type AsyncResult struct {
	ID      json.RawMessage `json:"id,omitempty"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpc.Error  `json:"error,omitempty"`
}

// AsyncCallback receives the outcome of SendAsync. result is an AsyncResult
// for a single request and an []AsyncResult for a batch.
type AsyncCallback func(err error, result interface{})

type asyncRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// SendAsync runs payload, a single request or a batch, through Request and
// calls cb exactly once on another goroutine. Batch items run concurrently
// and a failed item never affects the others; the callback error is only
// set for a failed single request or an undecodable payload.
func (p *Provider) SendAsync(ctx context.Context, payload json.RawMessage, cb AsyncCallback) {
	go func() {
		result, err := p.sendAsync(ctx, payload)
		cb(err, result)
	}()
}

func (p *Provider) sendAsync(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []asyncRequest
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, errors.WithMessage(jsonrpc.NewError(jsonrpc.CodeParseError), err.Error())
		}
		results := make([]AsyncResult, len(items))
		var wg sync.WaitGroup
		for i := range items {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = p.do(ctx, items[i])
			}(i)
		}
		wg.Wait()
		return results, nil
	}

	var item asyncRequest
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return nil, errors.WithMessage(jsonrpc.NewError(jsonrpc.CodeParseError), err.Error())
	}
	res := p.do(ctx, item)
	if res.Error != nil {
		return res, res.Error
	}
	return res, nil
}

func (p *Provider) do(ctx context.Context, item asyncRequest) AsyncResult {
	res := AsyncResult{ID: item.ID, JSONRPC: jsonrpc.Version, Method: item.Method}

	params, err := decodeParams(item.Params)
	if err != nil {
		res.Error = jsonrpc.NewError(jsonrpc.CodeInvalidParams)
		return res
	}
	raw, err := p.Request(ctx, item.Method, params)
	if err != nil {
		// host errors keep their code, provider codes such as 4001 included
		var rpcErr *jsonrpc.Error
		if errors.As(err, &rpcErr) {
			res.Error = rpcErr
			return res
		}
		e, nerr := jsonrpc.NormalizeError(err)
		if nerr != nil {
			e = jsonrpc.NewError(jsonrpc.CodeInternalError)
		}
		res.Error = e
		return res
	}
	res.Result = raw
	return res
}

// decodeParams accepts positional params, a single by-name object or nothing.
func decodeParams(raw json.RawMessage) ([]interface{}, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var params []interface{}
		if err := json.Unmarshal(trimmed, &params); err != nil {
			return nil, err
		}
		return params, nil
	}
	var obj interface{}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	return []interface{}{obj}, nil
}
