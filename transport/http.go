// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const probeTimeout = 30 * time.Second

var probeBody = []byte(`{"id":1,"jsonrpc":"2.0","method":"test","params":[]}`)

// HTTP sends each payload as one POST and emits the decoded response body.
type HTTP struct {
	base
	url    string
	client *http.Client
	header http.Header
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP)

// WithHTTPClient sets the client used for every POST.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTP) {
		t.client = c
	}
}

// WithHTTPHeader adds header to every POST.
func WithHTTPHeader(h http.Header) HTTPOption {
	return func(t *HTTP) {
		for k, vs := range h {
			for _, v := range vs {
				t.header.Add(k, v)
			}
		}
	}
}

// NewHTTP creates an HTTP transport for url.
func NewHTTP(url string, opts ...HTTPOption) *HTTP {
	t := &HTTP{
		base:   base{kind: "http"},
		url:    url,
		client: http.DefaultClient,
		header: make(http.Header),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// URL returns the endpoint.
func (t *HTTP) URL() string { return t.url }

// Open probes the endpoint with a canary request. Any transport failure
// closes the transport and yields an *UnavailableError. The status code of
// the probe is not inspected.
func (t *HTTP) Open(ctx context.Context) error {
	return t.open(ctx, t.probe)
}

func (t *HTTP) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	res, err := t.post(ctx, probeBody)
	if err != nil {
		log.Debug("probe failed", "url", t.url, "err", err)
		t.emit(EventClose, nil)
		return &UnavailableError{Kind: "HTTP", URL: t.url, cause: err}
	}
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()
	return nil
}

// Close marks the transport disconnected. Closing twice returns
// ErrAlreadyDisconnected.
func (t *HTTP) Close() error {
	if !t.onClose() {
		return ErrAlreadyDisconnected
	}
	return nil
}

// Send posts payload. A failed POST is reported as an error response for
// each request in payload rather than as a returned error.
func (t *HTTP) Send(ctx context.Context, payload interface{}) error {
	if err := t.Open(ctx); err != nil {
		return err
	}
	body, err := encode(payload)
	if err != nil {
		return err
	}

	res, err := t.post(ctx, body)
	if err != nil {
		log.Debug("post failed", "url", t.url, "err", err)
		t.emitFailure(body, err)
		return nil
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.emitFailure(body, errors.Wrap(err, "read response"))
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		// notifications get no body
		if res.StatusCode/100 != 2 {
			t.emitFailure(body, statusError(res))
		}
		return nil
	}
	if err := t.emitPayloads(data); err != nil {
		if res.StatusCode/100 != 2 {
			err = statusError(res)
		}
		t.emitFailure(body, err)
	}
	return nil
}

func (t *HTTP) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vs := range t.header {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", "application/json")
	return t.client.Do(req)
}

func statusError(res *http.Response) error {
	return errors.Errorf("http status %d %s", res.StatusCode, http.StatusText(res.StatusCode))
}
