// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package utils

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// JSONContentType is the content type of every JSON response.
const JSONContentType = "application/json; charset=utf-8"

type httpError struct {
	cause  error
	status int
}

func (e *httpError) Error() string {
	return e.cause.Error()
}

// HTTPError wraps cause with an http status.
func HTTPError(cause error, status int) error {
	return &httpError{cause: cause, status: status}
}

// BadRequest is a 400 error.
func BadRequest(cause error) error {
	return HTTPError(cause, http.StatusBadRequest)
}

// Forbidden is a 403 error.
func Forbidden(cause error) error {
	return HTTPError(cause, http.StatusForbidden)
}

// HandlerFunc is an http handler that may fail.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// WrapHandlerFunc converts f into an http.HandlerFunc, writing errors as
// plain text responses.
func WrapHandlerFunc(f HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)
		if err == nil {
			return
		}
		var he *httpError
		if errors.As(err, &he) {
			if he.cause != nil {
				http.Error(w, he.cause.Error(), he.status)
			} else {
				w.WriteHeader(he.status)
			}
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ParseJSON decodes the json in r into v.
func ParseJSON(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}

// WriteJSON writes obj with status 200.
func WriteJSON(w http.ResponseWriter, obj interface{}) error {
	w.Header().Set("Content-Type", JSONContentType)
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(obj)
}

// M shortcut for type map[string]interface{}.
type M map[string]interface{}
