// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ethprovider

import (
	"context"
	"encoding/json"

	"github.com/pagewallet/pagewallet/jsonrpc"
	"github.com/pkg/errors"
)

// LegacyMethod names a pre-EIP-1193 provider method.
type LegacyMethod string

const (
	LegacyEnable     LegacyMethod = "enable"
	LegacyNetVersion LegacyMethod = "net_version"
)

var legacyMethods = map[LegacyMethod]string{
	LegacyEnable:     "eth_requestAccounts",
	LegacyNetVersion: "net_version",
}

// Legacy calls the modern method behind a legacy name.
func (p *Provider) Legacy(ctx context.Context, name LegacyMethod) (json.RawMessage, error) {
	method, ok := legacyMethods[name]
	if !ok {
		return nil, errors.WithMessage(jsonrpc.NewError(jsonrpc.CodeMethodNotFound), string(name))
	}
	return p.Request(ctx, method, nil)
}

// Enable asks the host for account access.
func (p *Provider) Enable(ctx context.Context) ([]string, error) {
	raw, err := p.Legacy(ctx, LegacyEnable)
	if err != nil {
		return nil, err
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, errors.Wrap(err, "decode accounts")
	}
	return accounts, nil
}

// NetVersion returns the decimal network id reported by the host.
func (p *Provider) NetVersion(ctx context.Context) (string, error) {
	raw, err := p.Legacy(ctx, LegacyNetVersion)
	if err != nil {
		return "", err
	}
	var version string
	if err := json.Unmarshal(raw, &version); err != nil {
		return "", errors.Wrap(err, "decode network version")
	}
	return version, nil
}
