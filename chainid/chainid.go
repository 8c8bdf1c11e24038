// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package chainid converts between the hex chain id and the decimal network
// version.
package chainid

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
)

// Parse accepts a 0x-prefixed hex or a decimal chain id.
func Parse(v string) (*big.Int, error) {
	if v == "" {
		return nil, errors.New("empty chain id")
	}
	n, ok := math.ParseBig256(v)
	if !ok || n.Sign() < 0 {
		return nil, errors.Errorf("invalid chain id %q", v)
	}
	return n, nil
}

// Normalize returns the canonical hex form of v, e.g. "137" -> "0x89".
func Normalize(v string) (string, error) {
	n, err := Parse(v)
	if err != nil {
		return "", err
	}
	return hexutil.EncodeBig(n), nil
}

// NetworkVersion returns the decimal form of v, e.g. "0x89" -> "137".
func NetworkVersion(v string) (string, error) {
	n, err := Parse(v)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}
