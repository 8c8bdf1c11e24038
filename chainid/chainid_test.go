// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chainid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	for _, tc := range []struct {
		in      string
		hex     string
		version string
		wantErr bool
	}{
		{in: "0x1", hex: "0x1", version: "1"},
		{in: "0x01", hex: "0x1", version: "1"},
		{in: "0x89", hex: "0x89", version: "137"},
		{in: "137", hex: "0x89", version: "137"},
		{in: "0xaa36a7", hex: "0xaa36a7", version: "11155111"},
		{in: "", wantErr: true},
		{in: "0xzz", wantErr: true},
		{in: "mainnet", wantErr: true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			hex, err := Normalize(tc.in)
			version, verr := NetworkVersion(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				assert.Error(t, verr)
				return
			}
			assert.NoError(t, err)
			assert.NoError(t, verr)
			assert.Equal(t, tc.hex, hex)
			assert.Equal(t, tc.version, version)
		})
	}
}
