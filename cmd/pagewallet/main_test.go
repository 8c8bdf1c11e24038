// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoCommand(t *testing.T) {
	err := run(make([]string, 1))
	assert.Equal(t, err.Error(), "command not specified")
}

func TestCallNoURL(t *testing.T) {
	err := run([]string{"pagewallet", "call", "eth_chainId"})
	assert.Equal(t, err.Error(), "url flag not specified")
}

func TestCallNoMethod(t *testing.T) {
	err := run([]string{"pagewallet", "call", "--url", "http://localhost:1"})
	assert.Equal(t, err.Error(), "method not specified")
}

func TestCallBadScheme(t *testing.T) {
	err := run([]string{"pagewallet", "call", "--url", "ftp://localhost", "eth_chainId"})
	assert.Equal(t, err.Error(), `unsupported url scheme "ftp"`)
}

func TestParseParams(t *testing.T) {
	assert.Equal(t,
		[]interface{}{"0x1", float64(137), map[string]interface{}{"chainId": "0x89"}, true},
		parseParams([]string{"0x1", "137", `{"chainId":"0x89"}`, "true"}))
	assert.Equal(t, []interface{}{}, parseParams(nil))
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	path := filepath.Join(t.TempDir(), "host.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api-addr: 127.0.0.1:9000
chain-id: "137"
chains: ["0x5"]
accounts:
  - "0x7567d83b7b8d80addcb281a71d54fc7b3364ffed"
networks:
  - chain-id: "0x1"
    name: Ethereum
    icon: https://icons.example/eth.png
rate-limit:
  rps: 10
  burst: 20
cors: ["https://app.example"]
metrics: true
`), 0o600))

	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.APIAddr)
	assert.Equal(t, "137", cfg.ChainID)
	assert.Equal(t, []string{"0x5", "0x1"}, cfg.switchableChains())
	assert.Equal(t, "Ethereum", cfg.Networks[0].Name)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.True(t, cfg.Metrics)

	require.NoError(t, os.WriteFile(path, []byte("unknown-key: 1\n"), 0o600))
	_, err = loadConfig(path)
	assert.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b,"))
	assert.Nil(t, splitList(""))
}

func findAvailablePort(t *testing.T) int {
	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

func startHost(t *testing.T, customArgs ...string) (string, error) {
	apiAddr := fmt.Sprintf("localhost:%d", findAvailablePort(t))
	args := append([]string{"pagewallet", "host", "--api-addr", apiAddr}, customArgs...)

	go func() {
		_ = run(args)
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case <-ticker.C:
			res, err := http.Get("http://" + apiAddr + "/health")
			if err == nil {
				res.Body.Close()
				if res.StatusCode == http.StatusOK {
					return apiAddr, nil
				}
			}
		case <-timeout:
			return "", errors.New("timeout waiting for host to start")
		}
	}
}

func call(t *testing.T, url string, args ...string) string {
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"pagewallet", "call", "--url", url}, args...))
	require.NoError(t, err)
	return strings.TrimSpace(out.String())
}

func TestHostAndCall(t *testing.T) {
	addr, err := startHost(t, "--chain-id", "137", "--accounts", "0x7567d83b7b8d80addcb281a71d54fc7b3364ffed")
	require.NoError(t, err)

	assert.Equal(t, `"0x89"`, call(t, "http://"+addr+"/rpc", "eth_chainId"))
	assert.Equal(t, `"137"`, call(t, "http://"+addr+"/rpc", "net_version"))
	assert.Equal(t, `"137"`, call(t, "ws://"+addr+"/ws", "net_version"))
	account := common.HexToAddress("0x7567d83b7b8d80addcb281a71d54fc7b3364ffed").Hex()
	assert.Equal(t, fmt.Sprintf("[\n  %q\n]", account), call(t, "ws://"+addr+"/ws", "eth_requestAccounts"))

	var out bytes.Buffer
	err = newApp(&out).Run([]string{"pagewallet", "call", "--url", "http://" + addr + "/rpc", "eth_sign"})
	assert.Error(t, err)
}
