// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"time"

	"github.com/inconshreveable/log15"
	"gopkg.in/urfave/cli.v1"
)

var (
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: int(log15.LvlInfo),
		Usage: "log verbosity (0-9)",
	}

	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "host config file (yaml)",
	}
	apiAddrFlag = cli.StringFlag{
		Name:  "api-addr",
		Value: defaultAPIAddr,
		Usage: "API service listening address",
	}
	apiCorsFlag = cli.StringFlag{
		Name:  "api-cors",
		Usage: "comma separated list of origins allowed to reach the API, '*' for any",
	}
	apiRateLimitFlag = cli.Float64Flag{
		Name:  "api-rate-limit",
		Usage: "requests per second allowed per client ip, 0 to disable",
	}
	chainIDFlag = cli.StringFlag{
		Name:  "chain-id",
		Usage: "selected chain id, hex or decimal",
	}
	accountsFlag = cli.StringFlag{
		Name:  "accounts",
		Usage: "comma separated list of wallet accounts",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "serve prometheus metrics at /metrics",
	}

	urlFlag = cli.StringFlag{
		Name:  "url",
		Usage: "JSON-RPC endpoint, http(s):// or ws(s)://",
	}
	timeoutFlag = cli.DurationFlag{
		Name:  "timeout",
		Value: 30 * time.Second,
		Usage: "request timeout",
	}
)
