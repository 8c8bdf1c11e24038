// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/mattn/go-isatty"
	"github.com/pagewallet/pagewallet/api"
	"github.com/pagewallet/pagewallet/ethprovider"
	"github.com/pagewallet/pagewallet/notify"
	"github.com/pagewallet/pagewallet/registry"
	"github.com/pagewallet/pagewallet/transport"
	"github.com/pagewallet/pagewallet/wallet"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"
)

var (
	version   = "0.1.0"
	gitCommit string

	log = log15.New()
)

const resolverCacheSize = 64

func fullVersion() string {
	if gitCommit == "" {
		return version
	}
	return fmt.Sprintf("%s-%s", version, gitCommit)
}

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	return newApp(os.Stdout).Run(args)
}

func newApp(stdout io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "pagewallet"
	app.Version = fullVersion()
	app.Usage = "Wallet provider host and JSON-RPC client"
	app.Writer = stdout
	app.Flags = []cli.Flag{verbosityFlag}
	app.Before = func(ctx *cli.Context) error {
		initLogger(ctx.GlobalInt(verbosityFlag.Name))
		return nil
	}
	app.Action = func(ctx *cli.Context) error {
		if ctx.NArg() > 0 {
			return errors.Errorf("unknown command %q", ctx.Args().First())
		}
		return errors.New("command not specified")
	}
	app.Commands = []cli.Command{
		{
			Name:   "host",
			Usage:  "serve wallet state over JSON-RPC (http and websocket)",
			Action: hostAction,
			Flags: []cli.Flag{
				configFlag,
				apiAddrFlag,
				apiCorsFlag,
				apiRateLimitFlag,
				chainIDFlag,
				accountsFlag,
				enableMetricsFlag,
			},
		},
		{
			Name:      "call",
			Usage:     "issue one request through the provider",
			ArgsUsage: "<method> [params...]",
			Action:    callAction,
			Flags:     []cli.Flag{urlFlag, timeoutFlag},
		},
	}
	return app
}

func initLogger(verbosity int) {
	format := log15.LogfmtFormat()
	if isatty.IsTerminal(os.Stderr.Fd()) {
		format = log15.TerminalFormat()
	}
	handler := log15.StreamHandler(os.Stderr, format)
	log15.Root().SetHandler(log15.LvlFilterHandler(log15.Lvl(verbosity), handler))
}

func hostAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx.String(configFlag.Name))
	if err != nil {
		return err
	}
	cfg.applyFlags(ctx)

	state, err := wallet.New(wallet.Options{
		ChainID:  cfg.ChainID,
		Accounts: cfg.Accounts,
		Chains:   cfg.switchableChains(),
	})
	if err != nil {
		return err
	}
	defer state.Close()

	static, err := notify.NewStaticResolver(cfg.Networks)
	if err != nil {
		return errors.WithMessage(err, "networks")
	}
	resolver, err := notify.NewCachedResolver(static, resolverCacheSize)
	if err != nil {
		return err
	}

	handler, closeAPI := api.New(state, resolver, api.Options{
		AllowedOrigins: cfg.CORS,
		RateLimit:      cfg.RateLimit,
		EnableMetrics:  cfg.Metrics,
	})
	defer closeAPI()

	exitCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiURL, srvClose, err := startAPIServer(cfg.APIAddr, handler)
	if err != nil {
		return err
	}
	defer func() { log.Info("stopping API server..."); srvClose() }()

	log.Info("API started", "url", apiURL, "chainId", state.ChainID(), "accounts", len(state.Accounts()))
	<-exitCtx.Done()
	return nil
}

func startAPIServer(addr string, handler http.Handler) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen API addr [%v]", addr)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second, ReadTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("API server stopped", "err", err)
		}
	}()
	return "http://" + listener.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func callAction(ctx *cli.Context) error {
	rawURL := ctx.String(urlFlag.Name)
	if rawURL == "" {
		return errors.New("url flag not specified")
	}
	if ctx.NArg() == 0 {
		return errors.New("method not specified")
	}
	t, err := newTransport(rawURL)
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), ctx.Duration(timeoutFlag.Name))
	defer cancel()

	p := ethprovider.New(t)
	if err := ethprovider.Register(registry.New(), p); err != nil {
		return err
	}
	if err := p.Open(reqCtx); err != nil {
		return errors.WithMessage(err, "open provider")
	}
	defer p.Close()

	result, err := p.Request(reqCtx, ctx.Args().First(), parseParams(ctx.Args().Tail()))
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, result, "", "  "); err != nil {
		return errors.Wrap(err, "format result")
	}
	_, err = fmt.Fprintln(ctx.App.Writer, out.String())
	return err
}

func newTransport(rawURL string) (transport.Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "url")
	}
	switch u.Scheme {
	case "http", "https":
		return transport.NewHTTP(rawURL), nil
	case "ws", "wss":
		return transport.NewWS(rawURL), nil
	}
	return nil, errors.Errorf("unsupported url scheme %q", u.Scheme)
}

// parseParams decodes each argument as JSON, keeping it as a plain string
// when it is not valid JSON.
func parseParams(args []string) []interface{} {
	params := make([]interface{}, 0, len(args))
	for _, arg := range args {
		var v interface{}
		if err := json.Unmarshal([]byte(arg), &v); err != nil {
			v = arg
		}
		params = append(params, v)
	}
	return params
}
