// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"
	"strings"

	"github.com/pagewallet/pagewallet/api"
	"github.com/pagewallet/pagewallet/notify"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v2"
)

const (
	defaultAPIAddr = "localhost:8645"
	defaultChainID = "0x1"
)

// config is the host configuration. Flags override file values.
type config struct {
	APIAddr   string           `yaml:"api-addr"`
	ChainID   string           `yaml:"chain-id"`
	Chains    []string         `yaml:"chains"`
	Accounts  []string         `yaml:"accounts"`
	Networks  []notify.Network `yaml:"networks"`
	RateLimit api.RateLimit    `yaml:"rate-limit"`
	CORS      []string         `yaml:"cors"`
	Metrics   bool             `yaml:"metrics"`
}

func defaultConfig() config {
	return config{
		APIAddr: defaultAPIAddr,
		ChainID: defaultChainID,
	}
}

// loadConfig reads the yaml file at path over the defaults. An empty path
// yields the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

func (c *config) applyFlags(ctx *cli.Context) {
	if ctx.IsSet(apiAddrFlag.Name) {
		c.APIAddr = ctx.String(apiAddrFlag.Name)
	}
	if ctx.IsSet(chainIDFlag.Name) {
		c.ChainID = ctx.String(chainIDFlag.Name)
	}
	if ctx.IsSet(accountsFlag.Name) {
		c.Accounts = splitList(ctx.String(accountsFlag.Name))
	}
	if ctx.IsSet(apiCorsFlag.Name) {
		c.CORS = splitList(ctx.String(apiCorsFlag.Name))
	}
	if ctx.IsSet(apiRateLimitFlag.Name) {
		c.RateLimit.RPS = ctx.Float64(apiRateLimitFlag.Name)
	}
	if ctx.IsSet(enableMetricsFlag.Name) {
		c.Metrics = ctx.Bool(enableMetricsFlag.Name)
	}
}

// switchableChains returns the chains a dapp may select: the configured
// ones plus every network with display metadata.
func (c *config) switchableChains() []string {
	chains := append([]string{}, c.Chains...)
	for _, n := range c.Networks {
		chains = append(chains, n.ChainID)
	}
	return chains
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
