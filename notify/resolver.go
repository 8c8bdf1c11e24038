// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package notify

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pagewallet/pagewallet/chainid"
	"github.com/pkg/errors"
)

// Network is the display metadata of a chain.
type Network struct {
	ChainID string `yaml:"chain-id" json:"chainId"`
	Name    string `yaml:"name" json:"name"`
	Icon    string `yaml:"icon" json:"icon"`
}

// Resolver looks up network metadata. An unknown chain yields nil and no
// error.
type Resolver interface {
	Resolve(ctx context.Context, chainID string) (*Network, error)
}

// StaticResolver resolves from a fixed table keyed by canonical hex chain id.
type StaticResolver map[string]Network

// NewStaticResolver indexes networks by chain id. Hex and decimal ids are
// both accepted.
func NewStaticResolver(networks []Network) (StaticResolver, error) {
	r := make(StaticResolver, len(networks))
	for _, n := range networks {
		id, err := chainid.Normalize(n.ChainID)
		if err != nil {
			return nil, errors.WithMessage(err, "network "+n.Name)
		}
		n.ChainID = id
		r[id] = n
	}
	return r, nil
}

// Resolve implements Resolver.
func (r StaticResolver) Resolve(_ context.Context, chainID string) (*Network, error) {
	id, err := chainid.Normalize(chainID)
	if err != nil {
		return nil, err
	}
	n, ok := r[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

// CachedResolver memoizes the networks found by another resolver. Misses
// and errors are not cached.
type CachedResolver struct {
	next  Resolver
	cache *lru.Cache
}

// NewCachedResolver wraps next with an LRU cache of size entries.
func NewCachedResolver(next Resolver, size int) (*CachedResolver, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedResolver{next: next, cache: cache}, nil
}

// Resolve implements Resolver.
func (r *CachedResolver) Resolve(ctx context.Context, chainID string) (*Network, error) {
	key, err := chainid.Normalize(chainID)
	if err != nil {
		return nil, err
	}
	if v, ok := r.cache.Get(key); ok {
		n := v.(Network)
		return &n, nil
	}
	n, err := r.next.Resolve(ctx, key)
	if err != nil || n == nil {
		return n, err
	}
	r.cache.Add(key, *n)
	return n, nil
}
