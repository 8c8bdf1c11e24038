// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ethprovider

import "github.com/pagewallet/pagewallet/registry"

// RegistryName is the name the provider is registered under.
const RegistryName = "ethereum"

// Register exposes p in reg. It fails if a provider is already registered.
func Register(reg *registry.Registry, p *Provider) error {
	return reg.Register(RegistryName, p)
}
