// Copyright (c) 2020 - for information on the respective copyright owner
// see the NOTICE file and/or the repository at
// https://github.com/direct-state-transfer/fundme
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package deploy selects the price feed a ledger is wired to, depending on the
// network the node connects to.
package deploy

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/direct-state-transfer/fundme"
	"github.com/direct-state-transfer/fundme/log"
	"github.com/direct-state-transfer/fundme/pricefeed"
)

// Error type is used to define error constants for this package.
type Error string

// Error implements error interface.
func (e Error) Error() string {
	return string(e)
}

// ErrUnknownNetwork is returned when no price feed is known for a network that is
// not a development chain.
const ErrUnknownNetwork Error = "no price feed configured for network"

const separator = "----------------------------------------------"

// Config defines the parameters for selecting the price feed.
type Config struct {
	// Network is the name of the network, used to identify development chains.
	Network string
	// ChainID is used to look up the price feed for other networks.
	ChainID           *big.Int
	DevelopmentChains []string

	// Deployer of the mock price feed. Its address is derived from it.
	Deployer          common.Address
	MockDecimals      uint8
	MockInitialAnswer *big.Int
}

// IsDevelopmentChain returns true if network is one of devChains.
func IsDevelopmentChain(network string, devChains []string) bool {
	for _, c := range devChains {
		if c == network {
			return true
		}
	}
	return false
}

// PriceFeed returns a mock price feed on development chains. On other networks,
// it returns a reader for the ETH/USD aggregator of the network, after checking
// that a contract is deployed at its address.
func PriceFeed(ctx context.Context, cfg Config, caller bind.ContractCaller) (fundme.PriceFeed, error) {
	logger := log.NewLoggerWithField("network", cfg.Network)

	devChains := cfg.DevelopmentChains
	if devChains == nil {
		devChains = DefaultDevelopmentChains
	}

	if IsDevelopmentChain(cfg.Network, devChains) {
		if cfg.MockInitialAnswer == nil || cfg.MockInitialAnswer.Sign() <= 0 {
			return nil, errors.New("mock initial answer must be positive")
		}
		mock := pricefeed.NewMockAggregator(cfg.Deployer, cfg.MockDecimals, cfg.MockInitialAnswer)
		logger.Infof("Local network detected, using mock price feed at %s", mock.Address().Hex())
		logger.Info(separator)
		return mock, nil
	}

	if cfg.ChainID == nil || !cfg.ChainID.IsUint64() {
		return nil, errors.Wrapf(ErrUnknownNetwork, "invalid chain id %v", cfg.ChainID)
	}
	netCfg, ok := Networks[cfg.ChainID.Uint64()]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNetwork, "chain id %s", cfg.ChainID.String())
	}
	feed, err := pricefeed.NewAggregator(ctx, caller, netCfg.EthUsdPriceFeed)
	if err != nil {
		return nil, errors.WithMessagef(err, "price feed of %s", netCfg.Name)
	}
	logger.Infof("Using price feed of %s at %s", netCfg.Name, feed.Address().Hex())
	logger.Info(separator)
	return feed, nil
}
