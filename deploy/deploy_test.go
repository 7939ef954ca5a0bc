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

package deploy_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/direct-state-transfer/fundme/deploy"
	"github.com/direct-state-transfer/fundme/pricefeed"
)

// codeCaller reports contract code only at the addresses in deployed.
type codeCaller struct {
	deployed map[common.Address]bool
}

func (c *codeCaller) CodeAt(_ context.Context, addr common.Address, _ *big.Int) ([]byte, error) {
	if c.deployed[addr] {
		return []byte{0x60, 0x80}, nil
	}
	return nil, nil
}

func (c *codeCaller) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func Test_IsDevelopmentChain(t *testing.T) {
	assert.True(t, deploy.IsDevelopmentChain("hardhat", deploy.DefaultDevelopmentChains))
	assert.True(t, deploy.IsDevelopmentChain("ganache", deploy.DefaultDevelopmentChains))
	assert.False(t, deploy.IsDevelopmentChain("sepolia", deploy.DefaultDevelopmentChains))
	assert.False(t, deploy.IsDevelopmentChain("hardhat", nil))
}

func Test_PriceFeed(t *testing.T) {
	deployer := common.HexToAddress("0x1234")
	sepoliaFeed := deploy.Networks[11155111].EthUsdPriceFeed
	caller := &codeCaller{deployed: map[common.Address]bool{sepoliaFeed: true}}

	t.Run("development-chain", func(t *testing.T) {
		cfg := deploy.Config{
			Network:           "localhost",
			Deployer:          deployer,
			MockDecimals:      pricefeed.DefaultMockDecimals,
			MockInitialAnswer: big.NewInt(pricefeed.DefaultMockInitialAnswer),
		}
		feed, err := deploy.PriceFeed(context.Background(), cfg, caller)
		require.NoError(t, err)
		require.IsType(t, &pricefeed.MockAggregator{}, feed)
		assert.Equal(t, crypto.CreateAddress(deployer, 0), feed.Address())

		rate, err := feed.CurrentRate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint8(8), rate.Decimals)
		assert.Equal(t, big.NewInt(2000e8), rate.Answer)
		assert.Equal(t, big.NewInt(1), rate.RoundID)
	})

	t.Run("custom-development-chains", func(t *testing.T) {
		cfg := deploy.Config{
			Network:           "anvil",
			DevelopmentChains: []string{"anvil"},
			MockDecimals:      18,
			MockInitialAnswer: big.NewInt(1),
		}
		feed, err := deploy.PriceFeed(context.Background(), cfg, caller)
		require.NoError(t, err)
		assert.IsType(t, &pricefeed.MockAggregator{}, feed)
	})

	t.Run("public-network", func(t *testing.T) {
		cfg := deploy.Config{Network: "sepolia", ChainID: big.NewInt(11155111)}
		feed, err := deploy.PriceFeed(context.Background(), cfg, caller)
		require.NoError(t, err)
		require.IsType(t, &pricefeed.Aggregator{}, feed)
		assert.Equal(t, sepoliaFeed, feed.Address())
	})

	t.Run("public-network-feed-not-deployed", func(t *testing.T) {
		cfg := deploy.Config{Network: "mainnet", ChainID: big.NewInt(1)}
		_, err := deploy.PriceFeed(context.Background(), cfg, caller)
		require.Error(t, err)
		assert.True(t, errors.Is(err, pricefeed.ErrNoContractCode))
	})

	t.Run("unknown-chain-id", func(t *testing.T) {
		cfg := deploy.Config{Network: "custom", ChainID: big.NewInt(424242)}
		_, err := deploy.PriceFeed(context.Background(), cfg, caller)
		assert.True(t, errors.Is(err, deploy.ErrUnknownNetwork))
	})

	t.Run("missing-chain-id", func(t *testing.T) {
		cfg := deploy.Config{Network: "custom"}
		_, err := deploy.PriceFeed(context.Background(), cfg, caller)
		assert.True(t, errors.Is(err, deploy.ErrUnknownNetwork))
	})

	t.Run("mock-invalid-answer", func(t *testing.T) {
		cfg := deploy.Config{Network: "hardhat", MockDecimals: 8}
		_, err := deploy.PriceFeed(context.Background(), cfg, caller)
		assert.Error(t, err)
	})
}
