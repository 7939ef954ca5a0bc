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

package deploy

import "github.com/ethereum/go-ethereum/common"

// NetworkConfig holds the parameters of a public network the ledger can be
// deployed on.
type NetworkConfig struct {
	Name            string
	EthUsdPriceFeed common.Address
}

// Networks maps chain ids of public networks to their config. Addresses are
// those of the Chainlink ETH/USD price feeds.
var Networks = map[uint64]NetworkConfig{
	1: {
		Name:            "mainnet",
		EthUsdPriceFeed: common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"),
	},
	4: {
		Name:            "rinkeby",
		EthUsdPriceFeed: common.HexToAddress("0x8A753747A1Fa494EC906cE90E9f37563A8AF630e"),
	},
	5: {
		Name:            "goerli",
		EthUsdPriceFeed: common.HexToAddress("0xD4a33860578De61DBAbDc8BFdb98FD742fA7028e"),
	},
	137: {
		Name:            "polygon",
		EthUsdPriceFeed: common.HexToAddress("0xF9680D99D6C9589e2a93a78A04A279e509205945"),
	},
	11155111: {
		Name:            "sepolia",
		EthUsdPriceFeed: common.HexToAddress("0x694AA1769357215DE4FAC081bf1f309aDC325306"),
	},
}

// DefaultDevelopmentChains are the networks on which a mock price feed is used.
var DefaultDevelopmentChains = []string{"hardhat", "localhost", "ganache"}
