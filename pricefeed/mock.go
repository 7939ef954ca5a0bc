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

package pricefeed

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/direct-state-transfer/fundme"
)

// Default parameters of the mock aggregator, matching an ETH/USD feed at 2000 USD.
const (
	DefaultMockDecimals      = 8
	DefaultMockInitialAnswer = 2000e8
)

// MockAggregator is an in-process price feed for development chains and tests.
// Its answer can be updated at any time.
//
// - implements fundme.PriceFeed
type MockAggregator struct {
	addr common.Address

	mu       sync.RWMutex
	decimals uint8
	answer   *big.Int
	round    uint64
}

// NewMockAggregator returns a mock aggregator with the given decimals and initial answer.
// The mock takes the address of the first contract that would be created by the
// deployer, so that it has a stable address on a fresh development chain.
func NewMockAggregator(deployer common.Address, decimals uint8, initialAnswer *big.Int) *MockAggregator {
	return &MockAggregator{
		addr:     crypto.CreateAddress(deployer, 0),
		decimals: decimals,
		answer:   new(big.Int).Set(initialAnswer),
		round:    1,
	}
}

// Address implements fundme.PriceFeed.
func (m *MockAggregator) Address() common.Address {
	return m.addr
}

// CurrentRate implements fundme.PriceFeed.
func (m *MockAggregator) CurrentRate(context.Context) (fundme.Rate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return fundme.Rate{
		Answer:   new(big.Int).Set(m.answer),
		Decimals: m.decimals,
		RoundID:  new(big.Int).SetUint64(m.round),
	}, nil
}

// UpdateAnswer sets a new answer and starts a new round.
func (m *MockAggregator) UpdateAnswer(answer *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.answer = new(big.Int).Set(answer)
	m.round++
}
