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

package ledger_test

import (
	"context"
	"math/big"
	"math/rand"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/direct-state-transfer/fundme"
)

var (
	// 2000 USD per ETH with 8 decimals, as returned by the ETH/USD feeds.
	defaultRate = fundme.Rate{Answer: big.NewInt(2000e8), Decimals: 8}

	// 200 USD is the value of 0.1 ETH at the default rate.
	defaultMinimumUSD = new(big.Int).Mul(big.NewInt(200), big.NewInt(1e18))

	errFake = errors.New("fake error")
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// milliEther returns n * 0.001 ETH in wei.
func milliEther(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e15))
}

func newRandomAddress(rng *rand.Rand) common.Address {
	var a common.Address
	rng.Read(a[:])
	return a
}

type fakePriceFeed struct {
	addr common.Address
	rate fundme.Rate
	err  error
}

func (f *fakePriceFeed) Address() common.Address { return f.addr }

func (f *fakePriceFeed) CurrentRate(context.Context) (fundme.Rate, error) {
	return f.rate, f.err
}

// fakeSettlement keeps the balances of all accounts in memory. The escrow holds
// the received contributions.
type fakeSettlement struct {
	mu         sync.Mutex
	balances   map[common.Address]*big.Int
	escrow     *big.Int
	receiveErr error
	sendErr    error

	// onSend is called before the transfer is applied, without holding the lock.
	onSend func()
}

func newFakeSettlement() *fakeSettlement {
	return &fakeSettlement{
		balances: make(map[common.Address]*big.Int),
		escrow:   new(big.Int),
	}
}

func (s *fakeSettlement) Receive(_ context.Context, _ common.Address, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receiveErr != nil {
		return s.receiveErr
	}
	s.escrow.Add(s.escrow, amount)
	return nil
}

func (s *fakeSettlement) Send(_ context.Context, to common.Address, amount *big.Int) error {
	if s.onSend != nil {
		s.onSend()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	if s.escrow.Cmp(amount) < 0 {
		return errors.New("escrow balance too low")
	}
	s.escrow.Sub(s.escrow, amount)
	s.balances[to] = new(big.Int).Add(s.balanceOf(to), amount)
	return nil
}

func (s *fakeSettlement) BalanceOf(addr common.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceOf(addr)
}

func (s *fakeSettlement) balanceOf(addr common.Address) *big.Int {
	if b, ok := s.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

type fakeStore struct {
	state   fundme.State
	loadErr error
	saveErr error
	saves   int
}

func (s *fakeStore) Load() (fundme.State, error) { return s.state, s.loadErr }

func (s *fakeStore) Save(state fundme.State) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.state = state
	return nil
}

func (s *fakeStore) Close() error { return nil }
