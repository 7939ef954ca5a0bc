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

package pricefeed_test

import (
	"bytes"
	"context"
	"math/big"
	"math/rand"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/direct-state-transfer/fundme"
	"github.com/direct-state-transfer/fundme/pricefeed"
)

func Test_MockAggregator_Interface(t *testing.T) {
	assert.Implements(t, (*fundme.PriceFeed)(nil), new(pricefeed.MockAggregator))
}

func Test_Aggregator_Interface(t *testing.T) {
	assert.Implements(t, (*fundme.PriceFeed)(nil), new(pricefeed.Aggregator))
}

func Test_MockAggregator(t *testing.T) {
	rng := rand.New(rand.NewSource(1729))
	deployer := newRandomAddress(rng)
	m := pricefeed.NewMockAggregator(deployer, pricefeed.DefaultMockDecimals,
		big.NewInt(pricefeed.DefaultMockInitialAnswer))

	t.Run("address", func(t *testing.T) {
		assert.Equal(t, crypto.CreateAddress(deployer, 0), m.Address())
	})
	t.Run("initial-rate", func(t *testing.T) {
		rate, err := m.CurrentRate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint8(8), rate.Decimals)
		assert.Equal(t, 0, big.NewInt(2000e8).Cmp(rate.Answer))
		assert.Equal(t, 0, big.NewInt(1).Cmp(rate.RoundID))
	})
	t.Run("update-answer", func(t *testing.T) {
		m.UpdateAnswer(big.NewInt(3000e8))
		rate, err := m.CurrentRate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, big.NewInt(3000e8).Cmp(rate.Answer))
		assert.Equal(t, 0, big.NewInt(2).Cmp(rate.RoundID))
	})
}

func Test_NewAggregator(t *testing.T) {
	rng := rand.New(rand.NewSource(1729))
	addr := newRandomAddress(rng)

	t.Run("happy", func(t *testing.T) {
		a, err := pricefeed.NewAggregator(context.Background(), newFakeCaller(t, 8, big.NewInt(2000e8)), addr)
		require.NoError(t, err)
		assert.Equal(t, addr, a.Address())
	})
	t.Run("no-code", func(t *testing.T) {
		caller := newFakeCaller(t, 8, big.NewInt(2000e8))
		caller.code = nil
		a, err := pricefeed.NewAggregator(context.Background(), caller, addr)
		require.Error(t, err)
		assert.True(t, errors.Is(err, pricefeed.ErrNoContractCode))
		assert.Nil(t, a)
	})
	t.Run("code-at-error", func(t *testing.T) {
		caller := newFakeCaller(t, 8, big.NewInt(2000e8))
		caller.err = errors.New("connection refused")
		a, err := pricefeed.NewAggregator(context.Background(), caller, addr)
		require.Error(t, err)
		assert.Nil(t, a)
	})
}

func Test_Aggregator_CurrentRate(t *testing.T) {
	rng := rand.New(rand.NewSource(1729))
	addr := newRandomAddress(rng)

	t.Run("happy", func(t *testing.T) {
		caller := newFakeCaller(t, 8, big.NewInt(1850e8))
		a, err := pricefeed.NewAggregator(context.Background(), caller, addr)
		require.NoError(t, err)

		rate, err := a.CurrentRate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint8(8), rate.Decimals)
		assert.Equal(t, 0, big.NewInt(1850e8).Cmp(rate.Answer))
		assert.Equal(t, 0, caller.roundID.Cmp(rate.RoundID))
		assert.Equal(t, addr, *caller.lastTo)
	})
	t.Run("incomplete-round", func(t *testing.T) {
		caller := newFakeCaller(t, 8, big.NewInt(1850e8))
		caller.updatedAt = big.NewInt(0)
		a, err := pricefeed.NewAggregator(context.Background(), caller, addr)
		require.NoError(t, err)

		_, err = a.CurrentRate(context.Background())
		assert.True(t, errors.Is(err, pricefeed.ErrIncompleteRound))
	})
	t.Run("call-error", func(t *testing.T) {
		caller := newFakeCaller(t, 8, big.NewInt(1850e8))
		a, err := pricefeed.NewAggregator(context.Background(), caller, addr)
		require.NoError(t, err)

		caller.err = errors.New("connection refused")
		_, err = a.CurrentRate(context.Background())
		assert.Error(t, err)
	})
	t.Run("invalid-output", func(t *testing.T) {
		caller := newFakeCaller(t, 8, big.NewInt(1850e8))
		a, err := pricefeed.NewAggregator(context.Background(), caller, addr)
		require.NoError(t, err)

		caller.garbage = true
		_, err = a.CurrentRate(context.Background())
		assert.Error(t, err)
	})
}

// fakeCaller answers the calls of the aggregator with abi encoded values.
type fakeCaller struct {
	t         *testing.T
	abi       abi.ABI
	code      []byte
	decimals  uint8
	roundID   *big.Int
	answer    *big.Int
	updatedAt *big.Int
	err       error
	garbage   bool
	lastTo    *common.Address
}

func newFakeCaller(t *testing.T, decimals uint8, answer *big.Int) *fakeCaller {
	parsed, err := abi.JSON(strings.NewReader(pricefeed.AggregatorV3ABI))
	require.NoError(t, err)
	return &fakeCaller{
		t:         t,
		abi:       parsed,
		code:      []byte{0x60, 0x80},
		decimals:  decimals,
		roundID:   big.NewInt(42),
		answer:    answer,
		updatedAt: big.NewInt(1600000000),
	}
}

func (c *fakeCaller) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return c.code, c.err
}

func (c *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.lastTo = msg.To
	if c.garbage {
		return []byte{0x01}, nil
	}
	decimals := c.abi.Methods["decimals"]
	latestRoundData := c.abi.Methods["latestRoundData"]
	switch {
	case bytes.Equal(msg.Data, decimals.ID):
		return decimals.Outputs.Pack(c.decimals)
	case bytes.Equal(msg.Data, latestRoundData.ID):
		return latestRoundData.Outputs.Pack(c.roundID, c.answer, c.updatedAt, c.updatedAt, big.NewInt(1))
	}
	c.t.Fatalf("unexpected call data %x", msg.Data)
	return nil, nil
}

func newRandomAddress(rng *rand.Rand) common.Address {
	var a common.Address
	rng.Read(a[:])
	return a
}
