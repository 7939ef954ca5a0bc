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
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/direct-state-transfer/fundme/blockchain/ethereum"
	"github.com/direct-state-transfer/fundme/blockchain/ethereum/ethereumtest"
	"github.com/direct-state-transfer/fundme/ledger"
	"github.com/direct-state-transfer/fundme/pricefeed"
	"github.com/direct-state-transfer/fundme/store"
)

const (
	escrowIdx  = 0
	ownerIdx   = 1
	nFunders   = 6
	txTimeout  = 5 * time.Second
	storeFName = "fundme.db"
)

type chainSetup struct {
	sim    *ethereumtest.SimSetup
	feed   *pricefeed.MockAggregator
	dbPath string
}

func newChainSetup(t *testing.T) *chainSetup {
	rng := rand.New(rand.NewSource(1729))
	sim := ethereumtest.NewSimSetup(t, rng, 2+nFunders)
	return &chainSetup{
		sim: sim,
		feed: pricefeed.NewMockAggregator(sim.Accounts[ownerIdx].Address,
			pricefeed.DefaultMockDecimals, big.NewInt(pricefeed.DefaultMockInitialAnswer)),
		dbPath: filepath.Join(t.TempDir(), storeFName),
	}
}

func (cs *chainSetup) newLedger(t *testing.T) (*ledger.Ledger, *store.BoltStore) {
	return cs.newLedgerOn(t, cs.sim.Backend, txTimeout)
}

func (cs *chainSetup) newLedgerOn(t *testing.T, cb ethereum.ChainBackend, timeout time.Duration) (
	*ledger.Ledger, *store.BoltStore) {
	settlement := ethereum.NewSettlement(cb, cs.sim.Keystore, cs.sim.Accounts[escrowIdx],
		ethereumtest.SimChainID, timeout, 1)
	s, err := store.New(cs.dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) // nolint: errcheck

	l, err := ledger.New(ledger.Config{
		Owner:      cs.sim.Accounts[ownerIdx].Address,
		MinimumUSD: defaultMinimumUSD,
		PriceFeed:  cs.feed,
		Settlement: settlement,
		Store:      s,
	})
	require.NoError(t, err)
	return l, s
}

func Test_Ledger_OnSimulatedChain(t *testing.T) {
	ctx := context.Background()

	t.Run("six-funders-withdraw", func(t *testing.T) {
		for _, variant := range []string{"withdraw", "cheaper-withdraw"} {
			variant := variant
			t.Run(variant, func(t *testing.T) {
				cs := newChainSetup(t)
				l, _ := cs.newLedger(t)
				owner := cs.sim.Accounts[ownerIdx].Address
				escrow := cs.sim.Accounts[escrowIdx].Address

				for i := 0; i < nFunders; i++ {
					require.NoError(t, l.Fund(ctx, cs.sim.Accounts[2+i].Address, ether(1)))
				}
				assert.Equal(t, ether(nFunders), l.Balance())
				escrowBefore := cs.sim.BalanceOf(t, escrow)
				ownerBefore := cs.sim.BalanceOf(t, owner)

				var got *big.Int
				var err error
				if variant == "withdraw" {
					got, err = l.Withdraw(ctx, owner)
				} else {
					got, err = l.CheaperWithdraw(ctx, owner)
				}
				require.NoError(t, err)
				assert.Equal(t, ether(nFunders), got)

				wantOwner := new(big.Int).Add(ownerBefore, ether(nFunders))
				assert.Equal(t, wantOwner, cs.sim.BalanceOf(t, owner))
				escrowSpent := new(big.Int).Sub(escrowBefore, cs.sim.BalanceOf(t, escrow))
				assert.Equal(t, 1, escrowSpent.Cmp(ether(nFunders)), "escrow pays amount and gas")

				assert.Empty(t, l.Funders())
				assert.Zero(t, l.Balance().Sign())
				for i := 0; i < nFunders; i++ {
					assert.Zero(t, l.AmountFunded(cs.sim.Accounts[2+i].Address).Sign())
				}
			})
		}
	})

	t.Run("withdraw-unconfirmed-pays-once", func(t *testing.T) {
		cs := newChainSetup(t)
		l, s := cs.newLedger(t)
		owner := cs.sim.Accounts[ownerIdx].Address
		require.NoError(t, l.Fund(ctx, cs.sim.Accounts[2].Address, ether(5)))
		ownerBefore := cs.sim.BalanceOf(t, owner)

		// Restart on a node that accepts transactions but never returns receipts.
		require.NoError(t, s.Close())
		l, s = cs.newLedgerOn(t, &ethereumtest.NoReceiptBackend{SimBackend: cs.sim.Backend}, 500*time.Millisecond)
		require.Equal(t, ether(5), l.Balance())

		got, err := l.Withdraw(ctx, owner)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ledger.ErrTransferUnconfirmed), "got %v", err)
		assert.Nil(t, got)
		assert.Zero(t, l.Balance().Sign())
		assert.Empty(t, l.Funders())

		got, err = l.Withdraw(ctx, owner)
		require.NoError(t, err)
		assert.Zero(t, got.Sign())

		wantOwner := new(big.Int).Add(ownerBefore, ether(5))
		assert.Equal(t, wantOwner, cs.sim.BalanceOf(t, owner))

		require.NoError(t, s.Close())
		restarted, _ := cs.newLedger(t)
		assert.Zero(t, restarted.Balance().Sign())
	})

	t.Run("contribution-below-minimum", func(t *testing.T) {
		cs := newChainSetup(t)
		l, _ := cs.newLedger(t)
		funder := cs.sim.Accounts[2].Address

		err := l.Fund(ctx, funder, milliEther(10))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ledger.ErrInsufficientContribution))
		assert.Equal(t, ethereumtest.InitialBalance, cs.sim.BalanceOf(t, funder))
		assert.Empty(t, l.Funders())
	})

	t.Run("not-owner", func(t *testing.T) {
		cs := newChainSetup(t)
		l, _ := cs.newLedger(t)
		funder := cs.sim.Accounts[2].Address
		require.NoError(t, l.Fund(ctx, funder, ether(1)))

		_, err := l.Withdraw(ctx, funder)
		assert.True(t, errors.Is(err, ledger.ErrNotOwner))
		assert.Equal(t, ether(1), l.AmountFunded(funder))
	})

	t.Run("restart-resumes-state", func(t *testing.T) {
		cs := newChainSetup(t)
		l, s := cs.newLedger(t)
		funders := []int{2, 3, 2}
		for _, idx := range funders {
			require.NoError(t, l.Fund(ctx, cs.sim.Accounts[idx].Address, ether(1)))
		}

		// Closing the store releases the file lock held on the database.
		require.NoError(t, s.Close())
		restarted, _ := cs.newLedger(t)

		assert.Equal(t, l.Funders(), restarted.Funders())
		assert.Equal(t, ether(2), restarted.AmountFunded(cs.sim.Accounts[2].Address))
		assert.Equal(t, ether(3), restarted.Balance())
		assert.Equal(t, cs.sim.Accounts[2].Address, mustFunder(t, restarted, 0))
		assert.Equal(t, cs.sim.Accounts[3].Address, mustFunder(t, restarted, 1))
	})
}

func mustFunder(t *testing.T, l *ledger.Ledger, index int) common.Address {
	funder, err := l.Funder(index)
	require.NoError(t, err)
	return funder
}
