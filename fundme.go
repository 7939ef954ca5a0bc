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

// Package fundme defines domain types and services for the fundme node.
package fundme

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Rate is the answer of a price feed: the fiat value of one unit of the native
// currency, as a fixed point number with Decimals digits after the point.
type Rate struct {
	Answer   *big.Int
	Decimals uint8
	RoundID  *big.Int // Round of the feed in which the answer was computed. Nil if unknown.
}

// PriceFeed provides the current exchange rate between the native currency and USD.
//
// The ledger does not assume a fixed precision for the rate, it always scales the
// answer by the declared decimals.
type PriceFeed interface {
	// Address is the on-chain address of the feed. For mock feeds it is the
	// address the mock would have been deployed at.
	Address() common.Address
	CurrentRate(ctx context.Context) (Rate, error)
}

// Settlement moves value in and out of the escrow account held for the ledger.
//
// Receive is called while a contribution is accepted and Send while the owner withdraws.
// Both must either complete the transfer or return an error; partial transfers are not
// allowed. An error wrapping ErrUnconfirmedTransfer means the transaction was submitted
// and may still take effect. Any other error means no value was moved.
type Settlement interface {
	Receive(ctx context.Context, from common.Address, amount *big.Int) error
	Send(ctx context.Context, to common.Address, amount *big.Int) error
}

// State is the persisted form of the ledger: funders in the order they first
// contributed in the current funding epoch and the amount funded by each of them.
// Funders[i] corresponds to Amounts[i].
type State struct {
	Funders []common.Address
	Amounts []*big.Int
}

// Store persists the ledger state so that a restarted node resumes with the same
// balances.
type Store interface {
	Load() (State, error)
	Save(State) error
	Close() error
}

// Currency parses amounts given as decimal strings into the base unit of the
// currency and prints amounts in base units as decimal strings.
type Currency interface {
	Parse(string) (*big.Int, error)
	Print(*big.Int) string
}
