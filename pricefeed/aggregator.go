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
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/direct-state-transfer/fundme"
)

// AggregatorV3ABI is the subset of the Chainlink AggregatorV3Interface used by this package.
const AggregatorV3ABI = `[
{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"description","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"version","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Aggregator reads the rate from an AggregatorV3 contract deployed on chain.
//
// - implements fundme.PriceFeed
type Aggregator struct {
	addr   common.Address
	caller bind.ContractCaller
	abi    abi.ABI
}

// NewAggregator returns a price feed that reads from the aggregator contract at addr.
// It fails if there is no contract code at the given address.
func NewAggregator(ctx context.Context, caller bind.ContractCaller, addr common.Address) (*Aggregator, error) {
	code, err := caller.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "reading code at price feed address")
	}
	if len(code) == 0 {
		return nil, errors.Wrapf(ErrNoContractCode, "address %s", addr.Hex())
	}
	parsed, err := abi.JSON(strings.NewReader(AggregatorV3ABI))
	if err != nil {
		return nil, errors.Wrap(err, "parsing aggregator abi")
	}
	return &Aggregator{addr: addr, caller: caller, abi: parsed}, nil
}

// Address implements fundme.PriceFeed.
func (a *Aggregator) Address() common.Address {
	return a.addr
}

// CurrentRate implements fundme.PriceFeed. It reads the decimals and the latest
// round from the contract.
func (a *Aggregator) CurrentRate(ctx context.Context) (fundme.Rate, error) {
	out, err := a.call(ctx, "decimals")
	if err != nil {
		return fundme.Rate{}, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return fundme.Rate{}, errors.Wrapf(ErrUnexpectedOutput, "decimals: %T", out[0])
	}

	out, err = a.call(ctx, "latestRoundData")
	if err != nil {
		return fundme.Rate{}, err
	}
	roundID, ok := out[0].(*big.Int)
	if !ok {
		return fundme.Rate{}, errors.Wrapf(ErrUnexpectedOutput, "roundId: %T", out[0])
	}
	answer, ok := out[1].(*big.Int)
	if !ok {
		return fundme.Rate{}, errors.Wrapf(ErrUnexpectedOutput, "answer: %T", out[1])
	}
	updatedAt, ok := out[3].(*big.Int)
	if !ok {
		return fundme.Rate{}, errors.Wrapf(ErrUnexpectedOutput, "updatedAt: %T", out[3])
	}
	if updatedAt.Sign() == 0 {
		return fundme.Rate{}, errors.WithStack(ErrIncompleteRound)
	}
	return fundme.Rate{Answer: answer, Decimals: decimals, RoundID: roundID}, nil
}

func (a *Aggregator) call(ctx context.Context, method string) ([]interface{}, error) {
	input, err := a.abi.Pack(method)
	if err != nil {
		return nil, errors.Wrapf(err, "packing %s", method)
	}
	output, err := a.caller.CallContract(ctx, ethereum.CallMsg{To: &a.addr, Data: input}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s", method)
	}
	values, err := a.abi.Unpack(method, output)
	if err != nil {
		return nil, errors.Wrapf(err, "unpacking %s", method)
	}
	if len(values) == 0 {
		return nil, errors.Wrapf(ErrUnexpectedOutput, "%s returned no values", method)
	}
	return values, nil
}
