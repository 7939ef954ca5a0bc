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

package ledger

import (
	"context"
	"math/big"

	"github.com/pkg/errors"

	"github.com/direct-state-transfer/fundme"
)

// USDValue returns the value of the given amount (in wei) in USD, using the current
// rate of the price feed. The result has 18 decimal places.
func (l *Ledger) USDValue(ctx context.Context, amount *big.Int) (*big.Int, error) {
	rate, err := l.priceFeed.CurrentRate(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "reading price feed")
	}
	return usdValue(amount, rate)
}

// usdValue converts the amount using the rate. The answer of the rate is scaled by
// its declared decimals, so feeds with any precision can be used.
func usdValue(amount *big.Int, rate fundme.Rate) (*big.Int, error) {
	if rate.Answer == nil || rate.Answer.Sign() <= 0 {
		return nil, errors.WithStack(ErrInvalidRate)
	}
	value := new(big.Int).Mul(amount, rate.Answer)
	return value.Quo(value, pow10(rate.Decimals)), nil
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// weiToEther is used only for metrics, where precision loss is acceptable.
func weiToEther(wei *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18)).Float64()
	return f
}
