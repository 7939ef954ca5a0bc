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

package currency

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/direct-state-transfer/fundme"
)

const (
	// ETH represents the ethereum currency.
	ETH              = "ETH"
	ether            = 1e18 // ether is the unit used for string representation of ETH.
	ethPlacesToRound = 6

	// USD represents US dollars. Amounts are stored with 18 decimal places, same
	// as the precision used by the ledger for the minimum contribution.
	USD              = "USD"
	usdUnit          = 1e18
	usdPlacesToRound = 2
)

var currencies map[string]fundme.Currency

func init() {
	currencies = make(map[string]fundme.Currency)

	currencies[ETH] = parser{
		multiplier:    decimal.NewFromFloat(ether),
		placesToRound: ethPlacesToRound,
		minimumMsg:    "amount is too small, should be at least 1e-18 ETH (1 wei)",
	}
	currencies[USD] = parser{
		multiplier:    decimal.NewFromFloat(usdUnit),
		placesToRound: usdPlacesToRound,
		minimumMsg:    "amount is too small, should be at least 1e-18 USD",
	}
}

// IsSupported checks if there is parser regsitered for the currency
// represented by the given string.
func IsSupported(currency string) bool {
	p, ok := currencies[currency]
	return ok && p != nil
}

// NewParser returns the currency parser. It returns nil if unsupported currency is used.
// so check if exists before usage.
func NewParser(currency string) fundme.Currency {
	return currencies[currency]
}

type parser struct {
	multiplier    decimal.Decimal
	placesToRound int32
	minimumMsg    string
}

// Parse parses the given decimal string, converts it to the base unit and returns a
// big.Int representation of the value.
// It can parse decimal values upto 1e-18 and convert them to the corresponding amount
// in base unit without loss of accuracy. Negative and zero amounts are rejected.
func (p parser) Parse(input string) (*big.Int, error) {
	amount, err := decimal.NewFromString(input)
	if err != nil {
		return nil, errors.Wrap(err, "invalid decimal string")
	}

	amountBaseUnit := amount.Mul(p.multiplier)
	if amountBaseUnit.LessThan(decimal.NewFromInt(1)) {
		return nil, errors.New(p.minimumMsg)
	}
	return amountBaseUnit.BigInt(), nil
}

// Print converts the input in base unit to the display unit and returns a string
// representation of it, rounded off for visual representation.
func (p parser) Print(input *big.Int) string {
	amount := decimal.NewFromBigInt(input, 0)
	return amount.Div(p.multiplier).StringFixedBank(p.placesToRound)
}
