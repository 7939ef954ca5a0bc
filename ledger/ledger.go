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
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/direct-state-transfer/fundme"
	"github.com/direct-state-transfer/fundme/currency"
	"github.com/direct-state-transfer/fundme/log"
)

// Config defines the parameters required to create a ledger.
type Config struct {
	Owner      common.Address
	MinimumUSD *big.Int // In USD, with 18 decimal places.
	PriceFeed  fundme.PriceFeed
	Settlement fundme.Settlement

	// Store is optional. If nil, the state is held only in memory.
	Store fundme.Store
}

// Ledger tracks the contributions of funders and allows its owner to withdraw
// all of them at once.
//
// Each operation is an all-or-nothing state transition. The only exception to
// strict serialization is the outbound transfer during a withdrawal: the state is
// cleared before the transfer is started and the lock is released while it runs,
// so that calls made into the ledger during the transfer see the cleared state.
// If the transfer fails before it is submitted to the chain, the drained entries
// are merged back.
type Ledger struct {
	log.Logger

	owner      common.Address
	minimumUSD *big.Int
	priceFeed  fundme.PriceFeed
	settlement fundme.Settlement
	store      fundme.Store

	mu      sync.Mutex
	amounts map[common.Address]*big.Int
	funders []common.Address
	balance *big.Int
}

// New creates a ledger for the given config. If a store is configured, the
// ledger resumes from the state persisted in it.
func New(cfg Config) (*Ledger, error) {
	if cfg.Owner == (common.Address{}) {
		return nil, errors.New("owner address is zero")
	}
	if cfg.MinimumUSD == nil || cfg.MinimumUSD.Sign() < 0 {
		return nil, errors.New("minimum usd value must not be negative")
	}
	if cfg.PriceFeed == nil {
		return nil, errors.New("price feed is nil")
	}
	if cfg.Settlement == nil {
		return nil, errors.New("settlement is nil")
	}

	l := &Ledger{
		Logger:     log.NewLoggerWithField("ledger", cfg.Owner.Hex()),
		owner:      cfg.Owner,
		minimumUSD: new(big.Int).Set(cfg.MinimumUSD),
		priceFeed:  cfg.PriceFeed,
		settlement: cfg.Settlement,
		store:      cfg.Store,
		amounts:    make(map[common.Address]*big.Int),
		funders:    []common.Address{},
		balance:    new(big.Int),
	}
	if cfg.Store != nil {
		state, err := cfg.Store.Load()
		if err != nil {
			return nil, errors.WithMessage(err, "loading ledger state")
		}
		if err := l.load(state); err != nil {
			return nil, err
		}
	}
	l.updateGauges()
	return l, nil
}

func (l *Ledger) load(s fundme.State) error {
	if len(s.Funders) != len(s.Amounts) {
		return errors.Errorf("corrupt ledger state: %d funders and %d amounts", len(s.Funders), len(s.Amounts))
	}
	for i, funder := range s.Funders {
		if _, ok := l.amounts[funder]; ok {
			return errors.Errorf("corrupt ledger state: duplicate funder %s", funder.Hex())
		}
		if s.Amounts[i] == nil || s.Amounts[i].Sign() <= 0 {
			return errors.Errorf("corrupt ledger state: non positive amount for funder %s", funder.Hex())
		}
		l.amounts[funder] = new(big.Int).Set(s.Amounts[i])
		l.funders = append(l.funders, funder)
		l.balance.Add(l.balance, s.Amounts[i])
	}
	return nil
}

// Fund records a contribution of amount (in wei) from the contributor.
//
// The contribution is accepted only if its value in USD, at the rate read from the
// price feed during this call, is at least the minimum. A contributor is added to
// the list of funders only on its first contribution after the last withdrawal.
//
// If the transfer to the escrow was submitted but could not be confirmed, the
// contribution is recorded and ErrTransferUnconfirmed is returned. Clients should
// read the amount funded before retrying.
func (l *Ledger) Fund(ctx context.Context, contributor common.Address, amount *big.Int) error {
	l.Debug("Received request: ledger.Fund")
	if contributor == (common.Address{}) {
		promRejectedFunds.WithLabelValues("invalid-contributor").Inc()
		return errors.WithStack(ErrInvalidContributor)
	}
	if amount == nil || amount.Sign() <= 0 {
		promRejectedFunds.WithLabelValues("insufficient").Inc()
		return errors.WithMessage(ErrInsufficientContribution, "amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	value, err := l.USDValue(ctx, amount)
	if err != nil {
		promRejectedFunds.WithLabelValues("price-feed").Inc()
		l.Error("Reading price feed: ", err)
		return err
	}
	if value.Cmp(l.minimumUSD) < 0 {
		promRejectedFunds.WithLabelValues("insufficient").Inc()
		usd := currency.NewParser(currency.USD)
		return errors.Wrapf(ErrInsufficientContribution, "got %s USD, want at least %s USD",
			usd.Print(value), usd.Print(l.minimumUSD))
	}

	if err := l.save(l.stateAfterFund(contributor, amount)); err != nil {
		return err
	}
	if err := l.settlement.Receive(ctx, contributor, amount); err != nil {
		if errors.Is(err, fundme.ErrUnconfirmedTransfer) {
			// The persisted state already holds the contribution; keep it so that
			// the balance is not understated if the transfer completes.
			l.applyFund(contributor, amount)
			promFunds.Inc()
			l.updateGauges()
			l.WithField("funder", contributor.Hex()).Error("Contribution recorded, transfer not confirmed: ", err)
			return errors.Wrapf(ErrTransferUnconfirmed, "%v", err)
		}
		l.Error("Receiving contribution: ", err)
		if saveErr := l.save(l.snapshot()); saveErr != nil {
			l.Error("Reverting persisted state: ", saveErr)
		}
		return errors.WithMessage(err, "receiving contribution")
	}

	l.applyFund(contributor, amount)
	promFunds.Inc()
	l.updateGauges()
	l.WithField("funder", contributor.Hex()).Info("Contribution accepted: ", amount.String(), " wei")
	return nil
}

func (l *Ledger) applyFund(contributor common.Address, amount *big.Int) {
	current, ok := l.amounts[contributor]
	if !ok {
		l.funders = append(l.funders, contributor)
		current = new(big.Int)
	}
	l.amounts[contributor] = new(big.Int).Add(current, amount)
	l.balance = new(big.Int).Add(l.balance, amount)
}

func (l *Ledger) stateAfterFund(contributor common.Address, amount *big.Int) fundme.State {
	s := l.snapshot()
	for i := range s.Funders {
		if s.Funders[i] == contributor {
			s.Amounts[i] = new(big.Int).Add(s.Amounts[i], amount)
			return s
		}
	}
	s.Funders = append(s.Funders, contributor)
	s.Amounts = append(s.Amounts, new(big.Int).Set(amount))
	return s
}

// Withdraw transfers the whole balance held by the ledger to the owner and resets
// the contributions of all funders. It returns the amount transferred.
//
// If the transfer fails, the contributions are restored. If it was submitted but
// could not be confirmed, ErrTransferUnconfirmed is returned and the contributions
// stay cleared.
func (l *Ledger) Withdraw(ctx context.Context, caller common.Address) (*big.Int, error) {
	l.Debug("Received request: ledger.Withdraw")
	return l.withdraw(ctx, caller, "withdraw", l.clearEachFunder)
}

// CheaperWithdraw has the same effect as Withdraw. It swaps out the funders list and
// the balances in one step instead of clearing the balance of each funder.
func (l *Ledger) CheaperWithdraw(ctx context.Context, caller common.Address) (*big.Int, error) {
	l.Debug("Received request: ledger.CheaperWithdraw")
	return l.withdraw(ctx, caller, "cheaper-withdraw", l.clearAll)
}

// drained holds the entries removed from the ledger by a withdrawal, until the
// transfer to the owner completes.
type drained struct {
	funders []common.Address
	amounts map[common.Address]*big.Int
	balance *big.Int
}

func (l *Ledger) withdraw(ctx context.Context, caller common.Address, variant string,
	clear func() drained) (*big.Int, error) {
	if caller != l.owner {
		promWithdrawals.WithLabelValues(variant, "not-owner").Inc()
		return nil, errors.Wrapf(ErrNotOwner, "caller %s", caller.Hex())
	}

	l.mu.Lock()
	if err := l.save(fundme.State{}); err != nil {
		l.mu.Unlock()
		promWithdrawals.WithLabelValues(variant, "error").Inc()
		return nil, err
	}
	d := clear()
	l.updateGauges()
	l.mu.Unlock()

	if d.balance.Sign() == 0 {
		promWithdrawals.WithLabelValues(variant, "success").Inc()
		return new(big.Int), nil
	}

	if err := l.settlement.Send(ctx, l.owner, d.balance); err != nil {
		if errors.Is(err, fundme.ErrUnconfirmedTransfer) {
			// The transfer may still complete. Restoring the drained entries could
			// pay them out twice, so the ledger stays cleared.
			l.WithField("amount", d.balance.String()).Error("Transfer to owner not confirmed: ", err)
			promWithdrawals.WithLabelValues(variant, "unconfirmed").Inc()
			return nil, errors.Wrapf(ErrTransferUnconfirmed, "%v", err)
		}
		l.Error("Transferring balance to owner: ", err)
		l.mu.Lock()
		l.restore(d)
		if saveErr := l.save(l.snapshot()); saveErr != nil {
			l.Error("Persisting restored state: ", saveErr)
		}
		l.updateGauges()
		l.mu.Unlock()
		promWithdrawals.WithLabelValues(variant, "transfer-failed").Inc()
		return nil, errors.Wrapf(ErrTransferFailed, "%v", err)
	}

	promWithdrawals.WithLabelValues(variant, "success").Inc()
	l.Info("Withdrawn to owner: ", d.balance.String(), " wei")
	return new(big.Int).Set(d.balance), nil
}

// clearEachFunder resets the balance of every funder in the list, one at a time,
// and then empties the list.
func (l *Ledger) clearEachFunder() drained {
	d := drained{
		amounts: make(map[common.Address]*big.Int, len(l.funders)),
		balance: l.balance,
	}
	for i := 0; i < len(l.funders); i++ {
		funder := l.funders[i]
		d.amounts[funder] = l.amounts[funder]
		delete(l.amounts, funder)
	}
	d.funders = l.funders
	l.funders = []common.Address{}
	l.balance = new(big.Int)
	return d
}

// clearAll replaces the funders list and the balances with empty ones.
func (l *Ledger) clearAll() drained {
	d := drained{
		funders: l.funders,
		amounts: l.amounts,
		balance: l.balance,
	}
	l.funders = []common.Address{}
	l.amounts = make(map[common.Address]*big.Int)
	l.balance = new(big.Int)
	return d
}

// restore merges drained entries back. Entries drained earlier precede the ones
// added while the transfer was running.
func (l *Ledger) restore(d drained) {
	funders := make([]common.Address, 0, len(d.funders)+len(l.funders))
	funders = append(funders, d.funders...)
	for _, funder := range l.funders {
		if _, ok := d.amounts[funder]; !ok {
			funders = append(funders, funder)
		}
	}
	for funder, amount := range d.amounts {
		if current, ok := l.amounts[funder]; ok {
			l.amounts[funder] = new(big.Int).Add(current, amount)
		} else {
			l.amounts[funder] = amount
		}
	}
	l.funders = funders
	l.balance = new(big.Int).Add(l.balance, d.balance)
}

func (l *Ledger) save(s fundme.State) error {
	if l.store == nil {
		return nil
	}
	return errors.WithMessage(l.store.Save(s), "persisting ledger state")
}

// snapshot must be called with the lock held.
func (l *Ledger) snapshot() fundme.State {
	s := fundme.State{
		Funders: make([]common.Address, len(l.funders)),
		Amounts: make([]*big.Int, len(l.funders)),
	}
	for i, funder := range l.funders {
		s.Funders[i] = funder
		s.Amounts[i] = new(big.Int).Set(l.amounts[funder])
	}
	return s
}

func (l *Ledger) updateGauges() {
	promFunders.Set(float64(len(l.funders)))
	promBalance.Set(weiToEther(l.balance))
}

// PriceFeed returns the price feed the ledger is configured with.
func (l *Ledger) PriceFeed() fundme.PriceFeed {
	return l.priceFeed
}

// Owner returns the address of the owner.
func (l *Ledger) Owner() common.Address {
	return l.owner
}

// MinimumUSD returns the minimum value of a contribution in USD, with 18 decimal places.
func (l *Ledger) MinimumUSD() *big.Int {
	return new(big.Int).Set(l.minimumUSD)
}

// AmountFunded returns the amount funded by the address since the last withdrawal.
// It is zero for addresses that have not funded.
func (l *Ledger) AmountFunded(funder common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	amount, ok := l.amounts[funder]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(amount)
}

// Funder returns the funder at the given index in the funders list.
func (l *Ledger) Funder(index int) (common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.funders) {
		return common.Address{}, errors.Wrapf(ErrFunderNotFound, "index %d, funders %d", index, len(l.funders))
	}
	return l.funders[index], nil
}

// Funders returns a copy of the funders list.
func (l *Ledger) Funders() []common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()

	funders := make([]common.Address, len(l.funders))
	copy(funders, l.funders)
	return funders
}

// Balance returns the total amount held by the ledger.
func (l *Ledger) Balance() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return new(big.Int).Set(l.balance)
}
