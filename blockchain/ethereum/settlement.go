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

package ethereum

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/pkg/errors"

	"github.com/direct-state-transfer/fundme"
)

// Error type is used to define error constants for this package.
type Error string

// Error implements error interface.
func (e Error) Error() string {
	return string(e)
}

// Definition of error constants for this package.
const (
	ErrInsufficientFunds Error = "insufficient funds for transfer and gas"
	ErrTxFailed          Error = "transaction was mined but failed"
)

// confirmationPollInterval is the interval at which the chain head is read while
// waiting for more than one confirmation.
const confirmationPollInterval = time.Second

// Settlement transfers value between the accounts of funders, the escrow and the owner
// using plain ether transfers.
//
// - implements fundme.Settlement
type Settlement struct {
	cb            ChainBackend
	ks            *keystore.KeyStore
	escrow        accounts.Account
	chainID       *big.Int
	txTimeout     time.Duration
	confirmations uint64

	// mu serializes transfers so that nonces are not reused.
	mu sync.Mutex
}

// NewSettlement returns a settlement that holds contributions in the escrow account.
// Keys of the escrow and of the funders must be unlocked in the keystore.
//
// A transfer is complete once the block including it is followed by confirmations-1
// blocks. Values below one are treated as one.
func NewSettlement(cb ChainBackend, ks *keystore.KeyStore, escrow accounts.Account, chainID *big.Int,
	txTimeout time.Duration, confirmations uint64) *Settlement {
	if confirmations == 0 {
		confirmations = 1
	}
	return &Settlement{
		cb:            cb,
		ks:            ks,
		escrow:        escrow,
		chainID:       chainID,
		txTimeout:     txTimeout,
		confirmations: confirmations,
	}
}

// Escrow returns the address of the escrow account.
func (s *Settlement) Escrow() common.Address {
	return s.escrow.Address
}

// Receive transfers the amount from the funder to the escrow and waits for the
// transaction to be confirmed.
func (s *Settlement) Receive(ctx context.Context, from common.Address, amount *big.Int) error {
	return errors.WithMessage(s.transfer(ctx, from, s.escrow.Address, amount), "funder to escrow")
}

// Send transfers the amount from the escrow to the receiver and waits for the
// transaction to be confirmed. Gas is paid by the escrow.
func (s *Settlement) Send(ctx context.Context, to common.Address, amount *big.Int) error {
	return errors.WithMessage(s.transfer(ctx, s.escrow.Address, to, amount), "escrow to receiver")
}

// transfer returns an error wrapping fundme.ErrUnconfirmedTransfer if the transaction
// may have reached the chain but its outcome is not known. Every other error is
// returned before the transaction is broadcast, or after it is mined and reverted.
func (s *Settlement) transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	signedTx, err := s.signedTransfer(ctx, from, to, amount)
	if err != nil {
		return err
	}

	// Once broadcast, the transaction is tracked until the timeout even if the
	// caller gives up.
	waitCtx, cancel := context.WithTimeout(context.Background(), s.txTimeout)
	defer cancel()

	if err = s.cb.SendTransaction(waitCtx, signedTx); err != nil {
		if s.submitted(waitCtx, from, signedTx.Nonce()) {
			return errors.Wrapf(fundme.ErrUnconfirmedTransfer, "tx %s: sending: %v", signedTx.Hash().Hex(), err)
		}
		return errors.Wrap(err, "sending transaction")
	}
	receipt, err := bind.WaitMined(waitCtx, s.cb, signedTx)
	if err != nil {
		return errors.Wrapf(fundme.ErrUnconfirmedTransfer, "tx %s: waiting to be mined: %v",
			signedTx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return errors.Wrapf(ErrTxFailed, "tx %s", signedTx.Hash().Hex())
	}
	return s.waitConfirmations(waitCtx, receipt)
}

func (s *Settlement) signedTransfer(ctx context.Context, from, to common.Address, amount *big.Int) (
	*types.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	nonce, err := s.cb.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, errors.Wrap(err, "reading nonce")
	}
	gasPrice, err := s.cb.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading gas price")
	}

	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(params.TxGas))
	cost.Add(cost, amount)
	bal, err := s.cb.BalanceAt(ctx, from, nil)
	if err != nil {
		return nil, errors.Wrap(err, "reading balance")
	}
	if bal.Cmp(cost) < 0 {
		return nil, errors.Wrapf(ErrInsufficientFunds, "account %s has %s wei, needs %s wei",
			from.Hex(), bal.String(), cost.String())
	}

	tx := types.NewTransaction(nonce, to, amount, params.TxGas, gasPrice, nil)
	signedTx, err := s.ks.SignTx(accounts.Account{Address: from}, tx, s.chainID)
	return signedTx, errors.Wrap(err, "signing transaction")
}

// submitted reports whether a transaction with the given nonce from the account
// was accepted by the node, even though sending it returned an error. If this
// cannot be determined, the transaction is assumed to be submitted.
func (s *Settlement) submitted(ctx context.Context, from common.Address, nonce uint64) bool {
	pending, err := s.cb.PendingNonceAt(ctx, from)
	return err != nil || pending > nonce
}

func (s *Settlement) waitConfirmations(ctx context.Context, receipt *types.Receipt) error {
	if s.confirmations <= 1 {
		return nil
	}
	target := new(big.Int).Add(receipt.BlockNumber, new(big.Int).SetUint64(s.confirmations-1))

	ticker := time.NewTicker(confirmationPollInterval)
	defer ticker.Stop()
	for {
		head, err := s.cb.HeaderByNumber(ctx, nil)
		if err == nil && head.Number.Cmp(target) >= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(fundme.ErrUnconfirmedTransfer, "tx %s: waiting for %d confirmations: %v",
				receipt.TxHash.Hex(), s.confirmations, ctx.Err())
		case <-ticker.C:
		}
	}
}
