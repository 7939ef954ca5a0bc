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

// Package ethereumtest provides a simulated ethereum chain with funded keystore
// accounts for use in tests.
package ethereumtest

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/direct-state-transfer/fundme/blockchain/ethereum"
)

const (
	defaultHDPath = "m/44'/60'/0'/0/"

	weakScryptN = 2
	weakScryptP = 1

	// GasLimit is the block gas limit of the simulated chain.
	GasLimit = 8000000

	// revertingInitCode deploys a contract whose code reverts on every call.
	revertingInitCode = "0x6460006000fd6000526005601bf3"
	deployGasLimit    = 100000
)

// InitialBalance is the balance of each account in the genesis block of the
// simulated chain: 100 ETH.
var InitialBalance = new(big.Int).Mul(big.NewInt(100), big.NewInt(params.Ether))

// SimChainID is the chain id used by the simulated backend of go-ethereum.
var SimChainID = big.NewInt(1337)

// SimBackend is a simulated backend that mines a block on every transaction.
type SimBackend struct {
	*backends.SimulatedBackend
}

// SendTransaction sends the transaction and commits it in a new block.
func (sb *SimBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := sb.SimulatedBackend.SendTransaction(ctx, tx); err != nil {
		return err
	}
	sb.Commit()
	return nil
}

// NoReceiptBackend mines transactions like SimBackend but fails every receipt
// lookup, like a node that accepted a transaction and then stopped answering.
type NoReceiptBackend struct {
	*SimBackend
}

// TransactionReceipt always returns an error.
func (b *NoReceiptBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, errors.New("receipt lookup unavailable")
}

// SimSetup holds a simulated chain and a keystore whose accounts are funded on it.
type SimSetup struct {
	Backend      *SimBackend
	WalletBack   *ethereum.WalletBackend
	KeystorePath string
	Keystore     *keystore.KeyStore
	Accounts     []accounts.Account
}

// NewTestWalletBackend returns a wallet backend with weak encryption parameters
// so that keys can be stored and unlocked quickly.
func NewTestWalletBackend() *ethereum.WalletBackend {
	return &ethereum.WalletBackend{EncParams: ethereum.ScryptParams{N: weakScryptN, P: weakScryptP}}
}

// NewSimSetup derives n accounts from a mnemonic generated using rng, stores them
// unlocked (with empty password) in a keystore in a temporary directory and funds
// each of them with InitialBalance in the genesis block of a new simulated chain.
func NewSimSetup(t *testing.T, rng *rand.Rand, n int) *SimSetup {
	ksPath := t.TempDir()
	ks := keystore.NewKeyStore(ksPath, weakScryptN, weakScryptP)

	accs := NewHDWalletAccs(t, rng, ks, n)
	alloc := make(core.GenesisAlloc, n)
	for _, acc := range accs {
		alloc[acc.Address] = core.GenesisAccount{Balance: new(big.Int).Set(InitialBalance)}
	}

	sb := &SimBackend{SimulatedBackend: backends.NewSimulatedBackend(alloc, GasLimit)}
	t.Cleanup(func() { sb.Close() }) // nolint: errcheck

	return &SimSetup{
		Backend:      sb,
		WalletBack:   NewTestWalletBackend(),
		KeystorePath: ksPath,
		Keystore:     ks,
		Accounts:     accs,
	}
}

// NewHDWalletAccs derives n accounts along the default HD path from a mnemonic
// generated using rng, imports them into the keystore and unlocks them.
func NewHDWalletAccs(t *testing.T, rng *rand.Rand, ks *keystore.KeyStore, n int) []accounts.Account {
	walletSeed := make([]byte, 20)
	_, err := rng.Read(walletSeed)
	require.NoError(t, err)
	mnemonic, err := hdwallet.NewMnemonicFromEntropy(walletSeed)
	require.NoError(t, err)
	w, err := hdwallet.NewFromMnemonic(mnemonic)
	require.NoError(t, err)

	accs := make([]accounts.Account, n)
	for i := 0; i < n; i++ {
		path, err := hdwallet.ParseDerivationPath(fmt.Sprintf("%s%d", defaultHDPath, i))
		require.NoError(t, err)
		hdAcc, err := w.Derive(path, false)
		require.NoError(t, err)
		key, err := w.PrivateKey(hdAcc)
		require.NoError(t, err)

		accs[i], err = ks.ImportECDSA(key, "")
		require.NoError(t, err)
		require.NoError(t, ks.Unlock(accs[i], ""))
	}
	return accs
}

// BalanceOf returns the balance of the address at the latest block.
func (s *SimSetup) BalanceOf(t *testing.T, addr common.Address) *big.Int {
	bal, err := s.Backend.BalanceAt(context.Background(), addr, nil)
	require.NoError(t, err)
	return bal
}

// NewRandomAddress returns an address generated using rng.
func NewRandomAddress(rng *rand.Rand) common.Address {
	var a common.Address
	rng.Read(a[:])
	return a
}

// DeployRevertingContract deploys a contract that rejects every call and every
// transfer sent to it. It returns the address of the contract.
func (s *SimSetup) DeployRevertingContract(t *testing.T, from accounts.Account) common.Address {
	ctx := context.Background()
	nonce, err := s.Backend.PendingNonceAt(ctx, from.Address)
	require.NoError(t, err)
	gasPrice, err := s.Backend.SuggestGasPrice(ctx)
	require.NoError(t, err)

	tx := types.NewContractCreation(nonce, new(big.Int), deployGasLimit, gasPrice,
		hexutil.MustDecode(revertingInitCode))
	signedTx, err := s.Keystore.SignTx(from, tx, SimChainID)
	require.NoError(t, err)
	require.NoError(t, s.Backend.SendTransaction(ctx, signedTx))

	addr := crypto.CreateAddress(from.Address, nonce)
	code, err := s.Backend.CodeAt(ctx, addr, nil)
	require.NoError(t, err)
	require.NotEmpty(t, code)
	return addr
}
