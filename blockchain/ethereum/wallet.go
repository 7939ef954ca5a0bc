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
	"os"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Standard encryption parameters used for creating wallets. Using these parameters will
// cause the decryption to use 256MB of RAM and takes approx 1s on a modern processor.
const (
	standardScryptN = keystore.StandardScryptN
	standardScryptP = keystore.StandardScryptP
)

// WalletBackend provides ethereum specific wallet backend functionality.
type WalletBackend struct {
	EncParams ScryptParams
}

// ScryptParams defines the parameters for scrypt algorithm. It determines the security level of algorithm
// used for encrypting the keys for storage on disk.
//
// Weak values should be used only for testing purposes (enables faster unlocking). Use standard values otherwise.
type ScryptParams struct {
	N, P int
}

// NewWalletBackend initializes an ethereum specific wallet backend.
func NewWalletBackend() *WalletBackend {
	return &WalletBackend{EncParams: ScryptParams{
		N: standardScryptN,
		P: standardScryptP,
	}}
}

// ParseAddr parses the ethereum address from the given hex string.
func (wb *WalletBackend) ParseAddr(str string) (common.Address, error) {
	if !common.IsHexAddress(str) {
		return common.Address{}, errors.Errorf("invalid ethereum address %q", str)
	}
	return common.HexToAddress(str), nil
}

// NewWallet initializes an ethereum keystore at the given path and unlocks all the
// keys in it with the given password. The keys stay unlocked until the process exits,
// so that transfers can be signed without prompting.
func (wb *WalletBackend) NewWallet(keystorePath, password string) (*keystore.KeyStore, error) {
	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		return nil, errors.New("dir does not exists - " + keystorePath)
	}
	ks := keystore.NewKeyStore(keystorePath, wb.EncParams.N, wb.EncParams.P)
	for _, acc := range ks.Accounts() {
		if err := ks.Unlock(acc, password); err != nil {
			return nil, errors.Wrapf(err, "unlocking account %s", acc.Address.Hex())
		}
	}
	return ks, nil
}

// NewAccount retrieves the account corresponding to the given address from the keystore.
func (wb *WalletBackend) NewAccount(ks *keystore.KeyStore, addr common.Address) (accounts.Account, error) {
	acc, err := ks.Find(accounts.Account{Address: addr})
	if err != nil {
		return accounts.Account{}, errors.Wrapf(err, "finding account %s", addr.Hex())
	}
	return acc, nil
}
