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

// Package configgen generates a node config file and a keystore for running a
// fundme node against a local development chain.
//
// The accounts in the keystore are derived from a mnemonic, so that the same
// mnemonic can be used to start the development chain with those accounts funded.
package configgen

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/direct-state-transfer/fundme/node"
)

const (
	defaultHDPath = "m/44'/60'/0'/0/"

	// NodeConfigFile is the name of the generated config file.
	NodeConfigFile = "node.yaml"
	// KeystoreDir is the name of the generated keystore directory.
	KeystoreDir = "keystore"

	// MinAccounts are the escrow, the owner and one funder.
	MinAccounts = 3
)

// Params for generating the artifacts.
type Params struct {
	Dir string // Directory in which the artifacts are generated. Must not contain them already.

	// Mnemonic for deriving the accounts. If empty, it is generated using Seed.
	Mnemonic string
	Seed     int64
	Accounts int // Number of accounts, including escrow and owner.

	Password         string
	ScryptN, ScryptP int

	// NodeCfg provides the remaining values of the config file. Owner, escrow,
	// keystore path and password are set by the generator.
	NodeCfg node.Config
}

// Result holds the paths of the generated artifacts. Addresses are in the order of
// derivation: escrow, owner, followed by the funders.
type Result struct {
	ConfigFile   string
	KeystorePath string
	Mnemonic     string
	Addresses    []common.Address
}

// DefaultNodeConfig returns a config for a local hardhat node.
func DefaultNodeConfig() node.Config {
	return node.Config{
		LogLevel:           "debug",
		Network:            node.DefaultNetwork,
		ChainURL:           "ws://127.0.0.1:8545",
		ChainConnTimeout:   node.DefaultChainConnTimeout,
		OnChainTxTimeout:   node.DefaultOnChainTxTimeout,
		BlockConfirmations: node.DefaultBlockConfirmations,
		MinimumUSD:         node.DefaultMinimumUSD,
		DatabasePath:       node.DefaultDatabasePath,
		MockDecimals:       node.DefaultMockDecimals,
		MockInitialAnswer:  node.DefaultMockInitialAnswer,
		ListenAddr:         node.DefaultListenAddr,
	}
}

// Generate derives the accounts, stores them in a keystore and writes a node config
// file using them.
func Generate(p Params) (Result, error) {
	if p.Accounts < MinAccounts {
		return Result{}, errors.Errorf("need at least %d accounts, got %d", MinAccounts, p.Accounts)
	}
	configFile := filepath.Join(p.Dir, NodeConfigFile)
	ksPath := filepath.Join(p.Dir, KeystoreDir)
	for _, path := range []string{configFile, ksPath} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			return Result{}, errors.New("exists file - " + path)
		}
	}

	mnemonic := p.Mnemonic
	if mnemonic == "" {
		var err error
		if mnemonic, err = newMnemonic(p.Seed); err != nil {
			return Result{}, err
		}
	}
	addrs, err := newKeystore(ksPath, mnemonic, p)
	if err != nil {
		return Result{}, err
	}

	cfg := p.NodeCfg
	cfg.Escrow = addrs[0].Hex()
	cfg.Owner = addrs[1].Hex()
	cfg.KeystorePath = ksPath
	cfg.Password = p.Password
	if err := writeConfig(configFile, cfg); err != nil {
		return Result{}, err
	}
	return Result{
		ConfigFile:   configFile,
		KeystorePath: ksPath,
		Mnemonic:     mnemonic,
		Addresses:    addrs,
	}, nil
}

func newMnemonic(seed int64) (string, error) {
	prng := rand.New(rand.NewSource(seed)) // nolint: gosec		// math/rand is used to get deterministic accounts.
	entropy := make([]byte, 16)
	if _, err := prng.Read(entropy); err != nil {
		return "", errors.Wrap(err, "reading entropy")
	}
	mnemonic, err := hdwallet.NewMnemonicFromEntropy(entropy)
	return mnemonic, errors.Wrap(err, "generating mnemonic")
}

func newKeystore(ksPath, mnemonic string, p Params) ([]common.Address, error) {
	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, errors.Wrap(err, "loading mnemonic")
	}
	if err = os.MkdirAll(ksPath, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating keystore dir")
	}
	ks := keystore.NewKeyStore(ksPath, p.ScryptN, p.ScryptP)

	addrs := make([]common.Address, p.Accounts)
	for i := range addrs {
		path, err := hdwallet.ParseDerivationPath(fmt.Sprintf("%s%d", defaultHDPath, i))
		if err != nil {
			return nil, errors.Wrap(err, "parsing derivation path")
		}
		hdAcc, err := w.Derive(path, false)
		if err != nil {
			return nil, errors.Wrapf(err, "deriving account %d", i)
		}
		key, err := w.PrivateKey(hdAcc)
		if err != nil {
			return nil, errors.Wrapf(err, "reading key of account %d", i)
		}
		acc, err := ks.ImportECDSA(key, p.Password)
		if err != nil {
			return nil, errors.Wrapf(err, "importing account %d", i)
		}
		addrs[i] = acc.Address
	}
	return addrs, nil
}

func writeConfig(configFile string, cfg node.Config) error {
	v := viper.New()
	v.Set("loglevel", cfg.LogLevel)
	v.Set("logfile", cfg.LogFile)
	v.Set("network", cfg.Network)
	v.Set("chainurl", cfg.ChainURL)
	v.Set("chainconntimeout", cfg.ChainConnTimeout.String())
	v.Set("onchaintxtimeout", cfg.OnChainTxTimeout.String())
	v.Set("blockconfirmations", cfg.BlockConfirmations)
	v.Set("owner", cfg.Owner)
	v.Set("escrow", cfg.Escrow)
	v.Set("keystorepath", cfg.KeystorePath)
	v.Set("password", cfg.Password)
	v.Set("minimumusd", cfg.MinimumUSD)
	v.Set("databasepath", cfg.DatabasePath)
	if len(cfg.DevelopmentChains) != 0 {
		v.Set("developmentchains", cfg.DevelopmentChains)
	}
	v.Set("mockdecimals", cfg.MockDecimals)
	v.Set("mockinitialanswer", cfg.MockInitialAnswer)
	v.Set("listenaddr", cfg.ListenAddr)
	return errors.Wrap(v.WriteConfigAs(configFile), "writing node config")
}
