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

package node

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/direct-state-transfer/fundme/blockchain/ethereum"
	"github.com/direct-state-transfer/fundme/currency"
	"github.com/direct-state-transfer/fundme/deploy"
	"github.com/direct-state-transfer/fundme/ledger"
	"github.com/direct-state-transfer/fundme/log"
	"github.com/direct-state-transfer/fundme/store"
)

// Node wires a ledger to the blockchain, the price feed and the database.
type Node struct {
	log.Logger

	cfg    Config
	Ledger *ledger.Ledger

	closers []func() error
	sync.Mutex
}

// New initializes the logger, connects to the blockchain node at cfg.ChainURL and
// returns a node serving a ledger on that chain.
func New(cfg Config) (*Node, error) {
	err := log.InitLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, errors.WithMessage(err, "initializing logger for node")
	}

	if !ethereum.IsChainReachable(cfg.ChainURL, cfg.ChainConnTimeout) {
		return nil, errors.New("cannot connect to blockchain node at " + cfg.ChainURL)
	}
	client, chainID, err := ethereum.Dial(cfg.ChainURL, cfg.ChainConnTimeout)
	if err != nil {
		return nil, err
	}
	n, err := NewWithBackend(cfg, client, chainID)
	if err != nil {
		client.Close()
		return nil, err
	}
	n.closers = append(n.closers, func() error { client.Close(); return nil })
	return n, nil
}

// NewWithBackend returns a node serving a ledger on the chain accessed through cb.
// The logger is not initialized.
func NewWithBackend(cfg Config, cb ethereum.ChainBackend, chainID *big.Int) (*Node, error) {
	wb := ethereum.NewWalletBackend()
	owner, err := wb.ParseAddr(cfg.Owner)
	if err != nil {
		return nil, errors.WithMessage(err, "owner address")
	}
	escrow, err := wb.ParseAddr(cfg.Escrow)
	if err != nil {
		return nil, errors.WithMessage(err, "escrow address")
	}
	minimumUSD, err := currency.NewParser(currency.USD).Parse(cfg.MinimumUSD)
	if err != nil {
		return nil, errors.WithMessage(err, "minimum usd")
	}
	if cfg.OnChainTxTimeout <= 0 {
		return nil, errors.New("on-chain tx timeout must be positive")
	}

	ks, err := wb.NewWallet(cfg.KeystorePath, cfg.Password)
	if err != nil {
		return nil, errors.WithMessage(err, "initializing wallet")
	}
	escrowAcc, err := wb.NewAccount(ks, escrow)
	if err != nil {
		return nil, errors.WithMessage(err, "escrow account")
	}
	settlement := ethereum.NewSettlement(cb, ks, escrowAcc, chainID, cfg.OnChainTxTimeout, cfg.BlockConfirmations)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OnChainTxTimeout)
	defer cancel()
	feed, err := deploy.PriceFeed(ctx, deploy.Config{
		Network:           cfg.Network,
		ChainID:           chainID,
		DevelopmentChains: cfg.DevelopmentChains,
		Deployer:          owner,
		MockDecimals:      cfg.MockDecimals,
		MockInitialAnswer: big.NewInt(cfg.MockInitialAnswer),
	}, cb)
	if err != nil {
		return nil, errors.WithMessage(err, "selecting price feed")
	}

	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	l, err := ledger.New(ledger.Config{
		Owner:      owner,
		MinimumUSD: minimumUSD,
		PriceFeed:  feed,
		Settlement: settlement,
		Store:      db,
	})
	if err != nil {
		db.Close() // nolint: errcheck
		return nil, errors.WithMessage(err, "initializing ledger")
	}

	return &Node{
		Logger:  log.NewLoggerWithField("node", 1), // ID of the node is always 1.
		cfg:     cfg,
		Ledger:  l,
		closers: []func() error{db.Close},
	}, nil
}

// Time returns the current UTC time as unix timestamp.
func (n *Node) Time() int64 {
	n.Logger.Debug("Received request: node.Time")
	return time.Now().UTC().Unix()
}

// GetConfig returns the config of the node with the password removed.
func (n *Node) GetConfig() Config {
	n.Logger.Debug("Received request: node.GetConfig")
	cfg := n.cfg
	cfg.Password = ""
	return cfg
}

// Close releases the database and the connection to the blockchain node.
func (n *Node) Close() error {
	n.Lock()
	defer n.Unlock()

	var firstErr error
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	n.closers = nil
	return firstErr
}
