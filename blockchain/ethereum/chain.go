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
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// ChainBackend wraps the methods of a blockchain client used for reading chain
// state, sending transactions and waiting for them to be mined.
type ChainBackend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Dial connects to the blockchain node at the given url and returns the client
// along with the chain id reported by the node.
func Dial(chainURL string, connTimeout time.Duration) (*ethclient.Client, *big.Int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, chainURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connecting to ethereum node")
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, errors.Wrap(err, "reading chain id")
	}
	return client, chainID, nil
}

// IsChainReachable returns true if a websocket connection can be opened to the
// given url within the timeout. For urls with other schemes, it always returns true
// and the reachability is checked only when dialing.
func IsChainReachable(chainURL string, timeout time.Duration) bool {
	u, err := url.Parse(chainURL)
	if err != nil {
		return false
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return true
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(chainURL, nil)
	if err != nil {
		return false
	}
	conn.Close() // nolint: errcheck
	return true
}
