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
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config defines the parameters required to start a fundme node.
type Config struct {
	LogLevel string
	LogFile  string

	Network          string        // Name of the network, used to detect development chains.
	ChainURL         string        // URL of the blockchain node.
	ChainConnTimeout time.Duration // Timeout for connecting to the blockchain node.
	OnChainTxTimeout time.Duration // Max duration to wait for an on-chain transaction to be mined.

	// BlockConfirmations is the number of blocks, including the one with the
	// transaction, after which a transfer is considered complete.
	BlockConfirmations uint64

	Owner        string // Address of the owner, who can withdraw the funds.
	Escrow       string // Address of the account holding the funds until withdrawal.
	KeystorePath string // Keystore holding the keys of escrow and funders.
	Password     string // Password for unlocking the keys in the keystore.

	MinimumUSD   string // Minimum contribution in USD, as a decimal string.
	DatabasePath string

	DevelopmentChains []string
	MockDecimals      uint8
	MockInitialAnswer int64

	ListenAddr string // Address at which the HTTP API is served.
}

// Default values for the node config.
const (
	DefaultLogLevel         = "info"
	DefaultNetwork          = "hardhat"
	DefaultChainConnTimeout = 10 * time.Second
	DefaultOnChainTxTimeout = 60 * time.Second
	DefaultMinimumUSD       = "50"
	DefaultDatabasePath     = "fundme.db"
	DefaultListenAddr       = ":8080"

	DefaultBlockConfirmations uint64 = 1
	DefaultMockDecimals       uint8  = 8
	DefaultMockInitialAnswer  int64  = 2000e8
)

// ParseConfig parses the node configuration from a file into the viper instance
// and returns it. Values bound to the viper instance (such as flags) take
// precedence over the values in the file.
func ParseConfig(v *viper.Viper, configFile string) (Config, error) {
	v.SetConfigFile(filepath.Clean(configFile))
	setDefaults(v)

	err := v.ReadInConfig()
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	err = v.Unmarshal(&cfg)
	return cfg, err
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("loglevel", DefaultLogLevel)
	v.SetDefault("network", DefaultNetwork)
	v.SetDefault("chainconntimeout", DefaultChainConnTimeout)
	v.SetDefault("onchaintxtimeout", DefaultOnChainTxTimeout)
	v.SetDefault("blockconfirmations", DefaultBlockConfirmations)
	v.SetDefault("minimumusd", DefaultMinimumUSD)
	v.SetDefault("databasepath", DefaultDatabasePath)
	v.SetDefault("mockdecimals", DefaultMockDecimals)
	v.SetDefault("mockinitialanswer", DefaultMockInitialAnswer)
	v.SetDefault("listenaddr", DefaultListenAddr)
}
