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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/direct-state-transfer/fundme/api/httpapi"
	"github.com/direct-state-transfer/fundme/node"
)

const (
	// flag names for run command.
	configfileF         = "configfile"
	loglevelF           = "loglevel"
	logfileF            = "logfile"
	networkF            = "network"
	chainurlF           = "chainurl"
	chainconntimeoutF   = "chainconntimeout"
	onchaintxtimeoutF   = "onchaintxtimeout"
	blockconfirmationsF = "blockconfirmations"
	ownerF              = "owner"
	escrowF             = "escrow"
	keystorepathF       = "keystorepath"
	minimumusdF         = "minimumusd"
	databasepathF       = "databasepath"
	mockdecimalsF       = "mockdecimals"
	mockinitialanswerF  = "mockinitialanswer"
	listenaddrF         = "listenaddr"

	// default values for flags in run command.
	defaultConfigFile = "node.yaml"

	shutdownTimeout = 10 * time.Second
)

var (
	// node level viper instance for parsing configuration from flags and configuration files.
	nodeViper *viper.Viper

	// flags in the run command is binded with the viper instance to override values from config file.
	flagsToBind = []string{
		loglevelF,
		logfileF,
		networkF,
		chainurlF,
		chainconntimeoutF,
		onchaintxtimeoutF,
		blockconfirmationsF,
		ownerF,
		escrowF,
		keystorepathF,
		minimumusdF,
		databasepathF,
		mockdecimalsF,
		mockinitialanswerF,
		listenaddrF,
	}
)

func init() {
	nodeViper = viper.New()
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String(configfileF, defaultConfigFile, "node config file")

	runCmd.Flags().String(loglevelF, "", "Log level. Supported levels: debug, info, error")
	runCmd.Flags().String(logfileF, "", "Log file path. Use empty string for stdout")
	runCmd.Flags().String(networkF, "", "Name of the network. Mock price feed is used on development chains")
	runCmd.Flags().String(chainurlF, "", "URL of the blockchain node")
	runCmd.Flags().Duration(chainconntimeoutF, time.Duration(0),
		"Connection timeout for connecting to the blockchain node")
	runCmd.Flags().Duration(onchaintxtimeoutF, time.Duration(0),
		"Max duration to wait for an on-chain transaction to be mined.")
	runCmd.Flags().Uint64(blockconfirmationsF, 0, "Number of blocks after which a transfer is complete")
	runCmd.Flags().String(ownerF, "", "Address of the owner as hex string with 0x prefix")
	runCmd.Flags().String(escrowF, "", "Address of the escrow account as hex string with 0x prefix")
	runCmd.Flags().String(keystorepathF, "", "Path to the keystore holding escrow and funder keys")
	runCmd.Flags().String(minimumusdF, "", "Minimum contribution in USD")
	runCmd.Flags().String(databasepathF, "", "Path to the database file for persisting the ledger")
	runCmd.Flags().Uint8(mockdecimalsF, 0, "Decimals of the mock price feed")
	runCmd.Flags().Int64(mockinitialanswerF, 0, "Initial answer of the mock price feed")
	runCmd.Flags().String(listenaddrF, "", "Address at which the HTTP API server should listen")

	// Bind the configuration flags to viper instance used for to override the values defined in config file.
	for i := range flagsToBind {
		nodeViper.BindPFlag(flagsToBind[i], runCmd.Flags().Lookup(flagsToBind[i])) // nolint: errcheck
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the fundmenode",
	Long: `
Start the fundme node. The node serves the ledger API via HTTP interface.
Configuration can be specified in the config file or via flags. If both
config file and flags are given, values in flags are used.

The keystore password is read only from the config file.`,
	Run: run,
}

func run(cmd *cobra.Command, args []string) {
	nodeCfgFile, err := cmd.Flags().GetString(configfileF)
	if err != nil {
		panic("unknown flag configFile\n")
	}
	fmt.Printf("Using node config file - %s\n", nodeCfgFile)

	nodeCfg, err := node.ParseConfig(nodeViper, nodeCfgFile)
	if err != nil {
		fmt.Printf("Error reading node config file: %v\n", err)
		return
	}

	n, err := node.New(nodeCfg)
	if err != nil {
		fmt.Printf("Error initializing node: %v\n", err)
		return
	}
	defer n.Close() // nolint: errcheck

	srv, err := httpapi.NewServer(n.Ledger)
	if err != nil {
		fmt.Printf("Error initializing API server: %v\n", err)
		return
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutting down server: %v", err)
		}
	}()

	fmt.Printf("%s\n\n", prettify(n.GetConfig()))
	fmt.Printf("Started fundme ledger API server with the above config at %s\n", nodeCfg.ListenAddr)
	if err := srv.ListenAndServe(nodeCfg.ListenAddr); err != nil {
		log.Printf("server returned with error: %v", err)
	}
}

func prettify(cfg node.Config) string {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", cfg)
	}
	return string(data)
}
