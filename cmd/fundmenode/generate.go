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
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/spf13/cobra"

	"github.com/direct-state-transfer/fundme/cmd/configgen"
)

const (
	dirF      = "dir"
	mnemonicF = "mnemonic"
	seedF     = "seed"
	accountsF = "accounts"
	passwordF = "password"
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String(dirF, ".", "Directory in which config file and keystore are generated")
	generateCmd.Flags().String(mnemonicF, "", "Mnemonic for deriving the accounts. Generated from seed if empty")
	generateCmd.Flags().Int64(seedF, 1729, "Seed for generating the mnemonic")
	generateCmd.Flags().Int(accountsF, 10, "Number of accounts: escrow, owner and funders")
	generateCmd.Flags().String(passwordF, "", "Password for encrypting the keys in the keystore")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate node config file and keystore for a development chain",
	Long: `
Generate a node config file and a keystore with accounts derived from a mnemonic.
The first account is used as escrow, the second one as owner and the rest as
funders. Start the development chain with the printed mnemonic so that these
accounts are funded.`,
	Run: generate,
}

func generate(cmd *cobra.Command, args []string) {
	p := configgen.Params{
		ScryptN: keystore.StandardScryptN,
		ScryptP: keystore.StandardScryptP,
		NodeCfg: configgen.DefaultNodeConfig(),
	}
	var err error
	if p.Dir, err = cmd.Flags().GetString(dirF); err != nil {
		panic("unknown flag dir\n")
	}
	if p.Mnemonic, err = cmd.Flags().GetString(mnemonicF); err != nil {
		panic("unknown flag mnemonic\n")
	}
	if p.Seed, err = cmd.Flags().GetInt64(seedF); err != nil {
		panic("unknown flag seed\n")
	}
	if p.Accounts, err = cmd.Flags().GetInt(accountsF); err != nil {
		panic("unknown flag accounts\n")
	}
	if p.Password, err = cmd.Flags().GetString(passwordF); err != nil {
		panic("unknown flag password\n")
	}

	res, err := configgen.Generate(p)
	if err != nil {
		fmt.Printf("Error generating artifacts: %v\n", err)
		return
	}
	fmt.Printf("Generated node config file - %s\n", res.ConfigFile)
	fmt.Printf("Generated keystore - %s\n", res.KeystorePath)
	fmt.Printf("Mnemonic - %s\n\n", res.Mnemonic)
	for i, addr := range res.Addresses {
		role := "funder"
		switch i {
		case 0:
			role = "escrow"
		case 1:
			role = "owner"
		}
		fmt.Printf("%d\t%s\t%s\n", i, addr.Hex(), role)
	}
}
