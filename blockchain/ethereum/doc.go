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

// Package ethereum provides the settlement backend and the wallet backend for
// the ethereum blockchain platform.
//
// The settlement holds contributions in an escrow account controlled by the node.
// Contributions are transferred from the contributor's account to the escrow and
// withdrawals from the escrow to the owner, as plain value transfers signed with
// keys from a keystore. Gas for withdrawals is paid by the escrow, so the escrow
// must hold a small reserve in addition to the contributions.
//
// Transaction signing and the connection to the blockchain node are confined to
// this package. The ledger uses only the interfaces defined in the root package.
package ethereum
