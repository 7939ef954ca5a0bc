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

// Package store persists the state of a ledger in a bbolt database, so that a
// node can be restarted without losing the contributions it holds.
package store

import (
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/direct-state-transfer/fundme"
)

var (
	ledgerBucket = []byte("ledger")
	stateKey     = []byte("state")
)

const openTimeout = time.Second

// BoltStore stores the ledger state RLP encoded under a single key.
//
// - implements fundme.Store
type BoltStore struct {
	bolt *bbolt.DB
}

// New opens (creating if required) the database file at path.
func New(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	err = db.Update(func(txn *bbolt.Tx) error {
		_, err := txn.CreateBucketIfNotExists(ledgerBucket)
		return err
	})
	if err != nil {
		db.Close() // nolint: errcheck
		return nil, errors.Wrap(err, "creating bucket")
	}
	return &BoltStore{bolt: db}, nil
}

// Load returns the stored state. If nothing was stored yet, the state is empty.
func (s *BoltStore) Load() (fundme.State, error) {
	var state fundme.State
	err := s.bolt.View(func(txn *bbolt.Tx) error {
		data := txn.Bucket(ledgerBucket).Get(stateKey)
		if data == nil {
			return nil
		}
		return errors.Wrap(rlp.DecodeBytes(data, &state), "decoding state")
	})
	return state, err
}

// Save replaces the stored state.
func (s *BoltStore) Save(state fundme.State) error {
	data, err := rlp.EncodeToBytes(state)
	if err != nil {
		return errors.Wrap(err, "encoding state")
	}
	return s.bolt.Update(func(txn *bbolt.Tx) error {
		return errors.Wrap(txn.Bucket(ledgerBucket).Put(stateKey, data), "writing state")
	})
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.bolt.Close()
}
