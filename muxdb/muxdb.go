// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package muxdb implements the storage layer of the simulator.
// It multiplexes named kv-stores over a single leveldb instance.
package muxdb

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	dberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/vechain/ethsim/kv"
	"github.com/vechain/ethsim/muxdb/internal/engine"
)

const (
	namedStoreSpace = byte(3) // the key space for named store.

	propStoreName = "muxdb.props"
	configKey     = "config"

	// SchemaVersion is bumped whenever the persisted layout changes.
	SchemaVersion = 1
)

// Options optional parameters for MuxDB.
type Options struct {
	// OpenFilesCacheCapacity is the capacity of open files caching for underlying database.
	OpenFilesCacheCapacity int
	// ReadCacheMB is the size of read cache for underlying database.
	ReadCacheMB int
	// WriteBufferMB is the size of write buffer for underlying database.
	WriteBufferMB int
}

// MuxDB is the database to store state versions and chain data.
type MuxDB struct {
	engine engine.Engine
	path   string
}

// Open opens or creates DB at the given path.
func Open(path string, options *Options) (*MuxDB, error) {
	if options == nil {
		options = &Options{}
	}
	ldbOpts := opt.Options{
		OpenFilesCacheCapacity: options.OpenFilesCacheCapacity,
		BlockCacheCapacity:     options.ReadCacheMB * opt.MiB,
		WriteBuffer:            options.WriteBufferMB * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
		BlockSize:              1024 * 32, // balance performance of point reads and compression ratio.
		CompactionTableSize:    4 * opt.MiB,
	}

	ldb, err := leveldb.OpenFile(path, &ldbOpts)
	if _, corrupted := err.(*dberrors.ErrCorrupted); corrupted {
		ldb, err = leveldb.RecoverFile(path, &ldbOpts)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open leveldb")
	}

	db := &MuxDB{engine.NewLevelEngine(ldb), path}
	cfg := config{Schema: SchemaVersion}
	if err := cfg.LoadOrSave(db.NewStore(propStoreName)); err != nil {
		ldb.Close()
		return nil, err
	}
	return db, nil
}

// NewMem creates a memory-backed DB.
func NewMem() *MuxDB {
	ldb, _ := leveldb.Open(storage.NewMemStorage(), nil)
	return &MuxDB{engine.NewLevelEngine(ldb), ""}
}

// Close closes the DB.
func (db *MuxDB) Close() error {
	return db.engine.Close()
}

// Path returns the data path, empty for memory-backed DB.
func (db *MuxDB) Path() string {
	return db.path
}

// NewStore creates named kv-store.
func (db *MuxDB) NewStore(name string) kv.Store {
	return kv.Bucket(string(namedStoreSpace) + name).NewStore(db.engine)
}

// config persists critical options to detect incompatible data dirs.
type config struct {
	Schema int
}

func (c *config) LoadOrSave(store kv.Store) error {
	data, err := store.Get([]byte(configKey))
	if err != nil {
		if !store.IsNotFound(err) {
			return errors.Wrap(err, "load config")
		}
		enc, err := json.Marshal(c)
		if err != nil {
			return err
		}
		return errors.Wrap(store.Put([]byte(configKey), enc), "save config")
	}

	var saved config
	if err := json.Unmarshal(data, &saved); err != nil {
		return errors.Wrap(err, "decode config")
	}
	if saved.Schema != c.Schema {
		return errors.Errorf("incompatible db schema %d, want %d", saved.Schema, c.Schema)
	}
	return nil
}
