// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package logdb indexes the logs of mined blocks in sqlite for eth_getLogs.
package logdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const maxTopics = 4

// Filter selects logs.
// Addresses are OR-ed. Topics[i] lists the accepted values at position i,
// an empty list matches anything.
type Filter struct {
	FromBlock uint64
	ToBlock   uint64 // inclusive
	Addresses []common.Address
	Topics    [][]common.Hash
	Limit     uint64 // zero means unlimited
}

// LogDB stores logs keyed by block number and block wide log index.
type LogDB struct {
	path          string
	db            *sql.DB
	stmtCache     *stmtCache
	driverVersion string
}

// New create or open log db at given path.
func New(path string) (logDB *LogDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if logDB == nil {
			db.Close()
		}
	}()
	// every connection of an in-memory db is a distinct db
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(logTableSchema); err != nil {
		return nil, errors.Wrap(err, "create schema")
	}

	driverVer, _, _ := sqlite3.Version()
	return &LogDB{
		path:          path,
		db:            db,
		stmtCache:     newStmtCache(db),
		driverVersion: driverVer,
	}, nil
}

// NewMem create a log db in ram.
func NewMem() (*LogDB, error) {
	return New(":memory:")
}

// Close close the log db.
func (db *LogDB) Close() error {
	db.stmtCache.Clear()
	return db.db.Close()
}

// Path returns the db file path.
func (db *LogDB) Path() string {
	return db.path
}

// DriverVersion returns the sqlite version in use.
func (db *LogDB) DriverVersion() string {
	return db.driverVersion
}

// Prepare starts a batch holding logs of the given block.
func (db *LogDB) Prepare(blk *types.Block) *BlockBatch {
	return &BlockBatch{db: db, num: blk.NumberU64(), hash: blk.Hash()}
}

// Truncate deletes logs of blocks numbered from and above.
func (db *LogDB) Truncate(from uint64) error {
	_, err := db.db.Exec("DELETE FROM log WHERE blockNumber >= ?", from)
	return errors.Wrap(err, "truncate logs")
}

// FilterLogs returns logs matching the filter in chain order.
func (db *LogDB) FilterLogs(ctx context.Context, filter *Filter) ([]*types.Log, error) {
	if len(filter.Topics) > maxTopics || filter.FromBlock > filter.ToBlock {
		return []*types.Log{}, nil
	}

	var (
		stmt strings.Builder
		args []any
	)
	stmt.WriteString("SELECT " + logColumns + " FROM log WHERE blockNumber >= ? AND blockNumber <= ?")
	args = append(args, filter.FromBlock, filter.ToBlock)

	if len(filter.Addresses) > 0 {
		stmt.WriteString(" AND address IN (" + placeholders(len(filter.Addresses)) + ")")
		for _, addr := range filter.Addresses {
			args = append(args, addr.Bytes())
		}
	}
	if len(filter.Topics) > 0 {
		// a log with less topics than the filter positions never matches
		stmt.WriteString(" AND topicCount >= ?")
		args = append(args, len(filter.Topics))
	}
	for i, set := range filter.Topics {
		if len(set) == 0 {
			continue
		}
		fmt.Fprintf(&stmt, " AND topic%d IN (%s)", i, placeholders(len(set)))
		for _, topic := range set {
			args = append(args, topic.Bytes())
		}
	}
	stmt.WriteString(" ORDER BY seq ASC")
	if filter.Limit > 0 {
		stmt.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}
	return db.queryLogs(ctx, stmt.String(), args...)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (db *LogDB) queryLogs(ctx context.Context, stmt string, args ...any) ([]*types.Log, error) {
	rows, err := db.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query logs")
	}
	defer rows.Close()

	logs := []*types.Log{}
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		var (
			blockHash   []byte
			blockNumber uint64
			seq         sequence
			txHash      []byte
			txIndex     uint
			address     []byte
			topics      [maxTopics][]byte
			data        []byte
		)
		if err := rows.Scan(
			&blockHash,
			&blockNumber,
			&seq,
			&txHash,
			&txIndex,
			&address,
			&topics[0],
			&topics[1],
			&topics[2],
			&topics[3],
			&data,
		); err != nil {
			return nil, err
		}
		log := &types.Log{
			Address:     common.BytesToAddress(address),
			Data:        data,
			BlockNumber: blockNumber,
			TxHash:      common.BytesToHash(txHash),
			TxIndex:     txIndex,
			BlockHash:   common.BytesToHash(blockHash),
			Index:       seq.LogIndex(),
			Topics:      []common.Hash{},
		}
		for _, topic := range topics {
			if topic == nil {
				break
			}
			log.Topics = append(log.Topics, common.BytesToHash(topic))
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// BlockBatch collects logs of one block and writes them in a single transaction.
type BlockBatch struct {
	db   *LogDB
	num  uint64
	hash common.Hash
	logs []*types.Log
}

// Insert adds logs stamped with their block wide index.
func (bb *BlockBatch) Insert(logs ...*types.Log) *BlockBatch {
	bb.logs = append(bb.logs, logs...)
	return bb
}

func topicValue(topics []common.Hash, i int) []byte {
	if i < len(topics) {
		return topics[i].Bytes()
	}
	return nil
}

// Commit writes the batch.
func (bb *BlockBatch) Commit() error {
	insert, err := bb.db.stmtCache.Prepare(insertLogStmt)
	if err != nil {
		return err
	}
	tx, err := bb.db.db.Begin()
	if err != nil {
		return err
	}
	stmt := tx.Stmt(insert)
	for _, log := range bb.logs {
		if len(log.Topics) > maxTopics {
			_ = tx.Rollback()
			return errors.New("too many topics")
		}
		seq, err := newSequence(bb.num, log.Index)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.Exec(
			seq,
			bb.hash.Bytes(),
			bb.num,
			log.TxHash.Bytes(),
			log.TxIndex,
			log.Address.Bytes(),
			len(log.Topics),
			topicValue(log.Topics, 0),
			topicValue(log.Topics, 1),
			topicValue(log.Topics, 2),
			topicValue(log.Topics, 3),
			log.Data,
		); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "insert log")
		}
	}
	return tx.Commit()
}
