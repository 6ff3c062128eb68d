// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb

// create a table for log
const logTableSchema = `
CREATE TABLE IF NOT EXISTS log (
	seq INTEGER PRIMARY KEY,
	blockHash BLOB(32) NOT NULL,
	blockNumber INTEGER NOT NULL,
	txHash BLOB(32) NOT NULL,
	txIndex INTEGER NOT NULL,
	address BLOB(20) NOT NULL,
	topicCount INTEGER NOT NULL,
	topic0 BLOB(32),
	topic1 BLOB(32),
	topic2 BLOB(32),
	topic3 BLOB(32),
	data BLOB
);

CREATE INDEX IF NOT EXISTS blockNumberIndex ON log(blockNumber);
CREATE INDEX IF NOT EXISTS addressIndex ON log(address);

CREATE INDEX IF NOT EXISTS topicIndex0 ON log(topic0);
CREATE INDEX IF NOT EXISTS topicIndex1 ON log(topic1);
CREATE INDEX IF NOT EXISTS topicIndex2 ON log(topic2);
CREATE INDEX IF NOT EXISTS topicIndex3 ON log(topic3);
`

const insertLogStmt = `INSERT OR REPLACE INTO log(seq, blockHash, blockNumber, txHash, txIndex, address, topicCount, topic0, topic1, topic2, topic3, data)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const logColumns = "blockHash, blockNumber, seq, txHash, txIndex, address, topic0, topic1, topic2, topic3, data"
