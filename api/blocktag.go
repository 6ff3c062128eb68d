// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// block tags
const (
	TagLatest    = "latest"
	TagPending   = "pending"
	TagEarliest  = "earliest"
	TagSafe      = "safe"
	TagFinalized = "finalized"
)

// BlockTag is a block parameter. It is one of a tag, a block number given
// as a JSON number, a decimal or 0x prefixed hex string, a block hash, or an
// EIP-1898 object {"blockNumber": ...} / {"blockHash": ..., "requireCanonical": ...}.
type BlockTag struct {
	Tag    string
	Number *uint64
	Hash   *common.Hash
}

// Latest is the default block parameter.
var Latest = BlockTag{Tag: TagLatest}

// NumberTag returns the tag of a block number.
func NumberTag(num uint64) BlockTag {
	return BlockTag{Number: &num}
}

// IsPending returns whether the tag addresses the pending block.
func (b BlockTag) IsPending() bool {
	return b.Tag == TagPending
}

func (b BlockTag) followsHead() bool {
	switch b.Tag {
	case TagLatest, TagPending, TagSafe, TagFinalized:
		return true
	}
	return b.Number == nil && b.Hash == nil && b.Tag == ""
}

func (b BlockTag) String() string {
	switch {
	case b.Number != nil:
		return strconv.FormatUint(*b.Number, 10)
	case b.Hash != nil:
		return b.Hash.Hex()
	case b.Tag != "":
		return b.Tag
	default:
		return TagLatest
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BlockTag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*b = Latest
		return nil
	case data[0] == '{':
		var obj struct {
			BlockNumber      *BlockTag    `json:"blockNumber"`
			BlockHash        *common.Hash `json:"blockHash"`
			RequireCanonical bool         `json:"requireCanonical"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if (obj.BlockNumber == nil) == (obj.BlockHash == nil) {
			return errors.New("exactly one of blockNumber and blockHash must be specified")
		}
		if obj.BlockHash != nil {
			*b = BlockTag{Hash: obj.BlockHash}
		} else {
			*b = *obj.BlockNumber
		}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return b.parse(s)
	default:
		num, err := strconv.ParseUint(string(data), 10, 64)
		if err != nil {
			return errors.Errorf("invalid block number %s", data)
		}
		*b = NumberTag(num)
		return nil
	}
}

func (b *BlockTag) parse(s string) error {
	s = strings.TrimSpace(s)
	switch lower := strings.ToLower(s); lower {
	case TagLatest, TagPending, TagEarliest, TagSafe, TagFinalized:
		*b = BlockTag{Tag: lower}
		return nil
	case "":
		*b = Latest
		return nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		if len(digits) == 2*common.HashLength {
			hash := common.HexToHash(s)
			*b = BlockTag{Hash: &hash}
			return nil
		}
		num, err := strconv.ParseUint(digits, 16, 64)
		if err != nil {
			return errors.Errorf("invalid block number %q", s)
		}
		*b = NumberTag(num)
		return nil
	}
	num, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return errors.Errorf("invalid block parameter %q", s)
	}
	*b = NumberTag(num)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (b BlockTag) MarshalJSON() ([]byte, error) {
	switch {
	case b.Number != nil:
		return json.Marshal("0x" + strconv.FormatUint(*b.Number, 16))
	case b.Hash != nil:
		return json.Marshal(b.Hash.Hex())
	default:
		return json.Marshal(b.String())
	}
}

// Quantity is an integer given as a JSON number, or a decimal or hex string.
type Quantity uint64

// UnmarshalJSON implements json.Unmarshaler.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	var (
		v   uint64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return errors.Errorf("invalid quantity %s", data)
	}
	*q = Quantity(v)
	return nil
}
