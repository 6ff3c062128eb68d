// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fork

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// Target is the upstream endpoint and the block the fork is pinned at.
type Target struct {
	URL string
	// Number is the pinned block, nil to pin the upstream head at start-up.
	Number *uint64
}

// ParseTarget parses "url[@block]". The block is decimal or 0x-prefixed hex.
// An '@' not followed by a block number is kept as part of the url.
func ParseTarget(s string) (*Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty fork url")
	}
	if i := strings.LastIndex(s, "@"); i > 0 {
		if num, ok := parseNumber(s[i+1:]); ok {
			return &Target{URL: s[:i], Number: &num}, nil
		}
	}
	return &Target{URL: s}, nil
}

func parseNumber(s string) (uint64, bool) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := hexutil.DecodeUint64("0x" + s[2:])
		return n, err == nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	return n, err == nil
}

func (t *Target) String() string {
	if t.Number == nil {
		return t.URL
	}
	return t.URL + "@" + strconv.FormatUint(*t.Number, 10)
}
