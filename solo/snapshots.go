// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solo

// snapshot is what a revert restores: the chain head, the time offset and the pooled txs.
type snapshot struct {
	height     uint64
	timeOffset int64
	pending    []pooledTx
}

// Snapshots is the stack of snapshots. Ids start at 1 and are never reused,
// so an id reverts at most once. It is only touched from queue tasks.
type Snapshots struct {
	lastID uint64
	ids    []uint64
	items  []*snapshot
}

// Push records snap and returns its id.
func (s *Snapshots) Push(snap *snapshot) uint64 {
	s.lastID++
	s.ids = append(s.ids, s.lastID)
	s.items = append(s.items, snap)
	return s.lastID
}

// PopTo pops the snapshot with the given id and all taken after it.
// It returns false for an id never issued or already popped.
func (s *Snapshots) PopTo(id uint64) (*snapshot, bool) {
	for i := len(s.ids) - 1; i >= 0 && s.ids[i] >= id; i-- {
		if s.ids[i] == id {
			snap := s.items[i]
			s.ids, s.items = s.ids[:i], s.items[:i]
			return snap, true
		}
	}
	return nil, false
}

// Len returns the count of snapshots.
func (s *Snapshots) Len() int {
	return len(s.items)
}
