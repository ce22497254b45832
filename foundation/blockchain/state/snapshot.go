package state

import (
	"github.com/zuxlabs/ammledger/foundation/blockchain/amm"
	"github.com/zuxlabs/ammledger/foundation/blockchain/database"
)

// Snapshot is a consistent, read-only copy of the ledger, the pool and the
// accounts. It never carries key material.
type Snapshot struct {
	Network  string                 `json:"network"`
	Height   uint64                 `json:"height"`
	TipHash  string                 `json:"tip_hash"`
	Blocks   []database.BlockInfo   `json:"blocks"`
	Pool     *amm.Snapshot          `json:"pool,omitempty"`
	Accounts []database.AccountInfo `json:"accounts"`
}

// Snapshot captures the state. Commits are held off while the copy is made
// so the ledger, pool and balances always agree with each other.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blocks := s.db.CopyBlocks()
	accounts := s.db.Accounts()

	snap := Snapshot{
		Network:  s.genesis.NetworkName,
		Blocks:   make([]database.BlockInfo, len(blocks)),
		Accounts: make([]database.AccountInfo, len(accounts)),
	}

	for i, b := range blocks {
		snap.Blocks[i] = b.Info()
	}

	if n := len(blocks); n > 0 {
		snap.Height = blocks[n-1].Header.Number
		snap.TipHash = blocks[n-1].Hash()
	}

	for i, acct := range accounts {
		snap.Accounts[i] = acct.Info()
	}

	if s.pool != nil {
		ps := s.pool.Snapshot()
		snap.Pool = &ps
	}

	return snap
}
