package state

import (
	"fmt"

	"github.com/zuxlabs/ammledger/foundation/blockchain/amm"
	"github.com/zuxlabs/ammledger/foundation/blockchain/database"
	"github.com/zuxlabs/ammledger/foundation/blockchain/identity"
)

// RetrieveLatestBlock returns a copy of the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveBlocks returns copies of the blocks numbered from through to
// inclusive. A to of zero means the latest block.
func (s *State) RetrieveBlocks(from uint64, to uint64) ([]database.Block, error) {
	blocks := s.db.CopyBlocks()

	if from == 0 {
		from = 1
	}

	if to == 0 || to > uint64(len(blocks)) {
		to = uint64(len(blocks))
	}

	if from > to {
		return nil, fmt.Errorf("range %d-%d: %w", from, to, database.ErrNotFound)
	}

	return blocks[from-1 : to], nil
}

// RetrieveBlock returns a copy of the block with the specified number.
func (s *State) RetrieveBlock(number uint64) (database.Block, error) {
	return s.db.QueryBlock(number)
}

// RetrievePool returns a snapshot of the pool.
func (s *State) RetrievePool() (amm.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pool == nil {
		return amm.Snapshot{}, ErrPoolNotCreated
	}

	return s.pool.Snapshot(), nil
}

// RetrieveAccounts returns copies of every account sorted by address.
func (s *State) RetrieveAccounts() []database.Account {
	return s.db.Accounts()
}

// RetrieveAccount returns a copy of the specified account.
func (s *State) RetrieveAccount(addr identity.Address) (database.Account, error) {
	return s.db.Account(addr)
}

// VerifyChain re-validates every block on the chain.
func (s *State) VerifyChain() error {
	return s.db.VerifyChain()
}
