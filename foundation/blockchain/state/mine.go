package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/zuxlabs/ammledger/foundation/blockchain/database"
)

// maxAppendAttempts bounds how many times a block is re-mined when the tip
// moves underneath it.
const maxAppendAttempts = 5

// blockPlan describes the block a writer wants on the chain.
type blockPlan struct {
	event database.Event

	// trans builds and signs the transactions for the block. It is called
	// again on every attempt so it always sees the current balances.
	trans func() ([]database.SignedTx, error)

	// commit applies the changes that follow the block. It runs under the
	// write lock right after the block is appended.
	commit func()
}

// mineBlock builds, mines and appends the block described by the plan. The
// caller must hold the writer lock. A block whose parent is no longer the
// tip when it is appended is discarded and mined again against the new tip.
func (s *State) mineBlock(ctx context.Context, plan blockPlan) (database.Block, error) {
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		var trans []database.SignedTx
		if plan.trans != nil {
			var err error
			if trans, err = plan.trans(); err != nil {
				return database.Block{}, err
			}

			if err := s.db.CheckTransactions(trans); err != nil {
				return database.Block{}, err
			}
		}

		args := database.BlockArgs{
			Genesis:   s.genesis,
			PrevBlock: s.db.LatestBlock(),
			Event:     plan.event,
			Trans:     trans,
		}

		candidate, err := database.NewBlock(args)
		if err != nil {
			return database.Block{}, err
		}

		s.evHandler("state: mineBlock: MINING: blk[%d]: event[%s]: attempt[%d]", candidate.Header.Number, plan.event.Kind, attempt)

		block, err := s.miner.Mine(ctx, candidate)
		if err != nil {
			return database.Block{}, err
		}

		if err := s.appendBlock(block, plan.commit); err != nil {
			if errors.Is(err, database.ErrChainLink) {
				s.evHandler("state: mineBlock: MINING: blk[%d]: tip moved, discarding: %s", block.Header.Number, err)
				continue
			}
			return database.Block{}, err
		}

		s.evHandler("state: mineBlock: MINING: blk[%d]: appended: hash[%s]", block.Header.Number, block.Hash())

		return block, nil
	}

	return database.Block{}, fmt.Errorf("gave up after %d attempts: %w", maxAppendAttempts, database.ErrChainLink)
}

// appendBlock stores the block and runs the commit under the write lock so
// no snapshot can see one without the other.
func (s *State) appendBlock(block database.Block, commit func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Append(block); err != nil {
		return err
	}

	if commit != nil {
		commit()
	}

	return nil
}
