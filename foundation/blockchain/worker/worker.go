// Package worker runs the proof of work searches for the blockchain on
// background goroutines so the single writer is never blocked by the cost
// of mining.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/zuxlabs/ammledger/foundation/blockchain/database"
)

// ErrShutdown is returned when work is submitted after the worker has been
// told to shut down.
var ErrShutdown = errors.New("worker is shut down")

// EventHandler defines a function that is called when events occur in the
// processing of mining blocks.
type EventHandler func(v string, args ...any)

// =============================================================================

// Worker manages the POW workflows for the blockchain.
type Worker struct {
	wg        sync.WaitGroup
	shut      chan struct{}
	jobs      chan job
	ctx       context.Context
	cancel    context.CancelFunc
	once      sync.Once
	evHandler EventHandler
}

// job is a candidate block waiting for a miner.
type job struct {
	ctx    context.Context
	block  database.Block
	result chan result
}

// result is what a miner hands back for a job.
type result struct {
	block database.Block
	err   error
}

// Run creates a worker and starts the specified number of miners.
func Run(miners int, evHandler EventHandler) *Worker {
	if miners <= 0 {
		miners = 1
	}

	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := Worker{
		shut:      make(chan struct{}),
		jobs:      make(chan job),
		ctx:       ctx,
		cancel:    cancel,
		evHandler: evHandler,
	}

	w.wg.Add(miners)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	for i := 0; i < miners; i++ {
		go func(id int) {
			defer w.wg.Done()
			hasStarted <- true
			w.miningOperations(id)
		}(i)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < miners; i++ {
		<-hasStarted
	}

	return &w
}

// Shutdown cancels any search in flight and terminates the miners.
func (w *Worker) Shutdown() {
	w.once.Do(func() {
		w.evHandler("worker: shutdown: started")
		defer w.evHandler("worker: shutdown: completed")

		w.evHandler("worker: shutdown: signal cancel mining")
		w.cancel()

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.wg.Wait()
	})
}

// Mine hands the candidate block to a miner and waits for the solved block.
// The search stops when the context is cancelled or the worker shuts down.
func (w *Worker) Mine(ctx context.Context, block database.Block) (database.Block, error) {
	j := job{
		ctx:    ctx,
		block:  block,
		result: make(chan result, 1),
	}

	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return database.Block{}, ctx.Err()
	case <-w.shut:
		return database.Block{}, ErrShutdown
	}

	select {
	case r := <-j.result:
		return r.block, r.err
	case <-ctx.Done():
		return database.Block{}, ctx.Err()
	}
}

// =============================================================================

// miningOperations waits for jobs until the worker shuts down.
func (w *Worker) miningOperations(id int) {
	w.evHandler("worker: miningOperations: miner[%d]: G started", id)
	defer w.evHandler("worker: miningOperations: miner[%d]: G completed", id)

	for {
		select {
		case j := <-w.jobs:
			w.runMiningOperation(id, j)
		case <-w.shut:
			w.evHandler("worker: miningOperations: miner[%d]: received shut signal", id)
			return
		}
	}
}

// runMiningOperation performs the search for a single job. The search is
// cancelled by either the caller's context or the worker shutting down.
func (w *Worker) runMiningOperation(id int, j job) {
	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()

	stop := context.AfterFunc(w.ctx, cancel)
	defer stop()

	block, err := database.POW(ctx, j.block, w.evHandler)
	if err != nil {
		w.evHandler("worker: runMiningOperation: miner[%d]: MINING: ERROR: %s", id, err)
	}

	j.result <- result{block: block, err: err}
}
