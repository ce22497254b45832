// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/zuxlabs/ammledger/business/core/simulation"
	"github.com/zuxlabs/ammledger/business/web/errs"
	"github.com/zuxlabs/ammledger/foundation/blockchain/database"
	"github.com/zuxlabs/ammledger/foundation/blockchain/identity"
	"github.com/zuxlabs/ammledger/foundation/blockchain/state"
	"github.com/zuxlabs/ammledger/foundation/events"
	"github.com/zuxlabs/ammledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	Sim   *simulation.Simulation
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// Snapshot returns a consistent copy of the ledger, the pool and the accounts.
func (h Handlers) Snapshot(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Snapshot(), http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveGenesis(), http.StatusOK)
}

// Stats returns the counters of the running simulation together with the
// performance summary once the population is trading.
func (h Handlers) Stats(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	sum, err := h.Sim.Summary()
	if err != nil && !errors.Is(err, simulation.ErrNotSetUp) && !errors.Is(err, state.ErrPoolNotCreated) {
		return fmt.Errorf("summary: %w", err)
	}

	return web.Respond(ctx, w, sum, http.StatusOK)
}

// Verify re-validates the whole chain and reports the outcome.
func (h Handlers) Verify(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest := h.State.RetrieveLatestBlock()

	resp := verification{
		Valid:  true,
		Height: latest.Header.Number,
		Tip:    latest.Hash(),
	}

	if err := h.State.VerifyChain(); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Pool returns the snapshot of the pool.
func (h Handlers) Pool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	pool, err := h.State.RetrievePool()
	if err != nil {
		if errors.Is(err, state.ErrPoolNotCreated) {
			return errs.NotFound(err)
		}
		return err
	}

	return web.Respond(ctx, w, pool, http.StatusOK)
}

// Blocks returns the blocks in the range given by the from and to query
// parameters, the whole chain when they are missing.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, err := queryUint(r, "from")
	if err != nil {
		return errs.BadRequest(err)
	}

	to, err := queryUint(r, "to")
	if err != nil {
		return errs.BadRequest(err)
	}

	dbBlocks, err := h.State.RetrieveBlocks(from, to)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}
		return err
	}

	blocks := make([]block, len(dbBlocks))
	for i, blk := range dbBlocks {
		blocks[i] = toBlock(blk)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// Block returns the block with the specified number and its transactions.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	number, err := strconv.ParseUint(web.Param(r, "number"), 10, 64)
	if err != nil {
		return errs.BadRequest(fmt.Errorf("invalid block number: %w", err))
	}

	blk, err := h.State.RetrieveBlock(number)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NotFound(err)
		}
		return err
	}

	return web.Respond(ctx, w, toBlock(blk), http.StatusOK)
}

// Accounts returns every account without key material.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accounts := h.State.RetrieveAccounts()

	infos := make([]database.AccountInfo, len(accounts))
	for i, acct := range accounts {
		infos[i] = acct.Info()
	}

	return web.Respond(ctx, w, infos, http.StatusOK)
}

// Account returns the specified account.
func (h Handlers) Account(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addr := identity.Address(web.Param(r, "address"))

	acct, err := h.State.RetrieveAccount(addr)
	if err != nil {
		if errors.Is(err, database.ErrUnknownAccount) {
			return errs.NotFound(err)
		}
		return err
	}

	return web.Respond(ctx, w, acct.Info(), http.StatusOK)
}

// =============================================================================

func queryUint(r *http.Request, key string) (uint64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}

	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return n, nil
}
