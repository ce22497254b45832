// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/zuxlabs/ammledger/app/services/node/handlers/v1/public"
	"github.com/zuxlabs/ammledger/business/core/simulation"
	"github.com/zuxlabs/ammledger/foundation/blockchain/state"
	"github.com/zuxlabs/ammledger/foundation/events"
	"github.com/zuxlabs/ammledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Sim   *simulation.Simulation
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes. Every route is read
// only, the ledger is only ever written by the simulation.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Sim:   cfg.Sim,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/snapshot", pbl.Snapshot)
	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/stats", pbl.Stats)
	app.Handle(http.MethodGet, version, "/verify", pbl.Verify)
	app.Handle(http.MethodGet, version, "/pool", pbl.Pool)
	app.Handle(http.MethodGet, version, "/blocks", pbl.Blocks)
	app.Handle(http.MethodGet, version, "/blocks/:number", pbl.Block)
	app.Handle(http.MethodGet, version, "/accounts", pbl.Accounts)
	app.Handle(http.MethodGet, version, "/accounts/:address", pbl.Account)
}
