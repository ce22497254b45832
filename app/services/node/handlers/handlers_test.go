package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/zuxlabs/ammledger/app/services/node/handlers"
	"github.com/zuxlabs/ammledger/business/core/simulation"
	"github.com/zuxlabs/ammledger/foundation/blockchain/amm"
	"github.com/zuxlabs/ammledger/foundation/blockchain/genesis"
	"github.com/zuxlabs/ammledger/foundation/blockchain/state"
	"github.com/zuxlabs/ammledger/foundation/events"
	"go.uber.org/zap/zaptest"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_PublicRoutes(t *testing.T) {
	ctx := context.Background()

	st, err := state.New(state.Config{Genesis: genesis.Default(), Miners: 1})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}
	defer st.Shutdown()

	if _, err := st.Genesis(ctx); err != nil {
		t.Fatalf("\t%s\tShould be able to mine genesis: %v", failed, err)
	}

	if _, err := st.CreatePool(ctx, 1_000, 5_000); err != nil {
		t.Fatalf("\t%s\tShould be able to create the pool: %v", failed, err)
	}

	log := zaptest.NewLogger(t).Sugar()

	sim, err := simulation.New(log, st, simulation.DefaultConfig())
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the simulation: %v", failed, err)
	}

	mux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      log,
		State:    st,
		Sim:      sim,
		Evts:     events.New(),
	})

	tt := []struct {
		name   string
		path   string
		status int
	}{
		{name: "snapshot", path: "/v1/snapshot", status: http.StatusOK},
		{name: "genesis", path: "/v1/genesis", status: http.StatusOK},
		{name: "stats", path: "/v1/stats", status: http.StatusOK},
		{name: "pool", path: "/v1/pool", status: http.StatusOK},
		{name: "verify", path: "/v1/verify", status: http.StatusOK},
		{name: "blocks", path: "/v1/blocks?from=1&to=2", status: http.StatusOK},
		{name: "badrange", path: "/v1/blocks?from=x", status: http.StatusBadRequest},
		{name: "block", path: "/v1/blocks/2", status: http.StatusOK},
		{name: "noblock", path: "/v1/blocks/99", status: http.StatusNotFound},
		{name: "accounts", path: "/v1/accounts", status: http.StatusOK},
		{name: "system", path: "/v1/accounts/SYSTEM", status: http.StatusOK},
		{name: "noaccount", path: "/v1/accounts/0000000", status: http.StatusNotFound},
	}

	t.Log("Given the need to serve the ledger over http.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen calling %s.", testID, tst.path)
				{
					r := httptest.NewRequest(http.MethodGet, tst.path, nil)
					w := httptest.NewRecorder()
					mux.ServeHTTP(w, r)

					if w.Code != tst.status {
						t.Fatalf("\t%s\tTest %d:\tShould receive a status code of %d, got %d: %s", failed, testID, tst.status, w.Code, w.Body.String())
					}
					t.Logf("\t%s\tTest %d:\tShould receive a status code of %d.", success, testID, tst.status)
				}
			}

			t.Run(tst.name, f)
		}

		t.Logf("\tTest %d:\tWhen reading the pool.", len(tt))
		{
			r := httptest.NewRequest(http.MethodGet, "/v1/pool", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, r)

			var pool amm.Snapshot
			if err := json.NewDecoder(w.Body).Decode(&pool); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to decode the pool: %v", failed, len(tt), err)
			}

			if pool.Price != 5 {
				t.Fatalf("\t%s\tTest %d:\tShould report the seeded price, got %f.", failed, len(tt), pool.Price)
			}
			t.Logf("\t%s\tTest %d:\tShould report the seeded price.", success, len(tt))
		}
	}
}
