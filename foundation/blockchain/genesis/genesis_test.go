package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zuxlabs/ammledger/foundation/blockchain/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_Load(t *testing.T) {
	type table struct {
		name    string
		content string
		ok      bool
		network string
		diff    uint16
		class   string
	}

	tt := []table{
		{name: "defaults", content: `{}`, ok: true, network: "ZUX-Testnet", diff: 2, class: "Private"},
		{name: "public", content: `{"network_name":"ZUX-Mainnet","difficulty":3}`, ok: true, network: "ZUX-Mainnet", diff: 3, class: "Public"},
		{name: "bad-fee", content: `{"fee_rate":1.5}`, ok: false},
		{name: "bad-difficulty", content: `{"difficulty":65}`, ok: false},
		{name: "bad-json", content: `{`, ok: false},
	}

	t.Log("Given the need to load genesis parameters from disk.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "genesis.json")
				if err := os.WriteFile(path, []byte(tst.content), 0600); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to write the file: %v", failed, testID, err)
				}

				g, err := genesis.Load(path)
				if !tst.ok {
					if err == nil {
						t.Fatalf("\t%s\tTest %d:\tShould reject the file.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould reject the file.", success, testID)
					return
				}

				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to load the file: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to load the file.", success, testID)

				if g.NetworkName != tst.network || g.Difficulty != tst.diff || g.Class() != tst.class {
					t.Logf("\t%s\tTest %d:\tgot: %s %d %s", failed, testID, g.NetworkName, g.Difficulty, g.Class())
					t.Logf("\t%s\tTest %d:\texp: %s %d %s", failed, testID, tst.network, tst.diff, tst.class)
					t.Fatalf("\t%s\tTest %d:\tShould get back the right parameters.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get back the right parameters.", success, testID)

				if g.SystemBalances["USDZ"] != 5_000_000_000 {
					t.Fatalf("\t%s\tTest %d:\tShould keep the default system balances.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould keep the default system balances.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}
