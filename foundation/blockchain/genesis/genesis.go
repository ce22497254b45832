// Package genesis maintains access to the genesis parameters of the ledger.
package genesis

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"
)

// Genesis represents the genesis parameters.
type Genesis struct {
	Date              time.Time          `json:"date"`
	NetworkName       string             `json:"network_name"`       // Network the blocks are stamped with.
	Version           string             `json:"version"`            // Protocol version stamped into block metadata.
	InceptionYear     int                `json:"inception_year"`     // Year the network was started.
	GenesisDifficulty uint16             `json:"genesis_difficulty"` // Difficulty used to mine the genesis block.
	Difficulty        uint16             `json:"difficulty"`         // How difficult it needs to be to solve the work problem.
	FeeRate           float64            `json:"fee_rate"`           // Fee taken from the input leg of every swap.
	SystemBalances    map[string]float64 `json:"system_balances"`    // Opening balances of the system account.
}

// Default returns the parameters of the ZUX test network.
func Default() Genesis {
	return Genesis{
		Date:              time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		NetworkName:       "ZUX-Testnet",
		Version:           "1.0.0.0.0",
		InceptionYear:     2025,
		GenesisDifficulty: 1,
		Difficulty:        2,
		FeeRate:           0.003,
		SystemBalances: map[string]float64{
			"ZUX":  1_000_000_000,
			"USDZ": 5_000_000_000,
		},
	}
}

// =============================================================================

// Load opens and consumes the genesis file. Fields missing from the file
// keep their default value.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	genesis := Default()
	genesis.SystemBalances = nil

	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	if genesis.SystemBalances == nil {
		genesis.SystemBalances = Default().SystemBalances
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// Validate checks the parameters can produce a working ledger.
func (g Genesis) Validate() error {
	if g.NetworkName == "" {
		return fmt.Errorf("network name is required")
	}

	if g.Difficulty > 64 || g.GenesisDifficulty > 64 {
		return fmt.Errorf("difficulty must be at most 64 hex characters")
	}

	if math.IsNaN(g.FeeRate) || g.FeeRate < 0 || g.FeeRate >= 1 {
		return fmt.Errorf("fee rate %v out of range [0, 1)", g.FeeRate)
	}

	for currency, balance := range g.SystemBalances {
		if math.IsNaN(balance) || math.IsInf(balance, 0) || balance < 0 {
			return fmt.Errorf("system balance for %s is invalid: %v", currency, balance)
		}
	}

	return nil
}

// Class returns the block class implied by the network name.
func (g Genesis) Class() string {
	if g.NetworkName == "ZUX-Testnet" {
		return "Private"
	}

	return "Public"
}
