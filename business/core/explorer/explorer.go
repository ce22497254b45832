// Package explorer writes snapshots of the ledger, pool and accounts to disk
// as JSON documents so the run can be inspected after the fact.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/zuxlabs/ammledger/foundation/blockchain/state"
	"go.uber.org/zap"
)

// latest is the name of the document that always holds the newest snapshot.
const latest = "latest.json"

// Snapshotter is the behavior required to capture a snapshot.
type Snapshotter interface {
	Snapshot() state.Snapshot
}

// Exporter stores snapshots in a folder, one file per chain height plus a
// copy of the newest one.
type Exporter struct {
	dir string
}

// New constructs an exporter writing to the specified folder.
func New(dir string) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Exporter{dir: dir}, nil
}

// Write stores the snapshot in a file labeled with the chain height and
// refreshes the latest copy. The path of the height file is returned.
func (exp *Exporter) Write(snap state.Snapshot) (string, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", err
	}

	path := exp.path(snap.Height)
	if err := writeFile(path, data); err != nil {
		return "", err
	}

	if err := writeFile(filepath.Join(exp.dir, latest), data); err != nil {
		return "", err
	}

	return path, nil
}

// Load reads back the snapshot taken at the specified height.
func (exp *Exporter) Load(height uint64) (state.Snapshot, error) {
	return Read(exp.path(height))
}

// Latest reads back the newest snapshot.
func (exp *Exporter) Latest() (state.Snapshot, error) {
	return Read(filepath.Join(exp.dir, latest))
}

// Run writes a snapshot on every interval until the context is cancelled. A
// final snapshot is written on the way out. Heights that were already
// written are skipped.
func (exp *Exporter) Run(ctx context.Context, log *zap.SugaredLogger, src Snapshotter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var written uint64
	export := func() {
		snap := src.Snapshot()
		if snap.Height == 0 || snap.Height == written {
			return
		}

		path, err := exp.Write(snap)
		if err != nil {
			log.Errorw("explorer", "status", "write failed", "ERROR", err)
			return
		}

		written = snap.Height
		log.Infow("explorer", "status", "snapshot written", "height", snap.Height, "path", path)
	}

	for {
		select {
		case <-ctx.Done():
			export()
			return
		case <-ticker.C:
			export()
		}
	}
}

// path forms the path to the snapshot for the specified height.
func (exp *Exporter) path(height uint64) string {
	name := strconv.FormatUint(height, 10)
	return filepath.Join(exp.dir, fmt.Sprintf("explorer-%s.json", name))
}

// =============================================================================

// Read decodes a snapshot document from disk.
func Read(path string) (state.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return state.Snapshot{}, err
	}
	defer f.Close()

	var snap state.Snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return state.Snapshot{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	return snap, nil
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
