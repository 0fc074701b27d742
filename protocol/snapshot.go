package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/minio/highwayhash"
	"github.com/viant/afs"

	"github.com/viant/dflow/clock"
)

// snapshotHashKey mirrors symtab's fixed highwayhash key: content hashing
// here has no security requirement, only a stable fingerprint to detect
// whether a cell's source changed since the snapshot was written.
var snapshotHashKey = []byte("FEDCBA9876543210FEDCBA9876543210")

// CellSnapshot is the persisted state for one cell: enough to restore the
// cell graph across a session restart without re-running any code
// (spec.md §6: "No user-value serialization").
type CellSnapshot struct {
	CellID                  CellID     `json:"cell_id"`
	LastExecutionTS         clock.Tick `json:"last_execution_ts"`
	SourceHash              uint64     `json:"source_hash"`
	StaticParentsOfLastLive []CellID   `json:"static_parents_of_last_live"`
}

// Snapshot is the full persisted session: one CellSnapshot per cell the
// snapshot was taken over, executed or not (a never-executed cell carries
// a zero LastExecutionTS).
type Snapshot struct {
	Cells []CellSnapshot `json:"cells"`
}

// HashSource computes the stable fingerprint CellSnapshot.SourceHash holds,
// letting a restored session tell whether a cell's text changed while the
// engine was not running.
func HashSource(src []byte) uint64 {
	h, err := highwayhash.New64(snapshotHashKey)
	if err != nil {
		panic(err)
	}
	_, _ = h.Write(src)
	return h.Sum64()
}

// Store writes a snapshot to URL via the afs abstract file storage service,
// so the caller can target local disk, an in-memory filesystem, or any
// other afs backend without new code (grounded on the teacher's
// analyzer.AnalyzeDir using afs.Service for source retrieval — here used
// for the symmetric write path instead).
func Store(ctx context.Context, fs afs.Service, url string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("protocol: marshal snapshot: %w", err)
	}
	if err := fs.Upload(ctx, url, os.FileMode(0644), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("protocol: upload snapshot to %s: %w", url, err)
	}
	return nil
}

// Load reads a snapshot previously written by Store.
func Load(ctx context.Context, fs afs.Service, url string) (Snapshot, error) {
	var snap Snapshot
	data, err := fs.DownloadWithURL(ctx, url)
	if err != nil {
		return snap, fmt.Errorf("protocol: download snapshot from %s: %w", url, err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("protocol: unmarshal snapshot: %w", err)
	}
	return snap, nil
}
