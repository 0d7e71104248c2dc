package index

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrSnapshotMismatch is returned when the vector file and the metadata file
// on disk do not describe the same index: one is missing, counts differ, or
// the record ids disagree. The caller's remedy is a full rebuild.
var ErrSnapshotMismatch = errors.New("index snapshot files are inconsistent")

// vectorSnapshot is the gob-encoded payload of the vector file. It carries
// the record ids alongside the vectors so that the pairing with the metadata
// file can be verified at load time.
type vectorSnapshot struct {
	Dim     int
	IDs     []int64
	Vectors [][]float64
}

// saveLocked writes both snapshot files. Each file is written to a temporary
// sibling and renamed into place, so a crash mid-write leaves the previous
// file intact. A crash between the two renames leaves files from different
// generations; the id cross-check in loadSnapshot catches that.
//
// Callers must hold f.mu.
func (f *Flat) saveLocked() error {
	ids := make([]int64, len(f.meta))
	for i, e := range f.meta {
		ids[i] = e.ID
	}

	if err := writeAtomic(f.indexPath, func(file *os.File) error {
		return gob.NewEncoder(file).Encode(vectorSnapshot{
			Dim:     f.dim,
			IDs:     ids,
			Vectors: f.vectors,
		})
	}); err != nil {
		return fmt.Errorf("index save: %w", err)
	}

	if err := writeAtomic(f.metaPath, func(file *os.File) error {
		enc := json.NewEncoder(file)
		enc.SetIndent("", "  ")
		return enc.Encode(f.meta)
	}); err != nil {
		return fmt.Errorf("index save: %w", err)
	}
	return nil
}

// loadSnapshot reads and cross-checks both snapshot files. Any inconsistency
// between them yields ErrSnapshotMismatch; a fully absent snapshot yields
// os.ErrNotExist.
func (f *Flat) loadSnapshot() ([][]float64, []Entry, error) {
	vecFile, vecErr := os.Open(f.indexPath)
	metaData, metaErr := os.ReadFile(f.metaPath)

	vecMissing := errors.Is(vecErr, os.ErrNotExist)
	metaMissing := errors.Is(metaErr, os.ErrNotExist)
	switch {
	case vecMissing && metaMissing:
		return nil, nil, os.ErrNotExist
	case vecMissing || metaMissing:
		if vecFile != nil {
			vecFile.Close()
		}
		return nil, nil, ErrSnapshotMismatch
	case vecErr != nil:
		return nil, nil, fmt.Errorf("index load: %w", vecErr)
	case metaErr != nil:
		vecFile.Close()
		return nil, nil, fmt.Errorf("index load: %w", metaErr)
	}
	defer vecFile.Close()

	var snap vectorSnapshot
	if err := gob.NewDecoder(vecFile).Decode(&snap); err != nil {
		return nil, nil, fmt.Errorf("index load: decode vectors: %w", err)
	}
	var meta []Entry
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, nil, fmt.Errorf("index load: decode metadata: %w", err)
	}

	if snap.Dim != f.dim {
		return nil, nil, fmt.Errorf("%w: snapshot dim %d, embedder dim %d", ErrSnapshotMismatch, snap.Dim, f.dim)
	}
	if len(snap.Vectors) != len(meta) || len(snap.IDs) != len(meta) {
		return nil, nil, fmt.Errorf("%w: %d vectors, %d entries", ErrSnapshotMismatch, len(snap.Vectors), len(meta))
	}
	for i, e := range meta {
		if snap.IDs[i] != e.ID {
			return nil, nil, fmt.Errorf("%w: id mismatch at position %d", ErrSnapshotMismatch, i)
		}
	}
	return snap.Vectors, meta, nil
}

// writeAtomic writes a file via a temporary sibling plus rename.
func writeAtomic(path string, write func(*os.File) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
