package ingest

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sliink/capture/internal/model"
)

// Snapshot is the fully decoded, immutable record set an analysis run
// operates on.
type Snapshot struct {
	Records []model.LogRecord
	Stats   model.ScanStats
}

// LoadSnapshot walks dir for stored record objects and decodes each one
// exactly once. Malformed files are skipped and counted, never fatal: a
// single bad object must not abort a batch scan. Records persisted without
// an id or host get both recovered from their key path.
func LoadSnapshot(dir string) (Snapshot, error) {
	var snap Snapshot

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		snap.Stats.Scanned++

		data, err := os.ReadFile(path)
		if err != nil {
			snap.Stats.Malformed++
			return nil
		}

		var rec model.LogRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			snap.Stats.Malformed++
			return nil
		}

		fillFromPath(&rec, path)
		snap.Records = append(snap.Records, rec)
		snap.Stats.Parsed++
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// fillFromPath recovers the host partition from the parent directory and
// the record id from the object file name when the body lacks them.
func fillFromPath(rec *model.LogRecord, path string) {
	if rec.Host == "" {
		rec.Host = filepath.Base(filepath.Dir(path))
	}
	if rec.ID != "" {
		return
	}
	name := strings.TrimSuffix(filepath.Base(path), ".json")
	for _, kind := range []string{"_request", "_response"} {
		if strings.HasSuffix(name, kind) {
			rec.ID = strings.TrimSuffix(name, kind)
			return
		}
	}
	rec.ID = name
}
