// Package checkpoint persists batch job progress to a local JSON file so an
// interrupted run can resume where it left off.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Record is the progress snapshot of one batch job.
type Record struct {
	TotalEntities     int    `json:"totalEntities"`
	ProcessedEntities int    `json:"processedEntities"`
	Succeeded         int    `json:"succeeded"`
	Failed            int    `json:"failed"`
	CurrentEntity     string `json:"currentEntity"`
	LastProcessedID   int64  `json:"lastProcessedId"`
}

// Store reads and writes the checkpoint file of a single named job.
type Store struct {
	path string
}

// NewStore binds a store to <dir>/<job>.checkpoint.json.
func NewStore(dir, job string) *Store {
	return &Store{path: filepath.Join(dir, job+".checkpoint.json")}
}

// Path returns the checkpoint file location.
func (s *Store) Path() string { return s.path }

// Load reads the checkpoint. A missing file returns (nil, false, nil). A
// corrupt file is logged and treated as absent so a damaged checkpoint can
// never block a run.
func (s *Store) Load() (*Record, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, eris.Wrapf(err, "checkpoint: read %s", s.path)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		zap.L().Warn("checkpoint file corrupt, starting fresh",
			zap.String("path", s.path),
			zap.Error(err))
		return nil, false, nil
	}

	return &rec, true, nil
}

// Save writes the full record through a temp file and rename so a crash
// mid-write cannot corrupt the previous checkpoint.
func (s *Store) Save(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return eris.Wrap(err, "checkpoint: marshal")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return eris.Wrapf(err, "checkpoint: write %s", tmp)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return eris.Wrapf(err, "checkpoint: rename %s", s.path)
	}

	return nil
}

// Clear removes the checkpoint file. Clearing an absent file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "checkpoint: remove %s", s.path)
	}
	return nil
}
