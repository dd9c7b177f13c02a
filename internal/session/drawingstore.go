package session

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chainring/backend/internal/models"
	"github.com/chainring/backend/internal/parser"
)

const (
	snapshotPrefix = "file_"
	snapshotExt    = ".crds"
)

// shortID safely truncates an ID for logging.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// DrawingStore keeps msgpack snapshots of imported drawings keyed by the
// source file ID, so reopening a recent file skips the import and keeps the
// rooms edited since.
type DrawingStore struct {
	dir    string
	mu     sync.RWMutex
	cache  map[string]string // fileID -> snapshot path
	logger *slog.Logger
}

// NewDrawingStore opens (creating if needed) a snapshot directory and
// indexes the snapshots already in it.
func NewDrawingStore(dir string) (*DrawingStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	s := &DrawingStore{
		dir:    dir,
		cache:  make(map[string]string),
		logger: slog.Default().With("component", "drawing-store"),
	}
	s.scanExisting()
	return s, nil
}

func (s *DrawingStore) scanExisting() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("failed to scan snapshot directory", "error", err)
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || filepath.Ext(name) != snapshotExt {
			continue
		}
		fileID := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotExt)
		if fileID == "" {
			continue
		}
		s.cache[fileID] = filepath.Join(s.dir, name)
	}
	s.logger.Info("scanned snapshots", "count", len(s.cache))
}

// Path returns where the snapshot of fileID is stored.
func (s *DrawingStore) Path(fileID string) string {
	return filepath.Join(s.dir, snapshotPrefix+fileID+snapshotExt)
}

// Has reports whether a snapshot exists for fileID.
func (s *DrawingStore) Has(fileID string) bool {
	s.mu.RLock()
	_, ok := s.cache[fileID]
	s.mu.RUnlock()
	if ok {
		return true
	}

	if _, err := os.Stat(s.Path(fileID)); err == nil {
		s.mu.Lock()
		s.cache[fileID] = s.Path(fileID)
		s.mu.Unlock()
		return true
	}
	return false
}

// Load decodes the snapshot of fileID. It returns nil, nil when there is none.
func (s *DrawingStore) Load(fileID string) (*models.Drawing, error) {
	if !s.Has(fileID) {
		return nil, nil
	}

	f, err := os.Open(s.Path(fileID))
	if os.IsNotExist(err) {
		s.mu.Lock()
		delete(s.cache, fileID)
		s.mu.Unlock()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	d, err := parser.DecodeSnapshot(f)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("loaded snapshot", "file", shortID(fileID), "entities", len(d.Entities))
	return d, nil
}

// Save writes the snapshot of d for fileID, replacing any previous one. The
// file is written to a temporary name first and renamed into place.
func (s *DrawingStore) Save(fileID string, d *models.Drawing) error {
	var buf bytes.Buffer
	if err := parser.EncodeSnapshot(&buf, d); err != nil {
		return err
	}

	path := s.Path(fileID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing snapshot: %w", err)
	}

	s.mu.Lock()
	s.cache[fileID] = path
	s.mu.Unlock()
	s.logger.Debug("saved snapshot", "file", shortID(fileID), "bytes", buf.Len())
	return nil
}

// Delete removes the snapshot of fileID, if any.
func (s *DrawingStore) Delete(fileID string) error {
	s.mu.Lock()
	delete(s.cache, fileID)
	s.mu.Unlock()

	if err := os.Remove(s.Path(fileID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	return nil
}

// List returns the file IDs that have snapshots.
func (s *DrawingStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.cache))
	for id := range s.cache {
		ids = append(ids, id)
	}
	return ids
}

// CleanupOrphaned removes snapshots whose source file is gone.
func (s *DrawingStore) CleanupOrphaned(fileIDs []string) int {
	valid := make(map[string]bool, len(fileIDs))
	for _, id := range fileIDs {
		valid[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, path := range s.cache {
		if valid[id] {
			continue
		}
		os.Remove(path)
		delete(s.cache, id)
		removed++
		s.logger.Info("removed orphaned snapshot", "file", shortID(id))
	}
	return removed
}
