// Package storage keeps uploaded source files (interchange drawings,
// drawing-format files, room lists) on local disk.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chainring/backend/internal/models"
	"github.com/google/uuid"
)

// File status values.
const (
	StatusUploaded  = "uploaded"
	StatusImporting = "importing"
	StatusImported  = "imported"
	StatusError     = "error"
)

// ErrNotFound is returned for unknown file ids.
var ErrNotFound = errors.New("file not found")

// Store defines the interface for file storage.
type Store interface {
	Save(name string, r io.Reader) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	Rename(id string, newName string) (*models.FileInfo, error)
	GetFilePath(id string) (string, error)
	SetStatus(id, status, format string) error
}

// indexFile holds the metadata of all stored files, so uploads survive a
// restart.
const indexFile = "files.json"

// LocalStore implements Store using the local filesystem. Files keep the
// extension of their original name so parsers can detect the format.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.FileInfo
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	s := &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.FileInfo),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// loadIndex reads the metadata written by a previous run. Entries whose
// file has disappeared are dropped.
func (s *LocalStore) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.uploadDir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file index: %w", err)
	}
	var files []*models.FileInfo
	if err := json.Unmarshal(data, &files); err != nil {
		return fmt.Errorf("decoding file index: %w", err)
	}
	for _, info := range files {
		if _, err := os.Stat(filepath.Join(s.uploadDir, storedName(info.ID, info.Name))); err != nil {
			continue
		}
		// An import that was running when the process stopped never finished.
		if info.Status == StatusImporting {
			info.Status = StatusUploaded
		}
		s.files[info.ID] = info
	}
	return nil
}

// persist writes the metadata index. Callers hold s.mu.
func (s *LocalStore) persist() error {
	files := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		files = append(files, info)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })

	data, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding file index: %w", err)
	}
	path := filepath.Join(s.uploadDir, indexFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing file index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing file index: %w", err)
	}
	return nil
}

func storedName(id, name string) string {
	return id + strings.ToLower(filepath.Ext(name))
}

// Save saves a file to the local filesystem.
func (s *LocalStore) Save(name string, r io.Reader) (*models.FileInfo, error) {
	name = filepath.Base(name)
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, storedName(id, name))

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		UploadedAt: time.Now(),
		Status:     StatusUploaded,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info
	if err := s.persist(); err != nil {
		return nil, err
	}

	c := *info
	return &c, nil
}

// SaveBytes saves an in-memory file.
func (s *LocalStore) SaveBytes(name string, data []byte) (*models.FileInfo, error) {
	return s.Save(name, bytes.NewReader(data))
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c := *info
	return &c, nil
}

// List returns the most recent files.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		c := *info
		list = append(list, &c)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

// Delete removes a file from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	path := filepath.Join(s.uploadDir, storedName(id, info.Name))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return s.persist()
}

// Rename updates the display name of a file. The stored extension is kept.
func (s *LocalStore) Rename(id string, newName string) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !strings.EqualFold(filepath.Ext(newName), filepath.Ext(info.Name)) {
		return nil, fmt.Errorf("renaming %s: extension must stay %q", id, filepath.Ext(info.Name))
	}

	info.Name = filepath.Base(newName)
	if err := s.persist(); err != nil {
		return nil, err
	}
	c := *info
	return &c, nil
}

// GetFilePath returns the absolute path to a file.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return filepath.Join(s.uploadDir, storedName(id, info.Name)), nil
}

// SetStatus records the import state and detected format of a file.
func (s *LocalStore) SetStatus(id, status, format string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	info.Status = status
	if format != "" {
		info.Format = format
	}
	if status == StatusImported {
		now := time.Now()
		info.ImportedAt = &now
	}
	return s.persist()
}
