// Package session runs imports in the background and keeps the resulting
// drawings in memory while clients view and edit them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chainring/backend/internal/index"
	"github.com/chainring/backend/internal/models"
	"github.com/chainring/backend/internal/parser"
	"github.com/google/uuid"
)

// MaxSessions limits concurrent sessions to prevent memory exhaustion
const MaxSessions = 10

// SessionMaxAge is how long to keep completed sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// SnapshotParser is the parser name reported for drawings restored from the
// drawing store.
const SnapshotParser = "snapshot"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionNotReady = errors.New("session not ready")
)

// Options configure a Manager. Zero values fall back to defaults.
type Options struct {
	Registry    *parser.Registry
	Rules       *models.LayerRules
	RoomPrefix  string
	IndexDir    string // empty keeps indexes in memory
	Index       index.Options
	Snapshots   *DrawingStore
	MaxSessions int
}

// ImportRequest names the file a session imports.
type ImportRequest struct {
	FileID   string
	FileName string
	Path     string
	Parser   string // empty auto-detects
	Fresh    bool   // ignore a saved snapshot
}

// Manager handles active import sessions.
type Manager struct {
	sessions map[string]*State
	mu       sync.RWMutex
	opts     Options
	logger   *slog.Logger
}

// State holds the session metadata and the imported drawing.
type State struct {
	Session      *models.ImportSession
	LastAccessed time.Time

	// mu guards drawing; readers share it, room edits take it exclusively.
	mu      sync.RWMutex
	drawing *models.Drawing

	ixMu       sync.Mutex
	index      *index.EntityIndex
	indexStale atomic.Bool
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	if opts.Registry == nil {
		opts.Registry = parser.NewRegistry()
	}
	if opts.RoomPrefix == "" {
		opts.RoomPrefix = models.DefaultRoomIDPrefix
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = MaxSessions
	}
	return &Manager{
		sessions: make(map[string]*State),
		opts:     opts,
		logger:   slog.Default().With("component", "session"),
	}
}

// StartSession begins importing a file in the background.
func (m *Manager) StartSession(req ImportRequest) (*models.ImportSession, error) {
	if req.Path == "" {
		return nil, fmt.Errorf("start session: empty path")
	}
	m.cleanupOldSessionsIfNeeded()

	id := uuid.New().String()
	sess := models.NewImportSession(id, req.FileID)
	sess.FileName = req.FileName
	sess.Status = models.SessionStatusParsing

	state := &State{Session: sess, LastAccessed: time.Now()}

	m.mu.Lock()
	m.sessions[id] = state
	snapshot := copySession(sess)
	m.mu.Unlock()

	go m.runImport(id, req)

	return snapshot, nil
}

func (m *Manager) runImport(id string, req ImportRequest) {
	logger := m.logger.With("session", shortID(id))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("import panicked", "panic", r)
			m.fail(id, &models.ParseError{Reason: fmt.Sprintf("import panicked: %v", r)})
		}
	}()

	start := time.Now()
	logger.Info("starting import", "path", req.Path, "parser", req.Parser)
	m.setProgress(id, 10)

	d, parserName, err := m.load(req)
	if err != nil {
		logger.Error("import failed", "error", err)
		var pe *models.ParseError
		if !errors.As(err, &pe) {
			pe = &models.ParseError{Reason: err.Error(), Err: err}
		}
		m.fail(id, pe)
		return
	}
	m.setProgress(id, 90)

	if d.ID == "" {
		d.ID = id
	}
	if d.Filename == "" {
		d.Filename = req.FileName
	}

	elapsed := time.Since(start)
	logger.Info("import complete",
		"parser", parserName,
		"entities", len(d.Entities),
		"rooms", d.RoomCount(),
		"duration", elapsed.Round(time.Millisecond))

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return
	}
	state.drawing = d
	state.indexStale.Store(true)

	s := state.Session
	s.Status = models.SessionStatusComplete
	s.Progress = 100
	s.EntityCount = len(d.Entities)
	s.RoomCount = d.RoomCount()
	s.Counts = maps.Clone(d.Counts)
	s.ProcessingTimeMs = elapsed.Milliseconds()
	s.StartTime = start.UnixMilli()
	s.EndTime = time.Now().UnixMilli()
	s.ParserName = parserName
	s.Encoding = d.Metadata["encoding"]
}

// load returns the saved snapshot of the file when there is one, otherwise
// imports it and applies the layer rules and room prefix.
func (m *Manager) load(req ImportRequest) (*models.Drawing, string, error) {
	if store := m.opts.Snapshots; store != nil && req.FileID != "" && !req.Fresh {
		d, err := store.Load(req.FileID)
		if err != nil {
			m.logger.Warn("ignoring unreadable snapshot", "file", shortID(req.FileID), "error", err)
		} else if d != nil {
			return d, SnapshotParser, nil
		}
	}

	d, p, err := m.opts.Registry.Import(req.Path, req.Parser)
	if err != nil {
		return nil, "", err
	}
	if m.opts.Rules != nil {
		if dropped := d.ApplyLayerRules(m.opts.Rules); dropped > 0 {
			m.logger.Debug("hidden layers dropped entities", "count", dropped)
		}
	}
	d.SetRoomPrefix(m.opts.RoomPrefix)
	return d, p.Name(), nil
}

func (m *Manager) setProgress(id string, progress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.sessions[id]; ok {
		state.Session.Progress = progress
	}
}

func (m *Manager) fail(id string, pe *models.ParseError) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return
	}
	state.Session.Status = models.SessionStatusError
	state.Session.Errors = append(state.Session.Errors, *pe)
}

func copySession(s *models.ImportSession) *models.ImportSession {
	c := *s
	c.Counts = maps.Clone(s.Counts)
	c.Errors = append([]models.ParseError(nil), s.Errors...)
	return &c
}

// GetSession returns a copy of the session metadata.
func (m *Manager) GetSession(id string) (*models.ImportSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return copySession(state.Session), true
}

// TouchSession updates the LastAccessed timestamp for a session so cleanup
// leaves it alone.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

func (m *Manager) ready(id string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if state.Session.Status != models.SessionStatusComplete {
		return nil, fmt.Errorf("%w: %s is %s", ErrSessionNotReady, id, state.Session.Status)
	}
	state.LastAccessed = time.Now()
	return state, nil
}

// View runs fn with shared access to the drawing of a completed session.
// fn must not keep the drawing after it returns.
func (m *Manager) View(id string, fn func(d *models.Drawing) error) error {
	state, err := m.ready(id)
	if err != nil {
		return err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return fn(state.drawing)
}

// Update runs fn with exclusive access to the drawing and refreshes the
// session counters afterwards. Entity queries rebuild their index on next use.
func (m *Manager) Update(id string, fn func(d *models.Drawing) error) error {
	state, err := m.ready(id)
	if err != nil {
		return err
	}

	state.mu.Lock()
	err = fn(state.drawing)
	entities, rooms := len(state.drawing.Entities), state.drawing.RoomCount()
	counts := maps.Clone(state.drawing.Counts)
	state.indexStale.Store(true)
	state.mu.Unlock()

	m.mu.Lock()
	state.Session.EntityCount = entities
	state.Session.RoomCount = rooms
	state.Session.Counts = counts
	m.mu.Unlock()
	return err
}

// indexFor returns the entity index of state, building it when the drawing
// changed since the last build. The caller holds state.mu for reading.
func (m *Manager) indexFor(ctx context.Context, id string, state *State) (*index.EntityIndex, error) {
	state.ixMu.Lock()
	defer state.ixMu.Unlock()

	if state.index == nil {
		path := ""
		if m.opts.IndexDir != "" {
			path = filepath.Join(m.opts.IndexDir, "drawing_"+id+".duckdb")
		}
		ix, err := index.Open(path, m.opts.Index)
		if err != nil {
			return nil, err
		}
		state.index = ix
		state.indexStale.Store(true)
	}
	if state.indexStale.Load() {
		if err := state.index.Load(ctx, state.drawing); err != nil {
			return nil, err
		}
		state.indexStale.Store(false)
	}
	return state.index, nil
}

// Query runs an entity query against the drawing of a session.
func (m *Manager) Query(ctx context.Context, id string, q index.Query) ([]int, error) {
	state, err := m.ready(id)
	if err != nil {
		return nil, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()

	ix, err := m.indexFor(ctx, id, state)
	if err != nil {
		return nil, err
	}
	return ix.Find(ctx, q)
}

// Layers summarizes the layers of the drawing of a session.
func (m *Manager) Layers(ctx context.Context, id string) ([]index.LayerStat, error) {
	state, err := m.ready(id)
	if err != nil {
		return nil, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()

	ix, err := m.indexFor(ctx, id, state)
	if err != nil {
		return nil, err
	}
	return ix.Layers(ctx)
}

// Save stores a snapshot of the session's drawing so that reopening the file
// restores the current rooms.
func (m *Manager) Save(id string) error {
	if m.opts.Snapshots == nil {
		return errors.New("save: no snapshot store configured")
	}
	state, err := m.ready(id)
	if err != nil {
		return err
	}
	m.mu.RLock()
	fileID := state.Session.FileID
	m.mu.RUnlock()
	if fileID == "" {
		return fmt.Errorf("save: session %s has no source file", id)
	}

	state.mu.RLock()
	defer state.mu.RUnlock()
	return m.opts.Snapshots.Save(fileID, state.drawing)
}

// CloseSession drops a session and releases its index.
func (m *Manager) CloseSession(id string) bool {
	m.mu.Lock()
	state, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		m.release(state)
	}
	return ok
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseFile drops every session of fileID and its snapshot. It is called when
// the source file is deleted.
func (m *Manager) CloseFile(fileID string) {
	m.mu.Lock()
	var closed []*State
	for id, state := range m.sessions {
		if state.Session.FileID == fileID {
			closed = append(closed, state)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, state := range closed {
		m.release(state)
	}
	if m.opts.Snapshots != nil {
		if err := m.opts.Snapshots.Delete(fileID); err != nil {
			m.logger.Warn("failed to delete snapshot", "file", shortID(fileID), "error", err)
		}
	}
}

func (m *Manager) release(state *State) {
	state.ixMu.Lock()
	defer state.ixMu.Unlock()
	if state.index != nil {
		if err := state.index.Close(); err != nil {
			m.logger.Warn("closing index", "error", err)
		}
		state.index = nil
	}
}

func finished(s *models.ImportSession) bool {
	return s.Status == models.SessionStatusComplete || s.Status == models.SessionStatusError
}

// cleanupOldSessionsIfNeeded removes the least recently used finished
// sessions when at capacity.
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	var released []*State
	for len(m.sessions) >= m.opts.MaxSessions {
		var oldestID string
		var oldest time.Time
		for id, state := range m.sessions {
			if !finished(state.Session) {
				continue
			}
			if oldestID == "" || state.LastAccessed.Before(oldest) {
				oldestID, oldest = id, state.LastAccessed
			}
		}
		if oldestID == "" {
			break
		}
		released = append(released, m.sessions[oldestID])
		delete(m.sessions, oldestID)
		m.logger.Info("evicted session", "session", shortID(oldestID))
	}
	m.mu.Unlock()

	for _, state := range released {
		m.release(state)
	}
}

// CleanupOldSessions removes finished sessions not accessed within maxAge
// (SessionMaxAge when zero), but keeps sessions that have been accessed
// within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = SessionMaxAge
	}
	cutoff := time.Now().Add(-max(maxAge, SessionKeepAliveWindow))

	m.mu.Lock()
	var released []*State
	for id, state := range m.sessions {
		if !finished(state.Session) || state.LastAccessed.After(cutoff) {
			continue
		}
		released = append(released, state)
		delete(m.sessions, id)
		m.logger.Info("cleaned up aged session",
			"session", shortID(id),
			"idle", time.Since(state.LastAccessed).Round(time.Second))
	}
	m.mu.Unlock()

	for _, state := range released {
		m.release(state)
	}
	return len(released)
}

// Close releases every session.
func (m *Manager) Close() {
	m.mu.Lock()
	states := make([]*State, 0, len(m.sessions))
	for _, state := range m.sessions {
		states = append(states, state)
	}
	m.sessions = make(map[string]*State)
	m.mu.Unlock()

	for _, state := range states {
		m.release(state)
	}
}
