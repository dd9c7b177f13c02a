package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chainring/backend/internal/index"
	"github.com/chainring/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var planDXF = strings.Join([]string{
	"0", "SECTION", "2", "ENTITIES",
	"0", "LINE", "8", "WALLS", "10", "0", "20", "0", "11", "10", "21", "5",
	"0", "LWPOLYLINE", "8", "CKPOPISM_PLOCHA", "10", "0", "20", "0", "10", "4", "20", "0", "10", "4", "20", "4",
	"0", "CIRCLE", "8", "FURNITURE", "10", "50", "20", "50", "40", "1",
	"0", "ENDSEC", "0", "EOF",
}, "\n") + "\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// waitFor polls until the session leaves the parsing state.
func waitFor(t *testing.T, m *Manager, id string) *models.ImportSession {
	t.Helper()
	for i := 0; i < 200; i++ {
		s, ok := m.GetSession(id)
		require.True(t, ok, "session not found")
		if s.Status == models.SessionStatusComplete || s.Status == models.SessionStatusError {
			return s
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("session %s did not finish", id)
	return nil
}

func TestSessionManager_Import(t *testing.T) {
	m := NewManager(Options{})
	defer m.Close()

	sess, err := m.StartSession(ImportRequest{FileID: "file-1", FileName: "plan.dxf", Path: writeFile(t, "plan.dxf", planDXF)})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusParsing, sess.Status)

	done := waitFor(t, m, sess.ID)
	require.Equal(t, models.SessionStatusComplete, done.Status, "errors: %v", done.Errors)
	assert.Equal(t, 3, done.EntityCount)
	assert.Equal(t, "dxf", done.ParserName)
	assert.Equal(t, "utf-8", done.Encoding)
	assert.Equal(t, 1, done.Counts[models.KindPolyline])
	assert.Equal(t, float64(100), done.Progress)

	err = m.View(sess.ID, func(d *models.Drawing) error {
		assert.Equal(t, "plan.dxf", d.Filename)
		assert.Equal(t, models.DefaultRoomIDPrefix, d.RoomPrefix())
		return nil
	})
	require.NoError(t, err)
}

func TestSessionManager_ImportError(t *testing.T) {
	m := NewManager(Options{})
	defer m.Close()

	bad := strings.Join([]string{"0", "SECTION", "2", "ENTITIES", "0", "LINE", "10", "abc", "0", "ENDSEC", "0", "EOF"}, "\n")
	sess, err := m.StartSession(ImportRequest{FileID: "f", Path: writeFile(t, "bad.dxf", bad), Parser: "dxf"})
	require.NoError(t, err)

	done := waitFor(t, m, sess.ID)
	require.Equal(t, models.SessionStatusError, done.Status)
	require.Len(t, done.Errors, 1)
	assert.Equal(t, "10 abc", done.Errors[0].Content)
	assert.Equal(t, 7, done.Errors[0].Line)

	err = m.View(sess.ID, func(*models.Drawing) error { return nil })
	assert.ErrorIs(t, err, ErrSessionNotReady)
	assert.ErrorIs(t, m.View("missing", func(*models.Drawing) error { return nil }), ErrSessionNotFound)
}

func TestSessionManager_StartRequiresPath(t *testing.T) {
	m := NewManager(Options{})
	_, err := m.StartSession(ImportRequest{FileID: "x"})
	assert.Error(t, err)
}

func TestSessionManager_LayerRules(t *testing.T) {
	m := NewManager(Options{
		Rules:      &models.LayerRules{Hidden: []string{"FURN*"}, Rename: map[string]string{"WALLS": "Walls"}},
		RoomPrefix: "R",
	})
	defer m.Close()

	sess, _ := m.StartSession(ImportRequest{Path: writeFile(t, "plan.dxf", planDXF)})
	done := waitFor(t, m, sess.ID)
	require.Equal(t, models.SessionStatusComplete, done.Status)
	assert.Equal(t, 2, done.EntityCount)

	require.NoError(t, m.View(sess.ID, func(d *models.Drawing) error {
		assert.Equal(t, "Walls", d.Entities[0].Attrs().Layer)
		assert.Equal(t, "R", d.RoomPrefix())
		return nil
	}))
}

func TestSessionManager_RoomPrefixOnDrawingWithRooms(t *testing.T) {
	m := NewManager(Options{RoomPrefix: "R"})
	defer m.Close()

	content := "version: 1\nentities: 1\nL None walls 0 0 1 1\nrooms: 2\nR SAP10001 0\nR R1 0\n"
	sess, _ := m.StartSession(ImportRequest{Path: writeFile(t, "plan.drawing", content)})
	done := waitFor(t, m, sess.ID)
	require.Equal(t, models.SessionStatusComplete, done.Status, "errors: %v", done.Errors)
	assert.Equal(t, 2, done.RoomCount)

	var id string
	require.NoError(t, m.Update(sess.ID, func(d *models.Drawing) error {
		id = d.AddRoom("", nil)
		return nil
	}))
	assert.True(t, strings.HasPrefix(id, "R"), "got %s", id)
	assert.NotEqual(t, "R1", id)
}

func TestSessionManager_QueryFollowsEdits(t *testing.T) {
	m := NewManager(Options{IndexDir: t.TempDir()})
	defer m.Close()

	sess, _ := m.StartSession(ImportRequest{Path: writeFile(t, "plan.dxf", planDXF)})
	require.Equal(t, models.SessionStatusComplete, waitFor(t, m, sess.ID).Status)

	ctx := context.Background()
	window := models.Bounds{XMin: -1, YMin: -1, XMax: 11, YMax: 6}
	idx, err := m.Query(ctx, sess.ID, index.Query{Window: &window})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, idx)

	idx, err = m.Query(ctx, sess.ID, index.Query{Layer: "FURNITURE"})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, idx)

	require.NoError(t, m.Update(sess.ID, func(d *models.Drawing) error {
		d.Rescale(100, 100, 1)
		return nil
	}))

	idx, err = m.Query(ctx, sess.ID, index.Query{Window: &window})
	require.NoError(t, err)
	assert.Empty(t, idx, "index rebuilt after rescale")

	layers, err := m.Layers(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, layers, 3)
	assert.Equal(t, "CKPOPISM_PLOCHA", layers[0].Layer)
}

func TestSessionManager_UpdateRefreshesCounts(t *testing.T) {
	m := NewManager(Options{})
	defer m.Close()

	sess, _ := m.StartSession(ImportRequest{Path: writeFile(t, "plan.dxf", planDXF)})
	waitFor(t, m, sess.ID)

	var roomID string
	require.NoError(t, m.Update(sess.ID, func(d *models.Drawing) error {
		var err error
		roomID, err = d.AddRoomFromPolyline(1, "")
		return err
	}))
	assert.Equal(t, "SAP10001", roomID)

	s, _ := m.GetSession(sess.ID)
	assert.Equal(t, 1, s.RoomCount)

	err := m.Update(sess.ID, func(d *models.Drawing) error {
		return d.DeleteRoom("nope")
	})
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

func TestSessionManager_SnapshotReuse(t *testing.T) {
	store, err := NewDrawingStore(t.TempDir())
	require.NoError(t, err)
	m := NewManager(Options{Snapshots: store})
	defer m.Close()

	path := writeFile(t, "plan.dxf", planDXF)
	sess, _ := m.StartSession(ImportRequest{FileID: "file-1", Path: path})
	waitFor(t, m, sess.ID)

	require.NoError(t, m.Update(sess.ID, func(d *models.Drawing) error {
		d.AddRoom("C1", []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}})
		return nil
	}))
	require.NoError(t, m.Save(sess.ID))
	assert.True(t, store.Has("file-1"))

	reopened, _ := m.StartSession(ImportRequest{FileID: "file-1", Path: path})
	done := waitFor(t, m, reopened.ID)
	assert.Equal(t, SnapshotParser, done.ParserName)
	assert.Equal(t, 1, done.RoomCount)

	fresh, _ := m.StartSession(ImportRequest{FileID: "file-1", Path: path, Fresh: true})
	done = waitFor(t, m, fresh.ID)
	assert.Equal(t, "dxf", done.ParserName)
	assert.Equal(t, 0, done.RoomCount)

	m.CloseFile("file-1")
	assert.False(t, store.Has("file-1"))
	_, ok := m.GetSession(sess.ID)
	assert.False(t, ok)
}

func TestSessionManager_SaveWithoutStore(t *testing.T) {
	m := NewManager(Options{})
	sess, _ := m.StartSession(ImportRequest{FileID: "f", Path: writeFile(t, "plan.dxf", planDXF)})
	waitFor(t, m, sess.ID)
	assert.Error(t, m.Save(sess.ID))
}

func TestSessionManager_Eviction(t *testing.T) {
	m := NewManager(Options{MaxSessions: 2})
	defer m.Close()
	path := writeFile(t, "plan.dxf", planDXF)

	first, _ := m.StartSession(ImportRequest{Path: path})
	waitFor(t, m, first.ID)
	second, _ := m.StartSession(ImportRequest{Path: path})
	waitFor(t, m, second.ID)
	time.Sleep(5 * time.Millisecond)
	m.TouchSession(first.ID)

	third, _ := m.StartSession(ImportRequest{Path: path})
	waitFor(t, m, third.ID)

	_, ok := m.GetSession(second.ID)
	assert.False(t, ok, "least recently used session evicted")
	_, ok = m.GetSession(first.ID)
	assert.True(t, ok)
}

func TestSessionManager_CleanupOldSessions(t *testing.T) {
	m := NewManager(Options{})
	sess, _ := m.StartSession(ImportRequest{Path: writeFile(t, "plan.dxf", planDXF)})
	waitFor(t, m, sess.ID)

	assert.Equal(t, 0, m.CleanupOldSessions(time.Minute), "recently used")

	m.mu.Lock()
	m.sessions[sess.ID].LastAccessed = time.Now().Add(-time.Hour)
	m.mu.Unlock()
	assert.Equal(t, 1, m.CleanupOldSessions(time.Minute))
	assert.False(t, m.TouchSession(sess.ID))
}

func TestDrawingStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDrawingStore(dir)
	require.NoError(t, err)

	d, err := store.Load("none")
	assert.NoError(t, err)
	assert.Nil(t, d)

	orig := models.NewDrawing()
	orig.Filename = "plan.dxf"
	orig.AddEntity(models.NewLine(0, 0, 1, 1, models.Attributes{Layer: "A"}))
	orig.AddRoom("", nil)
	require.NoError(t, store.Save("abc", orig))
	require.NoError(t, store.Save("orphan", orig))

	reopened, err := NewDrawingStore(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"abc", "orphan"}, reopened.List())

	got, err := reopened.Load("abc")
	require.NoError(t, err)
	assert.Equal(t, "plan.dxf", got.Filename)
	assert.Len(t, got.Entities, 1)
	assert.Equal(t, 1, got.RoomCount())

	assert.Equal(t, 1, reopened.CleanupOrphaned([]string{"abc"}))
	assert.False(t, reopened.Has("orphan"))

	require.NoError(t, reopened.Delete("abc"))
	require.NoError(t, reopened.Delete("abc"))
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), snapshotExt), "left %s", e.Name())
	}
}
