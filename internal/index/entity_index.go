// Package index keeps a DuckDB table of entity bounding boxes so that
// window and layer queries over large drawings do not scan the entity list.
package index

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chainring/backend/internal/models"
	"github.com/marcboeker/go-duckdb"
)

// Options tune the DuckDB instance.
type Options struct {
	Threads     int
	MemoryLimit string // e.g. "512MB"
}

// EntityIndex is a per-drawing DuckDB table of entity bounds.
type EntityIndex struct {
	db     *sql.DB
	dbPath string
	count  int
	logger *slog.Logger

	// limits concurrent queries
	querySem chan struct{}
}

// Open creates an index at dbPath, or in memory when dbPath is empty. An
// existing file at dbPath is replaced.
func Open(dbPath string, opts Options) (*EntityIndex, error) {
	logger := slog.Default().With("component", "entity-index")
	if dbPath != "" {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing stale index: %w", err)
		}
	}

	pragmas := []string{"PRAGMA enable_progress_bar=false"}
	if opts.Threads > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads=%d", opts.Threads))
	}
	if opts.MemoryLimit != "" {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit))
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE entities (
			idx   INTEGER PRIMARY KEY,
			kind  VARCHAR NOT NULL,
			layer VARCHAR NOT NULL,
			color INTEGER,
			xmin  DOUBLE NOT NULL,
			ymin  DOUBLE NOT NULL,
			xmax  DOUBLE NOT NULL,
			ymax  DOUBLE NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	logger.Debug("index opened", "path", dbPath)
	return &EntityIndex{
		db:       db,
		dbPath:   dbPath,
		logger:   logger,
		querySem: make(chan struct{}, 4),
	}, nil
}

// Load replaces the table contents with the entities of d, using the
// DuckDB appender.
func (ix *EntityIndex) Load(ctx context.Context, d *models.Drawing) error {
	start := time.Now()
	if _, err := ix.db.ExecContext(ctx, "DELETE FROM entities"); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}

	conn, err := ix.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn any) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}
		appender, err := duckdb.NewAppenderFromConn(dConn, "", "entities")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, e := range d.Entities {
			attrs := e.Attrs()
			var color any
			if attrs.Color != nil {
				color = int32(*attrs.Color)
			}
			b := e.Bounds()
			if err := appender.AppendRow(int32(i), string(e.Kind()), attrs.Layer, color,
				b.XMin, b.YMin, b.XMax, b.YMax); err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	ix.count = len(d.Entities)
	ix.logger.Debug("index loaded", "entities", ix.count, "elapsed", time.Since(start))
	return nil
}

// Len returns the number of indexed entities.
func (ix *EntityIndex) Len() int {
	return ix.count
}

// Query selects entities by window, layer and kind. Zero-valued fields do
// not filter.
type Query struct {
	Window *models.Bounds
	Layer  string
	Kind   models.EntityKind
	Limit  int
}

func (q Query) where() (string, []any) {
	var clauses []string
	var args []any
	if q.Window != nil {
		clauses = append(clauses, "xmin <= ? AND xmax >= ? AND ymin <= ? AND ymax >= ?")
		args = append(args, q.Window.XMax, q.Window.XMin, q.Window.YMax, q.Window.YMin)
	}
	if q.Layer != "" {
		clauses = append(clauses, "layer = ?")
		args = append(args, q.Layer)
	}
	if q.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(q.Kind))
	}
	return strings.Join(clauses, " AND "), args
}

func (ix *EntityIndex) acquire(ctx context.Context) (func(), error) {
	select {
	case ix.querySem <- struct{}{}:
		return func() { <-ix.querySem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Find returns the entity indexes matching q in drawing order.
func (ix *EntityIndex) Find(ctx context.Context, q Query) ([]int, error) {
	release, err := ix.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	query := "SELECT idx FROM entities"
	where, args := q.where()
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY idx"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	idx := make([]int, 0)
	for rows.Next() {
		var i int32
		if err := rows.Scan(&i); err != nil {
			return nil, err
		}
		idx = append(idx, int(i))
	}
	return idx, rows.Err()
}

// LayerStat summarizes one layer.
type LayerStat struct {
	Layer    string                    `json:"layer"`
	Entities int                       `json:"entities"`
	Counts   map[models.EntityKind]int `json:"counts"`
	Bounds   *models.Bounds            `json:"bounds,omitempty"`
}

// Layers returns per-layer counts and extents, ordered by layer name.
func (ix *EntityIndex) Layers(ctx context.Context) ([]LayerStat, error) {
	release, err := ix.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := ix.db.QueryContext(ctx, `
		SELECT layer, kind, COUNT(*), MIN(xmin), MIN(ymin), MAX(xmax), MAX(ymax)
		FROM entities
		GROUP BY layer, kind
		ORDER BY layer, kind
	`)
	if err != nil {
		return nil, fmt.Errorf("layer query failed: %w", err)
	}
	defer rows.Close()

	var stats []LayerStat
	for rows.Next() {
		var (
			layer, kind string
			n           int64
			b           models.Bounds
		)
		if err := rows.Scan(&layer, &kind, &n, &b.XMin, &b.YMin, &b.XMax, &b.YMax); err != nil {
			return nil, err
		}
		if len(stats) == 0 || stats[len(stats)-1].Layer != layer {
			stats = append(stats, LayerStat{Layer: layer, Counts: make(map[models.EntityKind]int)})
		}
		s := &stats[len(stats)-1]
		s.Entities += int(n)
		s.Counts[models.EntityKind(kind)] = int(n)
		if !b.IsEmpty() {
			merged := b
			if s.Bounds != nil {
				merged = s.Bounds.Enlarge(b)
			}
			s.Bounds = &merged
		}
	}
	return stats, rows.Err()
}

// Close closes the database and removes its file.
func (ix *EntityIndex) Close() error {
	err := ix.db.Close()
	if ix.dbPath != "" {
		os.Remove(ix.dbPath)
		os.Remove(ix.dbPath + ".wal")
	}
	return err
}
