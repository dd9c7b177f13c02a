package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chainring/backend/internal/models"
)

// FormatVersion is written on the first line of every drawing and room file.
const FormatVersion = 1

// File extensions of the internal formats.
const (
	DrawingExt = ".drawing"
	RoomsExt   = ".rooms"
	RosterExt  = ".roster"
)

// TimestampLayout is the "created:" value layout.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Writer serializes drawings and room lists to the internal formats.
type Writer struct {
	now func() time.Time
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithClock overrides the source of the "created:" timestamp.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{now: time.Now}
	for _, o := range opts {
		o(w)
	}
	return w
}

// RoomRecord renders one "R" line (no newline). The type tag is only
// written for rooms whose type was set explicitly.
func RoomRecord(r models.Room) string {
	var b strings.Builder
	b.WriteString("R ")
	b.WriteString(r.ID)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(len(r.Polygon)))
	for _, p := range r.Polygon {
		b.WriteByte(' ')
		b.WriteString(models.FormatFloat(p.X))
		b.WriteByte(' ')
		b.WriteString(models.FormatFloat(p.Y))
	}
	if r.Type.IsSet() {
		b.WriteByte(' ')
		b.WriteString(string(r.Type))
	}
	return b.String()
}

func (w *Writer) header(bw *bufio.Writer) {
	fmt.Fprintf(bw, "version: %d\n", FormatVersion)
	fmt.Fprintf(bw, "created: %s\n", w.now().Format(TimestampLayout))
}

func writeRoomBlock(bw *bufio.Writer, rooms []models.Room) {
	fmt.Fprintf(bw, "rooms: %d\n", len(rooms))
	for _, r := range rooms {
		bw.WriteString(RoomRecord(r))
		bw.WriteByte('\n')
	}
}

// WriteDrawing writes entities, bounds and rooms of d.
func (w *Writer) WriteDrawing(out io.Writer, d *models.Drawing) error {
	bw := bufio.NewWriter(out)
	w.header(bw)
	if d.ID != "" {
		fmt.Fprintf(bw, "id: %s\n", d.ID)
	}
	fmt.Fprintf(bw, "entities: %d\n", len(d.Entities))
	for _, e := range d.Entities {
		bw.WriteString(e.Record())
		bw.WriteByte('\n')
	}
	if b := d.Bounds(); !b.IsEmpty() {
		fmt.Fprintf(bw, "bounds: %s %s %s %s\n",
			models.FormatFloat(b.XMin), models.FormatFloat(b.YMin),
			models.FormatFloat(b.XMax), models.FormatFloat(b.YMax))
	}
	writeRoomBlock(bw, d.Rooms())
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing drawing: %w", err)
	}
	return nil
}

// WriteRooms writes the standalone room list.
func (w *Writer) WriteRooms(out io.Writer, rooms []models.Room) error {
	bw := bufio.NewWriter(out)
	w.header(bw)
	writeRoomBlock(bw, rooms)
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing rooms: %w", err)
	}
	return nil
}

// SaveDrawing writes d to path, replacing any existing file.
func (w *Writer) SaveDrawing(path string, d *models.Drawing) error {
	return saveFile(path, func(out io.Writer) error { return w.WriteDrawing(out, d) })
}

// SaveRooms writes rooms to path, replacing any existing file.
func (w *Writer) SaveRooms(path string, rooms []models.Room) error {
	return saveFile(path, func(out io.Writer) error { return w.WriteRooms(out, rooms) })
}

// saveFile reports write and close errors alike; a failure may leave a
// truncated file behind.
func saveFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing file: %w", err)
	}
	return nil
}
