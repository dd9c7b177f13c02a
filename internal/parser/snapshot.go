package parser

import (
	"bytes"
	"fmt"
	"io"

	"github.com/chainring/backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// SnapshotMagic identifies a msgpack drawing snapshot.
	SnapshotMagic = "CRDS"
	// SnapshotVersion is bumped on incompatible layout changes.
	SnapshotVersion uint8 = 1
)

// snapshot is the msgpack layout of a whole drawing, including the room
// counter so ids stay unique after a reload.
type snapshot struct {
	Magic       string             `msgpack:"magic"`
	Version     uint8              `msgpack:"version"`
	ID          string             `msgpack:"id,omitempty"`
	Filename    string             `msgpack:"filename,omitempty"`
	Lines       int                `msgpack:"lines"`
	Metadata    map[string]string  `msgpack:"metadata,omitempty"`
	Entities    []models.EntityDTO `msgpack:"entities"`
	Rooms       []models.Room      `msgpack:"rooms"`
	RoomPrefix  string             `msgpack:"room_prefix"`
	RoomCounter int                `msgpack:"room_counter"`
}

// EncodeSnapshot writes d as msgpack.
func EncodeSnapshot(w io.Writer, d *models.Drawing) error {
	s := snapshot{
		Magic:       SnapshotMagic,
		Version:     SnapshotVersion,
		ID:          d.ID,
		Filename:    d.Filename,
		Lines:       d.Lines,
		Metadata:    d.Metadata,
		Entities:    models.ToDTOs(d.Entities),
		Rooms:       d.Rooms(),
		RoomPrefix:  d.RoomPrefix(),
		RoomCounter: d.RoomCounter(),
	}
	if err := msgpack.NewEncoder(w).Encode(&s); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// MarshalSnapshot is EncodeSnapshot into a byte slice.
func MarshalSnapshot(d *models.Drawing) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot rebuilds a drawing written by EncodeSnapshot.
func DecodeSnapshot(r io.Reader) (*models.Drawing, error) {
	var s snapshot
	if err := msgpack.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if s.Magic != SnapshotMagic {
		return nil, fmt.Errorf("decoding snapshot: bad magic %q", s.Magic)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("decoding snapshot: unsupported version %d", s.Version)
	}

	d := models.NewDrawing()
	d.ID = s.ID
	d.Filename = s.Filename
	d.Lines = s.Lines
	if s.Metadata != nil {
		d.Metadata = s.Metadata
	}
	for i, dto := range s.Entities {
		e, err := dto.Entity()
		if err != nil {
			return nil, fmt.Errorf("decoding snapshot: entity %d: %w", i, err)
		}
		d.AddEntity(e)
	}
	rooms := make([]*models.Room, len(s.Rooms))
	for i := range s.Rooms {
		rooms[i] = &s.Rooms[i]
	}
	if s.RoomPrefix != "" {
		d.SetRoomPrefix(s.RoomPrefix)
	}
	d.SetRooms(rooms)
	d.AdvanceRoomCounter(s.RoomCounter)
	return d, nil
}
