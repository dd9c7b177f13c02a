package parser

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/chainring/backend/internal/models"
)

// RoomParser reads the standalone room list. The result is a Drawing that
// carries only rooms and metadata.
type RoomParser struct{}

func NewRoomParser() *RoomParser {
	return &RoomParser{}
}

func (p *RoomParser) Name() string {
	return "rooms"
}

func (p *RoomParser) CanParse(filePath string) (bool, error) {
	if strings.EqualFold(filepath.Ext(filePath), RoomsExt) {
		return true, nil
	}
	lines, err := firstLines(filePath, 4)
	if err != nil {
		return false, err
	}
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "version:") {
		return false, nil
	}
	for _, l := range lines {
		if _, ok := roomCommands[splitRecord(l)[0]]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func (p *RoomParser) Parse(filePath string) (*models.Drawing, error) {
	return parseFile(filePath, p.ParseReader)
}

func (p *RoomParser) ParseReader(r io.Reader) (*models.Drawing, error) {
	rooms, meta, err := ReadRooms(r)
	if err != nil {
		return nil, err
	}
	d := models.NewDrawing()
	d.Metadata = meta
	d.SetRooms(rooms)
	return d, nil
}

// ReadRooms parses the room format and returns the rooms in file order.
func ReadRooms(r io.Reader) ([]*models.Room, map[string]string, error) {
	meta := make(map[string]string)
	var rooms []*models.Room
	_, err := readRecords(r, roomCommands, func(cmd command, parts []string) error {
		if cmd != cmdRoom {
			return metadataRecord(cmd, parts, meta)
		}
		room, err := parseRoomRecord(parts)
		if err != nil {
			return err
		}
		rooms = append(rooms, room)
		return nil
	}, nil)
	if err != nil {
		return nil, nil, err
	}
	return rooms, meta, nil
}
