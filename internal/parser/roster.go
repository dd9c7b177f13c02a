package parser

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/chainring/backend/internal/models"
)

// RosterParser reads room lists exported from the external room roster.
// Metadata lines are kept; "R <id>" and any other line contribute one
// room id with no geometry.
type RosterParser struct{}

func NewRosterParser() *RosterParser {
	return &RosterParser{}
}

func (p *RosterParser) Name() string {
	return "roster"
}

// CanParse only claims roster files by extension; the format has no
// signature to sniff.
func (p *RosterParser) CanParse(filePath string) (bool, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	return ext == RosterExt || ext == ".sap", nil
}

func (p *RosterParser) Parse(filePath string) (*models.Drawing, error) {
	return parseFile(filePath, p.ParseReader)
}

func (p *RosterParser) ParseReader(r io.Reader) (*models.Drawing, error) {
	rooms, meta, err := ReadRoster(r)
	if err != nil {
		return nil, err
	}
	d := models.NewDrawing()
	d.Metadata = meta
	d.SetRooms(rooms)
	return d, nil
}

// ReadRoster returns one empty-polygon room per roster line.
func ReadRoster(r io.Reader) ([]*models.Room, map[string]string, error) {
	meta := make(map[string]string)
	var rooms []*models.Room
	add := func(id string) {
		if id != "" {
			rooms = append(rooms, &models.Room{ID: id})
		}
	}
	_, err := readRecords(r, roomCommands, func(cmd command, parts []string) error {
		if cmd != cmdRoom {
			return metadataRecord(cmd, parts, meta)
		}
		if len(parts) > 1 {
			add(parts[1])
		}
		return nil
	}, func(parts []string) error {
		add(parts[0])
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return rooms, meta, nil
}
