package parser

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/chainring/backend/internal/models"
)

// DrawingParser reads the internal drawing format. Unlike the interchange
// reader it is strict: any unknown keyword aborts the import.
type DrawingParser struct {
	logger *slog.Logger
}

func NewDrawingParser() *DrawingParser {
	return &DrawingParser{logger: componentLogger("drawing-reader")}
}

func (p *DrawingParser) Name() string {
	return "drawing"
}

func (p *DrawingParser) CanParse(filePath string) (bool, error) {
	if strings.EqualFold(filepath.Ext(filePath), DrawingExt) {
		return true, nil
	}
	lines, err := firstLines(filePath, 4)
	if err != nil {
		return false, err
	}
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "version:") {
		return false, nil
	}
	for _, l := range lines[1:] {
		cmd := drawingCommands[splitRecord(l)[0]]
		if cmd == cmdID || cmd == cmdEntities || (cmd >= cmdLine && cmd <= cmdPolyline) {
			return true, nil
		}
	}
	return false, nil
}

func (p *DrawingParser) Parse(filePath string) (*models.Drawing, error) {
	d, err := parseFile(filePath, p.ParseReader)
	if err != nil {
		return nil, err
	}
	d.Filename = filepath.Base(filePath)
	return d, nil
}

func (p *DrawingParser) ParseReader(r io.Reader) (*models.Drawing, error) {
	d := models.NewDrawing()
	var rooms []*models.Room

	lines, err := readRecords(r, drawingCommands, func(cmd command, parts []string) error {
		switch cmd {
		case cmdVersion, cmdCreated, cmdEntities, cmdRooms:
			return metadataRecord(cmd, parts, d.Metadata)
		case cmdID:
			if len(parts) > 1 {
				d.ID = parts[1]
			}
		case cmdBounds, cmdScale:
			// derived data, recomputed on demand
		case cmdRoom:
			room, err := parseRoomRecord(parts)
			if err != nil {
				return err
			}
			rooms = append(rooms, room)
		default:
			e, err := parseEntityRecord(cmd, parts)
			if err != nil {
				return err
			}
			d.AddEntity(e)
		}
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}

	d.Lines = lines
	d.SetRooms(rooms)
	p.logger.Debug("drawing read", "lines", lines, "entities", len(d.Entities), "rooms", len(rooms))
	return d, nil
}
