package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/chainring/backend/internal/models"
)

// command is the handler selected by a record's first token.
type command int

const (
	cmdVersion command = iota + 1
	cmdID
	cmdCreated
	cmdEntities
	cmdRooms
	cmdBounds
	cmdScale
	cmdLine
	cmdCircle
	cmdArc
	cmdText
	cmdPolyline
	cmdRoom
)

var drawingCommands = map[string]command{
	"version:":  cmdVersion,
	"id:":       cmdID,
	"created:":  cmdCreated,
	"entities:": cmdEntities,
	"rooms:":    cmdRooms,
	"bounds:":   cmdBounds,
	"scale:":    cmdScale,
	"L":         cmdLine,
	"C":         cmdCircle,
	"A":         cmdArc,
	"T":         cmdText,
	"P":         cmdPolyline,
	"R":         cmdRoom,
}

var roomCommands = map[string]command{
	"version:": cmdVersion,
	"created:": cmdCreated,
	"rooms:":   cmdRooms,
	"R":        cmdRoom,
}

// readRecords scans r line by line, dispatching each non-blank line on its
// first token. A keyword missing from commands is fatal unless fallback is
// non-nil, in which case fallback handles the line. It returns the number of
// physical lines read.
func readRecords(r io.Reader, commands map[string]command,
	handle func(cmd command, parts []string) error,
	fallback func(parts []string) error,
) (int, error) {
	sc := newLineScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if n == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := splitRecord(line)

		var err error
		if cmd, ok := commands[parts[0]]; ok {
			err = handle(cmd, parts)
		} else if fallback != nil {
			err = fallback(parts)
		} else {
			err = fmt.Errorf("%w: %q", ErrUnknownCommand, parts[0])
		}
		if err != nil {
			return n, parseErr(n, line, err, err.Error())
		}
	}
	if err := sc.Err(); err != nil {
		return n, parseErr(n, "", ErrRead, err.Error())
	}
	return n, nil
}

// metadataRecord stores version/created/entities/rooms attributes.
func metadataRecord(cmd command, parts []string, meta map[string]string) error {
	key := strings.TrimSuffix(parts[0], ":")
	if cmd == cmdCreated {
		meta[key] = strings.TrimSpace(strings.Join(parts[1:], " "))
		return nil
	}
	if len(parts) < 2 {
		return fmt.Errorf("%w: %s has no value", ErrMissingField, parts[0])
	}
	meta[key] = parts[1]
	return nil
}

// parseRoomRecord reads "R <id> <n> x1 y1 ... xn yn [tag]".
func parseRoomRecord(parts []string) (*models.Room, error) {
	if len(parts) < 2 || parts[1] == "" {
		return nil, fmt.Errorf("%w: room id", ErrMissingField)
	}
	n, err := intField(parts, 2)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative vertex count %d", ErrInvalidNumber, n)
	}
	coords, err := floatFields(parts, 3, 2*n)
	if err != nil {
		return nil, err
	}
	room := &models.Room{ID: parts[1]}
	if n > 0 {
		room.Polygon = make([]models.Point, n)
		for i := range room.Polygon {
			room.Polygon[i] = models.Point{X: coords[2*i], Y: coords[2*i+1]}
		}
	}
	if tagAt := 3 + 2*n; tagAt < len(parts) {
		if typ, ok := models.ParseRoomType(parts[tagAt]); ok {
			room.Type = typ
		}
	}
	return room, nil
}

// parseEntityRecord reads one L/C/A/T/P record.
func parseEntityRecord(cmd command, parts []string) (models.Entity, error) {
	if len(parts) < 3 {
		return nil, fmt.Errorf("%w: color and layer", ErrMissingField)
	}
	attrs := models.Attributes{Color: parseColor(parts[1]), Layer: layerField(parts[2])}

	switch cmd {
	case cmdLine:
		v, err := floatFields(parts, 3, 4)
		if err != nil {
			return nil, err
		}
		return models.NewLine(v[0], v[1], v[2], v[3], attrs), nil
	case cmdCircle:
		v, err := floatFields(parts, 3, 3)
		if err != nil {
			return nil, err
		}
		return models.NewCircle(v[0], v[1], v[2], attrs), nil
	case cmdArc:
		v, err := floatFields(parts, 3, 5)
		if err != nil {
			return nil, err
		}
		return models.NewArc(v[0], v[1], v[2], v[3], v[4], attrs), nil
	case cmdText:
		v, err := floatFields(parts, 3, 2)
		if err != nil {
			return nil, err
		}
		text := strings.TrimSpace(strings.Join(parts[5:], " "))
		text = strings.ReplaceAll(text, models.SquaredEscape, models.Squared)
		return models.NewText(v[0], v[1], text, attrs), nil
	case cmdPolyline:
		n, err := intField(parts, 3)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: negative vertex count %d", ErrInvalidNumber, n)
		}
		xs, err := floatFields(parts, 4, n)
		if err != nil {
			return nil, err
		}
		ys, err := floatFields(parts, 4+n, n)
		if err != nil {
			return nil, err
		}
		return models.NewPolyline(xs, ys, attrs), nil
	}
	return nil, fmt.Errorf("%w: not an entity record", ErrUnknownCommand)
}
