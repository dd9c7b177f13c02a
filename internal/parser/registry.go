package parser

import (
	"fmt"
	"strings"

	"github.com/chainring/backend/internal/models"
)

// Registry holds all available parsers and provides auto-detection.
type Registry struct {
	parsers []Parser
}

// NewRegistry returns the built-in parsers in detection order. The DXF
// options are passed to the interchange parser.
func NewRegistry(opts ...DXFOption) *Registry {
	return &Registry{
		parsers: []Parser{
			NewDXFParser(opts...),
			NewDrawingParser(),
			NewRoomParser(),
			NewRosterParser(),
		},
	}
}

// Names lists the registered parser names.
func (r *Registry) Names() []string {
	names := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		names[i] = p.Name()
	}
	return names
}

// FindParser detects the correct parser for a file.
func (r *Registry) FindParser(filePath string) (Parser, error) {
	for _, p := range r.parsers {
		can, err := p.CanParse(filePath)
		if err != nil {
			continue
		}
		if can {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filePath)
}

// GetParserByName returns a parser by its name.
func (r *Registry) GetParserByName(name string) (Parser, error) {
	name = strings.ToLower(name)
	for _, p := range r.parsers {
		if strings.ToLower(p.Name()) == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: parser %q", ErrUnsupportedFormat, name)
}

// Import parses filePath with the named parser, or the detected one when
// name is empty.
func (r *Registry) Import(filePath, name string) (*models.Drawing, Parser, error) {
	var (
		p   Parser
		err error
	)
	if name == "" {
		p, err = r.FindParser(filePath)
	} else {
		p, err = r.GetParserByName(name)
	}
	if err != nil {
		return nil, nil, err
	}
	d, err := p.Parse(filePath)
	if err != nil {
		return nil, p, err
	}
	return d, p, nil
}
