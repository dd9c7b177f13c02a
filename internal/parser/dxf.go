package parser

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chainring/backend/internal/models"
)

// DXFParser imports interchange (DXF) files.
type DXFParser struct {
	encodings []string
	logger    *slog.Logger
}

// DXFOption configures a DXFParser.
type DXFOption func(*DXFParser)

// WithEncodings replaces the candidate encodings probed before parsing.
func WithEncodings(encodings []string) DXFOption {
	return func(p *DXFParser) {
		if len(encodings) > 0 {
			p.encodings = encodings
		}
	}
}

// WithLogger sets the logger used for section and comment messages.
func WithLogger(l *slog.Logger) DXFOption {
	return func(p *DXFParser) { p.logger = l }
}

func NewDXFParser(opts ...DXFOption) *DXFParser {
	p := &DXFParser{
		encodings: DefaultEncodings,
		logger:    componentLogger("dxf"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *DXFParser) Name() string {
	return "dxf"
}

// CanParse accepts .dxf files and anything that opens with a comment or a
// section marker.
func (p *DXFParser) CanParse(filePath string) (bool, error) {
	if strings.EqualFold(filepath.Ext(filePath), ".dxf") {
		return true, nil
	}
	lines, err := firstLines(filePath, 2)
	if err != nil {
		return false, err
	}
	if len(lines) < 2 {
		return false, nil
	}
	return (lines[0] == "0" && lines[1] == "SECTION") || lines[0] == "999", nil
}

func (p *DXFParser) Parse(filePath string) (*models.Drawing, error) {
	d, err := parseFile(filePath, p.ParseReader)
	if err != nil {
		return nil, err
	}
	d.Filename = filepath.Base(filePath)
	return d, nil
}

// ParseReader detects the encoding of the whole input and then runs the
// state machine over its pairs.
func (p *DXFParser) ParseReader(r io.Reader) (*models.Drawing, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	enc, text, err := DetectEncoding(data, p.encodings)
	if err != nil {
		return nil, parseErr(0, "", err, err.Error())
	}
	p.logger.Debug("encoding detected", "encoding", enc)

	d, err := p.run(newPairReader(strings.NewReader(text)))
	if err != nil {
		return nil, err
	}
	d.Metadata["encoding"] = enc
	return d, nil
}

func (p *DXFParser) run(pairs *pairReader) (*models.Drawing, error) {
	d := models.NewDrawing()
	layers := newLayerPool()
	skipped := make(map[string]int)
	m := Machine{State: StateStart}

	for m.State != StateEOF {
		pair, ok, err := pairs.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		d.Lines++

		role := RoleOf(pair.Code)
		switch {
		case role == RoleLayer:
			pair.Value = layers.Intern(strings.ReplaceAll(pair.Value, " ", "_"))
		case role == RoleComment && m.State == StateStart:
			p.logger.Info("comment", "text", pair.Value)
		case role == RoleMarker && (m.State == StateInEntitiesSection || m.State == StateInEntity):
			if _, known := entityMarkers[pair.Value]; !known && pair.Value != "ENDSEC" {
				skipped[pair.Value]++
			}
		}

		prev := m.State
		next, e, err := Step(m, pair)
		if err != nil {
			return nil, parseErr(pairs.codeLine, strconv.Itoa(pair.Code)+" "+pair.Value, err, err.Error())
		}
		if e != nil {
			d.AddEntity(e)
		}
		switch {
		case prev == StateAwaitingSectionName:
			p.logger.Debug("section", "name", next.State, "line", pairs.codeLine)
		case next.State == StateStart && prev != StateStart:
			p.logger.Debug("end section", "name", prev, "line", pairs.codeLine)
		}
		m = next
	}

	if m.State == StateInEntity {
		p.logger.Warn("input ended inside an entity, dropping it", "kind", m.Acc.Kind)
	}
	if len(skipped) > 0 {
		p.logger.Debug("unsupported entities skipped", "kinds", skipped)
	}
	p.logger.Debug("import finished", "pairs", d.Lines, "entities", len(d.Entities), "layers", layers.Len())
	return d, nil
}

// pairReader yields (code, value) pairs two physical lines at a time.
type pairReader struct {
	lines    *bufio.Scanner
	line     int
	codeLine int
}

func newPairReader(r io.Reader) *pairReader {
	return &pairReader{lines: newLineScanner(r)}
}

// next returns ok=false once a full pair can no longer be read.
func (pr *pairReader) next() (Pair, bool, error) {
	if !pr.lines.Scan() {
		return Pair{}, false, pr.readErr()
	}
	pr.line++
	pr.codeLine = pr.line
	codeText := pr.lines.Text()
	if !pr.lines.Scan() {
		return Pair{}, false, pr.readErr()
	}
	pr.line++
	value := pr.lines.Text()

	code, err := strconv.Atoi(strings.TrimSpace(codeText))
	if err != nil {
		return Pair{}, false, parseErr(pr.codeLine, codeText, ErrMalformedStream, "group code is not an integer")
	}
	return Pair{Code: code, Value: strings.TrimSpace(value)}, true, nil
}

func (pr *pairReader) readErr() error {
	if err := pr.lines.Err(); err != nil {
		return parseErr(pr.line, "", ErrRead, err.Error())
	}
	return nil
}
