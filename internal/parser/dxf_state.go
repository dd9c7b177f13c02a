package parser

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/chainring/backend/internal/models"
)

// ReaderState is a state of the interchange reader.
type ReaderState int

const (
	StateStart ReaderState = iota
	StateAwaitingSectionName
	StateInHeaderSection
	StateInTablesSection
	StateInBlocksSection
	StateInBlockBody
	StateInEntitiesSection
	StateInEntity
	StateInObjectsSection
	StateInClassesSection
	StateEOF
)

var stateNames = [...]string{
	StateStart:               "start",
	StateAwaitingSectionName: "awaiting-section-name",
	StateInHeaderSection:     "header",
	StateInTablesSection:     "tables",
	StateInBlocksSection:     "blocks",
	StateInBlockBody:         "block",
	StateInEntitiesSection:   "entities",
	StateInEntity:            "entity",
	StateInObjectsSection:    "objects",
	StateInClassesSection:    "classes",
	StateEOF:                 "eof",
}

func (s ReaderState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

var sectionStates = map[string]ReaderState{
	"HEADER":   StateInHeaderSection,
	"TABLES":   StateInTablesSection,
	"BLOCKS":   StateInBlocksSection,
	"ENTITIES": StateInEntitiesSection,
	"OBJECTS":  StateInObjectsSection,
	"CLASSES":  StateInClassesSection,
}

var entityMarkers = map[string]models.EntityKind{
	"LINE":       models.KindLine,
	"CIRCLE":     models.KindCircle,
	"ARC":        models.KindArc,
	"LWPOLYLINE": models.KindPolyline,
	"TEXT":       models.KindText,
	"MTEXT":      models.KindText,
}

// Pair is one (group code, value) record.
type Pair struct {
	Code  int
	Value string
}

// Accumulator collects the fields of the entity being read. Appends to the
// polyline buffers always copy so earlier Machine values stay valid.
type Accumulator struct {
	Kind                   models.EntityKind
	X1, Y1, X2, Y2         float64
	Radius, Angle1, Angle2 float64
	Color                  *int
	Layer                  string
	Mirror                 int
	Text                   string
	Xs, Ys                 []float64
}

func newAccumulator(kind models.EntityKind) Accumulator {
	return Accumulator{Kind: kind, Mirror: 1}
}

// Machine is the complete reader state. It is a plain value: Step never
// mutates its input.
type Machine struct {
	State ReaderState
	Block string
	Acc   Accumulator
}

// Step feeds one pair to the machine. It returns the next machine, the
// entity completed by this pair (if any) and a fatal error. Unrecognized
// codes and unsupported entity kinds are skipped.
func Step(m Machine, p Pair) (Machine, models.Entity, error) {
	role := RoleOf(p.Code)
	marker := role == RoleMarker

	switch m.State {
	case StateStart:
		switch {
		case marker && p.Value == "SECTION":
			m.State = StateAwaitingSectionName
		case marker && p.Value == "EOF":
			m.State = StateEOF
		case role == RoleComment:
		default:
			return m, nil, fmt.Errorf("%w: unexpected code %d (%q) outside a section", ErrMalformedStream, p.Code, p.Value)
		}

	case StateAwaitingSectionName:
		if role != RoleName {
			return m, nil, fmt.Errorf("%w: expected section name, got code %d", ErrMalformedStream, p.Code)
		}
		next, ok := sectionStates[p.Value]
		if !ok {
			return m, nil, fmt.Errorf("%w: unknown section %q", ErrMalformedStream, p.Value)
		}
		m.State = next

	case StateInHeaderSection, StateInTablesSection, StateInObjectsSection, StateInClassesSection:
		if marker && p.Value == "ENDSEC" {
			m.State = StateStart
		}

	case StateInBlocksSection:
		switch {
		case marker && p.Value == "BLOCK":
			m.State = StateInBlockBody
			m.Block = ""
		case marker && p.Value == "ENDSEC":
			m.State = StateStart
		}

	case StateInBlockBody:
		switch {
		case marker && p.Value == "ENDBLK":
			m.State = StateInBlocksSection
		case role == RoleName:
			m.Block = p.Value
		}

	case StateInEntitiesSection:
		if marker {
			m = enterEntity(m, p.Value)
		}

	case StateInEntity:
		if marker {
			e := m.Acc.flush()
			return enterEntity(m, p.Value), e, nil
		}
		acc, err := m.Acc.apply(role, p.Value)
		if err != nil {
			return m, nil, err
		}
		m.Acc = acc

	case StateEOF:
	}
	return m, nil, nil
}

// enterEntity evaluates a marker seen in the entities section.
func enterEntity(m Machine, value string) Machine {
	if kind, ok := entityMarkers[value]; ok {
		m.State = StateInEntity
		m.Acc = newAccumulator(kind)
		return m
	}
	m.Acc = Accumulator{}
	if value == "ENDSEC" {
		m.State = StateStart
	} else {
		m.State = StateInEntitiesSection
	}
	return m
}

func (a Accumulator) apply(role FieldRole, value string) (Accumulator, error) {
	var err error
	switch role {
	case RoleLayer:
		a.Layer = models.LayerName(value)
	case RoleX1:
		if a.X1, err = parseCoord(value); err == nil && a.Kind == models.KindPolyline {
			a.Xs = append(slices.Clip(a.Xs), a.X1)
		}
	case RoleY1:
		if a.Y1, err = parseCoord(value); err == nil && a.Kind == models.KindPolyline {
			a.Ys = append(slices.Clip(a.Ys), a.Y1)
		}
	case RoleX2:
		a.X2, err = parseCoord(value)
	case RoleY2:
		a.Y2, err = parseCoord(value)
	case RoleRadius:
		a.Radius, err = parseCoord(value)
	case RoleAngle1:
		a.Angle1, err = parseCoord(value)
	case RoleAngle2:
		a.Angle2, err = parseCoord(value)
	case RoleColor:
		a.Color = parseColor(value)
	case RoleMirror:
		if f, perr := strconv.ParseFloat(strings.TrimSpace(value), 64); perr == nil {
			a.Mirror = int(f)
		}
	case RolePrimaryText:
		a.Text = value
	}
	return a, err
}

// flush materializes the accumulated fields. The interchange y axis points
// the other way, so every y is negated.
func (a Accumulator) flush() models.Entity {
	attrs := models.Attributes{Color: a.Color, Layer: a.Layer}
	switch a.Kind {
	case models.KindLine:
		return models.NewLine(a.X1, -a.Y1, a.X2, -a.Y2, attrs)
	case models.KindCircle:
		x := a.X1
		if a.Mirror == -1 {
			x = -x
		}
		return models.NewCircle(x, -a.Y1, a.Radius, attrs)
	case models.KindArc:
		return models.NewArc(a.X1, -a.Y1, a.Radius, a.Angle1, a.Angle2, attrs)
	case models.KindPolyline:
		ys := make([]float64, len(a.Ys))
		for i, y := range a.Ys {
			ys[i] = -y
		}
		return models.NewPolyline(a.Xs, ys, attrs)
	case models.KindText:
		text := strings.ReplaceAll(a.Text, `\U+00B2`, models.Squared)
		return models.NewText(a.X1, -a.Y1, text, attrs)
	}
	return nil
}

func parseCoord(value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, value)
	}
	return f, nil
}

// parseColor returns nil for anything that is not an integer.
func parseColor(value string) *int {
	c, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return nil
	}
	return &c
}
