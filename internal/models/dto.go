package models

import (
	"fmt"
	"slices"
)

// EntityDTO is the flat wire form of an entity, used by the HTTP API and
// the msgpack snapshot. Only the fields relevant to Kind are populated.
type EntityDTO struct {
	Kind   EntityKind `json:"kind" msgpack:"k"`
	Color  *int       `json:"color,omitempty" msgpack:"c,omitempty"`
	Layer  string     `json:"layer,omitempty" msgpack:"l,omitempty"`
	X      float64    `json:"x,omitempty" msgpack:"x,omitempty"`
	Y      float64    `json:"y,omitempty" msgpack:"y,omitempty"`
	X2     float64    `json:"x2,omitempty" msgpack:"x2,omitempty"`
	Y2     float64    `json:"y2,omitempty" msgpack:"y2,omitempty"`
	Radius float64    `json:"radius,omitempty" msgpack:"r,omitempty"`
	Angle1 float64    `json:"angle1,omitempty" msgpack:"a1,omitempty"`
	Angle2 float64    `json:"angle2,omitempty" msgpack:"a2,omitempty"`
	Xs     []float64  `json:"xs,omitempty" msgpack:"xs,omitempty"`
	Ys     []float64  `json:"ys,omitempty" msgpack:"ys,omitempty"`
	Text   string     `json:"text,omitempty" msgpack:"t,omitempty"`
}

// ToDTO flattens an entity.
func ToDTO(e Entity) EntityDTO {
	a := e.Attrs()
	dto := EntityDTO{Kind: e.Kind(), Color: a.Color, Layer: a.Layer}
	switch v := e.(type) {
	case *Line:
		dto.X, dto.Y, dto.X2, dto.Y2 = v.X1, v.Y1, v.X2, v.Y2
	case *Circle:
		dto.X, dto.Y, dto.Radius = v.X, v.Y, v.Radius
	case *Arc:
		dto.X, dto.Y, dto.Radius = v.X, v.Y, v.Radius
		dto.Angle1, dto.Angle2 = v.Angle1, v.Angle2
	case *Polyline:
		dto.Xs, dto.Ys = slices.Clone(v.Xs), slices.Clone(v.Ys)
	case *Text:
		dto.X, dto.Y, dto.Text = v.X, v.Y, v.Content
	}
	return dto
}

// ToDTOs flattens a list of entities.
func ToDTOs(entities []Entity) []EntityDTO {
	out := make([]EntityDTO, len(entities))
	for i, e := range entities {
		out[i] = ToDTO(e)
	}
	return out
}

// Entity rebuilds the concrete entity.
func (dto EntityDTO) Entity() (Entity, error) {
	attrs := Attributes{Color: dto.Color, Layer: dto.Layer}
	switch dto.Kind {
	case KindLine:
		return NewLine(dto.X, dto.Y, dto.X2, dto.Y2, attrs), nil
	case KindCircle:
		return NewCircle(dto.X, dto.Y, dto.Radius, attrs), nil
	case KindArc:
		return NewArc(dto.X, dto.Y, dto.Radius, dto.Angle1, dto.Angle2, attrs), nil
	case KindPolyline:
		if len(dto.Xs) != len(dto.Ys) {
			return nil, fmt.Errorf("polyline has %d x values and %d y values", len(dto.Xs), len(dto.Ys))
		}
		return NewPolyline(dto.Xs, dto.Ys, attrs), nil
	case KindText:
		return NewText(dto.X, dto.Y, dto.Text, attrs), nil
	}
	return nil, fmt.Errorf("unknown entity kind %q", dto.Kind)
}
