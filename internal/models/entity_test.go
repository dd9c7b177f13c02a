package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntities() []Entity {
	return []Entity{
		NewLine(0, 0, 10, 5, Attributes{Color: ColorPtr(1), Layer: "walls"}),
		NewCircle(3, 4, 2, Attributes{}),
		NewArc(-1, -1, 1, 0, 90, Attributes{Layer: "doors"}),
		NewPolyline([]float64{0, 4, 4}, []float64{0, 0, 3}, Attributes{Color: ColorPtr(7)}),
		NewText(2, 2, "room 12 m²", Attributes{Layer: "labels"}),
	}
}

func TestTransformIdentity(t *testing.T) {
	for _, e := range sampleEntities() {
		t.Run(string(e.Kind()), func(t *testing.T) {
			before := e.Record()
			e.Transform(0, 0, 1)
			assert.Equal(t, before, e.Record())
		})
	}
}

func TestTransformTranslateThenScale(t *testing.T) {
	l := NewLine(1, 2, 3, 4, Attributes{})
	l.Transform(1, -2, 2)
	assert.Equal(t, []float64{4, 0, 8, 4}, []float64{l.X1, l.Y1, l.X2, l.Y2})

	a := NewArc(1, 1, 2, 30, 60, Attributes{})
	a.Transform(1, 1, 3)
	assert.Equal(t, 6.0, a.X)
	assert.Equal(t, 6.0, a.Radius)
	assert.Equal(t, 30.0, a.Angle1, "angles are not transformed")
	assert.Equal(t, 60.0, a.Angle2)
}

func TestBoundsCommuteWithTransform(t *testing.T) {
	cases := []struct {
		name               string
		offX, offY, scale float64
	}{
		{"translate", 5, -3, 1},
		{"scale", 0, 0, 2.5},
		{"both", -1, 4, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, e := range sampleEntities() {
				want := e.Bounds().Transform(tc.offX, tc.offY, tc.scale)
				e.Transform(tc.offX, tc.offY, tc.scale)
				got := e.Bounds()
				assert.InDelta(t, want.XMin, got.XMin, 1e-9, e.Kind())
				assert.InDelta(t, want.YMin, got.YMin, 1e-9, e.Kind())
				assert.InDelta(t, want.XMax, got.XMax, 1e-9, e.Kind())
				assert.InDelta(t, want.YMax, got.YMax, 1e-9, e.Kind())
			}
		})
	}
}

func TestArcBoundsUseFullCircle(t *testing.T) {
	a := NewArc(0, 0, 2, 0, 90, Attributes{})
	assert.Equal(t, Bounds{XMin: -2, YMin: -2, XMax: 2, YMax: 2}, a.Bounds())
}

func TestRecord(t *testing.T) {
	tests := []struct {
		entity Entity
		want   string
	}{
		{NewLine(0, -0.5, 10, 2, Attributes{Color: ColorPtr(3), Layer: "A"}), "L 3 A 0 -0.5 10 2"},
		{NewCircle(1, 2, 3, Attributes{}), "C None None 1 2 3"},
		{NewArc(1, 2, 3, 45, 180, Attributes{Layer: "B"}), "A None B 1 2 3 45 180"},
		{NewPolyline([]float64{1, 2}, []float64{3, 4}, Attributes{Color: ColorPtr(1)}), "P 1 None 2 1 2 3 4"},
		{NewText(1, 1, "12 m²", Attributes{}), "T None None 1 1 12 m^2^"},
		{NewLine(0, math.Copysign(0, -1), 1, 1, Attributes{}), "L None None 0 0 1 1"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.entity.Record())
		})
	}
}

func TestNewPolylineKeepsSlicesAligned(t *testing.T) {
	p := NewPolyline([]float64{1, 2, 3}, []float64{1, 2}, Attributes{})
	assert.Equal(t, 2, p.Len())
	assert.Len(t, p.Ys, 2)
}

func TestDTORoundTrip(t *testing.T) {
	for _, e := range sampleEntities() {
		back, err := ToDTO(e).Entity()
		require.NoError(t, err)
		assert.Equal(t, e, back)
	}

	_, err := EntityDTO{Kind: "SPLINE"}.Entity()
	assert.Error(t, err)
	_, err = EntityDTO{Kind: KindPolyline, Xs: []float64{1}}.Entity()
	assert.Error(t, err)
}

func TestParseEntityKind(t *testing.T) {
	k, ok := ParseEntityKind("p")
	assert.True(t, ok)
	assert.Equal(t, KindPolyline, k)
	k, ok = ParseEntityKind("circle")
	assert.True(t, ok)
	assert.Equal(t, KindCircle, k)
	_, ok = ParseEntityKind("spline")
	assert.False(t, ok)
}

func TestComputeBounds(t *testing.T) {
	t.Run("empty list is the sentinel", func(t *testing.T) {
		b := ComputeBounds(nil)
		assert.True(t, b.IsEmpty())
		assert.True(t, b.XMin > b.XMax)
		assert.True(t, math.IsInf(b.XMin, 1))
		assert.Equal(t, 0.0, b.Width())
	})

	t.Run("single line", func(t *testing.T) {
		b := ComputeBounds([]Entity{NewLine(0, 0, 10, 5, Attributes{})})
		assert.Equal(t, Bounds{XMin: 0, YMin: 0, XMax: 10, YMax: 5}, b)
	})

	t.Run("enlarge with empty is identity", func(t *testing.T) {
		b := Bounds{XMin: 1, YMin: 2, XMax: 3, YMax: 4}
		assert.Equal(t, b, b.Enlarge(EmptyBounds()))
		assert.Equal(t, b, EmptyBounds().Enlarge(b))
	})

	t.Run("mixed entities", func(t *testing.T) {
		b := ComputeBounds(sampleEntities())
		assert.Equal(t, Bounds{XMin: -2, YMin: -2, XMax: 10, YMax: 6}, b)
	})
}

func TestBoundsIntersects(t *testing.T) {
	a := Bounds{XMin: 0, YMin: 0, XMax: 2, YMax: 2}
	assert.True(t, a.Intersects(Bounds{XMin: 2, YMin: 2, XMax: 3, YMax: 3}))
	assert.False(t, a.Intersects(Bounds{XMin: 2.1, YMin: 0, XMax: 3, YMax: 1}))
	assert.False(t, a.Intersects(EmptyBounds()))
}
