package parser

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chainring/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedClock = WithClock(func() time.Time {
	return time.Date(2018, 3, 14, 9, 26, 53, 589000000, time.UTC)
})

const sampleDrawing = `version: 1
created: 2018-03-14 09:26:53.589000
id: floor-3
entities: 5
L 1 walls 0 0 10 5
C x None 1 2 3
A None doors 1 1 2 0 90
T 7 labels 2 2 Kitchen 12 m^2^
P 3 CKPOPISM_PLOCHA 3 0 4 4 0 0 3
bounds: 0 0 10 5
scale: 1
rooms: 2
R SAP10001 3 0 0 4 0 4 3 P
R SAP10002 0
`

func TestDrawingParser_Read(t *testing.T) {
	d, err := NewDrawingParser().ParseReader(strings.NewReader(sampleDrawing))
	require.NoError(t, err)

	assert.Equal(t, "floor-3", d.ID)
	assert.Equal(t, "1", d.Metadata["version"])
	assert.Equal(t, "2018-03-14 09:26:53.589000", d.Metadata["created"])
	assert.Equal(t, "5", d.Metadata["entities"])
	assert.Equal(t, "2", d.Metadata["rooms"])
	assert.Equal(t, 14, d.Lines)

	require.Len(t, d.Entities, 5)
	for _, k := range models.EntityKinds {
		assert.Equal(t, 1, d.Counts[k], k)
	}

	circle := d.Entities[1].(*models.Circle)
	assert.Nil(t, circle.Color, "non-integer color means no color")
	assert.Empty(t, circle.Layer, "None means no layer")
	assert.Equal(t, 3.0, circle.Radius)

	text := d.Entities[3].(*models.Text)
	assert.Equal(t, "Kitchen 12 m²", text.Content)

	poly := d.Entities[4].(*models.Polyline)
	assert.Equal(t, []float64{0, 4, 4}, poly.Xs)
	assert.Equal(t, []float64{0, 0, 3}, poly.Ys)

	rooms := d.Rooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, models.RoomTypePolygon, rooms[0].Type)
	assert.Len(t, rooms[0].Polygon, 3)
	assert.False(t, rooms[1].HasPolygon())
	assert.Equal(t, models.RoomTypeUnknown, rooms[1].Type.Effective())
	assert.Equal(t, 3, d.RoomCounter())
}

func TestDrawingParser_Strict(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kind    error
		line    int
	}{
		{"unknown command", "version: 1\nX 1 2 3\nL 1 a 0 0 1 1\n", ErrUnknownCommand, 2},
		{"bad coordinate", "L 1 a 0 zero 1 1\n", ErrInvalidNumber, 1},
		{"short line record", "L 1 a 0 0 1\n", ErrMissingField, 1},
		{"short polyline", "P 1 a 2 0 1 0\n", ErrMissingField, 1},
		{"bad room count", "R SAP1 two\n", ErrInvalidNumber, 1},
		{"room without id", "R\n", ErrMissingField, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := NewDrawingParser().ParseReader(strings.NewReader(tc.content))
			assert.Nil(t, d, "no partial drawing")
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)
			var pe *models.ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tc.line, pe.Line)
		})
	}
}

func TestDrawingParser_BlankLinesSkipped(t *testing.T) {
	d, err := NewDrawingParser().ParseReader(strings.NewReader("version: 1\n\n   \nC 1 a 0 0 1\n"))
	require.NoError(t, err)
	assert.Len(t, d.Entities, 1)
	assert.Equal(t, 4, d.Lines)
}

func TestWriter_DrawingRoundTrip(t *testing.T) {
	d, err := NewDrawingParser().ParseReader(strings.NewReader(sampleDrawing))
	require.NoError(t, err)

	var first bytes.Buffer
	require.NoError(t, NewWriter(fixedClock).WriteDrawing(&first, d))

	want := `version: 1
created: 2018-03-14 09:26:53.589000
id: floor-3
entities: 5
L 1 walls 0 0 10 5
C None None 1 2 3
A None doors 1 1 2 0 90
T 7 labels 2 2 Kitchen 12 m^2^
P 3 CKPOPISM_PLOCHA 3 0 4 4 0 0 3
bounds: -2 -1 10 5
rooms: 2
R SAP10001 3 0 0 4 0 4 3 P
R SAP10002 0
`
	assert.Equal(t, want, first.String())

	again, err := NewDrawingParser().ParseReader(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)
	var second bytes.Buffer
	require.NoError(t, NewWriter(fixedClock).WriteDrawing(&second, again))
	assert.Equal(t, first.String(), second.String())
}

func TestWriter_RenamedLayerRoundTrip(t *testing.T) {
	rules, err := ParseLayerRulesFromReader(strings.NewReader("rename:\n  Inner Walls: Outer Walls\n"))
	require.NoError(t, err)

	d := models.NewDrawing()
	d.AddEntity(models.NewLine(0, 0, 10, 5, models.Attributes{Layer: models.LayerName("Inner Walls")}))
	d.AddEntity(models.NewLine(0, 0, 1, 1, models.Attributes{Layer: "WALLS"}))
	d.ApplyLayerRules(rules)
	d.ApplyLayerRules(&models.LayerRules{Rename: map[string]string{"WALLS": "Outer Walls"}})

	var buf bytes.Buffer
	require.NoError(t, NewWriter(fixedClock).WriteDrawing(&buf, d))
	assert.Contains(t, buf.String(), "L None Outer_Walls 0 0 10 5\n")

	again, err := NewDrawingParser().ParseReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, again.Entities, 2)
	for _, e := range again.Entities {
		assert.Equal(t, "Outer_Walls", e.Attrs().Layer)
	}
}

func TestWriter_EntityRecordsAreLeftInverse(t *testing.T) {
	entities := []models.Entity{
		models.NewLine(-1.5, 2.25, 1e-7, 3, models.Attributes{Color: models.ColorPtr(-1), Layer: "a"}),
		models.NewCircle(1, 2, 0.125, models.Attributes{}),
		models.NewArc(0, 0, 1, 359.5, 10, models.Attributes{Layer: "arcs"}),
		models.NewPolyline([]float64{1, 2, 3}, []float64{-1, -2, -3}, models.Attributes{Color: models.ColorPtr(256)}),
		models.NewText(0, 0, "a  b ²", models.Attributes{}),
	}
	for _, e := range entities {
		t.Run(string(e.Kind()), func(t *testing.T) {
			d, err := NewDrawingParser().ParseReader(strings.NewReader(e.Record() + "\n"))
			require.NoError(t, err)
			require.Len(t, d.Entities, 1)
			assert.Equal(t, e, d.Entities[0])
		})
	}
}

func TestWriter_EmptyDrawing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(fixedClock).WriteDrawing(&buf, models.NewDrawing()))
	assert.Equal(t, "version: 1\ncreated: 2018-03-14 09:26:53.589000\nentities: 0\nrooms: 0\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriter_ReportsWriteErrors(t *testing.T) {
	err := NewWriter().WriteRooms(failingWriter{}, []models.Room{{ID: "a"}})
	assert.ErrorContains(t, err, "disk full")

	err = NewWriter().SaveDrawing("/nonexistent/dir/x.drawing", models.NewDrawing())
	assert.Error(t, err)
}

func TestWriter_SaveAndParse(t *testing.T) {
	d := models.NewDrawing()
	d.AddEntity(models.NewLine(0, 0, 1, 1, models.Attributes{}))
	d.AddRoom("", []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}})

	path := createTestFile(t, "out"+DrawingExt, "")
	require.NoError(t, NewWriter().SaveDrawing(path, d))

	back, err := NewDrawingParser().Parse(path)
	require.NoError(t, err)
	assert.Len(t, back.Entities, 1)
	assert.Equal(t, 1, back.RoomCount())
	assert.Equal(t, "out.drawing", back.Filename)
}
