package parser

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/chainring/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func quietDXF(opts ...DXFOption) *DXFParser {
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return NewDXFParser(opts...)
}

func TestDXFParser_MinimalLine(t *testing.T) {
	path := createTestFile(t, "min.dxf", entitiesSection(
		"0", "LINE", "10", "0", "20", "0", "11", "10", "21", "0",
	))

	d, err := quietDXF().Parse(path)
	require.NoError(t, err)

	require.Len(t, d.Entities, 1)
	line, ok := d.Entities[0].(*models.Line)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 10, 0}, []float64{line.X1, line.Y1, line.X2, line.Y2})
	assert.Equal(t, 1, d.Counts[models.KindLine])
	assert.Equal(t, 0, d.Counts[models.KindCircle])
	assert.Equal(t, "min.dxf", d.Filename)
	assert.Equal(t, "utf-8", d.Metadata["encoding"])
	assert.Equal(t, 9, d.Lines, "one per pair, reading stops at EOF")
}

func TestDXFParser_FullFile(t *testing.T) {
	content := dxfStream(
		"999", "written by hand",
		"0", "SECTION", "2", "HEADER",
		"9", "$ACADVER", "1", "AC1015",
		"0", "ENDSEC",
		"0", "SECTION", "2", "TABLES",
		"0", "TABLE", "2", "LAYER",
		"0", "ENDTAB",
		"0", "ENDSEC",
		"0", "SECTION", "2", "BLOCKS",
		"0", "BLOCK", "2", "DOOR",
		"0", "LINE", "10", "99", "20", "99", "11", "98", "21", "98",
		"0", "ENDBLK",
		"0", "ENDSEC",
		"0", "SECTION", "2", "ENTITIES",
		"0", "LINE", "8", "Outer walls", "62", "1", "10", "0", "20", "0", "11", "5", "21", "5",
		"0", "SPLINE", "8", "curves", "10", "7", "20", "7",
		"0", "CIRCLE", "8", "Outer walls", "10", "2", "20", "3", "40", "1",
		"0", "ARC", "10", "1", "20", "1", "40", "2", "50", "0", "51", "180",
		"0", "LWPOLYLINE", "8", "CKPOPISM_PLOCHA", "10", "0", "20", "0", "10", "4", "20", "0", "10", "4", "20", "4",
		"0", "MTEXT", "10", "2", "20", "2", "1", `20 m\U+00B2`,
		"0", "ENDSEC",
		"0", "SECTION", "2", "OBJECTS",
		"0", "DICTIONARY",
		"0", "ENDSEC",
		"0", "EOF",
	)
	path := createTestFile(t, "plan.dxf", content)

	d, err := quietDXF().Parse(path)
	require.NoError(t, err)

	require.Len(t, d.Entities, 5, "block contents and unsupported kinds are skipped")
	assert.Equal(t, models.KindLine, d.Entities[0].Kind())
	assert.Equal(t, "Outer_walls", d.Entities[0].Attrs().Layer)
	assert.Equal(t, models.KindCircle, d.Entities[1].Kind())
	assert.Equal(t, models.KindArc, d.Entities[2].Kind())
	assert.Equal(t, models.KindPolyline, d.Entities[3].Kind())
	assert.Equal(t, "20 m²", d.Entities[4].(*models.Text).Content)

	for _, k := range models.EntityKinds {
		assert.Equal(t, 1, d.Counts[k], k)
	}
	assert.Equal(t, []int{3}, d.RoomOutlines("CKPOPISM_PLOCHA"))

	b := d.Bounds()
	assert.Equal(t, models.Bounds{XMin: -1, YMin: -5, XMax: 5, YMax: 1}, b)
}

func TestDXFParser_Errors(t *testing.T) {
	t.Run("unknown section", func(t *testing.T) {
		_, err := quietDXF().ParseReader(strings.NewReader(dxfStream("0", "SECTION", "2", "BOGUS")))
		assert.True(t, errors.Is(err, ErrMalformedStream))
		var pe *models.ParseError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, 3, pe.Line)
	})

	t.Run("group code not an integer", func(t *testing.T) {
		_, err := quietDXF().ParseReader(strings.NewReader(dxfStream("0", "SECTION", "x", "ENTITIES")))
		assert.True(t, errors.Is(err, ErrMalformedStream))
	})

	t.Run("bad coordinate", func(t *testing.T) {
		_, err := quietDXF().ParseReader(strings.NewReader(entitiesSection("0", "LINE", "10", "one")))
		assert.True(t, errors.Is(err, ErrInvalidNumber))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := quietDXF().Parse("/nonexistent/plan.dxf")
		assert.True(t, errors.Is(err, ErrRead))
	})

	t.Run("no encoding fits", func(t *testing.T) {
		_, err := quietDXF(WithEncodings([]string{"utf-8"})).ParseReader(bytes.NewReader([]byte{0xff, 0xfe, 0x00}))
		assert.True(t, errors.Is(err, ErrNoEncoding))
	})
}

func TestDXFParser_IncompletePairEndsInput(t *testing.T) {
	content := "0\nSECTION\n2\nENTITIES\n0\nLINE\n10\n1\n0\nENDSEC\n0"
	d, err := quietDXF().ParseReader(strings.NewReader(content))
	require.NoError(t, err)
	assert.Len(t, d.Entities, 1)
	assert.Equal(t, 5, d.Lines)
}

func TestDXFParser_UnterminatedEntityIsDropped(t *testing.T) {
	content := dxfStream("0", "SECTION", "2", "ENTITIES", "0", "LINE", "10", "1")
	d, err := quietDXF().ParseReader(strings.NewReader(content))
	require.NoError(t, err)
	assert.Empty(t, d.Entities)
}

func TestDXFParser_Windows1250(t *testing.T) {
	src := entitiesSection("0", "TEXT", "10", "1", "20", "1", "1", "Kuchyň")
	encoded, err := charmap.Windows1250.NewEncoder().String(src)
	require.NoError(t, err)

	d, err := quietDXF().ParseReader(strings.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, "windows-1250", d.Metadata["encoding"])
	assert.Equal(t, "Kuchyň", d.Entities[0].(*models.Text).Content)
}

func TestDXFParser_CanParse(t *testing.T) {
	p := quietDXF()

	ok, err := p.CanParse(createTestFile(t, "a.DXF", ""))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.CanParse(createTestFile(t, "noext", entitiesSection()))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.CanParse(createTestFile(t, "x.txt", "version: 1\n"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDetectEncoding(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"ascii", []byte("abc"), "utf-8"},
		{"utf-8 with bom", append([]byte{0xEF, 0xBB, 0xBF}, "ž"...), "utf-8"},
		{"cp1250 only", []byte{'a', 0x9e}, "windows-1250"},
		// 0x98 is undefined in windows-1250 but is "˜" in windows-1252
		{"cp1252 fallback", []byte{'a', 0x98}, "windows-1252"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := DetectEncoding(tc.data, DefaultEncodings)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, text, err := DetectEncoding([]byte{0xEF, 0xBB, 0xBF, 'x'}, DefaultEncodings)
	require.NoError(t, err)
	assert.Equal(t, "x", text)

	_, _, err = DetectEncoding([]byte{0x81}, DefaultEncodings)
	assert.True(t, errors.Is(err, ErrNoEncoding))

	assert.True(t, SupportedEncoding("Windows-1250"))
	assert.False(t, SupportedEncoding("ebcdic"))
}
