package parser

import (
	"bytes"
	"testing"

	"github.com/chainring/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	d := models.NewDrawing()
	d.ID = "floor-1"
	d.Filename = "floor.dxf"
	d.Lines = 42
	d.Metadata["encoding"] = "windows-1250"
	d.AddEntity(models.NewLine(0, -1, 2, -3, models.Attributes{Color: models.ColorPtr(5), Layer: "walls"}))
	d.AddEntity(models.NewArc(1, 1, 2, 10, 20, models.Attributes{}))
	d.AddEntity(models.NewPolyline([]float64{1, 2}, []float64{3, 4}, models.Attributes{Layer: "rooms"}))
	d.AddEntity(models.NewText(5, 5, "m²", models.Attributes{}))
	d.SetRoomPrefix("B-")
	id := d.AddRoom("c", []models.Point{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}})
	d.AddRoom("", nil)
	require.NoError(t, d.DeleteRoom(id))

	data, err := MarshalSnapshot(d)
	require.NoError(t, err)

	back, err := DecodeSnapshot(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, d.ID, back.ID)
	assert.Equal(t, d.Filename, back.Filename)
	assert.Equal(t, d.Lines, back.Lines)
	assert.Equal(t, d.Metadata, back.Metadata)
	assert.Equal(t, d.Entities, back.Entities)
	assert.Equal(t, d.Counts, back.Counts)
	assert.Equal(t, d.Rooms(), back.Rooms())
	assert.Equal(t, 3, back.RoomCounter(), "counter survives so B-1 is not reissued")
	assert.Equal(t, "B-3", back.AddRoom("", nil))
}

func TestSnapshot_Rejects(t *testing.T) {
	bad, err := msgpack.Marshal(map[string]any{"magic": "XXXX", "version": 1})
	require.NoError(t, err)
	_, err = DecodeSnapshot(bytes.NewReader(bad))
	assert.ErrorContains(t, err, "bad magic")

	_, err = DecodeSnapshot(bytes.NewReader([]byte{0xc1}))
	assert.Error(t, err)
}
