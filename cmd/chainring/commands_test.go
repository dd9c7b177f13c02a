package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainring/backend/internal/parser"
)

var planDXF = strings.Join([]string{
	"0", "SECTION", "2", "ENTITIES",
	"0", "LINE", "8", "WALLS", "10", "0", "20", "0", "11", "10", "21", "5",
	"0", "LWPOLYLINE", "8", "CKPOPISM_PLOCHA", "10", "0", "20", "0", "10", "4", "20", "0", "10", "4", "20", "4",
	"0", "CIRCLE", "8", "FURNITURE", "10", "50", "20", "50", "40", "1",
	"0", "ENDSEC", "0", "EOF",
}, "\n") + "\n"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestConvert(t *testing.T) {
	in := writeInput(t, "plan.dxf", planDXF)
	out := filepath.Join(t.TempDir(), "plan.drawing")

	stdout, err := execute(t, "convert", in, out, "--scale", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 3 entities and 0 rooms")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "L None WALLS 0 0 20 -10\n")

	d, err := parser.NewDrawingParser().Parse(out)
	require.NoError(t, err)
	assert.Len(t, d.Entities, 3)

	_, err = execute(t, "convert", in)
	assert.Error(t, err, "missing output argument")
}

func TestConvertWithRules(t *testing.T) {
	in := writeInput(t, "plan.dxf", planDXF)
	rules := writeInput(t, "rules.yaml", "hidden:\n  - FURN*\nrename:\n  WALLS: Walls\n")
	out := filepath.Join(t.TempDir(), "plan.drawing")

	stdout, err := execute(t, "convert", in, out, "--rules", rules)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 2 entities")

	data, _ := os.ReadFile(out)
	assert.Contains(t, string(data), "L None Walls ")
}

func TestRoomsCommand(t *testing.T) {
	in := writeInput(t, "list.rooms", "version: 1\nrooms: 2\nR A1 0\nR A2 3 0 0 1 0 1 1 P\n")
	out := filepath.Join(t.TempDir(), "copy.rooms")

	stdout, err := execute(t, "rooms", in, out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 2 rooms")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "rooms: 2\nR A1 0\nR A2 3 0 0 1 0 1 1 P\n"), string(data))
}

func TestStats(t *testing.T) {
	in := writeInput(t, "plan.dxf", planDXF)

	stdout, err := execute(t, "stats", in)
	require.NoError(t, err)
	assert.Contains(t, stdout, "format")
	assert.Contains(t, stdout, "dxf")
	assert.Contains(t, stdout, "POLYLINE")

	stdout, err = execute(t, "stats", in, "--json")
	require.NoError(t, err)
	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &stats))
	assert.Equal(t, float64(3), stats["entities"])

	_, err = execute(t, "stats", in, "--encodings", "ebcdic")
	assert.ErrorContains(t, err, "unsupported encoding")

	_, err = execute(t, "stats", in, "--room-prefix", "A B")
	assert.ErrorContains(t, err, "whitespace")

	_, err = execute(t, "stats", filepath.Join(t.TempDir(), "missing.dxf"))
	assert.Error(t, err)
}

func TestSnapshot(t *testing.T) {
	in := writeInput(t, "plan.dxf", planDXF)
	out := filepath.Join(t.TempDir(), "plan.crds")

	_, err := execute(t, "snapshot", in, out)
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	d, err := parser.DecodeSnapshot(f)
	require.NoError(t, err)
	assert.Len(t, d.Entities, 3)
}

func TestVersion(t *testing.T) {
	stdout, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "chainring dev\n", stdout)
}
