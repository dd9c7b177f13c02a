package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLayerRules(t *testing.T) {
	content := `
room_layer: ROOMS
hidden:
  - "DIM*"
  - Defpoints
rename:
  "0": base
`
	path := filepath.Join(t.TempDir(), "layers.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	rules, err := ParseLayerRules(path)
	if err != nil {
		t.Fatalf("ParseLayerRules failed: %v", err)
	}

	if rules.RoomLayer != "ROOMS" {
		t.Errorf("expected room_layer ROOMS, got %s", rules.RoomLayer)
	}
	if len(rules.Hidden) != 2 {
		t.Fatalf("expected 2 hidden patterns, got %d", len(rules.Hidden))
	}
	if !rules.IsHidden("DIM_LINES") || rules.IsHidden("WALLS") {
		t.Error("hidden pattern matching is wrong")
	}
	if got := rules.Resolve("0"); got != "base" {
		t.Errorf("expected layer 0 renamed to base, got %s", got)
	}
	if got := rules.Resolve("WALLS"); got != "WALLS" {
		t.Errorf("expected WALLS unchanged, got %s", got)
	}
}

func TestParseLayerRulesNormalizesNames(t *testing.T) {
	rules, err := ParseLayerRulesFromReader(strings.NewReader("room_layer: Room Outlines\nrename:\n  Old Walls: New Walls\n"))
	if err != nil {
		t.Fatal(err)
	}
	if rules.RoomLayer != "Room_Outlines" {
		t.Errorf("expected Room_Outlines, got %q", rules.RoomLayer)
	}
	if got := rules.Resolve("Old_Walls"); got != "New_Walls" {
		t.Errorf("expected Old_Walls renamed to New_Walls, got %q", got)
	}
}

func TestParseLayerRulesDefaults(t *testing.T) {
	rules, err := ParseLayerRulesFromReader(strings.NewReader("hidden: []\n"))
	if err != nil {
		t.Fatal(err)
	}
	if rules.RoomLayer != DefaultRoomLayer {
		t.Errorf("expected default room layer, got %q", rules.RoomLayer)
	}
}

func TestParseLayerRulesInvalid(t *testing.T) {
	if _, err := ParseLayerRulesFromReader(strings.NewReader("hidden: [\"\"]\n")); err == nil {
		t.Error("expected error for empty pattern")
	}
	if _, err := ParseLayerRulesFromReader(strings.NewReader("rename:\n  WALLS: \"\"\n")); err == nil {
		t.Error("expected error for empty rename target")
	}
	if _, err := ParseLayerRulesFromReader(strings.NewReader("hidden: {")); err == nil {
		t.Error("expected error for malformed YAML")
	}
	if _, err := ParseLayerRules("/nonexistent/layers.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
