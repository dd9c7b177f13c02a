package parser

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/chainring/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultRoomLayer is the layer carrying room outlines when no rules file
// says otherwise.
const DefaultRoomLayer = "CKPOPISM_PLOCHA"

// ParseLayerRules parses a YAML layer rules file.
func ParseLayerRules(filePath string) (*models.LayerRules, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseLayerRulesFromReader(file)
}

// ParseLayerRulesFromReader parses layer rules from an io.Reader.
func ParseLayerRulesFromReader(r io.Reader) (*models.LayerRules, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	rules := models.LayerRules{RoomLayer: DefaultRoomLayer}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing layer rules: %w", err)
	}
	for _, pattern := range rules.Hidden {
		if _, err := path.Match(pattern, ""); err != nil || pattern == "" {
			return nil, fmt.Errorf("parsing layer rules: bad hidden pattern %q", pattern)
		}
	}
	rules.RoomLayer = models.LayerName(rules.RoomLayer)
	if len(rules.Rename) > 0 {
		rename := make(map[string]string, len(rules.Rename))
		for from, to := range rules.Rename {
			if to == "" {
				return nil, fmt.Errorf("parsing layer rules: empty rename target for %q", from)
			}
			rename[models.LayerName(from)] = models.LayerName(to)
		}
		rules.Rename = rename
	}
	return &rules, nil
}
