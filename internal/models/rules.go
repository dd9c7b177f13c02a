package models

import (
	"path"
	"strings"
)

// LayerRules configures how layers are interpreted on import.
type LayerRules struct {
	// RoomLayer holds room outlines; its polylines can become rooms.
	RoomLayer string `json:"roomLayer" yaml:"room_layer"`
	// Hidden layers are dropped from imported drawings. Glob patterns allowed.
	Hidden []string `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	// Rename maps source layer names to the names kept in the model.
	Rename map[string]string `json:"rename,omitempty" yaml:"rename,omitempty"`
}

// IsHidden reports whether layer matches any hidden pattern.
func (r *LayerRules) IsHidden(layer string) bool {
	if r == nil {
		return false
	}
	for _, pattern := range r.Hidden {
		if ok, _ := path.Match(pattern, layer); ok {
			return true
		}
	}
	return false
}

// LayerName replaces spaces in a layer name with underscores. Records are
// space separated, so a stored layer name never contains one.
func LayerName(s string) string {
	return strings.ReplaceAll(s, " ", "_")
}

// Resolve returns the layer name to store.
func (r *LayerRules) Resolve(layer string) string {
	if r == nil {
		return layer
	}
	if to, ok := r.Rename[layer]; ok {
		return LayerName(to)
	}
	return layer
}

// ApplyLayerRules drops entities on hidden layers, renames layers and
// recounts the per-kind statistics. It returns the number of dropped entities.
func (d *Drawing) ApplyLayerRules(r *LayerRules) int {
	if r == nil {
		return 0
	}
	kept := d.Entities[:0]
	dropped := 0
	for _, e := range d.Entities {
		if r.IsHidden(e.Attrs().Layer) {
			d.Counts[e.Kind()]--
			dropped++
			continue
		}
		setLayer(e, r.Resolve(e.Attrs().Layer))
		kept = append(kept, e)
	}
	clear(d.Entities[len(kept):])
	d.Entities = kept
	return dropped
}

// RoomOutlines returns the indexes of polylines on the given layer.
func (d *Drawing) RoomOutlines(layer string) []int {
	var idx []int
	for i, e := range d.Entities {
		if p, ok := e.(*Polyline); ok && p.Layer == layer {
			idx = append(idx, i)
		}
	}
	return idx
}

func setLayer(e Entity, layer string) {
	switch v := e.(type) {
	case *Line:
		v.Layer = layer
	case *Circle:
		v.Layer = layer
	case *Arc:
		v.Layer = layer
	case *Polyline:
		v.Layer = layer
	case *Text:
		v.Layer = layer
	}
}
