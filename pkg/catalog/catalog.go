// Package catalog describes the parts a user can drag onto the strand and
// parses the drag payloads that carry them into the workspace.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Transform is the optional default rotation (Euler degrees) and scale a
// part is placed with.
type Transform struct {
	Rotation [3]float64 `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	Scale    [3]float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
}

// Part is a catalog entry. It is owned by the catalog source and never
// mutated once fetched; instances carry a copy.
type Part struct {
	ID               string     `json:"partId" yaml:"id"`
	Name             string     `json:"name" yaml:"name"`
	Category         string     `json:"category,omitempty" yaml:"category,omitempty"`
	AssetRef         string     `json:"assetRef" yaml:"asset"`
	DefaultTransform *Transform `json:"defaultTransform,omitempty" yaml:"transform,omitempty"`
}

// DisplayName returns the name shown in summaries, falling back to the id.
func (p Part) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// PayloadError reports a drag payload that did not parse as a part.
type PayloadError struct {
	Reason string
	Err    error
}

func (e *PayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payload: %s: %v", e.Reason, e.Err)
	}
	return "payload: " + e.Reason
}

func (e *PayloadError) Unwrap() error { return e.Err }

// ParsePayload decodes a JSON drag payload into a Part. Unknown fields are
// tolerated; a payload without a part id or asset reference is rejected.
func ParsePayload(data []byte) (Part, error) {
	var p Part
	if err := json.Unmarshal(data, &p); err != nil {
		return Part{}, &PayloadError{Reason: "malformed json", Err: err}
	}
	p.ID = strings.TrimSpace(p.ID)
	p.AssetRef = strings.TrimSpace(p.AssetRef)
	if p.ID == "" {
		return Part{}, &PayloadError{Reason: "missing partId"}
	}
	if p.AssetRef == "" {
		return Part{}, &PayloadError{Reason: fmt.Sprintf("part %q has no assetRef", p.ID)}
	}
	return p, nil
}

// Catalog is an in-memory set of parts keyed by id.
type Catalog struct {
	parts map[string]Part
}

// New builds a catalog from parts. Later duplicates replace earlier ones.
func New(parts ...Part) *Catalog {
	c := &Catalog{parts: make(map[string]Part, len(parts))}
	for _, p := range parts {
		c.parts[p.ID] = p
	}
	return c
}

// Add inserts or replaces parts.
func (c *Catalog) Add(parts ...Part) {
	for _, p := range parts {
		c.parts[p.ID] = p
	}
}

// Lookup returns the part with the given id.
func (c *Catalog) Lookup(id string) (Part, bool) {
	p, ok := c.parts[id]
	return p, ok
}

// Parts returns all parts sorted by id.
func (c *Catalog) Parts() []Part {
	out := make([]Part, 0, len(c.parts))
	for _, p := range c.parts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of parts.
func (c *Catalog) Len() int {
	return len(c.parts)
}

// file is the on-disk YAML layout of a catalog.
type file struct {
	Parts []Part `yaml:"parts"`
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}
	for i, p := range f.Parts {
		if p.ID == "" || p.AssetRef == "" {
			return nil, fmt.Errorf("catalog: entry %d needs both id and asset", i)
		}
	}
	return New(f.Parts...), nil
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return Parse(data)
}
