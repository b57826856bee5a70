// Package handoff builds the design summary passed to checkout and
// publishes it to the order queue.
package handoff

import (
	"context"
	"sort"
	"time"

	"github.com/chazu/bangle/pkg/registry"
	"github.com/samber/lo"
)

// Line is the count of one catalog part in a design.
type Line struct {
	PartID string `json:"part_id"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
}

// Summary describes a finished design for checkout.
type Summary struct {
	DesignID      string         `json:"design_id"`
	Parts         []string       `json:"parts"`
	Counts        map[string]int `json:"counts"`
	Lines         []Line         `json:"lines"`
	InstanceCount int            `json:"instance_count"`
	ArtifactKey   string         `json:"artifact_key,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Publisher delivers a summary to the order system.
type Publisher interface {
	Publish(ctx context.Context, s Summary) error
}

// Summarize builds the summary for a set of instances. Parts lists display
// names in strand order (left to right along the attachment axis).
func Summarize(designID string, instances []registry.Instance, artifactKey string, now time.Time) Summary {
	ordered := append([]registry.Instance(nil), instances...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Position.X() != b.Position.X() {
			return a.Position.X() < b.Position.X()
		}
		return a.ID < b.ID
	})

	counts := lo.CountValuesBy(ordered, func(inst registry.Instance) string { return inst.Part.ID })
	names := lo.Associate(ordered, func(inst registry.Instance) (string, string) {
		return inst.Part.ID, inst.Part.DisplayName()
	})
	lines := lo.Map(lo.Uniq(lo.Map(ordered, func(inst registry.Instance, _ int) string { return inst.Part.ID })),
		func(id string, _ int) Line {
			return Line{PartID: id, Name: names[id], Count: counts[id]}
		})
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].PartID < lines[j].PartID })

	return Summary{
		DesignID:      designID,
		Parts:         lo.Map(ordered, func(inst registry.Instance, _ int) string { return inst.Part.DisplayName() }),
		Counts:        counts,
		Lines:         lines,
		InstanceCount: len(ordered),
		ArtifactKey:   artifactKey,
		CreatedAt:     now.UTC(),
	}
}
