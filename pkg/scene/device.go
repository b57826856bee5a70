package scene

import (
	"image/color"

	"github.com/chazu/bangle/pkg/kernel"
)

// Geometry is a drawable vertex/index buffer.
type Geometry interface {
	Mesh() *kernel.Mesh
	Dispose()
	Disposed() bool
}

// Material is a drawable surface description.
type Material interface {
	Color() color.RGBA
	Dispose()
	Disposed() bool
}

// Device allocates drawable resources.
type Device interface {
	NewGeometry(m *kernel.Mesh) Geometry
	NewMaterial(c color.RGBA) Material
}

// DeviceStats counts allocations and releases on a device.
type DeviceStats struct {
	GeometriesAllocated int
	GeometriesDisposed  int
	MaterialsAllocated  int
	MaterialsDisposed   int
}

// LiveGeometries returns the number of geometries not yet disposed.
func (s DeviceStats) LiveGeometries() int {
	return s.GeometriesAllocated - s.GeometriesDisposed
}

// LiveMaterials returns the number of materials not yet disposed.
func (s DeviceStats) LiveMaterials() int {
	return s.MaterialsAllocated - s.MaterialsDisposed
}

// SoftwareDevice keeps buffers in process memory. It backs the capture
// renderer and counts every allocation so leaks are observable.
type SoftwareDevice struct {
	stats DeviceStats
}

// NewSoftwareDevice returns an empty device.
func NewSoftwareDevice() *SoftwareDevice {
	return &SoftwareDevice{}
}

// Stats returns a snapshot of the allocation counters.
func (d *SoftwareDevice) Stats() DeviceStats {
	return d.stats
}

// NewGeometry copies m into a buffer owned by the returned geometry.
func (d *SoftwareDevice) NewGeometry(m *kernel.Mesh) Geometry {
	d.stats.GeometriesAllocated++
	return &softGeometry{dev: d, mesh: m.Clone()}
}

// NewMaterial returns a flat-colour material.
func (d *SoftwareDevice) NewMaterial(c color.RGBA) Material {
	d.stats.MaterialsAllocated++
	return &softMaterial{dev: d, color: c}
}

type softGeometry struct {
	dev  *SoftwareDevice
	mesh *kernel.Mesh
}

func (g *softGeometry) Mesh() *kernel.Mesh { return g.mesh }

func (g *softGeometry) Disposed() bool { return g.mesh == nil }

// Dispose drops the buffers. Disposing twice is counted once.
func (g *softGeometry) Dispose() {
	if g.mesh == nil {
		return
	}
	g.mesh = nil
	g.dev.stats.GeometriesDisposed++
}

type softMaterial struct {
	dev      *SoftwareDevice
	color    color.RGBA
	disposed bool
}

func (m *softMaterial) Color() color.RGBA { return m.color }

func (m *softMaterial) Disposed() bool { return m.disposed }

func (m *softMaterial) Dispose() {
	if m.disposed {
		return
	}
	m.disposed = true
	m.dev.stats.MaterialsDisposed++
}
