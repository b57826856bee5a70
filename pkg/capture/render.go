package capture

import (
	"context"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/llgcode/draw2d/draw2dimg"
	"golang.org/x/image/draw"
)

const (
	nearPlane = 0.01
	farPlane  = 200.0
	ambient   = 0.35
)

// lightDir points toward the key light.
var lightDir = mgl64.Vec3{0.4, 0.8, 0.6}.Normalize()

// SoftwareRenderer is a flat-shaded painter's-algorithm rasterizer. It
// renders at Supersample times the output size and downsamples with
// Catmull-Rom filtering.
type SoftwareRenderer struct {
	Width       int
	Height      int
	Supersample int
}

// NewSoftwareRenderer returns a renderer producing width x height images.
func NewSoftwareRenderer(width, height int) *SoftwareRenderer {
	return &SoftwareRenderer{Width: width, Height: height, Supersample: 2}
}

type screenTri struct {
	pts   [3][2]float64
	depth float64
	fill  color.RGBA
}

// Render rasterizes s. It checks ctx between drawables and returns
// ctx.Err() when cancelled.
func (r *SoftwareRenderer) Render(ctx context.Context, s Snapshot) (image.Image, error) {
	ss := r.Supersample
	if ss < 1 {
		ss = 1
	}
	w, h := r.Width*ss, r.Height*ss
	if w <= 0 || h <= 0 {
		return nil, errInvalidSize
	}

	viewProj := viewProjection(s.Camera, float64(w)/float64(h))

	var tris []screenTri
	for _, d := range s.Drawables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tris = appendTriangles(tris, d, viewProj, w, h)
	}
	sort.SliceStable(tris, func(i, j int) bool { return tris[i].depth > tris[j].depth })

	large := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(large, large.Bounds(), &image.Uniform{C: s.Background}, image.Point{}, draw.Src)

	gc := draw2dimg.NewGraphicContext(large)
	for i, t := range tris {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		gc.SetFillColor(t.fill)
		gc.BeginPath()
		gc.MoveTo(t.pts[0][0], t.pts[0][1])
		gc.LineTo(t.pts[1][0], t.pts[1][1])
		gc.LineTo(t.pts[2][0], t.pts[2][1])
		gc.Close()
		gc.Fill()
	}

	if ss == 1 {
		return large, nil
	}
	final := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.CatmullRom.Scale(final, final.Bounds(), large, large.Bounds(), draw.Over, nil)
	return final, nil
}

func viewProjection(c Camera, aspect float64) mgl64.Mat4 {
	up := c.Up
	if up.Len() == 0 {
		up = mgl64.Vec3{0, 1, 0}
	}
	fovy := c.Fovy
	if fovy <= 0 {
		fovy = 45
	}
	view := mgl64.LookAtV(c.Eye, c.Target, up)
	proj := mgl64.Perspective(mgl64.DegToRad(fovy), aspect, nearPlane, farPlane)
	return proj.Mul4(view)
}

func modelMatrix(d Drawable) mgl64.Mat4 {
	scale := d.Scale
	if scale == (mgl64.Vec3{}) {
		scale = mgl64.Vec3{1, 1, 1}
	}
	rot := mgl64.HomogRotate3DZ(mgl64.DegToRad(d.Rotation.Z())).
		Mul4(mgl64.HomogRotate3DY(mgl64.DegToRad(d.Rotation.Y()))).
		Mul4(mgl64.HomogRotate3DX(mgl64.DegToRad(d.Rotation.X())))
	return mgl64.Translate3D(d.Position.X(), d.Position.Y(), d.Position.Z()).
		Mul4(rot).
		Mul4(mgl64.Scale3D(scale.X(), scale.Y(), scale.Z()))
}

func appendTriangles(out []screenTri, d Drawable, viewProj mgl64.Mat4, w, h int) []screenTri {
	m := d.Mesh
	if m == nil || m.IsEmpty() {
		return out
	}
	model := modelMatrix(d)
	vertex := func(i uint32) mgl64.Vec3 {
		v := m.Vertices[i*3 : i*3+3]
		return model.Mul4x1(mgl64.Vec4{float64(v[0]), float64(v[1]), float64(v[2]), 1}).Vec3()
	}

	for t := 0; t+2 < len(m.Indices); t += 3 {
		world := [3]mgl64.Vec3{vertex(m.Indices[t]), vertex(m.Indices[t+1]), vertex(m.Indices[t+2])}
		n := world[1].Sub(world[0]).Cross(world[2].Sub(world[0]))
		if n.Len() == 0 {
			continue
		}
		n = n.Normalize()

		var tri screenTri
		visible := true
		for k, p := range world {
			clip := viewProj.Mul4x1(p.Vec4(1))
			if clip.W() <= nearPlane {
				visible = false
				break
			}
			ndcX, ndcY := clip.X()/clip.W(), clip.Y()/clip.W()
			tri.pts[k] = [2]float64{(ndcX + 1) / 2 * float64(w), (1 - ndcY) / 2 * float64(h)}
			tri.depth += clip.W() / 3
		}
		if !visible {
			continue
		}
		tri.fill = shade(d.Color, n)
		out = append(out, tri)
	}
	return out
}

func shade(c color.RGBA, n mgl64.Vec3) color.RGBA {
	k := ambient + (1-ambient)*math.Abs(n.Dot(lightDir))
	scale := func(v uint8) uint8 { return uint8(math.Min(255, float64(v)*k)) }
	return color.RGBA{scale(c.R), scale(c.G), scale(c.B), c.A}
}
