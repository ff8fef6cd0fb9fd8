package world

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/vec"
)

var tracer = otel.Tracer("github.com/annel0/voxworld/pkg/world")

// LightingMode режим расчёта байта освещения
type LightingMode int

const (
	// LightNone нейтральная яркость 128 у всех вокселей
	LightNone LightingMode = iota
	// LightEstimatedNormal направленный свет по оценённой нормали
	LightEstimatedNormal
	// LightPointSources точечные источники, добавленные через AddLight
	LightPointSources
)

// String возвращает строковое представление режима
func (m LightingMode) String() string {
	switch m {
	case LightNone:
		return "none"
	case LightEstimatedNormal:
		return "normal"
	case LightPointSources:
		return "point"
	default:
		return "unknown"
	}
}

// ParseLightingMode разбирает режим из строки конфигурации
func ParseLightingMode(s string) (LightingMode, error) {
	switch s {
	case "", "none":
		return LightNone, nil
	case "normal":
		return LightEstimatedNormal, nil
	case "point":
		return LightPointSources, nil
	default:
		return LightNone, fmt.Errorf("неизвестный режим освещения %q", s)
	}
}

// PointLight точечный источник света
type PointLight struct {
	Pos       vec.Vec3
	Radius    float64
	Intensity float64
}

const (
	ambientLight = 0.6
	diffuseLight = 0.6
	pointAmbient = 0.5
)

// SetLightingMode задаёт режим освещения; применяется при следующем UpdateLighting
func (w *World) SetLightingMode(m LightingMode) {
	w.mu.Lock()
	w.lighting = m
	w.mu.Unlock()
}

// LightingMode возвращает текущий режим освещения
func (w *World) LightingMode() LightingMode {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lighting
}

// SetSun задаёт направление распространения направленного света (z вниз)
func (w *World) SetSun(dir vec.Vec3) {
	w.mu.Lock()
	if n := dir.Normalized(); !n.IsZero() {
		w.sun = n
	}
	w.mu.Unlock()
}

// AddLight добавляет точечный источник и возвращает затронутый регион,
// который нужно передать в UpdateLighting
func (w *World) AddLight(pos vec.Vec3, radius, intensity float64) vec.Box {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lights = append(w.lights, PointLight{Pos: pos, Radius: radius, Intensity: intensity})
	return boundsOf(radius, pos).Clip(w.base.domain())
}

// ClearLights удаляет все точечные источники
func (w *World) ClearLights() {
	w.mu.Lock()
	w.lights = nil
	w.mu.Unlock()
}

// Lights возвращает копию списка источников
func (w *World) Lights() []PointLight {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]PointLight, len(w.lights))
	copy(out, w.lights)
	return out
}

// UpdateLighting пересчитывает байты освещения открытых вокселей в регионе
func (w *World) UpdateLighting(box vec.Box) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.updateLighting(box)
}

func (w *World) updateLighting(box vec.Box) {
	g := w.base
	box = box.Clip(g.domain())
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			col := g.col(x, y)
			lo, hi := col.colorIndex(box.Min.Z), col.colorIndex(box.Max.Z)
			for i := lo; i < hi; i++ {
				p := vec.IVec3{X: x, Y: y, Z: int(col.colors[i].z)}
				col.colors[i].light = w.lightAt(p)
			}
		}
	}
}

func (w *World) lightAt(p vec.IVec3) uint8 {
	switch w.lighting {
	case LightEstimatedNormal:
		n := w.base.estimateNormal(p)
		lit := math.Max(0, -n.Dot(w.sun))
		return brightness(ambientLight + diffuseLight*lit)
	case LightPointSources:
		n := w.base.estimateNormal(p)
		c := p.Center()
		f := pointAmbient
		for _, l := range w.lights {
			to := l.Pos.Sub(c)
			d := to.Length()
			if d >= l.Radius || l.Radius <= 0 {
				continue
			}
			facing := 1.0
			if d > 1e-9 {
				facing = math.Max(0, n.Dot(to.Mul(1/d)))
			}
			f += l.Intensity * (1 - d/l.Radius) * facing
		}
		return brightness(f)
	default:
		return color.NeutralBrightness
	}
}

func brightness(f float64) uint8 {
	v := f * color.NeutralBrightness
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

// RegenerateMips перестраивает mip-уровни над регионом основного уровня
func (w *World) RegenerateMips(box vec.Box) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.regenerateMips(box)
}

func (w *World) regenerateMips(box vec.Box) {
	child := w.base
	box = box.Clip(child.domain())
	for _, parent := range w.mips {
		if box.Empty() {
			return
		}
		pb := vec.Box{
			Min: vec.IVec3{X: box.Min.X >> 1, Y: box.Min.Y >> 1, Z: box.Min.Z >> 1},
			Max: vec.IVec3{X: (box.Max.X + 1) >> 1, Y: (box.Max.Y + 1) >> 1, Z: (box.Max.Z + 1) >> 1},
		}.Clip(parent.domain())

		for y := pb.Min.Y; y < pb.Max.Y; y++ {
			for x := pb.Min.X; x < pb.Max.X; x++ {
				col := parent.col(x, y)
				col.spans = col.spans[:0]
				col.colors = nil
				for j := 0; j < 2; j++ {
					for i := 0; i < 2; i++ {
						cc := child.col(2*x+i, 2*y+j)
						if cc == nil {
							continue
						}
						for _, s := range cc.spans {
							col.add(s.top>>1, (s.bot+1)>>1)
						}
					}
				}
			}
		}
		src := child
		sample := func(x, y, z int) color.Color {
			c, _ := mipSample(src, x, y, z)
			return c
		}
		parent.refreshBox(vec.Box{Min: vec.IVec3{X: pb.Min.X, Y: pb.Min.Y}, Max: vec.IVec3{X: pb.Max.X, Y: pb.Max.Y, Z: parent.depth}}, sample)
		for y := pb.Min.Y; y < pb.Max.Y; y++ {
			for x := pb.Min.X; x < pb.Max.X; x++ {
				col := parent.col(x, y)
				for k := range col.colors {
					col.colors[k].c, col.colors[k].light = mipSample(child, x, y, int(col.colors[k].z))
				}
			}
		}
		child, box = parent, pb
	}
}

// mipSample усредняет цвета и освещение дочерних вокселей ячейки 2x2x2
func mipSample(child *grid, x, y, z int) (color.Color, uint8) {
	var r, g, b, a, l, n int
	for k := 0; k < 2; k++ {
		for j := 0; j < 2; j++ {
			for i := 0; i < 2; i++ {
				vc, ok := child.colorAt(2*x+i, 2*y+j, 2*z+k)
				if !ok {
					continue
				}
				r += int(vc.c.R)
				g += int(vc.c.G)
				b += int(vc.c.B)
				a += int(vc.c.A)
				l += int(vc.light)
				n++
			}
		}
	}
	if n > 0 {
		return color.RGBA(uint8(r/n), uint8(g/n), uint8(b/n), uint8(a/n)), uint8(l / n)
	}
	for j := 0; j < 2; j++ {
		for i := 0; i < 2; i++ {
			if cc := child.col(2*x+i, 2*y+j); cc != nil {
				if c, ok := cc.nearestColor(2 * z); ok {
					return c, color.NeutralBrightness
				}
			}
		}
	}
	return color.RGB(128, 128, 128), color.NeutralBrightness
}

// Commit пересчитывает освещение и mip-уровни региона и увеличивает ревизию.
// Вызывается после мутаций и перед отрисовкой кадра.
func (w *World) Commit(box vec.Box) {
	_, span := tracer.Start(context.Background(), "world.Commit")
	span.SetAttributes(attribute.Int("voxels", box.Volume()))
	defer span.End()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.updateLighting(box)
	w.regenerateMips(box)
	w.revision++
}

// CommitAll пересчитывает весь мир
func (w *World) CommitAll() {
	w.Commit(w.Bounds())
}
