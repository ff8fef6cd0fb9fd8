package world

import (
	"fmt"

	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/sprite"
	"github.com/annel0/voxworld/pkg/vec"
)

// FreezeSprite растеризует спрайт в мир с учётом его позы.
// При вставке воксели получают цвета модели, кисть задаёт только операцию.
// Цвет модели получают и уже открытые воксели мира внутри спрайта.
func (w *World) FreezeSprite(s sprite.Sprite, brush Brush) (vec.Box, error) {
	m := s.Model()
	if m == nil {
		return vec.Box{}, sprite.ErrReleased
	}
	if m.Mass() == 0 {
		return vec.Box{}, nil
	}
	size := m.Size().Vec3()
	corners := make([]vec.Vec3, 0, 8)
	for i := 0; i < 8; i++ {
		local := vec.New(
			float64(i&1)*size.X,
			float64((i>>1)&1)*size.Y,
			float64((i>>2)&1)*size.Z,
		)
		corners = append(corners, sprite.WorldPoint(s, local))
	}
	box := boundsOf(1, corners...)

	colors := make(map[vec.IVec3]color.Color)
	shape := voxelShape(func(p vec.IVec3) bool {
		local, ok := sprite.LocalPoint(s, p.Center())
		if !ok {
			return false
		}
		v := local.Floor()
		c, ok := m.Lookup(v.X, v.Y, v.Z)
		if ok {
			colors[p] = c
		}
		return ok
	})

	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()
	if brush.Op != OpInsert {
		return w.applyShape("sprite", box, shape, brush), nil
	}
	dirty := w.applyShape("sprite", box, shape, InsertFunc(modelPaint(colors, w.paint)))
	w.base.recolor(colors)
	return dirty, nil
}

// recolor перекрашивает открытые воксели, для которых задан цвет
func (g *grid) recolor(colors map[vec.IVec3]color.Color) {
	for p, c := range colors {
		col := g.col(p.X, p.Y)
		if col == nil {
			continue
		}
		if vc, ok := col.colorAt(p.Z); ok && vc.c != c {
			vc.c = c
			col.setColor(vc)
		}
	}
}

func modelPaint(colors map[vec.IVec3]color.Color, fallback color.Color) color.Func {
	return func(x, y, z int) color.Color {
		if c, ok := colors[vec.IVec3{X: x, Y: y, Z: z}]; ok {
			return c
		}
		return fallback
	}
}

// axisPerms перестановки осей для поворотов FreezeModel
var axisPerms = [6][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

// FreezeModel вставляет модель в мир без интерполяции с одним из 48
// осевых поворотов: rot/8 выбирает перестановку осей, биты rot%8 отражают x, y, z.
// Как и FreezeSprite, перекрашивает открытые воксели под моделью.
func (w *World) FreezeModel(m *sprite.Model, origin vec.IVec3, rot int, brush Brush) (vec.Box, error) {
	if m == nil {
		return vec.Box{}, fmt.Errorf("%w: пустая модель", ErrInvalidGeometry)
	}
	if rot < 0 || rot >= 48 {
		return vec.Box{}, fmt.Errorf("%w: поворот %d вне 0..47", ErrInvalidGeometry, rot)
	}
	perm := axisPerms[rot/8]
	flips := rot % 8
	size := [3]int{m.SizeX, m.SizeY, m.SizeZ}

	colors := make(map[vec.IVec3]color.Color, m.Mass())
	cols := make(map[[2]int][]span)
	box := vec.Box{}
	for _, v := range m.Voxels {
		in := [3]int{v.X, v.Y, v.Z}
		var out [3]int
		for a := 0; a < 3; a++ {
			out[a] = in[perm[a]]
			if flips&(1<<a) != 0 {
				out[a] = size[perm[a]] - 1 - out[a]
			}
		}
		p := origin.Add(vec.IVec3{X: out[0], Y: out[1], Z: out[2]})
		colors[p] = v.Color
		cols[[2]int{p.X, p.Y}] = append(cols[[2]int{p.X, p.Y}], span{top: int32(p.Z), bot: int32(p.Z + 1)})
		box = box.Union(vec.BoxAround(p, 0))
	}
	for k, runs := range cols {
		cols[k] = mergeRuns(runs)
	}

	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()
	if brush.Op != OpInsert {
		return w.applyShape("model", box, runsShape(cols), brush), nil
	}
	dirty := w.applyShape("model", box, runsShape(cols), InsertFunc(modelPaint(colors, w.paint)))
	w.base.recolor(colors)
	return dirty, nil
}
