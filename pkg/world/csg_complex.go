package world

import (
	"fmt"
	"math"
	"sort"

	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/vec"
)

// MaxFloodVolume ограничение объёма региона заливки
const MaxFloodVolume = 1 << 26

// SetSector протягивает многоугольник вдоль его нормали на толщину thick.
// next[i] индекс вершины, следующей за i; несколько замкнутых контуров
// задают дыры (правило чётности).
func (w *World) SetSector(verts []vec.Vec3, next []int, thick float64, brush Brush) (vec.Box, error) {
	if len(verts) < 3 || len(next) != len(verts) {
		return vec.Box{}, fmt.Errorf("%w: сектор из %d вершин и %d связей", ErrInvalidGeometry, len(verts), len(next))
	}
	if thick == 0 || math.IsNaN(thick) {
		return vec.Box{}, fmt.Errorf("%w: нулевая толщина сектора", ErrInvalidGeometry)
	}
	for i, n := range next {
		if n < 0 || n >= len(verts) || n == i {
			return vec.Box{}, fmt.Errorf("%w: вершина %d ссылается на %d", ErrInvalidGeometry, i, n)
		}
	}

	// нормаль методом Ньюэлла по всем рёбрам
	var normal vec.Vec3
	for i, j := range next {
		a, b := verts[i], verts[j]
		normal = normal.Add(vec.New(
			(a.Y-b.Y)*(a.Z+b.Z),
			(a.Z-b.Z)*(a.X+b.X),
			(a.X-b.X)*(a.Y+b.Y),
		))
	}
	normal = normal.Normalized()
	if normal.IsZero() {
		return vec.Box{}, fmt.Errorf("%w: сектор нулевой площади", ErrInvalidGeometry)
	}
	u := verts[next[0]].Sub(verts[0])
	u = u.Sub(normal.Mul(u.Dot(normal))).Normalized()
	v := normal.Cross(u)

	type edge struct{ x0, y0, x1, y1 float64 }
	edges := make([]edge, len(verts))
	for i, j := range next {
		a, b := verts[i].Sub(verts[0]), verts[j].Sub(verts[0])
		edges[i] = edge{a.Dot(u), a.Dot(v), b.Dot(u), b.Dot(v)}
	}
	lo, hi := math.Min(0, thick), math.Max(0, thick)

	pts := make([]vec.Vec3, 0, 2*len(verts))
	for _, p := range verts {
		pts = append(pts, p, p.Add(normal.Mul(thick)))
	}
	box := boundsOf(1, pts...)
	shape := voxelShape(func(p vec.IVec3) bool {
		rel := p.Center().Sub(verts[0])
		s := rel.Dot(normal)
		if s < lo || s >= hi {
			return false
		}
		px, py := rel.Dot(u), rel.Dot(v)
		inside := false
		for _, e := range edges {
			if (e.y0 > py) != (e.y1 > py) {
				xc := e.x0 + (py-e.y0)*(e.x1-e.x0)/(e.y1-e.y0)
				if px < xc {
					inside = !inside
				}
			}
		}
		return inside
	})

	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()
	return w.applyShape("sector", box, shape, brush), nil
}

// SetLathe применяет тело вращения вокруг оси p0→p1. radii задают радиус
// в равноотстоящих точках оси, между ними радиус интерполируется линейно.
// Операция медленная: проверяется каждый воксель bounding box.
func (w *World) SetLathe(p0, p1 vec.Vec3, radii []float64, brush Brush) (vec.Box, error) {
	axis := p1.Sub(p0)
	l2 := axis.LengthSq()
	if l2 < 1e-12 || len(radii) < 2 {
		return vec.Box{}, fmt.Errorf("%w: тело вращения требует ось и не меньше 2 радиусов", ErrInvalidGeometry)
	}
	maxR := 0.0
	for _, r := range radii {
		if r < 0 || math.IsNaN(r) {
			return vec.Box{}, fmt.Errorf("%w: отрицательный радиус %v", ErrInvalidGeometry, r)
		}
		maxR = math.Max(maxR, r)
	}
	segs := float64(len(radii) - 1)
	box := boundsOf(maxR+1, p0, p1)
	shape := voxelShape(func(p vec.IVec3) bool {
		rel := p.Center().Sub(p0)
		t := rel.Dot(axis) / l2
		if t < 0 || t > 1 {
			return false
		}
		f := t * segs
		i := min(int(f), len(radii)-2)
		r := radii[i] + (radii[i+1]-radii[i])*(f-float64(i))
		radial := rel.Sub(axis.Mul(t))
		return radial.LengthSq() < r*r
	})

	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()
	return w.applyShape("lathe", box, shape, brush), nil
}

// SetBlobs применяет метаболы: воксель внутри, если сумма 1/d^2 до центров
// больше threshold. Операция медленная: стоимость равна объёму на число центров.
func (w *World) SetBlobs(centers []vec.Vec3, threshold float64, brush Brush) (vec.Box, error) {
	if len(centers) == 0 || threshold <= 0 || math.IsNaN(threshold) {
		return vec.Box{}, fmt.Errorf("%w: метаболы требуют центры и положительный порог", ErrInvalidGeometry)
	}
	reach := math.Sqrt(float64(len(centers)) / threshold)
	box := boundsOf(reach+1, centers...)
	shape := voxelShape(func(p vec.IVec3) bool {
		c := p.Center()
		sum := 0.0
		for _, b := range centers {
			d2 := c.Sub(b).LengthSq()
			if d2 < 1e-9 {
				return true
			}
			sum += 1 / d2
		}
		return sum > threshold
	})

	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()
	return w.applyShape("blobs", box, shape, brush), nil
}

// runsShape выдаёт заранее посчитанные отрезки по столбцам
func runsShape(runs map[[2]int][]span) shapeFunc {
	return func(x, y, z0, z1 int, emit func(t, b int)) {
		for _, r := range runs[[2]int{x, y}] {
			emit(int(r.top), int(r.bot))
		}
	}
}

// FloodFill заливает связную (6-связность) воздушную область от start
// в пределах bounds сплошным цветом c. Если start сплошной, ничего не меняется.
func (w *World) FloodFill(start vec.IVec3, bounds vec.Box, c color.Color) (vec.Box, error) {
	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()

	g := w.base
	bounds = bounds.Clip(g.domain())
	if !bounds.Contains(start) || g.isSolid(start.X, start.Y, start.Z) {
		return vec.Box{}, nil
	}
	if bounds.Volume() > MaxFloodVolume {
		return vec.Box{}, fmt.Errorf("%w: объём заливки %d", ErrCapacityExceeded, bounds.Volume())
	}

	size := bounds.Size()
	index := func(p vec.IVec3) int {
		q := p.Sub(bounds.Min)
		return q.X + size.X*(q.Y+size.Y*q.Z)
	}
	visited := make([]bool, bounds.Volume())
	visited[index(start)] = true
	queue := []vec.IVec3{start}
	filled := vec.Box{}
	cols := make(map[[2]int][]span)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		key := [2]int{p.X, p.Y}
		cols[key] = append(cols[key], span{top: int32(p.Z), bot: int32(p.Z + 1)})
		filled = filled.Union(vec.BoxAround(p, 0))
		for _, d := range vec.FaceOffsets {
			n := p.Add(d)
			if !bounds.Contains(n) || visited[index(n)] || g.isSolid(n.X, n.Y, n.Z) {
				continue
			}
			visited[index(n)] = true
			queue = append(queue, n)
		}
	}
	for k, runs := range cols {
		cols[k] = mergeRuns(runs)
	}
	return w.applyShape("floodfill", filled, runsShape(cols), Insert(c)), nil
}

// HollowFill заполняет цветом c все воздушные полости, недостижимые снаружи
// мира (сверху или с боковых границ). Обход идёт по воздушным отрезкам
// столбцов, но всё равно затрагивает весь мир.
func (w *World) HollowFill(c color.Color) (vec.Box, error) {
	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()

	g := w.base
	n := g.side * g.side
	air := make([][]span, n)
	reached := make([][]bool, n)
	type node struct{ col, run int }
	var queue []node
	for i := range g.cols {
		air[i] = g.cols[i].airRuns(0, int32(g.depth))
		reached[i] = make([]bool, len(air[i]))
		x, y := i%g.side, i/g.side
		border := x == 0 || y == 0 || x == g.side-1 || y == g.side-1
		for k, r := range air[i] {
			if border || r.top == 0 {
				reached[i][k] = true
				queue = append(queue, node{i, k})
			}
		}
	}

	for len(queue) > 0 {
		cur := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		r := air[cur.col][cur.run]
		x, y := cur.col%g.side, cur.col/g.side
		for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nx, ny := x+d[0], y+d[1]
			if !g.inXY(nx, ny) {
				continue
			}
			ni := ny*g.side + nx
			runs := air[ni]
			k := sort.Search(len(runs), func(i int) bool { return runs[i].bot > r.top })
			for ; k < len(runs) && runs[k].top < r.bot; k++ {
				if !reached[ni][k] {
					reached[ni][k] = true
					queue = append(queue, node{ni, k})
				}
			}
		}
	}

	cols := make(map[[2]int][]span)
	filled := vec.Box{}
	for i := range air {
		for k, r := range air[i] {
			if reached[i][k] {
				continue
			}
			x, y := i%g.side, i/g.side
			cols[[2]int{x, y}] = append(cols[[2]int{x, y}], r)
			filled = filled.Union(vec.Box{
				Min: vec.IVec3{X: x, Y: y, Z: int(r.top)},
				Max: vec.IVec3{X: x + 1, Y: y + 1, Z: int(r.bot)},
			})
		}
	}
	if filled.Empty() {
		return vec.Box{}, nil
	}
	return w.applyShape("hollowfill", filled, runsShape(cols), Insert(c)), nil
}
