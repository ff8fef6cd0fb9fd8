package world

import (
	"fmt"
	"math"

	"github.com/annel0/voxworld/pkg/vec"
)

// MaxHullPoints максимальное число точек выпуклой оболочки
const MaxHullPoints = 256

const hullEps = 1e-7

// plane полупространство n·p <= d
type plane struct {
	n vec.Vec3
	d float64
}

type hullFace struct {
	a, b, c int
	n       vec.Vec3
	d       float64
}

// convexHull строит плоскости граней выпуклой оболочки инкрементальным методом.
// Меньше 4 точек, больше MaxHullPoints или все точки в одной плоскости дают ErrInvalidGeometry.
func convexHull(pts []vec.Vec3) ([]plane, error) {
	if len(pts) < 4 {
		return nil, fmt.Errorf("%w: для оболочки нужно не меньше 4 точек, получено %d", ErrInvalidGeometry, len(pts))
	}
	if len(pts) > MaxHullPoints {
		return nil, fmt.Errorf("%w: %w: %d точек оболочки при максимуме %d",
			ErrInvalidGeometry, ErrCapacityExceeded, len(pts), MaxHullPoints)
	}

	scale := 0.0
	for _, p := range pts {
		scale = math.Max(scale, p.Sub(pts[0]).Length())
	}
	eps := hullEps * math.Max(scale, 1)

	// начальный тетраэдр
	i0, i1 := 0, -1
	best := eps
	for i, p := range pts {
		if d := p.DistanceTo(pts[i0]); d > best {
			best, i1 = d, i
		}
	}
	if i1 < 0 {
		return nil, fmt.Errorf("%w: все точки оболочки совпадают", ErrInvalidGeometry)
	}
	i2 := -1
	best = eps
	line := pts[i1].Sub(pts[i0]).Normalized()
	for i, p := range pts {
		v := p.Sub(pts[i0])
		if d := v.Sub(line.Mul(v.Dot(line))).Length(); d > best {
			best, i2 = d, i
		}
	}
	if i2 < 0 {
		return nil, fmt.Errorf("%w: точки оболочки лежат на одной прямой", ErrInvalidGeometry)
	}
	i3 := -1
	best = eps
	normal := pts[i1].Sub(pts[i0]).Cross(pts[i2].Sub(pts[i0])).Normalized()
	for i, p := range pts {
		if d := math.Abs(p.Sub(pts[i0]).Dot(normal)); d > best {
			best, i3 = d, i
		}
	}
	if i3 < 0 {
		return nil, fmt.Errorf("%w: точки оболочки лежат в одной плоскости", ErrInvalidGeometry)
	}

	centroid := pts[i0].Add(pts[i1]).Add(pts[i2]).Add(pts[i3]).Mul(0.25)
	mk := func(a, b, c int) hullFace {
		n := pts[b].Sub(pts[a]).Cross(pts[c].Sub(pts[a])).Normalized()
		if n.Dot(centroid.Sub(pts[a])) > 0 {
			b, c = c, b
			n = n.Mul(-1)
		}
		return hullFace{a: a, b: b, c: c, n: n, d: n.Dot(pts[a])}
	}
	faces := []hullFace{mk(i0, i1, i2), mk(i0, i1, i3), mk(i0, i2, i3), mk(i1, i2, i3)}

	for pi, p := range pts {
		if pi == i0 || pi == i1 || pi == i2 || pi == i3 {
			continue
		}
		visible := make([]bool, len(faces))
		seen := false
		for fi, f := range faces {
			if f.n.Dot(p)-f.d > eps {
				visible[fi] = true
				seen = true
			}
		}
		if !seen {
			continue
		}
		// горизонт: рёбра видимых граней, обратное ребро которых принадлежит невидимой
		edges := make(map[[2]int]bool)
		for fi, f := range faces {
			if visible[fi] {
				edges[[2]int{f.a, f.b}] = true
				edges[[2]int{f.b, f.c}] = true
				edges[[2]int{f.c, f.a}] = true
			}
		}
		kept := faces[:0:0]
		for fi, f := range faces {
			if !visible[fi] {
				kept = append(kept, f)
			}
		}
		for e := range edges {
			if edges[[2]int{e[1], e[0]}] {
				continue
			}
			n := pts[e[1]].Sub(pts[e[0]]).Cross(p.Sub(pts[e[0]])).Normalized()
			kept = append(kept, hullFace{a: e[0], b: e[1], c: pi, n: n, d: n.Dot(pts[e[0]])})
		}
		faces = kept
	}

	planes := make([]plane, len(faces))
	for i, f := range faces {
		planes[i] = plane{n: f.n, d: f.d + eps}
	}
	return planes, nil
}

func insidePlanes(planes []plane, p vec.Vec3) bool {
	for _, pl := range planes {
		if pl.n.Dot(p) > pl.d {
			return false
		}
	}
	return true
}

// SetHull применяет выпуклую оболочку точек; воксель внутри, если его центр внутри оболочки
func (w *World) SetHull(points []vec.Vec3, brush Brush) (vec.Box, error) {
	planes, err := convexHull(points)
	if err != nil {
		worldLog().Warn("оболочка отклонена: %v", err)
		return vec.Box{}, err
	}
	box := boundsOf(1, points...)
	shape := voxelShape(func(p vec.IVec3) bool { return insidePlanes(planes, p.Center()) })

	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()
	return w.applyShape("hull", box, shape, brush), nil
}
