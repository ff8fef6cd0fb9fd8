package world

import (
	"fmt"
	"math"
	"sort"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/vec"
)

// Span вертикальный отрезок столбца (X, Y) от Z0 до Z1 включительно
type Span struct {
	X  int
	Y  int
	Z0 int
	Z1 int
}

// sortSpans проверяет отрезки и возвращает копию, упорядоченную по (x, y, z0).
// Неупорядоченный вход не отклоняется, а сортируется.
func sortSpans(spans []Span) ([]Span, error) {
	out := make([]Span, len(spans))
	copy(out, spans)
	ordered := true
	for i, s := range out {
		if s.Z1 < s.Z0 {
			return nil, fmt.Errorf("%w: отрезок %d: z1=%d меньше z0=%d", ErrInvalidGeometry, i, s.Z1, s.Z0)
		}
		if i > 0 && spanLess(s, out[i-1]) {
			ordered = false
		}
	}
	if !ordered {
		worldLog().Debug("список отрезков не упорядочен, сортируем %d элементов", len(out))
		sort.SliceStable(out, func(i, j int) bool { return spanLess(out[i], out[j]) })
	}
	return out, nil
}

func spanLess(a, b Span) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z0 < b.Z0
}

// spansShape группирует отрезки по столбцам. Сдвинутые координаты считаются
// с насыщением; столбцы вне домена отбрасываются, z обрезается до [-1, depth].
func spansShape(spans []Span, offset vec.IVec3, side, depth int) (shapeFunc, vec.Box) {
	byCol := make(map[[2]int][]Span)
	box := vec.Box{}
	for _, s := range spans {
		x, y := satAdd(s.X, offset.X), satAdd(s.Y, offset.Y)
		if x < 0 || x >= side || y < 0 || y >= side {
			continue
		}
		z0 := clampInt(satAdd(s.Z0, offset.Z), -1, depth)
		z1 := clampInt(satAdd(s.Z1, offset.Z), -1, depth)
		byCol[[2]int{x, y}] = append(byCol[[2]int{x, y}], Span{X: x, Y: y, Z0: z0, Z1: z1})
		box = box.Union(vec.BoxFromCorners(
			vec.IVec3{X: x, Y: y, Z: z0},
			vec.IVec3{X: x, Y: y, Z: z1}))
	}
	shape := func(x, y, z0, z1 int, emit func(t, b int)) {
		for _, s := range byCol[[2]int{x, y}] {
			emit(s.Z0, s.Z1+1)
		}
	}
	return shape, box
}

func satAdd(a, b int) int {
	s := a + b
	switch {
	case b > 0 && s < a:
		return math.MaxInt
	case b < 0 && s > a:
		return math.MinInt
	}
	return s
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// SetSpans применяет список вертикальных отрезков со смещением
func (w *World) SetSpans(spans []Span, offset vec.IVec3, brush Brush) (vec.Box, error) {
	sorted, err := sortSpans(spans)
	if err != nil {
		return vec.Box{}, err
	}
	shape, box := spansShape(sorted, offset, w.side, w.depth)

	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()
	return w.applyShape("spans", box, shape, brush), nil
}

// Heightmap карта высот: значение байта задаёт z верхней поверхности
type Heightmap struct {
	Width  int
	Height int
	Pitch  int
	Data   []byte
}

// Validate проверяет размеры карты высот
func (h Heightmap) Validate() error {
	if h.Width <= 0 || h.Height <= 0 || h.Pitch < h.Width {
		return fmt.Errorf("%w: карта высот %dx%d с шагом %d", ErrInvalidGeometry, h.Width, h.Height, h.Pitch)
	}
	if len(h.Data) < h.Pitch*(h.Height-1)+h.Width {
		return fmt.Errorf("%w: данных карты высот %d байт меньше размера", ErrInvalidGeometry, len(h.Data))
	}
	return nil
}

// At возвращает высоту в точке карты
func (h Heightmap) At(x, y int) int {
	return int(h.Data[y*h.Pitch+x])
}

// SetHeightmap только добавляет: для каждой точки (x0+i, y0+j) делает сплошным
// всё от высоты карты до дна мира
func (w *World) SetHeightmap(h Heightmap, x0, y0 int, paint color.Func) (vec.Box, error) {
	if err := h.Validate(); err != nil {
		return vec.Box{}, err
	}
	box := vec.Box{
		Min: vec.IVec3{X: x0, Y: y0},
		Max: vec.IVec3{X: x0 + h.Width, Y: y0 + h.Height, Z: w.Depth()},
	}
	shape := func(x, y, z0, z1 int, emit func(t, b int)) {
		emit(h.At(x-x0, y-y0), z1)
	}

	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()
	return w.applyShape("heightmap", box, shape, InsertFunc(paint)), nil
}

// sdfShape предикат по знаку SDF в центре вокселя
func sdfShape(s sdf.SDF3) shapeFunc {
	return voxelShape(func(p vec.IVec3) bool {
		c := p.Center()
		return s.Evaluate(v3.Vec{X: c.X, Y: c.Y, Z: c.Z}) < 0
	})
}

func sdfBounds(s sdf.SDF3) vec.Box {
	bb := s.BoundingBox()
	return boundsOf(1, vec.New(bb.Min.X, bb.Min.Y, bb.Min.Z), vec.New(bb.Max.X, bb.Max.Y, bb.Max.Z))
}

// SetSolid применяет произвольное неявное тело: воксель внутри,
// если SDF в его центре отрицательна. Стоимость пропорциональна объёму bounding box.
func (w *World) SetSolid(s sdf.SDF3, brush Brush) (vec.Box, error) {
	if s == nil {
		return vec.Box{}, fmt.Errorf("%w: пустое тело", ErrInvalidGeometry)
	}
	box := sdfBounds(s)
	shape := sdfShape(s)

	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()
	return w.applyShape("solid", box, shape, brush), nil
}

// SetCylinder применяет цилиндр между центрами торцов p0 и p1.
// Нулевая длина вырождается в шар.
func (w *World) SetCylinder(p0, p1 vec.Vec3, radius float64, brush Brush) (vec.Box, error) {
	if err := finiteRadius("цилиндра", radius); err != nil {
		return vec.Box{}, err
	}
	if !p0.IsFinite() || !p1.IsFinite() {
		return vec.Box{}, fmt.Errorf("%w: ось цилиндра %v %v", ErrInvalidGeometry, p0, p1)
	}
	axis := p1.Sub(p0)
	length := axis.Length()
	if math.IsInf(length, 0) {
		return vec.Box{}, fmt.Errorf("%w: ось цилиндра слишком длинная", ErrInvalidGeometry)
	}
	if length < 1e-9 {
		return w.SetSphere(p0.FloorClamped(), radius, brush)
	}
	cyl, err := sdf.Cylinder3D(length, radius, 0)
	if err != nil {
		return vec.Box{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	mid := p0.Add(p1).Mul(0.5)
	dir := axis.Mul(1 / length)
	if dir.Z < 0 {
		// цилиндр симметричен, а поворот на противоположный вектор вырожден
		dir = dir.Mul(-1)
	}
	m := sdf.Translate3d(v3.Vec{X: mid.X, Y: mid.Y, Z: mid.Z}).
		Mul(sdf.RotateToVector(v3.Vec{Z: 1}, v3.Vec{X: dir.X, Y: dir.Y, Z: dir.Z}))
	solid := sdf.Transform3D(cyl, m)

	box := boundsOf(radius+1, p0, p1)
	shape := sdfShape(solid)

	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()
	return w.applyShape("cylinder", box, shape, brush), nil
}
