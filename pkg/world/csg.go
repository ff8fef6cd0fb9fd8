package world

import (
	"fmt"
	"math"

	"github.com/annel0/voxworld/internal/logging"
	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/vec"
)

// Op вид CSG-операции
type Op int

const (
	// OpInsert объединение: существующие воксели сохраняют цвет
	OpInsert Op = iota
	// OpRemove разность: воксели фигуры становятся воздухом
	OpRemove
)

// String возвращает строковое представление операции
func (o Op) String() string {
	if o == OpRemove {
		return "remove"
	}
	return "insert"
}

// Brush описывает операцию и окраску новых вокселей
type Brush struct {
	Op    Op
	Paint color.Func
}

// Insert кисть добавления одним цветом
func Insert(c color.Color) Brush {
	return Brush{Op: OpInsert, Paint: color.Solid(c)}
}

// InsertFunc кисть добавления с процедурной окраской
func InsertFunc(f color.Func) Brush {
	return Brush{Op: OpInsert, Paint: f}
}

// Remove кисть удаления
func Remove() Brush {
	return Brush{Op: OpRemove}
}

// shapeFunc выдаёт сплошные отрезки фигуры в столбце (x,y) внутри [z0, z1)
type shapeFunc func(x, y, z0, z1 int, emit func(t, b int))

// applyShape применяет фигуру в пределах box; вызывается под Lock
func (w *World) applyShape(name string, box vec.Box, shape shapeFunc, brush Brush) vec.Box {
	box = box.Clip(w.base.domain())
	if box.Empty() {
		return vec.Box{}
	}
	changed := 0
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			col := w.base.col(x, y)
			shape(x, y, box.Min.Z, box.Max.Z, func(t, b int) {
				t, b = max(t, box.Min.Z), min(b, box.Max.Z)
				if t >= b {
					return
				}
				if brush.Op == OpRemove {
					changed += col.remove(int32(t), int32(b))
				} else {
					changed += col.add(int32(t), int32(b))
				}
			})
		}
	}
	w.base.refreshBox(box, w.brushPaint(brush))
	if w.recorder != nil {
		w.recorder.RecordCSG(name, brush.Op.String(), changed)
	}
	worldLog().Trace("CSG %s %s: %d вокселей в %v", name, brush.Op, changed, box)
	return box
}

func (w *World) brushPaint(brush Brush) color.Func {
	if brush.Op == OpRemove || brush.Paint == nil {
		return w.exposePaint()
	}
	return brush.Paint
}

func worldLog() *logging.Logger {
	return logging.GetWorldLogger()
}

// voxelShape строит shapeFunc из предиката принадлежности вокселя
func voxelShape(inside func(p vec.IVec3) bool) shapeFunc {
	return func(x, y, z0, z1 int, emit func(t, b int)) {
		run := -1
		for z := z0; z < z1; z++ {
			if inside(vec.IVec3{X: x, Y: y, Z: z}) {
				if run < 0 {
					run = z
				}
			} else if run >= 0 {
				emit(run, z)
				run = -1
			}
		}
		if run >= 0 {
			emit(run, z1)
		}
	}
}

// boundsOf возвращает регион, содержащий все точки с запасом pad
func boundsOf(pad float64, pts ...vec.Vec3) vec.Box {
	lo := vec.New(math.Inf(1), math.Inf(1), math.Inf(1))
	hi := vec.New(math.Inf(-1), math.Inf(-1), math.Inf(-1))
	for _, p := range pts {
		lo = vec.New(math.Min(lo.X, p.X), math.Min(lo.Y, p.Y), math.Min(lo.Z, p.Z))
		hi = vec.New(math.Max(hi.X, p.X), math.Max(hi.Y, p.Y), math.Max(hi.Z, p.Z))
	}
	return vec.Box{
		Min: vec.New(lo.X-pad, lo.Y-pad, lo.Z-pad).FloorClamped(),
		Max: vec.New(hi.X+pad, hi.Y+pad, hi.Z+pad).FloorClamped().Add(vec.IVec3{X: 1, Y: 1, Z: 1}),
	}
}

// ballBox куб вокруг center с полустороной ceil(radius); для больших радиусов
// координаты обрезаются, дальше регион всё равно режется по домену
func ballBox(center vec.IVec3, radius float64) vec.Box {
	return boundsOf(math.Ceil(radius), center.Vec3())
}

// finiteRadius отвергает неположительные, NaN и бесконечные радиусы
func finiteRadius(what string, radius float64) error {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return fmt.Errorf("%w: радиус %s %v", ErrInvalidGeometry, what, radius)
	}
	return nil
}

// SetCube меняет один воксель: nil удаляет, иначе вставляет и перекрашивает
func (w *World) SetCube(p vec.IVec3, c *color.Color) (vec.Box, error) {
	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()

	if !w.base.in(p) {
		return vec.Box{}, nil
	}
	box := vec.BoxAround(p, 0)
	one := func(x, y, z0, z1 int, emit func(t, b int)) { emit(p.Z, p.Z+1) }
	if c == nil {
		return w.applyShape("cube", box, one, Remove()), nil
	}
	dirty := w.applyShape("cube", box, one, Insert(*c))
	col := w.base.col(p.X, p.Y)
	if vc, ok := col.colorAt(p.Z); ok {
		vc.c = *c
		col.setColor(vc)
	}
	return dirty, nil
}

// SetSphere применяет шар: воксель внутри, если |p-center|^2 < radius^2.
// При показателе SpherePower, отличном от 2, сравниваются суммы
// |dx|^p + |dy|^p + |dz|^p и radius^p.
func (w *World) SetSphere(center vec.IVec3, radius float64, brush Brush) (vec.Box, error) {
	if err := finiteRadius("шара", radius); err != nil {
		return vec.Box{}, err
	}

	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()
	var (
		shape shapeFunc
		box   vec.Box
	)
	if w.spherePower == 2 {
		shape, box = sphereShape(center, radius)
	} else {
		shape, box = powerSphereShape(center, radius, w.spherePower)
	}
	return w.applyShape("sphere", box, shape, brush), nil
}

func powerSphereShape(center vec.IVec3, radius, p float64) (shapeFunc, vec.Box) {
	rp := math.Pow(radius, p)
	box := ballBox(center, radius)
	shape := voxelShape(func(q vec.IVec3) bool {
		d := q.Sub(center)
		return math.Pow(math.Abs(float64(d.X)), p)+
			math.Pow(math.Abs(float64(d.Y)), p)+
			math.Pow(math.Abs(float64(d.Z)), p) < rp
	})
	return shape, box
}

func sphereShape(center vec.IVec3, radius float64) (shapeFunc, vec.Box) {
	r2 := radius * radius
	box := ballBox(center, radius)
	cz := float64(center.Z)
	shape := func(x, y, z0, z1 int, emit func(t, b int)) {
		dx, dy := float64(x)-float64(center.X), float64(y)-float64(center.Y)
		rem := r2 - dx*dx - dy*dy
		if rem <= 0 {
			return
		}
		k := halfChord(rem)
		t := math.Max(cz-k, float64(z0))
		b := math.Min(cz+k+1, float64(z1))
		if t < b {
			emit(int(t), int(b))
		}
	}
	return shape, box
}

// halfChord наибольшее целое k >= 0 с k*k < rem. Выше 2^26 квадраты
// в float64 неточны, там берётся оценка через корень.
func halfChord(rem float64) float64 {
	k := math.Max(math.Ceil(math.Sqrt(rem))-1, 0)
	if k > 1<<26 {
		return k
	}
	for (k+1)*(k+1) < rem {
		k++
	}
	for k > 0 && k*k >= rem {
		k--
	}
	return k
}

// SetEllipsoid применяет эллипсоид с фокусами f1, f2: сумма расстояний до фокусов
// меньше 2a, где a = sqrt(radius^2 + c^2), c половина межфокусного расстояния
func (w *World) SetEllipsoid(f1, f2 vec.Vec3, radius float64, brush Brush) (vec.Box, error) {
	if err := finiteRadius("эллипсоида", radius); err != nil {
		return vec.Box{}, err
	}
	if !f1.IsFinite() || !f2.IsFinite() {
		return vec.Box{}, fmt.Errorf("%w: фокусы эллипсоида %v %v", ErrInvalidGeometry, f1, f2)
	}
	c := f1.DistanceTo(f2) / 2
	a2 := 2 * math.Sqrt(radius*radius+c*c)
	if math.IsInf(a2, 0) {
		return vec.Box{}, fmt.Errorf("%w: эллипсоид слишком велик", ErrInvalidGeometry)
	}
	box := boundsOf(a2/2+1, f1, f2)
	shape := voxelShape(func(p vec.IVec3) bool {
		q := p.Vec3()
		return q.DistanceTo(f1)+q.DistanceTo(f2) < a2
	})

	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()
	return w.applyShape("ellipsoid", box, shape, brush), nil
}

// SetRect применяет прямоугольный параллелепипед между углами (включительно)
func (w *World) SetRect(c1, c2 vec.IVec3, brush Brush) (vec.Box, error) {
	box := vec.BoxFromCorners(c1, c2)
	shape := func(x, y, z0, z1 int, emit func(t, b int)) { emit(box.Min.Z, box.Max.Z) }

	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()
	return w.applyShape("rect", box, shape, brush), nil
}

// triangleThickness полутолщина треугольника: половина диагонали вокселя
var triangleThickness = math.Sqrt(3) / 2

// SetTriangle применяет тонкий треугольник: воксели, центр которых ближе
// половины диагонали к треугольнику
func (w *World) SetTriangle(a, b, c vec.Vec3, brush Brush) (vec.Box, error) {
	if b.Sub(a).Cross(c.Sub(a)).LengthSq() < 1e-12 {
		return vec.Box{}, fmt.Errorf("%w: вырожденный треугольник", ErrInvalidGeometry)
	}
	box := boundsOf(1, a, b, c)
	t2 := triangleThickness * triangleThickness
	shape := voxelShape(func(p vec.IVec3) bool {
		q := closestOnTriangle(p.Center(), a, b, c)
		return q.Sub(p.Center()).LengthSq() <= t2
	})

	if err := w.lock(); err != nil {
		return vec.Box{}, err
	}
	defer w.mu.Unlock()
	return w.applyShape("triangle", box, shape, brush), nil
}

// closestOnTriangle ближайшая к p точка треугольника abc
func closestOnTriangle(p, a, b, c vec.Vec3) vec.Vec3 {
	ab, ac, ap := b.Sub(a), c.Sub(a), p.Sub(a)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := p.Sub(b)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Mul(d1 / (d1 - d3)))
	}
	cp := p.Sub(c)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Mul(d2 / (d2 - d6)))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		return b.Add(c.Sub(b).Mul((d4 - d3) / ((d4 - d3) + (d5 - d6))))
	}
	denom := 1 / (va + vb + vc)
	v := vb * denom
	u := vc * denom
	return a.Add(ab.Mul(v)).Add(ac.Mul(u))
}
