package world

import (
	"math"

	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/vec"
)

// FaceInside луч начался внутри сплошного вокселя
const FaceInside = vec.FaceInside

// Hit результат попадания луча в мир
type Hit struct {
	Voxel vec.IVec3
	// Face грань вокселя, обращённая к началу луча (индексы vec.FaceOffsets), или FaceInside
	Face  int
	Color color.Color
	// T параметр вдоль направления луча
	T float64
}

// LineOfSight проверяет прямую видимость между p0 и p1.
// true означает, что отрезок свободен; иначе возвращается первый
// сплошной воксель со стороны p0.
func (w *World) LineOfSight(p0, p1 vec.Vec3) (vec.IVec3, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.base.lineOfSight(p0, p1)
}

func (g *grid) lineOfSight(p0, p1 vec.Vec3) (vec.IVec3, bool) {
	var block vec.IVec3
	open := true
	vec.Traverse(p0, p1.Sub(p0), 1, func(c vec.IVec3, _ float64, _ int) bool {
		if g.isSolid(c.X, c.Y, c.Z) {
			block, open = c, false
			return false
		}
		return true
	})
	return block, open
}

// RayHit ищет первый сплошной воксель вдоль луча. Луч, покинувший мир, даёт false.
func (w *World) RayHit(origin, dir vec.Vec3) (Hit, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.base.rayHit(origin, dir)
}

func (g *grid) rayHit(origin, dir vec.Vec3) (Hit, bool) {
	if dir.IsZero() {
		if p := origin.Floor(); g.isSolid(p.X, p.Y, p.Z) {
			vc, _ := g.colorAt(p.X, p.Y, p.Z)
			return Hit{Voxel: p, Face: FaceInside, Color: vc.c}, true
		}
		return Hit{}, false
	}
	_, tExit, ok := vec.RayBox(origin, dir, g.domain())
	if !ok {
		return Hit{}, false
	}
	var hit Hit
	found := false
	vec.Traverse(origin, dir, tExit, func(c vec.IVec3, t float64, face int) bool {
		if !g.isSolid(c.X, c.Y, c.Z) {
			return true
		}
		vc, ok := g.colorAt(c.X, c.Y, c.Z)
		if !ok {
			if col := g.col(c.X, c.Y); col != nil {
				vc.c, _ = col.nearestColor(c.Z)
			}
		}
		hit = Hit{Voxel: c, Face: face, Color: vc.c, T: t}
		found = true
		return false
	})
	return hit, found
}

// nearestSolid ищет ближайшую к p точку сплошного вокселя в радиусе r.
// Поиск ограничен доменом: r больше расстояния до дальнего угла ничего не добавляет.
func (g *grid) nearestSolid(p vec.Vec3, r float64) (vec.Vec3, float64, bool) {
	if !p.IsFinite() || !(r >= 0) {
		return vec.Vec3{}, 0, false
	}
	r = math.Min(r, g.reach(p))
	xLo, xHi := searchRange(p.X, r, g.side)
	yLo, yHi := searchRange(p.Y, r, g.side)
	zLo, zHi := searchRange(p.Z, r, g.depth)
	best := r
	var bestPt vec.Vec3
	found := false
	for y := yLo; y <= yHi; y++ {
		for x := xLo; x <= xHi; x++ {
			col := g.col(x, y)
			if col == nil {
				continue
			}
			z0, z1 := zLo, zHi+1
			for i := col.spanAfter(z0); i < len(col.spans) && int(col.spans[i].top) < z1; i++ {
				s := col.spans[i]
				// ближайшая точка отрезка столбца как параллелепипеда
				q := vec.New(
					clampF(p.X, float64(x), float64(x+1)),
					clampF(p.Y, float64(y), float64(y+1)),
					clampF(p.Z, float64(max(int(s.top), z0)), float64(min(int(s.bot), z1))),
				)
				if d := q.DistanceTo(p); d < best || (!found && d <= best) {
					best, bestPt, found = d, q, true
				}
			}
		}
	}
	return bestPt, best, found
}

// reach расстояние от p до дальнего угла домена с запасом в воксель
func (g *grid) reach(p vec.Vec3) float64 {
	far := func(c float64, n int) float64 {
		return math.Max(math.Abs(c), math.Abs(c-float64(n)))
	}
	return vec.New(far(p.X, g.side), far(p.Y, g.side), far(p.Z, g.depth)).Length() + 1
}

// searchRange индексы вокселей [lo, hi] по оси, задетые отрезком [c-r, c+r]
// и лежащие в [0, n). Пустой диапазон даёт lo > hi.
func searchRange(c, r float64, n int) (int, int) {
	lo := clampF(math.Floor(c-r), 0, float64(n))
	hi := clampF(math.Floor(c+r), -1, float64(n-1))
	return int(lo), int(hi)
}

func clampF(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// MaxFreeRadius возвращает радиус наибольшей сферы с центром p,
// не задевающей сплошных вокселей, но не больше maxRadius. Бесконечный
// maxRadius допустим: если в мире нет сплошных вокселей, он и возвращается.
// Для NaN и нечисловой точки результат 0.
func (w *World) MaxFreeRadius(p vec.Vec3, maxRadius float64) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.base.freeRadius(p, maxRadius)
}

func (g *grid) freeRadius(p vec.Vec3, maxRadius float64) float64 {
	if !(maxRadius > 0) || !p.IsFinite() {
		return 0
	}
	_, d, found := g.nearestSolid(p, maxRadius)
	if !found {
		return maxRadius
	}
	return d
}

const (
	slideIterations = 3
	maxSlideSteps   = 1 << 16
)

// SlideMove перемещает сферу радиуса radius из pos на vel со скольжением:
// при контакте нормальная к поверхности составляющая движения отбрасывается.
// Нулевая скорость возвращает pos без изменений, как и нечисловые аргументы.
// Пошагово проходится только участок пути рядом с доменом. Если на нём было
// касание, остаток пути за доменом отбрасывается.
func (w *World) SlideMove(pos, vel vec.Vec3, radius float64) vec.Vec3 {
	if vel.IsZero() || !(radius > 0) || math.IsInf(radius, 0) || !pos.IsFinite() || !vel.IsFinite() {
		return pos
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	g := w.base

	pad := int(math.Min(math.Ceil(radius), vec.CoordLimit)) + 1
	t0, t1, ok := vec.RayBox(pos, vel, g.domain().Expand(pad))
	if !ok || t0 >= 1 {
		return pos.Add(vel)
	}
	t1 = math.Min(t1, 1)
	pos = pos.Add(vel.Mul(t0))
	tail := vel.Mul(1 - t1)
	vel = vel.Mul(t1 - t0)

	stepLen := math.Max(radius*0.5, 0.05)
	steps := min(math.Ceil(vel.Length()/stepLen), maxSlideSteps)
	if steps < 1 {
		return pos.Add(vel).Add(tail)
	}
	touched := false
	step := vel.Mul(1 / steps)
	for i := 0; i < int(steps); i++ {
		d := step
		moved := false
		for it := 0; it < slideIterations && !d.IsZero(); it++ {
			next := pos.Add(d)
			free := g.freeRadius(next, radius)
			if free >= radius || free > g.freeRadius(pos, radius)+1e-9 {
				pos = next
				moved = true
				break
			}
			touched = true
			q, _, found := g.nearestSolid(next, radius)
			if !found {
				break
			}
			n := next.Sub(q).Normalized()
			if n.IsZero() {
				break
			}
			if into := d.Dot(n); into < 0 {
				d = d.Sub(n.Mul(into))
			} else {
				break
			}
			if d.LengthSq() < 1e-12 {
				d = vec.Vec3{}
			}
		}
		if !moved {
			// остаток шага не проходит: дальнейшие шаги будут так же заблокированы
			step = d
			if d.IsZero() {
				break
			}
		}
	}
	if !touched {
		pos = pos.Add(tail)
	}
	return pos
}

// EstimateNormal оценивает внешнюю нормаль поверхности в вокселе по
// воздушным соседям в кубе 5x5x5. Результат единичный; без воздуха вокруг (0,0,-1).
func (w *World) EstimateNormal(p vec.IVec3) vec.Vec3 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.base.estimateNormal(p)
}

func (g *grid) estimateNormal(p vec.IVec3) vec.Vec3 {
	var sum vec.Vec3
	for dz := -2; dz <= 2; dz++ {
		for dy := -2; dy <= 2; dy++ {
			for dx := -2; dx <= 2; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				if !g.solidForExposure(p.X+dx, p.Y+dy, p.Z+dz) {
					sum = sum.Add(vec.New(float64(dx), float64(dy), float64(dz)))
				}
			}
		}
	}
	n := sum.Normalized()
	if n.IsZero() {
		return vec.New(0, 0, -1)
	}
	return n
}

// TriScan проводит «дворник» из p0 по точкам отрезка p1-p2 и возвращает
// первое попадание в сплошной воксель внутри треугольника.
func (w *World) TriScan(p0, p1, p2 vec.Vec3) (vec.Vec3, vec.IVec3, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	edge := p2.Sub(p1)
	n := max(1, int(math.Ceil(edge.Length()*2)))
	for i := 0; i <= n; i++ {
		target := p1.Add(edge.Mul(float64(i) / float64(n)))
		if block, open := w.base.lineOfSight(p0, target); !open {
			return block.Center(), block, true
		}
	}
	return vec.Vec3{}, vec.IVec3{}, false
}
