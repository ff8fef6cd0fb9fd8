package sprite

import (
	"math"

	"github.com/annel0/voxworld/pkg/vec"
)

// WorldPoint переводит точку в координатах модели в мировые координаты.
// Точка pivot модели совпадает с позицией спрайта.
func WorldPoint(s Sprite, local vec.Vec3) vec.Vec3 {
	m := s.Model()
	pivot := vec.Vec3{}
	if m != nil {
		pivot = m.Pivot
	}
	return s.Pose().ToWorld(local.Sub(pivot))
}

// VoxelCenter возвращает мировой центр вокселя модели
func VoxelCenter(s Sprite, v vec.IVec3) vec.Vec3 {
	return WorldPoint(s, v.Center())
}

// LocalPoint переводит мировую точку в координаты модели
func LocalPoint(s Sprite, world vec.Vec3) (vec.Vec3, bool) {
	m := s.Model()
	if m == nil {
		return vec.Vec3{}, false
	}
	p, ok := s.Pose().ToLocal(world)
	if !ok {
		return vec.Vec3{}, false
	}
	return p.Add(m.Pivot), true
}

// RayHit ищет первый воксель спрайта на отрезке origin + dir*t, t в [0, maxFraction].
// Возвращает координаты вокселя в модели и долю t.
func RayHit(s Sprite, origin, dir vec.Vec3, maxFraction float64) (vec.IVec3, float64, bool) {
	m := s.Model()
	if m == nil || m.Mass() == 0 || dir.IsZero() || maxFraction <= 0 {
		return vec.IVec3{}, 0, false
	}
	pose := s.Pose()
	lo, ok := pose.ToLocal(origin)
	if !ok {
		return vec.IVec3{}, 0, false
	}
	lo = lo.Add(m.Pivot)
	ld, _ := pose.DirToLocal(dir)

	tEnter, tExit, ok := vec.RayBox(lo, ld, m.Bounds())
	if !ok || tEnter > maxFraction {
		return vec.IVec3{}, 0, false
	}
	tEnd := math.Min(tExit, maxFraction)

	// старт чуть внутри региона, чтобы Floor не попал в соседнюю клетку
	const nudge = 1e-7
	start := lo.Add(ld.Mul(tEnter + nudge))
	var (
		hit   vec.IVec3
		hitT  float64
		found bool
	)
	vec.Traverse(start, ld, tEnd-tEnter, func(c vec.IVec3, t float64, _ int) bool {
		if !m.InBounds(c.X, c.Y, c.Z) {
			return t == 0
		}
		if _, solid := m.Lookup(c.X, c.Y, c.Z); solid {
			hit, hitT, found = c, tEnter+t, true
			return false
		}
		return true
	})
	return hit, hitT, found
}
