package vec

import "math"

// FaceInside номер грани для клетки, в которой луч начинается
const FaceInside = -1

// Traverse обходит клетки сетки вдоль луча origin + dir*t для t в [0, tMax].
// visit получает клетку, параметр входа и номер грани, через которую луч вошёл
// (индексы FaceOffsets). Обход прекращается, когда visit возвращает false.
func Traverse(origin, dir Vec3, tMax float64, visit func(cell IVec3, t float64, face int) bool) {
	cell := origin.Floor()
	if !visit(cell, 0, FaceInside) {
		return
	}
	if dir.IsZero() || math.IsInf(tMax, 1) || math.IsNaN(tMax) {
		return
	}

	var (
		pos    = [3]int{cell.X, cell.Y, cell.Z}
		o      = [3]float64{origin.X, origin.Y, origin.Z}
		d      = [3]float64{dir.X, dir.Y, dir.Z}
		step   [3]int
		tNext  [3]float64
		tDelta [3]float64
	)
	for a := 0; a < 3; a++ {
		switch {
		case d[a] > 0:
			step[a] = 1
			tNext[a] = (float64(pos[a]+1) - o[a]) / d[a]
			tDelta[a] = 1 / d[a]
		case d[a] < 0:
			step[a] = -1
			tNext[a] = (float64(pos[a]) - o[a]) / d[a]
			tDelta[a] = -1 / d[a]
		default:
			tNext[a] = math.Inf(1)
			tDelta[a] = math.Inf(1)
		}
	}

	for {
		axis := 0
		if tNext[1] < tNext[axis] {
			axis = 1
		}
		if tNext[2] < tNext[axis] {
			axis = 2
		}
		t := tNext[axis]
		if t > tMax {
			return
		}
		pos[axis] += step[axis]
		tNext[axis] += tDelta[axis]

		// Луч, идущий в +X, входит в клетку через её грань -X
		face := axis * 2
		if step[axis] < 0 {
			face++
		}
		if !visit(IVec3{X: pos[0], Y: pos[1], Z: pos[2]}, t, face) {
			return
		}
	}
}

// RayBox пересекает луч с полуоткрытым регионом по методу плит.
// Возвращает параметры входа и выхода; false, если пересечения нет.
func RayBox(origin, dir Vec3, b Box) (float64, float64, bool) {
	tmin, tmax := math.Inf(-1), math.Inf(1)
	lo := b.Min.Vec3()
	hi := b.Max.Vec3()
	for a := 0; a < 3; a++ {
		o, d := origin.Component(a), dir.Component(a)
		l, h := lo.Component(a), hi.Component(a)
		if d == 0 {
			if o < l || o >= h {
				return 0, 0, false
			}
			continue
		}
		t1 := (l - o) / d
		t2 := (h - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
	}
	if tmax < tmin || tmax < 0 {
		return 0, 0, false
	}
	return math.Max(tmin, 0), tmax, true
}
