package vec

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Orientation описывает позу: позицию и базис right/down/forward.
// Для корректной проекции базис должен быть ортонормированным,
// но сама структура этого не проверяет.
type Orientation struct {
	Pos     Vec3
	Right   Vec3
	Down    Vec3
	Forward Vec3
}

// DefaultOrientation возвращает позу в точке pos со стандартным базисом:
// right=+X, down=+Z (ось Z направлена вниз), forward=-Y.
// Базис правый: Right x Down = Forward.
func DefaultOrientation(pos Vec3) Orientation {
	return Orientation{
		Pos:     pos,
		Right:   Vec3{X: 1},
		Down:    Vec3{Z: 1},
		Forward: Vec3{Y: -1},
	}
}

// AxisAligned возвращает позу с базисом, совпадающим с осями мира
func AxisAligned(pos Vec3) Orientation {
	return Orientation{
		Pos:     pos,
		Right:   Vec3{X: 1},
		Down:    Vec3{Y: 1},
		Forward: Vec3{Z: 1},
	}
}

// ToWorld переводит локальную точку (x по Right, y по Down, z по Forward) в мир
func (o Orientation) ToWorld(local Vec3) Vec3 {
	return o.Pos.
		Add(o.Right.Mul(local.X)).
		Add(o.Down.Mul(local.Y)).
		Add(o.Forward.Mul(local.Z))
}

// ToLocal переводит мировую точку в локальные координаты базиса.
// Вырожденный базис возвращает false.
func (o Orientation) ToLocal(world Vec3) (Vec3, bool) {
	inv, ok := o.inverse()
	if !ok {
		return Vec3{}, false
	}
	return fromMgl(inv.Mul3x1(world.Sub(o.Pos).mgl())), true
}

// DirToLocal переводит направление в локальный базис (без смещения)
func (o Orientation) DirToLocal(dir Vec3) (Vec3, bool) {
	inv, ok := o.inverse()
	if !ok {
		return Vec3{}, false
	}
	return fromMgl(inv.Mul3x1(dir.mgl())), true
}

func (o Orientation) inverse() (mgl64.Mat3, bool) {
	m := mgl64.Mat3FromCols(o.Right.mgl(), o.Down.mgl(), o.Forward.mgl())
	if math.Abs(m.Det()) < 1e-12 {
		return mgl64.Mat3{}, false
	}
	return m.Inv(), true
}

// Rotate поворачивает базис вокруг оси на угол (радианы), позиция не меняется
func (o Orientation) Rotate(axis Vec3, angle float64) Orientation {
	o.Right = AxisRotate(o.Right, axis, angle)
	o.Down = AxisRotate(o.Down, axis, angle)
	o.Forward = AxisRotate(o.Forward, axis, angle)
	return o
}

// Orthonormalized возвращает позу с ортонормированным базисом
func (o Orientation) Orthonormalized() Orientation {
	o.Right, o.Down, o.Forward = Orthonormalize(o.Right, o.Down, o.Forward)
	return o
}

// AxisRotate поворачивает вектор p вокруг оси axis на угол w (радианы)
func AxisRotate(p, axis Vec3, w float64) Vec3 {
	n := axis.Normalized()
	if n.IsZero() {
		return p
	}
	q := mgl64.QuatRotate(w, n.mgl())
	return fromMgl(q.Rotate(p.mgl()))
}

// ZRotate поворачивает вектор вокруг вертикальной оси
func ZRotate(p Vec3, w float64) Vec3 {
	return AxisRotate(p, Vec3{Z: 1}, w)
}

// Orthonormalize делает векторы взаимно перпендикулярными и единичными.
// Направление v0 не меняется.
func Orthonormalize(v0, v1, v2 Vec3) (Vec3, Vec3, Vec3) {
	a := v0.Normalized()
	b := v1.Sub(a.Mul(a.Dot(v1))).Normalized()
	c := a.Cross(b)
	if c.Dot(v2) < 0 {
		c = c.Mul(-1)
	}
	return a, b, c
}

// OrthoRotate поворачивает три вектора базиса на углы yaw (вокруг Z),
// pitch (вокруг X) и roll (вокруг Y).
func OrthoRotate(yaw, pitch, roll float64, right, down, forward Vec3) (Vec3, Vec3, Vec3) {
	q := mgl64.AnglesToQuat(yaw, pitch, roll, mgl64.ZXY)
	return fromMgl(q.Rotate(right.mgl())),
		fromMgl(q.Rotate(down.mgl())),
		fromMgl(q.Rotate(forward.mgl()))
}

// Slerp сферически интерполирует между двумя ортонормированными базисами.
// t=0 возвращает базис a, t=1 базис b. Позиция интерполируется линейно.
func Slerp(a, b Orientation, t float64) Orientation {
	qa := mgl64.Mat4ToQuat(mgl64.Mat3FromCols(a.Right.mgl(), a.Down.mgl(), a.Forward.mgl()).Mat4())
	qb := mgl64.Mat4ToQuat(mgl64.Mat3FromCols(b.Right.mgl(), b.Down.mgl(), b.Forward.mgl()).Mat4())
	m := mgl64.QuatSlerp(qa, qb, t).Mat4()
	return Orientation{
		Pos:     a.Pos.Lerp(b.Pos, t),
		Right:   fromMgl(m.Col(0).Vec3()),
		Down:    fromMgl(m.Col(1).Vec3()),
		Forward: fromMgl(m.Col(2).Vec3()),
	}
}
