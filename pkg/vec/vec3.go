// Package vec содержит векторные типы мира вокселей: точки и направления
// с плавающей точкой, целочисленные координаты вокселей и регионы.
package vec

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 представляет точку или направление в мировом пространстве
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// New создаёт Vec3 из компонент
func New(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Zero возвращает нулевой вектор
func Zero() Vec3 {
	return Vec3{}
}

// Identity возвращает вектор (1,1,1), используется как единичный масштаб
func Identity() Vec3 {
	return Vec3{X: 1, Y: 1, Z: 1}
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Mul умножает вектор на скаляр
func (v Vec3) Mul(scalar float64) Vec3 {
	return Vec3{X: v.X * scalar, Y: v.Y * scalar, Z: v.Z * scalar}
}

// MulComponents покомпонентно умножает векторы
func (v Vec3) MulComponents(other Vec3) Vec3 {
	return Vec3{X: v.X * other.X, Y: v.Y * other.Y, Z: v.Z * other.Z}
}

// Dot возвращает скалярное произведение
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross возвращает векторное произведение
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// LengthSq возвращает квадрат длины вектора
func (v Vec3) LengthSq() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Length возвращает длину вектора
func (v Vec3) Length() float64 {
	return math.Sqrt(v.LengthSq())
}

// Normalized возвращает нормализованный вектор.
// Для нулевого вектора возвращается нулевой вектор.
func (v Vec3) Normalized() Vec3 {
	length := v.Length()
	if length == 0 {
		return Vec3{}
	}
	return v.Mul(1 / length)
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Length()
}

// Lerp линейно интерполирует между v и other
func (v Vec3) Lerp(other Vec3, t float64) Vec3 {
	return v.Add(other.Sub(v).Mul(t))
}

// Floor возвращает координату вокселя, содержащего точку
func (v Vec3) Floor() IVec3 {
	return IVec3{
		X: int(math.Floor(v.X)),
		Y: int(math.Floor(v.Y)),
		Z: int(math.Floor(v.Z)),
	}
}

// IsFinite сообщает, что все компоненты конечны и не NaN
func (v Vec3) IsFinite() bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// CoordLimit предел координаты, до которого FloorClamped обрезает компоненты
const CoordLimit = 1 << 40

// FloorClamped как Floor, но компоненты обрезаются до [-CoordLimit, CoordLimit],
// чтобы перевод в int не переполнялся
func (v Vec3) FloorClamped() IVec3 {
	c := func(f float64) int {
		return int(math.Max(-CoordLimit, math.Min(CoordLimit, math.Floor(f))))
	}
	return IVec3{X: c(v.X), Y: c(v.Y), Z: c(v.Z)}
}

// Component возвращает компоненту по индексу оси (0=X, 1=Y, 2=Z)
func (v Vec3) Component(axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// IsZero проверяет, что все компоненты равны нулю
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// RandomUnit возвращает случайное направление, равномерно распределённое по сфере
func RandomUnit(rng *rand.Rand) Vec3 {
	z := rng.Float64()*2 - 1
	a := (rng.Float64()*2 - 1) * math.Pi
	r := math.Sqrt(1 - z*z)
	return Vec3{X: math.Cos(a) * r, Y: math.Sin(a) * r, Z: z}
}

func (v Vec3) mgl() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

func fromMgl(m mgl64.Vec3) Vec3 {
	return Vec3{X: m[0], Y: m[1], Z: m[2]}
}
