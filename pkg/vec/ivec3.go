package vec

import "math"

// IVec3 представляет дискретную координату вокселя
type IVec3 struct {
	X int
	Y int
	Z int
}

// NewI создаёт IVec3 из компонент
func NewI(x, y, z int) IVec3 {
	return IVec3{X: x, Y: y, Z: z}
}

// Add складывает два вектора
func (v IVec3) Add(other IVec3) IVec3 {
	return IVec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v IVec3) Sub(other IVec3) IVec3 {
	return IVec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Mul умножает вектор на целый скаляр
func (v IVec3) Mul(f int) IVec3 {
	return IVec3{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

// Equals проверяет равенство векторов
func (v IVec3) Equals(other IVec3) bool {
	return v == other
}

// Center возвращает центр вокселя в мировых координатах
func (v IVec3) Center() Vec3 {
	return Vec3{X: float64(v.X) + 0.5, Y: float64(v.Y) + 0.5, Z: float64(v.Z) + 0.5}
}

// Vec3 возвращает угол вокселя (без смещения к центру)
func (v IVec3) Vec3() Vec3 {
	return Vec3{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// DistanceSq возвращает квадрат расстояния до другого вокселя
func (v IVec3) DistanceSq(other IVec3) int {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// DistanceTo возвращает расстояние до другого вокселя
func (v IVec3) DistanceTo(other IVec3) float64 {
	return math.Sqrt(float64(v.DistanceSq(other)))
}

// Min возвращает покомпонентный минимум
func (v IVec3) Min(other IVec3) IVec3 {
	return IVec3{X: min(v.X, other.X), Y: min(v.Y, other.Y), Z: min(v.Z, other.Z)}
}

// Max возвращает покомпонентный максимум
func (v IVec3) Max(other IVec3) IVec3 {
	return IVec3{X: max(v.X, other.X), Y: max(v.Y, other.Y), Z: max(v.Z, other.Z)}
}

// FaceOffsets шесть соседей вокселя в порядке граней 0..5
var FaceOffsets = [6]IVec3{
	{X: -1}, {X: 1},
	{Y: -1}, {Y: 1},
	{Z: -1}, {Z: 1},
}
