package vec

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func TestVec3_Arithmetic(t *testing.T) {
	a := New(1, 2, 3)
	b := New(4, 5, 6)

	assert.Equal(t, New(5, 7, 9), a.Add(b), "Сумма векторов должна совпадать")
	assert.Equal(t, New(-3, -3, -3), a.Sub(b), "Разность векторов должна совпадать")
	assert.Equal(t, New(2, 4, 6), a.Mul(2), "Умножение на скаляр")
	assert.Equal(t, 32.0, a.Dot(b), "Скалярное произведение")
	assert.Equal(t, New(-3, 6, -3), a.Cross(b), "Векторное произведение")
	assert.InDelta(t, 5.0, New(3, 4, 0).Length(), eps)
	assert.Equal(t, Vec3{}, Zero().Normalized(), "Нормализация нулевого вектора даёт ноль")
}

func TestVec3_FloorAndCenter(t *testing.T) {
	assert.Equal(t, NewI(-1, 0, 2), New(-0.5, 0.99, 2.0).Floor(), "Floor округляет вниз")

	p := NewI(3, 4, 5)
	assert.Equal(t, New(3.5, 4.5, 5.5), p.Center(), "Центр вокселя смещён на 0.5")
	assert.Equal(t, New(3, 4, 5), p.Vec3(), "Vec3 сохраняет координаты точно")
	assert.Equal(t, p, p.Center().Floor(), "Центр вокселя лежит внутри вокселя")
}

func TestRandomUnit_IsUnitLength(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		v := RandomUnit(rng)
		assert.InDelta(t, 1.0, v.Length(), 1e-9, "Случайное направление должно быть единичным")
	}
}

func TestBox_Operations(t *testing.T) {
	b := BoxFromCorners(NewI(5, 5, 5), NewI(2, 3, 4))
	assert.Equal(t, NewI(2, 3, 4), b.Min)
	assert.Equal(t, NewI(6, 6, 6), b.Max)
	assert.Equal(t, 4*3*2, b.Volume())
	assert.True(t, b.Contains(NewI(5, 5, 5)), "Угол включается")
	assert.False(t, b.Contains(NewI(6, 5, 5)), "Max не включается")

	domain := Box{Max: NewI(4, 4, 4)}
	clipped := b.Clip(domain)
	assert.Equal(t, Box{Min: NewI(2, 3, 4), Max: NewI(4, 4, 4)}, clipped)
	assert.True(t, clipped.Empty(), "Пересечение по Z пустое")

	assert.Equal(t, b, Box{}.Union(b), "Объединение с пустым регионом")
	assert.Equal(t, NewI(1, 2, 3), b.Expand(1).Min)
}

func TestAxisRotate(t *testing.T) {
	p := AxisRotate(New(1, 0, 0), New(0, 0, 1), math.Pi/2)
	assert.InDelta(t, 0.0, p.X, 1e-9)
	assert.InDelta(t, 1.0, p.Y, 1e-9)
	assert.InDelta(t, 0.0, p.Z, 1e-9)

	same := AxisRotate(New(1, 2, 3), Vec3{}, 1)
	assert.Equal(t, New(1, 2, 3), same, "Нулевая ось не поворачивает вектор")
}

func TestOrthonormalize(t *testing.T) {
	a, b, c := Orthonormalize(New(2, 0, 0), New(1, 3, 0), New(0, 0, 5))
	assert.InDelta(t, 1.0, a.Length(), eps)
	assert.InDelta(t, 1.0, b.Length(), eps)
	assert.InDelta(t, 1.0, c.Length(), eps)
	assert.InDelta(t, 0.0, a.Dot(b), eps)
	assert.InDelta(t, 0.0, a.Dot(c), eps)
	assert.InDelta(t, 0.0, b.Dot(c), eps)
	assert.Greater(t, c.Z, 0.0, "Третий вектор сохраняет направление")
}

func TestOrientation_RoundTrip(t *testing.T) {
	o := DefaultOrientation(New(10, 20, 30)).Rotate(New(1, 1, 0), 0.7)
	local := New(1.5, -2, 3.25)

	w := o.ToWorld(local)
	back, ok := o.ToLocal(w)
	require.True(t, ok, "Базис должен быть обратимым")
	assert.InDelta(t, local.X, back.X, 1e-9)
	assert.InDelta(t, local.Y, back.Y, 1e-9)
	assert.InDelta(t, local.Z, back.Z, 1e-9)

	_, ok = Orientation{}.ToLocal(w)
	assert.False(t, ok, "Вырожденный базис не обратим")
}

func TestSlerp_Endpoints(t *testing.T) {
	a := DefaultOrientation(New(0, 0, 0))
	b := a.Rotate(New(0, 0, 1), math.Pi/2)
	b.Pos = New(10, 0, 0)

	start := Slerp(a, b, 0)
	end := Slerp(a, b, 1)
	mid := Slerp(a, b, 0.5)

	assert.InDelta(t, 0.0, start.Right.Sub(a.Right).Length(), 1e-9)
	assert.InDelta(t, 0.0, end.Right.Sub(b.Right).Length(), 1e-9)
	assert.InDelta(t, 5.0, mid.Pos.X, 1e-9)
	assert.InDelta(t, 1.0, mid.Right.Length(), 1e-9)
}
