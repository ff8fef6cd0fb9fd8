package color

import "math"

// Func вычисляет цвет вокселя по его координатам.
// Применяется к вновь открывшимся вокселям после CSG-операций.
type Func func(x, y, z int) Color

// Solid возвращает функцию одного цвета
func Solid(c Color) Func {
	return func(_, _, _ int) Color { return c }
}

// Jitter слегка варьирует яркость базового цвета детерминированно по координатам
func Jitter(c Color, amount uint8, seed int64) Func {
	return func(x, y, z int) Color {
		h := hash3(x, y, z, seed)
		d := int(h%uint32(2*int(amount)+1)) - int(amount)
		return Color{
			R: clampInt(int(c.R) + d),
			G: clampInt(int(c.G) + d),
			B: clampInt(int(c.B) + d),
			A: c.A,
		}
	}
}

// Waves раскрашивает синусоидами по осям: r по x, g по y, b по z
func Waves() Func {
	return func(x, y, z int) Color {
		return RGB(
			uint8(math.Sin(float64(x)*math.Pi/32)*63+192),
			uint8(math.Sin(float64(y)*math.Pi/32)*63+192),
			uint8(math.Sin(float64(z)*math.Pi/32)*63+192),
		)
	}
}

// Wood имитирует годовые кольца вокруг вертикальной оси
func Wood(c Color) Func {
	return func(x, y, z int) Color {
		r := math.Sqrt(float64(x*x + y*y))
		ring := math.Sin(r*0.5+float64(z)*0.05)*0.5 + 0.5
		return c.Scale(0.75 + 0.25*ring)
	}
}

// Floor окрашивает в шахматном порядке по x,y: полы и плитки
func Floor(a, b Color, cell int) Func {
	if cell <= 0 {
		cell = 1
	}
	return func(x, y, _ int) Color {
		if (floorDiv(x, cell)+floorDiv(y, cell))&1 == 0 {
			return a
		}
		return b
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func hash3(x, y, z int, seed int64) uint32 {
	h := uint32(seed) ^ 0x9e3779b9
	for _, v := range [3]int{x, y, z} {
		h ^= uint32(v)
		h *= 0x01000193
		h ^= h >> 15
	}
	return h
}

func clampInt(v int) uint8 {
	return uint8(min(max(v, 0), 255))
}
