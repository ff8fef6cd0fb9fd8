// Package color описывает цвет вокселя и процедурные функции окраски.
package color

import (
	stdcolor "image/color"
	"math/rand"
)

// NeutralBrightness значение старшего байта упакованного цвета,
// при котором освещение не меняет цвет вокселя
const NeutralBrightness = 0x80

// Color цвет вокселя или пикселя
type Color struct {
	R uint8
	G uint8
	B uint8
	A uint8
}

// RGB создаёт непрозрачный цвет
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, A: 255}
}

// RGBA создаёт цвет с явной альфой
func RGBA(r, g, b, a uint8) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// Uint32 упаковывает цвет в 32 бита: нейтральная яркость 0x80 в старшем байте,
// затем r, g, b. Альфа в упаковку не попадает.
func (c Color) Uint32() uint32 {
	return NeutralBrightness<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// FromUint32 распаковывает r, g, b из 32-битного значения, A=255
func FromUint32(v uint32) Color {
	return RGB(uint8(v>>16), uint8(v>>8), uint8(v))
}

// Random возвращает случайный цвет с нейтральной альфой
func Random(rng *rand.Rand) Color {
	return RGBA(uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), NeutralBrightness)
}

// Scale умножает каналы r, g, b на коэффициент с насыщением
func (c Color) Scale(f float64) Color {
	return Color{R: clamp(float64(c.R) * f), G: clamp(float64(c.G) * f), B: clamp(float64(c.B) * f), A: c.A}
}

// Lerp линейно интерполирует все четыре канала
func (c Color) Lerp(other Color, t float64) Color {
	mix := func(a, b uint8) uint8 {
		return clamp(float64(a) + (float64(b)-float64(a))*t)
	}
	return Color{R: mix(c.R, other.R), G: mix(c.G, other.G), B: mix(c.B, other.B), A: mix(c.A, other.A)}
}

// Shade применяет байт освещения: 128 оставляет цвет без изменений
func (c Color) Shade(light uint8) Color {
	if light == NeutralBrightness {
		return c
	}
	return c.Scale(float64(light) / NeutralBrightness)
}

// NRGBA преобразует в цвет стандартной библиотеки изображений
func (c Color) NRGBA() stdcolor.NRGBA {
	return stdcolor.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// FromStd преобразует произвольный цвет image/color, альфа сохраняется
func FromStd(c stdcolor.Color) Color {
	n := stdcolor.NRGBAModel.Convert(c).(stdcolor.NRGBA)
	return Color{R: n.R, G: n.G, B: n.B, A: n.A}
}

// Luma возвращает яркость цвета 0..255
func (c Color) Luma() uint8 {
	return uint8((299*uint32(c.R) + 587*uint32(c.G) + 114*uint32(c.B)) / 1000)
}

func clamp(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
