package color

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColor_Packing(t *testing.T) {
	c := RGB(0x12, 0x34, 0x56)
	assert.Equal(t, uint8(255), c.A, "RGB задаёт непрозрачную альфу")
	assert.Equal(t, uint32(0x80123456), c.Uint32(), "Упаковка с нейтральной яркостью")

	back := FromUint32(c.Uint32())
	assert.Equal(t, c, back, "Распаковка должна вернуть исходный цвет")

	semi := RGBA(1, 2, 3, 4)
	assert.Equal(t, uint32(0x80010203), semi.Uint32(), "Альфа не влияет на упаковку")
}

func TestColor_Shade(t *testing.T) {
	c := RGB(100, 200, 50)
	assert.Equal(t, c, c.Shade(NeutralBrightness), "Нейтральная яркость не меняет цвет")
	assert.Equal(t, RGB(50, 100, 25), c.Shade(64), "Половинная яркость")
	assert.Equal(t, uint8(255), c.Shade(255).G, "Насыщение канала")
}

func TestColor_Lerp(t *testing.T) {
	a := RGB(0, 0, 0)
	b := RGB(200, 100, 50)
	assert.Equal(t, a, a.Lerp(b, 0))
	assert.Equal(t, b, a.Lerp(b, 1))
	assert.Equal(t, RGB(100, 50, 25), a.Lerp(b, 0.5))
}

func TestFuncs(t *testing.T) {
	red := RGB(255, 0, 0)
	assert.Equal(t, red, Solid(red)(1, 2, 3))

	j := Jitter(RGB(100, 100, 100), 10, 7)
	for i := 0; i < 50; i++ {
		c := j(i, i*3, i*7)
		assert.InDelta(t, 100, int(c.R), 10, "Отклонение не превышает amount")
		assert.Equal(t, c, j(i, i*3, i*7), "Функция детерминирована")
	}

	f := Floor(red, RGB(0, 0, 255), 4)
	assert.Equal(t, red, f(0, 0, 0))
	assert.Equal(t, RGB(0, 0, 255), f(4, 0, 0))
	assert.Equal(t, RGB(0, 0, 255), f(-1, 0, 0), "Отрицательные координаты")

	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, uint8(NeutralBrightness), Random(rng).A)
}
