package render

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/sprite"
	"github.com/annel0/voxworld/pkg/vec"
	"github.com/annel0/voxworld/pkg/world"
)

var red = color.RGB(255, 0, 0)

// setupScene мир 64x64 с красным полом z 40..63 и камерой, смотрящей вниз
func setupScene(t *testing.T) (*Renderer, *Framebuffer) {
	t.Helper()
	w, err := world.New(64, 64)
	require.NoError(t, err)
	_, err = w.SetRect(vec.NewI(0, 0, 40), vec.NewI(63, 63, 63), world.Insert(red))
	require.NoError(t, err)
	w.CommitAll()

	fb, err := NewFramebuffer(32, 32)
	require.NoError(t, err)
	r := New(w)
	r.BindFramebuffer(fb)
	r.SetCamera(CameraFor(fb, vec.AxisAligned(vec.New(32, 32, 10)), 1))
	return r, fb
}

func TestFramebuffer_Validation(t *testing.T) {
	_, err := NewFramebuffer(0, 10)
	assert.ErrorIs(t, err, ErrBadFramebuffer)

	_, err = WrapFramebuffer(make([]byte, 100), 10, 2, 30)
	assert.ErrorIs(t, err, ErrBadFramebuffer, "шаг меньше 4*width")

	_, err = WrapFramebuffer(make([]byte, 50), 10, 2, 40)
	assert.ErrorIs(t, err, ErrBadFramebuffer, "памяти меньше размера")

	fb, err := WrapFramebuffer(make([]byte, 40+48), 10, 2, 48)
	require.NoError(t, err, "шаг больше ширины допустим")
	fb.SetPixel(9, 1, red)
	c, ok := fb.Pixel(9, 1)
	require.True(t, ok)
	assert.Equal(t, red, c)
	_, ok = fb.Pixel(10, 1)
	assert.False(t, ok)
}

func TestFramebuffer_FromRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	fb, err := FromRGBA(img)
	require.NoError(t, err)

	fb.SetPixel(3, 2, red)
	r, g, b, a := img.At(3, 2).RGBA()
	assert.Equal(t, [4]uint32{0xffff, 0, 0, 0xffff}, [4]uint32{r, g, b, a}, "память изображения общая")

	fb.Clear(color.RGB(1, 2, 3))
	c, _ := fb.Pixel(0, 0)
	assert.Equal(t, color.RGB(1, 2, 3), c)
	assert.True(t, math.IsInf(fb.Depth(0, 0), 1), "Clear сбрасывает глубину")
}

func TestRenderer_NoFramebuffer(t *testing.T) {
	w, err := world.New(64, 64)
	require.NoError(t, err)
	r := New(w)
	assert.ErrorIs(t, r.Cast(), ErrNoFramebuffer)
	assert.ErrorIs(t, r.DrawPoint2D(0, 0, red), ErrNoFramebuffer)
	assert.ErrorIs(t, r.Screenshot(&bytes.Buffer{}), ErrNoFramebuffer)

	fb, err := NewFramebuffer(4, 4)
	require.NoError(t, err)
	r.SetWorld(nil)
	r.BindFramebuffer(fb)
	assert.ErrorIs(t, r.Cast(), ErrNoWorld)
}

func TestRenderer_CastFloor(t *testing.T) {
	r, fb := setupScene(t)
	require.NoError(t, r.Cast())

	c, ok := fb.Pixel(16, 16)
	require.True(t, ok)
	assert.Greater(t, c.R, uint8(200), "центр кадра видит красный пол")
	assert.Less(t, c.G, uint8(40))
	assert.InDelta(t, 30.0, fb.Depth(16, 16), 1e-3, "глубина вдоль направления взгляда")

	r.SetFogColor(color.RGB(0, 0, 0))
	r.SetMaxScanDist(60)
	require.NoError(t, r.Cast())
	c, _ = fb.Pixel(16, 16)
	assert.Less(t, c.R, uint8(140), "туман затемняет дальние воксели")
}

func TestRenderer_Sky(t *testing.T) {
	r, fb := setupScene(t)
	fog := color.RGB(10, 20, 30)
	r.SetFogColor(fog)
	up := vec.Orientation{Pos: vec.New(32, 32, 10), Right: vec.New(1, 0, 0), Down: vec.New(0, -1, 0), Forward: vec.New(0, 0, -1)}
	r.SetCamera(CameraFor(fb, up, 1))
	require.NoError(t, r.Cast())

	c, _ := fb.Pixel(5, 7)
	assert.Equal(t, fog, c, "без картинки небо цвета тумана")
	assert.True(t, math.IsInf(fb.Depth(5, 7), 1))

	sky := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(sky.Pix); i += 4 {
		sky.Pix[i], sky.Pix[i+1], sky.Pix[i+2], sky.Pix[i+3] = 200, 200, 200, 255
	}
	r.SetSky(sky)
	require.NoError(t, r.Cast())
	c, _ = fb.Pixel(5, 7)
	assert.Equal(t, color.RGB(200, 200, 200), c, "небо берётся из картинки")
}

func TestRenderer_Density(t *testing.T) {
	r, fb := setupScene(t)
	assert.Error(t, r.SetRaycastDensity(0))
	require.NoError(t, r.SetRaycastDensity(4))
	assert.Equal(t, 4, r.RaycastDensity())
	require.NoError(t, r.Cast())

	first, _ := fb.Pixel(4, 8)
	for y := 8; y < 12; y++ {
		for x := 4; x < 8; x++ {
			c, _ := fb.Pixel(x, y)
			assert.Equal(t, first, c, "один луч на блок 4x4")
		}
	}
}

func TestRenderer_CastCancelled(t *testing.T) {
	r, _ := setupScene(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.CastContext(ctx), context.Canceled)
}

func TestRenderer_Project(t *testing.T) {
	r, _ := setupScene(t)

	sx, sy, depth, ok := r.Project(vec.New(32, 32, 40))
	require.True(t, ok)
	assert.InDelta(t, 16.0, sx, 1e-9)
	assert.InDelta(t, 16.0, sy, 1e-9)
	assert.InDelta(t, 30.0, depth, 1e-9)

	_, _, _, ok = r.Project(vec.New(32, 32, 0))
	assert.False(t, ok, "точка позади камеры")
	_, _, _, ok = r.Project(vec.New(500, 32, 11))
	assert.False(t, ok, "точка вне кадра")
}

func TestRenderer_DepthTestedPrimitives(t *testing.T) {
	r, fb := setupScene(t)
	require.NoError(t, r.Cast())
	before, _ := fb.Pixel(16, 16)

	blue := color.RGB(0, 0, 255)
	require.NoError(t, r.DrawPoint3D(vec.New(32.2, 32.2, 45), blue))
	c, _ := fb.Pixel(16, 16)
	assert.Equal(t, before, c, "точка за полом не видна")

	require.NoError(t, r.DrawPoint3D(vec.New(32.2, 32.2, 20), blue))
	c, _ = fb.Pixel(16, 16)
	assert.Equal(t, blue, c, "точка перед полом видна")

	require.NoError(t, r.DrawSphereFill(vec.New(32, 32, 30), 2, blue, true))
	c, _ = fb.Pixel(15, 15)
	assert.Equal(t, blue, c)

	m, err := sprite.NewModel("dot", vec.NewI(1, 1, 1), vec.Vec3{}, []sprite.Voxel{{Color: color.RGB(0, 255, 0)}})
	require.NoError(t, err)
	spr := sprite.NewBorrowed(m, vec.AxisAligned(vec.New(40, 40, 20)))
	require.NoError(t, r.DrawSprite(spr))
	sx, sy, _, ok := r.Project(sprite.VoxelCenter(spr, vec.IVec3{}))
	require.True(t, ok)
	c, _ = fb.Pixel(int(sx), int(sy))
	assert.Equal(t, color.RGB(0, 255, 0), c, "воксель спрайта нарисован")
}

func TestRenderer_2DPrimitives(t *testing.T) {
	r, fb := setupScene(t)
	fb.Clear(color.RGB(0, 0, 0))
	white := color.RGB(255, 255, 255)

	require.NoError(t, r.DrawLine2D(2, 3, 12, 9, white))
	for _, p := range [][2]int{{2, 3}, {12, 9}} {
		c, _ := fb.Pixel(p[0], p[1])
		assert.Equal(t, white, c, "концы отрезка закрашены")
	}

	bg := color.RGB(0, 0, 128)
	require.NoError(t, r.PrintText(0, 0, white, &bg, "A"))
	c, _ := fb.Pixel(0, 12)
	assert.Equal(t, bg, c, "фон текста")
	lit := 0
	for y := 0; y < 13; y++ {
		for x := 0; x < 7; x++ {
			if c, _ := fb.Pixel(x, y); c == white {
				lit++
			}
		}
	}
	assert.Greater(t, lit, 5, "глиф нарисован")

	tile := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(tile.Pix); i += 4 {
		tile.Pix[i], tile.Pix[i+3] = 255, 255
	}
	require.NoError(t, r.DrawTile(tile, TileSpec{X: 20, Y: 20, ZoomX: 2, ZoomY: 2}))
	c, _ = fb.Pixel(23, 23)
	assert.Equal(t, red, c, "увеличенный фрагмент")

	require.NoError(t, r.DrawPicInQuad(tile, image.Rect(24, 0, 32, 8)))
	c, _ = fb.Pixel(28, 4)
	assert.Equal(t, red, c)
}

func TestRenderer_Screenshot(t *testing.T) {
	r, _ := setupScene(t)
	require.NoError(t, r.Cast())

	var buf bytes.Buffer
	require.NoError(t, r.Screenshot(&buf))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 32), img.Bounds())
}

func TestRenderer_SurroundCapture(t *testing.T) {
	r, fb := setupScene(t)
	fog := color.RGB(10, 20, 30)
	r.SetFogColor(fog)

	faces, err := r.SurroundCapture(vec.New(32, 32, 10), 8)
	require.NoError(t, err)
	for i, img := range faces {
		require.NotNil(t, img, "грань %d", i)
		assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())
	}
	down := color.FromStd(faces[5].At(4, 4))
	assert.Greater(t, down.R, uint8(200), "вниз виден пол")
	up := color.FromStd(faces[4].At(4, 4))
	assert.Equal(t, fog, up, "вверх видно небо")

	assert.Same(t, fb, r.Framebuffer(), "привязанный буфер восстановлен")
}
