package engine

import (
	"bytes"
	"context"
	"image"
	stdcolor "image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/voxworld/internal/config"
	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/sprite"
	"github.com/annel0/voxworld/pkg/vec"
	"github.com/annel0/voxworld/pkg/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(assetDir string) *config.Config {
	cfg := config.Default()
	cfg.Engine.WorldSide = 64
	cfg.Engine.WorldDepth = 64
	cfg.Render.Width = 32
	cfg.Render.Height = 24
	cfg.Assets.Dirs = []string{assetDir}
	cfg.Assets.CacheMB = 1
	return cfg
}

func newTestEngine(t *testing.T, mutate func(cfg *config.Config)) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := testConfig(dir)
	if mutate != nil {
		mutate(cfg)
	}
	e, err := Init(cfg)
	require.NoError(t, err, "движок должен запускаться")
	t.Cleanup(func() { _ = e.Shutdown() })
	return e, dir
}

func writeModel(t *testing.T, dir, name string, side int, c color.Color) {
	t.Helper()
	var voxels []sprite.Voxel
	for z := 0; z < side; z++ {
		for y := 0; y < side; y++ {
			for x := 0; x < side; x++ {
				voxels = append(voxels, sprite.Voxel{X: x, Y: y, Z: z, Color: c})
			}
		}
	}
	m, err := sprite.NewModel(name, vec.NewI(side, side, side), vec.Vec3{}, voxels)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, sprite.EncodeModel(&buf, m))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
}

func TestInit_ConfigApplied(t *testing.T) {
	e, _ := newTestEngine(t, func(cfg *config.Config) {
		cfg.Lighting.Mode = "normal"
		cfg.Engine.PaintColor = "#102030"
		cfg.Render.RaycastDensity = 2
	})
	w, err := e.World()
	require.NoError(t, err)
	assert.Equal(t, 64, w.Side())
	assert.Equal(t, 64, w.Depth())
	assert.Equal(t, world.LightEstimatedNormal, w.LightingMode())
	assert.Equal(t, color.RGB(0x10, 0x20, 0x30), w.PaintColor())

	r, err := e.Renderer()
	require.NoError(t, err)
	assert.Equal(t, 2, r.RaycastDensity())
	require.NotNil(t, r.Framebuffer())
	assert.Equal(t, 32, r.Framebuffer().Width)

	reg, err := e.Metrics()
	require.NoError(t, err)
	assert.NotNil(t, reg)
}

func TestInit_InvalidConfig(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Engine.WorldSide = 100
	_, err := Init(cfg)
	assert.Error(t, err)
}

func TestShutdown_Idempotent(t *testing.T) {
	e, dir := newTestEngine(t, nil)
	writeModel(t, dir, "cube.vxm", 2, color.RGB(1, 2, 3))

	require.NoError(t, e.Shutdown())
	require.NoError(t, e.Shutdown(), "повторный Shutdown безопасен")

	_, err := e.World()
	assert.ErrorIs(t, err, ErrEngineClosed)
	_, err = e.Renderer()
	assert.ErrorIs(t, err, ErrEngineClosed)
	_, err = e.LoadSprite("cube.vxm")
	assert.ErrorIs(t, err, ErrEngineClosed)
	_, err = e.LoadDefaultWorld(1)
	assert.ErrorIs(t, err, ErrEngineClosed)
	_, _, err = e.MeltBox(vec.NewI(0, 0, 0), vec.NewI(1, 1, 1))
	assert.ErrorIs(t, err, ErrEngineClosed)
	assert.ErrorIs(t, e.Render(context.Background()), ErrEngineClosed)
}

func TestShutdown_DetachesWorld(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	_, err := e.LoadDefaultWorld(7)
	require.NoError(t, err)
	w, err := e.World()
	require.NoError(t, err)
	require.Greater(t, w.CountSolid(w.Bounds()), 0)

	require.NoError(t, e.Shutdown())
	assert.True(t, w.Closed(), "мир отсоединяется при завершении")
	_, err = w.SetSphere(vec.NewI(32, 32, 32), 4, world.Insert(color.RGB(1, 2, 3)))
	assert.ErrorIs(t, err, ErrEngineClosed, "старая ссылка на мир не изменяет его")
	_, err = w.SetRect(vec.NewI(0, 0, 0), vec.NewI(3, 3, 3), world.Remove())
	assert.ErrorIs(t, err, ErrEngineClosed)
	assert.False(t, w.IsSolid(vec.NewI(32, 32, 63)))
}

func TestLoadSprite_SharedModel(t *testing.T) {
	e, dir := newTestEngine(t, nil)
	writeModel(t, dir, "cube.vxm", 3, color.RGB(200, 0, 0))

	a, err := e.LoadSprite("cube.vxm")
	require.NoError(t, err)
	b, err := e.LoadSprite("cube.vxm")
	require.NoError(t, err)
	assert.Same(t, a.Model(), b.Model(), "одно имя разделяет модель")
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 27, a.Model().Mass())

	_, err = e.LoadSprite("missing.vxm")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadSprite_Animation(t *testing.T) {
	e, dir := newTestEngine(t, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "anim"), 0o755))
	writeModel(t, filepath.Join(dir, "anim"), "a.vxm", 1, color.RGB(1, 1, 1))
	writeModel(t, filepath.Join(dir, "anim"), "b.vxm", 2, color.RGB(2, 2, 2))
	manifest := `
name: blink
frames: [a.vxm, b.vxm]
sequence:
  - frame: 0
    ms: 100
  - frame: 1
    ms: 100
  - loop: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "anim", "blink.vxa"), []byte(manifest), 0o644))

	s, err := e.LoadSprite("anim/blink.vxa")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Model().Mass())
	s.AdvanceAnimation(150)
	assert.Equal(t, 8, s.Model().Mass(), "через 150 мс показан второй кадр")

	frame, err := e.LoadSprite("anim/b.vxm")
	require.NoError(t, err)
	assert.Same(t, s.Animation().Frames[1], frame.Model(), "кадры анимации лежат в общем кэше")
}

func TestMelt_TracksOwnedSprites(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	w, err := e.World()
	require.NoError(t, err)
	_, err = w.SetSphere(vec.NewI(32, 32, 32), 4, world.Insert(color.RGB(9, 9, 9)))
	require.NoError(t, err)

	a, mass, err := e.MeltSphere(vec.NewI(32, 32, 32), 4)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Greater(t, mass, 0)
	b, _, err := e.MeltBox(vec.NewI(28, 28, 28), vec.NewI(8, 8, 8))
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 2, e.OwnedSprites())

	require.NoError(t, a.Close())
	assert.Equal(t, 1, e.OwnedSprites())

	none, mass, err := e.MeltBox(vec.NewI(0, 0, 0), vec.NewI(2, 2, 2))
	require.NoError(t, err)
	assert.Nil(t, none, "пустой регион не даёт спрайта")
	assert.Equal(t, 0, mass)

	require.NoError(t, e.Shutdown())
	assert.True(t, b.Released(), "незакрытый спрайт освобождается при завершении")
	assert.ErrorIs(t, b.Close(), ErrReleased)
}

func TestDetachFloating(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	w, err := e.World()
	require.NoError(t, err)
	_, err = w.SetRect(vec.NewI(10, 10, 10), vec.NewI(12, 12, 12), world.Insert(color.RGB(5, 5, 5)))
	require.NoError(t, err)

	pieces, err := e.DetachFloating(w.Bounds())
	require.NoError(t, err)
	require.Len(t, pieces, 1)
	assert.Equal(t, 27, pieces[0].Model().Mass())
	assert.False(t, w.IsSolid(vec.NewI(11, 11, 11)), "кусок вырезан из мира")
	assert.Equal(t, 1, e.OwnedSprites())
}

func TestSaveLoadWorld(t *testing.T) {
	e, dir := newTestEngine(t, nil)
	pose, err := e.LoadDefaultWorld(42)
	require.NoError(t, err)
	w, err := e.World()
	require.NoError(t, err)
	assert.False(t, w.IsSolid(pose.Pos.Floor()), "стартовая поза в воздухе")
	assert.Greater(t, w.CountSolid(w.Bounds()), 0)

	path := filepath.Join(dir, "saved"+world.SnapshotExt)
	require.NoError(t, e.SaveWorld(path, pose))
	solid := w.CountSolid(w.Bounds())

	require.NoError(t, e.NewWorld())
	empty, err := e.World()
	require.NoError(t, err)
	assert.Equal(t, 0, empty.CountSolid(empty.Bounds()))

	loaded, err := e.LoadWorld("saved" + world.SnapshotExt)
	require.NoError(t, err)
	assert.Equal(t, pose.Pos, loaded.Pos)
	restored, err := e.World()
	require.NoError(t, err)
	assert.Equal(t, solid, restored.CountSolid(restored.Bounds()))

	require.NoError(t, e.SetView(loaded))
	require.NoError(t, e.Render(context.Background()))
}

func TestSnapshots(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	_, err := e.SaveSnapshot(context.Background(), "x", vec.AxisAligned(vec.Vec3{}))
	assert.ErrorIs(t, err, ErrNoStore, "без пути хранилища снимки недоступны")

	store := t.TempDir()
	e2, _ := newTestEngine(t, func(cfg *config.Config) { cfg.Storage.SnapshotPath = store })
	ctx := context.Background()
	w, err := e2.World()
	require.NoError(t, err)
	_, err = w.SetSphere(vec.NewI(20, 20, 20), 3, world.Insert(color.RGB(1, 200, 1)))
	require.NoError(t, err)

	pose := vec.DefaultOrientation(vec.New(5, 6, 7))
	info, err := e2.SaveSnapshot(ctx, "first", pose)
	require.NoError(t, err)
	assert.Equal(t, 64, info.Side)

	list, err := e2.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "first", list[0].Name)

	require.NoError(t, e2.NewWorld())
	got, err := e2.LoadSnapshot(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, pose.Pos, got.Pos)
	w, err = e2.World()
	require.NoError(t, err)
	assert.True(t, w.IsSolid(vec.NewI(20, 20, 20)))

	_, err = e2.LoadSnapshot(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, e2.DeleteSnapshot(ctx, "first"))
}

func writePNG(t *testing.T, path string, fill func(x, y int) stdcolor.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, fill(x, y))
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestLoadHeightmapWorld(t *testing.T) {
	e, dir := newTestEngine(t, nil)
	writePNG(t, filepath.Join(dir, "color.png"), func(x, y int) stdcolor.RGBA {
		return stdcolor.RGBA{R: 200, G: 100, B: 50, A: 255}
	})
	writePNG(t, filepath.Join(dir, "height.png"), func(x, y int) stdcolor.RGBA {
		if x < 4 {
			return stdcolor.RGBA{R: 255, G: 255, B: 255, A: 255}
		}
		return stdcolor.RGBA{A: 255}
	})

	_, err := e.LoadHeightmapWorld("color.png", "height.png")
	require.NoError(t, err)
	w, err := e.World()
	require.NoError(t, err)

	assert.Equal(t, 0, w.FloorZ(1, 1, 0), "белая точка на самом верху")
	assert.Equal(t, 63, w.FloorZ(5, 1, 0), "чёрная точка на дне")
	c, ok := w.Color(vec.NewI(1, 1, 0))
	require.True(t, ok)
	assert.Equal(t, uint8(200), c.R)

	_, err = e.LoadHeightmapWorld("nope.png", "height.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssetsAndSettings(t *testing.T) {
	e, dir := newTestEngine(t, nil)
	writeModel(t, dir, "a.vxm", 1, color.RGB(1, 1, 1))
	writeModel(t, dir, "b.vxm", 1, color.RGB(1, 1, 1))
	writePNG(t, filepath.Join(dir, "sky.png"), func(x, y int) stdcolor.RGBA {
		return stdcolor.RGBA{B: 255, A: 255}
	})

	files, err := e.FindFiles("*.vxm")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.vxm", "b.vxm"}, files)

	require.NoError(t, e.LoadSky("sky.png"))
	require.NoError(t, e.ResetArchives())

	out := filepath.Join(t.TempDir(), "copy.vxm")
	s, err := e.LoadSprite("a.vxm")
	require.NoError(t, err)
	require.NoError(t, e.SaveModel(out, s.Model()))
	_, err = os.Stat(out)
	require.NoError(t, err)

	require.NoError(t, e.SetLightingMode(world.LightEstimatedNormal))
	require.NoError(t, e.SetPaintColor(color.RGB(1, 2, 3)))
	assert.ErrorIs(t, e.SetFallLimit(0), ErrInvalidGeometry)
	require.NoError(t, e.SetFallLimit(10))

	w, err := e.World()
	require.NoError(t, err)
	assert.Equal(t, 2.0, w.SpherePower(), "по умолчанию обычный шар")
	require.NoError(t, e.SetSpherePower(1))
	assert.Equal(t, 1.0, w.SpherePower())
	assert.ErrorIs(t, e.SetSpherePower(0), ErrInvalidGeometry)
}
