package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"

	"github.com/annel0/voxworld/internal/worldgen"
	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/vec"
	"github.com/annel0/voxworld/pkg/world"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/annel0/voxworld/pkg/engine")

// replaceWorld подменяет мир движка и перепривязывает рендерер.
// Настройки освещения и кисти нового мира не трогаются.
func (e *Engine) replaceWorld(w *world.World, pose vec.Orientation) error {
	w.SetRecorder(e.metrics)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.world = w
	e.renderer.SetWorld(w)
	if fb := e.renderer.Framebuffer(); fb != nil {
		cam := e.renderer.Camera()
		cam.Pose = pose
		e.renderer.SetCamera(cam)
	}
	return nil
}

func (e *Engine) dims() (int, int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return 0, 0, ErrEngineClosed
	}
	return e.world.Side(), e.world.Depth(), nil
}

// NewWorld заменяет мир пустым миром тех же размеров
func (e *Engine) NewWorld() error {
	side, depth, err := e.dims()
	if err != nil {
		return err
	}
	w, err := world.New(side, depth)
	if err != nil {
		return err
	}
	if err := e.configureWorld(w); err != nil {
		return err
	}
	w.CommitAll()
	return e.replaceWorld(w, e.startPose(w))
}

// LoadDefaultWorld строит ландшафт из шума Перлина с деревьями и возвращает
// стартовую позу над центром карты
func (e *Engine) LoadDefaultWorld(seed int64) (vec.Orientation, error) {
	_, span := tracer.Start(context.Background(), "engine.LoadDefaultWorld")
	defer span.End()

	side, depth, err := e.dims()
	if err != nil {
		return vec.Orientation{}, err
	}
	w, err := world.New(side, depth)
	if err != nil {
		return vec.Orientation{}, err
	}
	gen := worldgen.NewGenerator(seed)
	terrain, err := gen.Generate(side, side, depth)
	if err != nil {
		return vec.Orientation{}, err
	}
	if _, err := terrain.Apply(w, 0, 0); err != nil {
		return vec.Orientation{}, err
	}
	trees, _, err := gen.PlantTrees(w, terrain, 0, 0)
	if err != nil {
		return vec.Orientation{}, err
	}
	if err := e.configureWorld(w); err != nil {
		return vec.Orientation{}, err
	}
	w.CommitAll()

	pose := e.startPose(w)
	if err := e.replaceWorld(w, pose); err != nil {
		return vec.Orientation{}, err
	}
	e.log.Info("сгенерирован мир %dx%dx%d (сид %d, деревьев %d)", side, side, depth, seed, trees)
	return pose, nil
}

// LoadWorld загружает снимок .vxw из ресурсов и возвращает сохранённую позу камеры
func (e *Engine) LoadWorld(name string) (vec.Orientation, error) {
	if err := e.checkOpen(); err != nil {
		return vec.Orientation{}, err
	}
	data, err := e.locator.ReadFile(name)
	if err != nil {
		return vec.Orientation{}, err
	}
	w, pose, err := world.DecodeSnapshot(bytes.NewReader(data))
	if err != nil {
		return vec.Orientation{}, fmt.Errorf("мир %s: %w", name, err)
	}
	if err := e.replaceWorld(w, pose); err != nil {
		return vec.Orientation{}, err
	}
	e.log.Info("мир загружен из %s", name)
	return pose, nil
}

// SaveWorld записывает текущий мир и позу камеры в файл .vxw
func (e *Engine) SaveWorld(p string, pose vec.Orientation) error {
	w, err := e.World()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := w.EncodeSnapshot(&buf, pose); err != nil {
		return err
	}
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("запись мира %s: %w", p, err)
	}
	e.log.Info("мир сохранён в %s (%d байт)", p, buf.Len())
	return nil
}

// LoadHeightmapWorld строит мир из пары изображений: яркость heightName задаёт
// высоту (светлее выше), colorName окраску. Изображения повторяются по миру.
func (e *Engine) LoadHeightmapWorld(colorName, heightName string) (vec.Orientation, error) {
	side, depth, err := e.dims()
	if err != nil {
		return vec.Orientation{}, err
	}
	colors, err := e.LoadImage(colorName)
	if err != nil {
		return vec.Orientation{}, err
	}
	heights, err := e.LoadImage(heightName)
	if err != nil {
		return vec.Orientation{}, err
	}

	hm := heightmapFromImage(heights, side, depth)
	w, err := world.New(side, depth)
	if err != nil {
		return vec.Orientation{}, err
	}
	if _, err := w.SetHeightmap(hm, 0, 0, imagePaint(colors)); err != nil {
		return vec.Orientation{}, err
	}
	if err := e.configureWorld(w); err != nil {
		return vec.Orientation{}, err
	}
	w.CommitAll()

	pose := e.startPose(w)
	if err := e.replaceWorld(w, pose); err != nil {
		return vec.Orientation{}, err
	}
	return pose, nil
}

// heightmapFromImage переводит яркость в z поверхности в верхних min(depth, 256) слоях
func heightmapFromImage(img *image.RGBA, side, depth int) world.Heightmap {
	span := min(depth, 256)
	b := img.Bounds()
	hm := world.Heightmap{Width: side, Height: side, Pitch: side, Data: make([]byte, side*side)}
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			c := color.FromStd(img.At(b.Min.X+x%b.Dx(), b.Min.Y+y%b.Dy()))
			hm.Data[y*side+x] = byte((255 - int(c.Luma())) * (span - 1) / 255)
		}
	}
	return hm
}

func imagePaint(img *image.RGBA) color.Func {
	b := img.Bounds()
	return func(x, y, _ int) color.Color {
		c := color.FromStd(img.At(b.Min.X+mod(x, b.Dx()), b.Min.Y+mod(y, b.Dy())))
		c.A = 255
		return c
	}
}

func mod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}

func (e *Engine) snapshotStore() error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if e.store == nil {
		return ErrNoStore
	}
	return nil
}

// SaveSnapshot сохраняет текущий мир в хранилище снимков под именем
func (e *Engine) SaveSnapshot(ctx context.Context, name string, pose vec.Orientation) (SnapshotInfo, error) {
	if err := e.snapshotStore(); err != nil {
		return SnapshotInfo{}, err
	}
	w, err := e.World()
	if err != nil {
		return SnapshotInfo{}, err
	}
	var buf bytes.Buffer
	if err := w.EncodeSnapshot(&buf, pose); err != nil {
		return SnapshotInfo{}, err
	}
	return e.store.Save(ctx, name, w.Side(), w.Depth(), buf.Bytes())
}

// LoadSnapshot заменяет мир снимком из хранилища и возвращает позу камеры
func (e *Engine) LoadSnapshot(ctx context.Context, name string) (vec.Orientation, error) {
	if err := e.snapshotStore(); err != nil {
		return vec.Orientation{}, err
	}
	data, _, err := e.store.Load(ctx, name)
	if err != nil {
		return vec.Orientation{}, err
	}
	w, pose, err := world.DecodeSnapshot(bytes.NewReader(data))
	if err != nil {
		return vec.Orientation{}, fmt.Errorf("снимок %s: %w", name, err)
	}
	if err := e.replaceWorld(w, pose); err != nil {
		return vec.Orientation{}, err
	}
	return pose, nil
}

// ListSnapshots перечисляет снимки в хранилище
func (e *Engine) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	if err := e.snapshotStore(); err != nil {
		return nil, err
	}
	return e.store.List(ctx)
}

// DeleteSnapshot удаляет снимок из хранилища
func (e *Engine) DeleteSnapshot(ctx context.Context, name string) error {
	if err := e.snapshotStore(); err != nil {
		return err
	}
	return e.store.Delete(ctx, name)
}
