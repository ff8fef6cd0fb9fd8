// Package engine объединяет мир, рендерер, ресурсы и хранилище снимков
// в один дескриптор с явным жизненным циклом Init/Shutdown.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/annel0/voxworld/internal/config"
	"github.com/annel0/voxworld/internal/logging"
	"github.com/annel0/voxworld/internal/metrics"
	"github.com/annel0/voxworld/internal/observability"
	"github.com/annel0/voxworld/internal/resource"
	"github.com/annel0/voxworld/internal/storage"
	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/render"
	"github.com/annel0/voxworld/pkg/sprite"
	"github.com/annel0/voxworld/pkg/vec"
	"github.com/annel0/voxworld/pkg/world"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrNotFound         = world.ErrNotFound
	ErrInvalidGeometry  = world.ErrInvalidGeometry
	ErrCapacityExceeded = world.ErrCapacityExceeded
	ErrEngineClosed     = world.ErrEngineClosed
	ErrNoFramebuffer    = render.ErrNoFramebuffer
	ErrReleased         = sprite.ErrReleased

	// ErrNoStore хранилище снимков не настроено (пустой storage.snapshot_path)
	ErrNoStore = errors.New("хранилище снимков не настроено")
)

// SnapshotInfo метаданные снимка из хранилища
type SnapshotInfo = storage.SnapshotInfo

// Engine дескриптор движка. Все методы безопасны для параллельного вызова;
// после Shutdown они возвращают ErrEngineClosed.
type Engine struct {
	mu     sync.RWMutex
	closed bool

	cfg      *config.Config
	world    *world.World
	renderer *render.Renderer
	zoom     float64

	metrics  *metrics.Metrics
	sampler  *metrics.ProcessSampler
	stopHTTP func(context.Context) error
	stopOTel func(context.Context) error

	locator *resource.Locator
	store   *storage.SnapshotStore

	assetsMu sync.Mutex
	models   map[string]*sprite.Model
	anims    map[string]*sprite.Animation

	ownedMu sync.Mutex
	owned   map[*sprite.OwnedSprite]struct{}

	fallLimit int
	log       *logging.Logger
}

// Init создаёт движок по конфигурации; nil означает config.Default()
func Init(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("конфигурация движка: %w", err)
	}
	e := &Engine{
		cfg:       cfg,
		zoom:      cfg.Render.GetZoom(),
		metrics:   metrics.New(),
		models:    make(map[string]*sprite.Model),
		anims:     make(map[string]*sprite.Animation),
		owned:     make(map[*sprite.OwnedSprite]struct{}),
		fallLimit: cfg.Engine.GetFallLimit(),
		log:       logging.GetEngineLogger(),
	}

	ok := false
	defer func() {
		if !ok {
			e.release()
		}
	}()

	if cfg.Metrics.Telemetry {
		stop, err := observability.InitTelemetry(context.Background(), observability.TelemetryOptions{
			ServiceName: cfg.Metrics.GetServiceName(),
			Endpoint:    cfg.Metrics.OTLPEndpoint,
			SampleRatio: cfg.Metrics.TraceSampleRatio,
			WorldSide:   cfg.Engine.GetWorldSide(),
			WorldDepth:  cfg.Engine.GetWorldDepth(),
		})
		if err != nil {
			return nil, fmt.Errorf("телеметрия: %w", err)
		}
		e.stopOTel = stop
	}
	if addr := cfg.Metrics.GetMetricsAddr(); addr != "" {
		e.stopHTTP = e.metrics.StartHTTP(addr)
		sampler, err := metrics.NewProcessSampler(e.metrics)
		if err != nil {
			e.log.Warn("метрики процесса недоступны: %v", err)
		} else {
			e.sampler = sampler
			sampler.Start(time.Duration(cfg.Metrics.SampleEvery) * time.Second)
		}
	}

	locator, err := resource.NewLocator(cfg.Assets.Dirs, int64(cfg.Assets.GetCacheMB())<<20)
	if err != nil {
		return nil, err
	}
	locator.SetStats(e.metrics)
	e.locator = locator
	for _, a := range cfg.Assets.Archives {
		if err := locator.AddArchive(a); err != nil {
			return nil, err
		}
	}

	if p := cfg.Storage.GetSnapshotPath(); p != "" {
		store, err := storage.NewSnapshotStore(p, storage.Options{SyncWrites: cfg.Storage.SyncWrites})
		if err != nil {
			return nil, err
		}
		e.store = store
	}

	w, err := world.New(cfg.Engine.GetWorldSide(), cfg.Engine.GetWorldDepth())
	if err != nil {
		return nil, err
	}
	if err := e.configureWorld(w); err != nil {
		return nil, err
	}
	e.world = w

	if err := e.configureRenderer(); err != nil {
		return nil, err
	}

	ok = true
	e.log.Info("движок запущен: мир %dx%dx%d, кадр %dx%d",
		w.Side(), w.Side(), w.Depth(), cfg.Render.GetWidth(), cfg.Render.GetHeight())
	return e, nil
}

// configureWorld применяет настройки мира из конфигурации
func (e *Engine) configureWorld(w *world.World) error {
	paint, err := config.ParseHexColor(e.cfg.Engine.GetPaintColor())
	if err != nil {
		return err
	}
	w.SetPaintColor(color.FromUint32(paint))
	if err := w.SetSpherePower(e.cfg.Engine.GetSpherePower()); err != nil {
		return err
	}
	mode, err := world.ParseLightingMode(strings.ToLower(e.cfg.Lighting.Mode))
	if err != nil {
		return err
	}
	w.SetLightingMode(mode)
	if sun := e.cfg.Lighting.Sun; sun != [3]float64{} {
		w.SetSun(vec.New(sun[0], sun[1], sun[2]))
	}
	w.SetRecorder(e.metrics)
	return nil
}

func (e *Engine) configureRenderer() error {
	rc := &e.cfg.Render
	r := render.New(e.world)
	r.SetRecorder(e.metrics)
	if err := r.SetRaycastDensity(rc.GetRaycastDensity()); err != nil {
		return err
	}
	if rc.MaxScanDist > 0 {
		r.SetMaxScanDist(rc.MaxScanDist)
	}
	if rc.MipScanDist > 0 {
		r.SetMipScanDist(rc.MipScanDist)
	}
	fog, err := config.ParseHexColor(rc.GetFogColor())
	if err != nil {
		return err
	}
	r.SetFogColor(color.FromUint32(fog))

	fb, err := render.NewFramebuffer(rc.GetWidth(), rc.GetHeight())
	if err != nil {
		return err
	}
	r.BindFramebuffer(fb)
	r.SetCamera(render.CameraFor(fb, e.startPose(e.world), e.zoom))
	e.renderer = r

	if rc.Sky != "" {
		img, err := e.locator.LoadImage(rc.Sky)
		if err != nil {
			return fmt.Errorf("небо %s: %w", rc.Sky, err)
		}
		r.SetSky(img)
	}
	return nil
}

// startPose поза над центром мира на высоте первой поверхности
func (e *Engine) startPose(w *world.World) vec.Orientation {
	c := w.Side() / 2
	z := w.FloorZ(c, c, 0)
	return vec.DefaultOrientation(vec.New(float64(c)+0.5, float64(c)+0.5, float64(max(z-16, 0))+0.5))
}

// Shutdown освобождает ресурсы движка. Повторный вызов ничего не делает.
// Незакрытые собственные спрайты освобождаются с предупреждением.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	err := e.release()
	e.log.Info("движок остановлен")
	return err
}

func (e *Engine) release() error {
	e.ownedMu.Lock()
	leaked := make([]*sprite.OwnedSprite, 0, len(e.owned))
	for s := range e.owned {
		leaked = append(leaked, s)
	}
	e.ownedMu.Unlock()
	if len(leaked) > 0 {
		e.log.Warn("при завершении освобождено %d незакрытых спрайтов", len(leaked))
	}
	for _, s := range leaked {
		_ = s.Close()
	}

	var errs []error
	if e.renderer != nil {
		e.renderer.SetWorld(nil)
	}
	if e.world != nil {
		e.world.Close()
	}
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	if e.locator != nil {
		errs = append(errs, e.locator.Close())
	}
	if e.sampler != nil {
		e.sampler.Stop()
	}
	ctx := context.Background()
	if e.stopHTTP != nil {
		errs = append(errs, e.stopHTTP(ctx))
	}
	if e.stopOTel != nil {
		errs = append(errs, e.stopOTel(ctx))
	}

	e.assetsMu.Lock()
	e.models = map[string]*sprite.Model{}
	e.anims = map[string]*sprite.Animation{}
	e.assetsMu.Unlock()
	return errors.Join(errs...)
}

// World возвращает текущий мир
func (e *Engine) World() (*world.World, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrEngineClosed
	}
	return e.world, nil
}

// Renderer возвращает рендерер, привязанный к текущему миру
func (e *Engine) Renderer() (*render.Renderer, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrEngineClosed
	}
	return e.renderer, nil
}

// Metrics возвращает реестр Prometheus движка
func (e *Engine) Metrics() (*prometheus.Registry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrEngineClosed
	}
	return e.metrics.Registry(), nil
}

// SetView ставит камеру в позу pose с масштабом из конфигурации
func (e *Engine) SetView(pose vec.Orientation) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}
	fb := e.renderer.Framebuffer()
	if fb == nil {
		return ErrNoFramebuffer
	}
	e.renderer.SetCamera(render.CameraFor(fb, pose, e.zoom))
	return nil
}

// Render отрисовывает кадр текущей камерой; мутации должны быть зафиксированы Commit
func (e *Engine) Render(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}
	return e.renderer.CastContext(ctx)
}

// SetLightingMode переключает освещение и пересчитывает весь мир
func (e *Engine) SetLightingMode(mode world.LightingMode) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.world.SetLightingMode(mode)
	e.world.CommitAll()
	return nil
}

// SetPaintColor задаёт цвет вновь открытых вокселей
func (e *Engine) SetPaintColor(c color.Color) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.world.SetPaintColor(c)
	return nil
}

// SetSpherePower задаёт показатель нормы для SetSphere текущего мира
func (e *Engine) SetSpherePower(p float64) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}
	return e.world.SetSpherePower(p)
}

// SetFallLimit задаёт максимальную массу куска при поиске висящих обломков
func (e *Engine) SetFallLimit(limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: предел массы %d", ErrInvalidGeometry, limit)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.fallLimit = limit
	return nil
}
