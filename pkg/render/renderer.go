package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/annel0/voxworld/internal/logging"
	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/vec"
	"github.com/annel0/voxworld/pkg/world"
)

var tracer = otel.Tracer("github.com/annel0/voxworld/pkg/render")

// ErrNoWorld рисование без мира
var ErrNoWorld = errors.New("мир не задан")

const (
	DefaultMaxScanDist = 512.0
	DefaultMipScanDist = 128.0
)

// DefaultSideShades затемнение граней по умолчанию в порядке vec.FaceOffsets:
// верхняя грань (вход по +z) не затемняется, нижняя темнее всех
var DefaultSideShades = [6]uint8{12, 16, 8, 24, 0, 28}

// CastRecorder получает длительность каждого кадра
type CastRecorder interface {
	RecordCast(d time.Duration)
}

// Renderer бросает лучи из камеры в мир и пишет результат в привязанный буфер.
// Методы сериализуются внутренним мьютексом; Cast держит блокировку чтения
// мира на весь кадр.
type Renderer struct {
	mu sync.Mutex

	world *world.World
	fb    *Framebuffer
	cam   Camera
	// camSet камера задана явно; иначе берётся CameraFor при привязке буфера
	camSet bool

	density     int
	maxScanDist float64
	mipScanDist float64
	fog         color.Color
	sideShades  [6]uint8
	sky         image.Image

	recorder CastRecorder
}

// New создаёт рендерер для мира
func New(w *world.World) *Renderer {
	return &Renderer{
		world:       w,
		density:     1,
		maxScanDist: DefaultMaxScanDist,
		mipScanDist: DefaultMipScanDist,
		fog:         color.RGB(0x80, 0xa0, 0xc0),
		sideShades:  DefaultSideShades,
	}
}

// SetWorld меняет мир, который рисует рендерер
func (r *Renderer) SetWorld(w *world.World) {
	r.mu.Lock()
	r.world = w
	r.mu.Unlock()
}

// SetRecorder подключает приёмник статистики кадров
func (r *Renderer) SetRecorder(rec CastRecorder) {
	r.mu.Lock()
	r.recorder = rec
	r.mu.Unlock()
}

// BindFramebuffer привязывает буфер кадра; вызывается до любого рисования
func (r *Renderer) BindFramebuffer(fb *Framebuffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fb = fb
	if fb != nil && !r.camSet {
		r.cam = CameraFor(fb, r.cam.Pose, 1)
	}
}

// Framebuffer возвращает привязанный буфер
func (r *Renderer) Framebuffer() *Framebuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fb
}

// SetCamera задаёт камеру для следующего кадра
func (r *Renderer) SetCamera(cam Camera) {
	r.mu.Lock()
	r.cam = cam
	r.camSet = true
	r.mu.Unlock()
}

// Camera возвращает текущую камеру
func (r *Renderer) Camera() Camera {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cam
}

// SetRaycastDensity задаёт шаг в пикселях между лучами; 1 луч на каждый пиксель
func (r *Renderer) SetRaycastDensity(n int) error {
	if n < 1 {
		return fmt.Errorf("плотность лучей %d меньше 1", n)
	}
	r.mu.Lock()
	r.density = n
	r.mu.Unlock()
	return nil
}

// RaycastDensity возвращает шаг между лучами
func (r *Renderer) RaycastDensity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.density
}

// SetMaxScanDist задаёт дальность прорисовки
func (r *Renderer) SetMaxScanDist(d float64) {
	r.mu.Lock()
	if d > 0 {
		r.maxScanDist = d
	}
	r.mu.Unlock()
}

// SetMaxScanDistToMax ставит дальность, покрывающую весь мир
func (r *Renderer) SetMaxScanDistToMax() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.world != nil {
		s, d := float64(r.world.Side()), float64(r.world.Depth())
		r.maxScanDist = math.Sqrt(2*s*s + d*d)
	}
}

// MaxScanDist возвращает дальность прорисовки
func (r *Renderer) MaxScanDist() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxScanDist
}

// SetMipScanDist задаёт расстояние, после которого луч переходит на
// следующий mip-уровень; каждый следующий уровень вдвое дальше. 0 отключает mip.
func (r *Renderer) SetMipScanDist(d float64) {
	r.mu.Lock()
	r.mipScanDist = math.Max(d, 0)
	r.mu.Unlock()
}

// SetFogColor задаёт цвет тумана, он же цвет неба без картинки
func (r *Renderer) SetFogColor(c color.Color) {
	r.mu.Lock()
	r.fog = c
	r.mu.Unlock()
}

// SetSideShades задаёт затемнение шести граней
func (r *Renderer) SetSideShades(shades [6]uint8) {
	r.mu.Lock()
	r.sideShades = shades
	r.mu.Unlock()
}

// SetSky задаёт панораму неба; nil возвращает цвет тумана
func (r *Renderer) SetSky(img image.Image) {
	r.mu.Lock()
	r.sky = img
	r.mu.Unlock()
}

// Cast рисует мир в привязанный буфер
func (r *Renderer) Cast() error {
	return r.CastContext(context.Background())
}

// CastContext рисует мир; отмена контекста прерывает кадр между строками
func (r *Renderer) CastContext(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "render.Cast")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.castLocked(ctx, span)
}

func (r *Renderer) castLocked(ctx context.Context, span trace.Span) error {
	if r.fb == nil {
		return ErrNoFramebuffer
	}
	if r.world == nil {
		return ErrNoWorld
	}
	span.SetAttributes(
		attribute.Int("width", r.fb.Width),
		attribute.Int("height", r.fb.Height),
		attribute.Int("density", r.density),
	)

	start := time.Now()
	var err error
	r.world.Read(func(v world.View) {
		err = r.castView(ctx, v)
	})
	elapsed := time.Since(start)
	if r.recorder != nil {
		r.recorder.RecordCast(elapsed)
	}
	if err != nil {
		logging.GetRenderLogger().Debug("кадр прерван: %v", err)
		return err
	}
	logging.GetRenderLogger().Trace("кадр %dx%d за %v", r.fb.Width, r.fb.Height, elapsed)
	return nil
}

func (r *Renderer) castView(ctx context.Context, v world.View) error {
	fb, d := r.fb, r.density
	rows := (fb.Height + d - 1) / d
	var next atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < min(runtime.GOMAXPROCS(0), rows); i++ {
		g.Go(func() error {
			for {
				row := int(next.Add(1)) - 1
				if row >= rows {
					return nil
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				r.castRow(v, row*d)
			}
		})
	}
	return g.Wait()
}

// castRow рисует полосу высотой density, начиная с y0
func (r *Renderer) castRow(v world.View, y0 int) {
	fb, d := r.fb, r.density
	for x0 := 0; x0 < fb.Width; x0 += d {
		cx := float64(x0) + float64(min(d, fb.Width-x0))/2
		cy := float64(y0) + float64(min(d, fb.Height-y0))/2
		dir := r.cam.Ray(cx, cy)
		c, depth := r.shade(v, r.cam.Pose.Pos, dir)
		for y := y0; y < min(y0+d, fb.Height); y++ {
			for x := x0; x < min(x0+d, fb.Width); x++ {
				fb.SetPixel(x, y, c)
				fb.setDepth(x, y, depth)
			}
		}
	}
}

// shade возвращает цвет луча и глубину вдоль Forward
func (r *Renderer) shade(v world.View, origin, dir vec.Vec3) (color.Color, float64) {
	h, ok := r.trace(v, origin, dir)
	if !ok {
		return r.skyColor(dir), math.Inf(1)
	}
	c, light := v.SurfaceColor(h.level, h.voxel)
	c = c.Shade(light)
	if h.face >= 0 {
		c = c.Scale(1 - float64(r.sideShades[h.face])/255)
	}
	if f := h.t / r.maxScanDist; f > 0 {
		c = c.Lerp(r.fog, math.Min(f, 1))
	}
	return c, h.t * dir.Dot(r.cam.Pose.Forward)
}

type castHit struct {
	voxel vec.IVec3
	level int
	face  int
	t     float64
}

// trace идёт лучом по основному уровню до mipScanDist, затем по всё более
// грубым mip-уровням; dir единичный, поэтому t равен расстоянию
func (r *Renderer) trace(v world.View, origin, dir vec.Vec3) (castHit, bool) {
	domain := vec.Box{Max: vec.IVec3{X: v.Side(), Y: v.Side(), Z: v.Depth()}}
	tEnter, tExit, ok := vec.RayBox(origin, dir, domain)
	if !ok {
		return castHit{}, false
	}
	tEnd := math.Min(tExit, r.maxScanDist)
	t0 := tEnter
	levels := v.MipLevels()
	if r.mipScanDist <= 0 {
		levels = 1
	}
	for lvl := 0; lvl < levels && t0 < tEnd; lvl++ {
		segEnd := tEnd
		if lvl < levels-1 && r.mipScanDist > 0 {
			segEnd = math.Min(tEnd, r.mipScanDist*float64(int(1)<<lvl))
		}
		if segEnd <= t0 {
			continue
		}
		inv := 1 / float64(int(1)<<lvl)
		start := origin.Add(dir.Mul(t0)).Mul(inv)
		var hit castHit
		found := false
		vec.Traverse(start, dir.Mul(inv), segEnd-t0, func(c vec.IVec3, t float64, face int) bool {
			if !v.IsSolid(lvl, c) {
				return true
			}
			hit = castHit{voxel: c, level: lvl, face: face, t: t0 + t}
			found = true
			return false
		})
		if found {
			return hit, true
		}
		t0 = segEnd
	}
	return castHit{}, false
}

func (r *Renderer) skyColor(dir vec.Vec3) color.Color {
	if r.sky == nil {
		return r.fog
	}
	b := r.sky.Bounds()
	u := math.Atan2(dir.Y, dir.X)/(2*math.Pi) + 0.5
	w := (dir.Z + 1) / 2
	x := b.Min.X + min(int(u*float64(b.Dx())), b.Dx()-1)
	y := b.Min.Y + min(int(w*float64(b.Dy())), b.Dy()-1)
	return color.FromStd(r.sky.At(x, y))
}

// Project переводит точку мира в координаты экрана текущей камеры.
// false для точек позади камеры или вне привязанного буфера.
func (r *Renderer) Project(p vec.Vec3) (sx, sy, depth float64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.project(p)
}

func (r *Renderer) project(p vec.Vec3) (sx, sy, depth float64, ok bool) {
	sx, sy, depth, ok = r.cam.Project(p)
	if !ok {
		return 0, 0, 0, false
	}
	if r.fb != nil && (sx < 0 || sy < 0 || sx >= float64(r.fb.Width) || sy >= float64(r.fb.Height)) {
		return 0, 0, 0, false
	}
	return sx, sy, depth, true
}
