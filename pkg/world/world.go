// Package world хранит воксельный мир: сплошные отрезки столбцов, цвета
// открытых вокселей, CSG-операции, запросы столкновений, освещение и mip-уровни.
//
// Ось z направлена вниз: z=0 верх мира, z=Depth-1 дно. Запросы за пределами
// домена возвращают воздух, мутации обрезаются по домену.
package world

import (
	"fmt"
	"math"
	"sync"

	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/vec"
)

const (
	// MaxSide максимальная сторона мира
	MaxSide = 4096
	// MaxDepth максимальная глубина мира
	MaxDepth = 1024
	// DefaultDepth глубина по умолчанию
	DefaultDepth = 256
	// MaxMipLevels число mip-уровней помимо основного
	MaxMipLevels = 4
)

// CellState состояние вокселя
type CellState int

const (
	Air CellState = iota
	Unexposed
	Exposed
)

// String возвращает строковое представление состояния
func (s CellState) String() string {
	switch s {
	case Air:
		return "air"
	case Unexposed:
		return "unexposed"
	case Exposed:
		return "exposed"
	default:
		return "unknown"
	}
}

// Recorder получает статистику операций мира (метрики движка)
type Recorder interface {
	RecordCSG(shape, op string, voxels int)
	RecordMelt(voxels int)
}

// World воксельный мир. Все методы безопасны для параллельного вызова:
// чтения берут RLock, мутации Lock.
type World struct {
	mu sync.RWMutex

	side, depth int
	closed      bool

	base *grid
	mips []*grid

	paint       color.Color
	exposeColor color.Func
	spherePower float64

	lighting LightingMode
	sun      vec.Vec3
	lights   []PointLight

	revision uint64
	recorder Recorder
}

// New создаёт пустой мир (весь воздух). Сторона должна быть степенью двойки.
func New(side, depth int) (*World, error) {
	if side <= 0 || side&(side-1) != 0 || side > MaxSide {
		return nil, fmt.Errorf("%w: сторона мира %d должна быть степенью двойки не больше %d",
			ErrInvalidGeometry, side, MaxSide)
	}
	if depth <= 0 || depth > MaxDepth {
		return nil, fmt.Errorf("%w: глубина мира %d вне (0, %d]", ErrInvalidGeometry, depth, MaxDepth)
	}
	w := &World{
		side:        side,
		depth:       depth,
		base:        newGrid(side, depth),
		paint:       color.RGB(128, 128, 128),
		spherePower: 2,
		lighting:    LightNone,
		sun:         vec.New(0.4, 0.3, 1).Normalized(),
	}
	for lvl := 1; lvl <= MaxMipLevels; lvl++ {
		s, d := side>>lvl, (depth+(1<<lvl)-1)>>lvl
		if s < 4 || d < 2 {
			break
		}
		w.mips = append(w.mips, newGrid(s, d))
	}
	return w, nil
}

// Side возвращает сторону мира
func (w *World) Side() int { return w.side }

// Depth возвращает глубину мира
func (w *World) Depth() int { return w.depth }

// Bounds возвращает домен мира
func (w *World) Bounds() vec.Box {
	return vec.Box{Max: vec.IVec3{X: w.side, Y: w.side, Z: w.depth}}
}

// Close отсоединяет мир: данные освобождаются, чтения дальше видят воздух,
// а изменяющие методы с ошибкой возвращают ErrEngineClosed. Повторный вызов ничего не делает.
func (w *World) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.base = &grid{}
	w.mips = nil
	w.lights = nil
}

// Closed сообщает, что мир отсоединён
func (w *World) Closed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

// lock берёт блокировку записи; у закрытого мира возвращает ErrEngineClosed без блокировки
func (w *World) lock() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrEngineClosed
	}
	return nil
}

// rlock как lock, но для чтения
func (w *World) rlock() error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrEngineClosed
	}
	return nil
}

// Revision увеличивается при каждом Commit
func (w *World) Revision() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.revision
}

// SetRecorder подключает приёмник статистики
func (w *World) SetRecorder(r Recorder) {
	w.mu.Lock()
	w.recorder = r
	w.mu.Unlock()
}

// SetPaintColor задаёт текущий цвет, которым окрашиваются вновь открытые воксели
func (w *World) SetPaintColor(c color.Color) {
	w.mu.Lock()
	w.paint = c
	w.mu.Unlock()
}

// SetSpherePower задаёт показатель нормы для SetSphere:
// 2 шар, 1 октаэдр, большие значения приближаются к кубу
func (w *World) SetSpherePower(p float64) error {
	if !(p > 0) || math.IsInf(p, 0) {
		return fmt.Errorf("%w: показатель шара %v", ErrInvalidGeometry, p)
	}
	if err := w.lock(); err != nil {
		return err
	}
	w.spherePower = p
	w.mu.Unlock()
	return nil
}

// SpherePower возвращает показатель нормы SetSphere
func (w *World) SpherePower() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.spherePower
}

// PaintColor возвращает текущий цвет окраски
func (w *World) PaintColor() color.Color {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.paint
}

// SetExposeColor задаёт функцию цвета для вокселей, открывшихся после удаления.
// nil возвращает окраску текущим цветом.
func (w *World) SetExposeColor(f color.Func) {
	w.mu.Lock()
	w.exposeColor = f
	w.mu.Unlock()
}

func (w *World) exposePaint() color.Func {
	if w.exposeColor != nil {
		return w.exposeColor
	}
	return color.Solid(w.paint)
}

// IsSolid сообщает, что воксель сплошной; вне домена false
func (w *World) IsSolid(p vec.IVec3) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.base.isSolid(p.X, p.Y, p.Z)
}

// AnySolid есть ли сплошной воксель в столбце (x,y) на [z0, z1)
func (w *World) AnySolid(x, y, z0, z1 int) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c := w.base.col(x, y)
	if c == nil {
		return false
	}
	return c.anySolid(max(z0, 0), min(z1, w.base.depth))
}

// AnyEmpty есть ли воздух в столбце (x,y) на [z0, z1); вне домена всё воздух
func (w *World) AnyEmpty(x, y, z0, z1 int) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if z0 >= z1 {
		return false
	}
	c := w.base.col(x, y)
	if c == nil || z0 < 0 || z1 > w.base.depth {
		return true
	}
	return c.anyEmpty(z0, z1)
}

// AllEmpty проверяет, что в регионе между углами (включительно) нет сплошных вокселей
func (w *World) AllEmpty(a, b vec.IVec3) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	box := vec.BoxFromCorners(a, b).Clip(w.base.domain())
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if w.base.col(x, y).anySolid(box.Min.Z, box.Max.Z) {
				return false
			}
		}
	}
	return true
}

// FloorZ возвращает первый сплошной z не выше заданного (ось вниз).
// Если ниже сплошного нет, возвращается Depth, то есть граница домена.
func (w *World) FloorZ(x, y, z int) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c := w.base.col(x, y)
	if c == nil {
		return w.base.depth
	}
	f := c.floor(max(z, 0))
	if f < 0 {
		return w.base.depth
	}
	return f
}

// Color возвращает цвет вокселя; false для воздуха и закрытого сплошного вокселя
func (w *World) Color(p vec.IVec3) (color.Color, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	vc, ok := w.base.colorAt(p.X, p.Y, p.Z)
	return vc.c, ok
}

// Light возвращает байт освещения открытого вокселя
func (w *World) Light(p vec.IVec3) (uint8, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	vc, ok := w.base.colorAt(p.X, p.Y, p.Z)
	return vc.light, ok
}

// Cell возвращает состояние вокселя
func (w *World) Cell(p vec.IVec3) CellState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.base.cell(p.X, p.Y, p.Z)
}

func (g *grid) cell(x, y, z int) CellState {
	if !g.isSolid(x, y, z) {
		return Air
	}
	if _, ok := g.colorAt(x, y, z); ok {
		return Exposed
	}
	return Unexposed
}

// CountSolid возвращает число сплошных вокселей в регионе
func (w *World) CountSolid(box vec.Box) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	box = box.Clip(w.base.domain())
	n := 0
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			n += w.base.col(x, y).covered(int32(box.Min.Z), int32(box.Max.Z))
		}
	}
	return n
}

// View снимок доступа к миру без блокировок; действителен только внутри Read
type View struct {
	w *World
}

// Read выполняет fn под блокировкой чтения. Рендерер использует это для
// всего кадра, чтобы не брать блокировку на каждый луч.
func (w *World) Read(fn func(v View)) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn(View{w: w})
}

func (v View) Side() int  { return v.w.base.side }
func (v View) Depth() int { return v.w.base.depth }

// MipLevels возвращает число mip-уровней, включая основной
func (v View) MipLevels() int { return len(v.w.mips) + 1 }

func (v View) level(lvl int) *grid {
	if lvl <= 0 || lvl > len(v.w.mips) {
		return v.w.base
	}
	return v.w.mips[lvl-1]
}

// IsSolid проверяет воксель на mip-уровне lvl (0 основной)
func (v View) IsSolid(lvl int, p vec.IVec3) bool {
	return v.level(lvl).isSolid(p.X, p.Y, p.Z)
}

// Color возвращает цвет и байт освещения вокселя на mip-уровне
func (v View) Color(lvl int, p vec.IVec3) (color.Color, uint8, bool) {
	vc, ok := v.level(lvl).colorAt(p.X, p.Y, p.Z)
	return vc.c, vc.light, ok
}

// SurfaceColor цвет вокселя; для закрытых берётся ближайший цвет столбца
func (v View) SurfaceColor(lvl int, p vec.IVec3) (color.Color, uint8) {
	g := v.level(lvl)
	if vc, ok := g.colorAt(p.X, p.Y, p.Z); ok {
		return vc.c, vc.light
	}
	if c := g.col(p.X, p.Y); c != nil {
		if nc, ok := c.nearestColor(p.Z); ok {
			return nc, color.NeutralBrightness
		}
	}
	return v.w.paint, color.NeutralBrightness
}
