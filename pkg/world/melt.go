package world

import (
	"fmt"

	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/sprite"
	"github.com/annel0/voxworld/pkg/vec"
)

// collect возвращает сплошные воксели, попавшие в фигуру; вызывается под блокировкой
func (w *World) collect(box vec.Box, shape shapeFunc) []vec.IVec3 {
	box = box.Clip(w.base.domain())
	var out []vec.IVec3
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			col := w.base.col(x, y)
			if len(col.spans) == 0 {
				continue
			}
			shape(x, y, box.Min.Z, box.Max.Z, func(t, b int) {
				t, b = max(t, box.Min.Z), min(b, box.Max.Z)
				for i := col.spanAfter(t); i < len(col.spans) && int(col.spans[i].top) < b; i++ {
					s := col.spans[i]
					for z := max(int(s.top), t); z < min(int(s.bot), b); z++ {
						out = append(out, vec.IVec3{X: x, Y: y, Z: z})
					}
				}
			})
		}
	}
	return out
}

// meltVoxels копирует воксели в новую модель; вызывается под блокировкой.
// Закрытые воксели получают ближайший цвет своего столбца.
func (w *World) meltVoxels(name string, voxels []vec.IVec3) (*sprite.OwnedSprite, int, error) {
	if len(voxels) == 0 {
		return nil, 0, nil
	}
	bounds := vec.Box{}
	for _, p := range voxels {
		bounds = bounds.Union(vec.BoxAround(p, 0))
	}
	out := make([]sprite.Voxel, len(voxels))
	for i, p := range voxels {
		out[i] = sprite.Voxel{
			X:     p.X - bounds.Min.X,
			Y:     p.Y - bounds.Min.Y,
			Z:     p.Z - bounds.Min.Z,
			Color: w.voxelColor(p),
		}
	}
	model, err := sprite.NewModel(name, bounds.Size(), vec.Vec3{}, out)
	if err != nil {
		return nil, 0, fmt.Errorf("плавление %s: %w", name, err)
	}
	if w.recorder != nil {
		w.recorder.RecordMelt(len(voxels))
	}
	return sprite.NewOwned(model, vec.AxisAligned(bounds.Min.Vec3())), len(voxels), nil
}

func (w *World) voxelColor(p vec.IVec3) color.Color {
	if vc, ok := w.base.colorAt(p.X, p.Y, p.Z); ok {
		return vc.c
	}
	if c, ok := w.base.col(p.X, p.Y).nearestColor(p.Z); ok {
		return c
	}
	return w.paint
}

// MeltSphere копирует сплошные воксели шара в новый собственный спрайт.
// Мир не меняется. Масса 0 означает, что ничего не захвачено: спрайт nil, ошибки нет.
func (w *World) MeltSphere(center vec.IVec3, radius float64) (*sprite.OwnedSprite, int, error) {
	if err := finiteRadius("шара", radius); err != nil {
		return nil, 0, err
	}
	shape, box := sphereShape(center, radius)

	if err := w.rlock(); err != nil {
		return nil, 0, err
	}
	defer w.mu.RUnlock()
	return w.meltVoxels("melt-sphere", w.collect(box, shape))
}

// MeltSpans копирует сплошные воксели под списком отрезков
func (w *World) MeltSpans(spans []Span, offset vec.IVec3) (*sprite.OwnedSprite, int, error) {
	sorted, err := sortSpans(spans)
	if err != nil {
		return nil, 0, err
	}
	shape, box := spansShape(sorted, offset, w.side, w.depth)

	if err := w.rlock(); err != nil {
		return nil, 0, err
	}
	defer w.mu.RUnlock()
	voxels := w.collect(box, shape)
	// пересекающиеся отрезки одного столбца дают повторы
	seen := make(map[vec.IVec3]struct{}, len(voxels))
	uniq := voxels[:0]
	for _, p := range voxels {
		if _, dup := seen[p]; !dup {
			seen[p] = struct{}{}
			uniq = append(uniq, p)
		}
	}
	return w.meltVoxels("melt-spans", uniq)
}

// MeltBox копирует сплошные воксели региона pos..pos+size
func (w *World) MeltBox(pos, size vec.IVec3) (*sprite.OwnedSprite, int, error) {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, 0, fmt.Errorf("%w: размер региона %v", ErrInvalidGeometry, size)
	}
	box := vec.Box{Min: pos, Max: pos.Add(size)}
	shape := func(x, y, z0, z1 int, emit func(t, b int)) { emit(z0, z1) }

	if err := w.rlock(); err != nil {
		return nil, 0, err
	}
	defer w.mu.RUnlock()
	return w.meltVoxels("melt-box", w.collect(box, shape))
}

// FloatingPiece связная группа сплошных вокселей, не опирающаяся на дно мира
type FloatingPiece struct {
	Voxels []vec.IVec3
	Box    vec.Box
}

// Mass возвращает число вокселей куска
func (p FloatingPiece) Mass() int { return len(p.Voxels) }

// FindFloating ищет в регионе висящие куски не больше limit вокселей.
// Кусок опирается, если связан с нижним слоем мира или больше limit.
func (w *World) FindFloating(box vec.Box, limit int) []FloatingPiece {
	if limit <= 0 {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()

	g := w.base
	starts := w.collect(box, func(x, y, z0, z1 int, emit func(t, b int)) { emit(z0, z1) })
	grounded := make(map[vec.IVec3]bool)
	done := make(map[vec.IVec3]bool)
	var pieces []FloatingPiece

	for _, s := range starts {
		if grounded[s] || done[s] {
			continue
		}
		seen := map[vec.IVec3]bool{s: true}
		queue := []vec.IVec3{s}
		order := []vec.IVec3{}
		onGround := false
		for len(queue) > 0 && !onGround {
			p := queue[0]
			queue = queue[1:]
			order = append(order, p)
			if p.Z == g.depth-1 || len(order) > limit {
				onGround = true
				break
			}
			for _, d := range vec.FaceOffsets {
				n := p.Add(d)
				if seen[n] || !g.isSolid(n.X, n.Y, n.Z) {
					continue
				}
				if grounded[n] {
					onGround = true
					break
				}
				seen[n] = true
				queue = append(queue, n)
			}
		}
		if onGround {
			for p := range seen {
				grounded[p] = true
			}
			continue
		}
		piece := FloatingPiece{Voxels: order}
		for _, p := range order {
			done[p] = true
			piece.Box = piece.Box.Union(vec.BoxAround(p, 0))
		}
		pieces = append(pieces, piece)
	}
	return pieces
}

// MeltFloating переносит висящий кусок в собственный спрайт.
// При remove воксели куска удаляются из мира.
func (w *World) MeltFloating(piece FloatingPiece, remove bool) (*sprite.OwnedSprite, vec.Box, error) {
	if err := w.lock(); err != nil {
		return nil, vec.Box{}, err
	}
	defer w.mu.Unlock()

	var solid []vec.IVec3
	for _, p := range piece.Voxels {
		if w.base.isSolid(p.X, p.Y, p.Z) {
			solid = append(solid, p)
		}
	}
	spr, _, err := w.meltVoxels("falling", solid)
	if err != nil || spr == nil || !remove {
		return spr, vec.Box{}, err
	}
	cols := make(map[[2]int][]span)
	for _, p := range solid {
		cols[[2]int{p.X, p.Y}] = append(cols[[2]int{p.X, p.Y}], span{top: int32(p.Z), bot: int32(p.Z + 1)})
	}
	for k, runs := range cols {
		cols[k] = mergeRuns(runs)
	}
	return spr, w.applyShape("falling", piece.Box, runsShape(cols), Remove()), nil
}
