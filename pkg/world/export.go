package world

import (
	"fmt"
	"io"

	"github.com/annel0/voxworld/internal/codec"
	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/vec"
)

const (
	// PaletteAir индекс воздуха в палитровом экспорте
	PaletteAir = 255
	// MaxPaletteColors число цветов палитры без индекса воздуха
	MaxPaletteColors = 255
)

// PaletteExport регион мира с палитрой до 255 цветов.
// Индексы лежат в порядке x, затем y, затем z (z меняется быстрее всего).
type PaletteExport struct {
	Size    vec.IVec3
	Indices []uint8
	Palette []color.Color
}

// RawExport регион мира в полном цвете; 0 означает воздух
type RawExport struct {
	Size   vec.IVec3
	Colors []uint32
}

// regionColor цвет сплошного вокселя для экспорта; закрытые воксели
// получают ближайший цвет столбца
func (g *grid) regionColor(x, y, z int, paint color.Color) (color.Color, bool) {
	if !g.isSolid(x, y, z) {
		return color.Color{}, false
	}
	if vc, ok := g.colorAt(x, y, z); ok {
		return vc.c, true
	}
	if c, ok := g.col(x, y).nearestColor(z); ok {
		return c, true
	}
	return paint, true
}

// ExportPalette снимает регион [pos, pos+size) в палитровом виде.
// Больше 255 различных цветов даёт ErrCapacityExceeded; для таких регионов
// используется ExportRaw.
func (w *World) ExportPalette(pos, size vec.IVec3) (*PaletteExport, error) {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, fmt.Errorf("%w: пустой размер региона %v", ErrInvalidGeometry, size)
	}
	if err := w.rlock(); err != nil {
		return nil, err
	}
	defer w.mu.RUnlock()

	out := &PaletteExport{Size: size, Indices: make([]uint8, 0, size.X*size.Y*size.Z)}
	index := make(map[uint32]uint8)
	for x := pos.X; x < pos.X+size.X; x++ {
		for y := pos.Y; y < pos.Y+size.Y; y++ {
			for z := pos.Z; z < pos.Z+size.Z; z++ {
				c, ok := w.base.regionColor(x, y, z, w.paint)
				if !ok {
					out.Indices = append(out.Indices, PaletteAir)
					continue
				}
				key := c.Uint32()
				i, seen := index[key]
				if !seen {
					if len(out.Palette) == MaxPaletteColors {
						return nil, fmt.Errorf("%w: в регионе больше %d цветов", ErrCapacityExceeded, MaxPaletteColors)
					}
					i = uint8(len(out.Palette))
					index[key] = i
					out.Palette = append(out.Palette, c)
				}
				out.Indices = append(out.Indices, i)
			}
		}
	}
	return out, nil
}

// WriteTo пишет размеры (int32), индексы и палитру из 255 записей
// по 3 байта с 6-битными компонентами
func (p *PaletteExport) WriteTo(w io.Writer) (int64, error) {
	buf := codec.NewWriter(12 + len(p.Indices) + MaxPaletteColors*3)
	buf.I32(int32(p.Size.X))
	buf.I32(int32(p.Size.Y))
	buf.I32(int32(p.Size.Z))
	buf.Raw(p.Indices)
	for i := 0; i < MaxPaletteColors; i++ {
		var c color.Color
		if i < len(p.Palette) {
			c = p.Palette[i]
		}
		buf.Raw([]byte{c.R >> 2, c.G >> 2, c.B >> 2})
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// ExportRaw снимает регион в полном цвете. Выход за домен даёт воздух.
func (w *World) ExportRaw(pos, size vec.IVec3) *RawExport {
	size = size.Max(vec.IVec3{})
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := &RawExport{Size: size, Colors: make([]uint32, 0, size.X*size.Y*size.Z)}
	for x := pos.X; x < pos.X+size.X; x++ {
		for y := pos.Y; y < pos.Y+size.Y; y++ {
			for z := pos.Z; z < pos.Z+size.Z; z++ {
				c, ok := w.base.regionColor(x, y, z, w.paint)
				if !ok {
					out.Colors = append(out.Colors, 0)
					continue
				}
				out.Colors = append(out.Colors, c.Uint32())
			}
		}
	}
	return out
}

var rawMagic = []byte{'X', 'R', 'A', 'W', 0, 4, 8, 8}

// WriteTo пишет заголовок XRAW (RGBA, 8 бит на канал), размеры,
// число записей палитры 256 и цвета
func (r *RawExport) WriteTo(w io.Writer) (int64, error) {
	buf := codec.NewWriter(len(rawMagic) + 16 + len(r.Colors)*4)
	buf.Raw(rawMagic)
	buf.I32(int32(r.Size.X))
	buf.I32(int32(r.Size.Y))
	buf.I32(int32(r.Size.Z))
	buf.I32(256)
	for _, c := range r.Colors {
		buf.U32(c)
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}
