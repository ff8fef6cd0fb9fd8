// Package sprite содержит воксельные объекты: данные модели, позу,
// анимацию и два вида спрайтов с разной ответственностью за память.
package sprite

import (
	"fmt"

	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/vec"
)

// MaxModelSide максимальный размер модели по любой оси
const MaxModelSide = 1024

// Voxel один окрашенный воксель модели в локальных координатах
type Voxel struct {
	X     int
	Y     int
	Z     int
	Color color.Color
}

// Model данные воксельного объекта. Модель не меняется после создания
// и может разделяться несколькими спрайтами.
type Model struct {
	Name  string
	SizeX int
	SizeY int
	SizeZ int
	// Pivot точка модели, совпадающая с позицией спрайта
	Pivot  vec.Vec3
	Voxels []Voxel

	index map[int]int
}

// NewModel создаёт модель и проверяет, что все воксели лежат внутри размеров.
// Повторяющиеся координаты запрещены.
func NewModel(name string, size vec.IVec3, pivot vec.Vec3, voxels []Voxel) (*Model, error) {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 ||
		size.X > MaxModelSide || size.Y > MaxModelSide || size.Z > MaxModelSide {
		return nil, fmt.Errorf("недопустимый размер модели %v", size)
	}
	m := &Model{
		Name:   name,
		SizeX:  size.X,
		SizeY:  size.Y,
		SizeZ:  size.Z,
		Pivot:  pivot,
		Voxels: voxels,
		index:  make(map[int]int, len(voxels)),
	}
	for i, v := range voxels {
		if !m.InBounds(v.X, v.Y, v.Z) {
			return nil, fmt.Errorf("воксель (%d,%d,%d) вне модели %s", v.X, v.Y, v.Z, name)
		}
		key := m.key(v.X, v.Y, v.Z)
		if _, dup := m.index[key]; dup {
			return nil, fmt.Errorf("повторный воксель (%d,%d,%d) в модели %s", v.X, v.Y, v.Z, name)
		}
		m.index[key] = i
	}
	return m, nil
}

// Size возвращает размеры модели
func (m *Model) Size() vec.IVec3 {
	return vec.IVec3{X: m.SizeX, Y: m.SizeY, Z: m.SizeZ}
}

// Bounds возвращает регион модели в локальных координатах
func (m *Model) Bounds() vec.Box {
	return vec.Box{Max: m.Size()}
}

// Mass возвращает количество вокселей
func (m *Model) Mass() int {
	return len(m.Voxels)
}

// InBounds проверяет, что координата лежит внутри модели
func (m *Model) InBounds(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < m.SizeX && y < m.SizeY && z < m.SizeZ
}

// Lookup возвращает цвет вокселя в локальных координатах
func (m *Model) Lookup(x, y, z int) (color.Color, bool) {
	if !m.InBounds(x, y, z) {
		return color.Color{}, false
	}
	if m.index == nil {
		for _, v := range m.Voxels {
			if v.X == x && v.Y == y && v.Z == z {
				return v.Color, true
			}
		}
		return color.Color{}, false
	}
	i, ok := m.index[m.key(x, y, z)]
	if !ok {
		return color.Color{}, false
	}
	return m.Voxels[i].Color, true
}

// GenMip строит модель половинного разрешения. Цвет ячейки 2x2x2 равен
// среднему по её вокселям. Для моделей тоньше 3 вокселей возвращает nil.
func (m *Model) GenMip() *Model {
	if m.SizeX < 3 || m.SizeY < 3 || m.SizeZ < 3 {
		return nil
	}
	type acc struct{ r, g, b, a, n int }
	size := vec.IVec3{X: (m.SizeX + 1) / 2, Y: (m.SizeY + 1) / 2, Z: (m.SizeZ + 1) / 2}
	cells := make(map[vec.IVec3]*acc)
	order := make([]vec.IVec3, 0)
	for _, v := range m.Voxels {
		p := vec.IVec3{X: v.X / 2, Y: v.Y / 2, Z: v.Z / 2}
		a, ok := cells[p]
		if !ok {
			a = &acc{}
			cells[p] = a
			order = append(order, p)
		}
		a.r += int(v.Color.R)
		a.g += int(v.Color.G)
		a.b += int(v.Color.B)
		a.a += int(v.Color.A)
		a.n++
	}
	voxels := make([]Voxel, 0, len(order))
	for _, p := range order {
		a := cells[p]
		voxels = append(voxels, Voxel{X: p.X, Y: p.Y, Z: p.Z, Color: color.RGBA(
			uint8(a.r/a.n), uint8(a.g/a.n), uint8(a.b/a.n), uint8(a.a/a.n))})
	}
	mip, err := NewModel(m.Name+"#mip", size, m.Pivot.Mul(0.5), voxels)
	if err != nil {
		return nil
	}
	return mip
}

// Clone возвращает независимую копию модели
func (m *Model) Clone() *Model {
	c := &Model{
		Name:   m.Name,
		SizeX:  m.SizeX,
		SizeY:  m.SizeY,
		SizeZ:  m.SizeZ,
		Pivot:  m.Pivot,
		Voxels: make([]Voxel, len(m.Voxels)),
		index:  make(map[int]int, len(m.Voxels)),
	}
	copy(c.Voxels, m.Voxels)
	for i, v := range c.Voxels {
		c.index[c.key(v.X, v.Y, v.Z)] = i
	}
	return c
}

func (m *Model) key(x, y, z int) int {
	return x + m.SizeX*(y+m.SizeY*z)
}
