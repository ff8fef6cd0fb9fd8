package world

import (
	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/vec"
)

// grid воксельный объём из столбцов. Используется и для основного мира,
// и для mip-уровней.
type grid struct {
	side  int
	depth int
	cols  []column
}

func newGrid(side, depth int) *grid {
	return &grid{side: side, depth: depth, cols: make([]column, side*side)}
}

func (g *grid) inXY(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.side && y < g.side
}

func (g *grid) in(p vec.IVec3) bool {
	return g.inXY(p.X, p.Y) && p.Z >= 0 && p.Z < g.depth
}

// col возвращает столбец или nil вне домена
func (g *grid) col(x, y int) *column {
	if !g.inXY(x, y) {
		return nil
	}
	return &g.cols[y*g.side+x]
}

func (g *grid) domain() vec.Box {
	return vec.Box{Max: vec.IVec3{X: g.side, Y: g.side, Z: g.depth}}
}

func (g *grid) isSolid(x, y, z int) bool {
	if z < 0 || z >= g.depth {
		return false
	}
	c := g.col(x, y)
	return c != nil && c.solidAt(z)
}

// solidForExposure как isSolid, но ниже домена считается сплошным полом
func (g *grid) solidForExposure(x, y, z int) bool {
	if z >= g.depth {
		return g.inXY(x, y)
	}
	return g.isSolid(x, y, z)
}

func (g *grid) colorAt(x, y, z int) (voxelColor, bool) {
	if z < 0 || z >= g.depth {
		return voxelColor{}, false
	}
	c := g.col(x, y)
	if c == nil {
		return voxelColor{}, false
	}
	return c.colorAt(z)
}

// exposedRuns отрезки открытых сплошных вокселей столбца в [z0, z1).
// Воксель открыт, если хотя бы один из шести соседей воздух; соседи
// за пределами x/y и над z=0 считаются воздухом, под дном домена пол.
func (g *grid) exposedRuns(x, y, z0, z1 int) []span {
	c := g.col(x, y)
	if c == nil {
		return nil
	}
	lo, hi := int32(max(z0, 0)), int32(min(z1, g.depth))
	var runs []span
	neighbors := [4]*column{g.col(x-1, y), g.col(x+1, y), g.col(x, y-1), g.col(x, y+1)}
	for i := c.spanAfter(int(lo)); i < len(c.spans) && c.spans[i].top < hi; i++ {
		s := c.spans[i]
		ct, cb := max(s.top, lo), min(s.bot, hi)
		if s.top >= lo {
			runs = append(runs, span{top: s.top, bot: s.top + 1})
		}
		if int(s.bot) < g.depth && s.bot <= hi {
			runs = append(runs, span{top: s.bot - 1, bot: s.bot})
		}
		for _, n := range neighbors {
			if n == nil {
				runs = append(runs, span{top: ct, bot: cb})
				continue
			}
			runs = append(runs, n.airRuns(ct, cb)...)
		}
	}
	return mergeRuns(runs)
}

// refresh приводит цвета столбца в [z0, z1) в соответствие с открытостью:
// закрытые воксели теряют цвет, открытые без цвета получают paint.
func (g *grid) refresh(x, y, z0, z1 int, paint color.Func) {
	c := g.col(x, y)
	if c == nil {
		return
	}
	z0, z1 = max(z0, 0), min(z1, g.depth)
	if z0 >= z1 {
		return
	}
	runs := g.exposedRuns(x, y, z0, z1)
	lo := c.colorIndex(z0)
	hi := c.colorIndex(z1)

	fresh := make([]voxelColor, 0, hi-lo+4)
	old := c.colors[lo:hi]
	k := 0
	for _, r := range runs {
		for z := r.top; z < r.bot; z++ {
			for k < len(old) && old[k].z < z {
				k++
			}
			if k < len(old) && old[k].z == z {
				fresh = append(fresh, old[k])
				continue
			}
			fresh = append(fresh, voxelColor{z: z, c: paint(x, y, int(z)), light: color.NeutralBrightness})
		}
	}

	tail := c.colors[hi:]
	merged := make([]voxelColor, 0, lo+len(fresh)+len(tail))
	merged = append(merged, c.colors[:lo]...)
	merged = append(merged, fresh...)
	merged = append(merged, tail...)
	c.colors = merged
}

// refreshBox обновляет открытость в регионе с запасом в один воксель
func (g *grid) refreshBox(box vec.Box, paint color.Func) {
	r := box.Expand(1).Clip(g.domain())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			g.refresh(x, y, r.Min.Z, r.Max.Z, paint)
		}
	}
}

// exposed проверяет открытость одного вокселя
func (g *grid) exposed(x, y, z int) bool {
	if !g.isSolid(x, y, z) {
		return false
	}
	for _, d := range vec.FaceOffsets {
		if !g.solidForExposure(x+d.X, y+d.Y, z+d.Z) {
			return true
		}
	}
	return false
}
