package world

import (
	"sort"

	"github.com/annel0/voxworld/pkg/color"
)

// span сплошной вертикальный отрезок [top, bot)
type span struct {
	top int32
	bot int32
}

// voxelColor цвет открытого вокселя и байт освещения
type voxelColor struct {
	z     int32
	c     color.Color
	light uint8
}

// column хранит отсортированные непересекающиеся и несмежные сплошные
// отрезки и цвета только для открытых вокселей
type column struct {
	spans  []span
	colors []voxelColor
}

// spanAfter индекс первого отрезка с bot > z
func (c *column) spanAfter(z int) int {
	return sort.Search(len(c.spans), func(i int) bool { return int(c.spans[i].bot) > z })
}

func (c *column) solidAt(z int) bool {
	i := c.spanAfter(z)
	return i < len(c.spans) && int(c.spans[i].top) <= z
}

// anySolid есть ли сплошной воксель в [z0, z1)
func (c *column) anySolid(z0, z1 int) bool {
	if z0 >= z1 {
		return false
	}
	i := c.spanAfter(z0)
	return i < len(c.spans) && int(c.spans[i].top) < z1
}

// anyEmpty есть ли воздух в [z0, z1)
func (c *column) anyEmpty(z0, z1 int) bool {
	if z0 >= z1 {
		return false
	}
	i := c.spanAfter(z0)
	if i == len(c.spans) || int(c.spans[i].top) > z0 {
		return true
	}
	return int(c.spans[i].bot) < z1
}

// floor первый сплошной z не выше z (z растёт вниз); -1 если ниже ничего нет
func (c *column) floor(z int) int {
	i := c.spanAfter(z)
	if i == len(c.spans) {
		return -1
	}
	return max(int(c.spans[i].top), z)
}

// covered число сплошных вокселей в [t, b)
func (c *column) covered(t, b int32) int {
	n := 0
	for i := c.spanAfter(int(t)); i < len(c.spans) && c.spans[i].top < b; i++ {
		n += int(min(c.spans[i].bot, b) - max(c.spans[i].top, t))
	}
	return n
}

// add делает [t, b) сплошным и возвращает число новых сплошных вокселей
func (c *column) add(t, b int32) int {
	if t >= b {
		return 0
	}
	added := int(b-t) - c.covered(t, b)
	if added == 0 {
		return 0
	}
	// первый отрезок, касающийся [t, b) или лежащий после него
	lo := sort.Search(len(c.spans), func(i int) bool { return c.spans[i].bot >= t })
	hi := lo
	nt, nb := t, b
	for hi < len(c.spans) && c.spans[hi].top <= b {
		nt = min(nt, c.spans[hi].top)
		nb = max(nb, c.spans[hi].bot)
		hi++
	}
	c.spans = append(c.spans[:lo], append([]span{{top: nt, bot: nb}}, c.spans[hi:]...)...)
	return added
}

// remove делает [t, b) воздухом и возвращает число удалённых вокселей.
// Цвета удалённых вокселей сбрасываются.
func (c *column) remove(t, b int32) int {
	if t >= b {
		return 0
	}
	removed := c.covered(t, b)
	if removed == 0 {
		return 0
	}
	out := make([]span, 0, len(c.spans)+1)
	for _, s := range c.spans {
		if s.bot <= t || s.top >= b {
			out = append(out, s)
			continue
		}
		if s.top < t {
			out = append(out, span{top: s.top, bot: t})
		}
		if s.bot > b {
			out = append(out, span{top: b, bot: s.bot})
		}
	}
	c.spans = out
	c.dropColors(t, b)
	return removed
}

// colorIndex индекс первого цвета с z >= target
func (c *column) colorIndex(z int) int {
	return sort.Search(len(c.colors), func(i int) bool { return int(c.colors[i].z) >= z })
}

func (c *column) colorAt(z int) (voxelColor, bool) {
	i := c.colorIndex(z)
	if i < len(c.colors) && int(c.colors[i].z) == z {
		return c.colors[i], true
	}
	return voxelColor{}, false
}

// setColor вставляет или заменяет цвет вокселя
func (c *column) setColor(vc voxelColor) {
	i := c.colorIndex(int(vc.z))
	if i < len(c.colors) && c.colors[i].z == vc.z {
		c.colors[i] = vc
		return
	}
	c.colors = append(c.colors, voxelColor{})
	copy(c.colors[i+1:], c.colors[i:])
	c.colors[i] = vc
}

// dropColors удаляет цвета в [t, b)
func (c *column) dropColors(t, b int32) {
	lo := c.colorIndex(int(t))
	hi := c.colorIndex(int(b))
	if lo < hi {
		c.colors = append(c.colors[:lo], c.colors[hi:]...)
	}
}

// nearestColor ближайший по z сохранённый цвет столбца
func (c *column) nearestColor(z int) (color.Color, bool) {
	if len(c.colors) == 0 {
		return color.Color{}, false
	}
	i := c.colorIndex(z)
	switch {
	case i == len(c.colors):
		return c.colors[i-1].c, true
	case i == 0:
		return c.colors[0].c, true
	}
	if int(c.colors[i].z)-z <= z-int(c.colors[i-1].z) {
		return c.colors[i].c, true
	}
	return c.colors[i-1].c, true
}

// airRuns воздушные отрезки столбца внутри [z0, z1)
func (c *column) airRuns(z0, z1 int32) []span {
	var out []span
	cur := z0
	for i := c.spanAfter(int(z0)); i < len(c.spans) && c.spans[i].top < z1; i++ {
		if c.spans[i].top > cur {
			out = append(out, span{top: cur, bot: c.spans[i].top})
		}
		cur = max(cur, c.spans[i].bot)
	}
	if cur < z1 {
		out = append(out, span{top: cur, bot: z1})
	}
	return out
}

func (c *column) clone() column {
	out := column{
		spans:  make([]span, len(c.spans)),
		colors: make([]voxelColor, len(c.colors)),
	}
	copy(out.spans, c.spans)
	copy(out.colors, c.colors)
	return out
}

// mergeRuns сортирует и объединяет пересекающиеся и смежные отрезки
func mergeRuns(runs []span) []span {
	if len(runs) < 2 {
		return runs
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].top < runs[j].top })
	out := runs[:1]
	for _, r := range runs[1:] {
		last := &out[len(out)-1]
		if r.top <= last.bot {
			last.bot = max(last.bot, r.bot)
			continue
		}
		out = append(out, r)
	}
	return out
}
