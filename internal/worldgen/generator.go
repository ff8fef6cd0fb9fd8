// Package worldgen строит ландшафт по шуму Перлина: карту высот, окраску
// по биомам и деревья из CSG-примитивов.
package worldgen

import (
	"fmt"
	"math/rand"

	"github.com/annel0/voxworld/internal/logging"
	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/vec"
	"github.com/annel0/voxworld/pkg/world"
)

// Biome тип биома колонки
type Biome int

const (
	BiomePlains Biome = iota
	BiomeDesert
	BiomeForest
	BiomeMountains
	BiomeWater
	BiomeDeepWater
)

// Пороги нормированной высоты
const (
	DeepWaterMax    = 0.20 // Ниже - глубинная вода
	ShallowWaterMax = 0.30 // Ниже - мелководье
	MountainStart   = 0.75 // Выше - камень
	SnowStart       = 0.88 // Выше - снег
)

var (
	colDeepWater = color.RGB(20, 40, 120)
	colWater     = color.RGB(40, 80, 170)
	colSand      = color.RGB(210, 190, 120)
	colGrass     = color.RGB(70, 150, 50)
	colForest    = color.RGB(40, 110, 40)
	colDirt      = color.RGB(120, 85, 50)
	colStone     = color.RGB(120, 120, 125)
	colSnow      = color.RGB(240, 240, 250)
	colTrunk     = color.RGB(100, 65, 30)
	colLeaves    = color.RGB(30, 120, 30)
)

// Generator генерирует ландшафт
type Generator struct {
	Seed          int64   // Сид для генерации шума
	NoiseScale    float64 // Масштаб основного шума (высота)
	BiomeScale    float64 // Масштаб шума биомов
	ForestDensity float64 // Доля колонок леса с деревом
}

// NewGenerator создаёт генератор с настройками по умолчанию
func NewGenerator(seed int64) *Generator {
	return &Generator{
		Seed:          seed,
		NoiseScale:    0.02,
		BiomeScale:    0.008,
		ForestDensity: 0.01,
	}
}

// Terrain результат генерации: карта высот и сведения о колонках
type Terrain struct {
	Heightmap world.Heightmap
	heights   []float64
	biomes    []Biome
	seed      int64
}

func (t *Terrain) index(x, y int) int { return y*t.Heightmap.Width + x }

// Biome возвращает биом колонки карты
func (t *Terrain) Biome(x, y int) Biome { return t.biomes[t.index(x, y)] }

// Height возвращает нормированную высоту колонки в [0, 1]
func (t *Terrain) Height(x, y int) float64 { return t.heights[t.index(x, y)] }

// Generate строит карту width x height для мира глубины depth.
// Поверхность укладывается в верхние min(depth, 256) слоёв, поскольку
// значение карты высот занимает байт.
func (g *Generator) Generate(width, height, depth int) (*Terrain, error) {
	if width <= 0 || height <= 0 || depth < 16 {
		return nil, fmt.Errorf("%w: ландшафт %dx%d глубины %d", world.ErrInvalidGeometry, width, height, depth)
	}
	span := min(depth, 256)
	base := span / 8
	amp := float64(span) / 2

	heightNoise := NewNoise(g.Seed)
	biomeNoise := NewNoise(g.Seed + 42)

	t := &Terrain{
		Heightmap: world.Heightmap{Width: width, Height: height, Pitch: width, Data: make([]byte, width*height)},
		heights:   make([]float64, width*height),
		biomes:    make([]Biome, width*height),
		seed:      g.Seed,
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			h := heightNoise.At(float64(x)*g.NoiseScale, float64(y)*g.NoiseScale)
			b := biomeNoise.At(float64(x)*g.BiomeScale, float64(y)*g.BiomeScale)
			i := t.index(x, y)
			t.heights[i] = h
			t.biomes[i] = biomeFor(h, b)
			z := span - 1 - base - int(h*amp)
			t.Heightmap.Data[i] = byte(max(0, min(z, span-1)))
		}
	}
	return t, nil
}

// biomeFor определяет тип биома на основе значений шума
func biomeFor(height, biomeValue float64) Biome {
	// Водные биомы в низинах
	if height < DeepWaterMax {
		return BiomeDeepWater
	}
	if height < ShallowWaterMax {
		return BiomeWater
	}
	// Горные биомы на возвышенностях
	if height > MountainStart {
		return BiomeMountains
	}
	switch {
	case biomeValue < 0.35:
		return BiomeDesert
	case biomeValue > 0.6:
		return BiomeForest
	}
	return BiomePlains
}

// surfaceColor цвет верхнего вокселя колонки
func surfaceColor(b Biome, h float64) color.Color {
	switch b {
	case BiomeDeepWater:
		return colDeepWater
	case BiomeWater:
		return colWater
	case BiomeDesert:
		return colSand
	case BiomeForest:
		return colForest
	case BiomeMountains:
		if h > SnowStart {
			return colSnow
		}
		return colStone
	}
	return colGrass
}

// Paint возвращает окраску ландшафта, размещённого в мире с началом (x0, y0).
// Верхний воксель колонки берёт цвет биома, ниже идёт земля, глубже камень.
func (t *Terrain) Paint(x0, y0 int) color.Func {
	jitter := uint8(10)
	return func(x, y, z int) color.Color {
		lx, ly := x-x0, y-y0
		if lx < 0 || ly < 0 || lx >= t.Heightmap.Width || ly >= t.Heightmap.Height {
			return color.Jitter(colStone, jitter, t.seed)(x, y, z)
		}
		i := t.index(lx, ly)
		depth := z - t.Heightmap.At(lx, ly)
		var c color.Color
		switch {
		case depth <= 0:
			c = surfaceColor(t.biomes[i], t.heights[i])
		case depth < 4:
			switch t.biomes[i] {
			case BiomeDesert, BiomeWater, BiomeDeepWater:
				c = colSand
			default:
				c = colDirt
			}
		default:
			c = colStone
		}
		return color.Jitter(c, jitter, t.seed)(x, y, z)
	}
}

// Apply вставляет ландшафт в мир с началом (x0, y0) и возвращает затронутый регион
func (t *Terrain) Apply(w *world.World, x0, y0 int) (vec.Box, error) {
	return w.SetHeightmap(t.Heightmap, x0, y0, t.Paint(x0, y0))
}

// PlantTrees ставит деревья в лесах и изредка на равнинах. Ствол цилиндр,
// крона шар. Возвращает число деревьев и затронутый регион.
func (g *Generator) PlantTrees(w *world.World, t *Terrain, x0, y0 int) (int, vec.Box, error) {
	rng := rand.New(rand.NewSource(g.Seed))
	box := vec.Box{}
	count := 0
	for y := 2; y < t.Heightmap.Height-2; y++ {
		for x := 2; x < t.Heightmap.Width-2; x++ {
			chance := 0.0
			switch t.Biome(x, y) {
			case BiomeForest:
				chance = g.ForestDensity * 4
			case BiomePlains:
				chance = g.ForestDensity
			}
			if chance == 0 || rng.Float64() >= chance {
				continue
			}
			surf := t.Heightmap.At(x, y)
			trunk := 5 + rng.Intn(4)
			if surf-trunk-4 < 0 {
				continue
			}
			base := vec.New(float64(x0+x)+0.5, float64(y0+y)+0.5, float64(surf)+0.5)
			top := base.Sub(vec.New(0, 0, float64(trunk)))
			b1, err := w.SetCylinder(base, top, 1, world.InsertFunc(color.Wood(colTrunk)))
			if err != nil {
				return count, box, err
			}
			b2, err := w.SetSphere(top.Floor(), 2.5+rng.Float64()*1.5, world.InsertFunc(color.Jitter(colLeaves, 20, g.Seed)))
			if err != nil {
				return count, box, err
			}
			box = box.Union(b1).Union(b2)
			count++
		}
	}
	logging.GetWorldLogger().Debug("посажено деревьев: %d", count)
	return count, box, nil
}
