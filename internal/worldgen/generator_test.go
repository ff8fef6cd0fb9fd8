package worldgen

import (
	"testing"

	"github.com/annel0/voxworld/pkg/vec"
	"github.com/annel0/voxworld/pkg/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoise_Range(t *testing.T) {
	n := NewNoise(7)
	for i := 0; i < 200; i++ {
		v := n.At(float64(i)*0.13, float64(i)*0.07)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a, err := NewGenerator(99).Generate(32, 32, 64)
	require.NoError(t, err)
	b, err := NewGenerator(99).Generate(32, 32, 64)
	require.NoError(t, err)
	assert.Equal(t, a.Heightmap.Data, b.Heightmap.Data, "один сид даёт одну карту")

	for _, z := range a.Heightmap.Data {
		assert.Less(t, int(z), 64, "поверхность внутри мира")
	}
}

func TestGenerate_Invalid(t *testing.T) {
	_, err := NewGenerator(1).Generate(0, 10, 64)
	assert.ErrorIs(t, err, world.ErrInvalidGeometry)
	_, err = NewGenerator(1).Generate(10, 10, 8)
	assert.ErrorIs(t, err, world.ErrInvalidGeometry)
}

func TestGenerate_DeepWorldCapsHeight(t *testing.T) {
	tr, err := NewGenerator(3).Generate(16, 16, 1024)
	require.NoError(t, err)
	require.NoError(t, tr.Heightmap.Validate())
}

func TestTerrain_Apply(t *testing.T) {
	w, err := world.New(64, 64)
	require.NoError(t, err)
	tr, err := NewGenerator(5).Generate(64, 64, 64)
	require.NoError(t, err)

	box, err := tr.Apply(w, 0, 0)
	require.NoError(t, err)
	assert.False(t, box.Empty())

	for _, p := range [][2]int{{0, 0}, {10, 20}, {63, 63}} {
		z := tr.Heightmap.At(p[0], p[1])
		assert.Equal(t, world.Exposed, w.Cell(vec.NewI(p[0], p[1], z)), "поверхность открыта в %v", p)
		assert.False(t, w.IsSolid(vec.NewI(p[0], p[1], z-1)), "над поверхностью воздух в %v", p)
		assert.True(t, w.IsSolid(vec.NewI(p[0], p[1], 63)), "дно сплошное в %v", p)
	}

	paint := tr.Paint(0, 0)
	x, y := 10, 20
	top := paint(x, y, tr.Heightmap.At(x, y))
	deep := paint(x, y, 63)
	assert.NotEqual(t, top, deep, "поверхность и глубина окрашены по-разному")
}

func TestPlantTrees(t *testing.T) {
	w, err := world.New(64, 64)
	require.NoError(t, err)
	g := NewGenerator(11)
	g.ForestDensity = 1
	tr, err := g.Generate(64, 64, 64)
	require.NoError(t, err)
	_, err = tr.Apply(w, 0, 0)
	require.NoError(t, err)

	before := w.CountSolid(w.Bounds())
	n, box, err := g.PlantTrees(w, tr, 0, 0)
	require.NoError(t, err)
	if n == 0 {
		t.Skip("в этой карте нет лесов и равнин")
	}
	assert.False(t, box.Empty())
	assert.Greater(t, w.CountSolid(w.Bounds()), before, "деревья добавляют воксели")
}
