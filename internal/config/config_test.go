package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxworld.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultWithoutPath(t *testing.T) {
	t.Setenv("VOXWORLD_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Engine.GetWorldSide())
	assert.Equal(t, 256, cfg.Engine.GetWorldDepth())
	assert.Equal(t, "none", cfg.Lighting.Mode)
	assert.Equal(t, 1, cfg.Render.GetRaycastDensity())
}

func TestLoad_FromEnvPath(t *testing.T) {
	path := writeConfig(t, `
engine:
  world_side: 256
  world_depth: 128
render:
  raycast_density: 2
lighting:
  mode: normal
`)
	t.Setenv("VOXWORLD_CONFIG", path)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Engine.GetWorldSide())
	assert.Equal(t, 128, cfg.Engine.GetWorldDepth())
	assert.Equal(t, 2, cfg.Render.GetRaycastDensity())
	assert.Equal(t, "normal", cfg.Lighting.Mode)
	assert.Equal(t, 0.4, cfg.Lighting.Sun[0], "солнце из Default должно сохраниться")
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"side не степень двойки":   "engine:\n  world_side: 300\n",
		"мелкая глубина":           "engine:\n  world_depth: 8\n",
		"отрицательный показатель": "engine:\n  sphere_power: -2\n",
		"режим освещения":          "lighting:\n  mode: ray\n",
		"цвет":                     "engine:\n  paint_color: \"#zz\"\n",
		"плотность":                "render:\n  raycast_density: -1\n",
		"доля трасс":               "metrics:\n  trace_sample_ratio: 1.5\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "отсутствующий файл должен давать ошибку")
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("VOXWORLD_SIDE", "1024")
	t.Setenv("VOXWORLD_METRICS_ADDR", ":9100")
	var cfg Config
	assert.Equal(t, 1024, cfg.Engine.GetWorldSide())
	assert.Equal(t, ":9100", cfg.Metrics.GetMetricsAddr())

	cfg.Engine.WorldSide = 64
	assert.Equal(t, 64, cfg.Engine.GetWorldSide(), "значение конфига приоритетнее окружения")

	t.Setenv("VOXWORLD_DEPTH", "abc")
	assert.Equal(t, 256, cfg.Engine.GetWorldDepth(), "мусор в окружении игнорируется")
}

func TestParseHexColor(t *testing.T) {
	v, err := ParseHexColor("#80a0c0")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x80a0c0), v)

	v, err = ParseHexColor("ff0000")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xff0000), v)

	_, err = ParseHexColor("#12345")
	assert.Error(t, err)
}
