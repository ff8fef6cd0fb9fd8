package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации движка.
// Пустые поля заполняются из переменных окружения или значениями по умолчанию.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Render   RenderConfig   `yaml:"render"`
	Lighting LightingConfig `yaml:"lighting"`
	Assets   AssetsConfig   `yaml:"assets"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type EngineConfig struct {
	WorldSide  int    `yaml:"world_side"`
	WorldDepth int    `yaml:"world_depth"`
	Seed       int64  `yaml:"seed"`
	PaintColor string `yaml:"paint_color"`

	// FallLimit максимальная масса куска для поиска висящих обломков
	FallLimit int `yaml:"fall_limit"`

	// SpherePower показатель нормы SetSphere (2 шар)
	SpherePower float64 `yaml:"sphere_power"`
}

type RenderConfig struct {
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	Zoom           float64 `yaml:"zoom"`
	RaycastDensity int     `yaml:"raycast_density"`
	MaxScanDist    float64 `yaml:"max_scan_dist"`
	MipScanDist    float64 `yaml:"mip_scan_dist"`
	FogColor       string  `yaml:"fog_color"`
	Sky            string  `yaml:"sky"`
}

type LightingConfig struct {
	Mode string     `yaml:"mode"`
	Sun  [3]float64 `yaml:"sun"`
}

type AssetsConfig struct {
	Dirs     []string `yaml:"dirs"`
	Archives []string `yaml:"archives"`
	CacheMB  int      `yaml:"cache_mb"`
}

type StorageConfig struct {
	SnapshotPath string `yaml:"snapshot_path"`

	// SyncWrites синхронная запись badger
	SyncWrites bool `yaml:"sync_writes"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`

	// Components уровни консоли по компонентам: world: DEBUG
	Components map[string]string `yaml:"components"`
}

type MetricsConfig struct {
	Addr         string `yaml:"addr"`
	SampleEvery  int    `yaml:"sample_every_seconds"`
	Telemetry    bool   `yaml:"telemetry"`
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// TraceSampleRatio доля трассируемых операций в (0, 1]; 0 означает все
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}

// GetWorldSide возвращает сторону мира с поддержкой fallback значений
func (e *EngineConfig) GetWorldSide() int {
	return getIntWithEnvFallback(e.WorldSide, "VOXWORLD_SIDE", 512)
}

// GetWorldDepth возвращает глубину мира с поддержкой fallback значений
func (e *EngineConfig) GetWorldDepth() int {
	return getIntWithEnvFallback(e.WorldDepth, "VOXWORLD_DEPTH", 256)
}

// GetPaintColor цвет кисти по умолчанию в виде #rrggbb
func (e *EngineConfig) GetPaintColor() string {
	return getStringWithEnvFallback(e.PaintColor, "VOXWORLD_PAINT", "#808080")
}

func (e *EngineConfig) GetFallLimit() int {
	return getIntWithEnvFallback(e.FallLimit, "VOXWORLD_FALL_LIMIT", 4096)
}

func (e *EngineConfig) GetSpherePower() float64 {
	if e.SpherePower > 0 {
		return e.SpherePower
	}
	return 2
}

// GetRaycastDensity возвращает шаг трассировки с поддержкой fallback значений
func (r *RenderConfig) GetRaycastDensity() int {
	return getIntWithEnvFallback(r.RaycastDensity, "VOXWORLD_DENSITY", 1)
}

func (r *RenderConfig) GetWidth() int {
	return getIntWithEnvFallback(r.Width, "VOXWORLD_WIDTH", 640)
}

func (r *RenderConfig) GetHeight() int {
	return getIntWithEnvFallback(r.Height, "VOXWORLD_HEIGHT", 480)
}

func (r *RenderConfig) GetZoom() float64 {
	if r.Zoom > 0 {
		return r.Zoom
	}
	return 1
}

func (r *RenderConfig) GetFogColor() string {
	return getStringWithEnvFallback(r.FogColor, "VOXWORLD_FOG", "#80a0c0")
}

// GetSnapshotPath каталог базы снимков; пустое значение отключает хранилище
func (s *StorageConfig) GetSnapshotPath() string {
	return getStringWithEnvFallback(s.SnapshotPath, "VOXWORLD_SNAPSHOTS", "")
}

// GetMetricsAddr адрес HTTP для Prometheus; пустой адрес отключает экспорт
func (m *MetricsConfig) GetMetricsAddr() string {
	return getStringWithEnvFallback(m.Addr, "VOXWORLD_METRICS_ADDR", "")
}

func (m *MetricsConfig) GetServiceName() string {
	return getStringWithEnvFallback(m.ServiceName, "OTEL_SERVICE_NAME", "voxworld")
}

func (a *AssetsConfig) GetCacheMB() int {
	return getIntWithEnvFallback(a.CacheMB, "VOXWORLD_CACHE_MB", 64)
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	if configValue > 0 {
		return configValue
	}
	if env := os.Getenv(envVar); env != "" {
		if v, err := strconv.Atoi(env); err == nil && v > 0 {
			return v
		}
	}
	return defaultValue
}

func getStringWithEnvFallback(configValue, envVar, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	if env := os.Getenv(envVar); env != "" {
		return env
	}
	return defaultValue
}

// Default возвращает конфигурацию, в которой все поля берутся из fallback
func Default() *Config {
	return &Config{
		Lighting: LightingConfig{Mode: "none", Sun: [3]float64{0.4, 0.3, 1}},
		Logging:  LoggingConfig{ConsoleLevel: "WARN", FileLevel: "DEBUG"},
		Metrics:  MetricsConfig{SampleEvery: 10},
	}
}

// Load загружает YAML-конфиг поверх Default. Пустой path берётся из
// VOXWORLD_CONFIG; если и он пуст, возвращается Default.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VOXWORLD_CONFIG")
	}
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфига %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфига %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет итоговые значения (после fallback)
func (c *Config) Validate() error {
	side := c.Engine.GetWorldSide()
	if side <= 0 || side > 4096 || side&(side-1) != 0 {
		return fmt.Errorf("world_side %d: нужна степень двойки не больше 4096", side)
	}
	if d := c.Engine.GetWorldDepth(); d < 16 || d > 1024 {
		return fmt.Errorf("world_depth %d вне диапазона [16, 1024]", d)
	}
	if c.Render.RaycastDensity < 0 {
		return fmt.Errorf("raycast_density %d: нужно не меньше 1", c.Render.RaycastDensity)
	}
	if c.Engine.SpherePower < 0 || math.IsNaN(c.Engine.SpherePower) || math.IsInf(c.Engine.SpherePower, 0) {
		return fmt.Errorf("sphere_power %v: нужно положительное число", c.Engine.SpherePower)
	}
	if r := c.Metrics.TraceSampleRatio; !(r >= 0 && r <= 1) {
		return fmt.Errorf("trace_sample_ratio %v вне диапазона [0, 1]", r)
	}
	if c.Render.MaxScanDist < 0 || c.Render.MipScanDist < 0 {
		return fmt.Errorf("дальности трассировки не могут быть отрицательными")
	}
	switch strings.ToLower(c.Lighting.Mode) {
	case "", "none", "normal", "point":
	default:
		return fmt.Errorf("неизвестный режим освещения %q", c.Lighting.Mode)
	}
	for _, s := range []string{c.Engine.GetPaintColor(), c.Render.GetFogColor()} {
		if _, err := ParseHexColor(s); err != nil {
			return err
		}
	}
	return nil
}

// ParseHexColor разбирает цвет вида #rrggbb или rrggbb в 0xRRGGBB
func ParseHexColor(s string) (uint32, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return 0, fmt.Errorf("цвет %q: ожидается #rrggbb", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("цвет %q: %w", s, err)
	}
	return uint32(v), nil
}
