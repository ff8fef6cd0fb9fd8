// Package metrics собирает Prometheus-метрики движка: CSG-операции,
// плавление, кадры рендера, кэш ресурсов и состояние процесса.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/voxworld/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voxworld"

// Metrics набор метрик одного движка. Каждый экземпляр держит собственный
// реестр, поэтому несколько движков в одном процессе не конфликтуют.
type Metrics struct {
	registry *prometheus.Registry

	csgOps         *prometheus.CounterVec
	voxelsModified prometheus.Counter
	meltedVoxels   prometheus.Counter
	renderCasts    prometheus.Counter
	castSeconds    prometheus.Histogram
	assetHits      prometheus.Counter
	assetMisses    prometheus.Counter
	ownedSprites   prometheus.Gauge
	residentBytes  prometheus.Gauge
	cpuPercent     prometheus.Gauge
}

// New создаёт метрики и регистрирует их в новом реестре
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		csgOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "csg_operations_total",
			Help:      "Число CSG-операций по фигуре и виду операции.",
		}, []string{"shape", "op"}),
		voxelsModified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voxels_modified_total",
			Help:      "Воксели, затронутые CSG-операциями.",
		}),
		meltedVoxels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "melted_voxels_total",
			Help:      "Воксели, перенесённые из мира в спрайты.",
		}),
		renderCasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_casts_total",
			Help:      "Число отрисованных кадров.",
		}),
		castSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_cast_seconds",
			Help:      "Длительность трассировки кадра.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		assetHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_cache_hits_total",
			Help:      "Попадания в кэш ресурсов.",
		}),
		assetMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_cache_misses_total",
			Help:      "Промахи кэша ресурсов (чтение с диска или из архива).",
		}),
		ownedSprites: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "owned_sprites",
			Help:      "Собственные спрайты, ещё не освобождённые вызывающим.",
		}),
		residentBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_resident_bytes",
			Help:      "Резидентная память процесса.",
		}),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_cpu_percent",
			Help:      "Загрузка CPU процессом в процентах.",
		}),
	}
	m.registry.MustRegister(
		m.csgOps, m.voxelsModified, m.meltedVoxels,
		m.renderCasts, m.castSeconds,
		m.assetHits, m.assetMisses,
		m.ownedSprites, m.residentBytes, m.cpuPercent,
	)
	return m
}

// Registry реестр метрик движка
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordCSG учитывает CSG-операцию
func (m *Metrics) RecordCSG(shape, op string, voxels int) {
	m.csgOps.WithLabelValues(shape, op).Inc()
	if voxels > 0 {
		m.voxelsModified.Add(float64(voxels))
	}
}

// RecordMelt учитывает расплавленные воксели
func (m *Metrics) RecordMelt(voxels int) {
	if voxels > 0 {
		m.meltedVoxels.Add(float64(voxels))
	}
}

// RecordCast учитывает отрисованный кадр
func (m *Metrics) RecordCast(d time.Duration) {
	m.renderCasts.Inc()
	m.castSeconds.Observe(d.Seconds())
}

func (m *Metrics) AssetHit()  { m.assetHits.Inc() }
func (m *Metrics) AssetMiss() { m.assetMisses.Inc() }

// SetOwnedSprites обновляет число живых собственных спрайтов
func (m *Metrics) SetOwnedSprites(n int) { m.ownedSprites.Set(float64(n)) }

// Handler HTTP-обработчик /metrics для реестра движка
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartHTTP запускает HTTP-эндпоинт Prometheus на указанном адресе (например, ":2112").
// Метод неблокирующий: сервер стартует в отдельной горутине. Возвращает
// функцию остановки сервера.
func (m *Metrics) StartHTTP(addr string) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logging.Info("Prometheus /metrics доступен по адресу %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
	return srv.Shutdown
}
