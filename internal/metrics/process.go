package metrics

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/annel0/voxworld/internal/logging"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessSampler периодически снимает память и CPU процесса в gauge метрик
type ProcessSampler struct {
	metrics *Metrics
	proc    *process.Process
	start   time.Time

	once sync.Once
	quit chan struct{}
	done chan struct{}
}

// NewProcessSampler создаёт сэмплер текущего процесса, но не запускает его
func NewProcessSampler(m *Metrics) (*ProcessSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("процесс %d: %w", os.Getpid(), err)
	}
	return &ProcessSampler{
		metrics: m,
		proc:    proc,
		start:   time.Now(),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Sample снимает показатели один раз
func (s *ProcessSampler) Sample() error {
	mem, err := s.proc.MemoryInfo()
	if err != nil {
		return err
	}
	s.metrics.residentBytes.Set(float64(mem.RSS))

	pct, err := s.proc.CPUPercent()
	if err != nil {
		// если метрика процесса недоступна, берём системную
		all, sysErr := cpu.Percent(100*time.Millisecond, false)
		if sysErr != nil || len(all) == 0 {
			return err
		}
		pct = all[0]
	}
	s.metrics.cpuPercent.Set(pct)
	return nil
}

// Uptime время работы с момента создания сэмплера
func (s *ProcessSampler) Uptime() string {
	uptime := time.Since(s.start)

	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// Start запускает периодический сбор
func (s *ProcessSampler) Start(every time.Duration) {
	if every <= 0 {
		every = 10 * time.Second
	}
	go s.loop(every)
}

// Stop останавливает сбор; повторный вызов безопасен.
// Вызывать только после Start.
func (s *ProcessSampler) Stop() {
	s.once.Do(func() {
		close(s.quit)
		<-s.done
	})
}

func (s *ProcessSampler) loop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-ticker.C:
			if err := s.Sample(); err != nil {
				logging.Debug("сбор метрик процесса: %v", err)
			}
		case <-s.quit:
			return
		}
	}
}
