package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/annel0/voxworld/internal/config"
	"github.com/annel0/voxworld/internal/logging"
	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/engine"
	"github.com/annel0/voxworld/pkg/vec"
	"github.com/annel0/voxworld/pkg/world"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config (по умолчанию VOXWORLD_CONFIG)")
		seed       = flag.Int64("seed", 0, "Сид генератора ландшафта (0 = из конфига)")
		worldFile  = flag.String("world", "", "Загрузить мир .vxw вместо генерации")
		out        = flag.String("out", "frame.png", "Файл скриншота PNG")
		saveWorld  = flag.String("save", "", "Сохранить мир в файл .vxw")
		snapshot   = flag.String("snapshot", "", "Сохранить снимок в хранилище под этим именем")
		crater     = flag.Float64("crater", 12, "Радиус кратера перед съёмкой (0 = без кратера)")
		serve      = flag.Bool("serve", false, "Не выходить после кадра: держать /metrics до сигнала")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	if err := initLogging(cfg.Logging); err != nil {
		log.Fatalf("Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseLogger()

	eng, err := engine.Init(cfg)
	if err != nil {
		logging.Error("Ошибка запуска движка: %v", err)
		os.Exit(1)
	}
	defer eng.Shutdown()

	if err := run(eng, cfg, runOptions{
		seed:      *seed,
		worldFile: *worldFile,
		out:       *out,
		saveWorld: *saveWorld,
		snapshot:  *snapshot,
		crater:    *crater,
	}); err != nil {
		logging.Error("%v", err)
		eng.Shutdown()
		os.Exit(1)
	}

	if *serve {
		logging.Info("Ожидание сигнала завершения...")
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
	}
}

func initLogging(lc config.LoggingConfig) error {
	console, err := logging.ParseLevel(lc.ConsoleLevel)
	if err != nil {
		return err
	}
	file, err := logging.ParseLevel(lc.FileLevel)
	if err != nil {
		return err
	}
	if err := logging.InitLogger(logging.Options{Dir: lc.Dir, ConsoleLevel: console, FileLevel: file}); err != nil {
		return err
	}
	for component, lvl := range lc.Components {
		level, err := logging.ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("компонент %s: %w", component, err)
		}
		logging.GetLoggerManager().SetLogLevel(component, level, min(level, file))
	}
	return nil
}

type runOptions struct {
	seed      int64
	worldFile string
	out       string
	saveWorld string
	snapshot  string
	crater    float64
}

func run(eng *engine.Engine, cfg *config.Config, o runOptions) error {
	ctx := context.Background()

	var pose vec.Orientation
	var err error
	if o.worldFile != "" {
		pose, err = eng.LoadWorld(o.worldFile)
	} else {
		seed := o.seed
		if seed == 0 {
			seed = cfg.Engine.Seed
		}
		pose, err = eng.LoadDefaultWorld(seed)
	}
	if err != nil {
		return fmt.Errorf("мир: %w", err)
	}

	w, err := eng.World()
	if err != nil {
		return err
	}

	if o.crater > 0 {
		if err := blastCrater(eng, w, o.crater); err != nil {
			return err
		}
	}

	// смотрим на центр мира сверху под углом
	pose.Right, pose.Down, pose.Forward = vec.OrthoRotate(0, -math.Pi/5, 0, pose.Right, pose.Down, pose.Forward)
	if err := eng.SetView(pose); err != nil {
		return err
	}
	if err := eng.Render(ctx); err != nil {
		return fmt.Errorf("кадр: %w", err)
	}

	r, err := eng.Renderer()
	if err != nil {
		return err
	}
	_ = r.PrintText(4, 4, color.RGB(255, 255, 255), nil,
		fmt.Sprintf("voxworld %dx%dx%d", w.Side(), w.Side(), w.Depth()))

	f, err := os.Create(o.out)
	if err != nil {
		return fmt.Errorf("скриншот: %w", err)
	}
	if err := r.Screenshot(f); err != nil {
		f.Close()
		return fmt.Errorf("скриншот: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("скриншот: %w", err)
	}
	logging.Info("Скриншот сохранён в %s", o.out)

	if o.saveWorld != "" {
		if !strings.HasSuffix(o.saveWorld, world.SnapshotExt) {
			o.saveWorld += world.SnapshotExt
		}
		if err := eng.SaveWorld(o.saveWorld, pose); err != nil {
			return err
		}
	}
	if o.snapshot != "" {
		info, err := eng.SaveSnapshot(ctx, o.snapshot, pose)
		if err != nil {
			return err
		}
		logging.Info("Снимок %s сохранён (%d байт, id %s)", info.Name, info.Size, info.ID)
	}
	return nil
}

// blastCrater вырезает шар у поверхности в центре мира и отделяет
// оставшиеся висеть обломки
func blastCrater(eng *engine.Engine, w *world.World, radius float64) error {
	c := w.Side() / 2
	z := w.FloorZ(c, c, 0)
	if z >= w.Depth() {
		return nil
	}
	center := vec.NewI(c, c, z)
	box, err := w.SetSphere(center, radius, world.Remove())
	if err != nil {
		return fmt.Errorf("кратер: %w", err)
	}
	w.Commit(box.Expand(1))

	debris, err := eng.DetachFloating(box.Expand(2))
	if err != nil {
		return fmt.Errorf("обломки: %w", err)
	}
	for _, s := range debris {
		logging.Debug("обломок %s: %d вокселей", s.ID(), s.Model().Mass())
		if err := s.Close(); err != nil {
			return err
		}
	}
	logging.Info("Кратер радиуса %.1f в %v, обломков %d", radius, center, len(debris))
	return nil
}
