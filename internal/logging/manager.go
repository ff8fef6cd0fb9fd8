package logging

import (
	"fmt"
	"sort"
	"sync"
)

// Имена компонентов движка
const (
	ComponentEngine   = "engine"
	ComponentWorld    = "world"
	ComponentRender   = "render"
	ComponentStorage  = "storage"
	ComponentResource = "resource"
)

type levels struct {
	console, file LogLevel
}

// LoggerManager хранит логгеры компонентов и переопределения их уровней.
// Уровень можно задать до первого обращения к компоненту.
type LoggerManager struct {
	mu        sync.Mutex
	loggers   map[string]*Logger
	overrides map[string]levels
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// NewLoggerManager создаёт пустой менеджер
func NewLoggerManager() *LoggerManager {
	return &LoggerManager{
		loggers:   make(map[string]*Logger),
		overrides: make(map[string]levels),
	}
}

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() { globalManager = NewLoggerManager() })
	return globalManager
}

// GetLogger возвращает логгер компонента, создавая его при первом обращении
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if l, ok := lm.loggers[component]; ok {
		return l, nil
	}
	l, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("логгер %s: %w", component, err)
	}
	if lv, ok := lm.overrides[component]; ok {
		l.minConsoleLevel, l.minFileLevel = lv.console, lv.file
	}
	lm.loggers[component] = l
	return l, nil
}

// MustGetLogger как GetLogger, но при ошибке (например, недоступен каталог
// логов) отдаёт логгер только в консоль
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	l, err := lm.GetLogger(component)
	if err == nil {
		return l
	}
	defaultLogger.Warn("%v; компонент %s пишет только в консоль", err, component)
	return &Logger{
		component:       component,
		consoleLogger:   defaultLogger.consoleLogger,
		minConsoleLevel: INFO,
		minFileLevel:    ERROR,
	}
}

// SetLogLevel задаёт уровни компонента. Уже созданный логгер меняется сразу,
// ещё не созданный получит их при GetLogger.
func (lm *LoggerManager) SetLogLevel(component string, console, file LogLevel) {
	lm.mu.Lock()
	lm.overrides[component] = levels{console: console, file: file}
	l := lm.loggers[component]
	lm.mu.Unlock()

	if l != nil {
		l.mu.Lock()
		l.minConsoleLevel, l.minFileLevel = console, file
		l.mu.Unlock()
	}
}

// Components перечисляет созданные логгеры по имени
func (lm *LoggerManager) Components() []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	out := make([]string, 0, len(lm.loggers))
	for c := range lm.loggers {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CloseAll закрывает файлы всех логгеров; переопределения уровней сохраняются
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var firstErr error
	for c, l := range lm.loggers {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("логгер %s: %w", c, err)
		}
	}
	clear(lm.loggers)
	return firstErr
}

// GetComponentLogger логгер компонента из глобального менеджера
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetEngineLogger() *Logger   { return GetComponentLogger(ComponentEngine) }
func GetWorldLogger() *Logger    { return GetComponentLogger(ComponentWorld) }
func GetRenderLogger() *Logger   { return GetComponentLogger(ComponentRender) }
func GetStorageLogger() *Logger  { return GetComponentLogger(ComponentStorage) }
func GetResourceLogger() *Logger { return GetComponentLogger(ComponentResource) }
