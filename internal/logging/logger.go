package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из строки конфигурации
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("неизвестный уровень логирования %q", s)
	}
}

// Options параметры системы логирования
type Options struct {
	// Dir каталог для файлов логов; пустая строка отключает запись в файл
	Dir          string
	ConsoleLevel LogLevel
	FileLevel    LogLevel
	// Console куда писать консольный вывод; по умолчанию os.Stdout
	Console io.Writer
}

// Logger представляет систему логирования компонента
type Logger struct {
	mu              sync.Mutex
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
}

var (
	optsMu  sync.RWMutex
	options = Options{ConsoleLevel: WARN, FileLevel: DEBUG, Console: os.Stderr}

	// defaultLogger используется пакетными функциями; до InitLogger пишет WARN и выше в stderr
	defaultLogger = &Logger{
		consoleLogger:   log.New(os.Stderr, "", log.LstdFlags),
		minConsoleLevel: WARN,
		minFileLevel:    ERROR,
	}
)

// InitLogger инициализирует систему логирования
func InitLogger(opts Options) error {
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	optsMu.Lock()
	options = opts
	optsMu.Unlock()

	logger, err := NewLogger("")
	if err != nil {
		return err
	}
	old := defaultLogger
	defaultLogger = logger
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// NewLogger создаёт логгер компонента с текущими глобальными параметрами
func NewLogger(component string) (*Logger, error) {
	optsMu.RLock()
	opts := options
	optsMu.RUnlock()

	l := &Logger{
		component:       component,
		consoleLogger:   log.New(opts.Console, "", log.LstdFlags),
		minConsoleLevel: opts.ConsoleLevel,
		minFileLevel:    opts.FileLevel,
	}
	if opts.Dir == "" {
		return l, nil
	}

	// Создаем директорию для логов
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", opts.Dir, err)
	}

	name := component
	if name == "" {
		name = "voxworld"
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(opts.Dir, fmt.Sprintf("%s_%s.log", name, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}
	l.file = file
	l.fileLogger = log.New(file, "", log.LstdFlags)
	return l, nil
}

// Close закрывает файл логов
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.fileLogger = nil
	return err
}

// CloseLogger закрывает логгер по умолчанию
func CloseLogger() {
	if defaultLogger != nil {
		_ = defaultLogger.Close()
	}
}

func (l *Logger) Trace(format string, args ...interface{}) { l.logMessage(TRACE, format, args...) }

func (l *Logger) Debug(format string, args ...interface{}) { l.logMessage(DEBUG, format, args...) }

func (l *Logger) Info(format string, args ...interface{}) { l.logMessage(INFO, format, args...) }

func (l *Logger) Warn(format string, args ...interface{}) { l.logMessage(WARN, format, args...) }

func (l *Logger) Error(format string, args ...interface{}) { l.logMessage(ERROR, format, args...) }

// logMessage внутренняя функция для логирования
func (l *Logger) logMessage(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.minConsoleLevel && (l.fileLogger == nil || level < l.minFileLevel) {
		return
	}

	message := fmt.Sprintf(format, args...)
	if l.component != "" {
		message = fmt.Sprintf("[%s] [%s] %s", level.String(), l.component, message)
	} else {
		message = fmt.Sprintf("[%s] %s", level.String(), message)
	}

	if l.fileLogger != nil && level >= l.minFileLevel {
		l.fileLogger.Println(message)
	}
	if level >= l.minConsoleLevel {
		l.consoleLogger.Println(message)
	}
}

// Trace логирует сообщение уровня TRACE
func Trace(format string, args ...interface{}) {
	defaultLogger.logMessage(TRACE, format, args...)
}

// Debug логирует сообщение уровня DEBUG
func Debug(format string, args ...interface{}) {
	defaultLogger.logMessage(DEBUG, format, args...)
}

// Info логирует сообщение уровня INFO
func Info(format string, args ...interface{}) {
	defaultLogger.logMessage(INFO, format, args...)
}

// Warn логирует сообщение уровня WARN
func Warn(format string, args ...interface{}) {
	defaultLogger.logMessage(WARN, format, args...)
}

// Error логирует сообщение уровня ERROR
func Error(format string, args ...interface{}) {
	defaultLogger.logMessage(ERROR, format, args...)
}
