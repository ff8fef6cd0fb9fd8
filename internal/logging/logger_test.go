package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, INFO, lvl, "Пустой уровень означает INFO")

	_, err = ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "WARN", WARN.String())
}

func TestLogger_LevelsAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	require.NoError(t, InitLogger(Options{Dir: dir, ConsoleLevel: WARN, FileLevel: DEBUG, Console: &console}))
	defer CloseLogger()

	Debug("отладка %d", 1)
	Warn("предупреждение %s", "x")

	assert.NotContains(t, console.String(), "отладка", "DEBUG не попадает в консоль при WARN")
	assert.Contains(t, console.String(), "[WARN] предупреждение x")

	files, err := filepath.Glob(filepath.Join(dir, "*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1, "Должен быть создан файл логов")
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "[DEBUG] отладка 1"), "Файл получает DEBUG")
}

func TestLoggerManager_Components(t *testing.T) {
	var console bytes.Buffer
	require.NoError(t, InitLogger(Options{ConsoleLevel: INFO, Console: &console}))

	lm := NewLoggerManager()
	l := lm.MustGetLogger(ComponentWorld)
	assert.Same(t, l, lm.MustGetLogger(ComponentWorld), "Логгер компонента кэшируется")

	l.Info("CSG %s", "sphere")
	assert.Contains(t, console.String(), "[INFO] [world] CSG sphere")

	lm.SetLogLevel(ComponentWorld, ERROR, ERROR)
	l.Info("скрыто")
	assert.NotContains(t, console.String(), "скрыто")

	// уровень, заданный заранее, применяется при создании
	lm.SetLogLevel(ComponentRender, ERROR, ERROR)
	lm.MustGetLogger(ComponentRender).Warn("тоже скрыто")
	assert.NotContains(t, console.String(), "тоже скрыто")
	assert.Equal(t, []string{"render", "world"}, lm.Components())

	require.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.Components())
}
