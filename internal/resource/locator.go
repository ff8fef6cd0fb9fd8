// Package resource ищет файлы ресурсов в локальных каталогах и стеке
// zip-архивов, кэширует прочитанные байты и декодирует изображения.
package resource

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/annel0/voxworld/internal/logging"
	"github.com/annel0/voxworld/pkg/world"
	"github.com/dgraph-io/ristretto"
	"github.com/klauspost/compress/zip"
)

// Stats получает попадания и промахи кэша
type Stats interface {
	AssetHit()
	AssetMiss()
}

type noStats struct{}

func (noStats) AssetHit()  {}
func (noStats) AssetMiss() {}

type archive struct {
	path  string
	rc    *zip.ReadCloser
	files map[string]*zip.File // ключ: имя в нижнем регистре
}

// Locator ищет ресурс сначала в архивах (последний добавленный первым),
// затем в каталогах в порядке добавления, затем по пути как есть.
type Locator struct {
	mu       sync.RWMutex
	dirs     []string
	archives []*archive
	cache    *ristretto.Cache
	stats    Stats
}

// NewLocator создаёт локатор с кэшем на cacheBytes байт; 0 отключает кэш
func NewLocator(dirs []string, cacheBytes int64) (*Locator, error) {
	l := &Locator{dirs: append([]string(nil), dirs...), stats: noStats{}}
	if cacheBytes > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e4,
			MaxCost:     cacheBytes,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("кэш ресурсов: %w", err)
		}
		l.cache = cache
	}
	return l, nil
}

// SetStats подключает счётчики кэша
func (l *Locator) SetStats(s Stats) {
	if s == nil {
		s = noStats{}
	}
	l.mu.Lock()
	l.stats = s
	l.mu.Unlock()
}

// AddDir добавляет каталог поиска в конец списка
func (l *Locator) AddDir(dir string) {
	l.mu.Lock()
	l.dirs = append(l.dirs, dir)
	l.mu.Unlock()
}

// AddArchive открывает zip-архив и кладёт его на вершину стека поиска
func (l *Locator) AddArchive(p string) error {
	rc, err := zip.OpenReader(p)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: архив %s", world.ErrNotFound, p)
		}
		return fmt.Errorf("открытие архива %s: %w", p, err)
	}
	a := &archive{path: p, rc: rc, files: make(map[string]*zip.File, len(rc.File))}
	for _, f := range rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		a.files[strings.ToLower(f.Name)] = f
	}

	l.mu.Lock()
	l.archives = append(l.archives, a)
	l.mu.Unlock()
	l.clearCache()
	logging.GetResourceLogger().Info("архив %s добавлен (%d файлов)", p, len(a.files))
	return nil
}

// ResetArchives закрывает все архивы
func (l *Locator) ResetArchives() error {
	l.mu.Lock()
	archives := l.archives
	l.archives = nil
	l.mu.Unlock()
	l.clearCache()

	var first error
	for _, a := range archives {
		if err := a.rc.Close(); err != nil && first == nil {
			first = fmt.Errorf("закрытие архива %s: %w", a.path, err)
		}
	}
	return first
}

func (l *Locator) clearCache() {
	if l.cache != nil {
		l.cache.Clear()
	}
}

// Close закрывает архивы и кэш
func (l *Locator) Close() error {
	err := l.ResetArchives()
	if l.cache != nil {
		l.cache.Close()
	}
	return err
}

func archiveKey(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.ToSlash(name), "/"))
}

// ReadFile возвращает содержимое ресурса. Отсутствующий ресурс даёт world.ErrNotFound.
func (l *Locator) ReadFile(name string) ([]byte, error) {
	l.mu.RLock()
	stats := l.stats
	l.mu.RUnlock()

	if l.cache != nil {
		if v, ok := l.cache.Get(name); ok {
			stats.AssetHit()
			return v.([]byte), nil
		}
	}
	stats.AssetMiss()

	data, err := l.read(name)
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		l.cache.Set(name, data, int64(len(data)))
		l.cache.Wait()
	}
	return data, nil
}

func (l *Locator) read(name string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	key := archiveKey(name)
	for i := len(l.archives) - 1; i >= 0; i-- {
		f, ok := l.archives[i].files[key]
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%s в архиве %s: %w", name, l.archives[i].path, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%s в архиве %s: %w", name, l.archives[i].path, err)
		}
		return data, nil
	}

	if !filepath.IsAbs(name) {
		for _, dir := range l.dirs {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err == nil {
				return data, nil
			}
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}
	data, err := os.ReadFile(name)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: ресурс %s", world.ErrNotFound, name)
	}
	return data, err
}

// FindFiles возвращает имена ресурсов, подходящих под шаблон (синтаксис path.Match),
// из архивов и каталогов без повторов, по алфавиту
func (l *Locator) FindFiles(pattern string) ([]string, error) {
	pattern = filepath.ToSlash(pattern)
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("шаблон %q: %w", pattern, err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[strings.ToLower(name)] {
			seen[strings.ToLower(name)] = true
			out = append(out, name)
		}
	}
	lower := strings.ToLower(pattern)
	for _, a := range l.archives {
		for _, f := range a.rc.File {
			if ok, _ := path.Match(lower, strings.ToLower(f.Name)); ok && !f.FileInfo().IsDir() {
				add(f.Name)
			}
		}
	}
	for _, dir := range l.dirs {
		matches, err := filepath.Glob(filepath.Join(dir, filepath.FromSlash(pattern)))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			rel, err := filepath.Rel(dir, m)
			if err != nil {
				continue
			}
			add(filepath.ToSlash(rel))
		}
	}
	sort.Strings(out)
	return out, nil
}
