package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/annel0/voxworld/internal/logging"
	"github.com/annel0/voxworld/pkg/world"
	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/annel0/voxworld/internal/storage")

// ErrNotReady хранилище закрыто
var ErrNotReady = errors.New("хранилище снимков не готово")

const (
	dataPrefix = "snapshot:data:"
	metaPrefix = "snapshot:meta:"
)

// SnapshotInfo метаданные сохранённого снимка мира
type SnapshotInfo struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Side    int       `json:"side"`
	Depth   int       `json:"depth"`
	Size    int       `json:"size"`
	Created time.Time `json:"created"`
}

// SnapshotStore хранит снимки VXW1 в BadgerDB под именами
type SnapshotStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// Options параметры открытия хранилища
type Options struct {
	// InMemory хранить всё в памяти без каталога
	InMemory   bool
	SyncWrites bool
}

// NewSnapshotStore открывает хранилище снимков в каталоге dataPath/snapshots
func NewSnapshotStore(dataPath string, o Options) (*SnapshotStore, error) {
	dbPath := ""
	if !o.InMemory {
		dbPath = filepath.Join(dataPath, "snapshots")
	}
	opts := badger.DefaultOptions(dbPath).
		WithInMemory(o.InMemory).
		WithSyncWrites(o.SyncWrites)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	logging.GetStorageLogger().Info("хранилище снимков открыто: %q (in-memory=%v)", dbPath, o.InMemory)

	return &SnapshotStore{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Close закрывает хранилище; повторный вызов безопасен
func (s *SnapshotStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}

	s.isReady = false
	return s.db.Close()
}

func validName(name string) error {
	if name == "" || len(name) > 255 {
		return fmt.Errorf("недопустимое имя снимка %q", name)
	}
	return nil
}

// Save сохраняет байты снимка под именем, заменяя прежний снимок с тем же именем
func (s *SnapshotStore) Save(ctx context.Context, name string, side, depth int, data []byte) (SnapshotInfo, error) {
	ctx, span := tracer.Start(ctx, "storage.Save")
	defer span.End()
	span.SetAttributes(attribute.String("name", name), attribute.Int("bytes", len(data)))

	if err := validName(name); err != nil {
		return SnapshotInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return SnapshotInfo{}, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return SnapshotInfo{}, ErrNotReady
	}

	info := SnapshotInfo{
		ID:      uuid.New(),
		Name:    name,
		Side:    side,
		Depth:   depth,
		Size:    len(data),
		Created: time.Now().UTC(),
	}
	meta, err := json.Marshal(info)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dataPrefix+name), data); err != nil {
			return err
		}
		return txn.Set([]byte(metaPrefix+name), meta)
	})
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return info, nil
}

// Load возвращает байты и метаданные снимка; отсутствующее имя даёт world.ErrNotFound
func (s *SnapshotStore) Load(ctx context.Context, name string) ([]byte, SnapshotInfo, error) {
	ctx, span := tracer.Start(ctx, "storage.Load")
	defer span.End()
	span.SetAttributes(attribute.String("name", name))

	if err := ctx.Err(); err != nil {
		return nil, SnapshotInfo{}, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return nil, SnapshotInfo{}, ErrNotReady
	}

	var data []byte
	var info SnapshotInfo
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dataPrefix + name))
		if err != nil {
			return err
		}
		if data, err = item.ValueCopy(nil); err != nil {
			return err
		}
		item, err = txn.Get([]byte(metaPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &info)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, SnapshotInfo{}, fmt.Errorf("%w: снимок %q", world.ErrNotFound, name)
	}
	if err != nil {
		return nil, SnapshotInfo{}, fmt.Errorf("ошибка загрузки снимка %q: %w", name, err)
	}
	return data, info, nil
}

// List возвращает метаданные всех снимков, отсортированные по имени
func (s *SnapshotStore) List(ctx context.Context) ([]SnapshotInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return nil, ErrNotReady
	}

	var result []SnapshotInfo
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(metaPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var info SnapshotInfo
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &info)
			})
			if err != nil {
				return fmt.Errorf("метаданные %s: %w", it.Item().Key(), err)
			}
			result = append(result, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete удаляет снимок; отсутствующее имя даёт world.ErrNotFound
func (s *SnapshotStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrNotReady
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(metaPrefix + name)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(dataPrefix + name)); err != nil {
			return err
		}
		return txn.Delete([]byte(metaPrefix + name))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: снимок %q", world.ErrNotFound, name)
	}
	return err
}
