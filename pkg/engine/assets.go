package engine

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path"
	"strings"

	"github.com/annel0/voxworld/pkg/sprite"
	"github.com/annel0/voxworld/pkg/vec"
)

// checkOpen возвращает ErrEngineClosed после Shutdown
func (e *Engine) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}
	return nil
}

// AddArchive кладёт zip-архив на вершину стека поиска ресурсов
func (e *Engine) AddArchive(p string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.locator.AddArchive(p)
}

// ResetArchives закрывает все архивы. Уже загруженные модели остаются в кэше.
func (e *Engine) ResetArchives() error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.locator.ResetArchives()
}

// FindFiles перечисляет ресурсы по шаблону из архивов и каталогов
func (e *Engine) FindFiles(pattern string) ([]string, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return e.locator.FindFiles(pattern)
}

// LoadSprite создаёт заимствованный спрайт по имени файла модели (.vxm)
// или анимации (.vxa). Модели кэшируются по имени: спрайты с одним именем
// разделяют данные до завершения движка.
func (e *Engine) LoadSprite(name string) (*sprite.BorrowedSprite, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	pose := vec.AxisAligned(vec.Vec3{})

	if strings.EqualFold(path.Ext(name), sprite.AnimationExt) {
		anim, err := e.loadAnimation(name)
		if err != nil {
			return nil, err
		}
		return sprite.NewBorrowedAnimated(anim, pose), nil
	}
	model, err := e.loadModel(name)
	if err != nil {
		return nil, err
	}
	return sprite.NewBorrowed(model, pose), nil
}

func (e *Engine) loadModel(name string) (*sprite.Model, error) {
	e.assetsMu.Lock()
	defer e.assetsMu.Unlock()
	return e.loadModelLocked(name)
}

func (e *Engine) loadModelLocked(name string) (*sprite.Model, error) {
	if m, ok := e.models[name]; ok {
		return m, nil
	}
	data, err := e.locator.ReadFile(name)
	if err != nil {
		return nil, err
	}
	m, err := sprite.DecodeModel(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("модель %s: %w", name, err)
	}
	e.models[name] = m
	e.log.Debug("модель %s загружена: %d вокселей", name, m.Mass())
	return m, nil
}

func (e *Engine) loadAnimation(name string) (*sprite.Animation, error) {
	e.assetsMu.Lock()
	defer e.assetsMu.Unlock()

	if a, ok := e.anims[name]; ok {
		return a, nil
	}
	data, err := e.locator.ReadFile(name)
	if err != nil {
		return nil, err
	}
	// кадры ищутся относительно каталога манифеста
	dir := path.Dir(strings.ReplaceAll(name, "\\", "/"))
	a, err := sprite.DecodeAnimation(bytes.NewReader(data), func(frame string) (*sprite.Model, error) {
		if dir != "." && !path.IsAbs(frame) {
			frame = path.Join(dir, frame)
		}
		return e.loadModelLocked(frame)
	})
	if err != nil {
		return nil, fmt.Errorf("анимация %s: %w", name, err)
	}
	e.anims[name] = a
	return a, nil
}

// LoadImage читает изображение из ресурсов
func (e *Engine) LoadImage(name string) (*image.RGBA, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return e.locator.LoadImage(name)
}

// LoadSky загружает фоновое изображение неба (равнопромежуточная проекция)
func (e *Engine) LoadSky(name string) error {
	img, err := e.LoadImage(name)
	if err != nil {
		return err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.renderer.SetSky(img)
	return nil
}

// SaveModel записывает модель в файл .vxm
func (e *Engine) SaveModel(p string, m *sprite.Model) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := sprite.EncodeModel(&buf, m); err != nil {
		return err
	}
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("запись модели %s: %w", p, err)
	}
	return nil
}
