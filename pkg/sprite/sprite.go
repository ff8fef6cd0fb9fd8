package sprite

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/annel0/voxworld/pkg/vec"
)

// ErrReleased повторное освобождение собственного спрайта
var ErrReleased = errors.New("спрайт уже освобождён")

// Sprite размещённый в мире воксельный объект
type Sprite interface {
	ID() uuid.UUID
	Pose() vec.Orientation
	SetPose(p vec.Orientation)
	Translate(d vec.Vec3)
	Rotate(axis vec.Vec3, angle float64)
	Scale(s vec.Vec3)
	SetScale(s vec.Vec3)
	// Model возвращает текущий кадр; nil после освобождения
	Model() *Model
	AdvanceAnimation(deltaMS int)
}

// base общая часть обоих видов спрайтов
type base struct {
	mu    sync.RWMutex
	id    uuid.UUID
	pose  vec.Orientation
	model *Model
	anim  *Animation
	state animState
}

func (b *base) init(m *Model, anim *Animation, pose vec.Orientation) {
	b.id = uuid.New()
	b.pose = pose
	b.model = m
	b.anim = anim
	if anim != nil {
		b.state = anim.start()
	}
}

func (b *base) ID() uuid.UUID { return b.id }

func (b *base) Pose() vec.Orientation {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pose
}

func (b *base) SetPose(p vec.Orientation) {
	b.mu.Lock()
	b.pose = p
	b.mu.Unlock()
}

// Translate сдвигает позицию спрайта
func (b *base) Translate(d vec.Vec3) {
	b.mu.Lock()
	b.pose.Pos = b.pose.Pos.Add(d)
	b.mu.Unlock()
}

// Rotate поворачивает базис спрайта вокруг оси
func (b *base) Rotate(axis vec.Vec3, angle float64) {
	b.mu.Lock()
	b.pose = b.pose.Rotate(axis, angle)
	b.mu.Unlock()
}

// Scale умножает векторы базиса на покомпонентный масштаб
func (b *base) Scale(s vec.Vec3) {
	b.mu.Lock()
	b.pose.Right = b.pose.Right.Mul(s.X)
	b.pose.Down = b.pose.Down.Mul(s.Y)
	b.pose.Forward = b.pose.Forward.Mul(s.Z)
	b.mu.Unlock()
}

// SetScale задаёт абсолютный масштаб, сохраняя направления базиса
func (b *base) SetScale(s vec.Vec3) {
	b.mu.Lock()
	b.pose.Right = b.pose.Right.Normalized().Mul(s.X)
	b.pose.Down = b.pose.Down.Normalized().Mul(s.Y)
	b.pose.Forward = b.pose.Forward.Normalized().Mul(s.Z)
	b.mu.Unlock()
}

func (b *base) Model() *Model {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.anim != nil {
		return b.anim.Frames[b.state.frame]
	}
	return b.model
}

// AdvanceAnimation продвигает анимацию; для статичных спрайтов ничего не делает
func (b *base) AdvanceAnimation(deltaMS int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.anim != nil {
		b.anim.advance(&b.state, deltaMS)
	}
}

// Animation возвращает анимацию спрайта или nil
func (b *base) Animation() *Animation {
	return b.anim
}

// AnimationStopped сообщает, что анимация дошла до маркера остановки
func (b *base) AnimationStopped() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.stopped
}

// OwnedSprite спрайт, чьи воксельные данные принадлежат вызывающему коду
// (результат плавления мира). Данные освобождаются ровно один раз через Close.
type OwnedSprite struct {
	base
	released  bool
	onRelease func(*OwnedSprite)
}

// NewOwned создаёт собственный спрайт поверх модели
func NewOwned(m *Model, pose vec.Orientation) *OwnedSprite {
	s := &OwnedSprite{}
	s.init(m, nil, pose)
	return s
}

// OnRelease регистрирует обработчик, вызываемый при освобождении
func (s *OwnedSprite) OnRelease(fn func(*OwnedSprite)) {
	s.mu.Lock()
	s.onRelease = fn
	s.mu.Unlock()
}

// Close освобождает воксельные данные. Повторный вызов возвращает ErrReleased.
func (s *OwnedSprite) Close() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return ErrReleased
	}
	s.released = true
	s.model = nil
	hook := s.onRelease
	s.mu.Unlock()

	if hook != nil {
		hook(s)
	}
	return nil
}

// Released сообщает, что данные уже освобождены
func (s *OwnedSprite) Released() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.released
}

// BorrowedSprite спрайт поверх модели из кэша движка. Модель разделяется
// всеми спрайтами с тем же именем и живёт до завершения движка,
// поэтому у заимствованного спрайта нет метода освобождения.
type BorrowedSprite struct {
	base
}

// NewBorrowed создаёт заимствованный спрайт поверх общей модели
func NewBorrowed(m *Model, pose vec.Orientation) *BorrowedSprite {
	s := &BorrowedSprite{}
	s.init(m, nil, pose)
	return s
}

// NewBorrowedAnimated создаёт заимствованный анимированный спрайт
func NewBorrowedAnimated(a *Animation, pose vec.Orientation) *BorrowedSprite {
	s := &BorrowedSprite{}
	s.init(nil, a, pose)
	return s
}

var (
	_ Sprite = (*OwnedSprite)(nil)
	_ Sprite = (*BorrowedSprite)(nil)
)
