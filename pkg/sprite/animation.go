package sprite

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// AnimationExt расширение манифеста анимации
const AnimationExt = ".vxa"

// ErrBadAnimation манифест анимации некорректен
var ErrBadAnimation = errors.New("неверная анимация")

// SeqEntry шаг последовательности анимации.
// Обычный шаг показывает кадр Frame в течение DurationMS (0 = бесконечно).
// Маркер Stop останавливает анимацию на последнем показанном кадре,
// маркер Loop переходит к шагу с индексом *Loop.
type SeqEntry struct {
	Frame      int  `yaml:"frame"`
	DurationMS int  `yaml:"ms"`
	Loop       *int `yaml:"loop,omitempty"`
	Stop       bool `yaml:"stop,omitempty"`
}

// IsMarker проверяет, что шаг является маркером, а не кадром
func (e SeqEntry) IsMarker() bool {
	return e.Stop || e.Loop != nil
}

// Animation набор кадров и последовательность их показа
type Animation struct {
	Name     string
	Frames   []*Model
	Sequence []SeqEntry
}

// animManifest YAML-представление файла .vxa
type animManifest struct {
	Name     string     `yaml:"name"`
	Frames   []string   `yaml:"frames"`
	Sequence []SeqEntry `yaml:"sequence"`
}

// NewAnimation проверяет последовательность и создаёт анимацию
func NewAnimation(name string, frames []*Model, seq []SeqEntry) (*Animation, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: %s без кадров", ErrBadAnimation, name)
	}
	if len(seq) == 0 {
		seq = make([]SeqEntry, len(frames))
		for i := range frames {
			seq[i] = SeqEntry{Frame: i}
		}
	}
	hasFrame := false
	for i, e := range seq {
		switch {
		case e.Stop && e.Loop != nil:
			return nil, fmt.Errorf("%w: шаг %d одновременно stop и loop", ErrBadAnimation, i)
		case e.Loop != nil:
			to := *e.Loop
			if to < 0 || to >= len(seq) || seq[to].IsMarker() {
				return nil, fmt.Errorf("%w: шаг %d ссылается на %d", ErrBadAnimation, i, to)
			}
		case e.Stop:
		default:
			if e.Frame < 0 || e.Frame >= len(frames) || frames[e.Frame] == nil {
				return nil, fmt.Errorf("%w: шаг %d показывает несуществующий кадр %d", ErrBadAnimation, i, e.Frame)
			}
			if e.DurationMS < 0 {
				return nil, fmt.Errorf("%w: отрицательная длительность шага %d", ErrBadAnimation, i)
			}
			hasFrame = true
		}
	}
	if !hasFrame || seq[0].IsMarker() {
		return nil, fmt.Errorf("%w: последовательность должна начинаться с кадра", ErrBadAnimation)
	}
	return &Animation{Name: name, Frames: frames, Sequence: seq}, nil
}

// DecodeAnimation читает манифест .vxa. Кадры загружаются через load по имени файла.
func DecodeAnimation(r io.Reader, load func(name string) (*Model, error)) (*Animation, error) {
	var m animManifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAnimation, err)
	}
	frames := make([]*Model, len(m.Frames))
	for i, name := range m.Frames {
		model, err := load(name)
		if err != nil {
			return nil, fmt.Errorf("кадр %s анимации %s: %w", name, m.Name, err)
		}
		frames[i] = model
	}
	return NewAnimation(m.Name, frames, m.Sequence)
}

// animState текущее положение в последовательности
type animState struct {
	step    int
	elapsed int
	frame   int
	stopped bool
}

// advance продвигает анимацию на deltaMS миллисекунд
func (a *Animation) advance(st *animState, deltaMS int) {
	if st.stopped || deltaMS <= 0 {
		return
	}
	st.elapsed += deltaMS
	// защита от циклов из одних маркеров и шагов нулевой длины
	for guard := 0; guard <= 2*len(a.Sequence)+2; guard++ {
		e := a.Sequence[st.step]
		switch {
		case e.Stop:
			st.stopped = true
			st.elapsed = 0
			return
		case e.Loop != nil:
			st.step = *e.Loop
			continue
		}
		st.frame = e.Frame
		if e.DurationMS == 0 || st.elapsed < e.DurationMS {
			return
		}
		st.elapsed -= e.DurationMS
		if st.step+1 >= len(a.Sequence) {
			st.stopped = true
			st.elapsed = 0
			return
		}
		st.step++
	}
}

func (a *Animation) start() animState {
	return animState{frame: a.Sequence[0].Frame}
}
