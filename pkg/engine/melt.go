package engine

import (
	"github.com/annel0/voxworld/pkg/sprite"
	"github.com/annel0/voxworld/pkg/vec"
	"github.com/annel0/voxworld/pkg/world"
)

// track запоминает собственный спрайт до его Close; незакрытые
// освобождаются при Shutdown
func (e *Engine) track(s *sprite.OwnedSprite) {
	if s == nil {
		return
	}
	e.ownedMu.Lock()
	e.owned[s] = struct{}{}
	n := len(e.owned)
	e.ownedMu.Unlock()
	e.metrics.SetOwnedSprites(n)

	s.OnRelease(func(s *sprite.OwnedSprite) {
		e.ownedMu.Lock()
		delete(e.owned, s)
		n := len(e.owned)
		e.ownedMu.Unlock()
		e.metrics.SetOwnedSprites(n)
	})
}

// OwnedSprites число собственных спрайтов, ещё не закрытых вызывающим
func (e *Engine) OwnedSprites() int {
	e.ownedMu.Lock()
	defer e.ownedMu.Unlock()
	return len(e.owned)
}

// MeltSphere копирует шар мира в собственный спрайт
func (e *Engine) MeltSphere(center vec.IVec3, radius float64) (*sprite.OwnedSprite, int, error) {
	w, err := e.World()
	if err != nil {
		return nil, 0, err
	}
	s, mass, err := w.MeltSphere(center, radius)
	e.track(s)
	return s, mass, err
}

// MeltSpans копирует воксели под отрезками в собственный спрайт
func (e *Engine) MeltSpans(spans []world.Span, offset vec.IVec3) (*sprite.OwnedSprite, int, error) {
	w, err := e.World()
	if err != nil {
		return nil, 0, err
	}
	s, mass, err := w.MeltSpans(spans, offset)
	e.track(s)
	return s, mass, err
}

// MeltBox копирует регион мира в собственный спрайт
func (e *Engine) MeltBox(pos, size vec.IVec3) (*sprite.OwnedSprite, int, error) {
	w, err := e.World()
	if err != nil {
		return nil, 0, err
	}
	s, mass, err := w.MeltBox(pos, size)
	e.track(s)
	return s, mass, err
}

// DetachFloating ищет в регионе висящие куски не тяжелее предела массы,
// вырезает их из мира и возвращает собственными спрайтами.
// Изменённый регион фиксируется.
func (e *Engine) DetachFloating(box vec.Box) ([]*sprite.OwnedSprite, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrEngineClosed
	}
	w, limit := e.world, e.fallLimit
	e.mu.RUnlock()

	var out []*sprite.OwnedSprite
	dirty := vec.Box{}
	for _, piece := range w.FindFloating(box, limit) {
		s, changed, err := w.MeltFloating(piece, true)
		if err != nil {
			w.Commit(dirty)
			return out, err
		}
		e.track(s)
		if s != nil {
			out = append(out, s)
		}
		dirty = dirty.Union(changed)
	}
	if !dirty.Empty() {
		w.Commit(dirty)
	}
	return out, nil
}
