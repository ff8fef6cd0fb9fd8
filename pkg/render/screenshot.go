package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/annel0/voxworld/pkg/vec"
)

// Screenshot кодирует привязанный буфер в PNG
func (r *Renderer) Screenshot(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fb == nil {
		return ErrNoFramebuffer
	}
	if err := png.Encode(w, r.fb.RGBA()); err != nil {
		return fmt.Errorf("кодирование снимка экрана: %w", err)
	}
	return nil
}

// surroundDirs направления граней куба в порядке vec.FaceOffsets
var surroundDirs = [6]struct{ forward, down vec.Vec3 }{
	{vec.New(-1, 0, 0), vec.New(0, 0, 1)},
	{vec.New(1, 0, 0), vec.New(0, 0, 1)},
	{vec.New(0, -1, 0), vec.New(0, 0, 1)},
	{vec.New(0, 1, 0), vec.New(0, 0, 1)},
	{vec.New(0, 0, -1), vec.New(0, 1, 0)},
	{vec.New(0, 0, 1), vec.New(0, -1, 0)},
}

// SurroundCapture рисует шесть квадратных видов по 90 градусов из точки pos,
// по одному на грань куба. Привязанный буфер и камера не меняются.
func (r *Renderer) SurroundCapture(pos vec.Vec3, size int) ([6]*image.RGBA, error) {
	var out [6]*image.RGBA
	ctx, span := tracer.Start(context.Background(), "render.SurroundCapture")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	savedFB, savedCam := r.fb, r.cam
	defer func() { r.fb, r.cam = savedFB, savedCam }()

	for i, d := range surroundDirs {
		fb, err := NewFramebuffer(size, size)
		if err != nil {
			return out, err
		}
		pose := vec.Orientation{Pos: pos, Right: d.down.Cross(d.forward), Down: d.down, Forward: d.forward}
		r.fb = fb
		r.cam = CameraFor(fb, pose, 1)
		if err := r.castLocked(ctx, span); err != nil {
			return out, fmt.Errorf("грань %d: %w", i, err)
		}
		out[i] = fb.RGBA()
	}
	return out, nil
}
