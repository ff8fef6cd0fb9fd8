// Package render рисует воксельный мир и спрайты в буфер кадра
// методом бросания лучей и предоставляет вспомогательные примитивы.
package render

import (
	"errors"
	"fmt"
	"image"
	stdcolor "image/color"
	"math"

	"github.com/annel0/voxworld/pkg/color"
)

// ErrNoFramebuffer рисование без привязанного буфера кадра
var ErrNoFramebuffer = errors.New("буфер кадра не привязан")

// ErrBadFramebuffer некорректные размеры или шаг буфера
var ErrBadFramebuffer = errors.New("некорректный буфер кадра")

// Framebuffer буфер кадра RGBA по 4 байта на пиксель с буфером глубины.
// Память может принадлежать буферу (NewFramebuffer) или хосту (WrapFramebuffer).
type Framebuffer struct {
	Pix    []byte
	Width  int
	Height int
	Pitch  int

	depth []float32
}

// NewFramebuffer создаёт буфер с собственной памятью
func NewFramebuffer(width, height int) (*Framebuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: размер %dx%d", ErrBadFramebuffer, width, height)
	}
	return WrapFramebuffer(make([]byte, width*height*4), width, height, width*4)
}

// WrapFramebuffer оборачивает память хоста. Шаг строки должен быть не меньше 4*width.
func WrapFramebuffer(pix []byte, width, height, pitch int) (*Framebuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: размер %dx%d", ErrBadFramebuffer, width, height)
	}
	if pitch < width*4 {
		return nil, fmt.Errorf("%w: шаг %d меньше %d", ErrBadFramebuffer, pitch, width*4)
	}
	if need := pitch*(height-1) + width*4; len(pix) < need {
		return nil, fmt.Errorf("%w: %d байт при необходимых %d", ErrBadFramebuffer, len(pix), need)
	}
	fb := &Framebuffer{Pix: pix, Width: width, Height: height, Pitch: pitch}
	fb.depth = make([]float32, width*height)
	fb.ClearDepth()
	return fb, nil
}

// FromRGBA использует пиксели изображения без копирования
func FromRGBA(img *image.RGBA) (*Framebuffer, error) {
	b := img.Bounds()
	return WrapFramebuffer(img.Pix[img.PixOffset(b.Min.X, b.Min.Y):], b.Dx(), b.Dy(), img.Stride)
}

// RGBA возвращает изображение поверх памяти буфера
func (fb *Framebuffer) RGBA() *image.RGBA {
	return &image.RGBA{Pix: fb.Pix, Stride: fb.Pitch, Rect: image.Rect(0, 0, fb.Width, fb.Height)}
}

func (fb *Framebuffer) ColorModel() stdcolor.Model { return stdcolor.RGBAModel }

func (fb *Framebuffer) Bounds() image.Rectangle { return image.Rect(0, 0, fb.Width, fb.Height) }

func (fb *Framebuffer) At(x, y int) stdcolor.Color {
	c, _ := fb.Pixel(x, y)
	return stdcolor.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

func (fb *Framebuffer) Set(x, y int, c stdcolor.Color) {
	fb.SetPixel(x, y, color.FromStd(c))
}

func (fb *Framebuffer) in(x, y int) bool {
	return x >= 0 && y >= 0 && x < fb.Width && y < fb.Height
}

// Pixel возвращает цвет пикселя; вне буфера false
func (fb *Framebuffer) Pixel(x, y int) (color.Color, bool) {
	if !fb.in(x, y) {
		return color.Color{}, false
	}
	i := y*fb.Pitch + x*4
	p := fb.Pix[i : i+4 : i+4]
	return color.RGBA(p[0], p[1], p[2], p[3]), true
}

// SetPixel записывает пиксель; вне буфера игнорируется
func (fb *Framebuffer) SetPixel(x, y int, c color.Color) {
	if !fb.in(x, y) {
		return
	}
	i := y*fb.Pitch + x*4
	p := fb.Pix[i : i+4 : i+4]
	p[0], p[1], p[2], p[3] = c.R, c.G, c.B, 255
}

// Depth возвращает глубину пикселя; +Inf для неба и пустых пикселей
func (fb *Framebuffer) Depth(x, y int) float64 {
	if !fb.in(x, y) {
		return math.Inf(1)
	}
	return float64(fb.depth[y*fb.Width+x])
}

// plot пишет пиксель с проверкой глубины
func (fb *Framebuffer) plot(x, y int, depth float64, c color.Color) bool {
	if !fb.in(x, y) {
		return false
	}
	i := y*fb.Width + x
	if float32(depth) >= fb.depth[i] {
		return false
	}
	fb.depth[i] = float32(depth)
	fb.SetPixel(x, y, c)
	return true
}

func (fb *Framebuffer) setDepth(x, y int, depth float64) {
	if fb.in(x, y) {
		fb.depth[y*fb.Width+x] = float32(depth)
	}
}

// Clear заливает буфер цветом и сбрасывает глубину
func (fb *Framebuffer) Clear(c color.Color) {
	for y := 0; y < fb.Height; y++ {
		row := fb.Pix[y*fb.Pitch : y*fb.Pitch+fb.Width*4]
		for i := 0; i < len(row); i += 4 {
			row[i], row[i+1], row[i+2], row[i+3] = c.R, c.G, c.B, 255
		}
	}
	fb.ClearDepth()
}

// ClearDepth сбрасывает буфер глубины в +Inf
func (fb *Framebuffer) ClearDepth() {
	inf := float32(math.Inf(1))
	for i := range fb.depth {
		fb.depth[i] = inf
	}
}
