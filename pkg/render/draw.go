package render

import (
	"image"
	stdcolor "image/color"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/sprite"
	"github.com/annel0/voxworld/pkg/vec"
)

// Вспомогательные примитивы рисуют прямо в привязанный буфер поверх
// результата Cast. 3D-варианты учитывают буфер глубины.

// DrawPoint2D рисует пиксель
func (r *Renderer) DrawPoint2D(x, y int, c color.Color) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fb == nil {
		return ErrNoFramebuffer
	}
	r.fb.SetPixel(x, y, c)
	return nil
}

// DrawPoint3D рисует точку мира с проверкой глубины
func (r *Renderer) DrawPoint3D(p vec.Vec3, c color.Color) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fb == nil {
		return ErrNoFramebuffer
	}
	if sx, sy, depth, ok := r.project(p); ok {
		r.fb.plot(int(sx), int(sy), depth, c)
	}
	return nil
}

// DrawLine2D рисует отрезок алгоритмом Брезенхэма
func (r *Renderer) DrawLine2D(x0, y0, x1, y1 int, c color.Color) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fb == nil {
		return ErrNoFramebuffer
	}
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	e := dx + dy
	for {
		r.fb.SetPixel(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return nil
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// DrawLine3D рисует отрезок мира с проверкой глубины; части позади камеры отбрасываются
func (r *Renderer) DrawLine3D(p0, p1 vec.Vec3, c color.Color) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fb == nil {
		return ErrNoFramebuffer
	}
	n := 256
	x0, y0, _, ok0 := r.cam.Project(p0)
	x1, y1, _, ok1 := r.cam.Project(p1)
	if ok0 && ok1 {
		n = max(1, int(math.Ceil(math.Hypot(x1-x0, y1-y0)*2)))
	}
	for i := 0; i <= n; i++ {
		p := p0.Lerp(p1, float64(i)/float64(n))
		if sx, sy, depth, ok := r.project(p); ok {
			r.fb.plot(int(sx), int(sy), depth, c)
		}
	}
	return nil
}

// DrawSphereFill рисует закрашенную сферу. С zbuffered пиксели проходят
// проверку глубины по поверхности сферы, иначе рисуются поверх всего.
func (r *Renderer) DrawSphereFill(pos vec.Vec3, radius float64, c color.Color, zbuffered bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fb == nil {
		return ErrNoFramebuffer
	}
	cx, cy, depth, ok := r.cam.Project(pos)
	if !ok || radius <= 0 {
		return nil
	}
	sr := r.cam.Focal * radius / depth
	for y := int(math.Floor(cy - sr)); y <= int(math.Ceil(cy+sr)); y++ {
		for x := int(math.Floor(cx - sr)); x <= int(math.Ceil(cx+sr)); x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			q := (dx*dx + dy*dy) / (sr * sr)
			if q > 1 {
				continue
			}
			if !zbuffered {
				r.fb.SetPixel(x, y, c)
				continue
			}
			r.fb.plot(x, y, depth-radius*math.Sqrt(1-q), c)
		}
	}
	return nil
}

// DrawSprite рисует воксели спрайта квадратами с проверкой глубины
func (r *Renderer) DrawSprite(s sprite.Sprite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fb == nil {
		return ErrNoFramebuffer
	}
	m := s.Model()
	if m == nil {
		return sprite.ErrReleased
	}
	pose := s.Pose()
	scale := math.Max(pose.Right.Length(), math.Max(pose.Down.Length(), pose.Forward.Length()))
	for _, v := range m.Voxels {
		center := sprite.VoxelCenter(s, vec.IVec3{X: v.X, Y: v.Y, Z: v.Z})
		sx, sy, depth, ok := r.cam.Project(center)
		if !ok {
			continue
		}
		half := math.Max(0.5, r.cam.Focal*scale/depth/2)
		for y := int(sy - half); y < int(math.Ceil(sy+half)); y++ {
			for x := int(sx - half); x < int(math.Ceil(sx+half)); x++ {
				r.fb.plot(x, y, depth, v.Color)
			}
		}
	}
	return nil
}

// DrawPicInQuad масштабирует картинку в прямоугольник экрана
func (r *Renderer) DrawPicInQuad(img image.Image, quad image.Rectangle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fb == nil {
		return ErrNoFramebuffer
	}
	xdraw.ApproxBiLinear.Scale(r.fb, quad, img, img.Bounds(), xdraw.Over, nil)
	return nil
}

// TileSpec описывает вывод фрагмента картинки на экран
type TileSpec struct {
	// Src фрагмент исходной картинки; пустой означает всю картинку
	Src image.Rectangle
	// X, Y левый верхний угол на экране
	X, Y int
	// ZoomX, ZoomY масштаб по осям; 0 означает 1
	ZoomX, ZoomY float64
}

// DrawTile выводит фрагмент картинки с масштабом без сглаживания
func (r *Renderer) DrawTile(img image.Image, t TileSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fb == nil {
		return ErrNoFramebuffer
	}
	src := t.Src
	if src.Empty() {
		src = img.Bounds()
	}
	zx, zy := t.ZoomX, t.ZoomY
	if zx == 0 {
		zx = 1
	}
	if zy == 0 {
		zy = 1
	}
	dst := image.Rect(t.X, t.Y,
		t.X+int(math.Round(float64(src.Dx())*zx)),
		t.Y+int(math.Round(float64(src.Dy())*zy)))
	xdraw.NearestNeighbor.Scale(r.fb, dst, img, src, xdraw.Over, nil)
	return nil
}

// DrawPolyQuad рисует картинку на четырёхугольнике мира p0..p3
// (по часовой стрелке от левого верхнего угла) с проверкой глубины
func (r *Renderer) DrawPolyQuad(img image.Image, p0, p1, p2, p3 vec.Vec3) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fb == nil {
		return ErrNoFramebuffer
	}
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	corners := [4]vec.Vec3{p0, p1, p2, p3}
	uv := [4][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}}
	var scr [4]texVertex
	for i, p := range corners {
		sx, sy, depth, ok := r.cam.Project(p)
		if !ok {
			return nil
		}
		scr[i] = texVertex{x: sx, y: sy, depth: depth, u: uv[i][0], v: uv[i][1]}
	}
	r.texTriangle(img, scr[0], scr[1], scr[2])
	r.texTriangle(img, scr[0], scr[2], scr[3])
	return nil
}

type texVertex struct {
	x, y, depth float64
	u, v        float64
}

// texTriangle растеризует треугольник с перспективно-корректными координатами текстуры
func (r *Renderer) texTriangle(img image.Image, a, b, c texVertex) {
	area := (b.x-a.x)*(c.y-a.y) - (c.x-a.x)*(b.y-a.y)
	if math.Abs(area) < 1e-9 {
		return
	}
	minX := max(0, int(math.Floor(math.Min(a.x, math.Min(b.x, c.x)))))
	maxX := min(r.fb.Width-1, int(math.Ceil(math.Max(a.x, math.Max(b.x, c.x)))))
	minY := max(0, int(math.Floor(math.Min(a.y, math.Min(b.y, c.y)))))
	maxY := min(r.fb.Height-1, int(math.Ceil(math.Max(a.y, math.Max(b.y, c.y)))))
	bounds := img.Bounds()
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			w0 := ((b.x-px)*(c.y-py) - (c.x-px)*(b.y-py)) / area
			w1 := ((c.x-px)*(a.y-py) - (a.x-px)*(c.y-py)) / area
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			iz := w0/a.depth + w1/b.depth + w2/c.depth
			depth := 1 / iz
			u := (w0*a.u/a.depth + w1*b.u/b.depth + w2*c.u/c.depth) * depth
			v := (w0*a.v/a.depth + w1*b.v/b.depth + w2*c.v/c.depth) * depth
			tx := bounds.Min.X + min(max(int(u), 0), bounds.Dx()-1)
			ty := bounds.Min.Y + min(max(int(v), 0), bounds.Dy()-1)
			src := color.FromStd(img.At(tx, ty))
			if src.A == 0 {
				continue
			}
			r.fb.plot(x, y, depth, src)
		}
	}
}

// PrintText выводит готовую строку шрифтом 7x13. (x, y) левый верхний угол.
// bg nil оставляет фон прозрачным.
func (r *Renderer) PrintText(x, y int, fg color.Color, bg *color.Color, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fb == nil {
		return ErrNoFramebuffer
	}
	face := basicfont.Face7x13
	if bg != nil {
		width := font.MeasureString(face, text).Ceil()
		rect := image.Rect(x, y, x+width, y+face.Height)
		xdraw.Draw(r.fb, rect, image.NewUniform(bg.NRGBA()), image.Point{}, xdraw.Src)
	}
	d := font.Drawer{
		Dst:  r.fb,
		Src:  image.NewUniform(stdcolor.NRGBA{R: fg.R, G: fg.G, B: fg.B, A: 255}),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(text)
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
