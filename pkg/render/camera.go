package render

import (
	"github.com/annel0/voxworld/pkg/vec"
)

// Camera поза наблюдателя и параметры проекции.
// Базис позы должен быть ортонормированным; это не проверяется.
type Camera struct {
	Pose    vec.Orientation
	CenterX float64
	CenterY float64
	// Focal фокусное расстояние в пикселях, задаёт угол обзора
	Focal float64
}

// CameraFor возвращает камеру с центром экрана в середине буфера и
// фокусным расстоянием width/2*zoom (zoom=1 даёт обзор 90 градусов по горизонтали)
func CameraFor(fb *Framebuffer, pose vec.Orientation, zoom float64) Camera {
	return Camera{
		Pose:    pose,
		CenterX: float64(fb.Width) / 2,
		CenterY: float64(fb.Height) / 2,
		Focal:   float64(fb.Width) / 2 * zoom,
	}
}

// Ray возвращает единичное направление луча через пиксель (px, py)
func (c Camera) Ray(px, py float64) vec.Vec3 {
	p := c.Pose
	return p.Forward.Mul(c.Focal).
		Add(p.Right.Mul(px - c.CenterX)).
		Add(p.Down.Mul(py - c.CenterY)).
		Normalized()
}

// Project переводит точку мира в координаты экрана и глубину вдоль Forward.
// Точки позади камеры дают false.
func (c Camera) Project(p vec.Vec3) (sx, sy, depth float64, ok bool) {
	d := p.Sub(c.Pose.Pos)
	depth = d.Dot(c.Pose.Forward)
	if depth <= 1e-6 {
		return 0, 0, 0, false
	}
	sx = c.CenterX + c.Focal*d.Dot(c.Pose.Right)/depth
	sy = c.CenterY + c.Focal*d.Dot(c.Pose.Down)/depth
	return sx, sy, depth, true
}
