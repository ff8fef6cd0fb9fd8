package world

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"

	"github.com/annel0/voxworld/internal/codec"
	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/vec"
)

// SnapshotExt расширение файла снимка мира
const SnapshotExt = ".vxw"

var snapshotMagic = []byte("VXW1")

const snapshotVersion = 1

// EncodeSnapshot записывает мир и позу камеры в формате VXW1:
// магия и zstd-сжатое тело со сплошными отрезками и цветами открытых вокселей.
// Mip-уровни не сохраняются и строятся заново при чтении.
func (w *World) EncodeSnapshot(out io.Writer, cam vec.Orientation) error {
	_, span := tracer.Start(context.Background(), "world.EncodeSnapshot")
	defer span.End()

	if err := w.rlock(); err != nil {
		return err
	}
	body := codec.NewWriter(64 + len(w.base.cols)*8)
	body.U8(snapshotVersion)
	body.U32(uint32(w.base.side))
	body.U32(uint32(w.base.depth))
	writeVec(body, cam.Pos)
	writeVec(body, cam.Right)
	writeVec(body, cam.Down)
	writeVec(body, cam.Forward)
	body.Raw([]byte{w.paint.R, w.paint.G, w.paint.B, w.paint.A})
	body.U8(uint8(w.lighting))
	writeVec(body, w.sun)
	body.U16(uint16(len(w.lights)))
	for _, l := range w.lights {
		writeVec(body, l.Pos)
		body.F64(l.Radius)
		body.F64(l.Intensity)
	}
	for i := range w.base.cols {
		c := &w.base.cols[i]
		body.U16(uint16(len(c.spans)))
		for _, s := range c.spans {
			body.U16(uint16(s.top))
			body.U16(uint16(s.bot))
		}
		body.U32(uint32(len(c.colors)))
		for _, vc := range c.colors {
			body.U16(uint16(vc.z))
			body.Raw([]byte{vc.c.R, vc.c.G, vc.c.B, vc.c.A, vc.light})
		}
	}
	w.mu.RUnlock()

	raw := body.Bytes()
	span.SetAttributes(attribute.Int("bytes", len(raw)))
	packed, err := codec.Zstd().Compress(raw)
	if err != nil {
		return fmt.Errorf("сжатие снимка мира: %w", err)
	}
	if _, err := out.Write(snapshotMagic); err != nil {
		return fmt.Errorf("запись снимка мира: %w", err)
	}
	if _, err := out.Write(packed); err != nil {
		return fmt.Errorf("запись снимка мира: %w", err)
	}
	return nil
}

// DecodeSnapshot читает снимок VXW1 и возвращает новый мир и позу камеры.
// Мир возвращается уже зафиксированным: освещение и mip-уровни построены.
func DecodeSnapshot(r io.Reader) (*World, vec.Orientation, error) {
	_, span := tracer.Start(context.Background(), "world.DecodeSnapshot")
	defer span.End()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, vec.Orientation{}, fmt.Errorf("чтение снимка мира: %w", err)
	}
	if len(data) < len(snapshotMagic) || !bytes.Equal(data[:len(snapshotMagic)], snapshotMagic) {
		return nil, vec.Orientation{}, ErrBadSnapshot
	}
	raw, err := codec.Zstd().Decompress(data[len(snapshotMagic):])
	if err != nil {
		return nil, vec.Orientation{}, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	span.SetAttributes(attribute.Int("bytes", len(raw)))

	in := codec.NewReader(raw)
	if v := in.U8(); v != snapshotVersion {
		return nil, vec.Orientation{}, fmt.Errorf("%w: версия %d", ErrBadSnapshot, v)
	}
	side, depth := int(in.U32()), int(in.U32())
	if in.Err() != nil {
		return nil, vec.Orientation{}, fmt.Errorf("%w: %v", ErrBadSnapshot, in.Err())
	}
	w, err := New(side, depth)
	if err != nil {
		return nil, vec.Orientation{}, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}

	cam := vec.Orientation{Pos: readVec(in), Right: readVec(in), Down: readVec(in), Forward: readVec(in)}
	if p := in.Raw(4); p != nil {
		w.paint = color.RGBA(p[0], p[1], p[2], p[3])
	}
	w.lighting = LightingMode(in.U8())
	if sun := readVec(in).Normalized(); !sun.IsZero() {
		w.sun = sun
	}
	nl := int(in.U16())
	for i := 0; i < nl && in.Err() == nil; i++ {
		w.lights = append(w.lights, PointLight{Pos: readVec(in), Radius: in.F64(), Intensity: in.F64()})
	}

	for i := range w.base.cols {
		if err := readColumn(in, &w.base.cols[i], int32(depth)); err != nil {
			return nil, vec.Orientation{}, err
		}
	}
	if in.Err() != nil {
		return nil, vec.Orientation{}, fmt.Errorf("%w: %v", ErrBadSnapshot, in.Err())
	}
	if in.Remaining() != 0 {
		return nil, vec.Orientation{}, fmt.Errorf("%w: %d лишних байт", ErrBadSnapshot, in.Remaining())
	}

	w.regenerateMips(w.base.domain())
	w.revision++
	return w, cam, nil
}

func readColumn(in *codec.Reader, c *column, depth int32) error {
	ns := int(in.U16())
	if ns*4 > in.Remaining() {
		return fmt.Errorf("%w: заявлено %d отрезков", ErrBadSnapshot, ns)
	}
	prev := int32(-1)
	c.spans = make([]span, 0, ns)
	for i := 0; i < ns; i++ {
		s := span{top: int32(in.U16()), bot: int32(in.U16())}
		if s.top <= prev || s.top >= s.bot || s.bot > depth {
			return fmt.Errorf("%w: неверный отрезок [%d, %d)", ErrBadSnapshot, s.top, s.bot)
		}
		prev = s.bot
		c.spans = append(c.spans, s)
	}
	nc := int(in.U32())
	if nc*7 > in.Remaining() {
		return fmt.Errorf("%w: заявлено %d цветов", ErrBadSnapshot, nc)
	}
	c.colors = make([]voxelColor, 0, nc)
	prevZ := int32(-1)
	for i := 0; i < nc; i++ {
		z := int32(in.U16())
		b := in.Raw(5)
		if b == nil {
			break
		}
		if z <= prevZ || !c.solidAt(int(z)) {
			return fmt.Errorf("%w: цвет для несплошного вокселя z=%d", ErrBadSnapshot, z)
		}
		prevZ = z
		c.colors = append(c.colors, voxelColor{z: z, c: color.RGBA(b[0], b[1], b[2], b[3]), light: b[4]})
	}
	return nil
}

func writeVec(w *codec.Writer, v vec.Vec3) {
	w.F64(v.X)
	w.F64(v.Y)
	w.F64(v.Z)
}

func readVec(r *codec.Reader) vec.Vec3 {
	return vec.Vec3{X: r.F64(), Y: r.F64(), Z: r.F64()}
}
