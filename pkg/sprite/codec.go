package sprite

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/annel0/voxworld/internal/codec"
	"github.com/annel0/voxworld/pkg/color"
	"github.com/annel0/voxworld/pkg/vec"
)

// ModelExt расширение файла модели
const ModelExt = ".vxm"

var modelMagic = []byte("VXM1")

// ErrBadModel файл не является моделью VXM1
var ErrBadModel = errors.New("неверный формат модели")

// EncodeModel записывает модель в формате VXM1: магия и zstd-сжатое тело
func EncodeModel(w io.Writer, m *Model) error {
	body := codec.NewWriter(32 + len(m.Voxels)*10)
	body.String(m.Name)
	body.I32(int32(m.SizeX))
	body.I32(int32(m.SizeY))
	body.I32(int32(m.SizeZ))
	body.F64(m.Pivot.X)
	body.F64(m.Pivot.Y)
	body.F64(m.Pivot.Z)
	body.U32(uint32(len(m.Voxels)))
	for _, v := range m.Voxels {
		body.U16(uint16(v.X))
		body.U16(uint16(v.Y))
		body.U16(uint16(v.Z))
		body.Raw([]byte{v.Color.R, v.Color.G, v.Color.B, v.Color.A})
	}

	packed, err := codec.Zstd().Compress(body.Bytes())
	if err != nil {
		return fmt.Errorf("сжатие модели %s: %w", m.Name, err)
	}
	if _, err := w.Write(modelMagic); err != nil {
		return fmt.Errorf("запись модели %s: %w", m.Name, err)
	}
	if _, err := w.Write(packed); err != nil {
		return fmt.Errorf("запись модели %s: %w", m.Name, err)
	}
	return nil
}

// DecodeModel читает модель в формате VXM1
func DecodeModel(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("чтение модели: %w", err)
	}
	if len(data) < len(modelMagic) || !bytes.Equal(data[:len(modelMagic)], modelMagic) {
		return nil, ErrBadModel
	}
	raw, err := codec.Zstd().Decompress(data[len(modelMagic):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadModel, err)
	}

	in := codec.NewReader(raw)
	name := in.String()
	size := vec.IVec3{X: int(in.I32()), Y: int(in.I32()), Z: int(in.I32())}
	pivot := vec.Vec3{X: in.F64(), Y: in.F64(), Z: in.F64()}
	n := int(in.U32())
	if in.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadModel, in.Err())
	}
	if n*10 > in.Remaining() {
		return nil, fmt.Errorf("%w: заявлено %d вокселей", ErrBadModel, n)
	}
	voxels := make([]Voxel, n)
	for i := range voxels {
		x, y, z := in.U16(), in.U16(), in.U16()
		c := in.Raw(4)
		if c == nil {
			break
		}
		voxels[i] = Voxel{X: int(x), Y: int(y), Z: int(z), Color: color.RGBA(c[0], c[1], c[2], c[3])}
	}
	if in.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadModel, in.Err())
	}
	m, err := NewModel(name, size, pivot, voxels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadModel, err)
	}
	return m, nil
}
