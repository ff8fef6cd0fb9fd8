package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZstd_RoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte("voxel column "), 200)

	packed, err := Zstd().Compress(raw)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(raw), "Повторяющиеся данные должны сжиматься")

	out, err := Zstd().Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, raw, out)

	_, err = Zstd().Decompress([]byte("not zstd"))
	assert.Error(t, err, "Мусор не распаковывается")
}

func TestPassthrough(t *testing.T) {
	c := NewPassthroughCompressor()
	out, err := c.Compress([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, out)
}

func TestWriterReader(t *testing.T) {
	w := NewWriter(16)
	w.U8(7)
	w.U16(300)
	w.I32(-5)
	w.F64(1.25)
	w.String("куб")

	r := NewReader(w.Bytes())
	assert.Equal(t, uint8(7), r.U8())
	assert.Equal(t, uint16(300), r.U16())
	assert.Equal(t, int32(-5), r.I32())
	assert.Equal(t, 1.25, r.F64())
	assert.Equal(t, "куб", r.String())
	require.NoError(t, r.Err())
	assert.Equal(t, 0, r.Remaining())

	assert.Equal(t, uint32(0), r.U32(), "Чтение за концом даёт ноль")
	assert.True(t, errors.Is(r.Err(), ErrCorrupt), "Ошибка обрезанных данных")
}
