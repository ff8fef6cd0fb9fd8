// Package codec содержит сжатие и бинарную запись/чтение для файловых форматов
// моделей и снимков мира.
package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compressor сжимает и распаковывает полезную нагрузку формата
type Compressor interface {
	Compress(raw []byte) ([]byte, error)
	Decompress(payload []byte) ([]byte, error)
}

type passthroughCompressor struct{}

// NewPassthroughCompressor возвращает компрессор без сжатия, удобен в тестах
func NewPassthroughCompressor() Compressor { return passthroughCompressor{} }

func (passthroughCompressor) Compress(raw []byte) ([]byte, error) { return raw, nil }

func (passthroughCompressor) Decompress(payload []byte) ([]byte, error) { return payload, nil }

// zstdCompressor использует один encoder и один decoder: EncodeAll/DecodeAll
// безопасны для параллельных вызовов
type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCompressor создаёт zstd-компрессор с заданным уровнем
func NewZstdCompressor(level zstd.EncoderLevel) (Compressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("создание zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("создание zstd decoder: %w", err)
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (z *zstdCompressor) Compress(raw []byte) ([]byte, error) {
	return z.enc.EncodeAll(raw, nil), nil
}

func (z *zstdCompressor) Decompress(payload []byte) ([]byte, error) {
	out, err := z.dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("распаковка zstd: %w", err)
	}
	return out, nil
}

var defaultZstd Compressor

func init() {
	c, err := NewZstdCompressor(zstd.SpeedDefault)
	if err != nil {
		panic(err)
	}
	defaultZstd = c
}

// Zstd возвращает общий zstd-компрессор со скоростью по умолчанию
func Zstd() Compressor {
	return defaultZstd
}
