package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrCorrupt данные формата повреждены или обрезаны
var ErrCorrupt = errors.New("повреждённые данные")

// Writer накапливает little-endian запись в буфер
type Writer struct {
	buf []byte
}

// NewWriter создаёт writer с предварительной ёмкостью
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) U8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) U16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

func (w *Writer) U32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *Writer) I32(v int32) { w.U32(uint32(v)) }

func (w *Writer) F64(v float64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v)) }

func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }

// String пишет строку с префиксом длины uint16
func (w *Writer) String(s string) {
	w.U16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

// Reader читает little-endian данные; первая ошибка запоминается,
// последующие чтения возвращают нули
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader создаёт reader поверх буфера
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Err возвращает первую ошибку чтения
func (r *Reader) Err() error { return r.err }

// Remaining возвращает число непрочитанных байт
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: нужно %d байт на смещении %d", ErrCorrupt, n, r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) I32() int32 { return int32(r.U32()) }

func (r *Reader) F64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func (r *Reader) Raw(n int) []byte { return r.take(n) }

func (r *Reader) String() string {
	n := int(r.U16())
	return string(r.take(n))
}
