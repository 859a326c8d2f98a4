package rw

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// ReaderWriter is a little-endian cursor over a byte buffer. Reads record the
// first failure and turn every following read into a zero-value no-op, so a
// decoder can read a whole record and check Err once.
type ReaderWriter struct {
	order   binary.ByteOrder
	dataBuf []byte
	rw      bytes.Buffer
	offset  int
	err     error
}

func NewWriter() *ReaderWriter {
	return &ReaderWriter{order: binary.LittleEndian, dataBuf: make([]byte, 8)}
}

func NewReader(data []byte) *ReaderWriter {
	d := &ReaderWriter{order: binary.LittleEndian, dataBuf: make([]byte, 8)}
	d.rw.Write(data)
	return d
}

func (w *ReaderWriter) Err() error {
	return w.err
}

// Offset is the number of bytes consumed (reader) or produced (writer) so far.
func (w *ReaderWriter) Offset() int {
	return w.offset
}

// Remaining is the number of unread bytes.
func (w *ReaderWriter) Remaining() int {
	return w.rw.Len()
}

func (w *ReaderWriter) read(n int) []byte {
	if w.err != nil {
		return nil
	}
	if w.rw.Len() < n {
		w.err = fmt.Errorf("read %d bytes at offset %d: %w", n, w.offset, io.ErrUnexpectedEOF)
		return nil
	}
	_, _ = w.rw.Read(w.dataBuf[:n])
	w.offset += n
	return w.dataBuf[:n]
}

func (w *ReaderWriter) ReadUInt8() uint8 {
	b := w.read(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (w *ReaderWriter) ReadUInt16() uint16 {
	b := w.read(2)
	if b == nil {
		return 0
	}
	return w.order.Uint16(b)
}

func (w *ReaderWriter) ReadUInt32() uint32 {
	b := w.read(4)
	if b == nil {
		return 0
	}
	return w.order.Uint32(b)
}

func (w *ReaderWriter) ReadInt32() int32 {
	return int32(w.ReadUInt32())
}

func (w *ReaderWriter) ReadFloat32() float32 {
	return math.Float32frombits(w.ReadUInt32())
}

func (w *ReaderWriter) ReadUInt8s(value []uint8) {
	for i := range value {
		value[i] = w.ReadUInt8()
	}
}

func (w *ReaderWriter) ReadUInt16s(value []uint16) {
	for i := range value {
		value[i] = w.ReadUInt16()
	}
}

func (w *ReaderWriter) ReadUInt32s(value []uint32) {
	for i := range value {
		value[i] = w.ReadUInt32()
	}
}

func (w *ReaderWriter) ReadFloat32s(value []float32) {
	for i := range value {
		value[i] = w.ReadFloat32()
	}
}

// Skip discards n bytes.
func (w *ReaderWriter) Skip(n int) {
	for i := 0; i < n && w.err == nil; i++ {
		w.read(1)
	}
}

// SkipAlign4 discards the padding up to the next 4-byte boundary.
func (w *ReaderWriter) SkipAlign4() {
	w.Skip((4 - w.offset%4) % 4)
}

func (w *ReaderWriter) write(b []byte) {
	w.rw.Write(b)
	w.offset += len(b)
}

func (w *ReaderWriter) WriteUInt8(v uint8) {
	w.dataBuf[0] = v
	w.write(w.dataBuf[:1])
}

func (w *ReaderWriter) WriteUInt16(v uint16) {
	w.order.PutUint16(w.dataBuf, v)
	w.write(w.dataBuf[:2])
}

func (w *ReaderWriter) WriteUInt32(v uint32) {
	w.order.PutUint32(w.dataBuf, v)
	w.write(w.dataBuf[:4])
}

func (w *ReaderWriter) WriteInt32(v interface{}) {
	switch value := v.(type) {
	case int32:
		w.WriteUInt32(uint32(value))
	case int:
		w.WriteUInt32(uint32(int32(value)))
	case uint32:
		w.WriteUInt32(value)
	default:
		panic(fmt.Sprintf("rw: unsupported int32 value %T", v))
	}
}

func (w *ReaderWriter) WriteFloat32(v float32) {
	w.WriteUInt32(math.Float32bits(v))
}

func (w *ReaderWriter) WriteUInt8s(value []uint8) {
	w.write(value)
}

func (w *ReaderWriter) WriteUInt16s(value []uint16) {
	for _, v := range value {
		w.WriteUInt16(v)
	}
}

func (w *ReaderWriter) WriteUInt32s(value []uint32) {
	for _, v := range value {
		w.WriteUInt32(v)
	}
}

func (w *ReaderWriter) WriteFloat32s(value []float32) {
	for _, v := range value {
		w.WriteFloat32(v)
	}
}

func (w *ReaderWriter) PadZero(n int) {
	for i := 0; i < n; i++ {
		w.WriteUInt8(0)
	}
}

// PadAlign4 writes zero bytes up to the next 4-byte boundary.
func (w *ReaderWriter) PadAlign4() {
	w.PadZero((4 - w.offset%4) % 4)
}

func (w *ReaderWriter) GetWriteBytes() []byte {
	return w.rw.Bytes()
}

func (w *ReaderWriter) Size() int {
	return w.rw.Len()
}
