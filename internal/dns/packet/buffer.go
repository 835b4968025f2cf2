// Package packet implements the DNS wire format: a fixed 512-byte cursor
// buffer, the compression-aware QNAME codec, and the question/record/packet
// layers built on top of it.
package packet

import (
	"errors"
	"sync"
)

// PacketSize is the fixed UDP payload size this resolver speaks. There is
// no EDNS(0) here, so every packet -- request or response -- fits in this
// many bytes.
const PacketSize = 512

// ErrBufferOverflow is returned whenever a read or write would touch a
// byte at or past PacketSize.
var ErrBufferOverflow = errors.New("packet: buffer overflow")

// Buffer is a fixed 512-byte array with a cursor for positioned,
// bounds-checked big-endian reads and writes. It never grows.
type Buffer struct {
	Buf [PacketSize]byte
	Pos int
}

var bufferPool = sync.Pool{
	New: func() interface{} { return &Buffer{} },
}

// GetBuffer returns a Buffer from the pool, reset to position 0.
func GetBuffer() *Buffer {
	b := bufferPool.Get().(*Buffer)
	b.Reset()
	return b
}

// PutBuffer returns a Buffer to the pool for reuse.
func PutBuffer(b *Buffer) {
	bufferPool.Put(b)
}

// Reset zeroes the cursor without touching the backing array; callers that
// need a clean array should Load fresh data instead.
func (b *Buffer) Reset() {
	b.Pos = 0
}

// NewBuffer allocates a standalone, zeroed Buffer outside the pool. Tests
// and one-off encodes that outlive a single request use this rather than
// GetBuffer/PutBuffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Load copies data into the buffer's backing array and resets the cursor
// to 0. Data longer than PacketSize is truncated, matching a UDP read into
// a fixed-size receive buffer.
func (b *Buffer) Load(data []byte) {
	b.Pos = 0
	n := copy(b.Buf[:], data)
	for i := n; i < PacketSize; i++ {
		b.Buf[i] = 0
	}
}

// Position returns the current cursor position.
func (b *Buffer) Position() int {
	return b.Pos
}

// Step advances the cursor by steps without reading anything.
func (b *Buffer) Step(steps int) error {
	if b.Pos+steps > PacketSize || b.Pos+steps < 0 {
		return ErrBufferOverflow
	}
	b.Pos += steps
	return nil
}

// Seek moves the cursor to an absolute position.
func (b *Buffer) Seek(pos int) error {
	if pos > PacketSize || pos < 0 {
		return ErrBufferOverflow
	}
	b.Pos = pos
	return nil
}

// Read returns the byte at the cursor and advances it by one.
func (b *Buffer) Read() (byte, error) {
	if b.Pos >= PacketSize {
		return 0, ErrBufferOverflow
	}
	v := b.Buf[b.Pos]
	b.Pos++
	return v, nil
}

// Get reads the byte at pos without moving the cursor.
func (b *Buffer) Get(pos int) (byte, error) {
	if pos < 0 || pos >= PacketSize {
		return 0, ErrBufferOverflow
	}
	return b.Buf[pos], nil
}

// GetRange returns a copy of length bytes starting at start, without
// moving the cursor. Succeeds iff start+length <= PacketSize.
func (b *Buffer) GetRange(start, length int) ([]byte, error) {
	if start < 0 || length < 0 || start+length > PacketSize {
		return nil, ErrBufferOverflow
	}
	out := make([]byte, length)
	copy(out, b.Buf[start:start+length])
	return out, nil
}

// ReadRange reads length bytes at the cursor and advances past them.
func (b *Buffer) ReadRange(length int) ([]byte, error) {
	out, err := b.GetRange(b.Pos, length)
	if err != nil {
		return nil, err
	}
	b.Pos += length
	return out, nil
}

// ReadU16 reads a big-endian uint16 and advances the cursor by two.
func (b *Buffer) ReadU16() (uint16, error) {
	if b.Pos+2 > PacketSize {
		return 0, ErrBufferOverflow
	}
	v := uint16(b.Buf[b.Pos])<<8 | uint16(b.Buf[b.Pos+1])
	b.Pos += 2
	return v, nil
}

// ReadU32 reads a big-endian uint32 and advances the cursor by four.
func (b *Buffer) ReadU32() (uint32, error) {
	if b.Pos+4 > PacketSize {
		return 0, ErrBufferOverflow
	}
	v := uint32(b.Buf[b.Pos])<<24 | uint32(b.Buf[b.Pos+1])<<16 |
		uint32(b.Buf[b.Pos+2])<<8 | uint32(b.Buf[b.Pos+3])
	b.Pos += 4
	return v, nil
}

// Write writes a single byte at the cursor and advances it by one.
func (b *Buffer) Write(v byte) error {
	if b.Pos >= PacketSize {
		return ErrBufferOverflow
	}
	b.Buf[b.Pos] = v
	b.Pos++
	return nil
}

// WriteU16 writes a big-endian uint16 at the cursor and advances by two.
func (b *Buffer) WriteU16(v uint16) error {
	if b.Pos+2 > PacketSize {
		return ErrBufferOverflow
	}
	b.Buf[b.Pos] = byte(v >> 8)
	b.Buf[b.Pos+1] = byte(v)
	b.Pos += 2
	return nil
}

// WriteU32 writes a big-endian uint32 at the cursor and advances by four.
func (b *Buffer) WriteU32(v uint32) error {
	if b.Pos+4 > PacketSize {
		return ErrBufferOverflow
	}
	b.Buf[b.Pos] = byte(v >> 24)
	b.Buf[b.Pos+1] = byte(v >> 16)
	b.Buf[b.Pos+2] = byte(v >> 8)
	b.Buf[b.Pos+3] = byte(v)
	b.Pos += 4
	return nil
}

// SetU8 back-patches a single byte at an already-written position without
// moving the cursor.
func (b *Buffer) SetU8(pos int, v byte) error {
	if pos < 0 || pos >= PacketSize {
		return ErrBufferOverflow
	}
	b.Buf[pos] = v
	return nil
}

// SetU16 back-patches a big-endian uint16 at an already-written position,
// used to fill in section counts and rdlength fields after the fact.
func (b *Buffer) SetU16(pos int, v uint16) error {
	if pos < 0 || pos+2 > PacketSize {
		return ErrBufferOverflow
	}
	b.Buf[pos] = byte(v >> 8)
	b.Buf[pos+1] = byte(v)
	return nil
}

// WriteRange writes data verbatim at the cursor and advances past it.
func (b *Buffer) WriteRange(data []byte) error {
	if b.Pos+len(data) > PacketSize {
		return ErrBufferOverflow
	}
	copy(b.Buf[b.Pos:], data)
	b.Pos += len(data)
	return nil
}
