// Package cursor provides a bounds-checked little-endian reader over an
// in-memory Aseprite file.
//
// Every read advances the position by the width of the value read. A
// primitive read that would run past the end of the buffer fails with
// ErrOutOfBounds and leaves the position unchanged.
package cursor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

var (
	// ErrOutOfBounds is returned when fewer bytes remain than a read requires.
	ErrOutOfBounds = errors.New("cursor: read out of bounds")

	// ErrInvalidUTF8 is returned when a string field is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("cursor: invalid UTF-8 string")
)

// Fixed is a 16.16 fixed point number stored as its raw 32-bit value.
type Fixed int32

// Float64 returns the value of f as a float.
func (f Fixed) Float64() float64 {
	return float64(f) / 65536
}

func (f Fixed) String() string {
	return fmt.Sprint(f.Float64())
}

// Point is the POINT type of the file format.
type Point struct {
	X, Y int32
}

// Size is the SIZE type of the file format.
type Size struct {
	Width, Height int32
}

// Rect is the RECT type of the file format.
type Rect struct {
	Origin Point
	Size   Size
}

// Cursor reads little-endian values from a fixed byte slice.
type Cursor struct {
	data []byte
	pos  int
}

// New returns a Cursor positioned at the start of data.
func New(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Len returns the number of unread bytes.
func (c *Cursor) Len() int {
	return len(c.data) - c.pos
}

// Pos returns the current read position.
func (c *Cursor) Pos() int {
	return c.pos
}

// Seek moves the read position to the absolute offset pos.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.data) {
		return fmt.Errorf("%w: seek to %d of %d", ErrOutOfBounds, pos, len(c.data))
	}
	c.pos = pos
	return nil
}

// Skip advances the read position by n bytes.
func (c *Cursor) Skip(n int) error {
	_, err := c.next(n)
	return err
}

// next returns a view of the next n bytes and advances past them.
func (c *Cursor) next(n int) ([]byte, error) {
	if n < 0 || n > c.Len() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrOutOfBounds, n, c.pos, c.Len())
	}
	b := c.data[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadBytes reads n bytes into a new slice.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	b, err := c.next(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// ReadByte reads a single byte.
func (c *Cursor) ReadByte() (byte, error) {
	b, err := c.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (c *Cursor) ReadUint8() (uint8, error) {
	return c.ReadByte()
}

// ReadInt8 reads a signed 8-bit integer.
func (c *Cursor) ReadInt8() (int8, error) {
	b, err := c.ReadByte()
	return int8(b), err
}

// ReadUint16 reads an unsigned 16-bit integer.
func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadInt16 reads a signed 16-bit integer.
func (c *Cursor) ReadInt16() (int16, error) {
	v, err := c.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads an unsigned 32-bit integer.
func (c *Cursor) ReadUint32() (uint32, error) {
	b, err := c.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadInt32 reads a signed 32-bit integer.
func (c *Cursor) ReadInt32() (int32, error) {
	v, err := c.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads an unsigned 64-bit integer.
func (c *Cursor) ReadUint64() (uint64, error) {
	b, err := c.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadInt64 reads a signed 64-bit integer.
func (c *Cursor) ReadInt64() (int64, error) {
	v, err := c.ReadUint64()
	return int64(v), err
}

// ReadFloat32 reads an IEEE 754 single precision float.
func (c *Cursor) ReadFloat32() (float32, error) {
	v, err := c.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadFloat64 reads an IEEE 754 double precision float.
func (c *Cursor) ReadFloat64() (float64, error) {
	v, err := c.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadFixed reads a 16.16 fixed point number.
func (c *Cursor) ReadFixed() (Fixed, error) {
	v, err := c.ReadInt32()
	return Fixed(v), err
}

// ReadString reads a string prefixed by its signed 16-bit byte length.
// The bytes must be valid UTF-8.
func (c *Cursor) ReadString() (string, error) {
	start := c.pos

	n, err := c.ReadInt16()
	if err != nil {
		return "", err
	}

	raw, err := c.next(int(n))
	if err != nil {
		c.pos = start
		return "", err
	}

	s, _, err := transform.Bytes(encoding.UTF8Validator, raw)
	if err != nil {
		c.pos = start
		return "", fmt.Errorf("%w at offset %d", ErrInvalidUTF8, start)
	}

	return string(s), nil
}

// ReadUUID reads a 16-byte UUID.
func (c *Cursor) ReadUUID() (uuid.UUID, error) {
	var id uuid.UUID
	b, err := c.next(len(id))
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

// ReadPoint reads a POINT.
func (c *Cursor) ReadPoint() (p Point, err error) {
	if p.X, err = c.ReadInt32(); err != nil {
		return
	}
	p.Y, err = c.ReadInt32()
	return
}

// ReadSize reads a SIZE.
func (c *Cursor) ReadSize() (s Size, err error) {
	if s.Width, err = c.ReadInt32(); err != nil {
		return
	}
	s.Height, err = c.ReadInt32()
	return
}

// ReadRect reads a RECT.
func (c *Cursor) ReadRect() (r Rect, err error) {
	if r.Origin, err = c.ReadPoint(); err != nil {
		return
	}
	r.Size, err = c.ReadSize()
	return
}
