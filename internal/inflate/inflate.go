// Package inflate decompresses the DEFLATE streams that hold compressed cel
// pixels.
//
// Aseprite wraps the stream in a zlib header. Streams without a valid zlib
// header are decoded as raw DEFLATE.
package inflate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

var (
	// ErrCorrupted is returned when the compressed stream cannot be decoded.
	ErrCorrupted = errors.New("inflate: corrupted data")

	// ErrTooLarge is returned when the stream decompresses to more bytes
	// than allowed.
	ErrTooLarge = errors.New("inflate: decompressed data too large")
)

// IsZlib reports whether data starts with a valid zlib header using the
// deflate method.
func IsZlib(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	cmf, flg := data[0], data[1]
	if cmf&0x0f != 8 {
		return false
	}
	return (uint16(cmf)<<8|uint16(flg))%31 == 0
}

type readerPoolItem struct {
	reader io.ReadCloser
	src    *bytes.Reader
}

var zlibReaderPool = sync.Pool{
	New: func() any {
		return &readerPoolItem{src: bytes.NewReader(nil)}
	},
}

func (item *readerPoolItem) reset() error {
	if item.reader != nil {
		if r, ok := item.reader.(zlib.Resetter); ok && r.Reset(item.src, nil) == nil {
			return nil
		}
		item.reader.Close()
		item.reader = nil
	}

	r, err := zlib.NewReader(item.src)
	if err != nil {
		return err
	}
	item.reader = r
	return nil
}

// Inflate decompresses src, which must hold at most limit bytes once
// decompressed. A longer stream fails with ErrTooLarge.
func Inflate(src []byte, limit int) ([]byte, error) {
	if len(src) == 0 {
		return nil, ErrCorrupted
	}

	limit = max(limit, 0)

	var dst bytes.Buffer
	dst.Grow(min(limit, len(src)*maxRatio))

	if !IsZlib(src) {
		fr := flate.NewReader(bytes.NewReader(src))
		defer fr.Close()
		return copyLimited(&dst, fr, limit)
	}

	item := zlibReaderPool.Get().(*readerPoolItem)
	defer zlibReaderPool.Put(item)

	item.src.Reset(src)
	if err := item.reset(); err != nil {
		return nil, errors.Join(ErrCorrupted, err)
	}

	return copyLimited(&dst, item.reader, limit)
}

func copyLimited(dst *bytes.Buffer, r io.Reader, limit int) ([]byte, error) {
	n, err := io.Copy(dst, io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, errors.Join(ErrCorrupted, err)
	}
	if n > int64(limit) {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return dst.Bytes(), nil
}

// maxRatio is the largest expansion DEFLATE can achieve.
const maxRatio = 1032
