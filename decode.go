package aseprite

import (
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"

	"github.com/askeladdk/asefile/internal/cursor"
)

var (
	ErrInvalidMagic            = errors.New("aseprite: invalid magic number")
	ErrInvalidFrameMagic       = errors.New("aseprite: invalid frame magic number")
	ErrInvalidColorDepth       = errors.New("aseprite: invalid color depth")
	ErrInvalidPadding          = errors.New("aseprite: invalid header padding")
	ErrUnsupportedUserDataType = errors.New("aseprite: unsupported user data type")
	ErrDecompress              = errors.New("aseprite: cel decompression failed")

	// ErrOutOfBounds is returned when the file is truncated or a length
	// field points past its end.
	ErrOutOfBounds = cursor.ErrOutOfBounds

	// ErrInvalidUTF8 is returned when a string is not valid UTF-8.
	ErrInvalidUTF8 = cursor.ErrInvalidUTF8
)

type options struct {
	logger           *slog.Logger
	modernChunkCount bool
	linkedCels       bool
}

// Option configures the decoder.
type Option func(*options)

// WithLogger sets the logger that receives diagnostics about recoverable
// problems, such as unsupported chunks. The default discards them.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithModernChunkCount controls whether a frame whose 16-bit chunk count is
// 0xFFFF takes its chunk count from the 32-bit field. Enabled by default.
func WithModernChunkCount(enabled bool) Option {
	return func(o *options) {
		o.modernChunkCount = enabled
	}
}

// WithLinkedCels controls whether linked cels receive the dimensions and
// pixels of the cel they link to. Enabled by default.
func WithLinkedCels(enabled bool) Option {
	return func(o *options) {
		o.linkedCels = enabled
	}
}

func newOptions(opts []Option) options {
	o := options{
		modernChunkCount: true,
		linkedCels:       true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// DecodeBytes decodes an Aseprite file held in buf.
// The document does not retain buf.
func DecodeBytes(buf []byte, opts ...Option) (*Document, error) {
	o := newOptions(opts)

	doc := &Document{
		Palette: make(Palette),
		log:     o.logger,
	}

	d := decoder{
		c:    cursor.New(buf),
		doc:  doc,
		opts: o,
		log:  o.logger,
	}

	if err := d.decode(); err != nil {
		return nil, err
	}

	return doc, nil
}

// Decode reads an Aseprite file from r until EOF and decodes it.
func Decode(r io.Reader, opts ...Option) (*Document, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(buf, opts...)
}

// DecodeFile decodes the Aseprite file with the given name.
func DecodeFile(name string, opts ...Option) (*Document, error) {
	buf, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(buf, opts...)
}

// DecodeConfig returns the color model and canvas dimensions of an Aseprite
// image without decoding the entire image.
//
// Indexed images report a palette of Header.Colors black entries with the
// transparent index set to transparent, since the palette itself is stored
// in the frames.
func DecodeConfig(r io.Reader) (image.Config, error) {
	var raw [headerSize]byte

	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return image.Config{}, err
	}

	h, err := decodeHeader(cursor.New(raw[:]))
	if err != nil {
		return image.Config{}, err
	}

	var colorModel color.Model = color.NRGBAModel

	if h.Depth == Indexed {
		n := int(h.Colors)
		if n == 0 {
			n = 256
		}
		pal := make(color.Palette, max(n, int(h.Transparent)+1))
		for i := range pal {
			pal[i] = color.Black
		}
		pal[h.Transparent] = color.Transparent
		colorModel = pal
	}

	return image.Config{
		ColorModel: colorModel,
		Width:      int(h.Width),
		Height:     int(h.Height),
	}, nil
}
