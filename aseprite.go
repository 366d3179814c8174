// Package aseprite implements a decoder for Aseprite sprite files.
//
// A file is decoded into a Document that mirrors the file's own structure:
// frames own layers, and layers own the cels drawn on them in that frame.
// Layers are declared once, in the first frame, and every following frame
// starts with the same layers and no cels. Cel pixels are kept in the
// document's color depth and can be resolved against the palette with
// Document.Color.
//
// Aseprite file format spec: https://github.com/aseprite/aseprite/blob/main/docs/ase-file-specs.md
package aseprite

import (
	"fmt"
	"image/color"
	"log/slog"
	"time"

	"github.com/askeladdk/asefile/internal/cursor"
	"github.com/google/uuid"
)

// ColorDepth is the number of bits per pixel. It is fixed for a document.
type ColorDepth uint16

const (
	Indexed   ColorDepth = 8
	Grayscale ColorDepth = 16
	RGBA      ColorDepth = 32
)

// BytesPerPixel returns the size of a single pixel.
func (d ColorDepth) BytesPerPixel() int {
	return int(d) / 8
}

func (d ColorDepth) valid() bool {
	return d == Indexed || d == Grayscale || d == RGBA
}

func (d ColorDepth) String() string {
	switch d {
	case Indexed:
		return "indexed"
	case Grayscale:
		return "grayscale"
	case RGBA:
		return "rgba"
	}
	return fmt.Sprintf("ColorDepth(%d)", uint16(d))
}

// HeaderFlags are the flags of the file header.
type HeaderFlags uint32

const (
	// LayerOpacityValid is set when the layer opacity fields are meaningful.
	LayerOpacityValid HeaderFlags = 1 << 0
	// GroupOpacityValid is set when group layers carry their own opacity.
	GroupOpacityValid HeaderFlags = 1 << 1
	// LayerUUIDs is set when every layer chunk ends with a UUID.
	LayerUUIDs HeaderFlags = 1 << 2
)

// Grid is the editor grid stored in the header.
type Grid struct {
	X, Y          int16
	Width, Height uint16
}

// Header is the fixed size file header.
type Header struct {
	// FileSize is the declared size of the whole file in bytes.
	FileSize uint32

	// Frames is the number of frames in the file.
	Frames uint16

	// Width and Height are the canvas dimensions in pixels.
	Width, Height uint16

	// Depth is the color depth of every pixel in the file.
	Depth ColorDepth

	Flags HeaderFlags

	// Speed is deprecated in favor of the per-frame duration.
	Speed uint16

	// Transparent is the palette index of the transparent color.
	// Only meaningful for Indexed documents.
	Transparent uint8

	// Colors is the number of colors in the palette.
	Colors uint16

	// PixelWidth and PixelHeight form the pixel aspect ratio.
	// If either is zero the ratio is 1:1.
	PixelWidth, PixelHeight uint8

	Grid Grid
}

// BlendMode enumerates the layer blending modes.
type BlendMode uint16

const (
	BlendNormal BlendMode = iota
	BlendMultiply
	BlendScreen
	BlendOverlay
	BlendDarken
	BlendLighten
	BlendColorDodge
	BlendColorBurn
	BlendHardLight
	BlendSoftLight
	BlendDifference
	BlendExclusion
	BlendHue
	BlendSaturation
	BlendColor
	BlendLuminosity
	BlendAddition
	BlendSubtract
	BlendDivide
)

var blendModeNames = [...]string{
	"normal",
	"multiply",
	"screen",
	"overlay",
	"darken",
	"lighten",
	"color-dodge",
	"color-burn",
	"hard-light",
	"soft-light",
	"difference",
	"exclusion",
	"hue",
	"saturation",
	"color",
	"luminosity",
	"addition",
	"subtract",
	"divide",
}

func (m BlendMode) String() string {
	if int(m) < len(blendModeNames) {
		return blendModeNames[m]
	}
	return fmt.Sprintf("BlendMode(%d)", uint16(m))
}

// LayerType enumerates the kinds of layers.
type LayerType uint16

const (
	LayerNormal LayerType = iota
	LayerGroup
	LayerTilemap
)

// LayerFlags are the flags of a layer.
type LayerFlags uint16

const (
	LayerVisible LayerFlags = 1 << iota
	LayerEditable
	LayerLockMovement
	LayerBackground
	LayerPreferLinkedCels
	LayerCollapsed
	LayerReference
)

// Layer is a layer of a single frame.
type Layer struct {
	// Name is the name of the layer. Can be duplicate.
	Name string

	Flags LayerFlags

	Type LayerType

	// ChildLevel is the nesting depth of the layer in the group tree.
	ChildLevel int16

	BlendMode BlendMode

	Opacity uint8

	// Tileset is the tileset index of a LayerTilemap layer.
	Tileset int32

	// UUID is only set when the header has the LayerUUIDs flag.
	UUID uuid.UUID

	// Cels lists the cels drawn on this layer in this frame.
	Cels []Cel

	UserData UserData
}

// Visible reports whether the layer is visible.
func (l *Layer) Visible() bool {
	return l.Flags&LayerVisible != 0
}

// Reference reports whether the layer is a reference layer.
func (l *Layer) Reference() bool {
	return l.Flags&LayerReference != 0
}

// shape returns a copy of l without cels.
func (l *Layer) shape() Layer {
	s := *l
	s.Cels = nil
	s.UserData = l.UserData.clone()
	return s
}

// CelType enumerates the encodings of cel pixel data.
type CelType uint16

const (
	CelRaw CelType = iota
	CelLinked
	CelCompressed
	CelCompressedTilemap
)

// Cel is the content of one layer in one frame.
type Cel struct {
	// LayerIndex is the index of the layer in Frame.Layers.
	LayerIndex int

	Type CelType

	// X and Y are the position of the cel on the canvas.
	// The file format stores them unsigned.
	X, Y uint16

	// Z is the z-index offset relative to the layer order.
	Z int16

	Opacity uint8

	// Width and Height are the dimensions of the pixel data.
	Width, Height int

	// LinkedFrame is the frame a CelLinked cel takes its pixels from.
	LinkedFrame int

	// Pix holds Width*Height pixels row by row in the document's color
	// depth. See Pixel.
	Pix []byte

	UserData UserData

	bpp int
}

// Frame is a single frame of the sprite.
type Frame struct {
	// Duration is the time the frame is displayed in an animation.
	Duration time.Duration

	// Layers lists the layers of the frame from bottom to top.
	Layers []Layer

	UserData UserData
}

// LoopDirection enumerates all loop animation directions.
type LoopDirection uint8

const (
	Forward LoopDirection = iota
	Reverse
	PingPong
	PingPongReverse
)

// Tag is an animation tag.
type Tag struct {
	// Name is the name of the tag. Can be duplicate.
	Name string

	// From is the first frame in the animation.
	From int

	// To is the last frame in the animation, inclusive.
	To int

	// Direction is the looping direction of the animation.
	Direction LoopDirection

	// Repeat specifies how many times to repeat the animation.
	// Zero means infinitely.
	Repeat int

	// Color is the tag color.
	Color color.NRGBA
}

// ColorProfileType enumerates the kinds of color profiles.
type ColorProfileType uint16

const (
	ProfileNone ColorProfileType = iota
	ProfileSRGB
	ProfileICC
)

// ColorProfile is the color profile of the file.
type ColorProfile struct {
	Type ColorProfileType

	// Flags bit 0 selects the fixed Gamma.
	Flags uint16

	Gamma cursor.Fixed

	// ICC is the embedded ICC profile, unprocessed.
	ICC []byte
}

// Document holds the results of a decoded Aseprite file.
type Document struct {
	Header Header

	// Width and Height are copied from the header.
	Width, Height int

	// Frames lists all frames in order.
	Frames []Frame

	// Tags lists all animation tags.
	Tags []Tag

	// Palette maps color indices to colors.
	Palette Palette

	// ColorProfile is the last color profile seen, if any.
	ColorProfile *ColorProfile

	log *slog.Logger
}
