package aseprite

import (
	"bytes"
	"encoding/binary"
	"image/color"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
)

// enc builds little-endian test files.
type enc struct {
	buf []byte
}

func (e *enc) u8(v uint8) *enc {
	e.buf = append(e.buf, v)
	return e
}

func (e *enc) u16(v uint16) *enc {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
	return e
}

func (e *enc) i16(v int16) *enc {
	return e.u16(uint16(v))
}

func (e *enc) u32(v uint32) *enc {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
	return e
}

func (e *enc) i32(v int32) *enc {
	return e.u32(uint32(v))
}

func (e *enc) u64(v uint64) *enc {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
	return e
}

func (e *enc) raw(b ...byte) *enc {
	e.buf = append(e.buf, b...)
	return e
}

func (e *enc) zero(n int) *enc {
	return e.raw(make([]byte, n)...)
}

func (e *enc) str(s string) *enc {
	return e.u16(uint16(len(s))).raw([]byte(s)...)
}

func testHeader(depth ColorDepth) Header {
	return Header{
		Width:       4,
		Height:      4,
		Depth:       depth,
		Flags:       LayerOpacityValid,
		Speed:       100,
		Colors:      32,
		PixelWidth:  1,
		PixelHeight: 1,
		Grid:        Grid{X: -2, Y: 3, Width: 16, Height: 16},
	}
}

func encodeHeader(h Header) []byte {
	var e enc
	e.u32(h.FileSize).u16(headerMagic).u16(h.Frames).
		u16(h.Width).u16(h.Height).u16(uint16(h.Depth)).
		u32(uint32(h.Flags)).u16(h.Speed).u32(0).u32(0).
		u8(h.Transparent).zero(3).u16(h.Colors).
		u8(h.PixelWidth).u8(h.PixelHeight).
		i16(h.Grid.X).i16(h.Grid.Y).u16(h.Grid.Width).u16(h.Grid.Height).
		zero(84)
	return e.buf
}

// encodeFile assembles a file from a header and encoded frames.
// The frame count and file size are filled in.
func encodeFile(h Header, frames ...[]byte) []byte {
	body := bytes.Join(frames, nil)
	h.Frames = uint16(len(frames))
	h.FileSize = uint32(headerSize + len(body))
	return append(encodeHeader(h), body...)
}

func encodeFrameCounts(nold uint16, nnew uint32, durMS uint16, chunks ...[]byte) []byte {
	body := bytes.Join(chunks, nil)
	var e enc
	e.u32(uint32(16 + len(body))).u16(frameMagic).u16(nold).u16(durMS).zero(2).u32(nnew).raw(body...)
	return e.buf
}

func encodeFrame(durMS uint16, chunks ...[]byte) []byte {
	return encodeFrameCounts(uint16(len(chunks)), 0, durMS, chunks...)
}

func encodeChunk(typ chunkType, body []byte) []byte {
	var e enc
	e.u32(uint32(chunkHeaderSize + len(body))).u16(uint16(typ)).raw(body...)
	return e.buf
}

func layerChunk(l Layer) []byte {
	var e enc
	e.u16(uint16(l.Flags)).u16(uint16(l.Type)).i16(l.ChildLevel).
		u16(0).u16(0).u16(uint16(l.BlendMode)).u8(l.Opacity).zero(3).str(l.Name)
	if l.Type == LayerTilemap {
		e.i32(l.Tileset)
	}
	return encodeChunk(chunkLayer, e.buf)
}

func visibleLayer(name string) []byte {
	return layerChunk(Layer{Name: name, Flags: LayerVisible | LayerEditable, Opacity: 255})
}

func celHeader(layer int16, x, y uint16, opacity uint8, typ CelType, z int16) *enc {
	e := &enc{}
	return e.i16(layer).u16(x).u16(y).u8(opacity).u16(uint16(typ)).u16(uint16(z)).zero(5)
}

func rawCelChunk(layer int16, x, y uint16, w, h int16, pix []byte) []byte {
	e := celHeader(layer, x, y, 255, CelRaw, 0).i16(w).i16(h).raw(pix...)
	return encodeChunk(chunkCel, e.buf)
}

func zlibBytes(t *testing.T, src []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(src)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func compressedCelChunk(t *testing.T, layer int16, x, y uint16, w, h int16, pix []byte) []byte {
	e := celHeader(layer, x, y, 255, CelCompressed, 0).i16(w).i16(h).raw(zlibBytes(t, pix)...)
	return encodeChunk(chunkCel, e.buf)
}

func linkedCelChunk(layer, frame int16) []byte {
	return encodeChunk(chunkCel, celHeader(layer, 0, 0, 255, CelLinked, 0).i16(frame).buf)
}

type namedColor struct {
	color.NRGBA
	name string
}

func paletteChunk(first int32, colors ...namedColor) []byte {
	var e enc
	e.i32(first + int32(len(colors))).i32(first).i32(first + int32(len(colors)) - 1).zero(8)
	for _, c := range colors {
		if c.name != "" {
			e.u16(1).raw(c.R, c.G, c.B, c.A).str(c.name)
		} else {
			e.u16(0).raw(c.R, c.G, c.B, c.A)
		}
	}
	return encodeChunk(chunkPalette, e.buf)
}

type oldPacket struct {
	skip   uint8
	colors [][3]byte
}

func oldPaletteChunk(typ chunkType, packets ...oldPacket) []byte {
	var e enc
	e.i16(int16(len(packets)))
	for _, p := range packets {
		e.u8(p.skip).u8(uint8(len(p.colors)))
		for _, c := range p.colors {
			e.raw(c[:]...)
		}
	}
	return encodeChunk(typ, e.buf)
}

// prop is an encoded property of a properties map.
type prop struct {
	key     string
	typ     ValueType
	payload []byte
}

func propsMap(ps ...prop) []byte {
	var body enc
	for _, p := range ps {
		body.str(p.key).u16(uint16(p.typ)).raw(p.payload...)
	}
	var e enc
	e.i32(int32(8 + len(body.buf))).i32(int32(len(ps))).raw(body.buf...)
	return e.buf
}

// userDataChunk encodes ud. Properties are given pre-encoded in props and
// are written when ud.Flags has UserDataProperties.
func userDataChunk(ud UserData, props []byte) []byte {
	var e enc
	e.u32(uint32(ud.Flags))
	if ud.Flags&UserDataText != 0 {
		e.str(ud.Text)
	}
	if ud.Flags&UserDataColor != 0 {
		e.raw(ud.Color.R, ud.Color.G, ud.Color.B, ud.Color.A)
	}
	if ud.Flags&UserDataProperties != 0 {
		e.raw(props...)
	}
	return encodeChunk(chunkUserData, e.buf)
}

// padChunk appends n zero bytes to an encoded chunk and grows its
// declared size to match.
func padChunk(chunk []byte, n int) []byte {
	out := append(append([]byte(nil), chunk...), make([]byte, n)...)
	binary.LittleEndian.PutUint32(out, uint32(len(out)))
	return out
}

func textUserData(text string) []byte {
	return userDataChunk(UserData{Flags: UserDataText, Text: text}, nil)
}

func colorUserData(c color.NRGBA) []byte {
	return userDataChunk(UserData{Flags: UserDataColor, Color: c}, nil)
}

func tagsChunk(ts ...Tag) []byte {
	var e enc
	e.u16(uint16(len(ts))).zero(8)
	for _, t := range ts {
		e.i16(int16(t.From)).i16(int16(t.To)).u8(uint8(t.Direction)).i16(int16(t.Repeat)).
			zero(6).raw(t.Color.R, t.Color.G, t.Color.B).zero(1).str(t.Name)
	}
	return encodeChunk(chunkTags, e.buf)
}

func colorProfileChunk(p ColorProfile) []byte {
	var e enc
	e.u16(uint16(p.Type)).u16(p.Flags).i32(int32(p.Gamma)).zero(8)
	if p.Type == ProfileICC {
		e.i32(int32(len(p.ICC))).raw(p.ICC...)
	}
	return encodeChunk(chunkColorProfile, e.buf)
}
