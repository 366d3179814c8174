package aseprite

import (
	"fmt"
	"image/color"

	"github.com/askeladdk/asefile/internal/inflate"
)

type chunkType uint16

const (
	chunkOldPalette   chunkType = 0x0004
	chunkOldPalette64 chunkType = 0x0011
	chunkLayer        chunkType = 0x2004
	chunkCel          chunkType = 0x2005
	chunkCelExtra     chunkType = 0x2006
	chunkColorProfile chunkType = 0x2007
	chunkExternalFile chunkType = 0x2008
	chunkMask         chunkType = 0x2016
	chunkPath         chunkType = 0x2017
	chunkTags         chunkType = 0x2018
	chunkPalette      chunkType = 0x2019
	chunkUserData     chunkType = 0x2020
	chunkSlice        chunkType = 0x2022
	chunkTileset      chunkType = 0x2023
)

var chunkNames = map[chunkType]string{
	chunkOldPalette:   "old palette",
	chunkOldPalette64: "old palette (0-63)",
	chunkLayer:        "layer",
	chunkCel:          "cel",
	chunkCelExtra:     "cel extra",
	chunkColorProfile: "color profile",
	chunkExternalFile: "external files",
	chunkMask:         "mask",
	chunkPath:         "path",
	chunkTags:         "tags",
	chunkPalette:      "palette",
	chunkUserData:     "user data",
	chunkSlice:        "slice",
	chunkTileset:      "tileset",
}

func (t chunkType) String() string {
	if name, ok := chunkNames[t]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", uint16(t))
}

// chunkHeaderSize is the size of the chunk size and type fields.
const chunkHeaderSize = 6

// celHeaderSize is the size of the fields that precede the pixel data of a
// compressed cel, including the chunk header.
const celHeaderSize = chunkHeaderSize + 16 + 4

type palettePacket struct {
	skip   int
	colors []color.NRGBA
}

// oldPalette is a 0x0004 or 0x0011 chunk.
type oldPalette struct {
	packets []palettePacket
}

type paletteEntry struct {
	color color.NRGBA
	name  string
}

// palette is a 0x2019 chunk.
type palette struct {
	size    int32
	first   int32
	entries []paletteEntry
}

// cel is a 0x2005 chunk. Cel.LayerIndex tells which layer it belongs to.
type cel struct {
	Cel
}

// tags is a 0x2018 chunk.
type tags []Tag

// chunk reads the next chunk. It returns a nil chunk if the chunk type is
// not supported.
func (d *decoder) chunk() (any, error) {
	start := d.c.Pos()

	size, err := d.c.ReadInt32()
	if err != nil {
		return nil, err
	}

	rawType, err := d.c.ReadInt16()
	if err != nil {
		return nil, err
	}

	typ := chunkType(uint16(rawType))

	var ch any

	switch typ {
	case chunkOldPalette, chunkOldPalette64:
		ch, err = d.parseOldPalette(typ == chunkOldPalette64)
	case chunkLayer:
		ch, err = d.parseLayer()
	case chunkCel:
		var cl *cel
		if cl, err = d.parseCel(size); cl != nil {
			ch = cl
		}
	case chunkColorProfile:
		ch, err = d.parseColorProfile()
	case chunkPalette:
		ch, err = d.parsePalette()
	case chunkUserData:
		ch, err = d.readUserData()
	case chunkTags:
		ch, err = d.parseTags(start, size)
	default:
		d.log.Warn("skipping unsupported chunk", "type", typ, "offset", start, "size", size)
		if err := d.c.Skip(int(size) - chunkHeaderSize); err != nil {
			return nil, fmt.Errorf("chunk %v: %w", typ, err)
		}
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("chunk %v at offset %d: %w", typ, start, err)
	}

	d.realign(typ, start, size)

	return ch, nil
}

// realign skips bytes of a chunk that were not consumed by its parser.
func (d *decoder) realign(typ chunkType, start int, size int32) {
	end := start + int(size)
	if rest := end - d.c.Pos(); rest > 0 && rest <= d.c.Len() {
		d.log.Debug("skipping trailing chunk bytes", "type", typ, "offset", start, "bytes", rest)
		_ = d.c.Skip(rest)
	}
}

func (d *decoder) parseOldPalette(sixBit bool) (*oldPalette, error) {
	npackets, err := d.c.ReadInt16()
	if err != nil {
		return nil, err
	}

	var p oldPalette

	for i := int16(0); i < npackets; i++ {
		skip, err := d.c.ReadByte()
		if err != nil {
			return nil, err
		}

		ncolors, err := d.c.ReadByte()
		if err != nil {
			return nil, err
		}

		n := int(ncolors)
		if n == 0 {
			n = 256
		}

		raw, err := d.c.ReadBytes(3 * n)
		if err != nil {
			return nil, err
		}

		packet := palettePacket{
			skip:   int(skip),
			colors: make([]color.NRGBA, n),
		}

		for j := range packet.colors {
			rgb := raw[3*j : 3*j+3]
			if sixBit {
				packet.colors[j] = color.NRGBA{R: scale6(rgb[0]), G: scale6(rgb[1]), B: scale6(rgb[2]), A: 0xff}
			} else {
				packet.colors[j] = color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff}
			}
		}

		p.packets = append(p.packets, packet)
	}

	return &p, nil
}

// scale6 scales a 0-63 color component to 0-255.
func scale6(v byte) byte {
	return byte(min(int(v)*4, 0xff))
}

func (d *decoder) parseLayer() (*Layer, error) {
	var (
		l     Layer
		flags uint16
		typ   int16
		blend int16
		err   error
	)

	c := d.c

	if flags, err = c.ReadUint16(); err != nil {
		return nil, err
	}
	if typ, err = c.ReadInt16(); err != nil {
		return nil, err
	}
	if l.ChildLevel, err = c.ReadInt16(); err != nil {
		return nil, err
	}
	// default width and height are ignored
	if err = c.Skip(4); err != nil {
		return nil, err
	}
	if blend, err = c.ReadInt16(); err != nil {
		return nil, err
	}
	if l.Opacity, err = c.ReadByte(); err != nil {
		return nil, err
	}
	if err = c.Skip(3); err != nil {
		return nil, err
	}
	if l.Name, err = c.ReadString(); err != nil {
		return nil, err
	}

	l.Flags = LayerFlags(flags)
	l.Type = LayerType(typ)
	l.BlendMode = BlendMode(blend)

	if l.Type == LayerTilemap {
		if l.Tileset, err = c.ReadInt32(); err != nil {
			return nil, err
		}
	}

	if d.header.Flags&LayerUUIDs != 0 {
		if l.UUID, err = c.ReadUUID(); err != nil {
			return nil, err
		}
	}

	return &l, nil
}

func (d *decoder) parseCel(size int32) (*cel, error) {
	var (
		ch      cel
		layer   int16
		typ     int16
		z       uint16
		w, h    int16
		pix     []byte
		err     error
		c       = d.c
		readDim = func() error {
			if w, err = c.ReadInt16(); err != nil {
				return err
			}
			h, err = c.ReadInt16()
			return err
		}
	)

	if layer, err = c.ReadInt16(); err != nil {
		return nil, err
	}
	if ch.X, err = c.ReadUint16(); err != nil {
		return nil, err
	}
	if ch.Y, err = c.ReadUint16(); err != nil {
		return nil, err
	}
	if ch.Opacity, err = c.ReadByte(); err != nil {
		return nil, err
	}
	if typ, err = c.ReadInt16(); err != nil {
		return nil, err
	}
	if z, err = c.ReadUint16(); err != nil {
		return nil, err
	}
	if err = c.Skip(5); err != nil {
		return nil, err
	}

	ch.LayerIndex = int(layer)
	ch.Type = CelType(typ)
	ch.Z = int16(z)

	bpp := d.header.Depth.BytesPerPixel()

	switch ch.Type {
	case CelRaw:
		if err = readDim(); err != nil {
			return nil, err
		}
		if pix, err = c.ReadBytes(int(w) * int(h) * bpp); err != nil {
			return nil, err
		}
	case CelLinked:
		var frame int16
		if frame, err = c.ReadInt16(); err != nil {
			return nil, err
		}
		ch.LinkedFrame = int(frame)
	case CelCompressed:
		if err = readDim(); err != nil {
			return nil, err
		}

		var compressed []byte
		if compressed, err = c.ReadBytes(int(size) - celHeaderSize); err != nil {
			return nil, err
		}

		want := max(int(w), 0) * max(int(h), 0) * bpp
		if pix, err = inflate.Inflate(compressed, want); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecompress, err)
		}

		if len(pix) < want {
			d.log.Warn("short cel pixel data", "layer", layer, "width", w, "height", h, "bytes", len(pix), "want", want)
		}
	case CelCompressedTilemap:
		// tiles are not decoded
	default:
		d.log.Warn("skipping unsupported cel type", "layer", layer, "type", typ)
		return nil, nil
	}

	ch.Width = int(w)
	ch.Height = int(h)
	ch.Pix = pix[:len(pix)/bpp*bpp]
	ch.bpp = bpp

	return &ch, nil
}

func (d *decoder) parseColorProfile() (*ColorProfile, error) {
	var (
		p   ColorProfile
		typ uint16
		err error
	)

	c := d.c

	if typ, err = c.ReadUint16(); err != nil {
		return nil, err
	}
	if p.Flags, err = c.ReadUint16(); err != nil {
		return nil, err
	}
	if p.Gamma, err = c.ReadFixed(); err != nil {
		return nil, err
	}
	if err = c.Skip(8); err != nil {
		return nil, err
	}

	p.Type = ColorProfileType(typ)

	if p.Type == ProfileICC {
		n, err := c.ReadInt32()
		if err != nil {
			return nil, err
		}
		if p.ICC, err = c.ReadBytes(int(n)); err != nil {
			return nil, err
		}
	}

	return &p, nil
}

func (d *decoder) parsePalette() (*palette, error) {
	var (
		p    palette
		last int32
		err  error
	)

	c := d.c

	if p.size, err = c.ReadInt32(); err != nil {
		return nil, err
	}
	if p.first, err = c.ReadInt32(); err != nil {
		return nil, err
	}
	if last, err = c.ReadInt32(); err != nil {
		return nil, err
	}
	if err = c.Skip(8); err != nil {
		return nil, err
	}

	n := int64(last) - int64(p.first) + 1
	p.entries = make([]paletteEntry, 0, min(max(n, 0), int64(c.Len()/6)))

	for i := int64(0); i < n; i++ {
		flags, err := c.ReadUint16()
		if err != nil {
			return nil, err
		}

		var e paletteEntry
		if e.color, err = d.readNRGBA(); err != nil {
			return nil, err
		}

		if flags&1 != 0 {
			if e.name, err = c.ReadString(); err != nil {
				return nil, err
			}
		}

		p.entries = append(p.entries, e)
	}

	return &p, nil
}

// parseTags reads a tags chunk that starts at offset start.
func (d *decoder) parseTags(start int, size int32) (tags, error) {
	c := d.c

	n, err := c.ReadUint16()
	if err != nil {
		return nil, err
	}

	if err := c.Skip(8); err != nil {
		return nil, err
	}

	ts := make(tags, n)

	for i := range ts {
		t := &ts[i]

		from, err := c.ReadInt16()
		if err != nil {
			return nil, err
		}
		to, err := c.ReadInt16()
		if err != nil {
			return nil, err
		}
		dir, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		repeat, err := c.ReadInt16()
		if err != nil {
			return nil, err
		}
		if err := c.Skip(6); err != nil {
			return nil, err
		}
		rgb, err := c.ReadBytes(3)
		if err != nil {
			return nil, err
		}
		if err := c.Skip(1); err != nil {
			return nil, err
		}
		if t.Name, err = c.ReadString(); err != nil {
			return nil, err
		}

		t.From = int(from)
		t.To = int(to)
		t.Direction = LoopDirection(dir)
		t.Repeat = int(repeat)
		t.Color = color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff}
	}

	d.realign(chunkTags, start, size)
	d.peekTagColors(ts)

	return ts, nil
}

// peekTagColors applies the colors of the user data chunks that follow a
// tags chunk, one per tag, to the tags. The cursor is restored afterwards so
// that the user data chunks are read again as ordinary chunks.
func (d *decoder) peekTagColors(ts tags) {
	mark := d.c.Pos()
	defer func() { _ = d.c.Seek(mark) }()

	for i := range ts {
		start := d.c.Pos()

		size, err := d.c.ReadInt32()
		if err != nil {
			return
		}

		typ, err := d.c.ReadUint16()
		if err != nil || chunkType(typ) != chunkUserData {
			return
		}

		ud, err := d.readUserData()
		if err != nil {
			return
		}

		if ud.Flags&UserDataColor != 0 {
			ts[i].Color = ud.Color
		}

		d.realign(chunkUserData, start, size)
	}
}
