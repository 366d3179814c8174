package aseprite

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/askeladdk/asefile/internal/cursor"
)

const (
	headerMagic = 0xA5E0
	frameMagic  = 0xF1FA

	// headerSize is the size of the file header in bytes.
	headerSize = 128
)

type decoder struct {
	c      *cursor.Cursor
	header *Header
	doc    *Document
	opts   options
	log    *slog.Logger
}

func decodeHeader(c *cursor.Cursor) (Header, error) {
	var (
		h            Header
		magic, depth uint16
		flags        uint32
		pad0, pad1   uint32
		err          error
	)

	if h.FileSize, err = c.ReadUint32(); err != nil {
		return h, err
	}
	if magic, err = c.ReadUint16(); err != nil {
		return h, err
	}
	if magic != headerMagic {
		return h, fmt.Errorf("%w: 0x%04x", ErrInvalidMagic, magic)
	}
	if h.Frames, err = c.ReadUint16(); err != nil {
		return h, err
	}
	if h.Width, err = c.ReadUint16(); err != nil {
		return h, err
	}
	if h.Height, err = c.ReadUint16(); err != nil {
		return h, err
	}
	if depth, err = c.ReadUint16(); err != nil {
		return h, err
	}
	if h.Depth = ColorDepth(depth); !h.Depth.valid() {
		return h, fmt.Errorf("%w: %d", ErrInvalidColorDepth, depth)
	}
	if flags, err = c.ReadUint32(); err != nil {
		return h, err
	}
	h.Flags = HeaderFlags(flags)
	if h.Speed, err = c.ReadUint16(); err != nil {
		return h, err
	}
	if pad0, err = c.ReadUint32(); err != nil {
		return h, err
	}
	if pad1, err = c.ReadUint32(); err != nil {
		return h, err
	}
	if pad0 != 0 || pad1 != 0 {
		return h, ErrInvalidPadding
	}
	if h.Transparent, err = c.ReadByte(); err != nil {
		return h, err
	}
	if err = c.Skip(3); err != nil {
		return h, err
	}
	if h.Colors, err = c.ReadUint16(); err != nil {
		return h, err
	}
	if h.PixelWidth, err = c.ReadByte(); err != nil {
		return h, err
	}
	if h.PixelHeight, err = c.ReadByte(); err != nil {
		return h, err
	}
	if h.Grid.X, err = c.ReadInt16(); err != nil {
		return h, err
	}
	if h.Grid.Y, err = c.ReadInt16(); err != nil {
		return h, err
	}
	if h.Grid.Width, err = c.ReadUint16(); err != nil {
		return h, err
	}
	if h.Grid.Height, err = c.ReadUint16(); err != nil {
		return h, err
	}
	err = c.Skip(84)
	return h, err
}

// target is the object that a user data chunk is attached to.
type target struct {
	kind  targetKind
	layer int
	cel   int
}

type targetKind uint8

const (
	targetNone targetKind = iota
	targetFrame
	targetLayer
	targetCel
)

func (t target) userData(fr *Frame) *UserData {
	switch t.kind {
	case targetFrame:
		return &fr.UserData
	case targetLayer:
		return &fr.Layers[t.layer].UserData
	case targetCel:
		return &fr.Layers[t.layer].Cels[t.cel].UserData
	}
	return nil
}

// frame decodes the frame at index i.
func (d *decoder) frame(i int) (Frame, error) {
	var (
		fr                 Frame
		magic, nold, durMS uint16
		nnew               uint32
		err                error
	)

	c := d.c

	// The frame size is advisory.
	if _, err = c.ReadInt32(); err != nil {
		return fr, err
	}
	if magic, err = c.ReadUint16(); err != nil {
		return fr, err
	}
	if magic != frameMagic {
		return fr, fmt.Errorf("%w: 0x%04x", ErrInvalidFrameMagic, magic)
	}
	if nold, err = c.ReadUint16(); err != nil {
		return fr, err
	}
	if durMS, err = c.ReadUint16(); err != nil {
		return fr, err
	}
	if err = c.Skip(2); err != nil {
		return fr, err
	}
	if nnew, err = c.ReadUint32(); err != nil {
		return fr, err
	}

	nchunks := int(nold)
	if d.opts.modernChunkCount && nold == 0xFFFF && nnew != 0 {
		nchunks = int(nnew)
	}

	fr.Duration = time.Duration(durMS) * time.Millisecond

	if i > 0 {
		first := d.doc.Frames[0].Layers
		fr.Layers = make([]Layer, len(first))
		for j := range first {
			fr.Layers[j] = first[j].shape()
		}
	}

	var (
		last       = target{kind: targetFrame}
		hasPalette bool
		legacy     *oldPalette
	)

	for j := 0; j < nchunks; j++ {
		ch, err := d.chunk()
		if err != nil {
			return fr, err
		}

		switch ch := ch.(type) {
		case *ColorProfile:
			d.doc.ColorProfile = ch
		case *oldPalette:
			legacy = ch
		case *palette:
			hasPalette = true
			for k, e := range ch.entries {
				d.doc.Palette[int(ch.first)+k] = e.color
			}
		case *Layer:
			fr.Layers = append(fr.Layers, *ch)
			last = target{kind: targetLayer, layer: len(fr.Layers) - 1}
		case *cel:
			last = d.addCel(i, &fr, ch)
		case *UserData:
			if ud := last.userData(&fr); ud != nil {
				ud.merge(ch)
			}
		case tags:
			d.doc.Tags = append(d.doc.Tags, ch...)
			last = target{}
		}
	}

	if !hasPalette && legacy != nil {
		d.applyOldPalette(legacy)
	}

	return fr, nil
}

// addCel adds a cel to its layer in frame fr and returns the new user data
// target. Cels referring to a missing layer are dropped.
func (d *decoder) addCel(i int, fr *Frame, ch *cel) target {
	li := ch.LayerIndex
	if li < 0 || li >= len(fr.Layers) {
		d.log.Error("cel found without a layer", "frame", i, "layer", li)
		return target{}
	}

	if ch.Type == CelLinked && d.opts.linkedCels {
		d.resolveLink(i, &ch.Cel)
	}

	l := &fr.Layers[li]
	l.Cels = append(l.Cels, ch.Cel)
	return target{kind: targetCel, layer: li, cel: len(l.Cels) - 1}
}

// resolveLink gives a linked cel the pixels of the cel it links to.
func (d *decoder) resolveLink(i int, c *Cel) {
	if c.LinkedFrame < 0 || c.LinkedFrame >= i {
		d.log.Debug("unresolved linked cel", "frame", i, "link", c.LinkedFrame)
		return
	}

	layers := d.doc.Frames[c.LinkedFrame].Layers
	if c.LayerIndex >= len(layers) || len(layers[c.LayerIndex].Cels) == 0 {
		d.log.Debug("unresolved linked cel", "frame", i, "link", c.LinkedFrame)
		return
	}

	src := layers[c.LayerIndex].Cels[len(layers[c.LayerIndex].Cels)-1]
	c.Width = src.Width
	c.Height = src.Height
	c.Pix = src.Pix
	c.bpp = src.bpp
}

// applyOldPalette writes a legacy palette to the document. Each packet's
// skip counts from the index after the previous packet's last color, not
// from index 0.
func (d *decoder) applyOldPalette(p *oldPalette) {
	index := 0
	for _, packet := range p.packets {
		index += packet.skip
		for _, c := range packet.colors {
			d.doc.Palette[index] = c
			index++
		}
	}
}

// decode decodes the header and all frames.
func (d *decoder) decode() error {
	h, err := decodeHeader(d.c)
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}

	d.header = &d.doc.Header
	d.doc.Header = h
	d.doc.Width = int(h.Width)
	d.doc.Height = int(h.Height)
	d.doc.Frames = make([]Frame, 0, h.Frames)

	for i := 0; i < int(h.Frames); i++ {
		fr, err := d.frame(i)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		d.doc.Frames = append(d.doc.Frames, fr)
	}

	return nil
}
