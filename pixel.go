package aseprite

import (
	"image"
	"image/color"
	"log/slog"
)

// Placeholder is substituted for palette indices that have no color.
var Placeholder = color.NRGBA{R: 0xc8, G: 0x4c, B: 0xc6, A: 0xff}

// Pixel is a single pixel in the document's color depth.
//
// RGBA pixels are four bytes (red, green, blue, alpha), grayscale pixels
// are two bytes (value, alpha) and indexed pixels are a single palette index.
type Pixel []byte

// Index returns the palette index of an indexed pixel.
func (p Pixel) Index() uint8 {
	return p[0]
}

// NRGBA returns the color of an RGBA or grayscale pixel.
// Indexed pixels need a palette, see Document.Color.
func (p Pixel) NRGBA() color.NRGBA {
	switch len(p) {
	case 4:
		return color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
	case 2:
		return color.NRGBA{R: p[0], G: p[0], B: p[0], A: p[1]}
	}
	return color.NRGBA{}
}

// Len returns the number of pixels in c.Pix.
func (c *Cel) Len() int {
	if c.bpp == 0 {
		return 0
	}
	return len(c.Pix) / c.bpp
}

// Pixel returns the i-th pixel of the cel. It shares memory with c.Pix.
func (c *Cel) Pixel(i int) Pixel {
	return Pixel(c.Pix[i*c.bpp : (i+1)*c.bpp : (i+1)*c.bpp])
}

// Palette maps color indices to colors. Indices without an entry are absent.
type Palette map[int]color.NRGBA

// Color returns the color at index i, or Placeholder if there is none.
func (p Palette) Color(i int) color.NRGBA {
	if c, ok := p[i]; ok {
		return c
	}
	return Placeholder
}

// Len returns one past the highest index in the palette.
func (p Palette) Len() int {
	n := 0
	for i := range p {
		n = max(n, i+1)
	}
	return n
}

// colorPalette returns the first n entries of the palette as a
// color.Palette, with transparent as the transparent index.
func (p Palette) colorPalette(n int, transparent int) color.Palette {
	pal := make(color.Palette, n)
	for i := range pal {
		pal[i] = p.Color(i)
	}
	if transparent >= 0 && transparent < n {
		pal[transparent] = color.NRGBA{}
	}
	return pal
}

// Color resolves a pixel to a color.
//
// Indexed pixels are looked up in the palette. The header's transparent
// index resolves to transparent, and indices missing from the palette
// resolve to Placeholder.
func (doc *Document) Color(p Pixel) color.NRGBA {
	if len(p) != 1 {
		return p.NRGBA()
	}

	i := p.Index()
	if i == doc.Header.Transparent {
		return color.NRGBA{}
	}

	c, ok := doc.Palette[int(i)]
	if !ok {
		doc.logger().Warn("invalid color index", "index", i)
		return Placeholder
	}

	return c
}

// CelImage returns the pixels of a cel as an image placed at the cel's
// position on the canvas. Indexed documents yield an *image.Paletted,
// all others an *image.NRGBA.
func (doc *Document) CelImage(c *Cel) image.Image {
	bounds := image.Rect(int(c.X), int(c.Y), int(c.X)+c.Width, int(c.Y)+c.Height)
	npix := min(c.Len(), bounds.Dx()*bounds.Dy())

	if doc.Header.Depth == Indexed {
		pal := doc.Palette.colorPalette(256, int(doc.Header.Transparent))
		img := image.NewPaletted(bounds, pal)
		for i := 0; i < npix; i++ {
			img.Pix[i] = c.Pixel(i).Index()
		}
		return img
	}

	img := image.NewNRGBA(bounds)
	for i := 0; i < npix; i++ {
		col := c.Pixel(i).NRGBA()
		copy(img.Pix[i*4:], []byte{col.R, col.G, col.B, col.A})
	}
	return img
}

func (doc *Document) logger() *slog.Logger {
	if doc.log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return doc.log
}
