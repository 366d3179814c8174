// asedump prints the structure of Aseprite files.
//
// Usage:
//
//	asedump [--palette] [--userdata] [--verbose] <filename> [<filename> ...]
//
// Options:
//
//	-p, --palette   Print every palette entry.
//	-u, --userdata  Print user data attached to frames, layers and cels.
//	-v, --verbose   Log decoder diagnostics to stderr.
//	-h, --help      Show this help message.
//
// Exit codes:
//
//	0: All files decoded
//	1: One or more files failed to decode
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	aseprite "github.com/askeladdk/asefile"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:      "asedump",
		Usage:     "print the structure of Aseprite files",
		ArgsUsage: "<filename> [<filename> ...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "palette", Aliases: []string{"p"}, Usage: "print every palette entry"},
			&cli.BoolFlag{Name: "userdata", Aliases: []string{"u"}, Usage: "print user data"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log decoder diagnostics"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "asedump:", err)
		os.Exit(1)
	}
}

type dumper struct {
	w        io.Writer
	palette  bool
	userdata bool
}

func run(_ context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return cli.Exit("no input files specified", 1)
	}

	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	d := dumper{
		w:        os.Stdout,
		palette:  cmd.Bool("palette"),
		userdata: cmd.Bool("userdata"),
	}

	failed := 0

	for _, name := range files {
		doc, err := aseprite.DecodeFile(name, aseprite.WithLogger(logger.With("file", name)))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: error: %v\n", name, err)
			failed++
			continue
		}
		d.document(name, doc)
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed to decode", failed, len(files)), 1)
	}

	return nil
}

func (d *dumper) printf(indent int, format string, args ...any) {
	fmt.Fprintf(d.w, strings.Repeat("  ", indent)+format+"\n", args...)
}

func (d *dumper) document(name string, doc *aseprite.Document) {
	h := doc.Header

	d.printf(0, "%s:", name)
	d.printf(1, "size:     %s", humanize.Bytes(uint64(h.FileSize)))
	d.printf(1, "canvas:   %dx%d %s", doc.Width, doc.Height, h.Depth)
	d.printf(1, "frames:   %s", humanize.Comma(int64(len(doc.Frames))))
	d.printf(1, "colors:   %d (transparent %d)", h.Colors, h.Transparent)
	d.printf(1, "grid:     %d,%d %dx%d", h.Grid.X, h.Grid.Y, h.Grid.Width, h.Grid.Height)

	if p := doc.ColorProfile; p != nil {
		d.printf(1, "profile:  type %d gamma %s icc %s", p.Type, p.Gamma, humanize.Bytes(uint64(len(p.ICC))))
	}

	d.printf(1, "palette:  %d entries", len(doc.Palette))
	if d.palette {
		indices := slices.Sorted(maps.Keys(doc.Palette))
		for _, i := range indices {
			c := doc.Palette[i]
			d.printf(2, "%3d #%02x%02x%02x%02x", i, c.R, c.G, c.B, c.A)
		}
	}

	for _, t := range doc.Tags {
		d.printf(1, "tag %q: frames %d-%d, %s, repeat %d, #%02x%02x%02x",
			t.Name, t.From, t.To, direction(t.Direction), t.Repeat, t.Color.R, t.Color.G, t.Color.B)
	}

	for i, fr := range doc.Frames {
		d.printf(1, "frame %d: %s", i, fr.Duration)
		d.userData(2, fr.UserData)

		for j, l := range fr.Layers {
			d.printf(2, "layer %d %q: %s, opacity %d, visible %t, level %d",
				j, l.Name, l.BlendMode, l.Opacity, l.Visible(), l.ChildLevel)
			d.userData(3, l.UserData)

			for _, c := range l.Cels {
				d.printf(3, "cel at %d,%d z %d: %dx%d, %s pixels, opacity %d",
					c.X, c.Y, c.Z, c.Width, c.Height, humanize.Comma(int64(c.Len())), c.Opacity)
				d.userData(4, c.UserData)
			}
		}
	}
}

func (d *dumper) userData(indent int, ud aseprite.UserData) {
	if !d.userdata || ud.IsZero() {
		return
	}

	if ud.Flags&aseprite.UserDataText != 0 {
		d.printf(indent, "text: %q", ud.Text)
	}
	if ud.Flags&aseprite.UserDataColor != 0 {
		c := ud.Color
		d.printf(indent, "color: #%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
	}
	if ud.Flags&aseprite.UserDataProperties != 0 {
		d.properties(indent, ud.Properties)
	}
}

func (d *dumper) properties(indent int, props aseprite.Properties) {
	for _, k := range slices.Sorted(maps.Keys(props)) {
		v := props[k]
		if nested, ok := v.Data.(aseprite.Properties); ok {
			d.printf(indent, "%s (map):", k)
			d.properties(indent+1, nested)
			continue
		}
		d.printf(indent, "%s (%s): %v", k, v.Type, v.Data)
	}
}

func direction(dir aseprite.LoopDirection) string {
	switch dir {
	case aseprite.Forward:
		return "forward"
	case aseprite.Reverse:
		return "reverse"
	case aseprite.PingPong:
		return "ping-pong"
	case aseprite.PingPongReverse:
		return "ping-pong reverse"
	}
	return fmt.Sprintf("direction %d", dir)
}
