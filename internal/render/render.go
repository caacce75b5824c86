package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
)

const (
	cell    = 80
	margin  = 24
	header  = 36
	footer  = 24
	pitR    = 32
	seedR   = 4
	columns = mancala.PitsPerSide + 2

	Width  = columns*cell + 2*margin
	Height = header + 2*cell + footer + 2*margin
)

// Options decorate one rendered board.
type Options struct {
	// LastPit is outlined when non-nil.
	LastPit *int
	// Path slots get a faint tint, e.g. the sowing of the last move.
	Path  []int
	Title string
}

type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

// RenderPNG draws the board as seen by player 0: a1..a6 along the bottom,
// b1..b6 right to left along the top, store b0 on the left and a0 on the right.
func (r *Renderer) RenderPNG(ctx context.Context, b mancala.Board, opts Options) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(SVG(b, opts)))
	if err != nil {
		return nil, fmt.Errorf("parse board svg: %w", err)
	}
	icon.SetTarget(0, 0, Width, Height)

	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{0xfa, 0xf6, 0xee, 0xff}), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(Width, Height, img, img.Bounds())
	raster := rasterx.NewDasher(Width, Height, scanner)
	icon.Draw(raster, 1.0)

	drawLabels(img, b, opts)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// center returns the pixel center of a slot.
func center(slot int) (x, y int) {
	top := margin + header
	switch {
	case slot == mancala.StoreB:
		return margin + cell/2, top + cell
	case slot == mancala.StoreA:
		return margin + (columns-1)*cell + cell/2, top + cell
	case slot < mancala.StoreA:
		return margin + (slot+1)*cell + cell/2, top + cell + cell/2
	default:
		col := mancala.StoreB - slot
		return margin + col*cell + cell/2, top + cell/2
	}
}

// SVG builds the vector part of the board: frame, pits, stores and seeds.
func SVG(b mancala.Board, opts Options) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, Width, Height, Width, Height)
	fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="%d" rx="28" fill="#a0703c" stroke="#6b4423" stroke-width="4"/>`,
		margin, margin+header, columns*cell, 2*cell)

	onPath := make(map[int]bool, len(opts.Path))
	for _, s := range opts.Path {
		onPath[s] = true
	}
	for slot := 0; slot < mancala.Slots; slot++ {
		fill := "#7a5230"
		if onPath[slot] {
			fill = "#8f6a3f"
		}
		stroke, width := "#5a3a1e", 2
		if opts.LastPit != nil && *opts.LastPit == slot {
			stroke, width = "#f2c14e", 5
		}
		x, y := center(slot)
		if slot == mancala.StoreA || slot == mancala.StoreB {
			fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="%d" rx="30" fill="%s" stroke="%s" stroke-width="%d"/>`,
				x-pitR, y-cell+12, 2*pitR, 2*cell-24, fill, stroke, width)
		} else {
			fmt.Fprintf(&sb, `<circle cx="%d" cy="%d" r="%d" fill="%s" stroke="%s" stroke-width="%d"/>`,
				x, y, pitR, fill, stroke, width)
		}
		writeSeeds(&sb, x, y, b.Pits[slot])
	}
	sb.WriteString(`</svg>`)
	return sb.String()
}

// writeSeeds rings up to ten seeds around the pit center, where the count is printed.
func writeSeeds(sb *strings.Builder, cx, cy, n int) {
	const ring, per = 21.0, 10
	for i := range min(n, per) {
		a := 2*math.Pi*float64(i)/per - math.Pi/2
		x := float64(cx) + ring*math.Cos(a)
		y := float64(cy) + ring*math.Sin(a)
		fmt.Fprintf(sb, `<circle cx="%.1f" cy="%.1f" r="%d" fill="#efe3c8" stroke="#c9b48a" stroke-width="1"/>`, x, y, seedR)
	}
}

func drawLabels(img *image.RGBA, b mancala.Board, opts Options) {
	face := basicfont.Face7x13
	ink := image.NewUniform(color.RGBA{0x2b, 0x1d, 0x0e, 0xff})
	d := &font.Drawer{Dst: img, Src: ink, Face: face}

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Mancala"
	}
	drawCentered(d, title, Width/2, margin+header/2+5)

	light := image.NewUniform(color.RGBA{0xff, 0xff, 0xff, 0xff})
	for slot := 0; slot < mancala.Slots; slot++ {
		x, y := center(slot)
		d.Src = light
		drawCentered(d, strconv.Itoa(b.Pits[slot]), x, y+5)
		d.Src = ink
		labelY := y - pitR - 4
		if slot < mancala.StoreA {
			labelY = y + pitR + 16
		}
		if slot == mancala.StoreA || slot == mancala.StoreB {
			labelY = y + cell + 16
		}
		drawCentered(d, mancala.PitName(slot), x, labelY)
	}
}

func drawCentered(d *font.Drawer, text string, cx, baseline int) {
	w := d.MeasureString(text).Round()
	d.Dot = fixed.P(cx-w/2, baseline)
	d.DrawString(text)
}
