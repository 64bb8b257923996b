package render

import (
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"

	"playviz/internal/field"
)

// NFL hash marks sit 70'9" in from each sideline.
const hashX = field.HalfWidthYards - 23.58

// drawStatic blits the cached field, rendering it on first use.
func (p *Pipeline) drawStatic(dc Surface, _ *frameState) {
	p.staticOnce.Do(func() {
		p.static = p.renderStatic()
	})
	dc.DrawImage(p.static, 0, 0)
}

// renderStatic draws turf, sidelines, yard lines, numbers, hash marks, the
// line of scrimmage and the first-down line. None of it depends on a tick.
func (p *Pipeline) renderStatic() image.Image {
	w, h := float64(p.cfg.Width), float64(p.cfg.Height)
	dc := gg.NewContext(p.cfg.Width, p.cfg.Height)
	tr := p.tr

	colorTurf.set(dc)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	// Yard range visible on the canvas, rounded out to 5-yard lines
	top := math.Ceil(tr.ToYards(0, 0).Y/5) * 5
	bottom := math.Floor(tr.ToYards(0, h).Y/5) * 5
	left, right := tr.SidelineX()

	// Alternating 5-yard stripes
	for y := bottom; y < top; y += 5 {
		if int(math.Abs(y))%10 != 0 {
			continue
		}
		a := tr.ToScreen(0, y+5)
		colorTurfStripe.set(dc)
		dc.DrawRectangle(left, a.Y, right-left, tr.Yards(5))
		dc.Fill()
	}

	// Sidelines
	colorChalk.set(dc)
	dc.SetLineWidth(3)
	dc.DrawLine(left, 0, left, h)
	dc.DrawLine(right, 0, right, h)
	dc.Stroke()

	// Yard lines every 5, numbers every 10
	dc.SetFontFace(p.fonts.Large)
	for y := bottom; y <= top; y += 5 {
		sy := tr.ToScreen(0, y).Y
		colorChalk.WithAlpha(0.7).set(dc)
		dc.SetLineWidth(1.5)
		dc.DrawLine(left, sy, right, sy)
		dc.Stroke()

		if y != 0 && int(math.Abs(y))%10 == 0 {
			label := fmt.Sprintf("%d", int(math.Abs(y)))
			colorChalk.WithAlpha(0.5).set(dc)
			dc.DrawStringAnchored(label, left+tr.Yards(9), sy, 0.5, 0.5)
			dc.DrawStringAnchored(label, right-tr.Yards(9), sy, 0.5, 0.5)
		}
	}

	// Hash marks every yard
	colorChalk.WithAlpha(0.6).set(dc)
	dc.SetLineWidth(1)
	hashL := tr.ToScreen(-hashX, 0).X
	hashR := tr.ToScreen(hashX, 0).X
	tick := tr.Yards(0.6)
	for y := bottom; y <= top; y++ {
		sy := tr.ToScreen(0, y).Y
		for _, x := range []float64{left, hashL, hashR, right - tick} {
			dc.DrawLine(x, sy, x+tick, sy)
		}
	}
	dc.Stroke()

	// Line of scrimmage
	los := tr.ToScreen(0, 0).Y
	colorLOS.set(dc)
	dc.SetLineWidth(3)
	dc.DrawLine(left, los, right, los)
	dc.Stroke()

	// First down
	if p.cfg.FirstDownYards > 0 {
		fd := tr.ToScreen(0, p.cfg.FirstDownYards).Y
		colorFirstDown.set(dc)
		dc.SetLineWidth(3)
		dc.DrawLine(left, fd, right, fd)
		dc.Stroke()
	}

	return dc.Image()
}
