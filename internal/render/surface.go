package render

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
)

// Surface is the drawing target. *gg.Context satisfies it.
type Surface interface {
	Push()
	Pop()
	SetColor(c color.Color)
	SetRGBA(r, g, b, a float64)
	SetLineWidth(w float64)
	SetDash(dashes ...float64)
	SetFontFace(face font.Face)

	MoveTo(x, y float64)
	LineTo(x, y float64)
	NewSubPath()
	ClearPath()
	DrawLine(x1, y1, x2, y2 float64)
	DrawCircle(x, y, r float64)
	DrawRectangle(x, y, w, h float64)
	DrawRoundedRectangle(x, y, w, h, r float64)
	DrawStringAnchored(s string, x, y, ax, ay float64)
	DrawImage(im image.Image, x, y int)

	Fill()
	Stroke()
}

// RGBA is a color with float channels in [0,1], so alpha can be scaled
// without repeated conversions.
type RGBA struct {
	R, G, B, A float64
}

// WithAlpha returns c with its alpha multiplied by a.
func (c RGBA) WithAlpha(a float64) RGBA {
	c.A *= a
	return c
}

func (c RGBA) set(dc Surface) {
	dc.SetRGBA(c.R, c.G, c.B, c.A)
}

// parseHexColor parses "#rrggbb" into an opaque color. Anything else is white.
func parseHexColor(hex string) RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return RGBA{1, 1, 1, 1}
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return RGBA{1, 1, 1, 1}
	}
	return RGBA{float64(r) / 255, float64(g) / 255, float64(b) / 255, 1}
}

// Palette
var (
	colorTurf       = parseHexColor("#2e7d32")
	colorTurfStripe = parseHexColor("#388e3c")
	colorChalk      = parseHexColor("#f5f5f5")
	colorLOS        = parseHexColor("#42a5f5")
	colorFirstDown  = parseHexColor("#fdd835")
	colorOffense    = parseHexColor("#1565c0")
	colorDefense    = parseHexColor("#c62828")
	colorNeutral    = parseHexColor("#9e9e9e")
	colorSelected   = parseHexColor("#ffeb3b")
	colorBall       = parseHexColor("#8d6e63")
	colorShadow     = RGBA{0, 0, 0, 0.35}
	colorZone       = RGBA{0.8, 0.2, 0.2, 0.12}
	colorZoneAnchor = RGBA{0.8, 0.2, 0.2, 0.48}
	colorRoute      = parseHexColor("#e3f2fd")
	colorPursuit    = parseHexColor("#ff7043")
	colorCarrierWin = parseHexColor("#43a047")
	colorTacklerWin = parseHexColor("#e53935")
	colorHUD        = RGBA{0, 0, 0, 0.6}
)
