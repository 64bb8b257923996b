package render

import (
	"fmt"
	"math"
	"sort"

	"playviz/internal/sim"
	"playviz/internal/visual"
)

// Marker geometry in yards
const (
	playerRadius = 0.8
	ballRadius   = 0.3
	facingLength = 1.4
)

func (p *Pipeline) drawZones(dc Surface, f *frameState) {
	if f.snap == nil || len(f.snap.Zones) == 0 {
		return
	}
	for _, id := range sortedKeys(f.snap.Zones) {
		z := f.snap.Zones[id]
		if z.DefenderID != "" {
			if _, ok := f.index[z.DefenderID]; !ok {
				f.c.skip("zones")
				continue
			}
		}
		tl := p.tr.ToScreen(z.MinX, z.MaxY)
		br := p.tr.ToScreen(z.MaxX, z.MinY)
		colorZone.set(dc)
		dc.DrawRectangle(tl.X, tl.Y, br.X-tl.X, br.Y-tl.Y)
		dc.Fill()

		a := p.tr.ToScreen(z.AnchorX, z.AnchorY)
		colorZoneAnchor.set(dc)
		dc.DrawCircle(a.X, a.Y, 3)
		dc.Fill()
		f.c.drawn++
	}
}

// drawTrails draws fading dots behind every entity still on the field.
func (p *Pipeline) drawTrails(dc Surface, f *frameState) {
	if f.snap == nil {
		return
	}
	for _, e := range f.snap.Players {
		pts := f.in.Trails[e.ID]
		if len(pts) < 2 {
			continue
		}
		base := teamColor(e.Team)
		for i, pt := range pts {
			s := p.tr.ToScreen(pt.X, pt.Y)
			base.WithAlpha(visual.TrailAlpha(i, len(pts))).set(dc)
			dc.DrawCircle(s.X, s.Y, 2)
			dc.Fill()
		}
		f.c.drawn++
	}
}

// drawWaypoints draws planned routes with the break points marked.
func (p *Pipeline) drawWaypoints(dc Surface, f *frameState) {
	if f.snap == nil || len(f.snap.Waypoints) == 0 {
		return
	}
	for _, id := range sortedKeys(f.snap.Waypoints) {
		wps := f.snap.Waypoints[id]
		e, ok := f.index[id]
		if !ok {
			f.c.skip("waypoints")
			continue
		}
		if len(wps) == 0 {
			continue
		}

		colorRoute.WithAlpha(0.6).set(dc)
		dc.SetLineWidth(1.5)
		dc.SetDash(6, 4)
		start := p.tr.ToScreen(e.X, e.Y)
		dc.MoveTo(start.X, start.Y)
		for _, w := range wps {
			s := p.tr.ToScreen(w.X, w.Y)
			dc.LineTo(s.X, s.Y)
		}
		dc.Stroke()
		dc.SetDash()

		for _, w := range wps {
			if !w.IsBreak {
				continue
			}
			s := p.tr.ToScreen(w.X, w.Y)
			colorRoute.set(dc)
			dc.DrawCircle(s.X, s.Y, 3)
			dc.Fill()
		}
		f.c.drawn++
	}
}

// drawBlocking links engaged linemen to their targets, thicker toward the
// side winning the block.
func (p *Pipeline) drawBlocking(dc Surface, f *frameState) {
	if f.snap == nil {
		return
	}
	for _, e := range f.snap.Players {
		b, ok := e.BlockInfo()
		if !ok || !b.Engaged || b.TargetID == "" {
			continue
		}
		t, ok := f.index[b.TargetID]
		if !ok {
			f.c.skip("blocking")
			continue
		}
		a := p.tr.ToScreen(e.X, e.Y)
		c := p.tr.ToScreen(t.X, t.Y)
		colorChalk.WithAlpha(0.5 + math.Abs(b.Leverage)/2).set(dc)
		dc.SetLineWidth(2 + 2*math.Abs(b.Leverage))
		dc.DrawLine(a.X, a.Y, c.X, c.Y)
		dc.Stroke()
		f.c.drawn++
	}
}

// drawPursuit draws pursuit lines for defenders only. Pursuit fields on any
// other variant were dropped at decode time.
func (p *Pipeline) drawPursuit(dc Surface, f *frameState) {
	if f.snap == nil {
		return
	}
	for _, e := range f.snap.Players {
		d, ok := e.AsDefender()
		if !ok || d.PursuitTarget == nil {
			continue
		}
		a := p.tr.ToScreen(e.X, e.Y)
		t := p.tr.ToScreen(d.PursuitTarget.X, d.PursuitTarget.Y)
		colorPursuit.WithAlpha(0.7).set(dc)
		dc.SetLineWidth(1.5)
		dc.SetDash(3, 3)
		dc.DrawLine(a.X, a.Y, t.X, t.Y)
		dc.Stroke()
		dc.SetDash()
		f.c.drawn++
	}
}

// drawTackle draws the leverage bar between the carrier and the primary
// tackler while a tackle is contested.
func (p *Pipeline) drawTackle(dc Surface, f *frameState) {
	if f.snap == nil {
		return
	}
	carrier, ok := f.snap.Carrier()
	if !ok || carrier.Tackle == nil || !carrier.Tackle.InTackle {
		p.yac.Observe(carrier, false)
		return
	}
	eng, ok := visual.Engage(f.snap, carrier, p.tr)
	if !ok {
		f.c.skip("tackle")
		return
	}
	eng.YAC = p.yac.Observe(carrier, true)

	w, h := visual.BarWidth, visual.BarHeight
	x, y := eng.Center.X-w/2, eng.Center.Y-p.tr.Yards(2)

	colorHUD.set(dc)
	dc.DrawRoundedRectangle(x-2, y-2, w+4, h+4, 3)
	dc.Fill()

	fill := colorCarrierWin
	if eng.Fill < 0 {
		fill = colorTacklerWin
	}
	fill.set(dc)
	if eng.Fill >= 0 {
		dc.DrawRectangle(eng.Center.X, y, eng.Fill, h)
	} else {
		dc.DrawRectangle(eng.Center.X+eng.Fill, y, -eng.Fill, h)
	}
	dc.Fill()

	colorChalk.set(dc)
	dc.SetLineWidth(1)
	dc.DrawLine(eng.Center.X, y-1, eng.Center.X, y+h+1)
	dc.Stroke()

	dc.SetFontFace(p.fonts.Small)
	dc.DrawStringAnchored(string(eng.State), eng.Center.X, y-8, 0.5, 0.5)
	if label := eng.Label(); label != "" {
		colorFirstDown.set(dc)
		dc.DrawStringAnchored(label, eng.Center.X, y+h+10, 0.5, 0.5)
	}
	f.c.drawn++
}

// drawPlayers draws every entity marker. Unknown roles still get a neutral
// marker.
func (p *Pipeline) drawPlayers(dc Surface, f *frameState) {
	if f.snap == nil {
		return
	}
	r := p.tr.Yards(playerRadius)
	dc.SetFontFace(p.fonts.Small)
	for _, e := range f.snap.Players {
		s := p.tr.ToScreen(e.X, e.Y)

		if e.ID == f.in.Selected {
			colorSelected.set(dc)
			dc.SetLineWidth(3)
			dc.DrawCircle(s.X, s.Y, r+4)
			dc.Stroke()
		}

		teamColor(e.Team).set(dc)
		dc.DrawCircle(s.X, s.Y, r)
		dc.Fill()
		colorChalk.set(dc)
		dc.SetLineWidth(1.5)
		dc.DrawCircle(s.X, s.Y, r)
		dc.Stroke()

		if e.Facing != nil {
			n := math.Hypot(e.Facing.X, e.Facing.Y)
			if n > 0 {
				tip := p.tr.ToScreen(e.X+e.Facing.X/n*facingLength, e.Y+e.Facing.Y/n*facingLength)
				dc.DrawLine(s.X, s.Y, tip.X, tip.Y)
				dc.Stroke()
			}
		}

		if e.Position != "" {
			colorChalk.set(dc)
			dc.DrawStringAnchored(e.Position, s.X, s.Y, 0.5, 0.35)
		}
		f.c.drawn++
	}
}

// drawBall draws the ball. In flight it also draws the full arc faded, the
// traveled part solid, and a ground shadow under the ball.
func (p *Pipeline) drawBall(dc Surface, f *frameState) {
	if f.snap == nil || f.snap.Ball == nil {
		return
	}
	b := f.snap.Ball
	r := p.tr.Yards(ballRadius)

	flight, ok := visual.NewFlight(b)
	if !ok {
		if b.State == sim.BallHeld {
			if c, found := f.snap.Carrier(); found {
				s := p.tr.ToScreen(c.X, c.Y)
				p.ballAt(dc, s.X+r*2, s.Y-r*2, r)
				f.c.drawn++
				return
			}
		}
		s := p.tr.ToScreenWithHeight(b.X, b.Y, b.Height)
		p.ballAt(dc, s.X, s.Y, r)
		f.c.drawn++
		return
	}

	arc := flight.Arc(p.cfg.ArcSamples)
	colorChalk.WithAlpha(0.25).set(dc)
	dc.SetLineWidth(1.5)
	dc.SetDash(4, 4)
	for i, a := range arc {
		s := p.tr.ToScreenWithHeight(a.X, a.Y, a.Height)
		if i == 0 {
			dc.MoveTo(s.X, s.Y)
		} else {
			dc.LineTo(s.X, s.Y)
		}
	}
	dc.Stroke()
	dc.SetDash()

	traveled := flight.Traveled(p.cfg.ArcSamples)
	colorChalk.WithAlpha(0.8).set(dc)
	dc.SetLineWidth(2)
	for i, a := range traveled {
		s := p.tr.ToScreenWithHeight(a.X, a.Y, a.Height)
		if i == 0 {
			dc.MoveTo(s.X, s.Y)
		} else {
			dc.LineTo(s.X, s.Y)
		}
	}
	dc.Stroke()

	cur := flight.Current()
	ground := p.tr.ToScreen(cur.X, cur.Y)
	colorShadow.set(dc)
	dc.DrawCircle(ground.X, ground.Y, r)
	dc.Fill()

	s := p.tr.ToScreenWithHeight(cur.X, cur.Y, cur.Height)
	p.ballAt(dc, s.X, s.Y, r)
	f.c.drawn++
}

func (p *Pipeline) ballAt(dc Surface, x, y, r float64) {
	colorBall.set(dc)
	dc.DrawCircle(x, y, r)
	dc.Fill()
	colorChalk.set(dc)
	dc.SetLineWidth(1)
	dc.DrawCircle(x, y, r)
	dc.Stroke()
}

// drawCatches animates every live catch effect from its elapsed time.
func (p *Pipeline) drawCatches(dc Surface, f *frameState) {
	now := f.in.Now
	dc.SetFontFace(p.fonts.Medium)
	for _, e := range p.catches.Active() {
		if e.Expired(now) {
			continue
		}
		s := p.tr.ToScreen(e.X, e.Y)
		alpha := e.Opacity(now)

		colorFirstDown.WithAlpha(alpha).set(dc)
		dc.SetLineWidth(3)
		dc.DrawCircle(s.X, s.Y, e.RingRadius(now))
		dc.Stroke()

		label := fmt.Sprintf("%s %+d", e.PlayerName, e.AirYards)
		colorChalk.WithAlpha(alpha).set(dc)
		dc.DrawStringAnchored(label, s.X, s.Y-visual.CatchRingStart-10-e.LabelOffset(now), 0.5, 0.5)
		f.c.drawn++
	}
}

// drawHUD draws the status panel in the top-left corner.
func (p *Pipeline) drawHUD(dc Surface, f *frameState) {
	lines := []string{"waiting for play"}
	if s := f.snap; s != nil {
		lines = []string{
			fmt.Sprintf("tick %d  %.2fs", s.Tick, s.Time),
			fmt.Sprintf("outcome: %s", s.PlayOutcome),
		}
		if f.in.Pacing != "" {
			lines = append(lines, "pacing: "+f.in.Pacing)
		}
		if ev, ok := s.LastEvent(); ok {
			lines = append(lines, ev.String())
		}
	}

	const pad, lineH = 8.0, 16.0
	colorHUD.set(dc)
	dc.DrawRoundedRectangle(pad, pad, 240, pad*2+lineH*float64(len(lines)), 6)
	dc.Fill()

	dc.SetFontFace(p.fonts.Small)
	colorChalk.set(dc)
	for i, l := range lines {
		dc.DrawStringAnchored(l, pad*2, pad*2+lineH*float64(i)+lineH/2, 0, 0.5)
	}
}

func teamColor(t sim.Team) RGBA {
	switch t {
	case sim.TeamOffense:
		return colorOffense
	case sim.TeamDefense:
		return colorDefense
	}
	return colorNeutral
}

// sortedKeys keeps map-driven layers in a stable draw order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
