package render

import "playviz/internal/field"

// Pick returns the id of the entity nearest to the pixel (px, py) within the
// hit radius, using the last snapshot drawn and the same transform.
func (p *Pipeline) Pick(px, py float64) (string, bool) {
	p.mu.Lock()
	snap := p.last
	p.mu.Unlock()
	if snap == nil {
		return "", false
	}

	best, bestDist := "", p.cfg.HitRadius
	for _, e := range snap.Players {
		pt := field.Point{X: e.X, Y: e.Y}
		if !p.tr.Hit(pt, px, py, p.cfg.HitRadius) {
			continue
		}
		if d := p.tr.Distance(pt, px, py); best == "" || d < bestDist {
			best, bestDist = e.ID, d
		}
	}
	return best, best != ""
}

// Select picks the entity under (px, py) and reports it through onSelect.
// A miss leaves the current selection alone.
func (p *Pipeline) Select(px, py float64) (string, bool) {
	id, ok := p.Pick(px, py)
	if ok && p.onSelect != nil {
		p.onSelect(id)
	}
	return id, ok
}
