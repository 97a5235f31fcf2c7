package export

import (
	"bytes"
	"fmt"
	"html"
)

type Line struct{ X, Y float64 }

type Marker struct {
	X    float64
	Y    float64
	Kind string // win | loss
}

// SimpleSVGChart draws one line with point markers. An empty line yields nil.
func SimpleSVGChart(w, h int, line []Line, marks []Marker, title string) []byte {
	if len(line) == 0 {
		return nil
	}
	if w <= 0 {
		w = 900
	}
	if h <= 0 {
		h = 300
	}
	minx, maxx := line[0].X, line[len(line)-1].X
	miny, maxy := line[0].Y, line[0].Y
	for _, p := range line {
		if p.Y < miny {
			miny = p.Y
		}
		if p.Y > maxy {
			maxy = p.Y
		}
	}
	pw, ph := float64(w-80), float64(h-60)
	sx := pw / (maxx - minx + 1e-9)
	sy := ph / (maxy - miny + 1e-9)

	var b bytes.Buffer
	fmt.Fprintf(&b, "<svg xmlns='http://www.w3.org/2000/svg' width='%d' height='%d' viewBox='0 0 %d %d'>", w, h, w, h)
	b.WriteString("<rect width='100%' height='100%' fill='#0b0f17'/>")
	b.WriteString("<g transform='translate(40,20)'>")
	fmt.Fprintf(&b, "<line x1='0' y1='0' x2='0' y2='%.0f' stroke='#1f2837' />", ph)
	fmt.Fprintf(&b, "<line x1='0' y1='%.0f' x2='%.0f' y2='%.0f' stroke='#1f2837' />", ph, pw, ph)
	b.WriteString("<polyline fill='none' stroke='#59a6ff' stroke-width='1.5' points='")
	for i, p := range line {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%.2f,%.2f", (p.X-minx)*sx, ph-(p.Y-miny)*sy)
	}
	b.WriteString("'/>")
	for _, m := range marks {
		color := "#8bff9b"
		if m.Kind == "loss" {
			color = "#ff7a7a"
		}
		fmt.Fprintf(&b, "<circle cx='%.2f' cy='%.2f' r='3' fill='%s' />", (m.X-minx)*sx, ph-(m.Y-miny)*sy, color)
	}
	b.WriteString("</g>")
	fmt.Fprintf(&b, "<text x='16' y='18' fill='#e6edf3' font-family='Inter' font-size='14'>%s</text>", html.EscapeString(title))
	b.WriteString("</svg>")
	return b.Bytes()
}
