package waveform

import (
	"fmt"
	"strconv"
	"strings"
)

// PathOptions controls how a summary maps onto SVG coordinates.
type PathOptions struct {
	Center float64 // y of the centerline
	Scale  float64 // vertical offset for a full-scale peak
	Width  float64 // x where the path returns to the centerline
	Closed bool    // append Z so the shape can be filled
}

// DefaultPathOptions matches a 100x100 viewBox with 10 units of headroom.
func DefaultPathOptions() PathOptions {
	return PathOptions{Center: 50, Scale: 40, Width: 100, Closed: true}
}

// Path draws each peak v at x=i as a vertical stroke from center-v*scale to
// center+v*scale.
func Path(s Summary, opts PathOptions) string {
	var b strings.Builder
	b.Grow(len(s)*24 + 32)

	c := num(opts.Center)
	fmt.Fprintf(&b, "M 0 %s", c)
	for i, v := range s {
		off := float64(v) * opts.Scale
		x := strconv.Itoa(i)
		fmt.Fprintf(&b, " L %s %s L %s %s", x, num(opts.Center-off), x, num(opts.Center+off))
	}
	fmt.Fprintf(&b, " L %s %s", num(opts.Width), c)
	if opts.Closed {
		b.WriteString(" Z")
	}
	return b.String()
}

// SVG wraps Path in a standalone document that stretches to its container.
func SVG(s Summary, opts PathOptions) []byte {
	fill := "none"
	if opts.Closed {
		fill = "currentColor"
	}
	h := opts.Center * 2
	return []byte(fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="100%%" height="100%%" viewBox="0 0 %s %s" preserveAspectRatio="none">`+
			`<path d="%s" fill="%s" fill-opacity="0.2" stroke="currentColor" stroke-width="0.5"/></svg>`,
		num(opts.Width), num(h), Path(s, opts), fill,
	))
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
