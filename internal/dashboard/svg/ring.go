package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// RingGeometry describes a circular progress ring drawn with a stroke dash.
type RingGeometry struct {
	Radius        float64
	Circumference float64
}

// Ring returns the geometry of a ring with the given radius.
func Ring(radius float64) RingGeometry {
	return RingGeometry{Radius: radius, Circumference: 2 * math.Pi * radius}
}

// DashOffset is the stroke-dashoffset that reveals percent of the ring.
func (g RingGeometry) DashOffset(percent float64) float64 {
	p := math.Min(100, math.Max(0, percent))
	return g.Circumference - p/100*g.Circumference
}

// RingChart renders a progress ring with the percentage in its centre.
func RingChart(percent int, opts RingOpts) (template.HTML, error) {
	radius := opts.Radius
	if radius <= 0 {
		radius = DefaultRingRadius
	}
	stroke := opts.Stroke
	if stroke <= 0 {
		stroke = DefaultRingStroke
	}
	if stroke >= radius {
		return "", fmt.Errorf("svg: ring stroke must be thinner than its radius")
	}
	g := Ring(radius)
	size := 2 * (radius + stroke)
	center := size / 2
	clamped := int(math.Min(100, math.Max(0, float64(percent))))

	titleID := makeID(opts.Title, "ring-title")
	descID := makeID(opts.Title, "ring-desc")

	var b strings.Builder
	fmt.Fprintf(&b, "<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %s %s\" role=\"img\" aria-labelledby=\"%s %s\">", coord(size), coord(size), titleID, descID)
	fmt.Fprintf(&b, "<title id=\"%s\">%s</title>", titleID, template.HTMLEscapeString(fallback(opts.Title, "Progress")))
	fmt.Fprintf(&b, "<desc id=\"%s\">%s</desc>", descID, template.HTMLEscapeString(fallback(opts.Description, "Completion percentage")))
	fmt.Fprintf(&b, "<circle cx=\"%s\" cy=\"%s\" r=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"%s\"></circle>",
		coord(center), coord(center), coord(radius), fallback(opts.TrackColor, "#e2e8f0"), coord(stroke))
	fmt.Fprintf(&b, "<circle cx=\"%s\" cy=\"%s\" r=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"%s\" stroke-linecap=\"round\" stroke-dasharray=\"%s\" stroke-dashoffset=\"%s\" transform=\"rotate(-90 %s %s)\"></circle>",
		coord(center), coord(center), coord(radius), fallback(opts.ValueColor, "#6366f1"), coord(stroke),
		coord(g.Circumference), coord(g.DashOffset(float64(clamped))), coord(center), coord(center))
	fmt.Fprintf(&b, "<text x=\"%s\" y=\"%s\" fill=\"%s\" font-size=\"18\" text-anchor=\"middle\" dominant-baseline=\"middle\">%d%%</text>",
		coord(center), coord(center), fallback(opts.TextColor, "#0f172a"), clamped)
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
