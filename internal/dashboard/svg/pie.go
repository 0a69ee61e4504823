package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// PieEntry is one counted category of a pie chart.
type PieEntry struct {
	Label string
	Count int
	Color string
}

// Slice is the geometry of one pie wedge. Angles are in degrees, clockwise from the
// positive x axis.
type Slice struct {
	Label      string
	Color      string
	Count      int
	StartAngle float64
	EndAngle   float64
	Span       float64
	Percent    int
	ShowLabel  bool
}

// PieSlices lays entries out contiguously from PieStartAngle in input order, each spanning
// its share of total. Labels below LabelMinPercent are hidden.
func PieSlices(entries []PieEntry, total int) []Slice {
	out := make([]Slice, 0, len(entries))
	angle := PieStartAngle
	for _, entry := range entries {
		share := 0.0
		if total > 0 {
			share = float64(entry.Count) / float64(total)
		}
		span := share * 360
		percent := int(math.Round(share * 100))
		out = append(out, Slice{
			Label:      entry.Label,
			Color:      entry.Color,
			Count:      entry.Count,
			StartAngle: angle,
			EndAngle:   angle + span,
			Span:       span,
			Percent:    percent,
			ShowLabel:  percent >= LabelMinPercent,
		})
		angle += span
	}
	return out
}

func pointAt(angle, radius float64) (float64, float64) {
	rad := angle * math.Pi / 180
	return PieCenterX + radius*math.Cos(rad), PieCenterY + radius*math.Sin(rad)
}

// WedgePath returns the closed SVG path of s on the fixed pie circle. A zero span has no
// path; a full circle is drawn as two half arcs.
func WedgePath(s Slice) string {
	if s.Span <= 0 {
		return ""
	}
	x1, y1 := pointAt(s.StartAngle, PieRadius)
	if s.Span >= 360-1e-9 {
		xm, ym := pointAt(s.StartAngle+180, PieRadius)
		return fmt.Sprintf("M %s %s L %s %s A %s %s 0 1 1 %s %s A %s %s 0 1 1 %s %s Z",
			coord(PieCenterX), coord(PieCenterY), coord(x1), coord(y1),
			coord(PieRadius), coord(PieRadius), coord(xm), coord(ym),
			coord(PieRadius), coord(PieRadius), coord(x1), coord(y1))
	}
	x2, y2 := pointAt(s.EndAngle, PieRadius)
	largeArc := 0
	if s.Span > 180 {
		largeArc = 1
	}
	return fmt.Sprintf("M %s %s L %s %s A %s %s 0 %d 1 %s %s Z",
		coord(PieCenterX), coord(PieCenterY), coord(x1), coord(y1),
		coord(PieRadius), coord(PieRadius), largeArc, coord(x2), coord(y2))
}

// LabelPosition places a slice label at two thirds of the radius on the wedge bisector.
func LabelPosition(s Slice) (float64, float64) {
	return pointAt(s.StartAngle+s.Span/2, PieRadius*2/3)
}

// PieChart renders entries as a pie with percentage labels.
func PieChart(entries []PieEntry, opts PieOpts) (template.HTML, error) {
	total := 0
	for _, entry := range entries {
		if entry.Count < 0 {
			return "", fmt.Errorf("svg: negative count for %q", entry.Label)
		}
		total += entry.Count
	}
	textColor := fallback(opts.TextColor, "#ffffff")
	titleID := makeID(opts.Title, "pie-title")
	descID := makeID(opts.Title, "pie-desc")

	var b strings.Builder
	fmt.Fprintf(&b, "<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-labelledby=\"%s %s\">", int(2*PieCenterX), int(2*PieCenterY), titleID, descID)
	fmt.Fprintf(&b, "<title id=\"%s\">%s</title>", titleID, template.HTMLEscapeString(fallback(opts.Title, "Pie chart")))
	fmt.Fprintf(&b, "<desc id=\"%s\">%s</desc>", descID, template.HTMLEscapeString(fallback(opts.Description, "Share by category")))
	if total == 0 {
		fmt.Fprintf(&b, "<circle cx=\"%s\" cy=\"%s\" r=\"%s\" fill=\"%s\"></circle>", coord(PieCenterX), coord(PieCenterY), coord(PieRadius), fallback(opts.EmptyColor, "#e2e8f0"))
		b.WriteString("</svg>")
		return template.HTML(b.String()), nil
	}
	slices := PieSlices(entries, total)
	for _, s := range slices {
		path := WedgePath(s)
		if path == "" {
			continue
		}
		fmt.Fprintf(&b, "<path d=\"%s\" fill=\"%s\" aria-label=\"%s %d%%\"></path>", path, fallback(s.Color, "#94a3b8"), template.HTMLEscapeString(s.Label), s.Percent)
	}
	for _, s := range slices {
		if !s.ShowLabel {
			continue
		}
		x, y := LabelPosition(s)
		fmt.Fprintf(&b, "<text x=\"%s\" y=\"%s\" fill=\"%s\" font-size=\"11\" text-anchor=\"middle\" dominant-baseline=\"middle\">%d%%</text>", coord(x), coord(y), textColor, s.Percent)
	}
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
