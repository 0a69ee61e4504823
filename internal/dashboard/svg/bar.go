package svg

import (
	"fmt"
	"html/template"
	"strings"
)

// BarGroup is one category of the grouped bar chart, e.g. a utility type with its billed
// and collected amounts.
type BarGroup struct {
	Label string
	A     float64
	B     float64
}

// Bars renders a grouped bar chart comparing two non-negative series.
func Bars(width, height int, groups []BarGroup, opts BarOpts) (template.HTML, error) {
	if len(groups) == 0 {
		return "", fmt.Errorf("svg: at least one group required")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	padding := opts.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	tickCount := opts.TickCount
	if tickCount <= 0 {
		tickCount = DefaultTicks
	}

	axisColor := fallback(opts.AxisColor, "#475569")
	gridColor := fallback(opts.GridColor, "#cbd5f5")
	colorA := fallback(opts.ColorA, "#0ea5e9")
	colorB := fallback(opts.ColorB, "#22c55e")
	labelA := fallback(opts.SeriesALabel, "Billed")
	labelB := fallback(opts.SeriesBLabel, "Collected")

	chartWidth := float64(width) - 2*padding
	chartHeight := float64(height) - 2*padding
	if chartWidth <= 0 || chartHeight <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}

	values := make([]float64, 0, 2*len(groups))
	for _, g := range groups {
		values = append(values, g.A, g.B)
	}
	maxVal := maxOf(values)
	if almostEqual(maxVal, 0) {
		maxVal = 1
	}
	scale := chartHeight / maxVal
	bottom := padding + chartHeight

	groupWidth := chartWidth / float64(len(groups))
	barWidth := groupWidth / 3

	titleID := makeID(opts.Title, "bar-title")
	descID := makeID(opts.Title, "bar-desc")

	var b strings.Builder
	fmt.Fprintf(&b, "<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-labelledby=\"%s %s\">", width, height, titleID, descID)
	fmt.Fprintf(&b, "<title id=\"%s\">%s</title>", titleID, template.HTMLEscapeString(fallback(opts.Title, "Bar chart")))
	fmt.Fprintf(&b, "<desc id=\"%s\">%s</desc>", descID, template.HTMLEscapeString(fallback(opts.Description, "Grouped bar comparison")))

	for i := 0; i <= tickCount; i++ {
		ratio := float64(i) / float64(tickCount)
		y := bottom - ratio*chartHeight
		fmt.Fprintf(&b, "<line x1=\"%s\" y1=\"%s\" x2=\"%s\" y2=\"%s\" stroke=\"%s\" stroke-width=\"0.5\" stroke-dasharray=\"2,4\" aria-hidden=\"true\"></line>", coord(padding), coord(y), coord(padding+chartWidth), coord(y), gridColor)
		fmt.Fprintf(&b, "<text x=\"%s\" y=\"%s\" fill=\"%s\" font-size=\"10\" text-anchor=\"end\">%s</text>", coord(padding-6), coord(y+4), axisColor, template.HTMLEscapeString(formatTick(maxVal*ratio)))
	}

	fmt.Fprintf(&b, "<g stroke=\"%s\" aria-label=\"Axes\">", axisColor)
	fmt.Fprintf(&b, "<line x1=\"%s\" y1=\"%s\" x2=\"%s\" y2=\"%s\" stroke-width=\"1\"></line>", coord(padding), coord(padding), coord(padding), coord(bottom))
	fmt.Fprintf(&b, "<line x1=\"%s\" y1=\"%s\" x2=\"%s\" y2=\"%s\" stroke-width=\"1\"></line>", coord(padding), coord(bottom), coord(padding+chartWidth), coord(bottom))
	b.WriteString("</g>")

	for i, g := range groups {
		baseX := padding + float64(i)*groupWidth
		writeBar(&b, baseX+barWidth*0.3, barWidth, g.A, scale, bottom, padding, colorA, labelA, g.Label)
		writeBar(&b, baseX+barWidth*1.4, barWidth, g.B, scale, bottom, padding, colorB, labelB, g.Label)
		fmt.Fprintf(&b, "<text x=\"%s\" y=\"%s\" fill=\"%s\" font-size=\"10\" text-anchor=\"middle\">%s</text>", coord(baseX+groupWidth/2), coord(bottom+14), axisColor, template.HTMLEscapeString(g.Label))
	}

	legendY := padding - 12
	if legendY < 12 {
		legendY = 12
	}
	for i, entry := range [][2]string{{colorA, labelA}, {colorB, labelB}} {
		x := padding + float64(i)*90
		fmt.Fprintf(&b, "<rect x=\"%s\" y=\"%s\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", coord(x), coord(legendY-8), entry[0])
		fmt.Fprintf(&b, "<text x=\"%s\" y=\"%s\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", coord(x+14), coord(legendY), axisColor, template.HTMLEscapeString(entry[1]))
	}

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

func writeBar(b *strings.Builder, x, width, value, scale, bottom, top float64, color, series, label string) {
	h := value * scale
	if h < 0 {
		h = 0
	}
	if bottom-h < top {
		h = bottom - top
	}
	fmt.Fprintf(b, "<rect x=\"%s\" y=\"%s\" width=\"%s\" height=\"%s\" fill=\"%s\" aria-label=\"%s %s\"></rect>", coord(x), coord(bottom-h), coord(width), coord(h), color, template.HTMLEscapeString(series), template.HTMLEscapeString(label))
}
