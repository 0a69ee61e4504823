package svg

// BarOpts customises the grouped bar renderer.
type BarOpts struct {
	Title        string
	Description  string
	SeriesALabel string
	SeriesBLabel string
	ColorA       string
	ColorB       string
	AxisColor    string
	GridColor    string
	Padding      float64
	TickCount    int
}

// PieOpts customises the pie renderer.
type PieOpts struct {
	Title       string
	Description string
	TextColor   string
	EmptyColor  string
}

// RingOpts customises the progress ring renderer.
type RingOpts struct {
	Title       string
	Description string
	Radius      float64
	Stroke      float64
	TrackColor  string
	ValueColor  string
	TextColor   string
}

// Defaults for the dashboard charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 240
	DefaultPadding = 24.0
	DefaultTicks   = 5

	PieCenterX      = 100.0
	PieCenterY      = 100.0
	PieRadius       = 80.0
	PieStartAngle   = -90.0
	LabelMinPercent = 5

	DefaultRingRadius = 52.0
	DefaultRingStroke = 10.0
)
