package app

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/rollpitchyall/printinflight/internal/flightlog"
	"github.com/rollpitchyall/printinflight/internal/nav"
)

const (
	defaultScale = 20.0 // pixels per metre

	// Minimum half-span of the plot in metres, so a mission that never
	// left the pad still renders something visible.
	minHalfSpan = 2.0

	paddingMetres = 1.0

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 40
	defaultRightBorder  = 40

	waypointMarkerRadius = 4
	homeMarkerRadius     = 6
)

var (
	planColor     = color.RGBA{R: 0xb4, G: 0xb4, B: 0xb4, A: 0xff}
	trackColor    = color.RGBA{R: 0x1e, G: 0x64, B: 0xdc, A: 0xff}
	waypointColor = color.RGBA{R: 0xc8, G: 0x1e, B: 0x1e, A: 0xff}
	homeColor     = color.RGBA{R: 0x1e, G: 0xa0, B: 0x3c, A: 0xff}
	gridColor     = color.RGBA{R: 0xe6, G: 0xe6, B: 0xe6, A: 0xff}
)

// BorderConfig defines the white space around the plot area.
type BorderConfig struct {
	Top    int // Space for the east scale
	Left   int // Space for the north scale
	Bottom int // Space for the information bar
	Right  int // Right padding
}

// Plot is everything read from the flight log for one mission.
type Plot struct {
	Mission *flightlog.MissionRecord
	Plan    nav.Plan
	Track   []flightlog.TrackPoint
}

// FlownDistance is the length of the recorded track polyline.
func (p *Plot) FlownDistance() float64 {
	var total float64
	for i := 1; i < len(p.Track); i++ {
		a, b := p.Track[i-1], p.Track[i]
		total += math.Hypot(b.North-a.North, b.East-a.East)
	}
	return total
}

// projection maps NED coordinates onto image pixels, north up, east right.
// The plot always contains the launch point (the NED origin).
type projection struct {
	minN, maxN float64
	minE, maxE float64
	scale      float64
	borders    BorderConfig
}

func newProjection(plot *Plot, scale float64, borders BorderConfig) projection {
	p := projection{
		minN: -minHalfSpan, maxN: minHalfSpan,
		minE: -minHalfSpan, maxE: minHalfSpan,
		scale:   scale,
		borders: borders,
	}

	grow := func(n, e float64) {
		p.minN = math.Min(p.minN, n-paddingMetres)
		p.maxN = math.Max(p.maxN, n+paddingMetres)
		p.minE = math.Min(p.minE, e-paddingMetres)
		p.maxE = math.Max(p.maxE, e+paddingMetres)
	}
	for _, wp := range plot.Plan {
		grow(wp.Position.North, wp.Position.East)
	}
	for _, tp := range plot.Track {
		grow(tp.North, tp.East)
	}
	return p
}

// plotWidth and plotHeight are the data area dimensions, excluding borders.
func (p projection) plotWidth() int  { return int(math.Ceil((p.maxE - p.minE) * p.scale)) }
func (p projection) plotHeight() int { return int(math.Ceil((p.maxN - p.minN) * p.scale)) }

func (p projection) imageWidth() int  { return p.plotWidth() + p.borders.Left + p.borders.Right }
func (p projection) imageHeight() int { return p.plotHeight() + p.borders.Top + p.borders.Bottom }

func (p projection) point(north, east float64) image.Point {
	x := p.borders.Left + int(math.Round((east-p.minE)*p.scale))
	y := p.borders.Top + int(math.Round((p.maxN-north)*p.scale))
	return image.Point{X: x, Y: y}
}

// RenderConfig holds the plot renderer options.
type RenderConfig struct {
	Scale   float64 // Pixels per metre (0 for default)
	Borders BorderConfig
}

// TrackRenderer draws a top-down view of one mission: the planned path in
// grey, the recorded track in blue, waypoint markers and the launch point.
type TrackRenderer struct {
	config RenderConfig
}

func NewTrackRenderer(config RenderConfig) *TrackRenderer {
	if config.Scale == 0 {
		config.Scale = defaultScale
	}
	if config.Borders.Top == 0 {
		config.Borders.Top = defaultTopBorder
	}
	if config.Borders.Left == 0 {
		config.Borders.Left = defaultLeftBorder
	}
	if config.Borders.Bottom == 0 {
		config.Borders.Bottom = defaultBottomBorder
	}
	if config.Borders.Right == 0 {
		config.Borders.Right = defaultRightBorder
	}
	return &TrackRenderer{config: config}
}

// Render draws the plot. A nil annotator renders the geometry without
// labels or the info bar.
func (r *TrackRenderer) Render(plot *Plot, ann *Annotator) (*image.RGBA, error) {
	proj := newProjection(plot, r.config.Scale, r.config.Borders)
	img := image.NewRGBA(image.Rect(0, 0, proj.imageWidth(), proj.imageHeight()))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	r.drawGrid(img, proj)

	// Planned path, from the launch point through every waypoint.
	prev := proj.point(0, 0)
	for _, wp := range plot.Plan {
		next := proj.point(wp.Position.North, wp.Position.East)
		drawLine(img, prev, next, planColor)
		prev = next
	}

	// Recorded track on top of the plan.
	for i := 1; i < len(plot.Track); i++ {
		a := proj.point(plot.Track[i-1].North, plot.Track[i-1].East)
		b := proj.point(plot.Track[i].North, plot.Track[i].East)
		drawLine(img, a, b, trackColor)
	}

	fillCircle(img, proj.point(0, 0), homeMarkerRadius, homeColor)
	for _, wp := range plot.Plan {
		fillCircle(img, proj.point(wp.Position.North, wp.Position.East), waypointMarkerRadius, waypointColor)
	}

	if ann != nil {
		if err := ann.Annotate(img, plot, proj); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// drawGrid draws metre grid lines at a step chosen to keep the grid sparse.
func (r *TrackRenderer) drawGrid(img *image.RGBA, proj projection) {
	step := niceStep(math.Max(proj.maxE-proj.minE, proj.maxN-proj.minN))

	area := image.Rect(proj.borders.Left, proj.borders.Top,
		proj.borders.Left+proj.plotWidth(), proj.borders.Top+proj.plotHeight())

	for e := math.Ceil(proj.minE/step) * step; e <= proj.maxE; e += step {
		x := proj.point(0, e).X
		for y := area.Min.Y; y < area.Max.Y; y++ {
			img.Set(x, y, gridColor)
		}
	}
	for n := math.Ceil(proj.minN/step) * step; n <= proj.maxN; n += step {
		y := proj.point(n, 0).Y
		for x := area.Min.X; x < area.Max.X; x++ {
			img.Set(x, y, gridColor)
		}
	}
}

// niceStep picks a grid spacing in metres so that the larger plot dimension
// gets a handful of lines.
func niceStep(span float64) float64 {
	steps := []float64{0.5, 1, 2, 5, 10, 20, 50, 100, 200, 500, 1000}

	target := span / 10
	for _, step := range steps {
		if step >= target {
			return step
		}
	}
	return steps[len(steps)-1]
}

func drawLine(img *image.RGBA, a, b image.Point, c color.Color) {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)

	steps := int(math.Max(math.Abs(dx), math.Abs(dy)))
	if steps == 0 {
		img.Set(a.X, a.Y, c)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		img.Set(a.X+int(math.Round(dx*t)), a.Y+int(math.Round(dy*t)), c)
	}
}

func fillCircle(img *image.RGBA, center image.Point, radius int, c color.Color) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				img.Set(center.X+dx, center.Y+dy, c)
			}
		}
	}
}
