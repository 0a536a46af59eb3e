package app

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

const (
	dpi            = 96.0
	fontSize       = 11.0
	tickMarkLength = 5
)

// Candidate fonts for when no font file is given on the command line.
var fontSearchPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/Library/Fonts/Arial Unicode.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
}

// Annotator draws scales, waypoint labels and the info bar over a rendered
// plot. It needs a TrueType font, loaded from disk at startup.
type Annotator struct {
	context  *freetype.Context
	fontFace font.Face
}

// NewAnnotator loads fontFile and prepares the drawing context. An empty
// fontFile triggers a search through well-known system font locations.
func NewAnnotator(fontFile string) (*Annotator, error) {
	if fontFile == "" {
		for _, path := range fontSearchPaths {
			if _, err := os.Stat(path); err == nil {
				fontFile = path
				break
			}
		}
		if fontFile == "" {
			return nil, fmt.Errorf("no usable font found, pass one with -font")
		}
	}

	fontBytes, err := os.ReadFile(fontFile)
	if err != nil {
		return nil, fmt.Errorf("reading font file: %w", err)
	}
	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(fontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &Annotator{
		context: ctx,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    fontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *Annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *Annotator) Annotate(img *image.RGBA, plot *Plot, proj projection) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *Plot, projection) error
	}{
		{"drawing east scale", a.drawEastScale},
		{"drawing north scale", a.drawNorthScale},
		{"drawing waypoint labels", a.drawWaypointLabels},
		{"drawing info bar", a.drawInfoBar},
	}
	for _, op := range ops {
		if err := op.fn(img, plot, proj); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}
	return nil
}

// drawEastScale labels the horizontal axis in metres east of launch.
func (a *Annotator) drawEastScale(img *image.RGBA, _ *Plot, proj projection) error {
	step := niceStep(proj.maxE - proj.minE)

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := proj.borders.Top - tickMarkLength - fontHeight/2

	for e := math.Ceil(proj.minE/step) * step; e <= proj.maxE; e += step {
		x := proj.point(0, e).X

		for y := proj.borders.Top - tickMarkLength; y < proj.borders.Top; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatMetres(e)
		width := font.MeasureString(a.fontFace, label)
		pt := freetype.Pt(x-(width.Round()/2), textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return err
		}
	}
	return nil
}

// drawNorthScale labels the vertical axis in metres north of launch.
func (a *Annotator) drawNorthScale(img *image.RGBA, _ *Plot, proj projection) error {
	step := niceStep(proj.maxN - proj.minN)

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	for n := math.Ceil(proj.minN/step) * step; n <= proj.maxN; n += step {
		y := proj.point(n, 0).Y

		for x := proj.borders.Left - tickMarkLength; x < proj.borders.Left; x++ {
			img.Set(x, y, color.Black)
		}

		textY := y + fontHeight/2 - metrics.Descent.Round()
		pt := freetype.Pt(10, textY)
		if _, err := a.context.DrawString(formatMetres(n), pt); err != nil {
			return err
		}
	}
	return nil
}

func (a *Annotator) drawWaypointLabels(_ *image.RGBA, plot *Plot, proj projection) error {
	for _, wp := range plot.Plan {
		p := proj.point(wp.Position.North, wp.Position.East)
		pt := freetype.Pt(p.X+waypointMarkerRadius+3, p.Y-waypointMarkerRadius)
		if _, err := a.context.DrawString(strconv.Itoa(wp.Index), pt); err != nil {
			return err
		}
	}
	return nil
}

func (a *Annotator) drawInfoBar(img *image.RGBA, plot *Plot, proj projection) error {
	info := fmt.Sprintf("%s; plan %s; %d waypoints, %sm planned, %sm flown; 1px = %sm",
		plot.Mission.StartTime.Local().Format(time.DateTime),
		plot.Mission.PlanPath,
		len(plot.Plan),
		humanize.CommafWithDigits(plot.Plan.Length(), 1),
		humanize.CommafWithDigits(plot.FlownDistance(), 1),
		humanize.CommafWithDigits(1/proj.scale, 2))
	if len(plot.Track) > 0 {
		duration := plot.Track[len(plot.Track)-1].Timestamp.Sub(plot.Track[0].Timestamp)
		info += fmt.Sprintf("; flight time %s", duration.Round(time.Second))
	}

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := img.Bounds().Max.Y - (proj.borders.Bottom-fontHeight)/2 - metrics.Descent.Round()

	pt := freetype.Pt(proj.borders.Left, textY)
	_, err := a.context.DrawString(info, pt)
	return err
}

func formatMetres(v float64) string {
	return fmt.Sprintf("%gm", math.Round(v*10)/10)
}
