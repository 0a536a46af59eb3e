package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	DBPath        string
	MissionID     int64
	OutputFile    string
	Format        ImageFormat
	FontFile      string
	Scale         float64
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format: ImagePNG,
		Scale:  defaultScale,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat string
	flag.StringVar(&c.DBPath, "db", "", "Path to the flight log database file")
	flag.Int64Var(&c.MissionID, "m", 1, "Mission ID")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&c.FontFile, "font", "", "Path to a TrueType font for labels (autodetected when empty)")
	flag.Float64Var(&c.Scale, "scale", defaultScale, "Plot scale in pixels per metre")
	flag.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as waypoint labels and the info bar")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.MissionID <= 0 {
		err = errors.New("mission id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if c.Scale <= 0 {
		err = errors.New("scale must be positive")
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
