package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"
)

type ImageFormat string

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

// Config holds the render tool options.
type Config struct {
	InputFile  string // raw capture of the serial byte stream
	OutputFile string
	Format     ImageFormat
	DeviceID   string // device to plot; empty picks the one with most frames
	MasterID   string // enables clock alignment during replay when set
	Theme      ColorTheme
	Scale      int    // image pixels per CSI cell
	FontFile   string // TTF for annotations; empty disables them
	Verbose    bool
}

func NewConfig() *Config {
	return &Config{
		Format: ImagePNG,
		Theme:  ThermalTheme,
		Scale:  4,
	}
}

// NewConfigFromCLI builds the configuration from command line flags.
func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat, theme string
	flag.StringVar(&c.InputFile, "i", "", "Path to the raw serial capture file")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&c.DeviceID, "d", "", "Device to plot (default: device with the longest CSI history)")
	flag.StringVar(&c.MasterID, "master", "", "Master device id, enables clock alignment during replay")
	flag.StringVar(&theme, "theme", string(ThermalTheme), "Color theme. [classic, grayscale, jungle, thermal, marine]")
	flag.IntVar(&c.Scale, "scale", 4, "Image pixels per CSI cell")
	flag.StringVar(&c.FontFile, "font", "", "TTF font file for annotations (annotations off when omitted)")
	flag.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)

	var err error
	if c.InputFile == "" {
		err = errors.New("input file is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if c.Scale < 1 {
		err = errors.New("scale must be at least 1")
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.Theme = ColorTheme(theme)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
