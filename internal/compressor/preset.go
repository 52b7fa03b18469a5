package compressor

import (
	"fmt"
	"strings"

	"pdf-editor-go/internal/config"
)

// Preset is a (resolution, JPEG quality) pair controlling downsample aggressiveness.
type Preset struct {
	DPI     int
	Quality int
}

func (p Preset) String() string {
	return fmt.Sprintf("%ddpi/q%d", p.DPI, p.Quality)
}

// Limits holds the heuristics that decide which images are worth shrinking.
type Limits struct {
	// SmallImageThreshold leaves images narrower or shorter than this many
	// pixels untouched.
	SmallImageThreshold int
	// PageWidthInches is the assumed printed page width.
	PageWidthInches float64
	// SlackFactor widens the pixel ceiling derived from DPI and page width.
	SlackFactor float64
}

// DefaultLimits returns an A4 page width with 1.5x slack and a 100px
// small-image threshold.
func DefaultLimits() Limits {
	return Limits{
		SmallImageThreshold: 100,
		PageWidthInches:     8.27,
		SlackFactor:         1.5,
	}
}

// MaxDimension returns the largest width or height an image may keep under preset p.
func (l Limits) MaxDimension(p Preset) int {
	return int(float64(p.DPI) * l.PageWidthInches * l.SlackFactor)
}

// Options configures a Pipeline.
type Options struct {
	Limits   Limits
	Presets  map[string]Preset
	Fallback Preset
	Ladder   []Preset
}

// DefaultOptions returns the built-in presets and ladder.
func DefaultOptions() Options {
	return Options{
		Limits: DefaultLimits(),
		Presets: map[string]Preset{
			"high":   {DPI: 150, Quality: 85},
			"medium": {DPI: 96, Quality: 70},
			"low":    {DPI: 72, Quality: 50},
		},
		Fallback: Preset{DPI: 96, Quality: 75},
		Ladder: []Preset{
			{DPI: 150, Quality: 75},
			{DPI: 96, Quality: 60},
			{DPI: 72, Quality: 40},
			{DPI: 50, Quality: 30},
		},
	}
}

// OptionsFromConfig converts the compression section of the configuration.
func OptionsFromConfig(c config.CompressionConfig) Options {
	opts := Options{
		Limits: Limits{
			SmallImageThreshold: c.SmallImageThreshold,
			PageWidthInches:     c.PageWidthInches,
			SlackFactor:         c.SlackFactor,
		},
		Presets:  make(map[string]Preset, len(c.Presets)),
		Fallback: Preset(c.FallbackPreset),
	}
	// viper lowercases map keys read from files; do the same for tables
	// built in code.
	for name, p := range c.Presets {
		opts.Presets[strings.ToLower(name)] = Preset(p)
	}
	for _, p := range c.Ladder {
		opts.Ladder = append(opts.Ladder, Preset(p))
	}
	return opts
}

// Lookup returns the named preset, or the fallback for unknown names. Names
// are matched exactly, so "HIGH" is unknown.
func (o Options) Lookup(name string) Preset {
	if p, ok := o.Presets[name]; ok {
		return p
	}
	return o.Fallback
}
