package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfiguration is wrapped by every error returned from Validate.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Duration is a config-friendly wrapper around time.Duration that accepts human
// readable strings such as "150ms" in JSON and YAML files while still allowing
// numeric nanosecond representations.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null values decode
// to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: decode string: %w", err)
		}
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return fmt.Errorf("duration: invalid value %s", string(b))
}

// MarshalYAML encodes the duration as its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML scalars.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration: expected scalar, got yaml kind %d", node.Kind)
	}
	if node.Tag == "!!int" {
		var n int64
		if err := node.Decode(&n); err != nil {
			return fmt.Errorf("duration: decode int: %w", err)
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	if node.Tag == "!!null" {
		*d = 0
		return nil
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: parse %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config captures every tunable of the terrain streaming core.
type Config struct {
	World     WorldConfig     `json:"world" yaml:"world"`
	Noise     NoiseConfig     `json:"noise" yaml:"noise"`
	Biomes    BiomesConfig    `json:"biomes" yaml:"biomes"`
	Streaming StreamingConfig `json:"streaming" yaml:"streaming"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

type WorldConfig struct {
	Seed           int64   `json:"seed" yaml:"seed"`
	ChunkSize      float64 `json:"chunkSize" yaml:"chunkSize"`           // world units per chunk edge
	Resolution     int     `json:"resolution" yaml:"resolution"`         // cells per chunk edge
	FallbackHeight float64 `json:"fallbackHeight" yaml:"fallbackHeight"` // served by permanently failed chunks
}

type NoiseConfig struct {
	Primitive   string     `json:"primitive" yaml:"primitive"` // value, simplex or perlin
	Frequency   float64    `json:"frequency" yaml:"frequency"`
	Octaves     int        `json:"octaves" yaml:"octaves"`
	Persistence float64    `json:"persistence" yaml:"persistence"`
	Lacunarity  float64    `json:"lacunarity" yaml:"lacunarity"`
	Warp        WarpConfig `json:"warp" yaml:"warp"`
}

// WarpConfig displaces noise lookups by up to Amplitude world units. Zero disables warping.
type WarpConfig struct {
	Amplitude float64 `json:"amplitude" yaml:"amplitude"`
	Frequency float64 `json:"frequency" yaml:"frequency"`
}

type BiomesConfig struct {
	CellSize         float64       `json:"cellSize" yaml:"cellSize"` // jittered grid spacing in world units
	Jitter           float64       `json:"jitter" yaml:"jitter"`     // 0 = regular grid, 1 = anywhere in cell
	ClimateFrequency float64       `json:"climateFrequency" yaml:"climateFrequency"`
	Table            []BiomeConfig `json:"table" yaml:"table"`
}

type BiomeConfig struct {
	ID             int         `json:"id" yaml:"id"`
	Name           string      `json:"name" yaml:"name"`
	BaseHeight     float64     `json:"baseHeight" yaml:"baseHeight"`
	Amplitude      float64     `json:"amplitude" yaml:"amplitude"`
	Curve          CurveConfig `json:"curve" yaml:"curve"`
	BlendBandWidth float64     `json:"blendBandWidth" yaml:"blendBandWidth"`
	Color          string      `json:"color" yaml:"color"` // #rrggbb
	Temperature    float64     `json:"temperature" yaml:"temperature"`
	Moisture       float64     `json:"moisture" yaml:"moisture"`
	TreeDensity    float64     `json:"treeDensity" yaml:"treeDensity"`
	GrassDensity   float64     `json:"grassDensity" yaml:"grassDensity"`
}

type CurveConfig struct {
	Kind     string  `json:"kind" yaml:"kind"` // linear, power, terrace, ridged
	Exponent float64 `json:"exponent,omitempty" yaml:"exponent,omitempty"`
	Steps    int     `json:"steps,omitempty" yaml:"steps,omitempty"`
}

type StreamingConfig struct {
	LoadDistance     int      `json:"loadDistance" yaml:"loadDistance"`
	UnloadDistance   int      `json:"unloadDistance" yaml:"unloadDistance"`
	Workers          int      `json:"workers" yaml:"workers"`
	TickRate         Duration `json:"tickRate" yaml:"tickRate"`
	RetryLimit       int      `json:"retryLimit" yaml:"retryLimit"`
	RetryBackoff     Duration `json:"retryBackoff" yaml:"retryBackoff"`
	MaxRetryBackoff  Duration `json:"maxRetryBackoff" yaml:"maxRetryBackoff"`
	CompletionBuffer int      `json:"completionBuffer" yaml:"completionBuffer"`
}

// TelemetryConfig enables the SQLite lifecycle journal when Path is set.
type TelemetryConfig struct {
	Path string `json:"path" yaml:"path"`
}

// Load reads configuration from a JSON or YAML file if provided. An empty path
// returns defaults. The file is decoded on top of the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	return Decode(data, format)
}

// Decode parses a "json" or "yaml" document on top of the defaults and
// validates the result. A biome table in the document replaces the default
// table as a whole, whatever the format.
func Decode(data []byte, format string) (*Config, error) {
	cfg := Default()
	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, cfg)
	case "json":
		var present struct {
			Biomes struct {
				Table json.RawMessage `json:"table"`
			} `json:"biomes"`
		}
		if err = json.Unmarshal(data, &present); err == nil {
			// encoding/json reuses existing slice elements, which would leak
			// default rows into fields the document leaves out.
			if present.Biomes.Table != nil {
				cfg.Biomes.Table = nil
			}
			err = json.Unmarshal(data, cfg)
		}
	default:
		return nil, fmt.Errorf("parse config: unknown format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		World: WorldConfig{
			Seed:       42,
			ChunkSize:  64,
			Resolution: 32,
		},
		Noise: NoiseConfig{
			Primitive:   "simplex",
			Frequency:   0.02,
			Octaves:     4,
			Persistence: 0.5,
			Lacunarity:  2.0,
		},
		Biomes: BiomesConfig{
			CellSize:         200,
			Jitter:           0.8,
			ClimateFrequency: 0.0015,
			Table:            DefaultBiomes(),
		},
		Streaming: StreamingConfig{
			LoadDistance:     3,
			UnloadDistance:   5,
			Workers:          4,
			TickRate:         Duration(50 * time.Millisecond),
			RetryLimit:       3,
			RetryBackoff:     Duration(250 * time.Millisecond),
			MaxRetryBackoff:  Duration(4 * time.Second),
			CompletionBuffer: 64,
		},
	}
}

// DefaultBiomes returns the five stock biomes.
func DefaultBiomes() []BiomeConfig {
	return []BiomeConfig{
		{
			ID: 0, Name: "Grasslands",
			BaseHeight: 0, Amplitude: 5,
			Curve:          CurveConfig{Kind: "power", Exponent: 1.5},
			BlendBandWidth: 16, Color: "#4d9933",
			Temperature: 0.55, Moisture: 0.45,
			TreeDensity: 0.1, GrassDensity: 0.8,
		},
		{
			ID: 1, Name: "Enchanted Forest",
			BaseHeight: 0.5, Amplitude: 8,
			Curve:          CurveConfig{Kind: "power", Exponent: 1.5},
			BlendBandWidth: 16, Color: "#1a664d",
			Temperature: 0.45, Moisture: 0.6,
			TreeDensity: 0.7, GrassDensity: 0.5,
		},
		{
			ID: 2, Name: "Crystal Caves",
			BaseHeight: -1, Amplitude: 3,
			Curve:          CurveConfig{Kind: "ridged"},
			BlendBandWidth: 16, Color: "#804db3",
			Temperature: 0.35, Moisture: 0.45,
			TreeDensity: 0.0, GrassDensity: 0.1,
		},
		{
			ID: 3, Name: "Floating Islands",
			BaseHeight: 2, Amplitude: 15,
			Curve:          CurveConfig{Kind: "power", Exponent: 2.2},
			BlendBandWidth: 16, Color: "#99b3e6",
			Temperature: 0.5, Moisture: 0.35,
			TreeDensity: 0.3, GrassDensity: 0.6,
		},
		{
			ID: 4, Name: "Ancient Ruins",
			BaseHeight: 0.5, Amplitude: 2,
			Curve:          CurveConfig{Kind: "terrace", Steps: 4},
			BlendBandWidth: 16, Color: "#80664d",
			Temperature: 0.65, Moisture: 0.55,
			TreeDensity: 0.05, GrassDensity: 0.3,
		},
	}
}

// MaxBlendBandWidth is the widest blend band a biome may use on a jittered
// grid of the given cell size. Wider bands would reach sites the classifier
// does not scan.
func MaxBlendBandWidth(cellSize float64) float64 {
	return (2 - math.Sqrt2) * cellSize
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

func (c *Config) Validate() error {
	if c.World.ChunkSize <= 0 {
		return invalid("world.chunkSize must be positive")
	}
	if c.World.Resolution < 1 {
		return invalid("world.resolution must be at least 1")
	}
	if err := c.Noise.Validate("noise"); err != nil {
		return err
	}
	if c.Biomes.CellSize <= 0 {
		return invalid("biomes.cellSize must be positive")
	}
	if c.Biomes.Jitter < 0 || c.Biomes.Jitter > 1 {
		return invalid("biomes.jitter must be within [0,1]")
	}
	if c.Biomes.ClimateFrequency <= 0 {
		return invalid("biomes.climateFrequency must be positive")
	}
	if len(c.Biomes.Table) == 0 {
		return invalid("biomes.table must not be empty")
	}
	seen := make(map[int]bool, len(c.Biomes.Table))
	for i, b := range c.Biomes.Table {
		if err := b.validate(i); err != nil {
			return err
		}
		if limit := MaxBlendBandWidth(c.Biomes.CellSize); b.BlendBandWidth > limit {
			return invalid("biomes.table[%d].blendBandWidth %.1f exceeds %.1f for biomes.cellSize %.1f",
				i, b.BlendBandWidth, limit, c.Biomes.CellSize)
		}
		if seen[b.ID] {
			return invalid("biomes.table[%d].id %d is duplicated", i, b.ID)
		}
		seen[b.ID] = true
	}

	s := c.Streaming
	if s.LoadDistance < 0 {
		return invalid("streaming.loadDistance cannot be negative")
	}
	if s.UnloadDistance <= s.LoadDistance {
		return invalid("streaming.unloadDistance must be greater than loadDistance")
	}
	if s.Workers < 1 {
		return invalid("streaming.workers must be at least 1")
	}
	if s.TickRate <= 0 {
		return invalid("streaming.tickRate must be positive")
	}
	if s.RetryLimit < 0 {
		return invalid("streaming.retryLimit cannot be negative")
	}
	if s.RetryBackoff < 0 || s.MaxRetryBackoff < 0 {
		return invalid("streaming retry backoff cannot be negative")
	}
	if s.MaxRetryBackoff > 0 && s.MaxRetryBackoff < s.RetryBackoff {
		return invalid("streaming.maxRetryBackoff must be >= retryBackoff")
	}
	if s.CompletionBuffer < 0 {
		return invalid("streaming.completionBuffer cannot be negative")
	}
	return nil
}

// Validate checks a noise section; field names in errors are prefixed with section.
func (n NoiseConfig) Validate(section string) error {
	switch n.Primitive {
	case "value", "simplex", "perlin":
	default:
		return invalid("%s.primitive %q is not one of value, simplex, perlin", section, n.Primitive)
	}
	if n.Frequency <= 0 {
		return invalid("%s.frequency must be positive", section)
	}
	if n.Octaves < 1 {
		return invalid("%s.octaves must be at least 1", section)
	}
	if n.Persistence <= 0 || n.Persistence > 1 {
		return invalid("%s.persistence must be within (0,1]", section)
	}
	if n.Lacunarity <= 0 {
		return invalid("%s.lacunarity must be positive", section)
	}
	if n.Warp.Amplitude < 0 {
		return invalid("%s.warp.amplitude cannot be negative", section)
	}
	if n.Warp.Amplitude > 0 && n.Warp.Frequency <= 0 {
		return invalid("%s.warp.frequency must be positive when warping", section)
	}
	return nil
}

func (b BiomeConfig) validate(i int) error {
	if b.ID < 0 {
		return invalid("biomes.table[%d].id cannot be negative", i)
	}
	if b.Amplitude < 0 {
		return invalid("biomes.table[%d].amplitude cannot be negative", i)
	}
	if b.BlendBandWidth <= 0 {
		return invalid("biomes.table[%d].blendBandWidth must be positive", i)
	}
	switch b.Curve.Kind {
	case "", "linear", "ridged":
	case "power":
		if b.Curve.Exponent <= 0 {
			return invalid("biomes.table[%d].curve.exponent must be positive", i)
		}
	case "terrace":
		if b.Curve.Steps < 1 {
			return invalid("biomes.table[%d].curve.steps must be at least 1", i)
		}
	default:
		return invalid("biomes.table[%d].curve.kind %q is unknown", i, b.Curve.Kind)
	}
	if _, err := ParseColor(b.Color); err != nil {
		return invalid("biomes.table[%d].color: %v", i, err)
	}
	if b.TreeDensity < 0 || b.TreeDensity > 1 || b.GrassDensity < 0 || b.GrassDensity > 1 {
		return invalid("biomes.table[%d] densities must be within [0,1]", i)
	}
	return nil
}

// ParseColor decodes a #rrggbb string into its three channels.
func ParseColor(s string) ([3]uint8, error) {
	var rgb [3]uint8
	if len(s) != 7 || s[0] != '#' {
		return rgb, fmt.Errorf("color %q must look like #rrggbb", s)
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &rgb[0], &rgb[1], &rgb[2]); err != nil {
		return rgb, fmt.Errorf("color %q: %w", s, err)
	}
	return rgb, nil
}
