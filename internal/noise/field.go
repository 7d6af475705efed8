// Package noise provides seeded, deterministic 2D noise fields.
package noise

import (
	"errors"
	"fmt"

	"terrainstream/internal/config"
)

// Params describes a fractal noise field.
type Params struct {
	Seed        int64
	Kind        Kind
	Frequency   float64
	Octaves     int
	Persistence float64
	Lacunarity  float64
	// WarpAmplitude displaces lookups by up to this many world units; zero disables warping.
	WarpAmplitude float64
	WarpFrequency float64
}

// ParamsFromConfig builds Params for seed from a noise config section.
func ParamsFromConfig(seed int64, cfg config.NoiseConfig) Params {
	return Params{
		Seed:          seed,
		Kind:          Kind(cfg.Primitive),
		Frequency:     cfg.Frequency,
		Octaves:       cfg.Octaves,
		Persistence:   cfg.Persistence,
		Lacunarity:    cfg.Lacunarity,
		WarpAmplitude: cfg.Warp.Amplitude,
		WarpFrequency: cfg.Warp.Frequency,
	}
}

// Field is a fractal sum of octaves normalised into [0,1]. It is immutable
// after construction and safe for concurrent use.
type Field struct {
	params  Params
	octaves []Primitive
	weights []float64 // amplitude of each octave divided by the total
	warpX   Primitive
	warpZ   Primitive
}

// New constructs a Field. Identical Params always produce identical fields.
func New(p Params) (*Field, error) {
	if p.Octaves < 1 {
		return nil, errors.New("noise: octaves must be at least 1")
	}
	if p.Frequency <= 0 || p.Lacunarity <= 0 {
		return nil, errors.New("noise: frequency and lacunarity must be positive")
	}
	if p.Persistence <= 0 || p.Persistence > 1 {
		return nil, fmt.Errorf("noise: persistence %v outside (0,1]", p.Persistence)
	}
	if p.WarpAmplitude < 0 || (p.WarpAmplitude > 0 && p.WarpFrequency <= 0) {
		return nil, errors.New("noise: warp needs a positive frequency")
	}

	f := &Field{
		params:  p,
		octaves: make([]Primitive, p.Octaves),
		weights: make([]float64, p.Octaves),
	}
	amplitude, total := 1.0, 0.0
	for i := range f.octaves {
		prim, err := newPrimitive(p.Kind, DeriveSeed(p.Seed, uint64(i)))
		if err != nil {
			return nil, err
		}
		f.octaves[i] = prim
		f.weights[i] = amplitude
		total += amplitude
		amplitude *= p.Persistence
	}
	for i := range f.weights {
		f.weights[i] /= total
	}

	if p.WarpAmplitude > 0 {
		var err error
		if f.warpX, err = newPrimitive(p.Kind, DeriveSeed(p.Seed, 0x5741_5250_58)); err != nil {
			return nil, err
		}
		if f.warpZ, err = newPrimitive(p.Kind, DeriveSeed(p.Seed, 0x5741_5250_5a)); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Params returns the parameters the field was built from.
func (f *Field) Params() Params {
	return f.params
}

// Evaluate returns the field value at world position (x, z), always within [0,1].
func (f *Field) Evaluate(x, z float64) float64 {
	if f.warpX != nil {
		wf := f.params.WarpFrequency
		dx := 2*f.warpX.Eval2(x*wf, z*wf) - 1
		dz := 2*f.warpZ.Eval2(x*wf, z*wf) - 1
		x += dx * f.params.WarpAmplitude
		z += dz * f.params.WarpAmplitude
	}

	frequency := f.params.Frequency
	sum := 0.0
	for i, prim := range f.octaves {
		sum += prim.Eval2(x*frequency, z*frequency) * f.weights[i]
		frequency *= f.params.Lacunarity
	}
	return clamp01(sum)
}
