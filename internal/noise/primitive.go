package noise

import (
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// Kind names a single-octave noise primitive.
type Kind string

const (
	KindValue   Kind = "value"
	KindSimplex Kind = "simplex"
	KindPerlin  Kind = "perlin"
)

// Primitive is one octave of coherent noise with output in [0,1].
type Primitive interface {
	Eval2(x, y float64) float64
}

func newPrimitive(kind Kind, seed int64) (Primitive, error) {
	switch kind {
	case KindValue:
		return valueNoise{seed: seed}, nil
	case KindSimplex:
		return simplexNoise{n: opensimplex.NewNormalized(seed)}, nil
	case KindPerlin:
		return perlinNoise{p: perlin.NewPerlin(2, 2, 1, seed)}, nil
	default:
		return nil, fmt.Errorf("noise: unknown primitive %q", kind)
	}
}

// valueNoise interpolates hashed lattice values with a smoothstep fade.
type valueNoise struct {
	seed int64
}

func (v valueNoise) Eval2(x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := x0 + 1
	y1 := y0 + 1

	sx := smooth(x - float64(x0))
	sy := smooth(y - float64(y0))

	ix0 := lerp(v.corner(x0, y0), v.corner(x1, y0), sx)
	ix1 := lerp(v.corner(x0, y1), v.corner(x1, y1), sx)
	return lerp(ix0, ix1, sy)
}

func (v valueNoise) corner(x, y int) float64 {
	return float64(Hash3(x, y, int(v.seed))&0xFFFF) / 0xFFFF
}

type simplexNoise struct {
	n opensimplex.Noise
}

func (s simplexNoise) Eval2(x, y float64) float64 {
	return clamp01(s.n.Eval2(x, y))
}

// perlinNoise remaps go-perlin's single octave, bounded by ±√2/2, into [0,1].
type perlinNoise struct {
	p *perlin.Perlin
}

func (n perlinNoise) Eval2(x, y float64) float64 {
	return clamp01(0.5 + n.p.Noise2D(x, y)/math.Sqrt2)
}

func smooth(t float64) float64 {
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
