package biome

import (
	"image/color"
	"math"
	"testing"

	"terrainstream/internal/config"
)

func TestCurveApplyStaysInUnitRange(t *testing.T) {
	curves := []Curve{
		{Kind: CurveLinear},
		{Kind: CurvePower, Exponent: 1.5},
		{Kind: CurveTerrace, Steps: 4},
		{Kind: CurveRidged},
	}
	for _, c := range curves {
		for n := 0.0; n <= 1.0; n += 0.01 {
			v := c.Apply(n)
			if v < 0 || v > 1+1e-12 {
				t.Fatalf("%s curve: Apply(%v) = %v outside [0,1]", c.Kind, n, v)
			}
		}
	}
	if got := (Curve{Kind: CurveTerrace, Steps: 4}).Apply(1); math.Abs(got-1) > 1e-12 {
		t.Fatalf("terrace should reach 1 at the top, got %v", got)
	}
	if got := (Curve{Kind: CurveRidged}).Apply(0.5); got != 1 {
		t.Fatalf("ridge peak = %v, want 1", got)
	}
}

func TestNewTableOrdersByID(t *testing.T) {
	rows := config.DefaultBiomes()
	rows[0], rows[4] = rows[4], rows[0]
	table, err := NewTable(rows)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	for i, d := range table.Definitions() {
		if d.ID != ID(i) {
			t.Fatalf("definition %d has id %d", i, d.ID)
		}
	}
	if d, ok := table.Get(3); !ok || d.Name != "Floating Islands" {
		t.Fatalf("unexpected lookup result %+v %v", d, ok)
	}
	if _, ok := table.Get(99); ok {
		t.Fatalf("unknown id should not resolve")
	}
}

func TestNewTableRejectsDuplicates(t *testing.T) {
	rows := config.DefaultBiomes()
	rows[2].ID = rows[1].ID
	if _, err := NewTable(rows); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestTableBlendsHeightAndColor(t *testing.T) {
	table, err := newTable([]Definition{
		{ID: 0, BaseHeight: 0, Amplitude: 10, Curve: Curve{Kind: CurveLinear}, BlendBand: 8, Color: color.NRGBA{R: 200, A: 255}},
		{ID: 1, BaseHeight: 4, Amplitude: 0, Curve: Curve{Kind: CurveLinear}, BlendBand: 8, Color: color.NRGBA{B: 100, A: 255}},
	})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	b := Blend{Dominant: 0, Weights: []Weight{{Biome: 0, Value: 0.5}, {Biome: 1, Value: 0.5}}}

	if got := table.Height(b, 0.6); math.Abs(got-5) > 1e-12 {
		t.Fatalf("blended height = %v, want 5", got)
	}
	if got := table.Height(Pure(1), 0.6); got != 4 {
		t.Fatalf("pure height = %v, want 4", got)
	}
	if got := table.Color(b); got != (color.NRGBA{R: 100, G: 0, B: 50, A: 255}) {
		t.Fatalf("blended colour = %v", got)
	}
}
