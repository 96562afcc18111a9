package domain

import (
	"math"
	"testing"
)

func fixedSampler(readings ...Reading) Sampler {
	i := 0
	return SamplerFunc(func() Reading {
		r := readings[i%len(readings)]
		i++
		return r
	})
}

func TestAvailability(t *testing.T) {
	got := Availability(100, 5)
	if math.Abs(got-95.23809523809524) > 1e-9 {
		t.Fatalf("Availability(100, 5) = %v", got)
	}
	if Availability(0, 0) != 0 {
		t.Fatalf("expected 0 availability for empty interval")
	}
	for mtbf := 0.0; mtbf <= 200; mtbf += 7 {
		for mttr := 0.0; mttr <= 20; mttr += 3 {
			if mtbf+mttr == 0 || mtbf == 0 || mttr == 0 {
				continue
			}
			a := Availability(mtbf, mttr)
			if a <= 0 || a >= 100 {
				t.Fatalf("Availability(%v, %v) = %v outside (0,100)", mtbf, mttr, a)
			}
		}
	}
}

func TestOEEMonotonic(t *testing.T) {
	base := OEE(90, 90, 90)
	if math.Abs(base-72.9) > 1e-9 {
		t.Fatalf("OEE(90,90,90) = %v", base)
	}
	if OEE(91, 90, 90) <= base || OEE(90, 91, 90) <= base || OEE(90, 90, 91) <= base {
		t.Fatalf("OEE must increase with each factor")
	}
}

func TestPercentDelta(t *testing.T) {
	d := PercentDelta(4, 5)
	if !d.Valid || d.String() != "-20.00%" {
		t.Fatalf("unexpected delta: %#v %q", d, d.String())
	}
	if d := PercentDelta(4, 0); d.Valid || d.String() != "" {
		t.Fatalf("expected no delta for zero previous, got %#v", d)
	}
	if d := PercentDelta(4, math.NaN()); d.Valid {
		t.Fatalf("expected no delta for NaN previous")
	}
}

func TestHistoryDeltaNeedsTwoObservations(t *testing.T) {
	var h History
	mttr := func(o Observation) float64 { return o.MTTR }
	if h.Delta(mttr).Valid {
		t.Fatalf("expected no delta on empty history")
	}
	h.AppendAndTrim(Reading{MTTR: 5, MTBF: 100})
	if h.Delta(mttr).Valid {
		t.Fatalf("expected no delta with one observation")
	}
	h.AppendAndTrim(Reading{MTTR: 4, MTBF: 100})
	if got := h.Delta(mttr).String(); got != "-20.00%" {
		t.Fatalf("unexpected delta %q", got)
	}
}

func TestAppendAndTrimKeepsMostRecent(t *testing.T) {
	var h History
	for i := 1; i <= 13; i++ {
		h.AppendAndTrim(Reading{MTTR: float64(i), MTBF: 100})
		if h.Len() > HistoryLimit {
			t.Fatalf("history grew to %d", h.Len())
		}
	}
	if h.Len() != HistoryLimit {
		t.Fatalf("expected %d observations, got %d", HistoryLimit, h.Len())
	}
	for i, o := range h.Observations {
		if o.MTTR != float64(i+2) {
			t.Fatalf("observation %d has MTTR %v, want %v", i, o.MTTR, i+2)
		}
	}
	wantMonths := []int{2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 1}
	for i, o := range h.Observations {
		if o.Month != wantMonths[i] {
			t.Fatalf("observation %d month %d, want %d", i, o.Month, wantMonths[i])
		}
	}
}

func TestAppendAndTrimDerivesOEE(t *testing.T) {
	var h History
	obs := h.AppendAndTrim(Reading{MTTR: 5, MTBF: 100, Quality: 90, Performance: 90})
	if obs.Month != 1 {
		t.Fatalf("first month should be 1, got %d", obs.Month)
	}
	want := OEE(90, 90, Availability(100, 5))
	if math.Abs(obs.OEE-want) > 1e-9 || math.Abs(obs.Availability-95.23809523809524) > 1e-9 {
		t.Fatalf("unexpected observation: %#v", obs)
	}
}

func TestGeneratorRanges(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	g, err := NewGenerator(cfg, 42)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	for i := 0; i < 2000; i++ {
		r := g.Sample()
		if r.MTTR < 2 || r.MTTR > 5 || r.MTTR != math.Trunc(r.MTTR) {
			t.Fatalf("mttr out of range: %v", r.MTTR)
		}
		if r.MTBF < 24 || r.MTBF > 149 || r.MTBF != math.Trunc(r.MTBF) {
			t.Fatalf("mtbf out of range: %v", r.MTBF)
		}
		if r.Quality < 80 || r.Quality >= 95 || r.Performance < 80 || r.Performance >= 95 {
			t.Fatalf("quality/performance out of range: %#v", r)
		}
	}
}

func TestGeneratorSeedIsDeterministic(t *testing.T) {
	a, _ := NewGenerator(DefaultGeneratorConfig(), 7)
	b, _ := NewGenerator(DefaultGeneratorConfig(), 7)
	for i := 0; i < 20; i++ {
		if a.Sample() != b.Sample() {
			t.Fatalf("samples diverged at %d", i)
		}
	}
}

func TestGeneratorConfigValidate(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.MTBFMin = 200
	if _, err := NewGenerator(cfg, 1); err == nil {
		t.Fatalf("expected invalid mtbf range to be rejected")
	}
}
