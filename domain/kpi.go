package domain

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
)

// HistoryLimit is the number of observations kept in the rolling window.
const HistoryLimit = 12

// MonthsPerCycle is the length of the month label cycle.
const MonthsPerCycle = 12

// Reading is one raw KPI sample before it is placed in the history.
type Reading struct {
	MTTR        float64 `json:"mttr"`
	MTBF        float64 `json:"mtbf"`
	Quality     float64 `json:"quality"`
	Performance float64 `json:"performance"`
}

// Availability derives the availability percentage of the reading.
func (r Reading) Availability() float64 {
	return Availability(r.MTBF, r.MTTR)
}

// Observation is a reading labelled with its month and derived OEE figures.
type Observation struct {
	Month        int     `json:"month"`
	MTTR         float64 `json:"mttr"`
	MTBF         float64 `json:"mtbf"`
	OEE          float64 `json:"oee"`
	Quality      float64 `json:"quality"`
	Performance  float64 `json:"performance"`
	Availability float64 `json:"availability"`
}

// Availability is MTBF/(MTBF+MTTR) as a percentage, or 0 when both are zero.
func Availability(mtbf, mttr float64) float64 {
	total := mtbf + mttr
	if total <= 0 {
		return 0
	}
	return mtbf / total * 100
}

// OEE combines three percentages into an overall effectiveness percentage.
func OEE(quality, performance, availability float64) float64 {
	return quality * performance * availability / 10000
}

// Delta is a percentage change that may be absent.
type Delta struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// PercentDelta returns (current-previous)/previous*100. A zero or
// non-finite previous reading yields an invalid Delta.
func PercentDelta(current, previous float64) Delta {
	if previous == 0 || math.IsNaN(previous) || math.IsInf(previous, 0) {
		return Delta{}
	}
	v := (current - previous) / previous * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Delta{}
	}
	return Delta{Value: v, Valid: true}
}

func (d Delta) String() string {
	if !d.Valid {
		return ""
	}
	return fmt.Sprintf("%.2f%%", d.Value)
}

// History is the rolling window of observations with its own month counter.
type History struct {
	Observations []Observation `json:"observations"`
	NextMonth    int           `json:"nextMonth,omitempty"`
}

// AppendAndTrim labels r with the next month, appends it and drops the
// oldest entries beyond HistoryLimit.
func (h *History) AppendAndTrim(r Reading) Observation {
	month := h.NextMonth
	if month < 1 || month > MonthsPerCycle {
		month = 1
	}
	h.NextMonth = month%MonthsPerCycle + 1

	availability := r.Availability()
	obs := Observation{
		Month:        month,
		MTTR:         r.MTTR,
		MTBF:         r.MTBF,
		Quality:      r.Quality,
		Performance:  r.Performance,
		Availability: availability,
		OEE:          OEE(r.Quality, r.Performance, availability),
	}
	h.Observations = append(h.Observations, obs)
	if n := len(h.Observations); n > HistoryLimit {
		kept := make([]Observation, HistoryLimit)
		copy(kept, h.Observations[n-HistoryLimit:])
		h.Observations = kept
	}
	return obs
}

// Len returns the number of retained observations.
func (h History) Len() int {
	return len(h.Observations)
}

// Latest returns the most recent observation.
func (h History) Latest() (Observation, bool) {
	if len(h.Observations) == 0 {
		return Observation{}, false
	}
	return h.Observations[len(h.Observations)-1], true
}

// Delta compares the two most recent values of the selected field.
func (h History) Delta(field func(Observation) float64) Delta {
	n := len(h.Observations)
	if n < 2 {
		return Delta{}
	}
	return PercentDelta(field(h.Observations[n-1]), field(h.Observations[n-2]))
}

func (h History) clone() History {
	out := History{NextMonth: h.NextMonth}
	if h.Observations != nil {
		out.Observations = make([]Observation, len(h.Observations))
		copy(out.Observations, h.Observations)
	}
	return out
}

// Sampler produces KPI readings. Implementations must be safe for concurrent use.
type Sampler interface {
	Sample() Reading
}

// GeneratorConfig bounds the random KPI samples. Integer bounds are inclusive,
// real bounds are half-open [min, max).
type GeneratorConfig struct {
	MTTRMin        int     `mapstructure:"mttr_min"`
	MTTRMax        int     `mapstructure:"mttr_max"`
	MTBFMin        int     `mapstructure:"mtbf_min"`
	MTBFMax        int     `mapstructure:"mtbf_max"`
	QualityMin     float64 `mapstructure:"quality_min"`
	QualityMax     float64 `mapstructure:"quality_max"`
	PerformanceMin float64 `mapstructure:"performance_min"`
	PerformanceMax float64 `mapstructure:"performance_max"`
}

// DefaultGeneratorConfig returns ranges under which the derived availability
// lands in a realistic band.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MTTRMin:        2,
		MTTRMax:        5,
		MTBFMin:        24,
		MTBFMax:        149,
		QualityMin:     80,
		QualityMax:     95,
		PerformanceMin: 80,
		PerformanceMax: 95,
	}
}

// Validate checks that every range is well formed.
func (c GeneratorConfig) Validate() error {
	switch {
	case c.MTTRMin < 0 || c.MTTRMin > c.MTTRMax:
		return fmt.Errorf("mttr range [%d,%d] is invalid", c.MTTRMin, c.MTTRMax)
	case c.MTBFMin < 0 || c.MTBFMin > c.MTBFMax:
		return fmt.Errorf("mtbf range [%d,%d] is invalid", c.MTBFMin, c.MTBFMax)
	case c.QualityMin < 0 || c.QualityMin > c.QualityMax:
		return fmt.Errorf("quality range [%g,%g) is invalid", c.QualityMin, c.QualityMax)
	case c.PerformanceMin < 0 || c.PerformanceMin > c.PerformanceMax:
		return fmt.Errorf("performance range [%g,%g) is invalid", c.PerformanceMin, c.PerformanceMax)
	}
	return nil
}

// Generator is the default random Sampler.
type Generator struct {
	cfg GeneratorConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a Generator. A zero seed picks a random one.
func NewGenerator(cfg GeneratorConfig, seed uint64) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s1, s2 := seed, seed^0x9e3779b97f4a7c15
	if seed == 0 {
		s1, s2 = rand.Uint64(), rand.Uint64()
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewPCG(s1, s2))}, nil
}

// Sample draws one reading.
func (g *Generator) Sample() Reading {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Reading{
		MTTR:        float64(g.intIn(g.cfg.MTTRMin, g.cfg.MTTRMax)),
		MTBF:        float64(g.intIn(g.cfg.MTBFMin, g.cfg.MTBFMax)),
		Quality:     g.floatIn(g.cfg.QualityMin, g.cfg.QualityMax),
		Performance: g.floatIn(g.cfg.PerformanceMin, g.cfg.PerformanceMax),
	}
}

func (g *Generator) intIn(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) floatIn(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func() Reading

func (f SamplerFunc) Sample() Reading { return f() }
