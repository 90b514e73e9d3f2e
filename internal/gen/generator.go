// Package gen produces synthetic snapshot streams. A seeded random walk
// drives the mid price, so every stream is reproducible from its config.
package gen

import (
	"fmt"
	"math/rand"

	"main/internal/schema"
)

// Config controls the synthetic book shape.
type Config struct {
	Seed       int64
	StartTsNs  int64
	IntervalNs int64

	// MidQ is the opening mid price; TickQ is the price grid step.
	MidQ  int64
	TickQ int64

	// Levels is the active ladder depth per side, at most schema.Depth.
	Levels int

	// BaseQtyQ is the mean displayed quantity per level.
	BaseQtyQ int64

	// GapPpm is the per-tick chance (in ppm) that a side loses its deepest
	// levels, exercising the consumer's frozen/re-anchor paths.
	GapPpm int64
}

func (c Config) validate() error {
	if c.IntervalNs <= 0 {
		return fmt.Errorf("interval must be > 0, got %d", c.IntervalNs)
	}
	if c.TickQ <= 0 {
		return fmt.Errorf("tick must be > 0, got %d", c.TickQ)
	}
	if c.Levels <= 0 || c.Levels > schema.Depth {
		return fmt.Errorf("levels must be in [1, %d], got %d", schema.Depth, c.Levels)
	}
	if c.BaseQtyQ <= 0 {
		return fmt.Errorf("base qty must be > 0, got %d", c.BaseQtyQ)
	}
	if c.MidQ <= c.TickQ*int64(c.Levels) {
		return fmt.Errorf("mid %d leaves no room for %d bid levels of tick %d", c.MidQ, c.Levels, c.TickQ)
	}
	if c.GapPpm < 0 || c.GapPpm > 1_000_000 {
		return fmt.Errorf("gap ppm must be in [0, 1000000], got %d", c.GapPpm)
	}
	return nil
}

// Generator emits one synthetic record per Next call.
type Generator struct {
	cfg  Config
	rng  *rand.Rand
	midQ int64
	ts   int64
}

// NewGenerator validates the config and seeds the walk.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Generator{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		midQ: cfg.MidQ,
		ts:   cfg.StartTsNs,
	}, nil
}

// Next fills rec with the next tick and advances the walk.
func (g *Generator) Next(rec *schema.Record) {
	g.ts += g.cfg.IntervalNs
	g.midQ += int64(g.rng.Intn(3)-1) * g.cfg.TickQ
	floor := g.cfg.TickQ * int64(g.cfg.Levels+1)
	if g.midQ < floor {
		g.midQ = floor
	}

	rec.TsRecvNs = g.ts
	rec.TsEventMs = g.ts / 1_000_000

	bidLevels := g.cfg.Levels
	askLevels := g.cfg.Levels
	if g.cfg.GapPpm > 0 {
		if int64(g.rng.Intn(1_000_000)) < g.cfg.GapPpm {
			bidLevels = 1 + g.rng.Intn(g.cfg.Levels)
		}
		if int64(g.rng.Intn(1_000_000)) < g.cfg.GapPpm {
			askLevels = 1 + g.rng.Intn(g.cfg.Levels)
		}
	}

	for i := 0; i < schema.Depth; i++ {
		if i < bidLevels {
			rec.Bids[i] = schema.Level{
				PriceQ: g.midQ - g.cfg.TickQ*int64(i+1),
				QtyQ:   g.qty(),
			}
		} else {
			rec.Bids[i] = schema.NullBidLevel()
		}
		if i < askLevels {
			rec.Asks[i] = schema.Level{
				PriceQ: g.midQ + g.cfg.TickQ*int64(i+1),
				QtyQ:   g.qty(),
			}
		} else {
			rec.Asks[i] = schema.NullAskLevel()
		}
	}
}

func (g *Generator) qty() int64 {
	half := g.cfg.BaseQtyQ / 2
	if half <= 0 {
		return g.cfg.BaseQtyQ
	}
	return g.cfg.BaseQtyQ - half + g.rng.Int63n(2*half)
}
