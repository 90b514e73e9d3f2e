package invariant

import (
	"sort"

	"main/internal/schema"
	"main/internal/sim"
)

// HorizonMarkout is one horizon's signed mid move after a fill.
type HorizonMarkout struct {
	HorizonSteps int
	DeltaQ       int64
}

// MarkoutRow is one fill with all horizons resolved.
type MarkoutRow struct {
	FillIdx    int
	FillTsNs   int64
	OrderID    uint64
	Side       schema.Side
	Liquidity  schema.Liquidity
	QtyQ       int64
	FillPriceQ int64
	Mid0Q      int64
	Step0      int
	Markouts   []HorizonMarkout
}

type pendingMarkout struct {
	row  MarkoutRow
	sign int64
	done int
}

// Markout tracks step-based markouts per fill:
// markout(h) = sideSign * (mid(t+h) - mid(t)).
type Markout struct {
	horizons  []int
	pending   []pendingMarkout
	completed []MarkoutRow
	fillIdx   int
}

// NewMarkout deduplicates and sorts the step horizons; non-positive entries
// are dropped.
func NewMarkout(horizonsSteps []int) *Markout {
	seen := make(map[int]struct{}, len(horizonsSteps))
	horizons := make([]int, 0, len(horizonsSteps))
	for _, h := range horizonsSteps {
		if h <= 0 {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		horizons = append(horizons, h)
	}
	sort.Ints(horizons)
	return &Markout{horizons: horizons}
}

// OnFill registers a fill observed at the given step and mid.
func (m *Markout) OnFill(f sim.FillEvent, step int, midQ int64) {
	pm := pendingMarkout{
		row: MarkoutRow{
			FillIdx:    m.fillIdx,
			FillTsNs:   f.Ts,
			OrderID:    f.OrderID,
			Side:       f.Side,
			Liquidity:  f.Liquidity,
			QtyQ:       f.QtyQ,
			FillPriceQ: f.PriceQ,
			Mid0Q:      midQ,
			Step0:      step,
			Markouts:   make([]HorizonMarkout, len(m.horizons)),
		},
		sign: sideSign(f.Side),
	}
	for i, h := range m.horizons {
		pm.row.Markouts[i] = HorizonMarkout{HorizonSteps: h}
	}
	m.fillIdx++
	m.pending = append(m.pending, pm)
}

// Update resolves every pending horizon that has elapsed by the given step
// and moves fully resolved fills to the completed set.
func (m *Markout) Update(step int, midQ int64) {
	if len(m.pending) == 0 {
		return
	}
	still := m.pending[:0]
	for i := range m.pending {
		pm := m.pending[i]
		for j := pm.done; j < len(pm.row.Markouts); j++ {
			h := pm.row.Markouts[j].HorizonSteps
			if step-pm.row.Step0 < h {
				break
			}
			pm.row.Markouts[j].DeltaQ = pm.sign * (midQ - pm.row.Mid0Q)
			pm.done = j + 1
		}
		if pm.done == len(pm.row.Markouts) {
			m.completed = append(m.completed, pm.row)
		} else {
			still = append(still, pm)
		}
	}
	m.pending = still
}

// Completed drains and returns the resolved rows.
func (m *Markout) Completed() []MarkoutRow {
	rows := m.completed
	m.completed = nil
	return rows
}

// Pending returns the number of fills with unresolved horizons.
func (m *Markout) Pending() int { return len(m.pending) }
