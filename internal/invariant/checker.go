package invariant

import (
	"fmt"
	"math"
	"sort"

	"main/internal/schema"
	"main/internal/sim"
)

// Accounting is the running state a Checker maintains across checkpoints.
type Accounting struct {
	ExpectedCashQ    int64
	ExpectedFeeQ     int64
	FillsSeen        int
	MaxCashResidualQ int64
	OverflowRisk     bool
}

// Residual is one checkpoint row.
type Residual struct {
	Step          int
	CashQ         int64
	LockedCashQ   int64
	ExpectedCashQ int64
	ResidualQ     int64
	BoundQ        int64
	MidQ          int64
	HasMid        bool
	WealthMtmQ    int64
	OverflowRisk  bool
	Pass          bool
}

// Checker enforces accounting residual bounds at checkpoints and the
// reject-implies-terminal contract over the order snapshot.
type Checker struct {
	priceScale int64
	tolQ       int64
	acc        Accounting
	rejected   map[uint64]struct{}
}

// NewChecker starts from the opening cash balance. toleranceQ bounds the
// allowed cash residual at every checkpoint.
func NewChecker(initialCashQ, toleranceQ, priceScale int64) *Checker {
	return &Checker{
		priceScale: priceScale,
		tolQ:       toleranceQ,
		acc:        Accounting{ExpectedCashQ: initialCashQ},
		rejected:   make(map[uint64]struct{}),
	}
}

// Acc returns the accumulated accounting state.
func (c *Checker) Acc() Accounting { return c.acc }

// ObserveFill folds one fill into the expected cash flow.
func (c *Checker) ObserveFill(f sim.FillEvent) {
	if f.Side == schema.SideBuy {
		c.acc.ExpectedCashQ -= f.NotionalQ
	} else {
		c.acc.ExpectedCashQ += f.NotionalQ
	}
	c.acc.ExpectedCashQ -= f.FeeQ
	c.acc.ExpectedFeeQ += f.FeeQ
	c.acc.FillsSeen++
}

// ObserveEvent records reject events for the terminal-state check.
func (c *Checker) ObserveEvent(e sim.Event) {
	if e.Type == schema.EventReject {
		c.rejected[e.OrderID] = struct{}{}
	}
}

// CheckRejectTerminal verifies that every order with a reject event ended
// Rejected with a reason set.
func (c *Checker) CheckRejectTerminal(orders []sim.Order) error {
	if len(c.rejected) == 0 {
		return nil
	}
	byID := make(map[uint64]*sim.Order, len(orders))
	for i := range orders {
		byID[orders[i].ID] = &orders[i]
	}
	ids := make([]uint64, 0, len(c.rejected))
	for id := range c.rejected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		o, ok := byID[id]
		if !ok {
			return fmt.Errorf("reject event for unknown order id %d", id)
		}
		if o.State != schema.OrderStateRejected {
			return fmt.Errorf("order %d has reject event but state %s", id, o.State)
		}
		if o.RejectReason == schema.RejectNone {
			return fmt.Errorf("order %d rejected without a reason", id)
		}
	}
	return nil
}

// CheckResidual compares the ledger cash total against the expected cash
// flow at one checkpoint. Pass hasMid=false when the book has no mid.
func (c *Checker) CheckResidual(ledger sim.Ledger, step int, midQ int64, hasMid bool) (Residual, error) {
	residual := ledger.CashQ - c.acc.ExpectedCashQ
	if abs64(residual) > c.acc.MaxCashResidualQ {
		c.acc.MaxCashResidualQ = abs64(residual)
	}

	row := Residual{
		Step:          step,
		CashQ:         ledger.CashQ,
		LockedCashQ:   ledger.LockedCashQ,
		ExpectedCashQ: c.acc.ExpectedCashQ,
		ResidualQ:     residual,
		BoundQ:        c.tolQ,
		MidQ:          midQ,
		HasMid:        hasMid,
		Pass:          abs64(residual) <= c.tolQ,
	}

	if hasMid && midQ != 0 && ledger.PositionQtyQ != 0 {
		if abs64(ledger.PositionQtyQ) > math.MaxInt64/abs64(midQ) {
			row.OverflowRisk = true
			c.acc.OverflowRisk = true
		} else {
			row.WealthMtmQ = ledger.CashQ + ledger.PositionQtyQ*midQ/c.priceScale
		}
	} else if hasMid {
		row.WealthMtmQ = ledger.CashQ
	}

	if !row.Pass {
		return row, fmt.Errorf("cash residual %d exceeds bound %d at step %d", residual, c.tolQ, step)
	}
	return row, nil
}
