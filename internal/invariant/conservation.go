// Package invariant provides post-hoc accounting checks over the engine's
// public logs and ledger. It never reaches into engine internals.
package invariant

import (
	"fmt"

	"main/internal/schema"
	"main/internal/sim"
)

func sideSign(side schema.Side) int64 {
	if side == schema.SideBuy {
		return 1
	}
	return -1
}

// Conservation accumulates the cash and position deltas implied by observed
// fills and compares them against the ledger totals. Locked amounts are
// sub-balances of the totals and play no role here.
type Conservation struct {
	initialCashQ int64
	initialPosQ  int64

	cashDeltaQ int64
	posDeltaQ  int64
}

// NewConservation snapshots the opening balances.
func NewConservation(opening sim.Ledger) *Conservation {
	return &Conservation{
		initialCashQ: opening.CashQ,
		initialPosQ:  opening.PositionQtyQ,
	}
}

// ObserveFill folds one fill into the expected deltas. Buys pay notional
// plus fee and gain position; sells receive notional minus fee and lose it.
func (c *Conservation) ObserveFill(f sim.FillEvent) {
	if f.Side == schema.SideBuy {
		c.cashDeltaQ -= f.NotionalQ + f.FeeQ
		c.posDeltaQ += f.QtyQ
	} else {
		c.cashDeltaQ += f.NotionalQ - f.FeeQ
		c.posDeltaQ -= f.QtyQ
	}
}

// Check compares the ledger totals against the expected balances.
// Bounds are in ledger units; exact conservation uses bound zero.
func (c *Conservation) Check(ledger sim.Ledger, cashBoundQ, posBoundQ int64) error {
	cashResidual := ledger.CashQ - (c.initialCashQ + c.cashDeltaQ)
	posResidual := ledger.PositionQtyQ - (c.initialPosQ + c.posDeltaQ)

	if abs64(cashResidual) > cashBoundQ {
		return fmt.Errorf("cash residual %d exceeds bound %d", cashResidual, cashBoundQ)
	}
	if abs64(posResidual) > posBoundQ {
		return fmt.Errorf("position residual %d exceeds bound %d", posResidual, posBoundQ)
	}
	return nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
