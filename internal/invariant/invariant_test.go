package invariant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
	"main/internal/sim"
)

func TestConservationExact(t *testing.T) {
	opening := sim.Ledger{CashQ: 10_000, PositionQtyQ: 5}
	c := NewConservation(opening)

	c.ObserveFill(sim.FillEvent{Side: schema.SideBuy, QtyQ: 2, NotionalQ: 200, FeeQ: 1})
	c.ObserveFill(sim.FillEvent{Side: schema.SideSell, QtyQ: 1, NotionalQ: 105, FeeQ: 1})

	ledger := sim.Ledger{
		CashQ:        10_000 - 201 + 104,
		PositionQtyQ: 5 + 2 - 1,
	}
	require.NoError(t, c.Check(ledger, 0, 0))

	ledger.CashQ++
	err := c.Check(ledger, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cash residual")
	require.NoError(t, c.Check(ledger, 1, 0))
}

func TestConservationPositionResidual(t *testing.T) {
	c := NewConservation(sim.Ledger{})
	c.ObserveFill(sim.FillEvent{Side: schema.SideBuy, QtyQ: 3, NotionalQ: 30})

	err := c.Check(sim.Ledger{CashQ: -30, PositionQtyQ: 2}, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "position residual")
}

func TestCheckerResidualAndWealth(t *testing.T) {
	c := NewChecker(1_000, 0, 1)

	c.ObserveFill(sim.FillEvent{Side: schema.SideBuy, QtyQ: 2, NotionalQ: 200, FeeQ: 2})
	acc := c.Acc()
	assert.Equal(t, int64(1_000-202), acc.ExpectedCashQ)
	assert.Equal(t, int64(2), acc.ExpectedFeeQ)
	assert.Equal(t, 1, acc.FillsSeen)

	ledger := sim.Ledger{CashQ: 798, PositionQtyQ: 2}
	row, err := c.CheckResidual(ledger, 7, 101, true)
	require.NoError(t, err)
	assert.True(t, row.Pass)
	assert.Equal(t, int64(0), row.ResidualQ)
	assert.Equal(t, int64(798+2*101), row.WealthMtmQ)
	assert.False(t, row.OverflowRisk)

	ledger.CashQ = 800
	row, err = c.CheckResidual(ledger, 8, 101, true)
	require.Error(t, err)
	assert.False(t, row.Pass)
	assert.Equal(t, int64(2), row.ResidualQ)
	assert.Equal(t, int64(2), c.Acc().MaxCashResidualQ)
}

func TestCheckerOverflowRiskFlag(t *testing.T) {
	c := NewChecker(0, 0, 1)
	ledger := sim.Ledger{PositionQtyQ: 1 << 40}
	row, err := c.CheckResidual(ledger, 0, 1<<40, true)
	require.NoError(t, err)
	assert.True(t, row.OverflowRisk)
	assert.True(t, c.Acc().OverflowRisk)
}

func TestCheckerRejectImpliesTerminal(t *testing.T) {
	c := NewChecker(0, 0, 1)
	c.ObserveEvent(sim.Event{OrderID: 3, Type: schema.EventReject})

	orders := []sim.Order{{
		ID:           3,
		State:        schema.OrderStateRejected,
		RejectReason: schema.RejectInsufficientFunds,
	}}
	require.NoError(t, c.CheckRejectTerminal(orders))

	orders[0].State = schema.OrderStateActive
	err := c.CheckRejectTerminal(orders)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reject event")

	orders[0].State = schema.OrderStateRejected
	orders[0].RejectReason = schema.RejectNone
	require.Error(t, c.CheckRejectTerminal(orders))

	require.Error(t, c.CheckRejectTerminal(nil))
}

func TestMarkoutHorizons(t *testing.T) {
	m := NewMarkout([]int{3, 1, 3, -1})

	m.OnFill(sim.FillEvent{
		OrderID: 1, Side: schema.SideBuy, PriceQ: 100, QtyQ: 5,
		Liquidity: schema.LiquidityMaker, Ts: 1_000,
	}, 10, 100)

	m.Update(10, 100)
	assert.Empty(t, m.Completed())
	assert.Equal(t, 1, m.Pending())

	m.Update(11, 103)
	assert.Empty(t, m.Completed())

	m.Update(13, 95)
	rows := m.Completed()
	require.Len(t, rows, 1)
	assert.Equal(t, 0, m.Pending())

	row := rows[0]
	assert.Equal(t, 0, row.FillIdx)
	assert.Equal(t, uint64(1), row.OrderID)
	assert.Equal(t, int64(100), row.Mid0Q)
	require.Len(t, row.Markouts, 2)
	assert.Equal(t, HorizonMarkout{HorizonSteps: 1, DeltaQ: 3}, row.Markouts[0])
	assert.Equal(t, HorizonMarkout{HorizonSteps: 3, DeltaQ: -5}, row.Markouts[1])
}

func TestMarkoutSellSign(t *testing.T) {
	m := NewMarkout([]int{1})
	m.OnFill(sim.FillEvent{OrderID: 2, Side: schema.SideSell}, 0, 100)
	m.Update(1, 90)
	rows := m.Completed()
	require.Len(t, rows, 1)
	assert.Equal(t, int64(10), rows[0].Markouts[0].DeltaQ)
}
