package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

// unitParams keeps all quantities human-readable: one price unit is one
// currency unit, fees default to zero.
func unitParams() Params {
	return Params{
		MaxOrders:  64,
		MaxEvents:  1024,
		AlphaPpm:   1_000_000,
		PriceScale: 1,
		QtyScale:   1,
	}
}

func newSim(t *testing.T, params Params) *Simulator {
	t.Helper()
	s, err := New(params)
	require.NoError(t, err)
	return s
}

func record(ts int64, bids, asks []schema.Level) *schema.Record {
	rec := &schema.Record{TsRecvNs: ts}
	for i := range rec.Bids {
		rec.Bids[i] = schema.NullBidLevel()
		rec.Asks[i] = schema.NullAskLevel()
	}
	copy(rec.Bids[:], bids)
	copy(rec.Asks[:], asks)
	return rec
}

func lvl(priceQ, qtyQ int64) schema.Level { return schema.Level{PriceQ: priceQ, QtyQ: qtyQ} }

func mustOrder(t *testing.T, s *Simulator, id uint64) Order {
	t.Helper()
	o, ok := s.OrderByID(id)
	require.True(t, ok, "order %d not found", id)
	return o
}

func TestLatencyGatesActivation(t *testing.T) {
	params := unitParams()
	params.OutboundLatencyNs = 10
	s := newSim(t, params)
	s.Reset(0, Ledger{CashQ: 1_000_000, PositionQtyQ: 1_000_000})

	id := s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 100, QtyQ: 10})
	require.Equal(t, uint64(1), id)

	book := []schema.Level{lvl(100, 10)}
	ask := []schema.Level{lvl(101, 10)}

	s.Step(record(5, book, ask))
	assert.Equal(t, schema.OrderStatePending, mustOrder(t, s, id).State)

	s.Step(record(10, book, ask))
	o := mustOrder(t, s, id)
	assert.Equal(t, schema.OrderStateActive, o.State)
	assert.Equal(t, schema.VisibilityVisible, o.Visibility)
	assert.Equal(t, int64(10), o.QtyAheadQ)
}

func TestOrderCapacityCap(t *testing.T) {
	params := unitParams()
	params.MaxOrders = 2
	s := newSim(t, params)
	s.Reset(0, Ledger{CashQ: 1_000_000})

	req := LimitRequest{Side: schema.SideBuy, PriceQ: 100, QtyQ: 1}
	assert.Equal(t, uint64(1), s.PlaceLimit(req))
	assert.Equal(t, uint64(2), s.PlaceLimit(req))
	assert.Equal(t, uint64(0), s.PlaceLimit(req))
}

func TestStpRejectIncoming(t *testing.T) {
	params := unitParams()
	params.Stp = schema.StpRejectIncoming
	s := newSim(t, params)
	s.Reset(0, Ledger{CashQ: 1_000_000, PositionQtyQ: 1_000_000})

	bids := []schema.Level{lvl(95, 10)}
	asks := []schema.Level{lvl(105, 10)}

	sellID := s.PlaceLimit(LimitRequest{Side: schema.SideSell, PriceQ: 101, QtyQ: 10})
	require.NotZero(t, sellID)
	s.Step(record(1, bids, asks))
	require.Equal(t, schema.OrderStateActive, mustOrder(t, s, sellID).State)

	buyID := s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 102, QtyQ: 10})
	require.NotZero(t, buyID)
	s.Step(record(2, bids, asks))

	buy := mustOrder(t, s, buyID)
	assert.Equal(t, schema.OrderStateRejected, buy.State)
	assert.Equal(t, schema.RejectSelfTradePrevention, buy.RejectReason)
	assert.Equal(t, schema.OrderStateActive, mustOrder(t, s, sellID).State)

	assert.Zero(t, s.Ledger().LockedCashQ)
}

func TestStpCancelResting(t *testing.T) {
	params := unitParams()
	params.Stp = schema.StpCancelResting
	s := newSim(t, params)
	s.Reset(0, Ledger{CashQ: 1_000_000, PositionQtyQ: 1_000_000})

	bids := []schema.Level{lvl(95, 10)}
	asks := []schema.Level{lvl(105, 10)}

	lowID := s.PlaceLimit(LimitRequest{Side: schema.SideSell, PriceQ: 101, QtyQ: 10})
	highID := s.PlaceLimit(LimitRequest{Side: schema.SideSell, PriceQ: 103, QtyQ: 10})
	require.NotZero(t, lowID)
	require.NotZero(t, highID)
	s.Step(record(1, bids, asks))

	buyID := s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 102, QtyQ: 10})
	require.NotZero(t, buyID)
	s.Step(record(2, bids, asks))

	assert.Equal(t, schema.OrderStateCancelled, mustOrder(t, s, lowID).State)
	assert.Equal(t, schema.OrderStateActive, mustOrder(t, s, highID).State)
	assert.Equal(t, schema.OrderStateActive, mustOrder(t, s, buyID).State)
}

func TestPassiveFillFifoNoDoubleDepletion(t *testing.T) {
	s := newSim(t, unitParams())
	s.Reset(0, Ledger{CashQ: 1_000_000})

	bids0 := []schema.Level{lvl(100, 10), lvl(99, 40)}
	asks := []schema.Level{lvl(101, 10)}

	idA := s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 99, QtyQ: 2})
	idB := s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 99, QtyQ: 2})
	require.NotZero(t, idA)
	require.NotZero(t, idB)

	s.Step(record(1, bids0, asks))
	require.Equal(t, int64(40), mustOrder(t, s, idA).QtyAheadQ)
	require.Equal(t, int64(40), mustOrder(t, s, idB).QtyAheadQ)

	bids1 := []schema.Level{lvl(100, 10), lvl(99, 30)}
	s.Step(record(2, bids1, asks))

	a := mustOrder(t, s, idA)
	b := mustOrder(t, s, idB)
	assert.Equal(t, schema.OrderStateActive, a.State)
	assert.Equal(t, int64(30), a.QtyAheadQ)
	assert.Equal(t, schema.OrderStateActive, b.State)
	assert.Equal(t, int64(40), b.QtyAheadQ)
	assert.Zero(t, s.FillCount())
}

func TestPassiveFillReachesHeadOfQueue(t *testing.T) {
	s := newSim(t, unitParams())
	s.Reset(0, Ledger{CashQ: 1_000_000})

	asks := []schema.Level{lvl(101, 10)}
	idA := s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 99, QtyQ: 5})
	idB := s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 99, QtyQ: 5})

	// Both join behind 8 displayed. The level grows to 20 (no depletion), then
	// collapses to 6: depletion 14 clears A's queue, fills A fully and eats one
	// unit of B's queue.
	s.Step(record(1, []schema.Level{lvl(100, 10), lvl(99, 8)}, asks))
	s.Step(record(2, []schema.Level{lvl(100, 10), lvl(99, 20)}, asks))
	s.Step(record(3, []schema.Level{lvl(100, 10), lvl(99, 6)}, asks))

	a := mustOrder(t, s, idA)
	assert.Equal(t, schema.OrderStateFilled, a.State)
	assert.Equal(t, int64(5), a.FilledQtyQ)

	b := mustOrder(t, s, idB)
	assert.Equal(t, schema.OrderStateActive, b.State)
	assert.Equal(t, int64(7), b.QtyAheadQ)
	assert.Zero(t, b.FilledQtyQ)

	require.Equal(t, 1, s.FillCount())
	f := s.FillAt(0)
	assert.Equal(t, idA, f.OrderID)
	assert.Equal(t, schema.LiquidityMaker, f.Liquidity)
	assert.Equal(t, int64(99), f.PriceQ)
	assert.Equal(t, int64(5), f.QtyQ)
}

func TestTradeThroughTakerFill(t *testing.T) {
	params := unitParams()
	params.Fees.TakerPpm = 100_000
	s := newSim(t, params)
	opening := Ledger{CashQ: 1_000_000}
	s.Reset(0, opening)

	id := s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 99, QtyQ: 1})
	require.NotZero(t, id)
	s.Step(record(1, []schema.Level{lvl(99, 40)}, []schema.Level{lvl(101, 10)}))
	require.Equal(t, schema.OrderStateActive, mustOrder(t, s, id).State)

	s.Step(record(2, []schema.Level{lvl(98, 40)}, []schema.Level{lvl(99, 10)}))

	o := mustOrder(t, s, id)
	assert.Equal(t, schema.OrderStateFilled, o.State)

	require.Equal(t, 1, s.FillCount())
	f := s.FillAt(0)
	assert.Equal(t, id, f.OrderID)
	assert.Equal(t, schema.LiquidityTaker, f.Liquidity)
	assert.Equal(t, int64(99), f.PriceQ)
	assert.Equal(t, int64(1), f.QtyQ)
	assert.Equal(t, int64(99), f.NotionalQ)
	assert.Equal(t, int64(9), f.FeeQ)

	ledger := s.Ledger()
	assert.Equal(t, opening.CashQ-99-9, ledger.CashQ)
	assert.Equal(t, int64(1), ledger.PositionQtyQ)
	assert.Zero(t, ledger.LockedCashQ)
}

func TestFrozenThenReanchorPessimistically(t *testing.T) {
	s := newSim(t, unitParams())
	s.Reset(0, Ledger{CashQ: 1_000_000})

	asks := []schema.Level{lvl(200, 10)}
	id := s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 99, QtyQ: 5})

	s.Step(record(1, []schema.Level{lvl(100, 10), lvl(99, 40)}, asks))
	require.Equal(t, schema.VisibilityVisible, mustOrder(t, s, id).Visibility)

	s.Step(record(2, []schema.Level{lvl(100, 10)}, asks))
	require.Equal(t, schema.VisibilityFrozen, mustOrder(t, s, id).Visibility)

	s.Step(record(3, []schema.Level{lvl(100, 10), lvl(99, 77)}, asks))
	o := mustOrder(t, s, id)
	assert.Equal(t, schema.VisibilityVisible, o.Visibility)
	assert.Equal(t, int64(77), o.QtyAheadQ)
	assert.Equal(t, int64(77), o.LastLevelQtyQ)
}

func TestCancelMiddleOfBucket(t *testing.T) {
	s := newSim(t, unitParams())
	s.Reset(0, Ledger{CashQ: 1_000_000})

	req := LimitRequest{Side: schema.SideBuy, PriceQ: 99, QtyQ: 1}
	idA := s.PlaceLimit(req)
	idB := s.PlaceLimit(req)
	idC := s.PlaceLimit(req)
	s.Step(record(1, []schema.Level{lvl(100, 10), lvl(99, 40)}, []schema.Level{lvl(101, 10)}))

	assert.True(t, s.Cancel(idB))
	assert.True(t, s.Cancel(idA))
	assert.True(t, s.Cancel(idC))

	for _, id := range []uint64{idA, idB, idC} {
		assert.Equal(t, schema.OrderStateCancelled, mustOrder(t, s, id).State)
	}
	assert.Zero(t, s.Ledger().LockedCashQ)

	// Cancel of a terminal order is refused.
	assert.False(t, s.Cancel(idB))
}

func TestCancelReleasesLocks(t *testing.T) {
	params := unitParams()
	params.Risk.SpotNoShort = true
	s := newSim(t, params)
	s.Reset(0, Ledger{CashQ: 1_000, PositionQtyQ: 50})

	buyID := s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 100, QtyQ: 5})
	require.NotZero(t, buyID)
	assert.Equal(t, int64(500), s.Ledger().LockedCashQ)

	sellID := s.PlaceLimit(LimitRequest{Side: schema.SideSell, PriceQ: 120, QtyQ: 30})
	require.NotZero(t, sellID)
	assert.Equal(t, int64(30), s.Ledger().LockedPositionQtyQ)

	// A second uncovered sell exceeds the free position.
	assert.Zero(t, s.PlaceLimit(LimitRequest{Side: schema.SideSell, PriceQ: 120, QtyQ: 30}))
	// A second buy beyond free cash is refused too.
	assert.Zero(t, s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 100, QtyQ: 6}))

	require.True(t, s.Cancel(buyID))
	require.True(t, s.Cancel(sellID))
	ledger := s.Ledger()
	assert.Zero(t, ledger.LockedCashQ)
	assert.Zero(t, ledger.LockedPositionQtyQ)
	assert.Equal(t, int64(1_000), ledger.CashQ)
	assert.Equal(t, int64(50), ledger.PositionQtyQ)
}

func TestBestPriceSummaries(t *testing.T) {
	s := newSim(t, unitParams())
	s.Reset(0, Ledger{CashQ: 1_000_000, PositionQtyQ: 100})

	low := s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 98, QtyQ: 1})
	high := s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 99, QtyQ: 1})
	ask := s.PlaceLimit(LimitRequest{Side: schema.SideSell, PriceQ: 104, QtyQ: 1})
	s.Step(record(1, []schema.Level{lvl(100, 10)}, []schema.Level{lvl(101, 10)}))

	best, ok := s.BestActiveBid()
	require.True(t, ok)
	assert.Equal(t, int64(99), best)
	bestAsk, ok := s.BestActiveAsk()
	require.True(t, ok)
	assert.Equal(t, int64(104), bestAsk)

	require.True(t, s.Cancel(high))
	best, ok = s.BestActiveBid()
	require.True(t, ok)
	assert.Equal(t, int64(98), best)

	require.True(t, s.Cancel(low))
	_, ok = s.BestActiveBid()
	assert.False(t, ok)

	require.True(t, s.Cancel(ask))
	_, ok = s.BestActiveAsk()
	assert.False(t, ok)
}

func TestPlaceLimitRejectsBadInput(t *testing.T) {
	s := newSim(t, unitParams())
	s.Reset(0, Ledger{CashQ: 1_000})

	assert.Zero(t, s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 0, QtyQ: 1}))
	assert.Zero(t, s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 100, QtyQ: 0}))
	assert.Zero(t, s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: -1, QtyQ: 1}))
	assert.Zero(t, s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 100, QtyQ: 11}))
	assert.Zero(t, s.EventCount())
}

func TestPlaceMarketAlwaysRefused(t *testing.T) {
	s := newSim(t, unitParams())
	s.Reset(0, Ledger{CashQ: 1_000_000})

	assert.Zero(t, s.PlaceMarket(MarketRequest{Side: schema.SideBuy, QtyQ: 1}))
	assert.Zero(t, s.PlaceMarket(MarketRequest{Side: schema.SideSell, QtyQ: 0}))
}

func TestPositionLimitBoundsBothSides(t *testing.T) {
	params := unitParams()
	params.Risk.MaxAbsPositionQtyQ = 10
	s := newSim(t, params)
	s.Reset(0, Ledger{CashQ: 1_000_000})

	assert.Zero(t, s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 100, QtyQ: 11}))
	assert.NotZero(t, s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 100, QtyQ: 10}))
	assert.Zero(t, s.PlaceLimit(LimitRequest{Side: schema.SideSell, PriceQ: 100, QtyQ: 11}))
}

// replayScripted drives one fixed script over one fixed record stream.
func replayScripted(t *testing.T) *Simulator {
	t.Helper()
	params := unitParams()
	params.Fees.MakerPpm = 1_000
	params.Fees.TakerPpm = 2_000
	s := newSim(t, params)
	s.Reset(0, Ledger{CashQ: 1_000_000, PositionQtyQ: 1_000})

	s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 99, QtyQ: 3})
	s.PlaceLimit(LimitRequest{Side: schema.SideSell, PriceQ: 103, QtyQ: 2})
	s.Step(record(1, []schema.Level{lvl(100, 10), lvl(99, 40)}, []schema.Level{lvl(101, 10)}))
	s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 98, QtyQ: 1})
	s.Step(record(2, []schema.Level{lvl(100, 10), lvl(99, 20)}, []schema.Level{lvl(101, 10)}))
	s.Cancel(3)
	s.Step(record(3, []schema.Level{lvl(98, 40)}, []schema.Level{lvl(99, 10)}))
	s.Step(record(4, []schema.Level{lvl(104, 10)}, []schema.Level{lvl(105, 10)}))

	return s
}

func TestDeterministicReplay(t *testing.T) {
	s1 := replayScripted(t)
	s2 := replayScripted(t)
	assert.Equal(t, s1.Events(), s2.Events())
	assert.Equal(t, s1.Fills(), s2.Fills())
	assert.Equal(t, s1.Ledger(), s2.Ledger())
	assert.NotEmpty(t, s1.Events())
	assert.NotEmpty(t, s1.Fills())
}

func TestFilledQtyMonotoneAndBounded(t *testing.T) {
	s := replayScripted(t)

	filled := make(map[uint64]int64)
	for _, f := range s.Fills() {
		require.Positive(t, f.QtyQ)
		filled[f.OrderID] += f.QtyQ
	}
	require.NotEmpty(t, filled)

	for _, o := range s.Orders() {
		assert.Equal(t, filled[o.ID], o.FilledQtyQ, "order %d", o.ID)
		assert.LessOrEqual(t, o.FilledQtyQ, o.QtyQ, "order %d overfilled", o.ID)
	}
}

func TestFillLedgerConsistency(t *testing.T) {
	params := unitParams()
	params.Fees.TakerPpm = 50_000
	s := newSim(t, params)
	opening := Ledger{CashQ: 100_000, PositionQtyQ: 100}
	s.Reset(0, opening)

	s.PlaceLimit(LimitRequest{Side: schema.SideSell, PriceQ: 101, QtyQ: 4})
	s.Step(record(1, []schema.Level{lvl(99, 40)}, []schema.Level{lvl(103, 10)}))
	s.Step(record(2, []schema.Level{lvl(102, 40)}, []schema.Level{lvl(103, 10)}))

	require.Equal(t, 1, s.FillCount())
	f := s.FillAt(0)
	require.Equal(t, schema.SideSell, f.Side)
	assert.Equal(t, int64(102), f.PriceQ)
	assert.Equal(t, int64(4*102), f.NotionalQ)

	ledger := s.Ledger()
	assert.Equal(t, opening.CashQ+f.NotionalQ-f.FeeQ, ledger.CashQ)
	assert.Equal(t, opening.PositionQtyQ-f.QtyQ, ledger.PositionQtyQ)
}

func TestResetClearsState(t *testing.T) {
	s := newSim(t, unitParams())
	s.Reset(0, Ledger{CashQ: 1_000_000})
	s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 99, QtyQ: 1})
	s.Step(record(1, []schema.Level{lvl(100, 10)}, []schema.Level{lvl(101, 10)}))

	s.Reset(0, Ledger{CashQ: 7})
	assert.Zero(t, s.EventCount())
	assert.Zero(t, s.FillCount())
	assert.Equal(t, int64(7), s.Ledger().CashQ)
	_, ok := s.OrderByID(1)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 1, QtyQ: 1}))
}

func TestEventLogBudgetRefusesSubmit(t *testing.T) {
	params := unitParams()
	params.MaxEvents = 2
	s := newSim(t, params)
	s.Reset(0, Ledger{CashQ: 1_000_000})

	assert.NotZero(t, s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 99, QtyQ: 1}))
	assert.NotZero(t, s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 98, QtyQ: 1}))
	// Log is full: admission would be unrecordable.
	assert.Zero(t, s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 97, QtyQ: 1}))
	assert.False(t, s.Cancel(1))
}

func BenchmarkStep(b *testing.B) {
	params := unitParams()
	params.MaxOrders = 1 << 16
	s, err := New(params)
	if err != nil {
		b.Fatal(err)
	}
	s.Reset(0, Ledger{CashQ: 1 << 40})
	for i := 0; i < 32; i++ {
		s.PlaceLimit(LimitRequest{Side: schema.SideBuy, PriceQ: 90 + int64(i%8), QtyQ: 2})
	}

	recs := []*schema.Record{
		record(1, []schema.Level{lvl(100, 10), lvl(99, 40)}, []schema.Level{lvl(101, 10)}),
		record(2, []schema.Level{lvl(100, 10), lvl(99, 35)}, []schema.Level{lvl(101, 12)}),
		record(3, []schema.Level{lvl(100, 8)}, []schema.Level{lvl(101, 12)}),
	}

	var ts int64
	b.ReportAllocs()
	for b.Loop() {
		for _, rec := range recs {
			ts++
			rec.TsRecvNs = ts
			s.Step(rec)
		}
	}
}
