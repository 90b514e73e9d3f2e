package sim

import (
	"fmt"

	"main/internal/schema"
)

const invalidIndex = -1

// FeeSchedule holds maker/taker fee rates in parts per million of notional.
type FeeSchedule struct {
	MakerPpm int64
	TakerPpm int64
}

// RiskLimits bounds what PlaceLimit may lock.
type RiskLimits struct {
	// MaxAbsPositionQtyQ caps |projected position|; 0 disables the check.
	MaxAbsPositionQtyQ int64
	// SpotNoShort refuses sells not covered by free position.
	SpotNoShort bool
}

// Params configures a Simulator. withDefaults fills zero MaxOrders,
// MaxEvents, PriceScale and QtyScale; other zero fields keep their zero value.
type Params struct {
	// OutboundLatencyNs delays activation after submit.
	OutboundLatencyNs int64
	// ObservationLatencyNs is reserved; queueing ignores it.
	ObservationLatencyNs int64

	// MaxOrders is a lifetime cap on order ids; ids are never reused.
	MaxOrders int
	// MaxEvents bounds the lifecycle event log.
	MaxEvents int

	// AlphaPpm attributes a fraction of observed depth shrinkage to trades,
	// in [0, 1e6].
	AlphaPpm int64

	// PriceScale and QtyScale are the fixed-point scales of all record and
	// request values. They must match the snapshot file header.
	PriceScale int64
	QtyScale   int64

	Stp  schema.StpPolicy
	Fees FeeSchedule
	Risk RiskLimits
}

func (p Params) withDefaults() Params {
	if p.MaxOrders == 0 {
		p.MaxOrders = 65_536
	}
	if p.MaxEvents == 0 {
		p.MaxEvents = 262_144
	}
	if p.PriceScale == 0 {
		p.PriceScale = schema.PriceScale
	}
	if p.QtyScale == 0 {
		p.QtyScale = schema.QtyScale
	}
	return p
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.OutboundLatencyNs < 0 {
		return fmt.Errorf("outbound latency must be >= 0, got %d", p.OutboundLatencyNs)
	}
	if p.ObservationLatencyNs < 0 {
		return fmt.Errorf("observation latency must be >= 0, got %d", p.ObservationLatencyNs)
	}
	if p.MaxOrders <= 0 {
		return fmt.Errorf("max orders must be > 0, got %d", p.MaxOrders)
	}
	if p.MaxEvents <= 0 {
		return fmt.Errorf("max events must be > 0, got %d", p.MaxEvents)
	}
	if p.AlphaPpm < 0 || p.AlphaPpm > 1_000_000 {
		return fmt.Errorf("alpha ppm must be in [0, 1000000], got %d", p.AlphaPpm)
	}
	if p.PriceScale <= 0 {
		return fmt.Errorf("price scale must be > 0, got %d", p.PriceScale)
	}
	if p.QtyScale <= 0 {
		return fmt.Errorf("qty scale must be > 0, got %d", p.QtyScale)
	}
	if p.Fees.MakerPpm < 0 || p.Fees.MakerPpm >= 1_000_000 {
		return fmt.Errorf("maker fee ppm out of range: %d", p.Fees.MakerPpm)
	}
	if p.Fees.TakerPpm < 0 || p.Fees.TakerPpm >= 1_000_000 {
		return fmt.Errorf("taker fee ppm out of range: %d", p.Fees.TakerPpm)
	}
	if p.Risk.MaxAbsPositionQtyQ < 0 {
		return fmt.Errorf("max abs position must be >= 0, got %d", p.Risk.MaxAbsPositionQtyQ)
	}
	switch p.Stp {
	case schema.StpNone, schema.StpRejectIncoming, schema.StpCancelResting:
	default:
		return fmt.Errorf("unknown stp policy: %d", p.Stp)
	}
	return nil
}

// Ledger tracks total balances and encumbered sub-balances.
// CashQ and PositionQtyQ are totals; locked amounts are reservations
// counted inside them, never in addition to them.
type Ledger struct {
	CashQ              int64
	PositionQtyQ       int64
	LockedCashQ        int64
	LockedPositionQtyQ int64
}

// FreeCashQ is the balance available for new buy locks.
func (l Ledger) FreeCashQ() int64 { return l.CashQ - l.LockedCashQ }

// FreePositionQtyQ is the position available for new sell locks.
func (l Ledger) FreePositionQtyQ() int64 { return l.PositionQtyQ - l.LockedPositionQtyQ }

// LimitRequest is the input to PlaceLimit.
type LimitRequest struct {
	ClientOrderID uint64
	Side          schema.Side
	PriceQ        int64
	QtyQ          int64
	Tif           schema.Tif
}

// MarketRequest is the input to PlaceMarket. Reserved; always rejected.
type MarketRequest struct {
	ClientOrderID uint64
	Side          schema.Side
	QtyQ          int64
}

// Order is one tracked order. Queue-tracking fields estimate the displayed
// quantity ahead of the order at its price level.
type Order struct {
	ID            uint64
	ClientOrderID uint64

	Side   schema.Side
	Type   schema.OrderType
	Tif    schema.Tif
	PriceQ int64
	QtyQ   int64

	SubmitTs   int64
	ActivateTs int64

	FilledQtyQ   int64
	State        schema.OrderState
	RejectReason schema.RejectReason

	QtyAheadQ     int64
	LastLevelQtyQ int64
	LastLevelIdx  int16
	Visibility    schema.Visibility

	bucketPrev int
	bucketNext int
}

// RemainingQtyQ is the unfilled quantity.
func (o *Order) RemainingQtyQ() int64 { return o.QtyQ - o.FilledQtyQ }

// Event is one lifecycle log entry.
type Event struct {
	Ts      int64
	OrderID uint64
	Type    schema.EventType
	State   schema.OrderState
	Reason  schema.RejectReason
}

// FillEvent is one trade log entry.
type FillEvent struct {
	Ts        int64
	OrderID   uint64
	Side      schema.Side
	PriceQ    int64
	QtyQ      int64
	Liquidity schema.Liquidity
	NotionalQ int64
	FeeQ      int64
}

// bucket is the per-price FIFO of resting orders on one side, with the
// cached last observation of that price level.
type bucket struct {
	head int
	tail int
	size int

	visibility    schema.Visibility
	lastLevelIdx  int16
	lastLevelQtyQ int64
}
