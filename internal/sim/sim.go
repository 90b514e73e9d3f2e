// Package sim implements a deterministic, event-driven matching and queueing
// engine over recorded top-of-book snapshot ticks. A single goroutine drives
// the engine through Step, PlaceLimit, PlaceMarket and Cancel in a
// caller-defined total order; identical inputs yield identical order, event
// and fill logs.
package sim

import "main/internal/schema"

// Simulator is the engine instance. All state is owned here; Reset
// re-initialises it deterministically.
type Simulator struct {
	params Params
	ledger Ledger
	now    int64
	rec    *schema.Record

	orders    []Order
	idToIndex []int
	nextID    uint64
	seq       uint64

	pending pendingHeap

	activeBids   []int
	activeAsks   []int
	activeBidPos []int
	activeAskPos []int

	bidPrices  []int64
	bidBuckets []bucket
	askPrices  []int64
	askBuckets []bucket

	hasActiveBids  bool
	hasActiveAsks  bool
	bestActiveBidQ int64
	bestActiveAskQ int64

	events []Event
	fills  []FillEvent

	deferBucketErase bool

	bidQtyRem [schema.Depth]int64
	askQtyRem [schema.Depth]int64

	ready bool
}

// New validates params and returns an engine. Reset must be called before
// any other operation.
func New(params Params) (*Simulator, error) {
	params = params.withDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{params: params}, nil
}

// Reset clears all state and arms the engine at startTs with the given
// opening balances.
func (s *Simulator) Reset(startTs int64, ledger Ledger) {
	if startTs < 0 {
		panic("sim: negative start timestamp")
	}

	s.ledger = ledger
	s.now = startTs
	s.rec = nil

	s.orders = make([]Order, 0, 1024)
	s.idToIndex = make([]int, s.params.MaxOrders+1)
	s.activeBidPos = make([]int, s.params.MaxOrders+1)
	s.activeAskPos = make([]int, s.params.MaxOrders+1)
	for i := range s.idToIndex {
		s.idToIndex[i] = invalidIndex
		s.activeBidPos[i] = invalidIndex
		s.activeAskPos[i] = invalidIndex
	}
	s.nextID = 1
	s.seq = 0

	s.pending = s.pending[:0]

	s.activeBids = s.activeBids[:0]
	s.activeAsks = s.activeAsks[:0]
	s.bidPrices = s.bidPrices[:0]
	s.bidBuckets = s.bidBuckets[:0]
	s.askPrices = s.askPrices[:0]
	s.askBuckets = s.askBuckets[:0]

	s.hasActiveBids = false
	s.hasActiveAsks = false
	s.bestActiveBidQ = 0
	s.bestActiveAskQ = 0

	s.events = make([]Event, 0, min(s.params.MaxEvents, 4096))
	s.fills = s.fills[:0]

	s.deferBucketErase = false
	s.ready = true
}

// Step advances the engine over one snapshot tick. The record is borrowed
// for the duration of the call.
func (s *Simulator) Step(rec *schema.Record) {
	s.mustReady()
	if rec == nil {
		panic("sim: nil record")
	}

	s.now = rec.TsRecvNs
	s.rec = rec

	s.deferBucketErase = true
	for i := range s.bidBuckets {
		s.passiveFillBidBucket(i)
	}
	for i := range s.askBuckets {
		s.passiveFillAskBucket(i)
	}
	s.aggressiveFills()
	s.deferBucketErase = false
	s.compactEmptyBuckets()

	s.drainActivations()

	s.rec = nil
}

// drainActivations pops every pending entry due at or before the clock,
// applies self-trade prevention, and moves survivors into the active
// structures with freshly initialised queue state.
func (s *Simulator) drainActivations() {
	for len(s.pending) > 0 && s.pending[0].activateTs <= s.now {
		e := s.popPending()

		if e.orderID == 0 || e.orderID >= uint64(len(s.idToIndex)) {
			continue
		}
		idx := s.idToIndex[e.orderID]
		if idx == invalidIndex {
			continue
		}
		o := &s.orders[idx]
		if o.State != schema.OrderStatePending {
			continue
		}

		if !s.applyStpOnActivate(o) {
			continue
		}

		if !s.pushEvent(s.now, o.ID, schema.EventActivate, schema.OrderStateActive, schema.RejectNone) {
			s.unlockRemaining(o)
			o.State = schema.OrderStateRejected
			o.RejectReason = schema.RejectInsufficientResources
			continue
		}
		o.State = schema.OrderStateActive

		var m levelLookup
		if o.Side == schema.SideBuy {
			m = lookupBid(s.rec, o.PriceQ)
		} else {
			m = lookupAsk(s.rec, o.PriceQ)
		}
		initQueueOnActivate(o, m)

		s.addActiveOrder(idx, m)
	}
}

func (s *Simulator) mustReady() {
	if !s.ready {
		panic("sim: Reset not called")
	}
}

// Now returns the simulator clock in nanoseconds.
func (s *Simulator) Now() int64 { return s.now }

// Ledger returns the current balances.
func (s *Simulator) Ledger() Ledger { return s.ledger }

// Params returns the engine configuration.
func (s *Simulator) Params() Params { return s.params }

// Orders returns a copy of the order store.
func (s *Simulator) Orders() []Order {
	out := make([]Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// OrderByID returns a copy of one order.
func (s *Simulator) OrderByID(orderID uint64) (Order, bool) {
	if orderID == 0 || orderID >= uint64(len(s.idToIndex)) {
		return Order{}, false
	}
	idx := s.idToIndex[orderID]
	if idx == invalidIndex {
		return Order{}, false
	}
	return s.orders[idx], true
}

// FillCount returns the length of the fill log.
func (s *Simulator) FillCount() int { return len(s.fills) }

// FillAt returns one fill log entry by index.
func (s *Simulator) FillAt(i int) FillEvent { return s.fills[i] }

// EventCount returns the length of the lifecycle event log.
func (s *Simulator) EventCount() int { return len(s.events) }

// EventAt returns one lifecycle log entry by index.
func (s *Simulator) EventAt(i int) Event { return s.events[i] }

// Events returns a copy of the lifecycle event log.
func (s *Simulator) Events() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Fills returns a copy of the fill log.
func (s *Simulator) Fills() []FillEvent {
	out := make([]FillEvent, len(s.fills))
	copy(out, s.fills)
	return out
}

// BestActiveBid returns the highest resting buy price, if any.
func (s *Simulator) BestActiveBid() (int64, bool) {
	return s.bestActiveBidQ, s.hasActiveBids
}

// BestActiveAsk returns the lowest resting sell price, if any.
func (s *Simulator) BestActiveAsk() (int64, bool) {
	return s.bestActiveAskQ, s.hasActiveAsks
}
