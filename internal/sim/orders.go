package sim

import (
	"main/internal/fixed"
	"main/internal/schema"
)

// PlaceLimit submits a limit order. It returns the assigned order id, or 0
// when the order is refused before admission (invalid parameters, capacity,
// or a failed risk lock).
func (s *Simulator) PlaceLimit(req LimitRequest) uint64 {
	s.mustReady()

	if s.nextID > uint64(s.params.MaxOrders) {
		return 0
	}
	if len(s.orders) >= s.params.MaxOrders {
		return 0
	}
	if req.PriceQ <= 0 || req.QtyQ <= 0 {
		return 0
	}
	if s.eventBudget() < 1 {
		return 0
	}
	if !s.riskLockLimit(req.Side, req.PriceQ, req.QtyQ) {
		return 0
	}

	id := s.nextID
	s.nextID++
	idx := len(s.orders)
	s.orders = append(s.orders, Order{
		ID:            id,
		ClientOrderID: req.ClientOrderID,
		Side:          req.Side,
		Type:          schema.OrderTypeLimit,
		Tif:           req.Tif,
		PriceQ:        req.PriceQ,
		QtyQ:          req.QtyQ,
		SubmitTs:      s.now,
		ActivateTs:    s.now + s.params.OutboundLatencyNs,
		State:         schema.OrderStatePending,
		Visibility:    schema.VisibilityBlind,
		LastLevelIdx:  invalidIndex,
		bucketPrev:    invalidIndex,
		bucketNext:    invalidIndex,
	})
	s.idToIndex[id] = idx

	s.pushEvent(s.now, id, schema.EventSubmit, schema.OrderStatePending, schema.RejectNone)

	s.seq++
	s.pushPending(pendingEntry{
		activateTs: s.orders[idx].ActivateTs,
		seq:        s.seq,
		orderID:    id,
	})
	return id
}

// PlaceMarket is reserved. It validates the request shape and always refuses
// with InvalidParams semantics by returning 0.
func (s *Simulator) PlaceMarket(req MarketRequest) uint64 {
	s.mustReady()
	if req.QtyQ <= 0 {
		return 0
	}
	// TODO: define cash locking against the visible best before accepting
	// market orders.
	return 0
}

// Cancel transitions a live order to Cancelled and releases its locks.
// It reports false for unknown ids, terminal orders, or a full event log.
func (s *Simulator) Cancel(orderID uint64) bool {
	s.mustReady()

	if orderID == 0 || orderID >= uint64(len(s.idToIndex)) {
		return false
	}
	idx := s.idToIndex[orderID]
	if idx == invalidIndex {
		return false
	}
	o := &s.orders[idx]
	if o.State.Terminal() {
		return false
	}
	if s.eventBudget() < 1 {
		return false
	}

	if o.State.Resting() {
		s.removeActiveOrder(idx)
	}
	s.unlockRemaining(o)
	o.State = schema.OrderStateCancelled
	s.pushEvent(s.now, orderID, schema.EventCancel, schema.OrderStateCancelled, schema.RejectNone)
	return true
}

// riskLockLimit reserves free balance for a limit order. Buy orders lock
// priceQ*qtyQ of cash; sell orders lock qtyQ of position when shorting is
// disallowed.
func (s *Simulator) riskLockLimit(side schema.Side, priceQ, qtyQ int64) bool {
	if side == schema.SideBuy {
		required, ok := fixed.Mul(priceQ, qtyQ)
		if !ok {
			return false
		}
		if s.ledger.FreeCashQ() < required {
			return false
		}
		if !s.withinPositionLimit(s.ledger.PositionQtyQ + qtyQ) {
			return false
		}
		s.ledger.LockedCashQ += required
		return true
	}

	if s.params.Risk.SpotNoShort && s.ledger.FreePositionQtyQ() < qtyQ {
		return false
	}
	if !s.withinPositionLimit(s.ledger.PositionQtyQ - qtyQ) {
		return false
	}
	s.ledger.LockedPositionQtyQ += qtyQ
	return true
}

func (s *Simulator) withinPositionLimit(projectedQtyQ int64) bool {
	limit := s.params.Risk.MaxAbsPositionQtyQ
	if limit == 0 {
		return true
	}
	if projectedQtyQ < 0 {
		projectedQtyQ = -projectedQtyQ
	}
	return projectedQtyQ <= limit
}

// unlockRemaining releases the reservation still held for the unfilled
// remainder of an order, clamped at zero.
func (s *Simulator) unlockRemaining(o *Order) {
	remaining := o.RemainingQtyQ()
	if remaining <= 0 {
		return
	}
	if o.Side == schema.SideBuy {
		locked, ok := fixed.Mul(o.PriceQ, remaining)
		if !ok {
			locked = s.ledger.LockedCashQ
		}
		s.ledger.LockedCashQ -= locked
		if s.ledger.LockedCashQ < 0 {
			s.ledger.LockedCashQ = 0
		}
		return
	}
	s.ledger.LockedPositionQtyQ -= remaining
	if s.ledger.LockedPositionQtyQ < 0 {
		s.ledger.LockedPositionQtyQ = 0
	}
}
