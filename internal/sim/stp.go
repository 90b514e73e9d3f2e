package sim

import "main/internal/schema"

// applyStpOnActivate resolves self-trade prevention for an order that is
// about to activate. It reports false when the incoming order was rejected
// and must not enter the active structures.
func (s *Simulator) applyStpOnActivate(incoming *Order) bool {
	if s.params.Stp == schema.StpNone {
		return true
	}

	var selfCross bool
	switch {
	case incoming.Type == schema.OrderTypeMarket:
		if incoming.Side == schema.SideBuy {
			selfCross = s.hasActiveAsks
		} else {
			selfCross = s.hasActiveBids
		}
	case incoming.Side == schema.SideBuy:
		selfCross = s.hasActiveAsks && incoming.PriceQ >= s.bestActiveAskQ
	default:
		selfCross = s.hasActiveBids && incoming.PriceQ <= s.bestActiveBidQ
	}
	if !selfCross {
		return true
	}

	if s.params.Stp == schema.StpRejectIncoming {
		reason := schema.RejectSelfTradePrevention
		if !s.pushEvent(s.now, incoming.ID, schema.EventReject, schema.OrderStateRejected, reason) {
			reason = schema.RejectInsufficientResources
		}
		s.unlockRemaining(incoming)
		incoming.State = schema.OrderStateRejected
		incoming.RejectReason = reason
		return false
	}

	// CancelResting: every crossing opposite resting order is cancelled.
	// Count first so the event log either absorbs all cancels or none.
	cancelCount := 0
	if incoming.Side == schema.SideBuy {
		for _, oidx := range s.activeAsks {
			r := &s.orders[oidx]
			if !r.State.Resting() {
				continue
			}
			if incoming.Type == schema.OrderTypeMarket || r.PriceQ <= incoming.PriceQ {
				cancelCount++
			}
		}
	} else {
		for _, oidx := range s.activeBids {
			r := &s.orders[oidx]
			if !r.State.Resting() {
				continue
			}
			if incoming.Type == schema.OrderTypeMarket || r.PriceQ >= incoming.PriceQ {
				cancelCount++
			}
		}
	}

	if s.eventBudget() < cancelCount {
		reason := schema.RejectInsufficientResources
		s.pushEvent(s.now, incoming.ID, schema.EventReject, schema.OrderStateRejected, reason)
		s.unlockRemaining(incoming)
		incoming.State = schema.OrderStateRejected
		incoming.RejectReason = reason
		return false
	}

	// Index-based walk: removeActiveOrder swap-pops the slice, so the index
	// only advances past non-crossing entries.
	if incoming.Side == schema.SideBuy {
		i := 0
		for i < len(s.activeAsks) {
			oidx := s.activeAsks[i]
			r := &s.orders[oidx]
			cross := r.State.Resting() &&
				(incoming.Type == schema.OrderTypeMarket || r.PriceQ <= incoming.PriceQ)
			if !cross {
				i++
				continue
			}
			s.unlockRemaining(r)
			s.removeActiveOrder(oidx)
			r.State = schema.OrderStateCancelled
			s.pushEvent(s.now, r.ID, schema.EventCancel, schema.OrderStateCancelled, schema.RejectNone)
		}
	} else {
		i := 0
		for i < len(s.activeBids) {
			oidx := s.activeBids[i]
			r := &s.orders[oidx]
			cross := r.State.Resting() &&
				(incoming.Type == schema.OrderTypeMarket || r.PriceQ >= incoming.PriceQ)
			if !cross {
				i++
				continue
			}
			s.unlockRemaining(r)
			s.removeActiveOrder(oidx)
			r.State = schema.OrderStateCancelled
			s.pushEvent(s.now, r.ID, schema.EventCancel, schema.OrderStateCancelled, schema.RejectNone)
		}
	}

	return true
}
