package sim

import "main/internal/schema"

// pushEvent appends a lifecycle event. It reports false when the log is
// full; callers must then refuse the state change they meant to record.
func (s *Simulator) pushEvent(ts int64, orderID uint64, typ schema.EventType, state schema.OrderState, reason schema.RejectReason) bool {
	if len(s.events) >= s.params.MaxEvents {
		return false
	}
	s.events = append(s.events, Event{
		Ts:      ts,
		OrderID: orderID,
		Type:    typ,
		State:   state,
		Reason:  reason,
	})
	return true
}

// eventBudget is the remaining event-log capacity.
func (s *Simulator) eventBudget() int {
	return s.params.MaxEvents - len(s.events)
}

func (s *Simulator) pushFill(f FillEvent) {
	s.fills = append(s.fills, f)
}
