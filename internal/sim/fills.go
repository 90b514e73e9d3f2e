package sim

import (
	"main/internal/fixed"
	"main/internal/schema"
)

// applyFill settles qtyQ at priceQ against the order and the ledger, emits a
// fill record, and advances the order state. The caller removes fully filled
// orders from the active structures.
func (s *Simulator) applyFill(o *Order, priceQ, qtyQ int64, liq schema.Liquidity) {
	if qtyQ <= 0 {
		return
	}

	notional, ok := fixed.MulDivFloor(priceQ, qtyQ, s.params.PriceScale)
	if !ok {
		panic("sim: notional overflow in fill")
	}
	feePpm := s.params.Fees.MakerPpm
	if liq == schema.LiquidityTaker {
		feePpm = s.params.Fees.TakerPpm
	}
	fee, ok := fixed.MulDivFloor(notional, feePpm, schema.PpmDenom)
	if !ok {
		panic("sim: fee overflow in fill")
	}

	if o.Side == schema.SideBuy {
		s.ledger.CashQ -= notional + fee
		s.ledger.PositionQtyQ += qtyQ
		locked, ok := fixed.Mul(o.PriceQ, qtyQ)
		if !ok {
			locked = s.ledger.LockedCashQ
		}
		s.ledger.LockedCashQ -= locked
		if s.ledger.LockedCashQ < 0 {
			s.ledger.LockedCashQ = 0
		}
	} else {
		s.ledger.CashQ += notional - fee
		s.ledger.PositionQtyQ -= qtyQ
		s.ledger.LockedPositionQtyQ -= qtyQ
		if s.ledger.LockedPositionQtyQ < 0 {
			s.ledger.LockedPositionQtyQ = 0
		}
	}

	o.FilledQtyQ += qtyQ
	if o.FilledQtyQ >= o.QtyQ {
		o.State = schema.OrderStateFilled
	} else {
		o.State = schema.OrderStatePartial
	}

	s.pushFill(FillEvent{
		Ts:        s.now,
		OrderID:   o.ID,
		Side:      o.Side,
		PriceQ:    priceQ,
		QtyQ:      qtyQ,
		Liquidity: liq,
		NotionalQ: notional,
		FeeQ:      fee,
	})
}
