package sim

import "main/internal/schema"

// aggressiveFills sweeps resting orders that are marketable against the
// record's visible top of book. Depth is consumed from a step-local copy so
// that successive orders within one step share the same finite liquidity.
func (s *Simulator) aggressiveFills() {
	rec := s.rec
	if !schema.HasTopOfBook(rec) {
		return
	}

	for i := 0; i < schema.Depth; i++ {
		if schema.BidActive(rec.Bids[i]) {
			s.bidQtyRem[i] = rec.Bids[i].QtyQ
		} else {
			s.bidQtyRem[i] = 0
		}
		if schema.AskActive(rec.Asks[i]) {
			s.askQtyRem[i] = rec.Asks[i].QtyQ
		} else {
			s.askQtyRem[i] = 0
		}
	}
	bestBid := rec.Bids[0].PriceQ
	bestAsk := rec.Asks[0].PriceQ

	// Resting buys, highest price first; each sweeps the asks outward.
	for bi := len(s.bidBuckets) - 1; bi >= 0; bi-- {
		priceQ := s.bidPrices[bi]
		if priceQ < bestAsk {
			break
		}
		b := &s.bidBuckets[bi]
		idx := b.head
		for idx != invalidIndex {
			o := &s.orders[idx]
			next := o.bucketNext
			remaining := o.RemainingQtyQ()
			if remaining > 0 {
				for lvl := 0; lvl < schema.Depth && remaining > 0; lvl++ {
					l := rec.Asks[lvl]
					if !schema.AskActive(l) || l.PriceQ > priceQ {
						break
					}
					avail := s.askQtyRem[lvl]
					if avail == 0 {
						continue
					}
					dq := min(remaining, avail)
					s.applyFill(o, l.PriceQ, dq, schema.LiquidityTaker)
					s.askQtyRem[lvl] -= dq
					remaining -= dq
				}
				if o.State == schema.OrderStateFilled {
					s.removeActiveOrder(idx)
				}
			}
			idx = next
		}
	}

	// Resting sells, lowest price first; each sweeps the bids outward.
	for ai := 0; ai < len(s.askBuckets); ai++ {
		priceQ := s.askPrices[ai]
		if priceQ > bestBid {
			break
		}
		b := &s.askBuckets[ai]
		idx := b.head
		for idx != invalidIndex {
			o := &s.orders[idx]
			next := o.bucketNext
			remaining := o.RemainingQtyQ()
			if remaining > 0 {
				for lvl := 0; lvl < schema.Depth && remaining > 0; lvl++ {
					l := rec.Bids[lvl]
					if !schema.BidActive(l) || l.PriceQ < priceQ {
						break
					}
					avail := s.bidQtyRem[lvl]
					if avail == 0 {
						continue
					}
					dq := min(remaining, avail)
					s.applyFill(o, l.PriceQ, dq, schema.LiquidityTaker)
					s.bidQtyRem[lvl] -= dq
					remaining -= dq
				}
				if o.State == schema.OrderStateFilled {
					s.removeActiveOrder(idx)
				}
			}
			idx = next
		}
	}
}
