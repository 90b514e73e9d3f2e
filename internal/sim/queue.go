package sim

import "main/internal/schema"

// initQueueOnActivate seeds an activating order's queue-tracking state from
// the current record observation of its price.
//
// Within range and found: join the back of the displayed queue, so the whole
// displayed quantity is ahead. Within range but absent: the order is the only
// liquidity at its price. Outside the observable range: Blind until the level
// enters the top of the book.
func initQueueOnActivate(o *Order, m levelLookup) {
	if m.withinRange {
		o.Visibility = schema.VisibilityVisible
		if m.found {
			o.QtyAheadQ = m.qtyQ
			o.LastLevelIdx = m.idx
			o.LastLevelQtyQ = m.qtyQ
			return
		}
		o.QtyAheadQ = 0
		o.LastLevelIdx = invalidIndex
		o.LastLevelQtyQ = 0
		return
	}
	o.Visibility = schema.VisibilityBlind
	o.QtyAheadQ = 0
	o.LastLevelIdx = invalidIndex
	o.LastLevelQtyQ = 0
}

// passiveFillBidBucket runs the per-tick visibility update and maker-fill
// pass for one bid bucket. Depletion is accounted here and nowhere else.
func (s *Simulator) passiveFillBidBucket(bi int) {
	b := &s.bidBuckets[bi]
	if b.size == 0 {
		return
	}
	priceQ := s.bidPrices[bi]
	rec := s.rec
	m := lookupBid(rec, priceQ)

	// Trade-through: the opposite best has crossed this price, so any
	// displayed quantity ahead no longer gates a fill.
	crossed := schema.AskActive(rec.Asks[0]) && rec.Asks[0].PriceQ <= priceQ

	if !m.found {
		s.passiveMirrorNoLevel(b, m, crossed)
		return
	}

	if b.visibility != schema.VisibilityVisible || b.lastLevelIdx == invalidIndex {
		// Level reappeared (or first sighting): re-anchor pessimistically
		// behind the full displayed quantity. No depletion this tick.
		b.visibility = schema.VisibilityVisible
		b.lastLevelIdx = m.idx
		b.lastLevelQtyQ = m.qtyQ
		for idx := b.head; idx != invalidIndex; idx = s.orders[idx].bucketNext {
			o := &s.orders[idx]
			o.Visibility = schema.VisibilityVisible
			o.LastLevelIdx = m.idx
			o.LastLevelQtyQ = m.qtyQ
			o.QtyAheadQ = m.qtyQ
		}
		return
	}

	prev := b.lastLevelQtyQ
	nowQty := m.qtyQ
	e := effectiveDepletion(prev-nowQty, s.params.AlphaPpm)
	b.lastLevelIdx = m.idx
	b.lastLevelQtyQ = nowQty

	idx := b.head
	for idx != invalidIndex {
		o := &s.orders[idx]
		next := o.bucketNext
		if crossed {
			o.QtyAheadQ = 0
		}
		o.Visibility = schema.VisibilityVisible
		o.LastLevelIdx = m.idx
		o.LastLevelQtyQ = nowQty
		if e > 0 {
			if o.QtyAheadQ > 0 {
				consumed := min(o.QtyAheadQ, e)
				o.QtyAheadQ -= consumed
				e -= consumed
			}
			if o.QtyAheadQ == 0 && e > 0 {
				fill := min(o.RemainingQtyQ(), e)
				if fill > 0 {
					s.applyFill(o, o.PriceQ, fill, schema.LiquidityMaker)
					e -= fill
					if o.State == schema.OrderStateFilled {
						s.removeActiveOrder(idx)
					}
				}
			}
		}
		idx = next
	}
}

// passiveFillAskBucket mirrors passiveFillBidBucket for one ask bucket.
func (s *Simulator) passiveFillAskBucket(ai int) {
	b := &s.askBuckets[ai]
	if b.size == 0 {
		return
	}
	priceQ := s.askPrices[ai]
	rec := s.rec
	m := lookupAsk(rec, priceQ)

	crossed := schema.BidActive(rec.Bids[0]) && rec.Bids[0].PriceQ >= priceQ

	if !m.found {
		s.passiveMirrorNoLevel(b, m, crossed)
		return
	}

	if b.visibility != schema.VisibilityVisible || b.lastLevelIdx == invalidIndex {
		b.visibility = schema.VisibilityVisible
		b.lastLevelIdx = m.idx
		b.lastLevelQtyQ = m.qtyQ
		for idx := b.head; idx != invalidIndex; idx = s.orders[idx].bucketNext {
			o := &s.orders[idx]
			o.Visibility = schema.VisibilityVisible
			o.LastLevelIdx = m.idx
			o.LastLevelQtyQ = m.qtyQ
			o.QtyAheadQ = m.qtyQ
		}
		return
	}

	prev := b.lastLevelQtyQ
	nowQty := m.qtyQ
	e := effectiveDepletion(prev-nowQty, s.params.AlphaPpm)
	b.lastLevelIdx = m.idx
	b.lastLevelQtyQ = nowQty

	idx := b.head
	for idx != invalidIndex {
		o := &s.orders[idx]
		next := o.bucketNext
		if crossed {
			o.QtyAheadQ = 0
		}
		o.Visibility = schema.VisibilityVisible
		o.LastLevelIdx = m.idx
		o.LastLevelQtyQ = nowQty
		if e > 0 {
			if o.QtyAheadQ > 0 {
				consumed := min(o.QtyAheadQ, e)
				o.QtyAheadQ -= consumed
				e -= consumed
			}
			if o.QtyAheadQ == 0 && e > 0 {
				fill := min(o.RemainingQtyQ(), e)
				if fill > 0 {
					s.applyFill(o, o.PriceQ, fill, schema.LiquidityMaker)
					e -= fill
					if o.State == schema.OrderStateFilled {
						s.removeActiveOrder(idx)
					}
				}
			}
		}
		idx = next
	}
}

// passiveMirrorNoLevel handles the ticks where the bucket price is not
// displayed: the bucket transitions between Visible, Blind and Frozen and
// the outcome is mirrored onto every resting order. No depletion occurs.
func (s *Simulator) passiveMirrorNoLevel(b *bucket, m levelLookup, crossed bool) {
	switch {
	case m.withinRange:
		switch b.visibility {
		case schema.VisibilityVisible:
			if b.lastLevelIdx != invalidIndex {
				// Displayed level vanished inside the observable range.
				b.visibility = schema.VisibilityFrozen
				b.lastLevelIdx = invalidIndex
				b.lastLevelQtyQ = 0
				s.mirrorBucketState(b, crossed)
				return
			}
			// Order is the only liquidity at its price; nothing displayed to
			// deplete against.
			s.mirrorTradeThrough(b, crossed)
		case schema.VisibilityBlind:
			// Price entered the observable range with no displayed quantity.
			b.visibility = schema.VisibilityVisible
			b.lastLevelIdx = invalidIndex
			b.lastLevelQtyQ = 0
			for idx := b.head; idx != invalidIndex; idx = s.orders[idx].bucketNext {
				o := &s.orders[idx]
				o.Visibility = schema.VisibilityVisible
				o.LastLevelIdx = invalidIndex
				o.LastLevelQtyQ = 0
				o.QtyAheadQ = 0
			}
		case schema.VisibilityFrozen:
			s.mirrorTradeThrough(b, crossed)
		}
	default: // outside range
		switch b.visibility {
		case schema.VisibilityVisible:
			b.visibility = schema.VisibilityFrozen
			b.lastLevelIdx = invalidIndex
			b.lastLevelQtyQ = 0
			s.mirrorBucketState(b, crossed)
		case schema.VisibilityBlind, schema.VisibilityFrozen:
			s.mirrorTradeThrough(b, crossed)
		}
	}
}

func (s *Simulator) mirrorBucketState(b *bucket, crossed bool) {
	for idx := b.head; idx != invalidIndex; idx = s.orders[idx].bucketNext {
		o := &s.orders[idx]
		if crossed {
			o.QtyAheadQ = 0
		}
		o.Visibility = b.visibility
		o.LastLevelIdx = b.lastLevelIdx
		o.LastLevelQtyQ = b.lastLevelQtyQ
	}
}

func (s *Simulator) mirrorTradeThrough(b *bucket, crossed bool) {
	if !crossed {
		return
	}
	for idx := b.head; idx != invalidIndex; idx = s.orders[idx].bucketNext {
		s.orders[idx].QtyAheadQ = 0
	}
}
