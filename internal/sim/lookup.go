package sim

import (
	"main/internal/fixed"
	"main/internal/schema"
)

// levelLookup is the result of locating a price in one side of a record.
// bestQ/worstQ span the active prefix; withinRange means the query price
// falls inside that span, found means it matched a level exactly.
type levelLookup struct {
	found       bool
	withinRange bool
	idx         int16
	qtyQ        int64
	bestQ       int64
	worstQ      int64
}

func lookupBid(rec *schema.Record, priceQ int64) levelLookup {
	m := levelLookup{idx: invalidIndex}
	if !schema.BidActive(rec.Bids[0]) {
		return m
	}
	m.bestQ = rec.Bids[0].PriceQ
	m.worstQ = m.bestQ
	for i := 0; i < schema.Depth; i++ {
		l := rec.Bids[i]
		if !schema.BidActive(l) {
			break
		}
		m.worstQ = l.PriceQ
		if !m.found && l.PriceQ == priceQ {
			m.found = true
			m.idx = int16(i)
			m.qtyQ = l.QtyQ
		}
	}
	m.withinRange = priceQ >= m.worstQ && priceQ <= m.bestQ
	return m
}

func lookupAsk(rec *schema.Record, priceQ int64) levelLookup {
	m := levelLookup{idx: invalidIndex}
	if !schema.AskActive(rec.Asks[0]) {
		return m
	}
	m.bestQ = rec.Asks[0].PriceQ
	m.worstQ = m.bestQ
	for i := 0; i < schema.Depth; i++ {
		l := rec.Asks[i]
		if !schema.AskActive(l) {
			break
		}
		m.worstQ = l.PriceQ
		if !m.found && l.PriceQ == priceQ {
			m.found = true
			m.idx = int16(i)
			m.qtyQ = l.QtyQ
		}
	}
	m.withinRange = priceQ >= m.bestQ && priceQ <= m.worstQ
	return m
}

// effectiveDepletion attributes a fraction of observed level shrinkage to
// trades. Positive shrinkage never rounds below one unit, and the result
// never exceeds the observed delta.
func effectiveDepletion(deltaQ, alphaPpm int64) int64 {
	if deltaQ <= 0 || alphaPpm <= 0 {
		return 0
	}
	e, ok := fixed.MulDivFloor(deltaQ, alphaPpm, schema.PpmDenom)
	if !ok {
		return deltaQ
	}
	if e < 1 {
		e = 1
	}
	if e > deltaQ {
		e = deltaQ
	}
	return e
}
