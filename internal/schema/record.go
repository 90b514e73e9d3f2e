package schema

import "math"

// Depth is the number of book levels per side carried by a snapshot record.
const Depth = 20

// Sentinel values marking inactive levels.
const (
	BidNullPriceQ int64 = 0
	AskNullPriceQ int64 = math.MaxInt64
	NullQtyQ      int64 = 0
)

// Level is one fixed-point book level.
type Level struct {
	PriceQ int64
	QtyQ   int64
}

// Record is one top-of-book snapshot tick.
// Bids hold the best bid at index 0 with non-increasing prices;
// asks hold the best ask at index 0 with non-decreasing prices.
// Inactive levels carry the side sentinel and trail the active prefix.
type Record struct {
	TsEventMs int64
	TsRecvNs  int64
	Bids      [Depth]Level
	Asks      [Depth]Level
}

// BidActive reports whether a bid level carries real liquidity.
func BidActive(l Level) bool {
	return l.QtyQ > 0 && l.PriceQ > 0
}

// AskActive reports whether an ask level carries real liquidity.
func AskActive(l Level) bool {
	return l.QtyQ > 0 && l.PriceQ != AskNullPriceQ
}

// HasTopOfBook reports whether both best levels are active.
func HasTopOfBook(r *Record) bool {
	return BidActive(r.Bids[0]) && AskActive(r.Asks[0])
}

// NullBidLevel returns the inactive-bid sentinel.
func NullBidLevel() Level { return Level{PriceQ: BidNullPriceQ, QtyQ: NullQtyQ} }

// NullAskLevel returns the inactive-ask sentinel.
func NullAskLevel() Level { return Level{PriceQ: AskNullPriceQ, QtyQ: NullQtyQ} }
