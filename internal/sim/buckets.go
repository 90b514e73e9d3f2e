package sim

import (
	"sort"

	"main/internal/schema"
)

func newBucket() bucket {
	return bucket{
		head:         invalidIndex,
		tail:         invalidIndex,
		visibility:   schema.VisibilityBlind,
		lastLevelIdx: invalidIndex,
	}
}

func (s *Simulator) refreshBestBid() {
	if n := len(s.bidPrices); n > 0 {
		s.hasActiveBids = true
		s.bestActiveBidQ = s.bidPrices[n-1]
	} else {
		s.hasActiveBids = false
		s.bestActiveBidQ = 0
	}
}

func (s *Simulator) refreshBestAsk() {
	if len(s.askPrices) > 0 {
		s.hasActiveAsks = true
		s.bestActiveAskQ = s.askPrices[0]
	} else {
		s.hasActiveAsks = false
		s.bestActiveAskQ = 0
	}
}

func (s *Simulator) findBidBucket(priceQ int64) (int, bool) {
	i := sort.Search(len(s.bidPrices), func(i int) bool { return s.bidPrices[i] >= priceQ })
	if i < len(s.bidPrices) && s.bidPrices[i] == priceQ {
		return i, true
	}
	return i, false
}

func (s *Simulator) findAskBucket(priceQ int64) (int, bool) {
	i := sort.Search(len(s.askPrices), func(i int) bool { return s.askPrices[i] >= priceQ })
	if i < len(s.askPrices) && s.askPrices[i] == priceQ {
		return i, true
	}
	return i, false
}

// getOrInsertBidBucket returns the bucket index for priceQ, creating it when
// absent. The second result reports creation.
func (s *Simulator) getOrInsertBidBucket(priceQ int64) (int, bool) {
	i, ok := s.findBidBucket(priceQ)
	if ok {
		return i, false
	}
	s.bidPrices = append(s.bidPrices, 0)
	copy(s.bidPrices[i+1:], s.bidPrices[i:])
	s.bidPrices[i] = priceQ
	s.bidBuckets = append(s.bidBuckets, bucket{})
	copy(s.bidBuckets[i+1:], s.bidBuckets[i:])
	s.bidBuckets[i] = newBucket()
	s.refreshBestBid()
	return i, true
}

func (s *Simulator) getOrInsertAskBucket(priceQ int64) (int, bool) {
	i, ok := s.findAskBucket(priceQ)
	if ok {
		return i, false
	}
	s.askPrices = append(s.askPrices, 0)
	copy(s.askPrices[i+1:], s.askPrices[i:])
	s.askPrices[i] = priceQ
	s.askBuckets = append(s.askBuckets, bucket{})
	copy(s.askBuckets[i+1:], s.askBuckets[i:])
	s.askBuckets[i] = newBucket()
	s.refreshBestAsk()
	return i, true
}

func (s *Simulator) eraseBidBucketAt(i int) {
	s.bidPrices = append(s.bidPrices[:i], s.bidPrices[i+1:]...)
	s.bidBuckets = append(s.bidBuckets[:i], s.bidBuckets[i+1:]...)
	s.refreshBestBid()
}

func (s *Simulator) eraseAskBucketAt(i int) {
	s.askPrices = append(s.askPrices[:i], s.askPrices[i+1:]...)
	s.askBuckets = append(s.askBuckets[:i], s.askBuckets[i+1:]...)
	s.refreshBestAsk()
}

// compactEmptyBuckets sweeps both sides after a fill pass, erasing buckets
// whose FIFO drained while erasure was deferred.
func (s *Simulator) compactEmptyBuckets() {
	for i := len(s.bidBuckets) - 1; i >= 0; i-- {
		if s.bidBuckets[i].size == 0 {
			s.eraseBidBucketAt(i)
		}
	}
	for i := len(s.askBuckets) - 1; i >= 0; i-- {
		if s.askBuckets[i].size == 0 {
			s.eraseAskBucketAt(i)
		}
	}
}

func (s *Simulator) bucketPushBack(b *bucket, idx int) {
	o := &s.orders[idx]
	o.bucketPrev = b.tail
	o.bucketNext = invalidIndex
	if b.tail != invalidIndex {
		s.orders[b.tail].bucketNext = idx
	} else {
		b.head = idx
	}
	b.tail = idx
	b.size++
}

func (s *Simulator) bucketUnlink(b *bucket, idx int) {
	o := &s.orders[idx]
	if o.bucketPrev != invalidIndex {
		s.orders[o.bucketPrev].bucketNext = o.bucketNext
	} else {
		b.head = o.bucketNext
	}
	if o.bucketNext != invalidIndex {
		s.orders[o.bucketNext].bucketPrev = o.bucketPrev
	} else {
		b.tail = o.bucketPrev
	}
	o.bucketPrev = invalidIndex
	o.bucketNext = invalidIndex
	b.size--
}

// addActiveOrder links a freshly activated order into its side's bucket FIFO
// and swap-set.
func (s *Simulator) addActiveOrder(idx int, m levelLookup) {
	o := &s.orders[idx]
	if o.Side == schema.SideBuy {
		bi, created := s.getOrInsertBidBucket(o.PriceQ)
		b := &s.bidBuckets[bi]
		if created {
			b.visibility = o.Visibility
			b.lastLevelIdx = o.LastLevelIdx
			b.lastLevelQtyQ = o.LastLevelQtyQ
		}
		s.bucketPushBack(b, idx)
		s.activeBidPos[o.ID] = len(s.activeBids)
		s.activeBids = append(s.activeBids, idx)
		return
	}
	bi, created := s.getOrInsertAskBucket(o.PriceQ)
	b := &s.askBuckets[bi]
	if created {
		b.visibility = o.Visibility
		b.lastLevelIdx = o.LastLevelIdx
		b.lastLevelQtyQ = o.LastLevelQtyQ
	}
	s.bucketPushBack(b, idx)
	s.activeAskPos[o.ID] = len(s.activeAsks)
	s.activeAsks = append(s.activeAsks, idx)
}

// removeActiveOrder unlinks a resting order from its bucket FIFO and
// swap-pops it out of the active set. Bucket erasure is immediate unless a
// fill pass deferred it.
func (s *Simulator) removeActiveOrder(idx int) {
	o := &s.orders[idx]
	if o.Side == schema.SideBuy {
		bi, ok := s.findBidBucket(o.PriceQ)
		if !ok {
			panic("sim: resting buy order without bucket")
		}
		b := &s.bidBuckets[bi]
		s.bucketUnlink(b, idx)
		if b.size == 0 && !s.deferBucketErase {
			s.eraseBidBucketAt(bi)
		}
		pos := s.activeBidPos[o.ID]
		last := len(s.activeBids) - 1
		moved := s.activeBids[last]
		s.activeBids[pos] = moved
		s.activeBids = s.activeBids[:last]
		if pos != last {
			s.activeBidPos[s.orders[moved].ID] = pos
		}
		s.activeBidPos[o.ID] = invalidIndex
		return
	}
	bi, ok := s.findAskBucket(o.PriceQ)
	if !ok {
		panic("sim: resting sell order without bucket")
	}
	b := &s.askBuckets[bi]
	s.bucketUnlink(b, idx)
	if b.size == 0 && !s.deferBucketErase {
		s.eraseAskBucketAt(bi)
	}
	pos := s.activeAskPos[o.ID]
	last := len(s.activeAsks) - 1
	moved := s.activeAsks[last]
	s.activeAsks[pos] = moved
	s.activeAsks = s.activeAsks[:last]
	if pos != last {
		s.activeAskPos[s.orders[moved].ID] = pos
	}
	s.activeAskPos[o.ID] = invalidIndex
}
