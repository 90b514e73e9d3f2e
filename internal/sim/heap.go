package sim

import "container/heap"

// pendingEntry orders activations by due time, then submission sequence.
type pendingEntry struct {
	activateTs int64
	seq        uint64
	orderID    uint64
}

type pendingHeap []pendingEntry

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	if h[i].activateTs != h[j].activateTs {
		return h[i].activateTs < h[j].activateTs
	}
	return h[i].seq < h[j].seq
}

func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) { *h = append(*h, x.(pendingEntry)) }

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

func (s *Simulator) pushPending(e pendingEntry) {
	heap.Push(&s.pending, e)
}

func (s *Simulator) popPending() pendingEntry {
	return heap.Pop(&s.pending).(pendingEntry)
}
