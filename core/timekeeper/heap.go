package timekeeper

// formationHeap is a container/heap min-heap ordered by NextFire, with ties
// broken by insertion sequence so replay order matches call-acceptance
// order as required by the ordering guarantees in the concurrency model.
type formationHeap []*Formation

func (h formationHeap) Len() int { return len(h) }

func (h formationHeap) Less(i, j int) bool {
	if h[i].NextFire.Equal(h[j].NextFire) {
		return h[i].seq < h[j].seq
	}
	return h[i].NextFire.Before(h[j].NextFire)
}

func (h formationHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *formationHeap) Push(x any) {
	f := x.(*Formation)
	f.index = len(*h)
	*h = append(*h, f)
}

func (h *formationHeap) Pop() any {
	old := *h
	n := len(old)
	f := old[n-1]
	old[n-1] = nil
	f.index = -1
	*h = old[:n-1]
	return f
}
