package speech

// utteranceHeap implements [container/heap.Interface] as a max-heap ordered
// by priority (descending), with FIFO tie-breaking on seq (ascending).
// A preempted utterance keeps its seq, so it resumes ahead of anything of
// equal priority queued after it.
type utteranceHeap []*utterance

func (h utteranceHeap) Len() int { return len(h) }

func (h utteranceHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h utteranceHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *utteranceHeap) Push(x any) {
	*h = append(*h, x.(*utterance))
}

func (h *utteranceHeap) Pop() any {
	old := *h
	n := len(old)
	u := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return u
}
