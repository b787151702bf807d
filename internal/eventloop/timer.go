package eventloop

import "time"

// timer is one entry in the loop's timer min-heap. repeat > 0 marks
// an interval timer; repeat == 0 marks a one-shot timeout.
type timer struct {
	id       int
	deadline time.Time
	repeat   time.Duration
	callback func()
	seq      int // heap tie-break, lower seq first among equal deadlines
	index    int // maintained by container/heap
}

// timerHeap is a container/heap.Interface ordering timers by deadline,
// earliest first, breaking ties by insertion order.
type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
