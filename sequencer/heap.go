package sequencer

import "github.com/vkngwrapper/heapcheck/event"

type head struct {
	event  event.Event
	cursor Cursor
}

// headHeap is a container/heap min-heap of cursor heads keyed by sequence number
type headHeap []head

func (h headHeap) Len() int           { return len(h) }
func (h headHeap) Less(i, j int) bool { return h[i].event.Seq < h[j].event.Seq }
func (h headHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *headHeap) Push(x any) {
	*h = append(*h, x.(head))
}

func (h *headHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = head{}
	*h = old[:n-1]
	return item
}
