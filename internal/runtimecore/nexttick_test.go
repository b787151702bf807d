package runtimecore

import "testing"

func TestNextTickQueueDrainsInFIFOOrder(t *testing.T) {
	q := newNextTickQueue()
	var order []int
	q.push(func() { order = append(order, 1) })
	q.push(func() { order = append(order, 2) })
	q.push(func() { order = append(order, 3) })

	q.drain()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("drain order = %v, want [1 2 3]", order)
	}
	if !q.empty() {
		t.Fatal("expected the queue to be empty after drain")
	}
}

func TestNextTickQueueDrainsCallbacksPushedDuringDrain(t *testing.T) {
	q := newNextTickQueue()
	var order []int
	q.push(func() {
		order = append(order, 1)
		q.push(func() { order = append(order, 2) })
	})

	q.drain()

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("drain order = %v, want [1 2] (re-entrant push drained in the same pass)", order)
	}
	if !q.empty() {
		t.Fatal("expected the queue to be empty after a re-entrant drain")
	}
}

func TestNextTickQueueEmptyInitially(t *testing.T) {
	q := newNextTickQueue()
	if !q.empty() {
		t.Fatal("expected a freshly created queue to be empty")
	}
}
