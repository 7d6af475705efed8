package worker

import "testing"

func TestQueueIsFIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 1; i <= 5; i++ {
		q.Enqueue(i)
	}
	if head, ok := q.Peek(); !ok || head != 1 {
		t.Fatalf("peek = %d,%v want 1,true", head, ok)
	}
	if got, ok := q.Pop(); !ok || got != 1 {
		t.Fatalf("pop = %d,%v want 1,true", got, ok)
	}
	batch := q.Drain(2)
	if len(batch) != 2 || batch[0] != 2 || batch[1] != 3 {
		t.Fatalf("unexpected batch %v", batch)
	}
	if q.Len() != 2 {
		t.Fatalf("len = %d want 2", q.Len())
	}
	rest := q.Drain(0)
	if len(rest) != 2 || rest[0] != 4 || rest[1] != 5 {
		t.Fatalf("unexpected remainder %v", rest)
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("pop on empty queue should report false")
	}
	if q.Drain(3) != nil {
		t.Fatalf("drain on empty queue should return nil")
	}
}
