package main

import (
	"container/heap"
	"time"
)

// TaskID identifies a scheduled task. The zero value never names a task.
type TaskID uint64

type task struct {
	id    TaskID
	due   time.Time
	seq   uint64
	every time.Duration
	fn    func(now time.Time)
	index int
}

type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler holds deferred work for the tick loop. It is not safe for
// concurrent use; the game drives it under its own lock.
type Scheduler struct {
	queue  taskHeap
	byID   map[TaskID]*task
	nextID TaskID
	seq    uint64
}

func NewScheduler() *Scheduler {
	return &Scheduler{byID: make(map[TaskID]*task)}
}

// After runs fn on the first RunDue at or past now+d.
func (s *Scheduler) After(now time.Time, d time.Duration, fn func(now time.Time)) TaskID {
	return s.push(now.Add(d), 0, fn)
}

// Every runs fn every d, first at now+d.
func (s *Scheduler) Every(now time.Time, d time.Duration, fn func(now time.Time)) TaskID {
	if d <= 0 {
		d = time.Second
	}
	return s.push(now.Add(d), d, fn)
}

func (s *Scheduler) push(due time.Time, every time.Duration, fn func(time.Time)) TaskID {
	s.nextID++
	s.seq++
	t := &task{id: s.nextID, due: due, seq: s.seq, every: every, fn: fn}
	heap.Push(&s.queue, t)
	s.byID[t.id] = t
	return t.id
}

// Cancel removes a pending task and reports whether it was still pending.
func (s *Scheduler) Cancel(id TaskID) bool {
	t, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	if t.index >= 0 {
		heap.Remove(&s.queue, t.index)
	}
	return true
}

func (s *Scheduler) Pending(id TaskID) bool {
	_, ok := s.byID[id]
	return ok
}

func (s *Scheduler) Len() int {
	return len(s.byID)
}

// RunDue runs every task due at or before now, earliest first, and returns
// how many ran. Tasks scheduled by a running task for a time <= now run in
// the same call.
func (s *Scheduler) RunDue(now time.Time) int {
	ran := 0
	for len(s.queue) > 0 {
		t := s.queue[0]
		if t.due.After(now) {
			break
		}
		heap.Pop(&s.queue)
		if t.every > 0 {
			s.seq++
			t.due = t.due.Add(t.every)
			if !t.due.After(now) {
				t.due = now.Add(t.every)
			}
			t.seq = s.seq
			heap.Push(&s.queue, t)
		} else {
			delete(s.byID, t.id)
		}
		t.fn(now)
		ran++
	}
	return ran
}
