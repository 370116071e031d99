package main

import (
	"fmt"
	"sync"
)

// InputQueue holds one FIFO of movement intents per participant. Network
// goroutines enqueue; the tick loop dequeues at most one intent per
// participant per tick. Queues are unbounded: if a peer sends faster than
// the tick rate its intents accumulate and are applied late, never dropped.
type InputQueue struct {
	mu     sync.Mutex
	queues map[string][]MovementIntent
}

func NewInputQueue() *InputQueue {
	return &InputQueue{queues: make(map[string][]MovementIntent)}
}

// Open creates an empty queue for id. Reopening keeps nothing from before.
func (q *InputQueue) Open(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queues[id] = nil
}

// Close discards the queue and any pending intents.
func (q *InputQueue) Close(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.queues, id)
}

// Enqueue appends intent to the participant's queue.
func (q *InputQueue) Enqueue(id string, intent MovementIntent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	queue, ok := q.queues[id]
	if !ok {
		return fmt.Errorf("input queue %s: %w", id, ErrNotFound)
	}
	q.queues[id] = append(queue, intent)
	return nil
}

// DequeueOne pops the oldest pending intent. A missing queue reports empty.
func (q *InputQueue) DequeueOne(id string) (MovementIntent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	queue := q.queues[id]
	if len(queue) == 0 {
		return MovementIntent{}, false
	}
	intent := queue[0]
	queue[0] = MovementIntent{}
	q.queues[id] = queue[1:]
	return intent, true
}

// Len returns the number of pending intents for id.
func (q *InputQueue) Len(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[id])
}
