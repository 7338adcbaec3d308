package services

import (
	"sync"

	"github.com/codelens/backend/internal/domain"
	"github.com/codelens/backend/internal/infrastructure/logger"
)

const defaultEventBuffer = 64

// Subscriber is one attached progress listener for a single task.
type Subscriber struct {
	taskID string
	ch     chan domain.ProgressEvent
	closed bool
}

// Events returns the delivery channel. It is closed when the task reaches a
// terminal state, when the subscriber unsubscribes, or when the subscriber
// is evicted for not draining.
func (s *Subscriber) Events() <-chan domain.ProgressEvent {
	return s.ch
}

// TaskID returns the task this subscriber is attached to.
func (s *Subscriber) TaskID() string {
	return s.taskID
}

// Broadcaster fans analysis progress events out to per-task subscribers.
// There is no backlog: a late subscriber only sees events published after it
// attached, and catches up through the status snapshot instead.
type Broadcaster struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscriber]struct{}
	buffer int
	log    *logger.Logger
}

func NewBroadcaster(log *logger.Logger, bufferSize int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = defaultEventBuffer
	}
	return &Broadcaster{
		topics: make(map[string]map[*Subscriber]struct{}),
		buffer: bufferSize,
		log:    log,
	}
}

// ==================== Subscription ====================

// Subscribe registers a new listener on the task's event stream.
func (b *Broadcaster) Subscribe(taskID string) *Subscriber {
	sub := &Subscriber{
		taskID: taskID,
		ch:     make(chan domain.ProgressEvent, b.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs, exists := b.topics[taskID]
	if !exists {
		subs = make(map[*Subscriber]struct{})
		b.topics[taskID] = subs
	}
	subs[sub] = struct{}{}

	b.log.Debugw("broadcast_subscribe", "task_id", taskID, "subscribers", len(subs))
	return sub
}

// Unsubscribe removes a listener and closes its channel. Safe to call more
// than once, and after CloseTask.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

// SubscriberCount reports how many listeners a task currently has.
func (b *Broadcaster) SubscriberCount(taskID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[taskID])
}

// ==================== Delivery ====================

// Publish delivers an event to every subscriber of the task. Delivery never
// blocks: a subscriber whose buffer is full is evicted and closed so one
// slow consumer cannot stall the runner or its siblings.
func (b *Broadcaster) Publish(event domain.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.topics[event.TaskID] {
		select {
		case sub.ch <- event:
		default:
			b.log.Warnw("broadcast_evict_slow_subscriber",
				"task_id", event.TaskID,
				"seq", event.Seq,
			)
			b.removeLocked(sub)
		}
	}
}

// CloseTask closes every remaining subscriber of a finished task and drops
// the topic. Called by the runner once, after the terminal event.
func (b *Broadcaster) CloseTask(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.topics[taskID] {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
	delete(b.topics, taskID)
}

// removeLocked detaches and closes one subscriber. Caller holds b.mu.
func (b *Broadcaster) removeLocked(sub *Subscriber) {
	if subs, exists := b.topics[sub.taskID]; exists {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.topics, sub.taskID)
		}
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}
