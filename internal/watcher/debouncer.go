package watcher

import (
	"sync"
	"time"
)

// EventType represents the kind of change behind an event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "CREATE"
	case EventModify:
		return "MODIFY"
	case EventDelete:
		return "DELETE"
	case EventRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Event is a debounced change of one key. Keys are relative file paths for
// the drop-folder watcher and entity ids for the sync dispatcher.
type Event struct {
	Key       string
	Type      EventType
	Timestamp time.Time
}

// Debouncer collects and coalesces rapid events per key
type Debouncer struct {
	delay   time.Duration
	events  map[string]*pendingEvent
	mu      sync.Mutex
	stopped bool
	output  chan Event
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

type pendingEvent struct {
	event Event
	timer *time.Timer
}

// NewDebouncer creates a new event debouncer
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		events: make(map[string]*pendingEvent),
		output: make(chan Event, 256),
		stopCh: make(chan struct{}),
	}
}

// Events returns the channel of debounced events. It is closed by Stop.
func (d *Debouncer) Events() <-chan Event {
	return d.output
}

// Add schedules an event for key, restarting the key's delay
func (d *Debouncer) Add(key string, eventType EventType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	now := time.Now()
	pending, exists := d.events[key]
	if !exists {
		d.events[key] = &pendingEvent{
			event: Event{Key: key, Type: eventType, Timestamp: now},
			timer: time.AfterFunc(d.delay, func() { d.emit(key) }),
		}
		return
	}

	pending.timer.Stop()

	// DELETE always wins, CREATE + MODIFY stays CREATE
	switch {
	case eventType == EventDelete:
		pending.event.Type = EventDelete
	case pending.event.Type == EventCreate && eventType == EventModify:
	case pending.event.Type != EventDelete:
		pending.event.Type = eventType
	}
	pending.event.Timestamp = now
	pending.timer = time.AfterFunc(d.delay, func() { d.emit(key) })
}

// emit sends the pending event of key to the output channel
func (d *Debouncer) emit(key string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	pending, exists := d.events[key]
	if !exists {
		d.mu.Unlock()
		return
	}
	delete(d.events, key)
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	select {
	case d.output <- pending.event:
	case <-d.stopCh:
	}
}

// Flush immediately emits all pending events
func (d *Debouncer) Flush() {
	d.mu.Lock()
	keys := make([]string, 0, len(d.events))
	for key, pending := range d.events {
		pending.timer.Stop()
		keys = append(keys, key)
	}
	d.mu.Unlock()

	for _, key := range keys {
		d.emit(key)
	}
}

// Stop drops pending events and closes the output channel
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.stopCh)
	for _, pending := range d.events {
		pending.timer.Stop()
	}
	d.events = make(map[string]*pendingEvent)
	d.mu.Unlock()

	d.wg.Wait()
	close(d.output)
}

// PendingCount returns the number of pending events
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}
