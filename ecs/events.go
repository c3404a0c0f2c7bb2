package ecs

// Event is a generic ECS event payload.
type Event struct {
	Type string
	Data any
}

// EventQueue holds the events of the current frame in push order. Events
// stay readable by every later system of the frame and are dropped when the
// frame ends, so several readers can see the same event.
type EventQueue struct {
	items  []Event
	counts map[string]int
}

func (q *EventQueue) Push(evt Event) {
	if q == nil {
		return
	}
	if q.counts == nil {
		q.counts = make(map[string]int)
	}
	q.items = append(q.items, evt)
	q.counts[evt.Type]++
}

// Drain returns all events and clears the queue.
func (q *EventQueue) Drain() []Event {
	if q == nil || len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.flush()
	return out
}

// Each calls fn for every queued event of eventType without consuming it.
func (q *EventQueue) Each(eventType string, fn func(Event)) {
	if q.Count(eventType) == 0 {
		return
	}
	for _, evt := range q.items {
		if evt.Type == eventType {
			fn(evt)
		}
	}
}

func (q *EventQueue) Count(eventType string) int {
	if q == nil {
		return 0
	}
	return q.counts[eventType]
}

func (q *EventQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

func (q *EventQueue) flush() {
	if q == nil {
		return
	}
	q.items = nil
	clear(q.counts)
}

// Emit pushes data as an event of eventType on the world queue.
func Emit[T any](w *World, eventType string, data T) {
	w.Events().Push(Event{Type: eventType, Data: data})
}

// Read calls fn with the payload of every event of eventType whose data is a
// T. Events carrying other payloads are skipped.
func Read[T any](w *World, eventType string, fn func(T)) {
	w.Events().Each(eventType, func(evt Event) {
		if data, ok := evt.Data.(T); ok {
			fn(data)
		}
	})
}
