package storefront

import "sync"

type EventKind string

const (
	// EventCartChanged carries the new total item count for nav badges.
	EventCartChanged       EventKind = "cart_changed"
	EventStockLimitReached EventKind = "stock_limit_reached"
	EventNotice            EventKind = "notice"
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

type Event struct {
	Kind       EventKind
	TotalCount int
	LineID     string
	Level      NoticeLevel
	Title      string
	Message    string
}

// EventBus fans events out to subscribers synchronously, in subscription
// order.
type EventBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
	order  []int
}

func NewEventBus() *EventBus {
	return &EventBus{subs: map[int]func(Event){}}
}

// Subscribe registers fn and returns a function that removes it.
func (b *EventBus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; !ok {
			return
		}
		delete(b.subs, id)
		for i, candidate := range b.order {
			if candidate == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish is safe on a nil bus.
func (b *EventBus) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.subs))
	for _, id := range b.order {
		if fn, ok := b.subs[id]; ok {
			handlers = append(handlers, fn)
		}
	}
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(evt)
	}
}

func (b *EventBus) notice(level NoticeLevel, title, message string) {
	b.Publish(Event{Kind: EventNotice, Level: level, Title: title, Message: message})
}

func (b *EventBus) cartChanged(total int) {
	b.Publish(Event{Kind: EventCartChanged, TotalCount: total})
}
