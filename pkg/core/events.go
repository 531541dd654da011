package core

import "sync"

// EventType names a chain event.
type EventType string

const (
	// EventBlockAppended fires after a locally mined block is appended.
	EventBlockAppended EventType = "block_appended"

	// EventChainReplaced fires after the chain is swapped for a longer one.
	EventChainReplaced EventType = "chain_replaced"
)

// Event describes a change of the chain tip.
type Event struct {
	Type   EventType `json:"type"`
	Block  Block     `json:"block"`
	Length int       `json:"length"`
}

const eventBuffer = 16

type eventFeed struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan Event
}

func (f *eventFeed) init() {
	f.subs = make(map[uint64]chan Event)
}

func (f *eventFeed) subscribe() (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan Event, eventBuffer)
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
			close(ch)
		})
	}
}

func (f *eventFeed) publish(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, ch := range f.subs {
		select {
		case ch <- e:
		default:
			log.Debugf("Dropping %s event for slow subscriber %d", e.Type, id)
		}
	}
}
