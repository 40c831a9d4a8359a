package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type SessionEventKind string

const (
	SessionSignedUp  SessionEventKind = "signed_up"
	SessionSignedIn  SessionEventKind = "signed_in"
	SessionSignedOut SessionEventKind = "signed_out"

	SessionPasswordReset SessionEventKind = "password_reset"
)

type SessionEvent struct {
	Kind        SessionEventKind
	PrincipalID uuid.UUID
	VendorID    uuid.UUID
	At          time.Time
}

// eventBroker fans session events out to subscribers. A full subscriber
// buffer drops the event for that subscriber only.
type eventBroker struct {
	mu   sync.Mutex
	next int
	subs map[int]chan SessionEvent
}

func newEventBroker() *eventBroker {
	return &eventBroker{subs: make(map[int]chan SessionEvent)}
}

func (b *eventBroker) subscribe(buffer int) (<-chan SessionEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan SessionEvent, buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

func (b *eventBroker) publish(ev SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
