// Package realtime fans market events out to connected WebSocket clients.
package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Conn is the write side of a client connection
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Subscriber is a registered connection. Writes to one subscriber are serialized.
type Subscriber struct {
	ID   string
	conn Conn
	mu   sync.Mutex
}

// Send writes v to the subscriber's connection
func (s *Subscriber) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// Broadcaster owns the live subscriber set. It is created once at boot and shared by the
// market sync loop (publisher) and the WebSocket handler (subscribe/unsubscribe).
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
	log  *logrus.Entry
}

func NewBroadcaster(log *logrus.Logger) *Broadcaster {
	return &Broadcaster{
		subs: make(map[string]*Subscriber),
		log:  log.WithField("component", "broadcaster"),
	}
}

func (b *Broadcaster) Subscribe(conn Conn) *Subscriber {
	sub := &Subscriber{ID: uuid.NewString(), conn: conn}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	n := len(b.subs)
	b.mu.Unlock()

	b.log.WithFields(logrus.Fields{"subscriber": sub.ID, "subscribers": n}).Info("Client subscribed")
	return sub
}

// Unsubscribe removes and closes sub. Unknown or already removed subscribers are ignored.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	_, ok := b.subs[sub.ID]
	delete(b.subs, sub.ID)
	n := len(b.subs)
	b.mu.Unlock()

	if !ok {
		return
	}
	_ = sub.conn.Close()
	b.log.WithFields(logrus.Fields{"subscriber": sub.ID, "subscribers": n}).Info("Client unsubscribed")
}

// Broadcast sends msg to every current subscriber. Subscribers whose send fails are dropped;
// delivery to the rest continues.
func (b *Broadcaster) Broadcast(msg any) {
	b.mu.RLock()
	snapshot := make([]*Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		snapshot = append(snapshot, s)
	}
	b.mu.RUnlock()

	var failed []*Subscriber
	for _, s := range snapshot {
		if err := s.Send(msg); err != nil {
			b.log.WithField("subscriber", s.ID).WithError(err).Warn("Send failed, dropping subscriber")
			failed = append(failed, s)
		}
	}

	for _, s := range failed {
		b.Unsubscribe(s)
	}
}

func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close disconnects every subscriber
func (b *Broadcaster) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*Subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.conn.Close()
	}
}
