package server

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	RealtimeEventDirectMessage = "direct-message"
	realtimeEventHeartbeat     = "heartbeat"
	realtimeSourceBackend      = "santa-api"
	defaultRealtimeBufferSize  = 16
)

var (
	// ErrRecipientUnreachable indicates the user has no open notification stream.
	ErrRecipientUnreachable = errors.New("realtime: recipient has no open stream")
	// ErrRecipientBusy indicates every stream of the user has a full buffer.
	ErrRecipientBusy = errors.New("realtime: recipient streams are full")
)

type RealtimeMessage struct {
	UserID    string
	EventType string
	Kind      string
	GuildID   string
	RoundID   string
	Text      string
	Timestamp time.Time
}

type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher(bufferSize int) *RealtimeDispatcher {
	if bufferSize <= 0 {
		bufferSize = defaultRealtimeBufferSize
	}
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  bufferSize,
	}
}

func (d *RealtimeDispatcher) Subscribe(ctx context.Context, userID string) (<-chan RealtimeMessage, func()) {
	if userID == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(userID, subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(userID, subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish hands message to every open stream of its user. It fails when no
// stream accepted the message.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) error {
	if message.UserID == "" || message.EventType == "" {
		return ErrRecipientUnreachable
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.UserID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return ErrRecipientUnreachable
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	delivered := false
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
			delivered = true
		default:
		}
	}
	if !delivered {
		return ErrRecipientBusy
	}
	return nil
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(userID string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[userID]; !ok {
		d.subscribers[userID] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[userID][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(userID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[userID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, userID)
		}
	}
	d.mu.Unlock()
}
