package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventType represents the type of event
type EventType string

const (
	// EventViewStale tells subscribers that cached renderings of Path are outdated.
	EventViewStale EventType = "view.stale"
)

// Event represents a server-sent event
type Event struct {
	Type      EventType `json:"type"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// Client represents a connected SSE client
type Client struct {
	ID     string
	Events chan *Event
}

// Broadcaster fans events out to connected SSE clients.
type Broadcaster struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Event
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *zap.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Event, 64),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Start begins the broadcaster event loop
func (b *Broadcaster) Start() {
	go func() {
		for {
			select {
			case client := <-b.register:
				b.mu.Lock()
				b.clients[client.ID] = client
				b.mu.Unlock()
				b.log.Debug("SSE client registered", zap.String("client_id", client.ID))

			case client := <-b.unregister:
				b.mu.Lock()
				if _, ok := b.clients[client.ID]; ok {
					close(client.Events)
					delete(b.clients, client.ID)
				}
				b.mu.Unlock()
				b.log.Debug("SSE client unregistered", zap.String("client_id", client.ID))

			case event := <-b.broadcast:
				b.mu.RLock()
				for _, client := range b.clients {
					select {
					case client.Events <- event:
					default:
						b.log.Warn("skipping event for slow client", zap.String("client_id", client.ID))
					}
				}
				b.mu.RUnlock()

			case <-b.done:
				b.mu.Lock()
				for id, client := range b.clients {
					close(client.Events)
					delete(b.clients, id)
				}
				b.mu.Unlock()
				return
			}
		}
	}()
}

// Stop terminates the event loop and closes every client channel.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.done) })
}

// RegisterClient registers a new SSE client
func (b *Broadcaster) RegisterClient(clientID string) *Client {
	client := &Client{
		ID:     clientID,
		Events: make(chan *Event, 10),
	}
	select {
	case b.register <- client:
	case <-b.done:
		close(client.Events)
	}
	return client
}

// UnregisterClient removes a client from the broadcaster
func (b *Broadcaster) UnregisterClient(client *Client) {
	select {
	case b.unregister <- client:
	case <-b.done:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// SendEvent broadcasts an event to all connected clients
func (b *Broadcaster) SendEvent(eventType EventType, path string) {
	event := &Event{
		Type:      eventType,
		Path:      path,
		Timestamp: time.Now(),
	}

	select {
	case b.broadcast <- event:
	default:
		b.log.Warn("event broadcast channel full, dropping event", zap.String("path", path))
	}
}

// FormatSSE formats an event for SSE transmission
func FormatSSE(event *Event) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, string(data)), nil
}
