package websocket

import (
	"context"
	"sync"
	"time"

	"offline-cart-sync/internal/events"
	"offline-cart-sync/internal/logger"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

type HubConfig struct {
	MaxClients     int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
}

// Hub fans bus events out to every connected websocket client. It is the
// cross-client leg of the change notification channel.
type Hub struct {
	clients      map[string]*Client
	clientsMutex sync.RWMutex
	Register     chan *Client
	Unregister   chan *Client
	done         chan struct{}
	cfg          HubConfig
	log          *zap.SugaredLogger
}

func NewHub(cfg HubConfig, log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		cfg:        cfg,
		log:        logger.OrNop(log),
	}
}

// Attach subscribes the hub to every bus topic and returns the detach func.
func (h *Hub) Attach(bus *events.Bus) func() {
	unsubs := make([]func(), 0, len(events.AllTopics))
	for _, topic := range events.AllTopics {
		unsubs = append(unsubs, bus.Subscribe(topic, h))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	if h.cfg.MaxClients > 0 && len(h.clients) >= h.cfg.MaxClients {
		h.log.Warnw("Max websocket clients reached", "client_id", client.ID)
		close(client.Send)
		return
	}

	h.clients[client.ID] = client
	h.log.Debugw("Websocket client registered", "client_id", client.ID, "remote", client.RemoteAddr)
}

func (h *Hub) unregisterClient(client *Client) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
		h.log.Debugw("Websocket client unregistered", "client_id", client.ID)
	}
}

func (h *Hub) closeAll() {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	for id, c := range h.clients {
		close(c.Send)
		delete(h.clients, id)
	}
}

// OnEvent forwards a bus event to all clients. It never blocks the
// publisher; clients with a full buffer are dropped.
func (h *Hub) OnEvent(e events.Event) {
	msg, err := NewMessage(TypeForTopic(e.Topic), e.Payload)
	if err != nil {
		h.log.Errorw("Failed to encode event", "topic", e.Topic, "error", err)
		return
	}
	msg.Timestamp = e.Timestamp
	h.Broadcast(msg)
}

func (h *Hub) Broadcast(message *Message) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.log.Errorw("Failed to encode message", "type", message.Type, "error", err)
		return
	}

	var slow []*Client

	h.clientsMutex.RLock()
	for _, client := range h.clients {
		select {
		case client.Send <- messageBytes:
		default:
			slow = append(slow, client)
		}
	}
	h.clientsMutex.RUnlock()

	for _, client := range slow {
		h.log.Warnw("Client send buffer full, closing connection", "client_id", client.ID)
		h.drop(client)
	}
}

// Send delivers a message to one client.
func (h *Hub) Send(client *Client, message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()

	if _, ok := h.clients[client.ID]; !ok {
		return nil
	}
	select {
	case client.Send <- messageBytes:
	default:
		h.log.Warnw("Client send buffer full", "client_id", client.ID)
	}
	return nil
}

func (h *Hub) drop(client *Client) {
	go func() {
		select {
		case h.Unregister <- client:
		case <-h.done:
		}
	}()
}

func (h *Hub) ClientCount() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}
