package service

import (
	"fmt"

	"offline-cart-sync/internal/domain"
	"offline-cart-sync/internal/events"
	"offline-cart-sync/internal/logger"

	"go.uber.org/zap"
)

const (
	successMessage = "Offline items synchronized successfully."
	errorMessage   = "Error during cart synchronization. Please check your network."

	successDisplayMs = 4000
	errorDisplayMs   = 5000
	dropDisplayMs    = 5000
)

// Notifier accepts user-facing outcomes. Notify must not block.
type Notifier interface {
	Notify(n domain.Notification)
}

type NotifierFunc func(domain.Notification)

func (f NotifierFunc) Notify(n domain.Notification) { f(n) }

func SuccessNotification() domain.Notification {
	return domain.Notification{
		Kind:              domain.NotificationInfo,
		Message:           successMessage,
		DisplayDurationMs: successDisplayMs,
	}
}

func ErrorNotification() domain.Notification {
	return domain.Notification{
		Kind:              domain.NotificationError,
		Message:           errorMessage,
		DisplayDurationMs: errorDisplayMs,
	}
}

func DroppedNotification(name, sku string) domain.Notification {
	if name == "" {
		name = sku
	}
	return domain.Notification{
		Kind:              domain.NotificationError,
		Message:           fmt.Sprintf("%s (%s) is out of stock and was removed from your cart.", name, sku),
		DisplayDurationMs: dropDisplayMs,
		SKU:               sku,
	}
}

type LogNotifier struct {
	log *zap.SugaredLogger
}

func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{log: logger.OrNop(log)}
}

func (n *LogNotifier) Notify(note domain.Notification) {
	fields := []interface{}{"kind", note.Kind, "display_ms", note.DisplayDurationMs}
	if note.SKU != "" {
		fields = append(fields, "sku", note.SKU)
	}
	if note.Kind == domain.NotificationError {
		n.log.Warnw(note.Message, fields...)
		return
	}
	n.log.Infow(note.Message, fields...)
}

// EventNotifier publishes notifications on the bus; the websocket hub
// forwards them to connected clients.
type EventNotifier struct {
	bus *events.Bus
}

func NewEventNotifier(bus *events.Bus) *EventNotifier {
	return &EventNotifier{bus: bus}
}

func (n *EventNotifier) Notify(note domain.Notification) {
	n.bus.Publish(events.Event{Topic: events.TopicNotification, Payload: note})
}

type MultiNotifier []Notifier

func (m MultiNotifier) Notify(note domain.Notification) {
	for _, n := range m {
		n.Notify(note)
	}
}
