package domain

type NotificationKind string

const (
	NotificationInfo  NotificationKind = "info"
	NotificationError NotificationKind = "error"
)

type Notification struct {
	Kind              NotificationKind `json:"kind"`
	Message           string           `json:"message"`
	DisplayDurationMs int              `json:"display_duration_ms"`
	SKU               string           `json:"sku,omitempty"`
}
