package domain

import "time"

type SyncState string

const (
	SyncStateOffline SyncState = "offline"
	SyncStateSyncing SyncState = "syncing"
	SyncStateSynced  SyncState = "synced"
)

type ItemResolution string

const (
	ResolutionAdded         ItemResolution = "added"
	ResolutionAlreadyInCart ItemResolution = "already_in_cart"
	ResolutionOutOfStock    ItemResolution = "out_of_stock"
	ResolutionFailed        ItemResolution = "failed"
)

type ItemResult struct {
	SKU        string         `json:"sku"`
	Quantity   int            `json:"quantity"`
	Resolution ItemResolution `json:"resolution"`
	Error      string         `json:"error,omitempty"`
}

// PassResult summarises one drain of the offline queue.
type PassResult struct {
	CartID     string       `json:"cart_id,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Items      []ItemResult `json:"items"`
	Remaining  int          `json:"remaining"`
	// Aborted is set when no cart identity could be resolved.
	Aborted bool   `json:"aborted"`
	Error   string `json:"error,omitempty"`
}

// Processed counts items that reached the server cart in this pass,
// either by being added or by already being there.
func (r *PassResult) Processed() int {
	n := 0
	for _, it := range r.Items {
		if it.Resolution == ResolutionAdded || it.Resolution == ResolutionAlreadyInCart {
			n++
		}
	}
	return n
}

func (r *PassResult) Count(res ItemResolution) int {
	n := 0
	for _, it := range r.Items {
		if it.Resolution == res {
			n++
		}
	}
	return n
}

type SyncStatus struct {
	State    SyncState   `json:"state"`
	Draining bool        `json:"draining"`
	Online   bool        `json:"online"`
	CartID   string      `json:"cart_id,omitempty"`
	LastPass *PassResult `json:"last_pass,omitempty"`
}

type SyncRequest struct {
	CartID string `json:"cart_id" validate:"omitempty,max=256"`
}
