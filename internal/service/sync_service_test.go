package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"offline-cart-sync/internal/domain"
	"offline-cart-sync/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemote = errors.New("connection reset")

func defaultOptions(online bool) harnessOptions {
	return harnessOptions{
		online:     online,
		createCart: true,
		cfg:        SyncConfig{NotifyPartialSuccess: true, PassTimeout: 5 * time.Second},
	}
}

func TestSyncService_ReconnectDrainsQueue(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(false))
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 2})
	h.identities.cartID = "cart-1"

	assert.Equal(t, domain.SyncStateOffline, h.sync.State())

	h.observer.Set(true)
	h.sync.Wait()

	assert.Equal(t, []addCall{{CartID: "cart-1", SKU: "A", Quantity: 2}}, h.remote.addCalls())
	assert.Empty(t, h.queueRepo.snapshot())
	assert.Equal(t, domain.SyncStateSynced, h.sync.State())
	assert.Equal(t, 1, h.notes.count(domain.NotificationInfo, successMessage))
	assert.Len(t, h.notes.all(), 1)
}

func TestSyncService_OutOfStockIsDropped(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.seed(domain.OfflineLineItem{SKU: "B", Quantity: 1, Name: "Blue Shirt"})
	h.identities.cartID = "cart-1"
	h.remote.stock["B"] = domain.StockOutOfStock

	res, err := h.sync.RunPass(context.Background(), "")
	require.NoError(t, err)

	assert.Empty(t, h.remote.addCalls())
	assert.Empty(t, h.queueRepo.snapshot())
	assert.Equal(t, domain.SyncStateSynced, h.sync.State())
	assert.Equal(t, 1, res.Count(domain.ResolutionOutOfStock))

	notes := h.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationError, notes[0].Kind)
	assert.Equal(t, "B", notes[0].SKU)
	assert.Equal(t, "Blue Shirt (B) is out of stock and was removed from your cart.", notes[0].Message)
	assert.Equal(t, 5000, notes[0].DisplayDurationMs)
}

func TestSyncService_CartCreationFailureIsSilent(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(false))
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 1})
	h.remote.createErr = errRemote

	h.observer.Set(true)
	h.sync.Wait()

	assert.Equal(t, []domain.OfflineLineItem{{SKU: "A", Quantity: 1}}, h.queueRepo.snapshot())
	assert.Equal(t, domain.SyncStateSynced, h.sync.State())
	assert.Empty(t, h.notes.all())
	assert.Empty(t, h.remote.addCalls())

	status := h.sync.Status()
	require.NotNil(t, status.LastPass)
	assert.True(t, status.LastPass.Aborted)
}

func TestSyncService_NoIdentityWithoutCreationIsNoop(t *testing.T) {
	opts := defaultOptions(true)
	opts.createCart = false
	h := newSyncHarness(t, opts)
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 1})

	res, err := h.sync.RunPass(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, res.Aborted)
	assert.Equal(t, 0, h.remote.createCalls)
	assert.Len(t, h.queueRepo.snapshot(), 1)
	assert.Empty(t, h.notes.all())
}

func TestSyncService_PartialFailure(t *testing.T) {
	tests := []struct {
		name          string
		notifyPartial bool
		wantSuccess   int
	}{
		{name: "partial success notifies", notifyPartial: true, wantSuccess: 1},
		{name: "partial success silent", notifyPartial: false, wantSuccess: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions(true)
			opts.cfg.NotifyPartialSuccess = tt.notifyPartial
			h := newSyncHarness(t, opts)
			h.seed(
				domain.OfflineLineItem{SKU: "A", Quantity: 1},
				domain.OfflineLineItem{SKU: "B", Quantity: 2},
			)
			h.identities.cartID = "cart-1"
			h.remote.addErr["A"] = errRemote

			res, err := h.sync.RunPass(context.Background(), "")
			require.NoError(t, err)

			assert.Equal(t, []domain.OfflineLineItem{{SKU: "A", Quantity: 1}}, h.queueRepo.snapshot())
			assert.Equal(t, []addCall{{CartID: "cart-1", SKU: "B", Quantity: 2}}, h.remote.addCalls())
			assert.Equal(t, domain.SyncStateSynced, h.sync.State())
			assert.Equal(t, 1, res.Remaining)
			assert.Equal(t, 1, res.Processed())
			assert.Equal(t, tt.wantSuccess, h.notes.count(domain.NotificationInfo, successMessage))
			assert.Equal(t, 0, h.notes.count(domain.NotificationError, ""))
		})
	}
}

func TestSyncService_AlreadyInCartSkipsAdd(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.seed(
		domain.OfflineLineItem{SKU: "A", Quantity: 1},
		domain.OfflineLineItem{SKU: "B", Quantity: 1},
	)
	h.identities.cartID = "cart-1"
	h.remote.lines = []domain.CartLine{{SKU: "A", Quantity: 1}}

	res, err := h.sync.RunPass(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, []addCall{{CartID: "cart-1", SKU: "B", Quantity: 1}}, h.remote.addCalls())
	assert.Empty(t, h.queueRepo.snapshot())
	assert.Equal(t, 1, res.Count(domain.ResolutionAlreadyInCart))
	assert.Equal(t, 1, res.Count(domain.ResolutionAdded))
	assert.Equal(t, 1, h.notes.count(domain.NotificationInfo, successMessage))
}

func TestSyncService_ExplicitIdentityWins(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 1})
	h.identities.cartID = "durable"
	h.session.cartID = "session"

	res, err := h.sync.RunPass(context.Background(), "explicit")
	require.NoError(t, err)

	assert.Equal(t, "explicit", res.CartID)
	assert.Equal(t, "explicit", h.remote.addCalls()[0].CartID)
}

func TestSyncService_SessionBeforeDurable(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.identities.cartID = "durable"
	h.session.cartID = "session"

	res, err := h.sync.RunPass(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "session", res.CartID)
}

func TestSyncService_CreatesAndPropagatesCart(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 1})
	h.remote.createID = "new-cart"

	res, err := h.sync.RunPass(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "new-cart", res.CartID)
	assert.Equal(t, "new-cart", h.identities.stored())
	assert.Equal(t, "new-cart", h.session.CartID())
	assert.Equal(t, "new-cart", h.remote.addCalls()[0].CartID)
	assert.Equal(t, 1, h.remote.createCalls)
}

func TestSyncService_TriggerWhileDrainingRunsOnePass(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 1})
	h.identities.cartID = "cart-1"

	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	h.remote.addGate = gate
	h.remote.addStarted = started

	require.NoError(t, h.sync.TriggerSyncFor(""))
	<-started

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.sync.TriggerSync()
		}()
	}
	wg.Wait()

	assert.ErrorIs(t, h.sync.TriggerSyncFor(""), ErrSyncInFlight)
	_, err := h.sync.RunPass(context.Background(), "")
	assert.ErrorIs(t, err, ErrSyncInFlight)
	assert.True(t, h.sync.Status().Draining)
	assert.Equal(t, domain.SyncStateSyncing, h.sync.State())

	close(gate)
	h.sync.Wait()

	assert.Len(t, h.remote.addCalls(), 1)
	assert.Equal(t, []string{"A"}, h.remote.stockCalls)
	assert.False(t, h.sync.Status().Draining)
	assert.Equal(t, 1, h.notes.count(domain.NotificationInfo, successMessage))
}

func TestSyncService_OfflineGuard(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(false))
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 1})
	h.identities.cartID = "cart-1"

	h.sync.TriggerSync()
	h.sync.Wait()
	_, err := h.sync.RunPass(context.Background(), "")

	assert.ErrorIs(t, err, ErrOffline)
	assert.Equal(t, 0, h.remote.contentsCalls)
	assert.Len(t, h.queueRepo.snapshot(), 1)
	assert.Equal(t, domain.SyncStateOffline, h.sync.State())
}

func TestSyncService_ContentsFailureIsPassError(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.seed(
		domain.OfflineLineItem{SKU: "A", Quantity: 1},
		domain.OfflineLineItem{SKU: "B", Quantity: 2},
	)
	h.identities.cartID = "cart-1"
	h.remote.contentsErr = errRemote

	res, err := h.sync.RunPass(context.Background(), "")
	require.NoError(t, err)

	assert.NotEmpty(t, res.Error)
	assert.Equal(t, 3, res.Remaining)
	assert.Len(t, h.queueRepo.snapshot(), 2)
	assert.Empty(t, h.remote.addCalls())
	assert.Empty(t, h.remote.stockCalls)
	assert.Equal(t, domain.SyncStateSynced, h.sync.State())

	notes := h.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, ErrorNotification(), notes[0])
}

func TestSyncService_StaleCartIsReplaced(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 1})
	h.identities.cartID = "gone-cart"
	h.remote.missing["gone-cart"] = true
	h.remote.createID = "fresh-cart"

	res, err := h.sync.RunPass(context.Background(), "")
	require.NoError(t, err)
	h.sync.Wait()

	assert.Empty(t, res.Error)
	assert.Equal(t, "fresh-cart", res.CartID)
	assert.Equal(t, 1, h.remote.createCalls)
	assert.Equal(t, []addCall{{CartID: "fresh-cart", SKU: "A", Quantity: 1}}, h.remote.addCalls())
	assert.Empty(t, h.queueRepo.snapshot())
	assert.Equal(t, "fresh-cart", h.identities.stored())
	assert.Equal(t, "fresh-cart", h.session.CartID())
	assert.Equal(t, 0, h.notes.count(domain.NotificationError, ""))
	assert.Equal(t, 1, h.notes.count(domain.NotificationInfo, successMessage))
}

func TestSyncService_StaleCartWithoutCreationKeepsQueue(t *testing.T) {
	opts := defaultOptions(true)
	opts.createCart = false
	h := newSyncHarness(t, opts)
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 1})
	h.identities.cartID = "gone-cart"
	h.remote.missing["gone-cart"] = true

	res, err := h.sync.RunPass(context.Background(), "")
	require.NoError(t, err)

	assert.Contains(t, res.Error, "gone-cart")
	assert.Equal(t, 0, h.remote.createCalls)
	assert.Len(t, h.queueRepo.snapshot(), 1)
	assert.Empty(t, h.identities.stored())
	assert.Equal(t, []domain.Notification{ErrorNotification()}, h.notes.all())

	// The next pass has no identity to try and stays quiet.
	res, err = h.sync.RunPass(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Len(t, h.notes.all(), 1)
}

func TestSyncService_MissingExplicitCartIsNotForgotten(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 1})
	h.identities.cartID = "cart-1"
	h.remote.missing["gone-cart"] = true

	res, err := h.sync.RunPass(context.Background(), "gone-cart")
	require.NoError(t, err)

	assert.NotEmpty(t, res.Error)
	assert.Equal(t, 0, h.remote.createCalls)
	assert.Equal(t, "cart-1", h.identities.stored())
	assert.Len(t, h.queueRepo.snapshot(), 1)
}

func TestSyncService_StockFailureKeepsItem(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.seed(
		domain.OfflineLineItem{SKU: "A", Quantity: 1},
		domain.OfflineLineItem{SKU: "B", Quantity: 1},
	)
	h.identities.cartID = "cart-1"
	h.remote.stockErr["A"] = errRemote

	res, err := h.sync.RunPass(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, []domain.OfflineLineItem{{SKU: "A", Quantity: 1}}, h.queueRepo.snapshot())
	assert.Equal(t, 1, res.Count(domain.ResolutionFailed))
	assert.Equal(t, 1, res.Count(domain.ResolutionAdded))
}

func TestSyncService_UnknownStockIsAttempted(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 1})
	h.identities.cartID = "cart-1"
	h.remote.stock["A"] = domain.StockUnknown

	_, err := h.sync.RunPass(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, h.remote.addCalls(), 1)
}

func TestSyncService_EmptyQueueClearsWithoutNotification(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.identities.cartID = "cart-1"

	res, err := h.sync.RunPass(context.Background(), "")
	require.NoError(t, err)

	assert.Empty(t, res.Items)
	assert.Equal(t, 1, h.queueRepo.deletes)
	assert.Equal(t, 0, h.remote.contentsCalls)
	assert.Empty(t, h.notes.all())
	assert.Equal(t, domain.SyncStateSynced, h.sync.State())
}

func TestSyncService_PersistenceFailureReportsError(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.seed(domain.OfflineLineItem{SKU: "B", Quantity: 1})
	h.identities.cartID = "cart-1"
	h.remote.stock["B"] = domain.StockOutOfStock
	h.queueRepo.setFailSave(errStoreDown)

	res, err := h.sync.RunPass(context.Background(), "")
	require.NoError(t, err)

	assert.Contains(t, res.Error, errStoreDown.Error())
	assert.Equal(t, []domain.OfflineLineItem{{SKU: "B", Quantity: 1}}, h.queueRepo.snapshot())
	assert.Equal(t, domain.SyncStateSynced, h.sync.State())
	assert.Equal(t, []domain.Notification{ErrorNotification()}, h.notes.all())
}

func TestSyncService_IdentityArrivalTriggersSync(t *testing.T) {
	opts := defaultOptions(true)
	opts.createCart = false
	h := newSyncHarness(t, opts)
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 1})

	h.session.Dispatch(SetCartID{ID: "late-cart"})
	h.sync.Wait()

	assert.Equal(t, []addCall{{CartID: "late-cart", SKU: "A", Quantity: 1}}, h.remote.addCalls())

	// A change between two known identities is not a trigger.
	h.seed(domain.OfflineLineItem{SKU: "B", Quantity: 1})
	h.session.Dispatch(SetCartID{ID: "other-cart"})
	h.sync.Wait()
	assert.Len(t, h.remote.addCalls(), 1)
}

func TestSyncService_DisconnectMovesToOffline(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	assert.Equal(t, domain.SyncStateSynced, h.sync.State())

	var transitions []events.SyncStateChanged
	var mu sync.Mutex
	h.bus.Subscribe(events.TopicSyncStateChanged, events.SubscriberFunc(func(e events.Event) {
		mu.Lock()
		transitions = append(transitions, e.Payload.(events.SyncStateChanged))
		mu.Unlock()
	}))

	h.observer.Set(false)
	assert.Equal(t, domain.SyncStateOffline, h.sync.State())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []events.SyncStateChanged{{From: "synced", To: "offline"}}, transitions)
}

func TestSyncService_DisconnectDuringPassEndsOffline(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 1})
	h.identities.cartID = "cart-1"

	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	h.remote.addGate = gate
	h.remote.addStarted = started

	require.NoError(t, h.sync.TriggerSyncFor(""))
	<-started
	h.observer.Set(false)
	close(gate)
	h.sync.Wait()

	assert.Equal(t, domain.SyncStateOffline, h.sync.State())
	assert.False(t, h.sync.Status().Draining)
}

func TestSyncService_ReconnectDuringPassDrainsAgain(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 1})
	h.identities.cartID = "cart-1"

	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	h.remote.addGate = gate
	h.remote.addStarted = started

	require.NoError(t, h.sync.TriggerSyncFor(""))
	<-started

	// Queued after the running pass read the queue.
	h.seed(domain.OfflineLineItem{SKU: "B", Quantity: 1})
	h.observer.Set(false)
	h.observer.Set(true)
	assert.True(t, h.sync.Status().Draining)

	close(gate)
	h.sync.Wait()

	assert.ElementsMatch(t, []addCall{
		{CartID: "cart-1", SKU: "A", Quantity: 1},
		{CartID: "cart-1", SKU: "B", Quantity: 1},
	}, h.remote.addCalls())
	assert.Empty(t, h.queueRepo.snapshot())
	assert.Equal(t, domain.SyncStateSynced, h.sync.State())
	assert.False(t, h.sync.Status().Draining)
}

func TestSyncService_PassTimeoutLeavesItemsQueued(t *testing.T) {
	opts := defaultOptions(true)
	opts.cfg.PassTimeout = 50 * time.Millisecond
	h := newSyncHarness(t, opts)
	h.seed(
		domain.OfflineLineItem{SKU: "A", Quantity: 1},
		domain.OfflineLineItem{SKU: "B", Quantity: 1},
	)
	h.identities.cartID = "cart-1"
	h.remote.addGate = make(chan struct{})

	res, err := h.sync.RunPass(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, strings.Contains(res.Error, "interrupted"), res.Error)
	assert.Len(t, h.queueRepo.snapshot(), 2)
	assert.Equal(t, domain.SyncStateSynced, h.sync.State())
	assert.Equal(t, 1, h.notes.count(domain.NotificationError, errorMessage))
	assert.False(t, h.sync.Status().Draining)
}

func TestSyncService_CloseCancelsInFlightPass(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 1})
	h.identities.cartID = "cart-1"

	started := make(chan struct{}, 1)
	h.remote.addGate = make(chan struct{})
	h.remote.addStarted = started

	require.NoError(t, h.sync.TriggerSyncFor(""))
	<-started

	done := make(chan struct{})
	go func() {
		h.sync.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the running pass")
	}
	assert.Len(t, h.queueRepo.snapshot(), 1)
}

func TestSyncService_StatusReportsLastPass(t *testing.T) {
	h := newSyncHarness(t, defaultOptions(true))
	h.seed(domain.OfflineLineItem{SKU: "A", Quantity: 3})
	h.identities.cartID = "cart-1"

	_, err := h.sync.RunPass(context.Background(), "")
	require.NoError(t, err)

	status := h.sync.Status()
	assert.True(t, status.Online)
	assert.Equal(t, "cart-1", status.CartID)
	require.NotNil(t, status.LastPass)
	assert.Equal(t, "cart-1", status.LastPass.CartID)
	assert.False(t, status.LastPass.FinishedAt.Before(status.LastPass.StartedAt))
}
