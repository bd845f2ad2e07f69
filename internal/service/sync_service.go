package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"offline-cart-sync/internal/cartapi"
	"offline-cart-sync/internal/connectivity"
	"offline-cart-sync/internal/domain"
	"offline-cart-sync/internal/events"
	"offline-cart-sync/internal/logger"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

const (
	eventStart      = "start"
	eventComplete   = "complete"
	eventDisconnect = "disconnect"
	eventSettle     = "settle"
)

const (
	drainIdle int32 = iota
	drainDraining
)

type SyncConfig struct {
	// NotifyPartialSuccess emits the success notification when at least one
	// item reached the cart even though others stayed queued.
	NotifyPartialSuccess bool
	PassTimeout          time.Duration
}

// SyncService drains the offline queue into the remote cart. At most one
// drain runs at a time; extra triggers while one is in flight are dropped,
// except a reconnect, which schedules one follow-up pass.
type SyncService struct {
	queue    *QueueService
	resolver *CartResolver
	session  *SessionContext
	remote   cartapi.CartClient
	observer connectivity.Observer
	notifier Notifier
	bus      *events.Bus
	cfg      SyncConfig
	log      *zap.SugaredLogger

	machine *fsm.FSM
	drain   atomic.Int32
	// rerun is set when a reconnect could not start a pass because one was
	// already draining.
	rerun   atomic.Bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	unsubs  []func()

	lastMu sync.RWMutex
	last   *domain.PassResult
}

func NewSyncService(
	queue *QueueService,
	resolver *CartResolver,
	session *SessionContext,
	remote cartapi.CartClient,
	observer connectivity.Observer,
	notifier Notifier,
	bus *events.Bus,
	cfg SyncConfig,
	log *zap.SugaredLogger,
) *SyncService {
	ctx, cancel := context.WithCancel(context.Background())

	s := &SyncService{
		queue:    queue,
		resolver: resolver,
		session:  session,
		remote:   remote,
		observer: observer,
		notifier: notifier,
		bus:      bus,
		cfg:      cfg,
		log:      logger.OrNop(log),
		ctx:      ctx,
		cancel:   cancel,
	}

	initial := string(domain.SyncStateSynced)
	if !observer.Online() {
		initial = string(domain.SyncStateOffline)
	}

	offline := string(domain.SyncStateOffline)
	syncing := string(domain.SyncStateSyncing)
	synced := string(domain.SyncStateSynced)

	s.machine = fsm.NewFSM(
		initial,
		fsm.Events{
			{Name: eventStart, Src: []string{offline, synced}, Dst: syncing},
			{Name: eventComplete, Src: []string{syncing}, Dst: synced},
			{Name: eventDisconnect, Src: []string{syncing, synced}, Dst: offline},
			{Name: eventSettle, Src: []string{offline}, Dst: synced},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.log.Debugw("Sync state changed", "from", e.Src, "to", e.Dst, "event", e.Event)
				s.bus.Publish(events.Event{
					Topic:   events.TopicSyncStateChanged,
					Payload: events.SyncStateChanged{From: e.Src, To: e.Dst},
				})
			},
		},
	)

	s.unsubs = append(s.unsubs, observer.Subscribe(s.onConnectivity))
	if bus != nil {
		s.unsubs = append(s.unsubs, bus.Subscribe(events.TopicCartIdentityChanged, events.SubscriberFunc(s.onIdentity)))
	}

	return s
}

func (s *SyncService) onConnectivity(online bool) {
	if !online {
		s.fire(s.ctx, eventDisconnect)
		return
	}
	if errors.Is(s.TriggerSyncFor(""), ErrSyncInFlight) {
		s.rerun.Store(true)
		// The pass may have finished between the failed acquire and the store.
		if s.drain.Load() == drainIdle && s.rerun.Swap(false) {
			s.TriggerSync()
		}
	}
}

func (s *SyncService) onIdentity(e events.Event) {
	change, ok := e.Payload.(events.CartIdentityChanged)
	if !ok {
		return
	}
	if change.Previous == "" && change.Current != "" && s.observer.Online() {
		s.TriggerSync()
	}
}

// TriggerSync starts a drain in the background unless the backend is
// offline or a drain is already running.
func (s *SyncService) TriggerSync() {
	_ = s.TriggerSyncFor("")
}

// TriggerSyncFor is TriggerSync with an explicit cart identity. It returns
// ErrOffline or ErrSyncInFlight when no drain was started.
func (s *SyncService) TriggerSyncFor(cartID string) error {
	if err := s.acquire(); err != nil {
		s.log.Debugw("Sync trigger ignored", "reason", err)
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finish()
		s.run(s.ctx, cartID)
	}()

	return nil
}

// RunPass drains the queue and blocks until the pass is over.
func (s *SyncService) RunPass(ctx context.Context, cartID string) (*domain.PassResult, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	defer s.wg.Done()
	defer s.finish()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	return s.run(ctx, cartID), nil
}

// acquire applies the guards in order: connectivity first, then the
// in-flight check.
func (s *SyncService) acquire() error {
	if !s.observer.Online() {
		syncPassesTotal.WithLabelValues(passSkippedOffline).Inc()
		return ErrOffline
	}
	if !s.drain.CompareAndSwap(drainIdle, drainDraining) {
		syncPassesTotal.WithLabelValues(passSkippedInFlight).Inc()
		return ErrSyncInFlight
	}
	return nil
}

func (s *SyncService) release() {
	s.drain.Store(drainIdle)
}

// finish releases the drain and starts the pass a reconnect asked for while
// this one was running. It runs before the caller's wg.Done so Wait covers
// the follow-up pass.
func (s *SyncService) finish() {
	s.release()
	if !s.rerun.Swap(false) || s.ctx.Err() != nil {
		return
	}
	if s.observer.Online() {
		s.log.Debugw("Reconnected during sync pass, draining again")
		s.TriggerSync()
	}
}

func (s *SyncService) run(ctx context.Context, explicit string) *domain.PassResult {
	if s.cfg.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PassTimeout)
		defer cancel()
	}

	res := &domain.PassResult{
		StartedAt: time.Now(),
		Items:     []domain.ItemResult{},
	}
	outcome := passOutcomeCompleted

	defer func() {
		res.FinishedAt = time.Now()
		s.recordPass(res, outcome)
	}()

	cartID, err := s.resolver.Resolve(ctx, explicit)
	if err != nil {
		res.Aborted = true
		outcome = passOutcomeAborted

		var createErr *CartCreationError
		switch {
		case errors.Is(err, ErrNoCartIdentity):
			s.log.Debugw("Sync pass skipped, no cart identity")
		case errors.As(err, &createErr):
			s.log.Warnw("Sync pass aborted, cart creation failed", "error", err)
			s.settle(ctx)
		default:
			outcome = passOutcomeFailed
			res.Error = err.Error()
			s.log.Errorw("Sync pass failed resolving cart identity", "error", err)
			s.notifier.Notify(ErrorNotification())
			s.settle(ctx)
		}
		return res
	}

	res.CartID = cartID
	s.fire(ctx, eventStart)
	s.log.Infow("Sync pass started", "cart_id", cartID)

	if err := s.drainQueue(ctx, cartID, explicit != "", res); err != nil {
		outcome = passOutcomeFailed
		res.Error = err.Error()
		s.log.Errorw("Sync pass failed", "cart_id", res.CartID, "error", err)
		s.notifier.Notify(ErrorNotification())
	}

	s.settle(ctx)
	s.log.Infow("Sync pass finished",
		"cart_id", res.CartID,
		"added", res.Count(domain.ResolutionAdded),
		"already_in_cart", res.Count(domain.ResolutionAlreadyInCart),
		"dropped", res.Count(domain.ResolutionOutOfStock),
		"failed", res.Count(domain.ResolutionFailed),
		"remaining", res.Remaining,
	)

	return res
}

// drainQueue reconciles the queue against the cart. Per-item remote failures
// are recorded on res; the returned error is pass-level. A remembered cart
// the backend no longer knows is replaced before any item is touched.
func (s *SyncService) drainQueue(ctx context.Context, cartID string, explicit bool, res *domain.PassResult) error {
	items, err := s.queue.PeekAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read offline queue: %w", err)
	}

	if len(items) > 0 {
		contents, err := s.remote.QueryCartContents(ctx, cartID)
		if errors.Is(err, cartapi.ErrNotFound) && !explicit {
			cartID, contents, err = s.replaceStaleCart(ctx, cartID)
			res.CartID = cartID
		}
		if err != nil {
			res.Remaining = domain.ItemCount(items)
			return err
		}
		present := contents.SKUs()

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("sync pass interrupted: %w", err)
			}
			result, err := s.resolveItem(ctx, cartID, item, present)
			res.Items = append(res.Items, result)
			if err != nil {
				return err
			}
		}
	}

	remaining, err := s.queue.PeekAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read offline queue: %w", err)
	}
	res.Remaining = domain.ItemCount(remaining)

	if len(remaining) == 0 {
		if err := s.queue.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear offline queue: %w", err)
		}
	}

	processed := res.Processed()
	if processed > 0 && (s.cfg.NotifyPartialSuccess || res.Count(domain.ResolutionFailed) == 0) {
		s.notifier.Notify(SuccessNotification())
	}

	if len(items) > 0 {
		if refreshed, err := s.remote.QueryCartContents(ctx, cartID); err != nil {
			s.log.Warnw("Failed to refresh cart after sync", "cart_id", cartID, "error", err)
		} else {
			s.log.Debugw("Cart refreshed after sync", "cart_id", cartID, "total_quantity", refreshed.TotalQuantity)
		}
	}

	return nil
}

// replaceStaleCart forgets a cart the backend reported missing and resolves
// a new one, creating it when creation is enabled.
func (s *SyncService) replaceStaleCart(ctx context.Context, stale string) (string, *domain.CartContents, error) {
	s.log.Warnw("Remembered cart no longer exists, replacing it", "cart_id", stale)

	if err := s.resolver.Forget(ctx); err != nil {
		return stale, nil, fmt.Errorf("failed to forget cart %s: %w", stale, err)
	}
	cartID, err := s.resolver.Resolve(ctx, "")
	if err != nil {
		return stale, nil, fmt.Errorf("failed to replace cart %s: %w", stale, err)
	}
	contents, err := s.remote.QueryCartContents(ctx, cartID)
	return cartID, contents, err
}

// resolveItem handles one queued item. Only persistence failures are
// returned; remote failures leave the item queued.
func (s *SyncService) resolveItem(ctx context.Context, cartID string, item domain.OfflineLineItem, present map[string]struct{}) (domain.ItemResult, error) {
	result := domain.ItemResult{SKU: item.SKU, Quantity: item.Quantity}

	stock, err := s.remote.QueryStock(ctx, item.SKU)
	if err != nil {
		s.log.Warnw("Stock lookup failed, item stays queued", "sku", item.SKU, "error", err)
		result.Resolution = domain.ResolutionFailed
		result.Error = err.Error()
		return result, nil
	}

	if stock.Status == domain.StockOutOfStock {
		if _, err := s.queue.Remove(ctx, item.SKU); err != nil {
			result.Resolution = domain.ResolutionFailed
			result.Error = err.Error()
			return result, fmt.Errorf("failed to drop %s from offline queue: %w", item.SKU, err)
		}
		name := stock.Name
		if name == "" {
			name = item.Name
		}
		s.notifier.Notify(DroppedNotification(name, item.SKU))
		result.Resolution = domain.ResolutionOutOfStock
		return result, nil
	}

	if _, ok := present[item.SKU]; ok {
		if err := s.queue.Acknowledge(ctx, item); err != nil {
			result.Resolution = domain.ResolutionFailed
			result.Error = err.Error()
			return result, fmt.Errorf("failed to acknowledge %s: %w", item.SKU, err)
		}
		result.Resolution = domain.ResolutionAlreadyInCart
		return result, nil
	}

	if err := s.remote.AddLineItem(ctx, cartID, item.SKU, item.Quantity); err != nil {
		s.log.Warnw("Add to cart failed, item stays queued", "sku", item.SKU, "cart_id", cartID, "error", err)
		result.Resolution = domain.ResolutionFailed
		result.Error = err.Error()
		return result, nil
	}

	present[item.SKU] = struct{}{}
	if err := s.queue.Acknowledge(ctx, item); err != nil {
		result.Resolution = domain.ResolutionAdded
		return result, fmt.Errorf("failed to acknowledge %s: %w", item.SKU, err)
	}
	result.Resolution = domain.ResolutionAdded
	return result, nil
}

// settle moves the machine out of Syncing: to Synced while online, to
// Offline when connectivity dropped during the pass.
func (s *SyncService) settle(ctx context.Context) {
	if !s.observer.Online() {
		s.fire(ctx, eventDisconnect)
		return
	}
	if s.machine.Current() == string(domain.SyncStateOffline) {
		s.fire(ctx, eventSettle)
		return
	}
	s.fire(ctx, eventComplete)
}

func (s *SyncService) fire(ctx context.Context, event string) {
	// Transitions must happen even when the pass context is already done.
	err := s.machine.Event(context.WithoutCancel(ctx), event)
	if err == nil {
		return
	}

	var noTransition fsm.NoTransitionError
	var invalid fsm.InvalidEventError
	if errors.As(err, &noTransition) || errors.As(err, &invalid) {
		return
	}
	s.log.Errorw("Sync state transition failed", "event", event, "error", err)
}

func (s *SyncService) recordPass(res *domain.PassResult, outcome string) {
	syncPassesTotal.WithLabelValues(outcome).Inc()
	if !res.Aborted {
		syncPassDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	}
	for _, it := range res.Items {
		syncItemsTotal.WithLabelValues(string(it.Resolution)).Inc()
	}

	s.lastMu.Lock()
	s.last = res
	s.lastMu.Unlock()
}

func (s *SyncService) State() domain.SyncState {
	return domain.SyncState(s.machine.Current())
}

func (s *SyncService) Status() domain.SyncStatus {
	s.lastMu.RLock()
	last := s.last
	s.lastMu.RUnlock()

	return domain.SyncStatus{
		State:    s.State(),
		Draining: s.drain.Load() == drainDraining,
		Online:   s.observer.Online(),
		CartID:   s.session.CartID(),
		LastPass: last,
	}
}

// Wait blocks until every drain started so far has finished.
func (s *SyncService) Wait() {
	s.wg.Wait()
}

// Close cancels in-flight passes, waits for them and detaches from the
// observer and the bus.
func (s *SyncService) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.cancel()
	s.wg.Wait()
}
