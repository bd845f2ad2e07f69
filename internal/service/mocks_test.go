package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"offline-cart-sync/internal/cartapi"
	"offline-cart-sync/internal/connectivity"
	"offline-cart-sync/internal/domain"
	"offline-cart-sync/internal/events"
	"offline-cart-sync/internal/repository"

	"go.uber.org/zap/zaptest"
)

var errStoreDown = errors.New("store unavailable")

type mockQueueRepo struct {
	mu       sync.Mutex
	items    []domain.OfflineLineItem
	saves    int
	deletes  int
	failSave error
	failLoad error
}

func (m *mockQueueRepo) Load(context.Context) ([]domain.OfflineLineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoad != nil {
		return nil, m.failLoad
	}
	return append([]domain.OfflineLineItem{}, m.items...), nil
}

func (m *mockQueueRepo) Save(_ context.Context, items []domain.OfflineLineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.saves++
	m.items = append([]domain.OfflineLineItem{}, items...)
	return nil
}

func (m *mockQueueRepo) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.deletes++
	m.items = nil
	return nil
}

func (m *mockQueueRepo) snapshot() []domain.OfflineLineItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OfflineLineItem{}, m.items...)
}

func (m *mockQueueRepo) setFailSave(err error) {
	m.mu.Lock()
	m.failSave = err
	m.mu.Unlock()
}

type mockIdentityRepo struct {
	mu      sync.Mutex
	cartID  string
	failGet error
}

func (m *mockIdentityRepo) Get(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return "", m.failGet
	}
	if m.cartID == "" {
		return "", repository.ErrNotFound
	}
	return m.cartID, nil
}

func (m *mockIdentityRepo) Save(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cartID = id
	return nil
}

func (m *mockIdentityRepo) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cartID = ""
	return nil
}

func (m *mockIdentityRepo) stored() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cartID
}

type addCall struct {
	CartID   string
	SKU      string
	Quantity int
}

type mockCartClient struct {
	mu sync.Mutex

	stock       map[string]domain.StockStatus
	names       map[string]string
	stockErr    map[string]error
	addErr      map[string]error
	lines       []domain.CartLine
	contentsErr error
	createID    string
	createErr   error

	// missing lists carts the backend answers 404 for.
	missing map[string]bool

	// addGate, when set, makes AddLineItem wait for it to close or for ctx.
	addGate    chan struct{}
	addStarted chan struct{}

	adds          []addCall
	stockCalls    []string
	contentsCalls int
	createCalls   int
}

func newMockCartClient() *mockCartClient {
	return &mockCartClient{
		stock:    map[string]domain.StockStatus{},
		names:    map[string]string{},
		stockErr: map[string]error{},
		addErr:   map[string]error{},
		missing:  map[string]bool{},
	}
}

func (m *mockCartClient) CreateCart(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return "", m.createErr
	}
	return m.createID, nil
}

func (m *mockCartClient) AddLineItem(ctx context.Context, cartID, sku string, quantity int) error {
	m.mu.Lock()
	gate, started := m.addGate, m.addStarted
	m.mu.Unlock()

	if gate != nil {
		if started != nil {
			select {
			case started <- struct{}{}:
			default:
			}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.missing[cartID] {
		return fmt.Errorf("%w: cart %s", cartapi.ErrNotFound, cartID)
	}
	if err := m.addErr[sku]; err != nil {
		return err
	}
	m.adds = append(m.adds, addCall{CartID: cartID, SKU: sku, Quantity: quantity})
	m.lines = append(m.lines, domain.CartLine{SKU: sku, Quantity: quantity})
	return nil
}

func (m *mockCartClient) QueryStock(_ context.Context, sku string) (*domain.StockInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stockCalls = append(m.stockCalls, sku)
	if err := m.stockErr[sku]; err != nil {
		return nil, err
	}
	status, ok := m.stock[sku]
	if !ok {
		status = domain.StockInStock
	}
	return &domain.StockInfo{SKU: sku, Name: m.names[sku], Status: status}, nil
}

func (m *mockCartClient) QueryCartContents(_ context.Context, cartID string) (*domain.CartContents, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contentsCalls++
	if m.missing[cartID] {
		return nil, fmt.Errorf("failed to query cart %s: %w", cartID, cartapi.ErrNotFound)
	}
	if m.contentsErr != nil {
		return nil, m.contentsErr
	}
	total := 0
	for _, l := range m.lines {
		total += l.Quantity
	}
	return &domain.CartContents{
		CartID:        cartID,
		Items:         append([]domain.CartLine{}, m.lines...),
		TotalQuantity: total,
	}, nil
}

func (m *mockCartClient) addCalls() []addCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]addCall{}, m.adds...)
}

var _ cartapi.CartClient = (*mockCartClient)(nil)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (r *recordingNotifier) Notify(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingNotifier) all() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification{}, r.notes...)
}

func (r *recordingNotifier) count(kind domain.NotificationKind, message string) int {
	n := 0
	for _, note := range r.all() {
		if note.Kind == kind && (message == "" || note.Message == message) {
			n++
		}
	}
	return n
}

type syncHarness struct {
	bus        *events.Bus
	queueRepo  *mockQueueRepo
	identities *mockIdentityRepo
	remote     *mockCartClient
	observer   *connectivity.Static
	notes      *recordingNotifier
	session    *SessionContext
	queue      *QueueService
	resolver   *CartResolver
	sync       *SyncService
}

type harnessOptions struct {
	online     bool
	createCart bool
	cfg        SyncConfig
}

func newSyncHarness(t *testing.T, opts harnessOptions) *syncHarness {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()

	h := &syncHarness{
		bus:        events.NewBus(),
		queueRepo:  &mockQueueRepo{},
		identities: &mockIdentityRepo{},
		remote:     newMockCartClient(),
		observer:   connectivity.NewStatic(opts.online),
		notes:      &recordingNotifier{},
	}
	h.session = NewSessionContext(h.bus)
	h.queue = NewQueueService(h.queueRepo, h.bus, log)
	h.resolver = NewCartResolver(h.session, h.identities, h.remote, opts.createCart, log)
	h.sync = NewSyncService(h.queue, h.resolver, h.session, h.remote, h.observer, h.notes, h.bus, opts.cfg, log)
	t.Cleanup(h.sync.Close)

	return h
}

func (h *syncHarness) seed(items ...domain.OfflineLineItem) {
	h.queueRepo.mu.Lock()
	h.queueRepo.items = append(h.queueRepo.items, items...)
	h.queueRepo.mu.Unlock()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
