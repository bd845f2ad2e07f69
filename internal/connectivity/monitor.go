package connectivity

import (
	"context"
	"strings"
	"sync"
	"time"

	"offline-cart-sync/internal/domain"
	"offline-cart-sync/internal/events"
	"offline-cart-sync/internal/logger"

	"github.com/cenkalti/backoff"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var onlineGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "cartsync_remote_online",
	Help: "1 when the remote cart backend is considered reachable",
})

type MonitorConfig struct {
	// HealthURL is probed with an HTTP GET; any non-200 answer counts as offline.
	HealthURL        string
	ProbeInterval    time.Duration
	MaxProbeInterval time.Duration
	ProbeTimeout     time.Duration
}

// Monitor is the production Observer. It probes the backend's health
// endpoint on a fixed interval while online and with exponential backoff
// while offline. A forced mode overrides probing until set back to auto.
type Monitor struct {
	notifier

	check    healthcheck.Check
	cfg      MonitorConfig
	bus      *events.Bus
	log      *zap.SugaredLogger
	modeMu   sync.RWMutex
	mode     domain.ConnectivityMode
	recheck  chan struct{}
	probeMu  sync.Mutex
	backoffs *backoff.ExponentialBackOff
}

func NewMonitor(cfg MonitorConfig, bus *events.Bus, log *zap.SugaredLogger) *Monitor {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.ProbeInterval
	b.MaxInterval = cfg.MaxProbeInterval
	b.MaxElapsedTime = 0
	b.Reset()

	return &Monitor{
		check:    healthcheck.HTTPGetCheck(strings.TrimRight(cfg.HealthURL, "/"), cfg.ProbeTimeout),
		cfg:      cfg,
		bus:      bus,
		log:      logger.OrNop(log),
		mode:     domain.ModeAuto,
		recheck:  make(chan struct{}, 1),
		backoffs: b,
	}
}

// Run probes until ctx is done. The first probe happens immediately.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Infow("Connectivity monitor started", "health_url", m.cfg.HealthURL)

	for {
		m.Probe()

		timer := time.NewTimer(m.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			m.log.Infow("Connectivity monitor stopped")
			return nil
		case <-m.recheck:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (m *Monitor) nextDelay() time.Duration {
	if m.Online() {
		m.backoffs.Reset()
		return m.cfg.ProbeInterval
	}
	d := m.backoffs.NextBackOff()
	if d == backoff.Stop || d <= 0 {
		return m.cfg.MaxProbeInterval
	}
	return d
}

// Probe runs one health check and applies the result. It is a no-op while
// a forced mode is active.
func (m *Monitor) Probe() bool {
	m.probeMu.Lock()
	defer m.probeMu.Unlock()

	if m.Mode() != domain.ModeAuto {
		return m.Online()
	}

	err := m.check()
	if err != nil {
		m.log.Debugw("Health probe failed", "error", err)
	}
	m.apply(err == nil)
	return err == nil
}

func (m *Monitor) Mode() domain.ConnectivityMode {
	m.modeMu.RLock()
	defer m.modeMu.RUnlock()
	return m.mode
}

// SetMode switches between probing and a forced state. Returning to auto
// schedules an immediate probe.
func (m *Monitor) SetMode(mode domain.ConnectivityMode) {
	m.modeMu.Lock()
	m.mode = mode
	m.modeMu.Unlock()

	m.log.Infow("Connectivity mode changed", "mode", mode)

	m.probeMu.Lock()
	defer m.probeMu.Unlock()

	switch mode {
	case domain.ModeForcedOnline:
		m.apply(true)
	case domain.ModeForcedOffline:
		m.apply(false)
	default:
		select {
		case m.recheck <- struct{}{}:
		default:
		}
	}
}

func (m *Monitor) Status() domain.ConnectivityStatus {
	return domain.ConnectivityStatus{
		Online: m.Online(),
		Mode:   m.Mode(),
	}
}

func (m *Monitor) apply(online bool) {
	if !m.set(online) {
		return
	}

	if online {
		onlineGauge.Set(1)
		m.log.Infow("Remote cart backend reachable")
	} else {
		onlineGauge.Set(0)
		m.log.Warnw("Remote cart backend unreachable")
	}

	m.bus.Publish(events.Event{
		Topic:   events.TopicConnectivityChanged,
		Payload: events.ConnectivityChanged{Online: online, Mode: string(m.Mode())},
	})
}
