// Package connectivity tracks whether the terminal believes it is online.
//
// The flag is a hint: it comes from host signals and from periodic pings of
// the server, and it only decides when to start a sync pass. Repositories
// never consult it before attempting a remote call.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/logging"
)

// DefaultProbeTimeout bounds one ping.
const DefaultProbeTimeout = 3 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type Monitor struct {
	pinger   Pinger
	interval time.Duration
	logger   logging.Logger

	mu        sync.Mutex
	online    bool
	nextID    int
	listeners map[int]func()
}

// NewMonitor creates a monitor that starts in the given state. pinger may be
// nil, in which case only SetOnline changes the state.
func NewMonitor(pinger Pinger, interval time.Duration, initial bool, logger logging.Logger) *Monitor {
	return &Monitor{
		pinger:    pinger,
		interval:  interval,
		logger:    logger,
		online:    initial,
		listeners: map[int]func(){},
	}
}

func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnOnline registers fn to be called on every offline to online transition.
// The returned function removes it.
func (m *Monitor) OnOnline(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// SetOnline records a host signal. Listeners run synchronously, outside the
// lock, and only when the state flips to online.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	var fire []func()
	if online {
		fire = make([]func(), 0, len(m.listeners))
		for _, fn := range m.listeners {
			fire = append(fire, fn)
		}
	}
	m.mu.Unlock()

	if m.logger != nil {
		state := "offline"
		if online {
			state = "online"
		}
		m.logger.Info(context.Background(), "connectivity changed", "state", state)
	}

	for _, fn := range fire {
		fn()
	}
}

// Probe pings the server once and updates the state. A refusal still proves
// the server is reachable.
func (m *Monitor) Probe(ctx context.Context) {
	if m.pinger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()

	err := m.pinger.Ping(ctx)
	if err != nil && m.logger != nil {
		m.logger.Debug(ctx, "ping failed", "error", err)
	}
	m.SetOnline(err == nil || !common.IsRemoteUnreachable(err))
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	if m.pinger == nil || m.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Probe(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}
