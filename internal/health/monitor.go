package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PeerHealth tracks the reachability of a single peer, keyed by rank rather
// than a string node ID.
type PeerHealth struct {
	LastCheck        time.Time
	LastHealthy      time.Time
	Rank             int
	Status           string
	ConsecutiveFails int
}

// Monitor performs reachability checks against every other peer's /health
// endpoint. It is not a background poller by default: Sweep runs one pass
// synchronously, which is what Initialise and Terminate need before their
// barriers; Start is kept for callers that also want periodic background
// checks.
type Monitor struct {
	log         *zap.Logger
	peers       map[int]*PeerHealth
	httpClient  *http.Client
	checkFunc   func(addr string) error
	onUnhealthy func(rank int)
	mu          sync.RWMutex
	timeout     time.Duration
	maxFailures int
}

// NewMonitor builds a Monitor with a 2-second per-check timeout and a
// 3-consecutive-failure threshold before a peer is reported unhealthy.
func NewMonitor(log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Monitor{
		log:         log,
		timeout:     2 * time.Second,
		maxFailures: 3,
		peers:       make(map[int]*PeerHealth),
		httpClient:  &http.Client{Timeout: 2 * time.Second},
	}
	m.checkFunc = m.defaultCheck
	return m
}

// SetOnUnhealthy sets the callback invoked the first time a peer crosses the
// unhealthy threshold.
func (m *Monitor) SetOnUnhealthy(cb func(rank int)) { m.onUnhealthy = cb }

// SetCheckFunc overrides the reachability probe, for tests.
func (m *Monitor) SetCheckFunc(f func(addr string) error) { m.checkFunc = f }

// Sweep checks every address once and returns an error naming the first
// unreachable peer, so callers can fail Initialise/Terminate's barrier
// fast instead of hanging in it.
func (m *Monitor) Sweep(ctx context.Context, selfRank int, addrs []string) error {
	var firstErr error
	for rank, addr := range addrs {
		if rank == selfRank {
			continue
		}
		if err := m.checkOne(rank, addr); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("health: peer %d unreachable: %w", rank, err)
		}
	}
	if firstErr != nil {
		m.log.Warn("health sweep found an unreachable peer", zap.Error(firstErr))
	}
	return firstErr
}

// Start runs Sweep on a ticker until ctx is cancelled, for callers that want
// continuous background monitoring in addition to the pre-barrier sweep.
func (m *Monitor) Start(ctx context.Context, selfRank int, addrs []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = m.Sweep(ctx, selfRank, addrs)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) checkOne(rank int, addr string) error {
	m.mu.Lock()
	ph, exists := m.peers[rank]
	if !exists {
		ph = &PeerHealth{Rank: rank, Status: "unknown", LastCheck: time.Now(), LastHealthy: time.Now()}
		m.peers[rank] = ph
	}
	m.mu.Unlock()

	err := m.checkFunc(addr)

	m.mu.Lock()
	defer m.mu.Unlock()
	ph.LastCheck = time.Now()

	if err != nil {
		ph.ConsecutiveFails++
		if ph.ConsecutiveFails >= m.maxFailures {
			previous := ph.Status
			ph.Status = "unhealthy"
			if previous != "unhealthy" && m.onUnhealthy != nil {
				go m.onUnhealthy(rank)
			}
		}
		return err
	}

	ph.Status = "healthy"
	ph.ConsecutiveFails = 0
	ph.LastHealthy = time.Now()
	return nil
}

func (m *Monitor) defaultCheck(addr string) error {
	url := addr
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	url = strings.TrimRight(url, "/") + "/health"

	resp, err := m.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// PeerStatus returns the last known status of a peer, or nil if unmonitored.
func (m *Monitor) PeerStatus(rank int) *PeerHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ph, ok := m.peers[rank]
	if !ok {
		return nil
	}
	cp := *ph
	return &cp
}
