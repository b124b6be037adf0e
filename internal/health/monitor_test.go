package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepAllHealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	m := NewMonitor(nil)
	err := m.Sweep(context.Background(), 0, []string{ts.URL, ts.URL, ts.URL})
	require.NoError(t, err)
}

func TestSweepSkipsSelf(t *testing.T) {
	m := NewMonitor(nil)
	calls := 0
	m.SetCheckFunc(func(addr string) error {
		calls++
		return nil
	})
	err := m.Sweep(context.Background(), 1, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestSweepReportsUnreachablePeer(t *testing.T) {
	m := NewMonitor(nil)
	m.SetCheckFunc(func(addr string) error {
		if addr == "bad" {
			return errors.New("boom")
		}
		return nil
	})
	err := m.Sweep(context.Background(), 0, []string{"self", "bad", "good"})
	require.Error(t, err)
}

func TestConsecutiveFailuresTriggerUnhealthy(t *testing.T) {
	m := NewMonitor(nil)
	m.SetCheckFunc(func(addr string) error { return errors.New("down") })

	unhealthy := make(chan int, 1)
	m.SetOnUnhealthy(func(rank int) { unhealthy <- rank })

	for i := 0; i < 3; i++ {
		_ = m.Sweep(context.Background(), -1, []string{"peer"})
	}

	select {
	case rank := <-unhealthy:
		assert.Equal(t, 0, rank)
	case <-time.After(time.Second):
		t.Fatal("expected onUnhealthy to fire after 3 consecutive failures")
	}

	status := m.PeerStatus(0)
	require.NotNil(t, status)
	assert.Equal(t, "unhealthy", status.Status)
}
