//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/scheduler"
	"github.com/ava-labs/chain-monitor/pkg/server"
	"github.com/ava-labs/chain-monitor/pkg/source"
)

// instance is one in-process monitor: store, scheduler and API.
type instance struct {
	store   *chainstate.Store
	sched   *scheduler.Scheduler
	api     *httptest.Server
	metrics *metrics.Metrics
	reg     *prometheus.Registry
}

func newLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	if os.Getenv("E2E_VERBOSE") != "" {
		return zaptest.NewLogger(t).Sugar()
	}
	return zap.NewNop().Sugar()
}

// startInstance wires sources into a running monitor that stops with the test.
func startInstance(t *testing.T, sources []source.Source, interval time.Duration) *instance {
	t.Helper()
	log := newLogger(t)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	store, err := chainstate.New(log, chainstate.WithMetrics(m))
	require.NoError(t, err)

	sched, err := scheduler.New(log, sources, store, scheduler.Config{
		Interval:     interval,
		CycleTimeout: 5 * time.Second,
	}, m)
	require.NoError(t, err)

	api, err := server.New(log, store, source.Catalog(sources), server.Config{}, m)
	require.NoError(t, err)
	ts := httptest.NewServer(api.Handler())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		require.NoError(t, api.Shutdown(shutdownCtx))
		ts.Close()
		source.CloseAll(sources)
	})

	return &instance{store: store, sched: sched, api: ts, metrics: m, reg: reg}
}

func (in *instance) dialWS(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(in.api.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// wsMessage covers both init and update messages.
type wsMessage struct {
	Type    string            `json:"type"`
	Source  string            `json:"source"`
	Chain   string            `json:"chain"`
	Hash    string            `json:"hash"`
	Height  uint64            `json:"height"`
	Sources []json.RawMessage `json:"sources"`
	Chains  []json.RawMessage `json:"chains"`
}

func getEnvStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
