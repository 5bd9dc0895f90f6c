package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/chain-monitor/pkg/registry"
)

func TestLabels_toPrometheusLabels(t *testing.T) {
	tests := []struct {
		name     string
		labels   Labels
		expected prometheus.Labels
	}{
		{
			name:     "empty labels",
			labels:   Labels{},
			expected: prometheus.Labels{},
		},
		{
			name: "all labels set",
			labels: Labels{
				Instance:      "primary",
				Environment:   "production",
				Region:        "us-east-1",
				CloudProvider: "aws",
			},
			expected: prometheus.Labels{
				"instance_name":  "primary",
				"environment":    "production",
				"region":         "us-east-1",
				"cloud_provider": "aws",
			},
		},
		{
			name: "partial labels",
			labels: Labels{
				Environment: "staging",
			},
			expected: prometheus.Labels{
				"environment": "staging",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.labels.toPrometheusLabels()
			require.Equal(t, tt.expected, result)
		})
	}
}

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	// Gauges without labels are gathered immediately
	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, metricFamilies)
}

func TestNewWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := NewWithLabels(reg, Labels{Instance: "mirror", Environment: "test"})
	require.NoError(t, err)

	m.SetBestHeight(registry.Ethereum, 19_000_000)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() != "chainmonitor_best_height" {
			continue
		}
		found = true
		require.NotEmpty(t, mf.GetMetric())

		labelMap := make(map[string]string)
		for _, label := range mf.GetMetric()[0].GetLabel() {
			labelMap[label.GetName()] = label.GetValue()
		}
		require.Equal(t, "mirror", labelMap["instance_name"])
		require.Equal(t, "test", labelMap["environment"])
		require.Equal(t, "ethereum", labelMap["chain"])
	}
	require.True(t, found, "best height metric not found")
}

func TestNew_RegistrationError(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := New(reg)
	require.NoError(t, err)

	// Second registration should fail (duplicate metrics)
	m, err := New(reg)
	require.Nil(t, m, "expected nil metrics on duplicate registration")

	var alreadyRegistered prometheus.AlreadyRegisteredError
	require.ErrorAs(t, err, &alreadyRegistered)
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.IncError("test")
		m.RecordUpdate(registry.BitGo, registry.Bitcoin, 1, true)
		m.SetBestHeight(registry.Bitcoin, 1)
		m.RecordFetch(registry.BitGo, nil, 0.1)
		m.ObserveCycle(1, true)
		m.IncSubscribers()
		m.DecSubscribers()
		m.IncDroppedEvents()
		m.RecordExport(nil)
		m.ObserveHTTPRequest("/state", 200, 0.01)
	})
}

func TestMetrics_RecordUpdate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordUpdate(registry.BlockCypher, registry.LitecoinTestnet, 3_000_000, true)
	m.RecordUpdate(registry.BlockCypher, registry.LitecoinTestnet, 3_000_000, false)
	m.RecordUpdate(registry.BlockCypher, registry.LitecoinTestnet, 3_000_001, true)

	height := testutil.ToFloat64(m.chainHeight.WithLabelValues("blockcypher", "litecoin-testnet", "tLTC", "testnet"))
	require.Equal(t, float64(3_000_001), height)

	require.Equal(t, float64(2), testutil.ToFloat64(m.updates.WithLabelValues("blockcypher", "litecoin-testnet", "true")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.updates.WithLabelValues("blockcypher", "litecoin-testnet", "false")))
}

func TestMetrics_RecordFetch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordFetch(registry.MempoolSpace, nil, 0.05)
	m.RecordFetch(registry.MempoolSpace, nil, 0.07)
	m.RecordFetch(registry.MempoolSpace, errors.New("connection refused"), 1.0)

	require.Equal(t, float64(2), testutil.ToFloat64(m.fetches.WithLabelValues("mempoolspace", StatusSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.fetches.WithLabelValues("mempoolspace", StatusError)))
	require.Equal(t, 1, testutil.CollectAndCount(m.fetchDuration))
}

func TestMetrics_ObserveCycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveCycle(2.5, false)
	m.ObserveCycle(30, true)

	require.Equal(t, float64(1), testutil.ToFloat64(m.cycleTimeouts))

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() == "chainmonitor_cycle_duration_seconds" {
			found = true
			require.Equal(t, uint64(2), mf.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
	require.True(t, found, "cycle histogram not found")
}

func TestMetrics_Subscribers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.IncSubscribers()
	m.IncSubscribers()
	m.DecSubscribers()
	m.IncDroppedEvents()

	require.Equal(t, float64(1), testutil.ToFloat64(m.subscribers))
	require.Equal(t, float64(1), testutil.ToFloat64(m.droppedEvents))
}

func TestMetrics_RecordExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordExport(nil)
	m.RecordExport(errors.New("broker down"))
	m.RecordExport(nil)

	require.Equal(t, float64(2), testutil.ToFloat64(m.exportedEvents.WithLabelValues(StatusSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.exportedEvents.WithLabelValues(StatusError)))
}

func TestNamespace(t *testing.T) {
	require.Equal(t, "chainmonitor", Namespace)
}

func TestMetrics_ObserveHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveHTTPRequest("/state", 200, 0.01)
	m.ObserveHTTPRequest("/state", 200, 0.02)
	m.ObserveHTTPRequest("/ws", 503, 0.001)

	require.Equal(t, float64(2), testutil.ToFloat64(m.httpRequests.WithLabelValues("/state", "200")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues("/ws", "503")))
}
