package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_Independent 两个节点的指标互不影响
func TestNew_Independent(t *testing.T) {
	a := New("ucnode")
	b := New("ucnode")

	a.GossipPublished.WithLabelValues("t").Inc()
	a.GossipPublished.WithLabelValues("t").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(a.GossipPublished.WithLabelValues("t")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.GossipPublished.WithLabelValues("t")))
}

func TestObserveDial(t *testing.T) {
	m := New("ucnode")
	m.ObserveDial("tcp", nil)
	m.ObserveDial("tcp", errors.New("refused"))
	m.ObserveDial("tcp", errors.New("refused"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dials.WithLabelValues(DialSuccess, "tcp")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Dials.WithLabelValues(DialFailure, "tcp")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveDial("tcp", nil) })
}

func TestHandler(t *testing.T) {
	m := New("ucnode")
	require.NoError(t, m.RegisterRuntime())
	m.RelayReservations.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "ucnode_relay_reservations 3"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("x", reg)
	assert.Same(t, reg, m.Registry)
	assert.Panics(t, func() { NewWithRegistry("x", reg) }, "重复注册")
}
