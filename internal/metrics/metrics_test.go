package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.Nil(t, New(nil))
	assert.NotPanics(t, func() {
		m.PageListed(10)
		m.DeleteCall(time.Second, 1, []string{"AccessDenied"}, 1)
		m.Mismatch()
		m.ScrubFinished("emptied")
	})
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m)

	m.PageListed(1000)
	m.PageListed(500)
	m.DeleteCall(50*time.Millisecond, 998, []string{"AccessDenied", ""}, 0)
	m.DeleteCall(20*time.Millisecond, 499, nil, 1)
	m.Mismatch()
	m.ScrubFinished("partial")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pages))
	assert.Equal(t, 1500.0, testutil.ToFloat64(m.recordsSeen))
	assert.Equal(t, 1497.0, testutil.ToFloat64(m.versionsDeleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deleteErrors.WithLabelValues("AccessDenied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deleteErrors.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mismatches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unconfirmed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scrubs.WithLabelValues("partial")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.deleteLatency))

	count, err := testutil.GatherAndCount(reg, "bucketscrubber_scrubs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewSharesRegisteredInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()

	var first, second *Metrics
	require.NotPanics(t, func() {
		first = New(reg)
		second = New(reg)
	})

	first.PageListed(10)
	second.PageListed(5)
	first.ScrubFinished("emptied")
	second.ScrubFinished("emptied")

	assert.Equal(t, 2.0, testutil.ToFloat64(first.pages))
	assert.Equal(t, 15.0, testutil.ToFloat64(second.recordsSeen))
	assert.Equal(t, 2.0, testutil.ToFloat64(first.scrubs.WithLabelValues("emptied")))

	count, err := testutil.GatherAndCount(reg, "bucketscrubber_pages_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewConflictingRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pages_total",
		Help:      "Listing pages processed",
	}, []string{"bucket"}))

	assert.Panics(t, func() { New(reg) })
}
