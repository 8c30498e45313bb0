package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_Records(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())

	r.ObserveRefresh("ok", 120*time.Millisecond)
	r.ObserveRefresh("ok", 80*time.Millisecond)
	r.ObserveRefresh("error", time.Second)
	r.SetQueueDepth(3)
	r.ProviderRequest("ok")
	r.CacheLookup("hit")
	r.SetWSClients(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.RefreshTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RefreshTotal.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.QueueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ProviderRequests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SnapshotCache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.WSClients))
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveRefresh("ok", time.Second)
		r.SetQueueDepth(1)
		r.ProviderRequest("error")
		r.CacheLookup("miss")
		r.SetWSClients(0)
	})
}
