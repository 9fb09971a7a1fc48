package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/dogma165/push-notification/internal/eventbus"
	"github.com/dogma165/push-notification/internal/metrics"
)

func TestListenerFeedsCounters(t *testing.T) {
	m := metrics.New()
	listener := m.Listener()

	listener(eventbus.Event{Type: eventbus.EventDeliverySent, Payload: map[string]string{"service": "standard"}})
	listener(eventbus.Event{Type: eventbus.EventDeliverySent, Payload: map[string]string{"service": "standard"}})
	listener(eventbus.Event{Type: eventbus.EventDeliveryFailed, Payload: map[string]string{"service": "gcm"}})
	listener(eventbus.Event{Type: eventbus.EventFlushCompleted})
	listener(eventbus.Event{Type: "unrelated.event"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("standard", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("gcm", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlushBatches))
}
