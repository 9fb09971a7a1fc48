package webpush

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
)

// DefaultTTL is the time-to-live attached to outgoing requests when none is
// configured: four weeks, in seconds.
const DefaultTTL = 2419200

// DeliveryResult is the per-notification outcome of a flush. Err is non-nil
// when the request could not be built (bad key material) or the transport
// failed; otherwise StatusCode and Header carry the service's response.
type DeliveryResult struct {
	Endpoint    string
	ServiceType ServiceType
	StatusCode  int
	Header      http.Header
	Err         error
}

// OK reports whether the notification reached the delivery service.
func (r DeliveryResult) OK() bool { return r.Err == nil }

// FlushReport describes one consumed batch. Results are ordered by
// service-type group (first-insertion order), then enqueue order within each
// group.
type FlushReport struct {
	Results []DeliveryResult
}

// Failed returns the number of results that did not reach the service.
func (r *FlushReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK() {
			n++
		}
	}
	return n
}

// WebPush queues notifications per delivery service and dispatches them in
// batches. Enqueue and Flush are not safe for concurrent use on the same
// instance; callers sharing one across goroutines must synchronize
// externally. Configuration setters follow the same rule.
type WebPush struct {
	classifier *Classifier
	queue      *notificationQueue
	transport  Transport
	apiKeys    map[ServiceType]string
	builder    requestBuilder
	logger     *slog.Logger
}

// New creates a WebPush dispatcher over the given transport. A nil
// classifier uses the default rule table; a nil logger discards nothing and
// falls back to slog.Default. TTL defaults to DefaultTTL and automatic
// padding is enabled.
func New(transport Transport, classifier *Classifier, logger *slog.Logger) *WebPush {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebPush{
		classifier: classifier,
		queue:      newNotificationQueue(),
		transport:  transport,
		apiKeys:    make(map[ServiceType]string),
		builder:    requestBuilder{ttl: DefaultTTL, autoPad: true},
		logger:     logger,
	}
}

// SetAPIKey configures the authorization key for a legacy service type.
func (w *WebPush) SetAPIKey(t ServiceType, key string) {
	w.apiKeys[t] = key
}

// SetTTL changes the TTL attached to every subsequent outgoing request.
func (w *WebPush) SetTTL(seconds int) {
	w.builder.ttl = seconds
}

// TTL returns the currently configured time-to-live in seconds.
func (w *WebPush) TTL() int { return w.builder.ttl }

// SetAutomaticPadding toggles fixed-size payload padding for subsequent
// sends.
func (w *WebPush) SetAutomaticPadding(enabled bool) {
	w.builder.autoPad = enabled
}

// AutomaticPadding reports whether payloads are padded to a fixed envelope.
func (w *WebPush) AutomaticPadding() bool { return w.builder.autoPad }

// Classifier returns the endpoint classifier, allowing the rule table to be
// reloaded at runtime.
func (w *WebPush) Classifier() *Classifier { return w.classifier }

// Pending returns the number of queued notifications.
func (w *WebPush) Pending() int { return w.queue.len() }

// Enqueue validates and stores a notification for the next flush. Oversized
// payloads are rejected here, before any cryptographic or network work.
func (w *WebPush) Enqueue(n Notification) error {
	if len(n.Payload) > MaxPayloadLength {
		return &PayloadTooLargeError{Size: len(n.Payload)}
	}
	w.queue.add(w.classifier.Classify(n.Endpoint), n)
	return nil
}

// Flush drains the queue and delivers every queued notification. It returns
// (nil, nil) when the queue is empty. A missing API key for any queued
// legacy service fails the whole batch before a single request is sent,
// leaving the queue intact. Once validation passes the batch is consumed
// exactly once: per-notification failures are isolated into their
// DeliveryResult and never abort siblings, and the queue is cleared
// regardless of outcome.
func (w *WebPush) Flush(ctx context.Context) (*FlushReport, error) {
	if w.queue.len() == 0 {
		return nil, nil
	}

	for _, t := range w.queue.types() {
		rule, ok := w.classifier.Rule(t)
		if ok && rule.RequiresAPIKey && w.apiKeys[t] == "" {
			return nil, &MissingAuthorizationKeyError{Service: t}
		}
	}

	type pending struct {
		idx int
		svc ServiceType
		n   Notification
	}

	var flat []pending
	for _, g := range w.queue.drain() {
		for _, n := range g.Notifications {
			flat = append(flat, pending{idx: len(flat), svc: g.Type, n: n})
		}
	}

	results := make([]DeliveryResult, len(flat))
	send := func(p pending) DeliveryResult {
		res := DeliveryResult{Endpoint: p.n.Endpoint, ServiceType: p.svc}

		_, deliveryURL := w.classifier.Resolve(p.n.Endpoint)
		req, err := w.builder.build(p.n, deliveryURL, w.apiKeys[p.svc])
		if err != nil {
			res.Err = err
			return res
		}

		resp, err := w.transport.Post(ctx, req.URL, req.Header, req.Body)
		if err != nil {
			res.Err = err
			return res
		}
		res.StatusCode = resp.StatusCode
		res.Header = resp.Header
		return res
	}

	if ct, ok := w.transport.(ConcurrentTransport); ok && ct.Concurrent() {
		var wg sync.WaitGroup
		for _, p := range flat {
			wg.Add(1)
			go func(p pending) {
				defer wg.Done()
				results[p.idx] = send(p)
			}(p)
		}
		w.flushPending(ctx)
		wg.Wait()
	} else {
		for _, p := range flat {
			results[p.idx] = send(p)
		}
		w.flushPending(ctx)
	}

	report := &FlushReport{Results: results}
	if failed := report.Failed(); failed > 0 {
		w.logger.Warn("flush completed with failures",
			"total", len(results), "failed", failed)
	} else {
		w.logger.Debug("flush completed", "total", len(results))
	}
	return report, nil
}

// flushPending forces multiplexed transports to complete outstanding
// requests.
func (w *WebPush) flushPending(ctx context.Context) {
	f, ok := w.transport.(Flusher)
	if !ok {
		return
	}
	if err := f.FlushPending(ctx); err != nil {
		w.logger.Warn("transport flush failed", "error", err)
	}
}
