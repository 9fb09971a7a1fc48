package webpush

import (
	"strings"
	"sync"
)

// ServiceType tags a push endpoint with the delivery service it belongs to.
// Standards-compliant services share the "standard" tag; legacy services with
// nonstandard delivery or authorization rules carry their own tag.
type ServiceType string

// ServiceStandard covers every endpoint not matched by a registered rule.
const ServiceStandard ServiceType = "standard"

// ServiceRule describes one legacy delivery service: the endpoint prefixes it
// publishes, the host requests must actually be delivered to, and whether an
// API key is required.
type ServiceRule struct {
	Type ServiceType `yaml:"type" json:"type"`

	// Prefixes are matched in order against the notification endpoint.
	Prefixes []string `yaml:"prefixes" json:"prefixes"`

	// DeliveryURL, when set, replaces the matched prefix in the endpoint
	// before the request is sent (legacy URL migration).
	DeliveryURL string `yaml:"delivery_url,omitempty" json:"delivery_url,omitempty"`

	// RequiresAPIKey marks services that reject requests without an
	// Authorization header built from a configured API key.
	RequiresAPIKey bool `yaml:"requires_api_key" json:"requires_api_key"`
}

// DefaultRules returns the built-in rule table, covering the legacy GCM
// delivery service.
func DefaultRules() []ServiceRule {
	return []ServiceRule{
		{
			Type:           "gcm",
			Prefixes:       []string{"https://android.googleapis.com/gcm/send"},
			DeliveryURL:    "https://gcm-http.googleapis.com/gcm/send",
			RequiresAPIKey: true,
		},
	}
}

// Classifier maps endpoint URLs to service types using an ordered prefix
// table. The table is data, not code: it can be replaced at runtime so new
// legacy services are a configuration change.
type Classifier struct {
	mu    sync.RWMutex
	rules []ServiceRule
}

// NewClassifier creates a Classifier over the given rule table. A nil table
// uses DefaultRules.
func NewClassifier(rules []ServiceRule) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify returns the service type for endpoint. The first matching prefix
// wins; endpoints matching no rule are ServiceStandard.
func (c *Classifier) Classify(endpoint string) ServiceType {
	t, _ := c.Resolve(endpoint)
	return t
}

// Resolve returns the service type for endpoint together with the URL the
// request must be delivered to. For legacy services with a delivery host
// migration the matched prefix is rewritten; otherwise the endpoint is
// returned unchanged.
func (c *Classifier) Resolve(endpoint string) (ServiceType, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, rule := range c.rules {
		for _, prefix := range rule.Prefixes {
			if !strings.HasPrefix(endpoint, prefix) {
				continue
			}
			url := endpoint
			if rule.DeliveryURL != "" {
				url = rule.DeliveryURL + strings.TrimPrefix(endpoint, prefix)
			}
			return rule.Type, url
		}
	}
	return ServiceStandard, endpoint
}

// Rule returns the rule registered for the given service type.
func (c *Classifier) Rule(t ServiceType) (ServiceRule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, rule := range c.rules {
		if rule.Type == t {
			return rule, true
		}
	}
	return ServiceRule{}, false
}

// Reload replaces the rule table. A nil table restores DefaultRules.
func (c *Classifier) Reload(rules []ServiceRule) {
	if rules == nil {
		rules = DefaultRules()
	}
	c.mu.Lock()
	c.rules = rules
	c.mu.Unlock()
}
