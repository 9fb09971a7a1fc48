package webpush

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
)

// Request is a fully-headed delivery request ready for the transport.
type Request struct {
	URL    string
	Header http.Header
	Body   []byte
}

// requestBuilder turns a notification into wire headers and body, invoking
// the payload codec when an encrypted payload is present.
type requestBuilder struct {
	ttl     int
	autoPad bool
}

// build produces the request for n. deliveryURL is the endpoint after any
// legacy rewrite; apiKey is empty unless the service requires authorization.
func (b *requestBuilder) build(n Notification, deliveryURL, apiKey string) (*Request, error) {
	header := http.Header{}
	header.Set("TTL", strconv.Itoa(b.ttl))
	if apiKey != "" {
		header.Set("Authorization", "key="+apiKey)
	}

	var body []byte
	switch {
	case len(n.Payload) > 0 && len(n.SubscriberKey) > 0 && len(n.AuthSecret) > 0:
		padded, err := Pad(n.Payload, b.autoPad)
		if err != nil {
			return nil, err
		}
		env, err := Encrypt(padded, n.SubscriberKey, n.AuthSecret)
		if err != nil {
			return nil, err
		}
		body = env.CipherText
		header.Set("Content-Length", strconv.Itoa(len(env.CipherText)))
		header.Set("Content-Type", "application/octet-stream")
		header.Set("Content-Encoding", "aesgcm")
		header.Set("Encryption", fmt.Sprintf("keyid=%q;salt=%q", "p256dh", encodeKey(env.Salt)))
		header.Set("Crypto-Key", fmt.Sprintf("keyid=%q;dh=%q", "p256dh", encodeKey(env.EphemeralKey)))

	case len(n.Payload) > 0:
		// Subscriber keys missing: explicit unencrypted fallback.
		body = n.Payload
		header.Set("Content-Length", strconv.Itoa(len(n.Payload)))

	default:
		header.Set("Content-Length", "0")
	}

	return &Request{URL: deliveryURL, Header: header, Body: body}, nil
}

// encodeKey renders binary key material the way web-push headers expect it:
// unpadded URL-safe base64.
func encodeKey(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
