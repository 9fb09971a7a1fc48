package webpush

import "fmt"

// PayloadTooLargeError is returned when a payload exceeds MaxPayloadLength.
type PayloadTooLargeError struct {
	Size int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload of %d bytes exceeds maximum of %d", e.Size, MaxPayloadLength)
}

// InvalidKeyMaterialError is returned when a subscriber public key or auth
// secret cannot be used for encryption.
type InvalidKeyMaterialError struct {
	Reason string
}

func (e *InvalidKeyMaterialError) Error() string {
	return fmt.Sprintf("invalid subscriber key material: %s", e.Reason)
}

// MissingAuthorizationKeyError is returned by Flush when a queued service
// requires an API key and none is configured.
type MissingAuthorizationKeyError struct {
	Service ServiceType
}

func (e *MissingAuthorizationKeyError) Error() string {
	return fmt.Sprintf("no API key configured for service %q", e.Service)
}
