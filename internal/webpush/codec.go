// Package webpush delivers push messages to web-push endpoints, optionally
// carrying an end-to-end encrypted payload using the "aesgcm" content
// encoding (ECDH on P-256, HKDF-SHA256, AES-128-GCM). Notifications are
// queued per delivery service and dispatched in batches through a pluggable
// transport.
package webpush

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// MaxPayloadLength is the largest plaintext payload that fits in a
	// single encrypted record, before the 2-byte length prefix.
	MaxPayloadLength = 4078

	// paddedLength is the on-the-wire envelope size when automatic
	// padding is enabled: length prefix plus maximum payload.
	paddedLength = MaxPayloadLength + 2

	saltLength       = 16
	cekLength        = 16
	nonceLength      = 12
	authSecretLength = 16

	// uncompressedPointLength is the size of an uncompressed P-256 point
	// (0x04 prefix plus two 32-byte coordinates).
	uncompressedPointLength = 65
)

// Envelope is the output of Encrypt. CipherText carries the 16-byte GCM
// authentication tag appended to the encrypted record.
type Envelope struct {
	CipherText   []byte
	Salt         []byte
	EphemeralKey []byte // one-time public key, uncompressed P-256 point
}

// Pad prefixes payload with a 2-byte big-endian length field. When autoPad
// is true the result is zero-filled to a fixed 4080 bytes so the ciphertext
// length does not leak the plaintext length; otherwise only the prefix is
// added.
func Pad(payload []byte, autoPad bool) ([]byte, error) {
	if len(payload) > MaxPayloadLength {
		return nil, &PayloadTooLargeError{Size: len(payload)}
	}

	size := len(payload) + 2
	if autoPad {
		size = paddedLength
	}

	out := make([]byte, size)
	binary.BigEndian.PutUint16(out, uint16(len(payload)))
	copy(out[2:], payload)
	return out, nil
}

// Encrypt seals a padded payload for the subscriber identified by its P-256
// public key and 16-byte auth secret. A fresh one-time keypair and salt are
// generated per call; the envelope is decryptable by any client implementing
// the aesgcm web-push encryption scheme.
func Encrypt(padded, subscriberKey, authSecret []byte) (*Envelope, error) {
	if len(authSecret) != authSecretLength {
		return nil, &InvalidKeyMaterialError{
			Reason: fmt.Sprintf("auth secret must be %d bytes, got %d", authSecretLength, len(authSecret)),
		}
	}

	curve := ecdh.P256()

	pub, err := curve.NewPublicKey(subscriberKey)
	if err != nil {
		return nil, &InvalidKeyMaterialError{Reason: fmt.Sprintf("parsing public key: %v", err)}
	}

	priv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating one-time keypair: %w", err)
	}

	shared, err := priv.ECDH(pub)
	if err != nil {
		return nil, &InvalidKeyMaterialError{Reason: fmt.Sprintf("computing shared secret: %v", err)}
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	ephemeralKey := priv.PublicKey().Bytes()

	// Bind the shared secret to the subscriber's auth secret first, then
	// derive the content-encryption key and nonce in a per-message context
	// that includes both public keys.
	prk, err := deriveKey(shared, authSecret, []byte("Content-Encoding: auth\x00"), 32)
	if err != nil {
		return nil, fmt.Errorf("deriving pseudorandom key: %w", err)
	}

	cek, err := deriveKey(prk, salt, derivationInfo("aesgcm", subscriberKey, ephemeralKey), cekLength)
	if err != nil {
		return nil, fmt.Errorf("deriving content-encryption key: %w", err)
	}

	nonce, err := deriveKey(prk, salt, derivationInfo("nonce", subscriberKey, ephemeralKey), nonceLength)
	if err != nil {
		return nil, fmt.Errorf("deriving nonce: %w", err)
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Envelope{
		CipherText:   gcm.Seal(nil, nonce, padded, nil),
		Salt:         salt,
		EphemeralKey: ephemeralKey,
	}, nil
}

// deriveKey runs a single HKDF-SHA256 extract-and-expand pass.
func deriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), out); err != nil {
		return nil, err
	}
	return out, nil
}

// derivationInfo builds the HKDF info string for the given content encoding,
// binding in the subscriber's public key and the one-time public key so
// derived keys are unique per recipient and sender keypair.
func derivationInfo(encoding string, subscriberKey, ephemeralKey []byte) []byte {
	var b bytes.Buffer
	b.WriteString("Content-Encoding: ")
	b.WriteString(encoding)
	b.WriteByte(0)
	b.WriteString("P-256")
	b.WriteByte(0)

	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(subscriberKey)))
	b.Write(l[:])
	b.Write(subscriberKey)

	binary.BigEndian.PutUint16(l[:], uint16(len(ephemeralKey)))
	b.Write(l[:])
	b.Write(ephemeralKey)

	return b.Bytes()
}
