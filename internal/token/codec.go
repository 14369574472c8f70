package token

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalid is returned for every unseal failure: malformed encoding, bad
// authentication tag, unknown payload version, expired issued-at. Callers get
// no further detail, so the codec cannot be used as a forgery oracle.
var ErrInvalid = errors.New("invalid game token")

// payloadVersion guards against old token layouts sealed by previous builds.
const payloadVersion = 1

// DefaultTTL bounds how long a started game can sit before submission.
const DefaultTTL = 24 * time.Hour

// Payload is the session state carried between requests. The server keeps no
// per-session memory; this sealed blob plus the game record is everything.
type Payload struct {
	Version  int    `json:"v"`
	GameID   string `json:"game_id"`
	IssuedAt int64  `json:"iat"`
}

// Codec seals and unseals game tokens. It is the only component that holds
// the sealing secret.
type Codec struct {
	aead cipher.AEAD
	ttl  time.Duration
	now  func() time.Time
}

// NewCodec builds a codec from a 32-byte secret. A missing or short secret is
// a startup failure, not a per-request one.
func NewCodec(secret []byte, ttl time.Duration) (*Codec, error) {
	if len(secret) != chacha20poly1305.KeySize {
		return nil, errors.New("token secret must be exactly 32 bytes")
	}
	aead, err := chacha20poly1305.NewX(secret)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{aead: aead, ttl: ttl, now: time.Now}, nil
}

// Seal wraps the game id into an opaque, tamper-evident token.
func (c *Codec) Seal(gameID string) (string, error) {
	payload := Payload{
		Version:  payloadVersion,
		GameID:   gameID,
		IssuedAt: c.now().UnixMilli(),
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Unseal authenticates and decodes a token. Any failure yields ErrInvalid.
func (c *Codec) Unseal(token string) (*Payload, error) {
	sealed, err := base64.RawURLEncoding.Strict().DecodeString(token)
	if err != nil {
		return nil, ErrInvalid
	}
	if len(sealed) < c.aead.NonceSize()+c.aead.Overhead() {
		return nil, ErrInvalid
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalid
	}

	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, ErrInvalid
	}
	if payload.Version != payloadVersion || payload.GameID == "" {
		return nil, ErrInvalid
	}

	issued := time.UnixMilli(payload.IssuedAt)
	if c.now().Sub(issued) > c.ttl || issued.After(c.now().Add(time.Minute)) {
		return nil, ErrInvalid
	}
	return &payload, nil
}
