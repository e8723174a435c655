package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// DefaultStateTTL bounds how long an OAuth round trip may take
const DefaultStateTTL = 10 * time.Minute

// ErrDecrypt is returned for any undecryptable ciphertext. The cause is
// deliberately not distinguished so callers cannot leak oracle details.
var ErrDecrypt = goerr.New("failed to decrypt")

// Service encrypts tokens at rest with AES-256-GCM and signs OAuth state
// values with HMAC-SHA256.
type Service struct {
	key         []byte
	stateSecret []byte
}

// New builds a Service from a 64-char hex encryption key and a state
// signing secret.
func New(encryptionKeyHex, stateSecret string) (*Service, error) {
	key, err := hex.DecodeString(encryptionKeyHex)
	if err != nil {
		return nil, goerr.Wrap(err, "encryption key must be hex encoded")
	}
	if len(key) != 32 {
		return nil, goerr.New("encryption key must be 32 bytes", goerr.V("len", len(key)))
	}
	if stateSecret == "" {
		return nil, goerr.New("state secret must not be empty")
	}

	return &Service{
		key:         key,
		stateSecret: []byte(stateSecret),
	}, nil
}

// Encrypt seals the plaintext with a fresh random nonce. The nonce is
// prepended to the ciphertext and the whole blob is base64 encoded.
func (x *Service) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(x.key)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create cipher")
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create GCM")
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", goerr.Wrap(err, "failed to generate nonce")
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any malformed or tampered input yields
// ErrDecrypt.
func (x *Service) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", goerr.Wrap(ErrDecrypt, "invalid base64")
	}

	block, err := aes.NewCipher(x.key)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create cipher")
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create GCM")
	}

	if len(raw) < gcm.NonceSize() {
		return "", goerr.Wrap(ErrDecrypt, "ciphertext too short")
	}

	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", goerr.Wrap(ErrDecrypt, "authentication failed")
	}

	return string(plaintext), nil
}

type statePayload struct {
	Payload   string `json:"p"`
	ExpiresAt int64  `json:"e"`
}

// CreateSignedState wraps the payload with an expiry and an HMAC signature
// for use as an OAuth state parameter.
func (x *Service) CreateSignedState(payload string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = DefaultStateTTL
	}

	body, err := json.Marshal(statePayload{
		Payload:   payload,
		ExpiresAt: time.Now().Add(ttl).Unix(),
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal state")
	}

	encoded := base64.RawURLEncoding.EncodeToString(body)
	return encoded + "." + x.sign(encoded), nil
}

// VerifySignedState checks the signature and expiry and returns the
// embedded payload. It never explains why verification failed.
func (x *Service) VerifySignedState(state string) (string, bool) {
	encoded, sig, ok := strings.Cut(state, ".")
	if !ok {
		return "", false
	}

	expected := x.sign(encoded)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}

	body, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}

	var payload statePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}

	if time.Now().Unix() > payload.ExpiresAt {
		return "", false
	}

	return payload.Payload, true
}

func (x *Service) sign(data string) string {
	mac := hmac.New(sha256.New, x.stateSecret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashToken returns the SHA-256 hex digest of a bearer token. Only the
// digest is ever stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
