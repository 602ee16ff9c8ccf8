package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
)

// EnvelopeKey is the single key of an encrypted payload map.
const EnvelopeKey = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.ExecutionRepository
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts the parameters,
// context and result of each record with AES-GCM. Ids, status, timestamps and
// lineage stay in clear so lookups and traversal keep working.
//
// Change events published by the wrapped repository carry the envelopes.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.ExecutionRepository) ports.ExecutionRepository {
		return keepAppender(&encryptionMiddleware{next: next, config: config}, next)
	}, nil
}

func (m *encryptionMiddleware) Get(ctx context.Context, id string) (*domain.Execution, error) {
	exec, err := m.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.open(exec)
}

func (m *encryptionMiddleware) GetFirst(ctx context.Context, filter ports.ExecutionFilter) (*domain.Execution, error) {
	exec, err := m.next.GetFirst(ctx, filter)
	if err != nil {
		return nil, err
	}
	return m.open(exec)
}

func (m *encryptionMiddleware) Query(ctx context.Context, filter ports.ExecutionFilter, order ...ports.OrderBy) ([]*domain.Execution, error) {
	execs, err := m.next.Query(ctx, filter, order...)
	if err != nil {
		return nil, err
	}
	for i, exec := range execs {
		if execs[i], err = m.open(exec); err != nil {
			return nil, err
		}
	}
	return execs, nil
}

func (m *encryptionMiddleware) Upsert(ctx context.Context, exec *domain.Execution, publish bool) (*domain.Execution, error) {
	if exec == nil {
		return m.next.Upsert(ctx, exec, publish)
	}
	sealed := exec.Clone()
	var err error
	if sealed.Parameters, err = m.seal(exec.Parameters); err != nil {
		return nil, fmt.Errorf("failed to encrypt parameters: %w", err)
	}
	if sealed.Context, err = m.seal(exec.Context); err != nil {
		return nil, fmt.Errorf("failed to encrypt context: %w", err)
	}
	if sealed.Result, err = m.seal(exec.Result); err != nil {
		return nil, fmt.Errorf("failed to encrypt result: %w", err)
	}

	stored, err := m.next.Upsert(ctx, sealed, publish)
	if err != nil {
		return nil, err
	}
	return m.open(stored)
}

func (m *encryptionMiddleware) seal(payload map[string]any) (map[string]any, error) {
	if payload == nil {
		return nil, nil
	}
	plainText, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return nil, err
	}
	return map[string]any{EnvelopeKey: base64.StdEncoding.EncodeToString(ciphertext)}, nil
}

func (m *encryptionMiddleware) unseal(envelope map[string]any) (map[string]any, error) {
	if envelope == nil {
		return nil, nil
	}
	encoded, ok := envelope[EnvelopeKey].(string)
	if !ok || len(envelope) != 1 {
		// Fail secure: a plain payload means the record bypassed encryption.
		return nil, errors.New("payload is missing encrypted data envelope")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(plainText, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted payload: %w", err)
	}
	return payload, nil
}

func (m *encryptionMiddleware) open(exec *domain.Execution) (*domain.Execution, error) {
	var err error
	if exec.Parameters, err = m.unseal(exec.Parameters); err != nil {
		return nil, fmt.Errorf("failed to decrypt execution %s: %w", exec.ID, err)
	}
	if exec.Context, err = m.unseal(exec.Context); err != nil {
		return nil, fmt.Errorf("failed to decrypt execution %s: %w", exec.ID, err)
	}
	if exec.Result, err = m.unseal(exec.Result); err != nil {
		return nil, fmt.Errorf("failed to decrypt execution %s: %w", exec.ID, err)
	}
	return exec, nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
