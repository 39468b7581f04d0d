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

	"github.com/aretw0/witmorph/pkg/domain"
	"github.com/aretw0/witmorph/pkg/ports"
)

// EnvelopeField holds the sealed records inside an encrypted batch.
const EnvelopeField = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new exports.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open an entry.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.Archive
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals exported records
// with AES-GCM. The archive only sees an envelope: the batch header stays
// readable, the records do not.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.Archive) ports.Archive {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Write(ctx context.Context, key string, batch domain.ExportBatch) (string, error) {
	plainText, err := json.Marshal(batch.Records)
	if err != nil {
		return "", fmt.Errorf("failed to marshal records: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt records: %w", err)
	}

	envelope := batch
	envelope.Records = []domain.Record{{
		Type:   batch.Type,
		Fields: map[string]any{EnvelopeField: base64.StdEncoding.EncodeToString(ciphertext)},
	}}
	return m.next.Write(ctx, key, envelope)
}

func (m *encryptionMiddleware) Read(ctx context.Context, key string) (domain.ExportBatch, error) {
	envelope, err := readFrom(ctx, m.next, key)
	if err != nil {
		return domain.ExportBatch{}, err
	}

	if len(envelope.Records) != 1 {
		return domain.ExportBatch{}, errors.New("export is missing encrypted data envelope")
	}
	encryptedStr, ok := envelope.Records[0].Fields[EnvelopeField].(string)
	if !ok {
		return domain.ExportBatch{}, errors.New("export is missing encrypted data envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedStr)
	if err != nil {
		return domain.ExportBatch{}, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.ExportBatch{}, fmt.Errorf("failed to decrypt export: %w", err)
	}

	var records []domain.Record
	if err := json.Unmarshal(plainText, &records); err != nil {
		return domain.ExportBatch{}, fmt.Errorf("failed to unmarshal decrypted records: %w", err)
	}
	envelope.Records = records
	return envelope, nil
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
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}
