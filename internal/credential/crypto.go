package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"io"

	"github.com/rotisserie/eris"
)

// Encrypt seals secret with AES-256-GCM. The service name is bound as
// additional data so a ciphertext cannot be replayed under another service.
// The result is hex(nonce || ciphertext).
func Encrypt(key []byte, service, secret string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", eris.Wrap(err, "credential: generate nonce")
	}

	sealed := gcm.Seal(nonce, nonce, []byte(secret), []byte(service))
	return hex.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt for the same service.
func Decrypt(key []byte, service, encrypted string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	data, err := hex.DecodeString(encrypted)
	if err != nil {
		return "", eris.Wrap(err, "credential: hex decode")
	}
	if len(data) < gcm.NonceSize() {
		return "", eris.New("credential: ciphertext too short")
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, []byte(service))
	if err != nil {
		return "", eris.Wrapf(err, "credential: decrypt %s", service)
	}
	return string(plain), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, ErrNoKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, eris.Wrap(err, "credential: create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, eris.Wrap(err, "credential: create gcm")
	}
	return gcm, nil
}
