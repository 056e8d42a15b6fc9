package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	masterKeyOnce sync.Once
	masterKey     []byte
	masterKeyErr  error
	masterKeyPath string
)

// SetMasterKeyPath configures where the master encryption key is loaded
// from. Must be called before the first encrypt/decrypt. When no path is set
// an ephemeral key is generated, which means persisted signing keys will not
// survive a restart.
func SetMasterKeyPath(path string) {
	masterKeyPath = path
}

func getMasterKey() ([]byte, error) {
	masterKeyOnce.Do(func() {
		var material []byte
		if masterKeyPath != "" {
			data, err := os.ReadFile(masterKeyPath)
			if err != nil {
				masterKeyErr = fmt.Errorf("cryptox: read master key file: %w", err)
				return
			}
			material = data
		} else {
			material = make([]byte, 32)
			if _, err := rand.Read(material); err != nil {
				masterKeyErr = fmt.Errorf("cryptox: generate ephemeral master key: %w", err)
				return
			}
		}

		// Derive a fixed 32-byte AES-256 key from whatever material we got.
		sum := sha256.Sum256(material)
		masterKey = sum[:]
	})
	return masterKey, masterKeyErr
}

// EncryptPrivateKey encrypts a PEM-encoded private key using AES-256-GCM.
// Output layout: [nonce][ciphertext+tag].
func EncryptPrivateKey(pemData []byte) ([]byte, error) {
	key, err := getMasterKey()
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptox: generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, pemData, nil), nil
}

// DecryptPrivateKey reverses EncryptPrivateKey.
func DecryptPrivateKey(encrypted []byte) ([]byte, error) {
	key, err := getMasterKey()
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}

	if len(encrypted) < gcm.NonceSize() {
		return nil, fmt.Errorf("cryptox: encrypted data too short")
	}

	nonce, ciphertext := encrypted[:gcm.NonceSize()], encrypted[gcm.NonceSize():]
	pemData, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decrypt private key: %w", err)
	}
	return pemData, nil
}
