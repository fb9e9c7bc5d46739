package diary

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// At-rest encryption helpers for entry fields. The save path does not call
// these yet: entries are stored as plaintext under the encrypted_* column
// names.

const (
	kdfIterations = 10000
	kdfKeyLen     = 32
	saltLen       = 16
)

var ErrDecrypt = errors.New("diary: decryption failed")

type encryptedField struct {
	Salt  string `json:"salt"`
	Nonce string `json:"nonce"`
	Data  string `json:"data"`
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, kdfIterations, kdfKeyLen, sha256.New)
}

// EncryptField seals plaintext with a key derived from the password
// (PBKDF2-SHA256 + AES-GCM) and returns a self-describing JSON blob.
func EncryptField(plaintext, password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	out, err := json.Marshal(encryptedField{
		Salt:  base64.StdEncoding.EncodeToString(salt),
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		Data:  base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DecryptField reverses EncryptField. Any malformed input or wrong password
// yields ErrDecrypt.
func DecryptField(encrypted, password string) (string, error) {
	var f encryptedField
	if err := json.Unmarshal([]byte(encrypted), &f); err != nil {
		return "", ErrDecrypt
	}

	salt, err := base64.StdEncoding.DecodeString(f.Salt)
	if err != nil {
		return "", ErrDecrypt
	}
	nonce, err := base64.StdEncoding.DecodeString(f.Nonce)
	if err != nil {
		return "", ErrDecrypt
	}
	sealed, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return "", ErrDecrypt
	}

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return "", ErrDecrypt
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(nonce) != gcm.NonceSize() {
		return "", ErrDecrypt
	}

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
