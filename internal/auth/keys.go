package auth

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveCookieKeys получает из секрета ключ подписи (64 байта) и ключ шифрования
// AES-256 (32 байта) для cookie-хранилища сессий.
func DeriveCookieKeys(secret string) (hashKey, blockKey []byte, err error) {
	if secret == "" {
		return nil, nil, fmt.Errorf("секрет cookie не может быть пустым")
	}
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("labelweb session cookie"))

	hashKey = make([]byte, 64)
	if _, err := io.ReadFull(r, hashKey); err != nil {
		return nil, nil, fmt.Errorf("ошибка получения ключа подписи: %w", err)
	}
	blockKey = make([]byte, 32)
	if _, err := io.ReadFull(r, blockKey); err != nil {
		return nil, nil, fmt.Errorf("ошибка получения ключа шифрования: %w", err)
	}
	return hashKey, blockKey, nil
}
