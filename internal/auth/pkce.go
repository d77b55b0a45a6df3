package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// PKCE - пара code_verifier/code_challenge для входа через VK ID, плюс state.
type PKCE struct {
	Verifier  string `json:"-"`
	Challenge string `json:"code_challenge"`
	Method    string `json:"code_challenge_method"`
	State     string `json:"state"`
}

// NewPKCE генерирует новый verifier (43 символа base64url), его S256-хеш и случайный state.
func NewPKCE() (PKCE, error) {
	verifier, err := GenerateSecureToken(32)
	if err != nil {
		return PKCE{}, err
	}
	state, err := GenerateSecureToken(16)
	if err != nil {
		return PKCE{}, err
	}
	return PKCE{
		Verifier:  verifier,
		Challenge: ChallengeS256(verifier),
		Method:    "S256",
		State:     state,
	}, nil
}

// ChallengeS256 вычисляет code_challenge = BASE64URL(SHA256(verifier)) без padding.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateSecureToken возвращает length случайных байт в виде base64url-строки без '='.
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("не удалось сгенерировать случайные байты: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
