package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// Параметры PBKDF2. Количество итераций фиксировано:
// изменение сделает существующие зашифрованные данные нечитаемыми.
const (
	keyIterations = 4096
	keyLength     = 32 // AES-256
)

// DeriveKey растягивает passphrase в 32-байтный ключ AES-256
// через PBKDF2-SHA256. Passphrase из окружения не используется
// как ключ напрямую.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, keyIterations, keyLength, sha256.New)
}
