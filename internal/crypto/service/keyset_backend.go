package service

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // keyczar signs ciphertext with HMAC-SHA1
	"encoding/base64"
	"fmt"
	"strings"

	cryptoDomain "github.com/allisson/escrow/internal/crypto/domain"
)

const (
	keyczarFormatVersion = byte(0x00)
	keyczarHeaderSize    = 1 + cryptoDomain.KeyHashSize
	keyczarIVSize        = aes.BlockSize
	keyczarMACSize       = sha1.Size
)

// KeysetBackend is the keyczar AES crypter over a shared versioned keyset.
//
// Payload layout (web-safe base64, unpadded):
//
//	0x00 || key hash (4) || iv (16) || AES-CBC(PKCS5(plaintext)) || HMAC-SHA1
//
// The MAC covers every preceding byte and is keyed with the version's HMAC key. The key
// hash identifies the version, see cryptoDomain.KeyVersion.Hash.
type KeysetBackend struct {
	keysets map[string]*cryptoDomain.Keyset
}

// NewKeysetBackend creates a backend from key name to keyset mappings.
func NewKeysetBackend(keysets map[string]*cryptoDomain.Keyset) *KeysetBackend {
	return &KeysetBackend{keysets: keysets}
}

// ID implements Backend.
func (b *KeysetBackend) ID() string {
	return cryptoDomain.BackendKeyset
}

func (b *KeysetBackend) keyset(keyName string) (*cryptoDomain.Keyset, error) {
	ks, ok := b.keysets[keyName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", cryptoDomain.ErrUnknownKeyContext, keyName)
	}
	if ks == nil {
		return nil, cryptoDomain.ErrEmptyKeyset
	}
	return ks, nil
}

// Encrypt implements Backend using the keyset's primary version.
func (b *KeysetBackend) Encrypt(_ context.Context, plaintext []byte, keyName string) (string, error) {
	ks, err := b.keyset(keyName)
	if err != nil {
		return "", err
	}
	key := ks.Primary()

	block, err := aes.NewCipher(key.AESKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs5Pad(plaintext)
	bodySize := keyczarHeaderSize + keyczarIVSize + len(padded)
	out := make([]byte, bodySize, bodySize+keyczarMACSize)
	out[0] = keyczarFormatVersion
	copy(out[1:keyczarHeaderSize], key.Hash())

	iv := out[keyczarHeaderSize : keyczarHeaderSize+keyczarIVSize]
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[keyczarHeaderSize+keyczarIVSize:], padded)

	mac := hmac.New(sha1.New, key.HMACKey)
	mac.Write(out)
	out = mac.Sum(out)

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt implements Backend. Any version whose hash matches is tried, whatever its status.
func (b *KeysetBackend) Decrypt(_ context.Context, payload string, keyName string) ([]byte, error) {
	ks, err := b.keyset(keyName)
	if err != nil {
		return nil, err
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(payload), "="))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid encoding", cryptoDomain.ErrDecryptionFailed)
	}
	minSize := keyczarHeaderSize + keyczarIVSize + aes.BlockSize + keyczarMACSize
	if len(data) < minSize || data[0] != keyczarFormatVersion {
		return nil, fmt.Errorf("%w: malformed payload", cryptoDomain.ErrDecryptionFailed)
	}

	hash := data[1:keyczarHeaderSize]
	candidates := ks.ByHash(hash)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: hash %x", cryptoDomain.ErrKeyVersionNotFound, hash)
	}

	body, tag := data[:len(data)-keyczarMACSize], data[len(data)-keyczarMACSize:]
	ciphertext := body[keyczarHeaderSize+keyczarIVSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: malformed payload", cryptoDomain.ErrDecryptionFailed)
	}

	for _, key := range candidates {
		mac := hmac.New(sha1.New, key.HMACKey)
		mac.Write(body)
		if !hmac.Equal(mac.Sum(nil), tag) {
			continue
		}

		block, err := aes.NewCipher(key.AESKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}
		plaintext := make([]byte, len(ciphertext))
		cipher.NewCBCDecrypter(block, body[keyczarHeaderSize:keyczarHeaderSize+keyczarIVSize]).
			CryptBlocks(plaintext, ciphertext)
		return pkcs5Unpad(plaintext)
	}

	return nil, cryptoDomain.ErrDecryptionFailed
}

func pkcs5Pad(plaintext []byte) []byte {
	n := aes.BlockSize - len(plaintext)%aes.BlockSize
	return append(bytes.Clone(plaintext), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs5Unpad(padded []byte) ([]byte, error) {
	n := int(padded[len(padded)-1])
	if n == 0 || n > aes.BlockSize || n > len(padded) {
		return nil, fmt.Errorf("%w: bad padding", cryptoDomain.ErrDecryptionFailed)
	}
	for _, p := range padded[len(padded)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("%w: bad padding", cryptoDomain.ErrDecryptionFailed)
		}
	}
	return padded[:len(padded)-n], nil
}
