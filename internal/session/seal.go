// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// ENCRYPTION AT REST
// =============================================================================

const (
	// sealFormat names the envelope layout: AES-256-GCM under a
	// PBKDF2-SHA-256 key.
	sealFormat = "aes-256-gcm/pbkdf2-sha256"

	keySize  = 32
	saltSize = 32

	// pbkdf2Iterations follows the OWASP 2023 figure for PBKDF2-SHA-256.
	pbkdf2Iterations = 600000
)

var (
	// ErrSealed means the session file is encrypted and no passphrase was
	// configured.
	ErrSealed = errors.New("session file is encrypted: set CHATSYNC_CLIENT_TOKEN_PASSPHRASE")
	// ErrDecryptionFailed means the passphrase is wrong or the file was
	// tampered with.
	ErrDecryptionFailed = errors.New("session file decryption failed: wrong passphrase or corrupted file")
)

// sealedFile is the on-disk form of encrypted credentials. Byte slices are
// base64 in JSON.
type sealedFile struct {
	Format     string `json:"format"`
	Iterations int    `json:"iterations"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Data       []byte `json:"data"`
}

func deriveKey(passphrase string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// seal encrypts plaintext under a fresh salt and nonce.
func seal(passphrase string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt, pbkdf2Iterations)
	defer zeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return json.MarshalIndent(sealedFile{
		Format:     sealFormat,
		Iterations: pbkdf2Iterations,
		Salt:       salt,
		Nonce:      nonce,
		Data:       gcm.Seal(nil, nonce, plaintext, []byte(sealFormat)),
	}, "", "  ")
}

// unseal reverses seal.
func unseal(passphrase string, env sealedFile) ([]byte, error) {
	if env.Format != sealFormat || env.Iterations <= 0 || len(env.Salt) == 0 {
		return nil, fmt.Errorf("unsupported session file format %q", env.Format)
	}

	key := deriveKey(passphrase, env.Salt, env.Iterations)
	defer zeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != gcm.NonceSize() {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := gcm.Open(nil, env.Nonce, env.Data, []byte(sealFormat))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// zeroBytes clears key material once it is no longer needed.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
