// Package crypt decrypts protected audio files in place.
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
)

// ErrBlockSize is returned when the ciphertext is not a whole number of AES blocks.
var ErrBlockSize = errors.New("ciphertext is not a multiple of the AES block size")

// Decrypt replaces the content of path with its AES-CBC plaintext.
// An empty file is left untouched.
func Decrypt(path string, enc *audiobook.AESEncryption) error {
	fs := filesystem.API()

	data, err := fs.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	plain, err := DecryptCBC(data, enc.Key, enc.IV)
	if err != nil {
		return fmt.Errorf("decrypt %s: %w", path, err)
	}
	if enc.Unpad {
		plain = Unpad(plain)
	}

	info, err := fs.Stat(path)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode().Perm()
	}
	return fs.WriteFile(path, plain, mode)
}

// DecryptCBC returns the AES-CBC plaintext of data. No padding is removed.
func DecryptCBC(data, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("invalid IV size %d", len(iv))
	}
	if len(data)%block.BlockSize() != 0 {
		return nil, ErrBlockSize
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)
	return plain, nil
}

// EncryptCBC returns the AES-CBC ciphertext of data, PKCS#7 padding it first when pad is set.
// Without padding, data must be a whole number of blocks.
func EncryptCBC(data, key, iv []byte, pad bool) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("invalid IV size %d", len(iv))
	}
	if pad {
		data = Pad(data, block.BlockSize())
	}
	if len(data)%block.BlockSize() != 0 {
		return nil, ErrBlockSize
	}

	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

// EncryptHex encrypts a padded string and returns the lowercase hex ciphertext.
func EncryptHex(s string, key, iv []byte) (string, error) {
	out, err := EncryptCBC([]byte(s), key, iv, true)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(out), nil
}

// Pad applies PKCS#7 padding.
func Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

// Unpad strips PKCS#7 padding when the trailing bytes form valid padding and returns data unchanged otherwise.
func Unpad(data []byte) []byte {
	if len(data) == 0 {
		return data
	}

	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return data
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return data
		}
	}
	return data[:len(data)-n]
}
