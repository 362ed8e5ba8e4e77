// Package audiobook defines the service-independent content model handed from
// source adapters to the download and output stages.
package audiobook

import (
	"errors"
	"fmt"

	"github.com/samber/mo"
)

// AESEncryption describes AES-CBC protection of a single file.
type AESEncryption struct {
	Key []byte `json:"-"`
	IV  []byte `json:"-"`

	// Unpad strips PKCS#7 padding after decryption. HLS segments are padded.
	Unpad bool `json:"-"`
}

// Validate checks the key and IV sizes accepted by AES-CBC.
func (e *AESEncryption) Validate() error {
	switch len(e.Key) {
	case 16, 24, 32:
	default:
		return fmt.Errorf("invalid AES key size %d", len(e.Key))
	}
	if len(e.IV) != 16 {
		return fmt.Errorf("invalid AES IV size %d", len(e.IV))
	}
	return nil
}

// File is one downloadable part of an audiobook.
type File struct {
	URL                 string            `json:"url"`
	Ext                 string            `json:"ext"`
	Title               mo.Option[string] `json:"title"`
	Headers             map[string]string `json:"-"`
	Encryption          *AESEncryption    `json:"-"`
	ExpectedContentType mo.Option[string] `json:"expected_content_type"`
	ExpectedStatusCode  mo.Option[int]    `json:"expected_status_code"`
}

// Validate enforces that the file can be fetched.
func (f *File) Validate() error {
	if f.URL == "" {
		return errors.New("audiobook file has no url")
	}
	if f.Encryption != nil {
		return f.Encryption.Validate()
	}
	return nil
}

// Extension returns the file extension, defaulting to mp3.
func (f *File) Extension() string {
	if f.Ext == "" {
		return "mp3"
	}
	return f.Ext
}
