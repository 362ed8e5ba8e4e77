package crypt

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

var (
	key = []byte("0123456789abcdef")
	iv  = []byte("fedcba9876543210")
)

func TestDecrypt(t *testing.T) {
	fs := filesystem.API()

	for _, size := range []int{16, 16 * 64, 16 * 4096} {
		size := size
		Convey("Given an encrypted file of "+strconv.Itoa(size)+" bytes", t, func() {
			plain := bytes.Repeat([]byte{0xAB, 0x01, 0x7F, 0x00}, size/4)
			cipherText, err := EncryptCBC(plain, key, iv, false)
			So(err, ShouldBeNil)
			So(fs.WriteFile("/book.mp3", cipherText, 0o644), ShouldBeNil)

			Convey("Decrypting restores the plaintext in place with the same length", func() {
				So(Decrypt("/book.mp3", &audiobook.AESEncryption{Key: key, IV: iv}), ShouldBeNil)
				got, _ := fs.ReadFile("/book.mp3")
				So(len(got), ShouldEqual, len(plain))
				So(bytes.Equal(got, plain), ShouldBeTrue)
			})

			Convey("A wrong key produces different bytes", func() {
				wrong := []byte("ffffffffffffffff")
				So(Decrypt("/book.mp3", &audiobook.AESEncryption{Key: wrong, IV: iv}), ShouldBeNil)
				got, _ := fs.ReadFile("/book.mp3")
				So(bytes.Equal(got, plain), ShouldBeFalse)
			})

			Convey("A wrong IV produces different bytes", func() {
				So(Decrypt("/book.mp3", &audiobook.AESEncryption{Key: key, IV: key}), ShouldBeNil)
				got, _ := fs.ReadFile("/book.mp3")
				So(bytes.Equal(got, plain), ShouldBeFalse)
			})
		})
	}

	Convey("An empty file stays empty", t, func() {
		So(fs.WriteFile("/empty.mp3", nil, 0o644), ShouldBeNil)
		So(Decrypt("/empty.mp3", &audiobook.AESEncryption{Key: key, IV: iv}), ShouldBeNil)
		got, _ := fs.ReadFile("/empty.mp3")
		So(got, ShouldBeEmpty)
	})

	Convey("A truncated file is rejected", t, func() {
		So(fs.WriteFile("/short.mp3", []byte("not a block"), 0o644), ShouldBeNil)
		err := Decrypt("/short.mp3", &audiobook.AESEncryption{Key: key, IV: iv})
		So(err, ShouldNotBeNil)
	})

	Convey("HLS segments lose their padding", t, func() {
		cipherText, err := EncryptCBC([]byte("segment"), key, iv, true)
		So(err, ShouldBeNil)
		So(fs.WriteFile("/seg.ts", cipherText, 0o644), ShouldBeNil)
		So(Decrypt("/seg.ts", &audiobook.AESEncryption{Key: key, IV: iv, Unpad: true}), ShouldBeNil)
		got, _ := fs.ReadFile("/seg.ts")
		So(string(got), ShouldEqual, "segment")
	})
}

func TestPadding(t *testing.T) {
	Convey("Unpad leaves data without valid padding unchanged", t, func() {
		data := []byte("0123456789abcde\x03")
		So(Unpad(data), ShouldResemble, data)
		So(Unpad(Pad([]byte("abc"), 16)), ShouldResemble, []byte("abc"))
	})

	Convey("EncryptHex returns one hex encoded block for a short string", t, func() {
		out, err := EncryptHex("abc", key, iv)
		So(err, ShouldBeNil)
		So(len(out), ShouldEqual, 32)

		raw, _ := EncryptCBC([]byte("abc"), key, iv, true)
		plain, _ := DecryptCBC(raw, key, iv)
		So(Unpad(plain), ShouldResemble, []byte("abc"))
	})
}

