// Package stream expands HLS playlists into downloadable audiobook files.
package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/session"
	"github.com/grafov/m3u8"
	"github.com/samber/lo"
)

const (
	methodNone   = "NONE"
	methodAES128 = "AES-128"

	defaultExt = "aac"
)

// Files fetches the playlist at rawURL and returns one file per media segment, in order.
// A master playlist is followed to its highest bandwidth variant.
// Encrypted segments carry their AES-128 key and IV.
func Files(ctx context.Context, s *session.Session, rawURL string) ([]audiobook.File, error) {
	return files(ctx, s, rawURL, 0)
}

func files(ctx context.Context, s *session.Session, rawURL string, depth int) ([]audiobook.File, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	body, err := s.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), true)
	if err != nil {
		return nil, fmt.Errorf("decode playlist %s: %w", rawURL, err)
	}

	switch listType {
	case m3u8.MASTER:
		if depth > 0 {
			return nil, errs.DataNotPresent("media playlist")
		}
		variant, err := bestVariant(playlist.(*m3u8.MasterPlaylist))
		if err != nil {
			return nil, err
		}
		log.Debugf("following variant %s (%d bps)", variant.URI, variant.Bandwidth)
		return files(ctx, s, resolve(base, variant.URI), depth+1)
	case m3u8.MEDIA:
		keys := keyCache{session: s, keys: make(map[string][]byte)}
		return Segments(ctx, playlist.(*m3u8.MediaPlaylist), base, keys.fetch)
	default:
		return nil, errs.DataNotPresent("playlist")
	}
}

// KeyFunc returns the key bytes served at a key URI.
type KeyFunc func(ctx context.Context, uri string) ([]byte, error)

// Segments converts a decoded media playlist to files. Relative URIs are resolved against base.
func Segments(ctx context.Context, playlist *m3u8.MediaPlaylist, base *url.URL, keyOf KeyFunc) ([]audiobook.File, error) {
	var (
		result []audiobook.File
		key    = playlist.Key
	)

	for i, segment := range playlist.Segments {
		if segment == nil {
			continue
		}
		if segment.Key != nil {
			key = segment.Key
		}

		file := audiobook.File{
			URL: resolve(base, segment.URI),
			Ext: extension(segment.URI),
		}

		if key != nil && key.Method != "" && key.Method != methodNone {
			if key.Method != methodAES128 {
				return nil, fmt.Errorf("unsupported HLS encryption method %q", key.Method)
			}

			k, err := keyOf(ctx, resolve(base, key.URI))
			if err != nil {
				return nil, err
			}

			iv, err := initVector(key.IV, playlist.SeqNo+uint64(i))
			if err != nil {
				return nil, err
			}

			file.Encryption = &audiobook.AESEncryption{Key: k, IV: iv, Unpad: true}
		}

		result = append(result, file)
	}

	if len(result) == 0 {
		return nil, errs.DataNotPresent("playlist segments")
	}
	return result, nil
}

// initVector decodes an explicit IV attribute or derives one from the media sequence number.
func initVector(attr string, seq uint64) ([]byte, error) {
	if attr == "" {
		iv := make([]byte, 16)
		binary.BigEndian.PutUint64(iv[8:], seq)
		return iv, nil
	}

	trimmed := strings.TrimPrefix(strings.TrimPrefix(attr, "0x"), "0X")
	if len(trimmed)%2 == 1 {
		trimmed = "0" + trimmed
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid HLS IV %q: %w", attr, err)
	}
	if len(raw) > 16 {
		return nil, fmt.Errorf("invalid HLS IV %q: too long", attr)
	}

	iv := make([]byte, 16)
	copy(iv[16-len(raw):], raw)
	return iv, nil
}

func bestVariant(master *m3u8.MasterPlaylist) (*m3u8.Variant, error) {
	variants := lo.Filter(master.Variants, func(v *m3u8.Variant, _ int) bool {
		return v != nil && v.URI != ""
	})
	if len(variants) == 0 {
		return nil, errs.DataNotPresent("playlist variants")
	}

	return lo.MaxBy(variants, func(a, b *m3u8.Variant) bool {
		return a.Bandwidth > b.Bandwidth
	}), nil
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func extension(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		uri = u.Path
	}
	if ext := strings.TrimPrefix(path.Ext(uri), "."); ext != "" {
		return ext
	}
	return defaultExt
}

type keyCache struct {
	session *session.Session
	keys    map[string][]byte
}

func (c keyCache) fetch(ctx context.Context, uri string) ([]byte, error) {
	if k, ok := c.keys[uri]; ok {
		return k, nil
	}

	k, err := c.session.Get(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("fetch HLS key: %w", err)
	}
	c.keys[uri] = k
	return k, nil
}

// Decode parses playlist text without fetching anything.
func Decode(r io.Reader) (m3u8.Playlist, m3u8.ListType, error) {
	return m3u8.DecodeFrom(r, true)
}
