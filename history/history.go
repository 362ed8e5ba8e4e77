// Package history records completed downloads so repeated runs can skip them.
package history

import (
	"fmt"
	"time"

	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/where"
	"github.com/metafates/gache"
)

// Record describes one finished audiobook.
type Record struct {
	Title        string    `json:"title"`
	Source       string    `json:"source"`
	URL          string    `json:"url"`
	Path         string    `json:"path"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

func (r *Record) String() string {
	return fmt.Sprintf("%s (%s)", r.Title, r.Source)
}

// Key identifies a book by the source that served it and the URL or id it was requested with.
func Key(source, url string) string {
	return source + ":" + url
}

var cacher = gache.New[map[string]*Record](
	&gache.Options{
		Path:       where.History(),
		FileSystem: &filesystem.GacheFs{},
	},
)

// Get returns all records keyed by Key.
func Get() (map[string]*Record, error) {
	cached, expired, err := cacher.Get()
	if err != nil {
		return nil, err
	}
	if expired || cached == nil {
		return make(map[string]*Record), nil
	}
	return cached, nil
}

// Has reports whether the book was downloaded before.
func Has(source, url string) bool {
	saved, err := Get()
	if err != nil {
		return false
	}
	_, ok := saved[Key(source, url)]
	return ok
}

// Save records a finished download, replacing an earlier record of the same book.
func Save(record *Record) error {
	saved, err := Get()
	if err != nil {
		return err
	}

	if record.DownloadedAt.IsZero() {
		record.DownloadedAt = time.Now()
	}
	saved[Key(record.Source, record.URL)] = record
	return cacher.Set(saved)
}

func Remove(source, url string) error {
	saved, err := Get()
	if err != nil {
		return err
	}

	delete(saved, Key(source, url))
	return cacher.Set(saved)
}

// Clear forgets every record.
func Clear() error {
	return cacher.Set(make(map[string]*Record))
}
