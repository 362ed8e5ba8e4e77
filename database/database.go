// Package database stores the raw service documents some sources keep about the books they served.
package database

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/util"
)

// DB is a directory of JSON documents grouped by kind: <dir>/<kind>/<id>.json.
type DB struct {
	dir string
}

// Open returns the database rooted at dir. Nothing is created until the first Put.
func Open(dir string) *DB {
	return &DB{dir: dir}
}

// Dir returns the root directory.
func (d *DB) Dir() string {
	return d.dir
}

// Path returns where the document kind/id is kept.
func (d *DB) Path(kind, id string) string {
	return filepath.Join(d.dir, kind, sanitize(id)+".json")
}

// Exists reports whether a document was stored.
func (d *DB) Exists(kind, id string) bool {
	exists, err := filesystem.API().Exists(d.Path(kind, id))
	return err == nil && exists
}

// Put writes v as indented JSON using a temporary file and a rename, so readers never see a partial document.
func (d *DB) Put(kind, id string, v any) error {
	path := d.Path(kind, id)
	if err := filesystem.API().MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := filesystem.API().WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := filesystem.API().Rename(tmp, path); err != nil {
		_ = filesystem.API().Remove(tmp)
		return err
	}
	return nil
}

// Get decodes the document kind/id into v. It returns false when the document is missing or unreadable.
func (d *DB) Get(kind, id string, v any) bool {
	f, err := filesystem.API().Open(d.Path(kind, id))
	if err != nil {
		return false
	}
	defer util.Ignore(f.Close)

	return json.NewDecoder(f).Decode(v) == nil
}

// sanitize keeps ids from escaping their kind directory.
func sanitize(id string) string {
	return strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(id)
}
