// Package scratch prunes work directories left behind by interrupted downloads.
package scratch

import (
	"os"
	"path/filepath"
	"time"

	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/log"
)

// TTL is the age after which a work directory is considered abandoned.
const TTL = 24 * time.Hour

// CollectGarbage removes the entries of dir not modified within TTL and returns how many were removed.
// Running downloads touch their work directory, so only stale ones go.
func CollectGarbage(dir string, now time.Time) int {
	entries, err := filesystem.API().ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debugf("scratch: %s", err)
		}
		return 0
	}

	var removed int
	for _, entry := range entries {
		if now.Sub(entry.ModTime()) <= TTL {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := filesystem.API().RemoveAll(path); err != nil {
			log.Warnf("scratch: cannot remove %s: %s", path, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Infof("scratch: removed %d abandoned work directories from %s", removed, dir)
	}
	return removed
}
