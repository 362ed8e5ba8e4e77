// Package output turns downloaded parts into the final audiobook on disk.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/constant"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/samber/lo"
)

// defaultNameMax is used where the filesystem limit cannot be queried.
const defaultNameMax = 255

// extensionReserve is the room left after the title for suffixes such as ".mp3.json".
const extensionReserve = 9

const windowsForbidden = `:*\?<>|"'’`

// Placeholders lists every name accepted in an output template.
var Placeholders = []string{
	"title", "author", "authors", "narrator", "narrators",
	"series", "series_order", "album", "artist", "genre",
	"language", "publisher", "isbn", "year", "release_date",
	"description", "scrape_url",
}

// GenerateLocation renders template with values from meta.
//
// Absent values become "NA"; a missing author falls back to the narrator.
// Characters in removeChars are stripped from substituted values only, never from the template text.
// The result is the location without extension.
func GenerateLocation(template string, meta audiobook.Metadata, removeChars string) (string, error) {
	maxName := MaxNameLength()

	template = expandHome(template)

	title := FixSegment(meta.Title)
	if len(title) > maxName-extensionReserve {
		title = TruncateBytes(title, maxName-extensionReserve)
		log.Infof("title too long, using %q as file name base", title)
	}

	values := meta.Properties()
	values["title"] = title
	if values["author"] == "" && values["narrator"] != "" {
		values["author"] = values["narrator"]
		values["authors"] = values["narrator"]
	}
	if values["album"] == "" {
		values["album"] = values["series"]
	}
	if values["artist"] == "" {
		values["artist"] = values["author"]
	}

	rendered, err := render(template, func(name string) (string, bool) {
		if !lo.Contains(Placeholders, name) {
			return "", false
		}

		value := values[name]
		if value == "" {
			return constant.Placeholder, true
		}
		return RemoveChars(FixSegment(value), removeChars), true
	})
	if err != nil {
		return "", err
	}
	return limitSegments(rendered, maxName), nil
}

// render substitutes "{name}" placeholders. "{{" and "}}" produce literal braces.
func render(template string, lookup func(name string) (string, bool)) (string, error) {
	var b strings.Builder

	for i := 0; i < len(template); i++ {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return "", errs.Template("unclosed placeholder")
			}
			name := template[i+1 : i+end]
			value, ok := lookup(name)
			if !ok {
				return "", errs.Template(fmt.Sprintf("unknown placeholder {%s}", name))
			}
			b.WriteString(value)
			i += end
		case c == '}':
			return "", errs.Template("unmatched }")
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), nil
}

// FixSegment makes a value safe as part of a single path segment.
func FixSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	if runtime.GOOS == "windows" {
		s = RemoveChars(s, windowsForbidden)
	}
	return s
}

// RemoveChars deletes every character of chars from s.
func RemoveChars(s, chars string) string {
	if chars == "" {
		return s
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(chars, r) {
			return -1
		}
		return r
	}, s)
}

// TruncateBytes shortens s to at most n bytes without splitting a UTF-8 sequence.
func TruncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func limitSegments(path string, maxName int) string {
	sep := string(filepath.Separator)
	path = filepath.FromSlash(path)

	segments := strings.Split(path, sep)
	for i, segment := range segments {
		segments[i] = TruncateBytes(segment, maxName-extensionReserve)
	}
	return strings.Join(segments, sep)
}

func expandHome(template string) string {
	if template != "~" && !strings.HasPrefix(template, "~/") {
		return template
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return template
	}
	return filepath.Join(home, strings.TrimPrefix(template, "~"))
}
