package audiobook

import (
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/session"
	"github.com/samber/mo"
)

// Chapter marks a position in the finished audiobook. Start is in milliseconds.
type Chapter struct {
	Start int64  `json:"start"`
	Title string `json:"title"`
}

// Cover is embeddable cover art.
type Cover struct {
	Image []byte `json:"-"`
	Ext   string `json:"ext"`
}

// MimeType returns the MIME type of the image based on its extension.
func (c Cover) MimeType() string {
	switch c.Ext {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// Result is what resolving a URL yields: a single Audiobook or a Series of book ids.
type Result interface {
	isResult()
}

// Audiobook is a fully resolved book ready for download.
type Audiobook struct {
	Session  *session.Session
	Metadata Metadata
	Files    []File
	Chapters []Chapter
	Cover    mo.Option[Cover]

	// SourceData is the raw service document, persisted by adapters that keep a catalog.
	SourceData any
}

func (*Audiobook) isResult() {}

// Validate checks that the book has at least one downloadable file.
func (b *Audiobook) Validate() error {
	if len(b.Files) == 0 {
		return errs.NoFilesFound(b.Metadata.Title)
	}
	for i := range b.Files {
		if err := b.Files[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// BookID references a book of a series that is resolved lazily.
type BookID struct {
	ID string
}

// Series is an ordered collection of books resolved one at a time.
type Series struct {
	Title string
	Books []BookID
}

func (*Series) isResult() {}
