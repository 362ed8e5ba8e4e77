// Package rss turns podcast style feeds with audio enclosures into audiobooks.
package rss

import (
	"bytes"
	"context"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/metadata"
	"github.com/audiobook-dl/audiobook-dl/session"
	"github.com/audiobook-dl/audiobook-dl/source"
	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

const ID = "rss"

var Names = []string{"RSS"}

// Pattern accepts any URL ending in .rss or .xml, so this source is tried last.
var Pattern = regexp.MustCompile(`^https?://[^/]+/.*\.(?:rss|xml)(?:\?.*)?$`)

type Source struct {
	source.Base
}

var _ source.Source = (*Source)(nil)

func New(source.Options) source.Source {
	s := &Source{}
	s.Base = source.NewBase(Names, session.New(), nil)
	return s
}

func (s *Source) Download(ctx context.Context, rawURL string) (audiobook.Result, error) {
	book, err := s.DownloadByID(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return book, nil
}

// DownloadByID treats id as the feed URL.
func (s *Source) DownloadByID(ctx context.Context, id string) (*audiobook.Audiobook, error) {
	body, err := s.Session().Get(ctx, id)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, errs.DataNotPresent("feed").Wrap(err)
	}

	book := &audiobook.Audiobook{
		Session:  s.Session(),
		Metadata: Metadata(feed, id),
		Files:    Files(feed),
		Cover:    s.cover(ctx, feed),
	}
	if len(book.Files) == 0 {
		return nil, errs.NoFilesFound(book.Metadata.Title)
	}
	return book, nil
}

// Metadata maps the feed channel onto book metadata.
func Metadata(feed *gofeed.Feed, feedURL string) audiobook.Metadata {
	meta := audiobook.Metadata{
		Title:       strings.TrimSpace(feed.Title),
		Description: strings.TrimSpace(feed.Description),
		Language:    feed.Language,
		ScrapeURL:   lo.Ternary(feed.Link != "", feed.Link, feedURL),
	}
	for _, author := range feed.Authors {
		if author != nil {
			meta.AddAuthor(author.Name)
		}
	}
	if len(meta.Authors) == 0 && feed.ITunesExt != nil {
		meta.AddAuthor(feed.ITunesExt.Author)
	}
	for _, category := range feed.Categories {
		meta.AddGenre(category)
	}
	if feed.PublishedParsed != nil {
		meta.ReleaseDate = mo.Some(*feed.PublishedParsed)
	}
	return meta
}

// Files returns one file per item with an audio enclosure.
// Items are ordered oldest first when every item carries a publication date, otherwise in feed order.
func Files(feed *gofeed.Feed) []audiobook.File {
	items := lo.Filter(feed.Items, func(item *gofeed.Item, _ int) bool {
		return item != nil && audioEnclosure(item) != nil
	})

	dated := lo.EveryBy(items, func(item *gofeed.Item) bool {
		return item.PublishedParsed != nil
	})
	if dated {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].PublishedParsed.Before(*items[j].PublishedParsed)
		})
	}

	return lo.Map(items, func(item *gofeed.Item, _ int) audiobook.File {
		enclosure := audioEnclosure(item)
		return audiobook.File{
			URL:   enclosure.URL,
			Ext:   extension(enclosure),
			Title: mo.Some(strings.TrimSpace(item.Title)),
		}
	})
}

func audioEnclosure(item *gofeed.Item) *gofeed.Enclosure {
	enclosure, ok := lo.Find(item.Enclosures, func(e *gofeed.Enclosure) bool {
		return e != nil && e.URL != "" && (strings.HasPrefix(e.Type, "audio/") || e.Type == "")
	})
	if !ok {
		return nil
	}
	return enclosure
}

var mimeExtensions = map[string]string{
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/mp4":   "m4a",
	"audio/x-m4a": "m4a",
	"audio/aac":   "aac",
	"audio/ogg":   "ogg",
	"audio/opus":  "opus",
}

func extension(e *gofeed.Enclosure) string {
	if u, err := url.Parse(e.URL); err == nil {
		if ext := strings.TrimPrefix(path.Ext(u.Path), "."); ext != "" {
			return strings.ToLower(ext)
		}
	}
	if ext, ok := mimeExtensions[e.Type]; ok {
		return ext
	}
	return "mp3"
}

func (s *Source) cover(ctx context.Context, feed *gofeed.Feed) mo.Option[audiobook.Cover] {
	var imageURL string
	switch {
	case feed.Image != nil && feed.Image.URL != "":
		imageURL = feed.Image.URL
	case feed.ITunesExt != nil && feed.ITunesExt.Image != "":
		imageURL = feed.ITunesExt.Image
	default:
		return mo.None[audiobook.Cover]()
	}

	data, err := s.Session().Get(ctx, imageURL)
	if err != nil {
		log.Debugf("rss: failed to download cover: %s", err)
		return mo.None[audiobook.Cover]()
	}
	return mo.Some(metadata.NewCover(data, "jpg"))
}
