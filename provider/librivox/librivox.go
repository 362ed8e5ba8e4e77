// Package librivox implements the public domain LibriVox catalog.
package librivox

import (
	"bytes"
	"context"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/metadata"
	"github.com/audiobook-dl/audiobook-dl/session"
	"github.com/audiobook-dl/audiobook-dl/source"
	"github.com/samber/mo"
)

const ID = "librivox"

var Names = []string{"Librivox"}

var Pattern = regexp.MustCompile(`^https?://(?:www\.)?librivox\.org/.+`)

// BaseURL is where book page ids are resolved.
var BaseURL = "https://librivox.org"

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
	book, err := s.book(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return book, nil
}

// DownloadByID downloads the book page named by its slug, e.g. "moby-dick-by-herman-melville".
func (s *Source) DownloadByID(ctx context.Context, id string) (*audiobook.Audiobook, error) {
	return s.book(ctx, BaseURL+"/"+url.PathEscape(strings.Trim(id, "/"))+"/")
}

func (s *Source) book(ctx context.Context, pageURL string) (*audiobook.Audiobook, error) {
	body, err := s.Session().Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)

	meta := audiobook.Metadata{
		Title:       strings.TrimSpace(doc.Find("h1").First().Text()),
		Description: strings.TrimSpace(doc.Find(".description").First().Text()),
		Language:    "en",
		ScrapeURL:   pageURL,
	}
	doc.Find(".book-page-author a").Each(func(_ int, a *goquery.Selection) {
		meta.AddAuthor(a.Text())
	})
	if meta.Title == "" {
		return nil, errs.DataNotPresent("title")
	}

	var files []audiobook.File
	doc.Find("a.chapter-name").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		link := resolve(base, href)
		files = append(files, audiobook.File{
			URL:   link,
			Ext:   extension(link),
			Title: mo.Some(strings.TrimSpace(a.Text())),
		})
	})
	if len(files) == 0 {
		return nil, errs.NoFilesFound(meta.Title)
	}

	return &audiobook.Audiobook{
		Session:  s.Session(),
		Metadata: meta,
		Files:    files,
		Cover:    s.cover(ctx, base, doc),
	}, nil
}

func (s *Source) cover(ctx context.Context, base *url.URL, doc *goquery.Document) mo.Option[audiobook.Cover] {
	src, ok := doc.Find(".book-page-book-cover img").First().Attr("src")
	if !ok || src == "" {
		return mo.None[audiobook.Cover]()
	}

	data, err := s.Session().Get(ctx, resolve(base, src))
	if err != nil {
		log.Debugf("librivox: failed to download cover: %s", err)
		return mo.None[audiobook.Cover]()
	}
	return mo.Some(metadata.NewCover(data, "jpg"))
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func extension(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return "mp3"
	}
	if ext := strings.TrimPrefix(path.Ext(u.Path), "."); ext != "" {
		return strings.ToLower(ext)
	}
	return "mp3"
}
