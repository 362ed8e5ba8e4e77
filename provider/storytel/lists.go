package storytel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/log"
)

// headphonePath is the svg path of the icon the website puts on audiobooks.
const headphonePath = "M8.25 12.371h-.625c-1.38 0-2.5 1.121-2.5 2.505v3.12a2.503 2.503 0 0 0 2.5 2.504h.625c.69 0 1.25-.56 1.25-1.252v-5.627c0-.691-.559-1.25-1.25-1.25Zm-.625 6.254a.628.628 0 0 1-.625-.63v-3.12c0-.347.28-.63.625-.63v4.38ZM12 3C6.41 3 2.178 7.652 2 13v4.375c0 .346.28.625.625.625h.625a.626.626 0 0 0 .625-.627V13c0-4.48 3.646-8.117 8.125-8.117 4.48 0 8.125 3.637 8.125 8.117v4.371c-.035.348.281.629.625.629l.625.001c.346 0 .625-.28.625-.625v-4.411C21.82 7.652 17.59 3 12 3Zm4.375 9.371h-.625c-.69 0-1.25.56-1.25 1.252v5.625c0 .692.56 1.252 1.25 1.252h.625c1.38 0 2.5-1.121 2.5-2.505v-3.12a2.503 2.503 0 0 0-2.5-2.504ZM17 17.996a.628.628 0 0 1-.625.629v-4.379c.345 0 .625.283.625.63v3.12Z"

type listItem struct {
	ID      string `json:"id"`
	Formats []struct {
		Type       string `json:"type"`
		IsReleased bool   `json:"isReleased"`
	} `json:"formats"`
}

type bookList struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Items         []listItem `json:"items"`
	NextPageToken *string    `json:"nextPageToken"`
}

// released reports whether the item has a released audiobook format.
func (i listItem) released() bool {
	for _, f := range i.Formats {
		if f.Type == "abook" {
			return f.IsReleased
		}
	}
	return false
}

func (s *Source) listFromAPI(ctx context.Context, rawURL, listType, language string) (*audiobook.Series, error) {
	id, err := IDFromURL(rawURL)
	if err != nil {
		return nil, err
	}

	list, err := s.listBooks(ctx, id, listType, language, "abook")
	if err != nil {
		return nil, err
	}

	series := &audiobook.Series{Title: list.Title}
	for _, item := range list.Items {
		if item.ID == "" || len(item.Formats) == 0 {
			log.Debug("storytel: skipping list item without id or formats")
			continue
		}
		if !item.released() {
			continue
		}
		if s.skip(item.ID) {
			log.Debugf("storytel: skipping downloaded book %s", item.ID)
			continue
		}
		series.Books = append(series.Books, audiobook.BookID{ID: item.ID})
	}
	return series, nil
}

// listBooks fetches every page of a list. The API returns ten items per page.
func (s *Source) listBooks(ctx context.Context, id, listType, languages, formats string) (*bookList, error) {
	var (
		result *bookList
		token  string
	)

	for {
		page, err := s.listPage(ctx, id, listType, languages, formats, token)
		if err != nil {
			return nil, err
		}

		if result == nil {
			result = page
		} else {
			result.Items = append(result.Items, page.Items...)
			result.NextPageToken = page.NextPageToken
		}

		if page.NextPageToken == nil || *page.NextPageToken == "" {
			break
		}
		token = *page.NextPageToken
	}

	if result.ID == "" {
		result.ID = id
	}
	name := fmt.Sprintf("%s_%s_%s", result.ID, languages, formats)
	if err := s.db.Put(kindLists, name, result); err != nil {
		log.Warnf("storytel: cannot store list %s: %s", name, err)
	}
	return result, nil
}

// listPage fetches one page, retrying in fallback languages when the list is unknown in the account language.
func (s *Source) listPage(ctx context.Context, id, listType, languages, formats, token string) (*bookList, error) {
	params := url.Values{
		"includeListDetails": {"true"},
		"includeFormats":     {formats},
		"includeLanguages":   {languages},
		"kidsMode":           {"false"},
	}
	if token != "" {
		params.Set("nextPageToken", token)
	}
	endpoint := fmt.Sprintf("%s/explore/lists/%s/%s", APIURL, url.PathEscape(listType), url.PathEscape(id))

	status, body, err := s.get(ctx, endpoint+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound {
		log.Debugf("storytel: list %s not found with language %s, trying fallbacks", id, languages)
		for _, lang := range fallbackLanguages {
			if lang == languages {
				continue
			}
			params.Set("includeLanguages", lang)
			if status, body, err = s.get(ctx, endpoint+"?"+params.Encode()); err != nil {
				return nil, err
			}
			if status == http.StatusOK {
				break
			}
		}
		if status == http.StatusNotFound {
			return nil, errs.BookNotFound(id)
		}
	}

	var page bookList
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, errs.Generic(fmt.Sprintf("failed to parse list response: %d", status)).Wrap(err)
	}
	return &page, nil
}

// listFromWebsite scrapes lists the API does not serve, such as publishers and categories.
func (s *Source) listFromWebsite(ctx context.Context, rawURL string) (*audiobook.Series, error) {
	body, err := s.Session().Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	series := &audiobook.Series{
		Title: strings.TrimSpace(doc.Find("h1").Last().Text()),
	}

	doc.Find(`a[href*="/books/"]`).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if link.Find(fmt.Sprintf(`svg > path[d=%q]`, headphonePath)).Length() == 0 {
			log.Debugf("storytel: skipping %s (has no audiobook)", href)
			return
		}

		id, err := IDFromURL(href)
		if err != nil || s.skip(id) {
			return
		}
		series.Books = append(series.Books, audiobook.BookID{ID: id})
	})
	return series, nil
}
