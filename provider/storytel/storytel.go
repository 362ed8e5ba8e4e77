// Package storytel implements the Storytel and Mofibo audiobook service.
package storytel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/crypt"
	"github.com/audiobook-dl/audiobook-dl/database"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/metadata"
	"github.com/audiobook-dl/audiobook-dl/network"
	"github.com/audiobook-dl/audiobook-dl/session"
	"github.com/audiobook-dl/audiobook-dl/source"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

const ID = "storytel"

var Names = []string{"Storytel", "Mofibo"}

// Pattern matches book pages and the lists (series, authors, ...) containing them.
var Pattern = regexp.MustCompile(`^https?://(?:www\.)?(?:storytel|mofibo)\.com/(\w+)(?:/(\w+))?/(books|series|authors|narrators|publishers|categories)/.+`)

// Service endpoints.
var (
	WebURL = "https://www.storytel.com"
	APIURL = "https://api.storytel.net"
)

// Storytel's public client keys, shared by every installation of its Android app.
var (
	passwordKey = []byte("VQZBJ6TD8M9WBUWT")
	passwordIV  = []byte("joiwef08u23j341a")
)

const (
	userAgent = "okhttp/3.12.8"

	// reloginInterval refreshes the login token every n audio URLs to stay under the rate limiter.
	reloginInterval = 10

	cloudflareTitle = "<title>Attention Required! | Cloudflare</title>"
)

// Database kinds.
const (
	kindBooks    = "books"
	kindPlayback = "playback-metadata"
	kindLists    = "lists"
)

var fallbackLanguages = []string{"en", "us", "uk"}

type Source struct {
	source.Base

	db             *database.DB
	skipDownloaded bool

	mu        sync.Mutex
	username  string
	password  string
	language  string
	downloads int
}

var (
	_ source.Source    = (*Source)(nil)
	_ source.Completer = (*Source)(nil)
)

func New(opts source.Options) source.Source {
	s := &Source{
		db:             database.Open(filepath.Join(opts.DatabaseDirectory, ID)),
		skipDownloaded: opts.SkipDownloaded,
	}

	sess := session.New(
		session.WithTransport(network.ChromeTransport()),
		session.WithAuthMethods(session.Login),
	)
	s.Base = source.NewBase(Names, sess, s.login)
	return s
}

// EncryptPassword encrypts password the way the login endpoint expects it.
func EncryptPassword(password string) (string, error) {
	return crypt.EncryptHex(password, passwordKey, passwordIV)
}

func (s *Source) login(ctx context.Context, sess *session.Session, _, username, password string) error {
	encrypted, err := EncryptPassword(password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.username, s.password = username, encrypted
	s.mu.Unlock()

	sess.SetHeader("User-Agent", userAgent)
	return s.doLogin(ctx)
}

type loginResponse struct {
	AccountInfo *struct {
		JWT  string `json:"jwt"`
		Lang string `json:"lang"`
	} `json:"accountInfo"`
}

func (s *Source) doLogin(ctx context.Context) error {
	s.mu.Lock()
	username, password := s.username, s.password
	s.mu.Unlock()

	query := url.Values{
		"m":        {"1"},
		"token":    {"guestsv"},
		"userid":   {"-1"},
		"version":  {"5.24.5"},
		"terminal": {"android"},
		"locale":   {"sv"},
		"deviceId": {uuid.NewString()},
		"kidsMode": {"false"},
	}

	resp, err := s.Session().PostForm(ctx, WebURL+"/api/login.action?"+query.Encode(), url.Values{
		"uid": {username},
		"pwd": {password},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		log.Debugf("storytel: login failed with status %d", resp.StatusCode)
		return loginError(resp.StatusCode, string(body))
	}

	var data loginResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return errs.UserNotAuthorized("invalid login response: could not parse JSON").Wrap(err)
	}
	if data.AccountInfo == nil {
		return errs.UserNotAuthorized("invalid login response: missing accountInfo")
	}
	if data.AccountInfo.JWT == "" || data.AccountInfo.Lang == "" {
		return errs.UserNotAuthorized("invalid login response: missing jwt or lang")
	}

	s.mu.Lock()
	s.language = data.AccountInfo.Lang
	s.mu.Unlock()

	s.Session().SetHeader("Authorization", "Bearer "+data.AccountInfo.JWT)
	log.Debug("storytel: login successful")
	return nil
}

func loginError(status int, body string) error {
	switch {
	case status == http.StatusBadRequest:
		return errs.UserNotAuthorized("bad request (400): invalid credentials or request format")
	case status == http.StatusUnauthorized:
		return errs.UserNotAuthorized("unauthorized (401): invalid username or password")
	case status == http.StatusForbidden:
		if strings.Contains(body, cloudflareTitle) {
			return errs.CloudflareBlocked()
		}
		return errs.UserNotAuthorized("forbidden (403): access denied, possibly a region restriction")
	case status == http.StatusTooManyRequests:
		return errs.UserNotAuthorized("too many requests (429): rate limit exceeded, try again later")
	case status >= 500:
		return errs.UserNotAuthorized(fmt.Sprintf("server error (%d): Storytel is having issues, try again later", status))
	default:
		return errs.UserNotAuthorized(fmt.Sprintf("authentication failed with status code %d", status))
	}
}

func (s *Source) reloginCheck(ctx context.Context) error {
	s.mu.Lock()
	due := s.downloads > 0 && s.downloads%reloginInterval == 0 && s.password != ""
	s.mu.Unlock()

	if !due {
		return nil
	}
	log.Debug("storytel: refreshing login")
	return s.doLogin(ctx)
}

func (s *Source) Download(ctx context.Context, rawURL string) (audiobook.Result, error) {
	if err := s.reloginCheck(ctx); err != nil {
		return nil, err
	}

	m := Pattern.FindStringSubmatch(rawURL)
	if m == nil {
		return nil, errs.BookNotFound(rawURL)
	}
	language, list := m[1], m[3]
	log.Debugf("storytel: download %s (list %s, language %s)", rawURL, list, language)

	var (
		result audiobook.Result
		err    error
	)
	switch list {
	case "books":
		var id string
		if id, err = IDFromURL(rawURL); err == nil {
			result, err = s.book(ctx, id)
		}
	case "series", "authors", "narrators":
		result, err = s.listFromAPI(ctx, rawURL, list, language)
	default:
		result, err = s.listFromWebsite(ctx, rawURL)
	}

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Source) DownloadByID(ctx context.Context, id string) (*audiobook.Audiobook, error) {
	if err := s.reloginCheck(ctx); err != nil {
		return nil, err
	}
	return s.book(ctx, id)
}

// OnDownloadComplete records the book document so later series downloads can skip it.
func (s *Source) OnDownloadComplete(book *audiobook.Audiobook) error {
	details, ok := book.SourceData.(map[string]any)
	if !ok {
		return nil
	}
	id, _ := details["consumableId"].(string)
	if id == "" {
		return nil
	}
	return s.db.Put(kindBooks, id, details)
}

func (s *Source) skip(id string) bool {
	return s.skipDownloaded && s.db.Exists(kindBooks, id)
}

// IDFromURL returns the consumable id after the last "-" of a Storytel URL path.
func IDFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || strings.Trim(u.Path, "/") == "" {
		return "", errs.DataNotPresent("book id")
	}

	segment := path.Base(strings.TrimSuffix(u.Path, "/"))
	id := segment[strings.LastIndex(segment, "-")+1:]
	if id == "" {
		return "", errs.DataNotPresent("book id")
	}
	return id, nil
}

// cleanShareURL drops the query string and fragment.
func cleanShareURL(raw string) string {
	raw, _, _ = strings.Cut(raw, "?")
	raw, _, _ = strings.Cut(raw, "#")
	return raw
}

// get returns status and body without treating non-2xx statuses as failures.
func (s *Source) get(ctx context.Context, rawURL string) (int, []byte, error) {
	req, err := s.Session().NewRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, err
	}

	resp, err := s.Session().Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, body, err
}

type named struct {
	Name string `json:"name"`
}

type bookFormat struct {
	Type        string `json:"type"`
	IsReleased  *bool  `json:"isReleased"`
	Publisher   *named `json:"publisher"`
	ReleaseDate string `json:"releaseDate"`
}

type bookDetails struct {
	ConsumableID string       `json:"consumableId"`
	Title        string       `json:"title"`
	ShareURL     string       `json:"shareUrl"`
	Authors      []named      `json:"authors"`
	Narrators    []named      `json:"narrators"`
	ISBN         string       `json:"isbn"`
	Description  string       `json:"description"`
	Language     string       `json:"language"`
	Category     *named       `json:"category"`
	Formats      []bookFormat `json:"formats"`
	SeriesInfo   *struct {
		Name          string   `json:"name"`
		OrderInSeries *float64 `json:"orderInSeries"`
	} `json:"seriesInfo"`
	Cover *struct {
		URL string `json:"url"`
	} `json:"cover"`
}

func (s *Source) book(ctx context.Context, id string) (*audiobook.Audiobook, error) {
	details, raw, err := s.bookDetails(ctx, id)
	if err != nil {
		return nil, err
	}

	meta, err := bookMetadata(id, details)
	if err != nil {
		return nil, err
	}

	audioURL, err := s.audioURL(ctx, details.ConsumableID)
	if err != nil {
		return nil, err
	}
	files := []audiobook.File{{
		URL:                 audioURL,
		Ext:                 "mp3",
		Headers:             s.Session().Headers(),
		ExpectedStatusCode:  mo.Some(http.StatusOK),
		ExpectedContentType: mo.Some("audio/mpeg"),
	}}

	// The ISBN is only exposed on the download link.
	if u, err := url.Parse(audioURL); err == nil {
		if isbn := u.Query().Get("isbn"); isbn != "" {
			raw["_download_url_isbn"] = isbn
			meta.ISBN = isbn
		}
	}

	chapters, err := s.chapters(ctx, details)
	if err != nil {
		return nil, err
	}

	return &audiobook.Audiobook{
		Session:    s.Session(),
		Metadata:   meta,
		Files:      files,
		Chapters:   chapters,
		Cover:      s.cover(ctx, details),
		SourceData: raw,
	}, nil
}

func (s *Source) bookDetails(ctx context.Context, id string) (*bookDetails, map[string]any, error) {
	endpoint := fmt.Sprintf("%s/book-details/consumables/%s?kidsMode=false&configVariant=default", APIURL, url.PathEscape(id))
	status, body, err := s.get(ctx, endpoint)
	if err != nil {
		return nil, nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil, errs.BookNotFound(id)
	}

	var details bookDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, nil, errs.Generic(fmt.Sprintf("failed to parse book details response: %d", status)).Wrap(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, err
	}
	if details.ConsumableID == "" {
		details.ConsumableID = id
		raw["consumableId"] = id
	}
	return &details, raw, nil
}

func bookMetadata(id string, details *bookDetails) (audiobook.Metadata, error) {
	meta := audiobook.Metadata{
		Title:       details.Title,
		ScrapeURL:   cleanShareURL(details.ShareURL),
		ISBN:        details.ISBN,
		Description: details.Description,
		Language:    details.Language,
	}
	meta.AddGenre("Audiobook")
	for _, a := range details.Authors {
		meta.AddAuthor(a.Name)
	}
	for _, n := range details.Narrators {
		meta.AddNarrator(n.Name)
	}
	if details.Category != nil {
		meta.AddGenre(details.Category.Name)
	}
	if info := details.SeriesInfo; info != nil {
		meta.Series = info.Name
		if info.OrderInSeries != nil {
			meta.SeriesOrder = mo.Some(*info.OrderInSeries)
		}
	}

	if len(details.Formats) == 0 {
		return meta, errs.DataNotPresent("formats")
	}
	abooks := lo.Filter(details.Formats, func(f bookFormat, _ int) bool {
		return f.Type == "abook"
	})
	switch len(abooks) {
	case 0:
		return meta, errs.BookHasNoAudiobook(id)
	case 1:
	default:
		return meta, errs.Generic("found multiple abook formats, please report this audiobook")
	}

	format := abooks[0]
	if format.IsReleased != nil && !*format.IsReleased {
		return meta, errs.BookNotReleased(id)
	}
	if format.Publisher != nil {
		meta.Publisher = format.Publisher.Name
	}
	if format.ReleaseDate != "" {
		if date, err := time.Parse(time.RFC3339, format.ReleaseDate); err == nil {
			meta.ReleaseDate = mo.Some(date)
		} else {
			log.Debugf("storytel: cannot parse release date %q", format.ReleaseDate)
		}
	}
	return meta, nil
}

// audioURL resolves the final audio location from the redirect of the assets API.
func (s *Source) audioURL(ctx context.Context, id string) (string, error) {
	endpoint := fmt.Sprintf("%s/assets/v2/consumables/%s/abook", APIURL, url.PathEscape(id))
	req, err := s.Session().NewRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.Session().DoNoRedirect(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	s.mu.Lock()
	s.downloads++
	s.mu.Unlock()

	if resp.StatusCode != http.StatusFound {
		return "", errs.RequestError(endpoint, resp.StatusCode)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", errs.DataNotPresent("audio location")
	}
	return location, nil
}

type playbackMetadata struct {
	Formats []struct {
		Type     string `json:"type"`
		Chapters []struct {
			Title    *string `json:"title"`
			Number   int     `json:"number"`
			Duration int64   `json:"durationInMilliseconds"`
		} `json:"chapters"`
	} `json:"formats"`
}

func (s *Source) chapters(ctx context.Context, details *bookDetails) ([]audiobook.Chapter, error) {
	id := details.ConsumableID
	status, body, err := s.get(ctx, fmt.Sprintf("%s/playback-metadata/consumable/%s", APIURL, url.PathEscape(id)))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		log.Debugf("storytel: playback metadata returned %d", status)
		return nil, errs.DataNotPresent("playback metadata")
	}

	var playback playbackMetadata
	if err := json.Unmarshal(body, &playback); err != nil {
		return nil, errs.DataNotPresent("playback metadata").Wrap(err)
	}
	if err := s.db.Put(kindPlayback, id, json.RawMessage(body)); err != nil {
		log.Warnf("storytel: cannot store playback metadata of %s: %s", id, err)
	}

	for _, format := range playback.Formats {
		if format.Type != "abook" {
			continue
		}

		var (
			chapters []audiobook.Chapter
			start    int64
		)
		for _, c := range format.Chapters {
			title := fmt.Sprintf("Chapter %d", c.Number)
			if c.Title != nil {
				title = trimBookTitle(*c.Title, details.Title)
			}
			chapters = append(chapters, audiobook.Chapter{Start: start, Title: title})
			start += c.Duration
		}
		return chapters, nil
	}
	return nil, errs.DataNotPresent("abook playback metadata")
}

// trimBookTitle removes a leading copy of the book title from a chapter title.
func trimBookTitle(title, book string) string {
	if len(title) > len(book) && strings.HasPrefix(title, book) {
		return strings.Trim(title[len(book):], " -")
	}
	return title
}

func (s *Source) cover(ctx context.Context, details *bookDetails) mo.Option[audiobook.Cover] {
	if details.Cover == nil || details.Cover.URL == "" {
		log.Debug("storytel: book has no cover")
		return mo.None[audiobook.Cover]()
	}

	data, err := s.Session().Get(ctx, details.Cover.URL)
	if err != nil {
		log.Debugf("storytel: failed to download cover: %s", err)
		return mo.None[audiobook.Cover]()
	}
	return mo.Some(metadata.NewCover(data, "jpg"))
}
