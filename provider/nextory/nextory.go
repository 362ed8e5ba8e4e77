// Package nextory implements the Nextory audiobook service.
package nextory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/metadata"
	"github.com/audiobook-dl/audiobook-dl/session"
	"github.com/audiobook-dl/audiobook-dl/source"
	"github.com/audiobook-dl/audiobook-dl/stream"
	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/tidwall/gjson"
)

const ID = "nextory"

var Names = []string{"Nextory"}

var Pattern = regexp.MustCompile(`^https?://((www|catalog-\w\w)\.)?nextory.+`)

// APIURL is the service endpoint.
var APIURL = "https://api.nextory.com"

const (
	appID      = "200"
	appVersion = "5.47.0"
	locale     = "en_GB"
)

// DeviceID is stable across runs so the service sees a single device.
var DeviceID = uuid.NewMD5(uuid.NameSpaceDNS, []byte("audiobook-dl")).String()

type Source struct {
	source.Base
}

var _ source.Source = (*Source)(nil)

func New(source.Options) source.Source {
	s := &Source{}
	s.Base = source.NewBase(Names, session.New(session.WithAuthMethods(session.Login)), login)
	return s
}

func login(ctx context.Context, s *session.Session, _, username, password string) error {
	for k, v := range map[string]string{
		"X-Application-Id": appID,
		"X-App-Version":    appVersion,
		"X-Locale":         locale,
		"X-Model":          "Personal Computer",
		"X-Device-Id":      DeviceID,
		"X-Os-Info":        "Android",
	} {
		s.SetHeader(k, v)
	}
	log.Debugf("nextory: device id %s", DeviceID)

	sessionInfo, err := post(ctx, s, "/user/v1/sessions", map[string]string{
		"identifier": username,
		"password":   password,
	})
	if err != nil {
		return err
	}
	token, country := sessionInfo.Get("login_token").String(), sessionInfo.Get("country").String()
	if token == "" {
		return errs.UserNotAuthorized("no login token in response")
	}
	s.SetHeader("token", token)
	s.SetHeader("X-Login-Token", token)
	s.SetHeader("X-Country-Code", country)

	profiles, err := s.Get(ctx, APIURL+"/user/v1/me/profiles")
	if err != nil {
		return errs.UserNotAuthorized("cannot list profiles").Wrap(err)
	}
	loginKey := gjson.GetBytes(profiles, "profiles.0.login_key").String()
	if loginKey == "" {
		return errs.UserNotAuthorized("account has no profile")
	}

	authorized, err := post(ctx, s, "/user/v1/profile/authorize", map[string]string{"login_key": loginKey})
	if err != nil {
		return err
	}
	profileToken := authorized.Get("profile_token").String()
	if profileToken == "" {
		return errs.UserNotAuthorized("no profile token in response")
	}
	s.SetHeader("X-Profile-Token", profileToken)
	return nil
}

// post sends a login step. Any status other than 200 means the credentials were rejected.
func post(ctx context.Context, s *session.Session, endpoint string, body any) (gjson.Result, error) {
	resp, err := s.PostJSON(ctx, APIURL+endpoint, body)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, errs.UserNotAuthorized(fmt.Sprintf("%s returned %d", endpoint, resp.StatusCode))
	}
	return gjson.ParseBytes(data), nil
}

// IDFromURL returns the numeric book id after the last "-" of the URL path.
func IDFromURL(rawURL string) (int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, errs.DataNotPresent("book id")
	}

	segment := path.Base(strings.TrimSuffix(u.Path, "/"))
	id, err := strconv.ParseInt(segment[strings.LastIndex(segment, "-")+1:], 10, 64)
	if err != nil {
		return 0, errs.DataNotPresent("book id")
	}
	return id, nil
}

func (s *Source) Download(ctx context.Context, rawURL string) (audiobook.Result, error) {
	id, err := IDFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	book, err := s.book(ctx, id)
	if err != nil {
		return nil, err
	}
	return book, nil
}

func (s *Source) DownloadByID(ctx context.Context, id string) (*audiobook.Audiobook, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, errs.BookNotFound(id)
	}
	return s.book(ctx, n)
}

func (s *Source) book(ctx context.Context, id int64) (*audiobook.Audiobook, error) {
	info, ok := s.productDirect(ctx, id)
	if !ok {
		log.Info("nextory: book is not directly accessible, adding it to the want to read list")
		var err error
		if info, err = s.productFromWantToRead(ctx, id); err != nil {
			return nil, err
		}
	}

	format, ok := hlsFormat(info)
	if !ok {
		return nil, errs.DataNotPresent("hls format")
	}

	audio, err := s.Session().Get(ctx, fmt.Sprintf("%s/reader/books/%s/packages/audio", APIURL, url.PathEscape(format.Get("identifier").String())))
	if err != nil {
		return nil, err
	}

	files, err := s.files(ctx, gjson.ParseBytes(audio))
	if err != nil {
		return nil, err
	}

	return &audiobook.Audiobook{
		Session:    s.Session(),
		Metadata:   Metadata(info),
		Files:      files,
		Cover:      s.cover(ctx, format),
		SourceData: json.RawMessage(info.Raw),
	}, nil
}

// productDirect reads the product from the catalog, then from the library.
func (s *Source) productDirect(ctx context.Context, id int64) (gjson.Result, bool) {
	for _, endpoint := range []string{"/catalog/v1/products/", "/library/v1/products/"} {
		body, err := s.Session().Get(ctx, APIURL+endpoint+strconv.FormatInt(id, 10))
		if err != nil {
			log.Debugf("nextory: %s%d: %s", endpoint, id, err)
			continue
		}
		return gjson.ParseBytes(body), true
	}
	return gjson.Result{}, false
}

func (s *Source) wantToReadID(ctx context.Context) (string, error) {
	body, err := s.Session().Get(ctx, APIURL+"/library/v1/me/product_lists?page=0&per=50")
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(body, `product_lists.#(type=="want_to_read").id`)
	if !id.Exists() {
		return "", errs.DataNotPresent("want to read list")
	}
	return id.String(), nil
}

// productFromWantToRead adds the book to the want to read list, whose entries carry full product data.
func (s *Source) productFromWantToRead(ctx context.Context, id int64) (gjson.Result, error) {
	listID, err := s.wantToReadID(ctx)
	if err != nil {
		return gjson.Result{}, err
	}

	resp, err := s.Session().PostJSON(ctx, fmt.Sprintf("%s/library/v1/me/product_lists/%s/products", APIURL, url.PathEscape(listID)),
		map[string]int64{"product_id": id})
	if err != nil {
		return gjson.Result{}, err
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Debugf("nextory: adding %d to want to read returned %d", id, resp.StatusCode)
	}

	query := url.Values{"page": {"0"}, "per": {"1000"}, "id": {listID}}
	body, err := s.Session().Get(ctx, APIURL+"/library/v1/me/product_lists/want_to_read/products?"+query.Encode())
	if err != nil {
		return gjson.Result{}, err
	}

	product := gjson.GetBytes(body, fmt.Sprintf("products.#(id==%d)", id))
	if !product.Exists() {
		return gjson.Result{}, errs.MissingBookAccess(strconv.FormatInt(id, 10))
	}
	return product, nil
}

func hlsFormat(info gjson.Result) (gjson.Result, bool) {
	format := info.Get(`formats.#(type=="hls")`)
	return format, format.Exists()
}

// files expands every audio package playlist into its segments.
func (s *Source) files(ctx context.Context, audio gjson.Result) ([]audiobook.File, error) {
	var result []audiobook.File
	for _, file := range audio.Get("files").Array() {
		media := strings.Replace(file.Get("uri").String(), "master", "media", 1)

		segments, err := stream.Files(ctx, s.Session(), media)
		if err != nil {
			return nil, err
		}
		for i := range segments {
			segments[i].Headers = s.Session().Headers()
			segments[i].ExpectedStatusCode = mo.Some(http.StatusOK)
			segments[i].ExpectedContentType = mo.Some("audio/aac")
		}
		result = append(result, segments...)
	}

	if len(result) == 0 {
		return nil, errs.DataNotPresent("audio files")
	}
	return result, nil
}

// Metadata maps a product document. Several fields come either as objects or as plain strings.
func Metadata(info gjson.Result) audiobook.Metadata {
	meta := audiobook.Metadata{Title: info.Get("title").String()}

	for _, a := range info.Get("authors.#.name").Array() {
		meta.AddAuthor(a.String())
	}
	for _, n := range info.Get("narrators.#.name").Array() {
		meta.AddNarrator(n.String())
	}

	meta.Description = info.Get("description_full").String()
	if meta.Description == "" {
		meta.Description = info.Get("description").String()
	}
	meta.Language = info.Get("language").String()

	meta.Series = nameOf(info.Get("series"))
	if volume := info.Get("volume"); volume.Exists() && volume.Type == gjson.Number {
		meta.SeriesOrder = mo.Some(volume.Float())
	}

	if format, ok := hlsFormat(info); ok {
		meta.ISBN = format.Get("isbn").String()
		meta.Publisher = nameOf(format.Get("publisher"))
		if date, ok := parseDate(format.Get("publication_date").String()); ok {
			meta.ReleaseDate = mo.Some(date)
		}
	} else {
		log.Debug("nextory: no format data for metadata")
	}

	for _, field := range []string{"genres", "categories", "category"} {
		value := info.Get(field)
		if !value.Exists() || value.Type == gjson.Null {
			continue
		}
		if value.IsArray() {
			for _, genre := range value.Array() {
				meta.AddGenre(nameOf(genre))
			}
		} else {
			meta.AddGenre(nameOf(value))
		}
		if len(meta.Genres) > 0 {
			break
		}
	}
	return meta
}

// nameOf returns the name of {"name": ...} objects and plain strings as they are.
func nameOf(v gjson.Result) string {
	if v.IsObject() {
		return v.Get("name").String()
	}
	if v.Type == gjson.String {
		return v.String()
	}
	return ""
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if strings.Contains(s, "T") {
		s, _, _ = strings.Cut(s, ".")
		s = strings.TrimSuffix(s, "Z")
		t, err := time.Parse("2006-01-02T15:04:05", s)
		return t, err == nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		log.Debugf("nextory: cannot parse publication date %q", s)
	}
	return t, err == nil
}

func (s *Source) cover(ctx context.Context, format gjson.Result) mo.Option[audiobook.Cover] {
	coverURL := format.Get("img_url").String()
	if coverURL == "" {
		return mo.None[audiobook.Cover]()
	}

	data, err := s.Session().Get(ctx, coverURL)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		log.Debugf("nextory: failed to download cover: %v", err)
		return mo.None[audiobook.Cover]()
	}
	return mo.Some(metadata.Normalize(metadata.NewCover(data, "jpg")))
}
