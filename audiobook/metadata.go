package audiobook

import (
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Metadata describes an audiobook independently of the service that provided it.
type Metadata struct {
	Title       string               `json:"title" jsonschema:"required"`
	Authors     []string             `json:"authors,omitempty"`
	Narrators   []string             `json:"narrators,omitempty"`
	Genres      []string             `json:"genres,omitempty"`
	Language    string               `json:"language,omitempty" jsonschema:"description=ISO 639 language code"`
	Description string               `json:"description,omitempty"`
	ISBN        string               `json:"isbn,omitempty"`
	Publisher   string               `json:"publisher,omitempty"`
	ReleaseDate mo.Option[time.Time] `json:"release_date"`
	Series      string               `json:"series,omitempty"`
	SeriesOrder mo.Option[float64]   `json:"series_order"`
	ScrapeURL   string               `json:"scrape_url,omitempty"`
}

func (m *Metadata) AddAuthor(name string) {
	if name = strings.TrimSpace(name); name != "" {
		m.Authors = append(m.Authors, name)
	}
}

func (m *Metadata) AddNarrator(name string) {
	if name = strings.TrimSpace(name); name != "" {
		m.Narrators = append(m.Narrators, name)
	}
}

func (m *Metadata) AddGenre(name string) {
	if name = strings.TrimSpace(name); name != "" {
		m.Genres = append(m.Genres, name)
	}
}

// Author returns all authors joined by ", ".
func (m *Metadata) Author() string {
	return strings.Join(m.Authors, ", ")
}

// Narrator returns all narrators joined by ", ".
func (m *Metadata) Narrator() string {
	return strings.Join(m.Narrators, ", ")
}

// Genre returns all genres joined by " / ".
func (m *Metadata) Genre() string {
	return strings.Join(m.Genres, " / ")
}

// Order formats the series position without trailing zeros ("3", "2.5").
func (m *Metadata) Order() (string, bool) {
	order, ok := m.SeriesOrder.Get()
	if !ok {
		return "", false
	}
	return strconv.FormatFloat(order, 'f', -1, 64), true
}

// Properties returns the non-empty metadata values keyed by their template name.
func (m *Metadata) Properties() map[string]string {
	props := make(map[string]string)
	set := func(k, v string) {
		if v != "" {
			props[k] = v
		}
	}

	set("title", m.Title)
	set("author", m.Author())
	set("authors", m.Author())
	set("narrator", m.Narrator())
	set("narrators", m.Narrator())
	set("genre", m.Genre())
	set("language", m.Language)
	set("description", m.Description)
	set("isbn", m.ISBN)
	set("publisher", m.Publisher)
	set("series", m.Series)
	set("scrape_url", m.ScrapeURL)
	if order, ok := m.Order(); ok {
		set("series_order", order)
	}
	if date, ok := m.ReleaseDate.Get(); ok {
		set("year", strconv.Itoa(date.Year()))
		set("release_date", date.Format(time.DateOnly))
	}
	return props
}
