// Package provider holds the static table of supported audiobook services.
package provider

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/provider/librivox"
	"github.com/audiobook-dl/audiobook-dl/provider/nextory"
	"github.com/audiobook-dl/audiobook-dl/provider/rss"
	"github.com/audiobook-dl/audiobook-dl/provider/storytel"
	"github.com/audiobook-dl/audiobook-dl/source"
	levenshtein "github.com/ka-weihe/fast-levenshtein"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
)

const maxSuggestionDistance = 2

// Provider represents a source provider.
type Provider struct {
	ID       string
	Name     string
	Aliases  []string
	Patterns []*regexp.Regexp
	New      func(source.Options) source.Source
}

func (p *Provider) String() string {
	return p.Name
}

// Match reports whether any of the provider patterns accepts the URL.
func (p *Provider) Match(rawURL string) bool {
	return lo.SomeBy(p.Patterns, func(re *regexp.Regexp) bool {
		return re.MatchString(rawURL)
	})
}

var builtins = []*Provider{
	{
		ID:       storytel.ID,
		Name:     storytel.Names[0],
		Aliases:  storytel.Names[1:],
		Patterns: []*regexp.Regexp{storytel.Pattern},
		New:      storytel.New,
	},
	{
		ID:       nextory.ID,
		Name:     nextory.Names[0],
		Patterns: []*regexp.Regexp{nextory.Pattern},
		New:      nextory.New,
	},
	{
		ID:       librivox.ID,
		Name:     librivox.Names[0],
		Patterns: []*regexp.Regexp{librivox.Pattern},
		New:      librivox.New,
	},
	// Any feed URL matches, keep it last.
	{
		ID:       rss.ID,
		Name:     rss.Names[0],
		Patterns: []*regexp.Regexp{rss.Pattern},
		New:      rss.New,
	},
}

// Builtins returns built-in providers in resolution order.
func Builtins() []*Provider {
	return builtins
}

// Names returns the display names of all providers, aliases included.
func Names() []string {
	var names []string
	for _, p := range builtins {
		names = append(names, p.Name)
		names = append(names, p.Aliases...)
	}
	return names
}

// Get finds a provider by id, name or alias, ignoring case.
func Get(name string) (*Provider, bool) {
	return lo.Find(builtins, func(p *Provider) bool {
		return strings.EqualFold(p.ID, name) ||
			strings.EqualFold(p.Name, name) ||
			lo.ContainsBy(p.Aliases, func(alias string) bool { return strings.EqualFold(alias, name) })
	})
}

// Resolve returns the first provider able to handle the URL.
func Resolve(rawURL string) (*Provider, error) {
	rawURL = strings.TrimSpace(rawURL)
	if u, err := url.Parse(rawURL); rawURL == "" || err != nil || u.Host == "" {
		return nil, errs.NoSourceFound(rawURL)
	}

	for _, p := range builtins {
		if p.Match(rawURL) {
			log.Debugf("provider: %s handles %s", p.Name, rawURL)
			return p, nil
		}
	}

	err := errs.NoSourceFound(rawURL)
	if suggestions := Suggest(rawURL); len(suggestions) > 0 {
		err = err.With("suggestions", strings.Join(suggestions, ", "))
	}
	return nil, err
}

// Suggest returns provider names resembling the host of the URL, closest first.
func Suggest(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	label, _, _ := strings.Cut(host, ".")

	distance := func(name string) int {
		return levenshtein.Distance(strings.ToLower(name), label)
	}

	suggestions := lo.Filter(Names(), func(name string, _ int) bool {
		return fuzzy.MatchFold(label, name) || fuzzy.MatchFold(name, host) || distance(name) <= maxSuggestionDistance
	})
	sort.SliceStable(suggestions, func(i, j int) bool {
		return distance(suggestions[i]) < distance(suggestions[j])
	})
	return suggestions
}
